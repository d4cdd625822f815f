// Package batch runs the capture pipeline over a directory of videos,
// recording per-video progress so interrupted runs resume.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/kdimtricp/slidecap/internal/capture"
	"github.com/kdimtricp/slidecap/internal/progress"
)

var videoExtensions = map[string]struct{}{
	".mp4":  {},
	".mkv":  {},
	".avi":  {},
	".mov":  {},
	".webm": {},
	".m4v":  {},
}

// FindVideos returns the video files under root sorted by path. A root
// that is itself a video file yields just that file. Hidden files and
// macOS resource forks ("._*") are skipped; recursive=false stays in the
// top directory.
func FindVideos(root string, recursive bool) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	if !info.IsDir() {
		if _, ok := videoExtensions[strings.ToLower(filepath.Ext(root))]; !ok {
			return nil, fmt.Errorf("%s is not a recognized video file", root)
		}
		return []string{root}, nil
	}

	var videos []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if !recursive || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || strings.HasPrefix(name, "._") {
			return nil
		}
		if _, ok := videoExtensions[strings.ToLower(filepath.Ext(name))]; ok {
			videos = append(videos, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}
	sort.Strings(videos)
	return videos, nil
}

// Processor runs the capture pipeline for one video. Production wiring
// uses capture.Session.Process.
type Processor func(ctx context.Context, videoPath, outDir string) (*capture.Metadata, error)

// Result summarizes one video's outcome.
type Result struct {
	VideoPath string
	OutputDir string
	Status    progress.Status
	Slides    int
	Skipped   bool
	Err       error
}

// Runner fans videos out over a bounded worker pool.
type Runner struct {
	Process Processor
	Store   progress.Store
	Workers int

	// Force reprocesses videos already marked completed.
	Force bool

	// Recursive descends into subdirectories of the input root.
	Recursive bool
}

// Run processes every video under inRoot, writing each video's slides to
// outRoot/<video name>/. Results come back ordered by video path.
func (r *Runner) Run(ctx context.Context, inRoot, outRoot string) ([]Result, error) {
	if r.Process == nil || r.Store == nil {
		return nil, errors.New("batch runner requires a processor and a progress store")
	}

	videos, err := FindVideos(inRoot, r.Recursive)
	if err != nil {
		return nil, err
	}
	if len(videos) == 0 {
		return nil, fmt.Errorf("no videos found under %s", inRoot)
	}

	workers := r.Workers
	if workers < 1 {
		workers = 1
	}

	results := make([]Result, len(videos))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

	for i, videoPath := range videos {
		wg.Add(1)
		go func(i int, videoPath string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = r.runOne(ctx, videoPath, outRoot)
		}(i, videoPath)
	}
	wg.Wait()

	return results, nil
}

func (r *Runner) runOne(ctx context.Context, videoPath, outRoot string) Result {
	outDir := filepath.Join(outRoot, videoBase(videoPath))
	res := Result{VideoPath: videoPath, OutputDir: outDir}

	rec, known, err := r.Store.Get(videoPath)
	if err != nil {
		res.Status, res.Err = progress.StatusFailed, err
		return res
	}
	if known && rec.Status == progress.StatusCompleted && !r.Force {
		log.Printf("skipping %s: already completed", videoPath)
		res.Status, res.Slides, res.Skipped = rec.Status, rec.SlideCount, true
		return res
	}
	if known && !rec.Status.Terminal() {
		log.Printf("resuming %s: previous attempt left status %s", videoPath, rec.Status)
	}

	rec = progress.Record{VideoPath: videoPath, OutputDir: outDir, Status: progress.StatusPending}
	if rec, err = progress.Transition(r.Store, rec, progress.StatusInProgress); err != nil {
		res.Status, res.Err = progress.StatusFailed, err
		return res
	}

	meta, err := r.Process(ctx, videoPath, outDir)
	if meta != nil {
		rec.SlideCount = len(meta.Slides)
		res.Slides = len(meta.Slides)
	}

	// A metadata document with zero slides is a completed run, not a
	// failure.
	if err != nil && !errors.Is(err, capture.ErrEmptyResult) {
		rec.Error = err.Error()
		if rec, terr := progress.Transition(r.Store, rec, progress.StatusFailed); terr != nil {
			log.Printf("record failure for %s: %v", rec.VideoPath, terr)
		}
		res.Status, res.Err = progress.StatusFailed, err
		return res
	}

	if rec, err = progress.Transition(r.Store, rec, progress.StatusCompleted); err != nil {
		res.Status, res.Err = progress.StatusFailed, err
		return res
	}
	res.Status = rec.Status
	return res
}

func videoBase(path string) string {
	name := filepath.Base(path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}
