package batch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/kdimtricp/slidecap/internal/capture"
	"github.com/kdimtricp/slidecap/internal/progress"
)

func writeFiles(t *testing.T, root string, names ...string) {
	t.Helper()
	for _, name := range names {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

func TestFindVideos(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root,
		"b.mp4",
		"a.MKV",
		"sub/c.webm",
		"notes.txt",
		"._a.mp4",
		".hidden.mp4",
		".cache/d.mp4",
	)

	videos, err := FindVideos(root, true)
	if err != nil {
		t.Fatalf("FindVideos: %v", err)
	}

	want := []string{
		filepath.Join(root, "a.MKV"),
		filepath.Join(root, "b.mp4"),
		filepath.Join(root, "sub", "c.webm"),
	}
	if len(videos) != len(want) {
		t.Fatalf("got %v, want %v", videos, want)
	}
	for i := range want {
		if videos[i] != want[i] {
			t.Errorf("videos[%d] = %s, want %s", i, videos[i], want[i])
		}
	}
}

func TestFindVideosNonRecursive(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.mp4", "sub/b.mp4")

	videos, err := FindVideos(root, false)
	if err != nil {
		t.Fatalf("FindVideos: %v", err)
	}
	if len(videos) != 1 || videos[0] != filepath.Join(root, "a.mp4") {
		t.Errorf("got %v, want only a.mp4", videos)
	}
}

func TestFindVideosSingleFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.mp4", "notes.txt")

	videos, err := FindVideos(filepath.Join(root, "a.mp4"), false)
	if err != nil {
		t.Fatalf("FindVideos: %v", err)
	}
	if len(videos) != 1 || videos[0] != filepath.Join(root, "a.mp4") {
		t.Errorf("got %v, want a.mp4", videos)
	}

	if _, err := FindVideos(filepath.Join(root, "notes.txt"), false); err == nil {
		t.Error("expected error for non-video file root")
	}
}

func metaWithSlides(n int) *capture.Metadata {
	meta := &capture.Metadata{Slides: make([]capture.SlideRecord, n)}
	return meta
}

func TestRunnerProcessesAll(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "a.mp4", "b.mp4", "c.mp4")

	var mu sync.Mutex
	processed := map[string]int{}

	runner := &Runner{
		Store:   progress.NewMemoryStore(),
		Workers: 2,
		Process: func(ctx context.Context, videoPath, outDir string) (*capture.Metadata, error) {
			mu.Lock()
			processed[videoPath]++
			mu.Unlock()
			return metaWithSlides(3), nil
		},
	}

	results, err := runner.Run(context.Background(), root, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}
	for _, res := range results {
		if res.Status != progress.StatusCompleted {
			t.Errorf("%s: status %s, want completed", res.VideoPath, res.Status)
		}
		if res.Slides != 3 {
			t.Errorf("%s: %d slides, want 3", res.VideoPath, res.Slides)
		}
	}
	if len(processed) != 3 {
		t.Errorf("processed %d distinct videos, want 3", len(processed))
	}
}

func TestRunnerSkipsCompleted(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "done.mp4", "todo.mp4")

	store := progress.NewMemoryStore()
	donePath := filepath.Join(root, "done.mp4")
	if err := store.Set(progress.Record{
		VideoPath:  donePath,
		Status:     progress.StatusCompleted,
		SlideCount: 7,
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	var mu sync.Mutex
	var calls []string
	runner := &Runner{
		Store: store,
		Process: func(ctx context.Context, videoPath, outDir string) (*capture.Metadata, error) {
			mu.Lock()
			calls = append(calls, videoPath)
			mu.Unlock()
			return metaWithSlides(1), nil
		},
	}

	results, err := runner.Run(context.Background(), root, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(calls) != 1 || calls[0] != filepath.Join(root, "todo.mp4") {
		t.Fatalf("processed %v, want only todo.mp4", calls)
	}
	if !results[0].Skipped || results[0].Slides != 7 {
		t.Errorf("done.mp4 result = %+v, want skipped with 7 slides", results[0])
	}
}

func TestRunnerForceReprocesses(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "done.mp4")

	store := progress.NewMemoryStore()
	if err := store.Set(progress.Record{
		VideoPath: filepath.Join(root, "done.mp4"),
		Status:    progress.StatusCompleted,
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	called := false
	runner := &Runner{
		Store: store,
		Force: true,
		Process: func(ctx context.Context, videoPath, outDir string) (*capture.Metadata, error) {
			called = true
			return metaWithSlides(2), nil
		},
	}

	results, err := runner.Run(context.Background(), root, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !called {
		t.Fatal("force run did not reprocess completed video")
	}
	if results[0].Skipped {
		t.Error("force run marked result skipped")
	}
}

func TestRunnerResumesInterrupted(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "crashed.mp4")

	// A leftover in_progress record from a run that never finished must
	// be picked up again without -force.
	store := progress.NewMemoryStore()
	crashedPath := filepath.Join(root, "crashed.mp4")
	if err := store.Set(progress.Record{
		VideoPath: crashedPath,
		Status:    progress.StatusInProgress,
	}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	called := false
	runner := &Runner{
		Store: store,
		Process: func(ctx context.Context, videoPath, outDir string) (*capture.Metadata, error) {
			called = true
			return metaWithSlides(4), nil
		},
	}

	results, err := runner.Run(context.Background(), root, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !called {
		t.Fatal("interrupted video was not reprocessed")
	}
	if results[0].Status != progress.StatusCompleted || results[0].Skipped {
		t.Errorf("result = %+v, want completed and not skipped", results[0])
	}

	rec, ok, err := store.Get(crashedPath)
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if rec.Status != progress.StatusCompleted || rec.SlideCount != 4 {
		t.Errorf("stored record = %+v, want completed with 4 slides", rec)
	}
}

func TestRunnerRecordsFailure(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "bad.mp4", "good.mp4")

	store := progress.NewMemoryStore()
	runner := &Runner{
		Store: store,
		Process: func(ctx context.Context, videoPath, outDir string) (*capture.Metadata, error) {
			if filepath.Base(videoPath) == "bad.mp4" {
				return nil, errors.New("codec not supported")
			}
			return metaWithSlides(1), nil
		},
	}

	results, err := runner.Run(context.Background(), root, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if results[0].Status != progress.StatusFailed || results[0].Err == nil {
		t.Errorf("bad.mp4 result = %+v, want failed", results[0])
	}
	if results[1].Status != progress.StatusCompleted {
		t.Errorf("good.mp4 result = %+v, want completed", results[1])
	}

	rec, ok, err := store.Get(filepath.Join(root, "bad.mp4"))
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if rec.Status != progress.StatusFailed || rec.Error == "" {
		t.Errorf("stored record = %+v, want failed with error text", rec)
	}
}

func TestRunnerEmptyResultCompletes(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, "blank.mp4")

	store := progress.NewMemoryStore()
	runner := &Runner{
		Store: store,
		Process: func(ctx context.Context, videoPath, outDir string) (*capture.Metadata, error) {
			return &capture.Metadata{Slides: []capture.SlideRecord{}}, capture.ErrEmptyResult
		},
	}

	results, err := runner.Run(context.Background(), root, t.TempDir())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[0].Status != progress.StatusCompleted || results[0].Slides != 0 {
		t.Errorf("result = %+v, want completed with 0 slides", results[0])
	}
}

func TestRunnerNoVideos(t *testing.T) {
	runner := &Runner{
		Store:   progress.NewMemoryStore(),
		Process: func(ctx context.Context, videoPath, outDir string) (*capture.Metadata, error) { return nil, nil },
	}
	if _, err := runner.Run(context.Background(), t.TempDir(), t.TempDir()); err == nil {
		t.Fatal("expected error for empty input directory")
	}
}
