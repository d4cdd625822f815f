// Package capture orchestrates the detection, grouping and selection
// pipeline over one video and persists the result.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"

	"github.com/kdimtricp/slidecap/internal/config"
	"github.com/kdimtricp/slidecap/internal/detector"
	"github.com/kdimtricp/slidecap/internal/grouping"
	"github.com/kdimtricp/slidecap/internal/selector"
	"github.com/kdimtricp/slidecap/internal/storage"
	"github.com/kdimtricp/slidecap/internal/video"
)

var (
	// ErrEmptyResult reports a session that found no candidates. It is
	// non-fatal: the returned metadata is valid with zero slides.
	ErrEmptyResult = errors.New("no slides captured")

	// ErrPartialWrite reports that some representative images failed to
	// persist. Succeeded entries are kept; failed ones are flagged in
	// the metadata.
	ErrPartialWrite = errors.New("some slide images failed to persist")
)

// SourceOpener opens a frame source for a video path. Tests and embedders
// substitute in-memory sources.
type SourceOpener func(path string) (video.Source, error)

// Session runs the capture pipeline with one configuration.
type Session struct {
	cfg config.Config

	// Open supplies the frame source. Defaults to the ffmpeg source.
	Open SourceOpener
}

// NewSession validates nothing yet; Process rejects an invalid config
// before touching the video.
func NewSession(cfg config.Config) *Session {
	return &Session{
		cfg: cfg,
		Open: func(path string) (video.Source, error) {
			return video.Open(path, video.Options{
				AnalysisWidth:  cfg.AnalysisWidth,
				AnalysisHeight: cfg.AnalysisHeight,
			})
		},
	}
}

// Process extracts representative slides from the video into outDir and
// returns the capture metadata. The same video and config always produce
// identical metadata.
func (s *Session) Process(ctx context.Context, videoPath, outDir string) (*Metadata, error) {
	if err := s.cfg.Validate(); err != nil {
		return nil, err
	}

	src, err := s.Open(videoPath)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	defer src.Close()

	info := src.Info()
	meta := &Metadata{
		VideoPath:         videoPath,
		TotalFrames:       info.TotalFrames,
		FPS:               info.FPS,
		Threshold:         s.cfg.SimilarityThreshold,
		GroupingThreshold: s.cfg.GroupingThreshold,
		Slides:            []SlideRecord{},
		SimilarityGroups:  map[string][]GroupMember{},
	}

	candidates, err := detector.New(src, s.cfg).Detect(ctx)
	if err != nil {
		return nil, fmt.Errorf("detect changes: %w", err)
	}

	if len(candidates) == 0 {
		log.Printf("no candidates found in %s", videoPath)
		if s.cfg.EnableMetadata {
			if err := writeMetadataTo(outDir, meta); err != nil {
				return nil, err
			}
		}
		return meta, ErrEmptyResult
	}

	// Grouping finalizes only after the full candidate sequence is
	// known: the re-merge pass needs global group state.
	var groups []grouping.Group
	if s.cfg.EnableGrouping {
		grouper := grouping.New(s.cfg.GroupingThreshold, s.cfg.Weights)
		groups = grouper.Group(candidates)
		if s.cfg.EnableRemerge {
			groups = grouper.Remerge(groups)
		}
	} else {
		groups = grouping.Ungroup(candidates)
	}

	reps := selector.SelectAll(groups)
	log.Printf("%s: %d candidates in %d groups", videoPath, len(candidates), len(groups))

	store, err := storage.NewLocalStore(outDir)
	if err != nil {
		return nil, err
	}

	failed := 0
	for i, rep := range reps {
		record := slideRecord(i, rep, groups[i])
		record.Filename = slideFilename(i, rep)

		if err := s.persistRepresentative(ctx, src, store, record.Filename, rep); err != nil {
			log.Printf("failed to persist %s: %v", record.Filename, err)
			record.Failed = true
			failed++
		}

		meta.Slides = append(meta.Slides, record)
		// Ungrouped entries all carry id -1; key them by output index so
		// they do not collapse into one map entry.
		key := strconv.Itoa(groups[i].ID)
		if groups[i].ID == grouping.Ungrouped {
			key = strconv.Itoa(i)
		}
		for _, m := range groups[i].Members {
			meta.SimilarityGroups[key] = append(meta.SimilarityGroups[key], GroupMember{
				FrameIndex: m.Frame.Index,
				PHash:      m.Fingerprint.PHashHex(),
			})
		}
	}

	if s.cfg.EnableMetadata {
		if err := writeMetadataTo(outDir, meta); err != nil {
			return nil, err
		}
	}

	if failed > 0 {
		return meta, fmt.Errorf("%w: %d of %d", ErrPartialWrite, failed, len(reps))
	}
	return meta, nil
}

// persistRepresentative fetches the full-resolution frame and writes it
// through the store. The store's atomic rename guarantees metadata never
// references a partially-written image.
func (s *Session) persistRepresentative(ctx context.Context, src video.Source, store storage.Store, filename string, rep selector.Representative) error {
	full, err := src.FullFrame(ctx, rep.Candidate.Frame.Index)
	if err != nil {
		return fmt.Errorf("fetch full frame: %w", err)
	}
	if _, err := store.SaveJPEG(filename, full, s.cfg.JPEGQuality); err != nil {
		return err
	}
	return nil
}

func slideRecord(index int, rep selector.Representative, group grouping.Group) SlideRecord {
	similar := make([]int, 0, len(group.Members)-1)
	for _, m := range group.Members {
		if m.Frame.Index != rep.Candidate.Frame.Index {
			similar = append(similar, m.Frame.Index)
		}
	}
	return SlideRecord{
		Index:           index,
		FrameIndex:      rep.Candidate.Frame.Index,
		Timestamp:       rep.Candidate.Frame.Timestamp,
		PHash:           rep.Candidate.Fingerprint.PHashHex(),
		GroupID:         group.ID,
		SimilarFrames:   similar,
		DetectionReason: string(rep.Candidate.Reason),
		Sharpness:       rep.Sharpness,
	}
}

// slideFilename encodes group id, intra-group sequence, timestamp and a
// hash fragment: slide_g01_002_t12.5s_h1a2b3c4d.jpg. Ungrouped slides use
// their output position in place of a group id.
func slideFilename(index int, rep selector.Representative) string {
	groupID := rep.GroupID
	if groupID == grouping.Ungrouped {
		groupID = index
	}
	return fmt.Sprintf("slide_g%02d_%03d_t%.1fs_h%s.jpg",
		groupID,
		rep.MemberIndex,
		rep.Candidate.Frame.Timestamp,
		rep.Candidate.Fingerprint.PHashHex()[:8])
}

func writeMetadataTo(dir string, meta *Metadata) error {
	store, err := storage.NewLocalStore(dir)
	if err != nil {
		return err
	}
	return WriteMetadata(store.BasePath(), meta)
}
