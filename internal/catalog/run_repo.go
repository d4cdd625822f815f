package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kdimtricp/slidecap/internal/capture"
)

// Run is one recorded capture session.
type Run struct {
	ID          string
	VideoPath   string
	OutputDir   string
	TotalFrames int
	FPS         float64
	SlideCount  int
	CreatedAt   time.Time
}

// Slide is one persisted representative within a run.
type Slide struct {
	ID              string
	RunID           string
	Index           int
	Filename        string
	FrameNumber     int
	Timestamp       float64
	PHash           string
	GroupID         int
	DetectionReason string
	Sharpness       float64
	Failed          bool
}

type RunRepo struct {
	db *DB
}

func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// RecordRun stores one session's metadata and its slides in a single
// transaction.
func (r *RunRepo) RecordRun(ctx context.Context, outputDir string, meta *capture.Metadata) (*Run, error) {
	run := &Run{
		ID:          uuid.New().String(),
		VideoPath:   meta.VideoPath,
		OutputDir:   outputDir,
		TotalFrames: meta.TotalFrames,
		FPS:         meta.FPS,
		SlideCount:  len(meta.Slides),
		CreatedAt:   time.Now().UTC(),
	}

	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, video_path, output_dir, total_frames, fps, slide_count, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.VideoPath, run.OutputDir, run.TotalFrames, run.FPS, run.SlideCount, run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert run: %w", err)
	}

	for _, slide := range meta.Slides {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO slides (id, run_id, slide_index, filename, frame_number, timestamp,
				phash, group_id, detection_reason, sharpness, failed)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			uuid.New().String(), run.ID, slide.Index, slide.Filename, slide.FrameIndex,
			slide.Timestamp, slide.PHash, slide.GroupID, slide.DetectionReason,
			slide.Sharpness, slide.Failed)
		if err != nil {
			return nil, fmt.Errorf("failed to insert slide %d: %w", slide.Index, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit run: %w", err)
	}
	return run, nil
}

// GetRun returns one run by id, or sql.ErrNoRows wrapped if absent.
func (r *RunRepo) GetRun(ctx context.Context, id string) (*Run, error) {
	run := &Run{}
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT id, video_path, output_dir, total_frames, fps, slide_count, created_at
		FROM runs WHERE id = ?`, id).
		Scan(&run.ID, &run.VideoPath, &run.OutputDir, &run.TotalFrames,
			&run.FPS, &run.SlideCount, &run.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return run, nil
}

// ListRuns returns runs newest first.
func (r *RunRepo) ListRuns(ctx context.Context) ([]*Run, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, video_path, output_dir, total_frames, fps, slide_count, created_at
		FROM runs ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		if err := rows.Scan(&run.ID, &run.VideoPath, &run.OutputDir, &run.TotalFrames,
			&run.FPS, &run.SlideCount, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SlidesByRun returns a run's slides in output order.
func (r *RunRepo) SlidesByRun(ctx context.Context, runID string) ([]*Slide, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, run_id, slide_index, filename, frame_number, timestamp,
			phash, group_id, detection_reason, sharpness, failed
		FROM slides WHERE run_id = ? ORDER BY slide_index`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slides: %w", err)
	}
	defer rows.Close()

	var slides []*Slide
	for rows.Next() {
		slide := &Slide{}
		if err := rows.Scan(&slide.ID, &slide.RunID, &slide.Index, &slide.Filename,
			&slide.FrameNumber, &slide.Timestamp, &slide.PHash, &slide.GroupID,
			&slide.DetectionReason, &slide.Sharpness, &slide.Failed); err != nil {
			return nil, fmt.Errorf("failed to scan slide: %w", err)
		}
		slides = append(slides, slide)
	}
	return slides, rows.Err()
}

// LatestRunForVideo returns the most recent run for a video path, or
// nil when the video has never been cataloged.
func (r *RunRepo) LatestRunForVideo(ctx context.Context, videoPath string) (*Run, error) {
	run := &Run{}
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT id, video_path, output_dir, total_frames, fps, slide_count, created_at
		FROM runs WHERE video_path = ? ORDER BY created_at DESC, id LIMIT 1`, videoPath).
		Scan(&run.ID, &run.VideoPath, &run.OutputDir, &run.TotalFrames,
			&run.FPS, &run.SlideCount, &run.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest run for %s: %w", videoPath, err)
	}
	return run, nil
}
