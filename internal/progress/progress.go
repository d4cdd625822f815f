// Package progress tracks per-video capture state so interrupted batch
// runs resume where they left off.
package progress

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of one video in a batch.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var statusSet = map[Status]struct{}{
	StatusPending:    {},
	StatusInProgress: {},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	_, ok := statusSet[s]
	return ok
}

// Terminal reports whether the status needs no further processing.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is the persisted state of one video.
type Record struct {
	VideoPath  string    `json:"video_path"`
	OutputDir  string    `json:"output_dir"`
	Status     Status    `json:"status"`
	SlideCount int       `json:"slide_count"`
	Error      string    `json:"error,omitempty"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store persists progress records keyed by video path.
type Store interface {
	// Get returns the record for the path, or ok=false if none exists.
	Get(videoPath string) (Record, bool, error)

	// Set upserts the record, stamping UpdatedAt.
	Set(rec Record) error

	// List returns all records ordered by video path.
	List() ([]Record, error)
}

// Transition moves a record to the given status and persists it. An
// in_progress record left behind by a crashed run may transition straight
// to failed or back to pending.
func Transition(store Store, rec Record, to Status) (Record, error) {
	if !to.Valid() {
		return rec, fmt.Errorf("unknown status %q", to)
	}
	rec.Status = to
	if to != StatusFailed {
		rec.Error = ""
	}
	if err := store.Set(rec); err != nil {
		return rec, fmt.Errorf("persist %s transition for %s: %w", to, rec.VideoPath, err)
	}
	return rec, nil
}
