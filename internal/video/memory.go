package video

import (
	"context"
	"fmt"
	"image"
)

// MemorySource serves frames from an in-memory slice. It backs tests and
// any caller that already holds decoded frames.
type MemorySource struct {
	frames []image.Image
	fps    float64
	path   string
}

// NewMemorySource wraps pre-decoded frames at the given frame rate.
func NewMemorySource(path string, frames []image.Image, fps float64) *MemorySource {
	return &MemorySource{frames: frames, fps: fps, path: path}
}

func (s *MemorySource) Info() Info {
	duration := 0.0
	if s.fps > 0 {
		duration = float64(len(s.frames)) / s.fps
	}
	return Info{
		Path:        s.path,
		TotalFrames: len(s.frames),
		FPS:         s.fps,
		Duration:    duration,
	}
}

func (s *MemorySource) Frame(ctx context.Context, index int) (*Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if index < 0 || index >= len(s.frames) {
		return nil, fmt.Errorf("frame index %d out of range [0,%d)", index, len(s.frames))
	}
	ts := 0.0
	if s.fps > 0 {
		ts = float64(index) / s.fps
	}
	return &Frame{Index: index, Timestamp: ts, Image: s.frames[index]}, nil
}

func (s *MemorySource) FullFrame(ctx context.Context, index int) (image.Image, error) {
	f, err := s.Frame(ctx, index)
	if err != nil {
		return nil, err
	}
	return f.Image, nil
}

func (s *MemorySource) Close() error {
	return nil
}
