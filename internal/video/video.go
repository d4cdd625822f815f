// Package video provides frame-level access to a video file through the
// external ffmpeg/ffprobe tooling.
package video

import (
	"context"
	"errors"
	"image"
)

// ErrUnreadable reports a video that cannot be probed or decoded. It is
// fatal for that video; batch callers mark the video failed and move on.
var ErrUnreadable = errors.New("video source unreadable")

// Info describes a probed video stream.
type Info struct {
	Path        string
	TotalFrames int
	FPS         float64
	Duration    float64
}

// Frame is one decoded frame with its position metadata. Frames are
// read-only to everything downstream of the source.
type Frame struct {
	Index     int
	Timestamp float64
	Image     image.Image
}

// Source is random-access reader over a video's decoded frames.
type Source interface {
	// Info returns the stream metadata gathered at open time.
	Info() Info

	// Frame decodes the frame at the given index, scaled to the
	// configured analysis size.
	Frame(ctx context.Context, index int) (*Frame, error)

	// FullFrame decodes the frame at the given index at its native
	// resolution, for persisting representatives.
	FullFrame(ctx context.Context, index int) (image.Image, error)

	// Close releases decoder resources.
	Close() error
}
