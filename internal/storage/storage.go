package storage

import "image"

// Store persists representative slide images.
type Store interface {
	// SaveJPEG writes an image under the given filename and returns the
	// absolute path. The write is atomic: a crash never leaves a
	// half-written file under the final name.
	SaveJPEG(filename string, img image.Image, quality int) (string, error)

	// Remove deletes a previously saved image.
	Remove(filename string) error
}
