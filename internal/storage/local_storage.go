package storage

import (
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

type LocalStore struct {
	basePath string
}

func NewLocalStore(basePath string) (*LocalStore, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	return &LocalStore{basePath: basePath}, nil
}

// BasePath returns the directory the store writes into.
func (ls *LocalStore) BasePath() string {
	return ls.basePath
}

func (ls *LocalStore) SaveJPEG(filename string, img image.Image, quality int) (string, error) {
	cleanName := filepath.Clean(filename)
	if strings.Contains(cleanName, "..") || filepath.IsAbs(cleanName) {
		return "", fmt.Errorf("invalid filename %q", filename)
	}

	finalPath := filepath.Join(ls.basePath, cleanName)
	tempPath := finalPath + ".tmp-" + uuid.New().String()[:8]

	f, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: quality}); err != nil {
		f.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to encode image: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to flush image: %w", err)
	}

	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to finalize image: %w", err)
	}

	return finalPath, nil
}

func (ls *LocalStore) Remove(filename string) error {
	cleanName := filepath.Clean(filename)
	if strings.Contains(cleanName, "..") || filepath.IsAbs(cleanName) {
		return fmt.Errorf("invalid filename %q", filename)
	}

	if err := os.Remove(filepath.Join(ls.basePath, cleanName)); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}
