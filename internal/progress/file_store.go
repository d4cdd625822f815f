package progress

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// FileStore keeps records in a single JSON document guarded by a file
// lock, so concurrent batch processes on the same progress file never
// interleave writes.
type FileStore struct {
	path string
	lock *flock.Flock
	mu   sync.Mutex
}

// NewFileStore opens or creates a progress file at path.
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create progress dir: %w", err)
	}
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}, nil
}

// Path returns the progress file location.
func (s *FileStore) Path() string {
	return s.path
}

func (s *FileStore) Get(videoPath string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return Record{}, false, err
	}
	rec, ok := records[videoPath]
	return rec, ok, nil
}

func (s *FileStore) Set(rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("acquire progress lock: %w", err)
	}
	defer s.lock.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	rec.UpdatedAt = time.Now().UTC()
	records[rec.VideoPath] = rec
	return s.save(records)
}

func (s *FileStore) List() ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].VideoPath < out[j].VideoPath })
	return out, nil
}

func (s *FileStore) load() (map[string]Record, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return map[string]Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read progress file: %w", err)
	}

	var records map[string]Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse progress file %s: %w", s.path, err)
	}
	if records == nil {
		records = map[string]Record{}
	}
	return records, nil
}

// save writes through a temp file and renames, so a crash mid-write never
// corrupts existing progress.
func (s *FileStore) save(records map[string]Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}

	temp := s.path + ".tmp"
	if err := os.WriteFile(temp, data, 0644); err != nil {
		return fmt.Errorf("write progress: %w", err)
	}
	if err := os.Rename(temp, s.path); err != nil {
		os.Remove(temp)
		return fmt.Errorf("finalize progress: %w", err)
	}
	return nil
}
