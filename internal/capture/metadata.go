package capture

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MetadataFilename is the metadata document written next to the slides.
const MetadataFilename = "slides_metadata.json"

// SlideRecord describes one persisted representative.
type SlideRecord struct {
	Index           int     `json:"index"`
	Filename        string  `json:"filename"`
	FrameIndex      int     `json:"frame_index"`
	Timestamp       float64 `json:"timestamp"`
	PHash           string  `json:"phash"`
	GroupID         int     `json:"group_id"`
	SimilarFrames   []int   `json:"similar_frames"`
	DetectionReason string  `json:"detection_reason"`
	Sharpness       float64 `json:"sharpness"`

	// Failed marks entries whose image write did not succeed. They stay
	// in the document so callers can retry just those.
	Failed bool `json:"failed,omitempty"`
}

// GroupMember is one member of a similarity group, serialized as a
// [frame_index, phash] pair.
type GroupMember struct {
	FrameIndex int
	PHash      string
}

func (m GroupMember) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{m.FrameIndex, m.PHash})
}

func (m *GroupMember) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("group member: expected [frame_index, phash], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &m.FrameIndex); err != nil {
		return fmt.Errorf("group member frame index: %w", err)
	}
	if err := json.Unmarshal(pair[1], &m.PHash); err != nil {
		return fmt.Errorf("group member phash: %w", err)
	}
	return nil
}

// Metadata is the capture session's output document. It is built
// incrementally and written once, atomically, at session completion.
type Metadata struct {
	VideoPath         string                   `json:"video_path"`
	TotalFrames       int                      `json:"total_frames"`
	FPS               float64                  `json:"fps"`
	Threshold         float64                  `json:"threshold"`
	GroupingThreshold float64                  `json:"grouping_threshold"`
	Slides            []SlideRecord            `json:"slides"`
	SimilarityGroups  map[string][]GroupMember `json:"similarity_groups"`
}

// WriteMetadata persists the document via write-temp-then-rename so a
// crash mid-write never leaves a corrupt file under the final name.
func WriteMetadata(dir string, meta *Metadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}

	finalPath := filepath.Join(dir, MetadataFilename)
	tempPath := finalPath + ".tmp"

	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("finalize metadata: %w", err)
	}
	return nil
}

// ReadMetadata loads a previously written document.
func ReadMetadata(dir string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(dir, MetadataFilename))
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse metadata: %w", err)
	}
	return &meta, nil
}
