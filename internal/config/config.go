// Package config holds the capture pipeline configuration, loadable from
// TOML with flag-level overrides applied by the callers.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/kdimtricp/slidecap/internal/fingerprint"
)

// Config drives one capture session. A single pipeline with feature flags
// replaces the original project's divergent capture modes.
type Config struct {
	// SimilarityThreshold is the boundary-detection threshold: a frame
	// scoring below it against the last accepted candidate is a new
	// visual state.
	SimilarityThreshold float64 `toml:"similarity_threshold"`

	// GroupingThreshold decides whether two captured candidates are the
	// same slide. It must be stricter (higher) than SimilarityThreshold.
	GroupingThreshold float64 `toml:"grouping_threshold"`

	// CoarseThreshold is the histogram-correlation floor for the coarse
	// scan; sampled pairs below it open a change window.
	CoarseThreshold float64 `toml:"coarse_threshold"`

	// EdgeThreshold and TextThreshold are the per-signal deltas that
	// mark edge and text changes during refinement.
	EdgeThreshold float64 `toml:"edge_threshold"`
	TextThreshold float64 `toml:"text_threshold"`

	// MinStep and MaxStep bound the adaptive coarse-scan step in frames.
	MinStep int `toml:"min_step"`
	MaxStep int `toml:"max_step"`

	// MaxRefineSubsteps caps the frames examined inside one change
	// window during precise refinement.
	MaxRefineSubsteps int `toml:"max_refine_substeps"`

	// GapCeilingSeconds is the candidate gap beyond which the
	// supplementary pass re-scans for slow transitions.
	GapCeilingSeconds float64 `toml:"gap_ceiling_seconds"`

	// MinSpacingSeconds is the minimum time between accepted candidates.
	MinSpacingSeconds float64 `toml:"min_spacing_seconds"`

	// Concurrency bounds parallel fingerprint computation.
	Concurrency int `toml:"concurrency"`

	EnableGrouping bool `toml:"enable_grouping"`
	EnableRemerge  bool `toml:"enable_remerge"`
	EnableMetadata bool `toml:"enable_metadata"`

	// JPEGQuality applies to persisted representative images.
	JPEGQuality int `toml:"jpeg_quality"`

	AnalysisWidth  int `toml:"analysis_width"`
	AnalysisHeight int `toml:"analysis_height"`

	Weights fingerprint.Weights `toml:"weights"`
}

// Default returns the configuration used when no file is given. The
// thresholds match the values the detection heuristics were tuned with.
func Default() Config {
	return Config{
		SimilarityThreshold: 0.85,
		GroupingThreshold:   0.90,
		CoarseThreshold:     0.95,
		EdgeThreshold:       0.10,
		TextThreshold:       0.05,
		MinStep:             10,
		MaxStep:             60,
		MaxRefineSubsteps:   12,
		GapCeilingSeconds:   30.0,
		MinSpacingSeconds:   1.0,
		Concurrency:         4,
		EnableGrouping:      true,
		EnableRemerge:       true,
		EnableMetadata:      true,
		JPEGQuality:         95,
		AnalysisWidth:       640,
		AnalysisHeight:      480,
		Weights:             fingerprint.DefaultWeights(),
	}
}

// Load reads a TOML config file over the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}
