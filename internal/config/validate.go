package config

import (
	"errors"
	"fmt"
)

// ErrInvalid tags configuration errors. They are fatal before any
// processing starts.
var ErrInvalid = errors.New("invalid config")

// Validate rejects configurations that would break detection before a
// session touches the video.
func (c Config) Validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold >= 1 {
		return fmt.Errorf("%w: similarity_threshold %f not in (0,1)", ErrInvalid, c.SimilarityThreshold)
	}
	if c.GroupingThreshold <= 0 || c.GroupingThreshold >= 1 {
		return fmt.Errorf("%w: grouping_threshold %f not in (0,1)", ErrInvalid, c.GroupingThreshold)
	}
	// A grouping threshold at or below the boundary threshold would
	// re-absorb every detected boundary into one group.
	if c.GroupingThreshold <= c.SimilarityThreshold {
		return fmt.Errorf("%w: grouping_threshold %f must exceed similarity_threshold %f",
			ErrInvalid, c.GroupingThreshold, c.SimilarityThreshold)
	}
	if c.CoarseThreshold <= 0 || c.CoarseThreshold >= 1 {
		return fmt.Errorf("%w: coarse_threshold %f not in (0,1)", ErrInvalid, c.CoarseThreshold)
	}
	if c.MinStep < 1 {
		return fmt.Errorf("%w: min_step %d must be >= 1", ErrInvalid, c.MinStep)
	}
	if c.MaxStep < c.MinStep {
		return fmt.Errorf("%w: max_step %d below min_step %d", ErrInvalid, c.MaxStep, c.MinStep)
	}
	if c.MaxRefineSubsteps < 1 {
		return fmt.Errorf("%w: max_refine_substeps %d must be >= 1", ErrInvalid, c.MaxRefineSubsteps)
	}
	if c.GapCeilingSeconds <= 0 {
		return fmt.Errorf("%w: gap_ceiling_seconds %f must be positive", ErrInvalid, c.GapCeilingSeconds)
	}
	if c.MinSpacingSeconds < 0 {
		return fmt.Errorf("%w: min_spacing_seconds %f must not be negative", ErrInvalid, c.MinSpacingSeconds)
	}
	if c.Concurrency < 1 {
		return fmt.Errorf("%w: concurrency %d must be >= 1", ErrInvalid, c.Concurrency)
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return fmt.Errorf("%w: jpeg_quality %d not in [1,100]", ErrInvalid, c.JPEGQuality)
	}
	if c.Weights.Hash < 0 || c.Weights.Histogram < 0 || c.Weights.Edge < 0 || c.Weights.Text < 0 {
		return fmt.Errorf("%w: similarity weights must not be negative", ErrInvalid)
	}
	if c.Weights.Sum() <= 0 {
		return fmt.Errorf("%w: similarity weights must have a positive sum", ErrInvalid)
	}
	return nil
}
