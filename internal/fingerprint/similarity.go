package fingerprint

import "math"

// Weights controls how the individual change signals combine into one
// similarity score. The exact blend is deliberately configuration rather
// than a hard-coded constant.
type Weights struct {
	Hash      float64 `toml:"hash"`
	Histogram float64 `toml:"histogram"`
	Edge      float64 `toml:"edge"`
	Text      float64 `toml:"text"`
}

// DefaultWeights favors the perceptual hashes, which stay stable under
// compression artifacts and lighting flicker, with the histogram as the
// strongest secondary signal.
func DefaultWeights() Weights {
	return Weights{
		Hash:      0.50,
		Histogram: 0.25,
		Edge:      0.15,
		Text:      0.10,
	}
}

// Sum returns the total weight mass.
func (w Weights) Sum() float64 {
	return w.Hash + w.Histogram + w.Edge + w.Text
}

// Similarity scores two fingerprints in [0,1] under the given weights,
// 1 meaning perceptually identical. A zero weight sum yields 0.
func Similarity(a, b Fingerprint, w Weights) float64 {
	total := w.Sum()
	if total <= 0 {
		return 0
	}

	score := w.Hash * HashSimilarity(a, b)
	score += w.Histogram * HistogramCorrelation(a.Histogram, b.Histogram)
	score += w.Edge * (1.0 - math.Abs(a.EdgeDensity-b.EdgeDensity))
	score += w.Text * (1.0 - math.Abs(a.TextDensity-b.TextDensity))

	return clamp01(score / total)
}

// EdgeDelta is the absolute edge-density difference between two
// fingerprints, used by the detector's per-signal thresholds.
func EdgeDelta(a, b Fingerprint) float64 {
	return math.Abs(a.EdgeDensity - b.EdgeDensity)
}

// TextDelta is the absolute text-density difference between two
// fingerprints.
func TextDelta(a, b Fingerprint) float64 {
	return math.Abs(a.TextDensity - b.TextDensity)
}
