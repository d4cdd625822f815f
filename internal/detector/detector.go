// Package detector locates candidate slide boundaries with a three-pass
// scan: a coarse histogram sweep, precise refinement inside each change
// window, and a supplementary re-scan of large gaps.
package detector

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/kdimtricp/slidecap/internal/config"
	"github.com/kdimtricp/slidecap/internal/fingerprint"
	"github.com/kdimtricp/slidecap/internal/video"
)

// Reason records which change signal promoted a frame to a candidate.
type Reason string

const (
	ReasonHistogram Reason = "histogram"
	ReasonEdge      Reason = "edge"
	ReasonText      Reason = "text"
	ReasonForced    Reason = "forced"
)

// Candidate is a frame flagged as a possible new slide boundary. It is
// immutable once created.
type Candidate struct {
	Frame       *video.Frame
	Fingerprint fingerprint.Fingerprint
	Reason      Reason
}

// Detector runs the three passes over one video.
type Detector struct {
	src video.Source
	cfg config.Config
}

// New builds a detector over an opened frame source.
func New(src video.Source, cfg config.Config) *Detector {
	return &Detector{src: src, cfg: cfg}
}

// window is the frame interval between two coarse samples whose histogram
// correlation dropped below the coarse threshold.
type window struct {
	start, end int
}

// Detect returns the candidate sequence, strictly increasing by frame
// index and timestamp. The first frame is always emitted as the baseline.
func (d *Detector) Detect(ctx context.Context) ([]Candidate, error) {
	info := d.src.Info()
	if info.TotalFrames == 0 {
		return nil, nil
	}

	baseFrame, err := d.src.Frame(ctx, 0)
	if err != nil {
		return nil, fmt.Errorf("read baseline frame: %w", err)
	}
	candidates := []Candidate{{
		Frame:       baseFrame,
		Fingerprint: fingerprint.Compute(baseFrame.Image),
		Reason:      ReasonForced,
	}}

	windows, err := d.coarseScan(ctx)
	if err != nil {
		return nil, err
	}
	log.Printf("coarse scan: %d change windows in %d frames", len(windows), info.TotalFrames)

	for _, w := range windows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		accepted, err := d.refineWindow(ctx, w, candidates[len(candidates)-1])
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, accepted...)
	}
	log.Printf("precise refinement: %d candidates", len(candidates))

	extra, err := d.supplementaryCheck(ctx, candidates)
	if err != nil {
		return nil, err
	}
	if len(extra) > 0 {
		log.Printf("supplementary check: %d additional candidates", len(extra))
		candidates = append(candidates, extra...)
	}

	return sortAndDedupe(candidates), nil
}

// coarseScan samples frames at the adaptive step and compares consecutive
// histogram signatures only. Pairs under the coarse threshold become
// change windows for the refinement pass.
func (d *Detector) coarseScan(ctx context.Context) ([]window, error) {
	info := d.src.Info()
	step := coarseStep(info.TotalFrames, d.cfg.MinStep, d.cfg.MaxStep)

	var windows []window
	var prevHist [32]float64
	prevIdx := -1

	for i := 0; i < info.TotalFrames; i += step {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		frame, err := d.src.Frame(ctx, i)
		if err != nil {
			log.Printf("coarse scan: skipping frame %d: %v", i, err)
			continue
		}
		hist := fingerprint.HistogramSignature(frame.Image)

		if prevIdx >= 0 {
			if fingerprint.HistogramCorrelation(prevHist, hist) < d.cfg.CoarseThreshold {
				windows = append(windows, window{start: prevIdx, end: i})
			}
		}
		prevHist = hist
		prevIdx = i
	}
	return windows, nil
}

// coarseStep scales the sampling step with the video length, within the
// configured bounds. Long recordings tolerate larger steps because slides
// stay up for minutes; short dense ones need finer sampling.
func coarseStep(totalFrames, minStep, maxStep int) int {
	step := 30
	switch {
	case totalFrames > 10000:
		step = 60
	case totalFrames > 5000:
		step = 45
	case totalFrames < 1000:
		step = 15
	}
	if step < minStep {
		step = minStep
	}
	if step > maxStep {
		step = maxStep
	}
	return step
}

type probedFrame struct {
	frame *video.Frame
	fp    fingerprint.Fingerprint
	err   error
}

// fingerprintAll fetches and fingerprints the given frame indices with a
// bounded worker fan-out. Results come back positionally, so the callers'
// sequential accept loops are deterministic regardless of scheduling.
func (d *Detector) fingerprintAll(ctx context.Context, indices []int) []probedFrame {
	results := make([]probedFrame, len(indices))
	sem := make(chan struct{}, d.cfg.Concurrency)
	var wg sync.WaitGroup

	for pos, idx := range indices {
		wg.Add(1)
		sem <- struct{}{}
		go func(pos, idx int) {
			defer wg.Done()
			defer func() { <-sem }()
			frame, err := d.src.Frame(ctx, idx)
			if err != nil {
				results[pos] = probedFrame{err: err}
				return
			}
			results[pos] = probedFrame{frame: frame, fp: fingerprint.Compute(frame.Image)}
		}(pos, idx)
	}
	wg.Wait()
	return results
}

// refineWindow sweeps a change window with the full fingerprint. The
// comparison point starts at the prior accepted candidate and advances
// with each acceptance, so a window holding two transitions (an animation
// step settling, then a real slide swap) yields both. Low-confidence
// frames are held back as a fallback used only when nothing else in the
// window qualifies.
func (d *Detector) refineWindow(ctx context.Context, w window, prev Candidate) ([]Candidate, error) {
	span := w.end - w.start
	if span <= 0 {
		return nil, nil
	}
	sub := span / d.cfg.MaxRefineSubsteps
	if sub < 1 {
		sub = 1
	}

	var indices []int
	for i := w.start + sub; i <= w.end; i += sub {
		indices = append(indices, i)
	}
	if len(indices) == 0 || indices[len(indices)-1] != w.end {
		indices = append(indices, w.end)
	}

	probed := d.fingerprintAll(ctx, indices)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var accepted []Candidate
	var fallback *Candidate
	last := prev
	for _, p := range probed {
		if p.err != nil {
			continue
		}
		if !d.spacedFrom(&last, p.frame.Index) {
			continue
		}
		reason, crossed := d.changed(last.Fingerprint, p.fp)
		if !crossed {
			continue
		}
		cand := Candidate{Frame: p.frame, Fingerprint: p.fp, Reason: reason}
		if p.fp.LowConfidence {
			if fallback == nil {
				fallback = &cand
			}
			continue
		}
		accepted = append(accepted, cand)
		last = cand
	}

	if len(accepted) == 0 && fallback != nil {
		accepted = append(accepted, *fallback)
	}
	return accepted, nil
}

// changed decides whether a fingerprint marks a new visual state relative
// to the previous accepted one, and with which reason. When several
// signals cross in the same step the priority is histogram > edge > text;
// the histogram is the cheapest and most reliable signal for full slide
// swaps, so it wins ties.
func (d *Detector) changed(prev, cur fingerprint.Fingerprint) (Reason, bool) {
	histCrossed := fingerprint.HistogramCorrelation(prev.Histogram, cur.Histogram) < d.cfg.CoarseThreshold
	edgeCrossed := fingerprint.EdgeDelta(prev, cur) > d.cfg.EdgeThreshold
	textCrossed := fingerprint.TextDelta(prev, cur) > d.cfg.TextThreshold
	combined := fingerprint.Similarity(prev, cur, d.cfg.Weights) < d.cfg.SimilarityThreshold

	switch {
	case histCrossed:
		return ReasonHistogram, true
	case edgeCrossed:
		return ReasonEdge, true
	case textCrossed:
		return ReasonText, true
	case combined:
		return ReasonHistogram, true
	}
	return "", false
}

func (d *Detector) spacedFrom(prev *Candidate, index int) bool {
	minFrames := int(d.src.Info().FPS * d.cfg.MinSpacingSeconds)
	return index-prev.Frame.Index > minFrames
}

// supplementaryCheck re-scans gaps longer than the configured ceiling at
// a denser step, catching slow transitions the coarse sampling stepped
// over.
func (d *Detector) supplementaryCheck(ctx context.Context, candidates []Candidate) ([]Candidate, error) {
	info := d.src.Info()
	step := int(info.FPS * 5)
	if step < 1 {
		step = 1
	}

	var extra []Candidate
	for i := 0; i+1 < len(candidates); i++ {
		left := candidates[i]
		right := candidates[i+1]
		if right.Frame.Timestamp-left.Frame.Timestamp <= d.cfg.GapCeilingSeconds {
			continue
		}

		last := left
		for idx := left.Frame.Index + step; idx < right.Frame.Index; idx += step {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			frame, err := d.src.Frame(ctx, idx)
			if err != nil {
				log.Printf("supplementary check: skipping frame %d: %v", idx, err)
				continue
			}
			fp := fingerprint.Compute(frame.Image)
			if fp.LowConfidence {
				continue
			}
			if !d.spacedFrom(&last, idx) {
				continue
			}
			reason, crossed := d.changed(last.Fingerprint, fp)
			if !crossed {
				continue
			}
			// Keep out near-duplicates of the gap's right edge.
			if fingerprint.Similarity(fp, right.Fingerprint, d.cfg.Weights) >= d.cfg.GroupingThreshold {
				continue
			}
			cand := Candidate{Frame: frame, Fingerprint: fp, Reason: reason}
			extra = append(extra, cand)
			last = cand
		}
	}
	return extra, nil
}

// sortAndDedupe enforces the output contract: strictly increasing frame
// index and timestamp.
func sortAndDedupe(candidates []Candidate) []Candidate {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Frame.Index < candidates[j].Frame.Index
	})

	out := candidates[:0]
	lastIdx := -1
	for _, c := range candidates {
		if c.Frame.Index == lastIdx {
			continue
		}
		out = append(out, c)
		lastIdx = c.Frame.Index
	}
	return out
}
