package detector

import (
	"context"
	"image"
	"image/color"
	"image/draw"
	"reflect"
	"testing"

	"github.com/kdimtricp/slidecap/internal/config"
	"github.com/kdimtricp/slidecap/internal/fingerprint"
	"github.com/kdimtricp/slidecap/internal/video"
)

// slideA and slideB are visually distinct slide layouts.
func slideA() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(30, 30, 290, 110), image.NewUniform(color.RGBA{70, 110, 220, 255}), image.Point{}, draw.Src)
	for _, row := range []int{140, 160, 180} {
		draw.Draw(img, image.Rect(30, row, 250, row+6), image.NewUniform(color.Black), image.Point{}, draw.Src)
	}
	return img
}

func slideB() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{25, 30, 40, 255}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(160, 120, 310, 230), image.NewUniform(color.RGBA{240, 200, 50, 255}), image.Point{}, draw.Src)
	for _, row := range []int{30, 50} {
		draw.Draw(img, image.Rect(20, row, 180, row+6), image.NewUniform(color.White), image.Point{}, draw.Src)
	}
	return img
}

func repeatFrames(img image.Image, n int) []image.Image {
	frames := make([]image.Image, n)
	for i := range frames {
		frames[i] = img
	}
	return frames
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.MinStep = 5
	cfg.MaxStep = 30
	return cfg
}

func TestStaticVideoYieldsOnlyBaseline(t *testing.T) {
	src := video.NewMemorySource("static.mp4", repeatFrames(slideA(), 200), 25)
	d := New(src, testConfig())

	candidates, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want 1", len(candidates))
	}
	if candidates[0].Frame.Index != 0 {
		t.Errorf("baseline index = %d, want 0", candidates[0].Frame.Index)
	}
	if candidates[0].Reason != ReasonForced {
		t.Errorf("baseline reason = %q, want %q", candidates[0].Reason, ReasonForced)
	}
}

func TestVideoShorterThanOneStep(t *testing.T) {
	src := video.NewMemorySource("tiny.mp4", repeatFrames(slideA(), 4), 25)
	d := New(src, testConfig())

	candidates, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(candidates) != 1 {
		t.Fatalf("got %d candidates, want just the baseline", len(candidates))
	}
}

func TestEmptyVideo(t *testing.T) {
	src := video.NewMemorySource("empty.mp4", nil, 25)
	d := New(src, testConfig())

	candidates, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}
	if len(candidates) != 0 {
		t.Fatalf("got %d candidates from empty video, want 0", len(candidates))
	}
}

func TestTwoSlideBoundary(t *testing.T) {
	frames := append(repeatFrames(slideA(), 100), repeatFrames(slideB(), 100)...)
	src := video.NewMemorySource("two.mp4", frames, 25)
	d := New(src, testConfig())

	candidates, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want 2", len(candidates))
	}
	if candidates[0].Frame.Index != 0 {
		t.Errorf("baseline index = %d, want 0", candidates[0].Frame.Index)
	}
	// The boundary must land on the new slide, not before it.
	if candidates[1].Frame.Index < 100 {
		t.Errorf("boundary index = %d, want >= 100", candidates[1].Frame.Index)
	}
	if candidates[1].Reason == ReasonForced {
		t.Error("detected boundary should carry a signal reason, not forced")
	}
}

func TestCandidatesStrictlyIncreasing(t *testing.T) {
	frames := repeatFrames(slideA(), 80)
	frames = append(frames, repeatFrames(slideB(), 80)...)
	frames = append(frames, repeatFrames(slideA(), 80)...)
	src := video.NewMemorySource("three.mp4", frames, 25)
	d := New(src, testConfig())

	candidates, err := d.Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	for i := 1; i < len(candidates); i++ {
		if candidates[i].Frame.Index <= candidates[i-1].Frame.Index {
			t.Errorf("indices not strictly increasing: %d then %d",
				candidates[i-1].Frame.Index, candidates[i].Frame.Index)
		}
		if candidates[i].Frame.Timestamp <= candidates[i-1].Frame.Timestamp {
			t.Errorf("timestamps not strictly increasing: %f then %f",
				candidates[i-1].Frame.Timestamp, candidates[i].Frame.Timestamp)
		}
	}
}

func TestDetectDeterministic(t *testing.T) {
	frames := append(repeatFrames(slideA(), 100), repeatFrames(slideB(), 100)...)
	cfg := testConfig()
	cfg.Concurrency = 4

	run := func() []Candidate {
		src := video.NewMemorySource("det.mp4", frames, 25)
		candidates, err := New(src, cfg).Detect(context.Background())
		if err != nil {
			t.Fatalf("Detect: %v", err)
		}
		return candidates
	}

	first := run()
	for i := 0; i < 3; i++ {
		again := run()
		if len(again) != len(first) {
			t.Fatalf("run %d: %d candidates, first run had %d", i, len(again), len(first))
		}
		for j := range first {
			if again[j].Frame.Index != first[j].Frame.Index ||
				again[j].Reason != first[j].Reason ||
				!reflect.DeepEqual(again[j].Fingerprint, first[j].Fingerprint) {
				t.Fatalf("run %d: candidate %d differs", i, j)
			}
		}
	}
}

func TestCoarseStepBounds(t *testing.T) {
	cases := []struct {
		totalFrames, minStep, maxStep, want int
	}{
		{500, 5, 100, 15},
		{3000, 5, 100, 30},
		{8000, 5, 100, 45},
		{50000, 5, 100, 60},
		{50000, 5, 40, 40},
		{500, 20, 100, 20},
	}
	for _, tc := range cases {
		if got := coarseStep(tc.totalFrames, tc.minStep, tc.maxStep); got != tc.want {
			t.Errorf("coarseStep(%d, %d, %d) = %d, want %d",
				tc.totalFrames, tc.minStep, tc.maxStep, got, tc.want)
		}
	}
}

// slideAWithBullets is slideA with extra bullet bars, an animation state
// of the same slide.
func slideAWithBullets(bullets int) image.Image {
	img := slideA().(*image.RGBA)
	rows := []int{200, 212, 224}
	for i := 0; i < bullets && i < len(rows); i++ {
		draw.Draw(img, image.Rect(30, rows[i], 180, rows[i]+5), image.NewUniform(color.Black), image.Point{}, draw.Src)
	}
	return img
}

func slideC() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.RGBA{200, 60, 60, 255}), image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(60, 60, 260, 180), image.NewUniform(color.White), image.Point{}, draw.Src)
	return img
}

func flatFrame() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 320, 240))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.Gray{Y: 128}), image.Point{}, draw.Src)
	return img
}

// A slide swap shortly after an animation step lands in the same change
// window. Accepting the animation step must not end the sweep before the
// swap is examined.
func TestSlideSwapAfterBuildupSameWindow(t *testing.T) {
	frames := repeatFrames(slideA(), 120)
	for i := 0; i < 5; i++ {
		frames = append(frames, slideAWithBullets(i%3+1))
	}
	frames = append(frames, repeatFrames(slideB(), 175)...)

	src := video.NewMemorySource("animated.mp4", frames, 1)
	candidates, err := New(src, testConfig()).Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	var indices []int
	swap := false
	for _, c := range candidates {
		indices = append(indices, c.Frame.Index)
		if c.Frame.Index >= 125 {
			swap = true
		}
	}
	if !swap {
		t.Fatalf("candidates %v: none at or after frame 125, the new slide was never captured", indices)
	}
}

func TestSupplementaryCheckFindsMissedTransition(t *testing.T) {
	frames := repeatFrames(slideA(), 50)
	frames = append(frames, repeatFrames(slideB(), 50)...)
	frames = append(frames, slideC())
	src := video.NewMemorySource("gap.mp4", frames, 1)
	d := New(src, testConfig())
	ctx := context.Background()

	// Candidates with a 100-second hole between them, as if the middle
	// transition had been stepped over.
	candidate := func(idx int, reason Reason) Candidate {
		frame, err := src.Frame(ctx, idx)
		if err != nil {
			t.Fatalf("Frame %d: %v", idx, err)
		}
		return Candidate{Frame: frame, Fingerprint: fingerprint.Compute(frame.Image), Reason: reason}
	}
	candidates := []Candidate{candidate(0, ReasonForced), candidate(100, ReasonHistogram)}

	extra, err := d.supplementaryCheck(ctx, candidates)
	if err != nil {
		t.Fatalf("supplementaryCheck: %v", err)
	}

	if len(extra) != 1 {
		t.Fatalf("got %d extra candidates, want 1", len(extra))
	}
	if idx := extra[0].Frame.Index; idx < 50 || idx >= 100 {
		t.Errorf("extra candidate at frame %d, want within the missed slide's span [50,100)", idx)
	}
	if extra[0].Reason == ReasonForced {
		t.Error("supplementary candidate should carry a signal reason")
	}
}

func TestSupplementaryCheckSkipsShortGaps(t *testing.T) {
	frames := append(repeatFrames(slideA(), 10), repeatFrames(slideB(), 10)...)
	src := video.NewMemorySource("short.mp4", frames, 1)
	d := New(src, testConfig())
	ctx := context.Background()

	frame0, err := src.Frame(ctx, 0)
	if err != nil {
		t.Fatalf("Frame 0: %v", err)
	}
	frame19, err := src.Frame(ctx, 19)
	if err != nil {
		t.Fatalf("Frame 19: %v", err)
	}
	candidates := []Candidate{
		{Frame: frame0, Fingerprint: fingerprint.Compute(frame0.Image), Reason: ReasonForced},
		{Frame: frame19, Fingerprint: fingerprint.Compute(frame19.Image), Reason: ReasonHistogram},
	}

	extra, err := d.supplementaryCheck(ctx, candidates)
	if err != nil {
		t.Fatalf("supplementaryCheck: %v", err)
	}
	if len(extra) != 0 {
		t.Errorf("got %d extra candidates for a 19s gap, want 0", len(extra))
	}
}

// A window whose only changed frames are flat (zero variance) must still
// yield a boundary via the low-confidence fallback.
func TestFlatFramesAcceptedAsFallback(t *testing.T) {
	frames := append(repeatFrames(slideA(), 50), repeatFrames(flatFrame(), 50)...)
	src := video.NewMemorySource("flat.mp4", frames, 25)

	candidates, err := New(src, testConfig()).Detect(context.Background())
	if err != nil {
		t.Fatalf("Detect: %v", err)
	}

	if len(candidates) != 2 {
		t.Fatalf("got %d candidates, want baseline plus fallback", len(candidates))
	}
	if !candidates[1].Fingerprint.LowConfidence {
		t.Error("fallback candidate not flagged low confidence")
	}
	if candidates[1].Frame.Index < 50 {
		t.Errorf("fallback at frame %d, want within the flat span", candidates[1].Frame.Index)
	}
}
