package fingerprint

import (
	"fmt"
	"image"
	"math"
	"math/bits"

	xdraw "golang.org/x/image/draw"
)

const (
	hashSize     = 8
	dctInputSize = 32
	histBins     = 32

	edgeMagThreshold  = 100.0
	textGradThreshold = 30
	minVariance       = 1.0
)

// Fingerprint is the perceptual signature of a single frame. It is computed
// once from the pixel data and never mutated.
type Fingerprint struct {
	PHash       uint64
	DHash       uint64
	Histogram   [histBins]float64
	EdgeDensity float64
	TextDensity float64

	// LowConfidence marks degenerate frames (zero variance, decode
	// artifacts). The detector avoids promoting these to boundaries.
	LowConfidence bool
}

// PHashHex returns the perceptual hash as a 16-character hex string,
// the form persisted in metadata documents.
func (f Fingerprint) PHashHex() string {
	return fmt.Sprintf("%016x", f.PHash)
}

// DHashHex returns the difference hash as a 16-character hex string.
func (f Fingerprint) DHashHex() string {
	return fmt.Sprintf("%016x", f.DHash)
}

// Compute derives a Fingerprint from a frame image. It is deterministic:
// identical pixel data always yields an identical fingerprint.
func Compute(img image.Image) Fingerprint {
	gray := grayscale(img)

	fp := Fingerprint{
		Histogram:   histogramOf(gray),
		EdgeDensity: edgeDensity(gray),
		TextDensity: textDensity(gray),
	}

	if variance(gray) < minVariance {
		fp.LowConfidence = true
		return fp
	}

	fp.PHash = computePHash(gray)
	fp.DHash = computeDHash(gray)
	return fp
}

// HistogramSignature computes only the intensity histogram of an image.
// The coarse scan pass uses this as its fast change signal without paying
// for the full fingerprint.
func HistogramSignature(img image.Image) [histBins]float64 {
	return histogramOf(grayscale(img))
}

// HistogramCorrelation returns the Pearson correlation of two histogram
// signatures, clamped to [0,1]. Identical distributions score 1.0.
func HistogramCorrelation(a, b [histBins]float64) float64 {
	var meanA, meanB float64
	for i := 0; i < histBins; i++ {
		meanA += a[i]
		meanB += b[i]
	}
	meanA /= histBins
	meanB /= histBins

	var num, denA, denB float64
	for i := 0; i < histBins; i++ {
		da := a[i] - meanA
		db := b[i] - meanB
		num += da * db
		denA += da * da
		denB += db * db
	}
	if denA == 0 || denB == 0 {
		if denA == denB {
			return 1.0
		}
		return 0.0
	}
	return clamp01(num / math.Sqrt(denA*denB))
}

// HammingDistance counts differing bits between two 64-bit hashes.
func HammingDistance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// HashSimilarity maps the combined pHash/dHash Hamming distance of two
// fingerprints to [0,1], where 1 means identical hashes.
func HashSimilarity(a, b Fingerprint) float64 {
	d := HammingDistance(a.PHash, b.PHash) + HammingDistance(a.DHash, b.DHash)
	return 1.0 - float64(d)/128.0
}

// computePHash builds the classic DCT perceptual hash: the image is reduced
// to 32x32 grayscale, transformed, and the 8x8 low-frequency block is
// thresholded against its mean (DC term excluded).
func computePHash(gray *image.Gray) uint64 {
	small := resizeGray(gray, dctInputSize, dctInputSize)

	input := make([][]float64, dctInputSize)
	for y := 0; y < dctInputSize; y++ {
		input[y] = make([]float64, dctInputSize)
		for x := 0; x < dctInputSize; x++ {
			input[y][x] = float64(small.GrayAt(x, y).Y)
		}
	}

	coefs := dct2d(input)

	var sum float64
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			sum += coefs[y][x]
		}
	}
	avg := (sum - coefs[0][0]) / float64(hashSize*hashSize-1)

	var hash uint64
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			hash <<= 1
			if coefs[y][x] > avg {
				hash |= 1
			}
		}
	}
	return hash
}

// computeDHash builds the horizontal-gradient difference hash from a
// 9x8 reduction: each bit records whether brightness increases between
// horizontally adjacent pixels.
func computeDHash(gray *image.Gray) uint64 {
	small := resizeGray(gray, hashSize+1, hashSize)

	var hash uint64
	for y := 0; y < hashSize; y++ {
		for x := 0; x < hashSize; x++ {
			hash <<= 1
			if small.GrayAt(x+1, y).Y > small.GrayAt(x, y).Y {
				hash |= 1
			}
		}
	}
	return hash
}

// histogramOf bins mean-normalized intensities. Normalizing by the frame
// mean cancels uniform brightness shifts (lighting flicker, projector
// auto-exposure) while leaving the distribution shape, which is what
// actually changes on a slide swap.
func histogramOf(gray *image.Gray) [histBins]float64 {
	var hist [histBins]float64
	b := gray.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return hist
	}

	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += float64(gray.GrayAt(x, y).Y)
		}
	}
	mean := sum / float64(total)

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			v := float64(gray.GrayAt(x, y).Y)
			if mean > 0 {
				v = v * 128.0 / mean
			}
			bin := int(v) * histBins / 256
			if bin < 0 {
				bin = 0
			} else if bin >= histBins {
				bin = histBins - 1
			}
			hist[bin]++
		}
	}
	for i := range hist {
		hist[i] /= float64(total)
	}
	return hist
}

// edgeDensity returns the proportion of pixels whose Sobel gradient
// magnitude exceeds a fixed threshold. Structural layout changes (a new
// bullet, a diagram) move this value; uniform lighting shifts do not.
func edgeDensity(gray *image.Gray) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	count := 0
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			gx := int(gray.GrayAt(x+1, y-1).Y) + 2*int(gray.GrayAt(x+1, y).Y) + int(gray.GrayAt(x+1, y+1).Y) -
				int(gray.GrayAt(x-1, y-1).Y) - 2*int(gray.GrayAt(x-1, y).Y) - int(gray.GrayAt(x-1, y+1).Y)
			gy := int(gray.GrayAt(x-1, y+1).Y) + 2*int(gray.GrayAt(x, y+1).Y) + int(gray.GrayAt(x+1, y+1).Y) -
				int(gray.GrayAt(x-1, y-1).Y) - 2*int(gray.GrayAt(x, y-1).Y) - int(gray.GrayAt(x+1, y-1).Y)
			if math.Sqrt(float64(gx*gx+gy*gy)) > edgeMagThreshold {
				count++
			}
		}
	}
	return float64(count) / float64((w-2)*(h-2))
}

// textDensity approximates the density of small high-contrast horizontal
// runs, the signature of rendered text. Slides differing only in caption
// text separate on this signal when hashes and histograms barely move.
func textDensity(gray *image.Gray) float64 {
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 4 || h < 1 {
		return 0
	}

	marked := 0
	for y := 0; y < h; y++ {
		run := 0
		for x := 0; x < w-1; x++ {
			d := int(gray.GrayAt(b.Min.X+x+1, b.Min.Y+y).Y) - int(gray.GrayAt(b.Min.X+x, b.Min.Y+y).Y)
			if d < 0 {
				d = -d
			}
			if d > textGradThreshold {
				run++
			} else {
				if run >= 3 {
					marked += run
				}
				run = 0
			}
		}
		if run >= 3 {
			marked += run
		}
	}
	return float64(marked) / float64(w*h)
}

func variance(gray *image.Gray) float64 {
	b := gray.Bounds()
	total := b.Dx() * b.Dy()
	if total == 0 {
		return 0
	}

	var sum float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum += float64(gray.GrayAt(x, y).Y)
		}
	}
	mean := sum / float64(total)

	var sq float64
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			d := float64(gray.GrayAt(x, y).Y) - mean
			sq += d * d
		}
	}
	return sq / float64(total)
}

// dct2d applies a 2D type-II discrete cosine transform. The input is small
// (32x32) so the direct formulation is fast enough and keeps the code free
// of transform-library dependencies.
func dct2d(input [][]float64) [][]float64 {
	n := len(input)

	rows := make([][]float64, n)
	for y := 0; y < n; y++ {
		rows[y] = dct1d(input[y])
	}

	out := make([][]float64, n)
	for y := range out {
		out[y] = make([]float64, n)
	}
	col := make([]float64, n)
	for x := 0; x < n; x++ {
		for y := 0; y < n; y++ {
			col[y] = rows[y][x]
		}
		t := dct1d(col)
		for y := 0; y < n; y++ {
			out[y][x] = t[y]
		}
	}
	return out
}

func dct1d(input []float64) []float64 {
	n := len(input)
	out := make([]float64, n)
	for k := 0; k < n; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += input[i] * math.Cos(math.Pi*float64(k)*(2*float64(i)+1)/(2*float64(n)))
		}
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		out[k] = sum * scale
	}
	return out
}

func grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	xdraw.Draw(gray, gray.Bounds(), img, b.Min, xdraw.Src)
	return gray
}

func resizeGray(src *image.Gray, w, h int) *image.Gray {
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		return src
	}
	dst := image.NewGray(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
