package fingerprint

import "image"

// Sharpness returns the variance of the Laplacian response over the
// image, a standard focus/blur proxy: crisp slide renders score high,
// transition blurs and half-rendered frames score low.
func Sharpness(img image.Image) float64 {
	gray := grayscale(img)
	b := gray.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < 3 || h < 3 {
		return 0
	}

	n := (w - 2) * (h - 2)
	responses := make([]float64, 0, n)
	var sum float64
	for y := b.Min.Y + 1; y < b.Max.Y-1; y++ {
		for x := b.Min.X + 1; x < b.Max.X-1; x++ {
			v := 4*int(gray.GrayAt(x, y).Y) -
				int(gray.GrayAt(x-1, y).Y) - int(gray.GrayAt(x+1, y).Y) -
				int(gray.GrayAt(x, y-1).Y) - int(gray.GrayAt(x, y+1).Y)
			responses = append(responses, float64(v))
			sum += float64(v)
		}
	}

	mean := sum / float64(n)
	var sq float64
	for _, v := range responses {
		d := v - mean
		sq += d * d
	}
	return sq / float64(n)
}
