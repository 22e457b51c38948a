package prep

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/landform-texture/internal/texture/obs"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
)

// ComputeStats computes the per-observation statistics of spec §4.1:
// luminance median, luminance MAD, and (for color images) median hue, all
// over valid pixels only.
func ComputeStats(im *raster.Image) obs.Stats {
	lum := luminanceSamples(im)
	lumMedian := median(lum)
	mad := medianAbsoluteDeviation(lum, lumMedian)

	s := obs.Stats{LuminanceMedian: lumMedian, LuminanceMAD: mad}
	if im.Bands == 3 {
		hues := hueSamples(im)
		if len(hues) > 0 {
			s.HueMedian = circularMedianDegrees(hues)
			s.HasHue = true
		}
	}
	return s
}

// SceneMedianHue aggregates the per-observation hue medians of every
// color observation into a scene-wide median hue (spec §4.1: "A global
// pass aggregates per-image stats into a scene median hue; color images
// contribute to hue"). override, when ok, takes precedence entirely,
// matching the OverrideMedianHue tunable (spec §6).
func SceneMedianHue(perObservation []obs.Stats, override float64, overrideOK bool) float64 {
	if overrideOK {
		return override
	}
	hues := make([]float64, 0, len(perObservation))
	for _, s := range perObservation {
		if s.HasHue {
			hues = append(hues, s.HueMedian)
		}
	}
	if len(hues) == 0 {
		return 0
	}
	return circularMedianDegrees(hues)
}

// SceneMedianLuminance aggregates every observation's luminance median into
// a scene-wide median, the target PreadjustLuminance nudges each
// observation toward (spec §4.5 step 2b).
func SceneMedianLuminance(perObservation []obs.Stats) float64 {
	lums := make([]float64, len(perObservation))
	for i, s := range perObservation {
		lums[i] = s.LuminanceMedian
	}
	return median(lums)
}

func luminanceSamples(im *raster.Image) []float64 {
	out := make([]float64, 0, im.Width*im.Height)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			if !im.Valid(x, y) {
				continue
			}
			out = append(out, luminanceAt(im, x, y))
		}
	}
	return out
}

func luminanceAt(im *raster.Image, x, y int) float64 {
	if im.Bands == 1 {
		return float64(im.At(0, x, y))
	}
	r, g, b := float64(im.At(0, x, y)), float64(im.At(1, x, y)), float64(im.At(2, x, y))
	return 0.2126*r + 0.7152*g + 0.0722*b
}

func hueSamples(im *raster.Image) []float64 {
	out := make([]float64, 0, im.Width*im.Height)
	for y := 0; y < im.Height; y++ {
		for x := 0; x < im.Width; x++ {
			if !im.Valid(x, y) {
				continue
			}
			r, g, b := float64(im.At(0, x, y)), float64(im.At(1, x, y)), float64(im.At(2, x, y))
			if h, chromatic := hueOf(r, g, b); chromatic {
				out = append(out, h)
			}
		}
	}
	return out
}

// hueOf returns the HSV hue in degrees [0,360) of (r,g,b), and false when
// the pixel is achromatic (max == min), which contributes no usable hue.
func hueOf(r, g, b float64) (float64, bool) {
	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	delta := max - min
	if delta == 0 {
		return 0, false
	}
	var h float64
	switch max {
	case r:
		h = math.Mod((g-b)/delta, 6)
	case g:
		h = (b-r)/delta + 2
	default:
		h = (r-g)/delta + 4
	}
	h *= 60
	if h < 0 {
		h += 360
	}
	return h, true
}

func median(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)
	if n := len(sorted); n%2 == 0 {
		// stat.Empirical picks the lower of the two middle samples; the
		// median of an even count is their mean.
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func medianAbsoluteDeviation(samples []float64, center float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	deviations := make([]float64, len(samples))
	for i, v := range samples {
		deviations[i] = math.Abs(v - center)
	}
	sort.Float64s(deviations)
	return stat.Quantile(0.5, stat.Empirical, deviations, nil)
}

// circularMedianDegrees computes the median of angular samples in
// [0,360) by minimizing total circular distance to each candidate,
// avoiding the wraparound error a plain linear median would introduce
// near 0/360.
func circularMedianDegrees(hues []float64) float64 {
	best := hues[0]
	bestCost := math.Inf(1)
	for _, candidate := range hues {
		cost := 0.0
		for _, h := range hues {
			cost += circularDistance(candidate, h)
		}
		if cost < bestCost {
			bestCost = cost
			best = candidate
		}
	}
	return best
}

func circularDistance(a, b float64) float64 {
	d := math.Mod(math.Abs(a-b), 360)
	if d > 180 {
		d = 360 - d
	}
	return d
}
