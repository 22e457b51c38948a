package prep

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
)

// Stretch applies the configured contrast stretch to src (the mask-unioned
// image) and returns the stretched result. Mode None returns nil, matching
// the "leaves it unset when mode=None" rule (spec §4.1) so callers know not
// to persist a stretched derived product.
func Stretch(src *raster.Image, cfg *config.TuningConfig) *raster.Image {
	switch cfg.GetStretchMode() {
	case config.StretchModeStandardDeviation:
		return stretchStandardDeviation(src, cfg.GetStretchStandardDeviationK())
	case config.StretchModeHistogramPercent:
		return stretchHistogramPercent(src, cfg.GetStretchHistogramPercent())
	default:
		return nil
	}
}

// stretchStandardDeviation maps [mean-k*sigma, mean+k*sigma] to [0,1] per
// band, computed over valid pixels only.
func stretchStandardDeviation(src *raster.Image, k float64) *raster.Image {
	out := src.Clone()
	for b := 0; b < src.Bands; b++ {
		samples := validSamples(src, b)
		if len(samples) == 0 {
			continue
		}
		mean, sigma := stat.MeanStdDev(samples, nil)
		lo, hi := mean-k*sigma, mean+k*sigma
		rescaleBand(out, src, b, lo, hi)
	}
	return out
}

// stretchHistogramPercent clips the bottom/top `percent` of the per-band
// valid-pixel histogram and rescales the remainder to [0,1].
func stretchHistogramPercent(src *raster.Image, percent float64) *raster.Image {
	out := src.Clone()
	for b := 0; b < src.Bands; b++ {
		samples := validSamples(src, b)
		if len(samples) == 0 {
			continue
		}
		sort.Float64s(samples)
		loIdx := int(float64(len(samples)-1) * percent / 100)
		hiIdx := int(float64(len(samples)-1) * (1 - percent/100))
		if hiIdx < loIdx {
			hiIdx = loIdx
		}
		lo, hi := samples[loIdx], samples[hiIdx]
		rescaleBand(out, src, b, lo, hi)
	}
	return out
}

func validSamples(src *raster.Image, b int) []float64 {
	samples := make([]float64, 0, src.Width*src.Height)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			if src.Valid(x, y) {
				samples = append(samples, float64(src.At(b, x, y)))
			}
		}
	}
	return samples
}

func rescaleBand(out, src *raster.Image, b int, lo, hi float64) {
	span := hi - lo
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			if !src.Valid(x, y) {
				continue
			}
			v := float64(src.At(b, x, y))
			var scaled float32
			if span == 0 {
				scaled = 0
			} else {
				scaled = raster.Clamp01(float32((v - lo) / span))
			}
			out.Set(b, x, y, scaled)
		}
	}
}
