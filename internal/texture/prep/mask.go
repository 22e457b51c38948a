package prep

import (
	"github.com/banshee-data/landform-texture/internal/texture/raster"
)

// MaskCandidate is a rover-mask observation image considered for a given
// surface image, along with whatever score the comparator should rank it
// by (spec §4.1: "comparator selects the best among candidates").
type MaskCandidate struct {
	Name  string
	Mask  *raster.Image
	Score float64 // higher is better
}

// SelectMask picks the best-scoring candidate mask. It returns ok=false if
// candidates is empty, meaning the caller must fall back to synthesizing
// one (when mission policy allows) or fail the observation.
func SelectMask(candidates []MaskCandidate) (MaskCandidate, bool) {
	if len(candidates) == 0 {
		return MaskCandidate{}, false
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.Score > best.Score {
			best = c
		}
	}
	return best, true
}

// SynthesizeMask builds a permissive mask (every pixel valid) for missions
// that allow synthesizing one in the absence of a supplied rover mask
// (spec §4.1). Callers needing a stricter synthesis policy (e.g. one based
// on image saturation) can post-process the returned image's Mask field.
func SynthesizeMask(width, height int) *raster.Image {
	im := raster.NewImage(width, height, 1)
	for i := range im.Pix {
		im.Pix[i] = 1
	}
	return im
}

// ApplyMask unions src's own mask (if any) with maskImage, marking a pixel
// invalid in the result whenever either source marks it invalid. A valid
// rover mask marks bad pixels as 0 in maskImage's first band (spec §4.1:
// "A valid mask marks bad pixels as 0").
func ApplyMask(src, maskImage *raster.Image) *raster.Image {
	out := src.Clone()
	w, h := src.Width, src.Height
	combined := make([]bool, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			maskOK := maskImage == nil || maskImage.At(0, x, y) != 0
			combined[y*w+x] = src.Valid(x, y) && maskOK
		}
	}
	out.Mask = combined
	return out
}
