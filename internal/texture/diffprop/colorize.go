package diffprop

import (
	"math"

	"github.com/banshee-data/landform-texture/internal/texture/raster"
)

// colorizeSaturation is the fixed HSV saturation colorize applies; the
// spec leaves the chroma amount unspecified beyond targeting a hue, so a
// moderate constant avoids oversaturating a scene's synthesized color.
const colorizeSaturation = 0.35

// Colorize maps a mono image to a 3-band color image at the given hue,
// treating each mono sample as the HSV value channel (spec §4.5 step 2c:
// "colorize mono -> color at the scene median hue").
func Colorize(mono *raster.Image, hueDegrees float64) *raster.Image {
	out := raster.NewImage(mono.Width, mono.Height, 3)
	out.Mask = mono.Mask
	for y := 0; y < mono.Height; y++ {
		for x := 0; x < mono.Width; x++ {
			v := float64(mono.At(0, x, y))
			r, g, b := hsvToRGB(hueDegrees, colorizeSaturation, v)
			out.Set(0, x, y, raster.Clamp01(float32(r)))
			out.Set(1, x, y, raster.Clamp01(float32(g)))
			out.Set(2, x, y, raster.Clamp01(float32(b)))
		}
	}
	return out
}

func hsvToRGB(h, s, v float64) (r, g, b float64) {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := v * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := v - c

	var r1, g1, b1 float64
	switch {
	case h < 60:
		r1, g1, b1 = c, x, 0
	case h < 120:
		r1, g1, b1 = x, c, 0
	case h < 180:
		r1, g1, b1 = 0, c, x
	case h < 240:
		r1, g1, b1 = 0, x, c
	case h < 300:
		r1, g1, b1 = x, 0, c
	default:
		r1, g1, b1 = c, 0, x
	}
	return r1 + m, g1 + m, b1 + m
}

// PreadjustLuminance nudges im toward sceneMedian by weight, shifting
// every band uniformly (spec §4.5 step 2b). weight == 0 is a no-op.
func PreadjustLuminance(im *raster.Image, observationMedian, sceneMedian, weight float64) *raster.Image {
	if weight == 0 {
		return im
	}
	delta := float32(weight * (sceneMedian - observationMedian))
	out := im.Clone()
	for i := range out.Pix {
		out.Pix[i] = raster.Clamp01(out.Pix[i] + delta)
	}
	return out
}
