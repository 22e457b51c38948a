package stitch

import (
	"math"

	"github.com/banshee-data/landform-texture/internal/texture/raster"
)

// labOffset is the constant the spec's source material adds to CIE-LAB's
// L* channel (spec §9 open question: "ambiguously extends LAB luminance
// normalization by a constant 100... keep the constant to preserve
// colorimetric match"). L* alone ranges [0,100]; adding this offset keeps
// all three working channels (L+100, a, b) roughly comparable in magnitude
// for the solver's fidelity term.
const labOffset = 100.0

// d65WhiteX, d65WhiteY, d65WhiteZ are the CIE standard illuminant D65
// reference white, used to normalize XYZ before the LAB nonlinearity.
const (
	d65WhiteX = 0.95047
	d65WhiteY = 1.0
	d65WhiteZ = 1.08883
)

// RGBToLAB converts a 3-band [0,1]-normalized RGB image to the solver's
// working LAB representation (L channel carries labOffset). Pixels
// flagged NoData in all three channels are skipped and left zero in the
// output, since the solver never reads their value term; a pixel that is
// NoData in only some channels is converted.
func RGBToLAB(src *raster.Image, flags *FlagPlane) *raster.Image {
	out := raster.NewImage(src.Width, src.Height, 3)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			if flags != nil && flags.At(0, x, y) == FlagNoData && flags.At(1, x, y) == FlagNoData && flags.At(2, x, y) == FlagNoData {
				continue // value never read by the solver; skip the conversion
			}
			r, g, b := src.At(0, x, y), src.At(1, x, y), src.At(2, x, y)
			l, a, bb := rgbToLAB(float64(r), float64(g), float64(b))
			out.Set(0, x, y, float32(l+labOffset))
			out.Set(1, x, y, float32(a))
			out.Set(2, x, y, float32(bb))
		}
	}
	return out
}

// LABToRGB inverts RGBToLAB, clamping the result to [0,1].
func LABToRGB(src *raster.Image) *raster.Image {
	out := raster.NewImage(src.Width, src.Height, 3)
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			l := float64(src.At(0, x, y)) - labOffset
			a := float64(src.At(1, x, y))
			b := float64(src.At(2, x, y))
			r, g, bb := labToRGB(l, a, b)
			out.Set(0, x, y, raster.Clamp01(float32(r)))
			out.Set(1, x, y, raster.Clamp01(float32(g)))
			out.Set(2, x, y, raster.Clamp01(float32(bb)))
		}
	}
	return out
}

func rgbToLAB(r, g, b float64) (l, a, bb float64) {
	rl, gl, bl := srgbToLinear(r), srgbToLinear(g), srgbToLinear(b)

	x := rl*0.4124564 + gl*0.3575761 + bl*0.1804375
	y := rl*0.2126729 + gl*0.7151522 + bl*0.0721750
	z := rl*0.0193339 + gl*0.1191920 + bl*0.9503041

	fx := labF(x / d65WhiteX)
	fy := labF(y / d65WhiteY)
	fz := labF(z / d65WhiteZ)

	l = 116*fy - 16
	a = 500 * (fx - fy)
	bb = 200 * (fy - fz)
	return l, a, bb
}

func labToRGB(l, a, b float64) (r, g, bl float64) {
	fy := (l + 16) / 116
	fx := fy + a/500
	fz := fy - b/200

	x := d65WhiteX * labFInv(fx)
	y := d65WhiteY * labFInv(fy)
	z := d65WhiteZ * labFInv(fz)

	rl := x*3.2404542 + y*-1.5371385 + z*-0.4985314
	gl := x*-0.9692660 + y*1.8760108 + z*0.0415560
	bll := x*0.0556434 + y*-0.2040259 + z*1.0572252

	return linearToSRGB(rl), linearToSRGB(gl), linearToSRGB(bll)
}

func srgbToLinear(c float64) float64 {
	if c <= 0.04045 {
		return c / 12.92
	}
	return math.Pow((c+0.055)/1.055, 2.4)
}

func linearToSRGB(c float64) float64 {
	if c <= 0.0031308 {
		return c * 12.92
	}
	return 1.055*math.Pow(c, 1/2.4) - 0.055
}

func labF(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta*delta*delta {
		return math.Cbrt(t)
	}
	return t/(3*delta*delta) + 4.0/29.0
}

func labFInv(t float64) float64 {
	const delta = 6.0 / 29.0
	if t > delta {
		return t * t * t
	}
	return 3 * delta * delta * (t - 4.0/29.0)
}
