package diffprop

import (
	"math"
	"testing"

	"github.com/banshee-data/landform-texture/internal/texture/raster"
)

func TestColorizeProducesHueAtRequestedAngle(t *testing.T) {
	mono := raster.NewImage(1, 1, 1)
	mono.Set(0, 0, 0, 1.0) // full value

	out := Colorize(mono, 0) // red
	r, g, b := out.At(0, 0, 0), out.At(1, 0, 0), out.At(2, 0, 0)
	if r <= g || r <= b {
		t.Errorf("hue=0 should dominate red: got (%v,%v,%v)", r, g, b)
	}
}

func TestColorizeMapsZeroValueToBlack(t *testing.T) {
	mono := raster.NewImage(1, 1, 1)
	mono.Set(0, 0, 0, 0) // black stays black regardless of hue
	out := Colorize(mono, 120)
	if out.At(0, 0, 0) != 0 || out.At(1, 0, 0) != 0 || out.At(2, 0, 0) != 0 {
		t.Error("value=0 should colorize to black")
	}
}

func TestHSVToRGBWrapsHue(t *testing.T) {
	r1, g1, b1 := hsvToRGB(0, 1, 1)
	r2, g2, b2 := hsvToRGB(360, 1, 1)
	if math.Abs(r1-r2) > 1e-9 || math.Abs(g1-g2) > 1e-9 || math.Abs(b1-b2) > 1e-9 {
		t.Errorf("hue 0 and 360 should match: (%v,%v,%v) vs (%v,%v,%v)", r1, g1, b1, r2, g2, b2)
	}
}

func TestPreadjustLuminanceShiftsTowardSceneMedian(t *testing.T) {
	im := raster.NewImage(1, 1, 1)
	im.Set(0, 0, 0, 0.2)

	out := PreadjustLuminance(im, 0.2, 0.6, 0.5) // halfway to the scene median
	got := out.At(0, 0, 0)
	if math.Abs(float64(got)-0.4) > 1e-6 {
		t.Errorf("PreadjustLuminance = %v, want 0.4", got)
	}
}

func TestPreadjustLuminanceZeroWeightIsNoop(t *testing.T) {
	im := raster.NewImage(1, 1, 1)
	im.Set(0, 0, 0, 0.2)

	out := PreadjustLuminance(im, 0.2, 0.9, 0)
	if out != im {
		t.Error("zero weight should return the input image unchanged")
	}
}
