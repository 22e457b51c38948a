package prep

import (
	"testing"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
)

func buildGradient(t *testing.T) *raster.Image {
	t.Helper()
	im := raster.NewImage(10, 1, 1)
	for x := 0; x < 10; x++ {
		im.Set(0, x, 0, float32(x)/9.0)
	}
	return im
}

func TestStretchNoneReturnsNil(t *testing.T) {
	cfg := config.EmptyTuningConfig()
	im := buildGradient(t)
	if got := Stretch(im, cfg); got != nil {
		t.Errorf("expected nil for StretchMode=None, got %+v", got)
	}
}

func TestStretchStandardDeviationRescalesAroundMean(t *testing.T) {
	cfg := config.EmptyTuningConfig()
	mode := config.StretchModeStandardDeviation
	cfg.StretchMode = &mode
	im := buildGradient(t)

	out := Stretch(im, cfg)
	if out == nil {
		t.Fatal("expected a stretched image")
	}
	for x := 0; x < 10; x++ {
		v := out.At(0, x, 0)
		if v < 0 || v > 1 {
			t.Fatalf("stretched sample out of [0,1]: %v", v)
		}
	}
}

func TestStretchHistogramPercentClipsTails(t *testing.T) {
	cfg := config.EmptyTuningConfig()
	mode := config.StretchModeHistogramPercent
	cfg.StretchMode = &mode
	pct := 10.0
	cfg.StretchHistogramPercent = &pct
	im := buildGradient(t)

	out := Stretch(im, cfg)
	if out == nil {
		t.Fatal("expected a stretched image")
	}
	if out.At(0, 0, 0) != 0 {
		t.Errorf("lowest clipped sample = %v, want 0", out.At(0, 0, 0))
	}
	if out.At(0, 9, 0) != 1 {
		t.Errorf("highest clipped sample = %v, want 1", out.At(0, 9, 0))
	}
}

func TestStretchSkipsInvalidPixels(t *testing.T) {
	cfg := config.EmptyTuningConfig()
	mode := config.StretchModeStandardDeviation
	cfg.StretchMode = &mode
	im := buildGradient(t)
	im.SetValid(0, 0, false)

	out := Stretch(im, cfg)
	if out.Valid(0, 0) {
		t.Error("invalid pixel should remain invalid after stretch")
	}
}
