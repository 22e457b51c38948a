package leaf

import (
	"testing"

	"github.com/google/uuid"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/obs"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
	"github.com/banshee-data/landform-texture/internal/texture/store"
	"github.com/banshee-data/landform-texture/internal/texture/telemetry"
	"github.com/banshee-data/landform-texture/internal/texture/workpool"
)

func ptrBool(b bool) *bool { return &b }
func ptrInt(i int) *int    { return &i }

func testConfig() *config.TuningConfig {
	return &config.TuningConfig{
		BackprojectInpaintMissing: ptrInt(0),
		BackprojectInpaintGutter:  ptrInt(0),
		DebugSaveUnblended:        ptrBool(false),
		NoBlendLeavesInParallel:   ptrBool(true),
	}
}

func saveImage(t *testing.T, s store.Store, im *raster.Image) string {
	t.Helper()
	data, err := raster.Encode(im)
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.Save(store.Product{Kind: store.KindPNG, Data: data})
	if err != nil {
		t.Fatal(err)
	}
	return id.String()
}

func TestRunPrefersBlendedOverStretchedOverOriginal(t *testing.T) {
	s := store.NewMemory()

	blended := raster.NewImage(2, 2, 3)
	blended.Set(0, 0, 0, 0.9)
	blended.Set(1, 0, 0, 0.9)
	blended.Set(2, 0, 0, 0.9)
	blendedID := saveImage(t, s, blended)

	original := raster.NewImage(2, 2, 3)
	original.Set(0, 0, 0, 0.1)

	o := &obs.Observation{ID: 1000, Bands: 3, Derived: obs.DerivedIDs{Blended: blendedID}}
	observations := map[int]*obs.Observation{1000: o}
	originals := map[int]*raster.Image{1000: original}

	index := raster.NewImage(1, 1, 3)
	index.Set(0, 0, 0, 1000)
	index.Set(1, 0, 0, 0)
	index.Set(2, 0, 0, 0)
	tile := &Tile{Name: "leaf-a", Index: index}

	stage := New(testConfig(), s, telemetry.Silent("test"), workpool.New(2))
	result := stage.Run([]*Tile{tile}, observations, originals)
	if len(result.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failures)
	}

	if tile.TextureID == "" {
		t.Fatal("expected a rendered texture id")
	}
	id, err := uuid.Parse(tile.TextureID)
	if err != nil {
		t.Fatal(err)
	}
	product, err := s.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	out, err := raster.Decode(product.Data)
	if err != nil {
		t.Fatal(err)
	}
	if got := out.At(0, 0, 0); got < 0.89 || got > 0.91 {
		t.Errorf("texel = %v, want ~0.9 from the blended variant", got)
	}
}

func TestRunFallsBackToOriginalWhenNoDerivedVariants(t *testing.T) {
	s := store.NewMemory()
	original := raster.NewImage(1, 1, 3)
	original.Set(0, 0, 0, 0.42)
	original.Set(1, 0, 0, 0.42)
	original.Set(2, 0, 0, 0.42)

	o := &obs.Observation{ID: 1000, Bands: 3}
	observations := map[int]*obs.Observation{1000: o}
	originals := map[int]*raster.Image{1000: original}

	index := raster.NewImage(1, 1, 3)
	index.Set(0, 0, 0, 1000)
	tile := &Tile{Name: "leaf-b", Index: index}

	stage := New(testConfig(), s, telemetry.Silent("test"), workpool.New(2))
	stage.Run([]*Tile{tile}, observations, originals)

	id, _ := uuid.Parse(tile.TextureID)
	product, _ := s.Get(id)
	out, _ := raster.Decode(product.Data)
	if got := out.At(0, 0, 0); got < 0.41 || got > 0.43 {
		t.Errorf("texel = %v, want ~0.42 from the original fallback", got)
	}
}

func TestRunPreservesPriorTextureAsUnblendedBackupOnlyOnce(t *testing.T) {
	s := store.NewMemory()
	original := raster.NewImage(1, 1, 3)
	o := &obs.Observation{ID: 1000, Bands: 3}
	observations := map[int]*obs.Observation{1000: o}
	originals := map[int]*raster.Image{1000: original}

	index := raster.NewImage(1, 1, 3)
	index.Set(0, 0, 0, 1000)

	cfg := testConfig()
	cfg.DebugSaveUnblended = ptrBool(true)
	stage := New(cfg, s, telemetry.Silent("test"), workpool.New(2))

	tile := &Tile{Name: "leaf-c", Index: index, TextureID: "pre-existing-id"}
	stage.Run([]*Tile{tile}, observations, originals)
	if tile.UnblendedID != "pre-existing-id" {
		t.Errorf("UnblendedID = %q, want the pre-existing texture id preserved as backup", tile.UnblendedID)
	}

	firstRenderedID := tile.TextureID
	stage.Run([]*Tile{tile}, observations, originals)
	if tile.UnblendedID != "pre-existing-id" {
		t.Errorf("UnblendedID changed on a second render: %q, want still %q", tile.UnblendedID, "pre-existing-id")
	}
	if tile.TextureID == firstRenderedID {
		t.Error("expected a new texture id on the second render")
	}
}

func TestRunFailsTileWhenObservationUnknown(t *testing.T) {
	s := store.NewMemory()
	index := raster.NewImage(1, 1, 3)
	index.Set(0, 0, 0, 1000) // no entry for 1000 in observations map
	tile := &Tile{Name: "leaf-d", Index: index}

	stage := New(testConfig(), s, telemetry.Silent("test"), workpool.New(2))
	result := stage.Run([]*Tile{tile}, map[int]*obs.Observation{}, map[int]*raster.Image{})
	if len(result.Failures) != 1 {
		t.Fatalf("expected 1 failure, got %d", len(result.Failures))
	}
}

func TestRunToleratesUnsortedInputAndAllNoSourceTiles(t *testing.T) {
	s := store.NewMemory()
	index := raster.NewImage(1, 1, 3) // all NoSource: every texel skipped
	index.Set(0, 0, 0, -1)

	tiles := []*Tile{
		{Name: "aaa", Index: index},
		{Name: "ccc", Index: index},
		{Name: "bbb", Index: index},
	}

	stage := New(testConfig(), s, telemetry.Silent("test"), workpool.New(2))
	result := stage.Run(tiles, map[int]*obs.Observation{}, map[int]*raster.Image{})
	if len(result.Failures) != 0 {
		t.Fatalf("unexpected failures: %v", result.Failures)
	}
	for _, tl := range tiles {
		if tl.TextureID == "" {
			t.Errorf("tile %s: expected a rendered (all-invalid) texture id", tl.Name)
		}
	}
}
