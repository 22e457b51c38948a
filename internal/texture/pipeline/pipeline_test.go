package pipeline

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/testutil"
	"github.com/banshee-data/landform-texture/internal/texture/frame"
	"github.com/banshee-data/landform-texture/internal/texture/leaf"
	"github.com/banshee-data/landform-texture/internal/texture/mesh"
	"github.com/banshee-data/landform-texture/internal/texture/obs"
	"github.com/banshee-data/landform-texture/internal/texture/prep"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
	"github.com/banshee-data/landform-texture/internal/texture/store"
	"github.com/banshee-data/landform-texture/internal/texture/telemetry"
	"github.com/banshee-data/landform-texture/internal/texture/workpool"
	"github.com/banshee-data/landform-texture/internal/timeutil"
)

// orthoCamera looks straight down onto a planar mesh spanning [0,1]^2 in
// mesh-space, mirroring the backproject package's own test double: Project
// operates directly on mesh-frame points (this codebase's Camera.Project
// contract), and Unproject returns a fixed direction since only Project is
// exercised by the selection gates under this camera placement.
type orthoCamera struct {
	width, height int
}

func (c *orthoCamera) Unproject(row, col float64) obs.Ray {
	return obs.Ray{Direction: [3]float64{0, 0, -1}}
}

func (c *orthoCamera) Project(p [3]float64) (row, col float64, valid bool) {
	if p[0] < 0 || p[0] > 1 || p[1] < 0 || p[1] > 1 {
		return 0, 0, false
	}
	return p[1] * float64(c.height-1), p[0] * float64(c.width-1), true
}

func planarQuadMesh() *mesh.Mesh {
	return &mesh.Mesh{
		Vertices: []mesh.Vec3{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		Faces:    []mesh.Face{{0, 1, 2}, {0, 2, 3}},
		UVs:      [][2]float64{{0, 0}, {1, 0}, {1, 1}, {0, 1}},
	}
}

func translation(x, y, z float64) frame.Matrix4 {
	m := frame.Identity()
	m[3], m[7], m[11] = x, y, z
	return m
}

func TestRunEndToEndProducesPopulatedRecord(t *testing.T) {
	s := store.NewMemory()
	frames := frame.NewMemCache()
	frames.Set("cam", translation(0.5, 0.5, 5), translation(0.5, 0.5, 5))

	source := raster.NewImage(4, 4, 1)
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			source.Set(0, x, y, 0.4)
		}
	}

	o := &obs.Observation{
		ID:     obs.MinIndex,
		Kind:   obs.SurfaceImage,
		Width:  4,
		Height: 4,
		Bands:  1,
		Camera: &orthoCamera{width: 4, height: 4},
		Frame:  "cam",
	}

	index := raster.NewImage(4, 4, 3)
	tile := &leaf.Tile{Name: "tile-a", Index: index}

	cfg := config.EmptyTuningConfig()
	pool := workpool.New(2)
	clock := timeutil.NewMockClock(time.Unix(0, 0))
	pl := New(cfg, s, frames, telemetry.Silent("pipeline"), pool).WithClock(clock)

	in := Inputs{
		Mesh:         planarQuadMesh(),
		Observations: []*obs.Observation{o},
		PrepInputs:   map[int]prep.Input{o.ID: {Source: source}},
		Tiles:        []*leaf.Tile{tile},
		AtlasWidth:   4,
		AtlasHeight:  4,
		TileListID:   "tile-list-1",
	}

	record, recordID, err := pl.Run(in)
	testutil.AssertNoError(t, err)

	for name, id := range map[string]string{
		"MeshID":             record.MeshID,
		"AtlasOriginalID":    record.AtlasOriginalID,
		"AtlasBlendedID":     record.AtlasBlendedID,
		"BackprojectIndexID": record.BackprojectIndexID,
	} {
		if id == "" {
			t.Errorf("record.%s is empty, want a populated store id", name)
			continue
		}
		if _, err := uuid.Parse(id); err != nil {
			t.Errorf("record.%s = %q is not a valid store id: %v", name, id, err)
		}
	}
	if record.TileListID != "tile-list-1" {
		t.Errorf("TileListID = %q, want %q (passed through unchanged)", record.TileListID, "tile-list-1")
	}

	reloaded, err := LoadRecord(s, recordID)
	testutil.AssertNoError(t, err)
	if reloaded.BackprojectIndexID != record.BackprojectIndexID {
		t.Errorf("reloaded record BackprojectIndexID = %q, want %q", reloaded.BackprojectIndexID, record.BackprojectIndexID)
	}

	if tile.TextureID == "" {
		t.Error("expected the leaf tile to be rendered")
	}
}

func TestRunRejectsEmptyMesh(t *testing.T) {
	pl := New(config.EmptyTuningConfig(), store.NewMemory(), frame.NewMemCache(), telemetry.Silent("pipeline"), workpool.New(1))
	_, _, err := pl.Run(Inputs{Mesh: &mesh.Mesh{}, Observations: []*obs.Observation{{ID: obs.MinIndex, Bands: 1}}})
	testutil.AssertError(t, err)
}

func TestRunRejectsNoObservations(t *testing.T) {
	pl := New(config.EmptyTuningConfig(), store.NewMemory(), frame.NewMemCache(), telemetry.Silent("pipeline"), workpool.New(1))
	_, _, err := pl.Run(Inputs{Mesh: planarQuadMesh()})
	testutil.AssertError(t, err)
}
