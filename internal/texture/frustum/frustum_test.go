package frustum

import (
	"math"
	"testing"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/frame"
	"github.com/banshee-data/landform-texture/internal/texture/mesh"
	"github.com/banshee-data/landform-texture/internal/texture/obs"
	"github.com/banshee-data/landform-texture/internal/texture/store"
)

// pinhole is a minimal CameraModel for tests: it looks down +z in its own
// frame with a fixed focal length, row increasing downward.
type pinhole struct {
	width, height int
	focal         float64
}

func (p *pinhole) Unproject(row, col float64) obs.Ray {
	x := (col - float64(p.width)/2) / p.focal
	y := -(row - float64(p.height)/2) / p.focal
	dir := normalizeTest(mesh.Vec3{x, y, 1})
	return obs.Ray{Origin: [3]float64{0, 0, 0}, Direction: dir}
}

func (p *pinhole) Project(point [3]float64) (row, col float64, valid bool) {
	return 0, 0, false
}

func normalizeTest(v mesh.Vec3) mesh.Vec3 {
	n := math.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	return mesh.Vec3{v[0] / n, v[1] / n, v[2] / n}
}

func testObservation() *obs.Observation {
	return &obs.Observation{
		ID:     obs.MinIndex,
		Kind:   obs.SurfaceImage,
		Width:  100,
		Height: 100,
		Bands:  3,
		Camera: &pinhole{width: 100, height: 100, focal: 80},
		Frame:  "obs1",
	}
}

func TestBuildProducesHullContainingPointsAhead(t *testing.T) {
	o := testObservation()
	frames := frame.NewMemCache()
	frames.Set("obs1", frame.Identity(), frame.Identity())
	cfg := config.EmptyTuningConfig()

	hull, err := Build(o, "obs1", frames, cfg, mesh.Vec3{-100, -100, -100}, mesh.Vec3{100, 100, 100})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !hull.Contains(mesh.Vec3{0, 0, 5}) {
		t.Error("expected point straight ahead of the camera to be inside the hull")
	}
	if hull.Contains(mesh.Vec3{0, 0, -5}) {
		t.Error("expected point behind the camera to be outside the hull")
	}
}

func TestBuildRejectsMissingCamera(t *testing.T) {
	o := testObservation()
	o.Camera = nil
	frames := frame.NewMemCache()
	cfg := config.EmptyTuningConfig()

	_, err := Build(o, "obs1", frames, cfg, mesh.Vec3{}, mesh.Vec3{})
	if err == nil {
		t.Fatal("expected error for missing camera model")
	}
}

func TestBuildRejectsUnknownFrame(t *testing.T) {
	o := testObservation()
	frames := frame.NewMemCache()
	cfg := config.EmptyTuningConfig()

	_, err := Build(o, "no-such-frame", frames, cfg, mesh.Vec3{}, mesh.Vec3{})
	if err == nil {
		t.Fatal("expected error for unknown frame")
	}
}

func TestIndexPutGetRoundTrip(t *testing.T) {
	idx := NewIndex(store.NewMemory())
	hull := &mesh.Hull{Planes: []mesh.Plane{{Normal: mesh.Vec3{0, 0, 1}, Offset: 5}}}

	if err := idx.Put("obs1", hull); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if !idx.Has("obs1") {
		t.Error("Has(obs1) = false after Put")
	}

	got, err := idx.Get("obs1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.Planes) != 1 || got.Planes[0].Offset != 5 {
		t.Errorf("got %+v, want one plane with offset 5", got.Planes)
	}
}

func TestIndexGetMissingErrors(t *testing.T) {
	idx := NewIndex(store.NewMemory())
	if _, err := idx.Get("nope"); err == nil {
		t.Fatal("expected error for unpersisted name")
	}
}
