// Package frustum builds the per-observation convex hull describing a
// surface observation's textured sub-frustum in mesh-space coordinates,
// truncated at TextureFarClip and to the scene mesh's bounds (spec §4.2).
package frustum

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/frame"
	"github.com/banshee-data/landform-texture/internal/texture/mesh"
	"github.com/banshee-data/landform-texture/internal/texture/obs"
	"github.com/banshee-data/landform-texture/internal/texture/store"
)

// Build constructs the frustum hull for a single surface observation. It
// derives the camera's forward/up/right basis and horizontal/vertical
// half-angles purely from Unproject, the one operation the camera-model
// contract guarantees (spec §1), rather than assuming a specific intrinsic
// parameterization:
//
//   - forward is the ray through the image center.
//   - right/up are the rays through the horizontal/vertical edge midpoints,
//     orthogonalized against forward.
//   - the half-angles are the angles between forward and those edge rays.
//
// frameName resolves o's pose via frames; near is a small fixed offset
// (observations are never usefully near their own origin) and far is
// TextureFarClip from cfg.
func Build(o *obs.Observation, frameName string, frames frame.Cache, cfg *config.TuningConfig, meshMin, meshMax mesh.Vec3) (*mesh.Hull, error) {
	if o.Camera == nil {
		return nil, fmt.Errorf("frustum: observation %d has no camera model", o.ID)
	}
	transform, err := frames.GetBestTransform(frameName)
	if err != nil {
		return nil, fmt.Errorf("frustum: %w", err)
	}

	forwardLocal := o.Camera.Unproject(float64(o.Height)/2, float64(o.Width)/2).Direction
	rightEdge := o.Camera.Unproject(float64(o.Height)/2, float64(o.Width)).Direction
	topEdge := o.Camera.Unproject(0, float64(o.Width)/2).Direction

	forwardLocal = normalize(forwardLocal)
	rightLocal := normalize(orthogonalize(rightEdge, forwardLocal))
	upLocal := normalize(orthogonalize(topEdge, forwardLocal))

	halfFovX := obs.AngleBetween(forwardLocal, rightEdge) * degToRad
	halfFovY := obs.AngleBetween(forwardLocal, topEdge) * degToRad

	pos := applyVector(transform, mesh.Vec3{0, 0, 0}, true)
	forwardMesh := applyVector(transform, forwardLocal, false)
	upMesh := applyVector(transform, upLocal, false)
	rightMesh := applyVector(transform, rightLocal, false)

	const near = 1e-2
	far := cfg.GetTextureFarClip()

	hull := mesh.NewFrustumHull(pos, forwardMesh, upMesh, rightMesh, halfFovX, halfFovY, near, far)
	hull.ClipToBounds(meshMin, meshMax)
	return hull, nil
}

// CameraPosition resolves an observation's camera origin in mesh-frame
// coordinates, the same way Build derives pos, for callers (the
// backproject stage) that need it without rebuilding the hull.
func CameraPosition(frameName string, frames frame.Cache) (mesh.Vec3, error) {
	transform, err := frames.GetBestTransform(frameName)
	if err != nil {
		return mesh.Vec3{}, fmt.Errorf("frustum: %w", err)
	}
	return applyVector(transform, mesh.Vec3{0, 0, 0}, true), nil
}

const degToRad = math.Pi / 180

func normalize(v mesh.Vec3) mesh.Vec3 {
	n := v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
	if n == 0 {
		return v
	}
	inv := 1 / math.Sqrt(n)
	return mesh.Vec3{v[0] * inv, v[1] * inv, v[2] * inv}
}

func orthogonalize(v, against mesh.Vec3) mesh.Vec3 {
	d := v[0]*against[0] + v[1]*against[1] + v[2]*against[2]
	return mesh.Vec3{v[0] - against[0]*d, v[1] - against[1]*d, v[2] - against[2]*d}
}

// applyVector applies transform to v. When isPoint is true, v is treated
// as a position (translation included); otherwise only the rotational
// part acts on v.
func applyVector(t frame.Matrix4, v mesh.Vec3, isPoint bool) mesh.Vec3 {
	transformed := t.Apply(v)
	if isPoint {
		return transformed
	}
	origin := t.Apply(mesh.Vec3{0, 0, 0})
	return mesh.Vec3{transformed[0] - origin[0], transformed[1] - origin[1], transformed[2] - origin[2]}
}

// Index persists hulls keyed by observation name (spec §4.2: "Persist
// hulls keyed by observation name"), storing the encoded hull in the
// data-product store and keeping the name -> store-id mapping in memory.
type Index struct {
	store store.Store
	ids   map[string]store.ID
}

// NewIndex builds an empty hull index backed by s.
func NewIndex(s store.Store) *Index {
	return &Index{store: s, ids: make(map[string]store.ID)}
}

// Put encodes and persists hull under name, replacing any prior entry.
func (idx *Index) Put(name string, hull *mesh.Hull) error {
	data, err := encodeHull(hull)
	if err != nil {
		return fmt.Errorf("frustum: encode %s: %w", name, err)
	}
	id, err := idx.store.Save(store.Product{Kind: store.KindMeshBinary, Data: data})
	if err != nil {
		return fmt.Errorf("frustum: save %s: %w", name, err)
	}
	idx.ids[name] = id
	return nil
}

// Get retrieves the hull previously stored under name.
func (idx *Index) Get(name string) (*mesh.Hull, error) {
	id, ok := idx.ids[name]
	if !ok {
		return nil, fmt.Errorf("frustum: no hull for %q", name)
	}
	product, err := idx.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("frustum: load %s: %w", name, err)
	}
	return decodeHull(product.Data)
}

// Has reports whether name has a persisted hull.
func (idx *Index) Has(name string) bool {
	_, ok := idx.ids[name]
	return ok
}

func encodeHull(hull *mesh.Hull) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(hull); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeHull(data []byte) (*mesh.Hull, error) {
	var hull mesh.Hull
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&hull); err != nil {
		return nil, err
	}
	return &hull, nil
}
