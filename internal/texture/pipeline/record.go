package pipeline

import (
	"bytes"
	"encoding/gob"
	"encoding/json"

	"github.com/banshee-data/landform-texture/internal/texture/mesh"
	"github.com/banshee-data/landform-texture/internal/texture/store"
)

// Record is the scene-mesh record (spec §6): the fields Run persists in one
// Save after all stages finish; no stage reads it back or rewrites it
// during a run. TileListID names a tile-list
// product built by the (out-of-scope) tiling stage; this pipeline only
// ever reads it. AtlasStretchedID and AtlasBlurredID are left unset by
// Run: stretching and blurring happen per-observation (§4.1), not at
// atlas granularity, so those two fields have nothing to populate them in
// this design and exist only for naming parity with the spec's field list.
type Record struct {
	MeshID     string
	TileListID string

	SurfaceExtentMin mesh.Vec3
	SurfaceExtentMax mesh.Vec3

	AtlasOriginalID    string
	AtlasStretchedID   string
	AtlasBlurredID     string
	AtlasBlendedID     string
	BackprojectIndexID string
}

// SaveRecord persists r as an opaque JSON blob, the same way prep persists
// per-observation Stats.
func SaveRecord(s store.Store, r *Record) (store.ID, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return store.ID{}, err
	}
	return s.Save(store.Product{Kind: store.KindStats, Data: data})
}

// LoadRecord retrieves a previously saved Record by id.
func LoadRecord(s store.Store, id store.ID) (*Record, error) {
	product, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	var r Record
	if err := json.Unmarshal(product.Data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// saveMesh persists m as an opaque gob blob, the same pattern frustum.Index
// uses for hulls.
func saveMesh(s store.Store, m *mesh.Mesh) (store.ID, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return store.ID{}, err
	}
	return s.Save(store.Product{Kind: store.KindMeshBinary, Data: buf.Bytes()})
}
