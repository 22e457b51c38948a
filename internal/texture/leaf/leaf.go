// Package leaf implements leaf re-render (spec §4.6): for each tile's
// stored per-texel index image, re-fill the leaf texture from the
// now-blended observations, falling back to earlier variants when a
// blended one is absent.
package leaf

import (
	"fmt"
	"sort"

	"github.com/google/uuid"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/errs"
	"github.com/banshee-data/landform-texture/internal/texture/obs"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
	"github.com/banshee-data/landform-texture/internal/texture/store"
	"github.com/banshee-data/landform-texture/internal/texture/telemetry"
	"github.com/banshee-data/landform-texture/internal/texture/workpool"
)

// Tile is a single leaf's persisted index image plus its texture's current
// store state (spec §3 "Tile list", §6 "Tile files"). Index uses the same
// three-band schema as the backproject index (band0=obs-id, band1=src-row,
// band2=src-col).
type Tile struct {
	Name  string
	Index *raster.Image

	// TextureID is the tile's currently persisted texture product, empty
	// before the first render. UnblendedID is the one-time debug backup
	// of the pre-blend texture (spec §4.6: "the first overwrite preserves
	// a backup copy"); since every store Save assigns a new id, the backup
	// is simply the previous TextureID, never physically overwritten.
	TextureID   string
	UnblendedID string
}

// Stage runs leaf re-render over a tile list.
type Stage struct {
	cfg   *config.TuningConfig
	store store.Store
	log   *telemetry.Logger
	pool  *workpool.Pool
}

// New builds a Stage.
func New(cfg *config.TuningConfig, s store.Store, log *telemetry.Logger, pool *workpool.Pool) *Stage {
	return &Stage{cfg: cfg, store: s, log: log, pool: pool}
}

// Run re-renders every tile, in reverse-lexical (deeper-first) order to
// improve observation-image cache hit rate (spec §4.6). Parallelism across
// leaves is on by default; NoBlendLeavesInParallel serializes it.
func (s *Stage) Run(tiles []*Tile, observations map[int]*obs.Observation, originals map[int]*raster.Image) *workpool.Result {
	ordered := append([]*Tile(nil), tiles...)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Name > ordered[j].Name })

	pool := s.pool
	if s.cfg.GetNoBlendLeavesInParallel() {
		pool = workpool.New(1)
	}

	result := pool.ForEach(len(ordered), func(i int) error {
		t := ordered[i]
		if err := s.reRenderOne(t, observations, originals); err != nil {
			s.log.Opsf("leaf: %v", err)
			return &errs.ItemFailure{ItemID: t.Name, Stage: "leaf", Err: err}
		}
		return nil
	})
	s.log.Diagf("leaf: %d tiles, %d failures", len(ordered), len(result.Failures))
	return result
}

func (s *Stage) reRenderOne(t *Tile, observations map[int]*obs.Observation, originals map[int]*raster.Image) error {
	if t.Index == nil {
		return &errs.PrerequisiteError{Stage: "leaf", Detail: fmt.Sprintf("tile %s has no index image", t.Name)}
	}

	target := raster.NewImage(t.Index.Width, t.Index.Height, 3)
	target.Mask = make([]bool, target.Width*target.Height)
	resolved := make(map[int]*raster.Image)

	for y := 0; y < t.Index.Height; y++ {
		for x := 0; x < t.Index.Width; x++ {
			obsID := int(t.Index.At(0, x, y))
			if obsID < obs.MinIndex {
				continue
			}
			img, err := s.resolveImage(obsID, observations, originals, resolved)
			if err != nil {
				return err
			}
			srcRow := int(t.Index.At(1, x, y))
			srcCol := int(t.Index.At(2, x, y))
			if srcRow < 0 || srcCol < 0 || srcRow >= img.Height || srcCol >= img.Width {
				continue
			}
			for b := 0; b < 3; b++ {
				v := img.At(0, srcCol, srcRow)
				if img.Bands == 3 {
					v = img.At(b, srcCol, srcRow)
				}
				target.Set(b, x, y, v)
			}
			target.SetValid(x, y, true)
		}
	}

	raster.InpaintMissing(target, s.cfg.GetBackprojectInpaintMissing())
	raster.InpaintMissing(target, s.cfg.GetBackprojectInpaintGutter())

	if s.cfg.GetDebugSaveUnblended() && t.UnblendedID == "" && t.TextureID != "" {
		t.UnblendedID = t.TextureID
	}
	id, err := s.save(target)
	if err != nil {
		return err
	}
	t.TextureID = id.String()
	return nil
}

// resolveImage loads the fallback-chain image for obsID (spec §4.6:
// "blended -> stretched -> original when earlier variants are absent"),
// caching the result for the remainder of this tile's scan.
func (s *Stage) resolveImage(obsID int, observations map[int]*obs.Observation, originals map[int]*raster.Image, resolved map[int]*raster.Image) (*raster.Image, error) {
	if img, ok := resolved[obsID]; ok {
		return img, nil
	}

	o, ok := observations[obsID]
	if !ok {
		return nil, &errs.PrerequisiteError{Stage: "leaf", Detail: fmt.Sprintf("unknown observation %d referenced by tile index", obsID)}
	}

	var id string
	switch {
	case o.Derived.Blended != "":
		id = o.Derived.Blended
	case o.Derived.Stretched != "":
		id = o.Derived.Stretched
	}

	var img *raster.Image
	var err error
	if id != "" {
		img, err = s.load(id)
	} else if original, ok := originals[obsID]; ok {
		img = original
	} else {
		err = &errs.PrerequisiteError{Stage: "leaf", Detail: fmt.Sprintf("observation %d has no blended, stretched, or original variant", obsID)}
	}
	if err != nil {
		return nil, err
	}

	resolved[obsID] = img
	return img, nil
}

func (s *Stage) load(id string) (*raster.Image, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, &errs.StoreError{ID: id, Op: "parse-id", Err: err}
	}
	product, err := s.store.Get(parsed)
	if err != nil {
		return nil, &errs.StoreError{ID: id, Op: "get", Err: err}
	}
	return raster.Decode(product.Data)
}

func (s *Stage) save(im *raster.Image) (store.ID, error) {
	data, err := raster.Encode(im)
	if err != nil {
		return store.ID{}, err
	}
	return s.store.Save(store.Product{Kind: store.KindPNG, Data: data})
}
