// Package pipeline is the composition root driving the six texturing
// stages in sequence (spec §1 overview: prepare, frustum/visibility,
// backproject, stitch, diff-propagate, leaf re-render), then persisting the
// scene-mesh record once after the last stage (spec §6); the record is not
// saved or read between stages. It mirrors the teacher's
// pipeline idiom: a Config struct bundling shared stage dependencies
// (store, frame cache, tuning config, logger, pool) driving each stage in
// turn with per-stage log lines, rather than a generic stage-interface
// framework.
package pipeline

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/backproject"
	"github.com/banshee-data/landform-texture/internal/texture/diffprop"
	"github.com/banshee-data/landform-texture/internal/texture/errs"
	"github.com/banshee-data/landform-texture/internal/texture/frame"
	"github.com/banshee-data/landform-texture/internal/texture/frustum"
	"github.com/banshee-data/landform-texture/internal/texture/leaf"
	"github.com/banshee-data/landform-texture/internal/texture/mesh"
	"github.com/banshee-data/landform-texture/internal/texture/obs"
	"github.com/banshee-data/landform-texture/internal/texture/prep"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
	"github.com/banshee-data/landform-texture/internal/texture/stitch"
	"github.com/banshee-data/landform-texture/internal/texture/store"
	"github.com/banshee-data/landform-texture/internal/texture/telemetry"
	"github.com/banshee-data/landform-texture/internal/texture/workpool"
	"github.com/banshee-data/landform-texture/internal/timeutil"
)

// Config bundles the dependencies every stage shares.
type Config struct {
	Cfg    *config.TuningConfig
	Store  store.Store
	Frames frame.Cache
	Log    *telemetry.Logger
	Pool   *workpool.Pool
	Clock  timeutil.Clock
}

// New builds a Config with a real wall clock. Use WithClock in tests that
// need to assert on logged stage durations.
func New(cfg *config.TuningConfig, s store.Store, frames frame.Cache, log *telemetry.Logger, pool *workpool.Pool) *Config {
	return &Config{Cfg: cfg, Store: s, Frames: frames, Log: log, Pool: pool, Clock: timeutil.RealClock{}}
}

// WithClock overrides the clock used for stage timing, for tests.
func (c *Config) WithClock(clock timeutil.Clock) *Config {
	c.Clock = clock
	return c
}

// timeStage runs fn, logging its wall-clock duration to the diag stream
// (spec ambient concern: the teacher logs per-stage timing the same way in
// its own pipeline composition root).
func (c *Config) timeStage(name string, fn func()) {
	start := c.Clock.Now()
	fn()
	c.Log.Diagf("pipeline: stage %s took %s", name, c.Clock.Since(start))
}

// Inputs bundles the per-run data a caller has already loaded. Image,
// mesh, and tile-list I/O are out-of-scope contracts (spec §1); Run only
// consumes what has already been decoded into memory.
type Inputs struct {
	Mesh         *mesh.Mesh
	Observations []*obs.Observation
	PrepInputs   map[int]prep.Input
	Tiles        []*leaf.Tile
	AtlasWidth   int
	AtlasHeight  int
	ForceRedo    bool
	TileListID   string
}

// Run drives all six stages in sequence and returns the final scene-mesh
// record plus its store id.
func (c *Config) Run(in Inputs) (*Record, store.ID, error) {
	if in.Mesh == nil || len(in.Mesh.Faces) == 0 {
		return nil, store.ID{}, errs.NewPrerequisiteError("pipeline", "no mesh")
	}
	if len(in.Observations) == 0 {
		return nil, store.ID{}, errs.NewPrerequisiteError("pipeline", "no observations")
	}

	meshID, err := saveMesh(c.Store, in.Mesh)
	if err != nil {
		return nil, store.ID{}, fmt.Errorf("pipeline: save mesh: %w", err)
	}

	// Stage 1: observation preparation (§4.1).
	var sceneMedianHue, sceneMedianLuminance float64
	c.timeStage("prepare", func() {
		preparer := prep.New(c.Cfg, c.Store, c.Log, c.Pool)
		preparer.PrepareAll(in.Observations, in.PrepInputs, in.ForceRedo)
		sceneMedianHue = preparer.SceneMedianHue(in.Observations)
		sceneMedianLuminance = prep.SceneMedianLuminance(collectStats(in.Observations))
	})

	// Stage 2: per-observation frustum hull + camera position (§4.2).
	meshMin, meshMax := in.Mesh.Bounds()
	hulls := frustum.NewIndex(c.Store)
	contexts := make(map[int]*backproject.ObservationContext, len(in.Observations))
	c.timeStage("frustum", func() {
		for _, o := range in.Observations {
			if o.Camera == nil {
				continue // no camera model: not a backproject candidate (e.g. an orbital DEM)
			}
			hull, err := frustum.Build(o, o.Frame, c.Frames, c.Cfg, meshMin, meshMax)
			if err != nil {
				c.Log.Opsf("pipeline: frustum for obs %d: %v", o.ID, err)
				continue
			}
			if err := hulls.Put(fmt.Sprint(o.ID), hull); err != nil {
				c.Log.Opsf("pipeline: persist hull for obs %d: %v", o.ID, err)
			}
			pos, err := frustum.CameraPosition(o.Frame, c.Frames)
			if err != nil {
				c.Log.Opsf("pipeline: camera position for obs %d: %v", o.ID, err)
				continue
			}
			img, err := c.resolveObservationImage(o, in.PrepInputs[o.ID].Source)
			if err != nil {
				c.Log.Opsf("pipeline: resolve image for obs %d: %v", o.ID, err)
				continue
			}
			contexts[o.ID] = &backproject.ObservationContext{Obs: o, Hull: hull, Image: img, Position: pos, IsOrbital: o.Kind.IsOrbital()}
		}
	})

	// Stage 3: backproject / observation selection (§4.3).
	uvTree := mesh.BuildUVFaceTree(in.Mesh, 0)
	caster := mesh.NewSceneCaster(in.Mesh, 0)
	strategy, err := backproject.NewStrategy(c.Cfg)
	if err != nil {
		return nil, store.ID{}, err
	}
	if err := strategy.Initialize(in.Mesh, caster, contexts, c.Cfg, mesh.Vec3{0, 0, 1}); err != nil {
		return nil, store.ID{}, fmt.Errorf("pipeline: %w", err)
	}
	backStage, err := backproject.New(in.Mesh, uvTree, caster, strategy, c.Cfg, c.Log, c.Pool)
	if err != nil {
		return nil, store.ID{}, err
	}
	var index *raster.Image
	var initial *raster.Image
	var flags *stitch.FlagPlane
	c.timeStage("backproject", func() {
		index, _ = backStage.Run(in.AtlasWidth, in.AtlasHeight)
		backproject.PostProcess(index, c.Cfg)
	})

	indexID, err := c.saveImage(store.KindIndexTIFF, index)
	if err != nil {
		return nil, store.ID{}, fmt.Errorf("pipeline: save index: %w", err)
	}

	// Gather the piecewise atlas the stitch stage solves toward — the glue
	// between per-texel selection (§4.3) and the per-pixel solve (§4.4).
	c.timeStage("gather", func() {
		images := make(map[int]*raster.Image, len(contexts))
		for id, ctx := range contexts {
			images[id] = ctx.Image
		}
		initial, flags = gatherAtlas(index, images, c.Pool)
	})
	atlasOriginalID, err := c.saveImage(store.KindPNG, initial)
	if err != nil {
		return nil, store.ID{}, fmt.Errorf("pipeline: save initial atlas: %w", err)
	}

	// Stage 4: stitch (§4.4). A non-convergent solve still returns its
	// best-so-far atlas and is logged, not fatal (spec §7).
	stitchStage := stitch.New(c.Cfg, c.Log, c.Pool)
	var blendedAtlas *raster.Image
	c.timeStage("stitch", func() {
		var stitchErr error
		blendedAtlas, stitchErr = stitchStage.Run(initial, flags)
		if stitchErr != nil {
			c.Log.Opsf("pipeline: stitch: %v", stitchErr)
		}
	})
	atlasBlendedID, err := c.saveImage(store.KindPNG, blendedAtlas)
	if err != nil {
		return nil, store.ID{}, fmt.Errorf("pipeline: save blended atlas: %w", err)
	}

	// Stage 5: diff propagation (§4.5).
	c.timeStage("diffprop", func() {
		diffStage := diffprop.New(c.Cfg, c.Store, c.Log, c.Pool, in.Mesh, in.AtlasWidth, in.AtlasHeight)
		diffStage.Run(index, blendedAtlas, in.Observations, sceneMedianHue, sceneMedianLuminance)
	})

	// Stage 6: leaf re-render (§4.6).
	c.timeStage("leaf", func() {
		originals := make(map[int]*raster.Image, len(in.PrepInputs))
		for id, input := range in.PrepInputs {
			originals[id] = input.Source
		}
		observationsByID := make(map[int]*obs.Observation, len(in.Observations))
		for _, o := range in.Observations {
			observationsByID[o.ID] = o
		}
		leafStage := leaf.New(c.Cfg, c.Store, c.Log, c.Pool)
		leafStage.Run(in.Tiles, observationsByID, originals)
	})

	record := &Record{
		MeshID:             meshID.String(),
		TileListID:         in.TileListID,
		SurfaceExtentMin:   meshMin,
		SurfaceExtentMax:   meshMax,
		AtlasOriginalID:    atlasOriginalID.String(),
		AtlasBlendedID:     atlasBlendedID.String(),
		BackprojectIndexID: indexID.String(),
	}
	recordID, err := SaveRecord(c.Store, record)
	if err != nil {
		return nil, store.ID{}, fmt.Errorf("pipeline: save record: %w", err)
	}
	c.Log.Diagf("pipeline: run complete, record %s", recordID)
	return record, recordID, nil
}

func collectStats(observations []*obs.Observation) []obs.Stats {
	stats := make([]obs.Stats, len(observations))
	for i, o := range observations {
		stats[i] = o.Stats
	}
	return stats
}

// resolveObservationImage applies the same blurred -> stretched -> original
// fallback chain leaf re-render uses (spec §4.6), since backproject and
// stitch need a concrete image per observation before a blended variant
// can exist.
func (c *Config) resolveObservationImage(o *obs.Observation, original *raster.Image) (*raster.Image, error) {
	var id string
	switch {
	case o.Derived.Blurred != "":
		id = o.Derived.Blurred
	case o.Derived.Stretched != "":
		id = o.Derived.Stretched
	}
	if id == "" {
		if original == nil {
			return nil, fmt.Errorf("observation %d has no blurred, stretched, or original image", o.ID)
		}
		return original, nil
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	product, err := c.Store.Get(parsed)
	if err != nil {
		return nil, err
	}
	return raster.Decode(product.Data)
}

func (c *Config) saveImage(kind store.Kind, im *raster.Image) (store.ID, error) {
	data, err := raster.Encode(im)
	if err != nil {
		return store.ID{}, err
	}
	return c.Store.Save(store.Product{Kind: kind, Data: data})
}
