// Package prep implements observation preparation (spec §4.1): masking,
// contrast stretching, per-image statistics, and blurring, each producing
// a derived product keyed by an opaque store id and attached to the
// Observation's DerivedIDs.
package prep

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/errs"
	"github.com/banshee-data/landform-texture/internal/texture/obs"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
	"github.com/banshee-data/landform-texture/internal/texture/store"
	"github.com/banshee-data/landform-texture/internal/texture/telemetry"
	"github.com/banshee-data/landform-texture/internal/texture/workpool"
)

// Preparer runs stage 1 over a batch of observations.
type Preparer struct {
	cfg   *config.TuningConfig
	store store.Store
	log   *telemetry.Logger
	pool  *workpool.Pool
}

// New builds a Preparer. log may be telemetry.Silent for tests.
func New(cfg *config.TuningConfig, s store.Store, log *telemetry.Logger, pool *workpool.Pool) *Preparer {
	return &Preparer{cfg: cfg, store: s, log: log, pool: pool}
}

// Input bundles the per-observation source data a caller has already
// loaded (image I/O itself is an out-of-scope contract, spec §1).
type Input struct {
	Source         *raster.Image
	MaskCandidates []MaskCandidate
}

// PrepareOne masks, stretches, computes stats for, and blurs a single
// observation, attaching the resulting product ids to o.Derived and the
// computed statistics to o.Stats. Each pass is individually short-circuited
// if its derived id is already populated and forceRedo is not set (spec
// §4.1: "Masking is idempotent — re-runs may be forced"), so a resume after
// a crash mid-sequence only recomputes the passes that never finished.
func (p *Preparer) PrepareOne(o *obs.Observation, in Input, forceRedo bool) error {
	var maskImage *raster.Image
	if !forceRedo && o.Derived.Mask != "" {
		p.log.Diagf("prep: obs %d mask already present, skipping", o.ID)
		img, err := p.load(o.Derived.Mask)
		if err != nil {
			return &errs.ItemFailure{ItemID: fmt.Sprint(o.ID), Stage: "prep.mask", Err: err}
		}
		maskImage = img
	} else {
		img, err := p.resolveMask(o, in)
		if err != nil {
			return &errs.ItemFailure{ItemID: fmt.Sprint(o.ID), Stage: "prep.mask", Err: err}
		}
		maskID, err := p.save(store.KindPNG, img)
		if err != nil {
			return &errs.ItemFailure{ItemID: fmt.Sprint(o.ID), Stage: "prep.mask", Err: err}
		}
		o.Derived.Mask = maskID.String()
		maskImage = img
	}
	masked := ApplyMask(in.Source, maskImage)

	base := masked
	if !forceRedo && o.Derived.Stretched != "" {
		p.log.Diagf("prep: obs %d stretch already present, skipping", o.ID)
		img, err := p.load(o.Derived.Stretched)
		if err != nil {
			return &errs.ItemFailure{ItemID: fmt.Sprint(o.ID), Stage: "prep.stretch", Err: err}
		}
		base = img
	} else if stretched := Stretch(masked, p.cfg); stretched != nil {
		stretchedID, err := p.save(store.KindPNG, stretched)
		if err != nil {
			return &errs.ItemFailure{ItemID: fmt.Sprint(o.ID), Stage: "prep.stretch", Err: err}
		}
		o.Derived.Stretched = stretchedID.String()
		base = stretched
	}

	if !forceRedo && o.Derived.Stats != "" {
		p.log.Diagf("prep: obs %d stats already present, skipping", o.ID)
	} else {
		stats := ComputeStats(masked)
		statsID, err := p.saveStats(stats)
		if err != nil {
			return &errs.ItemFailure{ItemID: fmt.Sprint(o.ID), Stage: "prep.stats", Err: err}
		}
		o.Derived.Stats = statsID.String()
		o.Stats = stats
	}

	if !forceRedo && o.Derived.Blurred != "" {
		p.log.Diagf("prep: obs %d blur already present, skipping", o.ID)
	} else {
		blurred := raster.BoxBlur(base, p.cfg.GetObservationBlurRadius())
		blurredID, err := p.save(store.KindPNG, blurred)
		if err != nil {
			return &errs.ItemFailure{ItemID: fmt.Sprint(o.ID), Stage: "prep.blur", Err: err}
		}
		o.Derived.Blurred = blurredID.String()
	}

	p.log.Diagf("prep: obs %d ready (lumMedian=%.3f mad=%.3f hasHue=%v)", o.ID, o.Stats.LuminanceMedian, o.Stats.LuminanceMAD, o.Stats.HasHue)
	return nil
}

// load decodes a previously saved derived product back into an image, used
// when a pass is skipped but a later pass still needs its output in memory.
func (p *Preparer) load(id string) (*raster.Image, error) {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	product, err := p.store.Get(parsed)
	if err != nil {
		return nil, err
	}
	return raster.Decode(product.Data)
}

func (p *Preparer) resolveMask(o *obs.Observation, in Input) (*raster.Image, error) {
	if best, ok := SelectMask(in.MaskCandidates); ok {
		return best.Mask, nil
	}
	return SynthesizeMask(in.Source.Width, in.Source.Height), nil
}

func (p *Preparer) save(kind store.Kind, im *raster.Image) (store.ID, error) {
	data, err := raster.Encode(im)
	if err != nil {
		return store.ID{}, err
	}
	return p.store.Save(store.Product{Kind: kind, Data: data})
}

func (p *Preparer) saveStats(s obs.Stats) (store.ID, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return store.ID{}, err
	}
	return p.store.Save(store.Product{Kind: store.KindStats, Data: data})
}

// PrepareAll runs PrepareOne over every observation concurrently (spec §5:
// "work is submitted per-observation"), with the iteration-direction flip
// inherited from the shared pool. Per-item failures are logged and
// counted, not propagated; the batch always completes (spec §7).
func (p *Preparer) PrepareAll(observations []*obs.Observation, inputs map[int]Input, forceRedo bool) *workpool.Result {
	result := p.pool.ForEach(len(observations), func(i int) error {
		o := observations[i]
		in, ok := inputs[o.ID]
		if !ok {
			return &errs.ItemFailure{ItemID: fmt.Sprint(o.ID), Stage: "prep", Err: fmt.Errorf("no input supplied")}
		}
		if err := p.PrepareOne(o, in, forceRedo); err != nil {
			p.log.Opsf("prep: %v", err)
			return err
		}
		return nil
	})
	return result
}

// SceneMedianHue aggregates the stats already attached to observations
// into the scene-wide median hue, honoring OverrideMedianHue (spec §4.1,
// §6).
func (p *Preparer) SceneMedianHue(observations []*obs.Observation) float64 {
	stats := make([]obs.Stats, 0, len(observations))
	for _, o := range observations {
		stats = append(stats, o.Stats)
	}
	override, ok := p.cfg.GetOverrideMedianHue()
	return SceneMedianHue(stats, override, ok)
}
