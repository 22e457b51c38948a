// Package backproject implements the observation-selection stage (spec
// §4.3): for every texel of the atlas, raycast to the mesh, enumerate
// candidate observations whose hull contains the hit point, score and pick
// one, and emit a per-texel backproject index.
package backproject

import (
	"fmt"
	"math"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/errs"
	"github.com/banshee-data/landform-texture/internal/texture/mesh"
	"github.com/banshee-data/landform-texture/internal/texture/obs"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
	"github.com/banshee-data/landform-texture/internal/texture/telemetry"
	"github.com/banshee-data/landform-texture/internal/texture/workpool"
)

// NoSource is the band-0 sentinel meaning "no source" for a texel (spec
// §3: "sentinel obs-id < MIN_INDEX").
const NoSource float32 = -1

// ObservationContext bundles the per-observation state the backproject
// stage needs beyond the Observation record itself: its hull, the image
// it samples from (blurred, falling back to stretched then original
// loading is the caller's responsibility), and its mask.
type ObservationContext struct {
	Obs       *obs.Observation
	Hull      *mesh.Hull
	Image     *raster.Image // blurred (or best available) source image
	Position  mesh.Vec3     // camera position in mesh frame
	IsOrbital bool
}

// Texel is the per-texel query the selection strategies answer.
type Texel struct {
	Row, Col int
	Point    mesh.Vec3
	Normal   mesh.Vec3
}

// Candidate is a scored, already-projected observation for one texel.
type Candidate struct {
	ObsID       int
	SrcRow      float64
	SrcCol      float64
	Score       float64
	IsOrbital   bool
	IsColor     bool
	IsNonlinear bool
}

// Strategy enumerates and selects among candidate observations for a
// texel (spec §9: "two variants share one interface
// {initialize(mesh, hulls, contexts); select(texel) -> candidate?}").
type Strategy interface {
	Initialize(m *mesh.Mesh, caster *mesh.SceneCaster, contexts map[int]*ObservationContext, cfg *config.TuningConfig, skyDirection mesh.Vec3) error
	Select(t Texel) (Candidate, bool)
}

// NewStrategy builds the strategy named by cfg.GetObsSelectionStrategy.
func NewStrategy(cfg *config.TuningConfig) (Strategy, error) {
	switch cfg.GetObsSelectionStrategy() {
	case config.StrategyExhaustive:
		return &Exhaustive{}, nil
	case config.StrategySpatial:
		return &Spatial{}, nil
	default:
		return nil, errs.NewConfigError("ObsSelectionStrategy", fmt.Sprintf("unsupported strategy %q", cfg.GetObsSelectionStrategy()))
	}
}

// Stage runs the backproject pass over an atlas.
type Stage struct {
	mesh     *mesh.Mesh
	uvTree   *mesh.UVFaceTree
	caster   *mesh.SceneCaster
	strategy Strategy
	cfg      *config.TuningConfig
	log      *telemetry.Logger
	pool     *workpool.Pool
}

// New builds a Stage. caller must call Initialize on the strategy before
// passing it here (the Stage only drives Select).
func New(m *mesh.Mesh, uvTree *mesh.UVFaceTree, caster *mesh.SceneCaster, strategy Strategy, cfg *config.TuningConfig, log *telemetry.Logger, pool *workpool.Pool) (*Stage, error) {
	if m == nil || len(m.Faces) == 0 {
		return nil, errs.NewPrerequisiteError("backproject", "mesh is empty")
	}
	if caster == nil {
		return nil, errs.NewPrerequisiteError("backproject", "no scene caster")
	}
	if strategy == nil {
		return nil, errs.NewPrerequisiteError("backproject", "no selection strategy")
	}
	return &Stage{mesh: m, uvTree: uvTree, caster: caster, strategy: strategy, cfg: cfg, log: log, pool: pool}, nil
}

// Run produces the backproject index image for an atlasWidth x atlasHeight
// atlas, worked per-row across the pool (spec §5: "internally
// multi-threaded per atlas row/tile").
func (s *Stage) Run(atlasWidth, atlasHeight int) (*raster.Image, *workpool.Result) {
	index := raster.NewImage(atlasWidth, atlasHeight, 3)
	for i := range index.Pix[:atlasWidth*atlasHeight] {
		index.Pix[i] = NoSource
	}

	result := s.pool.ForEach(atlasHeight, func(row int) error {
		for col := 0; col < atlasWidth; col++ {
			u := (float64(col) + 0.5) / float64(atlasWidth)
			v := (float64(row) + 0.5) / float64(atlasHeight)

			hit, ok := s.uvTree.Lookup(u, v)
			if !ok {
				continue // no triangle covers this texel: "no source", silent (§4.3)
			}
			texel := Texel{Row: row, Col: col, Point: hit.Point, Normal: hit.Normal}
			candidate, ok := s.strategy.Select(texel)
			if !ok {
				continue // per-texel failure is silent (§4.3, §7)
			}
			index.Set(0, col, row, float32(candidate.ObsID))
			index.Set(1, col, row, float32(candidate.SrcRow))
			index.Set(2, col, row, float32(candidate.SrcCol))
		}
		return nil
	})

	s.log.Diagf("backproject: %dx%d atlas, %d row failures", atlasWidth, atlasHeight, len(result.Failures))
	return index, result
}

// PostProcess inpaints missing and gutter pixels per the tunables (spec
// §4.3: "Inpaint missing pixels... Inpaint gutter pixels...").
func PostProcess(index *raster.Image, cfg *config.TuningConfig) {
	missingMask := buildSourceMask(index)
	index.Mask = missingMask
	raster.InpaintMissing(index, cfg.GetBackprojectInpaintMissing())
	// A second, shorter pass targets only the thin UV-island fringe; we
	// approximate "gutter" as whatever remains invalid after the missing
	// pass, capped by BackprojectInpaintGutter.
	raster.InpaintMissing(index, cfg.GetBackprojectInpaintGutter())
}

func buildSourceMask(index *raster.Image) []bool {
	mask := make([]bool, index.Width*index.Height)
	for y := 0; y < index.Height; y++ {
		for x := 0; x < index.Width; x++ {
			mask[y*index.Width+x] = index.At(0, x, y) != NoSource
		}
	}
	return mask
}

// scoreCandidate implements the resolution/glancing-angle monotone scoring
// function called for in spec §9's open question: monotone-increasing in
// effective resolution at the hit point (approximated here by 1/distance,
// a valid proxy for fixed-intrinsic pinhole cameras), monotone-decreasing
// in glancing angle, with orbital candidates always dominated by any valid
// surface candidate.
func scoreCandidate(cosAngle, distance float64, ctx *ObservationContext, cfg *config.TuningConfig) float64 {
	if distance < 0 {
		distance = 0
	}
	score := cosAngle / (1 + distance)

	if cfg.GetPreferColor() == config.PreferColorAlways && ctx.Obs.IsColor {
		score += colorBonus
	}
	if ctx.IsOrbital {
		score -= orbitalDominancePenalty
	}
	return score
}

const colorBonus = 1e-3
const orbitalDominancePenalty = 1e6

// better reports whether a beats b under the selection tie-break order
// (spec §4.3 step 4): surface beats orbital (enforced by score already,
// re-checked explicitly here), then nonlinear beats linear if
// preferNonlinear, then color wins under PreferColorEquivalentScores when
// scores are otherwise equal.
func better(a, b Candidate, cfg *config.TuningConfig) bool {
	if a.IsOrbital != b.IsOrbital {
		return !a.IsOrbital
	}
	const eps = 1e-9
	if math.Abs(a.Score-b.Score) > eps {
		return a.Score > b.Score
	}
	if cfg.GetPreferNonlinear() && a.IsNonlinear != b.IsNonlinear {
		return a.IsNonlinear
	}
	if cfg.GetPreferColor() == config.PreferColorEquivalentScores && a.IsColor != b.IsColor {
		return a.IsColor
	}
	return false
}
