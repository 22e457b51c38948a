package backproject

import (
	"math"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/mesh"
	"github.com/banshee-data/landform-texture/internal/texture/obs"
)

// evalCandidate runs the per-candidate gates of spec §4.3 step 3 (project,
// mask, glancing angle, occlusion, sky cull) and scores survivors. ok is
// false if the candidate is rejected at any gate.
func evalCandidate(t Texel, ctx *ObservationContext, caster *mesh.SceneCaster, cfg *config.TuningConfig, skyDirection mesh.Vec3) (Candidate, bool) {
	row, col, valid := ctx.Obs.Camera.Project(t.Point)
	if !valid {
		return Candidate{}, false
	}
	ri, ci := int(row), int(col)
	if ri < 0 || ci < 0 || ri >= ctx.Obs.Height || ci >= ctx.Obs.Width {
		return Candidate{}, false
	}
	if ctx.Image != nil && !ctx.Image.Valid(ci, ri) {
		return Candidate{}, false
	}

	toCamera := sub(ctx.Position, t.Point)
	distance := length(toCamera)
	if distance == 0 {
		return Candidate{}, false
	}
	dirToCamera := scaleVec(toCamera, 1/distance)

	angle := obs.AngleBetween(dirToCamera, t.Normal)
	if angle > cfg.GetMaxGlancingAngleDegrees() {
		return Candidate{}, false
	}

	if !isZero(skyDirection) {
		rayFromCamera := scaleVec(dirToCamera, -1)
		if dot(rayFromCamera, skyDirection) > 0.98 {
			return Candidate{}, false
		}
	}

	tolerance := cfg.GetRaycastTolerance()
	origin := addScaled(t.Point, dirToCamera, tolerance)
	if hit, ok := caster.Nearest(origin, dirToCamera, tolerance); ok {
		if hit.Distance < distance-tolerance {
			return Candidate{}, false // occluded before reaching the camera
		}
	}

	cosAngle := math.Cos(angle * math.Pi / 180)
	score := scoreCandidate(cosAngle, distance, ctx, cfg)

	return Candidate{
		ObsID:       ctx.Obs.ID,
		SrcRow:      row,
		SrcCol:      col,
		Score:       score,
		IsOrbital:   ctx.IsOrbital,
		IsColor:     ctx.Obs.IsColor,
		IsNonlinear: ctx.Obs.IsNonlinear,
	}, true
}

// Exhaustive scores every candidate whose hull contains the texel's point
// and takes the argmax (spec §4.3 step 5).
type Exhaustive struct {
	mesh         *mesh.Mesh
	caster       *mesh.SceneCaster
	contexts     map[int]*ObservationContext
	cfg          *config.TuningConfig
	skyDirection mesh.Vec3
	order        []int // observation ids, sorted for repeatable "first wins" tie-breaking
}

func (e *Exhaustive) Initialize(m *mesh.Mesh, caster *mesh.SceneCaster, contexts map[int]*ObservationContext, cfg *config.TuningConfig, skyDirection mesh.Vec3) error {
	e.mesh, e.caster, e.contexts, e.cfg, e.skyDirection = m, caster, contexts, cfg, skyDirection
	e.order = e.order[:0]
	for id := range contexts {
		e.order = append(e.order, id)
	}
	sortInts(e.order)
	return nil
}

func (e *Exhaustive) Select(t Texel) (Candidate, bool) {
	var best Candidate
	found := false
	for _, id := range e.order {
		ctx := e.contexts[id]
		if !ctx.Hull.Contains(t.Point) {
			continue
		}
		cand, ok := evalCandidate(t, ctx, e.caster, e.cfg, e.skyDirection)
		if !ok {
			continue
		}
		if !found || better(cand, best, e.cfg) {
			best = cand
			found = true
		}
	}
	return best, found
}

// Spatial maintains a coarse grid keyed by the texel point's cell; within
// a cell, the first candidate scoring above a quality-scaled threshold
// wins (spec §4.3 step 5), trading optimality for compute time via
// BackprojectQuality. Grounded on the same coarse-grid-bucketing idiom as
// mesh.UVFaceTree and mesh.SceneCaster.
type Spatial struct {
	caster       *mesh.SceneCaster
	contexts     map[int]*ObservationContext
	cfg          *config.TuningConfig
	skyDirection mesh.Vec3

	cell    float64
	buckets map[[3]int][]int
	order   []int // observation ids, stable iteration order
	min     mesh.Vec3
}

func (s *Spatial) Initialize(m *mesh.Mesh, caster *mesh.SceneCaster, contexts map[int]*ObservationContext, cfg *config.TuningConfig, skyDirection mesh.Vec3) error {
	s.caster, s.contexts, s.cfg, s.skyDirection = caster, contexts, cfg, skyDirection

	min, max := m.Bounds()
	s.min = min
	diag := length(sub(max, min))
	if diag <= 0 {
		diag = 1
	}
	s.cell = diag / 32

	s.buckets = make(map[[3]int][]int)
	for id, ctx := range contexts {
		s.order = append(s.order, id)
		hmin, hmax := hullBounds(ctx.Hull, min, max)
		for cz := s.cellIndex(hmin, 2); cz <= s.cellIndex(hmax, 2); cz++ {
			for cy := s.cellIndex(hmin, 1); cy <= s.cellIndex(hmax, 1); cy++ {
				for cx := s.cellIndex(hmin, 0); cx <= s.cellIndex(hmax, 0); cx++ {
					key := [3]int{cx, cy, cz}
					s.buckets[key] = append(s.buckets[key], id)
				}
			}
		}
	}
	sortInts(s.order)
	for _, ids := range s.buckets {
		sortInts(ids)
	}
	return nil
}

func (s *Spatial) cellIndex(bound mesh.Vec3, axis int) int {
	i := int(math.Floor((bound[axis] - s.min[axis]) / s.cell))
	if i < 0 {
		i = 0
	}
	return i
}

func (s *Spatial) Select(t Texel) (Candidate, bool) {
	key := [3]int{
		int(math.Floor((t.Point[0] - s.min[0]) / s.cell)),
		int(math.Floor((t.Point[1] - s.min[1]) / s.cell)),
		int(math.Floor((t.Point[2] - s.min[2]) / s.cell)),
	}
	threshold := s.cfg.GetBackprojectQuality()

	var best Candidate
	found := false
	for _, id := range s.buckets[key] {
		ctx := s.contexts[id]
		if !ctx.Hull.Contains(t.Point) {
			continue
		}
		cand, ok := evalCandidate(t, ctx, s.caster, s.cfg, s.skyDirection)
		if !ok {
			continue
		}
		if !found {
			best, found = cand, true
		} else if better(cand, best, s.cfg) {
			best = cand
		}
		if cand.Score >= threshold {
			return cand, true
		}
	}
	return best, found
}

// hullBounds approximates a hull's axis-aligned bounds by sampling a
// coarse grid over the mesh bounds and keeping the span of samples the
// hull contains. Hull has no vertex representation (it's a half-space
// intersection, spec §3), so sampling is the practical way to get a
// bucketing box for the Spatial strategy's coarse grid; an empty sample
// set (a hull thinner than the sampling step) falls back to the full mesh
// bounds, which only costs extra candidates per cell, never correctness.
func hullBounds(h *mesh.Hull, meshMin, meshMax mesh.Vec3) (min, max mesh.Vec3) {
	const samplesPerAxis = 12
	found := false
	for i := 0; i <= samplesPerAxis; i++ {
		for j := 0; j <= samplesPerAxis; j++ {
			for k := 0; k <= samplesPerAxis; k++ {
				p := mesh.Vec3{
					lerp(meshMin[0], meshMax[0], float64(i)/samplesPerAxis),
					lerp(meshMin[1], meshMax[1], float64(j)/samplesPerAxis),
					lerp(meshMin[2], meshMax[2], float64(k)/samplesPerAxis),
				}
				if !h.Contains(p) {
					continue
				}
				if !found {
					min, max = p, p
					found = true
					continue
				}
				for axis := 0; axis < 3; axis++ {
					if p[axis] < min[axis] {
						min[axis] = p[axis]
					}
					if p[axis] > max[axis] {
						max[axis] = p[axis]
					}
				}
			}
		}
	}
	if !found {
		return meshMin, meshMax
	}
	return min, max
}

func lerp(a, b, t float64) float64 { return a + (b-a)*t }

func sortInts(xs []int) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] > xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}

func sub(a, b mesh.Vec3) mesh.Vec3 { return mesh.Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func addScaled(p, dir mesh.Vec3, t float64) mesh.Vec3 {
	return mesh.Vec3{p[0] + dir[0]*t, p[1] + dir[1]*t, p[2] + dir[2]*t}
}

func scaleVec(v mesh.Vec3, s float64) mesh.Vec3 { return mesh.Vec3{v[0] * s, v[1] * s, v[2] * s} }

func dot(a, b mesh.Vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func length(v mesh.Vec3) float64 { return math.Sqrt(dot(v, v)) }

func isZero(v mesh.Vec3) bool { return v[0] == 0 && v[1] == 0 && v[2] == 0 }
