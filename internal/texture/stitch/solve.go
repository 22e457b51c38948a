package stitch

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/errs"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
	"github.com/banshee-data/landform-texture/internal/texture/workpool"
)

// Solve runs the LimberDMG multigrid gradient-domain solve (spec §4.4) on
// a 3-band LAB image, one channel at a time, and returns the solved LAB
// image. If every channel's infinity-norm residual reaches ResidualEpsilon
// within NumMultigridIterations V-cycles, the error is nil; otherwise the
// best-so-far image is returned alongside *errs.SolverNonConvergence
// (spec §7: the caller is expected to use the image regardless).
func Solve(initialLAB *raster.Image, flags *FlagPlane, cfg *config.TuningConfig, pool *workpool.Pool) (*raster.Image, error) {
	w, h := initialLAB.Width, initialLAB.Height
	out := raster.NewImage(w, h, 3)

	lambda := cfg.GetBlendLambda()
	dirichlet := cfg.GetEdgeBehavior() == config.EdgeDirichlet
	maxIter := cfg.GetNumMultigridIterations()
	epsilon := cfg.GetResidualEpsilon()
	steps := cfg.GetNumRelaxationSteps()

	var worstResidual float64
	var worstIterations int

	for b := 0; b < 3; b++ {
		f := make([]float64, w*h)
		flagCh := make([]Flag, w*h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				i := y*w + x
				f[i] = float64(initialLAB.At(b, x, y))
				flagCh[i] = flags.At(b, x, y)
			}
		}

		levels := buildLevels(flagCh, f, w, h)
		top := levels[0]
		copy(top.u, f)

		residualNorm := math.Inf(1)
		iterations := 0
		for ; iterations < maxIter; iterations++ {
			vCycle(levels, 0, lambda, dirichlet, steps, pool)
			residualNorm = floats.Norm(residual(top, lambda, dirichlet), math.Inf(1))
			if residualNorm <= epsilon {
				iterations++
				break
			}
		}
		if residualNorm > worstResidual {
			worstResidual = residualNorm
			worstIterations = iterations
		}

		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				out.Set(b, x, y, float32(top.u[y*w+x]))
			}
		}
	}

	if worstResidual > epsilon {
		return out, &errs.SolverNonConvergence{Iterations: worstIterations, Residual: worstResidual, Epsilon: epsilon}
	}
	return out, nil
}
