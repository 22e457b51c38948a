// Package stitch implements the LimberDMG gradient-domain solver (spec
// §4.4): convert the piecewise backprojected atlas to LAB, run a geometric
// multigrid V-cycle solve per channel honoring per-pixel-per-channel
// flags, and convert the seamless result back to RGB.
package stitch

import (
	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
	"github.com/banshee-data/landform-texture/internal/texture/telemetry"
	"github.com/banshee-data/landform-texture/internal/texture/workpool"
)

// Stage runs the stitch pass over one atlas.
type Stage struct {
	cfg  *config.TuningConfig
	log  *telemetry.Logger
	pool *workpool.Pool
}

// New builds a Stage.
func New(cfg *config.TuningConfig, log *telemetry.Logger, pool *workpool.Pool) *Stage {
	return &Stage{cfg: cfg, log: log, pool: pool}
}

// Run solves initial (the piecewise RGB atlas assembled from backprojected
// sources) against flags and returns the seamless RGB atlas. A non-nil
// error is always *errs.SolverNonConvergence; the returned image is still
// the best solve reached and remains usable (spec §7).
func (s *Stage) Run(initial *raster.Image, flags *FlagPlane) (*raster.Image, error) {
	lab := RGBToLAB(initial, flags)
	solved, err := Solve(lab, flags, s.cfg, s.pool)
	rgb := LABToRGB(solved)
	if err != nil {
		s.log.Opsf("stitch: solver did not converge: %v", err)
		return rgb, err
	}
	s.log.Diagf("stitch: %dx%d atlas solved", initial.Width, initial.Height)
	return rgb, nil
}
