// Package config provides the tunable parameters recognized by the
// texturing pipeline (spec §6), loaded the way the teacher loads its
// tracking-tuning JSON: optional pointer fields with Get* accessors that
// fall back to implementation-chosen defaults, and a Validate pass that
// rejects contradictory configuration at startup.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/banshee-data/landform-texture/internal/texture/errs"
)

// DefaultConfigPath is the canonical location for tuning defaults, relative
// to the repository root.
const DefaultConfigPath = "config/tuning.defaults.json"

// Strategy names recognized by ObsSelectionStrategy (spec §6).
const (
	StrategyExhaustive = "Exhaustive"
	StrategySpatial    = "Spatial"
)

// PreferColor policy values (spec §6).
const (
	PreferColorNever            = "Never"
	PreferColorAlways           = "Always"
	PreferColorEquivalentScores = "EquivalentScores"
)

// TuningConfig holds every tunable named in spec §6. Fields are pointers so
// that a partial JSON document (or a programmatically built config) can
// leave fields unset and fall back to defaults via the Get* methods, mirroring
// the teacher's TuningConfig.
type TuningConfig struct {
	// Backproject (§4.3)
	BackprojectQuality       *float64 `json:"backproject_quality,omitempty"`
	MaxGlancingAngleDegrees  *float64 `json:"max_glancing_angle_degrees,omitempty"`
	RaycastTolerance         *float64 `json:"raycast_tolerance,omitempty"`
	ObsSelectionStrategy     *string  `json:"obs_selection_strategy,omitempty"`
	PreferColor              *string  `json:"prefer_color,omitempty"`
	PreferNonlinear          *bool    `json:"prefer_nonlinear,omitempty"`
	BackprojectInpaintMissing *int    `json:"backproject_inpaint_missing,omitempty"`
	BackprojectInpaintGutter  *int    `json:"backproject_inpaint_gutter,omitempty"`
	TextureFarClip           *float64 `json:"texture_far_clip,omitempty"`
	NoOrbital                *bool    `json:"no_orbital,omitempty"`

	// Observation preparation (§4.1)
	ObservationBlurRadius      *int     `json:"observation_blur_radius,omitempty"`
	Colorize                   *bool    `json:"colorize,omitempty"`
	OverrideMedianHue          *float64 `json:"override_median_hue,omitempty"`
	StretchMode                *string  `json:"stretch_mode,omitempty"`
	StretchStandardDeviationK  *float64 `json:"stretch_standard_deviation_k,omitempty"`
	StretchHistogramPercent    *float64 `json:"stretch_histogram_percent,omitempty"`

	// Diff propagation (§4.5)
	BarycentricInterpolateWinners                     *bool    `json:"barycentric_interpolate_winners,omitempty"`
	BarycentricInterpolateMaxTriangleSideLengthPixels *float64 `json:"barycentric_interpolate_max_triangle_side_length_pixels,omitempty"`
	InpaintDiff                                        *int     `json:"inpaint_diff,omitempty"`
	BlurDiff                                           *int     `json:"blur_diff,omitempty"`
	NoFillBlendWithAverageDiff                         *bool    `json:"no_fill_blend_with_average_diff,omitempty"`
	PreadjustLuminance                                 *float64 `json:"preadjust_luminance,omitempty"`

	// LimberDMG solver (§4.4)
	ResidualEpsilon        *float64 `json:"residual_epsilon,omitempty"`
	NumRelaxationSteps     *int     `json:"num_relaxation_steps,omitempty"`
	NumMultigridIterations *int     `json:"num_multigrid_iterations,omitempty"`
	BlendLambda            *float64 `json:"blend_lambda,omitempty"`
	EdgeBehavior            *string  `json:"edge_behavior,omitempty"`

	// Leaf re-render (§4.6)
	NoBlendLeavesInParallel *bool `json:"no_blend_leaves_in_parallel,omitempty"`
	DebugSaveUnblended      *bool `json:"debug_save_unblended,omitempty"`

	// Resource model (§5, §6)
	DisableImageCache *bool `json:"disable_image_cache,omitempty"`

	// Alignment options (mutually exclusive; see Validate)
	UsePriors  *bool `json:"use_priors,omitempty"`
	OnlyAligned *bool `json:"only_aligned,omitempty"`
}

// Stretch modes recognized by StretchMode (spec §4.1).
const (
	StretchModeNone              = "None"
	StretchModeStandardDeviation = "StandardDeviation"
	StretchModeHistogramPercent  = "HistogramPercent"
)

// Edge behaviors for the LimberDMG solver boundary conditions.
const (
	EdgeNeumann   = "Neumann"
	EdgeDirichlet = "Dirichlet"
)

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file, validating its
// extension and size the way the teacher's loader does.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, errs.NewConfigError("config_path", fmt.Sprintf("must have .json extension, got %q", ext))
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if info.Size() > maxFileSize {
		return nil, errs.NewConfigError("config_path", fmt.Sprintf("file too large: %d bytes (max %d)", info.Size(), maxFileSize))
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults, searching from
// the current directory up to a plausible repository root. Panics if the
// file cannot be found; intended for tests and binaries that have already
// validated config availability.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
		"../../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks for contradictory or unsupported options (§7: these are
// fatal at startup, surfaced as *errs.ConfigError).
func (c *TuningConfig) Validate() error {
	if c.BackprojectQuality != nil {
		if *c.BackprojectQuality < 0 || *c.BackprojectQuality > 1 {
			return errs.NewConfigError("BackprojectQuality", fmt.Sprintf("must be in [0,1], got %v", *c.BackprojectQuality))
		}
	}
	if c.MaxGlancingAngleDegrees != nil {
		if *c.MaxGlancingAngleDegrees < 0 || *c.MaxGlancingAngleDegrees > 90 {
			return errs.NewConfigError("MaxGlancingAngleDegrees", fmt.Sprintf("must be in [0,90], got %v", *c.MaxGlancingAngleDegrees))
		}
	}
	if c.ObsSelectionStrategy != nil {
		switch *c.ObsSelectionStrategy {
		case StrategyExhaustive, StrategySpatial:
		default:
			return errs.NewConfigError("ObsSelectionStrategy", fmt.Sprintf("unsupported strategy %q", *c.ObsSelectionStrategy))
		}
	}
	if c.PreferColor != nil {
		switch *c.PreferColor {
		case PreferColorNever, PreferColorAlways, PreferColorEquivalentScores:
		default:
			return errs.NewConfigError("PreferColor", fmt.Sprintf("unsupported value %q", *c.PreferColor))
		}
	}
	if c.EdgeBehavior != nil {
		switch *c.EdgeBehavior {
		case EdgeNeumann, EdgeDirichlet:
		default:
			return errs.NewConfigError("EdgeBehavior", fmt.Sprintf("unsupported value %q", *c.EdgeBehavior))
		}
	}
	if c.OverrideMedianHue != nil {
		if *c.OverrideMedianHue < 0 || *c.OverrideMedianHue > 360 {
			return errs.NewConfigError("OverrideMedianHue", fmt.Sprintf("must be in [0,360], got %v", *c.OverrideMedianHue))
		}
	}
	if c.StretchMode != nil {
		switch *c.StretchMode {
		case StretchModeNone, StretchModeStandardDeviation, StretchModeHistogramPercent:
		default:
			return errs.NewConfigError("StretchMode", fmt.Sprintf("unsupported value %q", *c.StretchMode))
		}
	}
	if c.UsePriors != nil && c.OnlyAligned != nil && *c.UsePriors && *c.OnlyAligned {
		return errs.NewConfigError("UsePriors/OnlyAligned", "UsePriors and OnlyAligned are contradictory")
	}
	return nil
}

// --- accessors (defaults are implementation-chosen per spec §6) ---

func (c *TuningConfig) GetBackprojectQuality() float64 {
	if c.BackprojectQuality == nil {
		return 0.5
	}
	return *c.BackprojectQuality
}

func (c *TuningConfig) GetMaxGlancingAngleDegrees() float64 {
	if c.MaxGlancingAngleDegrees == nil {
		return 75.0
	}
	return *c.MaxGlancingAngleDegrees
}

func (c *TuningConfig) GetRaycastTolerance() float64 {
	if c.RaycastTolerance == nil {
		return 1e-3
	}
	return *c.RaycastTolerance
}

func (c *TuningConfig) GetObsSelectionStrategy() string {
	if c.ObsSelectionStrategy == nil {
		return StrategyExhaustive
	}
	return *c.ObsSelectionStrategy
}

func (c *TuningConfig) GetPreferColor() string {
	if c.PreferColor == nil {
		return PreferColorEquivalentScores
	}
	return *c.PreferColor
}

func (c *TuningConfig) GetPreferNonlinear() bool {
	if c.PreferNonlinear == nil {
		return true
	}
	return *c.PreferNonlinear
}

func (c *TuningConfig) GetBackprojectInpaintMissing() int {
	if c.BackprojectInpaintMissing == nil {
		return 0
	}
	return *c.BackprojectInpaintMissing
}

func (c *TuningConfig) GetBackprojectInpaintGutter() int {
	if c.BackprojectInpaintGutter == nil {
		return 2
	}
	return *c.BackprojectInpaintGutter
}

func (c *TuningConfig) GetTextureFarClip() float64 {
	if c.TextureFarClip == nil {
		return 50.0
	}
	return *c.TextureFarClip
}

func (c *TuningConfig) GetNoOrbital() bool {
	if c.NoOrbital == nil {
		return false
	}
	return *c.NoOrbital
}

func (c *TuningConfig) GetObservationBlurRadius() int {
	if c.ObservationBlurRadius == nil {
		return 3
	}
	return *c.ObservationBlurRadius
}

func (c *TuningConfig) GetColorize() bool {
	if c.Colorize == nil {
		return false
	}
	return *c.Colorize
}

func (c *TuningConfig) GetOverrideMedianHue() (float64, bool) {
	if c.OverrideMedianHue == nil {
		return 0, false
	}
	return *c.OverrideMedianHue, true
}

func (c *TuningConfig) GetStretchMode() string {
	if c.StretchMode == nil {
		return StretchModeNone
	}
	return *c.StretchMode
}

func (c *TuningConfig) GetStretchStandardDeviationK() float64 {
	if c.StretchStandardDeviationK == nil {
		return 2.0
	}
	return *c.StretchStandardDeviationK
}

func (c *TuningConfig) GetStretchHistogramPercent() float64 {
	if c.StretchHistogramPercent == nil {
		return 2.0
	}
	return *c.StretchHistogramPercent
}

func (c *TuningConfig) GetBarycentricInterpolateWinners() bool {
	if c.BarycentricInterpolateWinners == nil {
		return true
	}
	return *c.BarycentricInterpolateWinners
}

func (c *TuningConfig) GetBarycentricInterpolateMaxTriangleSideLengthPixels() float64 {
	if c.BarycentricInterpolateMaxTriangleSideLengthPixels == nil {
		return 16.0
	}
	return *c.BarycentricInterpolateMaxTriangleSideLengthPixels
}

func (c *TuningConfig) GetInpaintDiff() int {
	if c.InpaintDiff == nil {
		return 4
	}
	return *c.InpaintDiff
}

func (c *TuningConfig) GetBlurDiff() int {
	if c.BlurDiff == nil {
		return 2
	}
	return *c.BlurDiff
}

func (c *TuningConfig) GetNoFillBlendWithAverageDiff() bool {
	if c.NoFillBlendWithAverageDiff == nil {
		return false
	}
	return *c.NoFillBlendWithAverageDiff
}

func (c *TuningConfig) GetPreadjustLuminance() float64 {
	if c.PreadjustLuminance == nil {
		return 0
	}
	return *c.PreadjustLuminance
}

func (c *TuningConfig) GetResidualEpsilon() float64 {
	if c.ResidualEpsilon == nil {
		return 1e-4
	}
	return *c.ResidualEpsilon
}

func (c *TuningConfig) GetNumRelaxationSteps() int {
	if c.NumRelaxationSteps == nil {
		return 4
	}
	return *c.NumRelaxationSteps
}

func (c *TuningConfig) GetNumMultigridIterations() int {
	if c.NumMultigridIterations == nil {
		return 10
	}
	return *c.NumMultigridIterations
}

func (c *TuningConfig) GetBlendLambda() float64 {
	if c.BlendLambda == nil {
		return 0.1
	}
	return *c.BlendLambda
}

func (c *TuningConfig) GetEdgeBehavior() string {
	if c.EdgeBehavior == nil {
		return EdgeNeumann
	}
	return *c.EdgeBehavior
}

func (c *TuningConfig) GetNoBlendLeavesInParallel() bool {
	if c.NoBlendLeavesInParallel == nil {
		return false
	}
	return *c.NoBlendLeavesInParallel
}

func (c *TuningConfig) GetDebugSaveUnblended() bool {
	if c.DebugSaveUnblended == nil {
		return false
	}
	return *c.DebugSaveUnblended
}

func (c *TuningConfig) GetDisableImageCache() bool {
	if c.DisableImageCache == nil {
		return false
	}
	return *c.DisableImageCache
}
