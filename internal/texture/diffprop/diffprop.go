package diffprop

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/banshee-data/landform-texture/internal/config"
	"github.com/banshee-data/landform-texture/internal/texture/errs"
	"github.com/banshee-data/landform-texture/internal/texture/mesh"
	"github.com/banshee-data/landform-texture/internal/texture/obs"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
	"github.com/banshee-data/landform-texture/internal/texture/store"
	"github.com/banshee-data/landform-texture/internal/texture/telemetry"
	"github.com/banshee-data/landform-texture/internal/texture/workpool"
)

// Stage runs diff propagation (spec §4.5): push the stitched atlas's
// correction back to each source observation that contributed to it,
// producing a per-observation blended variant.
type Stage struct {
	cfg         *config.TuningConfig
	store       store.Store
	log         *telemetry.Logger
	pool        *workpool.Pool
	mesh        *mesh.Mesh
	atlasWidth  int
	atlasHeight int
	lastIndex   *raster.Image
}

// New builds a Stage over the given mesh and atlas dimensions, needed to
// locate a face's atlas texels for barycentric interpolation.
func New(cfg *config.TuningConfig, s store.Store, log *telemetry.Logger, pool *workpool.Pool, m *mesh.Mesh, atlasWidth, atlasHeight int) *Stage {
	return &Stage{cfg: cfg, store: s, log: log, pool: pool, mesh: m, atlasWidth: atlasWidth, atlasHeight: atlasHeight}
}

// Run builds the winners table from index and blendedAtlas, then produces
// a blended variant for every observation the table names (spec §4.5 steps
// 1-3). Observations absent from the table are left with an empty blended
// id, falling back to stretched/original downstream.
func (s *Stage) Run(index, blendedAtlas *raster.Image, observations []*obs.Observation, sceneMedianHue, sceneMedianLuminance float64) *workpool.Result {
	s.lastIndex = index
	table := BuildWinnersTable(index, blendedAtlas, s.pool)

	result := s.pool.ForEach(len(observations), func(i int) error {
		o := observations[i]
		if table.Count(o.ID) == 0 {
			return nil // spec §4.5: "no backproject texel selected" -> no blended id
		}
		if err := s.propagateOne(o, table, sceneMedianHue, sceneMedianLuminance); err != nil {
			s.log.Opsf("diffprop: %v", err)
			return err
		}
		return nil
	})
	s.log.Diagf("diffprop: %d observations in winners table, %d failures", len(table.ObservationIDs()), len(result.Failures))
	return result
}

// propagateOne implements spec §4.5 step 2 for a single observation.
func (s *Stage) propagateOne(o *obs.Observation, table *WinnersTable, sceneMedianHue, sceneMedianLuminance float64) error {
	source, err := s.loadImage(o.Derived.Blurred, "diffprop.load-blurred", o.ID)
	if err != nil {
		return err
	}

	// 2b: optional luminance preadjustment.
	weight := s.cfg.GetPreadjustLuminance()
	if weight != 0 {
		source = PreadjustLuminance(source, o.Stats.LuminanceMedian, sceneMedianLuminance, weight)
	}

	// 2c: optional mono -> color colorize.
	colorized := source
	if s.cfg.GetColorize() && o.IsMono() {
		colorized = Colorize(source, sceneMedianHue)
	}

	// 2d: per-bucket diff against the blurred source.
	diff := raster.NewImage(colorized.Width, colorized.Height, colorized.Bands)
	diff.Mask = make([]bool, diff.Width*diff.Height)

	var sumDiff [3]float64
	var sumCount int
	table.each(o.ID, func(row, col int, r, g, b float32) {
		if row < 0 || col < 0 || row >= colorized.Height || col >= colorized.Width {
			return
		}
		if colorized.Bands == 1 {
			blended := reduceToLuminance(r, g, b)
			d := blended - colorized.At(0, col, row)
			diff.Set(0, col, row, d)
			diff.SetValid(col, row, true)
			sumDiff[0] += float64(d)
		} else {
			for band, v := range [3]float32{r, g, b} {
				d := v - colorized.At(band, col, row)
				diff.Set(band, col, row, d)
				sumDiff[band] += float64(d)
			}
			diff.SetValid(col, row, true)
		}
		sumCount++
	})

	var avgDiff []float32
	if sumCount > 0 {
		avgDiff = make([]float32, diff.Bands)
		for b := 0; b < diff.Bands; b++ {
			avgDiff[b] = float32(sumDiff[b] / float64(sumCount))
		}
	}

	// 2e: optional barycentric interpolation across tight triangles.
	if s.cfg.GetBarycentricInterpolateWinners() && s.mesh != nil && s.lastIndex != nil {
		InterpolateBarycentricDiff(diff, s.mesh, s.lastIndex, s.atlasWidth, s.atlasHeight, o.ID, s.cfg.GetBarycentricInterpolateMaxTriangleSideLengthPixels())
	}

	// 2f: optional inpaint and/or blur, mask-aware.
	if n := s.cfg.GetInpaintDiff(); n > 0 {
		raster.InpaintMissing(diff, n)
	}
	if r := s.cfg.GetBlurDiff(); r > 0 {
		diff = raster.BoxBlur(diff, r)
	}

	// 2g: compose the blended observation.
	blended := composeBlended(colorized, diff, avgDiff, s.cfg.GetNoFillBlendWithAverageDiff())

	blendedID, err := s.save(blended)
	if err != nil {
		return &errs.ItemFailure{ItemID: fmt.Sprint(o.ID), Stage: "diffprop.save", Err: err}
	}
	o.Derived.Blended = blendedID.String()
	s.log.Diagf("diffprop: obs %d blended (%d winners)", o.ID, sumCount)
	return nil
}

func composeBlended(source, diff *raster.Image, avgDiff []float32, noFillWithAverage bool) *raster.Image {
	out := raster.NewImage(source.Width, source.Height, source.Bands)
	for y := 0; y < source.Height; y++ {
		for x := 0; x < source.Width; x++ {
			for b := 0; b < source.Bands; b++ {
				srcVal := source.At(b, x, y)
				var d float32
				valid := diff.Valid(x, y)
				switch {
				case valid:
					d = diff.At(b, x, y)
				case !noFillWithAverage && avgDiff != nil:
					d = avgDiff[b]
				default:
					d = 0
				}
				out.Set(b, x, y, raster.Clamp01(srcVal+d))
			}
		}
	}
	return out
}

// reduceToLuminance collapses blended RGB to a scalar for diffing against a
// monochrome source (spec §4.5 step 2d: "reduce blended RGB to L*"). The
// stitch package's full CIE-LAB L* lives on a 0-100 scale carrying the
// spec's own +100 offset (stitch.labOffset), which would not diff sensibly
// against a mono source in [0,1]; this uses the same Rec.709 perceptual
// luminance weighting prep already applies when computing per-observation
// luminance statistics, keeping both sides of the diff on the same scale.
func reduceToLuminance(r, g, b float32) float32 {
	return 0.2126*r + 0.7152*g + 0.0722*b
}

func (s *Stage) loadImage(id string, stageName string, obsID int) (*raster.Image, error) {
	if id == "" {
		return nil, &errs.PrerequisiteError{Stage: stageName, Detail: fmt.Sprintf("observation %d missing required variant", obsID)}
	}
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
