package pipeline

import (
	"github.com/banshee-data/landform-texture/internal/texture/obs"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
	"github.com/banshee-data/landform-texture/internal/texture/stitch"
	"github.com/banshee-data/landform-texture/internal/texture/workpool"
)

// gatherAtlas assembles the piecewise RGB atlas the stitch stage solves
// toward, sampling each texel's selected observation at its recorded
// (src-row, src-col) (spec §4.4: "the piecewise backprojected atlas").
// Texels with no selection, an unresolved observation, or an out-of-bounds
// sample are marked FlagNoData on every band so the solver treats them
// passively instead of pulling them toward a fabricated value.
func gatherAtlas(index *raster.Image, images map[int]*raster.Image, pool *workpool.Pool) (*raster.Image, *stitch.FlagPlane) {
	atlas := raster.NewImage(index.Width, index.Height, 3)
	flags := stitch.NewFlagPlane(index.Width, index.Height, 3)

	pool.ForEach(index.Height, func(y int) error {
		for x := 0; x < index.Width; x++ {
			obsID := int(index.At(0, x, y))
			img, srcRow, srcCol, ok := sampleAt(index, images, obsID, x, y)
			if !ok {
				markNoData(flags, x, y)
				continue
			}
			for b := 0; b < 3; b++ {
				v := img.At(0, srcCol, srcRow)
				if img.Bands == 3 {
					v = img.At(b, srcCol, srcRow)
				}
				atlas.Set(b, x, y, v)
			}
		}
		return nil
	})
	return atlas, flags
}

func sampleAt(index *raster.Image, images map[int]*raster.Image, obsID, x, y int) (img *raster.Image, srcRow, srcCol int, ok bool) {
	if obsID < obs.MinIndex {
		return nil, 0, 0, false
	}
	img, found := images[obsID]
	if !found {
		return nil, 0, 0, false
	}
	srcRow = int(index.At(1, x, y))
	srcCol = int(index.At(2, x, y))
	if srcRow < 0 || srcCol < 0 || srcRow >= img.Height || srcCol >= img.Width {
		return nil, 0, 0, false
	}
	return img, srcRow, srcCol, true
}

func markNoData(flags *stitch.FlagPlane, x, y int) {
	flags.Set(0, x, y, stitch.FlagNoData)
	flags.Set(1, x, y, stitch.FlagNoData)
	flags.Set(2, x, y, stitch.FlagNoData)
}
