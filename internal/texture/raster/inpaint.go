package raster

// InpaintMissing fills invalid pixels from the average of their valid
// 8-neighbors, iterating until maxIterations passes have run or no invalid
// pixel gained a value. maxIterations < 0 means unlimited (run until no
// progress); maxIterations == 0 disables inpainting entirely, matching the
// BackprojectInpaintMissing/BackprojectInpaintGutter semantics (spec §4.3,
// §6: "0 disables, negative = unlimited").
func InpaintMissing(im *Image, maxIterations int) {
	if maxIterations == 0 || im.Mask == nil {
		return
	}

	for iter := 0; maxIterations < 0 || iter < maxIterations; iter++ {
		filled := 0
		newlyValid := make([]bool, im.Width*im.Height)

		for y := 0; y < im.Height; y++ {
			for x := 0; x < im.Width; x++ {
				if im.Valid(x, y) {
					continue
				}
				var sums [3]float32
				var count int
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						if dx == 0 && dy == 0 {
							continue
						}
						nx, ny := x+dx, y+dy
						if im.InBounds(nx, ny) && im.Valid(nx, ny) {
							for b := 0; b < im.Bands; b++ {
								sums[b] += im.At(b, nx, ny)
							}
							count++
						}
					}
				}
				if count > 0 {
					for b := 0; b < im.Bands; b++ {
						im.Set(b, x, y, sums[b]/float32(count))
					}
					newlyValid[y*im.Width+x] = true
					filled++
				}
			}
		}

		for i, v := range newlyValid {
			if v {
				im.Mask[i] = true
			}
		}

		if filled == 0 {
			break
		}
	}
}
