package raster

// BoxBlur applies a separable box blur of the given radius to every band,
// skipping invalid pixels on both read and write (a masked pixel must not
// contribute to blurs, spec §3). radius <= 0 returns a clone of src.
func BoxBlur(src *Image, radius int) *Image {
	if radius <= 0 {
		return src.Clone()
	}

	horiz := boxBlurPass(src, radius, true)
	full := boxBlurPass(horiz, radius, false)
	full.Mask = src.Mask
	return full
}

func boxBlurPass(src *Image, radius int, horizontal bool) *Image {
	out := NewImage(src.Width, src.Height, src.Bands)
	out.Mask = src.Mask

	for b := 0; b < src.Bands; b++ {
		for y := 0; y < src.Height; y++ {
			for x := 0; x < src.Width; x++ {
				if !src.Valid(x, y) {
					continue
				}
				var sum float32
				var count int
				if horizontal {
					for dx := -radius; dx <= radius; dx++ {
						nx := x + dx
						if src.InBounds(nx, y) && src.Valid(nx, y) {
							sum += src.At(b, nx, y)
							count++
						}
					}
				} else {
					for dy := -radius; dy <= radius; dy++ {
						ny := y + dy
						if src.InBounds(x, ny) && src.Valid(x, ny) {
							sum += src.At(b, x, ny)
							count++
						}
					}
				}
				if count > 0 {
					out.Set(b, x, y, sum/float32(count))
				}
			}
		}
	}
	return out
}
