package diffprop

import (
	"math"

	"github.com/banshee-data/landform-texture/internal/texture/mesh"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
)

// InterpolateBarycentricDiff fills the sparse per-observation diff image
// between winner samples by barycentrically interpolating across mesh
// faces whose three vertices all backprojected to this observation (spec
// §4.5 step 2e). Each face's three atlas texels map, via the backproject
// index, to three source pixels of this observation; if those three
// pixels are mutually within maxSidePixels of each other, the triangle
// they form in source-image space is filled by interpolating the diff
// already computed at its corners. Larger triangles are left for the
// inpaint/blur passes that follow, preserving their invalidity.
func InterpolateBarycentricDiff(diff *raster.Image, m *mesh.Mesh, index *raster.Image, atlasWidth, atlasHeight, obsID int, maxSidePixels float64) {
	if !m.HasUVs() {
		return
	}
	for _, f := range m.Faces {
		pts, ok := faceSourcePixels(f, m, index, atlasWidth, atlasHeight, obsID)
		if !ok || !withinMaxSide(pts, maxSidePixels) {
			continue
		}
		fillTriangle(diff, pts)
	}
}

func faceSourcePixels(f mesh.Face, m *mesh.Mesh, index *raster.Image, atlasWidth, atlasHeight, obsID int) (pts [3][2]float64, ok bool) {
	for i, vi := range f {
		u, v := m.UVs[vi][0], m.UVs[vi][1]
		ax := int(u * float64(atlasWidth))
		ay := int(v * float64(atlasHeight))
		if ax < 0 || ay < 0 || ax >= atlasWidth || ay >= atlasHeight {
			return pts, false
		}
		if int(index.At(0, ax, ay)) != obsID {
			return pts, false
		}
		// (src-col, src-row), matching the (x,y) convention fillTriangle uses.
		pts[i] = [2]float64{float64(index.At(2, ax, ay)), float64(index.At(1, ax, ay))}
	}
	return pts, true
}

func withinMaxSide(pts [3][2]float64, maxSidePixels float64) bool {
	return dist2D(pts[0], pts[1]) <= maxSidePixels &&
		dist2D(pts[1], pts[2]) <= maxSidePixels &&
		dist2D(pts[2], pts[0]) <= maxSidePixels
}

func dist2D(a, b [2]float64) float64 {
	dx, dy := a[0]-b[0], a[1]-b[1]
	return math.Sqrt(dx*dx + dy*dy)
}

// fillTriangle interpolates diff's bands across the integer pixels inside
// the triangle pts, using each corner's existing valid diff value; a
// corner missing a valid diff (no winner landed exactly there) leaves the
// triangle's interior untouched.
func fillTriangle(diff *raster.Image, pts [3][2]float64) {
	corners := make([][]float32, 3)
	for i, p := range pts {
		col, row := int(math.Round(p[0])), int(math.Round(p[1]))
		if !diff.InBounds(col, row) || !diff.Valid(col, row) {
			return
		}
		v := make([]float32, diff.Bands)
		for b := 0; b < diff.Bands; b++ {
			v[b] = diff.At(b, col, row)
		}
		corners[i] = v
	}

	minX, maxX := bboxAxis(pts, 0)
	minY, maxY := bboxAxis(pts, 1)
	for row := clampInt(int(math.Floor(minY)), 0, diff.Height-1); row <= clampInt(int(math.Ceil(maxY)), 0, diff.Height-1); row++ {
		for col := clampInt(int(math.Floor(minX)), 0, diff.Width-1); col <= clampInt(int(math.Ceil(maxX)), 0, diff.Width-1); col++ {
			if diff.Valid(col, row) {
				continue // don't overwrite an actual winner sample
			}
			w, inside := barycentric2D(pts, float64(col), float64(row))
			if !inside {
				continue
			}
			for b := 0; b < diff.Bands; b++ {
				val := w[0]*float64(corners[0][b]) + w[1]*float64(corners[1][b]) + w[2]*float64(corners[2][b])
				diff.Set(b, col, row, float32(val))
			}
			diff.SetValid(col, row, true)
		}
	}
}

func bboxAxis(pts [3][2]float64, axis int) (min, max float64) {
	min, max = pts[0][axis], pts[0][axis]
	for _, p := range pts[1:] {
		if p[axis] < min {
			min = p[axis]
		}
		if p[axis] > max {
			max = p[axis]
		}
	}
	return
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// barycentric2D computes the barycentric weights of (x,y) with respect to
// triangle pts, and whether the point lies inside it. Uses the same weight
// formula as mesh.UVFaceTree's UV-space test, applied here to source-pixel
// space, but without that test's small epsilon tolerance.
func barycentric2D(pts [3][2]float64, x, y float64) (w [3]float64, inside bool) {
	a, b, c := pts[0], pts[1], pts[2]
	denom := (b[1]-c[1])*(a[0]-c[0]) + (c[0]-b[0])*(a[1]-c[1])
	if denom == 0 {
		return w, false
	}
	w0 := ((b[1]-c[1])*(x-c[0]) + (c[0]-b[0])*(y-c[1])) / denom
	w1 := ((c[1]-a[1])*(x-c[0]) + (a[0]-c[0])*(y-c[1])) / denom
	w2 := 1 - w0 - w1
	if w0 < 0 || w1 < 0 || w2 < 0 {
		return w, false
	}
	return [3]float64{w0, w1, w2}, true
}
