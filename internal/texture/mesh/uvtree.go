package mesh

import "math"

// UVFaceTree maps a UV coordinate to the face that covers it (spec §4.3,
// step 1: "Map texel to UV to a triangle"). It buckets faces by their UV
// bounding box into a uniform grid, the same coarse-grid-bucketing idiom
// used for the spatial observation-selection strategy (backproject
// package) and for 3D voxel downsampling in the teacher's point-cloud
// pipeline.
type UVFaceTree struct {
	mesh      *Mesh
	gridSize  int
	buckets   map[[2]int][]int // bucket -> face indices
}

// BuildUVFaceTree indexes every face of m by its UV bounding box. m must
// have UVs (HasUVs()).
func BuildUVFaceTree(m *Mesh, gridSize int) *UVFaceTree {
	if gridSize < 1 {
		gridSize = 64
	}
	t := &UVFaceTree{mesh: m, gridSize: gridSize, buckets: make(map[[2]int][]int)}
	for fi, f := range m.Faces {
		minU, minV, maxU, maxV := faceUVBounds(m, f)
		for gy := bucketIndex(minV, gridSize); gy <= bucketIndex(maxV, gridSize); gy++ {
			for gx := bucketIndex(minU, gridSize); gx <= bucketIndex(maxU, gridSize); gx++ {
				key := [2]int{gx, gy}
				t.buckets[key] = append(t.buckets[key], fi)
			}
		}
	}
	return t
}

func bucketIndex(uv float64, gridSize int) int {
	i := int(math.Floor(uv * float64(gridSize)))
	if i < 0 {
		i = 0
	}
	if i >= gridSize {
		i = gridSize - 1
	}
	return i
}

func faceUVBounds(m *Mesh, f Face) (minU, minV, maxU, maxV float64) {
	u0, v0 := m.UVs[f[0]][0], m.UVs[f[0]][1]
	minU, maxU = u0, u0
	minV, maxV = v0, v0
	for _, idx := range f[1:] {
		u, v := m.UVs[idx][0], m.UVs[idx][1]
		if u < minU {
			minU = u
		}
		if u > maxU {
			maxU = u
		}
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return
}

// Hit describes the result of mapping a UV coordinate to a mesh point.
type Hit struct {
	FaceIndex int
	Point     Vec3
	Normal    Vec3
	Bary      [3]float64 // barycentric weights for Face vertices
}

// Lookup finds the face covering (u,v) and returns the interpolated 3D
// point and normal there. ok is false if no face covers the point (spec
// §4.3: "If no triangle covers the texel, emit 'no source'").
func (t *UVFaceTree) Lookup(u, v float64) (hit Hit, ok bool) {
	key := [2]int{bucketIndex(u, t.gridSize), bucketIndex(v, t.gridSize)}
	for _, fi := range t.buckets[key] {
		f := t.mesh.Faces[fi]
		bary, inside := barycentric(t.mesh.UVs[f[0]], t.mesh.UVs[f[1]], t.mesh.UVs[f[2]], u, v)
		if !inside {
			continue
		}
		p := interpolateVec3(t.mesh, f, bary)
		n := t.faceVertexNormal(f, bary)
		return Hit{FaceIndex: fi, Point: p, Normal: n, Bary: bary}, true
	}
	return Hit{}, false
}

func (t *UVFaceTree) faceVertexNormal(f Face, bary [3]float64) Vec3 {
	if len(t.mesh.Normals) == len(t.mesh.Vertices) {
		n := Vec3{}
		for i := 0; i < 3; i++ {
			vn := t.mesh.Normals[f[i]]
			n[0] += bary[i] * vn[0]
			n[1] += bary[i] * vn[1]
			n[2] += bary[i] * vn[2]
		}
		return normalize(n)
	}
	return t.mesh.FaceNormal(f)
}

func interpolateVec3(m *Mesh, f Face, bary [3]float64) Vec3 {
	var p Vec3
	for i := 0; i < 3; i++ {
		v := m.Vertices[f[i]]
		p[0] += bary[i] * v[0]
		p[1] += bary[i] * v[1]
		p[2] += bary[i] * v[2]
	}
	return p
}

// barycentric computes the barycentric weights of point (u,v) with respect
// to triangle (a,b,c) in 2D UV space, and whether the point lies inside
// (with a small epsilon tolerance to avoid gutter-seam false negatives).
func barycentric(a, b, c [2]float64, u, v float64) (bary [3]float64, inside bool) {
	const eps = -1e-7
	denom := (b[1]-c[1])*(a[0]-c[0]) + (c[0]-b[0])*(a[1]-c[1])
	if denom == 0 {
		return bary, false
	}
	w0 := ((b[1]-c[1])*(u-c[0]) + (c[0]-b[0])*(v-c[1])) / denom
	w1 := ((c[1]-a[1])*(u-c[0]) + (a[0]-c[0])*(v-c[1])) / denom
	w2 := 1 - w0 - w1
	if w0 < eps || w1 < eps || w2 < eps {
		return bary, false
	}
	return [3]float64{w0, w1, w2}, true
}
