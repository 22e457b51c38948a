package mesh

import "math"

// SceneCaster is a ray/triangle acceleration structure over a chosen
// occlusion mesh (spec §3: "built once after mesh load, immutable
// thereafter"). It buckets faces into a uniform 3D grid over the mesh
// bounds, the same coarse-grid idiom as UVFaceTree and the teacher's
// point-cloud voxel grid (internal/lidar/l4perception/voxel.go), scaled to
// world space instead of UV space.
type SceneCaster struct {
	mesh    *Mesh
	min, max Vec3
	cell    float64
	dims    [3]int
	buckets map[[3]int][]int
}

// NewSceneCaster builds a caster over m. cellSize controls the grid
// resolution; smaller values trade memory for fewer candidate triangles
// tested per ray.
func NewSceneCaster(m *Mesh, cellSize float64) *SceneCaster {
	if cellSize <= 0 {
		cellSize = 1.0
	}
	min, max := m.Bounds()
	c := &SceneCaster{mesh: m, min: min, max: max, cell: cellSize}
	for i := 0; i < 3; i++ {
		extent := max[i] - min[i]
		d := int(math.Ceil(extent/cellSize)) + 1
		if d < 1 {
			d = 1
		}
		c.dims[i] = d
	}
	c.buckets = make(map[[3]int][]int)
	for fi, f := range m.Faces {
		bmin, bmax := faceBounds(m, f)
		for cz := c.cellIndex(bmin[2], 2); cz <= c.cellIndex(bmax[2], 2); cz++ {
			for cy := c.cellIndex(bmin[1], 1); cy <= c.cellIndex(bmax[1], 1); cy++ {
				for cx := c.cellIndex(bmin[0], 0); cx <= c.cellIndex(bmax[0], 0); cx++ {
					key := [3]int{cx, cy, cz}
					c.buckets[key] = append(c.buckets[key], fi)
				}
			}
		}
	}
	return c
}

func (c *SceneCaster) cellIndex(v float64, axis int) int {
	i := int(math.Floor((v - c.min[axis]) / c.cell))
	if i < 0 {
		i = 0
	}
	if i >= c.dims[axis] {
		i = c.dims[axis] - 1
	}
	return i
}

func faceBounds(m *Mesh, f Face) (min, max Vec3) {
	min = m.Vertices[f[0]]
	max = min
	for _, idx := range f[1:] {
		v := m.Vertices[idx]
		for i := 0; i < 3; i++ {
			if v[i] < min[i] {
				min[i] = v[i]
			}
			if v[i] > max[i] {
				max[i] = v[i]
			}
		}
	}
	return
}

// RayHit is a ray/mesh intersection result.
type RayHit struct {
	FaceIndex int
	Distance  float64
	Point     Vec3
}

// Nearest returns the nearest face the ray crosses at distance >= tolerance
// from the origin (spec §3: "any ray query returns the nearest face
// crossing >= raycastTolerance meters from origin"). ok is false if no
// face qualifies.
func (c *SceneCaster) Nearest(origin, dir Vec3, tolerance float64) (hit RayHit, ok bool) {
	dir = normalize(dir)
	best := math.MaxFloat64
	found := false

	maxDist := c.diagonal()
	step := c.cell * 0.5
	if step <= 0 {
		step = 0.01
	}

	tested := make(map[int]bool)
	for t := 0.0; t < maxDist; t += step {
		p := Vec3{origin[0] + dir[0]*t, origin[1] + dir[1]*t, origin[2] + dir[2]*t}
		key := [3]int{c.cellIndex(p[0], 0), c.cellIndex(p[1], 1), c.cellIndex(p[2], 2)}
		for _, fi := range c.buckets[key] {
			if tested[fi] {
				continue
			}
			tested[fi] = true
			f := c.mesh.Faces[fi]
			if dist, ip, ok2 := rayTriangle(origin, dir, c.mesh.Vertices[f[0]], c.mesh.Vertices[f[1]], c.mesh.Vertices[f[2]]); ok2 {
				if dist >= tolerance && dist < best {
					best = dist
					hit = RayHit{FaceIndex: fi, Distance: dist, Point: ip}
					found = true
				}
			}
		}
		if found && best <= t {
			// Already found the nearest possible hit closer than our
			// current march distance; no closer bucket remains to visit.
			break
		}
	}
	return hit, found
}

func (c *SceneCaster) diagonal() float64 {
	dx := c.max[0] - c.min[0]
	dy := c.max[1] - c.min[1]
	dz := c.max[2] - c.min[2]
	return math.Sqrt(dx*dx+dy*dy+dz*dz) + c.cell
}

// rayTriangle implements the Möller-Trumbore ray/triangle intersection test.
func rayTriangle(origin, dir, a, b, c Vec3) (dist float64, point Vec3, ok bool) {
	const eps = 1e-10
	e1 := sub(b, a)
	e2 := sub(c, a)
	p := cross(dir, e2)
	det := dot(e1, p)
	if det > -eps && det < eps {
		return 0, Vec3{}, false
	}
	invDet := 1 / det
	tvec := sub(origin, a)
	u := dot(tvec, p) * invDet
	if u < 0 || u > 1 {
		return 0, Vec3{}, false
	}
	q := cross(tvec, e1)
	v := dot(dir, q) * invDet
	if v < 0 || u+v > 1 {
		return 0, Vec3{}, false
	}
	t := dot(e2, q) * invDet
	if t < 0 {
		return 0, Vec3{}, false
	}
	pt := Vec3{origin[0] + dir[0]*t, origin[1] + dir[1]*t, origin[2] + dir[2]*t}
	return t, pt, true
}
