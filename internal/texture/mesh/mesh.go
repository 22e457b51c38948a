// Package mesh provides the scene mesh / LOD pyramid, a ray/triangle scene
// caster for visibility queries, and per-observation frustum convex hulls
// (spec §3, §4.2).
package mesh

import (
	"fmt"
	"math"
)

// Vec3 is a 3D point or vector in the mesh frame.
type Vec3 = [3]float64

// Face is a triangle given as three vertex indices into Mesh.Vertices.
type Face [3]int

// Mesh is one level of detail: vertex positions, face indices, optional
// normals and UVs (spec §3). UVs, if present, are per-vertex (u,v) in
// [0,1]^2; faces without UVs are handled by camera-projection UV
// generation upstream (out of scope here — the pipeline requires meshes
// that either have UVs or can synthesize them).
type Mesh struct {
	Vertices []Vec3
	Faces    []Face
	Normals  []Vec3 // optional, len(Normals) == len(Vertices) if present
	UVs      [][2]float64
}

// HasUVs reports whether every vertex carries a UV coordinate.
func (m *Mesh) HasUVs() bool {
	return len(m.UVs) == len(m.Vertices) && len(m.Vertices) > 0
}

// FaceNormal computes the unit normal of a face via the cross product of
// two edges, following right-hand winding.
func (m *Mesh) FaceNormal(f Face) Vec3 {
	a, b, c := m.Vertices[f[0]], m.Vertices[f[1]], m.Vertices[f[2]]
	e1 := sub(b, a)
	e2 := sub(c, a)
	n := cross(e1, e2)
	return normalize(n)
}

// Bounds returns the axis-aligned bounding box of the mesh.
func (m *Mesh) Bounds() (min, max Vec3) {
	if len(m.Vertices) == 0 {
		return Vec3{}, Vec3{}
	}
	min, max = m.Vertices[0], m.Vertices[0]
	for _, v := range m.Vertices[1:] {
		for i := 0; i < 3; i++ {
			if v[i] < min[i] {
				min[i] = v[i]
			}
			if v[i] > max[i] {
				max[i] = v[i]
			}
		}
	}
	return min, max
}

// Pyramid is an ordered sequence of LODs, finest first (spec §3: "LOD[0]
// is finest; LODs strictly decreasing in face count").
type Pyramid struct {
	Levels []*Mesh
}

// Validate checks the pyramid invariants.
func (p *Pyramid) Validate() error {
	if len(p.Levels) == 0 {
		return fmt.Errorf("mesh pyramid must have at least one LOD")
	}
	for i, lvl := range p.Levels {
		if len(lvl.Faces) == 0 {
			return fmt.Errorf("LOD[%d] is empty", i)
		}
		if i > 0 && len(lvl.Faces) >= len(p.Levels[i-1].Faces) {
			return fmt.Errorf("LOD[%d] (%d faces) must be strictly smaller than LOD[%d] (%d faces)",
				i, len(lvl.Faces), i-1, len(p.Levels[i-1].Faces))
		}
	}
	return nil
}

// Finest returns LOD[0], the highest-resolution mesh.
func (p *Pyramid) Finest() *Mesh { return p.Levels[0] }

func sub(a, b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func cross(a, b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func dot(a, b Vec3) float64 {
	return a[0]*b[0] + a[1]*b[1] + a[2]*b[2]
}

func normalize(v Vec3) Vec3 {
	n := math.Sqrt(dot(v, v))
	if n == 0 {
		return v
	}
	return Vec3{v[0] / n, v[1] / n, v[2] / n}
}
