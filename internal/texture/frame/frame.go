// Package frame provides the contract we require from the out-of-scope
// frame-transform cache (spec §1, §6): "best transform between two named
// frames". A simple in-memory implementation is provided for tests and for
// callers that resolve transforms once at load time rather than via a
// live service.
package frame

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Matrix4 is a 4x4 row-major transform matrix expressing one frame's basis
// in the mesh frame.
type Matrix4 [16]float64

// Identity returns the 4x4 identity transform.
func Identity() Matrix4 {
	var m Matrix4
	m[0], m[5], m[10], m[15] = 1, 1, 1, 1
	return m
}

// dense converts m to a gonum dense matrix for composition.
func (m Matrix4) dense() *mat.Dense {
	return mat.NewDense(4, 4, m[:])
}

// Apply transforms a point by m.
func (m Matrix4) Apply(p [3]float64) [3]float64 {
	return [3]float64{
		m[0]*p[0] + m[1]*p[1] + m[2]*p[2] + m[3],
		m[4]*p[0] + m[5]*p[1] + m[6]*p[2] + m[7],
		m[8]*p[0] + m[9]*p[1] + m[10]*p[2] + m[11],
	}
}

// Compose returns m*other, the transform that applies other first then m.
// Composition is via gonum's dense matrix multiply, matching the teacher
// stack's use of gonum for the pipeline's linear algebra.
func (m Matrix4) Compose(other Matrix4) Matrix4 {
	var result mat.Dense
	result.Mul(m.dense(), other.dense())
	var out Matrix4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			out[r*4+c] = result.At(r, c)
		}
	}
	return out
}

// Cache resolves named frames to their best transform/prior into the mesh
// frame. Frame names include the reserved meta "root" and site-drive
// strings of the form SSSSSDDDDD (spec §6).
type Cache interface {
	// GetBestTransform returns the best-known transform for name into the
	// mesh frame.
	GetBestTransform(name string) (Matrix4, error)
	// GetBestPrior returns the best prior (pre-bundle-adjustment) transform.
	GetBestPrior(name string) (Matrix4, error)
	// ContainsFrame reports whether name is known to the cache.
	ContainsFrame(name string) bool
}

// RootFrame is the reserved meta frame name (spec §6).
const RootFrame = "root"

// MemCache is an in-memory Cache backed by a fixed map, suitable for tests
// and for pipelines that resolve all needed transforms up front.
type MemCache struct {
	transforms map[string]Matrix4
	priors     map[string]Matrix4
}

// NewMemCache builds an empty MemCache seeded with the identity root frame.
func NewMemCache() *MemCache {
	return &MemCache{
		transforms: map[string]Matrix4{RootFrame: Identity()},
		priors:     map[string]Matrix4{RootFrame: Identity()},
	}
}

// Set registers the best transform and prior for a frame name.
func (c *MemCache) Set(name string, transform, prior Matrix4) {
	c.transforms[name] = transform
	c.priors[name] = prior
}

func (c *MemCache) GetBestTransform(name string) (Matrix4, error) {
	m, ok := c.transforms[name]
	if !ok {
		return Matrix4{}, fmt.Errorf("frame: unknown frame %q", name)
	}
	return m, nil
}

func (c *MemCache) GetBestPrior(name string) (Matrix4, error) {
	m, ok := c.priors[name]
	if !ok {
		return Matrix4{}, fmt.Errorf("frame: unknown frame %q", name)
	}
	return m, nil
}

func (c *MemCache) ContainsFrame(name string) bool {
	_, ok := c.transforms[name]
	return ok
}
