package stitch

// Flag is the per-pixel-per-channel constraint the LimberDMG solver honors
// (spec §4.4). Represented as a small bitset-friendly enum rather than a
// class hierarchy, per the "LimberDMG flag bits" design note.
type Flag uint8

const (
	// FlagNone contributes both a value constraint (pulled toward f with
	// weight BlendLambda) and gradient constraints to its neighbors.
	FlagNone Flag = iota
	// FlagNoData contributes neither: the pixel is solved passively, and
	// edges to it are excluded from its neighbors' equations.
	FlagNoData
	// FlagGradientOnly contributes gradient constraints to neighbors but no
	// value pull (used for orbital seeding so a surface pixel always wins
	// the value term wherever both are present).
	FlagGradientOnly
)

// FlagPlane holds one Flag per pixel per channel, banded the same way as
// raster.Image: Flags[b*Width*Height + y*Width + x].
type FlagPlane struct {
	Width, Height, Bands int
	Flags                []Flag
}

// NewFlagPlane allocates a plane with every entry FlagNone.
func NewFlagPlane(width, height, bands int) *FlagPlane {
	return &FlagPlane{Width: width, Height: height, Bands: bands, Flags: make([]Flag, bands*width*height)}
}

// At returns the flag for band b at (x,y).
func (p *FlagPlane) At(b, x, y int) Flag {
	return p.Flags[b*p.Width*p.Height+y*p.Width+x]
}

// Set stores the flag for band b at (x,y).
func (p *FlagPlane) Set(b, x, y int, f Flag) {
	p.Flags[b*p.Width*p.Height+y*p.Width+x] = f
}
