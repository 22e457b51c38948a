package stitch

import "github.com/banshee-data/landform-texture/internal/texture/workpool"

// level is one grid resolution of a single channel's gradient-domain
// solve. The finest level (isCorrection == false) solves the real
// minimization against f with BlendLambda; every coarser level solves the
// homogeneous correction equation A*e = r against the residual restricted
// from the level above it (the multigrid correction scheme).
type level struct {
	width, height int
	flag          []Flag
	f             []float64 // fidelity target; only meaningful at the finest level
	u             []float64 // solution (finest) or correction (coarser)
	rhs           []float64 // restricted residual; only meaningful at coarser levels
	isCorrection  bool
}

// equationAt returns the Gauss-Seidel update (rhs / denom) for pixel (x,y),
// or ok=false if the pixel has no equation (NoData, or a fixed Dirichlet
// boundary the caller clamps directly).
func (lv *level) equationAt(x, y int, lambda float64, dirichlet bool) (denom, rhs float64, ok bool) {
	w, h := lv.width, lv.height
	i := y*w + x
	if lv.flag[i] == FlagNoData {
		return 0, 0, false
	}
	if !lv.isCorrection && dirichlet && (x == 0 || y == 0 || x == w-1 || y == h-1) {
		return 0, 0, false
	}

	var sumU, sumF, deg float64
	if x > 0 && lv.flag[i-1] != FlagNoData {
		sumU += lv.u[i-1]
		sumF += lv.f[i-1]
		deg++
	}
	if x < w-1 && lv.flag[i+1] != FlagNoData {
		sumU += lv.u[i+1]
		sumF += lv.f[i+1]
		deg++
	}
	if y > 0 && lv.flag[i-w] != FlagNoData {
		sumU += lv.u[i-w]
		sumF += lv.f[i-w]
		deg++
	}
	if y < h-1 && lv.flag[i+w] != FlagNoData {
		sumU += lv.u[i+w]
		sumF += lv.f[i+w]
		deg++
	}

	if lv.isCorrection {
		if deg == 0 {
			return 0, 0, false
		}
		return deg, lv.rhs[i] + sumU, true
	}

	lambdaI := 0.0
	if lv.flag[i] == FlagNone {
		lambdaI = lambda
	}
	denom = deg + lambdaI
	if denom == 0 {
		return 0, 0, false
	}
	rhs = sumU + deg*lv.f[i] - sumF + lambdaI*lv.f[i]
	return denom, rhs, true
}

func relaxAt(lv *level, x, y int, lambda float64, dirichlet bool) {
	i := y*lv.width + x
	if lv.flag[i] == FlagNoData {
		return
	}
	denom, rhs, ok := lv.equationAt(x, y, lambda, dirichlet)
	if !ok {
		if !lv.isCorrection && dirichlet {
			lv.u[i] = lv.f[i]
		}
		return
	}
	lv.u[i] = rhs / denom
}

// relax runs steps sweeps of red-black Gauss-Seidel, each color's pixels
// updated in parallel across the pool since they share no edges (spec
// §4.4: "the solver is parallel across the grid at each relaxation level").
func relax(lv *level, lambda float64, dirichlet bool, pool *workpool.Pool, steps int) {
	for s := 0; s < steps; s++ {
		for color := 0; color < 2; color++ {
			c := color
			pool.ForEach(lv.height, func(y int) error {
				for x := 0; x < lv.width; x++ {
					if (x+y)%2 == c {
						relaxAt(lv, x, y, lambda, dirichlet)
					}
				}
				return nil
			})
		}
	}
}

// residual computes the per-pixel equation residual (rhs - denom*u) across
// the whole level; used both for the global convergence check at the
// finest level and to restrict to the next-coarser level.
func residual(lv *level, lambda float64, dirichlet bool) []float64 {
	res := make([]float64, lv.width*lv.height)
	for y := 0; y < lv.height; y++ {
		for x := 0; x < lv.width; x++ {
			denom, rhs, ok := lv.equationAt(x, y, lambda, dirichlet)
			if !ok {
				continue
			}
			res[y*lv.width+x] = rhs - denom*lv.u[y*lv.width+x]
		}
	}
	return res
}

// restrictValues 2x-downsamples vals (box-averaging valid pixels) and
// flag (a cell is NoData only if every fine pixel under it is). vals may
// be nil to restrict only the flag plane, used once at setup.
func restrictValues(vals []float64, flag []Flag, w, h int) (cvals []float64, cflag []Flag, cw, ch int) {
	cw, ch = (w+1)/2, (h+1)/2
	if cw < 1 {
		cw = 1
	}
	if ch < 1 {
		ch = 1
	}
	cflag = make([]Flag, cw*ch)
	counts := make([]int, cw*ch)
	if vals != nil {
		cvals = make([]float64, cw*ch)
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			if flag[i] == FlagNoData {
				continue
			}
			ci := (y/2)*cw + x/2
			if vals != nil {
				cvals[ci] += vals[i]
			}
			counts[ci]++
		}
	}
	for i, n := range counts {
		if n == 0 {
			cflag[i] = FlagNoData
			continue
		}
		if cvals != nil {
			cvals[i] /= float64(n)
		}
	}
	return cvals, cflag, cw, ch
}

// prolongAdd adds each coarse correction onto its corresponding 2x2 fine
// block (nearest-neighbor prolongation).
func prolongAdd(fine, coarse *level) {
	for y := 0; y < fine.height; y++ {
		cy := y / 2
		if cy >= coarse.height {
			cy = coarse.height - 1
		}
		for x := 0; x < fine.width; x++ {
			cx := x / 2
			if cx >= coarse.width {
				cx = coarse.width - 1
			}
			fine.u[y*fine.width+x] += coarse.u[cy*coarse.width+cx]
		}
	}
}

// buildLevels constructs the V-cycle hierarchy down to roughly 2x2,
// capped at 8 levels deep.
func buildLevels(topFlag []Flag, topF []float64, w, h int) []*level {
	levels := []*level{{width: w, height: h, flag: topFlag, f: topF, u: make([]float64, w*h)}}
	flag, cw, ch := topFlag, w, h
	for cw > 2 && ch > 2 && len(levels) < 8 {
		_, cflag, ncw, nch := restrictValues(nil, flag, cw, ch)
		if ncw == cw && nch == ch {
			break
		}
		levels = append(levels, &level{
			width: ncw, height: nch, flag: cflag,
			f: make([]float64, ncw*nch), u: make([]float64, ncw*nch), rhs: make([]float64, ncw*nch),
			isCorrection: true,
		})
		flag, cw, ch = cflag, ncw, nch
	}
	return levels
}

// vCycle relaxes, restricts the residual to a correction problem one level
// coarser, recurses, then prolongs and adds the correction back (spec
// §4.4 step 2).
func vCycle(levels []*level, idx int, lambda float64, dirichlet bool, steps int, pool *workpool.Pool) {
	lv := levels[idx]
	lv0Lambda := lambda
	if lv.isCorrection {
		lv0Lambda = 0
	}
	relax(lv, lv0Lambda, dirichlet, pool, steps)

	if idx == len(levels)-1 {
		return
	}

	res := residual(lv, lv0Lambda, dirichlet)
	coarse := levels[idx+1]
	restricted, _, _, _ := restrictValues(res, lv.flag, lv.width, lv.height)
	copy(coarse.rhs, restricted)
	for i := range coarse.u {
		coarse.u[i] = 0
	}

	vCycle(levels, idx+1, lambda, dirichlet, steps, pool)

	prolongAdd(lv, coarse)
	relax(lv, lv0Lambda, dirichlet, pool, steps)
}
