// Package workpool provides the core-limited parallel-for used by every
// pipeline stage that fans out per-observation, per-leaf, or per-grid-cell
// work (spec §5: "A core-limited pool caps concurrency to roughly the
// number of physical cores"). It generalizes the teacher's channel-driven
// worker idiom (internal/lidar/l2frames's single serialized callback
// worker) into a bounded N-way pool shared across stages.
package workpool

import (
	"runtime"
	"sync"
)

// Pool runs bounded-concurrency work over a slice of indices. It keeps the
// "reverse next iteration" direction-flip state explicitly (spec §9 design
// note: "preserve as explicit state in the scheduler, not a global") so
// repeated passes over the same collection balance worker start times.
type Pool struct {
	mu      sync.Mutex
	workers int
	reverse bool
}

// New builds a Pool capped at roughly the number of physical cores.
// workers <= 0 means "use runtime.NumCPU()".
func New(workers int) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Pool{workers: workers}
}

// Result collects one failure per failed item; successful items contribute
// nothing. Callers use this to implement the "per-item failure: logged and
// counted; the pass continues" policy (spec §7).
type Result struct {
	mu       sync.Mutex
	Failures []error
}

func (r *Result) record(err error) {
	if err == nil {
		return
	}
	r.mu.Lock()
	r.Failures = append(r.Failures, err)
	r.mu.Unlock()
}

// ForEach runs fn(i) for i in [0,n), at most p.workers concurrently,
// iterating in the direction opposite to the previous ForEach call (the
// flip toggles unconditionally, even for n==0, so callers don't need to
// special-case empty passes). A failure from one item does not stop the
// others; all per-item errors are collected in the returned Result.
func (p *Pool) ForEach(n int, fn func(i int) error) *Result {
	p.mu.Lock()
	reverse := p.reverse
	p.reverse = !p.reverse
	p.mu.Unlock()

	order := make([]int, n)
	for i := 0; i < n; i++ {
		if reverse {
			order[i] = n - 1 - i
		} else {
			order[i] = i
		}
	}

	result := &Result{}
	workers := p.workers
	if workers > n {
		workers = n
	}
	if workers <= 0 {
		return result
	}

	indices := make(chan int, n)
	for _, i := range order {
		indices <- i
	}
	close(indices)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indices {
				if err := fn(i); err != nil {
					result.record(err)
				}
			}
		}()
	}
	wg.Wait()

	return result
}
