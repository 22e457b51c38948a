// Package diffprop implements diff propagation (spec §4.5): push the
// stitched atlas's correction back to each source observation so
// per-observation leaf textures stay mutually consistent with the seamless
// atlas.
package diffprop

import (
	"sort"
	"sync"

	"github.com/banshee-data/landform-texture/internal/texture/obs"
	"github.com/banshee-data/landform-texture/internal/texture/raster"
	"github.com/banshee-data/landform-texture/internal/texture/workpool"
)

type bucketKey struct {
	row, col int
}

type bucket struct {
	sumR, sumG, sumB float64
	count            int
}

// shard accumulates winners for a single observation. Sharding by obs-id
// and giving each shard its own lock (spec §9: "shard by obs-id and make
// each shard single-writer; no global lock") avoids one contended lock
// across every backproject texel.
type shard struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
}

// WinnersTable accumulates, per observation, the blended atlas RGB that
// backprojected to each of its source pixels (spec §4.5 step 1).
type WinnersTable struct {
	mu     sync.Mutex
	shards map[int]*shard
}

// NewWinnersTable returns an empty table.
func NewWinnersTable() *WinnersTable {
	return &WinnersTable{shards: make(map[int]*shard)}
}

func (w *WinnersTable) shardFor(obsID int) *shard {
	w.mu.Lock()
	s, ok := w.shards[obsID]
	if !ok {
		s = &shard{buckets: make(map[bucketKey]*bucket)}
		w.shards[obsID] = s
	}
	w.mu.Unlock()
	return s
}

// Accumulate adds one texel's blended RGB into the (obsID, srcRow, srcCol)
// bucket.
func (w *WinnersTable) Accumulate(obsID, srcRow, srcCol int, r, g, b float32) {
	s := w.shardFor(obsID)
	key := bucketKey{srcRow, srcCol}
	s.mu.Lock()
	defer s.mu.Unlock()
	bk, ok := s.buckets[key]
	if !ok {
		bk = &bucket{}
		s.buckets[key] = bk
	}
	bk.sumR += float64(r)
	bk.sumG += float64(g)
	bk.sumB += float64(b)
	bk.count++
}

// ObservationIDs returns every observation id with at least one winner,
// sorted for deterministic iteration order.
func (w *WinnersTable) ObservationIDs() []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	ids := make([]int, 0, len(w.shards))
	for id := range w.shards {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Count returns the number of distinct source pixels (src-row, src-col)
// with at least one winner recorded for obsID. Under minification, several
// atlas texels can map to the same source pixel, so this is strictly a
// count of distinct pixels touched, not a count of contributing texels —
// see TotalCount for the latter.
func (w *WinnersTable) Count(obsID int) int {
	w.mu.Lock()
	s, ok := w.shards[obsID]
	w.mu.Unlock()
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// TotalCount returns the total number of atlas texels accumulated for
// obsID, summing every bucket's contribution count. Equal to Count unless
// minification has mapped more than one atlas texel onto the same source
// pixel, in which case TotalCount exceeds Count by the number of
// collisions.
func (w *WinnersTable) TotalCount(obsID int) int {
	w.mu.Lock()
	s, ok := w.shards[obsID]
	w.mu.Unlock()
	if !ok {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, bk := range s.buckets {
		total += bk.count
	}
	return total
}

// Average returns the accumulated average RGB at (srcRow, srcCol) for
// obsID.
func (w *WinnersTable) Average(obsID, srcRow, srcCol int) (r, g, b float32, ok bool) {
	w.mu.Lock()
	s, exists := w.shards[obsID]
	w.mu.Unlock()
	if !exists {
		return 0, 0, 0, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bk, exists := s.buckets[bucketKey{srcRow, srcCol}]
	if !exists {
		return 0, 0, 0, false
	}
	n := float64(bk.count)
	return float32(bk.sumR / n), float32(bk.sumG / n), float32(bk.sumB / n), true
}

// each calls fn for every (srcRow, srcCol, avgRGB) winner of obsID.
func (w *WinnersTable) each(obsID int, fn func(row, col int, r, g, b float32)) {
	w.mu.Lock()
	s, ok := w.shards[obsID]
	w.mu.Unlock()
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, bk := range s.buckets {
		n := float64(bk.count)
		fn(key.row, key.col, float32(bk.sumR/n), float32(bk.sumG/n), float32(bk.sumB/n))
	}
}

// BuildWinnersTable scans the backproject index and the stitched atlas,
// accumulating each valid texel's blended RGB into its (obs-id, src-row,
// src-col) bucket. Row-parallel across the pool; shard-level locking makes
// concurrent accumulation safe (spec §4.3 index format: band0=obs-id,
// band1=src-row, band2=src-col).
func BuildWinnersTable(index, blendedAtlas *raster.Image, pool *workpool.Pool) *WinnersTable {
	table := NewWinnersTable()
	pool.ForEach(index.Height, func(y int) error {
		for x := 0; x < index.Width; x++ {
			obsID := int(index.At(0, x, y))
			if obsID < obs.MinIndex {
				continue
			}
			srcRow := int(index.At(1, x, y))
			srcCol := int(index.At(2, x, y))
			table.Accumulate(obsID, srcRow, srcCol,
				blendedAtlas.At(0, x, y), blendedAtlas.At(1, x, y), blendedAtlas.At(2, x, y))
		}
		return nil
	})
	return table
}
