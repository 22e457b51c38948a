package diffprop

import (
	"math"
	"testing"

	"github.com/banshee-data/landform-texture/internal/texture/raster"
	"github.com/banshee-data/landform-texture/internal/texture/workpool"
)

func TestWinnersTableAccumulatesAverage(t *testing.T) {
	w := NewWinnersTable()
	w.Accumulate(1000, 5, 7, 0.2, 0.4, 0.6)
	w.Accumulate(1000, 5, 7, 0.4, 0.6, 0.8)

	r, g, b, ok := w.Average(1000, 5, 7)
	if !ok {
		t.Fatal("expected bucket to exist")
	}
	const eps = 1e-6
	if math.Abs(float64(r)-0.3) > eps || math.Abs(float64(g)-0.5) > eps || math.Abs(float64(b)-0.7) > eps {
		t.Errorf("Average = (%v,%v,%v), want (0.3,0.5,0.7)", r, g, b)
	}
	if w.Count(1000) != 1 {
		t.Errorf("Count = %d, want 1 distinct bucket", w.Count(1000))
	}
}

func TestWinnersTableCountZeroForUnknownObservation(t *testing.T) {
	w := NewWinnersTable()
	if w.Count(42) != 0 {
		t.Error("expected Count 0 for an observation with no winners")
	}
	if _, _, _, ok := w.Average(42, 0, 0); ok {
		t.Error("expected Average to report ok=false for an unknown observation")
	}
}

func TestWinnersTableObservationIDsSorted(t *testing.T) {
	w := NewWinnersTable()
	w.Accumulate(2000, 0, 0, 0, 0, 0)
	w.Accumulate(1000, 0, 0, 0, 0, 0)
	w.Accumulate(1500, 0, 0, 0, 0, 0)

	got := w.ObservationIDs()
	want := []int{1000, 1500, 2000}
	if len(got) != len(want) {
		t.Fatalf("ObservationIDs = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ObservationIDs[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestBuildWinnersTableMatchesValidIndexTexelCount(t *testing.T) {
	// One atlas texel backprojects to observation 1000; the other carries
	// NoSource and must not contribute.
	index := raster.NewImage(2, 1, 3)
	index.Set(0, 0, 0, 1000)
	index.Set(1, 0, 0, 3)
	index.Set(2, 0, 0, 4)
	index.Set(0, 1, 0, -1) // NoSource

	atlas := raster.NewImage(2, 1, 3)
	atlas.Set(0, 0, 0, 0.5)
	atlas.Set(1, 0, 0, 0.5)
	atlas.Set(2, 0, 0, 0.5)

	pool := workpool.New(2)
	table := BuildWinnersTable(index, atlas, pool)

	if got := table.Count(1000); got != 1 {
		t.Errorf("Count(1000) = %d, want 1", got)
	}
	if got := table.TotalCount(1000); got != 1 {
		t.Errorf("TotalCount(1000) = %d, want 1", got)
	}
	if got := len(table.ObservationIDs()); got != 1 {
		t.Errorf("ObservationIDs has %d entries, want 1 (NoSource texel must not register)", got)
	}
}

func TestBuildWinnersTableMinificationCollidesOnOneSourcePixel(t *testing.T) {
	// Two atlas texels both backproject to the same (obs, src-row, src-col)
	// pixel of observation 1000, as happens under minification. Count must
	// report the single distinct pixel while TotalCount reports both
	// contributing texels.
	index := raster.NewImage(2, 1, 3)
	index.Set(0, 0, 0, 1000)
	index.Set(1, 0, 0, 3)
	index.Set(2, 0, 0, 4)
	index.Set(0, 1, 0, 1000)
	index.Set(1, 1, 0, 3)
	index.Set(2, 1, 0, 4)

	atlas := raster.NewImage(2, 1, 3)
	atlas.Set(0, 0, 0, 0.2)
	atlas.Set(1, 0, 0, 0.2)
	atlas.Set(2, 0, 0, 0.2)
	atlas.Set(0, 1, 0, 0.6)
	atlas.Set(1, 1, 0, 0.6)
	atlas.Set(2, 1, 0, 0.6)

	pool := workpool.New(2)
	table := BuildWinnersTable(index, atlas, pool)

	if got := table.Count(1000); got != 1 {
		t.Errorf("Count(1000) = %d, want 1 distinct source pixel", got)
	}
	if got := table.TotalCount(1000); got != 2 {
		t.Errorf("TotalCount(1000) = %d, want 2 contributing texels", got)
	}

	r, _, _, ok := table.Average(1000, 3, 4)
	if !ok {
		t.Fatal("expected averaged bucket to exist")
	}
	if r != 0.4 {
		t.Errorf("Average r = %v, want 0.4", r)
	}
}
