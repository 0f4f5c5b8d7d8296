package internaldefs

import (
	"strconv"
	"testing"

	"github.com/ledgerlane/sessionkit"
)

func TestEveryCounterDefined(t *testing.T) {
	seen := make(map[sessionkit.MetricID]bool)
	names := make(map[string]bool)
	for _, d := range CounterDefs {
		if seen[d.ID] || names[d.Name] {
			t.Fatalf("duplicate definition %+v", d)
		}
		seen[d.ID] = true
		names[d.Name] = true
	}
	for _, d := range HistogramDefs {
		seen[d.ID] = true
	}
	if len(seen) != sessionkit.MetricCount {
		t.Fatalf("expected %d metrics defined, got %d", sessionkit.MetricCount, len(seen))
	}
}

func TestBoundsMatchCore(t *testing.T) {
	core := sessionkit.LatencyBucketBounds()
	if len(HistogramBounds) != len(core)+1 || len(HistogramBoundSuffix) != len(HistogramBounds) {
		t.Fatalf("bucket count mismatch")
	}
	for i, d := range core {
		want, _ := strconv.ParseFloat(HistogramBounds[i], 64)
		if d.Seconds() != want {
			t.Fatalf("bound %d: core %v, exported %s", i, d, HistogramBounds[i])
		}
	}
}

func TestCumulativeBuckets(t *testing.T) {
	got := CumulativeBuckets(NormalizeBuckets([]uint64{1, 2, 3}))
	want := [8]uint64{1, 3, 6, 6, 6, 6, 6, 6}
	if got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
