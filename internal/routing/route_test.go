package routing

import (
	"testing"

	"github.com/sart-mesh/rntp/internal/quality"
	"github.com/sart-mesh/rntp/internal/wire"
)

func TestAddRouteRejectsDuplicateNodeIDs(t *testing.T) {
	tbl := New(0)
	_, inserted := tbl.AddRoute("/video", 0, []wire.NodeID{2, 1, 0}, []float64{0.8, 0.9})
	if !inserted {
		t.Fatalf("first insert should succeed")
	}
	_, inserted = tbl.AddRoute("/video", 0, []wire.NodeID{2, 1, 0}, []float64{0.1, 0.1})
	if inserted {
		t.Fatalf("duplicate node-ID path should be rejected")
	}
}

func TestLookupRouteRanksDescendingByMetric(t *testing.T) {
	tbl := New(0)
	// Short, high-quality route.
	tbl.AddRoute("/video", 0, []wire.NodeID{1, 0}, []float64{0.9})
	// Longer, lower-quality route.
	tbl.AddRoute("/video", 0, []wire.NodeID{3, 2, 0}, []float64{0.3, 0.3})

	best, ok := tbl.LookupRoute(0, "/video", nil, 0)
	if !ok {
		t.Fatalf("expected a route")
	}
	if len(best.NodeIDs) != 2 || best.NodeIDs[0] != 1 {
		t.Fatalf("expected the single-hop high-quality route ranked first, got %+v", best)
	}

	second, ok := tbl.LookupRoute(0, "/video", nil, 1)
	if !ok || len(second.NodeIDs) != 3 {
		t.Fatalf("expected the two-hop route ranked second, got %+v", second)
	}

	// rank >= n wraps around via modulo.
	wrapped, ok := tbl.LookupRoute(0, "/video", nil, 2)
	if !ok || wrapped.ID != best.ID {
		t.Fatalf("expected rank 2 to wrap to index 0, got %+v", wrapped)
	}
}

func TestLookupRouteFiltersLoopingPaths(t *testing.T) {
	tbl := New(0)
	tbl.AddRoute("/video", 0, []wire.NodeID{1, 0}, []float64{0.9})
	tbl.AddRoute("/video", 0, []wire.NodeID{3, 2, 0}, []float64{0.3, 0.3})

	// previousHopList already contains node 1: any route touching node 1
	// would loop back on itself and must be filtered out.
	got, ok := tbl.LookupRoute(0, "/video", []wire.NodeID{1}, 0)
	if !ok || len(got.NodeIDs) != 3 {
		t.Fatalf("expected the loop-free two-hop route, got %+v ok=%v", got, ok)
	}
}

func TestBrokenHopForcesNegativeMetric(t *testing.T) {
	tbl := New(0)
	tbl.AddRoute("/video", 0, []wire.NodeID{1, 0}, []float64{0.9})
	tbl.UpdateHopQuality(1, 0, quality.Broken)

	tbl.RefreshMetrics(0, "/video")
	got, ok := tbl.LookupRoute(0, "/video", nil, 0)
	if !ok {
		t.Fatalf("expected a route even when broken")
	}
	if got.Metric != -1 {
		t.Fatalf("expected metric -1 for a broken-hop route, got %v", got.Metric)
	}
}

func TestBrokenLinkRerouting(t *testing.T) {
	// Scenario from the spec's worked examples: a direct route exists
	// alongside a longer alternate; when the direct hop breaks, lookup
	// must fall back to the alternate without the caller doing anything
	// beyond a fresh LookupRoute call.
	tbl := New(0)
	tbl.AddRoute("/video", 0, []wire.NodeID{1, 0}, []float64{0.95})
	tbl.AddRoute("/video", 0, []wire.NodeID{3, 2, 0}, []float64{0.5, 0.5})

	first, _ := tbl.LookupRoute(0, "/video", nil, 0)
	if len(first.NodeIDs) != 2 {
		t.Fatalf("expected direct route to win while healthy")
	}

	tbl.UpdateHopQuality(1, 0, quality.Broken)
	second, ok := tbl.LookupRoute(0, "/video", nil, 0)
	if !ok || len(second.NodeIDs) != 3 {
		t.Fatalf("expected reroute to the alternate path after break, got %+v", second)
	}
}

func TestMatchRouteRequiresHealthyPrefix(t *testing.T) {
	tbl := New(0)
	tbl.AddRoute("/video", 0, []wire.NodeID{3, 2, 0}, []float64{0.5, 0.5})

	got, ok := tbl.MatchRoute(0, "/video", []wire.NodeID{3, 2}, nil)
	if !ok || got.NodeIDs[0] != 3 {
		t.Fatalf("expected a healthy prefix match, got %+v ok=%v", got, ok)
	}

	tbl.UpdateHopQuality(2, 0, quality.Broken)
	_, ok = tbl.MatchRoute(0, "/video", []wire.NodeID{3, 2}, nil)
	if ok {
		t.Fatalf("expected no match once a hop in the path is broken")
	}
}

func TestNeighboursInGroup(t *testing.T) {
	tbl := New(0)
	tbl.AddRoute("/video", 0, []wire.NodeID{1, 0}, []float64{0.9})
	tbl.AddRoute("/video", 0, []wire.NodeID{3, 2, 0}, []float64{0.3, 0.3})

	neighbours := tbl.NeighboursInGroup(0, "/video")
	want := map[wire.NodeID]bool{1: true, 2: true}
	if len(neighbours) != len(want) {
		t.Fatalf("got %v, want keys of %v", neighbours, want)
	}
	for _, n := range neighbours {
		if !want[n] {
			t.Fatalf("unexpected neighbour %v", n)
		}
	}
}
