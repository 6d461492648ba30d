// Package routing implements the route table: duplicate-free insertion,
// deterministic metric refresh, and loop-avoiding ranked lookup/match.
//
// Grounded on the teacher's internal/networking.TierManager: both
// maintain a map of ranked buckets behind a mutex and hand callers a
// defensively cloned view rather than internal slices.
package routing

import (
	"math"
	"sort"
	"sync"

	"github.com/sart-mesh/rntp/internal/quality"
	"github.com/sart-mesh/rntp/internal/wire"
)

// Route is one discovered path. Invariant: len(ChannelQualities) ==
// len(NodeIDs)-1. NodeIDs begins at the producer side and ends at the
// node holding the route; ChannelQualities[i] is the quality of the hop
// NodeIDs[i] -> NodeIDs[i+1].
type Route struct {
	ID               uint64
	HopCount         uint32
	NodeIDs          []wire.NodeID
	ChannelQualities []float64
	UpdateTime       float64
	Metric           float64
}

// clone returns a deep copy so callers can't mutate table-internal state.
func (r *Route) clone() *Route {
	if r == nil {
		return nil
	}
	c := *r
	c.NodeIDs = append([]wire.NodeID(nil), r.NodeIDs...)
	c.ChannelQualities = append([]float64(nil), r.ChannelQualities...)
	return &c
}

// sameNodeIDs reports whether two node-ID paths are element-wise identical.
func sameNodeIDs(a, b []wire.NodeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// group is a RoutesPerPair: all routes discovered for one (consumer,
// producer-prefix) pair.
type group struct {
	consumerNodeID wire.NodeID
	producerPrefix string
	routes         []*Route
	lastHitTime    float64
}

type pairKey struct {
	consumer wire.NodeID
	prefix   string
}

// Table is the per-node route table.
type Table struct {
	mu     sync.Mutex
	self   wire.NodeID
	groups map[pairKey]*group
	nextID uint64
}

// New constructs an empty route table for the given node.
func New(self wire.NodeID) *Table {
	return &Table{self: self, groups: make(map[pairKey]*group)}
}

// AddRoute inserts a route for (consumerID, prefix), creating the group if
// absent. A route whose NodeIDs matches an existing route element-wise is
// rejected, keeping the group duplicate-free. Returns the inserted (or
// rejected-against) route and whether it was newly inserted.
func (t *Table) AddRoute(prefix string, consumerID wire.NodeID, nodeIDs []wire.NodeID, qualities []float64) (*Route, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := pairKey{consumer: consumerID, prefix: prefix}
	g, ok := t.groups[key]
	if !ok {
		g = &group{consumerNodeID: consumerID, producerPrefix: prefix}
		t.groups[key] = g
	}
	for _, existing := range g.routes {
		if sameNodeIDs(existing.NodeIDs, nodeIDs) {
			return existing.clone(), false
		}
	}
	t.nextID++
	hopCount := 0
	if len(nodeIDs) > 0 {
		hopCount = len(nodeIDs) - 1
	}
	r := &Route{
		ID:               t.nextID,
		HopCount:         uint32(hopCount),
		NodeIDs:          append([]wire.NodeID(nil), nodeIDs...),
		ChannelQualities: append([]float64(nil), qualities...),
	}
	g.routes = append(g.routes, r)
	return r.clone(), true
}

// refreshMetricsLocked recomputes every route's metric in a group. A route
// with any hop at or below quality.Broken gets metric -1; otherwise the
// metric is the halved-exponent geometric mean of its hop qualities, which
// biases ranking toward longer-but-healthier routes.
func refreshMetricsLocked(g *group) {
	for _, r := range g.routes {
		broken := false
		product := 1.0
		for _, q := range r.ChannelQualities {
			if q <= quality.Broken {
				broken = true
				break
			}
			product *= q
		}
		switch {
		case broken:
			r.Metric = -1
		case r.HopCount == 0:
			r.Metric = 0
		default:
			r.Metric = math.Pow(product, 1/(2*float64(r.HopCount)))
		}
	}
}

// RefreshMetrics recomputes metrics for a (consumer, prefix) group. Metric
// refresh is deterministic given the hop-qualities snapshot.
func (t *Table) RefreshMetrics(consumerID wire.NodeID, prefix string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if g, ok := t.groups[pairKey{consumer: consumerID, prefix: prefix}]; ok {
		refreshMetricsLocked(g)
	}
}

// UpdateHopQuality implements quality.RouteNotifier: it sets the quality of
// hop (from -> to) to q wherever that hop appears in any route of any
// group.
func (t *Table) UpdateHopQuality(from, to wire.NodeID, q float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, g := range t.groups {
		for _, r := range g.routes {
			for i := 0; i+1 < len(r.NodeIDs); i++ {
				if r.NodeIDs[i] == from && r.NodeIDs[i+1] == to {
					r.ChannelQualities[i] = q
				}
			}
		}
	}
}

// LookupRoute implements ranked, loop-free lookup:
//  1. Refresh metrics for the group.
//  2. Build prevNodes from previousHopList (the path already traversed,
//     which must not include the current node).
//  3. Filter out routes whose NodeIDs intersect prevNodes.
//  4. Rank-sort the remainder by metric, descending; return index
//     rank mod n if rank >= n, else index rank. Returns (nil, false) if
//     the filtered set is empty.
func (t *Table) LookupRoute(consumerID wire.NodeID, prefix string, previousHopList []wire.NodeID, rank int) (*Route, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.groups[pairKey{consumer: consumerID, prefix: prefix}]
	if !ok {
		return nil, false
	}
	refreshMetricsLocked(g)

	prevNodes := make(map[wire.NodeID]struct{}, len(previousHopList))
	for _, id := range previousHopList {
		if id != t.self {
			prevNodes[id] = struct{}{}
		}
	}

	candidates := make([]*Route, 0, len(g.routes))
	for _, r := range g.routes {
		if routeIntersects(r, prevNodes) {
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Metric > candidates[j].Metric
	})
	n := len(candidates)
	idx := rank
	if rank >= n {
		idx = rank % n
	}
	if idx < 0 {
		idx = 0
	}
	return candidates[idx].clone(), true
}

// MatchRoute returns the route whose NodeIDs has partialNodeIDs as a
// prefix and whose hop qualities are all strictly above quality.Broken,
// used to keep a capsule on its current subpath when still viable.
// previousHopList applies the same loop-avoidance filter as LookupRoute.
func (t *Table) MatchRoute(consumerID wire.NodeID, prefix string, partialNodeIDs, previousHopList []wire.NodeID) (*Route, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	g, ok := t.groups[pairKey{consumer: consumerID, prefix: prefix}]
	if !ok {
		return nil, false
	}
	prevNodes := make(map[wire.NodeID]struct{}, len(previousHopList))
	for _, id := range previousHopList {
		if id != t.self {
			prevNodes[id] = struct{}{}
		}
	}
	for _, r := range g.routes {
		if routeIntersects(r, prevNodes) {
			continue
		}
		if !hasPrefix(r.NodeIDs, partialNodeIDs) {
			continue
		}
		allHealthy := true
		for _, q := range r.ChannelQualities {
			if q <= quality.Broken {
				allHealthy = false
				break
			}
		}
		if allHealthy {
			return r.clone(), true
		}
	}
	return nil, false
}

// NeighboursInGroup returns the distinct set of node IDs adjacent to self
// across every route of the (consumerID, prefix) group. A prior version of
// this routine used `!=` between two filters where `||` was intended,
// which silently matched nothing; here the filter explicitly keeps only
// the group whose (consumerNodeID, producerPrefix) equals the requested
// pair, scanning the table's full group list rather than indexing
// directly so the corrected condition stays visible at the call site.
func (t *Table) NeighboursInGroup(consumerID wire.NodeID, prefix string) []wire.NodeID {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[wire.NodeID]struct{})
	for _, g := range t.groups {
		if g.consumerNodeID != consumerID || g.producerPrefix != prefix {
			continue
		}
		for _, r := range g.routes {
			for i, id := range r.NodeIDs {
				if id == t.self {
					continue
				}
				if i > 0 && r.NodeIDs[i-1] == t.self {
					seen[id] = struct{}{}
				}
				if i+1 < len(r.NodeIDs) && r.NodeIDs[i+1] == t.self {
					seen[id] = struct{}{}
				}
			}
		}
	}
	out := make([]wire.NodeID, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	return out
}

// RouteView pairs a route with the (consumer, prefix) group it belongs
// to, for callers (internal/admin's dashboard snapshot) that enumerate
// every route without needing to know the table's internal grouping.
type RouteView struct {
	Prefix     string
	ConsumerID wire.NodeID
	Route      *Route
}

// AllRoutes returns a deep-cloned snapshot of every route across every
// group currently held by this table.
func (t *Table) AllRoutes() []RouteView {
	t.mu.Lock()
	defer t.mu.Unlock()

	var out []RouteView
	for _, g := range t.groups {
		for _, r := range g.routes {
			out = append(out, RouteView{Prefix: g.producerPrefix, ConsumerID: g.consumerNodeID, Route: r.clone()})
		}
	}
	return out
}

func routeIntersects(r *Route, prevNodes map[wire.NodeID]struct{}) bool {
	for _, id := range r.NodeIDs {
		if _, hit := prevNodes[id]; hit {
			return true
		}
	}
	return false
}

func hasPrefix(nodeIDs, partial []wire.NodeID) bool {
	if len(partial) > len(nodeIDs) {
		return false
	}
	for i, id := range partial {
		if nodeIDs[i] != id {
			return false
		}
	}
	return true
}
