// Package clustering implements the Clustering Engine (C7): initial
// clustering, incremental adjustment, and the label-propagation
// fixpoint, generalized from the teacher's online tree-clustering
// miner (internal/analyzer/autotemplate/miner.go) to a grid lattice.
package clustering

import (
	"log/slog"
	"sort"

	"github.com/fidde/dstream/internal/cluster"
	"github.com/fidde/dstream/internal/density"
	"github.com/fidde/dstream/internal/grid"
	"github.com/fidde/dstream/internal/registry"
)

// Engine mutates the grid registry and cluster registry it is given;
// it owns no state of its own beyond the density engine reference.
type Engine struct {
	grids    *registry.Registry
	clusters *cluster.Registry
	dens     *density.Engine

	// OnCycle, if set, is invoked after every clustering cycle with the
	// tick and a short summary — the ambient observability hook wired
	// to internal/history (see SPEC_FULL §5.4).
	OnCycle func(tc int64, summary CycleSummary)
}

// CycleSummary describes what a clustering cycle did, for the
// optional history/event-log sinks.
type CycleSummary struct {
	GridsRefreshed int
	ClustersLive   int
}

// New creates a clustering engine over the given registries and
// density engine.
func New(grids *registry.Registry, clusters *cluster.Registry, dens *density.Engine) *Engine {
	return &Engine{grids: grids, clusters: clusters, dens: dens}
}

// InitialClustering runs the one-time bulk clustering pass executed at
// tc == gap (spec §4.2): bulk-refresh, allocate a cluster per dense
// grid, then run the label-propagation fixpoint.
func (e *Engine) InitialClustering(tc int64) {
	e.bulkRefresh(tc)

	for _, cv := range e.sortedSnapshot() {
		if cv.Attr == grid.Dense {
			c := e.clusters.New()
			c.Add(cv.Coord.Key())
			cv.Label = c.Label
		} else {
			cv.Label = grid.NoClass
		}
	}
	for _, c := range e.clusters.All() {
		e.clusters.RecomputeInside(c.Label, e.grids)
	}

	e.labelPropagationFixpoint()
	e.emitCycle(tc)
}

// IncrementalAdjust runs the per-cycle adjustment pass (spec §4.2),
// invoked every gap ticks after the first, immediately after sporadic
// removal: bulk-refresh, then react to every grid whose attribute just
// changed.
func (e *Engine) IncrementalAdjust(tc int64) {
	e.bulkRefresh(tc)

	for _, cv := range e.sortedSnapshot() {
		if !cv.AttrChanged {
			continue
		}
		switch cv.Attr {
		case grid.Sparse:
			e.handleSparse(cv)
		case grid.Dense:
			e.handleDense(cv)
		case grid.Transitional:
			e.handleTransitional(cv)
		}
	}
	e.emitCycle(tc)
}

func (e *Engine) emitCycle(tc int64) {
	summary := CycleSummary{
		GridsRefreshed: e.grids.Len(),
		ClustersLive:   e.clusters.Len(),
	}
	slog.Info("clustering cycle complete", "tick", tc, "grids_refreshed", summary.GridsRefreshed, "clusters_live", summary.ClustersLive)
	if e.OnCycle != nil {
		e.OnCycle(tc, summary)
	}
}

// bulkRefresh applies a no-new-record density update to every live,
// non-sporadic-flagged grid via the density engine, setting
// AttrChanged against the attribute each grid held immediately before
// this refresh. Grids already flagged sporadic are skipped: their `tg`
// is left untouched so the sporadic detector can measure genuine
// elapsed time since their last real update against `gap` — refreshing
// it here every cycle would keep `tc - tg` pinned at exactly `gap` and
// the age-based eviction rule could never fire.
func (e *Engine) bulkRefresh(tc int64) {
	for _, cv := range e.grids.List() {
		if cv.Status {
			cv.AttrChanged = false
			continue
		}
		before := cv.Attr
		cv.D = e.dens.Decay(cv.D, cv.Tg, tc, false)
		cv.Tg = tc
		cv.Attr = e.dens.Classify(cv.D)
		cv.AttrChanged = cv.Attr != before
	}
}

func (e *Engine) sortedSnapshot() []*grid.CharacteristicVector {
	list := e.grids.List()
	sort.Slice(list, func(i, j int) bool {
		return list[i].Coord.Key() < list[j].Coord.Key()
	})
	return list
}

// removeFromCluster removes cv from its current cluster (if any),
// recomputes inside/outside for the remainder, compacts the cluster
// registry if the cluster is now empty, and sets cv.Label to NoClass.
func (e *Engine) removeFromCluster(cv *grid.CharacteristicVector) {
	if cv.Label == grid.NoClass {
		return
	}
	c := e.clusters.Get(cv.Label)
	if c != nil {
		c.Remove(cv.Coord.Key())
		e.clusters.RecomputeInside(c.Label, e.grids)
		e.clusters.RemoveEmpty(c.Label, e.grids)
	}
	cv.Label = grid.NoClass
}

func (e *Engine) handleSparse(cv *grid.CharacteristicVector) {
	e.removeFromCluster(cv)
}

// chooseMaxNeighborCluster finds, among coord's registry-present
// neighbours, the one whose cluster has maximum weight, excluding
// NoClass neighbours and neighbours already in excludeLabel. Ties go
// to the first-seen neighbour in enumeration order (spec §4.2).
func (e *Engine) chooseMaxNeighborCluster(coord grid.Coordinate, excludeLabel int) (key grid.GridKey, cv *grid.CharacteristicVector, c *cluster.Cluster, found bool) {
	bestWeight := -1
	grid.EachNeighbor(coord, func(nk grid.GridKey, _ grid.Coordinate) bool {
		ncv, ok := e.grids.Get(nk)
		if !ok || ncv.Label == grid.NoClass {
			return true
		}
		if excludeLabel != grid.NoClass && ncv.Label == excludeLabel {
			return true
		}
		nc := e.clusters.Get(ncv.Label)
		if nc == nil {
			return true
		}
		if nc.Weight() > bestWeight {
			bestWeight = nc.Weight()
			key, cv, c, found = nk, ncv, nc, true
		}
		return true
	})
	return
}

// outsideGivenMembership reports whether a grid at coord would have
// at least one neighbour absent from c, treating extra (if non-empty)
// as already a member of c in addition to c's real members. Used both
// to test "would g remain outside ch" and "would adding g leave h
// outside ch" (spec §4.2).
func outsideGivenMembership(coord grid.Coordinate, c *cluster.Cluster, extra grid.GridKey) bool {
	outside := false
	grid.EachNeighbor(coord, func(nk grid.GridKey, _ grid.Coordinate) bool {
		if extra != "" && nk == extra {
			return true
		}
		if !c.Has(nk) {
			outside = true
			return false
		}
		return true
	})
	return outside
}

func (e *Engine) handleDense(cv *grid.CharacteristicVector) {
	h, hcv, ch, found := e.chooseMaxNeighborCluster(cv.Coord, cv.Label)
	if !found {
		if cv.Label == grid.NoClass {
			c := e.clusters.New()
			c.Add(cv.Coord.Key())
			cv.Label = c.Label
			e.clusters.RecomputeInside(c.Label, e.grids)
		}
		return
	}

	switch hcv.Attr {
	case grid.Dense:
		if cv.Label == grid.NoClass {
			ch.Add(cv.Coord.Key())
			cv.Label = ch.Label
			e.clusters.RecomputeInside(ch.Label, e.grids)
		} else if cv.Label != ch.Label {
			newLabel := e.clusters.Merge(e.grids, cv.Label, ch.Label)
			e.clusters.RecomputeInside(newLabel, e.grids)
		}
	case grid.Transitional:
		switch {
		case cv.Label == grid.NoClass && outsideGivenMembership(hcv.Coord, ch, cv.Coord.Key()):
			ch.Add(cv.Coord.Key())
			cv.Label = ch.Label
			e.clusters.RecomputeInside(ch.Label, e.grids)
		case cv.Label != grid.NoClass:
			c := e.clusters.Get(cv.Label)
			if c != nil && c.Label != ch.Label && c.Weight() >= ch.Weight() {
				ch.Remove(h)
				c.Add(h)
				hcv.Label = c.Label
				e.clusters.RecomputeInside(ch.Label, e.grids)
				e.clusters.RecomputeInside(c.Label, e.grids)
				e.clusters.RemoveEmpty(ch.Label, e.grids)
			}
		}
	}
}

func (e *Engine) handleTransitional(cv *grid.CharacteristicVector) {
	bestWeight := -1
	var chosen *cluster.Cluster

	grid.EachNeighbor(cv.Coord, func(nk grid.GridKey, _ grid.Coordinate) bool {
		ncv, ok := e.grids.Get(nk)
		if !ok || ncv.Label == grid.NoClass || ncv.Label == cv.Label {
			return true
		}
		nc := e.clusters.Get(ncv.Label)
		if nc == nil || !outsideGivenMembership(cv.Coord, nc, "") {
			return true
		}
		if nc.Weight() > bestWeight {
			bestWeight = nc.Weight()
			chosen = nc
		}
		return true
	})

	e.removeFromCluster(cv)
	if chosen != nil {
		chosen.Add(cv.Coord.Key())
		cv.Label = chosen.Label
		e.clusters.RecomputeInside(chosen.Label, e.grids)
		return
	}

	c := e.clusters.New()
	c.Add(cv.Coord.Key())
	cv.Label = c.Label
	e.clusters.RecomputeInside(c.Label, e.grids)
}

// labelPropagationFixpoint repeatedly runs propagationPass until a
// full pass makes no change (spec §4.2).
func (e *Engine) labelPropagationFixpoint() {
	for e.propagationPass() {
	}
}

// propagationPass performs at most one mutation then returns — the
// registries are restructured by merges/assignments mid-pass, so
// continuing to iterate a stale snapshot is unsafe (spec §4.2, §9).
func (e *Engine) propagationPass() bool {
	for _, c := range e.clusters.All() {
		for _, key := range c.Members() {
			if c.Inside(key) {
				continue
			}
			cv, ok := e.grids.Get(key)
			if !ok {
				continue
			}
			if e.propagateFrom(c, cv) {
				return true
			}
		}
	}
	return false
}

func (e *Engine) propagateFrom(c *cluster.Cluster, cv *grid.CharacteristicVector) bool {
	changed := false
	grid.EachNeighbor(cv.Coord, func(nk grid.GridKey, _ grid.Coordinate) bool {
		ncv, ok := e.grids.Get(nk)
		if !ok {
			return true
		}
		switch {
		case ncv.Label != grid.NoClass && ncv.Label != c.Label:
			newLabel := e.clusters.Merge(e.grids, c.Label, ncv.Label)
			e.clusters.RecomputeInside(newLabel, e.grids)
			changed = true
			return false
		case ncv.Label == grid.NoClass && ncv.Attr == grid.Transitional:
			c.Add(nk)
			ncv.Label = c.Label
			e.clusters.RecomputeInside(c.Label, e.grids)
			changed = true
			return false
		}
		return true
	})
	return changed
}
