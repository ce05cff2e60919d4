// Package stream implements the Stream Driver (C9): the per-record
// ingestion loop, tick management, and dispatch to the clustering and
// sporadic components at gap boundaries.
package stream

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/fidde/dstream/internal/cluster"
	"github.com/fidde/dstream/internal/clustering"
	"github.com/fidde/dstream/internal/density"
	"github.com/fidde/dstream/internal/grid"
	"github.com/fidde/dstream/internal/registry"
	"github.com/fidde/dstream/internal/sporadic"
	"github.com/fidde/dstream/pkg/record"
)

// runCounter assigns each Driver a process-local, monotonically
// increasing run ID: a lighter substitute for a globally-unique one
// (spec.md carries no cross-restart persistence, so uniqueness beyond
// a single process run is never needed).
var runCounter int64

// ErrDimensionalityChanged is returned by Ingest when a record's
// attribute count differs from the one fixed on the first record
// (spec §7: fail the ingest rather than silently truncate).
var ErrDimensionalityChanged = errors.New("stream: record dimensionality changed after first record")

// state is the driver's lifecycle state (spec §4.4).
type state int

const (
	uninitialized state = iota
	running
)

// dimTracker tracks the observed coordinate extent of one dimension.
type dimTracker struct {
	numeric  bool
	min, max int64
	seen     bool
	nominal  int // count of distinct categories seen, for nominal dims
}

func (t *dimTracker) extent() float64 {
	if t.numeric {
		if !t.seen {
			return 1
		}
		return float64(t.max-t.min) + 1
	}
	if t.nominal < 1 {
		return 1
	}
	return float64(t.nominal)
}

// Driver owns the live engine state: the grid registry, the cluster
// registry, the density engine, and the dimension trackers. It
// serializes all access behind one mutex (spec §5: the core itself
// holds no internal locks; the driver is the embedder-facing boundary
// responsible for external serialization).
type Driver struct {
	mu sync.Mutex

	runID int64
	st    state
	d     int
	dims  []dimTracker
	tc    int64

	grids    *registry.Registry
	clusters *cluster.Registry
	dens     *density.Engine
	cl       *clustering.Engine
	spo      *sporadic.Detector
}

// New creates a driver with the given decay/threshold parameters. The
// driver stays UNINITIALIZED until the first call to Ingest fixes its
// dimensionality.
func New(p density.Params) *Driver {
	grids := registry.New()
	clusters := cluster.NewRegistry()
	dens := density.New(p)
	cl := clustering.New(grids, clusters, dens)
	spo := sporadic.New(grids, clusters, dens)
	return &Driver{
		runID:    atomic.AddInt64(&runCounter, 1),
		st:       uninitialized,
		grids:    grids,
		clusters: clusters,
		dens:     dens,
		cl:       cl,
		spo:      spo,
	}
}

// OnCycle installs the clustering-engine cycle hook (history sink).
func (dr *Driver) OnCycle(fn func(tc int64, summary clustering.CycleSummary)) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.cl.OnCycle = fn
}

// OnEvict installs the sporadic-eviction hook (event-log sink).
func (dr *Driver) OnEvict(fn func(coord grid.Coordinate, tc int64)) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.spo.OnEvict = fn
}

// RunID returns this driver's process-local run identifier, stamped
// on event-log rows so restarts don't appear to pick up where a prior
// run left off.
func (dr *Driver) RunID() int64 { return dr.runID }

// Reset clears all engine state: every live grid, every cluster, and
// the tick/dimensionality tracking fixed by the first Ingest call. The
// driver returns to UNINITIALIZED, ready to fix dimensionality afresh
// from its next record — mirrors the teacher's admin/clear reset, for
// test harnesses that need to run several scenarios against one
// driver instance.
func (dr *Driver) Reset() {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	dr.grids.Clear()
	dr.clusters.Clear()
	dr.tc = 0
	dr.d = 0
	dr.dims = nil
	dr.st = uninitialized
}

// Tick returns the current tick counter.
func (dr *Driver) Tick() int64 {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.tc
}

// Clusters returns, for every live cluster, its label and member grid
// keys (spec §6, getClusters()).
func (dr *Driver) Clusters() map[int][]grid.GridKey {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	out := make(map[int][]grid.GridKey)
	for _, c := range dr.clusters.All() {
		out[c.Label] = c.Members()
	}
	return out
}

// Grids returns a snapshot of every live characteristic vector.
func (dr *Driver) Grids() []*grid.CharacteristicVector {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	return dr.grids.List()
}

// Density exposes the density engine for diagnostics (N, dm, dl, gap).
func (dr *Driver) Density() *density.Engine {
	return dr.dens
}

// InclusionProbability reports 1.0 iff r maps to a grid currently a
// member of cluster label, else 0.0 (spec §6).
func (dr *Driver) InclusionProbability(r record.Record, label int) (float64, error) {
	dr.mu.Lock()
	defer dr.mu.Unlock()
	if dr.st != running {
		return 0, nil
	}
	if r.NumAttributes() != dr.d {
		return 0, fmt.Errorf("%w: have %d attributes, driver tracks %d", ErrDimensionalityChanged, r.NumAttributes(), dr.d)
	}
	coord := dr.coordinateFor(r)
	c := dr.clusters.Get(label)
	if c == nil {
		return 0, nil
	}
	if c.Has(coord.Key()) {
		return 1.0, nil
	}
	return 0.0, nil
}

// Ingest processes one record: maps it to a grid, recomputes N/dm/dl/
// gap if the observed range grew, applies a density update, and — at
// a gap boundary — dispatches to initial clustering or sporadic
// removal + incremental adjustment (spec §4.4).
func (dr *Driver) Ingest(r record.Record) error {
	dr.mu.Lock()
	defer dr.mu.Unlock()

	if dr.st == uninitialized {
		dr.fixDimensionality(r)
	} else if r.NumAttributes() != dr.d {
		return fmt.Errorf("%w: have %d attributes, first record had %d", ErrDimensionalityChanged, r.NumAttributes(), dr.d)
	}

	coord := dr.coordinateFor(r)
	if dr.growTrackers(r, coord) {
		dr.dens.Recompute(dr.spaceSize())
	}

	tc := dr.tc
	key := coord.Key()
	cv, ok := dr.grids.Get(key)
	if !ok {
		cv = grid.NewCharacteristicVector(coord, tc, dr.dens.Dl(), dr.dens.Dm())
		dr.grids.Store(key, cv)
	}
	before := cv.Attr
	cv.D = dr.dens.Decay(cv.D, cv.Tg, tc, true)
	cv.Tg = tc
	cv.Attr = dr.dens.Classify(cv.D)
	cv.AttrChanged = cv.Attr != before

	if tc != 0 && dr.dens.Gap() > 0 && tc%dr.dens.Gap() == 0 {
		if tc == dr.dens.Gap() {
			dr.cl.InitialClustering(tc)
		} else {
			dr.spo.Sweep(tc)
			dr.cl.IncrementalAdjust(tc)
		}
	}

	dr.tc++
	return nil
}

func (dr *Driver) fixDimensionality(r record.Record) {
	dr.d = r.NumAttributes()
	dr.dims = make([]dimTracker, dr.d)
	for i := 0; i < dr.d; i++ {
		dr.dims[i] = dimTracker{numeric: r.IsNumeric(i)}
	}
	dr.st = running
}

func (dr *Driver) coordinateFor(r record.Record) grid.Coordinate {
	coord := make(grid.Coordinate, dr.d)
	for i := 0; i < dr.d; i++ {
		if r.IsNumeric(i) {
			coord[i] = int64(math.Floor(r.Value(i)))
		} else {
			coord[i] = int64(r.IndexOfValue(i, r.StringValue(i)))
		}
	}
	return coord
}

// growTrackers updates min/max (numeric) and category count (nominal)
// for every dimension. Returns true iff any tracker's extent grew.
func (dr *Driver) growTrackers(r record.Record, coord grid.Coordinate) bool {
	grew := false
	for i := 0; i < dr.d; i++ {
		t := &dr.dims[i]
		if t.numeric {
			v := coord[i]
			if !t.seen {
				t.min, t.max, t.seen = v, v, true
				grew = true
				continue
			}
			if v < t.min {
				t.min = v
				grew = true
			}
			if v > t.max {
				t.max = v
				grew = true
			}
		} else {
			if n := r.NumValues(i); n > t.nominal {
				t.nominal = n
				grew = true
			}
		}
	}
	return grew
}

// spaceSize computes N, the size of the discretized grid space: the
// product of every dimension's observed extent.
func (dr *Driver) spaceSize() float64 {
	n := 1.0
	for i := range dr.dims {
		n *= dr.dims[i].extent()
	}
	return n
}
