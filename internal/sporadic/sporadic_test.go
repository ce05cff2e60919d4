package sporadic

import (
	"testing"

	"github.com/fidde/dstream/internal/cluster"
	"github.com/fidde/dstream/internal/density"
	"github.com/fidde/dstream/internal/grid"
	"github.com/fidde/dstream/internal/registry"
)

func newFixture() (*registry.Registry, *cluster.Registry, *density.Engine, *Detector) {
	grids := registry.New()
	clusters := cluster.NewRegistry()
	dens := density.New(density.Params{Lambda: 0.998, Cm: 3.0, Cl: 0.8, Beta: 0.3, PinnedGap: 100})
	dens.Recompute(10)
	return grids, clusters, dens, New(grids, clusters, dens)
}

func TestSweepFlagsLowDensityGrid(t *testing.T) {
	grids, _, dens, det := newFixture()

	cv := grid.NewCharacteristicVector(grid.Coordinate{1}, 0, dens.Dl(), dens.Dm())
	cv.D = 0
	grids.Store(cv.Coord.Key(), cv)

	det.Sweep(200)

	if !cv.Status {
		t.Error("expected a long-idle near-zero-density grid to be flagged sporadic")
	}
}

func TestSweepEvictsAfterGracePeriod(t *testing.T) {
	grids, _, dens, det := newFixture()

	cv := grid.NewCharacteristicVector(grid.Coordinate{1}, 0, dens.Dl(), dens.Dm())
	cv.D = 0
	cv.Status = true
	cv.Tm = -1
	grids.Store(cv.Coord.Key(), cv)

	det.Sweep(300) // tc - tg (300-0) > gap (100)

	if _, ok := grids.Get(cv.Coord.Key()); ok {
		t.Error("expected the grid to be evicted once past its grace period")
	}
}

func TestSweepRemovesEvictedGridFromCluster(t *testing.T) {
	grids, clusters, dens, det := newFixture()

	cv := grid.NewCharacteristicVector(grid.Coordinate{1}, 0, dens.Dl(), dens.Dm())
	cv.D = 0
	cv.Status = true
	c := clusters.New()
	c.Add(cv.Coord.Key())
	cv.Label = c.Label
	grids.Store(cv.Coord.Key(), cv)

	det.Sweep(300)

	if clusters.Len() != 0 {
		t.Errorf("expected the now-empty cluster to be removed, got %d clusters", clusters.Len())
	}
}

func TestSweepDoesNotEvictFreshSporadicGrid(t *testing.T) {
	grids, _, dens, det := newFixture()

	cv := grid.NewCharacteristicVector(grid.Coordinate{1}, 0, dens.Dl(), dens.Dm())
	cv.D = 0
	cv.Status = true
	grids.Store(cv.Coord.Key(), cv)

	det.Sweep(50) // tc - tg (50) <= gap (100): still within grace period

	if _, ok := grids.Get(cv.Coord.Key()); !ok {
		t.Error("grid should not be evicted before its grace period elapses")
	}
}

func TestSweepHysteresisBlocksImmediateReflagging(t *testing.T) {
	grids, _, dens, det := newFixture()

	cv := grid.NewCharacteristicVector(grid.Coordinate{1}, 0, dens.Dl(), dens.Dm())
	cv.D = 0
	cv.Tm = 100 // was deleted (as a different grid reinsertion) at tick 100

	grids.Store(cv.Coord.Key(), cv)

	// S2 requires tc >= (1+beta)*tm = 1.3*100 = 130; at tc=110 S2 fails.
	det.Sweep(110)
	if cv.Status {
		t.Error("expected hysteresis to block sporadic flagging before (1+beta)*tm")
	}
}
