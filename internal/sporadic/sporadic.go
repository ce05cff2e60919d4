// Package sporadic implements the Sporadic Detector (C8): the
// per-cycle sweep that flags low-density grids and evicts them once
// they have stayed sparse long enough, with a β-hysteresis window
// against flapping.
package sporadic

import (
	"log/slog"

	"github.com/fidde/dstream/internal/cluster"
	"github.com/fidde/dstream/internal/density"
	"github.com/fidde/dstream/internal/grid"
	"github.com/fidde/dstream/internal/registry"
)

// Detector runs the sporadic sweep over a grid registry and the
// cluster registry its members may belong to.
type Detector struct {
	grids    *registry.Registry
	clusters *cluster.Registry
	dens     *density.Engine

	// OnEvict, if set, is called for every grid deleted as sporadic —
	// the ambient hook wired to internal/eventlog's transition audit
	// log (see SPEC_FULL §5.5).
	OnEvict func(coord grid.Coordinate, tc int64)
}

// New creates a sporadic detector over the given registries.
func New(grids *registry.Registry, clusters *cluster.Registry, dens *density.Engine) *Detector {
	return &Detector{grids: grids, clusters: clusters, dens: dens}
}

// Sweep runs one sporadic-detection cycle at tick tc (spec §4.3).
// Grids already flagged sporadic and past their grace period are
// evicted; everything else has its sporadic flag re-evaluated.
func (d *Detector) Sweep(tc int64) {
	evicted := 0
	for _, cv := range d.grids.List() {
		if cv.Status {
			if tc-cv.Tg > d.dens.Gap() {
				d.evict(cv, tc)
				evicted++
				continue
			}
			cv.Status = d.sporadic(cv, tc)
			continue
		}
		if d.sporadic(cv, tc) {
			cv.Status = true
		}
	}
	slog.Info("sporadic sweep complete", "tick", tc, "grids_removed", evicted)
}

// sporadic evaluates S1 ∧ S2 (spec §4.3). S2 holds trivially for a
// grid that has never been deleted (Tm == -1), per the stated rule
// rather than the source's inconsistent never-sporadic treatment
// (spec §9 Open Questions).
func (d *Detector) sporadic(cv *grid.CharacteristicVector, tc int64) bool {
	s1 := cv.D < d.dens.Pi(cv.Tg, tc)
	s2 := cv.Tm == -1 || float64(tc) >= (1+d.dens.Params().Beta)*float64(cv.Tm)
	return s1 && s2
}

func (d *Detector) evict(cv *grid.CharacteristicVector, tc int64) {
	key := cv.Coord.Key()
	if cv.Label != grid.NoClass {
		if c := d.clusters.Get(cv.Label); c != nil {
			c.Remove(key)
			d.clusters.RecomputeInside(c.Label, d.grids)
			d.clusters.RemoveEmpty(c.Label, d.grids)
		}
	}
	cv.Tm = tc
	d.grids.Delete(key)
	if d.OnEvict != nil {
		d.OnEvict(cv.Coord, tc)
	}
}
