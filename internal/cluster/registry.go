package cluster

import (
	"github.com/fidde/dstream/internal/grid"
	"github.com/fidde/dstream/internal/registry"
)

// Registry is the ordered list of grid clusters (C5). List index is
// the cluster label referenced by characteristic vectors.
type Registry struct {
	clusters []*Cluster
}

// NewRegistry creates an empty cluster registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Len returns the number of live clusters.
func (r *Registry) Len() int { return len(r.clusters) }

// Get returns the cluster at label, or nil if label is out of range.
func (r *Registry) Get(label int) *Cluster {
	if label < 0 || label >= len(r.clusters) {
		return nil
	}
	return r.clusters[label]
}

// All returns a snapshot slice of the live clusters, indexed by label.
func (r *Registry) All() []*Cluster {
	out := make([]*Cluster, len(r.clusters))
	copy(out, r.clusters)
	return out
}

// Clear removes every cluster from the registry, the way
// registry.Registry.Clear reassigns a fresh map rather than deleting
// entries one at a time.
func (r *Registry) Clear() {
	r.clusters = nil
}

// New allocates a fresh cluster at the next available label and
// returns it.
func (r *Registry) New() *Cluster {
	c := NewCluster(len(r.clusters))
	r.clusters = append(r.clusters, c)
	return c
}

// Merge absorbs the smaller-weighted of {a, b} into the larger,
// removes the absorbed cluster from the registry, decrements every
// subsequent label, and updates every affected characteristic vector
// in grids to match (spec §4.2, Merge(small, big)). Returns the
// surviving cluster's label.
func (r *Registry) Merge(grids *registry.Registry, a, b int) int {
	if a == b {
		return a
	}
	ca, cb := r.Get(a), r.Get(b)
	if ca == nil || cb == nil {
		panic("cluster: Merge referenced a non-existent cluster label")
	}

	small, big := ca, cb
	if small.Weight() > big.Weight() {
		small, big = big, small
	}
	smallLabel, bigLabel := small.Label, big.Label

	// (1) relabel every grid currently labelled small to big.
	for _, key := range small.Members() {
		if cv, ok := grids.Get(key); ok {
			cv.Label = bigLabel
		}
	}

	// (2) absorb small's members into big; new members start outside.
	big.Absorb(small)

	// (3)+(4) remove small from the registry, decrementing every
	// label above it and updating affected characteristic vectors.
	r.removeAndCompact(smallLabel, grids)

	return big.Label
}

// removeAndCompact deletes the cluster at index and decrements the
// label of every cluster after it, sweeping grids to keep each
// characteristic vector's Label consistent with its cluster's new
// index (spec §4.2, §8 property 5).
func (r *Registry) removeAndCompact(index int, grids *registry.Registry) {
	if index < 0 || index >= len(r.clusters) {
		return
	}
	r.clusters = append(r.clusters[:index], r.clusters[index+1:]...)

	for i := index; i < len(r.clusters); i++ {
		r.clusters[i].Label = i
		for _, key := range r.clusters[i].Members() {
			if cv, ok := grids.Get(key); ok {
				cv.Label = i
			}
		}
	}
}

// RemoveEmpty removes cluster label if it has no members, compacting
// subsequent labels. Returns true if a removal happened.
func (r *Registry) RemoveEmpty(label int, grids *registry.Registry) bool {
	c := r.Get(label)
	if c == nil || c.Weight() > 0 {
		return false
	}
	r.removeAndCompact(label, grids)
	return true
}

// RecomputeInside recomputes the inside/outside flag of every member
// of the cluster at label: a member is inside iff all of its 2d
// lattice neighbours are members of the same cluster (spec §3).
func (r *Registry) RecomputeInside(label int, grids *registry.Registry) {
	c := r.Get(label)
	if c == nil {
		return
	}
	for _, key := range c.Members() {
		cv, ok := grids.Get(key)
		if !ok {
			continue
		}
		inside := true
		grid.EachNeighbor(cv.Coord, func(nk grid.GridKey, _ grid.Coordinate) bool {
			if !c.Has(nk) {
				inside = false
				return false
			}
			return true
		})
		c.SetInside(key, inside)
	}
}
