// Package density implements the decay, threshold, gap, and
// sporadicity-threshold computations of the D-Stream density engine
// (C6). It holds no registry state of its own; callers pass in the
// current grid count N and read back dm, dl, and gap.
package density

import (
	"math"

	"github.com/fidde/dstream/internal/grid"
)

// Params holds the user-tunable decay/threshold parameters (spec §6).
type Params struct {
	// Lambda is the decay factor, in (0.001, 0.999).
	Lambda float64
	// Cm > 1.001 controls the dense threshold.
	Cm float64
	// Cl in (0.001, 0.999) controls the sparse threshold.
	Cl float64
	// Beta > 0.001 is the sporadic hysteresis factor.
	Beta float64
	// PinnedGap, if > 0, overrides the derived gap.
	PinnedGap int64
}

// Engine computes decay updates and the N-dependent thresholds.
type Engine struct {
	params Params

	n    float64
	dm   float64
	dl   float64
	gap  int64
}

// New creates a density engine with the given parameters. N starts at
// 1 (refreshed by Recompute once the Stream Driver knows the grid
// space size).
func New(p Params) *Engine {
	e := &Engine{params: p, n: 1}
	e.Recompute(1)
	return e
}

// Params returns the configured parameters.
func (e *Engine) Params() Params { return e.params }

// N returns the grid-space size last passed to Recompute.
func (e *Engine) N() float64 { return e.n }

// Dm returns the current dense threshold.
func (e *Engine) Dm() float64 { return e.dm }

// Dl returns the current sparse threshold.
func (e *Engine) Dl() float64 { return e.dl }

// Gap returns the current clustering-cycle period, in ticks.
func (e *Engine) Gap() int64 { return e.gap }

// Recompute derives dm, dl, and gap (unless pinned) from a new grid
// count n, per spec §4.1. Must be called whenever the observed
// coordinate range grows.
func (e *Engine) Recompute(n float64) {
	if n < 1 {
		n = 1
	}
	e.n = n
	p := e.params
	denom := n * (1 - p.Lambda)
	e.dm = p.Cm / denom
	e.dl = p.Cl / denom

	if p.PinnedGap > 0 {
		e.gap = p.PinnedGap
		return
	}
	e.gap = derivedGap(n, p)
}

// derivedGap computes gap = floor(min(logλ(Cl/Cm), logλ((N-Cm)/(N-Cl)))),
// clamped to be >= 1 (spec §4.1).
func derivedGap(n float64, p Params) int64 {
	logLambda := math.Log(p.Lambda)

	a := math.Log(p.Cl/p.Cm) / logLambda

	var b float64
	denomB := n - p.Cl
	numB := n - p.Cm
	if denomB <= 0 || numB <= 0 {
		b = a
	} else {
		b = math.Log(numB/denomB) / logLambda
	}

	gap := math.Floor(math.Min(a, b))
	if gap < 1 || math.IsNaN(gap) || math.IsInf(gap, 0) {
		return 1
	}
	return int64(gap)
}

// Decay applies a density update at tick tc to a grid whose last
// update was at tg with density d. newRecord selects the "+1" branch
// (a record just landed in the grid) versus a bulk refresh.
//
//	newRecord: D <- lambda^(tc-tg) * D + 1
//	refresh:   D <- lambda^(tc-tg) * D
func (e *Engine) Decay(d float64, tg, tc int64, newRecord bool) float64 {
	decayed := math.Pow(e.params.Lambda, float64(tc-tg)) * d
	if newRecord {
		decayed += 1
	}
	return decayed
}

// Classify applies the threshold rule: Dense if d >= dm, Sparse if
// d <= dl, Transitional otherwise.
func (e *Engine) Classify(d float64) grid.Attribute {
	switch {
	case d >= e.dm:
		return grid.Dense
	case d <= e.dl:
		return grid.Sparse
	default:
		return grid.Transitional
	}
}

// Pi computes the time-dependent sporadicity threshold for a grid
// whose last update was at tg, evaluated at the current tick tc
// (spec §4.1): Cl * (1 - lambda^(tc-tg+1)) / (N * (1-lambda)).
func (e *Engine) Pi(tg, tc int64) float64 {
	p := e.params
	return p.Cl * (1 - math.Pow(p.Lambda, float64(tc-tg+1))) / (e.n * (1 - p.Lambda))
}
