package grid

import "fmt"

// CharacteristicVector is the mutable metadata bundle attached to a
// grid (C2): (tg, tm, D, label, status, attribute, attChanged).
//
// The engine is single-threaded per spec (stream.Driver serializes all
// mutating access behind one mutex), so unlike the teacher's
// AttributeMetadata this struct carries no lock of its own.
type CharacteristicVector struct {
	Coord Coordinate

	// Tg is the tick of the last density update.
	Tg int64
	// Tm is the tick of the last deletion-as-sporadic, or -1 if the
	// grid has never been deleted.
	Tm int64
	// D is the decayed density, always >= 0.
	D float64
	// Label is the owning cluster's index, or NoClass.
	Label int
	// Status is true iff the grid is currently flagged sporadic.
	Status bool
	// Attr is the classification cached at the last density update.
	Attr Attribute
	// AttrChanged is true iff the most recent density update moved
	// Attr to a different value than it held immediately before that
	// update. Only density-driven transitions set this; label and
	// sporadic-status changes never touch it.
	AttrChanged bool
}

// NewCharacteristicVector creates the characteristic vector for a
// grid's first-ever record: D=0, tg=tc, label=NoClass, status=false,
// tm=-1, attribute recomputed against the thresholds in effect.
func NewCharacteristicVector(coord Coordinate, tc int64, dl, dm float64) *CharacteristicVector {
	cv := &CharacteristicVector{
		Coord: coord,
		Tg:    tc,
		Tm:    -1,
		D:     0,
		Label: NoClass,
	}
	cv.Attr = classify(cv.D, dl, dm)
	return cv
}

// classify applies the threshold rule from spec §4.1.
func classify(d, dl, dm float64) Attribute {
	switch {
	case d >= dm:
		return Dense
	case d <= dl:
		return Sparse
	default:
		return Transitional
	}
}

// DebugString renders the informational wire format from spec §6:
// "<A> <tg> <tm> <D> <class> <Sporadic|Normal> [CHANGED]".
func (cv *CharacteristicVector) DebugString() string {
	status := "Normal"
	if cv.Status {
		status = "Sporadic"
	}
	s := fmt.Sprintf("%s %d %d %g %d %s", cv.Attr.String(), cv.Tg, cv.Tm, cv.D, cv.Label, status)
	if cv.AttrChanged {
		s += " CHANGED"
	}
	return s
}
