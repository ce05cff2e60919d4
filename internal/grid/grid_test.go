package grid

import "testing"

func TestCoordinateKeyUniqueness(t *testing.T) {
	a := Coordinate{1, 2, 3}
	b := Coordinate{1, 2, 3}
	c := Coordinate{1, 23, 3}

	if a.Key() != b.Key() {
		t.Errorf("equal coordinates produced different keys: %q vs %q", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Errorf("distinct coordinates collided on key %q", a.Key())
	}
}

func TestCoordinateCloneIndependence(t *testing.T) {
	a := Coordinate{1, 2}
	b := a.Clone()
	b[0] = 99
	if a[0] == 99 {
		t.Error("Clone shared backing array with original")
	}
}

func TestNeighborCount(t *testing.T) {
	coord := Coordinate{5, 5, 5}
	neighbors := Neighbors(coord)
	if len(neighbors) != 2*len(coord) {
		t.Errorf("expected %d neighbours, got %d", 2*len(coord), len(neighbors))
	}

	seen := make(map[GridKey]bool)
	for _, k := range neighbors {
		if seen[k] {
			t.Errorf("duplicate neighbour key %q", k)
		}
		seen[k] = true
	}
}

func TestEachNeighborEarlyStop(t *testing.T) {
	coord := Coordinate{0, 0}
	visited := 0
	EachNeighbor(coord, func(GridKey, Coordinate) bool {
		visited++
		return false
	})
	if visited != 1 {
		t.Errorf("expected early stop after 1 visit, got %d", visited)
	}
}

func TestAttributeString(t *testing.T) {
	cases := map[Attribute]string{Dense: "D", Transitional: "T", Sparse: "S"}
	for attr, want := range cases {
		if got := attr.String(); got != want {
			t.Errorf("Attribute(%d).String() = %q, want %q", attr, got, want)
		}
	}
}
