package registry

import (
	"testing"

	"github.com/fidde/dstream/internal/grid"
)

func TestStoreAndGet(t *testing.T) {
	r := New()
	coord := grid.Coordinate{1, 2}
	cv := grid.NewCharacteristicVector(coord, 0, 0.1, 10)
	r.Store(coord.Key(), cv)

	got, ok := r.Get(coord.Key())
	if !ok {
		t.Fatal("expected grid to be present")
	}
	if got != cv {
		t.Error("Get returned a different pointer than Store saved")
	}
}

func TestDeleteAndLen(t *testing.T) {
	r := New()
	coord := grid.Coordinate{1}
	r.Store(coord.Key(), grid.NewCharacteristicVector(coord, 0, 0.1, 10))
	if r.Len() != 1 {
		t.Fatalf("expected Len()=1, got %d", r.Len())
	}
	r.Delete(coord.Key())
	if r.Len() != 0 {
		t.Fatalf("expected Len()=0 after Delete, got %d", r.Len())
	}
	if _, ok := r.Get(coord.Key()); ok {
		t.Error("expected Get to report absence after Delete")
	}
}

func TestClearResetsRegistry(t *testing.T) {
	r := New()
	for i := int64(0); i < 3; i++ {
		coord := grid.Coordinate{i}
		r.Store(coord.Key(), grid.NewCharacteristicVector(coord, 0, 0.1, 10))
	}
	r.Clear()
	if r.Len() != 0 {
		t.Errorf("expected Len()=0 after Clear, got %d", r.Len())
	}
	if len(r.List()) != 0 {
		t.Errorf("expected empty List() after Clear")
	}
}

func TestListIsSnapshot(t *testing.T) {
	r := New()
	coord := grid.Coordinate{1}
	r.Store(coord.Key(), grid.NewCharacteristicVector(coord, 0, 0.1, 10))

	list := r.List()
	r.Store(grid.Coordinate{2}.Key(), grid.NewCharacteristicVector(grid.Coordinate{2}, 0, 0.1, 10))
	if len(list) != 1 {
		t.Errorf("List() snapshot should not observe later Store, got len %d", len(list))
	}
}
