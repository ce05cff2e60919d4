package grid

import "testing"

func TestNewCharacteristicVector(t *testing.T) {
	cv := NewCharacteristicVector(Coordinate{5}, 10, 0.1, 10.0)
	if cv.D != 0 {
		t.Errorf("expected D=0, got %g", cv.D)
	}
	if cv.Tm != -1 {
		t.Errorf("expected Tm=-1, got %d", cv.Tm)
	}
	if cv.Label != NoClass {
		t.Errorf("expected Label=NoClass, got %d", cv.Label)
	}
	if cv.Attr != Sparse {
		t.Errorf("expected fresh grid classified Sparse at D=0, got %v", cv.Attr)
	}
}

func TestDebugStringFormat(t *testing.T) {
	cv := NewCharacteristicVector(Coordinate{5}, 3, 0.1, 10.0)
	cv.AttrChanged = true
	s := cv.DebugString()
	want := "S 3 -1 0 -1 Normal CHANGED"
	if s != want {
		t.Errorf("DebugString() = %q, want %q", s, want)
	}

	cv.Status = true
	cv.AttrChanged = false
	s = cv.DebugString()
	want = "S 3 -1 0 -1 Sporadic"
	if s != want {
		t.Errorf("DebugString() = %q, want %q", s, want)
	}
}
