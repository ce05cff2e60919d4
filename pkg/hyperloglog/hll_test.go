package hyperloglog

import (
	"fmt"
	"math"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name      string
		precision uint8
		wantM     uint32
	}{
		{"precision 10", 10, 1024},
		{"precision 12", 12, 4096},
		{"precision 14", 14, 16384},
		{"precision 16", 16, 65536},
		{"invalid low", 2, 16384},   // Should default to 14
		{"invalid high", 20, 16384}, // Should default to 14
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hll := New(tt.precision)
			if hll.m != tt.wantM {
				t.Errorf("New(%d) m = %d, want %d", tt.precision, hll.m, tt.wantM)
			}
			if len(hll.registers) != int(tt.wantM) {
				t.Errorf("New(%d) registers length = %d, want %d", tt.precision, len(hll.registers), tt.wantM)
			}
		})
	}
}

func TestAddAndCount(t *testing.T) {
	tests := []struct {
		name        string
		precision   uint8
		count       int
		maxErrorPct float64
	}{
		{"100 unique", 14, 100, 10.0},
		{"1000 unique", 14, 1000, 5.0},
		{"10000 unique", 14, 10000, 5.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hll := New(tt.precision)

			for i := 0; i < tt.count; i++ {
				hll.Add(fmt.Sprintf("value_%d", i))
			}

			estimate := hll.Count()
			errorPct := math.Abs(float64(estimate)-float64(tt.count)) / float64(tt.count) * 100

			t.Logf("Actual: %d, Estimate: %d, Error: %.2f%%", tt.count, estimate, errorPct)

			if errorPct > tt.maxErrorPct {
				t.Errorf("Error %.2f%% exceeds maximum %.2f%%", errorPct, tt.maxErrorPct)
			}
		})
	}
}

func TestDuplicates(t *testing.T) {
	hll := New(14)

	for i := 0; i < 1000; i++ {
		hll.Add("same_value")
	}

	estimate := hll.Count()
	if estimate > 10 {
		t.Errorf("Count() with duplicates = %d, want ~1", estimate)
	}
}

func BenchmarkAdd(b *testing.B) {
	hll := New(14)
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		hll.Add(fmt.Sprintf("value_%d", i))
	}
}

func BenchmarkCount(b *testing.B) {
	hll := New(14)

	for i := 0; i < 10000; i++ {
		hll.Add(fmt.Sprintf("value_%d", i))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = hll.Count()
	}
}
