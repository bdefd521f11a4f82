package linear

import (
	"math"
	"testing"
)

func TestSlope(t *testing.T) {
	x := []float64{0, 1, 2, 3}
	y := []float64{1, 3, 5, 7}
	slope := Slope(x, y)
	if math.Abs(slope-2) > 1e-9 {
		t.Fatalf("expected slope 2, got %f", slope)
	}
}

func TestSlopeDegenerateInputs(t *testing.T) {
	if s := Slope([]float64{1}, []float64{2}); s != 0 {
		t.Fatalf("expected 0 for single point, got %f", s)
	}
	if s := Slope([]float64{2, 2, 2}, []float64{1, 5, 9}); s != 0 {
		t.Fatalf("expected 0 for zero x spread, got %f", s)
	}
}

func TestVarianceAndStdDev(t *testing.T) {
	values := []float64{2, 4, 4, 4, 5, 5, 7, 9}
	if v := Variance(values); math.Abs(v-4) > 1e-9 {
		t.Fatalf("expected variance 4, got %f", v)
	}
	if sd := StdDev(values); math.Abs(sd-2) > 1e-9 {
		t.Fatalf("expected stddev 2, got %f", sd)
	}
	if v := Variance(nil); v != 0 {
		t.Fatalf("expected 0 variance for empty input, got %f", v)
	}
}

func TestClamp(t *testing.T) {
	if c := Clamp(120, 0, 100); c != 100 {
		t.Fatalf("expected 100, got %f", c)
	}
	if c := Clamp(-5, 0, 100); c != 0 {
		t.Fatalf("expected 0, got %f", c)
	}
	if c := Clamp(42, 0, 100); c != 42 {
		t.Fatalf("expected 42, got %f", c)
	}
}
