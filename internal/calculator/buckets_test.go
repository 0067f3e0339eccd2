package calculator

import (
	"errors"
	"math"
	"testing"

	"geo-intersect/internal/models"
)

func TestDefaultThresholds(t *testing.T) {
	th := DefaultThresholds()
	want := []float64{2500, 625, 100, 25, 4, 1}
	if len(th) != len(want) {
		t.Fatalf("len = %d, want %d", len(th), len(want))
	}
	for i, w := range want {
		if th[i].RadiusSq != w || th[i].Index != i {
			t.Errorf("level %d = %+v, want {%v %d}", i, th[i], w, i)
		}
	}
	if err := th.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
	if th.MaxRadius() != 50 {
		t.Errorf("MaxRadius() = %v, want 50", th.MaxRadius())
	}
}

func TestThresholdsLevels(t *testing.T) {
	th := DefaultThresholds()
	tests := []struct {
		distSq float64
		want   int
	}{
		{0, 6},
		{0.25, 6},
		{1, 6},
		{1.0001, 5},
		{4, 5},
		{24.9, 4},
		{99, 3},
		{625, 2},
		{2500, 1},
		{2500.01, 0},
		{math.Inf(1), 0},
		{math.NaN(), 0},
	}
	for _, tt := range tests {
		if got := th.Levels(tt.distSq); got != tt.want {
			t.Errorf("Levels(%v) = %d, want %d", tt.distSq, got, tt.want)
		}
	}
}

func TestThresholdsValidate(t *testing.T) {
	tests := []struct {
		name string
		th   Thresholds
	}{
		{"empty", Thresholds{}},
		{"too many", append(DefaultThresholds(), Threshold{RadiusSq: 0.5, Index: 5})},
		{"not descending", Thresholds{{RadiusSq: 100, Index: 0}, {RadiusSq: 100, Index: 1}}},
		{"index out of range", Thresholds{{RadiusSq: 100, Index: 6}}},
		{"index not increasing", Thresholds{{RadiusSq: 100, Index: 1}, {RadiusSq: 50, Index: 0}}},
		{"zero radius", Thresholds{{RadiusSq: 0, Index: 0}}},
		{"nan radius", Thresholds{{RadiusSq: math.NaN(), Index: 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.th.Validate(); !errors.Is(err, ErrInvalidThresholds) {
				t.Errorf("Validate() = %v, want ErrInvalidThresholds", err)
			}
		})
	}
}

func TestAccumulateCreditsBothSides(t *testing.T) {
	th := DefaultThresholds()
	var outer, inner models.GeoPoint

	th.accumulate(&outer, &inner, th.Levels(9))
	th.accumulate(&outer, &inner, th.Levels(2000))

	want := [models.BucketCount]uint64{2, 1, 1, 1, 0, 0}
	if outer.Buckets != want {
		t.Errorf("outer buckets = %v, want %v", outer.Buckets, want)
	}
	if inner.Buckets != want {
		t.Errorf("inner buckets = %v, want %v", inner.Buckets, want)
	}
}

// Every level a pair reaches implies every larger level too.
func TestLevelsCascadeIsMonotone(t *testing.T) {
	th := DefaultThresholds()
	for d := 0.0; d < 3000; d += 0.37 {
		n := th.Levels(d)
		for i, level := range th {
			satisfied := d <= level.RadiusSq
			if (i < n) != satisfied {
				t.Fatalf("distSq %v: level %d satisfied=%v but cascade stopped at %d", d, i, satisfied, n)
			}
		}
	}
}
