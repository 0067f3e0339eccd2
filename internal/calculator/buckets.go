package calculator

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"

	"geo-intersect/internal/models"
)

var ErrInvalidThresholds = errors.New("invalid distance thresholds")

// Threshold pairs a squared radius with the bucket it feeds.
type Threshold struct {
	RadiusSq float64
	Index    int
}

// Thresholds must be ordered by strictly decreasing RadiusSq, so that a
// distance failing level i fails every later level too.
type Thresholds []Threshold

// DefaultThresholds builds the list from models.RadiiKm.
func DefaultThresholds() Thresholds {
	t := make(Thresholds, models.BucketCount)
	for i, r := range models.RadiiKm {
		t[i] = Threshold{RadiusSq: r * r, Index: i}
	}
	return t
}

func (t Thresholds) Validate() error {
	if len(t) == 0 || len(t) > models.BucketCount {
		return fmt.Errorf("%w: need 1..%d levels, got %d", ErrInvalidThresholds, models.BucketCount, len(t))
	}
	for i, th := range t {
		if th.Index < 0 || th.Index >= models.BucketCount {
			return fmt.Errorf("%w: bucket index %d out of range", ErrInvalidThresholds, th.Index)
		}
		if !(th.RadiusSq > 0) {
			return fmt.Errorf("%w: radius squared %v at level %d", ErrInvalidThresholds, th.RadiusSq, i)
		}
		if i > 0 && th.RadiusSq >= t[i-1].RadiusSq {
			return fmt.Errorf("%w: level %d is not smaller than level %d", ErrInvalidThresholds, i, i-1)
		}
		if i > 0 && th.Index <= t[i-1].Index {
			return fmt.Errorf("%w: bucket indexes must increase, level %d", ErrInvalidThresholds, i)
		}
	}
	return nil
}

// MaxRadius is the window half-width the scanner needs.
func (t Thresholds) MaxRadius() float64 {
	return math.Sqrt(t[0].RadiusSq)
}

// Levels returns how many leading thresholds distSq satisfies. NaN satisfies none.
func (t Thresholds) Levels(distSq float64) int {
	for n, th := range t {
		if !(distSq <= th.RadiusSq) {
			return n
		}
	}
	return len(t)
}

// accumulate credits both sides of a matched pair for the first n levels.
// outer belongs to the calling worker; inner is shared with every worker.
func (t Thresholds) accumulate(outer, inner *models.GeoPoint, n int) {
	for _, th := range t[:n] {
		outer.Buckets[th.Index]++
		atomic.AddUint64(&inner.Buckets[th.Index], 1)
	}
}
