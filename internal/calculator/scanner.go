package calculator

import (
	"math"
	"sort"

	"geo-intersect/internal/models"
)

// Scanner walks the sorted inner set with a cursor that only moves forward.
// Queries must arrive in non-decreasing Y order; one Scanner per partition.
type Scanner struct {
	points []models.GeoPoint
	radius float64
	lower  int
}

func NewScanner(inner *PointSet, radius float64) *Scanner {
	return &Scanner{points: inner.Points, radius: radius}
}

// Seek positions the cursor at the first point with Y >= y-radius by
// binary search. A NaN y rewinds to the start and leaves the work to Window.
func (s *Scanner) Seek(y float64) {
	if math.IsNaN(y) {
		s.lower = 0
		return
	}
	lowY := y - s.radius
	s.lower = sort.Search(len(s.points), func(i int) bool {
		return s.points[i].Y >= lowY
	})
}

// Window advances the cursor past points below y-radius and returns the
// half-open index range [lo, hi) of points with Y within radius of y.
// NaN coordinates sort first and are skipped by the cursor.
func (s *Scanner) Window(y float64) (lo, hi int) {
	if math.IsNaN(y) {
		return s.lower, s.lower
	}
	lowY, highY := y-s.radius, y+s.radius
	for s.lower < len(s.points) && !(s.points[s.lower].Y >= lowY) {
		s.lower++
	}
	hi = s.lower
	for hi < len(s.points) && s.points[hi].Y <= highY {
		hi++
	}
	return s.lower, hi
}

// Cursor reports the current lower bound.
func (s *Scanner) Cursor() int {
	return s.lower
}
