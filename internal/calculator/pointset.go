package calculator

import (
	"cmp"
	"slices"

	"geo-intersect/internal/models"
)

// PointSet is a slice of projected points sorted by (Y, X, ID).
// Once built it is never reordered; only the bucket counters change.
type PointSet struct {
	Name   string
	Points []models.GeoPoint
}

// NewPointSet projects the records and sorts them.
func NewPointSet(name string, records []models.Record, proj Projection) *PointSet {
	points := make([]models.GeoPoint, len(records))
	for i, r := range records {
		p := &points[i]
		p.ID = r.ID
		p.Loc = r.Loc
		p.LngKm = proj.LngScale(r.Loc.Lat)
		p.X = r.Loc.Lon * p.LngKm
		p.Y = r.Loc.Lat * proj.KmPerLat
	}
	slices.SortStableFunc(points, comparePoints)
	return &PointSet{Name: name, Points: points}
}

// comparePoints is a total order so ties resolve the same way on every run.
func comparePoints(a, b models.GeoPoint) int {
	if c := cmp.Compare(a.Y, b.Y); c != 0 {
		return c
	}
	if c := cmp.Compare(a.X, b.X); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

func (s *PointSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Points)
}

// Reset zeroes every bucket counter.
func (s *PointSet) Reset() {
	for i := range s.Points {
		s.Points[i].Buckets = [models.BucketCount]uint64{}
	}
}

// Totals sums each bucket level over the whole set.
func (s *PointSet) Totals() [models.BucketCount]uint64 {
	var t [models.BucketCount]uint64
	for i := range s.Points {
		for d, n := range s.Points[i].Buckets {
			t[d] += n
		}
	}
	return t
}

// Rows returns the writer records in sorted order.
func (s *PointSet) Rows() []models.ResultRow {
	rows := make([]models.ResultRow, len(s.Points))
	for i := range s.Points {
		rows[i] = s.Points[i].Row()
	}
	return rows
}
