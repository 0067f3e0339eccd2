package calculator

import (
	"math"
	"math/rand"

	"geo-intersect/internal/models"
)

// randomRecords scatters n points around a centre so that many pairs land in
// every bucket.
func randomRecords(seed int64, n int, lat, lng, spreadDeg float64, firstID uint64) []models.Record {
	rnd := rand.New(rand.NewSource(seed))
	out := make([]models.Record, n)
	for i := range out {
		out[i] = models.Record{
			ID: firstID + uint64(i),
			Loc: models.Coordinate{
				Lat: lat + (rnd.Float64()*2-1)*spreadDeg,
				Lon: lng + (rnd.Float64()*2-1)*spreadDeg,
			},
		}
	}
	return out
}

func bucketsByID(s *PointSet) map[uint64][models.BucketCount]uint64 {
	m := make(map[uint64][models.BucketCount]uint64, s.Len())
	for _, p := range s.Points {
		m[p.ID] = p.Buckets
	}
	return m
}

// bruteForce is the O(n*m) reference join using the same pair arithmetic as
// scanPartition.
func bruteForce(outer, inner *PointSet) {
	thresholds := DefaultThresholds()
	radius := thresholds.MaxRadius()
	for qi := range outer.Points {
		q := &outer.Points[qi]
		for j := range inner.Points {
			in := &inner.Points[j]
			if !(in.Y >= q.Y-radius) || !(in.Y <= q.Y+radius) {
				continue
			}
			dx := (q.Loc.Lon - in.Loc.Lon) * in.LngKm
			if !(math.Abs(dx) < radius) {
				continue
			}
			dy := q.Y - in.Y
			n := thresholds.Levels(dx*dx + dy*dy)
			for _, th := range thresholds[:n] {
				q.Buckets[th.Index]++
				in.Buckets[th.Index]++
			}
		}
	}
}
