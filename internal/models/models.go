package models

// BucketCount is the number of nested radii every point is counted against.
const BucketCount = 6

// RadiiKm are the bucket radii, largest first. Bucket i counts partners
// within RadiiKm[i].
var RadiiKm = [BucketCount]float64{50, 25, 10, 5, 2, 1}

type Coordinate struct {
	Lat float64
	Lon float64
}

// Record is one loaded input row, before projection.
type Record struct {
	ID  uint64
	Loc Coordinate
}

// GeoPoint is a projected point carrying its bucket counters.
// Buckets is kept first so that it stays 64-bit aligned for atomic adds.
type GeoPoint struct {
	Buckets [BucketCount]uint64
	ID      uint64
	Loc     Coordinate
	X       float64 // east-west, km
	Y       float64 // north-south, km
	LngKm   float64 // km per degree of longitude at this point's latitude
}

// ResultRow is the flat record handed to the writers.
type ResultRow struct {
	ID      uint64
	Lat     float64
	Lon     float64
	Buckets [BucketCount]uint64
}

func (p *GeoPoint) Row() ResultRow {
	return ResultRow{
		ID:      p.ID,
		Lat:     p.Loc.Lat,
		Lon:     p.Loc.Lon,
		Buckets: p.Buckets,
	}
}
