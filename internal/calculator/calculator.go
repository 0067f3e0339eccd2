package calculator

import (
	"fmt"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"geo-intersect/internal/models"
)

type ProgressCallback func(current, total int, msg string)
type LoggerCallback func(msg string)

const DefaultProgressEvery = 10000

type Options struct {
	Workers       int // <= 0 means runtime.NumCPU()
	ProgressEvery int // <= 0 means DefaultProgressEvery
	Thresholds    Thresholds
}

// PartitionStats covers one contiguous outer range [Start, End).
type PartitionStats struct {
	Start     int
	End       int
	Processed uint64
	Windowed  uint64 // inner points inside the north-south window
	Tested    uint64 // of those, points that passed the east-west filter
	Matches   [models.BucketCount]uint64
}

type Stats struct {
	Outer      string
	Inner      string
	Workers    int
	Processed  uint64
	Windowed   uint64
	Tested     uint64
	Matches    [models.BucketCount]uint64
	Partitions []PartitionStats
	Elapsed    time.Duration
}

// Intersect counts, for every point of both sets, the points of the other set
// inside each bucket radius. The larger set is partitioned across workers and
// the smaller one is scanned by all of them. Both sets must have been built by
// NewPointSet; their buckets are incremented in place.
func Intersect(first, second *PointSet, opts Options, onProgress ProgressCallback, logger LoggerCallback) (Stats, error) {
	thresholds := opts.Thresholds
	if thresholds == nil {
		thresholds = DefaultThresholds()
	}
	if err := thresholds.Validate(); err != nil {
		return Stats{}, err
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	every := opts.ProgressEvery
	if every <= 0 {
		every = DefaultProgressEvery
	}
	if logger == nil {
		logger = func(string) {}
	}

	outer, inner := first, second
	if second.Len() > first.Len() {
		outer, inner = second, first
	}

	total := outer.Len()
	chunkSize := (total + workers - 1) / workers
	stats := Stats{Outer: outer.Name, Inner: inner.Name, Workers: workers}

	if total == 0 || inner.Len() == 0 {
		logger(fmt.Sprintf("Nothing to join: %d outer, %d inner points", total, inner.Len()))
		return stats, nil
	}

	var wg sync.WaitGroup
	var processedCount int64
	partitions := make([]PartitionStats, 0, workers)
	for i := 0; i < workers; i++ {
		start := i * chunkSize
		end := start + chunkSize
		if start >= total {
			break
		}
		if end > total {
			end = total
		}
		partitions = append(partitions, PartitionStats{Start: start, End: end})
	}

	logger(fmt.Sprintf("Starting join with %d workers, %d outer (%s), %d inner (%s)",
		len(partitions), total, outer.Name, inner.Len(), inner.Name))

	begin := time.Now()
	for i := range partitions {
		wg.Add(1)
		go func(ps *PartitionStats) {
			defer wg.Done()
			scanPartition(outer.Points[ps.Start:ps.End], inner, thresholds, ps, func() {
				count := atomic.AddInt64(&processedCount, 1)
				if count%int64(every) == 0 && onProgress != nil {
					onProgress(int(count), total, "")
				}
			})
		}(&partitions[i])
	}

	wg.Wait()
	stats.Elapsed = time.Since(begin)

	for _, ps := range partitions {
		stats.Processed += ps.Processed
		stats.Windowed += ps.Windowed
		stats.Tested += ps.Tested
		for d, n := range ps.Matches {
			stats.Matches[d] += n
		}
	}
	stats.Partitions = partitions

	if onProgress != nil {
		onProgress(total, total, "")
	}
	logger(fmt.Sprintf("Join completed: %d points in %s (%.0f points/sec)",
		stats.Processed, stats.Elapsed, float64(stats.Processed)/math.Max(stats.Elapsed.Seconds(), 1e-9)))
	return stats, nil
}

// scanPartition runs one worker over a contiguous, Y-sorted slice of the outer set.
func scanPartition(queries []models.GeoPoint, inner *PointSet, thresholds Thresholds, ps *PartitionStats, tick func()) {
	radius := thresholds.MaxRadius()
	sc := NewScanner(inner, radius)
	sc.Seek(queries[0].Y)

	for qi := range queries {
		q := &queries[qi]
		lo, hi := sc.Window(q.Y)
		ps.Windowed += uint64(hi - lo)

		for j := lo; j < hi; j++ {
			in := &inner.Points[j]
			// Longitude delta is always scaled by the inner point's latitude.
			dx := (q.Loc.Lon - in.Loc.Lon) * in.LngKm
			if !(math.Abs(dx) < radius) {
				continue
			}
			ps.Tested++
			dy := q.Y - in.Y
			n := thresholds.Levels(dx*dx + dy*dy)
			if n == 0 {
				continue
			}
			thresholds.accumulate(q, in, n)
			for _, th := range thresholds[:n] {
				ps.Matches[th.Index]++
			}
		}
		ps.Processed++
		tick()
	}
}
