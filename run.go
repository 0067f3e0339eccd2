package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"geo-intersect/internal/calculator"
	"geo-intersect/internal/config"
	"geo-intersect/internal/logging"
	"geo-intersect/internal/metrics"
	"geo-intersect/internal/pointio"
)

// runRequest is one join of two point files.
type runRequest struct {
	FirstPath  string
	SecondPath string
	Sheet      string
	Suffix     string
	OutputDir  string // empty writes each result next to its input

	Workers       int
	ProgressEvery int
	Projection    calculator.Projection
}

func newRunRequest(cfg *config.Config, first, second string) runRequest {
	return runRequest{
		FirstPath:     first,
		SecondPath:    second,
		Sheet:         cfg.Output.Sheet,
		Suffix:        cfg.Output.Suffix,
		Workers:       cfg.Join.Workers,
		ProgressEvery: cfg.Join.ProgressEvery,
		Projection: calculator.Projection{
			KmPerLat: cfg.Projection.KmPerLat,
			KmPerLng: cfg.Projection.KmPerLng,
		},
	}
}

type runReport struct {
	First   pointio.LoadResult
	Second  pointio.LoadResult
	Stats   calculator.Stats
	Outputs []pointio.Output
}

func (r runRequest) outputPath(input string) string {
	path := pointio.OutputPath(input, r.Suffix)
	if r.OutputDir != "" {
		path = filepath.Join(r.OutputDir, filepath.Base(path))
	}
	return path
}

func warnPartialLoad(logger *slog.Logger, path string, res pointio.LoadResult) {
	if res.Truncated {
		logger.Warn("input truncated at unparsable line", "file", path, "line", res.BadLine, "points", res.Count)
	}
	if res.Skipped > 0 {
		logger.Warn("unparsable rows skipped", "file", path, "skipped", res.Skipped)
	}
}

// runIntersect loads both files, joins them and writes one result file per
// input. onProgress may be nil; progress is always logged.
func runIntersect(ctx context.Context, req runRequest, logger *slog.Logger, m *metrics.Metrics, onProgress calculator.ProgressCallback) (*runReport, error) {
	logger.Info("reading inputs", "first", req.FirstPath, "second", req.SecondPath)
	first, second, err := pointio.LoadPair(ctx, req.FirstPath, req.SecondPath, req.Sheet)
	if err != nil {
		return nil, fmt.Errorf("load inputs: %w", err)
	}
	warnPartialLoad(logger, req.FirstPath, first)
	warnPartialLoad(logger, req.SecondPath, second)
	logger.Info("inputs loaded", "first_points", first.Count, "second_points", second.Count)

	done := logging.LogDuration(ctx, logger, "sort")
	firstSet := calculator.NewPointSet(filepath.Base(req.FirstPath), first.Records, req.Projection)
	secondSet := calculator.NewPointSet(filepath.Base(req.SecondPath), second.Records, req.Projection)
	done()

	begin := time.Now()
	progress := func(current, total int, msg string) {
		elapsed := time.Since(begin)
		logger.Info("join progress",
			"done", current,
			"total", total,
			"percent", fmt.Sprintf("%.1f", 100*float64(current)/float64(max(total, 1))),
			"elapsed", elapsed.Round(time.Millisecond),
			"rate", fmt.Sprintf("%.0f/s", float64(current)/max(elapsed.Seconds(), 1e-9)))
		if onProgress != nil {
			onProgress(current, total, msg)
		}
	}
	opts := calculator.Options{Workers: req.Workers, ProgressEvery: req.ProgressEvery}
	stats, err := calculator.Intersect(firstSet, secondSet, opts, progress, func(msg string) {
		logger.Info(msg)
	})
	if err != nil {
		return nil, fmt.Errorf("join: %w", err)
	}
	m.Observe(stats)
	logger.Info("join stats",
		"outer", stats.Outer,
		"windowed", stats.Windowed,
		"tested", stats.Tested,
		"matches", stats.Matches)

	outputs := []pointio.Output{
		{Path: req.outputPath(req.FirstPath), Rows: firstSet.Rows()},
		{Path: req.outputPath(req.SecondPath), Rows: secondSet.Rows()},
	}
	done = logging.LogDuration(ctx, logger, "write", "first", outputs[0].Path, "second", outputs[1].Path)
	if err := pointio.WriteAll(ctx, outputs...); err != nil {
		return nil, fmt.Errorf("write results: %w", err)
	}
	done()

	return &runReport{First: first, Second: second, Stats: stats, Outputs: outputs}, nil
}
