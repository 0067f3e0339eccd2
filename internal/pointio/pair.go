package pointio

import (
	"context"

	"golang.org/x/sync/errgroup"

	"geo-intersect/internal/models"
)

// LoadPair reads both input files concurrently.
func LoadPair(ctx context.Context, firstPath, secondPath, sheet string) (first, second LoadResult, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		first, err = Load(firstPath, sheet)
		return err
	})
	g.Go(func() error {
		if err := gctx.Err(); err != nil {
			return err
		}
		var err error
		second, err = Load(secondPath, sheet)
		return err
	})
	err = g.Wait()
	return first, second, err
}

// Output is one result file to write.
type Output struct {
	Path string
	Rows []models.ResultRow
}

// WriteAll writes the outputs concurrently and returns the first error.
func WriteAll(ctx context.Context, outputs ...Output) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, out := range outputs {
		out := out
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return Write(out.Path, out.Rows)
		})
	}
	return g.Wait()
}
