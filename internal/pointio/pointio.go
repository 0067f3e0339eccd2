// Package pointio loads point files and writes bucket results, choosing
// between tab-separated text and xlsx by file extension.
package pointio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"geo-intersect/internal/excel"
	"geo-intersect/internal/models"
)

var ErrUnsupportedFormat = errors.New("unsupported point file format")

type Format int

const (
	FormatTSV Format = iota
	FormatXLSX
)

func (f Format) String() string {
	switch f {
	case FormatTSV:
		return "tsv"
	case FormatXLSX:
		return "xlsx"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// ResultSheet names the sheet written to xlsx outputs.
const ResultSheet = "results"

// LoadResult is what a loader hands to the join: the records plus how the
// read ended.
type LoadResult struct {
	Records   []models.Record
	Count     int
	Truncated bool // stopped early at BadLine (tsv)
	BadLine   int
	Skipped   int // rows dropped as unparsable (xlsx)
}

func DetectFormat(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatTSV
}

// checkFormat rejects legacy binary workbooks, which excelize cannot open.
func checkFormat(path string) error {
	if strings.EqualFold(filepath.Ext(path), ".xls") {
		return fmt.Errorf("%w: %s (save it as .xlsx)", ErrUnsupportedFormat, path)
	}
	return nil
}

// Load reads a point file. sheet only applies to xlsx and may be empty.
// An empty or header-only file yields Count 0 and no error.
func Load(path, sheet string) (LoadResult, error) {
	if err := checkFormat(path); err != nil {
		return LoadResult{}, err
	}
	switch DetectFormat(path) {
	case FormatXLSX:
		f, err := excel.OpenFile(path)
		if err != nil {
			return LoadResult{}, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		records, skipped, err := excel.ReadSheet(f, sheet)
		if err != nil {
			return LoadResult{}, fmt.Errorf("read %s: %w", path, err)
		}
		return LoadResult{Records: records, Count: len(records), Skipped: skipped}, nil
	default:
		f, err := os.Open(path)
		if err != nil {
			return LoadResult{}, fmt.Errorf("open %s: %w", path, err)
		}
		defer f.Close()
		res, err := ReadTSV(f)
		if err != nil {
			return res, fmt.Errorf("read %s: %w", path, err)
		}
		return res, nil
	}
}

// OutputPath derives the result path: "<input><suffix>" for text files and
// "<input without .xlsx><suffix>.xlsx" for workbooks.
func OutputPath(input, suffix string) string {
	if DetectFormat(input) == FormatXLSX {
		return strings.TrimSuffix(input, filepath.Ext(input)) + suffix + ".xlsx"
	}
	return input + suffix
}

// Write stores rows at path in the format implied by its extension.
func Write(path string, rows []models.ResultRow) error {
	if err := checkFormat(path); err != nil {
		return err
	}
	switch DetectFormat(path) {
	case FormatXLSX:
		if err := excel.WriteResult(path, rows, ResultSheet); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
		return nil
	default:
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		if err := WriteTSV(f, rows); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		return f.Close()
	}
}
