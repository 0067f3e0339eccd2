package excel

import (
	"fmt"
	"strconv"
	"strings"

	"geo-intersect/internal/models"

	"github.com/xuri/excelize/v2"
)

// Column layout shared by input and output sheets.
const (
	colID  = 0
	colLat = 1
	colLon = 2
)

var resultHeaders = []interface{}{
	"id", "latitude", "longitude",
	"within_50km", "within_25km", "within_10km", "within_5km", "within_2km", "within_1km",
}

// ParseCoord accepts both "41.5" and the comma decimal "41,5".
func ParseCoord(val string) (float64, error) {
	val = strings.TrimSpace(strings.ReplaceAll(val, ",", "."))
	if val == "" {
		return 0, fmt.Errorf("empty")
	}
	return strconv.ParseFloat(val, 64)
}

func OpenFile(filename string) (*excelize.File, error) {
	return excelize.OpenFile(filename)
}

// ReadSheet reads id, latitude and longitude from columns A..C, skipping the
// header row. Rows that do not parse are skipped and counted. An empty
// sheetName selects the first sheet.
func ReadSheet(f *excelize.File, sheetName string) ([]models.Record, int, error) {
	if sheetName == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, 0, nil
		}
		sheetName = sheets[0]
	}
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return nil, 0, err
	}

	var records []models.Record
	skipped := 0
	for i, row := range rows {
		if i == 0 {
			continue // Skip header
		}
		if len(row) < 3 {
			skipped++
			continue
		}

		id, errID := strconv.ParseUint(strings.TrimSpace(row[colID]), 10, 64)
		lat, errLat := ParseCoord(row[colLat])
		lon, errLon := ParseCoord(row[colLon])
		if errID != nil || errLat != nil || errLon != nil {
			skipped++
			continue
		}

		records = append(records, models.Record{
			ID:  id,
			Loc: models.Coordinate{Lat: lat, Lon: lon},
		})
	}
	return records, skipped, nil
}

func WriteResult(path string, data []models.ResultRow, sheetName string) error {
	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return err
	}

	// Use Stream Writer for performance
	sw, err := f.NewStreamWriter(sheetName)
	if err != nil {
		return err
	}

	if err := sw.SetRow("A1", resultHeaders); err != nil {
		return err
	}

	for i, r := range data {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := make([]interface{}, 0, len(resultHeaders))
		row = append(row, r.ID, r.Lat, r.Lon)
		for _, n := range r.Buckets {
			row = append(row, n)
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}

	if err := sw.Flush(); err != nil {
		return err
	}

	f.SetActiveSheet(index)
	// Delete default sheet if exists
	if sheetName != "Sheet1" {
		f.DeleteSheet("Sheet1")
	}

	return f.SaveAs(path)
}
