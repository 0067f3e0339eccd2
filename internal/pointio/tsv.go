package pointio

import (
	"bufio"
	"io"
	"strconv"
	"strings"

	"geo-intersect/internal/excel"
	"geo-intersect/internal/models"
)

const maxLineBytes = 1 << 20

// ReadTSV parses "id<TAB>lat<TAB>lng" lines after a single header line.
// Reading stops at the first line that does not parse; everything before it
// is kept and the result is marked Truncated. Blank lines are ignored.
func ReadTSV(r io.Reader) (LoadResult, error) {
	var res LoadResult
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	line := 0
	for sc.Scan() {
		line++
		if line == 1 {
			continue // header
		}
		text := sc.Text()
		if strings.TrimSpace(text) == "" {
			continue
		}
		rec, ok := parseTSVLine(text)
		if !ok {
			res.Truncated = true
			res.BadLine = line
			break
		}
		res.Records = append(res.Records, rec)
	}
	if err := sc.Err(); err != nil {
		return res, err
	}
	res.Count = len(res.Records)
	return res, nil
}

func parseTSVLine(text string) (models.Record, bool) {
	fields := strings.Fields(text)
	if len(fields) < 3 {
		return models.Record{}, false
	}
	id, err := strconv.ParseUint(fields[0], 10, 64)
	if err != nil {
		return models.Record{}, false
	}
	lat, err := excel.ParseCoord(fields[1])
	if err != nil {
		return models.Record{}, false
	}
	lon, err := excel.ParseCoord(fields[2])
	if err != nil {
		return models.Record{}, false
	}
	return models.Record{ID: id, Loc: models.Coordinate{Lat: lat, Lon: lon}}, true
}

// WriteTSV emits one "id lat lng b0..b5" line per row, tab separated, with
// coordinates at six decimals.
func WriteTSV(w io.Writer, rows []models.ResultRow) error {
	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 128)
	for _, r := range rows {
		buf = buf[:0]
		buf = strconv.AppendUint(buf, r.ID, 10)
		buf = append(buf, '\t')
		buf = strconv.AppendFloat(buf, r.Lat, 'f', 6, 64)
		buf = append(buf, '\t')
		buf = strconv.AppendFloat(buf, r.Lon, 'f', 6, 64)
		for _, n := range r.Buckets {
			buf = append(buf, '\t')
			buf = strconv.AppendUint(buf, n, 10)
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}
