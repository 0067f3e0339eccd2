package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"geo-intersect/internal/calculator"
	"geo-intersect/internal/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

const (
	storesTSV = "id\tlat\tlng\n1\t0\t0\n2\t0\t1\n"
	kiosksTSV = "id\tlat\tlng\n10\t0\t0.0045\n"

	storesOut = "1\t0.000000\t0.000000\t1\t1\t1\t1\t1\t1\n" +
		"2\t0.000000\t1.000000\t0\t0\t0\t0\t0\t0\n"
	kiosksOut = "10\t0.000000\t0.004500\t1\t1\t1\t1\t1\t1\n"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func TestRunIntersect(t *testing.T) {
	dir := t.TempDir()
	req := runRequest{
		FirstPath:  writeFile(t, dir, "stores.tsv", storesTSV),
		SecondPath: writeFile(t, dir, "kiosks.tsv", kiosksTSV),
		Suffix:     ".out",
		Workers:    2,
		Projection: calculator.DefaultProjection(),
	}
	m := metrics.New()

	var calls atomic.Int32
	report, err := runIntersect(context.Background(), req, discardLogger(), m, func(current, total int, _ string) {
		calls.Add(1)
	})
	if err != nil {
		t.Fatal(err)
	}
	if report.Stats.Outer != "stores.tsv" || report.Stats.Inner != "kiosks.tsv" {
		t.Errorf("outer/inner = %s/%s", report.Stats.Outer, report.Stats.Inner)
	}
	if report.Stats.Matches != [6]uint64{1, 1, 1, 1, 1, 1} {
		t.Errorf("matches = %v", report.Stats.Matches)
	}
	if calls.Load() == 0 {
		t.Error("progress callback never called")
	}
	if got := readFile(t, req.FirstPath+".out"); got != storesOut {
		t.Errorf("stores result =\n%q\nwant\n%q", got, storesOut)
	}
	if got := readFile(t, req.SecondPath+".out"); got != kiosksOut {
		t.Errorf("kiosks result =\n%q\nwant\n%q", got, kiosksOut)
	}
	if got := testutil.ToFloat64(m.PointsProcessed); got != 2 {
		t.Errorf("points processed metric = %v, want 2", got)
	}
}

func TestRunIntersectOutputDir(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	req := runRequest{
		FirstPath:  writeFile(t, dir, "stores.tsv", storesTSV),
		SecondPath: writeFile(t, dir, "kiosks.tsv", kiosksTSV),
		Suffix:     ".counts",
		OutputDir:  outDir,
		Workers:    1,
		Projection: calculator.DefaultProjection(),
	}
	report, err := runIntersect(context.Background(), req, discardLogger(), nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(outDir, "stores.tsv.counts")
	if report.Outputs[0].Path != want {
		t.Errorf("output path = %q, want %q", report.Outputs[0].Path, want)
	}
	if got := readFile(t, want); got != storesOut {
		t.Errorf("stores result = %q", got)
	}
}

func TestRunIntersectMissingInput(t *testing.T) {
	dir := t.TempDir()
	req := runRequest{
		FirstPath:  writeFile(t, dir, "stores.tsv", storesTSV),
		SecondPath: filepath.Join(dir, "missing.tsv"),
		Suffix:     ".out",
		Workers:    1,
		Projection: calculator.DefaultProjection(),
	}
	if _, err := runIntersect(context.Background(), req, discardLogger(), nil, nil); err == nil {
		t.Fatal("runIntersect with a missing input returned nil error")
	}
	if _, err := os.Stat(req.FirstPath + ".out"); !os.IsNotExist(err) {
		t.Errorf("result written despite load failure: %v", err)
	}
}

func TestRunWithoutArgumentsPrintsUsage(t *testing.T) {
	for _, args := range [][]string{nil, {"only-one.tsv"}} {
		var out bytes.Buffer
		if code := run(args, &out); code != 0 {
			t.Errorf("run(%q) = %d, want 0", args, code)
		}
		if !strings.Contains(out.String(), "usage: geo-intersect") {
			t.Errorf("run(%q) output = %q", args, out.String())
		}
	}
}

func TestRunBadFlag(t *testing.T) {
	if code := run([]string{"--no-such-flag"}, io.Discard); code != 2 {
		t.Errorf("run() = %d, want 2", code)
	}
}

func TestRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	first := writeFile(t, dir, "stores.tsv", storesTSV)
	second := writeFile(t, dir, "kiosks.tsv", kiosksTSV)

	code := run([]string{"-w", "3", "--suffix", ".result", "--log-level", "error", first, second}, io.Discard)
	if code != 0 {
		t.Fatalf("run() = %d, want 0", code)
	}
	if got := readFile(t, second+".result"); got != kiosksOut {
		t.Errorf("kiosks result = %q", got)
	}
}
