// Command geo-intersect counts, for every point of two point files, the
// points of the other file within 50, 25, 10, 5, 2 and 1 km, and writes one
// result file per input. With --serve it runs the same join behind a small
// web job API.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"geo-intersect/internal/config"
	"geo-intersect/internal/logging"
	"geo-intersect/internal/metrics"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func logConfig(cfg config.LogConfig) logging.Config {
	return logging.Config{
		Level:      cfg.Level,
		Format:     cfg.Format,
		File:       cfg.File,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
	}
}

func run(args []string, stdout io.Writer) int {
	fs := pflag.NewFlagSet("geo-intersect", pflag.ContinueOnError)
	fs.SetOutput(stdout)
	config.RegisterFlags(fs)
	serve := fs.Bool("serve", false, "run the web job server instead of a single join")
	fs.Usage = func() {
		fmt.Fprintln(stdout, "usage: geo-intersect [flags] OUTER INNER")
		fmt.Fprintln(stdout, "       geo-intersect --serve [flags]")
		fmt.Fprintln(stdout)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}

	// Missing inputs are not an error: print usage and leave quietly.
	if !*serve && fs.NArg() < 2 {
		fs.Usage()
		return 0
	}

	configPath, _ := fs.GetString("config")
	loader := config.NewLoader()
	cfg, err := loader.Load(configPath, fs)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	logger := logging.New(logConfig(cfg.Log))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	if *serve {
		if err := serveHTTP(ctx, loader, configPath != "", logger, m); err != nil {
			logger.Error("server stopped", "error", err)
			return 1
		}
		return 0
	}

	req := newRunRequest(cfg, fs.Arg(0), fs.Arg(1))
	report, err := runIntersect(ctx, req, logger, m, nil)
	if err != nil {
		logger.Error("intersect failed", "error", err)
		return 1
	}
	for _, out := range report.Outputs {
		logger.Info("result written", "path", out.Path, "rows", len(out.Rows))
	}
	return 0
}
