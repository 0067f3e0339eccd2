package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"geo-intersect/internal/config"
	"geo-intersect/internal/jobs"
	"geo-intersect/internal/logging"
	"geo-intersect/internal/metrics"
)

const sessionName = "intersect_session"

type server struct {
	config  func() *config.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
	jobs    *jobs.Store

	running sync.WaitGroup
}

func newServer(cfg func() *config.Config, logger *slog.Logger, m *metrics.Metrics) *server {
	return &server{config: cfg, logger: logger, metrics: m, jobs: jobs.NewStore()}
}

func (s *server) routes() *gin.Engine {
	cfg := s.config().Server

	r := gin.New()
	r.Use(gin.Recovery())

	secret := cfg.Secret
	if secret == "" {
		secret = uuid.NewString()
	}
	r.Use(sessions.Sessions(sessionName, cookie.NewStore([]byte(secret))))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	authorized := r.Group("/")
	if cfg.AuthEnabled() {
		r.POST("/login", s.login)
		r.GET("/logout", s.logout)
		authorized.Use(authRequired)
	}
	authorized.POST("/run", s.startRun)
	authorized.GET("/logs", s.jobLogs)
	authorized.GET("/status", s.jobStatus)
	authorized.GET("/download-result/:filename", s.download)
	return r
}

func authRequired(c *gin.Context) {
	if sessions.Default(c).Get("user") == nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "login required"})
		return
	}
	c.Next()
}

func (s *server) login(c *gin.Context) {
	cfg := s.config().Server
	username := c.PostForm("username")
	password := c.PostForm("password")

	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(cfg.Username)) == 1
	passOK := subtle.ConstantTimeCompare([]byte(password), []byte(cfg.Password)) == 1
	if !userOK || !passOK {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "invalid username or password"})
		return
	}
	session := sessions.Default(c)
	session.Set("user", username)
	if err := session.Save(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *server) logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	_ = session.Save()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg})
}

// startRun stores both uploads and starts the join in the background.
func (s *server) startRun(c *gin.Context) {
	cfg := s.config()

	workers := cfg.Join.Workers
	if w := c.PostForm("workers"); w != "" {
		n, err := strconv.Atoi(w)
		if err != nil || n < 1 || n > 1024 {
			badRequest(c, "workers must be between 1 and 1024")
			return
		}
		workers = n
	}

	if err := os.MkdirAll(cfg.Server.UploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if err := os.MkdirAll(cfg.Server.OutputDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	var paths [2]string
	for i, field := range []string{"outer_file", "inner_file"} {
		file, err := c.FormFile(field)
		if err != nil {
			badRequest(c, fmt.Sprintf("missing %s", field))
			return
		}
		paths[i] = filepath.Join(cfg.Server.UploadDir, fmt.Sprintf("%s_%s", uuid.NewString(), filepath.Base(file.Filename)))
		if err := c.SaveUploadedFile(file, paths[i]); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "upload failed: " + err.Error()})
			return
		}
	}

	req := newRunRequest(cfg, paths[0], paths[1])
	req.Workers = workers
	req.OutputDir = cfg.Server.OutputDir

	job := s.jobs.Create()
	s.metrics.JobStarted()
	s.running.Add(1)
	go func() {
		defer s.running.Done()
		s.processJob(job, req)
	}()

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "job_id": job.ID})
}

func (s *server) processJob(job *jobs.Job, req runRequest) {
	logger := slog.New(jobHandler{Handler: s.logger.Handler(), job: job}).With("job_id", job.ID)
	defer func() {
		if r := recover(); r != nil {
			job.Fail(fmt.Sprintf("panic: %v", r))
			logger.Error("job panicked", "panic", r)
		}
		s.metrics.JobFinished(string(job.Status()))
	}()

	report, err := runIntersect(context.Background(), req, logger, s.metrics, job.SetProgress)
	if err != nil {
		job.Fail(err.Error())
		return
	}

	res := &jobs.Result{
		Outer:   report.Stats.Outer,
		Inner:   report.Stats.Inner,
		Workers: report.Stats.Workers,
		Matches: report.Stats.Matches,
		Elapsed: report.Stats.Elapsed.Round(time.Millisecond).String(),
	}
	for i, out := range report.Outputs {
		res.Outputs = append(res.Outputs, jobs.Output{
			Set:      []string{"outer_file", "inner_file"}[i],
			Rows:     len(out.Rows),
			Path:     out.Path,
			Filename: filepath.Base(out.Path),
		})
	}
	job.Finish(res)
}

func (s *server) lookup(c *gin.Context) (*jobs.Job, bool) {
	job, err := s.jobs.Get(c.Query("job_id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": err.Error()})
		return nil, false
	}
	return job, true
}

func (s *server) jobLogs(c *gin.Context) {
	job, ok := s.lookup(c)
	if !ok {
		return
	}
	snap := job.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"logs":     snap.Logs,
		"status":   snap.Status,
		"progress": snap.Progress,
	})
}

func (s *server) jobStatus(c *gin.Context) {
	job, ok := s.lookup(c)
	if !ok {
		return
	}
	snap := job.Snapshot()
	res := gin.H{
		"ok":     true,
		"status": snap.Status,
		"error":  snap.Error,
	}
	if snap.Result != nil {
		res["result"] = snap.Result
	}
	c.JSON(http.StatusOK, res)
}

func (s *server) download(c *gin.Context) {
	name := filepath.Base(c.Param("filename"))
	target := filepath.Join(s.config().Server.OutputDir, name)
	if _, err := os.Stat(target); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "result not found"})
		return
	}
	c.FileAttachment(target, name)
}

// jobHandler copies every info-or-higher record into the job log and
// forwards it to the process logger when that one is enabled.
type jobHandler struct {
	slog.Handler
	job *jobs.Job
}

func (h jobHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return level >= slog.LevelInfo || h.Handler.Enabled(ctx, level)
}

func (h jobHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelInfo {
		var b strings.Builder
		b.WriteString(r.Message)
		r.Attrs(func(a slog.Attr) bool {
			fmt.Fprintf(&b, " %s=%v", a.Key, a.Value)
			return true
		})
		if r.Level >= slog.LevelError {
			h.job.Log("[ERROR] " + b.String())
		} else {
			h.job.Log(b.String())
		}
	}
	if !h.Handler.Enabled(ctx, r.Level) {
		return nil
	}
	return h.Handler.Handle(ctx, r)
}

func (h jobHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return jobHandler{Handler: h.Handler.WithAttrs(attrs), job: h.job}
}

func (h jobHandler) WithGroup(name string) slog.Handler {
	return jobHandler{Handler: h.Handler.WithGroup(name), job: h.job}
}

// serveHTTP runs the job server until ctx is cancelled. When watch is set the
// config file is re-read on change and applies to the next job.
func serveHTTP(ctx context.Context, loader *config.Loader, watch bool, logger *slog.Logger, m *metrics.Metrics) error {
	gin.SetMode(gin.ReleaseMode)
	if watch {
		loader.Watch(func(cfg *config.Config) {
			logging.SetLevel(cfg.Log.Level)
			logger.Info("config reloaded", "workers", cfg.Join.Workers, "log_level", cfg.Log.Level)
		}, func(err error) {
			logger.Error("config reload rejected", "error", err)
		})
	}

	s := newServer(loader.Current, logger, m)
	cfg := loader.Current().Server
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "auth", cfg.AuthEnabled())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	s.running.Wait()
	return nil
}
