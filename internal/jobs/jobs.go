// Package jobs tracks background joins started from the web front-end.
package jobs

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"geo-intersect/internal/models"
)

var ErrJobNotFound = errors.New("job not found")

type Status string

const (
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusError   Status = "error"
)

// Output is one downloadable result file.
type Output struct {
	Set      string `json:"set"`
	Rows     int    `json:"rows"`
	Path     string `json:"-"`
	Filename string `json:"filename"`
}

type Result struct {
	Outer   string                     `json:"outer"`
	Inner   string                     `json:"inner"`
	Workers int                        `json:"workers"`
	Matches [models.BucketCount]uint64 `json:"matches"`
	Elapsed string                     `json:"elapsed"`
	Outputs []Output                   `json:"outputs"`
}

type Job struct {
	ID        string
	CreatedAt time.Time

	mu       sync.RWMutex
	status   Status
	logs     []string
	progress int // 0-100
	result   *Result
	err      string
}

// Snapshot is a copy of a job's state that is safe to serialize.
type Snapshot struct {
	ID       string   `json:"id"`
	Status   Status   `json:"status"`
	Logs     []string `json:"logs"`
	Progress int      `json:"progress"`
	Result   *Result  `json:"result,omitempty"`
	Error    string   `json:"error,omitempty"`
}

func New() *Job {
	return &Job{
		ID:        uuid.New().String(),
		CreatedAt: time.Now(),
		status:    StatusRunning,
		logs:      []string{},
	}
}

func stamp(msg string) string {
	return fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05"), msg)
}

func (j *Job) Log(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.logs = append(j.logs, stamp(msg))
}

// SetProgress records current/total as a percentage and logs msg if non-empty.
func (j *Job) SetProgress(current, total int, msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if total > 0 {
		j.progress = int(float64(current) / float64(total) * 100)
	}
	if msg != "" {
		j.logs = append(j.logs, stamp(msg))
	}
}

func (j *Job) Fail(msg string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusError
	j.err = msg
	j.logs = append(j.logs, "[ERROR] "+msg)
}

func (j *Job) Finish(res *Result) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.status = StatusDone
	j.result = res
	j.progress = 100
	j.logs = append(j.logs, stamp("Job finished"))
}

func (j *Job) Status() Status {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.status
}

func (j *Job) Snapshot() Snapshot {
	j.mu.RLock()
	defer j.mu.RUnlock()
	logs := make([]string, len(j.logs))
	copy(logs, j.logs)
	return Snapshot{
		ID:       j.ID,
		Status:   j.status,
		Logs:     logs,
		Progress: j.progress,
		Result:   j.result,
		Error:    j.err,
	}
}

// Store holds every job of the process. Jobs are never evicted.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create registers and returns a new running job.
func (s *Store) Create() *Job {
	job := New()
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job
}

func (s *Store) Get(id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrJobNotFound, id)
	}
	return job, nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}
