package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	JobRepairInstallments = "repair_installments"
	JobNormalizeCurrency  = "normalize_currency"

	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"

	defaultHistoryLimit = 100
)

// Run is one execution of a maintenance job.
type Run struct {
	ID          string     `json:"id"`
	Type        string     `json:"type"`
	Status      string     `json:"status"`
	Details     any        `json:"details,omitempty"`
	Error       string     `json:"error,omitempty"`
	QueuedAt    time.Time  `json:"queuedAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

type RunFunc func(context.Context) (any, error)

type job struct {
	id  string
	typ string
	run RunFunc
}

// FailureRecorder is notified of failed runs.
type FailureRecorder interface {
	RecordJobFailure()
}

type Service struct {
	queue        chan job
	historyLimit int
	failures     FailureRecorder

	mu      sync.Mutex
	history []Run

	wg sync.WaitGroup
}

func New(failures FailureRecorder) *Service {
	return &Service{
		queue:        make(chan job, 128),
		historyLimit: defaultHistoryLimit,
		failures:     failures,
	}
}

// Start runs the queue worker until ctx is done.
func (s *Service) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.worker(ctx)
	}()
}

// Wait blocks until the worker and every scheduler started on this service
// have returned. Cancel their context first.
func (s *Service) Wait() {
	s.wg.Wait()
}

// Schedule enqueues the job every interval until ctx is done. A non-positive
// interval disables it.
func (s *Service) Schedule(ctx context.Context, jobType string, interval time.Duration, run RunFunc) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Enqueue(jobType, run)
			}
		}
	}()
}

// Enqueue queues the job and returns its run id, or "" when the queue is full.
func (s *Service) Enqueue(jobType string, run RunFunc) string {
	j := job{id: uuid.NewString(), typ: jobType, run: run}
	select {
	case s.queue <- j:
		s.record(Run{ID: j.id, Type: jobType, Status: StatusQueued, QueuedAt: time.Now().UTC()})
		return j.id
	default:
		slog.Warn("job queue full", "jobType", jobType)
		return ""
	}
}

// RunNow runs the job on the caller's goroutine and records it like a queued run.
func (s *Service) RunNow(ctx context.Context, jobType string, run RunFunc) (Run, error) {
	j := job{id: uuid.NewString(), typ: jobType, run: run}
	s.record(Run{ID: j.id, Type: jobType, Status: StatusQueued, QueuedAt: time.Now().UTC()})
	return s.runJob(ctx, j)
}

// History returns recorded runs, newest first.
func (s *Service) History() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Run, len(s.history))
	for i, r := range s.history {
		out[len(s.history)-1-i] = r
	}
	return out
}

func (s *Service) Get(id string) (Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.history {
		if r.ID == id {
			return r, true
		}
	}
	return Run{}, false
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.typ, "runId", j.id, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (Run, error) {
	started := time.Now().UTC()
	s.update(j.id, func(r *Run) {
		r.Status = StatusRunning
		r.StartedAt = &started
	})

	details, err := j.run(ctx)
	completed := time.Now().UTC()
	var result Run
	s.update(j.id, func(r *Run) {
		r.Status = StatusCompleted
		r.Details = details
		r.CompletedAt = &completed
		if err != nil {
			r.Status = StatusFailed
			r.Error = err.Error()
		}
		result = *r
	})
	if err != nil && s.failures != nil {
		s.failures.RecordJobFailure()
	}
	slog.Info("job run finished", "jobType", j.typ, "runId", j.id, "status", result.Status,
		"durationMs", completed.Sub(started).Milliseconds())
	return result, err
}

func (s *Service) record(r Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, r)
	if over := len(s.history) - s.historyLimit; over > 0 {
		s.history = append([]Run(nil), s.history[over:]...)
	}
}

func (s *Service) update(id string, fn func(*Run)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.history {
		if s.history[i].ID == id {
			fn(&s.history[i])
			return
		}
	}
}
