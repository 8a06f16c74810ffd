package handler

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/use-agent/finpulse/models"
	"github.com/use-agent/finpulse/scraper"
)

// Run job states.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// runRetention is how long finished jobs stay queryable.
const runRetention = time.Hour

// RunJob is the status of one API-triggered run.
type RunJob struct {
	ID         string          `json:"id"`
	Source     string          `json:"source,omitempty"`
	Status     string          `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
	Report     *scraper.Report `json:"report,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// RunStore holds in-flight and finished run jobs. Jobs run on the store's
// context, not the request's, so they outlive the POST that started them.
type RunStore struct {
	ctx   context.Context
	clock clockwork.Clock
	wg    sync.WaitGroup

	mu   sync.RWMutex
	jobs map[string]*RunJob
}

// NewRunStore creates a store whose jobs are cancelled with ctx. Finished
// jobs older than an hour are swept until ctx ends.
func NewRunStore(ctx context.Context, clock clockwork.Clock) *RunStore {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	s := &RunStore{ctx: ctx, clock: clock, jobs: make(map[string]*RunJob)}
	go s.sweep()
	return s
}

func (s *RunStore) sweep() {
	ticker := s.clock.NewTicker(5 * time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.Chan():
			s.expire()
		}
	}
}

func (s *RunStore) expire() {
	cutoff := s.clock.Now().Add(-runRetention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, job := range s.jobs {
		if job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
		}
	}
}

// Start launches fn in the background and returns the new job.
func (s *RunStore) Start(source string, fn func(ctx context.Context) (*scraper.Report, error)) RunJob {
	job := &RunJob{
		ID:        "run-" + uuid.NewString(),
		Source:    source,
		Status:    RunRunning,
		CreatedAt: s.clock.Now(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	snapshot := *job
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		report, err := fn(s.ctx)
		s.finish(job.ID, report, err)
	}()
	return snapshot
}

func (s *RunStore) finish(id string, report *scraper.Report, err error) {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return
	}
	job.FinishedAt = &now
	job.Report = report
	job.Status = RunCompleted
	if err != nil {
		job.Status = RunFailed
		job.Error = err.Error()
	} else if report != nil && report.Failed() {
		job.Status = RunFailed
	}
}

// Get returns a copy of the job with id.
func (s *RunStore) Get(id string) (RunJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return RunJob{}, false
	}
	return *job, true
}

// Wait blocks until every started job has finished.
func (s *RunStore) Wait() {
	s.wg.Wait()
}

var errNoSources = errors.New("no sources are configured")

// PostRun returns a handler for POST /api/v1/runs. The run is asynchronous;
// poll GET /api/v1/runs/:id for the report.
func PostRun(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.RunRequest
		// an empty body runs every source
		if c.Request.ContentLength != 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				invalidInput(c, err)
				return
			}
		}
		if d.Runner == nil || d.Runs == nil {
			respondError(c, models.NewPipelineError(models.ErrCodeNotFound, errNoSources.Error(), errNoSources))
			return
		}
		if req.Source != "" && !slices.Contains(d.Runner.Sources(), req.Source) {
			respondError(c, models.NewPipelineError(models.ErrCodeNotFound, "unknown source "+req.Source, nil))
			return
		}

		job := d.Runs.Start(req.Source, func(ctx context.Context) (*scraper.Report, error) {
			if req.Source != "" {
				return d.Runner.RunSource(ctx, req.Source)
			}
			return d.Runner.Run(ctx)
		})
		d.logger().Info("run started", "run_job", job.ID, "source", req.Source)
		c.JSON(http.StatusAccepted, job)
	}
}

// GetRun returns a handler for GET /api/v1/runs/:id.
func GetRun(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d.Runs == nil {
			respondError(c, models.NewPipelineError(models.ErrCodeNotFound, "run not found", nil))
			return
		}
		job, ok := d.Runs.Get(c.Param("id"))
		if !ok {
			respondError(c, models.NewPipelineError(models.ErrCodeNotFound, "run not found", nil))
			return
		}
		c.JSON(http.StatusOK, job)
	}
}

// Sources returns a handler for GET /api/v1/sources.
func Sources(d *Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		names := []string{}
		if d.Runner != nil {
			names = d.Runner.Sources()
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "sources": names})
	}
}
