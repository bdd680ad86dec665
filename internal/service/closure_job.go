package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spec-kit/ticket-autoclose/internal/domain"
)

// ErrRunInProgress is returned when a closure run is already executing in
// this process.
var ErrRunInProgress = errors.New("closure run already in progress")

// ClosureJob binds the closure service to its configured threshold and run
// deadline. Cron and the admin API trigger runs through it.
type ClosureJob struct {
	service    *ClosureService
	threshold  time.Duration
	runTimeout time.Duration
	now        func() time.Time

	running atomic.Bool
	mu      sync.RWMutex
	last    *domain.RunReport
}

// NewClosureJob creates the job. A zero runTimeout leaves runs unbounded.
func NewClosureJob(service *ClosureService, threshold, runTimeout time.Duration) *ClosureJob {
	return &ClosureJob{
		service:    service,
		threshold:  threshold,
		runTimeout: runTimeout,
		now:        time.Now,
	}
}

// Run executes one closure run. trigger names what started it ("cron", "api").
func (j *ClosureJob) Run(ctx context.Context, trigger string) (domain.RunReport, error) {
	if !j.running.CompareAndSwap(false, true) {
		return domain.RunReport{}, ErrRunInProgress
	}
	defer j.running.Store(false)

	if j.runTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.runTimeout)
		defer cancel()
	}

	report, err := j.service.RunInactivityClosure(ctx, j.now().UTC(), j.threshold)
	report.Trigger = trigger

	j.mu.Lock()
	j.last = &report
	j.mu.Unlock()
	return report, err
}

// Running reports whether a run is executing.
func (j *ClosureJob) Running() bool {
	return j.running.Load()
}

// LastReport returns the report of the most recent run, if any.
func (j *ClosureJob) LastReport() (domain.RunReport, bool) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.last == nil {
		return domain.RunReport{}, false
	}
	return *j.last, true
}
