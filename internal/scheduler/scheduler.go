package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/ticket-autoclose/internal/domain"
	"github.com/spec-kit/ticket-autoclose/internal/service"
)

const cronTrigger = "cron"

// ClosureRunner is the job the scheduler fires.
type ClosureRunner interface {
	Run(ctx context.Context, trigger string) (domain.RunReport, error)
}

// ClosureScheduler fires the inactivity closure job on a cron schedule.
type ClosureScheduler struct {
	cronEngine *cron.Cron
	runner     ClosureRunner
	logger     *zap.Logger
	spec       string

	// runCtx is the parent of every fired run; Stop cancels it.
	runCtx    context.Context
	cancelRun context.CancelFunc
}

// NewClosureScheduler builds a scheduler for a standard five-field cron spec.
// Overlapping fires are skipped while a run is still executing.
func NewClosureScheduler(runner ClosureRunner, spec string, logger *zap.Logger) *ClosureScheduler {
	logger = logger.Named("scheduler")
	cronLogger := zapCronLogger{logger: logger.Sugar()}
	runCtx, cancelRun := context.WithCancel(context.Background())
	return &ClosureScheduler{
		cronEngine: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner:    runner,
		logger:    logger,
		spec:      spec,
		runCtx:    runCtx,
		cancelRun: cancelRun,
	}
}

// Start registers the job and starts the cron engine.
func (s *ClosureScheduler) Start() error {
	if _, err := s.cronEngine.AddFunc(s.spec, s.fire); err != nil {
		return fmt.Errorf("schedule closure job %q: %w", s.spec, err)
	}
	s.cronEngine.Start()
	s.logger.Info("closure scheduler started", zap.String("schedule", s.spec))
	return nil
}

func (s *ClosureScheduler) fire() {
	s.logger.Info("cron job triggered for inactivity closure")
	report, err := s.runner.Run(s.runCtx, cronTrigger)
	switch {
	case errors.Is(err, service.ErrRunInProgress):
		s.logger.Warn("previous closure run still in progress; skipping")
	case errors.Is(err, context.Canceled):
		s.logger.Warn("closure run cancelled by shutdown", zap.String("run_id", report.RunID), zap.Int("processed", len(report.Tickets)))
	case errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn("closure run hit its deadline", zap.String("run_id", report.RunID), zap.Int("processed", len(report.Tickets)))
	case err != nil:
		s.logger.Error("closure run failed", zap.String("run_id", report.RunID), zap.Error(err))
	}
}

// Stop halts the engine, cancels the in-flight run so it stops before its
// next ticket, and waits for it to return or ctx to end.
func (s *ClosureScheduler) Stop(ctx context.Context) {
	s.logger.Info("stopping closure scheduler")
	s.cancelRun()
	select {
	case <-s.cronEngine.Stop().Done():
		s.logger.Info("closure scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("closure scheduler stop timed out", zap.Error(ctx.Err()))
	}
}

// zapCronLogger adapts zap to cron.Logger.
type zapCronLogger struct {
	logger *zap.SugaredLogger
}

func (l zapCronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l zapCronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
