// Package scheduler runs event advancement on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// Advancer creates the next event for activities whose current one has passed
type Advancer interface {
	AdvanceEvents(ctx context.Context, now time.Time) (int, error)
}

// Scheduler wraps a cron runner with a single advancement job
type Scheduler struct {
	cron     *cron.Cron
	advancer Advancer
	timeout  time.Duration
	// OnAdvance, when set, receives the number of events each run created.
	OnAdvance func(n int)
}

// New creates a scheduler running advancer on spec, a standard five field
// cron expression evaluated in loc
func New(spec string, loc *time.Location, advancer Advancer) (*Scheduler, error) {
	if loc == nil {
		loc = time.UTC
	}
	logger := slogLogger{slog.Default().With("component", "scheduler")}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		advancer: advancer,
		timeout:  time.Minute,
	}

	if _, err := s.cron.AddFunc(spec, s.run); err != nil {
		return nil, fmt.Errorf("invalid advance schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop stops scheduling and waits for a running job to finish or ctx to end
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce advances events immediately
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	n, err := s.advancer.AdvanceEvents(ctx, time.Now())
	if s.OnAdvance != nil && n > 0 {
		s.OnAdvance(n)
	}
	return n, err
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	n, err := s.RunOnce(ctx)
	if err != nil {
		slog.Error("Event advancement failed", "error", err, "created", n)
		return
	}
	slog.Debug("Event advancement finished", "created", n)
}

// slogLogger adapts slog to cron.Logger
type slogLogger struct {
	logger *slog.Logger
}

func (l slogLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l slogLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
