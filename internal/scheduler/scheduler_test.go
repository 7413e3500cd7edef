package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type fakeAdvancer struct {
	mu    sync.Mutex
	calls int
	n     int
	err   error
}

func (f *fakeAdvancer) AdvanceEvents(ctx context.Context, now time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.n, f.err
}

func TestNewRejectsBadSpec(t *testing.T) {
	if _, err := New("not a schedule", time.UTC, &fakeAdvancer{}); err == nil {
		t.Error("expected an error for an invalid cron expression")
	}
}

func TestRunOnce(t *testing.T) {
	tests := []struct {
		name      string
		advancer  *fakeAdvancer
		wantCount int
		wantHook  int
		wantErr   bool
	}{
		{"created events", &fakeAdvancer{n: 2}, 2, 2, false},
		{"nothing due", &fakeAdvancer{}, 0, 0, false},
		{"failure", &fakeAdvancer{err: errors.New("db down")}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New("*/15 * * * *", time.UTC, tt.advancer)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			hook := 0
			s.OnAdvance = func(n int) { hook += n }

			n, err := s.RunOnce(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("RunOnce() error = %v, wantErr %v", err, tt.wantErr)
			}
			if n != tt.wantCount || hook != tt.wantHook {
				t.Errorf("RunOnce() = %d, hook = %d; want %d, %d", n, hook, tt.wantCount, tt.wantHook)
			}
			if tt.advancer.calls != 1 {
				t.Errorf("advancer called %d times", tt.advancer.calls)
			}
		})
	}
}

func TestStartStop(t *testing.T) {
	s, err := New("@every 1h", time.UTC, &fakeAdvancer{})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	if ctx.Err() != nil {
		t.Error("Stop() should return before the deadline when no job is running")
	}
}
