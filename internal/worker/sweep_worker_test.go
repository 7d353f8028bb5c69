package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/spec-kit/helpdesk/internal/service"
)

type countingSweeper struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (s *countingSweeper) Sweep(_ context.Context, _ time.Time) (*service.SweepResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &service.SweepResult{}, nil
}

func (s *countingSweeper) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type stubLock struct {
	acquire  bool
	err      error
	unlocked int
}

func (l *stubLock) TryLock(context.Context) (bool, error) { return l.acquire, l.err }

func (l *stubLock) Unlock(context.Context) error {
	l.unlocked++
	return nil
}

func TestRunOnceWithoutLock(t *testing.T) {
	sweeper := &countingSweeper{}
	w := NewSweepWorker(sweeper, nil, time.Minute, nil)
	if !w.runOnce(context.Background()) {
		t.Fatalf("runOnce() = false, want true")
	}
	if sweeper.count() != 1 {
		t.Fatalf("Sweep() calls = %d, want 1", sweeper.count())
	}
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	sweeper := &countingSweeper{}
	lock := &stubLock{acquire: false}
	w := NewSweepWorker(sweeper, lock, time.Minute, nil)
	if w.runOnce(context.Background()) {
		t.Fatalf("runOnce() = true, want false")
	}
	if sweeper.count() != 0 {
		t.Fatalf("Sweep() calls = %d, want 0", sweeper.count())
	}
	if lock.unlocked != 0 {
		t.Fatalf("Unlock() calls = %d, want 0", lock.unlocked)
	}
}

func TestRunOnceSkipsOnLockError(t *testing.T) {
	sweeper := &countingSweeper{}
	w := NewSweepWorker(sweeper, &stubLock{err: errors.New("redis down")}, time.Minute, nil)
	if w.runOnce(context.Background()) {
		t.Fatalf("runOnce() = true, want false")
	}
	if sweeper.count() != 0 {
		t.Fatalf("Sweep() calls = %d, want 0", sweeper.count())
	}
}

func TestRunOnceReleasesLockAfterFailedSweep(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("boom")}
	lock := &stubLock{acquire: true}
	w := NewSweepWorker(sweeper, lock, time.Minute, nil)
	if !w.runOnce(context.Background()) {
		t.Fatalf("runOnce() = false, want true")
	}
	if lock.unlocked != 1 {
		t.Fatalf("Unlock() calls = %d, want 1", lock.unlocked)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	sweeper := &countingSweeper{}
	w := NewSweepWorker(sweeper, nil, 5*time.Millisecond, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for sweeper.count() == 0 {
		select {
		case <-deadline:
			t.Fatalf("Run() never swept")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("Run() did not return after cancel")
	}
}

func TestRunDisabledInterval(t *testing.T) {
	sweeper := &countingSweeper{}
	NewSweepWorker(sweeper, nil, 0, nil).Run(context.Background())
	if sweeper.count() != 0 {
		t.Fatalf("Sweep() calls = %d, want 0", sweeper.count())
	}
}
