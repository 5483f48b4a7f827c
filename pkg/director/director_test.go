package director

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/DigiScore/kc-plus/pkg/hivemind"
)

// blockingRunner runs until its context is cancelled.
type blockingRunner struct {
	started atomic.Bool
	stopped atomic.Bool
	err     error
}

func (r *blockingRunner) Run(ctx context.Context) error {
	r.started.Store(true)
	if r.err != nil {
		return r.err
	}
	<-ctx.Done()
	r.stopped.Store(true)
	return nil
}

func newDirector(t *testing.T, duration time.Duration) (*Director, *hivemind.Hivemind) {
	t.Helper()
	mind, err := hivemind.New(1, 5)
	if err != nil {
		t.Fatalf("hivemind.New: %v", err)
	}
	d, err := New(mind, duration)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return d, mind
}

func TestNew_RejectsBadDuration(t *testing.T) {
	mind, _ := hivemind.New(1, 5)
	if _, err := New(mind, 0); err == nil {
		t.Error("expected error for zero duration")
	}
	if _, err := New(mind, -time.Second); err == nil {
		t.Error("expected error for negative duration")
	}
}

func TestStart_SetsDeadlineOnce(t *testing.T) {
	d, mind := newDirector(t, time.Minute)
	r := &blockingRunner{}
	d.Register("test", r)

	before := time.Now()
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Terminate()

	dl := mind.Deadline()
	if dl.Before(before.Add(59 * time.Second)) {
		t.Errorf("deadline too early: %v", dl)
	}
	if dl.After(before.Add(61 * time.Second)) {
		t.Errorf("deadline too late: %v", dl)
	}
}

func TestStart_RequiresLoops(t *testing.T) {
	d, _ := newDirector(t, time.Minute)
	if err := d.Start(context.Background()); err == nil {
		t.Error("expected error when no loops are registered")
	}
}

func TestRegister_AfterStartFails(t *testing.T) {
	d, _ := newDirector(t, time.Minute)
	d.Register("a", &blockingRunner{})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Terminate()

	if err := d.Register("late", &blockingRunner{}); err == nil {
		t.Error("expected error registering after start")
	}
}

func TestTerminate_StopsAllLoops(t *testing.T) {
	d, mind := newDirector(t, time.Minute)
	a := &blockingRunner{}
	b := &blockingRunner{}
	d.Register("a", a)
	d.Register("b", b)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Give the loops a moment to spin up.
	deadline := time.Now().Add(time.Second)
	for !a.started.Load() || !b.started.Load() {
		if time.Now().After(deadline) {
			t.Fatal("loops never started")
		}
		time.Sleep(time.Millisecond)
	}

	if err := d.Terminate(); err != nil {
		t.Fatalf("Terminate: %v", err)
	}
	if mind.Running() {
		t.Error("running flag still up after Terminate")
	}
	if !a.stopped.Load() || !b.stopped.Load() {
		t.Error("a loop was left running past Terminate")
	}
}

func TestTerminate_Idempotent(t *testing.T) {
	d, _ := newDirector(t, time.Minute)
	d.Register("a", &blockingRunner{})
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	first := d.Terminate()
	second := d.Terminate()
	if !errors.Is(second, first) && second != first {
		t.Errorf("second Terminate: got %v, want %v", second, first)
	}
}

func TestTerminate_BeforeStart(t *testing.T) {
	d, mind := newDirector(t, time.Minute)
	if err := d.Terminate(); err != nil {
		t.Fatalf("Terminate before start: %v", err)
	}
	if mind.Running() {
		t.Error("running flag still up")
	}
}

func TestWait_SurfacesLoopError(t *testing.T) {
	d, mind := newDirector(t, time.Minute)
	boom := errors.New("sensor exploded")
	d.Register("failing", &blockingRunner{err: boom})
	d.Register("healthy", &blockingRunner{})

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-d.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loops did not exit after a loop failure")
	}

	if err := d.Wait(); !errors.Is(err, boom) {
		t.Errorf("Wait: got %v, want %v", err, boom)
	}
	if mind.Running() {
		t.Error("running flag still up after loop failure")
	}
}

func TestSession_IsStable(t *testing.T) {
	d, _ := newDirector(t, time.Minute)
	if d.Session() == "" {
		t.Fatal("empty session ID")
	}
	if d.Session() != d.Session() {
		t.Error("session ID changed between calls")
	}
}
