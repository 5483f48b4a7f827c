// Package director coordinates the concurrent loops of a performance: the
// sensor ingestion loop plus any sibling loops (generation, listening,
// dashboard broadcast) registered against it.
//
// It computes the piece deadline once before anything starts, retains a
// handle for every loop it spawns, and shuts everything down exactly once
// through Terminate.
package director

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/DigiScore/kc-plus/internal/log"
	"github.com/DigiScore/kc-plus/pkg/hivemind"
)

// DefaultJoinTimeout bounds how long Terminate waits for loops to exit.
const DefaultJoinTimeout = 5 * time.Second

// Runner is a long-lived loop. Run must return promptly once ctx is
// cancelled or the hivemind running flag drops.
type Runner interface {
	Run(ctx context.Context) error
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context) error

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context) error { return f(ctx) }

type namedRunner struct {
	name   string
	runner Runner
}

// Director owns the lifecycle of all performance loops.
type Director struct {
	mind     *hivemind.Hivemind
	duration time.Duration
	session  uuid.UUID

	mu      sync.Mutex
	runners []namedRunner
	started bool

	group  *errgroup.Group
	cancel context.CancelFunc
	done   chan struct{}

	stopOnce sync.Once
	stopErr  error

	joinTimeout time.Duration
}

// New creates a Director for a piece of the given duration.
func New(mind *hivemind.Hivemind, duration time.Duration) (*Director, error) {
	if duration <= 0 {
		return nil, fmt.Errorf("director: piece duration must be positive, got %v", duration)
	}
	return &Director{
		mind:        mind,
		duration:    duration,
		session:     uuid.New(),
		done:        make(chan struct{}),
		joinTimeout: DefaultJoinTimeout,
	}, nil
}

// Session returns the unique ID of this performance.
func (d *Director) Session() string {
	return d.session.String()
}

// Register adds a loop to start. Must be called before Start.
func (d *Director) Register(name string, r Runner) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return errors.New("director: cannot register a loop after start")
	}
	d.runners = append(d.runners, namedRunner{name: name, runner: r})
	return nil
}

// Start computes the deadline and launches every registered loop. It does
// not block on loop completion; Wait or Terminate do that.
func (d *Director) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return errors.New("director: already started")
	}
	if len(d.runners) == 0 {
		return errors.New("director: no loops registered")
	}
	d.started = true

	deadline := time.Now().Add(d.duration)
	d.mind.SetDeadline(deadline)

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	g, runCtx := errgroup.WithContext(runCtx)
	d.group = g

	log.Info("director: piece starting", "session", d.Session(),
		"duration", d.duration, "deadline", deadline, "loops", len(d.runners))

	for _, nr := range d.runners {
		nr := nr
		g.Go(func() error {
			err := nr.runner.Run(runCtx)
			if err != nil {
				log.Error("director: loop failed", "loop", nr.name, "error", err)
				// One failed loop ends the piece for everyone.
				d.mind.Stop()
				return fmt.Errorf("%s: %w", nr.name, err)
			}
			log.Info("director: loop finished", "loop", nr.name)
			return nil
		})
	}

	go func() {
		g.Wait()
		close(d.done)
	}()
	return nil
}

// Wait blocks until every loop has exited and returns the first loop error.
func (d *Director) Wait() error {
	<-d.done
	return d.group.Wait()
}

// Done is closed once all loops have exited.
func (d *Director) Done() <-chan struct{} {
	return d.done
}

// Terminate stops the piece like a grownup: lowers the running flag,
// cancels every loop, and waits (bounded) for them to exit. It is
// idempotent and safe to call from any goroutine; a second call returns
// the same result without re-releasing anything.
func (d *Director) Terminate() error {
	d.stopOnce.Do(func() {
		d.mind.Stop()

		d.mu.Lock()
		started := d.started
		cancel := d.cancel
		d.mu.Unlock()

		if !started {
			log.Info("director: terminated before start")
			return
		}
		cancel()

		select {
		case <-d.done:
			d.stopErr = d.group.Wait()
		case <-time.After(d.joinTimeout):
			d.stopErr = fmt.Errorf("director: loops still running after %v", d.joinTimeout)
		}
		log.Info("director: piece terminated", "session", d.Session(), "error", d.stopErr)
	})
	return d.stopErr
}
