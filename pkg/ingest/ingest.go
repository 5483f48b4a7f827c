// Package ingest runs the sensor ingestion loop: one adapter, one cadence,
// one hivemind to publish into.
//
// Each tick pulls a frame, rolls it into the loop's private raw window,
// normalizes a snapshot of that window, derives the extents-normalized
// dancer vector, and commits the whole tick to the hivemind in one update.
package ingest

import (
	"context"
	"fmt"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/DigiScore/kc-plus/internal/log"
	"github.com/DigiScore/kc-plus/pkg/buffer"
	"github.com/DigiScore/kc-plus/pkg/hivemind"
	"github.com/DigiScore/kc-plus/pkg/normalize"
	"github.com/DigiScore/kc-plus/pkg/sensor"
)

// State is the loop lifecycle. Transitions are one-way:
// Idle -> Running -> Stopped.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	}
	return "unknown"
}

// Extents are the configured position bounds the dancer vector is
// re-normalized against.
type Extents struct {
	X, Y, Z sensor.Range
}

// Loop ingests frames at a fixed cadence and publishes features into the
// hivemind. It owns its adapter and raw window exclusively.
type Loop struct {
	mind    *hivemind.Hivemind
	adapter sensor.Adapter
	norm    *normalize.Normalizer
	raw     *buffer.Rolling
	extents Extents
	every   time.Duration
	rng     *rand.Rand

	state atomic.Int32
	ticks atomic.Uint64
}

// New builds a Loop. The cadence and window shape are validated here,
// before anything starts.
func New(mind *hivemind.Hivemind, adapter sensor.Adapter, every time.Duration, window int, extents Extents) (*Loop, error) {
	if every <= 0 {
		return nil, fmt.Errorf("ingest: cadence must be positive, got %v", every)
	}
	raw, err := buffer.New(1, window, 0)
	if err != nil {
		return nil, err
	}
	for _, r := range []sensor.Range{extents.X, extents.Y, extents.Z} {
		if r.Hi-r.Lo <= 0 {
			return nil, fmt.Errorf("ingest: extents must satisfy lo < hi, got [%v, %v]", r.Lo, r.Hi)
		}
	}
	return &Loop{
		mind:    mind,
		adapter: adapter,
		norm:    normalize.New(),
		raw:     raw,
		extents: extents,
		every:   every,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// State returns the loop's lifecycle state.
func (l *Loop) State() State {
	return State(l.state.Load())
}

// Ticks returns how many ticks have committed, for diagnostics.
func (l *Loop) Ticks() uint64 {
	return l.ticks.Load()
}

// DegenerateCount exposes the normalizer's passthrough diagnostic.
func (l *Loop) DegenerateCount() uint64 {
	return l.norm.DegenerateCount()
}

// Run drives the loop until the deadline passes, the running flag drops,
// the context is cancelled, or a read fails. On any exit it lowers the
// running flag and releases the adapter. Run may be called once.
func (l *Loop) Run(ctx context.Context) error {
	if !l.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return fmt.Errorf("ingest: loop already started (state %s)", l.State())
	}
	defer func() {
		l.state.Store(int32(StateStopped))
		l.mind.Stop()
		if err := l.adapter.Close(); err != nil {
			log.Warn("ingest: closing adapter", "error", err)
		}
	}()

	// Confirm the adapter is live before the first paced tick.
	first, err := l.adapter.Read(1)
	if err != nil {
		return fmt.Errorf("ingest: adapter not ready: %w", err)
	}
	log.Info("ingest: loop started", "cadence", l.every, "first_eda", first[0].EDA)

	ticker := time.NewTicker(l.every)
	defer ticker.Stop()

	for {
		if ctx.Err() != nil || !l.mind.Running() || l.mind.Expired(time.Now()) {
			log.Info("ingest: loop stopping", "ticks", l.ticks.Load())
			return nil
		}

		if err := l.tick(); err != nil {
			// A mid-run read failure ends the piece rather than
			// feeding stale data downstream.
			return fmt.Errorf("ingest: tick %d: %w", l.ticks.Load()+1, err)
		}

		select {
		case <-ctx.Done():
			log.Info("ingest: loop cancelled", "ticks", l.ticks.Load())
			return nil
		case <-ticker.C:
		}
	}
}

// tick performs one read-normalize-publish cycle.
func (l *Loop) tick() error {
	frames, err := l.adapter.Read(1)
	if err != nil {
		return err
	}
	f := frames[0]

	if err := l.raw.Append([]float64{f.EDA}); err != nil {
		return err
	}
	normalized := l.norm.Normalize(l.raw.Snapshot())

	dancer := l.dancerVector(f)
	sampled := dancer[l.rng.Intn(len(dancer))]

	if err := l.mind.Apply(hivemind.Tick{
		Raw:        []float64{f.EDA},
		Normalized: normalized,
		Dancer:     dancer,
		Sampled:    sampled,
	}); err != nil {
		return err
	}

	l.ticks.Add(1)
	log.Debug("ingest: tick", "eda", f.EDA, "normalized", normalized[0],
		"dancer", dancer, "sampled", sampled)
	return nil
}

// dancerVector maps the raw position triple against the configured extents
// and clips each axis to [0,1] independently.
func (l *Loop) dancerVector(f sensor.Frame) hivemind.Vector {
	return hivemind.Vector{
		normalize.Clamp((f.X-l.extents.X.Lo)/(l.extents.X.Hi-l.extents.X.Lo), 0, 1),
		normalize.Clamp((f.Y-l.extents.Y.Lo)/(l.extents.Y.Hi-l.extents.Y.Lo), 0, 1),
		normalize.Clamp((f.Z-l.extents.Z.Lo)/(l.extents.Z.Hi-l.extents.Z.Lo), 0, 1),
	}
}
