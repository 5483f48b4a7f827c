// Package hivemind is the shared state store of the fusion core. One
// ingestion loop writes it, any number of downstream loops (generation,
// actuator, listener, dashboard) read it.
//
// Readers get best-effort, eventually-consistent views: the most recently
// completed tick, never a torn one. Every read hands back copies; interior
// buffer storage is never exposed.
package hivemind

import (
	"fmt"
	"sync"
	"time"

	"github.com/DigiScore/kc-plus/pkg/buffer"
)

// neutralNormalized pre-fills the normalized window at mid-range so first-tick
// readers see a plausible resting signal rather than a wall of zeros.
const neutralNormalized = 0.5

// Vector is a 3D dancer position feature, each axis in [0,1].
type Vector [3]float64

// Tick is one complete ingestion update, applied atomically.
type Tick struct {
	Raw        []float64 // newest raw column, one value per channel
	Normalized []float64 // newest normalized column, one value per channel
	Dancer     Vector    // position feature, extents-normalized and clipped
	Sampled    float64   // randomly chosen component of Dancer
}

// State is a point-in-time copy of everything a consumer may read.
type State struct {
	Running    bool        `json:"running"`
	Deadline   time.Time   `json:"deadline"`
	Raw        [][]float64 `json:"raw"`
	Normalized [][]float64 `json:"normalized"`
	Dancer     Vector      `json:"dancer"`
	XYHistory  [][]float64 `json:"xy_history"`
	Sampled    float64     `json:"sampled"`
}

// Hivemind holds the live buffers and flags behind one RWMutex.
type Hivemind struct {
	mu sync.RWMutex

	running  bool
	deadline time.Time

	raw        *buffer.Rolling
	normalized *buffer.Rolling
	xyHistory  *buffer.Rolling
	dancer     Vector
	sampled    float64
}

// New constructs a Hivemind with channels x width signal windows, pre-filled
// with neutral values, and the running flag raised. Shape errors surface
// here, before any loop starts.
func New(channels, width int) (*Hivemind, error) {
	raw, err := buffer.New(channels, width, 0)
	if err != nil {
		return nil, err
	}
	normalized, err := buffer.New(channels, width, neutralNormalized)
	if err != nil {
		return nil, err
	}
	xy, err := buffer.New(2, width, neutralNormalized)
	if err != nil {
		return nil, err
	}
	return &Hivemind{
		running:    true,
		raw:        raw,
		normalized: normalized,
		xyHistory:  xy,
		dancer:     Vector{neutralNormalized, neutralNormalized, neutralNormalized},
		sampled:    neutralNormalized,
	}, nil
}

// SetDeadline records the absolute end of the piece. The director computes
// it exactly once, before starting any loop; later calls are ignored.
func (h *Hivemind) SetDeadline(t time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.deadline.IsZero() {
		h.deadline = t
	}
}

// Deadline returns the piece deadline, or the zero time if none is set.
func (h *Hivemind) Deadline() time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.deadline
}

// Expired reports whether the deadline is set and has passed.
func (h *Hivemind) Expired(now time.Time) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return !h.deadline.IsZero() && !now.Before(h.deadline)
}

// Running reports whether the piece is still live.
func (h *Hivemind) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Stop lowers the running flag. It is idempotent and one-way: the flag
// never goes back up.
func (h *Hivemind) Stop() {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
}

// Apply commits one ingestion tick under a single lock, so no reader can
// see the buffers from one tick and the feature vector from another.
func (h *Hivemind) Apply(t Tick) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Validate both columns before touching any buffer, so a rejected
	// tick leaves every window where it was.
	if len(t.Raw) != h.raw.Channels() {
		return fmt.Errorf("hivemind: raw column has %d values, want %d", len(t.Raw), h.raw.Channels())
	}
	if len(t.Normalized) != h.normalized.Channels() {
		return fmt.Errorf("hivemind: normalized column has %d values, want %d", len(t.Normalized), h.normalized.Channels())
	}

	if err := h.raw.Append(t.Raw); err != nil {
		return err
	}
	if err := h.normalized.Append(t.Normalized); err != nil {
		return err
	}
	if err := h.xyHistory.Append([]float64{t.Dancer[0], t.Dancer[1]}); err != nil {
		return err
	}
	h.dancer = t.Dancer
	h.sampled = t.Sampled
	return nil
}

// RawSnapshot returns a copy of the raw signal window.
func (h *Hivemind) RawSnapshot() [][]float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.raw.Snapshot()
}

// NormalizedSnapshot returns a copy of the normalized signal window.
func (h *Hivemind) NormalizedSnapshot() [][]float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.normalized.Snapshot()
}

// Dancer returns the current position feature vector.
func (h *Hivemind) Dancer() Vector {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.dancer
}

// Sampled returns the published random scalar component.
func (h *Hivemind) Sampled() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.sampled
}

// Snapshot returns a full copy of the store for dashboard and stream
// consumers.
func (h *Hivemind) Snapshot() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return State{
		Running:    h.running,
		Deadline:   h.deadline,
		Raw:        h.raw.Snapshot(),
		Normalized: h.normalized.Snapshot(),
		Dancer:     h.dancer,
		XYHistory:  h.xyHistory.Snapshot(),
		Sampled:    h.sampled,
	}
}
