package sensor

import (
	"math/rand"
	"sync"
)

// Range bounds one synthetic axis.
type Range struct {
	Lo, Hi float64
}

// Synthetic generates uniform-random frames shaped like the hardware's.
// It lets the whole pipeline run in rehearsal, and in tests, with no board
// attached.
type Synthetic struct {
	mu     sync.Mutex
	rng    *rand.Rand
	x      Range
	y      Range
	z      Range
	eda    Range
	closed bool
}

// NewSynthetic returns a generator producing positions within the given
// extents and EDA across a 10-bit ADC range.
func NewSynthetic(x, y, z Range) *Synthetic {
	return &Synthetic{
		rng: rand.New(rand.NewSource(rand.Int63())),
		x:   x,
		y:   y,
		z:   z,
		eda: Range{Lo: 0, Hi: 1023},
	}
}

func (s *Synthetic) uniform(r Range) float64 {
	return r.Lo + s.rng.Float64()*(r.Hi-r.Lo)
}

// Read returns n random frames.
func (s *Synthetic) Read(n int) ([]Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	frames := make([]Frame, n)
	for i := range frames {
		frames[i] = Frame{
			X:   s.uniform(s.x),
			Y:   s.uniform(s.y),
			Z:   s.uniform(s.z),
			EDA: s.uniform(s.eda),
		}
	}
	return frames, nil
}

// Close marks the generator closed. Idempotent.
func (s *Synthetic) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
