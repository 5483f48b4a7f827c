// Package sensor provides the biosignal board adapters for the fusion core.
//
// Two implementations of the same Adapter interface exist: Hardware speaks
// to a BITalino-style acquisition bridge over TCP, Synthetic generates
// uniform-random frames of the same shape so the full pipeline runs and
// tests without a board attached. The variant is chosen once at
// construction, never per tick.
package sensor

import "errors"

// ErrClosed is returned by Read after the adapter has been closed.
var ErrClosed = errors.New("sensor: adapter closed")

// Frame is one acquisition sample. On the wire the board sends the position
// triple in the three columns before the trailing EDA column; the adapter
// re-exposes that convention as named fields.
type Frame struct {
	X   float64 // dancer position, motion-capture frame
	Y   float64
	Z   float64
	EDA float64 // electrodermal activity, raw ADC value
}

// Adapter is a connected sample source. Implementations own their
// connection exclusively and must release it on Close, exactly once.
type Adapter interface {
	// Read returns exactly n frames or an error. A mid-run failure is
	// fatal to the caller's loop; adapters do not retry reads.
	Read(n int) ([]Frame, error)

	// Close releases the connection. Safe to call more than once.
	Close() error
}
