// Package normalize turns raw sensor windows into stable [0,1] features.
//
// The pipeline is detrend then min-max scale. Detrending removes the slow
// baseline drift biosignal channels accumulate over minutes (EDA level
// wanders while the gesture lives in the relative change); scaling maps the
// newest sample against the extremes seen in the current window.
package normalize

import (
	"sync/atomic"

	"github.com/DigiScore/kc-plus/internal/log"
)

// minMargin widens the window minimum by this fraction of the range so the
// newest sample never sits exactly on the lower boundary.
const minMargin = 0.05

// Normalizer scales rolling-window snapshots. It is stateless apart from a
// diagnostics counter and is safe for concurrent use.
type Normalizer struct {
	degenerate atomic.Uint64
}

// New returns a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Detrend fits a least-squares line through row (x = sample index) and
// returns the residual. Detrending a perfect ramp leaves a near-zero
// residual; detrending a constant leaves it unchanged.
func Detrend(row []float64) []float64 {
	n := len(row)
	out := make([]float64, n)
	if n < 2 {
		copy(out, row)
		return out
	}

	var sumX, sumY, sumXY, sumX2 float64
	for i, y := range row {
		x := float64(i)
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}
	fn := float64(n)
	denom := fn*sumX2 - sumX*sumX
	if denom == 0 {
		copy(out, row)
		return out
	}
	slope := (fn*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / fn

	for i, y := range row {
		out[i] = y - (slope*float64(i) + intercept)
	}
	return out
}

// Normalize maps the newest column of window (one row per channel, columns
// oldest to newest) into [0,1] per channel.
//
// Degenerate channels, where the detrended window has zero range, pass the
// raw newest value through unscaled and unclipped. The piece must keep
// running on a flatlined sensor, so availability wins over boundedness here;
// callers must not assume the output is always in [0,1]. Each passthrough
// bumps the DegenerateCount diagnostic.
func (n *Normalizer) Normalize(window [][]float64) []float64 {
	out := make([]float64, len(window))
	for ch, row := range window {
		if len(row) == 0 {
			continue
		}
		detrended := Detrend(row)

		lo, hi := detrended[0], detrended[0]
		for _, v := range detrended[1:] {
			if v < lo {
				lo = v
			}
			if v > hi {
				hi = v
			}
		}

		if hi-lo == 0 {
			raw := row[len(row)-1]
			n.degenerate.Add(1)
			log.Debug("normalize: zero range, raw passthrough", "channel", ch, "value", raw)
			out[ch] = raw
			continue
		}

		lo -= minMargin * (hi - lo)
		v := (detrended[len(detrended)-1] - lo) / (hi - lo)
		out[ch] = Clamp(v, 0, 1)
	}
	return out
}

// DegenerateCount reports how many zero-range passthroughs have occurred.
func (n *Normalizer) DegenerateCount() uint64 {
	return n.degenerate.Load()
}

// Clamp restricts v to the range [min, max].
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
