// Package buffer provides the fixed-width rolling window that backs every
// signal channel in the fusion core. It is a plain data structure: a Rolling
// is owned by exactly one writer and holds no locks of its own.
package buffer

import "fmt"

// Rolling is a (channels x width) sliding window of samples.
// Columns are ordered oldest to newest, left to right. Append always evicts
// exactly the oldest column, so the width never changes after construction.
type Rolling struct {
	channels int
	width    int
	data     [][]float64 // data[ch][col]
}

// New creates a Rolling of the given shape with every cell set to fill.
// Both dimensions must be positive; a bad shape is a configuration error
// and is rejected here rather than at first use.
func New(channels, width int, fill float64) (*Rolling, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("buffer: channel count must be positive, got %d", channels)
	}
	if width <= 0 {
		return nil, fmt.Errorf("buffer: width must be positive, got %d", width)
	}
	data := make([][]float64, channels)
	for ch := range data {
		row := make([]float64, width)
		if fill != 0 {
			for i := range row {
				row[i] = fill
			}
		}
		data[ch] = row
	}
	return &Rolling{channels: channels, width: width, data: data}, nil
}

// MustNew is New for shapes known good at compile time. It panics on error
// and exists for tests and fixed-shape internals.
func MustNew(channels, width int, fill float64) *Rolling {
	b, err := New(channels, width, fill)
	if err != nil {
		panic(err)
	}
	return b
}

// Channels returns the channel count.
func (b *Rolling) Channels() int { return b.channels }

// Width returns the window length.
func (b *Rolling) Width() int { return b.width }

// Append shifts the window left by one and writes column as the newest
// entry. len(column) must equal the channel count.
func (b *Rolling) Append(column []float64) error {
	if len(column) != b.channels {
		return fmt.Errorf("buffer: column has %d values, want %d", len(column), b.channels)
	}
	for ch := range b.data {
		row := b.data[ch]
		copy(row, row[1:])
		row[b.width-1] = column[ch]
	}
	return nil
}

// Newest returns a copy of the most recent column.
func (b *Rolling) Newest() []float64 {
	col := make([]float64, b.channels)
	for ch := range b.data {
		col[ch] = b.data[ch][b.width-1]
	}
	return col
}

// Snapshot returns a deep copy of the current contents. Readers work on the
// copy, so they can never observe a half-shifted window.
func (b *Rolling) Snapshot() [][]float64 {
	out := make([][]float64, b.channels)
	for ch := range b.data {
		row := make([]float64, b.width)
		copy(row, b.data[ch])
		out[ch] = row
	}
	return out
}

// Row returns a copy of one channel's window, oldest to newest.
func (b *Rolling) Row(ch int) []float64 {
	row := make([]float64, b.width)
	copy(row, b.data[ch])
	return row
}
