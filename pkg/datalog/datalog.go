// Package datalog records each tick's features to a session-stamped CSV
// file for later analysis of the performance.
package datalog

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/DigiScore/kc-plus/internal/log"
	"github.com/DigiScore/kc-plus/pkg/hivemind"
)

var header = []string{"time", "eda_raw", "eda_norm", "x", "y", "z", "sampled"}

// Writer logs hivemind snapshots at a fixed cadence.
type Writer struct {
	dir     string
	session string
	mind    *hivemind.Hivemind
	every   time.Duration

	rows atomic.Uint64
}

// NewWriter builds a Writer logging into dir.
func NewWriter(dir, session string, mind *hivemind.Hivemind, every time.Duration) *Writer {
	return &Writer{
		dir:     dir,
		session: session,
		mind:    mind,
		every:   every,
	}
}

// Rows reports how many rows have been written.
func (w *Writer) Rows() uint64 { return w.rows.Load() }

// Path returns the CSV file path for this session.
func (w *Writer) Path() string {
	return filepath.Join(w.dir, fmt.Sprintf("kcplus_%s.csv", w.session))
}

// Run logs until the piece stops or ctx is cancelled, then flushes and
// closes the file.
func (w *Writer) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("datalog: creating %s: %w", w.dir, err)
	}
	f, err := os.Create(w.Path())
	if err != nil {
		return fmt.Errorf("datalog: creating %s: %w", w.Path(), err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	defer cw.Flush()

	if err := cw.Write(header); err != nil {
		return fmt.Errorf("datalog: writing header: %w", err)
	}
	log.Info("datalog: recording", "path", w.Path())

	ticker := time.NewTicker(w.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !w.mind.Running() {
				log.Info("datalog: recording finished", "rows", w.rows.Load())
				return nil
			}
			if err := w.writeRow(cw); err != nil {
				return fmt.Errorf("datalog: writing row: %w", err)
			}
		}
	}
}

func (w *Writer) writeRow(cw *csv.Writer) error {
	state := w.mind.Snapshot()
	raw := state.Raw[0]
	norm := state.Normalized[0]

	row := []string{
		time.Now().Format(time.RFC3339Nano),
		formatFloat(raw[len(raw)-1]),
		formatFloat(norm[len(norm)-1]),
		formatFloat(state.Dancer[0]),
		formatFloat(state.Dancer[1]),
		formatFloat(state.Dancer[2]),
		formatFloat(state.Sampled),
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	w.rows.Add(1)

	// Flush once a second so a crash loses little.
	if w.rows.Load()%10 == 0 {
		cw.Flush()
		if err := cw.Error(); err != nil {
			return err
		}
	}
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
