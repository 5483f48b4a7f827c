package sensor

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/avast/retry-go"

	"github.com/DigiScore/kc-plus/internal/log"
)

// Default connection parameters for the acquisition bridge.
const (
	DefaultDialTimeout = 5 * time.Second
	DefaultReadTimeout = 2 * time.Second
	retryDelay         = time.Second
)

// DialOptions configures the hardware connection.
type DialOptions struct {
	Address     string // bridge address, host:port
	Baud        int    // acquisition rate requested from the board
	Channels    []int  // analog channels to acquire
	DialTimeout time.Duration
	ReadTimeout time.Duration
	Retries     uint // connection re-attempts after the first failure
}

// Hardware reads frames from a BITalino-style acquisition bridge over a
// line-oriented TCP protocol. One line per frame, whitespace-separated
// columns, position triple then EDA in the trailing four columns.
type Hardware struct {
	conn net.Conn
	r    *bufio.Reader

	readTimeout time.Duration

	mu     sync.Mutex
	closed bool
}

// Dial connects to the bridge and starts acquisition. Connection attempts
// are retried a bounded number of times; after that the caller decides
// whether to fall back to synthetic sampling or abort the piece.
func Dial(opts DialOptions) (*Hardware, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = DefaultDialTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = DefaultReadTimeout
	}

	var conn net.Conn
	err := retry.Do(
		func() error {
			c, err := net.DialTimeout("tcp", opts.Address, opts.DialTimeout)
			if err != nil {
				return err
			}
			conn = c
			return nil
		},
		retry.Attempts(opts.Retries+1),
		retry.Delay(retryDelay),
		retry.OnRetry(func(n uint, err error) {
			log.Warn("sensor: connection attempt failed, retrying",
				"attempt", n+1, "address", opts.Address, "error", err)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("sensor: connecting to %s: %w", opts.Address, err)
	}

	h := &Hardware{
		conn:        conn,
		r:           bufio.NewReader(conn),
		readTimeout: opts.ReadTimeout,
	}
	if err := h.start(opts.Baud, opts.Channels); err != nil {
		conn.Close()
		return nil, err
	}

	log.Info("sensor: board connected", "address", opts.Address,
		"baud", opts.Baud, "channels", opts.Channels)
	return h, nil
}

// start sends the acquisition command and waits for the bridge to confirm.
func (h *Hardware) start(baud int, channels []int) error {
	chs := make([]string, len(channels))
	for i, c := range channels {
		chs[i] = strconv.Itoa(c)
	}
	cmd := fmt.Sprintf("start %d %s\n", baud, strings.Join(chs, ","))

	h.conn.SetDeadline(time.Now().Add(h.readTimeout))
	defer h.conn.SetDeadline(time.Time{})

	if _, err := h.conn.Write([]byte(cmd)); err != nil {
		return fmt.Errorf("sensor: starting acquisition: %w", err)
	}
	line, err := h.r.ReadString('\n')
	if err != nil {
		return fmt.Errorf("sensor: waiting for acquisition ack: %w", err)
	}
	if strings.TrimSpace(line) != "ok" {
		return fmt.Errorf("sensor: bridge refused acquisition: %q", strings.TrimSpace(line))
	}
	return nil
}

// Read requests and parses n frames. Every network operation is bounded by
// the read timeout so a wedged board cannot stall the ingestion loop
// indefinitely.
func (h *Hardware) Read(n int) ([]Frame, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	h.conn.SetDeadline(time.Now().Add(h.readTimeout))
	defer h.conn.SetDeadline(time.Time{})

	if _, err := fmt.Fprintf(h.conn, "read %d\n", n); err != nil {
		return nil, fmt.Errorf("sensor: requesting %d frames: %w", n, err)
	}

	frames := make([]Frame, 0, n)
	for i := 0; i < n; i++ {
		line, err := h.r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("sensor: reading frame %d/%d: %w", i+1, n, err)
		}
		f, err := parseFrame(line)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
	return frames, nil
}

// parseFrame decodes one bridge line. The board may prepend sequence and
// digital columns; only the trailing four carry the position triple and EDA.
func parseFrame(line string) (Frame, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return Frame{}, fmt.Errorf("sensor: short frame, %d columns: %q", len(fields), strings.TrimSpace(line))
	}
	tail := fields[len(fields)-4:]
	vals := make([]float64, 4)
	for i, s := range tail {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return Frame{}, fmt.Errorf("sensor: bad frame column %q: %w", s, err)
		}
		vals[i] = v
	}
	return Frame{X: vals[0], Y: vals[1], Z: vals[2], EDA: vals[3]}, nil
}

// Close stops acquisition and releases the connection. Idempotent.
func (h *Hardware) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true

	// Best effort; the board may already be gone.
	h.conn.SetDeadline(time.Now().Add(time.Second))
	h.conn.Write([]byte("stop\n"))
	return h.conn.Close()
}
