// Package stream pushes feature frames to an external consumer (sound
// engine, graphics rig) over a websocket connection.
//
// The stream is a convenience surface, not a lifeline: losing the peer
// never stops the piece, and a slow peer costs dropped frames, not cadence.
package stream

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/DigiScore/kc-plus/internal/log"
	"github.com/DigiScore/kc-plus/pkg/hivemind"
)

const (
	dialTimeout  = 5 * time.Second
	writeTimeout = 2 * time.Second
)

// Frame is one outbound payload.
type Frame struct {
	Session string          `json:"session"`
	Seq     uint64          `json:"seq"`
	EDA     float64         `json:"eda"`
	Dancer  hivemind.Vector `json:"dancer"`
	Sampled float64         `json:"sampled"`
}

// Client streams hivemind features to one websocket endpoint.
type Client struct {
	url     string
	session string
	mind    *hivemind.Hivemind
	every   time.Duration

	sent    atomic.Uint64
	dropped atomic.Uint64
}

// NewClient builds a stream client. every is the push cadence.
func NewClient(url, session string, mind *hivemind.Hivemind, every time.Duration) *Client {
	return &Client{
		url:     url,
		session: session,
		mind:    mind,
		every:   every,
	}
}

// Sent reports frames delivered to the peer.
func (c *Client) Sent() uint64 { return c.sent.Load() }

// Dropped reports frames lost to write failures.
func (c *Client) Dropped() uint64 { return c.dropped.Load() }

// Run connects and streams until the piece stops or ctx is cancelled.
// Stream failures are downgraded to warnings: the runner exits clean so
// the rest of the performance keeps going.
func (c *Client) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.url, nil)
	if err != nil {
		log.Warn("stream: endpoint unreachable, streaming disabled",
			"url", c.url, "error", err)
		return nil
	}
	defer conn.Close()
	log.Info("stream: connected", "url", c.url)

	ticker := time.NewTicker(c.every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !c.mind.Running() {
				return nil
			}
			if err := c.push(conn); err != nil {
				c.dropped.Add(1)
				log.Warn("stream: peer lost, streaming disabled",
					"url", c.url, "sent", c.sent.Load(), "error", err)
				return nil
			}
		}
	}
}

func (c *Client) push(conn *websocket.Conn) error {
	state := c.mind.Snapshot()
	norm := state.Normalized[0]
	frame := Frame{
		Session: c.session,
		Seq:     c.sent.Load() + 1,
		EDA:     norm[len(norm)-1],
		Dancer:  state.Dancer,
		Sampled: state.Sampled,
	}

	payload, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return err
	}
	c.sent.Add(1)
	return nil
}
