// Package signal is the websocket signaling adapter. It owns the connection
// to the channel's signaling endpoint, fans inbound frames out to the engine
// and implements the outbound core.Signaler.
package signal

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

const (
	writeDeadline = 5 * time.Second
	sendBuffer    = 32
	pingPeriod    = 30 * time.Second
)

// Client is one signaling connection for the local participant.
type Client struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

// Dial connects to the signaling endpoint.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	log.Info().Str("module", "signal").Str("url", url).Msg("signaling connected")
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}, nil
}

// Run starts the read/write pumps. Inbound frames are dispatched to sink on
// the read pump goroutine, which keeps per-peer signaling ordered.
func (c *Client) Run(ctx context.Context, sink EventSink) {
	go c.writePump(ctx)
	go c.readPump(ctx, sink)
}

// TrySend queues a frame without blocking; a full buffer is backpressure.
func (c *Client) TrySend(data []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- data:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *Client) sendJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.TrySend(b)
}

func (c *Client) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
	log.Info().Str("module", "signal").Msg("signaling closed")
}

func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("writePump ctx done")
			return
		case <-ticker.C:
			if err := c.sendJSON(pingMessage{Type: "ping"}); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("keepalive ping")
			}
		case data, ok := <-c.send:
			if !ok {
				log.Warn().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

func (c *Client) readPump(ctx context.Context, sink EventSink) {
	defer func() {
		log.Info().Str("module", "signal").Msg("readPump closing")
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("module", "signal").Msg("readPump ctx done")
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("readPump read error")
				return
			}
			c.dispatch(sink, data)
		}
	}
}
