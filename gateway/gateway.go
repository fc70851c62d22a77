// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package gateway consumes the platform's event stream over a websocket
// and dispatches decoded events to registered handlers. Authentication
// and session management happen upstream; the relay endpoint this client
// dials delivers an already-authenticated stream.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/absmach/guildbot/server/otel"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zlib"
)

// Event types dispatched by the gateway.
const (
	EventMessageCreate  = "MESSAGE_CREATE"
	EventMessageDelete  = "MESSAGE_DELETE"
	EventMessageUpdate  = "MESSAGE_UPDATE"
	EventGuildMemberAdd = "GUILD_MEMBER_ADD"
	EventGuildStatus    = "GUILD_STATUS"
)

// Outbound frame types accepted by the relay.
const (
	EventMessageSend  = "MESSAGE_SEND"
	EventGuildBan     = "GUILD_BAN"
	EventGuildTimeout = "GUILD_TIMEOUT"
	EventChannelLock  = "CHANNEL_LOCK"
)

// ErrNotConnected is returned by Send when no relay session is up.
var ErrNotConnected = errors.New("gateway not connected")

// Frame is one event envelope on the wire.
type Frame struct {
	Type string          `json:"t"`
	Data json.RawMessage `json:"d"`
}

// Handler processes one decoded event payload.
type Handler func(ctx context.Context, data json.RawMessage)

// Config holds gateway client settings.
type Config struct {
	URL          string
	Compression  bool
	ReconnectMin time.Duration
	ReconnectMax time.Duration
}

// Client maintains the websocket connection and fans events out to
// handlers. Handlers run sequentially on the read loop; a panicking
// handler is recovered so one bad event cannot take the connection down.
type Client struct {
	cfg      Config
	logger   *slog.Logger
	metrics  *otel.Metrics
	handlers map[string][]Handler
	onReady  func()

	connMu sync.Mutex // guards conn and serializes writes
	conn   *websocket.Conn
}

// New creates a gateway client. The metrics argument may be nil.
func New(cfg Config, logger *slog.Logger, metrics *otel.Metrics) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectMin <= 0 {
		cfg.ReconnectMin = time.Second
	}
	if cfg.ReconnectMax < cfg.ReconnectMin {
		cfg.ReconnectMax = time.Minute
	}

	return &Client{
		cfg:      cfg,
		logger:   logger,
		metrics:  metrics,
		handlers: make(map[string][]Handler),
	}
}

// On registers a handler for an event type. Must be called before Run.
func (c *Client) On(eventType string, h Handler) {
	c.handlers[eventType] = append(c.handlers[eventType], h)
}

// OnReady registers a callback invoked once per successful connection.
func (c *Client) OnReady(fn func()) {
	c.onReady = fn
}

// Connected reports whether a relay session is currently established.
func (c *Client) Connected() bool {
	c.connMu.Lock()
	defer c.connMu.Unlock()
	return c.conn != nil
}

// Send writes an outbound frame to the relay. Fails with ErrNotConnected
// when no session is up; the caller decides whether that is fatal.
func (c *Client) Send(ctx context.Context, eventType string, payload any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode %s payload: %w", eventType, err)
	}
	frame, err := json.Marshal(Frame{Type: eventType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s frame: %w", eventType, err)
	}

	c.connMu.Lock()
	defer c.connMu.Unlock()
	if c.conn == nil {
		return ErrNotConnected
	}
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) setConn(conn *websocket.Conn) {
	c.connMu.Lock()
	c.conn = conn
	c.connMu.Unlock()
}

// Run connects and reads until ctx is cancelled, reconnecting with
// exponential backoff after dial or read failures.
func (c *Client) Run(ctx context.Context) error {
	backoff := c.cfg.ReconnectMin

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.cfg.URL, nil)
		if err != nil {
			c.logger.Warn("gateway dial failed",
				slog.String("url", c.cfg.URL),
				slog.Duration("retry_in", backoff),
				slog.String("error", err.Error()))
			c.metrics.AddGatewayReconnect(ctx)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, c.cfg.ReconnectMax)
			continue
		}

		c.logger.Info("gateway connected", slog.String("url", c.cfg.URL))
		backoff = c.cfg.ReconnectMin
		c.setConn(conn)
		if c.onReady != nil {
			c.onReady()
		}

		err = c.readLoop(ctx, conn)
		c.setConn(nil)
		conn.Close()
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("gateway connection lost",
			slog.Duration("retry_in", backoff),
			slog.String("error", err.Error()))
		c.metrics.AddGatewayReconnect(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, c.cfg.ReconnectMax)
	}
}

// readLoop reads frames until the connection fails or ctx is cancelled.
func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	// Unblock ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if messageType == websocket.BinaryMessage && c.cfg.Compression {
			data, err = inflate(data)
			if err != nil {
				c.logger.Warn("failed to decompress gateway frame", slog.String("error", err.Error()))
				continue
			}
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			c.logger.Warn("malformed gateway frame", slog.String("error", err.Error()))
			continue
		}

		c.dispatch(ctx, frame)
	}
}

// dispatch runs all handlers registered for the frame's event type.
func (c *Client) dispatch(ctx context.Context, frame Frame) {
	for _, h := range c.handlers[frame.Type] {
		func() {
			defer func() {
				if r := recover(); r != nil {
					c.logger.Error("panic in gateway handler",
						slog.String("event_type", frame.Type),
						slog.Any("panic", r))
				}
			}()
			h(ctx, frame.Data)
		}()
	}
}

// inflate decompresses a zlib-compressed frame.
func inflate(data []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return io.ReadAll(r)
}
