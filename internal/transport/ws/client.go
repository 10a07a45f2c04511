// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 GachaFight Contributors

package ws

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"

	"github.com/gachafight/arena/internal/core"
	"github.com/gachafight/arena/internal/match"
)

// client is one websocket connection. Outbound events go through a bounded
// outbox drained by writePump, so Send never blocks the caller.
type client struct {
	id     ulid.ULID
	conn   *websocket.Conn
	cfg    Config
	logger *slog.Logger

	outbox    chan core.Event
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, cfg Config, logger *slog.Logger) *client {
	id := match.NewID()
	return &client{
		id:     id,
		conn:   conn,
		cfg:    cfg,
		logger: logger.With("conn_id", id.String()),
		outbox: make(chan core.Event, cfg.OutboxSize),
		done:   make(chan struct{}),
	}
}

func (c *client) ID() ulid.ULID { return c.id }

// Send enqueues ev. It reports false when the outbox is full or the
// connection is closed.
func (c *client) Send(ev core.Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.outbox <- ev:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		//nolint:errcheck // peer may already be gone
		c.conn.Close()
	})
}

func (c *client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case ev := <-c.outbox:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout)); err != nil {
				return
			}
			if err := c.conn.WriteJSON(ev); err != nil {
				c.logger.Debug("write failed", "event_type", ev.Type, "error", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debug("ping failed", "error", err)
				return
			}
		case <-c.done:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			//nolint:errcheck // best-effort close frame
			c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		}
	}
}

// readPump reads envelopes until the connection fails or the pong
// deadline passes, handing each to handle.
func (c *client) readPump(handle func(inbound)) {
	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	}
	if err := extend(); err != nil {
		return
	}
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Debug("read failed", "error", err)
			}
			return
		}
		if err := extend(); err != nil {
			return
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.logger.Debug("discarding malformed message", "error", err)
			continue
		}
		handle(msg)
	}
}
