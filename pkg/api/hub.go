// WebSocket event fan-out
//
// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

package api

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"idleguard/pkg/idle"
	"idleguard/pkg/log"
	"idleguard/pkg/metrics"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second

	clientQueue = 64
)

// Message is one frame pushed to websocket clients.
type Message struct {
	Type   string      `json:"type"`
	Event  *idle.Event `json:"event,omitempty"`
	Status interface{} `json:"status,omitempty"`
}

// HubConfig bounds the per-client send rate.
type HubConfig struct {
	// Rate is the sustained messages per second sent to one client.
	Rate float64
	// Burst is how many messages may be sent back to back.
	Burst int

	Metrics *metrics.GuardMetrics
	Logger  *log.Logger
}

// Hub broadcasts protection events to connected websocket clients. It is an
// idle.Recorder.
type Hub struct {
	cfg    HubConfig
	logger *log.Logger

	mu      sync.RWMutex
	clients map[int64]*client
	nextID  int64
	dropped atomic.Uint64
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Rate <= 0 {
		cfg.Rate = 20
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 10
	}
	h := &Hub{
		cfg:     cfg,
		logger:  cfg.Logger,
		clients: make(map[int64]*client),
	}
	if h.logger == nil {
		h.logger = log.GetLogger("api")
	}
	return h
}

// Record queues the event for every client.
func (h *Hub) Record(ev idle.Event) {
	h.Broadcast(Message{Type: "event", Event: &ev})
}

// Broadcast queues msg for every client. Clients whose queue is full miss
// the message.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.send(msg) {
			h.dropped.Add(1)
			h.logger.WithField("client", c.id).Warn("client queue full, message dropped")
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Dropped returns how many messages were lost to slow clients.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

func (h *Hub) add(conn *websocket.Conn) *client {
	h.mu.Lock()
	h.nextID++
	c := &client{
		id:      h.nextID,
		conn:    conn,
		queue:   make(chan Message, clientQueue),
		done:    make(chan struct{}),
		limiter: rate.NewLimiter(rate.Limit(h.cfg.Rate), h.cfg.Burst),
	}
	h.clients[c.id] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.setGauge(n)
	h.logger.WithField("client", c.id).Info("websocket client connected")
	return c
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c.id]
	delete(h.clients, c.id)
	n := len(h.clients)
	h.mu.Unlock()

	c.close()
	if ok {
		h.setGauge(n)
		h.logger.WithField("client", c.id).Info("websocket client disconnected")
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := h.clients
	h.clients = make(map[int64]*client)
	h.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
	h.setGauge(0)
}

func (h *Hub) setGauge(n int) {
	if h.cfg.Metrics != nil {
		h.cfg.Metrics.APIClients.Set(nil, float64(n))
	}
}

// serve runs the client's pumps until the connection ends.
func (h *Hub) serve(c *client) {
	defer h.remove(c)
	go c.writePump(h.logger)
	c.readPump()
}

type client struct {
	id      int64
	conn    *websocket.Conn
	queue   chan Message
	limiter *rate.Limiter

	once sync.Once
	done chan struct{}
}

func (c *client) send(msg Message) bool {
	select {
	case <-c.done:
		return true
	default:
	}
	select {
	case c.queue <- msg:
		return true
	default:
		return false
	}
}

func (c *client) close() {
	c.once.Do(func() {
		close(c.done)
		c.conn.Close()
	})
}

// readPump discards client frames; it exists to process control frames and
// notice disconnects.
func (c *client) readPump() {
	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *client) writePump(logger *log.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-c.done
		cancel()
	}()

	for {
		select {
		case msg := <-c.queue:
			if err := c.limiter.Wait(ctx); err != nil {
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				logger.WithError(err).Debug("websocket write failed")
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}
