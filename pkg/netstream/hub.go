// Package netstream fans a delta-state stream out to live spectators over
// websockets as a delta.Recorder produces it, generalized from the
// teacher's pkg/network/gameserver.go connection-handling shape (accept
// loop, per-connection goroutine, logrus connection lifecycle logging)
// from player command connections to one-way delta-state spectators.
package netstream

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// sendQueueDepth bounds how many unsent broadcasts a spectator connection
// can fall behind by before Broadcast starts dropping messages to it.
const sendQueueDepth = 64

// Hub accepts spectator websocket connections and fans broadcast bytes out
// to all of them. Safe for concurrent use.
type Hub struct {
	mu         sync.RWMutex
	spectators map[uint64]*spectator
	nextID     uint64

	upgrader   websocket.Upgrader
	httpServer *http.Server
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

type spectator struct {
	id        uint64
	conn      *websocket.Conn
	queue     chan []byte
	closeOnce sync.Once
	closed    chan struct{}
}

// NewHub constructs a Hub accepting connections from any origin, matching
// the teacher's federation hub upgrader (CheckOrigin always true — this
// is a local spectate endpoint, not a public API).
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		spectators: make(map[uint64]*spectator),
		upgrader:   websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start begins serving the spectate endpoint at addr.
func (h *Hub) Start(addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/spectate", h.handleSpectate)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("netstream: listen on %s: %w", addr, err)
	}

	h.httpServer = &http.Server{
		Addr:    listener.Addr().String(),
		Handler: mux,
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		if err := h.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Error("netstream hub server error")
		}
	}()

	return nil
}

// Addr returns the address the hub is listening on, or "" if not started.
func (h *Hub) Addr() string {
	if h.httpServer == nil {
		return ""
	}
	return h.httpServer.Addr
}

// Stop closes every spectator connection and shuts down the HTTP server.
func (h *Hub) Stop() error {
	h.cancel()

	h.mu.Lock()
	spectators := make([]*spectator, 0, len(h.spectators))
	for _, sp := range h.spectators {
		spectators = append(spectators, sp)
	}
	h.mu.Unlock()

	for _, sp := range spectators {
		h.closeSpectator(sp)
	}

	if h.httpServer != nil {
		if err := h.httpServer.Close(); err != nil {
			return fmt.Errorf("netstream: close server: %w", err)
		}
	}
	h.wg.Wait()
	return nil
}

// handleSpectate upgrades an incoming HTTP request and registers the
// connection as a spectator.
func (h *Hub) handleSpectate(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Error("netstream: failed to upgrade websocket")
		return
	}
	h.addSpectator(conn)
}

func (h *Hub) addSpectator(conn *websocket.Conn) {
	h.mu.Lock()
	id := h.nextID
	h.nextID++
	sp := &spectator{
		id:     id,
		conn:   conn,
		queue:  make(chan []byte, sendQueueDepth),
		closed: make(chan struct{}),
	}
	h.spectators[id] = sp
	h.mu.Unlock()

	logrus.WithField("spectator_id", id).Info("spectator connected")

	h.wg.Add(2)
	go h.writePump(sp)
	go h.readPump(sp)
}

// readPump discards spectator input (a pure fan-out endpoint has none to
// act on) and exists only to detect the connection closing.
func (h *Hub) readPump(sp *spectator) {
	defer h.wg.Done()
	for {
		if _, _, err := sp.conn.ReadMessage(); err != nil {
			h.removeSpectator(sp)
			return
		}
	}
}

func (h *Hub) writePump(sp *spectator) {
	defer h.wg.Done()
	for {
		select {
		case <-sp.closed:
			return
		case data, ok := <-sp.queue:
			if !ok {
				return
			}
			if err := sp.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
				logrus.WithError(err).WithField("spectator_id", sp.id).Debug("spectator write error")
				h.removeSpectator(sp)
				return
			}
		}
	}
}

func (h *Hub) removeSpectator(sp *spectator) {
	h.mu.Lock()
	_, present := h.spectators[sp.id]
	delete(h.spectators, sp.id)
	h.mu.Unlock()
	if present {
		h.closeSpectator(sp)
		logrus.WithField("spectator_id", sp.id).Info("spectator disconnected")
	}
}

func (h *Hub) closeSpectator(sp *spectator) {
	sp.closeOnce.Do(func() {
		close(sp.closed)
		sp.conn.Close()
	})
}

// Broadcast fans data out to every connected spectator. A spectator whose
// send queue is full is behind and loses this message rather than
// slowing down the producer, and simply sees a gap. A spectator that
// (re)connects receives only what is broadcast after it joins; the hub
// does not send it an entire state.
func (h *Hub) Broadcast(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sp := range h.spectators {
		select {
		case sp.queue <- data:
		default:
			logrus.WithField("spectator_id", sp.id).Warn("spectator send queue full, dropping state bytes")
		}
	}
}

// SpectatorCount returns the number of currently connected spectators.
func (h *Hub) SpectatorCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.spectators)
}
