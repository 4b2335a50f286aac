package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"ordersummary/server/internal/ws"
	"ordersummary/server/storage"
)

// publishQueueSize bounds the hand-off between publishers and the dispatch
// loop. When full, the oldest pending publish is dropped: a stale summary is
// superseded by the newer data that is displacing it.
const publishQueueSize = 64

const wsWriteTimeout = 10 * time.Second

type publishJob struct {
	rows        []*storage.SummaryRow
	deliveryIDs []int64
}

// Hub owns the websocket listener and delivers summary updates to
// subscribed clients. Publishers hand work to a single persistent dispatch
// goroutine through a bounded ordered channel; client sends never run on
// the publisher's goroutine.
type Hub struct {
	registry *ClientRegistry
	port     int

	mu    sync.RWMutex
	conns map[string]*ws.Conn

	publishCh chan publishJob
	done      chan struct{}
	stopOnce  sync.Once

	cbMu               sync.RWMutex
	callbackRegistered bool

	server *http.Server
}

// NewHub creates a Hub delivering to clients tracked in registry and
// starts its dispatch loop. The websocket listener is started separately
// with Start.
func NewHub(registry *ClientRegistry, port int) *Hub {
	h := &Hub{
		registry:  registry,
		port:      port,
		conns:     make(map[string]*ws.Conn),
		publishCh: make(chan publishJob, publishQueueSize),
		done:      make(chan struct{}),
	}
	go h.dispatchLoop()
	return h
}

// Start launches the websocket listener. It returns once the listener is
// running; the listener itself runs until Stop or context cancellation.
func (h *Hub) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.HandleClient)

	h.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", h.port),
		Handler: mux,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := h.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logError("WebSocket listener failed", "error", err)
			errCh <- err
		}
	}()

	go func() {
		select {
		case <-ctx.Done():
			h.Stop()
		case <-h.done:
		}
	}()

	// Give an immediate bind failure a moment to surface.
	select {
	case err := <-errCh:
		return err
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

// Stop shuts down the dispatch loop, the listener, and all connections.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		if h.server != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			h.server.Shutdown(shutdownCtx)
		}
		h.mu.Lock()
		for id, conn := range h.conns {
			conn.Close()
			delete(h.conns, id)
		}
		h.mu.Unlock()
	})
}

// Publish hands recomputed rows to the dispatch loop. deliveryIDs are the
// delivery documents affected by the change, used to select interested
// clients. Publish never blocks: when the queue is full the oldest pending
// job is discarded to make room.
func (h *Hub) Publish(rows []*storage.SummaryRow, deliveryIDs []int64) {
	job := publishJob{rows: rows, deliveryIDs: deliveryIDs}
	for {
		select {
		case h.publishCh <- job:
			return
		case <-h.done:
			return
		default:
		}
		select {
		case stale := <-h.publishCh:
			logDebug("Publish queue full, dropping oldest pending update",
				"dropped_rows", len(stale.rows))
		default:
		}
	}
}

// dispatchLoop drains the publish queue in order and performs the
// registry lookup and client sends. It is the only goroutine that writes
// summary updates, which preserves publish order per client.
func (h *Hub) dispatchLoop() {
	for {
		select {
		case job := <-h.publishCh:
			h.deliver(job)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) deliver(job publishJob) {
	clientIDs := h.registry.SnapshotInterested(job.deliveryIDs)
	if len(clientIDs) == 0 {
		return
	}

	msg := ws.Update{Type: ws.MessageTypeStockUpdate, Payload: job.rows}
	for _, clientID := range clientIDs {
		conn := h.conn(clientID)
		if conn == nil {
			continue
		}
		if err := conn.WriteJSON(msg, wsWriteTimeout); err != nil {
			// A broken client must not abort delivery to the rest.
			logWarn("Failed to push update to client, removing",
				"client_id", clientID, "error", err)
			h.dropClient(clientID, conn)
		}
	}
}

func (h *Hub) conn(clientID string) *ws.Conn {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.conns[clientID]
}

func (h *Hub) addConn(clientID string, conn *ws.Conn) {
	h.mu.Lock()
	h.conns[clientID] = conn
	h.mu.Unlock()
	h.registry.Register(clientID)
}

// dropClient removes a client from both the connection map and the
// registry. Passing the conn guards against removing a newer connection
// that reused the id.
func (h *Hub) dropClient(clientID string, conn *ws.Conn) {
	h.mu.Lock()
	if current, ok := h.conns[clientID]; ok && current == conn {
		delete(h.conns, clientID)
	}
	h.mu.Unlock()
	h.registry.Unregister(clientID)
	conn.Close()
}

// SetCallbackRegistered records whether the change trigger is wired to this
// hub, reported by the status endpoint.
func (h *Hub) SetCallbackRegistered(registered bool) {
	h.cbMu.Lock()
	h.callbackRegistered = registered
	h.cbMu.Unlock()
}

// HubStatus is the payload of GET /api/v1/websocket/status.
type HubStatus struct {
	Status             string `json:"status"`
	ConnectedClients   int    `json:"connected_clients"`
	Port               int    `json:"port"`
	CallbackRegistered bool   `json:"callback_registered"`
}

// Status reports the hub's current state.
func (h *Hub) Status() HubStatus {
	h.cbMu.RLock()
	registered := h.callbackRegistered
	h.cbMu.RUnlock()

	return HubStatus{
		Status:             "running",
		ConnectedClients:   h.registry.Count(),
		Port:               h.port,
		CallbackRegistered: registered,
	}
}
