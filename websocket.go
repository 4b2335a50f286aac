package main

import (
	"encoding/json"
	"net/http"
	"time"

	"ordersummary/server/internal/ws"

	"github.com/google/uuid"
)

const (
	wsPingInterval = 25 * time.Second
	wsReadTimeout  = 60 * time.Second
)

// HandleClient handles a subscriber websocket connection: it registers the
// client, reads subscribe messages, and keeps the connection alive until
// the client goes away. Pushes are written by the hub's dispatch loop, not
// here; the Conn wrapper serializes the two writers.
func (h *Hub) HandleClient(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.UpgradeHTTP(w, r)
	if err != nil {
		logError("WebSocket upgrade failed", "remote_addr", r.RemoteAddr, "error", err)
		return
	}

	clientID := uuid.NewString()
	h.addConn(clientID, conn)
	logInfo("Client connected", "client_id", clientID, "remote_addr", conn.RemoteAddr())

	pingDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(wsPingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.WritePing(wsWriteTimeout); err != nil {
					logDebug("Ping failed, closing connection", "client_id", clientID, "error", err)
					conn.Close()
					return
				}
			case <-pingDone:
				return
			}
		}
	}()

	defer func() {
		close(pingDone)
		h.dropClient(clientID, conn)
		logInfo("Client disconnected", "client_id", clientID)
	}()

	conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))
		return nil
	})

	for {
		raw, err := conn.ReadMessage()
		if err != nil {
			if ws.IsUnexpectedCloseError(err, ws.CloseGoingAway, ws.CloseNormalClosure) {
				logWarn("WebSocket error", "client_id", clientID, "error", err)
			}
			return
		}
		conn.SetReadDeadline(time.Now().Add(wsReadTimeout))

		var msg ws.ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			logWarn("Invalid message from client", "client_id", clientID, "error", err)
			h.sendWSError(conn, clientID, "Invalid message format")
			continue
		}

		switch msg.Type {
		case ws.MessageTypeSubscribe:
			h.handleSubscribe(conn, clientID, msg)
		default:
			logWarn("Unknown message type from client",
				"client_id", clientID, "message_type", msg.Type)
			h.sendWSError(conn, clientID, "Unknown message type")
		}
	}
}

// handleSubscribe replaces the client's interest filter and acknowledges.
// A subscribe without a delivery_ids field requests no scoping and keeps
// the client unscoped (it receives every push); an explicit empty list
// subscribes it to nothing.
func (h *Hub) handleSubscribe(conn *ws.Conn, clientID string, msg ws.ClientMessage) {
	var ids []int64
	if msg.DeliveryIDs != nil {
		ids = *msg.DeliveryIDs
		if ids == nil {
			ids = []int64{}
		}
	}
	h.registry.SetInterest(clientID, ids)

	echo := ids
	if echo == nil {
		echo = []int64{}
	}
	ack := ws.Confirmation{Type: ws.MessageTypeSubscriptionConfirmed, DeliveryIDs: echo}
	if err := conn.WriteJSON(ack, wsWriteTimeout); err != nil {
		logWarn("Failed to confirm subscription", "client_id", clientID, "error", err)
		h.dropClient(clientID, conn)
		return
	}
	logDebug("Subscription updated", "client_id", clientID, "delivery_ids", echo)
}

func (h *Hub) sendWSError(conn *ws.Conn, clientID string, errorMsg string) {
	msg := ws.ErrorMessage{Type: ws.MessageTypeError, Message: errorMsg}
	if err := conn.WriteJSON(msg, wsWriteTimeout); err != nil {
		logWarn("Failed to send error message", "client_id", clientID, "error", err)
	}
}
