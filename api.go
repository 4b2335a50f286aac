package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ordersummary/server/storage"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// parseIDList parses an id-list query value like "[1,2,3]" or "1,2,3".
// Empty entries are skipped; "[]" parses to an explicit empty list, which is
// not the same as the parameter being absent.
func parseIDList(raw string) ([]int64, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "[")
	raw = strings.TrimSuffix(raw, "]")

	ids := []int64{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("not an integer id: %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

type loginRequest struct {
	DB       string `json:"db"`
	Login    string `json:"login"`
	Password string `json:"password"`
}

// handleLogin authenticates a user and issues a bearer token.
// POST /api/v1/login
func handleLogin(w http.ResponseWriter, r *http.Request, store storage.Store, limiter *AuthRateLimiter) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if req.DB == "" || req.Login == "" || req.Password == "" {
		writeJSONError(w, http.StatusBadRequest,
			"Database, login, and password parameters are required.")
		return
	}

	clientIP := realIP(r)
	if limiter != nil {
		if blocked, until := limiter.IsBlocked(clientIP, req.Login); blocked {
			logWarn("Blocked login attempt", "ip", clientIP, "login", req.Login,
				"blocked_until", until.Format(time.RFC3339))
			writeJSONError(w, http.StatusTooManyRequests,
				"Too many failed attempts. Try again later.")
			return
		}
	}

	user, err := store.VerifyCredentials(r.Context(), req.Login, req.Password)
	if err != nil {
		logError("Credential verification failed", "login", req.Login, "error", err)
		writeJSONError(w, http.StatusInternalServerError,
			"An unexpected server error occurred")
		return
	}
	if user == nil {
		if limiter != nil {
			blocked, attempts := limiter.RecordFailure(clientIP, req.Login)
			logWarn("Authentication failed", "ip", clientIP, "login", req.Login,
				"attempt_count", attempts, "blocked", blocked)
		}
		writeJSONError(w, http.StatusUnauthorized, "Authentication failed.")
		return
	}
	if limiter != nil {
		limiter.RecordSuccess(clientIP, req.Login)
	}

	token, err := issueToken(r.Context(), store, user.ID, req.DB)
	if err == ErrNoSecret {
		logError("JWT secret is not configured", "parameter", jwtSecretParam)
		writeJSONError(w, http.StatusInternalServerError,
			"JWT authentication is not configured on the server.")
		return
	}
	if err != nil {
		logError("Token issuance failed", "login", req.Login, "error", err)
		writeJSONError(w, http.StatusInternalServerError,
			"An unexpected server error occurred")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleOrderSummary computes the reconciled summary rows, optionally scoped
// by delivery ids and product templates.
// GET /api/v1/order-summary?delivery_ids=[..]&product_templates=[..]
func handleOrderSummary(w http.ResponseWriter, r *http.Request, store storage.Store) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	query := r.URL.Query()
	var filter storage.SummaryFilter

	if query.Has("delivery_ids") {
		ids, err := parseIDList(query.Get("delivery_ids"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid format for delivery_ids")
			return
		}
		filter.DeliveryIDs = ids
	}
	if query.Has("product_templates") {
		ids, err := parseIDList(query.Get("product_templates"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "Invalid format for product_templates")
			return
		}
		filter.TemplateIDs = ids
	}

	rows, err := store.OrderSummary(r.Context(), filter)
	if err != nil {
		logError("Order summary query failed", "error", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rows)
}

type completeMovesRequest struct {
	MoveIDs []int64 `json:"move_ids"`
}

// handleCompleteMoves marks stock moves done and fires the change trigger
// synchronously, standing in for the host system's write path.
// POST /api/v1/moves/complete
func handleCompleteMoves(w http.ResponseWriter, r *http.Request, store storage.Store, trigger *SummaryTrigger) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}

	var req completeMovesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if len(req.MoveIDs) == 0 {
		writeJSONError(w, http.StatusBadRequest, "move_ids is required")
		return
	}

	moves, err := store.CompleteMoves(r.Context(), req.MoveIDs)
	if err != nil {
		logError("Move completion failed", "move_ids", req.MoveIDs, "error", err)
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if claims := claimsFromContext(r.Context()); claims != nil && len(moves) > 0 {
		logInfo("Moves completed via API", "uid", claims.UID, "db", claims.DB, "count", len(moves))
	}

	if trigger != nil && len(moves) > 0 {
		trigger.MovesCompleted(r.Context(), moves)
	}

	completed := make([]int64, 0, len(moves))
	for _, m := range moves {
		completed = append(completed, m.ID)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"completed_ids": completed})
}

// handleWebSocketStatus reports the broadcast hub's state.
// GET /api/v1/websocket/status
func handleWebSocketStatus(w http.ResponseWriter, r *http.Request, hub *Hub) {
	writeJSON(w, http.StatusOK, hub.Status())
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

// realIP returns the client address, respecting X-Forwarded-For when set.
func realIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if idx := strings.IndexByte(fwd, ','); idx > 0 {
			return strings.TrimSpace(fwd[:idx])
		}
		return strings.TrimSpace(fwd)
	}
	host := r.RemoteAddr
	if idx := strings.LastIndexByte(host, ':'); idx > 0 {
		host = host[:idx]
	}
	return host
}

// setupRoutes binds the HTTP surface onto mux.
func setupRoutes(mux *http.ServeMux, store storage.Store, hub *Hub, trigger *SummaryTrigger, limiter *AuthRateLimiter) {
	mux.HandleFunc("/health", handleHealth)

	mux.HandleFunc("/api/v1/login", func(w http.ResponseWriter, r *http.Request) {
		handleLogin(w, r, store, limiter)
	})
	mux.HandleFunc("/api/v1/order-summary", requireJWT(store, func(w http.ResponseWriter, r *http.Request) {
		handleOrderSummary(w, r, store)
	}))
	mux.HandleFunc("/api/v1/moves/complete", requireJWT(store, func(w http.ResponseWriter, r *http.Request) {
		handleCompleteMoves(w, r, store, trigger)
	}))
	mux.HandleFunc("/api/v1/websocket/status", requireJWT(store, func(w http.ResponseWriter, r *http.Request) {
		handleWebSocketStatus(w, r, hub)
	}))
}
