package handler

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"pensionflow/internal/middleware"
	"pensionflow/internal/session"
	apperrors "pensionflow/pkg/errors"
	"pensionflow/pkg/logger"
	"pensionflow/pkg/validator"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are already filtered by the CORS middleware and the bearer
	// token check.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionHandler exposes workflow sessions.
type SessionHandler struct {
	registry  *session.Registry
	validator *validator.Validator
	logger    logger.Logger
}

func NewSessionHandler(registry *session.Registry, val *validator.Validator, log logger.Logger) *SessionHandler {
	return &SessionHandler{
		registry:  registry,
		validator: val,
		logger:    log,
	}
}

type actionResponse struct {
	Session session.View `json:"session"`
	Result  interface{}  `json:"result,omitempty"`
}

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		respondFailure(w, h.logger, err)
		return nil, false
	}
	return s, true
}

// Create opens a new session on the dashboard.
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	s := h.registry.Create()
	sub, _ := middleware.SubjectFromContext(r.Context())
	h.logger.Info("Session opened", map[string]interface{}{
		"session_id": s.ID(),
		"subject":    sub,
	})
	respondJSON(w, http.StatusCreated, s.View())
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	respondJSON(w, http.StatusOK, s.View())
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.registry.Delete(mux.Vars(r)["id"]); err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartRegistration opens the registration wizard from the dashboard.
func (h *SessionHandler) StartRegistration(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := s.StartRegistration(); err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.View())
}

// StartContribution opens the contribution wizard from the dashboard.
func (h *SessionHandler) StartContribution(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if _, err := s.StartContribution(); err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, s.View())
}

// Action runs one command from the envelope and returns the new snapshot.
// A rejected command leaves the session unchanged.
func (h *SessionHandler) Action(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	var req ActionRequest
	if !decode(w, r, &req, false) {
		return
	}
	if err := h.validator.Check(&req); err != nil {
		respondFailure(w, h.logger, err)
		return
	}

	fn, ok := actions[req.Action]
	if !ok {
		respondError(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
		return
	}

	result, err := fn(r.Context(), s, req.Args)
	if err != nil {
		h.logger.Debug("Action rejected", map[string]interface{}{
			"session_id": s.ID(),
			"action":     req.Action,
			"error":      err.Error(),
		})
		respondFailure(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, actionResponse{Session: s.View(), Result: result})
}

// Receipt downloads the payment acknowledgement as plain text.
func (h *SessionHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	m, err := s.Payment()
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	body, err := m.Receipt()
	if err != nil {
		respondFailure(w, h.logger, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", m.ReceiptFilename()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(body))
}

// Events streams the session's events over a websocket. The first message
// is a snapshot of the session.
func (h *SessionHandler) Events(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed", map[string]interface{}{"error": err.Error()})
		return
	}
	defer conn.Close()

	events, cancel := s.Subscribe()
	defer cancel()

	h.logger.Info("WebSocket client connected", map[string]interface{}{"session_id": s.ID()})

	// Reads only serve to notice the client going away.
	gone := make(chan struct{})
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(map[string]interface{}{
		"type":    "snapshot",
		"at":      time.Now(),
		"session": s.View(),
	}); err != nil {
		return
	}

	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()

	for {
		select {
		case e, ok := <-events:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, apperrors.ErrSessionNotFound.Error()))
				return
			}
			s.Touch()
			if err := conn.WriteJSON(e); err != nil {
				h.logger.Warn("Failed to send event", map[string]interface{}{
					"session_id": s.ID(),
					"error":      err.Error(),
				})
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-gone:
			return
		case <-r.Context().Done():
			return
		}
	}
}
