package telemetry

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/sdr-array/corx/internal/logging"
)

// Hub collects event history and fans out live updates to websocket
// subscribers.
type Hub struct {
	mu          sync.RWMutex
	history     []Event
	limit       int
	subscribers map[chan Event]struct{}
}

// NewHub builds a hub keeping at most limit events of history.
func NewHub(limit int) *Hub {
	if limit <= 0 {
		limit = 500
	}
	return &Hub{
		limit:       limit,
		subscribers: make(map[chan Event]struct{}),
	}
}

// Report implements Reporter.
func (h *Hub) Report(ev Event) {
	h.mu.Lock()
	h.history = append(h.history, ev)
	if len(h.history) > h.limit {
		h.history = h.history[len(h.history)-h.limit:]
	}
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
	h.mu.Unlock()
}

// Events returns a copy of the stored history.
func (h *Hub) Events() []Event {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Event, len(h.history))
	copy(out, h.history)
	return out
}

// Subscribe registers a listener for live updates.
func (h *Hub) Subscribe() (chan Event, func()) {
	ch := make(chan Event, 16)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		delete(h.subscribers, ch)
		close(ch)
		h.mu.Unlock()
	}
	return ch, cancel
}

func (h *Hub) handleEvents(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(h.Events())
}

var upgrader = websocket.Upgrader{
	// The hub only serves operators on the local network.
	CheckOrigin: func(*http.Request) bool { return true },
}

func (h *Hub) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ch, cancel := h.Subscribe()
	defer cancel()

	// Replay history so a fresh client sees the run so far.
	for _, ev := range h.Events() {
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}

	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(ev); err != nil {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}

// WebServer exposes the hub over HTTP: event history as JSON and live
// updates over a websocket.
type WebServer struct {
	srv    *http.Server
	logger logging.Logger
}

// NewWebServer builds the HTTP front of a hub.
func NewWebServer(addr string, hub *Hub, logger logging.Logger) *WebServer {
	if logger == nil {
		logger = logging.Default()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/api/events", hub.handleEvents)
	mux.HandleFunc("/ws", hub.handleWS)
	return &WebServer{
		srv:    &http.Server{Addr: addr, Handler: mux},
		logger: logger,
	}
}

// Start listens until the context is cancelled.
func (s *WebServer) Start(ctx context.Context) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("telemetry shutdown", logging.Field{Key: "err", Value: err})
		}
	}()
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("telemetry server", logging.Field{Key: "err", Value: err})
	}
}
