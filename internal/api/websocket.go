package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chainsleuth/sleuth/internal/report"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// ErrStreamFull is returned when the broadcast queue cannot take an event.
var ErrStreamFull = errors.New("api: stream queue full")

const writeTimeout = 5 * time.Second

// RunEvent is pushed to stream subscribers after every analysis.
type RunEvent struct {
	RunID             string `json:"runId"`
	Findings          int    `json:"findings"`
	SuspiciousWallets int    `json:"suspiciousWallets"`
}

// Hub keeps the live websocket subscribers and fans run events out to them.
type Hub struct {
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	broadcast chan []byte
	mutex     sync.Mutex
	onChange  func(int)
}

// NewHub creates a hub accepting upgrades from allowedOrigins ("*" or an
// empty list allows any origin). Requests without an Origin header are not
// from browsers and are always accepted.
func NewHub(allowedOrigins []string) *Hub {
	h := &Hub{
		broadcast: make(chan []byte, 256),
		clients:   make(map[*websocket.Conn]bool),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || originAllowed(allowedOrigins, origin)
		},
	}
	return h
}

// OnSubscribersChanged registers a callback receiving the subscriber count.
func (h *Hub) OnSubscribersChanged(fn func(int)) {
	h.mutex.Lock()
	h.onChange = fn
	h.mutex.Unlock()
}

// Run delivers queued events until ctx is done, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) deliver(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		_ = client.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Warn().Err(err).Msg("api: websocket write failed, dropping client")
			client.Close()
			delete(h.clients, client)
		}
	}
	h.notifyLocked()
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		_ = client.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(time.Second))
		client.Close()
		delete(h.clients, client)
	}
	h.notifyLocked()
}

func (h *Hub) notifyLocked() {
	if h.onChange != nil {
		h.onChange(len(h.clients))
	}
}

// Clients returns the number of connected subscribers.
func (h *Hub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Subscribe upgrades the request and registers the connection.
func (h *Hub) Subscribe(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("api: websocket upgrade failed")
		return
	}

	h.mutex.Lock()
	h.clients[conn] = true
	total := len(h.clients)
	h.notifyLocked()
	h.mutex.Unlock()

	log.Info().Int("clients", total).Msg("api: stream subscriber connected")

	// Subscribers only receive; reading detects disconnects.
	go func() {
		defer func() {
			h.mutex.Lock()
			delete(h.clients, conn)
			remaining := len(h.clients)
			h.notifyLocked()
			h.mutex.Unlock()
			conn.Close()
			log.Info().Int("clients", remaining).Msg("api: stream subscriber disconnected")
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Warn().Err(err).Msg("api: websocket read failed")
				}
				return
			}
		}
	}()
}

// Broadcast queues raw data for every subscriber without blocking.
func (h *Hub) Broadcast(data []byte) error {
	select {
	case h.broadcast <- data:
		return nil
	default:
		return ErrStreamFull
	}
}

// Publish implements report.Publisher.
func (h *Hub) Publish(_ context.Context, e report.Entry) error {
	data, err := json.Marshal(RunEvent{
		RunID:             e.RunID,
		Findings:          e.Findings,
		SuspiciousWallets: e.SuspiciousWallets,
	})
	if err != nil {
		return fmt.Errorf("api: marshal run event: %w", err)
	}
	return h.Broadcast(data)
}
