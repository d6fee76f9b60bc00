package controllers

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"busops/internal/events"
	"busops/internal/middleware"
)

const (
	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = socketPongWait * 9 / 10
	clientBuffer     = 16
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return originAllowed(r.Header.Get("Origin")) },
}

var (
	socketOrigins   map[string]struct{}
	socketOriginsMu sync.RWMutex
)

// SetSocketOrigins restricts websocket handshakes to the dashboard origins. An empty
// list accepts any origin.
func SetSocketOrigins(origins []string) {
	m := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		m[o] = struct{}{}
	}
	socketOriginsMu.Lock()
	socketOrigins = m
	socketOriginsMu.Unlock()
}

func originAllowed(origin string) bool {
	socketOriginsMu.RLock()
	defer socketOriginsMu.RUnlock()
	if len(socketOrigins) == 0 || origin == "" {
		return true
	}
	_, ok := socketOrigins[origin]
	return ok
}

type hubClient struct {
	userID uint
	scope  busScope
	send   chan events.Event
}

// StatusHub fans day-end review events out to connected dashboards. Each client only
// receives events for buses in its scope.
type StatusHub struct {
	clients   map[*hubClient]struct{}
	broadcast chan events.Event
	done      chan struct{}
	once      sync.Once
	mu        sync.Mutex
}

// NewStatusHub creates a hub and starts its broadcasting goroutine.
func NewStatusHub() *StatusHub {
	hub := &StatusHub{
		clients:   make(map[*hubClient]struct{}),
		broadcast: make(chan events.Event, 100),
		done:      make(chan struct{}),
	}
	go hub.run()
	return hub
}

func (h *StatusHub) run() {
	for {
		select {
		case <-h.done:
			return
		case e := <-h.broadcast:
			h.deliver(e)
		}
	}
}

func (h *StatusHub) deliver(e events.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for cl := range h.clients {
		if !cl.scope.allows(e.BusID) {
			continue
		}
		select {
		case cl.send <- e:
		default:
			logrus.WithField("user_id", cl.userID).Warn("dashboard socket is not keeping up, dropping event")
		}
	}
}

// Publish queues an event for connected dashboards. It never blocks the request that
// produced the event.
func (h *StatusHub) Publish(_ context.Context, e events.Event) error {
	select {
	case h.broadcast <- e:
	default:
		logrus.WithField("day_end_id", e.DayEndID).Warn("status broadcast channel full, dropping event")
	}
	return nil
}

// Close stops broadcasting and disconnects every client.
func (h *StatusHub) Close() {
	h.once.Do(func() {
		close(h.done)
		h.mu.Lock()
		for cl := range h.clients {
			delete(h.clients, cl)
			close(cl.send)
		}
		h.mu.Unlock()
	})
}

func (h *StatusHub) register(cl *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[cl] = struct{}{}
	logrus.WithField("user_id", cl.userID).Info("dashboard socket registered")
}

func (h *StatusHub) unregister(cl *hubClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[cl]; ok {
		delete(h.clients, cl)
		close(cl.send)
		logrus.WithField("user_id", cl.userID).Info("dashboard socket unregistered")
	}
}

// Clients reports the number of connected dashboards.
func (h *StatusHub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

var statusHub = NewStatusHub()

// Hub returns the process-wide hub that HandleDayEndSocket registers clients with.
func Hub() *StatusHub {
	return statusHub
}

// HandleDayEndSocket upgrades an authenticated request and streams review events for
// the caller's buses until the client goes away.
func HandleDayEndSocket(c *gin.Context) {
	scope, err := loadBusScope(c)
	if err != nil {
		respondError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
		return
	}
	defer conn.Close()

	cl := &hubClient{
		userID: middleware.CurrentUserID(c),
		scope:  scope,
		send:   make(chan events.Event, clientBuffer),
	}
	statusHub.register(cl)
	defer statusHub.unregister(cl)

	go writeEvents(conn, cl)

	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(socketPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				logrus.WithError(err).WithField("user_id", cl.userID).Warn("dashboard socket read failed")
			}
			return
		}
	}
}

// writeEvents is the only writer on conn.
func writeEvents(conn *websocket.Conn, cl *hubClient) {
	ticker := time.NewTicker(socketPingPeriod)
	defer func() {
		ticker.Stop()
		// unblocks the read loop in HandleDayEndSocket
		conn.Close()
	}()
	for {
		select {
		case e, ok := <-cl.send:
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := conn.WriteJSON(e); err != nil {
				logrus.WithError(err).WithFields(logrus.Fields{
					"user_id":  cl.userID,
					"conn_ptr": fmt.Sprintf("%p", conn),
				}).Warn("Failed to send event to dashboard.")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
