package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/oshokin/solar-monitor/internal/domain/plant"
	"github.com/oshokin/solar-monitor/internal/logger"
	"github.com/oshokin/solar-monitor/internal/service/poller"
)

// Message types sent over the socket.
const (
	MessageView            = "view"
	MessageRetrievalFailed = "retrieval_failed"
)

const (
	// sendBuffer is how many messages a slow client may lag behind before it is dropped.
	sendBuffer = 16
	// writeTimeout bounds a single socket write.
	writeTimeout = 10 * time.Second
	// shutdownTimeout bounds the graceful HTTP shutdown.
	shutdownTimeout = 5 * time.Second
	// readHeaderTimeout protects the listener from slow clients.
	readHeaderTimeout = 5 * time.Second
)

// Message is the envelope pushed to socket clients.
type Message struct {
	Type     string              `json:"type"`
	View     *poller.View        `json:"view,omitempty"`
	Category plant.ErrorCategory `json:"category,omitempty"`
	Error    string              `json:"error,omitempty"`
}

type client struct {
	id   uuid.UUID
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
}

// Hub keeps the latest view and the connected socket clients.
type Hub struct {
	router   *gin.Engine
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	view    []byte
	latest  []byte
	clients map[uuid.UUID]*client
	closed  bool
}

// NewHub creates a hub with its routes registered.
func NewHub() *Hub {
	gin.SetMode(gin.ReleaseMode)

	h := &Hub{
		router: gin.New(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[uuid.UUID]*client),
	}

	h.router.Use(gin.Recovery())
	h.router.GET("/api/view", h.getView)
	h.router.GET("/ws", h.handleWebSocket)

	return h
}

// Handler returns the HTTP handler of the feed.
func (h *Hub) Handler() http.Handler {
	return h.router
}

// Serve answers on listener until ctx is done.
func (h *Hub) Serve(ctx context.Context, listener net.Listener) error {
	server := &http.Server{
		Handler:           h.router,
		ReadHeaderTimeout: readHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		h.Close()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warnf(ctx, "Feed shutdown: %v", err)
		}
	}()

	logger.Infof(ctx, "Live feed listening on %s", listener.Addr())

	if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve feed: %w", err)
	}

	return nil
}

// Render implements poller.Renderer.
func (h *Hub) Render(ctx context.Context, view poller.View) {
	viewJSON, err := json.Marshal(view)
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode view", "error", err)

		return
	}

	message, err := json.Marshal(Message{Type: MessageView, View: &view})
	if err != nil {
		logger.ErrorKV(ctx, "Failed to encode view message", "error", err)

		return
	}

	h.mu.Lock()
	h.view = viewJSON
	h.latest = message
	h.mu.Unlock()

	h.broadcast(ctx, message)
}

// RetrievalFailed implements poller.Renderer. The latest view is kept.
func (h *Hub) RetrievalFailed(ctx context.Context, err error) {
	message, marshalErr := json.Marshal(Message{
		Type:     MessageRetrievalFailed,
		Category: plant.ClassifyRetrievalError(err),
		Error:    err.Error(),
	})
	if marshalErr != nil {
		logger.ErrorKV(ctx, "Failed to encode failure message", "error", marshalErr)

		return
	}

	h.broadcast(ctx, message)
}

// Clients returns the number of connected sockets.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}

// Close disconnects every socket and refuses new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.closed = true

	for id, c := range h.clients {
		delete(h.clients, id)
		close(c.done)
	}
}

func (h *Hub) getView(c *gin.Context) {
	h.mu.RLock()
	view := h.view
	h.mu.RUnlock()

	if view == nil {
		c.Status(http.StatusNoContent)

		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", view)
}

func (h *Hub) handleWebSocket(c *gin.Context) {
	// The request context ends with the handler; the socket outlives it.
	ctx := context.WithoutCancel(c.Request.Context())

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.DebugKV(ctx, "WebSocket upgrade failed", "error", err)

		return
	}

	cl := &client{
		id:   uuid.New(),
		conn: conn,
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()

		_ = conn.Close()

		return
	}

	h.clients[cl.id] = cl

	if h.latest != nil {
		cl.send <- h.latest
	}
	h.mu.Unlock()

	logger.DebugKV(ctx, "Feed client connected", "client", cl.id)

	go h.readPump(ctx, cl)
	go h.writePump(ctx, cl)
}

// readPump discards incoming frames and notices when the peer goes away.
func (h *Hub) readPump(ctx context.Context, cl *client) {
	defer h.remove(ctx, cl)

	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(ctx context.Context, cl *client) {
	defer func() {
		if err := cl.conn.Close(); err != nil {
			logger.Debugf(ctx, "Failed to close feed socket: %v", err)
		}
	}()

	for {
		select {
		case <-cl.done:
			_ = cl.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(writeTimeout))

			return
		case message := <-cl.send:
			if err := cl.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
				return
			}

			if err := cl.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				h.remove(ctx, cl)

				return
			}
		}
	}
}

func (h *Hub) broadcast(ctx context.Context, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, cl := range h.clients {
		select {
		case cl.send <- message:
		default:
			logger.WarnKV(ctx, "Dropping slow feed client", "client", id)
			delete(h.clients, id)
			close(cl.done)
		}
	}
}

// remove forgets a client once; later calls are no-ops.
func (h *Hub) remove(ctx context.Context, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[cl.id]; !ok {
		return
	}

	delete(h.clients, cl.id)
	close(cl.done)

	logger.DebugKV(ctx, "Feed client disconnected", "client", cl.id)
}
