// SPDX-License-Identifier: MIT
package transport

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	applog "xspectrum/internal/log"
	"xspectrum/internal/spectral"
)

const (
	wsWriteWait  = time.Second
	wsQueueDepth = 16
)

// HelloMessage is sent once to every client after the upgrade.
type HelloMessage struct {
	Type     string `json:"type"` // "hello"
	ClientID string `json:"client_id"`
	Bins     int    `json:"bins"`
}

// SpectrumMessage carries one snapshot to WebSocket clients.
type SpectrumMessage struct {
	Type string `json:"type"` // "spectrum"
	Seq  uint64 `json:"seq"`
	spectral.Snapshot
}

type wsClient struct {
	id    string
	conn  *websocket.Conn
	queue chan *SpectrumMessage
	done  chan struct{}
}

// WebSocketOption configures a WebSocketTransport.
type WebSocketOption func(*WebSocketTransport)

// WithTokenSecret requires clients to present an HS256 JWT signed with
// secret, either as the token query parameter or as a bearer token.
func WithTokenSecret(secret string) WebSocketOption {
	return func(wst *WebSocketTransport) {
		if secret != "" {
			wst.secret = []byte(secret)
		}
	}
}

// WebSocketTransport serves /ws and broadcasts snapshots as JSON to every
// connected client. Slow clients drop messages instead of stalling Send.
type WebSocketTransport struct {
	bins     int
	secret   []byte // nil disables authentication
	upgrader websocket.Upgrader
	listener net.Listener
	server   *http.Server

	clientsMu sync.Mutex
	clients   map[string]*wsClient
	closed    bool

	seq     atomic.Uint64
	dropped atomic.Uint64

	log *applog.Logger
}

// NewWebSocketTransport listens on addr and starts serving. bins is
// announced in the hello message.
func NewWebSocketTransport(addr string, bins int, opts ...WebSocketOption) (*WebSocketTransport, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("websocket listen on %s: %w", addr, err)
	}

	wst := &WebSocketTransport{
		bins: bins,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		listener: ln,
		clients:  make(map[string]*wsClient),
		log:      applog.Named("websocket"),
	}
	for _, opt := range opts {
		opt(wst)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", wst.handleWebSocket)
	wst.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		wst.log.Infof("serving on ws://%s/ws", ln.Addr())
		if err := wst.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			wst.log.Errorf("server: %v", err)
		}
	}()
	return wst, nil
}

// Addr returns the listening address.
func (wst *WebSocketTransport) Addr() net.Addr {
	return wst.listener.Addr()
}

// Clients returns the number of connected clients.
func (wst *WebSocketTransport) Clients() int {
	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	return len(wst.clients)
}

// Dropped returns the number of messages dropped for slow clients.
func (wst *WebSocketTransport) Dropped() uint64 {
	return wst.dropped.Load()
}

func (wst *WebSocketTransport) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if err := wst.authorize(r); err != nil {
		wst.log.Warnf("rejected %s: %v", r.RemoteAddr, err)
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := wst.upgrader.Upgrade(w, r, nil)
	if err != nil {
		wst.log.Warnf("upgrade: %v", err)
		return
	}

	c := &wsClient{
		id:    uuid.NewString(),
		conn:  conn,
		queue: make(chan *SpectrumMessage, wsQueueDepth),
		done:  make(chan struct{}),
	}

	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteJSON(HelloMessage{Type: "hello", ClientID: c.id, Bins: wst.bins}); err != nil {
		wst.log.Warnf("client %s hello: %v", c.id, err)
		conn.Close()
		return
	}

	wst.clientsMu.Lock()
	if wst.closed {
		wst.clientsMu.Unlock()
		conn.Close()
		return
	}
	wst.clients[c.id] = c
	total := len(wst.clients)
	wst.clientsMu.Unlock()
	wst.log.Infof("client %s connected from %s, total: %d", c.id, r.RemoteAddr, total)

	go wst.writeLoop(c)
	go wst.readLoop(c)
}

// authorize verifies the request token when a secret is configured.
func (wst *WebSocketTransport) authorize(r *http.Request) error {
	if wst.secret == nil {
		return nil
	}
	token := r.URL.Query().Get("token")
	if token == "" {
		token, _ = strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return errors.New("missing token")
	}
	_, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return wst.secret, nil
	})
	if err != nil {
		return fmt.Errorf("verify token: %w", err)
	}
	return nil
}

// readLoop discards client messages and unregisters the client once the
// connection fails.
func (wst *WebSocketTransport) readLoop(c *wsClient) {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			wst.remove(c)
			return
		}
	}
}

func (wst *WebSocketTransport) writeLoop(c *wsClient) {
	for {
		select {
		case msg := <-c.queue:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				wst.log.Debugf("client %s write: %v", c.id, err)
				wst.remove(c)
				return
			}
		case <-c.done:
			return
		}
	}
}

func (wst *WebSocketTransport) remove(c *wsClient) {
	wst.clientsMu.Lock()
	_, ok := wst.clients[c.id]
	if ok {
		delete(wst.clients, c.id)
		close(c.done)
	}
	total := len(wst.clients)
	wst.clientsMu.Unlock()

	if ok {
		c.conn.Close()
		wst.log.Infof("client %s disconnected, total: %d", c.id, total)
	}
}

// Send queues snap for every connected client.
func (wst *WebSocketTransport) Send(snap spectral.Snapshot) error {
	msg := &SpectrumMessage{Type: "spectrum", Seq: wst.seq.Add(1), Snapshot: snap}

	wst.clientsMu.Lock()
	defer wst.clientsMu.Unlock()
	if wst.closed {
		return ErrClosed
	}
	for _, c := range wst.clients {
		select {
		case c.queue <- msg:
		default:
			wst.dropped.Add(1)
		}
	}
	return nil
}

// Close disconnects every client and shuts the server down.
func (wst *WebSocketTransport) Close() error {
	wst.clientsMu.Lock()
	if wst.closed {
		wst.clientsMu.Unlock()
		return nil
	}
	wst.closed = true
	clients := wst.clients
	wst.clients = make(map[string]*wsClient)
	for _, c := range clients {
		close(c.done)
	}
	wst.clientsMu.Unlock()

	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
			time.Now().Add(wsWriteWait))
		c.conn.Close()
	}
	wst.log.Infof("closed (%d messages dropped)", wst.dropped.Load())
	return wst.server.Close()
}

var _ Transport = (*WebSocketTransport)(nil)
