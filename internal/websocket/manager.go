// Package websocket pushes live form state to preview browsers.
//
// Connections join synchronously when they are accepted. A single hub
// goroutine removes them, so a client's send channel is closed in one place,
// and broadcasts fan out from the hub with
// non-blocking sends so a slow browser is dropped instead of stalling the
// others.
package websocket

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/conneroisu/contactform/internal/logging"
	"github.com/conneroisu/contactform/internal/metrics"
)

const (
	sendBuffer      = 64
	pingInterval    = 30 * time.Second
	writeTimeout    = 10 * time.Second
	maxMessageBytes = 4096

	// DefaultMaxConnectionsPerIP bounds how many tabs one address may hold open.
	DefaultMaxConnectionsPerIP = 20
)

// Manager accepts websocket upgrades and broadcasts UpdateMessages.
type Manager struct {
	clients   map[*Client]struct{}
	perIP     map[string]int
	clientsMu sync.RWMutex

	broadcast  chan []byte
	unregister chan *Client

	origins  OriginValidator
	logger   logging.Logger
	metrics  *metrics.Metrics
	greeting func() (UpdateMessage, bool)
	maxPerIP int

	ctx          context.Context
	cancel       context.CancelFunc
	hubDone      chan struct{}
	shutdownOnce sync.Once
	closed       atomic.Bool
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithMetrics tracks connected clients on the websocket gauge.
func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// WithGreeting sends the message returned by fn to every new client before
// any broadcast reaches it. Returning false skips the greeting.
func WithGreeting(fn func() (UpdateMessage, bool)) Option {
	return func(m *Manager) { m.greeting = fn }
}

// WithMaxConnectionsPerIP caps concurrent connections per remote address.
// Zero or less disables the cap.
func WithMaxConnectionsPerIP(n int) Option {
	return func(m *Manager) { m.maxPerIP = n }
}

// NewManager starts the hub. origins must not be nil.
func NewManager(origins OriginValidator, opts ...Option) *Manager {
	if origins == nil {
		panic("websocket: origin validator cannot be nil")
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		clients:    make(map[*Client]struct{}),
		perIP:      make(map[string]int),
		broadcast:  make(chan []byte, 256),
		unregister: make(chan *Client, 32),
		origins:    origins,
		logger:     logging.NewNopLogger(),
		maxPerIP:   DefaultMaxConnectionsPerIP,
		ctx:        ctx,
		cancel:     cancel,
		hubDone:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.logger = m.logger.WithComponent("websocket")

	go m.runHub()

	return m
}

// ServeHTTP upgrades the request and keeps the client until it disconnects
// or the manager shuts down.
//
// Responses before the upgrade: 503 after Shutdown, 403 for a foreign
// origin, 429 when the address already holds too many connections.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.closed.Load() {
		http.Error(w, "Service Unavailable", http.StatusServiceUnavailable)
		return
	}

	if origin := r.Header.Get("Origin"); !m.originAllowed(origin, r.Host) {
		m.logger.Warn(r.Context(), nil, "WebSocket connection rejected: origin not allowed",
			"origin", logging.SanitizeForLog(origin), "remote", r.RemoteAddr)
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	ip := clientIP(r)
	if !m.reserve(ip) {
		m.logger.Warn(r.Context(), nil, "WebSocket connection rejected: too many connections", "ip", ip)
		http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
		return
	}

	// Origins were checked above.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns:  []string{"*"},
		CompressionMode: websocket.CompressionDisabled,
	})
	if err != nil {
		m.release(ip)
		m.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "ip", ip)
		return
	}
	conn.SetReadLimit(maxMessageBytes)

	client := &Client{
		conn:      conn,
		send:      make(chan []byte, sendBuffer),
		ip:        ip,
		connected: time.Now(),
	}

	if m.greeting != nil {
		if msg, ok := m.greeting(); ok {
			if data, err := json.Marshal(msg); err == nil {
				client.send <- data
			}
		}
	}

	if !m.add(client) {
		m.release(ip)
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}

	go m.writePump(client)
	m.readPump(client)
}

func (m *Manager) originAllowed(origin, host string) bool {
	if origin == "" {
		return true
	}
	if u, err := url.Parse(origin); err == nil && strings.EqualFold(u.Host, host) {
		return true
	}
	return m.origins.IsAllowedOrigin(origin)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (m *Manager) reserve(ip string) bool {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	if m.maxPerIP > 0 && m.perIP[ip] >= m.maxPerIP {
		return false
	}
	m.perIP[ip]++
	return true
}

func (m *Manager) release(ip string) {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	if m.perIP[ip] <= 1 {
		delete(m.perIP, ip)
		return
	}
	m.perIP[ip]--
}

// add registers c before its read loop starts, so the hub can never see the
// client's unregister ahead of its registration. It fails once shutdown has
// begun; the hub collects clients under the same lock after cancellation.
func (m *Manager) add(c *Client) bool {
	m.clientsMu.Lock()
	if m.ctx.Err() != nil {
		m.clientsMu.Unlock()
		return false
	}
	m.clients[c] = struct{}{}
	total := len(m.clients)
	m.clientsMu.Unlock()

	m.metrics.ClientConnected(1)
	m.logger.Debug(m.ctx, "WebSocket client connected", "ip", c.ip, "clients", total)
	return true
}

func (m *Manager) runHub() {
	defer close(m.hubDone)

	for {
		select {
		case c := <-m.unregister:
			m.drop(c, websocket.StatusNormalClosure, "")

		case msg := <-m.broadcast:
			m.fanOut(msg)

		case <-m.ctx.Done():
			m.clientsMu.RLock()
			clients := make([]*Client, 0, len(m.clients))
			for c := range m.clients {
				clients = append(clients, c)
			}
			m.clientsMu.RUnlock()

			for _, c := range clients {
				m.drop(c, websocket.StatusGoingAway, "server shutting down")
			}
			return
		}
	}
}

// drop removes c. Only the hub calls it, so send is closed exactly once.
func (m *Manager) drop(c *Client, code websocket.StatusCode, reason string) {
	m.clientsMu.Lock()
	_, ok := m.clients[c]
	if ok {
		delete(m.clients, c)
		if m.perIP[c.ip] <= 1 {
			delete(m.perIP, c.ip)
		} else {
			m.perIP[c.ip]--
		}
	}
	total := len(m.clients)
	m.clientsMu.Unlock()

	if !ok {
		return
	}
	close(c.send)
	c.close(code, reason)
	m.metrics.ClientConnected(-1)
	m.logger.Debug(m.ctx, "WebSocket client disconnected", "ip", c.ip, "clients", total,
		"connected_for", time.Since(c.connected).String())
}

func (m *Manager) fanOut(msg []byte) {
	m.clientsMu.RLock()
	clients := make([]*Client, 0, len(m.clients))
	for c := range m.clients {
		clients = append(clients, c)
	}
	m.clientsMu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			m.logger.Warn(m.ctx, nil, "WebSocket client too slow, dropping", "ip", c.ip)
			m.drop(c, websocket.StatusPolicyViolation, "too slow")
		}
	}
}

// readPump discards inbound messages; reading keeps control frames flowing
// and notices when the peer goes away.
func (m *Manager) readPump(c *Client) {
	defer func() {
		select {
		case m.unregister <- c:
		case <-m.ctx.Done():
		}
	}()

	for {
		_, data, err := c.conn.Read(m.ctx)
		if err != nil {
			status := websocket.CloseStatus(err)
			if status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway && m.ctx.Err() == nil {
				m.logger.Debug(m.ctx, "WebSocket read ended", "ip", c.ip, "error", err.Error())
			}
			return
		}
		m.logger.Debug(m.ctx, "Ignoring client message", "ip", c.ip, "bytes", len(data))
	}
}

func (m *Manager) writePump(c *Client) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}
			ctx, cancel := context.WithTimeout(m.ctx, writeTimeout)
			err := c.conn.Write(ctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				c.close(websocket.StatusInternalError, "write failed")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(m.ctx, writeTimeout)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.close(websocket.StatusInternalError, "ping failed")
				return
			}

		case <-m.ctx.Done():
			return
		}
	}
}

// Broadcast queues msg for every connected client. It never blocks; when the
// queue is full the message is dropped and logged.
func (m *Manager) Broadcast(msg UpdateMessage) {
	if m.closed.Load() {
		return
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}

	data, err := json.Marshal(msg)
	if err != nil {
		m.logger.Error(m.ctx, err, "Failed to marshal broadcast message", "type", msg.Type)
		return
	}

	select {
	case m.broadcast <- data:
	case <-m.ctx.Done():
	default:
		m.logger.Warn(m.ctx, nil, "Broadcast queue full, dropping message", "type", msg.Type)
	}
}

// ClientCount returns the number of registered clients.
func (m *Manager) ClientCount() int {
	m.clientsMu.RLock()
	defer m.clientsMu.RUnlock()
	return len(m.clients)
}

// Shutdown disconnects every client and stops the hub. It waits for the hub
// to finish or for ctx to expire, whichever comes first.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.shutdownOnce.Do(func() {
		m.closed.Store(true)
		m.cancel()
	})

	select {
	case <-m.hubDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsShutdown reports whether Shutdown has been called.
func (m *Manager) IsShutdown() bool {
	return m.closed.Load()
}

// AllowList accepts origins whose scheme and host match one of its entries.
type AllowList struct {
	origins map[string]struct{}
}

// NewAllowList builds an AllowList. Entries that do not parse are ignored.
func NewAllowList(origins ...string) *AllowList {
	a := &AllowList{origins: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		if key, ok := originKey(o); ok {
			a.origins[key] = struct{}{}
		}
	}
	return a
}

// IsAllowedOrigin implements OriginValidator.
func (a *AllowList) IsAllowedOrigin(origin string) bool {
	key, ok := originKey(origin)
	if !ok {
		return false
	}
	_, allowed := a.origins[key]
	return allowed
}

func originKey(origin string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(origin))
	if err != nil || u.Host == "" {
		return "", false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", false
	}
	return scheme + "://" + strings.ToLower(u.Host), true
}
