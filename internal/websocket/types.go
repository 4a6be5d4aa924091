package websocket

import (
	"sync"
	"time"

	"github.com/coder/websocket"
)

// Message types pushed to preview clients.
const (
	TypeSnapshot = "snapshot"
	TypeEvent    = "event"
)

// Client is one connected browser.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	ip        string
	connected time.Time
	closeOnce sync.Once
}

func (c *Client) close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		go func() { _ = c.conn.Close(code, reason) }()
	})
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// OriginValidator decides whether a cross-origin upgrade is allowed.
type OriginValidator interface {
	IsAllowedOrigin(origin string) bool
}
