// Package websocket pushes live-reload notifications to connected browsers.
package websocket

import (
	"time"

	"github.com/coder/websocket"
)

// Message types understood by the reload client.
const (
	MessageFullReload = "full_reload"
	MessageCSSUpdate  = "css_update"
	MessageBuildError = "build_error"
)

// Client represents a WebSocket client connection
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	remote string
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Target    string    `json:"target,omitempty"`
	Content   string    `json:"content,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// FullReload asks every page to reload.
func FullReload(task string) UpdateMessage {
	return UpdateMessage{Type: MessageFullReload, Target: task, Timestamp: time.Now()}
}

// CSSUpdate asks pages to refetch stylesheets under href without reloading.
func CSSUpdate(href string) UpdateMessage {
	return UpdateMessage{Type: MessageCSSUpdate, Target: href, Timestamp: time.Now()}
}

// BuildError carries a failed task's error text for the page overlay.
func BuildError(task string, err error) UpdateMessage {
	return UpdateMessage{Type: MessageBuildError, Target: task, Content: err.Error(), Timestamp: time.Now()}
}
