package server

import (
	"encoding/json"

	previewerrors "github.com/conneroisu/sfcpreview/internal/errors"
)

// Message types pushed over the hot-update channel.
const (
	MessageUpdate     = "update"
	MessageFullReload = "full-reload"
	MessageError      = "error"
	MessageConnected  = "connected"
)

// UpdateJS marks an update of a JavaScript module.
const UpdateJS = "js-update"

// Message is one hot-update message.
type Message struct {
	Type    string                        `json:"type"`
	Updates []Update                      `json:"updates,omitempty"`
	Err     *previewerrors.OverlayPayload `json:"err,omitempty"`
}

// Update names one module the client should refetch.
type Update struct {
	Type      string `json:"type"`
	Path      string `json:"path"`
	Timestamp int64  `json:"timestamp"`
}

// Encode returns the wire form of m.
func (m Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}
