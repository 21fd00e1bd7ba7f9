package registry

import (
	"fmt"
	"time"

	"github.com/conneroisu/sfcpreview/internal/analyze"
	"github.com/conneroisu/sfcpreview/internal/sfc"
)

// DefaultDevice is the device of a preview without a device attribute.
const DefaultDevice = "freeform"

// Component is the record of one source file. Records are replaced as a
// whole, never modified after they are published.
type Component struct {
	// ID is the root-relative path without extension.
	ID string `json:"id"`
	// Name is the base name of ID.
	Name string `json:"name"`
	// Path is the root-relative path with forward slashes.
	Path     string        `json:"path"`
	Info     *analyze.Info `json:"info,omitempty"`
	Previews []Preview     `json:"previews"`

	absPath string
}

// AbsPath returns the absolute path of the source file.
func (c Component) AbsPath() string {
	return c.absPath
}

// Preview describes one preview block of a component. ID is the block's
// position among the file's preview blocks.
type Preview struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Device      string    `json:"device"`
	DeviceProps sfc.Attrs `json:"deviceProps"`
}

// EventType represents the type of component event
type EventType int

const (
	EventTypeAdded EventType = iota
	EventTypeUpdated
	EventTypeRemoved
)

// String returns the event name.
func (e EventType) String() string {
	switch e {
	case EventTypeAdded:
		return "added"
	case EventTypeUpdated:
		return "updated"
	case EventTypeRemoved:
		return "removed"
	default:
		return "unknown"
	}
}

// Event represents a change in the component store
type Event struct {
	Type      EventType
	Component Component
	Timestamp time.Time
}

// derivePreviews turns preview blocks into preview records. Unnamed
// previews are numbered from 1.
func derivePreviews(blocks []*sfc.Block, defaultDevice string) []Preview {
	previews := make([]Preview, 0, len(blocks))

	for i, block := range blocks {
		preview := Preview{
			ID:          i,
			Name:        fmt.Sprintf("Preview %d", i+1),
			Device:      defaultDevice,
			DeviceProps: sfc.Attrs{},
		}

		for key, value := range block.Attrs {
			switch key {
			case "name":
				if s, ok := value.(string); ok {
					preview.Name = s
				}
			case "device":
				if s, ok := value.(string); ok {
					preview.Device = s
				}
			default:
				preview.DeviceProps[key] = value
			}
		}

		previews = append(previews, preview)
	}

	return previews
}
