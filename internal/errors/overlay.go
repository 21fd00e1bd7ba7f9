package errors

import (
	"errors"
	"sync"
	"time"
)

// OverlayPayload is the error description pushed to the browser overlay.
type OverlayPayload struct {
	Message   string    `json:"message"`
	Code      string    `json:"code,omitempty"`
	File      string    `json:"file,omitempty"`
	Line      int       `json:"line,omitempty"`
	Column    int       `json:"column,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ToOverlay converts any error into an overlay payload.
func ToOverlay(err error) OverlayPayload {
	payload := OverlayPayload{
		Message:   err.Error(),
		Timestamp: time.Now(),
	}

	var pe *PreviewError
	if errors.As(err, &pe) {
		payload.Message = pe.Message
		if pe.Cause != nil {
			payload.Message += ": " + pe.Cause.Error()
		}
		payload.Code = pe.Code
		payload.File = pe.FilePath
		payload.Line = pe.Line
		payload.Column = pe.Column
	}

	return payload
}

// ErrorCollector keeps the last failure per source file so that a client
// connecting late still sees the overlay.
type ErrorCollector struct {
	errors map[string]OverlayPayload
	mutex  sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors: make(map[string]OverlayPayload),
	}
}

// Set records the failure for file.
func (ec *ErrorCollector) Set(file string, err error) OverlayPayload {
	payload := ToOverlay(err)
	if payload.File == "" {
		payload.File = file
	}

	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors[file] = payload

	return payload
}

// Clear forgets the failure for file, reporting whether one was recorded.
func (ec *ErrorCollector) Clear(file string) bool {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()

	_, ok := ec.errors[file]
	delete(ec.errors, file)

	return ok
}

// HasErrors returns true if there are any errors
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	return len(ec.errors) > 0
}

// All returns a copy of the recorded failures.
func (ec *ErrorCollector) All() []OverlayPayload {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	result := make([]OverlayPayload, 0, len(ec.errors))
	for _, payload := range ec.errors {
		result = append(result, payload)
	}

	return result
}
