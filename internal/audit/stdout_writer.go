package audit

import (
	"encoding/json"
	"io"
	"os"
	"sync"
)

// streamWriter writes audit events to an io.Writer as JSON lines
type streamWriter struct {
	encoder *json.Encoder
	mu      sync.Mutex
}

// NewStdoutWriter creates a writer that emits events to stdout
func NewStdoutWriter() Writer {
	return NewStreamWriter(os.Stdout)
}

// NewStreamWriter creates a writer that emits events to w
func NewStreamWriter(w io.Writer) Writer {
	return &streamWriter{
		encoder: json.NewEncoder(w),
	}
}

// Write writes an event as a single JSON line
func (w *streamWriter) Write(event interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.encoder.Encode(event)
}

// Close closes the writer (no-op for streams)
func (w *streamWriter) Close() error {
	return nil
}
