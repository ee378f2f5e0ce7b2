// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package email

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// WriterTransport prints messages to a writer instead of sending them.
// It is used when no SMTP relay is configured.
type WriterTransport struct {
	mu sync.Mutex
	w  io.Writer
}

// NewWriterTransport creates a transport printing to w.
func NewWriterTransport(w io.Writer) *WriterTransport {
	return &WriterTransport{w: w}
}

// Send writes msg to the underlying writer.
func (t *WriterTransport) Send(_ context.Context, msg Message) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err := fmt.Fprintf(t.w, "To: %s\nSubject: %s\n\n%s\n----\n", msg.To, msg.Subject, msg.Body)
	return err
}
