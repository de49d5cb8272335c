// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/nightcord/nako-gateway/datatypes"
)

// RecordWriter defines the contract for writing stream records to the client.
//
// # Description
//
// RecordWriter abstracts the outbound side of the streaming relay so the
// relay state machine can be tested against an in-memory implementation.
// Raw upstream bytes and synthesized chunks go through the same writer,
// preserving output ordering.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type RecordWriter interface {
	// WriteRaw forwards upstream bytes to the client unmodified.
	WriteRaw(p []byte) error

	// WriteChunk serializes a synthesized chunk as a data record.
	WriteChunk(chunk datatypes.CompletionChunk) error

	// WriteDone emits the terminating sentinel record.
	WriteDone() error
}

// chunkWriter implements RecordWriter over an HTTP response.
//
// # Description
//
// Each write flushes immediately so tokens reach the client as they
// arrive. A mutex keeps interleaved writes whole; the relay forwards
// records from the upstream goroutine while errors may be written from
// the handler.
//
// # Limitations
//
//   - Cannot be reused across requests.
type chunkWriter struct {
	writer  io.Writer
	flusher http.Flusher
	mu      sync.Mutex
}

// NewChunkWriter creates a RecordWriter for the given ResponseWriter.
//
// # Outputs
//
//   - RecordWriter: Ready to forward records.
//   - error: Non-nil if the ResponseWriter does not support flushing.
func NewChunkWriter(w http.ResponseWriter) (RecordWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("ResponseWriter does not support http.Flusher")
	}

	return &chunkWriter{
		writer:  w,
		flusher: flusher,
	}, nil
}

// WriteRaw forwards upstream bytes unmodified and flushes.
func (w *chunkWriter) WriteRaw(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.writer.Write(p); err != nil {
		return fmt.Errorf("write raw record: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteChunk serializes the chunk as one data record and flushes.
func (w *chunkWriter) WriteChunk(chunk datatypes.CompletionChunk) error {
	payload, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, "%s%s\n\n", datatypes.StreamDataPrefix, payload); err != nil {
		return fmt.Errorf("write chunk record: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// WriteDone emits the terminating sentinel record and flushes.
func (w *chunkWriter) WriteDone() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := fmt.Fprintf(w.writer, "%s%s\n\n", datatypes.StreamDataPrefix, datatypes.StreamDoneSentinel); err != nil {
		return fmt.Errorf("write done record: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetStreamHeaders configures HTTP response headers for event streaming.
//
// Must be called before writing any response body.
func SetStreamHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

var _ RecordWriter = (*chunkWriter)(nil)
