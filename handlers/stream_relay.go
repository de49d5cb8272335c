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
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"

	"github.com/nightcord/nako-gateway/datatypes"
)

var tracer = otel.Tracer("nako.gateway.handlers")

// relayScanBuffer bounds a single upstream line. Chunk records are small;
// anything near this size is a protocol violation.
const relayScanBuffer = 1024 * 1024

// StreamRelay forwards an upstream chat-completion stream to a client
// while accumulating the reply text for augmentation.
//
// # Description
//
// The relay is line-oriented. Every complete upstream line is forwarded
// byte-for-byte, in arrival order, except sentinel lines ("data: [DONE]"),
// which are swallowed: the handler appends its own sentinel exactly once
// after any synthetic augmentation chunk. Content lines with a "data: "
// prefix additionally have their delta text parsed out and appended to
// the accumulator; parse failures are passthrough noise and contribute
// nothing.
//
// A partial line at end of stream (no trailing newline) is forwarded too,
// unless it is the sentinel.
//
// # Thread Safety
//
// A relay instance serves one stream; do not share across streams.
type StreamRelay struct {
	out RecordWriter
	acc ReplyAccumulator
}

// NewStreamRelay creates a relay writing to out and accumulating into acc.
func NewStreamRelay(out RecordWriter, acc ReplyAccumulator) *StreamRelay {
	return &StreamRelay{
		out: out,
		acc: acc,
	}
}

// Relay consumes upstream until EOF, forwarding and accumulating.
//
// # Inputs
//
//   - ctx: Context for cancellation. Checked between lines.
//   - upstream: Raw upstream stream body. The caller owns closing it.
//
// # Outputs
//
//   - error: Non-nil if reading upstream or writing to the client fails.
//     Accumulation failures do not stop the relay; the client keeps
//     receiving bytes and augmentation is skipped later.
func (r *StreamRelay) Relay(ctx context.Context, upstream io.Reader) error {
	ctx, span := tracer.Start(ctx, "StreamRelay.Relay")
	defer span.End()

	reader := bufio.NewReaderSize(upstream, 64*1024)
	accumulating := true

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		line, err := readLine(reader)
		if len(line) > 0 {
			if !isSentinelLine(line) {
				if werr := r.out.WriteRaw(line); werr != nil {
					return fmt.Errorf("forward upstream record: %w", werr)
				}
				accumulating = r.accumulate(line, accumulating)
			}
		}

		if err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("read upstream: %w", err)
		}
	}
}

// readLine returns the next line including its delimiter. The bound is
// enforced while reading, so a delimiter-free upstream fails fast instead
// of accumulating without limit.
func readLine(reader *bufio.Reader) ([]byte, error) {
	var line []byte
	for {
		chunk, err := reader.ReadSlice('\n')
		if len(line)+len(chunk) > relayScanBuffer {
			return nil, fmt.Errorf("upstream line exceeds %d bytes", relayScanBuffer)
		}
		// ReadSlice's return aliases the reader's buffer; copy before the
		// next read invalidates it.
		line = append(line, chunk...)
		if err == bufio.ErrBufferFull {
			continue
		}
		return line, err
	}
}

// accumulate extracts delta text from a forwarded line and appends it.
// Returns false once accumulation has failed so later lines skip the
// append instead of logging repeatedly.
func (r *StreamRelay) accumulate(line []byte, accumulating bool) bool {
	if !accumulating || r.acc == nil {
		return false
	}

	payload, ok := dataPayload(line)
	if !ok {
		return true
	}
	content, ok := datatypes.ExtractDeltaContent(payload)
	if !ok || content == "" {
		return true
	}

	if err := r.acc.Append(content); err != nil {
		slog.Warn("Reply accumulation failed, continuing relay without augmentation", "error", err)
		return false
	}
	return true
}

// dataPayload returns the JSON payload of a "data: " record line, with
// framing and line endings stripped.
func dataPayload(line []byte) ([]byte, bool) {
	trimmed := strings.TrimRight(string(line), "\r\n")
	if !strings.HasPrefix(trimmed, datatypes.StreamDataPrefix) {
		return nil, false
	}
	return []byte(trimmed[len(datatypes.StreamDataPrefix):]), true
}

// isSentinelLine reports whether the line is the upstream end-of-stream
// sentinel record.
func isSentinelLine(line []byte) bool {
	trimmed := strings.TrimSpace(string(line))
	return trimmed == datatypes.StreamDataPrefix+datatypes.StreamDoneSentinel
}
