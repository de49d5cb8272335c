// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package usage records per-request activity for offline analysis.
//
// Reporting is strictly fire-and-forget: a failed or slow write never
// blocks a response or surfaces to the caller.
package usage

import (
	"log/slog"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// Reporter records one activity event per handled request.
type Reporter interface {
	// ReportChat records a chat-style event. Never blocks.
	ReportChat(userID, persona, event string)

	// Close flushes pending writes and releases resources.
	Close()
}

// InfluxReporter writes activity points through the influx async write API.
//
// # Description
//
// The async WriteAPI batches points in the background, which gives the
// fire-and-forget behavior for free. Write errors are drained from the
// errors channel and logged; nothing propagates to request handling.
type InfluxReporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	done     chan struct{}
}

// NewInfluxReporter creates a reporter for the given influx instance.
//
// # Inputs
//
//   - url: Influx server URL.
//   - token: API token.
//   - org, bucket: Destination for activity points.
func NewInfluxReporter(url, token, org, bucket string) *InfluxReporter {
	client := influxdb2.NewClient(url, token)
	writeAPI := client.WriteAPI(org, bucket)

	r := &InfluxReporter{
		client:   client,
		writeAPI: writeAPI,
		done:     make(chan struct{}),
	}

	go r.drainErrors()
	return r
}

// drainErrors logs async write failures until Close.
func (r *InfluxReporter) drainErrors() {
	errCh := r.writeAPI.Errors()
	for {
		select {
		case err, ok := <-errCh:
			if !ok {
				return
			}
			slog.Warn("Usage write failed", "error", err)
		case <-r.done:
			return
		}
	}
}

// ReportChat implements Reporter.
func (r *InfluxReporter) ReportChat(userID, persona, event string) {
	point := influxdb2.NewPoint(
		"chat_activity",
		map[string]string{
			"user":    userID,
			"persona": persona,
			"event":   event,
		},
		map[string]interface{}{
			"count": 1,
		},
		time.Now(),
	)
	r.writeAPI.WritePoint(point)
}

// Close flushes pending points and shuts the client down.
func (r *InfluxReporter) Close() {
	close(r.done)
	r.writeAPI.Flush()
	r.client.Close()
}

// NopReporter discards all events. Used when influx is unconfigured.
type NopReporter struct{}

func (NopReporter) ReportChat(userID, persona, event string) {}
func (NopReporter) Close()                                   {}

var (
	_ Reporter = (*InfluxReporter)(nil)
	_ Reporter = NopReporter{}
)
