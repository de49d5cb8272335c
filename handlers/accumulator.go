// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package handlers provides the HTTP request handlers for the gateway.
//
// This file implements reply accumulation for streaming responses. While
// the relay forwards upstream bytes to the client, delta text is collected
// here so the finished reply can drive sticker recommendation. The buffer
// lives in mlocked memory to keep conversation content from swapping to
// disk.
package handlers

import (
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/awnumar/memguard"
	"golang.org/x/sys/unix"
)

const (
	// ReplyBufferSize bounds one accumulated reply. 256 KB is far beyond
	// any realistic persona reply; overflow means something upstream is
	// broken, and the stream keeps relaying without accumulation.
	ReplyBufferSize = 256 * 1024

	// minMlockLimitKB is the minimum mlock limit required in kilobytes.
	minMlockLimitKB = 256
)

var (
	memguardInitOnce sync.Once
	mlockSufficient  bool
	mlockLimitKB     int64
)

// ReplyAccumulator collects streamed delta text for post-stream use.
//
// # Description
//
// Accumulators are single-use: Append during the stream, Finalize once at
// the end, Destroy on every exit path. Destroy after Finalize is a no-op.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use.
type ReplyAccumulator interface {
	// Append adds delta text to the reply.
	Append(text string) error

	// Finalize returns the accumulated reply and wipes the buffer.
	Finalize() (string, error)

	// Destroy wipes the buffer without returning data. Idempotent.
	Destroy()
}

// NewReplyAccumulator creates an accumulator backed by mlocked memory.
//
// # Description
//
// If the system mlock limit is insufficient, the behavior depends on
// NAKO_INSECURE_MEMORY: when "true", a plain-memory accumulator is
// returned with a warning; otherwise construction fails with guidance.
func NewReplyAccumulator() (ReplyAccumulator, error) {
	initMemguard()

	if !mlockSufficient {
		if os.Getenv("NAKO_INSECURE_MEMORY") == "true" {
			slog.Warn("Using plain-memory reply accumulator, mlock limit insufficient",
				"current_limit_kb", mlockLimitKB,
				"required_kb", minMlockLimitKB)
			return &plainAccumulator{}, nil
		}
		return nil, fmt.Errorf(
			"mlock limit insufficient: have %d KB, need %d KB. "+
				"Raise the limit or set NAKO_INSECURE_MEMORY=true",
			mlockLimitKB, minMlockLimitKB)
	}

	buf := memguard.NewBuffer(ReplyBufferSize)
	if buf == nil {
		return nil, fmt.Errorf("failed to allocate secure buffer of %d bytes", ReplyBufferSize)
	}
	buf.Melt()

	return &secureAccumulator{buffer: buf}, nil
}

// initMemguard performs one-time memguard setup and mlock limit detection.
func initMemguard() {
	memguardInitOnce.Do(func() {
		memguard.CatchInterrupt()
		mlockSufficient, mlockLimitKB = checkMlockLimit()
		if mlockSufficient {
			slog.Info("Secure memory initialized", "mlock_limit_kb", mlockLimitKB)
		} else {
			slog.Warn("mlock limit insufficient for secure memory",
				"current_limit_kb", mlockLimitKB,
				"required_kb", minMlockLimitKB)
		}
	})
}

// checkMlockLimit queries the kernel mlock resource limit.
func checkMlockLimit() (bool, int64) {
	var rlimit unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_MEMLOCK, &rlimit); err != nil {
		slog.Warn("Could not determine mlock limit", "error", err)
		return true, -1
	}
	if rlimit.Cur == unix.RLIM_INFINITY {
		return true, -1
	}
	limitKB := int64(rlimit.Cur / 1024)
	return limitKB >= minMlockLimitKB, limitKB
}

// PurgeSecureMemory wipes all memguard-allocated memory. Call on shutdown.
func PurgeSecureMemory() {
	memguard.Purge()
	slog.Info("Purged secure memory")
}

// secureAccumulator stores reply text in a memguard LockedBuffer.
//
// The buffer is mlocked, guarded, and explicitly wiped; overflow marks the
// accumulator failed rather than growing.
type secureAccumulator struct {
	mu        sync.Mutex
	buffer    *memguard.LockedBuffer
	offset    int
	overflow  bool
	destroyed bool
}

func (a *secureAccumulator) Append(text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("reply buffer overflow")
	}
	if a.offset+len(text) > ReplyBufferSize {
		a.overflow = true
		return fmt.Errorf("reply buffer overflow: need %d bytes, have %d remaining",
			len(text), ReplyBufferSize-a.offset)
	}

	copy(a.buffer.Bytes()[a.offset:], text)
	a.offset += len(text)
	return nil
}

func (a *secureAccumulator) Finalize() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return "", fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.wipe()
		return "", fmt.Errorf("reply buffer overflowed during accumulation")
	}

	reply := string(a.buffer.Bytes()[:a.offset])
	a.wipe()
	return reply, nil
}

func (a *secureAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return
	}
	a.wipe()
}

func (a *secureAccumulator) wipe() {
	if a.buffer != nil {
		a.buffer.Destroy()
	}
	a.destroyed = true
}

// plainAccumulator is the fallback for systems without sufficient mlock.
// Data may be swapped to disk; wiping is best effort.
type plainAccumulator struct {
	mu        sync.Mutex
	data      []byte
	overflow  bool
	destroyed bool
}

func (a *plainAccumulator) Append(text string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		return fmt.Errorf("reply buffer overflow")
	}
	if len(a.data)+len(text) > ReplyBufferSize {
		a.overflow = true
		return fmt.Errorf("reply buffer overflow: need %d bytes, have %d remaining",
			len(text), ReplyBufferSize-len(a.data))
	}

	a.data = append(a.data, text...)
	return nil
}

func (a *plainAccumulator) Finalize() (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return "", fmt.Errorf("accumulator already destroyed")
	}
	if a.overflow {
		a.zero()
		return "", fmt.Errorf("reply buffer overflowed during accumulation")
	}

	reply := string(a.data)
	a.zero()
	return reply, nil
}

func (a *plainAccumulator) Destroy() {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.destroyed {
		return
	}
	a.zero()
}

func (a *plainAccumulator) zero() {
	for i := range a.data {
		a.data[i] = 0
	}
	a.data = nil
	a.destroyed = true
}

var (
	_ ReplyAccumulator = (*secureAccumulator)(nil)
	_ ReplyAccumulator = (*plainAccumulator)(nil)
)
