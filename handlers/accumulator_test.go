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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReplyAccumulator_RoundTrip(t *testing.T) {
	t.Setenv("NAKO_INSECURE_MEMORY", "true")

	acc, err := NewReplyAccumulator()
	require.NoError(t, err)
	defer acc.Destroy()

	require.NoError(t, acc.Append("你好"))
	require.NoError(t, acc.Append("，"))
	require.NoError(t, acc.Append("世界"))

	reply, err := acc.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "你好，世界", reply)
}

func TestNewReplyAccumulator_DestroyIsIdempotent(t *testing.T) {
	t.Setenv("NAKO_INSECURE_MEMORY", "true")

	acc, err := NewReplyAccumulator()
	require.NoError(t, err)

	acc.Destroy()
	acc.Destroy()

	assert.Error(t, acc.Append("late"))
	_, err = acc.Finalize()
	assert.Error(t, err)
}

func TestPlainAccumulator_Overflow(t *testing.T) {
	acc := &plainAccumulator{}

	big := strings.Repeat("x", ReplyBufferSize)
	require.NoError(t, acc.Append(big))

	// One more byte trips the overflow and the accumulator stays failed.
	assert.Error(t, acc.Append("y"))
	assert.Error(t, acc.Append("z"))

	_, err := acc.Finalize()
	assert.Error(t, err)
}

func TestPlainAccumulator_EmptyFinalize(t *testing.T) {
	acc := &plainAccumulator{}
	reply, err := acc.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "", reply)
}

func TestSecureAccumulator_OverflowMarksFailed(t *testing.T) {
	t.Setenv("NAKO_INSECURE_MEMORY", "true")

	acc, err := NewReplyAccumulator()
	require.NoError(t, err)
	defer acc.Destroy()

	require.NoError(t, acc.Append(strings.Repeat("a", ReplyBufferSize-1)))
	require.NoError(t, acc.Append("b"))
	assert.Error(t, acc.Append("c"))

	_, err = acc.Finalize()
	assert.Error(t, err)
}
