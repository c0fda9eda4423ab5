// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file implements streaming optimization to provide smooth, flicker-free
// rendering during response streaming. The StreamingBuffer batches tokens for
// efficient rendering at a capped frame rate to balance responsiveness with
// CPU efficiency.
package chat

import (
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// =============================================================================
// STREAMING BUFFER
// =============================================================================

// StreamingBuffer batches tokens for efficient rendering.
// Tokens are accumulated in a buffer and flushed either when:
//  1. The batch size threshold is reached (e.g., 15 tokens)
//  2. Enough time has passed since the last flush (e.g., 33ms for 30fps)
//
// This prevents excessive rendering which causes flicker and high CPU usage,
// while maintaining smooth visual updates.
//
// Thread-safety: all operations are protected by a mutex since streaming
// happens in a goroutine while rendering happens in the main Bubble Tea loop.
type StreamingBuffer struct {
	mu         sync.Mutex
	buffer     strings.Builder
	tokenCount int
	lastFlush  time.Time

	// Configuration
	batchSize  int           // Tokens per batch
	minFlushMs time.Duration // Min time between flushes
}

// NewStreamingBuffer creates a streaming buffer with default settings:
// 15-token batches at a 30fps cap.
func NewStreamingBuffer() *StreamingBuffer {
	const (
		defaultBatchSize = 15
		defaultMaxFPS    = 30
	)

	return &StreamingBuffer{
		batchSize:  defaultBatchSize,
		minFlushMs: time.Duration(1000/defaultMaxFPS) * time.Millisecond,
		lastFlush:  time.Now(),
	}
}

// Write adds a token to the buffer.
// This is called from the streaming goroutine, so it's thread-safe.
func (sb *StreamingBuffer) Write(token string) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.buffer.WriteString(token)
	sb.tokenCount++
}

// Flush returns accumulated content if the buffer should be flushed.
// Returns (content, hasContent). The buffer is flushed if either the batch
// size threshold or the time threshold is reached.
func (sb *StreamingBuffer) Flush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.buffer.Len() == 0 {
		return "", false
	}

	if !sb.shouldFlushLocked() {
		return "", false
	}

	return sb.drainLocked(), true
}

// ForceFlush returns any accumulated content regardless of thresholds.
// Called when streaming completes to drain the tail of the response.
func (sb *StreamingBuffer) ForceFlush() (string, bool) {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	if sb.buffer.Len() == 0 {
		return "", false
	}

	return sb.drainLocked(), true
}

// Reset discards buffered content at the start of a new stream.
func (sb *StreamingBuffer) Reset() {
	sb.mu.Lock()
	defer sb.mu.Unlock()

	sb.buffer.Reset()
	sb.tokenCount = 0
	sb.lastFlush = time.Now()
}

// shouldFlushLocked reports whether a flush threshold has been reached.
// Caller must hold sb.mu.
func (sb *StreamingBuffer) shouldFlushLocked() bool {
	if sb.tokenCount >= sb.batchSize {
		return true
	}
	return time.Since(sb.lastFlush) >= sb.minFlushMs
}

// drainLocked extracts the buffered content and resets counters.
// Caller must hold sb.mu.
func (sb *StreamingBuffer) drainLocked() string {
	content := sb.buffer.String()
	sb.buffer.Reset()
	sb.tokenCount = 0
	sb.lastFlush = time.Now()
	return content
}

// =============================================================================
// FLUSH LOOP
// =============================================================================

// flushTickCmd schedules the next streaming buffer flush check.
// The tick loop runs only while a stream is active.
func flushTickCmd() tea.Cmd {
	return tea.Tick(33*time.Millisecond, func(t time.Time) tea.Msg {
		return flushTickMsg{at: t}
	})
}
