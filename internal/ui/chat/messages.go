// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// This file defines all Bubble Tea message types used by the chat interface.
// Messages are organized into the following categories:
//   - Streaming: Stream start, token delivery, completion, and errors
//   - Input: User input submission and cancellation
//   - Configuration: Live config reload notices
//   - Errors: Error display and dismissal
//
// All message types follow Bubble Tea conventions and are immutable.
package chat

import (
	"time"

	"github.com/jeranaias/gpterm/internal/model"
)

// =============================================================================
// STREAMING MESSAGES
// =============================================================================

// StreamStartMsg signals that streaming has begun.
type StreamStartMsg struct {
	MessageID string
	StartTime time.Time
}

// StreamTokenMsg delivers a new token from the stream.
type StreamTokenMsg struct {
	MessageID string
	Token     string
	IsFirst   bool // True if this is the first token
}

// StreamCompleteMsg signals that streaming has finished.
type StreamCompleteMsg struct {
	MessageID string
	Stats     *model.Statistics
	Error     error
}

// flushTickMsg drives the streaming buffer flush loop while a response is
// being received.
type flushTickMsg struct {
	at time.Time
}

// =============================================================================
// INPUT MESSAGES
// =============================================================================

// SubmitInputMsg signals that the user submitted input.
type SubmitInputMsg struct {
	Content string
}

// CancelStreamMsg requests cancellation of the in-flight stream.
type CancelStreamMsg struct{}

// =============================================================================
// CONFIGURATION MESSAGES
// =============================================================================

// ConfigReloadedMsg signals that the config file changed on disk and was
// reloaded. The active model may have changed.
type ConfigReloadedMsg struct {
	Model string
}

// =============================================================================
// ERROR MESSAGES
// =============================================================================

// ErrorMsg carries a user-visible error for the current turn.
type ErrorMsg struct {
	Title  string
	Detail string
}

// DismissErrorMsg clears the currently displayed error.
type DismissErrorMsg struct{}
