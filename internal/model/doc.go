// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations and messages.
//
// This package defines the core domain types used throughout the application
// for representing a chat session transcript.
//
// # Key Types
//
//   - Conversation: Append-only container for one chat session's messages
//   - Message: Single message with role, content, and timing statistics
//   - Role: Message role enumeration (user, assistant, system)
//
// # Usage
//
// Create a new conversation and append a turn:
//
//	conv := model.NewConversation()
//	conv.AddUserMessage("Hello!")
//
// The transcript is a faithful log: messages are never edited, reordered,
// or removed once appended.
package model
