// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
//
// The package implements a Bubble Tea model that renders the conversation
// transcript in a viewport, accepts one line of input at a time, and streams
// assistant replies token by token. Blank input is gated here and never
// reaches the turn protocol; the input field is locked while a request is in
// flight, so at most one request is active per session.
package chat
