// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session orchestrates one request/response turn of a chat session.
//
// A Session owns exactly one Conversation and drives the full turn cycle:
// append the user turn, replay the persona-prefixed history to the backend,
// stream the reply, and append the finished assistant turn. The session is
// single-user and single-request-at-a-time; callers are expected to wait for
// the streamed result before submitting the next input.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jeranaias/gpterm/internal/model"
	"github.com/jeranaias/gpterm/internal/openai"
)

// Persona is the fixed system instruction prepended to every request.
// It is conceptually the zeroth turn of each request and is never part of
// the visible transcript.
const Persona = "You are a helpful assistant."

// ErrEmptyInput indicates the submitted input was blank after trimming.
// Blank input suppresses the request cycle entirely; callers treat it as a
// silent no-op rather than a visible failure.
var ErrEmptyInput = errors.New("empty input")

// BackendError wraps any failure from the chat backend (auth, network, rate
// limit, malformed response). The failure detail is opaque to the session;
// the user turn that triggered the request remains in the transcript.
type BackendError struct {
	Err error
}

// Error implements the error interface.
func (e *BackendError) Error() string {
	return fmt.Sprintf("chat backend: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *BackendError) Unwrap() error {
	return e.Err
}

// Backend is the chat-completion collaborator consumed by a session.
// It accepts an ordered message list and streams back text fragments whose
// concatenation is the full reply. *openai.Client satisfies this interface.
type Backend interface {
	ChatStream(ctx context.Context, messages []openai.ChatMessage, callback openai.StreamCallback) error
}

// TokenFunc receives each incremental text fragment as it arrives.
// It may be nil when the caller only wants the buffered result.
type TokenFunc func(token string)

// =============================================================================
// SESSION
// =============================================================================

// Session holds the state for one interactive chat session.
type Session struct {
	conversation *model.Conversation
	backend      Backend
	persona      string
}

// Option configures a Session.
type Option func(*Session)

// WithPersona overrides the default persona instruction.
func WithPersona(persona string) Option {
	return func(s *Session) {
		s.persona = persona
	}
}

// WithConversation attaches an existing conversation instead of starting
// empty. Used by front ends that construct the conversation up front so the
// view can render it before the first turn.
func WithConversation(conv *model.Conversation) Option {
	return func(s *Session) {
		s.conversation = conv
	}
}

// New creates a session with an empty conversation bound to the given backend.
func New(backend Backend, opts ...Option) *Session {
	s := &Session{
		conversation: model.NewConversation(),
		backend:      backend,
		persona:      Persona,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Conversation returns the session's conversation for rendering.
func (s *Session) Conversation() *model.Conversation {
	return s.conversation
}

// History returns the full ordered transcript.
func (s *Session) History() []*model.Message {
	return s.conversation.GetHistory()
}

// =============================================================================
// TURN PROCESSING
// =============================================================================

// Send processes one request/response turn.
//
// Blank input (after trimming) is a no-op: nothing is appended, no backend
// call is made, and ErrEmptyInput is returned so callers can gate silently.
//
// Otherwise the user turn is appended, the persona-prefixed history is sent
// to the backend with streaming delivery, and each fragment is forwarded to
// onToken as it arrives. On success the accumulated reply is appended as the
// assistant turn and returned; the transcript grows by exactly two messages.
//
// On backend failure a *BackendError is returned. The user turn is not rolled
// back, no assistant turn is appended, and no retry is attempted; the
// transcript is left with an unanswered user message and the next Send starts
// a fresh cycle.
func (s *Session) Send(ctx context.Context, input string, onToken TokenFunc) (string, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", ErrEmptyInput
	}

	s.conversation.AddUserMessage(input)

	// Request context: fixed persona turn + full stored history, including
	// the just-appended user turn. Never truncated, never reordered.
	messages := s.conversation.ToChatMessages(s.persona)

	var reply strings.Builder
	err := s.backend.ChatStream(ctx, messages, func(chunk openai.StreamChunk) {
		content := chunk.GetContent()
		if content == "" {
			return
		}
		reply.WriteString(content)
		if onToken != nil {
			onToken(content)
		}
	})
	if err != nil {
		return "", &BackendError{Err: err}
	}

	// The assistant turn enters the transcript only once the call succeeded
	msg := model.NewAssistantMessage()
	msg.AppendToken(reply.String())
	msg.FinalizeStream(nil)
	s.conversation.AddMessage(msg)

	return reply.String(), nil
}
