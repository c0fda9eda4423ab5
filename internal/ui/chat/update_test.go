// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"errors"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/gpterm/internal/config"
	"github.com/jeranaias/gpterm/internal/model"
	"github.com/jeranaias/gpterm/internal/openai"
	"github.com/jeranaias/gpterm/internal/ui/styles"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

// newTestModel builds a chat model with markdown disabled so rendering needs
// no terminal. Returned commands are never executed, so no request leaves
// the process.
func newTestModel(t *testing.T) Model {
	t.Helper()

	cfg := config.Default()
	cfg.UI.Markdown = false

	client := openai.NewClient("sk-test-abcdefghijklmnopqrstuvwxyz0123456789")
	return New(styles.NewTheme(), client, model.NewConversation(), cfg)
}

// drive runs one update and returns the resulting model.
func drive(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	updated, _ := m.Update(msg)
	next, ok := updated.(Model)
	if !ok {
		t.Fatalf("Update() returned %T, want chat.Model", updated)
	}
	return next
}

// =============================================================================
// INPUT SUBMISSION
// =============================================================================

func TestSubmitInput_BlankIsNoOp(t *testing.T) {
	for _, input := range []string{"", "   ", "\t", " \n "} {
		m := newTestModel(t)
		m.input.SetValue(input)

		if cmd := m.submitInput(); cmd != nil {
			t.Errorf("submitInput(%q) returned a command, want nil", input)
		}
		if !m.conversation.IsEmpty() {
			t.Errorf("submitInput(%q) recorded a message", input)
		}
	}
}

func TestSubmitInput_TrimsBeforeRecording(t *testing.T) {
	m := newTestModel(t)
	m.input.SetValue("  what is a goroutine?  ")

	cmd := m.submitInput()
	if cmd == nil {
		t.Fatal("submitInput() returned nil for non-blank input")
	}

	msg, ok := cmd().(SubmitInputMsg)
	if !ok {
		t.Fatalf("submitInput() command produced %T, want SubmitInputMsg", cmd())
	}
	if msg.Content != "what is a goroutine?" {
		t.Errorf("SubmitInputMsg content = %q, want trimmed text", msg.Content)
	}

	m = drive(t, m, msg)

	history := m.conversation.GetHistory()
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].Role != model.RoleUser {
		t.Errorf("recorded role = %v, want user", history[0].Role)
	}
	if history[0].Content != "what is a goroutine?" {
		t.Errorf("recorded content = %q, want trimmed text", history[0].Content)
	}
}

// =============================================================================
// TURN LIFECYCLE
// =============================================================================

func TestUpdate_SubmitStartsStreaming(t *testing.T) {
	m := newTestModel(t)

	m = drive(t, m, SubmitInputMsg{Content: "hello"})

	if m.state != StateStreaming {
		t.Errorf("state = %v, want StateStreaming", m.state)
	}
	if m.streamingMsg == nil {
		t.Fatal("no streaming message after submit")
	}
	// The pending reply is held outside the transcript until it succeeds
	if got := m.conversation.MessageCount(); got != 1 {
		t.Errorf("message count = %d, want 1 (user turn only)", got)
	}

	// A second submit while streaming is ignored: one request at a time
	m = drive(t, m, SubmitInputMsg{Content: "second"})
	if got := m.conversation.MessageCount(); got != 1 {
		t.Errorf("message count after mid-stream submit = %d, want 1", got)
	}
}

func TestUpdate_SuccessAppendsAssistantTurn(t *testing.T) {
	m := newTestModel(t)
	m = drive(t, m, SubmitInputMsg{Content: "hello"})
	msgID := m.streamingMsg.ID

	m = drive(t, m, StreamTokenMsg{MessageID: msgID, Token: "Hi ", IsFirst: true})
	m = drive(t, m, StreamTokenMsg{MessageID: msgID, Token: "there."})
	m = drive(t, m, StreamCompleteMsg{MessageID: msgID})

	if m.state != StateReady {
		t.Errorf("state = %v, want StateReady", m.state)
	}
	if m.streamingMsg != nil {
		t.Error("streaming message not cleared after completion")
	}
	if m.lastError != nil {
		t.Errorf("unexpected error after success: %v", m.lastError)
	}

	history := m.conversation.GetHistory()
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[1].Role != model.RoleAssistant {
		t.Errorf("second turn role = %v, want assistant", history[1].Role)
	}
	if history[1].Content != "Hi there." {
		t.Errorf("assistant content = %q, want %q", history[1].Content, "Hi there.")
	}
}

func TestUpdate_FailureKeepsUserTurnOnly(t *testing.T) {
	m := newTestModel(t)
	m = drive(t, m, SubmitInputMsg{Content: "hello"})
	msgID := m.streamingMsg.ID

	m = drive(t, m, StreamTokenMsg{MessageID: msgID, Token: "partial", IsFirst: true})
	m = drive(t, m, StreamCompleteMsg{MessageID: msgID, Error: errors.New("connection reset")})

	if m.state != StateReady {
		t.Errorf("state = %v, want StateReady", m.state)
	}
	if m.streamingMsg != nil {
		t.Error("failed streaming message not dropped")
	}
	if m.lastError == nil {
		t.Fatal("no error recorded for failed turn")
	}

	// The unanswered user turn stays; nothing is rolled back or retried
	history := m.conversation.GetHistory()
	if len(history) != 1 {
		t.Fatalf("history length = %d, want 1", len(history))
	}
	if history[0].Role != model.RoleUser {
		t.Errorf("surviving turn role = %v, want user", history[0].Role)
	}

	// The next turn proceeds normally after a failure
	m = drive(t, m, SubmitInputMsg{Content: "again"})
	if got := m.conversation.MessageCount(); got != 2 {
		t.Errorf("message count after resubmit = %d, want 2", got)
	}
	if m.lastError != nil {
		t.Error("error not cleared on next submit")
	}
}
