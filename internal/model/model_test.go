// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"strings"
	"testing"
	"time"
)

// =============================================================================
// ROLE TESTS
// =============================================================================

func TestRole_DisplayName(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{RoleUser, "You"},
		{RoleAssistant, "Assistant"},
		{RoleSystem, "System"},
		{Role("tool"), "tool"},
	}

	for _, tc := range tests {
		if got := tc.role.DisplayName(); got != tc.want {
			t.Errorf("DisplayName(%q) = %q, want %q", tc.role, got, tc.want)
		}
	}
}

// =============================================================================
// MESSAGE TESTS
// =============================================================================

func TestMessage_StreamingLifecycle(t *testing.T) {
	msg := NewAssistantMessage()

	if !msg.IsStreaming {
		t.Fatal("new assistant message should be streaming")
	}
	if !msg.IsEmpty() {
		t.Error("new assistant message should be empty")
	}

	msg.AppendToken("Hello")
	msg.AppendToken(", world")

	if got := msg.GetDisplayContent(); got != "Hello, world" {
		t.Errorf("GetDisplayContent() = %q during streaming, want %q", got, "Hello, world")
	}

	msg.FinalizeStream(nil)

	if msg.IsStreaming {
		t.Error("message should not be streaming after finalize")
	}
	if msg.Content != "Hello, world" {
		t.Errorf("Content = %q after finalize, want %q", msg.Content, "Hello, world")
	}

	// Appends after finalize are ignored
	msg.AppendToken("!!!")
	if msg.GetDisplayContent() != "Hello, world" {
		t.Error("AppendToken after finalize should be a no-op")
	}
}

func TestMessage_FinalizeStreamWithStats(t *testing.T) {
	stats := NewStatistics()
	stats.RecordFirstToken()
	time.Sleep(time.Millisecond)
	stats.Finalize(42)

	msg := NewAssistantMessage()
	msg.AppendToken("done")
	msg.FinalizeStream(stats)

	if msg.TokenCount != 42 {
		t.Errorf("TokenCount = %d, want 42", msg.TokenCount)
	}
	if msg.TotalDuration <= 0 {
		t.Error("TotalDuration should be positive")
	}
}

func TestMessage_Preview(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxLen  int
		want    string
	}{
		{"short content unchanged", "hello", 10, "hello"},
		{"long content truncated", strings.Repeat("a", 20), 10, strings.Repeat("a", 7) + "..."},
		{"unicode safe", strings.Repeat("日", 20), 10, strings.Repeat("日", 7) + "..."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := NewUserMessage(tc.content)
			if got := msg.Preview(tc.maxLen); got != tc.want {
				t.Errorf("Preview(%d) = %q, want %q", tc.maxLen, got, tc.want)
			}
		})
	}
}

func TestMessage_EstimateTokens(t *testing.T) {
	msg := NewUserMessage(strings.Repeat("x", 40))
	if got := msg.EstimateTokens(); got != 10 {
		t.Errorf("EstimateTokens() = %d, want 10", got)
	}
}

func TestMessage_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		msg := NewUserMessage("x")
		if seen[msg.ID] {
			t.Fatalf("duplicate message ID %q", msg.ID)
		}
		seen[msg.ID] = true
	}
}

// =============================================================================
// CONVERSATION TESTS
// =============================================================================

func TestConversation_AppendOnly(t *testing.T) {
	conv := NewConversation()

	first := conv.AddUserMessage("first")
	second := conv.AddUserMessage("second")

	history := conv.GetHistory()
	if len(history) != 2 {
		t.Fatalf("MessageCount = %d, want 2", len(history))
	}
	if history[0] != first || history[1] != second {
		t.Error("messages should appear in append order")
	}
	if conv.GetLastMessage() != second {
		t.Error("GetLastMessage should return the most recent append")
	}
}

func TestConversation_Lookups(t *testing.T) {
	conv := NewConversation()
	user := conv.AddUserMessage("question")

	assistant := NewAssistantMessage()
	assistant.AppendToken("answer")
	assistant.FinalizeStream(nil)
	conv.AddMessage(assistant)

	if conv.GetLastUserMessage() != user {
		t.Error("GetLastUserMessage mismatch")
	}
	if conv.GetLastAssistantMessage() != assistant {
		t.Error("GetLastAssistantMessage mismatch")
	}
	if conv.GetMessageByID(user.ID) != user {
		t.Error("GetMessageByID mismatch")
	}
	if conv.GetMessageByID("msg_nonexistent") != nil {
		t.Error("GetMessageByID should return nil for unknown ID")
	}
}

func TestConversation_TitleFromFirstUserMessage(t *testing.T) {
	conv := NewConversation()
	if conv.GetTitle() != "New Conversation" {
		t.Errorf("empty conversation title = %q", conv.GetTitle())
	}

	conv.AddUserMessage("What is the capital of France?")
	if conv.Title != "What is the capital of France?" {
		t.Errorf("Title = %q", conv.Title)
	}

	// Title sticks after more messages
	conv.AddUserMessage("And of Spain?")
	if conv.Title != "What is the capital of France?" {
		t.Error("title should not change after the first user message")
	}
}

// =============================================================================
// REQUEST CONTEXT TESTS
// =============================================================================

func TestConversation_ToChatMessages(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("question one")

	assistant := NewAssistantMessage()
	assistant.AppendToken("answer one")
	assistant.FinalizeStream(nil)
	conv.AddMessage(assistant)

	conv.AddUserMessage("question two")

	messages := conv.ToChatMessages("You are a helpful assistant.")

	want := []struct {
		role    string
		content string
	}{
		{"system", "You are a helpful assistant."},
		{"user", "question one"},
		{"assistant", "answer one"},
		{"user", "question two"},
	}

	if len(messages) != len(want) {
		t.Fatalf("got %d messages, want %d", len(messages), len(want))
	}
	for i, w := range want {
		if messages[i].Role != w.role || messages[i].Content != w.content {
			t.Errorf("messages[%d] = {%s, %q}, want {%s, %q}",
				i, messages[i].Role, messages[i].Content, w.role, w.content)
		}
	}
}

func TestConversation_ToChatMessages_NoPersona(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage("hi")

	messages := conv.ToChatMessages("")
	if len(messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(messages))
	}
	if messages[0].Role != "user" {
		t.Errorf("messages[0].Role = %q, want user", messages[0].Role)
	}
}

func TestConversation_ToChatMessages_SkipsEmptyContent(t *testing.T) {
	conv := NewConversation()
	conv.AddMessage(NewUserMessage(""))
	conv.AddUserMessage("real question")

	messages := conv.ToChatMessages("persona")
	// system + the non-empty user turn only
	if len(messages) != 2 {
		t.Fatalf("got %d messages, want 2", len(messages))
	}
	if messages[1].Content != "real question" {
		t.Errorf("messages[1].Content = %q", messages[1].Content)
	}
}

func TestConversation_EstimateTokens(t *testing.T) {
	conv := NewConversation()
	conv.AddUserMessage(strings.Repeat("x", 40)) // ~10 tokens + 4 overhead

	if got := conv.EstimateTokens(); got != 14 {
		t.Errorf("EstimateTokens() = %d, want 14", got)
	}
}
