// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// sseChunk formats a content delta as an SSE data event.
func sseChunk(content string) string {
	return fmt.Sprintf("data: {\"id\":\"chatcmpl-test\",\"model\":\"gpt-4o\",\"choices\":[{\"delta\":{\"content\":%q},\"finish_reason\":\"\"}]}\n\n", content)
}

// newSSEServer serves the given pre-formatted SSE events.
func newSSEServer(t *testing.T, events ...string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if accept := r.Header.Get("Accept"); accept != "text/event-stream" {
			t.Errorf("Accept header = %q, want text/event-stream", accept)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, event := range events {
			io.WriteString(w, event)
			flusher.Flush()
		}
	}))
}

// =============================================================================
// SSE READER TESTS
// =============================================================================

func TestSSEReader_ReadEvent(t *testing.T) {
	input := "data: first\n\ndata: second line a\ndata: second line b\n\nevent: done\ndata: [DONE]\n\n"
	reader := NewSSEReader(strings.NewReader(input))

	_, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if string(data) != "first" {
		t.Errorf("first event data = %q", data)
	}

	_, data, err = reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if string(data) != "second line a\nsecond line b" {
		t.Errorf("multi-line event data = %q", data)
	}

	eventType, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if eventType != "done" {
		t.Errorf("event type = %q, want done", eventType)
	}
	if string(data) != "[DONE]" {
		t.Errorf("event data = %q, want [DONE]", data)
	}

	if _, _, err := reader.ReadEvent(); err != io.EOF {
		t.Errorf("ReadEvent() at end = %v, want io.EOF", err)
	}
}

func TestSSEReader_CRLFAndComments(t *testing.T) {
	input := ": keep-alive comment\r\ndata: hello\r\n\r\n"
	reader := NewSSEReader(strings.NewReader(input))

	_, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if string(data) != "hello" {
		t.Errorf("event data = %q, want hello", data)
	}
}

func TestSSEReader_DataBeforeEOF(t *testing.T) {
	// Stream ends without a trailing blank line
	reader := NewSSEReader(strings.NewReader("data: tail\n"))

	_, data, err := reader.ReadEvent()
	if err != nil {
		t.Fatalf("ReadEvent() error = %v", err)
	}
	if string(data) != "tail" {
		t.Errorf("event data = %q, want tail", data)
	}
}

// =============================================================================
// STREAMING CHAT TESTS
// =============================================================================

func TestChatStream_AccumulatesContent(t *testing.T) {
	server := newSSEServer(t,
		sseChunk("The answer"),
		sseChunk(" is"),
		sseChunk(" 42."),
		"data: [DONE]\n\n",
	)
	defer server.Close()

	client := newTestClient(server)

	var tokens []string
	err := client.ChatStream(context.Background(), []ChatMessage{NewUserMessage("q")}, func(chunk StreamChunk) {
		if content := chunk.GetContent(); content != "" {
			tokens = append(tokens, content)
		}
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	if got := strings.Join(tokens, ""); got != "The answer is 42." {
		t.Errorf("accumulated content = %q", got)
	}
}

func TestChatStream_SkipsMalformedChunks(t *testing.T) {
	server := newSSEServer(t,
		sseChunk("good"),
		"data: {not valid json\n\n",
		sseChunk(" data"),
		"data: [DONE]\n\n",
	)
	defer server.Close()

	client := newTestClient(server)

	var content strings.Builder
	err := client.ChatStream(context.Background(), []ChatMessage{NewUserMessage("q")}, func(chunk StreamChunk) {
		content.WriteString(chunk.GetContent())
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	if content.String() != "good data" {
		t.Errorf("content = %q, want %q", content.String(), "good data")
	}
}

func TestChatStream_StopsOnFinishReason(t *testing.T) {
	server := newSSEServer(t,
		sseChunk("hello"),
		"data: {\"choices\":[{\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n",
		sseChunk("never delivered"),
	)
	defer server.Close()

	client := newTestClient(server)

	var content strings.Builder
	err := client.ChatStream(context.Background(), []ChatMessage{NewUserMessage("q")}, func(chunk StreamChunk) {
		content.WriteString(chunk.GetContent())
	})
	if err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}

	if content.String() != "hello" {
		t.Errorf("content = %q, want %q", content.String(), "hello")
	}
}

func TestChatStream_ErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": {"code": "invalid_api_key", "type": "invalid_request_error", "message": "bad key"}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	err := client.ChatStream(context.Background(), []ChatMessage{NewUserMessage("q")}, func(StreamChunk) {})
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("ChatStream() error = %v, want ErrAuthFailed", err)
	}
}

func TestChatStream_NotConfigured(t *testing.T) {
	client := NewClient("")
	err := client.ChatStream(context.Background(), nil, func(StreamChunk) {})
	if !errors.Is(err, ErrNotConfigured) {
		t.Errorf("ChatStream() error = %v, want ErrNotConfigured", err)
	}
}

func TestChatStream_ContextCancellation(t *testing.T) {
	firstChunk := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		io.WriteString(w, sseChunk("partial"))
		flusher.Flush()
		close(firstChunk)

		// Keep the stream open until the client disconnects
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-firstChunk
		cancel()
	}()

	client := newTestClient(server)
	err := client.ChatStream(ctx, []ChatMessage{NewUserMessage("q")}, func(StreamChunk) {})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("ChatStream() error = %v, want context.Canceled", err)
	}
}

func TestChatStream_StreamFlagSet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"stream":true`) {
			t.Errorf("request body missing stream=true: %s", body)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	client := newTestClient(server)
	if err := client.ChatStream(context.Background(), []ChatMessage{NewUserMessage("q")}, func(StreamChunk) {}); err != nil {
		t.Fatalf("ChatStream() error = %v", err)
	}
}

// =============================================================================
// ACCUMULATOR TESTS
// =============================================================================

func TestChatStreamAccumulate(t *testing.T) {
	server := newSSEServer(t,
		sseChunk("a"), sseChunk("b"), sseChunk("c"),
		"data: [DONE]\n\n",
	)
	defer server.Close()

	client := newTestClient(server)
	content, err := client.ChatStreamAccumulate(context.Background(), []ChatMessage{NewUserMessage("q")})
	if err != nil {
		t.Fatalf("ChatStreamAccumulate() error = %v", err)
	}
	if content != "abc" {
		t.Errorf("content = %q, want abc", content)
	}
}

func TestChatStreamAccumulate_PartialOnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)

		io.WriteString(w, sseChunk("half an"))
		io.WriteString(w, sseChunk(" answer"))
		flusher.Flush()

		// Drop the connection mid-stream without the terminating chunk
		conn, _, err := w.(http.Hijacker).Hijack()
		if err != nil {
			t.Errorf("Hijack() error = %v", err)
			return
		}
		conn.Close()
	}))
	defer server.Close()

	client := newTestClient(server)
	content, err := client.ChatStreamAccumulate(context.Background(), []ChatMessage{NewUserMessage("q")})
	if err == nil {
		t.Fatal("ChatStreamAccumulate() error = nil, want stream failure")
	}

	// Content received before the failure is preserved for the caller
	var streamErr *StreamError
	if !errors.As(err, &streamErr) {
		t.Fatalf("error type = %T, want *StreamError", err)
	}
	if streamErr.Partial != "half an answer" {
		t.Errorf("StreamError.Partial = %q, want %q", streamErr.Partial, "half an answer")
	}
	if content != "half an answer" {
		t.Errorf("returned content = %q, want the partial text", content)
	}
	if streamErr.Err == nil {
		t.Error("StreamError.Err is nil, want the underlying stream failure")
	}
}

func TestChatStreamWithStats(t *testing.T) {
	server := newSSEServer(t,
		sseChunk("one "),
		sseChunk("two "),
		sseChunk("three"),
		"data: [DONE]\n\n",
	)
	defer server.Close()

	client := newTestClient(server)
	acc := NewStreamAccumulator()

	stats, err := client.ChatStreamWithStats(context.Background(), []ChatMessage{NewUserMessage("q")}, acc.Callback())
	if err != nil {
		t.Fatalf("ChatStreamWithStats() error = %v", err)
	}

	if acc.GetContent() != "one two three" {
		t.Errorf("content = %q, want %q", acc.GetContent(), "one two three")
	}
	if stats.TokenCount != 3 {
		t.Errorf("stats.TokenCount = %d, want 3", stats.TokenCount)
	}
	if stats.Model != "gpt-4o" {
		t.Errorf("stats.Model = %q, want gpt-4o", stats.Model)
	}
	if stats.FirstTokenTime <= 0 {
		t.Errorf("stats.FirstTokenTime = %v, want > 0", stats.FirstTokenTime)
	}
	if stats.TotalTime < stats.FirstTokenTime {
		t.Errorf("stats.TotalTime = %v < FirstTokenTime %v", stats.TotalTime, stats.FirstTokenTime)
	}
}

// =============================================================================
// CHANNEL STREAMING TESTS
// =============================================================================

func TestChatStreamChan(t *testing.T) {
	server := newSSEServer(t,
		sseChunk("piped "),
		sseChunk("output"),
		"data: [DONE]\n\n",
	)
	defer server.Close()

	client := newTestClient(server)
	chunkChan, errChan := client.ChatStreamChan(context.Background(), []ChatMessage{NewUserMessage("q")})

	var content strings.Builder
	for chunk := range chunkChan {
		content.WriteString(chunk.GetContent())
	}

	if err := <-errChan; err != nil {
		t.Fatalf("ChatStreamChan() error = %v", err)
	}
	if content.String() != "piped output" {
		t.Errorf("content = %q, want %q", content.String(), "piped output")
	}
}

func TestChatStreamChan_ErrorDelivered(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"code": "rate_limit_exceeded", "type": "requests", "message": "slow down"}}`))
	}))
	defer server.Close()

	client := newTestClient(server)
	chunkChan, errChan := client.ChatStreamChan(context.Background(), []ChatMessage{NewUserMessage("q")})

	for range chunkChan {
		t.Error("unexpected chunk from failed stream")
	}
	if err := <-errChan; !errors.Is(err, ErrRateLimited) {
		t.Errorf("ChatStreamChan() error = %v, want ErrRateLimited", err)
	}
}

func TestStreamAccumulator(t *testing.T) {
	acc := NewStreamAccumulator()

	add := acc.Callback()
	add(mustChunk(t, `{"model":"gpt-4o","choices":[{"delta":{"content":"one "},"finish_reason":""}]}`))
	add(mustChunk(t, `{"choices":[{"delta":{"content":"two"},"finish_reason":""}]}`))
	add(mustChunk(t, `{"choices":[{"delta":{},"finish_reason":"stop"}]}`))

	if got := acc.GetContent(); got != "one two" {
		t.Errorf("GetContent() = %q", got)
	}
	if acc.TokenCount != 2 {
		t.Errorf("TokenCount = %d, want 2", acc.TokenCount)
	}
	if !acc.Done || acc.FinishReason != "stop" {
		t.Errorf("Done = %v, FinishReason = %q", acc.Done, acc.FinishReason)
	}

	stats := acc.GetStats()
	if stats.Model != "gpt-4o" {
		t.Errorf("stats.Model = %q", stats.Model)
	}
	if stats.TokenCount != 2 {
		t.Errorf("stats.TokenCount = %d", stats.TokenCount)
	}
}

// mustChunk parses a raw chunk JSON or fails the test.
func mustChunk(t *testing.T, raw string) StreamChunk {
	t.Helper()
	var chunk StreamChunk
	if err := json.Unmarshal([]byte(raw), &chunk); err != nil {
		t.Fatalf("bad test chunk: %v", err)
	}
	return chunk
}
