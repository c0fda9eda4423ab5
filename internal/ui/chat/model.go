// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/gpterm/internal/config"
	"github.com/jeranaias/gpterm/internal/model"
	"github.com/jeranaias/gpterm/internal/openai"
	"github.com/jeranaias/gpterm/internal/session"
	"github.com/jeranaias/gpterm/internal/ui/styles"
)

// =============================================================================
// CHAT STATE
// =============================================================================

// State represents the current state of the chat view.
type State int

const (
	StateReady     State = iota // Ready for input
	StateStreaming              // Receiving streaming response
)

// =============================================================================
// PROGRAM REFERENCE
// =============================================================================

// The streaming goroutine delivers tokens back into the Bubble Tea loop via
// the running program. The reference is set once by the caller after the
// program is constructed.
var (
	programRef *tea.Program
	programMu  sync.Mutex
)

// SetProgram registers the running Bubble Tea program for async delivery.
func SetProgram(p *tea.Program) {
	programMu.Lock()
	defer programMu.Unlock()
	programRef = p
}

// postMsg delivers a message into the Bubble Tea loop from a goroutine.
func postMsg(msg tea.Msg) {
	programMu.Lock()
	p := programRef
	programMu.Unlock()

	if p != nil {
		p.Send(msg)
	}
}

// =============================================================================
// CANCEL MANAGER
// =============================================================================

// cancelManager holds the cancel function for the in-flight stream.
// Pointer type to avoid copying the mutex during Bubble Tea updates.
type cancelManager struct {
	mu     sync.Mutex
	cancel context.CancelFunc
}

func (cm *cancelManager) set(cancel context.CancelFunc) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.cancel = cancel
}

func (cm *cancelManager) fire() bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	if cm.cancel == nil {
		return false
	}
	cm.cancel()
	cm.cancel = nil
	return true
}

// =============================================================================
// CHAT MODEL
// =============================================================================

// Model is the Bubble Tea model for the chat view.
type Model struct {
	// State
	state State

	// Styling
	theme *styles.Theme

	// Dimensions
	width  int
	height int

	// Conversation (exclusively owned by this session)
	conversation *model.Conversation

	// Current streaming message. Held outside the conversation until the
	// backend call succeeds: a failed turn must leave the transcript with
	// only the unanswered user message.
	streamingMsg   *model.Message
	streamingStats *model.Statistics

	// Streaming optimization
	streamingBuffer *StreamingBuffer // Batches tokens for efficient rendering

	// OpenAI client
	client    *openai.Client
	cancelMgr *cancelManager

	// UI components
	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model

	// Markdown rendering
	markdown     bool
	glamourTheme string // "auto", "dark", or "light"
	renderer     *glamour.TermRenderer

	// Key bindings
	keyMap KeyMap

	// Error state
	lastError *ErrorMsg

	// Status
	modelName  string
	statusNote string
	showHelp   bool

	// Shutdown
	quitting bool
}

// New creates a new chat model bound to the given client and conversation.
func New(theme *styles.Theme, client *openai.Client, conv *model.Conversation, cfg *config.Config) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask anything..."
	ti.CharLimit = 4096
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = theme.Spinner

	vp := viewport.New(80, 20)

	return Model{
		state:           StateReady,
		theme:           theme,
		conversation:    conv,
		streamingBuffer: NewStreamingBuffer(),
		client:          client,
		cancelMgr:       &cancelManager{},
		viewport:        vp,
		input:           ti,
		spinner:         sp,
		markdown:        cfg.UI.Markdown,
		glamourTheme:    cfg.UI.Theme,
		keyMap:          DefaultKeyMap(),
		modelName:       cfg.OpenAI.Model,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick)
}

// Conversation exposes the transcript for the caller (exit summary).
func (m Model) Conversation() *model.Conversation {
	return m.conversation
}

// =============================================================================
// STREAM LAUNCH
// =============================================================================

// startStreamCmd launches the backend request for the prepared context.
//
// The message snapshot is built synchronously in Update before this command
// runs, so the goroutine never touches the conversation: tokens flow back
// through the program as StreamTokenMsg and are applied in the update loop.
func (m *Model) startStreamCmd(messages []openai.ChatMessage, msgID string) tea.Cmd {
	client := m.client

	return func() tea.Msg {
		ctx, cancel := context.WithCancel(context.Background())
		m.cancelMgr.set(cancel)

		go func() {
			defer cancel()

			first := true
			err := client.ChatStream(ctx, messages, func(chunk openai.StreamChunk) {
				content := chunk.GetContent()
				if content == "" {
					return
				}
				postMsg(StreamTokenMsg{
					MessageID: msgID,
					Token:     content,
					IsFirst:   first,
				})
				first = false
			})

			postMsg(StreamCompleteMsg{
				MessageID: msgID,
				Error:     err,
			})
		}()

		return StreamStartMsg{
			MessageID: msgID,
			StartTime: time.Now(),
		}
	}
}

// submitInput validates and dispatches the current input value.
// Blank input is gated here: nothing is appended and no request is issued.
// The text is trimmed before dispatch so the transcript records the same
// content the plain modes do.
func (m *Model) submitInput() tea.Cmd {
	text := strings.TrimSpace(m.input.Value())
	m.input.Reset()

	// The session's only input-validation rule
	if text == "" {
		return nil
	}

	return func() tea.Msg {
		return SubmitInputMsg{Content: text}
	}
}

// beginTurn appends the user turn, creates the pending assistant message,
// and snapshots the persona-prefixed request context.
func (m *Model) beginTurn(text string) ([]openai.ChatMessage, string) {
	m.conversation.AddUserMessage(text)

	// Request context: fixed persona turn + full history including the
	// just-appended user turn.
	messages := m.conversation.ToChatMessages(session.Persona)

	m.streamingMsg = model.NewAssistantMessage()
	return messages, m.streamingMsg.ID
}
