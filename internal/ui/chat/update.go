// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/gpterm/internal/model"
	"github.com/jeranaias/gpterm/internal/openai"
)

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {

	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		m.refreshViewport(true)

	case tea.KeyMsg:
		newModel, cmd, handled := m.handleKey(msg)
		if handled {
			return newModel, cmd
		}
		m = newModel

	case SubmitInputMsg:
		if m.state == StateReady {
			messages, msgID := m.beginTurn(msg.Content)
			m.state = StateStreaming
			m.streamingBuffer.Reset()
			m.streamingStats = model.NewStatistics()
			m.lastError = nil
			m.input.Blur()
			m.refreshViewport(true)
			cmds = append(cmds, m.startStreamCmd(messages, msgID), flushTickCmd())
		}

	case StreamStartMsg:
		// Stream launched; spinner keeps running until the first token

	case StreamTokenMsg:
		if m.streamingMsg != nil && m.streamingMsg.ID == msg.MessageID {
			if msg.IsFirst && m.streamingStats != nil {
				m.streamingStats.RecordFirstToken()
			}
			m.streamingBuffer.Write(msg.Token)
		}

	case flushTickMsg:
		if m.state == StateStreaming {
			if content, ok := m.streamingBuffer.Flush(); ok {
				if m.streamingMsg != nil {
					m.streamingMsg.AppendToken(content)
				}
				m.refreshViewport(true)
			}
			cmds = append(cmds, flushTickCmd())
		}

	case StreamCompleteMsg:
		m = m.completeStream(msg)
		m.refreshViewport(true)

	case CancelStreamMsg:
		if m.state == StateStreaming {
			m.cancelMgr.fire()
		}

	case ConfigReloadedMsg:
		if msg.Model != "" && msg.Model != m.modelName {
			m.modelName = msg.Model
			m.client.SetModel(msg.Model)
			m.statusNote = "config reloaded: model " + msg.Model
		} else {
			m.statusNote = "config reloaded"
		}

	case DismissErrorMsg:
		m.lastError = nil
		m.refreshViewport(false)

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Forward remaining messages to the components. Key presses go to the
	// input only; scroll keys were already routed to the viewport above.
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)

	if _, isKey := msg.(tea.KeyMsg); !isKey {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// =============================================================================
// KEY HANDLING
// =============================================================================

// handleKey processes a key press. The third return value reports whether the
// key was fully handled (and should not fall through to the components).
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	switch {
	case key.Matches(msg, m.keyMap.Quit):
		m.quitting = true
		m.cancelMgr.fire()
		return m, tea.Quit, true

	case key.Matches(msg, m.keyMap.Help):
		m.showHelp = !m.showHelp
		return m, nil, true

	case key.Matches(msg, m.keyMap.Cancel):
		if m.state == StateStreaming {
			return m, func() tea.Msg { return CancelStreamMsg{} }, true
		}
		if m.lastError != nil {
			return m, func() tea.Msg { return DismissErrorMsg{} }, true
		}
		return m, nil, true

	case key.Matches(msg, m.keyMap.Submit):
		// Input is locked while a request is in flight: one request at a time
		if m.state == StateReady {
			return m, m.submitInput(), true
		}
		return m, nil, true

	case key.Matches(msg, m.keyMap.Up), key.Matches(msg, m.keyMap.Down),
		key.Matches(msg, m.keyMap.PageUp), key.Matches(msg, m.keyMap.PageDown):
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd, true
	}

	return m, nil, false
}

// =============================================================================
// STREAM COMPLETION
// =============================================================================

// completeStream finalizes the in-flight turn, on success appending the
// assistant message to the transcript.
func (m Model) completeStream(msg StreamCompleteMsg) Model {
	if m.streamingMsg == nil || m.streamingMsg.ID != msg.MessageID {
		return m
	}

	// Drain the tail of the token buffer
	if content, ok := m.streamingBuffer.ForceFlush(); ok {
		m.streamingMsg.AppendToken(content)
	}

	m.state = StateReady
	m.input.Focus()
	m.cancelMgr.set(nil)

	if msg.Error != nil {
		// The user turn stays in the transcript; no assistant turn is
		// appended and nothing is retried.
		m.lastError = &ErrorMsg{
			Title:  "Request failed",
			Detail: describeBackendError(msg.Error),
		}
		m.streamingMsg = nil
		m.streamingStats = nil
		return m
	}

	stats := m.streamingStats
	if stats != nil {
		stats.Finalize(m.streamingMsg.EstimateTokens())
	}
	m.streamingMsg.FinalizeStream(stats)
	m.conversation.AddMessage(m.streamingMsg)

	m.streamingMsg = nil
	m.streamingStats = nil
	return m
}

// describeBackendError maps client errors to a short, user-facing line.
func describeBackendError(err error) string {
	switch {
	case errors.Is(err, openai.ErrNotConfigured):
		return "No API key configured. Set OPENAI_API_KEY and restart."
	case errors.Is(err, openai.ErrAuthFailed):
		return "Authentication failed. Check your API key."
	case errors.Is(err, openai.ErrRateLimited):
		return "Rate limited by the API. Wait a moment and resend."
	case errors.Is(err, openai.ErrQuotaExceeded):
		return "API quota exceeded."
	case errors.Is(err, openai.ErrModelNotFound):
		return "The configured model was not found."
	case errors.Is(err, context.Canceled):
		return "Cancelled."
	default:
		return err.Error()
	}
}
