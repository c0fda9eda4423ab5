// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package chat provides the chat view component for the TUI.
package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/jeranaias/gpterm/internal/model"
	"github.com/jeranaias/gpterm/internal/util"
)

// Layout constants.
const (
	headerHeight = 1
	inputHeight  = 3
	statusHeight = 1

	// maxBubbleWidth caps message bubbles on very wide terminals
	maxBubbleWidth = 100
)

// =============================================================================
// LAYOUT
// =============================================================================

// resize recomputes component dimensions and rebuilds the markdown renderer
// for the new width.
func (m *Model) resize(width, height int) {
	m.width = width
	m.height = height
	if m.theme != nil {
		m.theme.SetSize(width, height)
	}

	contentHeight := height - headerHeight - inputHeight - statusHeight
	if contentHeight < 1 {
		contentHeight = 1
	}

	m.viewport.Width = width
	m.viewport.Height = contentHeight
	m.input.Width = width - 6

	if m.markdown {
		wrap := m.bubbleWidth() - 2
		if wrap < 20 {
			wrap = 20
		}

		// Explicit dark/light theme overrides glamour's background detection
		style := glamour.WithAutoStyle()
		if m.glamourTheme == "dark" || m.glamourTheme == "light" {
			style = glamour.WithStandardStyle(m.glamourTheme)
		}

		renderer, err := glamour.NewTermRenderer(
			style,
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			m.renderer = renderer
		}
	}
}

// bubbleWidth returns the render width for message bubbles.
func (m *Model) bubbleWidth() int {
	w := m.width - 4
	if w > maxBubbleWidth {
		w = maxBubbleWidth
	}
	if w < 20 {
		w = 20
	}
	return w
}

// refreshViewport re-renders the transcript into the viewport.
func (m *Model) refreshViewport(gotoBottom bool) {
	m.viewport.SetContent(m.renderTranscript())
	if gotoBottom {
		m.viewport.GotoBottom()
	}
}

// =============================================================================
// VIEW
// =============================================================================

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString(m.headerView())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.inputView())
	b.WriteString("\n")
	b.WriteString(m.statusView())

	if m.showHelp {
		b.WriteString("\n")
		b.WriteString(m.helpView())
	}

	return b.String()
}

// headerView renders the title bar.
func (m Model) headerView() string {
	title := m.theme.HeaderTitle.Render("gpterm")
	subtitle := m.theme.HeaderSubtitle.Render(" · " + m.modelName)
	line := title + subtitle
	return m.theme.Header.Width(m.width).Render(util.TruncateWidth(line, m.width))
}

// inputView renders the input area, or the spinner while streaming.
func (m Model) inputView() string {
	if m.state == StateStreaming {
		waiting := m.spinner.View() + " " + m.theme.Muted.Render("waiting for reply... (Esc to cancel)")
		return m.theme.InputContainer.Width(m.width - 2).Render(waiting)
	}
	return m.theme.InputContainer.Width(m.width - 2).Render(m.input.View())
}

// statusView renders the bottom status bar.
func (m Model) statusView() string {
	var parts []string
	for _, binding := range m.keyMap.ShortHelp() {
		h := binding.Help()
		parts = append(parts,
			m.theme.ShortcutKey.Render(h.Key)+" "+m.theme.ShortcutDesc.Render(h.Desc))
	}
	left := strings.Join(parts, "  ")

	if m.statusNote != "" {
		left += "  " + m.theme.StatusNote.Render(m.statusNote)
	}

	right := m.theme.Muted.Render(fmt.Sprintf("%d messages", m.conversation.MessageCount()))

	gap := m.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}

	return m.theme.StatusBar.Width(m.width).Render(left + strings.Repeat(" ", gap) + right)
}

// helpView renders the keyboard shortcut overlay.
func (m Model) helpView() string {
	lines := []string{
		"Enter     send message",
		"Esc       cancel streaming / dismiss error",
		"PgUp/PgDn scroll transcript",
		"C-h       toggle this help",
		"C-c/C-d   quit",
	}
	return m.theme.Muted.Render(strings.Join(lines, "\n"))
}

// =============================================================================
// TRANSCRIPT RENDERING
// =============================================================================

// renderTranscript renders the full conversation, the in-flight streaming
// message, and any error for the current turn.
func (m *Model) renderTranscript() string {
	var b strings.Builder

	if m.conversation.IsEmpty() && m.streamingMsg == nil {
		b.WriteString("\n")
		b.WriteString(m.theme.Muted.Render("  Ask ChatGPT anything."))
		b.WriteString("\n")
		return b.String()
	}

	for _, msg := range m.conversation.GetHistory() {
		b.WriteString(m.renderMessage(msg))
		b.WriteString("\n")
	}

	if m.streamingMsg != nil {
		b.WriteString(m.renderMessage(m.streamingMsg))
		b.WriteString("\n")
	}

	if m.lastError != nil {
		b.WriteString(m.renderError(m.lastError))
		b.WriteString("\n")
	}

	return b.String()
}

// renderMessage renders a single message bubble with its role label.
func (m *Model) renderMessage(msg *model.Message) string {
	width := m.bubbleWidth()

	label := m.theme.RoleLabel.Render(msg.Role.DisplayName())
	content := msg.GetDisplayContent()

	var bubble string
	switch msg.Role {
	case model.RoleUser:
		bubble = m.theme.UserBubble.Width(width).Render(content)
	case model.RoleAssistant:
		// Finished assistant replies are rendered as markdown; in-flight
		// content is shown raw to avoid re-rendering on every flush
		if !msg.IsStreaming {
			content = m.renderMarkdown(content)
		}
		bubble = m.theme.AssistantBubble.Width(width).Render(content)
	default:
		bubble = m.theme.Muted.Width(width).Render(content)
	}

	out := label + "\n" + bubble

	if stats := formatMessageStats(msg); stats != "" {
		out += "\n" + m.theme.MessageStats.Render(stats)
	}

	return out
}

// renderError renders a visible failure bubble for the current turn.
func (m *Model) renderError(e *ErrorMsg) string {
	width := m.bubbleWidth()
	content := e.Title
	if e.Detail != "" {
		content += "\n" + e.Detail
	}
	return m.theme.ErrorBubble.Width(width).Render(content)
}

// renderMarkdown renders assistant markdown through glamour, falling back to
// the raw text when rendering is disabled or fails.
func (m *Model) renderMarkdown(content string) string {
	if !m.markdown || m.renderer == nil {
		return content
	}
	rendered, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.TrimRight(rendered, "\n")
}

// formatMessageStats returns the generation statistics line for an assistant
// message, or "" when there is nothing to show.
func formatMessageStats(msg *model.Message) string {
	if msg.Role != model.RoleAssistant || msg.IsStreaming || msg.TotalDuration == 0 {
		return ""
	}
	return fmt.Sprintf("%.1fs | %d tokens | %.1f tok/s | TTFT %dms",
		msg.TotalDuration.Seconds(),
		msg.TokenCount,
		msg.TokensPerSec,
		msg.TTFT.Milliseconds())
}
