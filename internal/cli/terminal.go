// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// terminal.go - Terminal detection for the plain chat mode.
//
// Markdown rendering and colored output are only appropriate on a real
// terminal; piped output gets the raw text. Width detection feeds the
// glamour word-wrap so rendered replies fit the window.

package cli

import (
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"
)

const (
	// DefaultTerminalWidth is the fallback when detection fails
	DefaultTerminalWidth = 80

	// MinTerminalWidth is the narrowest wrap width we will use
	MinTerminalWidth = 40

	// MaxRenderWidth caps the markdown wrap on very wide terminals
	MaxRenderWidth = 100
)

// IsTTY returns true if stdin is a terminal.
func IsTTY() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// IsStdoutTTY returns true if stdout is a terminal.
// Markdown and colors are only used when this holds.
func IsStdoutTTY() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// GetTerminalWidth returns the current terminal width, clamped to sane
// bounds. Returns DefaultTerminalWidth when detection fails.
func GetTerminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return DefaultTerminalWidth
	}
	if width < MinTerminalWidth {
		return MinTerminalWidth
	}
	return width
}

// RenderWidth returns the word-wrap width for markdown output.
func RenderWidth() int {
	w := GetTerminalWidth()
	if w > MaxRenderWidth {
		w = MaxRenderWidth
	}
	return w
}

// ColorEnabled reports whether colored output should be used.
// Respects NO_COLOR and non-TTY stdout.
func ColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	if !IsStdoutTTY() {
		return false
	}
	return termenv.EnvColorProfile() != termenv.Ascii
}
