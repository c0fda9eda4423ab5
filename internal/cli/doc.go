// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line argument parsing and the plain-terminal
// chat mode for gpterm.
//
// # Key Types
//
//   - Command: the top-level mode selected by the arguments
//   - Args: parsed command-line flags
//   - ChatCLI: readline-style input with persistent history
//
// # Usage
//
// Parse and dispatch:
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdTUI:
//	    // start the Bubble Tea interface
//	case cli.CmdChat:
//	    return cli.HandleChat(args)
//	case cli.CmdAsk:
//	    return cli.HandleAsk(args)
//	}
//
// The plain chat mode (--plain) is a line-oriented REPL for terminals where
// the full-screen interface is unwanted: dumb terminals, screen readers, and
// piped transcripts. It drives the same session protocol as the TUI. Ask mode
// ("gpterm ask") sends a single question and exits, reading from stdin when
// piped.
package cli
