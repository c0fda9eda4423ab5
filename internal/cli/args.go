// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// args.go - Command-line argument parsing for gpterm.
//
// gpterm has a small surface: it either starts the TUI (the default), starts
// the plain-terminal REPL (--plain), or prints version/usage information.
// Flags are parsed by hand so that both "--flag value" and "--flag=value"
// forms work, matching common CLI expectations.

package cli

import (
	"fmt"
	"os"
	"strings"
)

// Version information, synced from main at startup (set at build time).
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// =============================================================================
// COMMANDS
// =============================================================================

// Command is the top-level mode selected by the arguments.
type Command int

const (
	CmdTUI     Command = iota // Full-screen Bubble Tea interface (default)
	CmdChat                   // Plain-terminal REPL (--plain)
	CmdAsk                    // One-shot question ("gpterm ask ...")
	CmdVersion                // Print version and exit
	CmdHelp                   // Print usage and exit
)

// Args holds the parsed command-line flags.
type Args struct {
	// Model overrides the configured model for this run.
	Model string

	// NoMarkdown disables glamour rendering of assistant replies.
	NoMarkdown bool

	// Quiet suppresses the welcome banner and per-turn stats in plain mode.
	Quiet bool

	// Query is the question text for ask mode, joined from the positional
	// arguments after "ask". Empty means read the question from stdin.
	Query string

	// Raw holds any unrecognized arguments, kept for error reporting.
	Raw []string
}

// =============================================================================
// PARSING
// =============================================================================

// Parse reads os.Args and returns the selected command and flags.
func Parse() (Command, Args) {
	return parseArgs(os.Args[1:])
}

// parseArgs is the testable core of Parse.
func parseArgs(raw []string) (Command, Args) {
	cmd := CmdTUI
	args := Args{}
	var queryParts []string

	i := 0
	for i < len(raw) {
		arg := raw[i]

		// Normalize --flag=value into flag + value
		name := arg
		value := ""
		hasValue := false
		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			parts := strings.SplitN(arg, "=", 2)
			name = parts[0]
			value = parts[1]
			hasValue = true
		}

		switch name {
		case "--plain", "-p":
			cmd = CmdChat
			i++

		case "--model", "-m":
			if hasValue {
				args.Model = value
				i++
			} else if i+1 < len(raw) {
				args.Model = raw[i+1]
				i += 2
			} else {
				i++
			}

		case "--no-markdown":
			args.NoMarkdown = true
			i++

		case "--quiet", "-q":
			args.Quiet = true
			i++

		case "--version", "-V":
			return CmdVersion, args

		case "--help", "-h":
			return CmdHelp, args

		default:
			switch {
			case cmd == CmdAsk:
				queryParts = append(queryParts, arg)
			case arg == "ask":
				cmd = CmdAsk
			default:
				args.Raw = append(args.Raw, arg)
			}
			i++
		}
	}

	args.Query = strings.Join(queryParts, " ")
	return cmd, args
}

// =============================================================================
// USAGE
// =============================================================================

const usageText = `gpterm - a terminal interface for ChatGPT

Usage:
  gpterm                 Start the full-screen chat interface
  gpterm --plain         Start the line-oriented chat REPL
  gpterm ask QUESTION    Ask a single question and exit
  gpterm --version       Print version information

Flags:
  -p, --plain            Plain-terminal mode (no full-screen UI)
  -m, --model NAME       Override the configured model (default: gpt-4o)
      --no-markdown      Disable markdown rendering of replies
  -q, --quiet            Suppress banner and per-turn stats (plain mode)
  -h, --help             Show this help
  -V, --version          Print version information

Configuration:
  ~/.gpterm/config.toml  TOML configuration (model, base URL, UI options)
  OPENAI_API_KEY         API key (environment overrides the config file)

The configuration file is watched while gpterm runs; edits apply without a
restart.`

// PrintUsage writes the usage text to stdout.
func PrintUsage() {
	fmt.Println(usageText)
}

// PrintVersion writes version information to stdout.
func PrintVersion() {
	fmt.Printf("gpterm %s (commit %s, built %s)\n", Version, GitCommit, BuildDate)
}
