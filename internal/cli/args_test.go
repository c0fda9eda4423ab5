// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "testing"

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name     string
		raw      []string
		wantCmd  Command
		wantArgs Args
	}{
		{
			name:    "no args starts TUI",
			raw:     []string{},
			wantCmd: CmdTUI,
		},
		{
			name:    "plain mode",
			raw:     []string{"--plain"},
			wantCmd: CmdChat,
		},
		{
			name:    "plain short flag",
			raw:     []string{"-p"},
			wantCmd: CmdChat,
		},
		{
			name:     "model with space",
			raw:      []string{"--model", "gpt-4o-mini"},
			wantCmd:  CmdTUI,
			wantArgs: Args{Model: "gpt-4o-mini"},
		},
		{
			name:     "model with equals",
			raw:      []string{"--model=gpt-4o-mini"},
			wantCmd:  CmdTUI,
			wantArgs: Args{Model: "gpt-4o-mini"},
		},
		{
			name:     "combined flags",
			raw:      []string{"--plain", "-m", "gpt-4o-mini", "--no-markdown", "-q"},
			wantCmd:  CmdChat,
			wantArgs: Args{Model: "gpt-4o-mini", NoMarkdown: true, Quiet: true},
		},
		{
			name:    "version wins",
			raw:     []string{"--plain", "--version"},
			wantCmd: CmdVersion,
		},
		{
			name:    "help",
			raw:     []string{"-h"},
			wantCmd: CmdHelp,
		},
		{
			name:    "trailing model flag without value",
			raw:     []string{"--model"},
			wantCmd: CmdTUI,
		},
		{
			name:     "ask with question",
			raw:      []string{"ask", "what", "is", "a", "goroutine?"},
			wantCmd:  CmdAsk,
			wantArgs: Args{Query: "what is a goroutine?"},
		},
		{
			name:     "ask with quoted question",
			raw:      []string{"ask", "what is a goroutine?"},
			wantCmd:  CmdAsk,
			wantArgs: Args{Query: "what is a goroutine?"},
		},
		{
			name:    "ask without question reads stdin later",
			raw:     []string{"ask"},
			wantCmd: CmdAsk,
		},
		{
			name:     "ask with flags",
			raw:      []string{"ask", "-m", "gpt-4o-mini", "--no-markdown", "explain channels"},
			wantCmd:  CmdAsk,
			wantArgs: Args{Model: "gpt-4o-mini", NoMarkdown: true, Query: "explain channels"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd, args := parseArgs(tc.raw)
			if cmd != tc.wantCmd {
				t.Errorf("command = %v, want %v", cmd, tc.wantCmd)
			}
			if args.Model != tc.wantArgs.Model {
				t.Errorf("Model = %q, want %q", args.Model, tc.wantArgs.Model)
			}
			if args.NoMarkdown != tc.wantArgs.NoMarkdown {
				t.Errorf("NoMarkdown = %v, want %v", args.NoMarkdown, tc.wantArgs.NoMarkdown)
			}
			if args.Quiet != tc.wantArgs.Quiet {
				t.Errorf("Quiet = %v, want %v", args.Quiet, tc.wantArgs.Quiet)
			}
			if args.Query != tc.wantArgs.Query {
				t.Errorf("Query = %q, want %q", args.Query, tc.wantArgs.Query)
			}
		})
	}
}

func TestParseArgs_UnknownFlagsKept(t *testing.T) {
	_, args := parseArgs([]string{"--bogus", "positional"})
	if len(args.Raw) != 2 {
		t.Fatalf("Raw = %v, want 2 entries", args.Raw)
	}
}
