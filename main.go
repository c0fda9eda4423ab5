// gpterm - A terminal interface for ChatGPT.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jeranaias/gpterm/internal/cli"
	"github.com/jeranaias/gpterm/internal/config"
	"github.com/jeranaias/gpterm/internal/model"
	"github.com/jeranaias/gpterm/internal/openai"
	"github.com/jeranaias/gpterm/internal/ui/chat"
	"github.com/jeranaias/gpterm/internal/ui/styles"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	// Sync version info with cli package
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	switch cmd {
	case cli.CmdVersion:
		cli.PrintVersion()

	case cli.CmdHelp:
		cli.PrintUsage()

	case cli.CmdChat:
		if err := cli.HandleChat(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case cli.CmdAsk:
		if err := cli.HandleAsk(args); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

	case cli.CmdTUI:
		runTUI(args)
	}
}

// runTUI starts the full-screen Bubble Tea interface.
func runTUI(args cli.Args) {
	// Load configuration at startup
	cfg := config.Global()

	// CLI args override config for this run
	if args.Model != "" {
		cfg.OpenAI.Model = args.Model
	}
	if args.NoMarkdown {
		cfg.UI.Markdown = false
	}

	theme := styles.NewTheme()

	client := openai.NewClient(cfg.OpenAI.APIKey).WithBaseURL(cfg.OpenAI.BaseURL)
	client.SetModel(cfg.OpenAI.Model)
	if cfg.OpenAI.TimeoutSeconds > 0 {
		client.WithTimeout(time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second)
	}

	if !client.IsConfigured() {
		fmt.Fprintln(os.Stderr, "Warning: no API key configured. Set OPENAI_API_KEY or add it to ~/.gpterm/config.toml.")
	}

	conv := model.NewConversationWithModel(cfg.OpenAI.Model)

	m := chat.New(theme, client, conv, cfg)

	p := tea.NewProgram(m, tea.WithAltScreen())

	// Register the program so the streaming goroutine can deliver tokens
	chat.SetProgram(p)

	// Reload configuration while running; edits to the config file apply
	// without a restart
	watcher, err := config.NewWatcher(func(next *config.Config) {
		p.Send(chat.ConfigReloadedMsg{Model: next.OpenAI.Model})
	})
	if err == nil {
		if err := watcher.Watch(); err == nil {
			defer watcher.Close()
		}
	}

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
