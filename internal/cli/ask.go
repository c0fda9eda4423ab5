// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// ask.go - One-shot question mode for gpterm.
//
// Handles "gpterm ask QUESTION": send a single question to the API, stream
// the reply to stdout, and exit. No conversation state survives the call.
//
// The question comes from the positional arguments after "ask", or from
// stdin when piped:
//   gpterm ask "What is a goroutine?"
//   echo "Summarize this" | gpterm ask
//
// On a terminal the reply is collected and rendered as markdown; piped
// output streams the raw text as it arrives so downstream tools see tokens
// immediately.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"

	"github.com/jeranaias/gpterm/internal/config"
	"github.com/jeranaias/gpterm/internal/openai"
	"github.com/jeranaias/gpterm/internal/session"
)

// =============================================================================
// ASK HANDLER
// =============================================================================

// HandleAsk runs a single question/answer turn and exits.
func HandleAsk(args Args) error {
	cfg := config.Global()

	client := openai.NewClient(cfg.OpenAI.APIKey).WithBaseURL(cfg.OpenAI.BaseURL)
	client.SetModel(cfg.OpenAI.Model)
	if args.Model != "" {
		client.SetModel(args.Model)
	}
	if cfg.OpenAI.TimeoutSeconds > 0 {
		client.WithTimeout(time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second)
	}

	if !client.IsConfigured() {
		return fmt.Errorf("no API key configured: set OPENAI_API_KEY or add it to the config file")
	}

	question, err := resolveQuestion(args)
	if err != nil {
		return err
	}

	// Same persona-prefixed context shape the interactive modes use, with a
	// single user turn.
	messages := []openai.ChatMessage{
		openai.NewSystemMessage(session.Persona),
		openai.NewUserMessage(question),
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Ctrl+C cancels the in-flight stream
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case <-sigChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	if IsStdoutTTY() && cfg.UI.Markdown && !args.NoMarkdown {
		return askRendered(ctx, client, messages, args)
	}
	return askPlain(ctx, client, messages)
}

// resolveQuestion returns the question text from the arguments, falling back
// to piped stdin when no positional question was given.
func resolveQuestion(args Args) (string, error) {
	question := strings.TrimSpace(args.Query)
	if question != "" {
		return question, nil
	}

	// Only read stdin when it is a pipe; blocking on an empty terminal
	// would look like a hang.
	if !IsTTY() {
		data, err := io.ReadAll(bufio.NewReader(os.Stdin))
		if err == nil {
			question = strings.TrimSpace(string(data))
		}
	}

	if question == "" {
		return "", fmt.Errorf("no question provided. Usage: gpterm ask \"your question\"")
	}
	return question, nil
}

// =============================================================================
// OUTPUT MODES
// =============================================================================

// askRendered collects the streamed reply and renders it as markdown.
// Used on a terminal where re-flowing the text is worth the wait.
func askRendered(ctx context.Context, client *openai.Client, messages []openai.ChatMessage, args Args) error {
	acc := openai.NewStreamAccumulator()

	stats, err := client.ChatStreamWithStats(ctx, messages, acc.Callback())
	if err != nil {
		// A stream that dies mid-reply still produced tokens worth showing
		var streamErr *openai.StreamError
		if errors.As(err, &streamErr) && streamErr.Partial != "" {
			fmt.Print(renderAskMarkdown(streamErr.Partial, args))
			fmt.Println()
		}
		return fmt.Errorf("%s", describeError(err))
	}

	fmt.Print(renderAskMarkdown(acc.GetContent(), args))
	fmt.Println()

	if !args.Quiet && stats != nil {
		printAskStats(client.GetModel(), stats)
	}
	return nil
}

// askPlain streams raw tokens to stdout as they arrive. Used for piped
// output and when markdown is disabled.
func askPlain(ctx context.Context, client *openai.Client, messages []openai.ChatMessage) error {
	chunkChan, errChan := client.ChatStreamChan(ctx, messages)

	wrote := false
	for chunk := range chunkChan {
		content := chunk.GetContent()
		if content != "" {
			fmt.Print(content)
			wrote = true
		}
	}
	if wrote {
		fmt.Println()
	}

	if err := <-errChan; err != nil {
		return fmt.Errorf("%s", describeError(err))
	}
	return nil
}

// renderAskMarkdown renders a reply through glamour, falling back to the
// raw text when rendering fails.
func renderAskMarkdown(content string, args Args) string {
	if args.NoMarkdown {
		return content
	}

	cfg := config.Global()
	style := glamour.WithAutoStyle()
	if cfg.UI.Theme == "dark" || cfg.UI.Theme == "light" {
		style = glamour.WithStandardStyle(cfg.UI.Theme)
	}

	wrap := cfg.UI.WordWrap
	if wrap == 0 {
		wrap = RenderWidth()
	}

	renderer, err := glamour.NewTermRenderer(style, glamour.WithWordWrap(wrap))
	if err != nil {
		return content
	}
	rendered, err := renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// printAskStats writes the per-request summary to stderr.
func printAskStats(modelName string, stats *openai.StreamStats) {
	if ColorEnabled() {
		fmt.Fprintf(os.Stderr, "%s %s | %d tokens | TTFT %dms | %s\n",
			infoStyle.Render("[Stats]"),
			commandStyle.Render(modelName),
			stats.TokenCount,
			stats.FirstTokenTime.Milliseconds(),
			stats.TotalTime.Round(time.Millisecond))
		return
	}
	fmt.Fprintf(os.Stderr, "[Stats] %s | %d tokens | TTFT %dms | %s\n",
		modelName,
		stats.TokenCount,
		stats.FirstTokenTime.Milliseconds(),
		stats.TotalTime.Round(time.Millisecond))
}
