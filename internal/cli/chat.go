// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Plain-terminal chat REPL for gpterm.
//
// Handles the "--plain" mode: a line-oriented conversation loop for
// terminals where the full-screen interface is unwanted. It drives the same
// turn protocol as the TUI through session.Session: blank input is skipped,
// the full history replays on every request, and a failed request leaves the
// user turn in the transcript with no reply.
//
// Interactive commands (during chat):
//   /help, /h           Show available commands
//   /model [name]       Show or switch model
//   /history            Show conversation history
//   /quit, /q           Exit
//   Ctrl+C              Cancel current generation (at prompt: exit)
//   Ctrl+D              Exit

package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/peterh/liner"

	"github.com/jeranaias/gpterm/internal/config"
	"github.com/jeranaias/gpterm/internal/model"
	"github.com/jeranaias/gpterm/internal/openai"
	"github.com/jeranaias/gpterm/internal/session"
	"github.com/jeranaias/gpterm/internal/ui/styles"
	"github.com/jeranaias/gpterm/internal/util"
)

// =============================================================================
// STYLES
// =============================================================================

var (
	// Prompt style
	promptStyle = lipgloss.NewStyle().
			Foreground(styles.Cyan).
			Bold(true)

	// Welcome banner style
	welcomeStyle = lipgloss.NewStyle().
			Foreground(styles.Purple).
			Bold(true)

	// Info style
	infoStyle = lipgloss.NewStyle().
			Foreground(styles.TextSecondary)

	// Command style
	commandStyle = lipgloss.NewStyle().
			Foreground(styles.Emerald)

	// Warning style
	warningStyle = lipgloss.NewStyle().
			Foreground(styles.Amber)

	// Error style
	errorStyle = lipgloss.NewStyle().
			Foreground(styles.Rose)

	// Session summary header
	summaryHeaderStyle = lipgloss.NewStyle().
				Foreground(styles.Cyan).
				Bold(true)
)

// =============================================================================
// INPUT HISTORY
// =============================================================================

// ChatCLI provides input history and line editing for interactive chat.
type ChatCLI struct {
	line        *liner.State
	historyFile string
}

// NewChatCLI creates a new ChatCLI with input history support.
func NewChatCLI() *ChatCLI {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		// Fallback to temp directory if config dir unavailable
		configDir = os.TempDir()
	}
	historyFile := filepath.Join(configDir, "history")

	cli := &ChatCLI{
		line:        line,
		historyFile: historyFile,
	}

	cli.LoadHistory()

	return cli
}

// LoadHistory loads input history from file.
func (c *ChatCLI) LoadHistory() {
	if f, err := os.Open(c.historyFile); err == nil {
		c.line.ReadHistory(f)
		f.Close()
	}
}

// ReadInput reads a line of input with the given prompt.
// Supports history navigation with arrow keys.
func (c *ChatCLI) ReadInput(prompt string) (string, error) {
	input, err := c.line.Prompt(prompt)
	if err != nil {
		return "", err
	}

	if strings.TrimSpace(input) != "" {
		c.line.AppendHistory(input)
	}

	return input, nil
}

// SaveHistory persists input history with owner-only permissions.
func (c *ChatCLI) SaveHistory() {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}

	// 0600: input history may contain sensitive prompts
	f, err := os.OpenFile(c.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()

	c.line.WriteHistory(f)
}

// Close saves history and closes the liner.
func (c *ChatCLI) Close() {
	c.SaveHistory()
	c.line.Close()
}

// =============================================================================
// REPL STATE
// =============================================================================

// ChatREPL holds the state for a plain-terminal chat session.
type ChatREPL struct {
	Session *session.Session
	Client  *openai.Client
	Input   *ChatCLI

	Markdown bool
	Quiet    bool

	StartTime time.Time

	// Cancel function for the in-flight stream
	cancelMu sync.Mutex
	cancel   context.CancelFunc

	renderer *glamour.TermRenderer
}

// NewChatREPL builds the REPL from configuration and flags.
func NewChatREPL(args Args) *ChatREPL {
	cfg := config.Global()

	client := openai.NewClient(cfg.OpenAI.APIKey).WithBaseURL(cfg.OpenAI.BaseURL)
	client.SetModel(cfg.OpenAI.Model)
	if args.Model != "" {
		client.SetModel(args.Model)
	}
	if cfg.OpenAI.TimeoutSeconds > 0 {
		client.WithTimeout(time.Duration(cfg.OpenAI.TimeoutSeconds) * time.Second)
	}

	markdown := cfg.UI.Markdown && !args.NoMarkdown && IsStdoutTTY()

	wrap := cfg.UI.WordWrap
	if wrap == 0 {
		wrap = RenderWidth()
	}

	// Explicit dark/light theme overrides glamour's background detection
	style := glamour.WithAutoStyle()
	if cfg.UI.Theme == "dark" || cfg.UI.Theme == "light" {
		style = glamour.WithStandardStyle(cfg.UI.Theme)
	}

	var renderer *glamour.TermRenderer
	if markdown {
		r, err := glamour.NewTermRenderer(
			style,
			glamour.WithWordWrap(wrap),
		)
		if err == nil {
			renderer = r
		} else {
			markdown = false
		}
	}

	return &ChatREPL{
		Session:   session.New(client),
		Client:    client,
		Input:     NewChatCLI(),
		Markdown:  markdown,
		Quiet:     args.Quiet,
		StartTime: time.Now(),
		renderer:  renderer,
	}
}

// setCancel stores the cancel function for the in-flight request.
func (r *ChatREPL) setCancel(cancel context.CancelFunc) {
	r.cancelMu.Lock()
	defer r.cancelMu.Unlock()
	r.cancel = cancel
}

// fireCancel cancels the in-flight request, if any.
func (r *ChatREPL) fireCancel() bool {
	r.cancelMu.Lock()
	defer r.cancelMu.Unlock()
	if r.cancel == nil {
		return false
	}
	r.cancel()
	r.cancel = nil
	return true
}

// =============================================================================
// CHAT HANDLER
// =============================================================================

// HandleChat runs the plain-terminal chat loop until the user exits.
func HandleChat(args Args) error {
	repl := NewChatREPL(args)

	if !repl.Client.IsConfigured() {
		return fmt.Errorf("no API key configured: set OPENAI_API_KEY or add it to the config file")
	}

	if !repl.Quiet {
		printWelcome(repl)
	}

	// Save input history on exit
	defer repl.Input.Close()

	// Ctrl+C during streaming cancels the request; at the prompt liner
	// raises ErrPromptAborted instead and the loop exits.
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		for range sigChan {
			if repl.fireCancel() {
				fmt.Fprintln(os.Stderr, "\n"+warningStyle.Render("[Cancelled]"))
			}
		}
	}()

	for {
		input, err := repl.Input.ReadInput(promptStyle.Render("you> "))
		if err != nil {
			// Ctrl+C (ErrPromptAborted), Ctrl+D (EOF): exit gracefully
			fmt.Println()
			printExitSummary(repl)
			return nil
		}

		input = strings.TrimSpace(input)

		// Blank input: no request, nothing recorded
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldContinue, err := handleSlashCommand(input, repl)
			if err != nil {
				fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), err)
			}
			if !shouldContinue {
				printExitSummary(repl)
				return nil
			}
			continue
		}

		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			printExitSummary(repl)
			return nil
		}

		if err := processMessage(repl, input); err != nil {
			fmt.Fprintf(os.Stderr, "%s %v\n", errorStyle.Render("[Error]"), describeError(err))
		}
	}
}

// =============================================================================
// MESSAGE PROCESSING
// =============================================================================

// processMessage runs one request/response turn and prints the reply.
func processMessage(repl *ChatREPL, input string) error {
	ctx, cancel := context.WithCancel(context.Background())
	repl.setCancel(cancel)
	defer func() {
		repl.setCancel(nil)
		cancel()
	}()

	startTime := time.Now()

	fmt.Println() // Space before response

	// When rendering markdown the reply is collected and rendered whole;
	// otherwise tokens stream to stdout as they arrive.
	var onToken session.TokenFunc
	if !repl.Markdown {
		onToken = func(token string) {
			fmt.Print(token)
		}
	}

	reply, err := repl.Session.Send(ctx, input, onToken)
	if err != nil {
		if errors.Is(err, session.ErrEmptyInput) {
			return nil
		}
		fmt.Println()
		return err
	}

	if repl.Markdown {
		fmt.Print(repl.renderMarkdown(reply))
	}

	fmt.Println()
	fmt.Println() // Extra space after response

	if !repl.Quiet {
		last := repl.Session.Conversation().GetLastAssistantMessage()
		tokens := 0
		if last != nil {
			tokens = last.EstimateTokens()
		}
		fmt.Fprintf(os.Stderr, "%s %s | ~%d tokens | %s\n",
			infoStyle.Render("[Stats]"),
			commandStyle.Render(repl.Client.GetModel()),
			tokens,
			time.Since(startTime).Round(time.Millisecond))
	}

	return nil
}

// renderMarkdown renders a reply through glamour, falling back to raw text.
func (r *ChatREPL) renderMarkdown(content string) string {
	if r.renderer == nil {
		return content
	}
	rendered, err := r.renderer.Render(content)
	if err != nil {
		return content
	}
	return rendered
}

// describeError maps backend failures to a short, user-facing message.
func describeError(err error) string {
	switch {
	case errors.Is(err, openai.ErrNotConfigured):
		return "no API key configured: set OPENAI_API_KEY"
	case errors.Is(err, openai.ErrAuthFailed):
		return "authentication failed: check your API key"
	case errors.Is(err, openai.ErrRateLimited):
		return "rate limited by the API: wait a moment and resend"
	case errors.Is(err, openai.ErrQuotaExceeded):
		return "API quota exceeded"
	case errors.Is(err, openai.ErrModelNotFound):
		return "the configured model was not found"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	default:
		return err.Error()
	}
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// handleSlashCommand processes slash commands.
// Returns (shouldContinue, error) where shouldContinue=false means exit.
func handleSlashCommand(cmd string, repl *ChatREPL) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return true, nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	switch command {
	case "/help", "/h", "/?":
		printHelp()
		return true, nil

	case "/model", "/m":
		if len(args) == 0 {
			fmt.Printf("%s Current model: %s\n",
				infoStyle.Render("[Model]"),
				commandStyle.Render(repl.Client.GetModel()))
			return true, nil
		}
		repl.Client.SetModel(args[0])
		fmt.Printf("%s Switched to model: %s\n",
			commandStyle.Render("[OK]"),
			args[0])
		return true, nil

	case "/history":
		printHistory(repl)
		return true, nil

	case "/quit", "/q", "/exit":
		return false, nil

	case "/":
		printHelp()
		return true, nil

	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", command)
	}
}

// =============================================================================
// DISPLAY FUNCTIONS
// =============================================================================

// printWelcome prints the welcome banner.
func printWelcome(repl *ChatREPL) {
	fmt.Println()
	fmt.Println(welcomeStyle.Render("gpterm"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 30)))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Model:"),
		commandStyle.Render(repl.Client.GetModel()))
	fmt.Printf("%s %s\n",
		infoStyle.Render("Key:"),
		commandStyle.Render(repl.Client.APIKeyMasked()))
	fmt.Println()
	fmt.Println(infoStyle.Render("Type your message and press Enter. Commands: /help, /quit"))
	fmt.Println()
}

// printHelp prints available commands.
func printHelp() {
	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Available Commands"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 20)))
	fmt.Println()

	commands := []struct {
		cmd  string
		desc string
	}{
		{"/help, /h", "Show this help"},
		{"/model [name]", "Show or switch model"},
		{"/history", "Show conversation history"},
		{"/quit, /q", "Exit chat"},
	}

	for _, c := range commands {
		fmt.Printf("  %s  %s\n",
			commandStyle.Render(fmt.Sprintf("%-15s", c.cmd)),
			infoStyle.Render(c.desc))
	}

	fmt.Println()
	fmt.Println(infoStyle.Render("Tip: Ctrl+C cancels current generation, Ctrl+D exits"))
	fmt.Println()
}

// printHistory prints the conversation transcript, oldest first.
func printHistory(repl *ChatREPL) {
	history := repl.Session.History()
	if len(history) == 0 {
		fmt.Println(infoStyle.Render("[No messages yet]"))
		return
	}

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Conversation History"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 25)))
	fmt.Println()

	for i, msg := range history {
		role := msg.Role.DisplayName()
		switch msg.Role {
		case model.RoleUser:
			role = lipgloss.NewStyle().Foreground(styles.Cyan).Render(role)
		case model.RoleAssistant:
			role = lipgloss.NewStyle().Foreground(styles.Purple).Render(role)
		}

		content := strings.ReplaceAll(msg.GetDisplayContent(), "\n", " ")
		content = util.TruncateRunes(content, 100)

		fmt.Printf("  %d. %s: %s\n", i+1, role, content)
	}
	fmt.Println()
}

// printExitSummary prints the session summary on exit.
func printExitSummary(repl *ChatREPL) {
	conv := repl.Session.Conversation()

	if conv.IsEmpty() {
		fmt.Println(infoStyle.Render("Goodbye!"))
		return
	}

	elapsed := time.Since(repl.StartTime).Round(time.Second)

	fmt.Println()
	fmt.Println(summaryHeaderStyle.Render("Session Summary"))
	fmt.Println(infoStyle.Render(strings.Repeat("─", 15)))

	fmt.Printf("  %s %d\n",
		infoStyle.Render("Messages:"),
		conv.MessageCount())
	fmt.Printf("  %s ~%s\n",
		infoStyle.Render("Tokens:"),
		formatNumber(conv.EstimateTokens()))
	fmt.Printf("  %s %s\n",
		infoStyle.Render("Duration:"),
		elapsed.String())

	fmt.Println()
	fmt.Println(infoStyle.Render("Goodbye!"))
}

// formatNumber formats an integer with commas for thousands.
func formatNumber(n int) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	s := fmt.Sprintf("%d", n)
	result := make([]byte, 0, len(s)+len(s)/3)

	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			result = append(result, ',')
		}
		result = append(result, byte(c))
	}

	return string(result)
}
