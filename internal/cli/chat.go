// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// chat.go - Interactive chat REPL.
//
// Replies are printed as they stream in. Ctrl+C during a reply cancels the
// turn; Ctrl+C or Ctrl+D at the prompt leaves the REPL.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/aila/internal/api"
	"github.com/jeranaias/aila/internal/chat"
	"github.com/jeranaias/aila/internal/config"
	"github.com/jeranaias/aila/internal/logging"
	"github.com/jeranaias/aila/internal/model"
	"github.com/jeranaias/aila/internal/session"
	"github.com/jeranaias/aila/internal/util"
)

// =============================================================================
// LINE INPUT
// =============================================================================

// lineReader reads one line of chat input.
type lineReader interface {
	Prompt(prompt string) (string, error)
	Close() error
}

// linerReader provides history and line editing on a terminal.
type linerReader struct {
	line        *liner.State
	historyFile string
}

func newLinerReader() *linerReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &linerReader{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		r.line.ReadHistory(f)
		f.Close()
	}
	return r
}

func (r *linerReader) Prompt(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves history (0600, it may hold anything the user typed) and
// restores the terminal.
func (r *linerReader) Close() error {
	if err := config.EnsureConfigDir(); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			r.line.WriteHistory(f)
			f.Close()
		}
	}
	return r.line.Close()
}

// plainReader reads piped input; no prompt is echoed.
type plainReader struct {
	app *App
}

func (r *plainReader) Prompt(string) (string, error) {
	line, err := r.app.reader.ReadString('\n')
	if err != nil && (line == "" || !errors.Is(err, io.EOF)) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *plainReader) Close() error { return nil }

func (a *App) newLineReader() lineReader {
	if a.interactive() && isTerminal(a.Out) {
		return newLinerReader()
	}
	return &plainReader{app: a}
}

// =============================================================================
// STREAMED REPLY OUTPUT
// =============================================================================

// replyPrinter writes the part of an accumulating reply not yet shown.
type replyPrinter struct {
	w              io.Writer
	conversationID string
	shown          string
}

func (p *replyPrinter) fold(text string) {
	if strings.HasPrefix(text, p.shown) {
		fmt.Fprint(p.w, text[len(p.shown):])
	} else {
		// The reply was rewritten (should not happen with a well-formed
		// stream); show it again in full.
		fmt.Fprint(p.w, "\n"+text)
	}
	p.shown = text
}

// onEvent receives controller events; it runs on the submitting goroutine.
func (a *App) onEvent(e chat.Event) {
	if e.Kind != chat.EventFold {
		return
	}
	a.mu.Lock()
	p := a.printer
	a.mu.Unlock()
	if p != nil && p.conversationID == e.ConversationID {
		p.fold(e.Text)
	}
}

func (a *App) beginReply(conversationID string) *replyPrinter {
	p := &replyPrinter{w: a.Out, conversationID: conversationID}
	a.mu.Lock()
	a.printer = p
	a.mu.Unlock()
	return p
}

func (a *App) endReply() {
	a.mu.Lock()
	a.printer = nil
	a.mu.Unlock()
}

// =============================================================================
// REPL
// =============================================================================

// errQuit ends the REPL without an error.
var errQuit = errors.New("quit")

func (a *App) runChat(ctx context.Context) error {
	if _, err := a.requireSession(ctx, "chat", true); err != nil {
		return err
	}
	if err := a.ctrl.LoadConversations(ctx); err != nil {
		a.store.HandleError(err)
		return NewCommandError("chat", "", "could not load conversations", err)
	}

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	a.watchConfig(watchCtx)

	in := a.newLineReader()
	defer in.Close()

	a.printWelcome()
	turns := 0
	for {
		input, err := in.Prompt(PromptStyle.Render("aila> "))
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				a.log.WithError(err).Debug("chat: input closed")
			}
			fmt.Fprintln(a.Out)
			break
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			break
		}

		if strings.HasPrefix(input, "/") {
			err = a.handleSlashCommand(ctx, input)
		} else {
			err = a.turn(ctx, input)
			if err == nil {
				turns++
			}
		}
		if errors.Is(err, errQuit) {
			break
		}
		if err != nil {
			fmt.Fprintf(a.Err, "%s %s\n", ErrorStyle.Render("[Error]"), userMessage(err))
		}
		if !a.store.IsAuthenticated() {
			return errNotSignedIn("chat", session.ErrNotAuthenticated)
		}
	}

	if !a.args.Quiet {
		fmt.Fprintln(a.Out, DimStyle.Render(fmt.Sprintf("Goodbye (%d %s).", turns, plural(turns, "turn", "turns"))))
	}
	return nil
}

// watchConfig applies log-level edits to the config file while chatting.
func (a *App) watchConfig(ctx context.Context) {
	path, err := config.ActivePath()
	if err != nil {
		return
	}
	go func() {
		err := config.Watch(ctx, path, func(cfg *config.Config, err error) {
			if err != nil {
				a.log.WithError(err).Warn("chat: config reload failed")
				return
			}
			if !a.args.Verbose {
				logging.SetLevel(cfg.Log.Level)
			}
			config.SetGlobal(cfg)
			a.log.WithField("path", path).Debug("chat: config reloaded")
		})
		if err != nil {
			a.log.WithError(err).Debug("chat: config watch unavailable")
		}
	}()
}

// turn sends one message, creating a conversation when none is active.
func (a *App) turn(ctx context.Context, input string) error {
	if a.ctrl.Active().IsZero() {
		conv, err := a.ctrl.NewConversation(ctx)
		if err != nil {
			return NewCommandError("chat", "new conversation", "could not create a conversation", err)
		}
		a.info("%s %s", DimStyle.Render("Started"), ActiveStyle.Render(conv.Name))
	}
	conv := a.ctrl.Active()

	turnCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprintf(a.Out, "%s: ", RenderRole(model.RoleAssistant))
	a.beginReply(conv.ID)
	result, err := a.ctrl.Submit(turnCtx, input)
	a.endReply()
	fmt.Fprintln(a.Out)

	if err != nil {
		if errors.Is(turnCtx.Err(), context.Canceled) && ctx.Err() == nil {
			a.warn("reply cancelled")
		}
		return err
	}
	if result == nil {
		return nil
	}

	for _, perr := range result.PersistErrors {
		a.warn("message not saved: %s", api.ErrorMessage(perr))
	}
	if !result.Refetched {
		a.info("%s", DimStyle.Render("(showing local copy; conversation could not be reloaded)"))
	}
	a.printStats(result)
	return nil
}

func (a *App) printStats(result *chat.TurnResult) {
	if a.args.Quiet {
		return
	}
	s := result.Stats
	parts := []string{fmt.Sprintf("%d %s", s.FramesAccepted, plural(s.FramesAccepted, "frame", "frames"))}
	if s.TTFF > 0 {
		parts = append(parts, "first "+formatDurationShort(s.TTFF))
	}
	if !s.StartTime.IsZero() {
		parts = append(parts, "total "+formatDurationShort(time.Since(s.StartTime)))
	}
	if s.FramesSkipped > 0 || s.FramesDropped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", s.FramesSkipped+s.FramesDropped))
	}
	fmt.Fprintln(a.Out, DimStyle.Render("["+strings.Join(parts, " | ")+"]"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// =============================================================================
// SLASH COMMANDS
// =============================================================================

// slashCommands lists the REPL commands (for /help and suggestions).
var slashCommands = []string{
	"/help", "/new", "/list", "/switch", "/rename", "/history",
	"/good", "/bad", "/export", "/whoami", "/logout", "/quit",
}

func (a *App) handleSlashCommand(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	name := strings.ToLower(fields[0])
	rest := strings.TrimSpace(strings.TrimPrefix(line, fields[0]))

	switch name {
	case "/help", "/h", "/?":
		a.printChatHelp()

	case "/new":
		conv, err := a.ctrl.NewConversation(ctx)
		if err != nil {
			return err
		}
		a.success("Started %s", conv.Name)

	case "/list", "/ls":
		a.printConversations(a.Out, a.ctrl.Registry().All(), a.ctrl.Active().ID)

	case "/switch", "/s":
		if rest == "" {
			return ErrMissingArgument("conversation", "/switch 2")
		}
		conv, err := a.ctrl.SelectRef(ctx, rest)
		if err != nil {
			return err
		}
		a.success("Switched to %s (%d %s)", conv.Name, a.ctrl.Log().Len(), plural(a.ctrl.Log().Len(), "message", "messages"))

	case "/rename":
		active := a.ctrl.Active()
		if active.IsZero() {
			return chat.ErrNoConversation
		}
		if rest == "" {
			return ErrMissingArgument("name", "/rename Trip planning")
		}
		if err := a.ctrl.Rename(ctx, active.ID, rest); err != nil {
			return err
		}
		a.success("Renamed to %s", rest)

	case "/history":
		if a.ctrl.Active().IsZero() {
			return chat.ErrNoConversation
		}
		a.printMessages(a.Out, a.ctrl.Log().Messages())

	case "/good", "/bad":
		msg, ok := a.ctrl.Log().LastOfRole(model.RoleAssistant)
		if !ok {
			return ErrNotFound("reply", "last")
		}
		good := name == "/good"
		if err := a.ctrl.Feedback(ctx, msg.ID, good); err != nil {
			return err
		}
		a.success("Feedback recorded (%s)", model.Message{Feedback: model.Bool(good)}.FeedbackLabel())

	case "/export":
		active := a.ctrl.Active()
		if active.IsZero() {
			return chat.ErrNoConversation
		}
		p := NewArgParser(fields[1:], "markdown", "md")
		out := p.Flag("o", "output")
		path, n, err := a.exportConversation(active, a.ctrl.Log().Messages(), exportFormat(p, out), out)
		if err != nil {
			return err
		}
		a.success("Exported %d %s to %s", n, plural(n, "message", "messages"), path)

	case "/whoami":
		a.printIdentity(a.Out, a.store.Identity())

	case "/logout":
		if err := a.logout(ctx); err != nil {
			a.warn("%s", api.ErrorMessage(err))
		}
		a.success("Signed out")
		return errQuit

	case "/quit", "/q", "/exit":
		return errQuit

	default:
		msg := fmt.Sprintf("unknown command %s", name)
		if s := suggestFrom(name, slashCommands); s != "" {
			msg += fmt.Sprintf(" (did you mean %s?)", s)
		}
		return &ValidationError{Field: "command", Reason: msg, Example: "/help"}
	}
	return nil
}

// =============================================================================
// DISPLAY
// =============================================================================

func (a *App) printWelcome() {
	if a.args.Quiet {
		return
	}
	id := a.store.Identity()
	fmt.Fprintln(a.Out, TitleStyle.Render("AILA"))
	fmt.Fprintln(a.Out, RenderSeparator(terminalWidth(a.Out)))
	fmt.Fprintf(a.Out, "%s%s\n", RenderLabel("Signed in as"), ValueStyle.Render(id.Username))
	fmt.Fprintf(a.Out, "%s%d\n", RenderLabel("Conversations"), a.ctrl.Registry().Len())
	if active := a.ctrl.Active(); !active.IsZero() {
		fmt.Fprintf(a.Out, "%s%s\n", RenderLabel("Active"), ActiveStyle.Render(active.Name))
	}
	fmt.Fprintln(a.Out, DimStyle.Render("Type /help for commands, Ctrl+C to cancel a reply."))
	fmt.Fprintln(a.Out)
}

func (a *App) printChatHelp() {
	fmt.Fprintln(a.Out, TitleStyle.Render("Chat commands"))
	rows := [][2]string{
		{"/new", "Start a new conversation"},
		{"/list", "List conversations (newest first)"},
		{"/switch REF", "Open a conversation by position, id or name"},
		{"/rename NAME", "Rename the active conversation"},
		{"/history", "Show the active conversation"},
		{"/good, /bad", "Rate the last reply"},
		{"/export [--format F] [-o FILE]", "Save a transcript (json, markdown, html)"},
		{"/whoami", "Show the signed-in user"},
		{"/logout", "Sign out and leave"},
		{"/quit", "Leave"},
	}
	for _, r := range rows {
		fmt.Fprintf(a.Out, "  %s %s\n", util.PadWidth(r[0], 32), DimStyle.Render(r[1]))
	}
}

// printConversations lists convs with 1-based positions; activeID is marked.
func (a *App) printConversations(w io.Writer, convs []model.Conversation, activeID string) {
	if len(convs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No conversations yet."))
		return
	}
	nameWidth := terminalWidth(w) - 17
	if nameWidth < 10 {
		nameWidth = 10
	}
	for i, c := range convs {
		marker := "  "
		name := util.TruncateWidth(c.Name, nameWidth)
		if c.ID == activeID {
			marker = "* "
			name = ActiveStyle.Render(name)
		}
		id := DimStyle.Render(util.PadWidth(shortID(c.ID), 8))
		fmt.Fprintf(w, "%s%3d  %s  %s\n", marker, i+1, id, name)
	}
}

// printMessages renders a conversation's messages.
func (a *App) printMessages(w io.Writer, msgs []model.Message) {
	if len(msgs) == 0 {
		fmt.Fprintln(w, DimStyle.Render("No messages yet."))
		return
	}
	for _, m := range msgs {
		header := RenderRole(m.Role)
		if ts, err := model.ParseTimestamp(m.Timestamp); err == nil {
			header += " " + DimStyle.Render(ts.Local().Format("2006-01-02 15:04"))
		}
		if fb := RenderFeedback(m); fb != "" {
			header += " " + fb
		}
		if m.Pending {
			header += " " + DimStyle.Render("(unsaved)")
		}
		fmt.Fprintln(w, header)
		if m.Role == model.RoleAssistant {
			fmt.Fprintln(w, strings.TrimRight(a.renderMarkdown(m.Message), "\n"))
		} else {
			fmt.Fprintln(w, m.Message)
		}
		fmt.Fprintln(w)
	}
}

func (a *App) printIdentity(w io.Writer, id model.Identity) {
	if id.Username == "" {
		fmt.Fprintln(w, DimStyle.Render("Not signed in."))
		return
	}
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Username"), ValueStyle.Render(id.Username))
	if id.Email != "" {
		fmt.Fprintf(w, "%s%s\n", RenderLabel("Email"), ValueStyle.Render(id.Email))
	}
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Account"), ValueStyle.Render(id.VerificationLabel()))
	fmt.Fprintf(w, "%s%s\n", RenderLabel("Service"), DimStyle.Render(a.client.BaseURL()))
}
