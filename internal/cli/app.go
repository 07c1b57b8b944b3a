// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Wiring of config, service client, session and chat state.

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/aila/internal/api"
	"github.com/jeranaias/aila/internal/chat"
	"github.com/jeranaias/aila/internal/config"
	"github.com/jeranaias/aila/internal/logging"
	"github.com/jeranaias/aila/internal/model"
	"github.com/jeranaias/aila/internal/session"
)

// =============================================================================
// APP
// =============================================================================

// App runs one aila command. Everything it prints goes to Out and Err,
// and prompts read from In, so commands can be driven from tests.
type App struct {
	In  io.Reader
	Out io.Writer
	Err io.Writer

	cfg  *config.Config
	args Args
	log  logrus.FieldLogger

	jar    *api.FileJar
	client *api.Client
	store  *session.Store
	ctrl   *chat.Controller

	reader *bufio.Reader

	mu       sync.Mutex
	printer  *replyPrinter
	renderer *glamour.TermRenderer
}

// AppOption customizes an App.
type AppOption func(*App)

// WithIO replaces the standard streams.
func WithIO(in io.Reader, out, errOut io.Writer) AppOption {
	return func(a *App) {
		a.In, a.Out, a.Err = in, out, errOut
	}
}

// WithLogger replaces the shared logger.
func WithLogger(l logrus.FieldLogger) AppOption {
	return func(a *App) {
		a.log = l
	}
}

// NewApp builds the service client, session store and chat controller
// from cfg. --url in args overrides the configured base URL.
func NewApp(cfg *config.Config, args Args, opts ...AppOption) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	a := &App{
		In:   os.Stdin,
		Out:  os.Stdout,
		Err:  os.Stderr,
		cfg:  cfg,
		args: args,
		log:  logging.Logger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.reader = bufio.NewReader(a.In)

	jar, err := openJar(cfg.Storage.CookieFile, a.log)
	if err != nil {
		return nil, err
	}
	a.jar = jar

	baseURL := cfg.Server.BaseURL
	if args.BaseURL != "" {
		baseURL = args.BaseURL
	}
	a.client = api.NewClient(&api.Config{
		BaseURL:           baseURL,
		Timeout:           cfg.Server.RequestTimeout(),
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		Burst:             cfg.Server.Burst,
		Jar:               jar,
		Logger:            a.log,
	})

	a.store, err = session.NewStore(a.client, a.log)
	if err != nil {
		return nil, err
	}
	a.ctrl, err = chat.NewController(a.client, a.store, chat.Options{
		HistoryWindow: cfg.Chat.HistoryWindow,
		MaxFrameBytes: cfg.Chat.StreamMaxFrameBytes,
		Logger:        a.log,
		OnEvent:       a.onEvent,
	})
	if err != nil {
		return nil, err
	}

	// Signing out (explicitly or because the service said so) drops all
	// conversation state.
	a.store.OnChange(func(id model.Identity) {
		if id.IsZero() {
			a.ctrl.Reset()
		}
	})
	return a, nil
}

// openJar loads the cookie file. A corrupt file is discarded rather than
// locking the user out.
func openJar(path string, log logrus.FieldLogger) (*api.FileJar, error) {
	jar, err := api.NewFileJar(path)
	if err == nil {
		return jar, nil
	}
	log.WithError(err).WithField("path", path).Warn("cli: discarding unreadable cookie file")
	if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return nil, fmt.Errorf("cookie file %s: %w", path, err)
	}
	return api.NewFileJar(path)
}

// Config returns the configuration in use.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Controller exposes the chat state (for front ends built on App).
func (a *App) Controller() *chat.Controller {
	return a.ctrl
}

// Session exposes the session store.
func (a *App) Session() *session.Store {
	return a.store
}

// =============================================================================
// DISPATCH
// =============================================================================

// Run executes cmd. A failure caused by ctx being cancelled (Ctrl+C)
// is reported as an interruption.
func (a *App) Run(ctx context.Context, cmd Command) error {
	err := a.dispatch(ctx, cmd)
	if err != nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", errInterrupted, err)
	}
	return err
}

func (a *App) dispatch(ctx context.Context, cmd Command) error {
	switch cmd {
	case CmdChat:
		return a.runChat(ctx)
	case CmdLogin:
		return a.runLogin(ctx)
	case CmdRegister:
		return a.runRegister(ctx)
	case CmdVerify:
		return a.runVerify(ctx)
	case CmdResend:
		return a.runResend(ctx)
	case CmdLogout:
		return a.runLogout(ctx)
	case CmdWhoami:
		return a.runWhoami(ctx)
	case CmdConversations:
		return a.runConversations(ctx)
	case CmdMessages:
		return a.runMessages(ctx)
	case CmdExport:
		return a.runExport(ctx)
	case CmdConfig:
		return a.runConfig()
	case CmdVersion:
		return a.runVersion()
	case CmdHelp:
		PrintUsage(a.Out)
		return nil
	default:
		msg := fmt.Sprintf("unknown command %q", a.args.Name)
		if s := SuggestCommand(a.args.Name); s != "" {
			msg += fmt.Sprintf(" (did you mean %q?)", s)
		}
		return &ValidationError{Field: "command", Reason: msg, Example: "aila help"}
	}
}

func (a *App) runVersion() error {
	if a.args.JSON {
		return NewJSONResponse("version", VersionData{
			Version:   Version,
			GitCommit: GitCommit,
			BuildDate: BuildDate,
			GoVersion: runtime.Version(),
		}).Print(a.Out)
	}
	PrintVersion(a.Out)
	return nil
}

// =============================================================================
// SESSION HELPERS
// =============================================================================

// requireSession makes sure someone is signed in, asking the service about
// the stored cookie if needed. verified additionally demands a confirmed
// account.
func (a *App) requireSession(ctx context.Context, command string, verified bool) (model.Identity, error) {
	if !a.store.IsAuthenticated() {
		if _, err := a.store.Probe(ctx); err != nil {
			if api.IsConnection(err) || api.IsTimeout(err) {
				return model.Identity{}, NewCommandError(command, "", "service unreachable", err)
			}
			return model.Identity{}, errNotSignedIn(command, err)
		}
	}
	if verified {
		if err := a.store.RequireVerified(); err != nil {
			return model.Identity{}, NewCommandError(command, "", "account not verified (run 'aila verify')", err)
		}
	}
	return a.store.Identity(), nil
}

// =============================================================================
// OUTPUT HELPERS
// =============================================================================

// infoWriter is where human-readable chatter goes: stderr in JSON mode.
func (a *App) infoWriter() io.Writer {
	if a.args.JSON {
		return a.Err
	}
	return a.Out
}

// info prints a status line unless --quiet.
func (a *App) info(format string, args ...any) {
	if a.args.Quiet {
		return
	}
	fmt.Fprintf(a.infoWriter(), format+"\n", args...)
}

func (a *App) success(format string, args ...any) {
	a.info("%s %s", SuccessStyle.Render("[OK]"), fmt.Sprintf(format, args...))
}

func (a *App) warn(format string, args ...any) {
	fmt.Fprintf(a.Err, "%s %s\n", WarningStyle.Render("[Warning]"), fmt.Sprintf(format, args...))
}

// renderMarkdown renders text for a terminal Out, or returns it unchanged.
func (a *App) renderMarkdown(text string) string {
	if !a.cfg.UI.Markdown || !isTerminal(a.Out) {
		return text
	}

	a.mu.Lock()
	if a.renderer == nil {
		width := a.cfg.UI.WordWrap
		if width <= 0 {
			width = terminalWidth(a.Out) - 4
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			a.log.WithError(err).Debug("cli: markdown renderer unavailable")
		}
		a.renderer = r
	}
	r := a.renderer
	a.mu.Unlock()

	if r == nil {
		return text
	}
	out, err := r.Render(text)
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n") + "\n"
}

// =============================================================================
// PROMPTS
// =============================================================================

// interactive reports whether prompts can reach a person.
func (a *App) interactive() bool {
	return isTerminal(a.In)
}

// promptLine asks for one line of input.
func (a *App) promptLine(label string) (string, error) {
	fmt.Fprint(a.Err, label)
	line, err := a.reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(a.Err)
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword asks for a secret without echo when In is a terminal.
func (a *App) promptPassword(label string) (string, error) {
	f, ok := a.In.(fder)
	if !ok || !isTerminal(a.In) {
		return a.promptLine(label)
	}
	fmt.Fprint(a.Err, label)
	pw, err := readPasswordFromTerminal(f)
	fmt.Fprintln(a.Err)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return pw, nil
}

// valueOrPrompt returns value, or asks for it when empty.
func (a *App) valueOrPrompt(value, label string) (string, error) {
	if value != "" {
		return value, nil
	}
	return a.promptLine(label)
}
