// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// conversations_cmd.go - Conversation commands outside the REPL.
//
// Command: conversations [subcommand]
//   list (default)      Newest first, with positions for REF
//   new                 Create a conversation
//   rename REF NAME     Rename a conversation
//
// Command: messages [REF]         Print a conversation
// Command: export [REF] [flags]   Save a transcript
//   -f, --format FMT    json (default), markdown or html
//   --markdown          Same as --format markdown
//   -o, --output FILE   Write FILE instead of the transcripts directory
//   --list              List saved transcripts
//   --search QUERY      Search saved transcripts
//   --delete ID         Remove a saved transcript
//   --clear             Remove all saved transcripts (asks first)

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/jeranaias/aila/internal/export"
	"github.com/jeranaias/aila/internal/model"
	"github.com/jeranaias/aila/internal/storage"
)

// loadConversations signs in (if needed) and fetches the conversation list.
func (a *App) loadConversations(ctx context.Context, command string) error {
	if _, err := a.requireSession(ctx, command, true); err != nil {
		return err
	}
	if err := a.ctrl.LoadConversations(ctx); err != nil {
		a.store.HandleError(err)
		return NewCommandError(command, "", "could not load conversations", err)
	}
	return nil
}

// openRef selects the conversation named by ref ("" keeps the default
// selection) and returns it with its messages loaded.
func (a *App) openRef(ctx context.Context, command, ref string) (model.Conversation, error) {
	if ref == "" {
		conv := a.ctrl.Active()
		if conv.IsZero() {
			return conv, ErrNotFound("conversation", "(none yet)")
		}
		return conv, nil
	}
	conv, err := a.ctrl.SelectRef(ctx, ref)
	if err != nil {
		return conv, NewCommandError(command, "", fmt.Sprintf("cannot open %q", ref), err)
	}
	return conv, nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func (a *App) runConversations(ctx context.Context) error {
	p := NewArgParser(a.args.Raw)
	if err := a.loadConversations(ctx, "conversations"); err != nil {
		return err
	}

	switch sub := p.Subcommand(); sub {
	case "", "list", "ls":
		convs := a.ctrl.Registry().All()
		if a.args.JSON {
			data := make([]ConversationData, len(convs))
			for i, c := range convs {
				data[i] = ConversationData{Position: i + 1, ID: c.ID, Name: c.Name}
			}
			return NewJSONResponse("conversations", data).Print(a.Out)
		}
		a.printConversations(a.Out, convs, "")
		return nil

	case "new":
		conv, err := a.ctrl.NewConversation(ctx)
		if err != nil {
			return NewCommandError("conversations", "new", "not created", err)
		}
		if a.args.JSON {
			return NewJSONResponse("conversations", ConversationData{Position: 1, ID: conv.ID, Name: conv.Name}).Print(a.Out)
		}
		a.success("Created %s (%s)", conv.Name, shortID(conv.ID))
		return nil

	case "rename":
		ref := p.Positional(1)
		name := JoinPositionalArgs(p, 2)
		if ref == "" || name == "" {
			return ErrMissingArgument("REF NAME", "aila conversations rename 1 Trip planning")
		}
		conv, ok := a.ctrl.Resolve(ref)
		if !ok {
			return ErrNotFound("conversation", ref)
		}
		if err := a.ctrl.Rename(ctx, conv.ID, name); err != nil {
			return NewCommandError("conversations", "rename", "name not changed", err)
		}
		a.success("Renamed %s to %s", conv.Name, name)
		return nil

	default:
		return &ValidationError{Field: "subcommand", Value: sub, Reason: "expected list, new or rename"}
	}
}

// =============================================================================
// MESSAGES
// =============================================================================

func (a *App) runMessages(ctx context.Context) error {
	p := NewArgParser(a.args.Raw)
	if err := a.loadConversations(ctx, "messages"); err != nil {
		return err
	}
	conv, err := a.openRef(ctx, "messages", JoinPositionalArgs(p, 0))
	if err != nil {
		return err
	}
	msgs := a.ctrl.Log().Messages()

	if a.args.JSON {
		return NewJSONResponse("messages", MessagesData{Conversation: conv, Messages: msgs}).Print(a.Out)
	}
	if !a.args.Quiet {
		fmt.Fprintln(a.Out, TitleStyle.Render(conv.Name))
		fmt.Fprintln(a.Out, RenderSeparator(terminalWidth(a.Out)))
	}
	a.printMessages(a.Out, msgs)
	return nil
}

// =============================================================================
// EXPORT
// =============================================================================

func (a *App) runExport(ctx context.Context) error {
	p := NewArgParser(a.args.Raw, "markdown", "md", "list", "clear", "confirm")

	switch {
	case p.BoolFlag("list") || p.HasFlag("search"):
		return a.listTranscripts(p.Flag("search"))
	case p.HasFlag("delete"):
		return a.deleteTranscript(p.Flag("delete"))
	case p.BoolFlag("clear"):
		return a.clearTranscripts(p.BoolFlag("confirm"))
	}

	if err := a.loadConversations(ctx, "export"); err != nil {
		return err
	}
	conv, err := a.openRef(ctx, "export", JoinPositionalArgs(p, 0))
	if err != nil {
		return err
	}

	out := p.Flag("o", "output")
	path, n, err := a.exportConversation(conv, a.ctrl.Log().Messages(), exportFormat(p, out), out)
	if err != nil {
		return err
	}
	if a.args.JSON {
		return NewJSONResponse("export", ExportData{ConversationID: conv.ID, Path: path, Messages: n}).Print(a.Out)
	}
	a.success("Exported %d %s from %s to %s", n, plural(n, "message", "messages"), conv.Name, path)
	return nil
}

// exportFormat picks the export format from --format, --markdown or the
// output file's extension, in that order.
func exportFormat(p *ArgParser, out string) string {
	if f := p.Flag("f", "format"); f != "" {
		return f
	}
	if p.BoolFlag("markdown", "md") {
		return "markdown"
	}
	return export.FormatFromPath(out)
}

// exportConversation writes a transcript of msgs. Without out it goes to
// the transcripts directory, plus a rendered copy for non-JSON formats.
func (a *App) exportConversation(conv model.Conversation, msgs []model.Message, format, out string) (string, int, error) {
	exporter, err := export.ForFormat(format, export.DefaultOptions())
	if err != nil {
		return "", 0, &ValidationError{Field: "format", Value: format, Reason: "unsupported format", Example: "--format " + strings.Join(export.Formats, "|")}
	}
	t := storage.NewTranscript(conv, msgs, a.store.Identity().Username)

	if out != "" {
		path, err := ValidateOutputPath(out)
		if err != nil {
			return "", 0, &ValidationError{Field: "output", Value: out, Reason: err.Error()}
		}
		if err := export.WriteFile(t, exporter, path); err != nil {
			return "", 0, NewCommandError("export", "", "could not write file", err)
		}
		return path, len(t.Messages), nil
	}

	store, err := a.transcriptStore()
	if err != nil {
		return "", 0, err
	}
	path, err := store.Save(t)
	if err != nil {
		return "", 0, NewCommandError("export", "", "could not save transcript", err)
	}
	if ext := exporter.FileExtension(); ext != ".json" {
		docPath := strings.TrimSuffix(path, ".json") + ext
		if err := export.WriteFile(t, exporter, docPath); err != nil {
			return "", 0, NewCommandError("export", "", "could not write "+strings.TrimPrefix(ext, "."), err)
		}
		path = docPath
	}
	return path, len(t.Messages), nil
}

func (a *App) transcriptStore() (*storage.TranscriptStore, error) {
	store, err := storage.NewTranscriptStore(a.cfg.Storage.TranscriptsDir, a.cfg.Storage.MaxTranscripts)
	if err != nil {
		return nil, NewCommandError("export", "", "transcripts directory unavailable", err)
	}
	return store, nil
}

func (a *App) listTranscripts(query string) error {
	store, err := a.transcriptStore()
	if err != nil {
		return err
	}
	var metas []storage.TranscriptMeta
	if query != "" {
		metas, err = store.Search(query)
	} else {
		metas, err = store.List()
	}
	if err != nil {
		return NewCommandError("export", "list", "could not read transcripts", err)
	}
	if a.args.JSON {
		return NewJSONResponse("export", metas).Print(a.Out)
	}
	fmt.Fprintln(a.Out, strings.TrimRight(storage.FormatTranscriptList(metas), "\n"))
	return nil
}

func (a *App) deleteTranscript(id string) error {
	if id == "" {
		return ErrMissingArgument("delete", "aila export --delete c-1")
	}
	store, err := a.transcriptStore()
	if err != nil {
		return err
	}
	if err := store.Delete(id); err != nil {
		return err
	}
	a.success("Deleted transcript %s", id)
	return nil
}

func (a *App) clearTranscripts(confirmFlag bool) error {
	store, err := a.transcriptStore()
	if err != nil {
		return err
	}
	metas, err := store.List()
	if err != nil {
		return NewCommandError("export", "clear", "could not read transcripts", err)
	}
	if len(metas) == 0 {
		a.info("No transcripts to remove.")
		return nil
	}
	ok, err := a.confirm(confirmFlag, fmt.Sprintf("Remove %d saved %s?", len(metas), plural(len(metas), "transcript", "transcripts")))
	if err != nil {
		return err
	}
	if !ok {
		a.showCancelled()
		return nil
	}
	if err := store.Clear(); err != nil {
		return NewCommandError("export", "clear", "could not remove transcripts", err)
	}
	a.success("Removed %d %s", len(metas), plural(len(metas), "transcript", "transcripts"))
	return nil
}
