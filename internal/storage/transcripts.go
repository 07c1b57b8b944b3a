// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jeranaias/aila/internal/model"
	"github.com/jeranaias/aila/internal/util"
)

// =============================================================================
// TRANSCRIPT TYPE
// =============================================================================

// Transcript is an exported conversation.
type Transcript struct {
	Conversation model.Conversation `json:"conversation"`
	Username     string             `json:"username,omitempty"`
	ExportedAt   time.Time          `json:"exported_at"`
	Messages     []model.Message    `json:"messages"`
}

// TranscriptMeta contains metadata for listing transcripts.
type TranscriptMeta struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	ExportedAt   time.Time `json:"exported_at"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"` // first user message, truncated
	Path         string    `json:"path"`
}

// NewTranscript snapshots conv and msgs. Pending messages are left out:
// they have not been confirmed by the server.
func NewTranscript(conv model.Conversation, msgs []model.Message, username string) *Transcript {
	kept := make([]model.Message, 0, len(msgs))
	for _, m := range msgs {
		if m.Pending {
			continue
		}
		kept = append(kept, m.Clone())
	}
	return &Transcript{
		Conversation: conv,
		Username:     username,
		Messages:     kept,
	}
}

// Preview returns the first user message, truncated for display.
func (t *Transcript) Preview() string {
	for _, m := range t.Messages {
		if m.Role == model.RoleUser && strings.TrimSpace(m.Message) != "" {
			return util.TruncateRunes(strings.Join(strings.Fields(m.Message), " "), 80)
		}
	}
	return ""
}

// Title returns the conversation name, or its id when unnamed.
func (t *Transcript) Title() string {
	if strings.TrimSpace(t.Conversation.Name) != "" {
		return t.Conversation.Name
	}
	return t.Conversation.ID
}

// Meta returns listing metadata for t.
func (t *Transcript) Meta() TranscriptMeta {
	return TranscriptMeta{
		ID:           t.Conversation.ID,
		Name:         t.Conversation.Name,
		ExportedAt:   t.ExportedAt,
		MessageCount: len(t.Messages),
		Preview:      t.Preview(),
	}
}

// =============================================================================
// TRANSCRIPT STORE
// =============================================================================

// DefaultMaxTranscripts is used when a store is created with a negative limit.
const DefaultMaxTranscripts = 500

// TranscriptStore handles transcript persistence.
type TranscriptStore struct {
	// BaseDir is the directory for storing transcripts.
	BaseDir string

	// MaxTranscripts limits stored transcripts (0 = unlimited).
	MaxTranscripts int

	now func() time.Time
}

// NewTranscriptStore creates a store rooted at dir, creating it if needed.
func NewTranscriptStore(dir string, maxTranscripts int) (*TranscriptStore, error) {
	if dir == "" {
		return nil, errors.New("transcript directory is empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create transcript directory: %w", err)
	}
	if maxTranscripts < 0 {
		maxTranscripts = DefaultMaxTranscripts
	}
	return &TranscriptStore{
		BaseDir:        dir,
		MaxTranscripts: maxTranscripts,
		now:            time.Now,
	}, nil
}

// =============================================================================
// SAVE OPERATIONS
// =============================================================================

// Save writes t and returns the file path. ExportedAt is stamped with the
// current time.
func (s *TranscriptStore) Save(t *Transcript) (string, error) {
	if t == nil || t.Conversation.ID == "" {
		return "", ErrInvalidTranscript
	}
	t.ExportedAt = s.now().UTC()
	if t.Messages == nil {
		t.Messages = []model.Message{}
	}

	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return "", err
	}

	// RELIABILITY: Atomic write with fsync prevents data loss on crash
	path := s.filePath(t.Conversation.ID)
	if err := util.AtomicWriteFile(path, data, 0600); err != nil {
		return "", err
	}

	if s.MaxTranscripts > 0 {
		s.enforceLimit()
	}
	return path, nil
}

// enforceLimit removes the oldest transcripts if over limit.
func (s *TranscriptStore) enforceLimit() {
	metas, err := s.List()
	if err != nil || len(metas) <= s.MaxTranscripts {
		return
	}
	// List is newest first.
	for _, m := range metas[s.MaxTranscripts:] {
		_ = os.Remove(m.Path)
	}
}

// =============================================================================
// LOAD OPERATIONS
// =============================================================================

// Load retrieves a transcript by conversation id.
func (s *TranscriptStore) Load(id string) (*Transcript, error) {
	return s.loadFile(s.filePath(id))
}

func (s *TranscriptStore) loadFile(path string) (*Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrTranscriptNotFound
		}
		return nil, err
	}

	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return &t, nil
}

// LoadByIndex loads a transcript by its position in List (0 = most recent).
func (s *TranscriptStore) LoadByIndex(index int) (*Transcript, error) {
	metas, err := s.List()
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(metas) {
		return nil, ErrTranscriptNotFound
	}
	return s.loadFile(metas[index].Path)
}

// =============================================================================
// LIST OPERATIONS
// =============================================================================

// List returns all saved transcripts, most recently exported first.
// Unreadable files are skipped.
func (s *TranscriptStore) List() ([]TranscriptMeta, error) {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []TranscriptMeta{}, nil
		}
		return nil, err
	}

	metas := make([]TranscriptMeta, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(s.BaseDir, entry.Name())
		t, err := s.loadFile(path)
		if err != nil {
			continue
		}
		meta := t.Meta()
		meta.Path = path
		metas = append(metas, meta)
	}

	sort.SliceStable(metas, func(i, j int) bool {
		return metas[i].ExportedAt.After(metas[j].ExportedAt)
	})
	return metas, nil
}

// Search finds transcripts whose name or message text contains query
// (case-insensitive). An empty query matches everything.
func (s *TranscriptStore) Search(query string) ([]TranscriptMeta, error) {
	all, err := s.List()
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return all, nil
	}

	var results []TranscriptMeta
	for _, meta := range all {
		if strings.Contains(strings.ToLower(meta.Name), query) {
			results = append(results, meta)
			continue
		}
		t, err := s.loadFile(meta.Path)
		if err != nil {
			continue
		}
		for _, m := range t.Messages {
			if strings.Contains(strings.ToLower(m.Message), query) {
				results = append(results, meta)
				break
			}
		}
	}
	return results, nil
}

// =============================================================================
// DELETE OPERATIONS
// =============================================================================

// Delete removes a transcript by conversation id.
func (s *TranscriptStore) Delete(id string) error {
	if err := os.Remove(s.filePath(id)); err != nil {
		if os.IsNotExist(err) {
			return ErrTranscriptNotFound
		}
		return err
	}
	return nil
}

// Clear removes all saved transcripts.
func (s *TranscriptStore) Clear() error {
	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".json") {
			_ = os.Remove(filepath.Join(s.BaseDir, entry.Name()))
		}
	}
	return nil
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// filePath returns the file path for a conversation id. Ids come from the
// server, so anything outside [A-Za-z0-9._-] is replaced.
func (s *TranscriptStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, safeFileName(id)+".json")
}

func safeFileName(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		case r == '.' && b.Len() > 0:
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrTranscriptNotFound is returned when a transcript doesn't exist.
	ErrTranscriptNotFound = errors.New("transcript not found")

	// ErrInvalidTranscript is returned when saving a transcript without a conversation id.
	ErrInvalidTranscript = errors.New("transcript has no conversation id")
)

// =============================================================================
// DISPLAY
// =============================================================================

// FormatTranscriptList formats transcripts as a table for display.
func FormatTranscriptList(metas []TranscriptMeta) string {
	if len(metas) == 0 {
		return "No transcripts found."
	}

	var sb strings.Builder
	rule := strings.Repeat("-", 72) + "\n"
	sb.WriteString(rule)
	sb.WriteString(util.PadWidth("Name", 24) + " " + util.PadWidth("Exported", 17) + " " + util.PadWidth("Msgs", 5) + " Preview\n")
	sb.WriteString(rule)
	for _, m := range metas {
		sb.WriteString(util.PadWidth(util.TruncateWidth(m.Name, 24), 24) + " " +
			util.PadWidth(m.ExportedAt.Local().Format("2006-01-02 15:04"), 17) + " " +
			util.PadWidth(strconv.Itoa(m.MessageCount), 5) + " " +
			util.TruncateWidth(m.Preview, 30) + "\n")
	}
	return sb.String()
}
