// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/jeranaias/aila/internal/api"
	"github.com/jeranaias/aila/internal/logging"
	"github.com/jeranaias/aila/internal/model"
	"github.com/jeranaias/aila/internal/session"
	"github.com/jeranaias/aila/internal/stream"
)

// =============================================================================
// CONSTANTS & ERRORS
// =============================================================================

// DefaultHistoryWindow is how many prior messages accompany a turn.
const DefaultHistoryWindow = 10

// Texts shown to the user when a turn fails.
const (
	ErrorTextBot   = "Error from bot"
	ErrorTextQuota = "No quota to generate answer!"
)

var (
	// ErrNilService is returned when a Controller is built without collaborators.
	ErrNilService = errors.New("chat: nil service")

	// ErrTurnInProgress means a reply is still streaming in this conversation.
	ErrTurnInProgress = errors.New("a reply is still streaming in this conversation")

	// ErrNoConversation means no conversation is selected.
	ErrNoConversation = errors.New("no conversation selected")

	// ErrUnknownConversation means a reference matched no conversation.
	ErrUnknownConversation = errors.New("conversation not found")

	// ErrUnknownMessage means a message id is not in the log.
	ErrUnknownMessage = errors.New("message not found")
)

// TurnError is a failed turn. Text is what the user is shown.
type TurnError struct {
	Text string
	Err  error
}

func (e *TurnError) Error() string {
	return e.Text + ": " + e.Err.Error()
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// =============================================================================
// COLLABORATORS
// =============================================================================

// Service is the part of the service client the controller needs.
type Service interface {
	ListConversations(ctx context.Context, username string) ([]model.Conversation, error)
	CreateConversation(ctx context.Context, username, name string) (model.Conversation, error)
	RenameConversation(ctx context.Context, conversationID, name string) error
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
	CreateMessage(ctx context.Context, conversationID string, m model.Message) (model.Message, error)
	SubmitFeedback(ctx context.Context, messageID, conversationID string, feedback bool) error
	Chat(ctx context.Context, req model.ChatRequest) (io.ReadCloser, error)
}

// Session supplies the signed-in user and is told about failed calls so it
// can sign out when the session is gone.
type Session interface {
	Identity() model.Identity
	HandleError(err error) bool
}

// =============================================================================
// EVENTS
// =============================================================================

// EventKind identifies a state change.
type EventKind int

const (
	EventConversationsChanged EventKind = iota
	EventActiveChanged
	EventMessagesReplaced
	EventMessagesAppended
	EventFold
	EventError
)

// Event describes a state change for front ends.
type Event struct {
	Kind           EventKind
	ConversationID string
	MessageID      string
	Text           string // Accumulated reply for EventFold, error text for EventError
}

// =============================================================================
// CONTROLLER
// =============================================================================

// Options configures a Controller. Zero values pick defaults.
type Options struct {
	HistoryWindow int
	MaxFrameBytes int
	Logger        logrus.FieldLogger
	Now           func() time.Time
	NewID         func() string
	OnEvent       func(Event)
}

// TurnResult describes a completed turn.
type TurnResult struct {
	ConversationID string
	User           model.Message
	Assistant      model.Message
	Stats          stream.Stats

	// PersistErrors holds create-message failures; the turn still counts.
	PersistErrors []error

	// Refetched is true only when the stored messages replaced the log;
	// a failed or stale refetch leaves it false.
	Refetched bool
}

// Controller owns the registry, the message log and the active selection.
// Safe for concurrent use; no lock is held across a service call.
type Controller struct {
	svc     Service
	session Session
	opts    Options
	log     logrus.FieldLogger

	registry *Registry
	messages *MessageLog

	mu      sync.Mutex
	active  model.Conversation
	errText string
	turns   map[string]bool
}

// NewController wires a controller to its collaborators.
func NewController(svc Service, sess Session, opts Options) (*Controller, error) {
	if svc == nil || sess == nil {
		return nil, ErrNilService
	}
	if opts.HistoryWindow <= 0 {
		opts.HistoryWindow = DefaultHistoryWindow
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Controller{
		svc:      svc,
		session:  sess,
		opts:     opts,
		log:      logging.Or(opts.Logger),
		registry: NewRegistry(),
		messages: NewMessageLog(),
		turns:    make(map[string]bool),
	}, nil
}

// Registry returns the conversation registry.
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Log returns the message log of the active conversation.
func (c *Controller) Log() *MessageLog {
	return c.messages
}

// Active returns the selected conversation (zero if none).
func (c *Controller) Active() model.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// ErrorText returns the text of the last failed turn, cleared on submit.
func (c *Controller) ErrorText() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errText
}

// InTurn reports whether a reply is streaming in conversationID.
func (c *Controller) InTurn(conversationID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.turns[conversationID]
}

func (c *Controller) emit(e Event) {
	if c.opts.OnEvent != nil {
		c.opts.OnEvent(e)
	}
}

func (c *Controller) username() (string, error) {
	id := c.session.Identity()
	if id.Username == "" {
		return "", session.ErrNotAuthenticated
	}
	return id.Username, nil
}

// failed logs a service failure and lets the session react to it.
func (c *Controller) failed(err error, msg string, fields logrus.Fields) {
	c.log.WithError(err).WithFields(fields).Warn(msg)
	c.session.HandleError(err)
}

// Reset forgets all state, as on sign-out. Streaming turns keep running
// but their writes no longer land.
func (c *Controller) Reset() {
	c.mu.Lock()
	c.active = model.Conversation{}
	c.errText = ""
	c.messages.Reset("")
	c.mu.Unlock()
	c.registry.Clear()

	c.emit(Event{Kind: EventConversationsChanged})
	c.emit(Event{Kind: EventActiveChanged})
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// LoadConversations fetches the user's conversations. When nothing is
// selected (or the selection vanished) the first one is selected.
func (c *Controller) LoadConversations(ctx context.Context) error {
	user, err := c.username()
	if err != nil {
		return err
	}

	convs, err := c.svc.ListConversations(ctx, user)
	if err != nil {
		c.failed(err, "chat: listing conversations failed", logrus.Fields{"username": user})
		return err
	}
	c.registry.Replace(convs)
	c.emit(Event{Kind: EventConversationsChanged})

	active := c.Active()
	if _, ok := c.registry.Get(active.ID); ok && !active.IsZero() {
		return nil
	}
	if first, ok := c.registry.At(0); ok {
		return c.Select(ctx, first)
	}
	return nil
}

// Select makes conv active and replaces the log with its stored messages.
func (c *Controller) Select(ctx context.Context, conv model.Conversation) error {
	c.mu.Lock()
	c.active = conv
	gen := c.messages.Reset(conv.ID)
	c.mu.Unlock()
	c.emit(Event{Kind: EventActiveChanged, ConversationID: conv.ID})

	_, err := c.refetch(ctx, conv.ID, gen)
	return err
}

// SelectRef selects a conversation by 1-based position, id, id prefix or name.
func (c *Controller) SelectRef(ctx context.Context, ref string) (model.Conversation, error) {
	conv, ok := c.Resolve(ref)
	if !ok {
		return model.Conversation{}, ErrUnknownConversation
	}
	return conv, c.Select(ctx, conv)
}

// Resolve finds a conversation by 1-based position, id, id prefix or name
// without selecting it.
func (c *Controller) Resolve(ref string) (model.Conversation, bool) {
	ref = strings.TrimSpace(ref)
	if n, ok := parsePosition(ref); ok {
		return c.registry.At(n - 1)
	}
	return c.registry.Lookup(ref)
}

func parsePosition(s string) (int, bool) {
	if s == "" || len(s) > 6 {
		return 0, false
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, n > 0
}

// refetch replaces the log with the stored messages if gen is still current.
// swapped is false when the fetch failed or was stale.
func (c *Controller) refetch(ctx context.Context, conversationID string, gen uint64) (swapped bool, err error) {
	msgs, err := c.svc.ListMessages(ctx, conversationID)
	if err != nil {
		c.failed(err, "chat: fetching messages failed", logrus.Fields{"conversation_id": conversationID})
		return false, err
	}
	if !c.messages.Replace(gen, msgs) {
		c.log.WithField("conversation_id", conversationID).Debug("chat: dropping stale message fetch")
		return false, nil
	}
	c.emit(Event{Kind: EventMessagesReplaced, ConversationID: conversationID})
	return true, nil
}

// NewConversation creates a conversation named after the registry size,
// puts it first and selects it with an empty log.
func (c *Controller) NewConversation(ctx context.Context) (model.Conversation, error) {
	user, err := c.username()
	if err != nil {
		return model.Conversation{}, err
	}

	name := model.DefaultConversationName(c.registry.Len())
	conv, err := c.svc.CreateConversation(ctx, user, name)
	if err != nil {
		c.failed(err, "chat: creating conversation failed", logrus.Fields{"username": user})
		return model.Conversation{}, err
	}

	c.registry.Prepend(conv)
	c.mu.Lock()
	c.active = conv
	c.messages.Reset(conv.ID)
	c.mu.Unlock()

	c.emit(Event{Kind: EventConversationsChanged})
	c.emit(Event{Kind: EventActiveChanged, ConversationID: conv.ID})
	return conv, nil
}

// Rename renames a conversation. A blank name is ignored. The selection
// never changes, though the active entry's name follows a rename.
func (c *Controller) Rename(ctx context.Context, conversationID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}

	if err := c.svc.RenameConversation(ctx, conversationID, name); err != nil {
		c.failed(err, "chat: renaming conversation failed", logrus.Fields{"conversation_id": conversationID})
		return err
	}

	c.registry.Rename(conversationID, name)
	c.mu.Lock()
	if c.active.ID == conversationID {
		c.active.Name = name
	}
	c.mu.Unlock()
	c.emit(Event{Kind: EventConversationsChanged, ConversationID: conversationID})
	return nil
}

// Feedback rates a message of the active conversation. The local entry
// changes only after the service accepted the rating.
func (c *Controller) Feedback(ctx context.Context, messageID string, value bool) error {
	conv := c.Active()
	if conv.IsZero() {
		return ErrNoConversation
	}

	if err := c.svc.SubmitFeedback(ctx, messageID, conv.ID, value); err != nil {
		c.failed(err, "chat: submitting feedback failed", logrus.Fields{
			"conversation_id": conv.ID,
			"message_id":      messageID,
		})
		return err
	}
	c.messages.SetFeedback(messageID, value)
	return nil
}

// =============================================================================
// TURNS
// =============================================================================

// Submit runs one chat turn in the active conversation. Blank input is a
// no-op returning (nil, nil). On failure ErrorText holds the user-facing
// text and the error is a *TurnError.
func (c *Controller) Submit(ctx context.Context, input string) (*TurnResult, error) {
	text := strings.TrimSpace(input)
	if text == "" {
		return nil, nil
	}

	c.mu.Lock()
	conv := c.active
	if conv.IsZero() {
		c.mu.Unlock()
		return nil, ErrNoConversation
	}
	if c.turns[conv.ID] {
		c.mu.Unlock()
		return nil, ErrTurnInProgress
	}

	history := c.messages.Last(c.opts.HistoryWindow)
	now := model.FormatTimestamp(c.opts.Now())
	user := model.NewMessage(c.opts.NewID(), model.RoleUser, text, now)
	reply := model.NewMessage(c.opts.NewID(), model.RoleAssistant, "", now)
	gen := c.messages.Generation()
	c.messages.Append(gen, user, reply)
	c.errText = ""
	c.turns[conv.ID] = true
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.turns, conv.ID)
		c.mu.Unlock()
	}()

	c.emit(Event{Kind: EventMessagesAppended, ConversationID: conv.ID, MessageID: reply.ID})

	result := &TurnResult{ConversationID: conv.ID, User: user, Assistant: reply}
	fields := logrus.Fields{"conversation_id": conv.ID, "message_id": reply.ID}

	body, err := c.svc.Chat(ctx, model.ChatRequest{Message: text, ConversationHistory: history})
	if err != nil {
		c.failed(err, "chat: reply request failed", fields)
		return result, c.fail(conv.ID, requestErrorText(err), err)
	}
	defer body.Close()

	fold := func(acc string) {
		ts := model.FormatTimestamp(c.opts.Now())
		result.Assistant.Message = acc
		result.Assistant.Timestamp = ts
		if c.messages.Update(gen, reply.ID, func(m *model.Message) {
			m.Message = acc
			m.Timestamp = ts
		}) {
			c.emit(Event{Kind: EventFold, ConversationID: conv.ID, MessageID: reply.ID, Text: acc})
		}
	}
	asm := stream.NewAssembler(fold,
		stream.WithMaxFrameBytes(c.opts.MaxFrameBytes),
		stream.WithLogger(c.log.WithFields(fields)),
		stream.WithClock(c.opts.Now),
	)
	err = stream.Read(ctx, body, asm)
	result.Stats = asm.Stats()
	if err != nil {
		c.log.WithError(err).WithFields(fields).Warn("chat: reply stream broke")
		return result, c.fail(conv.ID, ErrorTextQuota, err)
	}

	c.persist(ctx, result, fields)

	result.Refetched, _ = c.refetch(ctx, conv.ID, gen)
	return result, nil
}

// requestErrorText picks the text for a reply request that never produced
// a stream. Only an answer without a usable body blames the bot; a request
// that never got an answer reads like a broken stream.
func requestErrorText(err error) string {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) || errors.Is(err, api.ErrNoBody) {
		return ErrorTextBot
	}
	return ErrorTextQuota
}

// persist stores the user message, then the reply. A failure is recorded
// and does not stop the second call.
func (c *Controller) persist(ctx context.Context, result *TurnResult, fields logrus.Fields) {
	for _, m := range []model.Message{result.User, result.Assistant} {
		m.Pending = false
		if _, err := c.svc.CreateMessage(ctx, result.ConversationID, m); err != nil {
			c.failed(err, "chat: storing message failed", logrus.Fields{
				"conversation_id": fields["conversation_id"],
				"message_id":      m.ID,
				"role":            m.Role,
			})
			result.PersistErrors = append(result.PersistErrors, err)
		}
	}
}

func (c *Controller) fail(conversationID, text string, err error) error {
	c.mu.Lock()
	c.errText = text
	c.mu.Unlock()
	c.emit(Event{Kind: EventError, ConversationID: conversationID, Text: text})
	return &TurnError{Text: text, Err: err}
}
