// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	"github.com/jeranaias/aila/internal/model"
)

// =============================================================================
// AUTH
// =============================================================================

// Login authenticates and returns the user details. On success the
// session cookie is stored in the client's jar.
func (c *Client) Login(ctx context.Context, username, password string) (model.Identity, error) {
	body := map[string]string{"username": username, "password": password}
	var out struct {
		UserDetails model.Identity `json:"user_details"`
	}
	if err := c.do(ctx, http.MethodPost, "/login", nil, body, &out); err != nil {
		return model.Identity{}, err
	}
	return out.UserDetails, nil
}

// Register creates an account. The service emails a verification code.
func (c *Client) Register(ctx context.Context, username, password, email string) (bool, error) {
	body := map[string]string{"username": username, "password": password, "email": email}
	return c.doBool(ctx, "/register", body)
}

// Verify submits the emailed verification code.
func (c *Client) Verify(ctx context.Context, username, code string) (bool, error) {
	body := map[string]string{"username": username, "code": code}
	return c.doBool(ctx, "/verify", body)
}

// ResendCode asks the service to email a fresh verification code.
func (c *Client) ResendCode(ctx context.Context, username, email string) (bool, error) {
	body := map[string]string{"username": username, "email": email}
	return c.doBool(ctx, "/resend-code", body)
}

// Logout ends the server-side session.
func (c *Client) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, nil, nil)
}

// CurrentUser probes the session and returns its user.
func (c *Client) CurrentUser(ctx context.Context) (model.Identity, error) {
	var id model.Identity
	err := c.do(ctx, http.MethodGet, "/get_user", nil, nil, &id)
	return id, err
}

// doBool posts body and reads a boolean answer. Any other non-null JSON
// value counts as true, matching how the service's answers are consumed.
func (c *Client) doBool(ctx context.Context, path string, body any) (bool, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, path, nil, body, &raw); err != nil {
		return false, err
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	trimmed := string(raw)
	return trimmed != "null" && trimmed != `""` && trimmed != "0", nil
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

// ListConversations returns the user's conversations in server order.
func (c *Client) ListConversations(ctx context.Context, username string) ([]model.Conversation, error) {
	var convs []model.Conversation
	q := url.Values{"username": {username}}
	if err := c.do(ctx, http.MethodGet, "/user_conversations", q, nil, &convs); err != nil {
		return nil, err
	}
	return convs, nil
}

// CreateConversation creates a conversation named name.
func (c *Client) CreateConversation(ctx context.Context, username, name string) (model.Conversation, error) {
	body := map[string]string{"conversation_name": name, "username": username}
	var conv model.Conversation
	if err := c.do(ctx, http.MethodPost, "/new_conversation", nil, body, &conv); err != nil {
		return model.Conversation{}, err
	}
	if conv.ID == "" {
		return model.Conversation{}, &ClientError{Type: ErrTypeInvalidResponse, Message: "server returned conversation without id"}
	}
	return conv, nil
}

// RenameConversation changes a conversation's name.
func (c *Client) RenameConversation(ctx context.Context, conversationID, name string) error {
	body := map[string]string{"conversation_name": name, "conversation_id": conversationID}
	return c.do(ctx, http.MethodPost, "/update_conversation", nil, body, nil)
}

// =============================================================================
// MESSAGES
// =============================================================================

// ListMessages returns the stored log of a conversation.
func (c *Client) ListMessages(ctx context.Context, conversationID string) ([]model.Message, error) {
	var msgs []model.Message
	q := url.Values{"conversation_id": {conversationID}}
	if err := c.do(ctx, http.MethodGet, "/messages", q, nil, &msgs); err != nil {
		return nil, err
	}
	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}

// createMessageRequest is the body of /new_message.
type createMessageRequest struct {
	ConversationID string     `json:"conversation_id"`
	Text           string     `json:"text"`
	Role           model.Role `json:"role"`
	ID             string     `json:"id"`
	Feedback       *bool      `json:"feedback"`
}

// CreateMessage persists m in a conversation. The returned record is the
// server's when it sends one back, otherwise m itself.
func (c *Client) CreateMessage(ctx context.Context, conversationID string, m model.Message) (model.Message, error) {
	body := createMessageRequest{
		ConversationID: conversationID,
		Text:           m.Message,
		Role:           m.Role,
		ID:             m.ID,
		Feedback:       m.Feedback,
	}
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodPost, "/new_message", nil, body, &raw); err != nil {
		return model.Message{}, err
	}

	created := m
	created.Pending = false
	var server model.Message
	if err := json.Unmarshal(raw, &server); err == nil && server.ID != "" {
		created = server
	}
	return created, nil
}

// SubmitFeedback records a rating for a message.
func (c *Client) SubmitFeedback(ctx context.Context, messageID, conversationID string, feedback bool) error {
	body := struct {
		MessageID      string `json:"message_id"`
		ConversationID string `json:"conversation_id"`
		Feedback       bool   `json:"feedback"`
	}{messageID, conversationID, feedback}
	return c.do(ctx, http.MethodPost, "/user_feedback", nil, body, nil)
}

// =============================================================================
// CHAT
// =============================================================================

// Chat starts a turn and returns the streamed body. The caller must close
// it. A non-2xx answer or an answer without a body never yields a stream.
func (c *Client) Chat(ctx context.Context, req model.ChatRequest) (io.ReadCloser, error) {
	if req.ConversationHistory == nil {
		req.ConversationHistory = []model.Message{}
	}
	httpReq, err := c.newRequest(ctx, http.MethodPost, "/request", nil, req)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.stream.Do(httpReq)
	if err != nil {
		return nil, transportError(err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drainAndClose(resp.Body)
		return nil, decodeAPIError(resp)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		return nil, ErrNoBody
	}
	return resp.Body, nil
}
