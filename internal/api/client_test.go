// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/aila/internal/api/apitest"
	"github.com/jeranaias/aila/internal/logging"
	"github.com/jeranaias/aila/internal/model"
)

// =============================================================================
// HELPERS
// =============================================================================

func newTestClient(t *testing.T, srv *apitest.Server) *Client {
	t.Helper()
	return NewClient(&Config{BaseURL: srv.URL, Timeout: 5 * time.Second, Logger: logging.Discard()})
}

func loggedIn(t *testing.T) (*apitest.Server, *Client) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	srv.AddUser("ana", "pw", "ana@example.com", true)

	c := newTestClient(t, srv)
	_, err := c.Login(context.Background(), "ana", "pw")
	require.NoError(t, err)
	return srv, c
}

// =============================================================================
// CONFIG
// =============================================================================

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(nil)
	assert.Equal(t, DefaultBaseURL, c.BaseURL())
	assert.NotNil(t, c.Jar())

	c = NewClient(&Config{BaseURL: "http://example.com/"})
	assert.Equal(t, "http://example.com", c.BaseURL())
}

// =============================================================================
// AUTH
// =============================================================================

func TestLogin_ReturnsUserDetails(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("ana", "pw", "ana@example.com", false)

	c := newTestClient(t, srv)
	id, err := c.Login(context.Background(), "ana", "pw")
	require.NoError(t, err)

	assert.Equal(t, "ana", id.Username)
	assert.Equal(t, "ana@example.com", id.Email)
	require.NotNil(t, id.Verified)
	assert.False(t, *id.Verified)

	// Session cookie makes the probe succeed.
	probed, err := c.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ana", probed.Username)
}

func TestLogin_BadPasswordSurfacesDetail(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	srv.AddUser("ana", "pw", "ana@example.com", true)

	_, err := newTestClient(t, srv).Login(context.Background(), "ana", "nope")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid username or password", ErrorMessage(err))
	assert.True(t, IsUnauthorized(err))
}

func TestRegisterVerifyResend(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()
	c := newTestClient(t, srv)
	ctx := context.Background()

	ok, err := c.Register(ctx, "bo", "pw", "bo@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.Register(ctx, "bo", "pw", "bo@example.com")
	assert.Equal(t, "Username already registered", ErrorMessage(err))

	ok, err = c.ResendCode(ctx, "bo", "bo@example.com")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.Verify(ctx, "bo", "000000")
	assert.Equal(t, "Invalid verification code", ErrorMessage(err))

	ok, err = c.Verify(ctx, "bo", apitest.VerificationCode)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, srv.IsVerified("bo"))
}

func TestLogout_ClearsSession(t *testing.T) {
	_, c := loggedIn(t)
	ctx := context.Background()

	require.NoError(t, c.Logout(ctx))

	_, err := c.CurrentUser(ctx)
	assert.True(t, IsUnauthorized(err))
}

func TestCurrentUser_Unauthenticated(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	_, err := newTestClient(t, srv).CurrentUser(context.Background())
	assert.True(t, IsUnauthorized(err))
	assert.Equal(t, "Not authenticated", ErrorMessage(err))
}

// =============================================================================
// CONVERSATIONS & MESSAGES
// =============================================================================

func TestConversationLifecycle(t *testing.T) {
	srv, c := loggedIn(t)
	ctx := context.Background()

	conv, err := c.CreateConversation(ctx, "ana", "Conversation 0")
	require.NoError(t, err)
	assert.NotEmpty(t, conv.ID)
	assert.Equal(t, "Conversation 0", conv.Name)

	require.NoError(t, c.RenameConversation(ctx, conv.ID, "Trip plans"))

	convs, err := c.ListConversations(ctx, "ana")
	require.NoError(t, err)
	require.Len(t, convs, 1)
	assert.Equal(t, "Trip plans", convs[0].Name)

	err = c.RenameConversation(ctx, "missing", "x")
	assert.Equal(t, "Conversation not found", ErrorMessage(err))

	assert.Equal(t, []string{
		"POST /login",
		"POST /new_conversation",
		"POST /update_conversation",
		"GET /user_conversations",
		"POST /update_conversation",
	}, srv.Calls())
}

func TestMessagesAndFeedback(t *testing.T) {
	srv, c := loggedIn(t)
	ctx := context.Background()
	conv := srv.AddConversation("ana", "c")

	msgs, err := c.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	assert.NotNil(t, msgs)
	assert.Empty(t, msgs)

	in := model.NewMessage("m1", model.RoleAssistant, "Hello", "2025-01-01T00:00:00.000Z")
	created, err := c.CreateMessage(ctx, conv.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "m1", created.ID)
	assert.False(t, created.Pending)

	require.NoError(t, c.SubmitFeedback(ctx, "m1", conv.ID, false))

	msgs, err = c.ListMessages(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "Hello", msgs[0].Message)
	require.NotNil(t, msgs[0].Feedback)
	assert.False(t, *msgs[0].Feedback)
}

func TestCreateMessage_NonRecordAnswerKeepsInput(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"message": "ok"}`))
	}))
	defer ts.Close()

	c := NewClient(&Config{BaseURL: ts.URL, Logger: logging.Discard()})
	in := model.NewMessage("m1", model.RoleUser, "Hi", "t")
	got, err := c.CreateMessage(context.Background(), "c1", in)
	require.NoError(t, err)
	assert.Equal(t, "m1", got.ID)
	assert.Equal(t, "Hi", got.Message)
}

// =============================================================================
// CHAT
// =============================================================================

func TestChat_StreamsBody(t *testing.T) {
	srv, c := loggedIn(t)
	srv.SetReply("data: {\"response\": \"Hel\"}\n\n", "data: {\"response\": \"lo\"}\n\n")

	body, err := c.Chat(context.Background(), model.ChatRequest{Message: "Hi"})
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "data: {\"response\": \"Hel\"}\n\ndata: {\"response\": \"lo\"}\n\n", string(data))

	reqs := srv.ChatRequests()
	require.Len(t, reqs, 1)
	assert.Equal(t, "Hi", reqs[0].Message)
	assert.NotNil(t, reqs[0].ConversationHistory)
}

func TestChat_NotOK(t *testing.T) {
	srv, c := loggedIn(t)
	srv.Fail("/request", http.StatusTooManyRequests, "No quota")

	body, err := c.Chat(context.Background(), model.ChatRequest{Message: "Hi"})
	assert.Nil(t, body)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
}

func TestChat_NoBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Length", "0")
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	c := NewClient(&Config{BaseURL: ts.URL, Logger: logging.Discard()})
	_, err := c.Chat(context.Background(), model.ChatRequest{Message: "Hi"})
	assert.ErrorIs(t, err, ErrNoBody)
}

func TestChat_BrokenStream(t *testing.T) {
	srv, c := loggedIn(t)
	srv.SetBrokenReply("data: {\"response\": \"Hel\"}\n\n")

	body, err := c.Chat(context.Background(), model.ChatRequest{Message: "Hi"})
	require.NoError(t, err)
	defer body.Close()

	_, err = io.ReadAll(body)
	assert.Error(t, err)
}

// =============================================================================
// ERRORS
// =============================================================================

func TestConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c := NewClient(&Config{BaseURL: url, Logger: logging.Discard()})
	_, err := c.CurrentUser(context.Background())

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Equal(t, ErrTypeConnection, clientErr.Type)
	assert.True(t, IsConnection(err))
}

func TestTimeout(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer ts.Close()

	c := NewClient(&Config{BaseURL: ts.URL, Timeout: 50 * time.Millisecond, Logger: logging.Discard()})
	_, err := c.CurrentUser(context.Background())
	assert.True(t, IsTimeout(err), "got %v", err)
}

func TestDecodeAPIError_Shapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string detail", `{"detail":"Username taken"}`, "Username taken"},
		{"list detail", `{"detail":[{"msg":"field required"}]}`, `[{"msg":"field required"}]`},
		{"plain text", "upstream exploded", "upstream exploded"},
		{"empty", "", "Bad Request"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			rec.WriteHeader(http.StatusBadRequest)
			rec.WriteString(tt.body)

			apiErr := decodeAPIError(rec.Result())
			assert.Equal(t, tt.want, apiErr.Detail)
			assert.Equal(t, tt.want, apiErr.ErrorMessage())
		})
	}
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, "boom", ErrorMessage(errors.New("boom")))
	assert.Equal(t, "detail", ErrorMessage(&APIError{Status: 400, Detail: "detail"}))
	assert.Equal(t, 0, StatusCode(errors.New("x")))
}

func TestRateLimiterHonoursContext(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	c := NewClient(&Config{BaseURL: srv.URL, RequestsPerSecond: 0.001, Burst: 1, Logger: logging.Discard()})
	ctx := context.Background()
	_, _ = c.CurrentUser(ctx) // consumes the only token

	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err := c.CurrentUser(ctx)

	var clientErr *ClientError
	require.ErrorAs(t, err, &clientErr)
	assert.Len(t, srv.Calls(), 1)
}
