// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package apitest provides an in-process fake of the AILA service for
// tests. It keeps users, conversations and messages in memory, streams
// scripted chat replies, records every call in order, and can be told to
// fail specific routes.
package apitest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/jeranaias/aila/internal/model"
)

// SessionCookie is the name of the cookie the fake issues on login.
const SessionCookie = "session_token"

// VerificationCode is the code every registration expects.
const VerificationCode = "123456"

type user struct {
	password string
	email    string
	verified bool
}

type failure struct {
	status int
	detail string
	left   int // < 0 means forever
}

type ctxKey struct{}

// Server is a fake AILA backend.
type Server struct {
	*httptest.Server

	mu            sync.Mutex
	users         map[string]*user
	sessions      map[string]string
	conversations map[string][]model.Conversation
	messages      map[string][]model.Message
	failures      map[string]*failure
	calls         []string
	chatRequests  []model.ChatRequest

	reply      []string
	abortReply bool
	gate       chan struct{}
}

// NewServer starts a fake backend. Close it when done.
func NewServer() *Server {
	s := &Server{
		users:         make(map[string]*user),
		sessions:      make(map[string]string),
		conversations: make(map[string][]model.Conversation),
		messages:      make(map[string][]model.Message),
		failures:      make(map[string]*failure),
		reply:         []string{`data: {"response": "Hello", "status": 200}` + "\n\n"},
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.injectFailures)

	r.Post("/login", s.handleLogin)
	r.Post("/register", s.handleRegister)
	r.Post("/verify", s.handleVerify)
	r.Post("/resend-code", s.handleResend)
	r.Post("/logout", s.handleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.requireSession)

		r.Get("/get_user", s.handleGetUser)
		r.Get("/user_conversations", s.handleListConversations)
		r.Post("/new_conversation", s.handleNewConversation)
		r.Post("/update_conversation", s.handleRenameConversation)
		r.Get("/messages", s.handleListMessages)
		r.Post("/new_message", s.handleNewMessage)
		r.Post("/user_feedback", s.handleFeedback)
		r.Post("/request", s.handleChat)
	})
	return r
}

// =============================================================================
// MIDDLEWARE
// =============================================================================

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls = append(s.calls, r.Method+" "+r.URL.Path)
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		f := s.failures[r.URL.Path]
		var status int
		var detail string
		if f != nil && f.left != 0 {
			status, detail = f.status, f.detail
			if f.left > 0 {
				f.left--
			}
		}
		s.mu.Unlock()

		if status != 0 {
			writeDetail(w, status, detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(SessionCookie)
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Not authenticated")
			return
		}
		s.mu.Lock()
		username, ok := s.sessions[c.Value]
		s.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "Session expired")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, username)))
	})
}

// =============================================================================
// SCRIPTING
// =============================================================================

// AddUser registers an account directly.
func (s *Server) AddUser(username, password, email string, verified bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[username] = &user{password: password, email: email, verified: verified}
}

// AddConversation creates a conversation for username and returns it.
func (s *Server) AddConversation(username, name string) model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addConversationLocked(username, name)
}

func (s *Server) addConversationLocked(username, name string) model.Conversation {
	conv := model.Conversation{ID: uuid.NewString(), Name: name}
	s.conversations[username] = append([]model.Conversation{conv}, s.conversations[username]...)
	return conv
}

// AddMessages appends stored messages to a conversation.
func (s *Server) AddMessages(conversationID string, msgs ...model.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range msgs {
		m.Pending = false
		s.messages[conversationID] = append(s.messages[conversationID], m)
	}
}

// Messages returns the stored log of a conversation.
func (s *Server) Messages(conversationID string) []model.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return model.CloneMessages(s.messages[conversationID])
}

// Conversations returns username's conversations, newest first.
func (s *Server) Conversations(username string) []model.Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.Conversation(nil), s.conversations[username]...)
}

// IsVerified reports a user's verification state.
func (s *Server) IsVerified(username string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[username]
	return u != nil && u.verified
}

// SetReply scripts the raw chunks of the next chat replies. Each chunk is
// flushed separately.
func (s *Server) SetReply(chunks ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = chunks
	s.abortReply = false
}

// SetBrokenReply scripts chunks after which the connection is cut.
func (s *Server) SetBrokenReply(chunks ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reply = chunks
	s.abortReply = true
}

// HoldReplies makes chat replies wait, after their first chunk, until
// release is called.
func (s *Server) HoldReplies() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.gate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { close(gate) })
	}
}

// Fail makes every request to path answer status with detail.
func (s *Server) Fail(path string, status int, detail string) {
	s.FailN(path, status, detail, -1)
}

// FailN makes the next n requests to path fail.
func (s *Server) FailN(path string, status int, detail string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = &failure{status: status, detail: detail, left: n}
}

// ClearFailures removes all scripted failures.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]*failure)
}

// Calls returns "METHOD /path" for every request, in arrival order.
func (s *Server) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

// ResetCalls forgets recorded calls.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = nil
}

// ChatRequests returns the bodies of all chat turns received.
func (s *Server) ChatRequests() []model.ChatRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ChatRequest(nil), s.chatRequests...)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid body: %v", err))
		return false
	}
	return true
}

func username(r *http.Request) string {
	name, _ := r.Context().Value(ctxKey{}).(string)
	return name
}

func now() string {
	return model.FormatTimestamp(time.Now())
}
