// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package apitest

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/jeranaias/aila/internal/model"
)

// =============================================================================
// AUTH
// =============================================================================

func (s *Server) identityLocked(name string) model.Identity {
	u := s.users[name]
	return model.Identity{Username: name, Email: u.email, Verified: model.Bool(u.verified)}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	u := s.users[req.Username]
	if u == nil || u.password != req.Password {
		s.mu.Unlock()
		writeDetail(w, http.StatusUnauthorized, "Invalid username or password")
		return
	}
	token := uuid.NewString()
	s.sessions[token] = req.Username
	id := s.identityLocked(req.Username)
	s.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: token, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"user_details": id})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[req.Username]; exists {
		writeDetail(w, http.StatusBadRequest, "Username already registered")
		return
	}
	s.users[req.Username] = &user{password: req.Password, email: req.Email}
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Code     string `json:"code"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u := s.users[req.Username]
	if u == nil || req.Code != VerificationCode {
		writeDetail(w, http.StatusBadRequest, "Invalid verification code")
		return
	}
	u.verified = true
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) handleResend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.users[req.Username] == nil {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, c.Value)
		s.mu.Unlock()
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	id := s.identityLocked(username(r))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, id)
}

// =============================================================================
// CONVERSATIONS
// =============================================================================

func (s *Server) handleListConversations(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("username")
	if name != username(r) {
		writeDetail(w, http.StatusForbidden, "Not allowed")
		return
	}
	s.mu.Lock()
	convs := append([]model.Conversation{}, s.conversations[name]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, convs)
}

func (s *Server) handleNewConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name     string `json:"conversation_name"`
		Username string `json:"username"`
	}
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	conv := s.addConversationLocked(username(r), req.Name)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleRenameConversation(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"conversation_name"`
		ID   string `json:"conversation_id"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	convs := s.conversations[username(r)]
	for i := range convs {
		if convs[i].ID == req.ID {
			convs[i].Name = req.Name
			writeJSON(w, http.StatusOK, map[string]string{"message": "Conversation updated"})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Conversation not found")
}

// =============================================================================
// MESSAGES
// =============================================================================

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("conversation_id")
	s.mu.Lock()
	msgs := append([]model.Message{}, s.messages[id]...)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleNewMessage(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ConversationID string     `json:"conversation_id"`
		Text           string     `json:"text"`
		Role           model.Role `json:"role"`
		ID             string     `json:"id"`
		Feedback       *bool      `json:"feedback"`
	}
	if !decode(w, r, &req) {
		return
	}
	if !req.Role.Valid() {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid role")
		return
	}

	m := model.Message{
		ID:        req.ID,
		Message:   req.Text,
		Role:      req.Role,
		Timestamp: now(),
		Feedback:  req.Feedback,
	}
	s.mu.Lock()
	s.messages[req.ConversationID] = append(s.messages[req.ConversationID], m)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req struct {
		MessageID      string `json:"message_id"`
		ConversationID string `json:"conversation_id"`
		Feedback       bool   `json:"feedback"`
	}
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[req.ConversationID]
	for i := range msgs {
		if msgs[i].ID == req.MessageID {
			msgs[i].Feedback = model.Bool(req.Feedback)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Feedback recorded"})
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "Message not found")
}

// =============================================================================
// CHAT
// =============================================================================

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req model.ChatRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	s.chatRequests = append(s.chatRequests, req)
	chunks := append([]string(nil), s.reply...)
	abort := s.abortReply
	gate := s.gate
	s.mu.Unlock()

	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	if flusher != nil {
		flusher.Flush()
	}

	for i, c := range chunks {
		w.Write([]byte(c))
		if flusher != nil {
			flusher.Flush()
		}
		if i == 0 && gate != nil {
			select {
			case <-gate:
			case <-r.Context().Done():
				return
			}
		}
	}

	if abort {
		// Cuts the connection without terminating the chunked body.
		panic(http.ErrAbortHandler)
	}
}
