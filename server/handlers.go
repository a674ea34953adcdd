// Copyright 2025 Centauraa Health
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/centauraa/angel-context/assembly"
	"github.com/centauraa/angel-context/core"
)

const (
	defaultRecentDays  = 90
	defaultRecentLimit = 10
)

type turnPayload struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type buildContextRequest struct {
	UserId      string        `json:"user_id"`
	Session     []turnPayload `json:"session"`
	TokenBudget int           `json:"token_budget,omitempty"`

	// IncludeSimilar defaults to true when absent.
	IncludeSimilar *bool `json:"include_similar,omitempty"`
}

type usagePayload struct {
	HistoryTokens int `json:"history_tokens"`
	SimilarTokens int `json:"similar_tokens"`
	SessionTokens int `json:"session_tokens"`
	TotalTokens   int `json:"total_tokens"`
	Budget        int `json:"budget"`
}

type buildContextResponse struct {
	Context  string       `json:"context"`
	Topics   []string     `json:"topics,omitempty"`
	Usage    usagePayload `json:"usage"`
	Degraded []string     `json:"degraded,omitempty"`
}

func (s *Server) handleBuildContext(w http.ResponseWriter, r *http.Request) {
	var req buildContextRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserId == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	session := make([]core.Turn, len(req.Session))
	for i, t := range req.Session {
		session[i] = core.Turn{
			Speaker:   core.ParseSpeaker(t.Speaker),
			Text:      t.Text,
			TurnIndex: i,
		}
	}

	var opts []assembly.BuildOption
	if req.TokenBudget > 0 {
		opts = append(opts, assembly.WithRequestBudget(req.TokenBudget))
	}
	if req.IncludeSimilar != nil && !*req.IncludeSimilar {
		opts = append(opts, assembly.WithoutSimilar())
	}

	out, err := s.builder.BuildContext(r.Context(), req.UserId, session, opts...)
	if err != nil {
		s.logger.Error("context build failed", "user", req.UserId, "err", err)
		respondError(w, http.StatusInternalServerError, "context assembly failed")
		return
	}

	respondJSON(w, http.StatusOK, buildContextResponse{
		Context: out.Text,
		Topics:  out.Topics,
		Usage: usagePayload{
			HistoryTokens: out.Usage.HistoryTokens,
			SimilarTokens: out.Usage.SimilarTokens,
			SessionTokens: out.Usage.SessionTokens,
			TotalTokens:   out.Usage.TotalTokens,
			Budget:        out.Usage.Budget,
		},
		Degraded: out.Degraded,
	})
}

type searchRequest struct {
	UserId string `json:"user_id"`
	Query  string `json:"query"`
}

type searchMatch struct {
	ConversationId string  `json:"conversation_id"`
	Text           string  `json:"text"`
	Similarity     float32 `json:"similarity"`
	CrisisLevel    string  `json:"crisis_level,omitempty"`
}

type searchResponse struct {
	Results []searchMatch `json:"results"`
}

func (s *Server) handleSearchSimilar(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserId == "" {
		respondError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	results, err := s.searcher.Search(r.Context(), req.UserId, req.Query)
	if err != nil {
		s.logger.Error("search failed", "user", req.UserId, "err", err)
		respondError(w, http.StatusInternalServerError, "search failed")
		return
	}

	matches := make([]searchMatch, 0, len(results))
	for _, res := range results {
		m := searchMatch{
			ConversationId: res.Chunk.ConversationId,
			Text:           res.Chunk.Text,
			Similarity:     res.Similarity,
		}
		if res.Chunk.CrisisLevel != core.CrisisNone {
			m.CrisisLevel = res.Chunk.CrisisLevel.String()
		}
		matches = append(matches, m)
	}
	respondJSON(w, http.StatusOK, searchResponse{Results: matches})
}

type conversationPayload struct {
	Id           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	MessageCount int       `json:"message_count"`
}

type recentConversationsResponse struct {
	Conversations []conversationPayload `json:"conversations"`
}

func (s *Server) handleRecentConversations(w http.ResponseWriter, r *http.Request) {
	userId := chi.URLParam(r, "id")
	if userId == "" {
		respondError(w, http.StatusBadRequest, "user id is required")
		return
	}

	days := queryInt(r, "days", defaultRecentDays)
	limit := queryInt(r, "limit", defaultRecentLimit)
	cutoff := time.Now().AddDate(0, 0, -days)

	summaries, err := s.history.RecentConversations(r.Context(), userId, cutoff, limit)
	if err != nil {
		s.logger.Error("history lookup failed", "user", userId, "err", err)
		respondError(w, http.StatusInternalServerError, "history lookup failed")
		return
	}

	conversations := make([]conversationPayload, 0, len(summaries))
	for _, sum := range summaries {
		conversations = append(conversations, conversationPayload{
			Id:           sum.Id,
			Title:        sum.Title,
			CreatedAt:    sum.CreatedAt,
			MessageCount: sum.MessageCount,
		})
	}
	respondJSON(w, http.StatusOK, recentConversationsResponse{Conversations: conversations})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
