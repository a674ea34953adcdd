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
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/centauraa/angel-context/assembly"
	"github.com/centauraa/angel-context/core"
	"github.com/centauraa/angel-context/search"
	"github.com/centauraa/angel-context/storage"
)

// ContextBuilder assembles therapeutic context for one user and
// session. *assembly.Engine satisfies it.
type ContextBuilder interface {
	BuildContext(ctx context.Context, userId string, session []core.Turn, opts ...assembly.BuildOption) (*assembly.Assembled, error)
}

// SimilaritySearcher finds past chunks relevant to a query.
// *search.Searcher satisfies it.
type SimilaritySearcher interface {
	Search(ctx context.Context, userId, query string) ([]search.Result, error)
}

// Server is the HTTP API over context assembly and semantic search.
type Server struct {
	builder  ContextBuilder
	searcher SimilaritySearcher
	history  storage.HistoryStore
	logger   *slog.Logger
	server   *http.Server

	host string
	port int
}

// NewServer creates a server with the given dependencies.
func NewServer(
	builder ContextBuilder,
	searcher SimilaritySearcher,
	history storage.HistoryStore,
	host string,
	port int,
) *Server {
	return &Server{
		builder:  builder,
		searcher: searcher,
		history:  history,
		logger:   slog.Default().With("component", "server"),
		host:     host,
		port:     port,
	}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Post("/api/v1/context/build", s.handleBuildContext)
	r.Post("/api/v1/search/similar", s.handleSearchSimilar)
	r.Get("/api/v1/users/{id}/recent-conversations", s.handleRecentConversations)
	r.Get("/health", s.handleHealth)

	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}
	s.logger.Info("starting server", "addr", addr)
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
