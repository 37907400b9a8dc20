// Package rag wires retrieval, generation, and session state into the
// question-answering system behind the API and CLI.
package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lectern/lectern/internal/chat"
	"github.com/lectern/lectern/internal/knowledge"
	"github.com/lectern/lectern/internal/log"
	"github.com/lectern/lectern/internal/session"
	"github.com/lectern/lectern/internal/tools"
)

// ErrEmptyQuery indicates a blank user query.
var ErrEmptyQuery = errors.New("empty query")

// QueryResponse is the complete result of one answered query.
type QueryResponse struct {
	Answer    string         `json:"answer"`
	Sources   []tools.Source `json:"sources"`
	SessionID string         `json:"session_id"`
}

// CourseStats summarizes the indexed corpus.
type CourseStats struct {
	TotalCourses int      `json:"total_courses"`
	CourseTitles []string `json:"course_titles"`
}

// Config contains all required parameters for the System.
type Config struct {
	Store     *knowledge.Store
	Manager   *tools.Manager
	Generator *chat.Generator
	Sessions  *session.Store
	Indexer   *Indexer
	Logger    log.Logger
}

func (cfg Config) validate() error {
	if cfg.Store == nil {
		return errors.New("knowledge store is required")
	}
	if cfg.Manager == nil {
		return errors.New("tool manager is required")
	}
	if cfg.Generator == nil {
		return errors.New("chat generator is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if cfg.Indexer == nil {
		return errors.New("indexer is required")
	}
	return nil
}

// System is the top-level question-answering facade.
//
// Safe for concurrent use.
type System struct {
	store    *knowledge.Store
	manager  *tools.Manager
	gen      *chat.Generator
	sessions *session.Store
	indexer  *Indexer
	logger   log.Logger
}

// New creates the System.
func New(cfg Config) (*System, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}
	return &System{
		store:    cfg.Store,
		manager:  cfg.Manager,
		gen:      cfg.Generator,
		sessions: cfg.Sessions,
		indexer:  cfg.Indexer,
		logger:   logger,
	}, nil
}

// Query answers one user question. An empty sessionID starts a fresh
// conversation; the minted ID comes back in the response so the client can
// continue it.
//
// Sources reflect only the tools executed for THIS answer: they are
// harvested from the manager and reset before returning.
func (s *System) Query(ctx context.Context, query, sessionID string) (*QueryResponse, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if sessionID == "" {
		sessionID = s.sessions.NewSessionID()
	}

	history := s.sessions.History(sessionID)

	answer, err := s.gen.Answer(ctx, query, history)
	if err != nil {
		return nil, fmt.Errorf("answering query: %w", err)
	}

	sources := s.manager.LastSources()
	s.manager.ResetSources()

	s.sessions.Append(sessionID,
		session.Turn{Role: session.RoleUser, Text: query},
		session.Turn{Role: session.RoleModel, Text: answer},
	)

	s.logger.Info("query answered",
		"session_id", sessionID, "sources", len(sources), "answer_length", len(answer))
	return &QueryResponse{
		Answer:    answer,
		Sources:   sources,
		SessionID: sessionID,
	}, nil
}

// Ingest indexes every course document in dir.
func (s *System) Ingest(ctx context.Context, dir string) (*IngestResult, error) {
	return s.indexer.IngestDirectory(ctx, dir)
}

// Stats returns corpus analytics for the courses endpoint.
func (s *System) Stats() CourseStats {
	return CourseStats{
		TotalCourses: s.store.CourseCount(),
		CourseTitles: s.store.CourseTitles(),
	}
}

// ClearSession drops one conversation's history.
func (s *System) ClearSession(id string) {
	s.sessions.Clear(id)
}
