package chat

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/docsearch/engine/domain"
)

// Searcher runs a document search.
type Searcher interface {
	Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error)
	TopK() int
}

// SQLGenerator drafts SQL for a question.
type SQLGenerator interface {
	Generate(ctx context.Context, question string) (string, error)
}

// SearchReply is the assistant's answer in search mode.
type SearchReply struct {
	Message string                `json:"message"`
	Results []domain.SearchResult `json:"results"`
}

// Service runs chat turns and records them in History. Failures of the
// backing services are recorded as readable assistant turns and returned.
type Service struct {
	search  Searcher
	sql     SQLGenerator
	history History
	logger  *slog.Logger
	now     func() time.Time
}

// NewService creates a Service.
func NewService(search Searcher, sql SQLGenerator, history History, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{search: search, sql: sql, history: history, logger: logger, now: time.Now}
}

// History returns the ordered turns of session in mode.
func (s *Service) History(ctx context.Context, session string, mode Mode) ([]Turn, error) {
	return s.history.List(ctx, session, mode)
}

// Search answers query with at most k results; k <= 0 uses the searcher's
// default.
func (s *Service) Search(ctx context.Context, session, query string, k int) (*SearchReply, error) {
	if k <= 0 {
		k = s.search.TopK()
	}
	s.record(ctx, session, ModeSearch, RoleUser, query)

	results, err := s.search.Search(ctx, query, k)
	if err != nil {
		s.record(ctx, session, ModeSearch, RoleAssistant, SearchErrorMessage(err))
		return nil, err
	}
	reply := &SearchReply{Message: SearchMessage(len(results)), Results: results}
	s.record(ctx, session, ModeSearch, RoleAssistant, reply.Message)
	return reply, nil
}

// SQL drafts a query for question.
func (s *Service) SQL(ctx context.Context, session, question string) (string, error) {
	s.record(ctx, session, ModeSQL, RoleUser, question)
	sql, err := s.sql.Generate(ctx, question)
	if err != nil {
		s.record(ctx, session, ModeSQL, RoleAssistant, SQLErrorMessage(err))
		return "", err
	}
	s.record(ctx, session, ModeSQL, RoleAssistant, sql)
	return sql, nil
}

// record appends a turn; a history failure never fails the turn itself.
func (s *Service) record(ctx context.Context, session string, mode Mode, role, content string) {
	t := Turn{Role: role, Content: content, Mode: mode, At: s.now().UTC()}
	if err := s.history.Append(ctx, session, t); err != nil {
		s.logger.Warn("history append failed", "session", session, "mode", mode, "error", err)
	}
}

// SearchMessage summarizes a result count for the user.
func SearchMessage(n int) string {
	if n == 0 {
		return "I couldn't find any relevant documents in the index."
	}
	return fmt.Sprintf("I found **%d** relevant documents for your query.", n)
}

// SearchErrorMessage renders a search failure for the user.
func SearchErrorMessage(err error) string {
	return "An error occurred during search: " + err.Error()
}

// SQLErrorMessage renders a SQL generation failure for the user.
func SQLErrorMessage(err error) string {
	return "Error creating SQL: " + err.Error()
}
