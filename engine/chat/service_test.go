package chat

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/WessleyAI/docsearch/engine/domain"
)

type mockSearcher struct {
	results []domain.SearchResult
	err     error
	gotK    int
}

func (m *mockSearcher) TopK() int { return 3 }

func (m *mockSearcher) Search(_ context.Context, _ string, k int) ([]domain.SearchResult, error) {
	m.gotK = k
	return m.results, m.err
}

type mockSQL struct {
	sql string
	err error
}

func (m *mockSQL) Generate(context.Context, string) (string, error) { return m.sql, m.err }

type failingHistory struct{}

func (failingHistory) Append(context.Context, string, Turn) error { return errors.New("down") }
func (failingHistory) List(context.Context, string, Mode) ([]Turn, error) {
	return nil, errors.New("down")
}

func TestServiceSearchRecordsTurns(t *testing.T) {
	s := &mockSearcher{results: []domain.SearchResult{{Score: 0.9, Content: "a"}, {Score: 0.5, Content: "b"}}}
	h := NewMemoryHistory(0)
	svc := NewService(s, &mockSQL{}, h, nil)
	svc.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	reply, err := svc.Search(context.Background(), "s1", "warranty", 0)
	if err != nil {
		t.Fatal(err)
	}
	if s.gotK != 3 {
		t.Fatalf("k = %d, want default 3", s.gotK)
	}
	if reply.Message != "I found **2** relevant documents for your query." || len(reply.Results) != 2 {
		t.Fatalf("reply = %+v", reply)
	}
	turns, _ := svc.History(context.Background(), "s1", ModeSearch)
	if len(turns) != 2 || turns[0].Role != RoleUser || turns[1].Content != reply.Message {
		t.Fatalf("turns = %+v", turns)
	}
	if !turns[0].At.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("at = %v", turns[0].At)
	}
}

func TestServiceSearchNoResults(t *testing.T) {
	svc := NewService(&mockSearcher{}, &mockSQL{}, NewMemoryHistory(0), nil)
	reply, err := svc.Search(context.Background(), "s", "q", 2)
	if err != nil {
		t.Fatal(err)
	}
	if reply.Message != "I couldn't find any relevant documents in the index." {
		t.Fatalf("message = %q", reply.Message)
	}
}

func TestServiceSearchFailureIsRecorded(t *testing.T) {
	h := NewMemoryHistory(0)
	svc := NewService(&mockSearcher{err: &domain.QueryServiceError{Index: "docs", Err: errors.New("timeout")}}, &mockSQL{}, h, nil)
	if _, err := svc.Search(context.Background(), "s", "q", 1); err == nil {
		t.Fatal("expected error")
	}
	turns, _ := h.List(context.Background(), "s", ModeSearch)
	if len(turns) != 2 || !strings.HasPrefix(turns[1].Content, "An error occurred during search: ") {
		t.Fatalf("turns = %+v", turns)
	}
}

func TestServiceSQL(t *testing.T) {
	h := NewMemoryHistory(0)
	svc := NewService(&mockSearcher{}, &mockSQL{sql: "SELECT 1"}, h, nil)
	sql, err := svc.SQL(context.Background(), "s", "one")
	if err != nil || sql != "SELECT 1" {
		t.Fatalf("sql=%q err=%v", sql, err)
	}

	svc = NewService(&mockSearcher{}, &mockSQL{err: &domain.CompletionServiceError{Status: 500, Message: "boom"}}, h, nil)
	if _, err := svc.SQL(context.Background(), "s", "two"); err == nil {
		t.Fatal("expected error")
	}
	turns, _ := h.List(context.Background(), "s", ModeSQL)
	if len(turns) != 4 || !strings.HasPrefix(turns[3].Content, "Error creating SQL: ") {
		t.Fatalf("turns = %+v", turns)
	}
}

func TestServiceSurvivesHistoryFailure(t *testing.T) {
	svc := NewService(&mockSearcher{}, &mockSQL{sql: "SELECT 1"}, failingHistory{}, nil)
	if _, err := svc.SQL(context.Background(), "s", "q"); err != nil {
		t.Fatalf("history failure should not fail the turn: %v", err)
	}
}
