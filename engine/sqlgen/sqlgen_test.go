package sqlgen

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/WessleyAI/docsearch/engine/domain"
	"github.com/WessleyAI/docsearch/pkg/metrics"
)

type mockCompleter struct {
	system, user string
	temperature  float32
	reply        string
	err          error
	calls        int
	wait         bool
}

func (m *mockCompleter) Complete(ctx context.Context, system, user string, temperature float32) (string, error) {
	m.calls++
	m.system, m.user, m.temperature = system, user, temperature
	if m.wait {
		<-ctx.Done()
		return "", ctx.Err()
	}
	return m.reply, m.err
}

type statusErr struct{ code int }

func (e statusErr) Error() string   { return "upstream" }
func (e statusErr) StatusCode() int { return e.code }

func TestGenerate(t *testing.T) {
	llm := &mockCompleter{reply: "\n  SELECT TOP 10 * FROM ttvOrders;  \n"}
	m := metrics.New()
	g := New(llm, time.Second, nil, m)

	sql, err := g.Generate(context.Background(), "show me ten orders")
	if err != nil {
		t.Fatal(err)
	}
	if sql != "SELECT TOP 10 * FROM ttvOrders;" {
		t.Fatalf("sql = %q", sql)
	}
	if llm.temperature != 0 || llm.user != "show me ten orders" {
		t.Fatalf("unexpected call: temp=%v user=%q", llm.temperature, llm.user)
	}
	for _, table := range []string{"ttvCommissionDetails", "ttvCommissions", "ttvCustomers", "ttvOrders", "ttvOrderDetails", "ttvTrees"} {
		if !strings.Contains(llm.system, "-- Table: "+table) {
			t.Errorf("system prompt missing table %s", table)
		}
	}
	if got := testutil.ToFloat64(m.SQLRequests.WithLabelValues(metrics.OutcomeOK)); got != 1 {
		t.Fatalf("ok requests = %v", got)
	}
}

func TestGenerateServiceError(t *testing.T) {
	g := New(&mockCompleter{err: statusErr{code: 429}}, 0, nil, nil)
	_, err := g.Generate(context.Background(), "how many customers?")
	var ce *domain.CompletionServiceError
	if !errors.As(err, &ce) || ce.Status != 429 {
		t.Fatalf("expected CompletionServiceError 429, got %v", err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	g := New(&mockCompleter{wait: true}, 10*time.Millisecond, nil, nil)
	_, err := g.Generate(context.Background(), "how many customers?")
	var ce *domain.CompletionServiceError
	if !errors.As(err, &ce) || !strings.Contains(ce.Message, "timed out") {
		t.Fatalf("expected timeout CompletionServiceError, got %v", err)
	}
}

func TestGenerateRejectsEmptyQuestion(t *testing.T) {
	llm := &mockCompleter{}
	_, err := New(llm, 0, nil, nil).Generate(context.Background(), " ")
	if !errors.Is(err, domain.ErrEmptyQuery) || llm.calls != 0 {
		t.Fatalf("err=%v calls=%d", err, llm.calls)
	}
}
