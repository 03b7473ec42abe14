// Package chat holds the conversational surface over search and SQL
// generation: an ordered per-session, per-mode turn log and the service that
// runs a turn and records it.
package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Mode selects which assistant a turn belongs to.
type Mode string

const (
	ModeSearch Mode = "search"
	ModeSQL    Mode = "sql"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool { return m == ModeSearch || m == ModeSQL }

// Roles of a turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Turn is one message in a session log.
type Turn struct {
	Role    string    `json:"role"`
	Content string    `json:"content"`
	Mode    Mode      `json:"mode"`
	At      time.Time `json:"at"`
}

// History is an ordered log of turns per session and mode.
type History interface {
	Append(ctx context.Context, session string, t Turn) error
	List(ctx context.Context, session string, mode Mode) ([]Turn, error)
}

// DefaultMaxTurns bounds each session log; older turns are dropped first.
const DefaultMaxTurns = 200

// --- Memory ---

// MemoryHistory keeps logs in process memory.
type MemoryHistory struct {
	mu    sync.Mutex
	max   int
	turns map[string][]Turn
}

// NewMemoryHistory creates a MemoryHistory keeping at most max turns per
// log. max <= 0 uses DefaultMaxTurns.
func NewMemoryHistory(max int) *MemoryHistory {
	if max <= 0 {
		max = DefaultMaxTurns
	}
	return &MemoryHistory{max: max, turns: map[string][]Turn{}}
}

func (h *MemoryHistory) Append(_ context.Context, session string, t Turn) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	k := historyKey(session, t.Mode)
	log := append(h.turns[k], t)
	if len(log) > h.max {
		log = append([]Turn(nil), log[len(log)-h.max:]...)
	}
	h.turns[k] = log
	return nil
}

func (h *MemoryHistory) List(_ context.Context, session string, mode Mode) ([]Turn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Turn{}, h.turns[historyKey(session, mode)]...), nil
}

// --- Redis ---

// RedisHistory stores each log as a Redis list of JSON turns that expires
// ttl after the last append.
type RedisHistory struct {
	client *redis.Client
	ttl    time.Duration
	max    int64
}

// NewRedisHistory wraps client. ttl <= 0 keeps logs forever.
func NewRedisHistory(client *redis.Client, ttl time.Duration, max int) *RedisHistory {
	if max <= 0 {
		max = DefaultMaxTurns
	}
	return &RedisHistory{client: client, ttl: ttl, max: int64(max)}
}

// DialRedis connects to addr and verifies the connection.
func DialRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("chat: redis ping %s: %w", addr, err)
	}
	return client, nil
}

func (h *RedisHistory) Append(ctx context.Context, session string, t Turn) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("chat: encode turn: %w", err)
	}
	k := historyKey(session, t.Mode)
	_, err = h.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, k, data)
		p.LTrim(ctx, k, -h.max, -1)
		if h.ttl > 0 {
			p.Expire(ctx, k, h.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("chat: append history: %w", err)
	}
	return nil
}

func (h *RedisHistory) List(ctx context.Context, session string, mode Mode) ([]Turn, error) {
	raw, err := h.client.LRange(ctx, historyKey(session, mode), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("chat: list history: %w", err)
	}
	out := make([]Turn, 0, len(raw))
	for _, r := range raw {
		var t Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			return nil, fmt.Errorf("chat: decode turn: %w", err)
		}
		out = append(out, t)
	}
	return out, nil
}

func historyKey(session string, mode Mode) string {
	return "docsearch:history:" + session + ":" + string(mode)
}
