package main

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/WessleyAI/docsearch/engine/chat"
	"github.com/WessleyAI/docsearch/engine/domain"
)

const defaultSession = "default"

func newMux(svc *chat.Service, logger *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", handleHealth)
	mux.HandleFunc("POST /api/search", handleSearch(svc, logger))
	mux.HandleFunc("POST /api/sql", handleSQL(svc, logger))
	mux.HandleFunc("GET /api/history", handleHistory(svc, logger))
	return mux
}

// --- Handlers ---

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// SearchRequest is the JSON body for POST /api/search.
type SearchRequest struct {
	Session string `json:"session,omitempty"`
	Query   string `json:"query"`
	K       int    `json:"k,omitempty"`
}

// SQLRequest is the JSON body for POST /api/sql.
type SQLRequest struct {
	Session  string `json:"session,omitempty"`
	Question string `json:"question"`
}

// SQLResponse is the JSON response for POST /api/sql.
type SQLResponse struct {
	SQL string `json:"sql"`
}

func handleSearch(svc *chat.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SearchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		reply, err := svc.Search(r.Context(), session(req.Session), req.Query, req.K)
		if err != nil {
			status, msg := http.StatusBadGateway, chat.SearchErrorMessage(err)
			if isValidation(err) {
				status, msg = http.StatusBadRequest, err.Error()
			}
			logger.Error("search failed", "error", err)
			writeError(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, reply)
	}
}

func handleSQL(svc *chat.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SQLRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		sql, err := svc.SQL(r.Context(), session(req.Session), req.Question)
		if err != nil {
			status, msg := http.StatusBadGateway, chat.SQLErrorMessage(err)
			if isValidation(err) {
				status, msg = http.StatusBadRequest, err.Error()
			}
			logger.Error("sql generation failed", "error", err)
			writeError(w, status, msg)
			return
		}
		writeJSON(w, http.StatusOK, SQLResponse{SQL: sql})
	}
}

func handleHistory(svc *chat.Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mode := chat.Mode(r.URL.Query().Get("mode"))
		if mode == "" {
			mode = chat.ModeSearch
		}
		if !mode.Valid() {
			writeError(w, http.StatusBadRequest, "mode must be search or sql")
			return
		}
		turns, err := svc.History(r.Context(), session(r.URL.Query().Get("session")), mode)
		if err != nil {
			logger.Error("history read failed", "error", err)
			writeError(w, http.StatusInternalServerError, "history unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"turns": turns})
	}
}

// --- Helpers ---

func session(s string) string {
	if s == "" {
		return defaultSession
	}
	return s
}

func isValidation(err error) bool {
	var ve *domain.ValidationError
	return errors.As(err, &ve)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
