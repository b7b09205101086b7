package api

import (
	"bytes"
	"errors"
	"net/http"
	"time"

	"joke-server/internal/ai"
	"joke-server/internal/models"
	"joke-server/pkg/logger"
)

const (
	msgFetchFailed     = "Unable to fetch joke. Please try again later."
	msgAINotConfigured = "AI joke generation is not configured"
	msgAIFailed        = "Unable to generate AI joke"
	msgAPINotFound     = "API endpoint not found"
	msgInternal        = "Internal server error"

	isoMillisUTC = "2006-01-02T15:04:05.000Z"
)

type jokeResponse struct {
	Success bool          `json:"success"`
	Source  models.Source `json:"source"`
	Data    models.Joke   `json:"data"`
}

type listResponse struct {
	Success bool          `json:"success"`
	Count   int           `json:"count"`
	Data    []models.Joke `json:"data"`
}

type healthResponse struct {
	Status    string  `json:"status"`
	Timestamp string  `json:"timestamp"`
	Uptime    float64 `json:"uptime"`
}

func (s *Server) handleRandom(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Random(r.Context())
	if err != nil {
		logger.Error("Error fetching joke",
			logger.Err(err),
			logger.RequestID(GetRequestID(r.Context())),
		)
		WriteError(w, http.StatusInternalServerError, msgFetchFailed)
		return
	}

	WriteJSON(w, http.StatusOK, jokeResponse{Success: true, Source: res.Source, Data: res.Joke})
}

func (s *Server) handleAll(w http.ResponseWriter, r *http.Request) {
	jokes := s.svc.All()
	if jokes == nil {
		jokes = []models.Joke{}
	}

	WriteJSON(w, http.StatusOK, listResponse{Success: true, Count: len(jokes), Data: jokes})
}

func (s *Server) handleAI(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.AI(r.Context())
	if err != nil {
		if errors.Is(err, ai.ErrNotConfigured) {
			WriteError(w, http.StatusServiceUnavailable, msgAINotConfigured)
			return
		}
		logger.Error("Error generating AI joke",
			logger.Err(err),
			logger.RequestID(GetRequestID(r.Context())),
		)
		WriteError(w, http.StatusInternalServerError, msgAIFailed)
		return
	}

	WriteJSON(w, http.StatusOK, jokeResponse{Success: true, Source: res.Source, Data: res.Joke})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	now := s.now()
	WriteJSON(w, http.StatusOK, healthResponse{
		Status:    "healthy",
		Timestamp: now.UTC().Format(isoMillisUTC),
		Uptime:    now.Sub(s.started).Seconds(),
	})
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, msgAPINotFound)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, "index.html", time.Time{}, bytes.NewReader(s.index))
}
