package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"flashplay/models"
	"flashplay/services/streams"
)

type streamService interface {
	ExtractMovie(ctx context.Context, tmdbID string) (*models.StreamResponse, error)
	ExtractSeries(ctx context.Context, tmdbID string, season, episode int) (*models.StreamResponse, error)
}

var _ streamService = (*streams.Service)(nil)

// StreamsHandler exposes direct stream extraction. When extraction fails the
// response carries fallback:true so the client drops back to the iframe embed.
type StreamsHandler struct {
	Service streamService
}

func NewStreamsHandler(s streamService) *StreamsHandler {
	return &StreamsHandler{Service: s}
}

// Register mounts the stream routes under /api/stream. Middleware applies to
// this subrouter only.
func (h *StreamsHandler) Register(r *mux.Router, middleware ...mux.MiddlewareFunc) {
	sub := r.PathPrefix("/api/stream").Subrouter()
	sub.Use(middleware...)
	sub.HandleFunc("/movie/{tmdbId}", h.Movie).Methods(http.MethodGet)
	sub.HandleFunc("/series/{tmdbId}/{season}/{episode}", h.Series).Methods(http.MethodGet)
	sub.HandleFunc("/health", h.Health).Methods(http.MethodGet)
}

func (h *StreamsHandler) Movie(w http.ResponseWriter, r *http.Request) {
	tmdbID := mux.Vars(r)["tmdbId"]
	log.Printf("[streams] movie request: %s", tmdbID)

	res, err := h.Service.ExtractMovie(r.Context(), tmdbID)
	h.respond(w, res, err)
}

func (h *StreamsHandler) Series(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	tmdbID := vars["tmdbId"]

	season, err := strconv.Atoi(vars["season"])
	if err != nil || season < 1 {
		writeJSON(w, http.StatusBadRequest, models.StreamResponse{Error: "invalid season"})
		return
	}
	episode, err := strconv.Atoi(vars["episode"])
	if err != nil || episode < 1 {
		writeJSON(w, http.StatusBadRequest, models.StreamResponse{Error: "invalid episode"})
		return
	}

	log.Printf("[streams] series request: %s S%dE%d", tmdbID, season, episode)
	res, err := h.Service.ExtractSeries(r.Context(), tmdbID, season, episode)
	h.respond(w, res, err)
}

func (h *StreamsHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":    "ok",
		"service":   "stream-extractor",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *StreamsHandler) respond(w http.ResponseWriter, res *models.StreamResponse, err error) {
	if err != nil || res == nil || len(res.Sources) == 0 || res.Sources[0].URL == "" {
		msg := "No streams found"
		if err != nil {
			log.Printf("[streams] extraction error: %v", err)
			msg = err.Error()
		}
		writeJSON(w, http.StatusNotFound, models.StreamResponse{Error: msg, Fallback: true})
		return
	}
	res.Success = true
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}
