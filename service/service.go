// Package service exposes the HTTP boundary: document writes are accepted,
// validated against the index schema, and enqueued; queries run against the
// latest committed snapshot.
package service

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/quarrysearch/quarry/index"
	"github.com/quarrysearch/quarry/indexwriter"
	"github.com/quarrysearch/quarry/internal/logging"
	"github.com/quarrysearch/quarry/schema"
	"github.com/quarrysearch/quarry/searcher"
)

// Service wires the write client, the searcher and the index provider behind
// HTTP handlers.
type Service struct {
	schemas  schema.Loader
	writes   *indexwriter.Client
	searcher *searcher.Searcher
	indexes  index.Loader
	logger   *slog.Logger
}

// New creates a Service.
func New(schemas schema.Loader, writes *indexwriter.Client, s *searcher.Searcher, indexes index.Loader, logger *slog.Logger) *Service {
	return &Service{
		schemas:  schemas,
		writes:   writes,
		searcher: s,
		indexes:  indexes,
		logger:   logging.Default(logger).With("component", "service"),
	}
}

// Handler returns the HTTP routes.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /index/{indexID}", s.handleIndexDoc)
	mux.HandleFunc("POST /index/{indexID}/batch", s.handleBatch)
	mux.HandleFunc("DELETE /index/{indexID}/doc/{docID}", s.handleDeleteDoc)
	mux.HandleFunc("POST /index/{indexID}/query", s.handleQuery)
	mux.HandleFunc("GET /index/{indexID}/stats", s.handleStats)
	return mux
}

// writeResponse acknowledges an accepted mutation. updated_at is the time
// the mutation was enqueued, not when it becomes visible.
type writeResponse struct {
	DocID     string `json:"__id"`
	UpdatedAt string `json:"updated_at"`
}

type batchResponse struct {
	Count     int    `json:"count"`
	UpdatedAt string `json:"updated_at"`
}

type queryRequest struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

type statsResponse struct {
	IndexID      string `json:"index_id"`
	DocCount     int    `json:"doc_count"`
	SegmentCount int    `json:"segment_count"`
	Generation   uint64 `json:"generation"`
}

type errorResponse struct {
	Message string `json:"message"`
}

func (s *Service) handleIndexDoc(w http.ResponseWriter, r *http.Request) {
	indexID := r.PathValue("indexID")

	sc, err := s.schemas.LoadSchema(indexID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var raw any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid json: " + err.Error()})
		return
	}
	doc, err := sc.ParseDocument(raw)
	if err != nil {
		s.writeError(w, err)
		return
	}

	if err := s.writes.IndexDoc(r.Context(), indexID, doc); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, writeResponse{DocID: doc.ID(), UpdatedAt: now()})
}

func (s *Service) handleBatch(w http.ResponseWriter, r *http.Request) {
	indexID := r.PathValue("indexID")

	sc, err := s.schemas.LoadSchema(indexID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	var raw []any
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid json: " + err.Error()})
		return
	}
	if len(raw) == 0 {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "empty batch"})
		return
	}

	batch := indexwriter.NewBatch(indexID)
	for _, item := range raw {
		doc, err := sc.ParseDocument(item)
		if err != nil {
			s.writeError(w, err)
			return
		}
		batch.IndexDoc(doc)
	}

	if _, err := s.writes.WriteBatch(r.Context(), batch); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, batchResponse{Count: batch.Len(), UpdatedAt: now()})
}

func (s *Service) handleDeleteDoc(w http.ResponseWriter, r *http.Request) {
	indexID := r.PathValue("indexID")
	docID := r.PathValue("docID")

	if err := s.writes.DeleteDoc(r.Context(), indexID, docID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, writeResponse{DocID: docID, UpdatedAt: now()})
}

func (s *Service) handleQuery(w http.ResponseWriter, r *http.Request) {
	indexID := r.PathValue("indexID")

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "invalid json: " + err.Error()})
		return
	}
	if req.Query == "" {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: "empty query"})
		return
	}

	res, err := s.searcher.Search(r.Context(), indexID, req.Query, req.Limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Service) handleStats(w http.ResponseWriter, r *http.Request) {
	indexID := r.PathValue("indexID")

	idx, err := s.indexes.LoadIndex(r.Context(), indexID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	reader, err := idx.Reload(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statsResponse{
		IndexID:      indexID,
		DocCount:     reader.DocCount(),
		SegmentCount: reader.SegmentCount(),
		Generation:   reader.Generation(),
	})
}

// writeError maps domain errors to HTTP statuses. Validation failures are
// the caller's fault; unknown indexes are 404; anything else is a 500.
func (s *Service) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, schema.ErrInvalidDocument):
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Message: err.Error()})
	case errors.Is(err, schema.ErrSchemaNotFound):
		s.writeJSON(w, http.StatusNotFound, errorResponse{Message: err.Error()})
	default:
		s.logger.Error("request failed", "error", err)
		s.writeJSON(w, http.StatusInternalServerError, errorResponse{Message: "internal error"})
	}
}

func (s *Service) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
