// Package api is the HTTP boundary: scan analysis, feedback intake and
// service status.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/moabill/ledgerd/internal/feedback"
	"github.com/moabill/ledgerd/internal/imghash"
	"github.com/moabill/ledgerd/internal/pipeline"
	"github.com/moabill/ledgerd/internal/record"
	"github.com/moabill/ledgerd/internal/scanerr"
	"github.com/moabill/ledgerd/internal/scanlog"
)

// Analyzer runs one scan through the extraction pipeline.
type Analyzer interface {
	Analyze(ctx context.Context, req pipeline.Request, sess *scanlog.Session) (record.Candidate, error)
}

// FeedbackProcessor consumes one user save action.
type FeedbackProcessor interface {
	ProcessUserFeedback(ctx context.Context, in feedback.Input)
}

// EventWriter persists finished analysis results.
type EventWriter interface {
	WriteEvent(ctx context.Context, requestID uuid.UUID, c record.Candidate) (uuid.UUID, error)
}

type Server struct {
	router   *chi.Mux
	port     int
	logger   *slog.Logger
	analyzer Analyzer
	feedback FeedbackProcessor
	events   EventWriter
	sink     scanlog.Sink
}

func NewServer(port int, apiToken string, logger *slog.Logger, analyzer Analyzer, fb FeedbackProcessor, events EventWriter, sink scanlog.Sink) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:   router,
		port:     port,
		logger:   logger,
		analyzer: analyzer,
		feedback: fb,
		events:   events,
		sink:     sink,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/ledgerd/status", s.status)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(BearerAuthMiddleware(apiToken))
		r.Post("/analyze", s.analyze)
		r.Post("/feedback", s.handleFeedback)
	})

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

// BearerAuthMiddleware rejects requests without the configured bearer
// token. An empty token disables auth (local development).
func BearerAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token != "" {
				got := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
				if got != token {
					writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "ledgerd",
		"status":  "serving",
	})
}

// AnalyzeRequest is one scan submission.
type AnalyzeRequest struct {
	Text           string  `json:"text"`
	ImageB64       string  `json:"image_b64,omitempty"`
	ImageMediaType string  `json:"image_media_type,omitempty"`
	OCRQuality     float64 `json:"ocr_quality"`
	PreferPast     bool    `json:"prefer_past"`
}

// AnalyzeResponse carries the extracted record and its event ID.
type AnalyzeResponse struct {
	RequestID uuid.UUID        `json:"request_id"`
	EventID   *uuid.UUID       `json:"event_id,omitempty"`
	Record    record.Candidate `json:"record"`
}

// errorResponse is the uniform terminal-failure shape: a human-readable
// message plus whether a retry is sensible.
type errorResponse struct {
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "잘못된 요청 형식입니다.", Retryable: false})
		return
	}
	if strings.TrimSpace(req.Text) == "" && req.ImageB64 == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "분석할 텍스트나 이미지가 없습니다.", Retryable: false})
		return
	}

	requestID := uuid.New()
	sess := scanlog.NewSession(requestID, s.logger)

	result, err := s.analyzer.Analyze(r.Context(), pipeline.Request{
		Text:           req.Text,
		ImageB64:       req.ImageB64,
		ImageMediaType: req.ImageMediaType,
		OCRQuality:     req.OCRQuality,
		PreferPast:     req.PreferPast,
	}, sess)

	s.flushScanLog(sess)

	if err != nil {
		kind := scanerr.KindOf(err)
		s.logger.Warn("analysis failed", "request_id", requestID, "kind", string(kind), "error", err)
		writeJSON(w, statusForKind(kind), errorResponse{
			Message:   scanerr.UserMessage(kind),
			Retryable: scanerr.Retryable(err),
		})
		return
	}

	resp := AnalyzeResponse{RequestID: requestID, Record: result}
	if s.events != nil {
		if id, err := s.events.WriteEvent(r.Context(), requestID, result); err != nil {
			s.logger.Error("persist event failed", "request_id", requestID, "error", err)
		} else {
			resp.EventID = &id
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// FeedbackRequest is one user save action against an earlier analysis.
type FeedbackRequest struct {
	Original          *record.Candidate `json:"original"`
	Final             record.Candidate  `json:"final"`
	ConfirmationLevel string            `json:"confirmation_level"`
	ImageB64          string            `json:"image_b64,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Message: "잘못된 요청 형식입니다.", Retryable: false})
		return
	}

	var hash string
	if req.ImageB64 != "" {
		h, err := imghash.HashBase64(req.ImageB64)
		if err != nil {
			s.logger.Warn("image hash failed", "error", err)
		} else {
			hash = h
		}
	}

	in := feedback.Input{
		Original:  req.Original,
		Final:     req.Final,
		Level:     feedback.ConfirmationLevel(req.ConfirmationLevel),
		ImageHash: hash,
	}

	// Best effort: the save flow never waits on feedback processing.
	go func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), 30*time.Second)
		defer cancel()
		s.feedback.ProcessUserFeedback(ctx, in)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}

// flushScanLog persists the session off the request path.
func (s *Server) flushScanLog(sess *scanlog.Session) {
	if s.sink == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := sess.Flush(ctx, s.sink); err != nil {
			s.logger.Error("flush pipeline log failed", "request_id", sess.RequestID, "error", err)
		}
	}()
}

func statusForKind(kind scanerr.Kind) int {
	switch kind {
	case scanerr.KindTimeout:
		return http.StatusGatewayTimeout
	case scanerr.KindAuth:
		return http.StatusBadGateway
	case scanerr.KindQuota:
		return http.StatusTooManyRequests
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
