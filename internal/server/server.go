package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"go.uber.org/zap"

	"tokenpulse/internal/service"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// Server exposes the summary and dataset operations over HTTP.
type Server struct {
	processor *service.Processor
	logger    *zap.Logger
	http      *http.Server
}

func New(listen string, processor *service.Processor, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{processor: processor, logger: logger}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /transactions/summary", s.handleHourlySummary)
	mux.HandleFunc("GET /transactions/historical/summary", s.handleHistoricalSummary)
	mux.HandleFunc("GET /dataset/generate", s.handleDataset)

	s.http = &http.Server{
		Addr:         listen,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 10 * time.Minute,
	}
	return s
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.logger.Info("http server listening", zap.String("addr", s.http.Addr))
	err := s.http.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type envelope struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("write response failed", zap.Error(err))
	}
}

func (s *Server) badRequest(w http.ResponseWriter, msg string) {
	s.writeJSON(w, http.StatusBadRequest, envelope{Error: msg})
}

func (s *Server) tokenAddress(w http.ResponseWriter, r *http.Request) (string, bool) {
	address := r.URL.Query().Get("address")
	if !addressPattern.MatchString(address) {
		s.badRequest(w, "invalid token address")
		return "", false
	}
	return address, true
}

func (s *Server) handleHourlySummary(w http.ResponseWriter, r *http.Request) {
	address, ok := s.tokenAddress(w, r)
	if !ok {
		return
	}

	win, err := s.processor.HourlySummary(r.Context(), address)
	if err != nil {
		s.logger.Error("hourly summary failed", zap.String("token", address), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, envelope{Error: "summary failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Data: win, Message: "hourly summary"})
}

func (s *Server) handleHistoricalSummary(w http.ResponseWriter, r *http.Request) {
	address, ok := s.tokenAddress(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	fromDate := query.Get("fromDate")
	toDate := query.Get("toDate")
	if fromDate == "" || toDate == "" {
		s.badRequest(w, "fromDate and toDate are required (YYYY-MM-DD)")
		return
	}

	page := queryInt(query.Get("page"), 1)
	limit := queryInt(query.Get("limit"), 10)

	result, err := s.processor.HistoricalSummary(r.Context(), address, fromDate, toDate, page, limit)
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			s.badRequest(w, err.Error())
			return
		}
		s.logger.Error("historical summary failed", zap.String("token", address), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, envelope{Error: "historical summary failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Data: result, Message: "historical summary"})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	address, ok := s.tokenAddress(w, r)
	if !ok {
		return
	}

	query := r.URL.Query()
	fromDate := query.Get("fromDate")
	toDate := query.Get("toDate")
	if fromDate == "" || toDate == "" {
		s.badRequest(w, "fromDate and toDate are required (YYYY-MM-DD)")
		return
	}

	result, err := s.processor.GenerateDataset(r.Context(), address, fromDate, toDate, query.Get("hashes"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidInput) {
			s.badRequest(w, err.Error())
			return
		}
		s.logger.Error("dataset generation failed", zap.String("token", address), zap.Error(err))
		s.writeJSON(w, http.StatusInternalServerError, envelope{Error: "dataset generation failed"})
		return
	}
	s.writeJSON(w, http.StatusOK, envelope{Data: result, Message: "dataset generated"})
}

func queryInt(raw string, fallback int) int {
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
