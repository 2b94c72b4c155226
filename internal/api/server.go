// Package api serves pair and sandwich queries over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"sandwichScope/internal/model"
	"sandwichScope/internal/service"
)

// Querier is the query surface the handlers need.
type Querier interface {
	Pair(ctx context.Context, chainID, address string) (service.PairInfo, error)
	Sandwiches(ctx context.Context, chainID, address string, before *uint64) (service.SandwichesResult, error)
}

// JobCounter reports running scan jobs for the health check.
type JobCounter interface {
	Active() int64
}

type Server struct {
	query  Querier
	jobs   JobCounter
	logger *zap.Logger
	router *mux.Router
}

func NewServer(query Querier, jobs JobCounter, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		query:  query,
		jobs:   jobs,
		logger: logger,
		router: mux.NewRouter(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/pair", s.handlePair).Methods(http.MethodGet)
	api.HandleFunc("/sandwiches", s.handleSandwiches).Methods(http.MethodGet)
}

// Router returns the HTTP router for testing.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type tokenData struct {
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

type pairData struct {
	Blockchain   string `json:"blockchain"`
	Address      string `json:"address"`
	ExchangeName string `json:"exchange_name"`
}

type pairResponse struct {
	Pair         *pairData  `json:"pair"`
	Base         *tokenData `json:"base"`
	Quote        *tokenData `json:"quote"`
	ErrorMessage string     `json:"error_message"`
}

type scanMetadata struct {
	FromBlock    uint64 `json:"earliest_fetched_block"`
	ToBlock      uint64 `json:"latest_fetched_block"`
	RangeLower   uint64 `json:"earliest_scanned_block"`
	RangeUpper   uint64 `json:"latest_scanned_block"`
	ScanComplete bool   `json:"scan_complete"`
	ScanFailed   bool   `json:"scan_failed"`
	Status       string `json:"status"`
	JobID        string `json:"job_id,omitempty"`
}

type sandwichesResponse struct {
	Sandwiches   []model.Sandwich `json:"sandwiches"`
	Metadata     *scanMetadata    `json:"metadata"`
	ErrorMessage string           `json:"error_message"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var active int64
	if s.jobs != nil {
		active = s.jobs.Active()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":      "ok",
		"active_jobs": active,
	})
}

func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	info, err := s.query.Pair(r.Context(), q.Get("blockchain"), q.Get("pair_address"))
	if err != nil {
		s.logFailure(r, err)
		writeJSON(w, statusFor(err), pairResponse{ErrorMessage: service.UserMessage(err)})
		return
	}
	writeJSON(w, http.StatusOK, toPairResponse(info))
}

func (s *Server) handleSandwiches(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	before, err := parseBefore(q.Get("before"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, sandwichesResponse{ErrorMessage: service.UserMessage(err)})
		return
	}
	result, err := s.query.Sandwiches(r.Context(), q.Get("blockchain"), q.Get("pair_address"), before)
	if err != nil {
		s.logFailure(r, err)
		writeJSON(w, statusFor(err), sandwichesResponse{ErrorMessage: service.UserMessage(err)})
		return
	}

	meta := &scanMetadata{
		FromBlock: result.From,
		ToBlock:   result.To,
		Status:    string(result.Status),
		JobID:     result.JobID,
	}
	if result.Range != nil {
		meta.RangeLower = result.Range.LowerBound
		meta.RangeUpper = result.Range.UpperBound
		meta.ScanComplete = result.Range.Complete
		meta.ScanFailed = result.Range.Failed
	}
	status := http.StatusOK
	if result.Status == service.StatusStarted {
		status = http.StatusAccepted
	}
	writeJSON(w, status, sandwichesResponse{Sandwiches: result.Sandwiches, Metadata: meta})
}

func (s *Server) logFailure(r *http.Request, err error) {
	s.logger.Warn("query failed",
		zap.String("path", r.URL.Path),
		zap.String("query", r.URL.RawQuery),
		zap.Error(err),
	)
}

func toPairResponse(info service.PairInfo) pairResponse {
	return pairResponse{
		Pair: &pairData{
			Blockchain:   info.ChainID,
			Address:      info.Pair.Address,
			ExchangeName: info.Exchange.Name,
		},
		Base:  toTokenData(info.Base),
		Quote: toTokenData(info.Quote),
	}
}

func toTokenData(t model.Token) *tokenData {
	return &tokenData{Address: t.Address, Name: t.Name, Symbol: t.Symbol, Decimals: t.Decimals}
}

// parseBefore returns nil for an absent parameter.
func parseBefore(raw string) (*uint64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		if errors.Is(err, strconv.ErrRange) {
			return nil, model.ErrNumericOverflow
		}
		return nil, model.ErrParse
	}
	return &n, nil
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrUnsupportedChain),
		errors.Is(err, model.ErrUnsupportedExchange),
		errors.Is(err, model.ErrParse),
		errors.Is(err, model.ErrNumericOverflow):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrPairNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrPersistence):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
