package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/tradewatch/posdeck/internal/cache"
	"github.com/tradewatch/posdeck/internal/config"
	"github.com/tradewatch/posdeck/internal/health"
	"github.com/tradewatch/posdeck/internal/registry"
)

// Server serves the monitor's HTTP API and WebSocket feed.
type Server struct {
	cfg      config.ServerConfig
	registry *registry.Registry
	cache    *cache.Cache
	health   *health.Reporter
	logger   *slog.Logger

	httpServer *http.Server

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Server. The registry, cache, and health reporter are
// shared with the fetch orchestrator.
func New(cfg config.ServerConfig, reg *registry.Registry, c *cache.Cache, h *health.Reporter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		cfg:      cfg,
		registry: reg,
		cache:    c,
		health:   h,
		logger:   logger,
	}
}

// Handler returns the HTTP handler serving all routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/api/snapshot", s.handleSnapshot)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/accounts", s.handleAccounts)
	mux.HandleFunc("/api/select", s.handleSelect)
	mux.HandleFunc("/ws", s.handleWS)

	if s.cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}

	return mux
}

// Start begins listening. Non-blocking; errors after bind are logged.
func (s *Server) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.Handler(),
	}

	go func() {
		s.logger.Info("http server listening", "port", s.cfg.Port)
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Error("http server error", "error", err)
		}
	}()

	return nil
}

// Stop shuts the server down, closing WebSocket pushers first.
func (s *Server) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("websocket pushers did not drain in time")
	}

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

// handleHealthz reports process health: healthy when every account is,
// degraded when some are not, unhealthy when none are (and some exist).
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	records := s.health.Report(time.Now())

	healthy := 0
	for _, rec := range records {
		if rec.Healthy {
			healthy++
		}
	}

	status := "healthy"
	code := http.StatusOK
	switch {
	case len(records) == 0:
		// No accounts yet; the process itself is fine.
	case healthy == 0:
		status = "unhealthy"
		code = http.StatusServiceUnavailable
	case healthy < len(records):
		status = "degraded"
	}

	writeJSON(w, code, map[string]any{
		"status":   status,
		"accounts": len(records),
		"healthy":  healthy,
	})
}

// handleSnapshot returns the aggregated cache view.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, s.cache.Get())
}

// handleHealth returns the per-account health records.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	writeJSON(w, http.StatusOK, s.health.Report(time.Now()))
}

// handleAccounts lists registered accounts on GET and registers a new
// one on POST.
func (s *Server) handleAccounts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		type accountInfo struct {
			Name        string `json:"name"`
			Exchange    string `json:"exchange"`
			AccountType string `json:"account_type"`
			Initialized bool   `json:"initialized"`
		}
		accts := s.registry.Accounts()
		infos := make([]accountInfo, 0, len(accts))
		for _, a := range accts {
			infos = append(infos, accountInfo{
				Name:        a.Config.Name,
				Exchange:    a.Config.Exchange,
				AccountType: a.Config.AccountType,
				Initialized: s.registry.IsInitialized(a.Config.Name),
			})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"accounts": infos,
			"current":  s.cache.Current(),
		})

	case http.MethodPost:
		var cfg config.AccountConfig
		if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
		defer cancel()

		if err := s.registry.Register(ctx, cfg); err != nil {
			code := http.StatusBadRequest
			if errors.Is(err, registry.ErrDuplicateAccount) {
				code = http.StatusConflict
			}
			writeError(w, code, err)
			return
		}
		s.cache.AddAccount(cfg.Name)

		s.logger.Info("account registered via api",
			"account", cfg.Name,
			"exchange", cfg.Exchange,
		)
		writeJSON(w, http.StatusCreated, map[string]string{"name": cfg.Name})

	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// handleSelect switches the current account pointer.
func (s *Server) handleSelect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	var req struct {
		Account string `json:"account"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode body: %w", err))
		return
	}

	if err := s.cache.SetCurrent(req.Account); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"current": req.Account})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func methodNotAllowed(w http.ResponseWriter, allow string) {
	w.Header().Set("Allow", allow)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
}
