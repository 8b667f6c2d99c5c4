// Package server wires the HTTP surface of the quote aggregation service:
// the quotes endpoint, health and metrics, and the security metadata
// read API.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/julienschmidt/httprouter"
	"go.uber.org/zap"

	"github.com/wudi/bridgerouter/internal/bridge"
	"github.com/wudi/bridgerouter/internal/cache"
	"github.com/wudi/bridgerouter/internal/config"
	apperrors "github.com/wudi/bridgerouter/internal/errors"
	"github.com/wudi/bridgerouter/internal/gasprice"
	"github.com/wudi/bridgerouter/internal/logging"
	"github.com/wudi/bridgerouter/internal/metrics"
	"github.com/wudi/bridgerouter/internal/ratelimit"
	"github.com/wudi/bridgerouter/internal/realip"
	"github.com/wudi/bridgerouter/internal/security"
	"github.com/wudi/bridgerouter/internal/tokenprice"
)

// securityDeadline bounds the metadata batch query; the quotes route never
// waits longer than this for Postgres.
const securityDeadline = 3 * time.Second

// Deps carries the collaborators the server needs. Redis, SecurityRepo,
// Gas and Prices may be nil; the affected features degrade instead of
// failing.
type Deps struct {
	Config       *config.Config
	Metrics      *metrics.Metrics
	Redis        *cache.Client
	Aggregator   *bridge.Aggregator
	SecurityRepo *security.Repository
	Gas          *gasprice.Service
	Prices       *tokenprice.Service
}

// Server is the HTTP front of the quote service.
type Server struct {
	cfg        *config.Config
	metrics    *metrics.Metrics
	redis      *cache.Client
	quotes     *cache.QuoteCache
	limiter    *ratelimit.Limiter
	clients    *realip.Resolver
	aggregator *bridge.Aggregator
	repo       *security.Repository
	gas        *gasprice.Service
	prices     *tokenprice.Service

	httpServer *http.Server
}

// New builds the server and its route table.
func New(deps Deps) *Server {
	cfg := deps.Config
	s := &Server{
		cfg:        cfg,
		metrics:    deps.Metrics,
		redis:      deps.Redis,
		quotes:     cache.NewQuoteCache(deps.Redis, cfg.Cache.FreshTTL, cfg.Cache.StaleTTL),
		limiter:    ratelimit.New(deps.Redis, cfg.RateLimit.Limit, cfg.RateLimit.Window),
		clients:    realip.NewResolver(cfg.Server.TrustedProxies),
		aggregator: deps.Aggregator,
		repo:       deps.SecurityRepo,
		gas:        deps.Gas,
		prices:     deps.Prices,
	}

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	return s
}

// Handler returns the full middleware-wrapped route table.
func (s *Server) Handler() http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/quotes", s.handleQuotes)
	router.HandlerFunc(http.MethodGet, "/health", s.handleHealth)
	router.HandlerFunc(http.MethodGet, "/security/audits", s.handleAudits)
	router.HandlerFunc(http.MethodGet, "/security/exploits", s.handleExploits)
	if s.metrics != nil {
		router.Handler(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	return withTrace(withLogging(s.metrics, router))
}

// Run serves until SIGINT or SIGTERM, then shuts down gracefully.
func (s *Server) Run() error {
	errCh := make(chan error, 1)
	go func() {
		logging.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-stop:
		logging.Info("Shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "ok"
	redisStatus := "up"
	if s.redis == nil {
		redisStatus = "disabled"
	} else if err := s.redis.Ping(ctx); err != nil {
		redisStatus = "down"
		status = "degraded"
	}

	dbStatus := "up"
	if s.repo == nil {
		dbStatus = "disabled"
	} else if err := s.repo.Ping(ctx); err != nil {
		dbStatus = "down"
		status = "degraded"
	}

	payload := map[string]any{
		"status":   status,
		"redis":    redisStatus,
		"database": dbStatus,
		"bridges":  s.aggregator.Providers(),
	}
	if s.redis != nil && redisStatus == "up" {
		if stats, err := s.redis.Stats(ctx); err == nil {
			payload["cache_stats"] = map[string]any{
				"keyspace_hits":   stats.KeyspaceHits,
				"keyspace_misses": stats.KeyspaceMisses,
				"hit_rate":        stats.HitRate(),
			}
		}
	}

	code := http.StatusOK
	if status != "ok" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, payload)
}

func (s *Server) handleAudits(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		apperrors.ErrServiceUnavailable.
			WithMessage("Security metadata store not configured").
			WithRequestID(TraceID(r.Context())).
			WriteJSON(w)
		return
	}

	reports, err := s.repo.GetAuditReports(r.Context())
	if err != nil {
		logging.Error("Audit report query failed", zap.Error(err))
		apperrors.Wrap(apperrors.ErrDatabase, err).
			WithRequestID(TraceID(r.Context())).
			WriteJSON(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"audits": reports})
}

func (s *Server) handleExploits(w http.ResponseWriter, r *http.Request) {
	if s.repo == nil {
		apperrors.ErrServiceUnavailable.
			WithMessage("Security metadata store not configured").
			WithRequestID(TraceID(r.Context())).
			WriteJSON(w)
		return
	}

	exploits, err := s.repo.GetExploitHistory(r.Context())
	if err != nil {
		logging.Error("Exploit history query failed", zap.Error(err))
		apperrors.Wrap(apperrors.ErrDatabase, err).
			WithRequestID(TraceID(r.Context())).
			WriteJSON(w)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"exploits": exploits})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
