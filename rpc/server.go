package rpc

import (
	"encoding/hex"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"granary/native/registry"
	"granary/native/vault"
)

// Server exposes the vault engine and protocol registry over HTTP. Mutating
// routes are gated by bearer tokens; registry mutations are executed on behalf
// of the configured owner address.
type Server struct {
	vault    *vault.Engine
	registry *registry.Registry
	owner    [20]byte
	logger   *slog.Logger
	auth     *authenticator
}

// NewServer constructs an HTTP server facade.
func NewServer(engine *vault.Engine, reg *registry.Registry, owner [20]byte, tokens []string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		vault:    engine,
		registry: reg,
		owner:    owner,
		logger:   logger,
		auth:     newAuthenticator(tokens),
	}
}

// Router assembles the chi route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestID)
	r.Use(s.requestLog)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1/vault", func(r chi.Router) {
		r.Get("/summary", s.handleSummary)
		r.Get("/account/{address}", s.handleAccount)
		r.Get("/pending/{address}", s.handlePending)
		r.Group(func(r chi.Router) {
			r.Use(s.auth.middleware)
			r.Post("/deposit", s.handleDeposit)
			r.Post("/withdraw", s.handleWithdraw)
			r.Post("/claim", s.handleClaim)
			r.Post("/harvest", s.handleHarvest)
		})
	})

	r.Route("/v1/registry", func(r chi.Router) {
		r.Get("/active", s.handleActiveProtocol)
		r.Group(func(r chi.Router) {
			r.Use(s.auth.middleware)
			r.Post("/protocols", s.handleRegisterProtocol)
			r.Post("/active", s.handleSetActiveProtocol)
			r.Delete("/adapters", s.handleRemoveAdapter)
		})
	})

	return r
}

func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", id)
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", w.Header().Get("X-Request-ID"),
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

func parseAddressString(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	if len(trimmed) != 40 {
		return addr, fmt.Errorf("address must be 20 bytes of hex")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid hex address: %w", err)
	}
	copy(addr[:], raw)
	return addr, nil
}

func parseAmountString(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("invalid amount %q", value)
	}
	return amount, nil
}

func formatAddress(addr [20]byte) string {
	return "0x" + hex.EncodeToString(addr[:])
}
