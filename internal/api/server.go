// Package api provides the HTTP server for the bounty board.
// Reads are public; every state-changing route requires a bearer token
// signed by the caller's Ed25519 key.
package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tutu-network/bounty/internal/app/bounty"
	"github.com/tutu-network/bounty/internal/app/ledger"
	"github.com/tutu-network/bounty/internal/domain"
	"github.com/tutu-network/bounty/internal/health"
	"github.com/tutu-network/bounty/internal/infra/metrics"
)

// Server is the bounty HTTP API server.
type Server struct {
	bounty         *bounty.Service
	wallet         *ledger.Service
	health         *health.Checker
	log            *slog.Logger
	version        string
	metricsEnabled bool
}

// NewServer creates a new API server.
func NewServer(b *bounty.Service, w *ledger.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		bounty:  b,
		wallet:  w,
		log:     log.With(slog.String("component", "api")),
		version: "dev",
	}
}

// EnableMetrics enables the /metrics Prometheus endpoint.
func (s *Server) EnableMetrics() { s.metricsEnabled = true }

// SetHealth attaches the health checker reported by /health.
func (s *Server) SetHealth(c *health.Checker) { s.health = c }

// SetVersion sets the version reported by /api/version.
func (s *Server) SetVersion(v string) { s.version = v }

// Handler returns the chi router with all routes mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(corsMiddleware)
	r.Use(countRequests)

	r.Get("/health", s.handleHealth)

	r.Get("/api/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"version": s.version,
		})
	})

	r.Route("/api/boards", func(r chi.Router) {
		r.Get("/", s.handleListBoards)
		r.With(requireAuth).Post("/", s.handleInitializeBoard)

		r.Route("/{board}", func(r chi.Router) {
			r.Get("/", s.handleGetBoard)
			r.Get("/tasks", s.handleListTasks)
			r.With(requireAuth).Post("/tasks", s.handleCreateTask)

			r.Route("/tasks/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetTask)
				r.Group(func(r chi.Router) {
					r.Use(requireAuth)
					r.Post("/claim", s.handleClaimTask)
					r.Post("/submit", s.handleSubmitCompletion)
					r.Post("/approve", s.handleApproveCompletion)
					r.Post("/reject", s.handleRejectCompletion)
				})
			})
		})
	})

	r.Route("/api/accounts", func(r chi.Router) {
		r.With(requireAuth).Post("/deposit", s.handleDeposit)
		r.Get("/{address}", s.handleBalance)
		r.Get("/{address}/history", s.handleHistory)
	})

	if s.metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health == nil {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}
	status, code := "ok", http.StatusOK
	if !s.health.IsHealthy() {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status": status,
		"checks": s.health.Statuses(),
	})
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    kind,
		},
	})
}

// writeDomainError maps err to its HTTP status and writes it. Status
// mismatches also carry the expected and actual status.
func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	kind := domain.ErrorKind(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", slog.Any("error", err))
		writeError(w, status, kind, "internal error")
		return
	}

	body := map[string]any{"message": err.Error(), "type": kind}
	var se *domain.StatusError
	if errors.As(err, &se) {
		body["expected"] = se.Expected
		body["actual"] = se.Actual
	}
	writeJSON(w, status, map[string]any{"error": body})
}

// statusFor maps error kinds onto HTTP status codes.
func statusFor(kind string) int {
	switch kind {
	case "TitleTooLong", "DescriptionTooLong", "ProofTooLong",
		"InvalidBountyAmount", "InvalidAmount", "InvalidIdentity", "DepositTooLarge":
		return http.StatusBadRequest
	case "Unauthorized", "FaucetDisabled":
		return http.StatusForbidden
	case "InvalidTaskStatus", "TaskAlreadyClaimed", "BoardExists":
		return http.StatusConflict
	case "InsufficientFunds":
		return http.StatusPaymentRequired
	case "ArithmeticOverflow":
		return http.StatusUnprocessableEntity
	case "BoardNotFound", "TaskNotFound":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

// corsMiddleware adds CORS headers for browser clients.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// countRequests records each request by route pattern and status code.
func countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		metrics.APIRequests.WithLabelValues(route, strconv.Itoa(ww.Status())).Inc()
	})
}
