package healthcheck

import (
	"context"
	"net/http"
	"sort"
	"time"

	"github.com/KLTN-2025/PTNTYTST5951/lib/httpserv"
	"github.com/rs/zerolog/log"
)

const readinessTimeout = 5 * time.Second

// Checker checks a dependency the server needs to serve requests, e.g. the FHIR store.
type Checker interface {
	Ping(ctx context.Context) error
}

type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Ping(ctx context.Context) error {
	return f(ctx)
}

func New(checks map[string]Checker) *Service {
	return &Service{checks: checks}
}

type Service struct {
	checks map[string]Checker
}

type readiness struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func (s Service) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealthCheck)
	mux.HandleFunc("GET /health/ready", s.handleReadinessCheck)
}

func (s Service) handleHealthCheck(writer http.ResponseWriter, request *http.Request) {
	httpserv.WriteJSON(request.Context(), writer, http.StatusOK, map[string]string{"status": "up"})
}

func (s Service) handleReadinessCheck(writer http.ResponseWriter, request *http.Request) {
	ctx, cancel := context.WithTimeout(request.Context(), readinessTimeout)
	defer cancel()
	result := readiness{Status: "up", Checks: map[string]string{}}
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			log.Ctx(ctx).Warn().Err(err).Msgf("Readiness check failed: %s", name)
			result.Status = "down"
			result.Checks[name] = "down"
		} else {
			result.Checks[name] = "up"
		}
	}
	status := http.StatusOK
	if result.Status != "up" {
		status = http.StatusServiceUnavailable
	}
	httpserv.WriteJSON(request.Context(), writer, status, result)
}
