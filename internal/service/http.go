package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"portalproxy-backend/internal/gradeparse"
	"portalproxy-backend/internal/scrapers/portal"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

const maxRequestBytes = 64 * 1024

type ActionRequest struct {
	Action      string                       `json:"action"`
	Institution portal.InstitutionDescriptor `json:"institutionDescriptor"`
	Credentials portal.Credentials           `json:"credentials"`
}

type errorBody struct {
	Kind      Kind     `json:"kind"`
	Message   string   `json:"message"`
	Attempted []string `json:"attempted,omitempty"`
}

type actionResponse struct {
	Success  bool                            `json:"success"`
	Session  *SessionSummary                 `json:"session,omitempty"`
	Grades   *[]gradeparse.CourseGradeRecord `json:"grades,omitempty"`
	Degraded *bool                           `json:"degraded,omitempty"`
	Strategy string                          `json:"strategy,omitempty"`
	Error    *errorBody                      `json:"error,omitempty"`
}

type HTTPOptions struct {
	AllowedOrigins []string
}

// Handler serves both the json action endpoint and the connect procedures.
func (s Service) Handler(options HTTPOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(loggingMiddleware)
	r.Use(middleware.Recoverer)

	origins := options.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type", "X-Request-ID",
			"Connect-Protocol-Version", "Connect-Timeout-Ms",
		},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", handleHealth)
	r.Post("/v1/portal", s.handleAction)
	for path, handler := range s.connectHandlers() {
		r.Handle(path, handler)
	}

	return r
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			slog.Info("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", middleware.GetReqID(r.Context()),
			)
		}()

		next.ServeHTTP(ww, r)
	})
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func respond(w http.ResponseWriter, status int, body actionResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(body)
	if err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}

func respondError(w http.ResponseWriter, err error) {
	var serviceErr *Error
	if !errors.As(err, &serviceErr) {
		serviceErr = classify(err)
	}
	respond(w, serviceErr.HTTPStatus(), actionResponse{
		Error: &errorBody{
			Kind:      serviceErr.Kind,
			Message:   serviceErr.Message,
			Attempted: serviceErr.Attempted,
		},
	})
}

func (s Service) handleAction(w http.ResponseWriter, r *http.Request) {
	principal, err := s.Authenticate(r.Header.Get("Authorization"))
	if err != nil {
		respondError(w, err)
		return
	}

	var req ActionRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes))
	err = decoder.Decode(&req)
	if err != nil {
		respondError(w, badRequest(fmt.Errorf("decode request: %w", err)))
		return
	}

	switch req.Action {
	case ActionLogin:
		summary, err := s.Login(r.Context(), principal, req.Institution, req.Credentials)
		if err != nil {
			respondError(w, err)
			return
		}
		respond(w, http.StatusOK, actionResponse{Success: true, Session: &summary})
	case ActionGetGrades:
		grades, err := s.GetGrades(r.Context(), principal, req.Institution, req.Credentials)
		if err != nil {
			respondError(w, err)
			return
		}
		respond(w, http.StatusOK, actionResponse{
			Success:  true,
			Grades:   &grades.Records,
			Degraded: &grades.Degraded,
			Strategy: grades.Strategy,
		})
	default:
		respondError(w, badRequest(fmt.Errorf("%w %q", ErrUnknownAction, req.Action)))
	}
}
