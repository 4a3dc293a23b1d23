package main

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/xcodebn/zoun"
	"github.com/xcodebn/zoun/factory"
	"github.com/xcodebn/zoun/internal"
	"go.uber.org/zap"
)

// Server exposes the admin controller over HTTP
type Server struct {
	cfg        *zoun.Config
	controller zoun.Controller
	checks     map[string]internal.HealthCheck
	metrics    http.Handler
	router     chi.Router
}

// NewServer creates a Server for an assembled admin engine
func NewServer(admin *factory.Admin) *Server {
	var metrics http.Handler
	if admin.Metrics != nil {
		metrics = admin.Metrics.Handler()
	}
	return newServer(admin.Config, admin.Controller, admin.Storage.HealthChecks(), metrics)
}

func newServer(cfg *zoun.Config, controller zoun.Controller, checks map[string]internal.HealthCheck, metrics http.Handler) *Server {
	s := &Server{
		cfg:        cfg,
		controller: controller,
		checks:     checks,
		metrics:    metrics,
		router:     chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) registerRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(requestLogger(zap.L()))
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle(s.cfg.Metrics.Path, s.metrics)
	}

	// The admin surface stays unmounted until it is switched on.
	if !s.cfg.Admin.Enabled {
		zap.S().Infow("admin routes disabled", "basePath", s.cfg.Admin.BasePath)
		return
	}

	adminRoutes := func(r chi.Router) {
		if s.cfg.Auth.JWTSecret != "" {
			r.Use(requireRole(s.cfg.Auth.JWTSecret, s.cfg.Admin.RequiredRole))
		} else {
			zap.S().Warnw("admin routes are not protected, set auth.jwtSecret to require a role")
		}

		r.Get("/", s.handleDashboard)
		r.Route("/models/{model}", func(r chi.Router) {
			r.Get("/", s.handleList)
			r.Get("/new", s.handleNewForm)
			r.Get("/edit/{id}", s.handleEditForm)
			r.Post("/save", s.handleSave)
			r.Post("/delete/{id}", s.handleDelete)
			r.Get("/file/{id}/{field}", s.handleDownload)
			r.Get("/schema", s.handleSchema)
		})
	}

	if base := strings.TrimSuffix(s.cfg.Admin.BasePath, "/"); base != "" {
		s.router.Route(base, adminRoutes)
	} else {
		s.router.Group(adminRoutes)
	}
}

// handleHealth handles GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	failures := internal.RunHealthChecks(r.Context(), s.checks)
	if len(failures) == 0 {
		writeSuccess(w, http.StatusOK, map[string]string{"status": "ok"})
		return
	}

	details := make(map[string]any, len(failures))
	for name, err := range failures {
		zap.S().Warnw("health check failed", "check", name, "error", err)
		details[name] = err.Error()
	}
	writeJSON(w, http.StatusServiceUnavailable, APIResponse{
		Success: false,
		Error:   &ErrorResponse{Code: "UNHEALTHY", Message: "one or more backends are unavailable", Details: details},
	})
}

// handleDashboard handles GET {basePath}/
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, s.controller.Dashboard(r.Context()))
}

// handleList handles GET {basePath}/models/{model}
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	view, err := s.controller.List(r.Context(), zoun.ListRequest{
		Model:   chi.URLParam(r, "model"),
		Page:    parsePage(query),
		SortBy:  query.Get("sortBy"),
		SortDir: query.Get("sortDir"),
		Search:  query.Get("search"),
	})
	if err != nil {
		writeZounError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, view)
}

// handleNewForm handles GET {basePath}/models/{model}/new
func (s *Server) handleNewForm(w http.ResponseWriter, r *http.Request) {
	view, err := s.controller.NewForm(r.Context(), chi.URLParam(r, "model"))
	if err != nil {
		writeZounError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, view)
}

// handleEditForm handles GET {basePath}/models/{model}/edit/{id}
func (s *Server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	view, err := s.controller.EditForm(r.Context(), chi.URLParam(r, "model"), chi.URLParam(r, "id"))
	if err != nil {
		writeZounError(w, r, err)
		return
	}
	writeSuccess(w, http.StatusOK, view)
}

// handleSave handles POST {basePath}/models/{model}/save
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	form, err := parseFormData(w, r, s.cfg.Admin.MaxFileSizeBytes())
	if err != nil {
		if zoun.IsInternalError(err) {
			writeError(w, http.StatusBadRequest, "INVALID_FORM", err.Error())
			return
		}
		writeZounError(w, r, err)
		return
	}
	s.writeResult(w, r, s.controller.Save(r.Context(), chi.URLParam(r, "model"), form))
}

// handleDelete handles POST {basePath}/models/{model}/delete/{id}
func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.writeResult(w, r, s.controller.Delete(r.Context(), chi.URLParam(r, "model"), chi.URLParam(r, "id")))
}

// handleDownload handles GET {basePath}/models/{model}/file/{id}/{field}
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	content, err := s.controller.DownloadBinary(r.Context(), chi.URLParam(r, "model"), chi.URLParam(r, "id"), chi.URLParam(r, "field"))
	if err != nil {
		writeZounError(w, r, err)
		return
	}
	if content.NoContent {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", contentDisposition(content.Field))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content.Data); err != nil {
		zap.S().Warnw("failed to write download", "model", content.Model, "field", content.Field, "error", err)
	}
}

// handleSchema handles GET {basePath}/models/{model}/schema
func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := s.controller.Schema(r.Context(), chi.URLParam(r, "model"))
	if err != nil {
		writeZounError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(schema); err != nil {
		zap.S().Warnw("failed to write schema", "error", err)
	}
}

// writeResult renders the outcome of a write operation with the status of its failure.
func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, result *zoun.OperationResult) {
	if result.Success {
		writeSuccess(w, http.StatusOK, result)
		return
	}
	if result.Err == nil {
		writeError(w, http.StatusInternalServerError, zoun.ErrCodeInternalError, result.Message)
		return
	}

	status := zoun.HTTPStatus(result.Err)
	body := &ErrorResponse{Code: result.Err.Code, Message: result.Message}
	if zoun.IsInternalError(result.Err) {
		zap.S().Errorw("write operation failed", "method", r.Method, "path", r.URL.Path, "error", result.Err)
		writeJSON(w, status, APIResponse{Success: false, Error: body})
		return
	}
	body.Details = result.Err.Details
	writeJSON(w, status, APIResponse{Success: false, Data: result, Error: body})
}
