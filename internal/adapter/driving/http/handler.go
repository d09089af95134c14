// Package httphandler serves the REST API over the application services.
package httphandler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/application"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

// maxImportBytes bounds the size of an uploaded import file.
const maxImportBytes = 32 << 20

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	connectSvc *application.ConnectService
	exportSvc  *application.ExportService
	importSvc  *application.ImportService
	metrics    prometheus.Gatherer
	logger     *slog.Logger
}

// NewHandler creates a Handler with all required dependencies. metrics may be
// nil, in which case /metrics is not served.
func NewHandler(
	connectSvc *application.ConnectService,
	exportSvc *application.ExportService,
	importSvc *application.ImportService,
	metrics prometheus.Gatherer,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		connectSvc: connectSvc,
		exportSvc:  exportSvc,
		importSvc:  importSvc,
		metrics:    metrics,
		logger:     logger,
	}
}

// RegisterAPIRoutes registers every API route on mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/oauth/authorize", requireOwner(h.AuthorizeOAuth))
	mux.HandleFunc("GET /api/v1/oauth/callback", requireOwner(h.CompleteOAuth))

	mux.HandleFunc("GET /api/v1/credentials", requireOwner(h.ListCredentials))
	mux.HandleFunc("POST /api/v1/credentials", requireOwner(h.AddCredential))
	mux.HandleFunc("DELETE /api/v1/credentials/{id}", requireOwner(h.RemoveCredential))
	mux.HandleFunc("POST /api/v1/credentials/{id}/refresh", requireOwner(h.RefreshCredential))

	mux.HandleFunc("POST /api/v1/credentials/{id}/exports", requireOwner(h.Export))
	mux.HandleFunc("POST /api/v1/credentials/{id}/imports", requireOwner(h.StartImport))
	mux.HandleFunc("GET /api/v1/credentials/{id}/jobs", requireOwner(h.ListJobs))

	mux.HandleFunc("GET /api/v1/jobs/{id}", requireOwner(h.GetJob))
	mux.HandleFunc("POST /api/v1/jobs/{id}/resume", requireOwner(h.ResumeJob))

	mux.HandleFunc("GET /api/v1/health", h.Health)
	if h.metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(h.metrics, promhttp.HandlerOpts{}))
	}
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}

// writeDomainError maps err to its status and kind. Internal errors are
// logged and hidden from the caller.
func (h *Handler) writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := errorStatus(err)
	if kind == model.KindInternal {
		h.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, status, kind, "internal server error")
		return
	}
	if status >= http.StatusInternalServerError {
		h.logger.Warn("provider call failed", "path", r.URL.Path, "kind", kind, "error", err)
	}
	writeError(w, status, kind, err.Error())
}

// badRequest writes a validation error for a malformed request field.
func (h *Handler) badRequest(w http.ResponseWriter, r *http.Request, field, reason string) {
	h.writeDomainError(w, r, &model.ValidationError{RowIndex: -1, Field: field, Reason: reason})
}
