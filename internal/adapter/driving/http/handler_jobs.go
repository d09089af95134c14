package httphandler

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

// maxExportRequestBytes bounds the JSON body of an export request.
const maxExportRequestBytes = 1 << 20

// Export runs an export and returns the file. The file is buffered so a
// failed export never reaches the caller as a truncated download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request, ownerID string) {
	var body ExportRequest
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxExportRequestBytes))
	if err != nil {
		h.badRequest(w, r, "body", "unreadable request body")
		return
	}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			h.badRequest(w, r, "body", "invalid request body")
			return
		}
	}

	req := model.ExportRequest{
		OwnerID:      ownerID,
		CredentialID: r.PathValue("id"),
		ResourceType: model.ResourceType(withDefault(body.ResourceType, string(model.ResourceItemAdjustment))),
		Filters:      body.Filters,
		Mode:         model.ExportMode(withDefault(body.Mode, string(model.ExportModePreview))),
		Format:       model.ExportFormat(withDefault(body.Format, string(model.FormatCSV))),
	}

	var buf bytes.Buffer
	result, err := h.exportSvc.Export(r.Context(), req, &buf)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.Header().Set("X-Export-Rows", strconv.Itoa(result.Rows))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// StartImport accepts an import file as the request body and starts a job.
func (h *Handler) StartImport(w http.ResponseWriter, r *http.Request, ownerID string) {
	q := r.URL.Query()
	format := model.ExportFormat(q.Get("format"))
	if format == "" {
		h.badRequest(w, r, "format", "query parameter is required")
		return
	}
	resourceType := model.ResourceType(withDefault(q.Get("resource_type"), string(model.ResourceItemAdjustment)))

	body := http.MaxBytesReader(w, r.Body, maxImportBytes)
	job, err := h.importSvc.ImportFile(r.Context(), ownerID, r.PathValue("id"), resourceType, format, body)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toJobResponse(job))
}

// ListJobs returns the jobs of one credential, newest first.
func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request, ownerID string) {
	jobs, err := h.importSvc.ListJobs(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := make([]JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, toJobResponse(j))
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetJob returns a job with its per-row outcomes.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request, ownerID string) {
	job, err := h.importSvc.GetJob(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toJobResponse(*job))
}

// ResumeJob re-dispatches the failed rows of a partial job. Jobs in other
// states are returned unchanged.
func (h *Handler) ResumeJob(w http.ResponseWriter, r *http.Request, ownerID string) {
	job, err := h.importSvc.Resume(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toJobResponse(*job))
}

func withDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
