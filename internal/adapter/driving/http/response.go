package httphandler

import (
	"errors"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

// kindUnauthorized is reported when a request carries no owner id.
const kindUnauthorized = "unauthorized"

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error_kind":"internal_error","error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code, kind and message.
func writeError(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, errorResponse{Kind: kind, Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Kind  string `json:"error_kind"`
	Error string `json:"error"`
}

// statusForKind maps each error kind to exactly one HTTP status.
var statusForKind = map[string]int{
	model.KindOAuth:             http.StatusBadGateway,
	model.KindHostResolution:    http.StatusUnprocessableEntity,
	model.KindRequest:           http.StatusBadGateway,
	model.KindRateLimitExceeded: http.StatusTooManyRequests,
	model.KindProvider:          http.StatusBadGateway,
	model.KindRejected:          http.StatusUnprocessableEntity,
	model.KindValidation:        http.StatusBadRequest,
	model.KindNotFound:          http.StatusNotFound,
	model.KindConfiguration:     http.StatusServiceUnavailable,
	model.KindInternal:          http.StatusInternalServerError,
}

// errorStatus classifies err into its kind and HTTP status.
func errorStatus(err error) (int, string) {
	kind := model.ErrorKind(err)
	if kind == model.KindInternal && errors.Is(err, driven.ErrEncryptionKeyNotSet) {
		kind = model.KindConfiguration
	}
	return statusForKind[kind], kind
}

// CredentialResponse is the JSON representation of a credential. Secrets and
// tokens are never returned.
type CredentialResponse struct {
	ID              string `json:"id"`
	Host            string `json:"host"`
	AppKey          string `json:"app_key"`
	HasRefreshToken bool   `json:"has_refresh_token"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// AddCredentialRequest is the JSON body for the manual credential endpoint.
type AddCredentialRequest struct {
	AppKey          string `json:"app_key"`
	SignatureSecret string `json:"signature_secret"`
	APIToken        string `json:"api_token"`
	RefreshToken    string `json:"refresh_token"`
}

// AuthorizeResponse carries the provider consent URL.
type AuthorizeResponse struct {
	AuthorizeURL string `json:"authorize_url"`
}

// ConnectResponse is returned once an OAuth callback stored a credential.
type ConnectResponse struct {
	CredentialID string `json:"credential_id"`
	Host         string `json:"host"`
}

// ExportRequest is the JSON body for the export endpoint. Empty fields take
// the documented defaults.
type ExportRequest struct {
	ResourceType string            `json:"resource_type"`
	Mode         string            `json:"mode"`
	Format       string            `json:"format"`
	Filters      map[string]string `json:"filters"`
}

// JobResponse is the JSON representation of an import job.
type JobResponse struct {
	ID            string            `json:"id"`
	CredentialID  string            `json:"credential_id"`
	ResourceType  string            `json:"resource_type"`
	Status        string            `json:"status"`
	TotalRows     int               `json:"total_rows"`
	SucceededRows int               `json:"succeeded_rows"`
	FailedRows    int               `json:"failed_rows"`
	FailureReason string            `json:"failure_reason,omitempty"`
	CreatedAt     string            `json:"created_at"`
	CompletedAt   string            `json:"completed_at,omitempty"`
	Items         []JobItemResponse `json:"items,omitempty"`
}

// JobItemResponse is the JSON representation of one import row.
type JobItemResponse struct {
	RowIndex     int               `json:"row_index"`
	Status       string            `json:"status"`
	ErrorMessage string            `json:"error_message,omitempty"`
	RemoteID     string            `json:"remote_id,omitempty"`
	Source       map[string]string `json:"source"`
}

// HealthResponse is the JSON representation of the health check endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// toCredentialResponse converts a domain Credential to its JSON representation.
func toCredentialResponse(c model.Credential) CredentialResponse {
	return CredentialResponse{
		ID:              c.ID,
		Host:            c.Host,
		AppKey:          c.AppKey,
		HasRefreshToken: c.RefreshToken != "",
		CreatedAt:       c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       c.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// toJobResponse converts a domain Job to its JSON representation. Items are
// included only when the job carries them.
func toJobResponse(j model.Job) JobResponse {
	resp := JobResponse{
		ID:            j.ID,
		CredentialID:  j.CredentialID,
		ResourceType:  string(j.ResourceType),
		Status:        string(j.Status),
		TotalRows:     j.TotalRows,
		SucceededRows: j.SucceededRows,
		FailedRows:    j.FailedRows,
		FailureReason: j.FailureReason,
		CreatedAt:     j.CreatedAt.UTC().Format(time.RFC3339),
	}
	if !j.CompletedAt.IsZero() {
		resp.CompletedAt = j.CompletedAt.UTC().Format(time.RFC3339)
	}
	if len(j.Items) > 0 {
		resp.Items = make([]JobItemResponse, 0, len(j.Items))
		for _, item := range j.Items {
			source := item.Source
			if source == nil {
				source = model.Record{}
			}
			resp.Items = append(resp.Items, JobItemResponse{
				RowIndex:     item.RowIndex,
				Status:       string(item.Status),
				ErrorMessage: item.ErrorMessage,
				RemoteID:     item.RemoteID,
				Source:       source,
			})
		}
	}
	return resp
}
