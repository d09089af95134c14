package httphandler

import (
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/application"
)

// AuthorizeOAuth returns the provider consent URL. The optional state query
// parameter is passed through unchanged.
func (h *Handler) AuthorizeOAuth(w http.ResponseWriter, r *http.Request, _ string) {
	u, err := h.connectSvc.ConnectOAuth(r.URL.Query().Get("state"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthorizeResponse{AuthorizeURL: u})
}

// CompleteOAuth handles the provider redirect and stores the new credential.
func (h *Handler) CompleteOAuth(w http.ResponseWriter, r *http.Request, ownerID string) {
	q := r.URL.Query()
	if denied := q.Get("error"); denied != "" {
		reason := "authorization denied: " + denied
		if desc := q.Get("error_description"); desc != "" {
			reason += " (" + desc + ")"
		}
		h.badRequest(w, r, "code", reason)
		return
	}

	cred, err := h.connectSvc.CompleteOAuth(r.Context(), ownerID, q.Get("code"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ConnectResponse{CredentialID: cred.ID, Host: cred.Host})
}

// ListCredentials returns the caller's credentials.
func (h *Handler) ListCredentials(w http.ResponseWriter, r *http.Request, ownerID string) {
	creds, err := h.connectSvc.List(r.Context(), ownerID)
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}

	resp := make([]CredentialResponse, 0, len(creds))
	for _, c := range creds {
		resp = append(resp, toCredentialResponse(c))
	}
	writeJSON(w, http.StatusOK, resp)
}

// AddCredential stores manually entered API credentials.
func (h *Handler) AddCredential(w http.ResponseWriter, r *http.Request, ownerID string) {
	var req AddCredentialRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, r, "body", "invalid request body")
		return
	}

	cred, err := h.connectSvc.AddManual(r.Context(), ownerID, application.ManualCredential{
		AppKey:          req.AppKey,
		SignatureSecret: req.SignatureSecret,
		APIToken:        req.APIToken,
		RefreshToken:    req.RefreshToken,
	})
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCredentialResponse(cred))
}

// RemoveCredential deletes a credential and its jobs.
func (h *Handler) RemoveCredential(w http.ResponseWriter, r *http.Request, ownerID string) {
	if err := h.connectSvc.Remove(r.Context(), ownerID, strings.TrimSpace(r.PathValue("id"))); err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshCredential renews a credential's tokens.
func (h *Handler) RefreshCredential(w http.ResponseWriter, r *http.Request, ownerID string) {
	cred, err := h.connectSvc.Refresh(r.Context(), ownerID, r.PathValue("id"))
	if err != nil {
		h.writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCredentialResponse(cred))
}
