package httphandler

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantKind   string
	}{
		{"oauth", &model.OAuthError{Status: 400, Body: "invalid_grant"}, http.StatusBadGateway, model.KindOAuth},
		{"host resolution", &model.HostResolutionError{Reason: "no host", Err: &model.RequestError{Status: 401}}, http.StatusUnprocessableEntity, model.KindHostResolution},
		{"request", &model.RequestError{Status: 403}, http.StatusBadGateway, model.KindRequest},
		{"rate limit", &model.RateLimitExceededError{Attempts: 4}, http.StatusTooManyRequests, model.KindRateLimitExceeded},
		{"provider", &model.ProviderError{Status: 503}, http.StatusBadGateway, model.KindProvider},
		{"rejected", &model.RejectedError{Messages: []string{"no"}}, http.StatusUnprocessableEntity, model.KindRejected},
		{"validation", &model.ValidationError{RowIndex: -1, Field: "mode"}, http.StatusBadRequest, model.KindValidation},
		{"not found", &model.NotFoundError{Kind: "job", ID: "x"}, http.StatusNotFound, model.KindNotFound},
		{"configuration", &model.ConfigurationError{Missing: []string{"oauth client"}}, http.StatusServiceUnavailable, model.KindConfiguration},
		{"encryption key", fmt.Errorf("create credential: %w", driven.ErrEncryptionKeyNotSet), http.StatusServiceUnavailable, model.KindConfiguration},
		{"wrapped validation", fmt.Errorf("import: %w", &model.ValidationError{RowIndex: -1, Field: "file"}), http.StatusBadRequest, model.KindValidation},
		{"unknown", errors.New("disk full"), http.StatusInternalServerError, model.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, kind := errorStatus(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantKind, kind)
		})
	}
}

func TestErrorStatus_EveryKindHasAStatus(t *testing.T) {
	kinds := []string{
		model.KindOAuth, model.KindHostResolution, model.KindRequest,
		model.KindRateLimitExceeded, model.KindProvider, model.KindRejected,
		model.KindValidation, model.KindNotFound, model.KindConfiguration,
		model.KindInternal,
	}
	for _, k := range kinds {
		assert.Contains(t, statusForKind, k)
	}
}

func TestToCredentialResponse_OmitsSecrets(t *testing.T) {
	resp := toCredentialResponse(model.Credential{
		ID:              "c1",
		Host:            "zeus.accurate.id",
		AppKey:          "app",
		SignatureSecret: "secret",
		APIToken:        "token",
		RefreshToken:    "refresh",
	})

	assert.Equal(t, "c1", resp.ID)
	assert.Equal(t, "zeus.accurate.id", resp.Host)
	assert.True(t, resp.HasRefreshToken)
}
