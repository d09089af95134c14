package model_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

func TestErrorKind(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"oauth", &model.OAuthError{Status: 400}, model.KindOAuth},
		{"request", &model.RequestError{Status: 404}, model.KindRequest},
		{"rate limit", &model.RateLimitExceededError{Attempts: 6}, model.KindRateLimitExceeded},
		{"provider", &model.ProviderError{Status: 502}, model.KindProvider},
		{"rejected", &model.RejectedError{}, model.KindRejected},
		{"validation", &model.ValidationError{RowIndex: 2, Field: "quantity"}, model.KindValidation},
		{"not found", &model.NotFoundError{Kind: "credential", ID: "c"}, model.KindNotFound},
		{"configuration", &model.ConfigurationError{Missing: []string{"x"}}, model.KindConfiguration},
		{"wrapped", fmt.Errorf("save: %w", &model.RejectedError{}), model.KindRejected},
		{"plain", errors.New("boom"), model.KindInternal},
		{
			"host resolution wins over its cause",
			&model.HostResolutionError{Reason: "discovery failed", Err: &model.RequestError{Status: 401}},
			model.KindHostResolution,
		},
		{
			"partial export reports its cause",
			&model.PartialExportError{Rows: 100, Err: &model.ProviderError{Status: 503}},
			model.KindProvider,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.ErrorKind(tt.err))
		})
	}
}

func TestIsTransient(t *testing.T) {
	assert.True(t, model.IsTransient(&model.RateLimitExceededError{Attempts: 3}))
	assert.True(t, model.IsTransient(fmt.Errorf("list: %w", &model.ProviderError{})))
	assert.False(t, model.IsTransient(&model.RequestError{Status: 400}))
	assert.False(t, model.IsTransient(&model.RejectedError{}))
	assert.False(t, model.IsTransient(errors.New("boom")))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "invalid mode: unsupported", (&model.ValidationError{RowIndex: -1, Field: "mode", Reason: "unsupported"}).Error())
	assert.Equal(t, "row 3: invalid quantity: must be positive", (&model.ValidationError{RowIndex: 3, Field: "quantity", Reason: "must be positive"}).Error())
	assert.Equal(t, "Stok tidak cukup; Gudang kosong", (&model.RejectedError{Messages: []string{"Stok tidak cukup", "Gudang kosong"}}).Error())
	assert.Equal(t, "rejected by provider", (&model.RejectedError{}).Error())
	assert.Equal(t, "provider unavailable: dial tcp: refused", (&model.ProviderError{Body: "dial tcp: refused"}).Error())
}
