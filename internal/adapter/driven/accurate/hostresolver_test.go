package accurate

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

func setupTestResolver(t *testing.T, handler http.HandlerFunc) *HostResolver {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	d := NewDispatcher(ts.Client(), fastLimits(), NewMetrics(prometheus.NewRegistry()))
	return NewHostResolver(d, ts.URL+"/")
}

func TestResolveHost(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "single database with scheme and path",
			body: `{"s": true, "d": {"database": {"host": "https://zeus.accurate.id/accurate/"}}}`,
			want: "zeus.accurate.id",
		},
		{
			name: "plain host",
			body: `{"s": true, "d": {"database": {"host": "iris.accurate.id"}}}`,
			want: "iris.accurate.id",
		},
		{
			name: "list picks default",
			body: `{"s": true, "d": {"databases": [
				{"host": "https://a.accurate.id"},
				{"host": "https://b.accurate.id/", "default": true}
			]}}`,
			want: "b.accurate.id",
		},
		{
			name: "list without default picks first",
			body: `{"s": true, "d": {"databases": [
				{"host": ""},
				{"host": "c.accurate.id"},
				{"host": "d.accurate.id"}
			]}}`,
			want: "c.accurate.id",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := setupTestResolver(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, pathDiscovery, r.URL.Path)
				assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
				assert.Empty(t, r.Header.Get(HeaderSignature), "discovery is not HMAC signed")
				_, _ = w.Write([]byte(tt.body))
			})

			host, err := resolver.ResolveHost(context.Background(), "tok-123")
			require.NoError(t, err)
			assert.Equal(t, tt.want, host)
		})
	}
}

func TestResolveHost_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "expired token", status: http.StatusUnauthorized, body: `{"error":"invalid_token","error_description":"expired"}`},
		{name: "forbidden", status: http.StatusForbidden, body: `{}`},
		{name: "refused", status: http.StatusOK, body: `{"s": false, "d": ["Token tidak valid"]}`},
		{name: "empty body", status: http.StatusOK, body: ``},
		{name: "malformed", status: http.StatusOK, body: `not json`},
		{name: "no host", status: http.StatusOK, body: `{"s": true, "d": {"databases": []}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := setupTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})

			_, err := resolver.ResolveHost(context.Background(), "tok-123")

			var hostErr *model.HostResolutionError
			require.ErrorAs(t, err, &hostErr)
			assert.Equal(t, model.KindHostResolution, model.ErrorKind(err))
		})
	}
}

func TestResolveHost_EmptyToken(t *testing.T) {
	resolver := setupTestResolver(t, func(http.ResponseWriter, *http.Request) {
		t.Fatal("no request expected")
	})

	_, err := resolver.ResolveHost(context.Background(), "")

	var hostErr *model.HostResolutionError
	require.ErrorAs(t, err, &hostErr)
}

func TestResolveHost_TransientFailurePassesThrough(t *testing.T) {
	resolver := setupTestResolver(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := resolver.ResolveHost(context.Background(), "tok-123")

	var provErr *model.ProviderError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, model.KindProvider, model.ErrorKind(err))
}

func TestNormalizeHost(t *testing.T) {
	tests := map[string]string{
		"zeus.accurate.id":                   "zeus.accurate.id",
		"https://zeus.accurate.id":           "zeus.accurate.id",
		"https://zeus.accurate.id/":          "zeus.accurate.id",
		"http://zeus.accurate.id/accurate/x": "zeus.accurate.id",
		"  zeus.accurate.id/  ":              "zeus.accurate.id",
		"zeus.accurate.id:8443":              "zeus.accurate.id:8443",
		"":                                   "",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeHost(in), "input %q", in)
	}
}

func TestDiscoveryKey_StableAndOpaque(t *testing.T) {
	a := discoveryKey("secret-token")
	assert.Equal(t, a, discoveryKey("secret-token"))
	assert.NotEqual(t, a, discoveryKey("other-token"))
	assert.NotContains(t, a, "secret-token")
}
