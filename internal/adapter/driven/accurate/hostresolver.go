package accurate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.HostResolver = (*HostResolver)(nil)

// DefaultAccountURL is the Accurate account server that hosts discovery and OAuth.
const DefaultAccountURL = "https://account.accurate.id"

const pathDiscovery = "/api/api-token.do"

// HostResolver discovers the database host an API token is bound to by calling
// the account server's discovery endpoint.
type HostResolver struct {
	dispatcher *Dispatcher
	accountURL string
}

// NewHostResolver creates a HostResolver. An empty accountURL uses DefaultAccountURL.
func NewHostResolver(dispatcher *Dispatcher, accountURL string) *HostResolver {
	if accountURL == "" {
		accountURL = DefaultAccountURL
	}
	return &HostResolver{
		dispatcher: dispatcher,
		accountURL: strings.TrimRight(accountURL, "/"),
	}
}

type discoveryResponse struct {
	S bool            `json:"s"`
	D json.RawMessage `json:"d"`
}

type discoveryData struct {
	Database  *databaseCandidate  `json:"database"`
	Databases []databaseCandidate `json:"databases"`
}

type databaseCandidate struct {
	Host    string `json:"host"`
	Default bool   `json:"default"`
}

// ResolveHost returns the plain host (no scheme or path) of the database the
// token belongs to. Rejected, expired and unparseable tokens yield
// *model.HostResolutionError; transient provider failures pass through.
func (h *HostResolver) ResolveHost(ctx context.Context, apiToken string) (string, error) {
	if apiToken == "" {
		return "", &model.HostResolutionError{Reason: "empty api token"}
	}

	endpoint := h.accountURL + pathDiscovery
	resp, err := h.dispatcher.Do(ctx, discoveryKey(apiToken), func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+apiToken)
		req.Header.Set("Accept", "application/json")
		return req, nil
	})
	if err != nil {
		var reqErr *model.RequestError
		if errors.As(err, &reqErr) {
			return "", &model.HostResolutionError{
				Reason: fmt.Sprintf("token rejected with status %d", reqErr.Status),
				Err:    err,
			}
		}
		return "", fmt.Errorf("calling discovery endpoint: %w", err)
	}

	host, err := parseDiscovery(resp.Body)
	if err != nil {
		return "", err
	}

	slog.Debug("resolved accurate host", "host", host)
	return host, nil
}

func parseDiscovery(body []byte) (string, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", &model.HostResolutionError{Reason: "empty discovery response"}
	}

	var resp discoveryResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", &model.HostResolutionError{Reason: "malformed discovery response", Err: err}
	}
	if !resp.S {
		return "", &model.HostResolutionError{
			Reason: "token refused: " + strings.Join(rejectionMessages(resp.D), "; "),
		}
	}

	var data discoveryData
	if len(resp.D) > 0 {
		if err := json.Unmarshal(resp.D, &data); err != nil {
			return "", &model.HostResolutionError{Reason: "malformed discovery payload", Err: err}
		}
	}

	candidates := data.Databases
	if data.Database != nil {
		candidates = append([]databaseCandidate{*data.Database}, candidates...)
	}

	host := pickHost(candidates)
	if host == "" {
		return "", &model.HostResolutionError{Reason: "no database host in discovery response"}
	}
	return host, nil
}

// pickHost returns the normalized host of the candidate flagged default, else
// the first candidate with a usable host.
func pickHost(candidates []databaseCandidate) string {
	var first string
	for _, c := range candidates {
		host := normalizeHost(c.Host)
		if host == "" {
			continue
		}
		if c.Default {
			return host
		}
		if first == "" {
			first = host
		}
	}
	return first
}

// normalizeHost strips any scheme, path and trailing slash from raw.
func normalizeHost(raw string) string {
	host := strings.TrimSpace(raw)
	if i := strings.Index(host, "://"); i >= 0 {
		host = host[i+3:]
	}
	if i := strings.IndexAny(host, "/?#"); i >= 0 {
		host = host[:i]
	}
	return strings.TrimRight(host, "/")
}

// discoveryKey derives a limiter key from the token without keeping the token
// itself in memory longer than the call.
func discoveryKey(apiToken string) string {
	sum := sha256.Sum256([]byte(apiToken))
	return "discovery:" + hex.EncodeToString(sum[:8])
}
