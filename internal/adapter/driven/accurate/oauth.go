package accurate

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.OAuthExchanger = (*OAuthExchange)(nil)

// OAuthConfig holds the application's registration with the Accurate account server.
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string

	// AccountURL is the account server base; AuthURL and TokenURL default to
	// its /oauth/authorize and /oauth/token endpoints.
	AccountURL string
	AuthURL    string
	TokenURL   string
}

// OAuthExchange implements driven.OAuthExchanger with golang.org/x/oauth2.
type OAuthExchange struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewOAuthExchange validates cfg and builds the exchange. Missing client
// credentials or redirect URL yield *model.ConfigurationError.
func NewOAuthExchange(cfg OAuthConfig, httpClient *http.Client) (*OAuthExchange, error) {
	var missing []string
	if cfg.ClientID == "" {
		missing = append(missing, "oauth client id")
	}
	if cfg.ClientSecret == "" {
		missing = append(missing, "oauth client secret")
	}
	if cfg.RedirectURL == "" {
		missing = append(missing, "oauth redirect url")
	}
	if len(missing) > 0 {
		return nil, &model.ConfigurationError{Missing: missing}
	}

	accountURL := strings.TrimRight(cfg.AccountURL, "/")
	if accountURL == "" {
		accountURL = DefaultAccountURL
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = accountURL + "/oauth/authorize"
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = accountURL + "/oauth/token"
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	return &OAuthExchange{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       cfg.Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.AuthURL,
				TokenURL:  cfg.TokenURL,
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		httpClient: httpClient,
	}, nil
}

// AuthorizeURL builds the consent URL. The result depends only on the
// configuration and state, and state is omitted when empty.
func (o *OAuthExchange) AuthorizeURL(state string) string {
	return o.config.AuthCodeURL(state)
}

// Exchange trades an authorization code for a token pair. Nothing is persisted.
func (o *OAuthExchange) Exchange(ctx context.Context, code string) (model.TokenGrant, error) {
	if code == "" {
		return model.TokenGrant{}, &model.ValidationError{RowIndex: -1, Field: "code", Reason: "must not be empty"}
	}

	tok, err := o.config.Exchange(o.withClient(ctx), code)
	if err != nil {
		return model.TokenGrant{}, mapOAuthError("exchange authorization code", err)
	}
	return toGrant(tok), nil
}

// Refresh trades a refresh token for a new token pair. When the provider does
// not rotate the refresh token the old one is kept.
func (o *OAuthExchange) Refresh(ctx context.Context, refreshToken string) (model.TokenGrant, error) {
	if refreshToken == "" {
		return model.TokenGrant{}, &model.ValidationError{RowIndex: -1, Field: "refresh_token", Reason: "credential has no refresh token"}
	}

	src := o.config.TokenSource(o.withClient(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return model.TokenGrant{}, mapOAuthError("refresh token", err)
	}
	return toGrant(tok), nil
}

func (o *OAuthExchange) withClient(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
}

func toGrant(tok *oauth2.Token) model.TokenGrant {
	return model.TokenGrant{
		APIToken:     tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
}

// mapOAuthError surfaces provider refusals as *model.OAuthError with the
// provider's body and network failures as *model.ProviderError.
func mapOAuthError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		status := 0
		if retrieveErr.Response != nil {
			status = retrieveErr.Response.StatusCode
		}
		return &model.OAuthError{Status: status, Body: strings.TrimSpace(string(retrieveErr.Body))}
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return &model.ProviderError{Body: fmt.Sprintf("%s: %v", op, err)}
	}

	return &model.OAuthError{Body: fmt.Sprintf("%s: %v", op, err)}
}
