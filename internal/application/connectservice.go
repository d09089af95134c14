package application

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/port/driven"
)

// ManualCredential carries user-supplied API credentials for databases
// connected without the OAuth flow.
type ManualCredential struct {
	AppKey          string
	SignatureSecret string
	APIToken        string
	RefreshToken    string
}

// ConnectService connects Accurate databases and manages the stored
// credentials of each owner.
type ConnectService struct {
	oauth           driven.OAuthExchanger
	resolver        driven.HostResolver
	credentials     driven.CredentialStore
	appKey          string
	signatureSecret string
}

// NewConnectService creates a new ConnectService. oauth may be nil when no
// OAuth client is configured; the OAuth operations then fail with
// *model.ConfigurationError. appKey and signatureSecret are stored on
// credentials created through OAuth.
func NewConnectService(
	oauth driven.OAuthExchanger,
	resolver driven.HostResolver,
	credentials driven.CredentialStore,
	appKey, signatureSecret string,
) *ConnectService {
	return &ConnectService{
		oauth:           oauth,
		resolver:        resolver,
		credentials:     credentials,
		appKey:          appKey,
		signatureSecret: signatureSecret,
	}
}

// ConnectOAuth returns the provider consent URL carrying state.
func (s *ConnectService) ConnectOAuth(state string) (string, error) {
	if s.oauth == nil {
		return "", errOAuthNotConfigured()
	}
	return s.oauth.AuthorizeURL(state), nil
}

// CompleteOAuth exchanges code, resolves the token's database host and stores
// the resulting credential for ownerID. Nothing is stored when any step fails.
func (s *ConnectService) CompleteOAuth(ctx context.Context, ownerID, code string) (model.Credential, error) {
	if s.oauth == nil {
		return model.Credential{}, errOAuthNotConfigured()
	}
	if s.signatureSecret == "" {
		return model.Credential{}, &model.ConfigurationError{Missing: []string{"signature secret"}}
	}

	grant, err := s.oauth.Exchange(ctx, code)
	if err != nil {
		return model.Credential{}, fmt.Errorf("exchange authorization code: %w", err)
	}

	host, err := s.resolver.ResolveHost(ctx, grant.APIToken)
	if err != nil {
		return model.Credential{}, err
	}

	cred, err := s.credentials.Create(ctx, model.Credential{
		OwnerID:         ownerID,
		AppKey:          s.appKey,
		SignatureSecret: s.signatureSecret,
		APIToken:        grant.APIToken,
		RefreshToken:    grant.RefreshToken,
		Host:            host,
	})
	if err != nil {
		return model.Credential{}, fmt.Errorf("store credential: %w", err)
	}

	slog.Info("credential connected", "credential_id", cred.ID, "owner_id", ownerID, "host", host)
	return cred, nil
}

// AddManual validates in, resolves its database host and stores it for ownerID.
func (s *ConnectService) AddManual(ctx context.Context, ownerID string, in ManualCredential) (model.Credential, error) {
	in.AppKey = strings.TrimSpace(in.AppKey)
	in.SignatureSecret = strings.TrimSpace(in.SignatureSecret)
	in.APIToken = strings.TrimSpace(in.APIToken)
	in.RefreshToken = strings.TrimSpace(in.RefreshToken)

	for _, f := range []struct{ name, value string }{
		{"app_key", in.AppKey},
		{"signature_secret", in.SignatureSecret},
		{"api_token", in.APIToken},
	} {
		if f.value == "" {
			return model.Credential{}, &model.ValidationError{RowIndex: -1, Field: f.name, Reason: "is required"}
		}
	}

	host, err := s.resolver.ResolveHost(ctx, in.APIToken)
	if err != nil {
		return model.Credential{}, err
	}

	cred, err := s.credentials.Create(ctx, model.Credential{
		OwnerID:         ownerID,
		AppKey:          in.AppKey,
		SignatureSecret: in.SignatureSecret,
		APIToken:        in.APIToken,
		RefreshToken:    in.RefreshToken,
		Host:            host,
	})
	if err != nil {
		return model.Credential{}, fmt.Errorf("store credential: %w", err)
	}

	slog.Info("credential added", "credential_id", cred.ID, "owner_id", ownerID, "host", host)
	return cred, nil
}

// Refresh renews the token pair of a credential and re-resolves its host.
func (s *ConnectService) Refresh(ctx context.Context, ownerID, id string) (model.Credential, error) {
	if s.oauth == nil {
		return model.Credential{}, errOAuthNotConfigured()
	}

	cred, err := s.credentials.Get(ctx, id, ownerID)
	if err != nil {
		return model.Credential{}, err
	}
	if cred.RefreshToken == "" {
		return model.Credential{}, &model.ValidationError{RowIndex: -1, Field: "refresh_token", Reason: "credential has no refresh token"}
	}

	grant, err := s.oauth.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return model.Credential{}, fmt.Errorf("refresh credential %s: %w", id, err)
	}

	host, err := s.resolver.ResolveHost(ctx, grant.APIToken)
	if err != nil {
		return model.Credential{}, err
	}

	if err := s.credentials.UpdateTokens(ctx, id, ownerID, grant, host); err != nil {
		return model.Credential{}, fmt.Errorf("update credential %s: %w", id, err)
	}

	updated, err := s.credentials.Get(ctx, id, ownerID)
	if err != nil {
		return model.Credential{}, err
	}
	slog.Info("credential refreshed", "credential_id", id, "host", host)
	return *updated, nil
}

// List returns ownerID's credentials, newest first.
func (s *ConnectService) List(ctx context.Context, ownerID string) ([]model.Credential, error) {
	return s.credentials.ListByOwner(ctx, ownerID)
}

// Remove deletes a credential together with its jobs.
func (s *ConnectService) Remove(ctx context.Context, ownerID, id string) error {
	if err := s.credentials.Delete(ctx, id, ownerID); err != nil {
		return err
	}
	slog.Info("credential removed", "credential_id", id, "owner_id", ownerID)
	return nil
}

func errOAuthNotConfigured() error {
	return &model.ConfigurationError{Missing: []string{"oauth client id", "oauth client secret", "oauth redirect url"}}
}
