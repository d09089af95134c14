package driven

import (
	"context"
	"errors"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

// ErrEncryptionKeyNotSet is returned by CredentialStore operations when
// EXIMACCURATE_SECRET_KEY has not been configured.
var ErrEncryptionKeyNotSet = errors.New("encryption key not configured: set EXIMACCURATE_SECRET_KEY")

// CredentialStore defines the driven port for owner-scoped credential persistence.
// The adapter layer is responsible for encrypting secrets at rest; this interface
// operates on plaintext values at the domain boundary.
type CredentialStore interface {
	// Create persists a new credential. ID and timestamps are assigned by the
	// store when empty.
	Create(ctx context.Context, cred model.Credential) (model.Credential, error)

	// Get returns the credential only when it belongs to ownerID.
	// Returns *model.NotFoundError otherwise.
	Get(ctx context.Context, id, ownerID string) (*model.Credential, error)

	// ListByOwner returns every credential owned by ownerID, newest first.
	ListByOwner(ctx context.Context, ownerID string) ([]model.Credential, error)

	// UpdateTokens replaces the token pair and host after a refresh.
	// Returns *model.NotFoundError when the credential does not belong to ownerID.
	UpdateTokens(ctx context.Context, id, ownerID string, grant model.TokenGrant, host string) error

	// Delete removes the credential and, by cascade, its jobs.
	// Returns *model.NotFoundError when nothing was deleted.
	Delete(ctx context.Context, id, ownerID string) error
}
