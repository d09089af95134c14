package driven

import (
	"context"
	"time"

	"github.com/faisalnh/Exim-Accurate-sub001/internal/domain/model"
)

// PageQuery selects one page of a provider listing. Page is 1-based.
type PageQuery struct {
	Page     int
	PageSize int
	Filters  AdjustmentFilter
}

// AdjustmentFilter narrows an item adjustment listing. Zero values are ignored.
type AdjustmentFilter struct {
	From     time.Time
	To       time.Time
	Keywords string
}

// AccurateClient defines the driven port for signed, rate-limited calls to a
// credential's Accurate database host.
type AccurateClient interface {
	// ListAdjustments returns one page of item adjustments flattened to one
	// entry per detail line, plus the number of transactions on the page.
	// The transaction count drives end-of-data detection.
	ListAdjustments(ctx context.Context, cred model.Credential, q PageQuery) ([]model.InventoryAdjustment, int, error)

	// SaveAdjustment creates one single-line item adjustment and returns the
	// provider-assigned id. A provider refusal is *model.RejectedError.
	SaveAdjustment(ctx context.Context, cred model.Credential, adj model.InventoryAdjustment) (string, error)

	// GetItem looks up an item by its code. Returns *model.NotFoundError when
	// the provider does not know the item.
	GetItem(ctx context.Context, cred model.Credential, itemNo string) (*model.Item, error)
}

// OAuthExchanger drives the provider's authorization-code flow.
type OAuthExchanger interface {
	// AuthorizeURL builds the provider consent URL. state is passed through
	// unchanged and omitted when empty; callers validate it on return.
	AuthorizeURL(state string) string

	// Exchange trades an authorization code for a token pair.
	Exchange(ctx context.Context, code string) (model.TokenGrant, error)

	// Refresh trades a refresh token for a new token pair.
	Refresh(ctx context.Context, refreshToken string) (model.TokenGrant, error)
}

// HostResolver discovers the database host an API token is bound to.
type HostResolver interface {
	ResolveHost(ctx context.Context, apiToken string) (string, error)
}
