// Package identity talks to the identity provider: principals live in Ory
// Kratos, bearer tokens are HS256 JWTs minted by this service.
package identity

import "context"

// Principal is an identity as the provider reports it. Read-only here.
type Principal struct {
	ID          string
	Email       string
	DisplayName string
	Phone       string
	Disabled    bool
	Providers   []string
}

// ProviderLabel is the first authentication provider of p, or "" when none
// is known.
func (p *Principal) ProviderLabel() string {
	if p == nil || len(p.Providers) == 0 {
		return ""
	}
	return p.Providers[0]
}

// NewPrincipal is the input to CreatePrincipal.
type NewPrincipal struct {
	// ProfileID is the local profile id, recorded on the identity as
	// public metadata. The provider assigns its own identity id.
	ProfileID   string
	Email       string
	Secret      string
	DisplayName string
	Phone       string
}

// Provider is the identity provider as the reconciler sees it.
//
// Lookups return apperr.ErrNotFound for unknown principals, creation
// returns apperr.ErrIdentityEmailExists for a taken email and credential
// or token failures return apperr.ErrUnauthorized.
type Provider interface {
	CreatePrincipal(ctx context.Context, in NewPrincipal) (*Principal, error)
	DeletePrincipal(ctx context.Context, id string) error
	GetPrincipal(ctx context.Context, id string) (*Principal, error)
	GetPrincipalByEmail(ctx context.Context, email string) (*Principal, error)
	VerifyCredentials(ctx context.Context, email, secret string) (*Principal, error)
	IssueToken(ctx context.Context, id string) (string, error)
	VerifyToken(ctx context.Context, token string) (string, error)
}

// Client is the production Provider: Kratos for principals, TokenIssuer for
// tokens.
type Client struct {
	*Kratos
	*TokenIssuer
}

func NewClient(k *Kratos, t *TokenIssuer) *Client {
	return &Client{Kratos: k, TokenIssuer: t}
}

var _ Provider = (*Client)(nil)
