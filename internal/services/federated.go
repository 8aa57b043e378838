package services

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
)

// FederatedIdentity is what an external identity provider vouches for.
type FederatedIdentity struct {
	UID   string
	Email string
	Name  string
}

// IdentityVerifier validates an external ID token.
type IdentityVerifier interface {
	Verify(ctx context.Context, rawToken string) (*FederatedIdentity, error)
}

// OIDCVerifier checks ID tokens against the issuer's published keys. Key
// rotation is handled by the provider's remote key set.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover oidc provider: %w", err)
	}
	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (v *OIDCVerifier) Verify(ctx context.Context, rawToken string) (*FederatedIdentity, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify id token: %w", err)
	}

	var claims struct {
		Email string `json:"email"`
		Name  string `json:"name"`
	}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to decode id token claims: %w", err)
	}

	return &FederatedIdentity{
		UID:   idToken.Subject,
		Email: claims.Email,
		Name:  claims.Name,
	}, nil
}
