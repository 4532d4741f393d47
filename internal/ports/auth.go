package ports

import "context"

// IdentityClaims is what the external identity provider vouches for.
type IdentityClaims struct {
	Subject string
	Email   string
}

type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (IdentityClaims, error)
}

type InvitationHasher interface {
	Hash(token string) (string, error)
	Compare(hash, token string) error
}
