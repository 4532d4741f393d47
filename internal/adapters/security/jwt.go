package security

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"github.com/golang-jwt/jwt/v5"
)

// IdentityTokenVerifier checks RS256 identity tokens issued by the external
// identity provider and extracts the stable subject and email.
type IdentityTokenVerifier struct {
	issuer     string
	audience   string
	publicKey  *rsa.PublicKey
	privateKey *rsa.PrivateKey
}

func NewIdentityTokenVerifier(publicKeyPEM, issuer, audience string) (*IdentityTokenVerifier, error) {
	if strings.TrimSpace(publicKeyPEM) == "" {
		return nil, errors.New("identity token public key is required")
	}
	pub, err := parseRSAPublic(publicKeyPEM)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return &IdentityTokenVerifier{issuer: issuer, audience: audience, publicKey: pub}, nil
}

// NewEphemeralIdentityTokenVerifier holds an in-memory key pair so local and
// test runs can mint their own tokens with Sign.
func NewEphemeralIdentityTokenVerifier(issuer, audience string) (*IdentityTokenVerifier, error) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	return &IdentityTokenVerifier{
		issuer:     issuer,
		audience:   audience,
		publicKey:  &privateKey.PublicKey,
		privateKey: privateKey,
	}, nil
}

// NewSigningIdentityTokenVerifier loads a PEM private key. Used by tooling
// that mints development tokens for a shared key.
func NewSigningIdentityTokenVerifier(privateKeyPEM, issuer, audience string) (*IdentityTokenVerifier, error) {
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, errors.New("invalid private PEM")
	}
	var privateKey *rsa.PrivateKey
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		privateKey = key
	} else {
		keyAny, pkcs8Err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if pkcs8Err != nil {
			return nil, fmt.Errorf("parse private key: %w", pkcs8Err)
		}
		rsaKey, ok := keyAny.(*rsa.PrivateKey)
		if !ok {
			return nil, errors.New("private key is not RSA")
		}
		privateKey = rsaKey
	}
	return &IdentityTokenVerifier{
		issuer:     issuer,
		audience:   audience,
		publicKey:  &privateKey.PublicKey,
		privateKey: privateKey,
	}, nil
}

type identityJWTClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

func (v *IdentityTokenVerifier) Verify(_ context.Context, raw string) (ports.IdentityClaims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithLeeway(30 * time.Second),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}
	parsed, err := jwt.ParseWithClaims(raw, &identityJWTClaims{}, func(token *jwt.Token) (any, error) {
		return v.publicKey, nil
	}, opts...)
	if err != nil {
		return ports.IdentityClaims{}, err
	}
	claims, ok := parsed.Claims.(*identityJWTClaims)
	if !ok || !parsed.Valid {
		return ports.IdentityClaims{}, errors.New("invalid token claims")
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return ports.IdentityClaims{}, errors.New("token has no subject")
	}
	return ports.IdentityClaims{
		Subject: claims.Subject,
		Email:   strings.ToLower(strings.TrimSpace(claims.Email)),
	}, nil
}

// Sign mints a token for subject. Only verifiers holding a private key can sign.
func (v *IdentityTokenVerifier) Sign(subject, email string, ttl time.Duration) (string, error) {
	if v.privateKey == nil {
		return "", errors.New("verifier has no signing key")
	}
	now := time.Now().UTC()
	registered := jwt.RegisteredClaims{
		Subject:   subject,
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	if v.audience != "" {
		registered.Audience = jwt.ClaimStrings{v.audience}
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, identityJWTClaims{Email: email, RegisteredClaims: registered})
	return token.SignedString(v.privateKey)
}

// PublicKeyPEM exports the verification key, e.g. for handing a dev token's
// key to another process.
func (v *IdentityTokenVerifier) PublicKeyPEM() (string, error) {
	der, err := x509.MarshalPKIXPublicKey(v.publicKey)
	if err != nil {
		return "", err
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})), nil
}

func (v *IdentityTokenVerifier) PrivateKeyPEM() (string, error) {
	if v.privateKey == nil {
		return "", errors.New("verifier has no signing key")
	}
	der := x509.MarshalPKCS1PrivateKey(v.privateKey)
	return string(pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})), nil
}

func parseRSAPublic(raw string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, errors.New("invalid public PEM")
	}
	if key, err := x509.ParsePKCS1PublicKey(block.Bytes); err == nil {
		return key, nil
	}
	keyAny, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	key, ok := keyAny.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("public key is not RSA")
	}
	return key, nil
}
