package auth

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"
)

const (
	// Issuer is the iss claim on every token.
	Issuer = "devroom"
	// DefaultTokenTTL is how long a login token stays valid.
	DefaultTokenTTL = 7 * 24 * time.Hour
	// DefaultSecret matches the fallback used by earlier deployments.
	DefaultSecret = "secretkey"
)

// ErrInvalidToken is returned for any token that fails parsing,
// signature, issuer or expiry checks.
var ErrInvalidToken = errors.New("invalid token")

// Claims is the verified content of a session token.
type Claims struct {
	UserID    string
	Name      string
	Email     string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type privateClaims struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	key    []byte
	ttl    time.Duration
	signer jose.Signer
	now    func() time.Time
}

// NewTokenIssuer creates an issuer keyed by secret. The HMAC key is the
// SHA-256 of the secret, so short secrets remain usable. A ttl <= 0 selects
// DefaultTokenTTL.
func NewTokenIssuer(secret string, ttl time.Duration) (*TokenIssuer, error) {
	if secret == "" {
		return nil, errors.New("token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	sum := sha256.Sum256([]byte(secret))
	key := sum[:]

	signer, err := jose.NewSigner(
		jose.SigningKey{Algorithm: jose.HS256, Key: key},
		(&jose.SignerOptions{}).WithType("JWT"),
	)
	if err != nil {
		return nil, fmt.Errorf("create signer: %w", err)
	}
	return &TokenIssuer{key: key, ttl: ttl, signer: signer, now: time.Now}, nil
}

// TTL returns the lifetime of issued tokens.
func (ti *TokenIssuer) TTL() time.Duration {
	return ti.ttl
}

// Issue signs a token for the given account.
func (ti *TokenIssuer) Issue(userID, name, email string) (string, error) {
	now := ti.now()
	std := jwt.Claims{
		Issuer:   Issuer,
		Subject:  userID,
		IssuedAt: jwt.NewNumericDate(now),
		Expiry:   jwt.NewNumericDate(now.Add(ti.ttl)),
	}
	raw, err := jwt.Signed(ti.signer).Claims(std).Claims(privateClaims{Name: name, Email: email}).Serialize()
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return raw, nil
}

// Verify checks the token's signature, issuer and expiry.
func (ti *TokenIssuer) Verify(raw string) (*Claims, error) {
	tok, err := jwt.ParseSigned(raw, []jose.SignatureAlgorithm{jose.HS256})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var std jwt.Claims
	var priv privateClaims
	if err := tok.Claims(ti.key, &std, &priv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if err := std.ValidateWithLeeway(jwt.Expected{Issuer: Issuer, Time: ti.now()}, time.Minute); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if std.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	c := &Claims{UserID: std.Subject, Name: priv.Name, Email: priv.Email}
	if std.IssuedAt != nil {
		c.IssuedAt = std.IssuedAt.Time()
	}
	if std.Expiry != nil {
		c.ExpiresAt = std.Expiry.Time()
	}
	return c, nil
}
