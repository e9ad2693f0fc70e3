package auth

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/elimu/core"
)

var NowFunc = time.Now // mockable

// Claim is the identity carried by a session token. It is never persisted.
type Claim struct {
	SubjectID string `json:"sub"`
	Email     string `json:"email"`
	Role      Role   `json:"role"`
	Name      string `json:"name,omitempty"`
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

func (c Claims) claim() Claim {
	return Claim{SubjectID: c.Subject, Email: c.Email, Role: c.Role, Name: c.Name}
}

// Revocations is the token blacklist.
type Revocations interface {
	Add(ctx context.Context, token string, ttl time.Duration) error
	Contains(ctx context.Context, token string) (bool, error)
}

// Decoder turns a presented token into a Claim.
type Decoder interface {
	Decode(ctx context.Context, token string) (Claim, error)
}

// Issuer signs, decodes and revokes HS256 session tokens.
type Issuer struct {
	key     []byte
	issuer  string
	expiry  time.Duration
	revoked Revocations
}

var _ Decoder = (*Issuer)(nil)

func NewIssuer(conf *core.Config, revoked Revocations) *Issuer {
	return &Issuer{
		key:     []byte(conf.SecretKey),
		issuer:  conf.AppName,
		expiry:  conf.Auth.JWTExpirationDelta,
		revoked: revoked,
	}
}

// Issue generates a signed token for c, valid for the configured window.
func (iss *Issuer) Issue(c Claim) (string, time.Time, error) {
	now := NowFunc().UTC()
	expiresAt := now.Add(iss.expiry)
	claims := Claims{
		Email: c.Email,
		Role:  c.Role,
		Name:  c.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    iss.issuer,
			Subject:   c.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(iss.key)
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "signing token")
	}
	return ss, claims.ExpiresAt.Time, nil
}

// Decode verifies the token's signature and expiry, then checks it against the blacklist.
func (iss *Issuer) Decode(ctx context.Context, token string) (Claim, error) {
	claims, err := iss.parse(token, true)
	if err != nil {
		return Claim{}, err
	}

	revoked, err := iss.revoked.Contains(ctx, token)
	if err != nil {
		return Claim{}, errors.Wrap(ErrRevocationUnavailable, err.Error())
	}
	if revoked {
		return Claim{}, ErrRevoked
	}
	return claims.claim(), nil
}

// Revoke blacklists the token for the remainder of its lifetime. Expired tokens need no entry.
func (iss *Issuer) Revoke(ctx context.Context, token string) error {
	claims, err := iss.parse(token, false)
	if err != nil {
		return err
	}
	if claims.ExpiresAt == nil {
		return ErrInvalidToken
	}
	ttl := claims.ExpiresAt.Time.Sub(NowFunc())
	if ttl <= 0 {
		return nil
	}
	return errors.Wrap(iss.revoked.Add(ctx, token, ttl), "blacklisting token")
}

func (iss *Issuer) parse(token string, validate bool) (*Claims, error) {
	if token == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(NowFunc),
	}
	if validate {
		opts = append(opts, jwt.WithExpirationRequired(), jwt.WithIssuer(iss.issuer))
	} else {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	claims := new(Claims)
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return iss.key, nil
	}, opts...)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
