package middleware

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Strob0t/Studio/internal/domain/user"
)

// Claims is the token payload issued by the identity backend. Tenant and
// role are read from the top level first and from app_metadata second.
type Claims struct {
	Email       string      `json:"email,omitempty"`
	Name        string      `json:"name,omitempty"`
	TenantID    string      `json:"tenant_id,omitempty"`
	Role        string      `json:"role,omitempty"`
	AppMetadata AppMetadata `json:"app_metadata,omitempty"`
	jwt.RegisteredClaims
}

// AppMetadata holds claims the backend places under app_metadata.
type AppMetadata struct {
	TenantID string `json:"tenant_id,omitempty"`
	Role     string `json:"role,omitempty"`
}

// JWTVerifier validates HS256 tokens against a rotating shared secret.
type JWTVerifier struct {
	secret   func() string
	issuer   string
	audience string
}

// NewJWTVerifier creates a verifier. issuer and audience are checked when set.
func NewJWTVerifier(secret func() string, issuer, audience string) *JWTVerifier {
	return &JWTVerifier{secret: secret, issuer: issuer, audience: audience}
}

// Verify parses and validates token and maps its claims to a user.
func (v *JWTVerifier) Verify(token string) (*user.User, error) {
	secret := v.secret()
	if secret == "" {
		return nil, errors.New("jwt secret not configured")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	u := &user.User{
		ID:       claims.Subject,
		Email:    claims.Email,
		Name:     claims.Name,
		TenantID: firstNonEmpty(claims.TenantID, claims.AppMetadata.TenantID),
		Role:     user.ParseRole(firstNonEmpty(claims.AppMetadata.Role, claims.Role)),
	}
	if err := u.Validate(); err != nil {
		return nil, fmt.Errorf("token claims: %w", err)
	}
	return u, nil
}

// IssueToken signs an HS256 token for u. It backs the admin CLI and tests;
// production tokens come from the identity backend.
func IssueToken(secret string, u *user.User, ttl time.Duration) (string, error) {
	return issue(secret, "", "", u, ttl)
}

// Issue signs a token for u that v accepts, carrying v's issuer and audience.
func (v *JWTVerifier) Issue(u *user.User, ttl time.Duration) (string, error) {
	secret := v.secret()
	if secret == "" {
		return "", errors.New("jwt secret not configured")
	}
	return issue(secret, v.issuer, v.audience, u, ttl)
}

func issue(secret, issuer, audience string, u *user.User, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		Email:    u.Email,
		Name:     u.Name,
		TenantID: u.TenantID,
		Role:     string(u.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if audience != "" {
		claims.Audience = jwt.ClaimStrings{audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
