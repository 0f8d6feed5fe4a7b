package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mikepea/extids/pkg/extids/models"
	"github.com/mikepea/extids/pkg/extids/policy"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

const (
	issuerName = "extids"
	// DevSecret signs tokens when no secret is configured. Development only.
	DevSecret = "extids-dev-secret-change-in-production"
	// DefaultTTL is how long issued tokens stay valid
	DefaultTTL = 24 * time.Hour
)

// Claims represents the JWT claims
type Claims struct {
	ClientID    uint     `json:"client_id"`
	Name        string   `json:"name"`
	Role        string   `json:"role"`
	RecordTypes []string `json:"record_types,omitempty"`
	CompanyIDs  []uint   `json:"company_ids,omitempty"`
	jwt.RegisteredClaims
}

// Scope returns the visibility scope the claims grant
func (c *Claims) Scope() policy.Scope {
	if c.Role == string(models.ClientRoleAdmin) {
		return policy.All
	}
	return policy.Scope{RecordTypes: c.RecordTypes, CompanyIDs: c.CompanyIDs}
}

// Issuer signs and validates client tokens
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer creates an issuer. An empty secret falls back to DevSecret and a
// non-positive ttl to DefaultTTL.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if secret == "" {
		secret = DevSecret
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// GenerateToken creates a token for a client
func (i *Issuer) GenerateToken(client *models.APIClient) (string, time.Time, error) {
	now := i.now()
	expires := now.Add(i.ttl)
	claims := &Claims{
		ClientID:    client.ID,
		Name:        client.Name,
		Role:        string(client.Role),
		RecordTypes: client.RecordTypeList(),
		CompanyIDs:  client.CompanyIDList(),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuerName,
			Subject:   client.Name,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	return signed, expires, err
}

// ValidateToken validates a token and returns the claims
func (i *Issuer) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuerName), jwt.WithTimeFunc(i.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
