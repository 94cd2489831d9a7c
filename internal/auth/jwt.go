package auth

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const minSecretLength = 32

// Claims carries the caller identity for the device ledger API.
type Claims struct {
	UserID int64    `json:"uid"`
	Roles  []string `json:"roles"`
	jwt.RegisteredClaims
}

// JWTManager signs and verifies HS256 tokens.
type JWTManager struct {
	secret   string
	issuer   string
	audience string
	expiry   time.Duration
	now      func() time.Time
}

func NewJWTManager(secret, issuer, audience string, expiry time.Duration) *JWTManager {
	return &JWTManager{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		expiry:   expiry,
		now:      time.Now,
	}
}

// ValidateConfig reports settings the manager cannot issue safe tokens with.
func (j *JWTManager) ValidateConfig() error {
	switch {
	case j.secret == "":
		return errors.New("jwt secret is required")
	case len(j.secret) < minSecretLength:
		return fmt.Errorf("jwt secret must be at least %d characters", minSecretLength)
	case j.issuer == "":
		return errors.New("jwt issuer is required")
	case j.audience == "":
		return errors.New("jwt audience is required")
	case j.expiry <= 0:
		return errors.New("jwt expiry must be positive")
	}
	return nil
}

// GenerateToken issues a token for a user holding the given roles.
func (j *JWTManager) GenerateToken(userID int64, roles []string) (string, error) {
	if userID <= 0 {
		return "", fmt.Errorf("invalid user id %d", userID)
	}
	if len(roles) == 0 {
		return "", errors.New("at least one role is required")
	}

	now := j.now()
	claims := &Claims{
		UserID: userID,
		Roles:  slices.Clone(roles),
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(j.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.issuer,
			Audience:  []string{j.audience},
			Subject:   strconv.FormatInt(userID, 10),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(j.secret))
}

// ValidateToken parses tokenString and checks signature, issuer and audience.
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(j.secret), nil
	},
		jwt.WithIssuer(j.issuer),
		jwt.WithAudience(j.audience),
		jwt.WithTimeFunc(j.now),
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token")
}

// HasRole checks if the user has any of the required roles
func (c *Claims) HasRole(requiredRoles ...string) bool {
	for _, required := range requiredRoles {
		if slices.Contains(c.Roles, required) {
			return true
		}
	}
	return false
}

// IsExpiringSoon reports whether the token expires within d. Tokens without
// an expiry never do.
func (c *Claims) IsExpiringSoon(d time.Duration) bool {
	if c.ExpiresAt == nil {
		return false
	}
	return time.Until(c.ExpiresAt.Time) <= d
}
