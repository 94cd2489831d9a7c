package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const (
	ClaimsKey contextKey = "claims"
	UserIDKey contextKey = "userID"
	RolesKey  contextKey = "roles"
)

const maxTokenSize = 8192

// expiryWarningWindow is how close to expiry a token must be before the
// X-Token-Expires-* headers are added to the response.
const expiryWarningWindow = time.Hour

// ErrorResponse is the error body shared by the auth layer and the handlers.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func ClaimsFromContext(ctx context.Context) *Claims {
	if claims, ok := ctx.Value(ClaimsKey).(*Claims); ok {
		return claims
	}
	return nil
}

func UserIDFromContext(ctx context.Context) int64 {
	if id, ok := ctx.Value(UserIDKey).(int64); ok {
		return id
	}
	return 0
}

func RolesFromContext(ctx context.Context) []string {
	if roles, ok := ctx.Value(RolesKey).([]string); ok {
		return roles
	}
	return nil
}

// WithClaims returns a context carrying claims the way AuthMiddleware sets
// them. Used by tools and tests that bypass the HTTP layer.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, ClaimsKey, claims)
	ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
	return context.WithValue(ctx, RolesKey, claims.Roles)
}

var publicPaths = map[string]bool{
	"/health":     true,
	"/dbping":     true,
	"/metrics":    true,
	"/auth/login": true,
}

func isPublicPath(path string) bool {
	return publicPaths[path]
}

func sendErrorResponse(w http.ResponseWriter, message, code string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message, Code: code}); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func sendTokenExpirationWarning(w http.ResponseWriter, claims *Claims) {
	if claims.ExpiresAt == nil || !claims.IsExpiringSoon(expiryWarningWindow) {
		return
	}
	left := time.Until(claims.ExpiresAt.Time)
	if left <= 0 {
		return
	}
	w.Header().Set("X-Token-Expires-At", claims.ExpiresAt.Time.Format(time.RFC3339))
	w.Header().Set("X-Token-Expires-In", left.Round(time.Second).String())
}

func validateTokenFormat(tokenString string) error {
	if len(tokenString) == 0 {
		return errors.New("token cannot be empty")
	}
	if len(tokenString) > maxTokenSize {
		return errors.New("token size exceeds maximum allowed")
	}
	if strings.Count(tokenString, ".") != 2 {
		return errors.New("invalid JWT token format")
	}
	return nil
}

// tokenErrorCode maps a jwt parse failure to the code reported to clients.
func tokenErrorCode(err error) (code, message string) {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "TOKEN_EXPIRED", "Token has expired"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return "INVALID_SIGNATURE", "Token signature is invalid"
	case errors.Is(err, jwt.ErrTokenMalformed):
		return "MALFORMED_TOKEN", "Token is malformed"
	case errors.Is(err, jwt.ErrTokenInvalidAudience), errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "INVALID_TOKEN_AUDIENCE", "Token was not issued for this service"
	default:
		return "INVALID_TOKEN", "Invalid or expired token"
	}
}

// AuthMiddleware validates bearer tokens and stores the claims in the request
// context. Public paths pass through untouched.
func AuthMiddleware(jwtManager *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				sendErrorResponse(w, "Authorization header required", "MISSING_AUTH_HEADER", http.StatusUnauthorized)
				return
			}
			tokenString, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok {
				sendErrorResponse(w, "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT", http.StatusUnauthorized)
				return
			}
			if tokenString == "" {
				sendErrorResponse(w, "Token is required", "MISSING_TOKEN", http.StatusUnauthorized)
				return
			}
			if err := validateTokenFormat(tokenString); err != nil {
				sendErrorResponse(w, "Invalid token format: "+err.Error(), "INVALID_TOKEN_FORMAT", http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.ValidateToken(tokenString)
			if err != nil {
				code, msg := tokenErrorCode(err)
				sendErrorResponse(w, msg, code, http.StatusUnauthorized)
				return
			}
			if claims.UserID <= 0 {
				sendErrorResponse(w, "Invalid user ID in token", "INVALID_USER_ID", http.StatusUnauthorized)
				return
			}
			if len(claims.Roles) == 0 {
				sendErrorResponse(w, "No roles assigned to user", "NO_ROLES", http.StatusUnauthorized)
				return
			}

			sendTokenExpirationWarning(w, claims)
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// MustRole rejects requests whose claims hold none of requiredRoles.
func MustRole(requiredRoles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				sendErrorResponse(w, "Authentication required", "AUTHENTICATION_REQUIRED", http.StatusUnauthorized)
				return
			}
			if len(requiredRoles) == 0 {
				sendErrorResponse(w, "No roles specified for this endpoint", "NO_ROLES_SPECIFIED", http.StatusInternalServerError)
				return
			}
			if !claims.HasRole(requiredRoles...) {
				sendErrorResponse(w, "Insufficient permissions", "INSUFFICIENT_PERMISSIONS", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SelfOrRole allows the request when the caller is the user named by
// userID(r) or holds one of roles.
func SelfOrRole(userID func(*http.Request) int64, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := ClaimsFromContext(r.Context())
			if claims == nil {
				sendErrorResponse(w, "Authentication required", "AUTHENTICATION_REQUIRED", http.StatusUnauthorized)
				return
			}
			if claims.UserID != userID(r) && !claims.HasRole(roles...) {
				sendErrorResponse(w, "Insufficient permissions", "INSUFFICIENT_PERMISSIONS", http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
