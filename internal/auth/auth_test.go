package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	testSecret   = "test-secret-key-that-is-long-enough-for-testing"
	testIssuer   = "test-issuer"
	testAudience = "test-audience"
)

func newTestManager() *JWTManager {
	return NewJWTManager(testSecret, testIssuer, testAudience, time.Hour)
}

func TestNewJWTManager(t *testing.T) {
	manager := NewJWTManager(testSecret, testIssuer, testAudience, time.Hour)

	if manager.secret != testSecret {
		t.Errorf("Expected secret %s, got %s", testSecret, manager.secret)
	}
	if manager.issuer != testIssuer {
		t.Errorf("Expected issuer %s, got %s", testIssuer, manager.issuer)
	}
	if manager.audience != testAudience {
		t.Errorf("Expected audience %s, got %s", testAudience, manager.audience)
	}
	if manager.expiry != time.Hour {
		t.Errorf("Expected expiry %v, got %v", time.Hour, manager.expiry)
	}
}

func TestJWTManager_ValidateConfig(t *testing.T) {
	tests := []struct {
		name     string
		secret   string
		issuer   string
		audience string
		expiry   time.Duration
		wantErr  bool
	}{
		{"valid config", testSecret, testIssuer, testAudience, time.Hour, false},
		{"empty secret", "", testIssuer, testAudience, time.Hour, true},
		{"secret too short", "short", testIssuer, testAudience, time.Hour, true},
		{"empty issuer", testSecret, "", testAudience, time.Hour, true},
		{"empty audience", testSecret, testIssuer, "", time.Hour, true},
		{"negative expiry", testSecret, testIssuer, testAudience, -time.Hour, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager := NewJWTManager(tt.secret, tt.issuer, tt.audience, tt.expiry)
			err := manager.ValidateConfig()
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestJWTManager_GenerateToken(t *testing.T) {
	manager := newTestManager()

	tests := []struct {
		name    string
		userID  int64
		roles   []string
		wantErr bool
	}{
		{"valid token", 1, []string{"admin"}, false},
		{"staff token", 7, []string{"staff"}, false},
		{"invalid user ID", 0, []string{"admin"}, true},
		{"negative user ID", -3, []string{"admin"}, true},
		{"empty roles", 1, []string{}, true},
		{"nil roles", 1, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			token, err := manager.GenerateToken(tt.userID, tt.roles)
			if (err != nil) != tt.wantErr {
				t.Errorf("GenerateToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && token == "" {
				t.Error("GenerateToken() returned empty token")
			}
		})
	}
}

func TestJWTManager_ValidateToken(t *testing.T) {
	manager := newTestManager()

	validToken, err := manager.GenerateToken(1, []string{"admin"})
	if err != nil {
		t.Fatalf("Failed to generate valid token: %v", err)
	}

	otherAudience, err := NewJWTManager(testSecret, testIssuer, "someone-else", time.Hour).GenerateToken(1, []string{"admin"})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}
	otherSecret, err := NewJWTManager(strings.Repeat("x", 40), testIssuer, testAudience, time.Hour).GenerateToken(1, []string{"admin"})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid token", validToken, false},
		{"empty token", "", true},
		{"malformed token", "invalid.token", true},
		{"token with wrong secret", otherSecret, true},
		{"token for another audience", otherAudience, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := manager.ValidateToken(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateToken() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && claims == nil {
				t.Error("ValidateToken() returned nil claims for valid token")
			}
		})
	}
}

func TestJWTManager_ValidateToken_RoundTripsClaims(t *testing.T) {
	manager := newTestManager()
	token, err := manager.GenerateToken(42, []string{"staff", "admin"})
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	claims, err := manager.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() failed: %v", err)
	}
	if claims.UserID != 42 {
		t.Errorf("Expected UserID 42, got %d", claims.UserID)
	}
	if claims.Subject != "42" {
		t.Errorf("Expected subject 42, got %s", claims.Subject)
	}
	if len(claims.Roles) != 2 || claims.Roles[0] != "staff" || claims.Roles[1] != "admin" {
		t.Errorf("Expected roles [staff admin], got %v", claims.Roles)
	}
}

func TestJWTManager_ValidateToken_Expired(t *testing.T) {
	manager := newTestManager()
	manager.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := manager.GenerateToken(1, []string{"admin"})
	if err != nil {
		t.Fatalf("GenerateToken() failed: %v", err)
	}

	manager.now = time.Now
	_, err = manager.ValidateToken(token)
	if err == nil {
		t.Fatal("Expected expired token to be rejected")
	}
	if code, _ := tokenErrorCode(err); code != "TOKEN_EXPIRED" {
		t.Errorf("Expected TOKEN_EXPIRED, got %s", code)
	}
}

func TestClaims_HasRole(t *testing.T) {
	claims := &Claims{
		UserID: 1,
		Roles:  []string{"admin", "staff"},
	}

	tests := []struct {
		name          string
		requiredRoles []string
		want          bool
	}{
		{"has admin role", []string{"admin"}, true},
		{"has staff role", []string{"staff"}, true},
		{"has any of multiple roles", []string{"admin", "auditor"}, true},
		{"does not have role", []string{"auditor"}, false},
		{"empty required roles", []string{}, false},
		{"nil required roles", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := claims.HasRole(tt.requiredRoles...); got != tt.want {
				t.Errorf("HasRole() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClaims_IsExpiringSoon(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		expiresAt *jwt.NumericDate
		duration  time.Duration
		want      bool
	}{
		{"expires soon", jwt.NewNumericDate(now.Add(30 * time.Minute)), time.Hour, true},
		{"expires later", jwt.NewNumericDate(now.Add(2 * time.Hour)), time.Hour, false},
		{"already expired", jwt.NewNumericDate(now.Add(-time.Hour)), time.Hour, true},
		{"nil expires at", nil, time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := &Claims{
				UserID:           1,
				Roles:            []string{"admin"},
				RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: tt.expiresAt},
			}
			if got := claims.IsExpiringSoon(tt.duration); got != tt.want {
				t.Errorf("IsExpiringSoon() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestContextFunctions(t *testing.T) {
	ctx := context.Background()

	if UserIDFromContext(ctx) != 0 {
		t.Error("Expected UserIDFromContext to return 0 for empty context")
	}
	if RolesFromContext(ctx) != nil {
		t.Error("Expected RolesFromContext to return nil for empty context")
	}
	if ClaimsFromContext(ctx) != nil {
		t.Error("Expected ClaimsFromContext to return nil for empty context")
	}

	claims := &Claims{UserID: 123, Roles: []string{"admin"}}
	ctx = WithClaims(ctx, claims)

	if UserIDFromContext(ctx) != 123 {
		t.Errorf("Expected UserIDFromContext to return 123, got %d", UserIDFromContext(ctx))
	}
	roles := RolesFromContext(ctx)
	if len(roles) != 1 || roles[0] != "admin" {
		t.Errorf("Expected RolesFromContext to return [admin], got %v", roles)
	}
	if ClaimsFromContext(ctx) != claims {
		t.Error("Expected ClaimsFromContext to return the same claims")
	}
}

func TestPublicPaths(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/health", true},
		{"/dbping", true},
		{"/metrics", true},
		{"/auth/login", true},
		{"/devices", false},
		{"/device-assignments", false},
		{"/device-models/1", false},
		{"/imports/devices", false},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := isPublicPath(tt.path); got != tt.want {
				t.Errorf("isPublicPath(%s) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestValidateTokenFormat(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		wantErr bool
	}{
		{"valid JWT format", "header.payload.signature", false},
		{"empty token", "", true},
		{"too many parts", "header.payload.signature.extra", true},
		{"too few parts", "header.payload", true},
		{"token too long", strings.Repeat("a", 9000), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTokenFormat(tt.token)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateTokenFormat() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var errorResp ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&errorResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}
	return errorResp
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	middleware := AuthMiddleware(newTestManager())

	tests := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing header", "", "MISSING_AUTH_HEADER"},
		{"basic scheme", "Basic Zm9vOmJhcg==", "INVALID_AUTH_FORMAT"},
		{"empty bearer", "Bearer ", "MISSING_TOKEN"},
		{"two segments", "Bearer abc.def", "INVALID_TOKEN_FORMAT"},
		{"garbage token", "Bearer invalid.token.format", "MALFORMED_TOKEN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/devices", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("Handler should not be called when auth fails")
			}))
			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("Expected status Unauthorized, got %d", w.Code)
			}
			if got := decodeError(t, w).Code; got != tt.wantCode {
				t.Errorf("Expected code %s, got %s", tt.wantCode, got)
			}
		})
	}
}

func TestAuthMiddleware_PublicPathSkipsAuth(t *testing.T) {
	middleware := AuthMiddleware(newTestManager())
	req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
	w := httptest.NewRecorder()

	called := false
	middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})).ServeHTTP(w, req)

	if !called {
		t.Error("Handler should be called for public path")
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	manager := newTestManager()
	middleware := AuthMiddleware(manager)

	token, err := manager.GenerateToken(1, []string{"admin"})
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/devices", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	handlerCalled := false
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true

		if userID := UserIDFromContext(r.Context()); userID != 1 {
			t.Errorf("Expected UserID 1, got %d", userID)
		}
		roles := RolesFromContext(r.Context())
		if len(roles) != 1 || roles[0] != "admin" {
			t.Errorf("Expected roles [admin], got %v", roles)
		}
		w.WriteHeader(http.StatusOK)
	}))
	handler.ServeHTTP(w, req)

	if !handlerCalled {
		t.Error("Handler should be called with valid token")
	}
	if w.Code != http.StatusOK {
		t.Errorf("Expected status OK, got %d", w.Code)
	}
	if w.Header().Get("X-Token-Expires-At") == "" {
		t.Error("Expected expiry warning header for a token expiring within the hour")
	}
}

func TestMustRole(t *testing.T) {
	tests := []struct {
		name     string
		claims   *Claims
		required []string
		wantCode int
	}{
		{"sufficient permissions", &Claims{UserID: 1, Roles: []string{"admin", "staff"}}, []string{"admin"}, http.StatusOK},
		{"insufficient permissions", &Claims{UserID: 2, Roles: []string{"staff"}}, []string{"admin"}, http.StatusForbidden},
		{"no claims", nil, []string{"admin"}, http.StatusUnauthorized},
		{"no roles configured", &Claims{UserID: 1, Roles: []string{"admin"}}, nil, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/devices", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			w := httptest.NewRecorder()

			MustRole(tt.required...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}

func TestSelfOrRole(t *testing.T) {
	target := func(*http.Request) int64 { return 7 }

	tests := []struct {
		name     string
		claims   *Claims
		wantCode int
	}{
		{"same user", &Claims{UserID: 7, Roles: []string{"staff"}}, http.StatusOK},
		{"admin", &Claims{UserID: 1, Roles: []string{"admin"}}, http.StatusOK},
		{"other staff", &Claims{UserID: 5, Roles: []string{"staff"}}, http.StatusForbidden},
		{"anonymous", nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/users/7/device-assignments/1", nil)
			if tt.claims != nil {
				req = req.WithContext(WithClaims(req.Context(), tt.claims))
			}
			w := httptest.NewRecorder()

			SelfOrRole(target, "admin")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})).ServeHTTP(w, req)

			if w.Code != tt.wantCode {
				t.Errorf("Expected status %d, got %d", tt.wantCode, w.Code)
			}
		})
	}
}

func TestSendErrorResponse(t *testing.T) {
	w := httptest.NewRecorder()

	sendErrorResponse(w, "Test error", "TEST_ERROR", http.StatusBadRequest)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status BadRequest, got %d", w.Code)
	}
	if w.Header().Get("Content-Type") != "application/json" {
		t.Errorf("Expected Content-Type application/json, got %s", w.Header().Get("Content-Type"))
	}

	errorResp := decodeError(t, w)
	if errorResp.Error != "Test error" {
		t.Errorf("Expected error message 'Test error', got %s", errorResp.Error)
	}
	if errorResp.Code != "TEST_ERROR" {
		t.Errorf("Expected error code 'TEST_ERROR', got %s", errorResp.Code)
	}
}
