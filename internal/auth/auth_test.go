package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager() *JWTManager {
	return NewJWTManager("test-secret-key-for-testing-only", "opsdesk-assets-api", "opsdesk-assets-api", time.Hour)
}

func TestGenerateAndValidateToken(t *testing.T) {
	manager := newTestManager()

	token, err := manager.GenerateToken(42, 7, []string{"employee", "manager"})
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := manager.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.UserID)
	assert.Equal(t, int64(7), claims.OrgID)
	assert.Equal(t, []string{"employee", "manager"}, claims.Roles)
	assert.Equal(t, "opsdesk-assets-api", claims.Issuer)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	manager := newTestManager()
	other := NewJWTManager("a-completely-different-secret", "opsdesk-assets-api", "opsdesk-assets-api", time.Hour)

	token, err := manager.GenerateToken(1, 1, []string{"employee"})
	require.NoError(t, err)

	_, err = other.ValidateToken(token)
	assert.Error(t, err)
}

func TestValidateTokenExpired(t *testing.T) {
	manager := NewJWTManager("test-secret-key-for-testing-only", "iss", "aud", -time.Minute)

	token, err := manager.GenerateToken(1, 1, []string{"employee"})
	require.NoError(t, err)

	_, err = manager.ValidateToken(token)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateConfig(t *testing.T) {
	assert.NoError(t, newTestManager().ValidateConfig())
	assert.Error(t, NewJWTManager("", "iss", "aud", time.Hour).ValidateConfig())
	assert.Error(t, NewJWTManager("secret", "", "aud", time.Hour).ValidateConfig())
	assert.Error(t, NewJWTManager("secret", "iss", "", time.Hour).ValidateConfig())
	assert.Error(t, NewJWTManager("secret", "iss", "aud", 0).ValidateConfig())
}

func TestClaimsHasRole(t *testing.T) {
	claims := &Claims{Roles: []string{"employee", "manager"}}

	assert.True(t, claims.HasRole("manager"))
	assert.True(t, claims.HasRole("org_admin", "employee"))
	assert.False(t, claims.HasRole("org_admin"))
	assert.False(t, claims.IsAdmin())

	admin := &Claims{Roles: []string{"org_admin"}}
	assert.True(t, admin.IsAdmin())
}

func TestAuthMiddlewareMissingHeader(t *testing.T) {
	manager := newTestManager()
	handler := AuthMiddleware(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest("GET", "/requests", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MISSING_AUTH_HEADER")
}

func TestAuthMiddlewareBadFormat(t *testing.T) {
	manager := newTestManager()
	handler := AuthMiddleware(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest("GET", "/requests", nil)
	req.Header.Set("Authorization", "Basic something")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "INVALID_AUTH_FORMAT")
}

func TestAuthMiddlewareGarbageToken(t *testing.T) {
	manager := newTestManager()
	handler := AuthMiddleware(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not be reached")
	}))

	req := httptest.NewRequest("GET", "/requests", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthMiddlewarePublicPath(t *testing.T) {
	manager := newTestManager()
	called := false
	handler := AuthMiddleware(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.True(t, called)
}

func TestAuthMiddlewareSetsContext(t *testing.T) {
	manager := newTestManager()
	token, err := manager.GenerateToken(42, 7, []string{"org_admin"})
	require.NoError(t, err)

	var gotUser, gotOrg int64
	var gotRoles []string
	handler := AuthMiddleware(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = UserIDFromContext(r.Context())
		gotOrg = OrgIDFromContext(r.Context())
		gotRoles = RolesFromContext(r.Context())
		assert.True(t, IsAdminFromContext(r.Context()))
	}))

	req := httptest.NewRequest("GET", "/requests", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), gotUser)
	assert.Equal(t, int64(7), gotOrg)
	assert.Equal(t, []string{"org_admin"}, gotRoles)
}

func TestMustRole(t *testing.T) {
	claims := &Claims{UserID: 1, OrgID: 1, Roles: []string{"employee"}}

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// Without claims in context
	req := httptest.NewRequest("POST", "/categories", nil)
	w := httptest.NewRecorder()
	MustRole("org_admin")(next).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// With insufficient role
	ctx := context.WithValue(req.Context(), ClaimsKey, claims)
	w = httptest.NewRecorder()
	MustRole("org_admin")(next).ServeHTTP(w, req.WithContext(ctx))
	assert.Equal(t, http.StatusForbidden, w.Code)

	// With matching role
	w = httptest.NewRecorder()
	MustRole("org_admin", "employee")(next).ServeHTTP(w, req.WithContext(ctx))
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestValidateTokenFormat(t *testing.T) {
	assert.Error(t, validateTokenFormat(""))
	assert.Error(t, validateTokenFormat("only.two"))
	assert.NoError(t, validateTokenFormat("a.b.c"))
}
