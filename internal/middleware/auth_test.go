package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func signToken(t *testing.T, subject string, tenantID int, secret string, expiresAt time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, platformClaims{
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func identityRouter(required bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	mw := OptionalAuth()
	if required {
		mw = AuthMiddleware()
	}
	r.GET("/whoami", mw, func(c *gin.Context) {
		identity, ok := IdentityFromContext(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"anonymous": true})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user_id": identity.UserID, "tenant_id": identity.TenantID})
	})
	return r
}

func TestResolveToken(t *testing.T) {
	token := signToken(t, "42", 3, "dev-secret", time.Now().Add(time.Hour))

	identity, err := ResolveToken(token)
	require.NoError(t, err)
	require.Equal(t, Identity{UserID: 42, TenantID: 3}, identity)
}

func TestResolveTokenRejectsBadSignature(t *testing.T) {
	token := signToken(t, "42", 3, "other-secret", time.Now().Add(time.Hour))

	_, err := ResolveToken(token)
	require.Error(t, err)
}

func TestResolveTokenRejectsExpired(t *testing.T) {
	token := signToken(t, "42", 3, "dev-secret", time.Now().Add(-time.Minute))

	_, err := ResolveToken(token)
	require.Error(t, err)
}

func TestResolveTokenRejectsMissingTenant(t *testing.T) {
	token := signToken(t, "42", 0, "dev-secret", time.Now().Add(time.Hour))

	_, err := ResolveToken(token)
	require.Error(t, err)
}

func TestResolveTokenRejectsNonNumericSubject(t *testing.T) {
	token := signToken(t, "alice", 3, "dev-secret", time.Now().Add(time.Hour))

	_, err := ResolveToken(token)
	require.Error(t, err)
}

func TestAuthMiddlewareAcceptsBearerHeader(t *testing.T) {
	router := identityRouter(true)
	token := signToken(t, "7", 1, "dev-secret", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"user_id":7`)
}

func TestAuthMiddlewareAcceptsQueryToken(t *testing.T) {
	router := identityRouter(true)
	token := signToken(t, "7", 1, "dev-secret", time.Now().Add(time.Hour))

	req := httptest.NewRequest(http.MethodGet, "/whoami?token="+token, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestAuthMiddlewareRejectsMissingToken(t *testing.T) {
	router := identityRouter(true)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareRejectsGarbageToken(t *testing.T) {
	router := identityRouter(true)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestOptionalAuthFallsThroughAnonymously(t *testing.T) {
	router := identityRouter(false)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"anonymous":true`)
}

func TestOptionalAuthIgnoresInvalidToken(t *testing.T) {
	router := identityRouter(false)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer nope")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"anonymous":true`)
}
