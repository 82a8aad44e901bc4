package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inventory-sync-api/internal/auth"
	"inventory-sync-api/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func testTokens() *auth.TokenManager {
	return auth.NewTokenManager("test-secret", "inventory-sync-api", "inventory-sync-clients", time.Hour)
}

func TestJWTAuthMiddleware_Success(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := testTokens()
	r := gin.New()
	r.Use(JWTAuthMiddleware(tokens))
	var gotID int64
	r.GET("/protected", func(c *gin.Context) {
		gotID = UserID(c)
		c.Status(http.StatusOK)
	})

	token, err := tokens.GenerateToken(7, "alice", "warehouse")
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.EqualValues(t, 7, gotID)
}

func TestJWTAuthMiddleware_MissingHeader(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWTAuthMiddleware(testTokens()))
	r.GET("/protected", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()

	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tokens := testTokens()
	r := gin.New()
	r.Use(JWTAuthMiddleware(tokens), RequireRole(models.RoleWarehouse, models.RoleAdmin))
	r.POST("/ops", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := map[string]int{
		"warehouse": http.StatusOK,
		"admin":     http.StatusOK,
		"retailer":  http.StatusForbidden,
	}
	for role, want := range cases {
		token, err := tokens.GenerateToken(1, "u", role)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/ops", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		require.Equal(t, want, w.Code, "role %s", role)
	}
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, w.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, "abc", w.Header().Get(RequestIDHeader))
}
