package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/trailworks/trail/internal/auth"
)

func performPermissionRequest(t *testing.T, permissions []string, required string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwt := newTestJWTService(t)
	router := gin.New()
	router.GET("/resource", Auth(jwt), RequirePermission(required), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	token, err := jwt.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:      "user-1",
		TenantID:    "tenant-1",
		Permissions: permissions,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func TestRequirePermissionAllowsGranted(t *testing.T) {
	recorder := performPermissionRequest(t, []string{"logs.view"}, "logs.view")
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRequirePermissionAllowsWildcard(t *testing.T) {
	recorder := performPermissionRequest(t, []string{"*"}, "logs.export")
	require.Equal(t, http.StatusOK, recorder.Code)
}

func TestRequirePermissionDeniesMissing(t *testing.T) {
	recorder := performPermissionRequest(t, []string{"logs.view"}, "logs.export")
	require.Equal(t, http.StatusForbidden, recorder.Code)

	recorder = performPermissionRequest(t, nil, "logs.view")
	require.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRequirePermissionWithoutAuthContext(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/resource", RequirePermission("logs.view"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/resource", nil)
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	require.Equal(t, http.StatusUnauthorized, recorder.Code)
}
