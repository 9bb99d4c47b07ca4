package testutil

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/trailworks/trail/internal/api"
	"github.com/trailworks/trail/internal/app"
	iauth "github.com/trailworks/trail/internal/auth"
	sharedtestutil "github.com/trailworks/trail/internal/database/testutil"
	"github.com/trailworks/trail/internal/exports"
	"github.com/trailworks/trail/internal/models"
	"github.com/trailworks/trail/internal/services"
	"github.com/trailworks/trail/pkg/response"
)

// Env encapsulates a fully-wired API instance backed by an in-memory database
// for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Logs   *services.LogService
	Sink   *exports.FilesystemSink
}

// NewEnv provisions a fresh handler test environment with migrations applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t)

	jwtSecret := "test-suite-super-secret-key-32-bytes!!"
	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:         jwtSecret,
		Issuer:         "test-suite",
		AccessTokenTTL: time.Hour,
	})
	require.NoError(t, err)

	cfg := &app.Config{
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret: jwtSecret,
				Issuer: "test-suite",
				TTL:    time.Hour,
			},
		},
	}

	logSvc, err := services.NewLogService(db, cfg.Logs.ServiceConfig())
	require.NoError(t, err)

	sink, err := exports.NewFilesystemSink(t.TempDir(), "/api/v1/logs/exports", time.Hour)
	require.NoError(t, err)

	router, err := api.NewRouter(db, jwtSvc, cfg, logSvc, sink)
	require.NoError(t, err)

	return &Env{
		T:      t,
		DB:     db,
		Router: router,
		JWT:    jwtSvc,
		Logs:   logSvc,
		Sink:   sink,
	}
}

// Token issues an access token for the given tenant carrying the permissions.
func (e *Env) Token(tenantID string, permissions ...string) string {
	e.T.Helper()

	token, err := e.JWT.GenerateAccessToken(iauth.AccessTokenInput{
		UserID:      uuid.NewString(),
		TenantID:    tenantID,
		Permissions: permissions,
	})
	require.NoError(e.T, err)
	require.NotEmpty(e.T, token)
	return token
}

// SeedEntry inserts a log entry directly, bypassing the HTTP surface.
func (e *Env) SeedEntry(entry models.LogEntry) models.LogEntry {
	e.T.Helper()
	require.NoError(e.T, e.DB.Create(&entry).Error)
	return entry
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON
// encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		require.NoError(e.T, err)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	recorder := httptest.NewRecorder()
	e.Router.ServeHTTP(recorder, req)
	return recorder
}
