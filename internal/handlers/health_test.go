package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/trailworks/trail/internal/handlers/testutil"
)

func TestHealthEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/health", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)

	payload := testutil.DecodeResponse(t, resp)
	require.True(t, payload.Success)

	var body map[string]string
	testutil.DecodeInto(t, payload.Data, &body)
	require.Equal(t, "ok", body["status"])
}
