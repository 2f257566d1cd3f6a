package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	custom_errors "github.com/flowmail/flowmail/internal/errors"
)

func respond(t *testing.T, err error) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)

	recorder := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(recorder)
	respondError(c, err)
	return recorder
}

func TestRespondError_Taxonomy(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, respond(t, custom_errors.ErrNotFound).Code)
	assert.Equal(t, http.StatusForbidden, respond(t, custom_errors.ErrUnauthorized).Code)
	assert.Equal(t, http.StatusBadRequest, respond(t, custom_errors.ErrNoValidRecipients).Code)
	assert.Equal(t, http.StatusServiceUnavailable, respond(t, custom_errors.ErrUnavailable).Code)
	assert.Equal(t, http.StatusInternalServerError, respond(t, errors.New("boom")).Code)

	// wrapped sentinels still map
	wrapped := errors.Wrap(custom_errors.ErrNotFound, "email email_x")
	assert.Equal(t, http.StatusNotFound, respond(t, wrapped).Code)
}

func TestRespondError_UpstreamCarriesStatus(t *testing.T) {
	upstream := custom_errors.NewUpstreamError("gmail.messages.send", 429, errors.New("rate limited"))
	recorder := respond(t, errors.Wrap(upstream, "send failed"))

	require.Equal(t, http.StatusBadGateway, recorder.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, "mail provider error", body["error"])
	assert.Equal(t, float64(429), body["upstreamStatus"])
}
