package utils

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/gridbase-io/gridbase/internal/shared/errors"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func record(fn func(c *gin.Context)) (*httptest.ResponseRecorder, APIResponse) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	fn(c)

	var resp APIResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	return w, resp
}

func TestSuccessResponse(t *testing.T) {
	w, resp := record(func(c *gin.Context) {
		SuccessResponse(c, http.StatusCreated, "session created", gin.H{"token": "abc"})
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, "session created", resp.Message)
	data := resp.Data.(map[string]interface{})
	assert.Equal(t, "abc", data["token"])
}

func TestErrorResponse(t *testing.T) {
	w, resp := record(func(c *gin.Context) {
		ErrorResponse(c, http.StatusTooManyRequests, "too many login attempts")
	})

	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "too many login attempts", resp.Error.Message)
}

func TestAppErrorResponse_Classified(t *testing.T) {
	w, resp := record(func(c *gin.Context) {
		AppErrorResponse(c, apperrors.NewAuthFailedError("access denied"))
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(apperrors.KindAuthFailed), resp.Error.Kind)
	assert.Equal(t, "access denied", resp.Error.Message)
}

func TestAppErrorResponse_InternalIsScrubbed(t *testing.T) {
	w, resp := record(func(c *gin.Context) {
		AppErrorResponse(c, apperrors.NewInternalError("nil pointer in pump", "stack frames"))
	})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(apperrors.KindInternal), resp.Error.Kind)
	assert.Equal(t, "internal error", resp.Error.Message)
	assert.Empty(t, resp.Error.Details)
}
