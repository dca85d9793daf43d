package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"cohortboard/internal/middleware"
	"cohortboard/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
	if err := middleware.RegisterValidators(); err != nil {
		panic(err)
	}
}

func errorResponse(t *testing.T, handle gin.HandlerFunc, body string) (int, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handle(c)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return rec.Code, out
}

func TestRespondErrorStatus(t *testing.T) {
	tests := []struct {
		kind services.ErrorKind
		want int
	}{
		{services.KindInvalidFormat, http.StatusBadRequest},
		{services.KindDuplicate, http.StatusConflict},
		{services.KindNotFound, http.StatusNotFound},
		{services.KindAlreadyVerified, http.StatusConflict},
		{services.KindUnauthorized, http.StatusForbidden},
		{services.KindUserCreationFailed, http.StatusInternalServerError},
		{services.KindRegistrationFailed, http.StatusInternalServerError},
		{services.KindStoreError, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := &services.Error{Kind: tt.kind, Message: "메시지"}
			code, body := errorResponse(t, func(c *gin.Context) { respondError(c, err) }, "")
			assert.Equal(t, tt.want, code)
			assert.Equal(t, false, body["success"])
			assert.Equal(t, string(tt.kind), body["error"])
			assert.Equal(t, "메시지", body["message"])
		})
	}
}

func TestRespondErrorUnknownIsStoreError(t *testing.T) {
	code, body := errorResponse(t, func(c *gin.Context) { respondError(c, errors.New("disk on fire")) }, "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, string(services.KindStoreError), body["error"])
	assert.NotContains(t, body["message"], "disk")
}

func TestRespondBindError(t *testing.T) {
	bind := func(c *gin.Context) {
		var req verifyRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
		respondOK(c, req)
	}

	code, body := errorResponse(t, bind, `{"name":"  ","phone":"010-1234-5678"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "name 값을 입력해주세요.", body["message"])

	code, body = errorResponse(t, bind, `{"name":"김철수","phone":"12"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["message"], "전화번호")

	code, body = errorResponse(t, bind, `{"name":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, string(services.KindInvalidFormat), body["error"])

	code, _ = errorResponse(t, bind, `{"name":"김철수","phone":"010-1234-5678"}`)
	assert.Equal(t, http.StatusOK, code)
}
