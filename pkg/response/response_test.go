package response

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/Nhien18112/system-with-dbs/pkg/errors"
	"github.com/Nhien18112/system-with-dbs/pkg/middleware/requestid"
)

func record(t *testing.T, fn gin.HandlerFunc) (*httptest.ResponseRecorder, map[string]json.RawMessage) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.GET("/x", fn)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestid.HeaderKey, "req-42")
	r.ServeHTTP(w, req)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return w, body
}

func TestListRendersEmptyArrayAndCount(t *testing.T) {
	w, body := record(t, func(c *gin.Context) {
		var none []string
		List(c, none, nil)
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, string(body["data"]))
	assert.JSONEq(t, `{"count":0}`, string(body["meta"]))
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))
}

func TestListKeepsExistingMeta(t *testing.T) {
	_, body := record(t, func(c *gin.Context) {
		List(c, []int{1, 2}, map[string]interface{}{"message": "ok"})
	})
	assert.JSONEq(t, `{"count":2,"message":"ok"}`, string(body["meta"]))
}

func TestErrorCarriesRequestID(t *testing.T) {
	w, body := record(t, func(c *gin.Context) {
		Error(c, appErrors.Clone(appErrors.ErrTransitionRejected, "registration cannot be approved"))
	})

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.JSONEq(t, `{"code":"TRANSITION_REJECTED","message":"registration cannot be approved","status":409}`, string(body["error"]))
	assert.JSONEq(t, `{"request_id":"req-42"}`, string(body["meta"]))
	assert.NotContains(t, body, "data")
}

func TestErrorHidesUnknownCauses(t *testing.T) {
	w, body := record(t, func(c *gin.Context) {
		Error(c, assert.AnError)
	})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"code":"INTERNAL_ERROR","message":"internal server error","status":500}`, string(body["error"]))
}
