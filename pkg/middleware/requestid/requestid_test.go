package requestid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func echo(header string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/ping", func(c *gin.Context) {
		if Value(c) != FromContext(c.Request.Context()) {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, Value(c))
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	if header != "" {
		req.Header.Set(HeaderKey, header)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestGeneratesIDWhenAbsent(t *testing.T) {
	w := echo("")

	id := w.Header().Get(HeaderKey)
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, id, w.Body.String())
}

func TestKeepsWellFormedCallerID(t *testing.T) {
	w := echo("booking-7f3a.retry:2")
	assert.Equal(t, "booking-7f3a.retry:2", w.Header().Get(HeaderKey))
	assert.Equal(t, "booking-7f3a.retry:2", w.Body.String())
}

func TestReplacesMalformedCallerID(t *testing.T) {
	for _, bad := range []string{strings.Repeat("x", maxLength+1), "has space", "line\nbreak", "<script>"} {
		w := echo(bad)
		_, err := uuid.Parse(w.Header().Get(HeaderKey))
		assert.NoError(t, err, bad)
	}
}

func TestFromContextWithoutID(t *testing.T) {
	assert.Empty(t, FromContext(context.Background()))
	assert.Equal(t, "abc", FromContext(WithID(context.Background(), "abc")))
}
