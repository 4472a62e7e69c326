package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/Nhien18112/system-with-dbs/pkg/errors"
	"github.com/Nhien18112/system-with-dbs/pkg/middleware/requestid"
)

// Envelope is the body of every API response. Exactly one of Data and Error is set.
type Envelope struct {
	Data  interface{}            `json:"data,omitempty"`
	Error *appErrors.Error       `json:"error,omitempty"`
	Meta  map[string]interface{} `json:"meta,omitempty"`
}

// JSON writes a success envelope.
func JSON(c *gin.Context, status int, data interface{}, meta map[string]interface{}) {
	noStore(c)
	c.JSON(status, Envelope{Data: data, Meta: meta})
}

// OK writes data with HTTP 200.
func OK(c *gin.Context, data interface{}) {
	JSON(c, http.StatusOK, data, nil)
}

// Created writes data with HTTP 201.
func Created(c *gin.Context, data interface{}, meta map[string]interface{}) {
	JSON(c, http.StatusCreated, data, meta)
}

// List writes a collection with HTTP 200 and its size under meta.count. A nil
// slice is rendered as [] rather than null.
func List[T any](c *gin.Context, items []T, meta map[string]interface{}) {
	if items == nil {
		items = []T{}
	}
	if meta == nil {
		meta = make(map[string]interface{}, 1)
	}
	meta["count"] = len(items)
	JSON(c, http.StatusOK, items, meta)
}

// Error converts err to the common error shape. Server-side failures are also
// attached to the gin context so the request logger records the cause.
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	if appErr.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	var meta map[string]interface{}
	if id := requestid.Value(c); id != "" {
		meta = map[string]interface{}{"request_id": id}
	}
	noStore(c)
	c.JSON(appErr.Status, Envelope{Error: appErr, Meta: meta})
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
