package handler

import (
	"fmt"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	appErrors "github.com/Nhien18112/system-with-dbs/pkg/errors"
	"github.com/Nhien18112/system-with-dbs/pkg/response"
)

// idParam parses a positive int64 path parameter, writing a 400 when it is invalid.
func idParam(c *gin.Context, name string) (int64, bool) {
	return positiveID(c, name, c.Param(name))
}

// idQuery parses a required positive int64 query parameter, writing a 400 when it is invalid.
func idQuery(c *gin.Context, name string) (int64, bool) {
	return positiveID(c, name, c.Query(name))
}

func positiveID(c *gin.Context, name, raw string) (int64, bool) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s must be a positive integer", name)))
		return 0, false
	}
	return id, true
}

// payloads checks the validate tags on request dtos. gin's binder only reads
// binding tags.
var payloads = validator.New()

// bindJSON decodes and validates the request body, writing a 400 on malformed
// or invalid input.
func bindJSON(c *gin.Context, dest interface{}, what string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid "+what+" payload"))
		return false
	}
	if err := payloads.Struct(dest); err != nil {
		response.Error(c, appErrors.Invalid(err, "invalid "+what+" payload"))
		return false
	}
	return true
}
