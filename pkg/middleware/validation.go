package middleware

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"reflect"

	"github.com/gin-gonic/gin"

	"github.com/richxcame/fraud-screening/pkg/common"
	"github.com/richxcame/fraud-screening/pkg/validation"
)

const validatedRequestKey = "validatedRequest"

// ValidateRequest binds and validates the JSON body against the given
// request type before the handler runs. The prototype supplies only the
// type; a fresh instance is bound per request so concurrent requests never
// share state. Handlers read the result with GetValidatedRequest.
func ValidateRequest(prototype interface{}) gin.HandlerFunc {
	t := reflect.TypeOf(prototype)
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}

	return func(c *gin.Context) {
		req := reflect.New(t).Interface()

		if err := c.ShouldBindJSON(req); err != nil {
			common.ErrorResponse(c, http.StatusBadRequest, "Invalid request format")
			c.Abort()
			return
		}
		if err := validation.ValidateStruct(req); err != nil {
			respondValidationError(c, err)
			c.Abort()
			return
		}

		c.Set(validatedRequestKey, req)
		c.Next()
	}
}

// GetValidatedRequest returns the request bound by ValidateRequest.
func GetValidatedRequest(c *gin.Context) (interface{}, bool) {
	return c.Get(validatedRequestKey)
}

// ValidateJSON binds the JSON body into req and validates it, for handlers
// that want the request in a concrete type instead of going through the
// middleware form.
func ValidateJSON(c *gin.Context, req interface{}) error {
	if err := c.ShouldBindJSON(req); err != nil {
		return err
	}
	return validation.ValidateStruct(req)
}

// respondValidationError answers with per-field messages when the failure
// carries them.
func respondValidationError(c *gin.Context, err error) {
	var valErr *validation.ValidationError
	if errors.As(err, &valErr) {
		c.JSON(http.StatusBadRequest, common.Response{
			Success: false,
			Error: &common.ErrorDetail{
				Message: "Validation failed",
				Fields:  valErr.Errors,
			},
		})
		return
	}
	common.ErrorResponse(c, http.StatusBadRequest, "Validation failed")
}

// ValidateContentType rejects requests whose Content-Type differs from want.
func ValidateContentType(want string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.ContentType() != want {
			common.ErrorResponse(c, http.StatusUnsupportedMediaType, "unsupported content type, expected "+want)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ValidateJSONContentType requires an application/json body.
func ValidateJSONContentType() gin.HandlerFunc {
	return ValidateContentType("application/json")
}

// MaxBodySize caps the request body. API bodies here are small control
// messages; bulk transaction data arrives by URI, never inline.
func MaxBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Body == nil {
			c.Next()
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				common.ErrorResponse(c, http.StatusRequestEntityTooLarge, "request body exceeds limit")
			} else {
				common.ErrorResponse(c, http.StatusBadRequest, "could not read request body")
			}
			c.Abort()
			return
		}

		// Hand downstream handlers a rewound copy of what was read.
		c.Request.Body = io.NopCloser(bytes.NewReader(body))
		c.Next()
	}
}
