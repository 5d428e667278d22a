package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/expense-desk/internal/domain/entity"
)

// Error codes carried in the error envelope
const (
	CodeValidation      = "validation_failed"
	CodeUnauthenticated = "unauthenticated"
	CodeForbidden       = "forbidden"
	CodeNotFound        = "not_found"
	CodeConflict        = "conflict"
	CodeInternal        = "internal"
)

// Response is the envelope of every JSON response
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
}

// ErrorBody describes a failed request
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// classify maps a domain error to its HTTP status and error code
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, entity.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, entity.ErrUnauthenticated):
		return http.StatusUnauthorized, CodeUnauthenticated
	case errors.Is(err, entity.ErrForbidden):
		return http.StatusForbidden, CodeForbidden
	case errors.Is(err, entity.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, entity.ErrConflict):
		return http.StatusConflict, CodeConflict
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func respondOK(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

// respondError writes the error envelope. Internal failures are logged and
// their details are not sent to the client.
func (h *Handlers) respondError(c *gin.Context, err error) {
	status, code := classify(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err,
		)
		message = "internal server error"
	}
	c.AbortWithStatusJSON(status, Response{
		Success: false,
		Error:   &ErrorBody{Code: code, Message: message},
	})
}

// badRequest reports a payload that could not be bound
func (h *Handlers) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Response{
		Success: false,
		Error:   &ErrorBody{Code: CodeValidation, Message: err.Error()},
	})
}
