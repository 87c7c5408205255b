package apihandlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"imgtasks/internal/models"
)

// APIError defines the standard error response body.
// Example: { "error": { "code": "not_found", "message": "task abc: not found" } }
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error APIError `json:"error"`
}

// JSONError sends a structured error response.
func JSONError(ctx *gin.Context, status int, code, msg string) {
	ctx.JSON(status, errorResponse{Error: APIError{Code: code, Message: msg}})
}

func BadRequest(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusBadRequest, "bad_request", msg)
}

func NotFound(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusNotFound, "not_found", msg)
}

func Internal(ctx *gin.Context, msg string) {
	JSONError(ctx, http.StatusInternalServerError, "internal_error", msg)
}

// RespondError maps the domain error taxonomy onto transport status codes in
// one place. Unknown errors become 500s with the message withheld from the
// body.
func RespondError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		NotFound(ctx, err.Error())
	case errors.Is(err, models.ErrValidation):
		BadRequest(ctx, err.Error())
	case errors.Is(err, models.ErrInvalidState):
		JSONError(ctx, http.StatusBadRequest, "invalid_state", err.Error())
	case errors.Is(err, models.ErrInvalidTransition):
		JSONError(ctx, http.StatusConflict, "invalid_transition", err.Error())
	default:
		Internal(ctx, "internal server error")
	}
}
