package controller

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

var (
	ErrNilOracle = errors.New("oracle cannot be nil")
	ErrNilStore  = errors.New("store cannot be nil")
	ErrNilLogger = errors.New("logger cannot be nil")
)

type APIError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func errorResponse(ctx *gin.Context, status int, message string) {
	ctx.JSON(status, APIError{Error: message})
}

func badRequest(ctx *gin.Context, message string) {
	errorResponse(ctx, http.StatusBadRequest, message)
}

func internalError(ctx *gin.Context, message string) {
	errorResponse(ctx, http.StatusInternalServerError, message)
}

func serviceUnavailable(ctx *gin.Context, message string) {
	errorResponse(ctx, http.StatusServiceUnavailable, message)
}
