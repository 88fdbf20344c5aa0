package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/privacyops/maskd/pkg/services"
)

// respondServiceError maps service-layer errors to HTTP error responses.
// Unexpected errors are logged and reported as a bare 500 so internals
// never leak to clients.
func respondServiceError(c *gin.Context, err error) {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: validErr.Error()})
		return
	}
	if errors.Is(err, services.ErrNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "resource not found"})
		return
	}
	if errors.Is(err, services.ErrNotCancellable) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "scrub job is not in a cancellable state"})
		return
	}
	if errors.Is(err, services.ErrAlreadyExists) {
		c.JSON(http.StatusConflict, ErrorResponse{Error: "resource already exists"})
		return
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
}

// respondBadRequest writes a 400 with the given message.
func respondBadRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg})
}
