package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/paymentops/ledgerchat/pkg/services"
)

// mapServiceError maps service-layer errors to an HTTP status and a
// client-safe message.
func mapServiceError(err error) (int, string) {
	var validErr *services.ValidationError
	if errors.As(err, &validErr) {
		return http.StatusBadRequest, validErr.Error()
	}
	if errors.Is(err, services.ErrNotFound) {
		return http.StatusNotFound, "resource not found"
	}

	// Unexpected error
	slog.Error("Unexpected service error", "error", err)
	return http.StatusInternalServerError, "internal server error"
}
