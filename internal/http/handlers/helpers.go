package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"public-order-engine/internal/order"
	"public-order-engine/internal/session"
	"public-order-engine/pkg/response"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxRequestBody = 1 << 20

func readPathString(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}

// decodeBody reads a JSON body into dst. An empty body leaves dst untouched.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody)).Decode(dst)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	response.Error(w, http.StatusBadRequest, string(order.ErrValidation), "Invalid request body")
	return false
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var oerr *order.Error
	switch {
	case errors.As(err, &oerr):
		response.ErrorWithDetails(w, oerr.StatusCode, string(oerr.Code), oerr.Message, oerr.Details)
	case errors.Is(err, session.ErrClosed):
		response.Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "The agent is shutting down")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusServiceUnavailable, "REQUEST_CANCELLED", "Request cancelled")
	default:
		h.Logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Something went wrong")
	}
}
