package handlers

import (
	"net/http"
	"strings"

	"public-order-engine/internal/order"
	"public-order-engine/internal/selection"
	"public-order-engine/internal/session"
	"public-order-engine/pkg/response"
)

type stateResponse struct {
	session.State
	Online bool `json:"online"`
}

func (h *Handler) respondState(w http.ResponseWriter, r *http.Request, status int) {
	st, err := h.Session.State(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	online := true
	if h.Reachable != nil {
		online = h.Reachable()
	}
	response.JSON(w, status, map[string]any{
		"success": true,
		"data":    stateResponse{State: st, Online: online},
	})
}

func (h *Handler) State(w http.ResponseWriter, r *http.Request) {
	h.respondState(w, r, http.StatusOK)
}

func (h *Handler) Menu(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Session.Menu(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, snap)
}

type quoteRequest struct {
	Selections []selection.Selection `json:"selections"`
	Toggle     *struct {
		GroupID string `json:"groupId"`
		ItemID  string `json:"itemId"`
	} `json:"toggle"`
}

type quoteResponse struct {
	Selections []selection.Selection `json:"selections"`
	Notice     string                `json:"notice,omitempty"`
	Result     selection.Result      `json:"result"`
}

// Quote prices a configuration for the product sheet. With a toggle it
// first applies that option tap.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	productID := strings.TrimSpace(readPathString(r, "productId"))
	if productID == "" {
		response.Error(w, http.StatusBadRequest, string(order.ErrValidation), "productId is required")
		return
	}
	var body quoteRequest
	if !decodeBody(w, r, &body) {
		return
	}

	if body.Toggle != nil {
		next, notice, res, err := h.Session.ToggleQuote(r.Context(), productID, body.Selections, body.Toggle.GroupID, body.Toggle.ItemID)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		response.Success(w, quoteResponse{Selections: next, Notice: notice, Result: res})
		return
	}

	res, err := h.Session.Quote(r.Context(), productID, body.Selections)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sels := body.Selections
	if sels == nil {
		sels = []selection.Selection{}
	}
	response.Success(w, quoteResponse{Selections: sels, Result: res})
}

func (h *Handler) TelemetrySummary(w http.ResponseWriter, r *http.Request) {
	if h.Telemetry == nil {
		response.Success(w, []any{})
		return
	}
	response.Success(w, h.Telemetry.Routes())
}
