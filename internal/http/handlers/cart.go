package handlers

import (
	"net/http"
	"strings"

	"public-order-engine/internal/order"
	"public-order-engine/internal/selection"
	"public-order-engine/pkg/response"
)

type addLineRequest struct {
	ProductID  string                `json:"productId"`
	Quantity   *int                  `json:"quantity"`
	Notes      string                `json:"notes"`
	Selections []selection.Selection `json:"selections"`
}

func (h *Handler) AddLine(w http.ResponseWriter, r *http.Request) {
	var body addLineRequest
	if !decodeBody(w, r, &body) {
		return
	}
	productID := strings.TrimSpace(body.ProductID)
	if productID == "" {
		response.Error(w, http.StatusBadRequest, string(order.ErrValidation), "productId is required")
		return
	}
	quantity := 1
	if body.Quantity != nil {
		quantity = *body.Quantity
	}

	if _, err := h.Session.AddLine(r.Context(), productID, quantity, body.Notes, body.Selections); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondState(w, r, http.StatusCreated)
}

type updateLineRequest struct {
	Quantity *int    `json:"quantity"`
	Notes    *string `json:"notes"`
}

func (h *Handler) UpdateLine(w http.ResponseWriter, r *http.Request) {
	var body updateLineRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if body.Quantity == nil && body.Notes == nil {
		response.Error(w, http.StatusBadRequest, string(order.ErrValidation), "quantity or notes is required")
		return
	}
	if err := h.Session.UpdateLine(r.Context(), readPathString(r, "lineId"), body.Quantity, body.Notes); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondState(w, r, http.StatusOK)
}

type toggleRequest struct {
	GroupID string `json:"groupId"`
	ItemID  string `json:"itemId"`
}

func (h *Handler) ToggleOption(w http.ResponseWriter, r *http.Request) {
	var body toggleRequest
	if !decodeBody(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.GroupID) == "" || strings.TrimSpace(body.ItemID) == "" {
		response.Error(w, http.StatusBadRequest, string(order.ErrValidation), "groupId and itemId are required")
		return
	}
	notice, err := h.Session.ToggleOption(r.Context(), readPathString(r, "lineId"), body.GroupID, body.ItemID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.Session.State(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, map[string]any{"notice": notice, "state": st})
}

func (h *Handler) RemoveLine(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.RemoveLine(r.Context(), readPathString(r, "lineId")); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondState(w, r, http.StatusOK)
}

func (h *Handler) RemoveUnavailable(w http.ResponseWriter, r *http.Request) {
	n, err := h.Session.RemoveUnavailable(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Success(w, map[string]any{"removed": n})
}
