package handlers

import (
	"net/http"

	"public-order-engine/internal/order"
	"public-order-engine/pkg/response"
)

func (h *Handler) UpdateCheckout(w http.ResponseWriter, r *http.Request) {
	var body order.Checkout
	if !decodeBody(w, r, &body) {
		return
	}
	if err := h.Session.UpdateCheckout(r.Context(), body); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondState(w, r, http.StatusOK)
}

// Submit answers 202 once the order is saved locally; delivery continues in
// the background and is reported through the state stream.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	id, err := h.Session.Submit(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	st, err := h.Session.State(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.Accepted(w, map[string]any{"clientOrderId": id, "submission": st.Submission})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Cancel(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondState(w, r, http.StatusOK)
}

func (h *Handler) Dismiss(w http.ResponseWriter, r *http.Request) {
	if err := h.Session.Dismiss(r.Context()); err != nil {
		h.writeError(w, r, err)
		return
	}
	h.respondState(w, r, http.StatusOK)
}

// ConnectivityOnline lets the UI forward the browser's online event.
func (h *Handler) ConnectivityOnline(w http.ResponseWriter, r *http.Request) {
	h.Session.OnlineRegained()
	response.Accepted(w, map[string]any{"queued": true})
}
