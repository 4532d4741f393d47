package http

import (
	"net/http"

	"github.com/buddywood/northstarnupes-sub002/internal/application"
)

func (h *Handler) applySeller(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		writeMappedError(r.Context(), w, "apply_seller", err)
		return
	}
	var req application.SellerApplication
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "apply_seller", err)
		return
	}
	res, err := h.service.ApplySeller(r.Context(), p, req, idempotencyKey(r))
	if err != nil {
		writeMappedError(r.Context(), w, "apply_seller", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) applyPromoter(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		writeMappedError(r.Context(), w, "apply_promoter", err)
		return
	}
	var req application.PromoterApplication
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "apply_promoter", err)
		return
	}
	res, err := h.service.ApplyPromoter(r.Context(), p, req, idempotencyKey(r))
	if err != nil {
		writeMappedError(r.Context(), w, "apply_promoter", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) applySteward(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		writeMappedError(r.Context(), w, "apply_steward", err)
		return
	}
	var req application.StewardApplication
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "apply_steward", err)
		return
	}
	res, err := h.service.ApplySteward(r.Context(), p, req, idempotencyKey(r))
	if err != nil {
		writeMappedError(r.Context(), w, "apply_steward", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) stewardMarketplace(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		writeMappedError(r.Context(), w, "steward_marketplace", err)
		return
	}
	limit := parseIntDefault(r.URL.Query().Get("limit"), 50)
	offset := parseIntDefault(r.URL.Query().Get("offset"), 0)
	res, err := h.service.ListStewardMarketplace(r.Context(), p, limit, offset)
	if err != nil {
		writeMappedError(r.Context(), w, "steward_marketplace", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) getOwnSteward(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		writeMappedError(r.Context(), w, "get_own_steward", err)
		return
	}
	res, err := h.service.GetOwnSteward(r.Context(), p)
	if err != nil {
		writeMappedError(r.Context(), w, "get_own_steward", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
