package http

import (
	"net/http"

	"github.com/buddywood/northstarnupes-sub002/internal/application"
	"github.com/buddywood/northstarnupes-sub002/internal/domain"
)

func (h *Handler) decideApplication(kind domain.ProfileKind) http.HandlerFunc {
	operation := "decide_" + string(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := h.principal(r)
		if err != nil {
			writeMappedError(r.Context(), w, operation, err)
			return
		}
		id, err := pathUUID(r, "id")
		if err != nil {
			writeMappedError(r.Context(), w, operation, err)
			return
		}
		var req application.DecisionRequest
		if err := decodeBody(r, &req); err != nil {
			writeValidationError(r.Context(), w, operation, err)
			return
		}
		res, err := h.service.DecideApplication(r.Context(), p, string(kind), id, req)
		if err != nil {
			writeMappedError(r.Context(), w, operation, err)
			return
		}
		writeSuccess(w, http.StatusOK, res)
	}
}

func (h *Handler) setMemberVerification(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeMappedError(r.Context(), w, "set_member_verification", err)
		return
	}
	var req application.VerificationRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "set_member_verification", err)
		return
	}
	res, err := h.service.SetMemberVerification(r.Context(), id, req)
	if err != nil {
		writeMappedError(r.Context(), w, "set_member_verification", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) setSellerVerification(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeMappedError(r.Context(), w, "set_seller_verification", err)
		return
	}
	var req application.VerificationRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "set_seller_verification", err)
		return
	}
	res, err := h.service.SetSellerVerification(r.Context(), id, req)
	if err != nil {
		writeMappedError(r.Context(), w, "set_seller_verification", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) removeAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r, "id")
	if err != nil {
		writeMappedError(r.Context(), w, "remove_account", err)
		return
	}
	purge := parseBoolDefault(r.URL.Query().Get("purge_profile"), false)
	res, err := h.service.RemoveAccount(r.Context(), id, purge)
	if err != nil {
		writeMappedError(r.Context(), w, "remove_account", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}
