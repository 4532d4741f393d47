package http

import (
	"net/http"

	"github.com/buddywood/northstarnupes-sub002/internal/application"
	"github.com/buddywood/northstarnupes-sub002/internal/domain"
)

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeMessage(w, http.StatusOK, "ok")
}

func (h *Handler) readyz(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			logHTTPOperationError(r.Context(), "readyz", http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable", err)
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", "dependencies unavailable")
			return
		}
	}
	writeMessage(w, http.StatusOK, "ready")
}

func (h *Handler) confirmIdentity(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "confirm_identity")
		return
	}
	res, err := h.service.ConfirmIdentity(r.Context(), claims)
	if err != nil {
		writeMappedError(r.Context(), w, "confirm_identity", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) getMe(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		writeMappedError(r.Context(), w, "get_me", err)
		return
	}
	res, err := h.service.GetMe(r.Context(), p)
	if err != nil {
		writeMappedError(r.Context(), w, "get_me", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) saveDraft(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "save_draft")
		return
	}
	var req application.DraftRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "save_draft", err)
		return
	}
	res, err := h.service.SaveDraft(r.Context(), claims, req)
	if err != nil {
		writeMappedError(r.Context(), w, "save_draft", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) register(w http.ResponseWriter, r *http.Request) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		writeMissingBearerError(r.Context(), w, "register")
		return
	}
	var req application.RegisterRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "register", err)
		return
	}
	res, err := h.service.CompleteRegistration(r.Context(), claims, req)
	if err != nil {
		writeMappedError(r.Context(), w, "register", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

func (h *Handler) getMemberProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		writeMappedError(r.Context(), w, "get_member_profile", err)
		return
	}
	res, err := h.service.GetMemberProfile(r.Context(), p)
	if err != nil {
		writeMappedError(r.Context(), w, "get_member_profile", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) claimInvitation(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		writeMappedError(r.Context(), w, "claim_invitation", err)
		return
	}
	var req application.ClaimInvitationRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "claim_invitation", err)
		return
	}
	res, err := h.service.ClaimInvitation(r.Context(), p, req)
	if err != nil {
		writeMappedError(r.Context(), w, "claim_invitation", err)
		return
	}
	writeSuccess(w, http.StatusOK, res)
}

func (h *Handler) createProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.principal(r)
	if err != nil {
		writeMappedError(r.Context(), w, "create_product", err)
		return
	}
	var req application.ProductRequest
	if err := decodeBody(r, &req); err != nil {
		writeValidationError(r.Context(), w, "create_product", err)
		return
	}
	res, err := h.service.CreateProduct(r.Context(), p, req)
	if err != nil {
		writeMappedError(r.Context(), w, "create_product", err)
		return
	}
	writeSuccess(w, http.StatusCreated, res)
}

// requireRegistered stops requests whose token has no account behind it.
func (h *Handler) requireRegistered(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.principal(r)
		if err == nil {
			_, err = h.service.RequireRegistered(p)
		}
		if err != nil {
			writeMappedError(r.Context(), w, "require_registered", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := h.principal(r)
		if err == nil {
			_, err = h.service.RequireRole(p, domain.PersonaAdmin)
		}
		if err != nil {
			writeMappedError(r.Context(), w, "require_admin", err)
			return
		}
		next.ServeHTTP(w, r)
	})
}
