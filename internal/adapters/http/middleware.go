package http

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/application"
	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"github.com/google/uuid"
)

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "request_id"
	ctxKeyClaims    ctxKey = "identity_claims"
)

var errMissingBearer = errors.New("missing bearer token")

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-Id")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", reqID)
		ctx := context.WithValue(r.Context(), ctxKeyRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				httpLogger().ErrorContext(r.Context(), "panic recovered",
					"operation", "http_panic_recovery",
					"outcome", "failure",
					"request_id", requestIDFromContext(r.Context()),
					"method", r.Method,
					"path", r.URL.Path,
					"panic", rec,
				)
				writeError(r.Context(), w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int
}

func (r *statusRecorder) WriteHeader(statusCode int) {
	r.statusCode = statusCode
	r.ResponseWriter.WriteHeader(statusCode)
}

func (r *statusRecorder) Write(payload []byte) (int, error) {
	if r.statusCode == 0 {
		r.statusCode = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(payload)
	r.bytes += n
	return n, err
}

// loggingMiddleware writes one access log line per request and feeds the
// request counter when one is configured.
func loggingMiddleware(observe func(method, route string, statusCode int, elapsed time.Duration)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			recorder := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(recorder, r)

			statusCode := recorder.statusCode
			if statusCode == 0 {
				statusCode = http.StatusOK
			}
			outcome := "success"
			if statusCode >= 400 {
				outcome = "failure"
			}
			elapsed := time.Since(start)
			if observe != nil {
				observe(r.Method, routePattern(r), statusCode, elapsed)
			}

			fields := []any{
				"operation", "http_request",
				"outcome", outcome,
				"method", r.Method,
				"path", r.URL.Path,
				"status_code", statusCode,
				"bytes", recorder.bytes,
				"duration_ms", elapsed.Milliseconds(),
				"request_id", requestIDFromContext(r.Context()),
			}
			switch {
			case statusCode >= 500:
				httpLogger().ErrorContext(r.Context(), "http request completed", fields...)
			case statusCode >= 400:
				httpLogger().WarnContext(r.Context(), "http request completed", fields...)
			default:
				httpLogger().InfoContext(r.Context(), "http request completed", fields...)
			}
		})
	}
}

func requestIDFromContext(ctx context.Context) string {
	v := ctx.Value(ctxKeyRequestID)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func bearerTokenFromHeader(header string) (string, error) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", errMissingBearer
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, prefix))
	if token == "" {
		return "", errMissingBearer
	}
	return token, nil
}

func claimsFromContext(ctx context.Context) (ports.IdentityClaims, bool) {
	claims, ok := ctx.Value(ctxKeyClaims).(ports.IdentityClaims)
	return claims, ok
}

// authMiddleware rejects requests without a valid bearer token before any
// handler runs, so guarded routes never look anything up for anonymous callers.
func (h *Handler) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := bearerTokenFromHeader(r.Header.Get("Authorization"))
		if err != nil {
			writeMissingBearerError(r.Context(), w, "authenticate")
			return
		}
		claims, err := h.service.ValidateToken(r.Context(), raw)
		if err != nil {
			writeMappedError(r.Context(), w, "authenticate", err)
			return
		}
		ctx := context.WithValue(r.Context(), ctxKeyClaims, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// optionalAuthMiddleware accepts anonymous requests but still rejects a
// bearer token that fails verification.
func (h *Handler) optionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.TrimSpace(r.Header.Get("Authorization")) == "" {
			next.ServeHTTP(w, r)
			return
		}
		h.authMiddleware(next).ServeHTTP(w, r)
	})
}

// principal builds the per-request capability from the verified claims.
// Anonymous requests yield an empty principal.
func (h *Handler) principal(r *http.Request) (application.Principal, error) {
	claims, ok := claimsFromContext(r.Context())
	if !ok {
		return application.Principal{}, nil
	}
	return h.service.LoadPrincipal(r.Context(), claims)
}

func mapDomainError(err error) (int, string, string) {
	switch {
	case errors.Is(err, domain.ErrDuplicateRegistration):
		return http.StatusBadRequest, "DUPLICATE_REGISTRATION", "email or membership number already registered"
	case errors.Is(err, domain.ErrUserLinkingFailed):
		return http.StatusInternalServerError, "USER_LINKING_FAILED", "registration could not be linked to the account"
	case errors.Is(err, domain.ErrVerificationRequired):
		return http.StatusForbidden, "VERIFICATION_REQUIRED", "member verification required"
	case errors.Is(err, domain.ErrMemberProfileRequired):
		return http.StatusForbidden, "MEMBER_PROFILE_REQUIRED", "member profile required"
	case errors.Is(err, domain.ErrStewardProfileRequired):
		return http.StatusForbidden, "STEWARD_PROFILE_REQUIRED", "steward profile required"
	case errors.Is(err, domain.ErrSellerNotApproved):
		return http.StatusForbidden, "SELLER_NOT_APPROVED", "seller application not approved"
	case errors.Is(err, domain.ErrUserNotRegistered):
		return http.StatusForbidden, "USER_NOT_REGISTERED", "user not registered"
	case errors.Is(err, domain.ErrMemberNotFound):
		return http.StatusNotFound, "MEMBER_NOT_FOUND", "member not found"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "INVALID_STATUS_TRANSITION", "invalid status transition"
	case errors.Is(err, domain.ErrInvitationInvalid):
		return http.StatusBadRequest, "INVITATION_INVALID", "invitation token invalid or expired"
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "UNAUTHORIZED", "invalid or missing credentials"
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "FORBIDDEN", "forbidden"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "NOT_FOUND", "resource not found"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrIdempotencyConflict):
		return http.StatusConflict, "CONFLICT", err.Error()
	case errors.Is(err, domain.ErrRateLimitExceeded):
		return http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "too many requests"
	case errors.Is(err, domain.ErrDependencyUnavailable), errors.Is(err, domain.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "service unavailable"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error"
	}
}
