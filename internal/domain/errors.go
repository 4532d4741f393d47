package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput          = errors.New("invalid input")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrForbidden             = errors.New("forbidden")
	ErrNotFound              = errors.New("resource not found")
	ErrConflict              = errors.New("conflict")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrIdempotencyConflict   = errors.New("idempotency conflict")
	ErrStorageUnavailable    = errors.New("storage unavailable")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// Coded errors carry a machine-readable code for clients and still match the
// generic sentinel they wrap.
var (
	ErrVerificationRequired   = fmt.Errorf("%w: member verification required", ErrForbidden)
	ErrMemberProfileRequired  = fmt.Errorf("%w: member profile required", ErrForbidden)
	ErrStewardProfileRequired = fmt.Errorf("%w: steward profile required", ErrForbidden)
	ErrSellerNotApproved      = fmt.Errorf("%w: seller application not approved", ErrForbidden)
	ErrUserNotRegistered      = fmt.Errorf("%w: user not registered", ErrForbidden)
	ErrMemberNotFound         = fmt.Errorf("%w: member not found", ErrNotFound)
	ErrDuplicateRegistration  = fmt.Errorf("%w: email or membership number already registered", ErrConflict)
	ErrInvalidTransition      = fmt.Errorf("%w: invalid status transition", ErrConflict)
	ErrInvitationInvalid      = fmt.Errorf("%w: invitation token invalid or expired", ErrInvalidInput)
	ErrUserLinkingFailed      = errors.New("user linking failed")
)
