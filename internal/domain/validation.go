package domain

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
)

var (
	membershipNumberPattern = regexp.MustCompile(`^[A-Za-z0-9-]{3,32}$`)
	phonePattern            = regexp.MustCompile(`^\+?[0-9 ().-]{7,20}$`)
)

func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func NormalizeMembershipNumber(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("%w: email is invalid", ErrInvalidInput)
	}
	return nil
}

func ValidateMembershipNumber(value string) error {
	if !membershipNumberPattern.MatchString(strings.TrimSpace(value)) {
		return fmt.Errorf("%w: membership number must be 3-32 letters, digits or dashes", ErrInvalidInput)
	}
	return nil
}

func ValidatePhone(value string) error {
	if value == "" {
		return nil
	}
	if !phonePattern.MatchString(value) {
		return fmt.Errorf("%w: phone is invalid", ErrInvalidInput)
	}
	return nil
}

func ValidateName(field, value string, max int) error {
	value = strings.TrimSpace(value)
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if len(value) > max {
		return fmt.Errorf("%w: %s must be at most %d characters", ErrInvalidInput, field, max)
	}
	return nil
}

func ValidateInitiationYear(year int, currentYear int) error {
	if year < 1911 || year > currentYear {
		return fmt.Errorf("%w: initiation year must be between 1911 and %d", ErrInvalidInput, currentYear)
	}
	return nil
}

func ParseVerificationStatus(raw string) (VerificationStatus, error) {
	switch s := VerificationStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case VerificationPending, VerificationVerified, VerificationFailed, VerificationManualReview:
		return s, nil
	default:
		return "", fmt.Errorf("%w: unknown verification status %q", ErrInvalidInput, raw)
	}
}

func ParseApplicationDecision(raw string) (ApplicationStatus, error) {
	switch s := ApplicationStatus(strings.ToUpper(strings.TrimSpace(raw))); s {
	case ApplicationApproved, ApplicationRejected:
		return s, nil
	default:
		return "", fmt.Errorf("%w: status must be APPROVED or REJECTED", ErrInvalidInput)
	}
}
