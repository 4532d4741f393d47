package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
)

type verificationEnvelope struct {
	EventID   string              `json:"event_id"`
	EventType string              `json:"event_type"`
	Data      VerificationOutcome `json:"data"`
}

// HandleVerificationRecorded consumes one member.verification.recorded event.
// Redelivered events are skipped by event id.
func (s *Service) HandleVerificationRecorded(ctx context.Context, payload []byte) error {
	var env verificationEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return fmt.Errorf("%w: malformed verification event: %v", domain.ErrInvalidInput, err)
	}
	if env.EventID == "" {
		env.EventID = env.Data.EventID
	}
	if env.EventID == "" {
		return fmt.Errorf("%w: verification event without event_id", domain.ErrInvalidInput)
	}
	if env.EventType != "" && env.EventType != eventVerificationRecorded {
		return nil
	}
	now := s.nowFn()
	duplicate, err := s.eventDedup.IsDuplicate(ctx, env.EventID, now)
	if err != nil {
		return err
	}
	if duplicate {
		s.logger.DebugContext(ctx, "duplicate verification event skipped",
			"operation", "handle_verification_recorded",
			"outcome", "duplicate",
			"event_id", env.EventID,
		)
		return nil
	}
	if _, err := s.RecordVerificationOutcome(ctx, env.Data); err != nil {
		return err
	}
	return s.eventDedup.MarkProcessed(ctx, env.EventID, eventVerificationRecorded, now.Add(s.cfg.EventDedupTTL))
}

// RecordVerificationOutcome applies one external verification result to the
// member matched by membership number, or by email when no number is given.
func (s *Service) RecordVerificationOutcome(ctx context.Context, outcome VerificationOutcome) (MemberResponse, error) {
	var (
		member domain.Member
		err    error
	)
	switch {
	case strings.TrimSpace(outcome.MembershipNumber) != "":
		member, err = s.members.FindCompleteByMembershipNumber(ctx, outcome.MembershipNumber)
	case strings.TrimSpace(outcome.Email) != "":
		member, err = s.members.FindCompleteByEmail(ctx, outcome.Email)
	default:
		return MemberResponse{}, fmt.Errorf("%w: outcome needs membership_number or email", domain.ErrInvalidInput)
	}
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return MemberResponse{}, domain.ErrMemberNotFound
		}
		return MemberResponse{}, err
	}
	at := outcome.CheckedAt.UTC()
	if outcome.CheckedAt.IsZero() {
		at = s.nowFn()
	}
	return s.setMemberVerification(ctx, member.ID, VerificationRequest{Status: outcome.Status, Notes: outcome.Notes}, at)
}
