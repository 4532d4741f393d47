package application

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/domain"
	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"github.com/google/uuid"
)

const (
	eventMemberRegistered         = "member.registered"
	eventApplicationSubmitted     = "profile.application_submitted"
	eventProfileApproved          = "profile.approved"
	eventProfileRejected          = "profile.rejected"
	eventSellerVerificationReset  = "seller.verification_reset"
	eventMemberVerificationUpdate = "member.verification_updated"
	eventEmailRequested           = "notification.email_requested"
	eventVerificationRecorded     = "member.verification.recorded"
)

func (s *Service) enqueueEvent(ctx context.Context, eventType, partitionKey string, data any) error {
	return s.enqueue(ctx, eventType, partitionKey, data, false)
}

// enqueue with redact set keeps the payload only until it is published.
func (s *Service) enqueue(ctx context.Context, eventType, partitionKey string, data any, redact bool) error {
	occurredAt := s.nowFn()
	eventID := uuid.New()
	payloadEnvelope := map[string]any{
		"event_id":       eventID.String(),
		"event_type":     eventType,
		"occurred_at":    occurredAt.Format(time.RFC3339),
		"source_service": s.cfg.ServiceName,
		"schema_version": "1.0",
		"partition_key":  partitionKey,
		"data":           data,
	}
	payload, err := json.Marshal(payloadEnvelope)
	if err != nil {
		return err
	}
	return s.outbox.Enqueue(ctx, ports.OutboxEvent{
		EventID:       eventID,
		EventType:     eventType,
		PartitionKey:  partitionKey,
		Payload:       payload,
		OccurredAt:    occurredAt,
		SchemaVersion: "1.0",
		Redact:        redact,
	})
}

type emailRequest struct {
	Template  string            `json:"template"`
	To        string            `json:"to"`
	Variables map[string]string `json:"variables,omitempty"`
}

// requestEmail queues a notification. Delivery is best effort, so failures
// are logged and never returned. The stored payload may carry an invitation
// token and is redacted after publishing.
func (s *Service) requestEmail(ctx context.Context, to, template string, vars map[string]string) {
	err := s.enqueue(ctx, eventEmailRequested, domain.NormalizeEmail(to), emailRequest{
		Template: template, To: to, Variables: vars,
	}, true)
	if err != nil {
		s.logger.WarnContext(ctx, "email request dropped",
			"operation", "request_email",
			"outcome", "failure",
			"template", template,
			"error", err,
		)
	}
}

func hashRequest(v any) string {
	raw, _ := json.Marshal(v)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// reserveIdempotency claims key for this request. When the key already holds a
// completed response for the same request, that response is decoded into
// replay and replayed reports true.
func (s *Service) reserveIdempotency(ctx context.Context, key string, request any, replay any) (replayed bool, err error) {
	if key == "" || s.idempotency == nil {
		return false, nil
	}
	requestHash := hashRequest(request)
	existing, err := s.idempotency.Get(ctx, key)
	if err != nil {
		return false, err
	}
	if existing != nil && existing.ExpiresAt.After(s.nowFn()) {
		if existing.RequestHash != requestHash || existing.Status != "completed" {
			return false, domain.ErrIdempotencyConflict
		}
		if err := json.Unmarshal(existing.ResponseBody, replay); err != nil {
			return false, err
		}
		return true, nil
	}
	if err := s.idempotency.Reserve(ctx, key, requestHash, s.nowFn().Add(s.cfg.IdempotencyTTL)); err != nil {
		return false, fmt.Errorf("%w: %v", domain.ErrIdempotencyConflict, err)
	}
	return false, nil
}

func (s *Service) completeIdempotency(ctx context.Context, key string, code int, response any) {
	if key == "" || s.idempotency == nil {
		return
	}
	raw, _ := json.Marshal(response)
	if err := s.idempotency.Complete(ctx, key, code, raw, s.nowFn()); err != nil {
		s.logger.WarnContext(ctx, "idempotency completion failed",
			"operation", "complete_idempotency",
			"outcome", "failure",
			"error", err,
		)
	}
}

func (s *Service) releaseIdempotency(ctx context.Context, key string) {
	if key == "" || s.idempotency == nil {
		return
	}
	if err := s.idempotency.Release(ctx, key); err != nil {
		s.logger.WarnContext(ctx, "idempotency release failed",
			"operation", "release_idempotency",
			"outcome", "failure",
			"error", err,
		)
	}
}

// checkRateLimit counts applications per kind and email inside a fixed window.
func (s *Service) checkRateLimit(ctx context.Context, kind domain.ProfileKind, email string) error {
	if s.cache == nil {
		return nil
	}
	key := fmt.Sprintf("identity:apply:%s:%s", kind, domain.NormalizeEmail(email))
	n, err := s.cache.IncrWithTTL(ctx, key, s.cfg.ApplicationRateWindow)
	if err != nil {
		s.logger.WarnContext(ctx, "rate limit check skipped",
			"operation", "check_rate_limit",
			"outcome", "failure",
			"error", err,
		)
		return nil
	}
	if n > int64(s.cfg.ApplicationRateLimit) {
		return domain.ErrRateLimitExceeded
	}
	return nil
}

func newInvitationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func ptr[T any](v T) *T { return &v }

type noopMetrics struct{}

func (noopMetrics) ApplicationSubmitted(string, string) {}
func (noopMetrics) AutoApproval(string, string)         {}
func (noopMetrics) Registration(string)                 {}
func (noopMetrics) Reverification(string)               {}
func (noopMetrics) OrphanHealed(string)                 {}
