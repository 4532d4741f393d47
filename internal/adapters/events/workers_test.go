package events

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/buddywood/northstarnupes-sub002/internal/ports"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memoryOutbox struct {
	mu        sync.Mutex
	records   []ports.OutboxRecord
	published map[uuid.UUID]bool
	failed    map[uuid.UUID]string
}

func newMemoryOutbox(records ...ports.OutboxRecord) *memoryOutbox {
	return &memoryOutbox{records: records, published: map[uuid.UUID]bool{}, failed: map[uuid.UUID]string{}}
}

func (m *memoryOutbox) Enqueue(_ context.Context, event ports.OutboxEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, ports.OutboxRecord{
		OutboxID:     event.EventID,
		EventType:    event.EventType,
		PartitionKey: event.PartitionKey,
		Payload:      event.Payload,
		FirstSeenAt:  event.OccurredAt,
	})
	return nil
}

func (m *memoryOutbox) FetchUnpublished(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ports.OutboxRecord, 0, limit)
	for _, rec := range m.records {
		if m.published[rec.OutboxID] {
			continue
		}
		out = append(out, rec)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (m *memoryOutbox) MarkPublished(_ context.Context, id uuid.UUID, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.published[id] = true
	return nil
}

func (m *memoryOutbox) MarkFailed(_ context.Context, id uuid.UUID, errMsg string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failed[id] = errMsg
	return nil
}

type recordingPublisher struct {
	failOn string
	sent   []string
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, _ []byte, partitionKey string) error {
	if eventType == p.failOn {
		return errors.New("broker unavailable")
	}
	p.sent = append(p.sent, eventType+"@"+partitionKey)
	return nil
}

func TestOutboxWorkerRelaysAndMarksFailures(t *testing.T) {
	t.Parallel()

	ok := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "member.registered", PartitionKey: "m-1", Payload: []byte(`{}`)}
	bad := ports.OutboxRecord{OutboxID: uuid.New(), EventType: "profile.approved", PartitionKey: "s-1", Payload: []byte(`{}`)}
	outbox := newMemoryOutbox(ok, bad)
	pub := &recordingPublisher{failOn: "profile.approved"}

	worker := NewOutboxWorker(nil, outbox, pub, time.Second, 10)
	n, err := worker.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"member.registered@m-1"}, pub.sent)
	assert.True(t, outbox.published[ok.OutboxID])
	assert.False(t, outbox.published[bad.OutboxID])
	assert.Equal(t, "broker unavailable", outbox.failed[bad.OutboxID])

	pub.failOn = ""
	n, err = worker.RelayOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.True(t, outbox.published[bad.OutboxID])
}

type staticConsumer struct {
	msgs []Message
}

func (c *staticConsumer) Poll(_ context.Context, _ int) ([]Message, error) {
	out := c.msgs
	c.msgs = nil
	return out, nil
}

type countingHandler struct {
	payloads [][]byte
	err      error
}

func (h *countingHandler) HandleVerificationRecorded(_ context.Context, payload []byte) error {
	h.payloads = append(h.payloads, payload)
	return h.err
}

func TestConsumerWorkerRoutesVerificationOutcomes(t *testing.T) {
	t.Parallel()

	consumer := &staticConsumer{msgs: []Message{
		{Topic: TopicVerificationRecorded, Payload: []byte(`{"event_id":"1"}`)},
		{Topic: "unrelated.topic", Payload: []byte(`{}`)},
		{Topic: TopicVerificationRecorded, Payload: []byte(`{"event_id":"2"}`)},
	}}
	handler := &countingHandler{err: errors.New("member missing")}

	worker := NewConsumerWorker(nil, consumer, handler, time.Second)
	require.NoError(t, worker.ProcessOnce(context.Background()))
	assert.Len(t, handler.payloads, 2)
}

func TestKafkaPublisherTopicMapping(t *testing.T) {
	t.Parallel()

	_, err := NewKafkaPublisher(nil, nil)
	require.Error(t, err)

	pub, err := NewKafkaPublisher([]string{"localhost:9092"}, map[string]string{"profile.approved": "identity.profile.approved"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })
	assert.Equal(t, "identity.profile.approved", pub.Topic("profile.approved"))
	assert.Equal(t, "member.registered", pub.Topic("member.registered"))
}

func TestKafkaConsumerRequiresConfiguration(t *testing.T) {
	t.Parallel()

	_, err := NewKafkaConsumer(nil, "identity", []string{TopicVerificationRecorded})
	assert.Error(t, err)
	_, err = NewKafkaConsumer([]string{"localhost:9092"}, "", []string{TopicVerificationRecorded})
	assert.Error(t, err)
	_, err = NewKafkaConsumer([]string{"localhost:9092"}, "identity", nil)
	assert.Error(t, err)
}
