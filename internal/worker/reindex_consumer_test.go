package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/nsqio/go-nsq"
	"github.com/stretchr/testify/assert"

	"docsage/internal/middleware"
)

type mockReindexer struct {
	err           error
	calls         []string
	correlationID string
}

func (m *mockReindexer) ProcessReindex(ctx context.Context, documentID string) error {
	m.calls = append(m.calls, documentID)
	m.correlationID = middleware.GetCorrelationID(ctx)
	return m.err
}

func TestReindexConsumer_HandleMessage(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		r := &mockReindexer{}
		c := NewReindexConsumer(r)

		msg := nsq.NewMessage(nsq.MessageID{}, []byte(`{"document_id": "doc-1", "correlation_id": "corr-1"}`))
		err := c.HandleMessage(msg)

		assert.NoError(t, err)
		assert.Equal(t, []string{"doc-1"}, r.calls)
		assert.Equal(t, "corr-1", r.correlationID)
	})

	t.Run("GeneratesCorrelationID", func(t *testing.T) {
		r := &mockReindexer{}
		c := NewReindexConsumer(r)

		msg := nsq.NewMessage(nsq.MessageID{}, []byte(`{"document_id": "doc-1"}`))
		err := c.HandleMessage(msg)

		assert.NoError(t, err)
		assert.NotEmpty(t, r.correlationID)
	})

	t.Run("InvalidJSONDropped", func(t *testing.T) {
		r := &mockReindexer{}
		c := NewReindexConsumer(r)

		msg := nsq.NewMessage(nsq.MessageID{}, []byte(`{not json`))
		err := c.HandleMessage(msg)

		// Poison pill: never requeue malformed messages
		assert.NoError(t, err)
		assert.Empty(t, r.calls)
	})

	t.Run("MissingDocumentIDDropped", func(t *testing.T) {
		r := &mockReindexer{}
		c := NewReindexConsumer(r)

		msg := nsq.NewMessage(nsq.MessageID{}, []byte(`{"correlation_id": "x"}`))
		err := c.HandleMessage(msg)

		assert.NoError(t, err)
		assert.Empty(t, r.calls)
	})

	t.Run("EmptyBodyDropped", func(t *testing.T) {
		r := &mockReindexer{}
		c := NewReindexConsumer(r)

		msg := nsq.NewMessage(nsq.MessageID{}, nil)
		err := c.HandleMessage(msg)

		assert.NoError(t, err)
		assert.Empty(t, r.calls)
	})

	t.Run("ProcessingErrorRequeues", func(t *testing.T) {
		r := &mockReindexer{err: errors.New("pipeline failed")}
		c := NewReindexConsumer(r)

		msg := nsq.NewMessage(nsq.MessageID{}, []byte(`{"document_id": "doc-1"}`))
		err := c.HandleMessage(msg)

		assert.Error(t, err)
	})
}
