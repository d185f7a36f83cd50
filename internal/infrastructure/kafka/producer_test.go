package kafka_infra

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	written []kafka.Message
	err     error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.written = append(w.written, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_Produce(t *testing.T) {
	w := &fakeWriter{}
	p := &kafkaProducer{writer: w, writeTimeout: time.Second, logger: zap.NewNop()}

	err := p.Produce(context.Background(), "op-1", "bulkops.process", []byte(`{}`),
		kafka.Header{Key: "idempotency-key", Value: []byte("op-1")})
	require.NoError(t, err)

	require.Len(t, w.written, 1)
	assert.Equal(t, "bulkops.process", w.written[0].Topic)
	assert.Equal(t, []byte("op-1"), w.written[0].Key)
	assert.Equal(t, "op-1", HeaderValue(w.written[0].Headers, "idempotency-key"))
	assert.Empty(t, HeaderValue(w.written[0].Headers, "missing"))
}

func TestProducer_ProduceError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	p := &kafkaProducer{writer: w, writeTimeout: time.Second, logger: zap.NewNop()}

	err := p.Produce(context.Background(), "k", "t", nil)
	assert.ErrorContains(t, err, "leader not available")
}
