package kafka_infra

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
	closed    bool
	drained   chan struct{}
}

func newFakeReader(msgs ...kafka.Message) *fakeReader {
	return &fakeReader{messages: msgs, drained: make(chan struct{})}
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.messages) > 0 {
		msg := r.messages[0]
		r.messages = r.messages[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	if len(r.messages) == 0 {
		select {
		case <-r.drained:
		default:
			close(r.drained)
		}
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}

func (r *fakeReader) committedOffsets() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.committed...)
}

func newTestConsumer(reader *fakeReader) *kafkaConsumer {
	c := newConsumer(reader, "group", "topic", zap.NewNop())
	c.backOff = func() backoff.BackOff { return backoff.NewConstantBackOff(time.Millisecond) }
	return c
}

func runUntilDrained(t *testing.T, c *kafkaConsumer, reader *fakeReader, handler MessageHandler) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx, handler) }()

	select {
	case <-reader.drained:
	case <-time.After(2 * time.Second):
		t.Fatal("messages were not committed in time")
	}
	cancel()
	require.NoError(t, <-done)
}

func TestConsumer_CommitsAfterSuccess(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 1}, kafka.Message{Offset: 2})
	c := newTestConsumer(reader)

	var handled []int64
	runUntilDrained(t, c, reader, func(ctx context.Context, msg kafka.Message) error {
		handled = append(handled, msg.Offset)
		return nil
	})

	assert.Equal(t, []int64{1, 2}, handled)
	assert.Equal(t, []int64{1, 2}, reader.committedOffsets())
	assert.True(t, reader.closed)
}

func TestConsumer_RedeliversFailedMessageBeforeMovingOn(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 1}, kafka.Message{Offset: 2})
	c := newTestConsumer(reader)

	var handled []int64
	failures := 2
	runUntilDrained(t, c, reader, func(ctx context.Context, msg kafka.Message) error {
		handled = append(handled, msg.Offset)
		if msg.Offset == 1 && failures > 0 {
			failures--
			return errors.New("transient")
		}
		return nil
	})

	assert.Equal(t, []int64{1, 1, 1, 2}, handled)
	assert.Equal(t, []int64{1, 2}, reader.committedOffsets())
}

func TestConsumer_PermanentErrorIsCommitted(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 7})
	c := newTestConsumer(reader)

	calls := 0
	runUntilDrained(t, c, reader, func(ctx context.Context, msg kafka.Message) error {
		calls++
		return backoff.Permanent(errors.New("poison"))
	})

	assert.Equal(t, 1, calls)
	assert.Equal(t, []int64{7}, reader.committedOffsets())
}

func TestConsumer_StopLeavesFailingMessageUncommitted(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 3})
	c := newTestConsumer(reader)

	attempted := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.Start(context.Background(), func(ctx context.Context, msg kafka.Message) error {
			select {
			case attempted <- struct{}{}:
			default:
			}
			return errors.New("always failing")
		})
	}()

	<-attempted
	c.Stop()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.Empty(t, reader.committedOffsets())
	assert.True(t, reader.closed)
}

func TestConsumer_StopBeforeStart(t *testing.T) {
	reader := newFakeReader(kafka.Message{Offset: 1})
	c := newTestConsumer(reader)
	c.Stop()

	done := make(chan error, 1)
	go func() {
		done <- c.Start(context.Background(), func(ctx context.Context, msg kafka.Message) error {
			t.Errorf("handler called after Stop for offset %d", msg.Offset)
			return nil
		})
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop issued before start was ignored")
	}
	assert.Empty(t, reader.committedOffsets())
	assert.True(t, reader.closed)
}

func TestConsumer_StopConcurrentWithStart(t *testing.T) {
	for i := 0; i < 20; i++ {
		reader := newFakeReader()
		c := newTestConsumer(reader)

		done := make(chan error, 1)
		go func() {
			done <- c.Start(context.Background(), func(ctx context.Context, msg kafka.Message) error { return nil })
		}()
		go c.Stop()

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("consumer did not stop")
		}
		c.Stop()
	}
}
