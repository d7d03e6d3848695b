package event

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEvent(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	e := New(BookingCreated, "b-1", at, map[string]any{"status": "pending"})

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, BookingCreated, e.Name)
	assert.Equal(t, "b-1", e.AggregateID)
	assert.Equal(t, time.UTC, e.OccurredAt.Location())
	assert.True(t, e.OccurredAt.Equal(at))

	raw, err := e.Encode()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "booking.created", decoded["name"])
	assert.Equal(t, "b-1", decoded["aggregate_id"])
}

func TestKafkaPublisher_Publish(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != "b-1" {
			return errors.New("unexpected key " + string(key))
		}
		if msg.Topic != "booking.events.v1" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		return nil
	})
	producer.ExpectSendMessageAndSucceed()

	pub := NewKafkaPublisherWithProducer(producer, "booking.events.v1")
	err := pub.Publish(context.Background(),
		New(BookingStatusChanged, "b-1", time.Now(), nil),
		New(BookingRefunded, "b-1", time.Now(), nil),
	)
	require.NoError(t, err)
	require.NoError(t, pub.Close())
}

func TestKafkaPublisher_PublishFailure(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	pub := NewKafkaPublisherWithProducer(producer, "booking.events.v1")
	err := pub.Publish(context.Background(), New(BookingCreated, "b-1", time.Now(), nil))
	require.Error(t, err)
	require.NoError(t, pub.Close())
}

func TestKafkaPublisher_NoEvents(t *testing.T) {
	producer := mocks.NewSyncProducer(t, nil)
	pub := NewKafkaPublisherWithProducer(producer, "topic")
	require.NoError(t, pub.Publish(context.Background()))
	require.NoError(t, pub.Close())
}

func TestLogPublisher(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	pub := NewLogPublisher(logger)
	require.NoError(t, pub.Publish(context.Background(), New(BookingPaymentUpdated, "b-9", time.Now(), nil)))

	assert.Contains(t, buf.String(), `"event":"booking.payment_updated"`)
	assert.Contains(t, buf.String(), `"aggregate_id":"b-9"`)
}

func TestRecorder(t *testing.T) {
	var r Recorder
	require.NoError(t, r.Publish(context.Background(),
		New(BookingCreated, "a", time.Now(), nil),
		New(BookingStatusChanged, "a", time.Now(), nil),
	))
	assert.Equal(t, []string{BookingCreated, BookingStatusChanged}, r.Names())
	assert.Len(t, r.Events(), 2)

	assert.NoError(t, Nop{}.Publish(context.Background(), New(BookingCreated, "a", time.Now(), nil)))
}
