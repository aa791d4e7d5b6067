package outbox

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
)

type stubWriter struct {
	byTopic map[string][]kafka.Message
	err     error
}

func (w *stubWriter) WriteMessages(_ context.Context, topic string, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	if w.byTopic == nil {
		w.byTopic = make(map[string][]kafka.Message)
	}
	w.byTopic[topic] = append(w.byTopic[topic], msgs...)
	return nil
}

func TestDeliverBatchesByTopicWithHeaders(t *testing.T) {
	writer := &stubWriter{}
	d := &Dispatcher{producer: writer}

	messages := []Message{
		{EventID: 1, TenantID: "t-1", AggregateID: "w-1", EventType: "workout.created", Topic: "workout_events", PartitionKey: "w-1", Payload: []byte(`{"a":1}`)},
		{EventID: 2, TenantID: "t-1", AggregateID: "w-1", EventType: "workout.parse_completed", Topic: "workout_events", PartitionKey: "w-1", Payload: []byte(`{"b":2}`)},
		{EventID: 3, TenantID: "t-2", AggregateID: "w-2", EventType: "workout.created", Topic: "other_topic", PartitionKey: "w-2", Payload: []byte(`{"c":3}`)},
	}

	require.NoError(t, d.deliver(context.Background(), messages))
	require.Len(t, writer.byTopic["workout_events"], 2)
	require.Len(t, writer.byTopic["other_topic"], 1)

	first := writer.byTopic["workout_events"][0]
	require.Equal(t, []byte("w-1"), first.Key)
	require.JSONEq(t, `{"a":1}`, string(first.Value))

	headers := make(map[string]string, len(first.Headers))
	for _, h := range first.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, "workout.created", headers["event_type"])
	require.Equal(t, "t-1", headers["tenant_id"])
	require.Equal(t, "w-1", headers["aggregate_id"])
}

func TestDeliverPropagatesWriterErrors(t *testing.T) {
	writer := &stubWriter{err: context.DeadlineExceeded}
	d := &Dispatcher{producer: writer}

	err := d.deliver(context.Background(), []Message{
		{EventID: 1, Topic: "workout_events", Payload: []byte(`{}`)},
	})
	require.Error(t, err)
}
