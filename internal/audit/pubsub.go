package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"cloud.google.com/go/pubsub"
)

// PubSubSink publishes each record to a topic. Messages are ordered per turn
// through the ordering key; the subscription must enable message ordering.
type PubSubSink struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubSink(ctx context.Context, projectID, topicID string) (*PubSubSink, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub.NewClient: %w", err)
	}
	topic := client.Topic(topicID)
	topic.EnableMessageOrdering = true
	return &PubSubSink{client: client, topic: topic}, nil
}

// Write waits for the publish to be acknowledged. Wrap in an AsyncSink to
// keep the pipeline lock short.
func (s *PubSubSink) Write(ctx context.Context, rec Record) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("pubsub marshal: %w", err)
	}

	key := rec.TurnID
	if key == "" {
		key = rec.InvocationID
	}
	res := s.topic.Publish(ctx, &pubsub.Message{
		Data:        b,
		OrderingKey: key,
		Attributes: map[string]string{
			"tool":          rec.Tool,
			"phase":         string(rec.Phase),
			"status":        rec.Status,
			"invocation_id": rec.InvocationID,
			"seq":           strconv.FormatUint(rec.Seq, 10),
		},
	})
	if _, err := res.Get(ctx); err != nil {
		// A failed publish pauses the ordering key until resumed.
		s.topic.ResumePublish(key)
		return fmt.Errorf("pubsub publish: %w", err)
	}
	return nil
}

func (s *PubSubSink) Close() error {
	s.topic.Stop()
	return s.client.Close()
}
