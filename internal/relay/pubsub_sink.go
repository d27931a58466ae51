package relay

import (
	"context"
	"errors"
	"fmt"

	gcppubsub "cloud.google.com/go/pubsub/v2"
)

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	Stop()
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubSink publishes relay messages to a Pub/Sub topic, ordered by user.
type PubSubSink struct {
	pub publisher
}

// NewPubSubSink wraps a Pub/Sub publisher and turns on message ordering so
// one user's events arrive in emission order.
func NewPubSubSink(p *gcppubsub.Publisher) (*PubSubSink, error) {
	if p == nil {
		return nil, fmt.Errorf("pubsub publisher required")
	}
	p.EnableMessageOrdering = true
	return &PubSubSink{pub: &gcpPublisher{Publisher: p}}, nil
}

func (s *PubSubSink) Publish(ctx context.Context, msg Message) error {
	result := s.pub.Publish(ctx, &gcppubsub.Message{
		Data:        msg.Body,
		Attributes:  msg.Attributes,
		OrderingKey: msg.Key,
	})
	if result == nil {
		return errors.New("publish result is nil")
	}
	if _, err := result.Get(ctx); err != nil {
		return fmt.Errorf("publish to pubsub: %w", err)
	}
	return nil
}

// Close flushes pending messages.
func (s *PubSubSink) Close() error {
	s.pub.Stop()
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return &gcpPublishResult{PublishResult: p.Publisher.Publish(ctx, msg)}
}

type gcpPublishResult struct {
	*gcppubsub.PublishResult
}

func (r *gcpPublishResult) Get(ctx context.Context) (string, error) {
	if r == nil || r.PublishResult == nil {
		return "", errors.New("publish result is nil")
	}
	return r.PublishResult.Get(ctx)
}
