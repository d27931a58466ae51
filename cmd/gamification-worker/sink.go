package main

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/angelmondragon/cashstore-backend/internal/relay"
	"github.com/angelmondragon/cashstore-backend/pkg/config"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
	"github.com/angelmondragon/cashstore-backend/pkg/pubsub"
)

// pubsubRelaySink owns the client behind the publisher so both close together.
type pubsubRelaySink struct {
	*relay.PubSubSink
	client *pubsub.Client
}

func (s *pubsubRelaySink) Close() error {
	return multierr.Append(s.PubSubSink.Close(), s.client.Close())
}

func (s *pubsubRelaySink) Ping(ctx context.Context) error {
	return s.client.Ping(ctx)
}

// buildRelaySink returns nil when the relay driver is none.
func buildRelaySink(ctx context.Context, cfg *config.Config, logg *logger.Logger) (relay.Sink, error) {
	driver := cfg.Relay.NormalizedDriver()
	ctx = logg.WithField(ctx, "relay_driver", driver)

	switch driver {
	case config.RelayDriverNone:
		logg.Info(ctx, "activity relay disabled")
		return nil, nil

	case config.RelayDriverPubSub:
		client, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			return nil, fmt.Errorf("pubsub relay: %w", err)
		}
		sink, err := relay.NewPubSubSink(client.ActivityPublisher())
		if err != nil {
			_ = client.Close()
			return nil, err
		}
		logg.Info(ctx, "activity relay publishing to pubsub")
		return &pubsubRelaySink{PubSubSink: sink, client: client}, nil

	case config.RelayDriverAMQP:
		sink, err := relay.DialAMQP(cfg.AMQP)
		if err != nil {
			return nil, fmt.Errorf("amqp relay: %w", err)
		}
		logg.Info(logg.WithField(ctx, "exchange", cfg.AMQP.Exchange), "activity relay publishing to amqp")
		return sink, nil

	default:
		return nil, fmt.Errorf("unsupported relay driver %q", driver)
	}
}
