package relay

import (
	"context"
	"fmt"
	"strings"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/angelmondragon/cashstore-backend/pkg/config"
)

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPSink publishes relay messages to a durable direct exchange.
type AMQPSink struct {
	conn       *amqp.Connection
	ch         amqpChannel
	exchange   string
	routingKey string
}

// DialAMQP connects to the broker and declares the relay exchange.
func DialAMQP(cfg config.AMQPConfig) (*AMQPSink, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("amqp url required")
	}
	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(
		cfg.Exchange,
		amqp.ExchangeDirect,
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare amqp exchange %q: %w", cfg.Exchange, err)
	}
	sink := newAMQPSink(ch, cfg.Exchange, cfg.RoutingKey)
	sink.conn = conn
	return sink, nil
}

func newAMQPSink(ch amqpChannel, exchange, routingKey string) *AMQPSink {
	return &AMQPSink{ch: ch, exchange: exchange, routingKey: routingKey}
}

func (s *AMQPSink) Publish(ctx context.Context, msg Message) error {
	headers := amqp.Table{}
	for k, v := range msg.Attributes {
		headers[k] = v
	}
	return s.ch.PublishWithContext(ctx,
		s.exchange,
		s.routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    msg.Attributes["event_id"],
			Type:         msg.Attributes["event_type"],
			Headers:      headers,
			Body:         msg.Body,
		})
}

func (s *AMQPSink) Close() error {
	err := s.ch.Close()
	if s.conn != nil {
		if cerr := s.conn.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
