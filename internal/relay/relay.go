// Package relay mirrors activity events to an external broker so services
// outside this process can follow user activity.
package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/angelmondragon/cashstore-backend/internal/events"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
)

// ConsumerName identifies the relay subscription on the bus.
const ConsumerName = "relay"

const defaultTimeout = 5 * time.Second

// Message is the broker-neutral form of a mirrored event.
type Message struct {
	Key        string
	Body       []byte
	Attributes map[string]string
}

// Sink delivers messages to a broker.
type Sink interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Relay is a bus consumer that forwards every event to a Sink.
type Relay struct {
	sink    Sink
	logg    *logger.Logger
	timeout time.Duration
}

// New builds a relay. A non-positive timeout falls back to five seconds.
func New(sink Sink, logg *logger.Logger, timeout time.Duration) (*Relay, error) {
	if sink == nil {
		return nil, fmt.Errorf("relay sink required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Relay{sink: sink, logg: logg, timeout: timeout}, nil
}

// HandleEvent encodes the event and publishes it.
func (r *Relay) HandleEvent(ctx context.Context, event events.ActivityEvent) error {
	msg, err := Encode(event)
	if err != nil {
		return err
	}
	pubCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	if err := r.sink.Publish(pubCtx, msg); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "relay activity event")
	}
	r.logg.Debug(r.logg.WithField(ctx, "event_id", event.EventID.String()), "activity event relayed")
	return nil
}

// Close releases the sink.
func (r *Relay) Close() error {
	return r.sink.Close()
}

// Encode turns an event into a relay message keyed by user.
func Encode(event events.ActivityEvent) (Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return Message{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode activity event")
	}
	return Message{
		Key:  event.UserID.String(),
		Body: body,
		Attributes: map[string]string{
			"event_id":   event.EventID.String(),
			"event_type": string(event.Type),
			"category":   string(event.Category),
			"user_id":    event.UserID.String(),
		},
	}, nil
}
