package events

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/cashstore-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/cashstore-backend/pkg/errors"
	"github.com/angelmondragon/cashstore-backend/pkg/logger"
	"github.com/angelmondragon/cashstore-backend/pkg/metrics"
	"github.com/angelmondragon/cashstore-backend/pkg/validate"
)

const (
	defaultWorkers   = 8
	defaultQueueSize = 1024
)

var (
	// ErrBusClosed is returned by Emit after Close.
	ErrBusClosed = pkgerrors.New(pkgerrors.CodeUnavailable, "activity bus is closed")
	// ErrQueueFull is returned by Emit when the intake queue is saturated; the event is dropped.
	ErrQueueFull = pkgerrors.New(pkgerrors.CodeUnavailable, "activity bus queue is full")
)

// Handler consumes activity events.
type Handler interface {
	Handle(ctx context.Context, event ActivityEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event ActivityEvent) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, event ActivityEvent) error {
	return f(ctx, event)
}

// Emitter is the producer-facing side of the bus.
type Emitter interface {
	Emit(ctx context.Context, eventType enums.ActivityEventType, payload Payload) (ActivityEvent, error)
}

// Options configure a Bus. QueueSize bounds the shared intake and each
// subscription's backlog; Workers is the worker count per subscription.
type Options struct {
	Logger         *logger.Logger
	Metrics        *metrics.BusMetrics
	Workers        int
	QueueSize      int
	HandlerTimeout time.Duration
	Now            func() time.Time
}

type subscription struct {
	name      string
	eventType enums.ActivityEventType
	handler   Handler
}

func (s subscription) matches(eventType enums.ActivityEventType) bool {
	return s.eventType == "" || s.eventType == eventType
}

type job struct {
	sub   subscription
	event ActivityEvent
}

// lane is one subscription's private intake and worker queues.
type lane struct {
	sub    subscription
	intake chan ActivityEvent
	queues []chan job
}

// route moves the lane's events onto per-user queues. It may block on a busy
// worker, which only holds back this subscription.
func (l *lane) route() {
	for event := range l.intake {
		l.queueFor(event.UserID) <- job{sub: l.sub, event: event}
	}
	for _, queue := range l.queues {
		close(queue)
	}
}

func (l *lane) queueFor(userID uuid.UUID) chan job {
	h := fnv.New32a()
	_, _ = h.Write(userID[:])
	return l.queues[h.Sum32()%uint32(len(l.queues))]
}

// Bus fans activity events out to subscribers. Every subscription owns its
// queues and workers, so a slow handler only backs up its own lane. Within a
// lane one user's events share a worker and arrive in emission order.
type Bus struct {
	logg      *logger.Logger
	metrics   *metrics.BusMetrics
	timeout   time.Duration
	now       func() time.Time
	workers   int
	queueSize int
	laneSize  int

	mu      sync.RWMutex
	subs    []subscription
	names   map[string]struct{}
	intake  chan ActivityEvent
	lanes   []*lane
	started bool
	closed  bool
	group   errgroup.Group
}

// NewBus builds an unstarted bus. Events emitted before Start are buffered.
func NewBus(opts Options) (*Bus, error) {
	if opts.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	workers := opts.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	laneSize := queueSize / workers
	if laneSize < 1 {
		laneSize = 1
	}
	return &Bus{
		logg:      opts.Logger,
		metrics:   opts.Metrics,
		timeout:   opts.HandlerTimeout,
		now:       now,
		workers:   workers,
		queueSize: queueSize,
		laneSize:  laneSize,
		names:     map[string]struct{}{},
		intake:    make(chan ActivityEvent, queueSize),
	}, nil
}

// OnAll registers a handler for every event type.
func (b *Bus) OnAll(name string, handler Handler) error {
	return b.subscribe(subscription{name: name, handler: handler})
}

// On registers a handler for a single event type.
func (b *Bus) On(eventType enums.ActivityEventType, name string, handler Handler) error {
	if !eventType.IsValid() {
		return pkgerrors.Newf(pkgerrors.CodeConfiguration, "cannot subscribe %q to unknown event type %q", name, eventType)
	}
	return b.subscribe(subscription{name: name, eventType: eventType, handler: handler})
}

func (b *Bus) subscribe(sub subscription) error {
	if sub.name == "" {
		return pkgerrors.New(pkgerrors.CodeConfiguration, "subscription name is required")
	}
	if sub.handler == nil {
		return pkgerrors.Newf(pkgerrors.CodeConfiguration, "subscription %q has no handler", sub.name)
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.started || b.closed {
		return pkgerrors.Newf(pkgerrors.CodeConfiguration, "subscription %q registered after the bus started", sub.name)
	}
	if _, exists := b.names[sub.name]; exists {
		return pkgerrors.Newf(pkgerrors.CodeConfiguration, "subscription %q already registered", sub.name)
	}
	b.names[sub.name] = struct{}{}
	b.subs = append(b.subs, sub)
	return nil
}

// Subscriptions lists registered subscription names in registration order.
func (b *Bus) Subscriptions() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	names := make([]string, 0, len(b.subs))
	for _, sub := range b.subs {
		names = append(names, sub.name)
	}
	return names
}

// Emit validates the payload, stamps the event and queues it without blocking.
// Subscriber failures never surface here.
func (b *Bus) Emit(ctx context.Context, eventType enums.ActivityEventType, payload Payload) (ActivityEvent, error) {
	if !eventType.IsValid() {
		b.metrics.IncDropped(metrics.DropReasonInvalid)
		return ActivityEvent{}, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown activity event type %q", eventType)
	}
	if err := validate.Struct(payload); err != nil {
		b.metrics.IncDropped(metrics.DropReasonInvalid)
		return ActivityEvent{}, err
	}
	event := newEvent(eventType, payload, b.now())

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		b.metrics.IncDropped(metrics.DropReasonClosed)
		return ActivityEvent{}, ErrBusClosed
	}
	select {
	case b.intake <- event:
		b.metrics.IncEmitted(string(eventType))
		return event, nil
	default:
		b.metrics.IncDropped(metrics.DropReasonQueueFull)
		b.logg.Warn(b.logg.WithEvent(ctx, string(eventType), event.EventID.String(), event.UserID.String()), "activity bus queue full; event dropped")
		return ActivityEvent{}, ErrQueueFull
	}
}

// Start launches the dispatcher and workers. ctx supplies values (not
// cancellation) to handler invocations; use Close to stop.
func (b *Bus) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrBusClosed
	}
	if b.started {
		return errors.New("activity bus already started")
	}
	b.started = true

	b.lanes = make([]*lane, 0, len(b.subs))
	for _, sub := range b.subs {
		l := &lane{
			sub:    sub,
			intake: make(chan ActivityEvent, b.queueSize),
			queues: make([]chan job, b.workers),
		}
		for i := range l.queues {
			l.queues[i] = make(chan job, b.laneSize)
		}
		b.lanes = append(b.lanes, l)
	}

	base := context.WithoutCancel(ctx)
	b.group.Go(func() error {
		b.dispatch(base)
		return nil
	})
	for _, l := range b.lanes {
		b.group.Go(func() error {
			l.route()
			return nil
		})
		for _, queue := range l.queues {
			b.group.Go(func() error {
				for j := range queue {
					b.run(base, j)
				}
				return nil
			})
		}
	}
	b.logg.Info(b.logg.WithField(ctx, "subscriptions", len(b.lanes)), "activity bus started")
	return nil
}

// Close stops intake and waits for queued events to drain or ctx to expire.
func (b *Bus) Close(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	close(b.intake)
	started := b.started
	b.mu.Unlock()

	if !started {
		return nil
	}

	done := make(chan struct{})
	go func() {
		_ = b.group.Wait()
		close(done)
	}()
	select {
	case <-done:
		b.logg.Info(ctx, "activity bus drained")
		return nil
	case <-ctx.Done():
		return pkgerrors.Wrap(pkgerrors.CodeTimeout, ctx.Err(), "activity bus drain interrupted")
	}
}

// dispatch never blocks on a lane: when a subscription's backlog is full the
// event is skipped for that subscription alone and counted.
func (b *Bus) dispatch(ctx context.Context) {
	for event := range b.intake {
		for _, l := range b.lanes {
			if !l.sub.matches(event.Type) {
				continue
			}
			select {
			case l.intake <- event:
			default:
				b.metrics.IncHandlerSkipped(l.sub.name)
				lctx := b.logg.WithEvent(ctx, string(event.Type), event.EventID.String(), event.UserID.String())
				b.logg.Warn(b.logg.WithHandler(lctx, l.sub.name), "activity handler queue full; event skipped for handler")
			}
		}
	}
	for _, l := range b.lanes {
		close(l.intake)
	}
}

func (b *Bus) run(base context.Context, j job) {
	ctx := b.logg.WithEvent(base, string(j.event.Type), j.event.EventID.String(), j.event.UserID.String())
	ctx = b.logg.WithHandler(ctx, j.sub.name)

	start := time.Now()
	timedOut, err := b.invoke(ctx, j)
	b.metrics.ObserveHandler(j.sub.name, time.Since(start), err, timedOut)
	if err == nil {
		return
	}
	ctx = b.logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
	if timedOut {
		b.logg.Error(ctx, "activity handler timed out", err)
		return
	}
	b.logg.Error(ctx, "activity handler failed", err)
}

func (b *Bus) invoke(ctx context.Context, j job) (bool, error) {
	if b.timeout <= 0 {
		return false, safeHandle(ctx, j)
	}
	hctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- safeHandle(hctx, j)
	}()
	select {
	case err := <-done:
		if err != nil && errors.Is(hctx.Err(), context.DeadlineExceeded) {
			return true, err
		}
		return false, err
	case <-hctx.Done():
		// The handler keeps running in the background; its result is discarded.
		return true, hctx.Err()
	}
}

func safeHandle(ctx context.Context, j job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return j.sub.handler.Handle(ctx, j.event.Clone())
}
