// Package notify delivers celebratory notifications one at a time.
//
// A Queue holds a single FIFO of pending events and at most one drain
// goroutine. The drain pops the head, dispatches it to the render
// worker, then waits exactly the fixed spacing before the next event.
// The render worker calls the sink in dispatch order; a slow sink delays
// only its own render, never the drain. Sound cues play in the
// background. Events from one EnqueueBatch call are contiguous in
// delivery order.
package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/levelup-learning/levelup/internal/domain"
	"github.com/levelup-learning/levelup/internal/infra/metrics"
)

// DefaultSpacing is the pause between two deliveries.
const DefaultSpacing = time.Second

// defaultSinkTimeout bounds one sink call.
const defaultSinkTimeout = 10 * time.Second

// Config configures a Queue.
type Config struct {
	Spacing     time.Duration // Pause after each dispatch (default 1s)
	SinkTimeout time.Duration // Deadline handed to each sink call (default 10s)
	Sound       SoundPlayer   // Optional; played after each render
	Logger      *logrus.Entry
}

// Queue is the process-wide notification playback queue.
// The zero value is not usable; create one with NewQueue.
type Queue struct {
	mu        sync.Mutex
	pending   []domain.NotificationEvent
	draining  bool
	renders   []domain.NotificationEvent // dispatched, not yet rendered
	rendering bool
	idle      chan struct{} // closed once draining and rendering both stop
	idleShut  bool

	sink        Sink
	sound       SoundPlayer
	spacing     time.Duration
	sinkTimeout time.Duration
	log         *logrus.Entry

	delivered int64
	failures  int64
}

// NewQueue creates an idle queue that delivers to sink.
func NewQueue(sink Sink, cfg Config) *Queue {
	if cfg.Spacing <= 0 {
		cfg.Spacing = DefaultSpacing
	}
	if cfg.SinkTimeout <= 0 {
		cfg.SinkTimeout = defaultSinkTimeout
	}
	log := cfg.Logger
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	idle := make(chan struct{})
	close(idle)
	return &Queue{
		idle:        idle,
		idleShut:    true,
		sink:        sink,
		sound:       cfg.Sound,
		spacing:     cfg.Spacing,
		sinkTimeout: cfg.SinkTimeout,
		log:         log.WithField("component", "notify"),
	}
}

// Enqueue appends one event and starts a drain if none is running.
func (q *Queue) Enqueue(ev domain.NotificationEvent) {
	q.EnqueueBatch([]domain.NotificationEvent{ev})
}

// EnqueueBatch appends events contiguously: no other enqueue can land
// between them.
func (q *Queue) EnqueueBatch(events []domain.NotificationEvent) {
	if len(events) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, events...)
	metrics.NotificationQueueDepth.Set(float64(len(q.pending)))
	start := !q.draining
	if start {
		q.draining = true
		if q.idleShut {
			q.idle = make(chan struct{})
			q.idleShut = false
		}
	}
	q.mu.Unlock()

	if start {
		go q.drain()
	}
}

// drain dispatches until the queue is empty. Only one runs at a time.
func (q *Queue) drain() {
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.draining = false
			q.settle()
			q.mu.Unlock()
			return
		}
		ev := q.pending[0]
		q.pending[0] = domain.NotificationEvent{}
		q.pending = q.pending[1:]
		metrics.NotificationQueueDepth.Set(float64(len(q.pending)))
		q.delivered++
		q.dispatch(ev)
		q.mu.Unlock()

		time.Sleep(q.spacing)
	}
}

// dispatch hands ev to the render worker, starting one if none runs.
// Callers hold q.mu.
func (q *Queue) dispatch(ev domain.NotificationEvent) {
	q.renders = append(q.renders, ev)
	if !q.rendering {
		q.rendering = true
		go q.render()
	}
}

// settle closes the idle channel once nothing is draining or rendering.
// Callers hold q.mu.
func (q *Queue) settle() {
	if !q.draining && !q.rendering && !q.idleShut {
		close(q.idle)
		q.idleShut = true
	}
}

// render calls the sink for each dispatched event in order. Only one
// runs at a time.
func (q *Queue) render() {
	for {
		q.mu.Lock()
		if len(q.renders) == 0 {
			q.rendering = false
			q.settle()
			q.mu.Unlock()
			return
		}
		ev := q.renders[0]
		q.renders[0] = domain.NotificationEvent{}
		q.renders = q.renders[1:]
		q.mu.Unlock()

		q.deliver(ev)
	}
}

// deliver renders one event and starts its sound. Failures are logged
// and never reach the render loop.
func (q *Queue) deliver(ev domain.NotificationEvent) {
	defer func() {
		if r := recover(); r != nil {
			q.fail(ev, fmt.Errorf("sink panic: %v", r))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), q.sinkTimeout)
	defer cancel()

	metrics.NotificationsDelivered.WithLabelValues(string(ev.Kind)).Inc()
	if err := q.sink.Render(ctx, ev); err != nil {
		q.fail(ev, err)
	}

	if q.sound != nil {
		go q.play(ev.Kind)
	}
}

func (q *Queue) play(kind domain.NotificationKind) {
	defer func() {
		if r := recover(); r != nil {
			q.log.WithField("panic", r).Debug("sound unavailable")
		}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), q.sinkTimeout)
	defer cancel()
	if err := q.sound.Play(ctx, SoundFor(kind)); err != nil {
		q.log.WithError(err).Debug("sound unavailable")
	}
}

func (q *Queue) fail(ev domain.NotificationEvent, err error) {
	q.mu.Lock()
	q.failures++
	q.mu.Unlock()
	metrics.SinkFailures.WithLabelValues(sinkName(q.sink)).Inc()
	q.log.WithFields(logrus.Fields{
		"kind":    ev.Kind,
		"user_id": ev.UserID,
	}).WithError(err).Warn("notification sink failed")
}

// Len returns the number of events not yet dispatched.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Idle reports whether nothing is draining or rendering.
func (q *Queue) Idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return !q.draining && !q.rendering
}

// WaitIdle blocks until the queue has drained and every dispatched
// event has rendered, or ctx is done. Events enqueued while waiting
// extend the wait.
func (q *Queue) WaitIdle(ctx context.Context) error {
	for {
		q.mu.Lock()
		if !q.draining && !q.rendering {
			q.mu.Unlock()
			return nil
		}
		idle := q.idle
		q.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Stats is a snapshot of queue counters.
type Stats struct {
	Pending   int   `json:"pending"`
	Rendering int   `json:"rendering"`
	Draining  bool  `json:"draining"`
	Delivered int64 `json:"delivered"`
	Failures  int64 `json:"failures"`
}

// Stats returns current queue statistics.
func (q *Queue) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Pending:   len(q.pending),
		Rendering: len(q.renders),
		Draining:  q.draining,
		Delivered: q.delivered,
		Failures:  q.failures,
	}
}
