package goSession

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/goSession/pipeline"
)

// credentialParams name metadata keys and query parameters that carry
// credential material. They never reach a sink.
var credentialParams = map[string]bool{
	"access_token":  true,
	"refresh_token": true,
	"authorization": true,
	"code":          true,
}

// auditQueue hands session events to the sink off the credential path.
//
// Events are stamped when queued, not when delivered: a sink that lags
// behind a logout still sees the session, user and correlation id the event
// happened under. Every event that does not make it to the sink is counted
// and reported through onDrop.
type auditQueue struct {
	sink       AuditSink
	events     chan AuditEvent
	dropIfFull bool
	now        func() time.Time
	stamp      func(*AuditEvent)
	onDrop     func(AuditEvent)

	dropped   atomic.Uint64
	closed    atomic.Bool
	stopping  chan struct{}
	stopped   chan struct{}
	closeOnce sync.Once
}

type auditQueueOption func(*auditQueue)

// withAuditClock sets the clock used for unstamped events.
func withAuditClock(now func() time.Time) auditQueueOption {
	return func(q *auditQueue) {
		if now != nil {
			q.now = now
		}
	}
}

// withAuditStamp fills session fields the emitter left empty.
func withAuditStamp(fn func(*AuditEvent)) auditQueueOption {
	return func(q *auditQueue) { q.stamp = fn }
}

func withAuditDropHook(fn func(AuditEvent)) auditQueueOption {
	return func(q *auditQueue) { q.onDrop = fn }
}

// newAuditQueue returns nil when audit is disabled. A nil queue accepts and
// ignores everything.
func newAuditQueue(cfg AuditConfig, sink AuditSink, opts ...auditQueueOption) *auditQueue {
	if !cfg.Enabled {
		return nil
	}
	size := cfg.BufferSize
	if size <= 0 {
		size = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	q := &auditQueue{
		sink:       sink,
		events:     make(chan AuditEvent, size),
		dropIfFull: cfg.DropIfFull,
		now:        time.Now,
		stopping:   make(chan struct{}),
		stopped:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}

	go q.deliver()
	return q
}

func (q *auditQueue) deliver() {
	defer close(q.stopped)
	for {
		select {
		case ev := <-q.events:
			q.sink.Emit(context.Background(), ev)
		case <-q.stopping:
			for {
				select {
				case ev := <-q.events:
					q.sink.Emit(context.Background(), ev)
				default:
					return
				}
			}
		}
	}
}

// Enqueue stamps and scrubs event, then queues it. With DropIfFull a full
// queue drops the event; otherwise Enqueue waits for room until ctx ends or
// the queue closes. Events offered after Close are dropped.
func (q *auditQueue) Enqueue(ctx context.Context, event AuditEvent) {
	if q == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	q.prepare(ctx, &event)
	if q.closed.Load() {
		q.drop(event)
		return
	}

	if q.dropIfFull {
		select {
		case q.events <- event:
		default:
			q.drop(event)
		}
		return
	}

	select {
	case q.events <- event:
	case <-ctx.Done():
		q.drop(event)
	case <-q.stopping:
		q.drop(event)
	}
}

func (q *auditQueue) prepare(ctx context.Context, ev *AuditEvent) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = q.now().UTC()
	}
	if ev.CorrelationID == "" {
		if a, ok := pipeline.AttemptFromContext(ctx); ok {
			ev.CorrelationID = a.CorrelationID
		}
	}
	if q.stamp != nil {
		q.stamp(ev)
	}
	ev.Metadata = scrubMetadata(ev.Metadata)
}

func (q *auditQueue) drop(ev AuditEvent) {
	q.dropped.Add(1)
	if q.onDrop != nil {
		q.onDrop(ev)
	}
}

// Close stops accepting events and delivers what is already queued.
func (q *auditQueue) Close() {
	if q == nil {
		return
	}
	q.closeOnce.Do(func() {
		q.closed.Store(true)
		close(q.stopping)
		<-q.stopped
	})
}

// Dropped returns how many events never reached the sink.
func (q *auditQueue) Dropped() uint64 {
	if q == nil {
		return 0
	}
	return q.dropped.Load()
}

// scrubMetadata returns a copy of in without credential keys and with
// credential query parameters removed from path-like values.
func scrubMetadata(in map[string]string) map[string]string {
	if len(in) == 0 {
		return in
	}
	out := make(map[string]string, len(in))
	for k, v := range in {
		if credentialParams[strings.ToLower(k)] {
			continue
		}
		out[k] = scrubQuery(v)
	}
	return out
}

func scrubQuery(v string) string {
	i := strings.IndexByte(v, '?')
	if i < 0 {
		return v
	}
	query, err := url.ParseQuery(v[i+1:])
	if err != nil {
		return v[:i]
	}
	removed := false
	for k := range query {
		if credentialParams[strings.ToLower(k)] {
			query.Del(k)
			removed = true
		}
	}
	if !removed {
		return v
	}
	if len(query) == 0 {
		return v[:i]
	}
	return v[:i] + "?" + query.Encode()
}
