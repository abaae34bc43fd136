package goSession

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MrEthical07/goSession/pipeline"
)

type countingSink struct {
	count atomic.Int64
}

func (s *countingSink) Emit(context.Context, AuditEvent) {
	s.count.Add(1)
}

func (s *countingSink) Count() int64 {
	return s.count.Load()
}

type gateSink struct {
	gate chan struct{}
}

func newGateSink() *gateSink {
	return &gateSink{
		gate: make(chan struct{}),
	}
}

func (s *gateSink) Emit(context.Context, AuditEvent) {
	<-s.gate
}

func TestAuditDisabledNoQueue(t *testing.T) {
	if q := newAuditQueue(AuditConfig{Enabled: false}, &countingSink{}); q != nil {
		t.Fatal("expected nil queue when audit is disabled")
	}

	var q *auditQueue
	q.Enqueue(context.Background(), AuditEvent{EventType: "e1"})
	q.Close()
	if q.Dropped() != 0 {
		t.Fatal("nil queue must report zero drops")
	}
}

func TestAuditBufferFullDropIfFullTrueDoesNotBlock(t *testing.T) {
	sink := newGateSink()
	var hooked atomic.Int64
	queue := newAuditQueue(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: true,
	}, sink, withAuditDropHook(func(AuditEvent) { hooked.Add(1) }))
	defer func() {
		close(sink.gate)
		queue.Close()
	}()

	queue.Enqueue(context.Background(), AuditEvent{EventType: "e1"})
	queue.Enqueue(context.Background(), AuditEvent{EventType: "e2"})

	start := time.Now()
	queue.Enqueue(context.Background(), AuditEvent{EventType: "e3"})
	if time.Since(start) > 100*time.Millisecond {
		t.Fatal("expected non-blocking enqueue when DropIfFull is true")
	}
	if queue.Dropped() == 0 {
		t.Fatal("expected dropped counter to increment when queue is full")
	}
	if uint64(hooked.Load()) != queue.Dropped() {
		t.Fatalf("drop hook saw %d events, counter has %d", hooked.Load(), queue.Dropped())
	}
}

func TestAuditBufferFullDropIfFullFalseBlocksUntilSpace(t *testing.T) {
	sink := newGateSink()
	queue := newAuditQueue(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		queue.Close()
	}()

	queue.Enqueue(context.Background(), AuditEvent{EventType: "e1"})
	queue.Enqueue(context.Background(), AuditEvent{EventType: "e2"})

	done := make(chan struct{})
	go func() {
		queue.Enqueue(context.Background(), AuditEvent{EventType: "e3"})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("expected enqueue to block while buffer is full")
	case <-time.After(150 * time.Millisecond):
	}

	sink.gate <- struct{}{}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected blocked enqueue to proceed after space is available")
	}
}

func TestAuditBlockedEnqueueHonoursContext(t *testing.T) {
	sink := newGateSink()
	queue := newAuditQueue(AuditConfig{
		Enabled:    true,
		BufferSize: 1,
		DropIfFull: false,
	}, sink)
	defer func() {
		close(sink.gate)
		queue.Close()
	}()

	queue.Enqueue(context.Background(), AuditEvent{EventType: "e1"})
	queue.Enqueue(context.Background(), AuditEvent{EventType: "e2"})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	queue.Enqueue(ctx, AuditEvent{EventType: "e3"})

	if queue.Dropped() != 1 {
		t.Fatalf("expected one dropped event, got %d", queue.Dropped())
	}
}

func TestAuditCloseDeliversBufferedEvents(t *testing.T) {
	sink := &countingSink{}
	queue := newAuditQueue(AuditConfig{
		Enabled:    true,
		BufferSize: 16,
		DropIfFull: false,
	}, sink)

	for i := 0; i < 10; i++ {
		queue.Enqueue(context.Background(), AuditEvent{EventType: "e"})
	}
	queue.Close()

	if sink.Count() != 10 {
		t.Fatalf("expected 10 delivered events, got %d", sink.Count())
	}
}

func TestAuditQueueCloseIdempotentAndCountsLateEvents(t *testing.T) {
	queue := newAuditQueue(AuditConfig{
		Enabled:    true,
		BufferSize: 4,
		DropIfFull: true,
	}, &countingSink{})

	queue.Enqueue(context.Background(), AuditEvent{EventType: "e1"})
	queue.Close()
	queue.Close()
	queue.Enqueue(context.Background(), AuditEvent{EventType: "e2"})

	if queue.Dropped() != 1 {
		t.Fatalf("expected the late event to be counted as dropped, got %d", queue.Dropped())
	}
}

func TestAuditQueueStampsAtEnqueue(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	sink := NewChannelSink(4)
	queue := newAuditQueue(AuditConfig{Enabled: true, BufferSize: 4}, sink,
		withAuditClock(func() time.Time { return at }),
		withAuditStamp(func(ev *AuditEvent) {
			if ev.UserID == "" {
				ev.UserID = "u-7"
				ev.Role = "reviewer"
			}
		}),
	)

	ctx := pipeline.WithAttempt(context.Background(), &pipeline.Attempt{CorrelationID: "corr-1"})
	queue.Enqueue(ctx, AuditEvent{EventType: AuditEventRefresh, SessionID: "s1"})
	queue.Enqueue(context.Background(), AuditEvent{EventType: AuditEventLogout, UserID: "u-9", CorrelationID: "own"})
	queue.Close()

	first := <-sink.Events()
	if !first.Timestamp.Equal(at) {
		t.Fatalf("expected clock timestamp, got %s", first.Timestamp)
	}
	if first.CorrelationID != "corr-1" {
		t.Fatalf("expected correlation id from the request, got %q", first.CorrelationID)
	}
	if first.UserID != "u-7" || first.Role != "reviewer" || first.SessionID != "s1" {
		t.Fatalf("unexpected stamped event %+v", first)
	}

	second := <-sink.Events()
	if second.UserID != "u-9" || second.CorrelationID != "own" {
		t.Fatalf("stamping must not overwrite emitter fields, got %+v", second)
	}
}

func TestAuditQueueScrubsCredentialMetadata(t *testing.T) {
	sink := NewChannelSink(1)
	queue := newAuditQueue(AuditConfig{Enabled: true, BufferSize: 1}, sink)

	queue.Enqueue(context.Background(), AuditEvent{
		EventType: AuditEventLogin,
		Metadata: map[string]string{
			"Access_Token": "x",
			"path":         "/auth/callback?access_token=A&refresh_token=R&next=/d",
			"via":          "direct",
			"landing":      "/auth/callback?code=c1",
		},
	})
	queue.Close()

	ev := <-sink.Events()
	want := map[string]string{
		"path":    "/auth/callback?next=%2Fd",
		"via":     "direct",
		"landing": "/auth/callback",
	}
	if len(ev.Metadata) != len(want) {
		t.Fatalf("unexpected metadata %v", ev.Metadata)
	}
	for k, v := range want {
		if ev.Metadata[k] != v {
			t.Fatalf("metadata %s: expected %q, got %q", k, v, ev.Metadata[k])
		}
	}
}

func TestAuditDropsReachMetrics(t *testing.T) {
	sink := newGateSink()
	env := newTestEnv(t,
		func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 1
			c.Audit.DropIfFull = true
		},
		func(b *Builder) { b.WithAuditSink(sink) },
	)
	defer close(sink.gate)

	env.login(t)
	if err := env.m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	env.m.Logout(context.Background())

	dropped := env.m.AuditDropped()
	if dropped == 0 {
		t.Fatal("expected events to be dropped behind a stalled sink")
	}
	if got := env.m.MetricsSnapshot().Counters[MetricAuditDropped]; got != dropped {
		t.Fatalf("expected MetricAuditDropped %d, got %d", dropped, got)
	}
}

func TestAuditJSONWriterSinkWritesJSONLines(t *testing.T) {
	var buf syncBuffer
	sink := NewJSONWriterSink(&buf)
	sink.Emit(context.Background(), AuditEvent{
		Timestamp: time.Now().UTC(),
		EventType: AuditEventLogin,
		SessionID: "01J00000000000000000000000",
		UserID:    "u1",
		Success:   true,
	})
	sink.Emit(context.Background(), AuditEvent{EventType: AuditEventLogout})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 json lines, got %d", len(lines))
	}
	var decoded AuditEvent
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.EventType != AuditEventLogin || decoded.UserID != "u1" {
		t.Fatalf("unexpected event %+v", decoded)
	}
	if !strings.Contains(lines[0], `"session_id":"01J00000000000000000000000"`) {
		t.Fatalf("expected session_id field, got %s", lines[0])
	}
}

func TestAuditLogSinkWritesAttributes(t *testing.T) {
	var buf bytes.Buffer
	sink := LogSink{Logger: slog.New(slog.NewJSONHandler(&buf, nil))}

	sink.Emit(context.Background(), AuditEvent{
		EventType:     AuditEventRefreshFailed,
		SessionID:     "s1",
		CorrelationID: "c1",
		Error:         string(auditErrRejected),
		Metadata:      map[string]string{"reason": "rejected"},
	})

	out := buf.String()
	for _, want := range []string{`"event":"refresh_failed"`, `"session_id":"s1"`, `"correlation_id":"c1"`, `"reason":"rejected"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %s in %s", want, out)
		}
	}
}

func TestAuditErrorCodeClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want AuditErrorCode
	}{
		{name: "nil", err: nil, want: ""},
		{name: "refresh rejected", err: ErrRefreshRejected, want: auditErrRejected},
		{name: "no refresh", err: ErrNoRefreshCredential, want: auditErrNoRefresh},
		{name: "invalid profile", err: ErrInvalidProfile, want: auditErrInvalidProfile},
		{name: "session ended", err: ErrSessionEnded, want: auditErrSessionEnded},
		{name: "deadline", err: context.DeadlineExceeded, want: auditErrTimeout},
		{name: "other", err: ErrNotAuthenticated, want: auditErrInternal},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := auditErrorCode(tc.err); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAuditNoCredentialsInEvents(t *testing.T) {
	sink := NewChannelSink(64)
	env := newTestEnv(t,
		func(c *Config) {
			c.Audit.Enabled = true
			c.Audit.BufferSize = 64
			c.Audit.DropIfFull = false
		},
		func(b *Builder) { b.WithAuditSink(sink) },
	)

	first := env.login(t)
	if err := env.m.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	second := env.m.store.Pair()
	env.m.Logout(context.Background())
	env.m.Close()

	needles := []string{first.Access, first.Refresh, second.Access, second.Refresh}
	events := make([]AuditEvent, 0, 3)
	timeout := time.After(2 * time.Second)
collectLoop:
	for len(events) < 3 {
		select {
		case ev := <-sink.Events():
			events = append(events, ev)
		case <-timeout:
			break collectLoop
		}
	}
	if len(events) != 3 {
		t.Fatalf("expected login, refresh and logout events, got %d", len(events))
	}

	for _, ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		for _, needle := range needles {
			if strings.Contains(string(data), needle) {
				t.Fatalf("credential leaked in %s event", ev.EventType)
			}
		}
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
