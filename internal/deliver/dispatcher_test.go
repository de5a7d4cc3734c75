package deliver

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/heraldhq/herald/internal/circuitbreaker"
)

type fakePusher struct {
	enabled bool
	err     error
	calls   int
}

func (f *fakePusher) Enabled() bool { return f.enabled }

func (f *fakePusher) Publish(ctx context.Context, userID int64, note Note) error {
	f.calls++
	return f.err
}

type fakeMailer struct {
	err   error
	calls int
	to    string
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	f.calls++
	f.to = to
	return f.err
}

func TestDispatcherPushDisabledSkips(t *testing.T) {
	push := &fakePusher{enabled: false}
	d := NewDispatcher(push, nil, nil)

	res := d.Push(context.Background(), 7, Note{Title: "t"})
	if !res.Skipped {
		t.Error("expected skipped result when push disabled")
	}
	if push.calls != 0 {
		t.Errorf("expected zero push calls, got %d", push.calls)
	}
	if res.Delivered() {
		t.Error("skipped result must not count as delivered")
	}
}

func TestDispatcherPushSuccess(t *testing.T) {
	push := &fakePusher{enabled: true}
	d := NewDispatcher(push, nil, nil)

	res := d.Push(context.Background(), 7, Note{Title: "t"})
	if !res.Delivered() {
		t.Errorf("expected delivered, got %+v", res)
	}
	if res.UserID != 7 || res.Channel != ChannelPush {
		t.Errorf("unexpected result fields: %+v", res)
	}
}

func TestDispatcherPushFailureContained(t *testing.T) {
	push := &fakePusher{enabled: true, err: errors.New("connection refused")}
	d := NewDispatcher(push, nil, nil)

	res := d.Push(context.Background(), 7, Note{Title: "t"})
	if res.Err == nil {
		t.Fatal("expected error captured in result")
	}
	if res.Skipped {
		t.Error("failed attempt is not a skip")
	}
}

func TestDispatcherPushCircuitOpen(t *testing.T) {
	push := &fakePusher{enabled: true, err: errors.New("down")}
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:            "push",
		MaxFailures:     2,
		RecoveryTimeout: time.Minute,
	}, zap.NewNop())
	d := NewDispatcher(push, nil, breaker)

	ctx := context.Background()
	d.Push(ctx, 1, Note{})
	d.Push(ctx, 2, Note{})

	// Circuit is now open; the next attempt must fail fast without a call.
	before := push.calls
	res := d.Push(ctx, 3, Note{})
	if !errors.Is(res.Err, circuitbreaker.ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", res.Err)
	}
	if push.calls != before {
		t.Errorf("expected no push call while open, got %d extra", push.calls-before)
	}
}

func TestDispatcherEmail(t *testing.T) {
	mailer := &fakeMailer{}
	d := NewDispatcher(&fakePusher{}, mailer, nil)

	res := d.Email(context.Background(), 7, "ada@example.com", "New comment", "body")
	if !res.Delivered() {
		t.Errorf("expected delivered, got %+v", res)
	}
	if mailer.to != "ada@example.com" {
		t.Errorf("mailer got to=%q", mailer.to)
	}

	// No mailer configured: skip.
	d2 := NewDispatcher(&fakePusher{}, nil, nil)
	if res := d2.Email(context.Background(), 7, "ada@example.com", "s", "b"); !res.Skipped {
		t.Error("expected skip without mailer")
	}

	// No address: skip.
	if res := d.Email(context.Background(), 7, "", "s", "b"); !res.Skipped {
		t.Error("expected skip without recipient address")
	}
}

func TestReportAggregation(t *testing.T) {
	var rp Report
	rp.Add(Result{UserID: 1, Channel: ChannelPush})
	rp.Add(Result{UserID: 2, Channel: ChannelPush, Err: errors.New("boom")})
	rp.Add(Result{UserID: 3, Channel: ChannelPush, Skipped: true})
	rp.Add(Result{UserID: 4, Channel: ChannelEmail})

	if got := rp.DeliveredCount(); got != 2 {
		t.Errorf("DeliveredCount() = %d, want 2", got)
	}
	failures := rp.Failures()
	if len(failures) != 1 || failures[0].UserID != 2 {
		t.Errorf("unexpected failures: %+v", failures)
	}
}
