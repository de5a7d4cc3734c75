package deliver

import (
	"context"

	"github.com/heraldhq/herald/internal/circuitbreaker"
)

// Pusher publishes mobile push messages. Implemented by PushClient.
type Pusher interface {
	Enabled() bool
	Publish(ctx context.Context, userID int64, note Note) error
}

// EmailSender sends notification emails. Implemented by Mailer.
type EmailSender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// Dispatcher fans delivery attempts out to the external channels. Every
// attempt returns a Result; nothing here logs or propagates, per-recipient
// containment is the whole point.
type Dispatcher struct {
	push    Pusher
	mailer  EmailSender // nil disables the email channel
	breaker *circuitbreaker.CircuitBreaker
}

// NewDispatcher creates a dispatcher. mailer may be nil.
func NewDispatcher(push Pusher, mailer EmailSender, breaker *circuitbreaker.CircuitBreaker) *Dispatcher {
	return &Dispatcher{push: push, mailer: mailer, breaker: breaker}
}

// PushEnabled reports whether push delivery can be attempted at all.
func (d *Dispatcher) PushEnabled() bool {
	return d.push != nil && d.push.Enabled()
}

// Push attempts mobile push delivery to one user. A missing or malformed
// integration key skips silently; an open circuit or transport failure is
// captured in the result, never thrown.
func (d *Dispatcher) Push(ctx context.Context, userID int64, note Note) Result {
	res := Result{UserID: userID, Channel: ChannelPush}

	if !d.PushEnabled() {
		res.Skipped = true
		return res
	}

	if d.breaker != nil && !d.breaker.Allow() {
		res.Err = circuitbreaker.ErrOpen
		return res
	}

	if err := d.push.Publish(ctx, userID, note); err != nil {
		if d.breaker != nil {
			d.breaker.RecordFailure()
		}
		res.Err = err
		return res
	}

	if d.breaker != nil {
		d.breaker.RecordSuccess()
	}
	return res
}

// Email attempts email delivery to one user.
func (d *Dispatcher) Email(ctx context.Context, userID int64, to, subject, body string) Result {
	res := Result{UserID: userID, Channel: ChannelEmail}

	if d.mailer == nil || to == "" {
		res.Skipped = true
		return res
	}

	if err := d.mailer.Send(ctx, to, subject, body); err != nil {
		res.Err = err
	}
	return res
}
