// Package notify delivers alert notifications. Delivery is best-effort by
// contract: the sink attempts each notification at most once and a failed
// send never blocks or reverses the persisted alert.
package notify

import "context"

// Notification is the rendered payload handed to a channel.
type Notification struct {
	Subject   string
	Body      string
	Recipient string
}

// Notifier delivers a rendered notification over one channel.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// Nop is a Notifier that drops everything, for deployments with no
// channel configured and for tests.
type Nop struct{}

func (Nop) Notify(ctx context.Context, n Notification) error { return nil }
