// Package feed provides the telemetry push-feed subscription boundary.
//
// The feed is an opaque source of per-parameter updates: subscribers name the
// items they want and receive one callback per update. The websocket Client is
// the production implementation; tests substitute their own Feed.
package feed

// UpdateFunc receives one item update. fields holds the raw field values
// delivered with the update; the parameter value travels in the "Value" field.
type UpdateFunc func(item string, fields map[string]string)

// Subscription is a live feed subscription.
type Subscription interface {
	// Unsubscribe stops delivery and releases the underlying connection.
	// It is safe to call more than once.
	Unsubscribe() error
}

// Feed delivers real-time item updates for a set of subscribed keys.
type Feed interface {
	// Subscribe starts delivery of updates for items to fn. Delivery is
	// serial: fn is never invoked concurrently with itself.
	Subscribe(items []string, fn UpdateFunc) (Subscription, error)
}
