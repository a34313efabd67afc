package session

import (
	"golang.org/x/net/html"

	"github.com/GriffinCanCode/pagelens/internal/domain/inspector"
)

// Capabilities lists which kinds of change an Observer can report.
type Capabilities struct {
	Mutation   bool `json:"mutation"`
	Visibility bool `json:"visibility"`
	Resize     bool `json:"resize"`
}

// Missing returns the names of unsupported capabilities.
func (c Capabilities) Missing() []string {
	var out []string
	if !c.Mutation {
		out = append(out, "mutation")
	}
	if !c.Visibility {
		out = append(out, "visibility")
	}
	if !c.Resize {
		out = append(out, "resize")
	}
	return out
}

// Subscription is an active observation that can be cancelled.
type Subscription interface {
	Cancel()
}

// SubscriptionFunc adapts a function to Subscription.
type SubscriptionFunc func()

// Cancel implements Subscription.
func (f SubscriptionFunc) Cancel() {
	if f != nil {
		f()
	}
}

// Observer reports changes to captured elements. notify may be called from
// any goroutine, including after Cancel has returned.
type Observer interface {
	Capabilities() Capabilities
	Observe(n *html.Node, notify func(inspector.Observation)) (Subscription, error)
}

// NopObserver supports nothing. It backs static documents.
type NopObserver struct{}

// Capabilities implements Observer.
func (NopObserver) Capabilities() Capabilities { return Capabilities{} }

// Observe implements Observer.
func (NopObserver) Observe(*html.Node, func(inspector.Observation)) (Subscription, error) {
	return SubscriptionFunc(nil), nil
}
