package realtime

import (
	"context"
	"errors"
	"sync"
)

// ErrNoSession is returned when a subscription is attempted without an
// authenticated session token.
var ErrNoSession = errors.New("realtime: no authenticated session")

// TokenVerifier checks a bearer credential and returns the subject it belongs
// to. Production wires the Firebase auth client; tests use a fake.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (userID string, err error)
}

// Broker is the publish/subscribe facade handed to repositories (publish
// after successful writes) and to sync listeners (subscribe per scope key).
// It is explicitly constructed and passed by reference; there is no ambient
// global instance.
type Broker struct {
	hub    *Hub
	bridge *Bridge // nil in single-instance mode

	verifier TokenVerifier
}

// NewBroker constructs a Broker. bridge may be nil, in which case events stay
// process-local.
func NewBroker(hub *Hub, bridge *Bridge, verifier TokenVerifier) *Broker {
	return &Broker{hub: hub, bridge: bridge, verifier: verifier}
}

// Publish dispatches a row-change event, through Redis when a bridge is
// configured so every instance sees it, directly into the local hub otherwise.
func (b *Broker) Publish(ev ChangeEvent) {
	if b.bridge != nil {
		b.bridge.Publish(ev)
		return
	}
	b.hub.Publish(ev)
}

// Subscribe opens a push channel for one scope key. The bearer credential is
// verified before the first event can be delivered; an empty token yields
// ErrNoSession so callers can treat "signed out" as nothing-to-show rather
// than a failure.
func (b *Broker) Subscribe(ctx context.Context, scope, token string) (*Subscription, error) {
	if token == "" {
		return nil, ErrNoSession
	}
	if b.verifier != nil {
		if _, err := b.verifier.Verify(ctx, token); err != nil {
			return nil, err
		}
	}

	ch, unsubscribe := b.hub.Subscribe(scope)
	return &Subscription{
		broker: b,
		scope:  scope,
		token:  token,
		ch:     ch,
		cancel: unsubscribe,
	}, nil
}

// Subscription is one open push channel for a scope key.
type Subscription struct {
	broker *Broker
	scope  string

	mu    sync.Mutex
	token string

	ch        <-chan ChangeEvent
	cancel    func()
	closeOnce sync.Once
}

// Events returns the receive-only event stream.
func (s *Subscription) Events() <-chan ChangeEvent {
	return s.ch
}

// SetAuth refreshes the bearer credential attached to the channel. The push
// channel does not inherit rotated session tokens, so callers invoke this
// after every session fetch.
func (s *Subscription) SetAuth(ctx context.Context, token string) error {
	if token == "" {
		return ErrNoSession
	}
	if s.broker.verifier != nil {
		if _, err := s.broker.verifier.Verify(ctx, token); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Close detaches the subscriber from the hub and closes the event stream.
func (s *Subscription) Close() {
	s.closeOnce.Do(s.cancel)
}
