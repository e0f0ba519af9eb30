package service

import (
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/spec-kit/tenant-session/internal/events"
	"github.com/spec-kit/tenant-session/internal/session"
)

// EventSubscriber applies provider events to the store in arrival order.
type EventSubscriber struct {
	controller *AuthController
	sub        *events.Subscription
	done       chan struct{}
	handled    atomic.Uint64
}

func newEventSubscriber(c *AuthController, sub *events.Subscription) *EventSubscriber {
	s := &EventSubscriber{controller: c, sub: sub, done: make(chan struct{})}
	go s.run()
	return s
}

// Close unsubscribes and waits for the loop to exit.
func (s *EventSubscriber) Close() {
	s.sub.Close()
	<-s.done
}

func (s *EventSubscriber) run() {
	defer close(s.done)
	for event := range s.sub.C {
		s.handle(event)
		s.handled.Add(1)
	}
}

func (s *EventSubscriber) handle(event events.Event) {
	c := s.controller
	c.metrics.RecordProviderEvent(string(event.Type))
	c.logger.Debug("provider event", zap.String("type", string(event.Type)), zap.String("event_id", event.ID))

	switch event.Type {
	case events.EventSignedIn:
		if event.Session == nil || event.Principal == nil {
			c.logger.Warn("signed-in event without session or principal", zap.String("event_id", event.ID))
			return
		}
		if held := c.store.Snapshot().Session; held != nil && held.ID == event.Session.ID && held.AccessToken == event.Session.AccessToken {
			// already being handled by Login
			return
		}
		gen := c.store.Begin(session.State{Session: event.Session, Loading: true})
		c.resolveAsync(gen, *event.Principal)

	case events.EventSignedOut, events.EventSessionExpired:
		c.store.Clear()

	case events.EventTokenRefreshed:
		if event.Session == nil {
			return
		}
		gen := c.store.Generation()
		if c.store.Snapshot().Session == nil {
			c.logger.Debug("token refresh ignored without a session")
			return
		}
		refreshed := event.Session
		c.commit(gen, func(cur session.State) session.State {
			cur.Session = refreshed
			return cur
		})

	default:
		c.logger.Warn("unknown provider event", zap.String("type", string(event.Type)))
	}
}
