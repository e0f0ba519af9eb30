package events

import "sync"

// Subscription is an ordered, unbounded event stream. C is closed after Close.
type Subscription struct {
	C <-chan Event

	out    chan Event
	wake   chan struct{}
	done   chan struct{}
	detach func()

	mu        sync.Mutex
	queue     []Event
	closeOnce sync.Once
}

func newSubscription(detach func()) *Subscription {
	out := make(chan Event)
	s := &Subscription{
		C:      out,
		out:    out,
		wake:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		detach: detach,
	}
	go s.pump()
	return s
}

// Close stops delivery. Queued events not yet received are dropped.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		if s.detach != nil {
			s.detach()
		}
		close(s.done)
	})
}

func (s *Subscription) enqueue(e Event) {
	s.mu.Lock()
	s.queue = append(s.queue, e)
	s.mu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Subscription) pump() {
	defer close(s.out)
	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			select {
			case <-s.wake:
				continue
			case <-s.done:
				return
			}
		}
		next := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- next:
		case <-s.done:
			return
		}
	}
}
