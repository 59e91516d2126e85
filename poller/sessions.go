package poller

import (
	"context"
	"sync"
)

type session struct {
	orderID string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Sessions runs at most one poll per connection
type Sessions struct {
	poller *Poller

	mu     sync.Mutex
	active map[string]*session
	wg     sync.WaitGroup
}

func NewSessions(p *Poller) *Sessions {
	return &Sessions{poller: p, active: make(map[string]*session)}
}

// Start polls orderID for connectionID, replacing any poll the connection already runs.
// onDone is not called when the poll was stopped.
func (s *Sessions) Start(connectionID string, ownerID uint, orderID string, onUpdate func(Update), onDone func(Result)) {
	ctx, cancel := context.WithCancel(context.Background())
	sess := &session{orderID: orderID, cancel: cancel, done: make(chan struct{})}

	s.mu.Lock()
	if prev, ok := s.active[connectionID]; ok {
		prev.cancel()
	}
	s.active[connectionID] = sess
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(sess.done)
		defer cancel()

		result := s.poller.Poll(ctx, ownerID, orderID, onUpdate)

		s.mu.Lock()
		if s.active[connectionID] == sess {
			delete(s.active, connectionID)
		}
		s.mu.Unlock()

		if result.Outcome != Stopped && onDone != nil {
			onDone(result)
		}
	}()
}

// Stop halts the connection's poll; it reports whether one was running
func (s *Sessions) Stop(connectionID string) bool {
	s.mu.Lock()
	sess, ok := s.active[connectionID]
	if ok {
		delete(s.active, connectionID)
	}
	s.mu.Unlock()

	if ok {
		sess.cancel()
	}
	return ok
}

// Active returns the order the connection is polling, if any
func (s *Sessions) Active(connectionID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.active[connectionID]
	if !ok {
		return "", false
	}
	return sess.orderID, true
}

// StopAll halts every poll and waits for their goroutines to exit
func (s *Sessions) StopAll() {
	s.mu.Lock()
	for id, sess := range s.active {
		sess.cancel()
		delete(s.active, id)
	}
	s.mu.Unlock()
	s.wg.Wait()
}
