package relay

import (
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/primesmshub/sms-hub-api/services"
)

type fakeChannel struct {
	mu     sync.Mutex
	owner  string
	events []Event
	closed bool
}

func (c *fakeChannel) Emit(ev Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("channel closed")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *fakeChannel) Owner() string { return c.owner }

func (c *fakeChannel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *fakeChannel) Events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

type routerFixture struct {
	router       *Router
	registry     *Registry
	log          *services.MemoryMessageLog
	messenger    *services.MockMessenger
	correlations *services.MemoryCorrelationStore
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	f := &routerFixture{
		registry:     NewRegistry(),
		log:          services.NewMemoryMessageLog(100),
		messenger:    services.NewMockMessenger(),
		correlations: services.NewMemoryCorrelationStore(time.Hour),
	}
	f.router = NewRouter(RouterDeps{
		Registry:       f.registry,
		Log:            f.log,
		Messenger:      f.messenger,
		Correlations:   f.correlations,
		OperatorChatID: "777",
		Logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return f
}
