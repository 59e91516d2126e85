package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/poller"
	"github.com/primesmshub/sms-hub-api/services"
	"github.com/primesmshub/sms-hub-api/utils"
)

const (
	defaultWriteWait      = 10 * time.Second
	defaultPongWait       = 60 * time.Second
	defaultMaxMessageSize = 64 * 1024
)

var errConnClosed = errors.New("relay: connection closed")

// OwnerLookup resolves an authenticated subject to its account
type OwnerLookup interface {
	FindByAuth0ID(ctx context.Context, auth0ID string) (*models.User, error)
}

// HubOptions tune the socket transport
type HubOptions struct {
	AllowedOrigins []string
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

// HubDeps are the collaborators of a Hub
type HubDeps struct {
	Registry *Registry
	Router   *Router
	Sessions *poller.Sessions
	Owners   OwnerLookup
	Logger   *slog.Logger
}

// Hub accepts browser sockets and dispatches their frames
type Hub struct {
	registry *Registry
	router   *Router
	sessions *poller.Sessions
	owners   OwnerLookup
	logger   *slog.Logger
	upgrader websocket.Upgrader
	opts     HubOptions
}

func NewHub(deps HubDeps, opts HubOptions) *Hub {
	if opts.WriteWait <= 0 {
		opts.WriteWait = defaultWriteWait
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = defaultMaxMessageSize
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		registry: deps.Registry,
		router:   deps.Router,
		sessions: deps.Sessions,
		owners:   deps.Owners,
		logger:   logger,
		upgrader: makeUpgrader(opts.AllowedOrigins),
		opts:     opts,
	}
}

// makeUpgrader allows every origin when the list is empty or "*"
func makeUpgrader(allowedOrigins []string) websocket.Upgrader {
	allowAll := len(allowedOrigins) == 0 || (len(allowedOrigins) == 1 && allowedOrigins[0] == "*")
	originSet := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		originSet[o] = true
	}

	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if allowAll {
				return true
			}
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true // non-browser clients
			}
			return originSet[origin]
		},
	}
}

// conn is a registered socket. Writes are serialised by mu.
type conn struct {
	id        string
	owner     string
	ws        *websocket.Conn
	writeWait time.Duration

	mu     sync.Mutex
	closed bool
}

func (c *conn) Owner() string { return c.owner }

func (c *conn) Emit(ev Event) error {
	frame, err := Encode(ev)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, frame)
}

func (c *conn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errConnClosed
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.writeWait))
}

func (c *conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// Serve upgrades the request and runs the connection until it closes.
// owner is the authenticated subject or "" for an anonymous visitor.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, owner string) {
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer func() { _ = ws.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := &conn{id: utils.NewConnectionID(), owner: owner, ws: ws, writeWait: h.opts.WriteWait}
	h.registry.Register(c.id, c)
	h.logger.Info("socket connected", "connection_id", c.id, "authenticated", owner != "")

	defer func() {
		h.registry.Unregister(c.id)
		if h.sessions != nil {
			h.sessions.Stop(c.id)
		}
		c.markClosed()
		h.logger.Info("socket disconnected", "connection_id", c.id)
	}()

	h.router.Welcome(ctx, c.id, c)

	ws.SetReadLimit(h.opts.MaxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
	})
	go h.keepalive(ctx, c)

	for {
		_, frame, err := ws.ReadMessage()
		if err != nil {
			h.logger.Debug("socket read error", "connection_id", c.id, "error", err)
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(h.opts.PongWait))
		h.dispatch(ctx, c, frame)
	}
}

func (h *Hub) keepalive(ctx context.Context, c *conn) {
	ticker := time.NewTicker(h.opts.PongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := c.ping(); err != nil {
				return
			}
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, c *conn, frame []byte) {
	ev, err := DecodeInbound(frame)
	if err != nil {
		h.logger.Warn("invalid frame from client", "connection_id", c.id, "error", err)
		_ = c.Emit(ErrorEvent{Message: err.Error()})
		return
	}

	switch m := ev.(type) {
	case SendMessage:
		ack, err := h.router.HandleSend(ctx, c.id, m)
		if err != nil {
			h.logger.Debug("send_message not delivered", "connection_id", c.id, "error", err)
		}
		_ = c.Emit(ack)
	case PollSMS:
		h.startPoll(ctx, c, m.OrderID)
	case StopPolling:
		if h.sessions != nil {
			h.sessions.Stop(c.id)
		}
	}
}

func (h *Hub) startPoll(ctx context.Context, c *conn, orderID string) {
	if h.sessions == nil || h.owners == nil {
		_ = c.Emit(ErrorEvent{Message: "Order polling is unavailable"})
		return
	}
	if c.owner == "" {
		_ = c.Emit(ErrorEvent{Message: "Authentication required to poll orders"})
		return
	}
	user, err := h.owners.FindByAuth0ID(ctx, c.owner)
	if err != nil {
		_ = c.Emit(ErrorEvent{Message: "User not found"})
		return
	}

	onUpdate := func(u poller.Update) {
		_ = c.Emit(SMSUpdate{
			OrderID: orderID,
			Status:  u.Order.Status,
			SMS:     u.Order.SMSText,
			Code:    u.Order.OTPCode,
			Attempt: u.Attempt,
		})
	}
	onDone := func(res poller.Result) {
		if ev := resultEvent(orderID, res); ev != nil {
			_ = c.Emit(ev)
		}
	}
	h.sessions.Start(c.id, user.ID, orderID, onUpdate, onDone)
}

func resultEvent(orderID string, res poller.Result) Event {
	status := models.OrderTimeout
	if res.Order != nil {
		status = res.Order.Status
	}

	switch res.Outcome {
	case poller.ReceivedCode:
		return SMSReceived{OrderID: orderID, SMS: res.Order.SMSText, Code: res.Order.OTPCode}
	case poller.TimedOut:
		return SMSTimeout{OrderID: orderID, Status: status, Message: "Order timed out"}
	case poller.Cancelled:
		return SMSTimeout{OrderID: orderID, Status: status, Message: "Order was cancelled"}
	case poller.Finished:
		return SMSTimeout{OrderID: orderID, Status: status, Message: "Order finished without an SMS"}
	case poller.AttemptsExhausted:
		return SMSTimeout{OrderID: orderID, Status: status, Message: "No SMS received"}
	case poller.Rejected:
		msg := "Order not found"
		if appErr, ok := services.AsAppError(res.Err); ok {
			msg = appErr.Message
		}
		return ErrorEvent{Message: msg}
	default:
		return nil
	}
}
