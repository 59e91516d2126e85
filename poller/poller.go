package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/primesmshub/sms-hub-api/models"
	"github.com/primesmshub/sms-hub-api/services"
)

// Checker performs one status check of an order on behalf of its owner
type Checker interface {
	CheckSMS(ctx context.Context, ownerID uint, orderID string) (*models.Order, error)
}

// Outcome is the terminal state of a poll
type Outcome int

const (
	ReceivedCode Outcome = iota
	TimedOut
	Cancelled
	Finished
	// AttemptsExhausted is a local decision; callers treat it like TimedOut
	AttemptsExhausted
	// Stopped means the caller halted the poll
	Stopped
	// Rejected means the order cannot be polled by this owner at all
	Rejected
)

func (o Outcome) String() string {
	switch o {
	case ReceivedCode:
		return "received"
	case TimedOut:
		return "timeout"
	case Cancelled:
		return "cancelled"
	case Finished:
		return "completed"
	case AttemptsExhausted:
		return "attempts_exhausted"
	case Stopped:
		return "stopped"
	default:
		return "rejected"
	}
}

// Result is returned once a poll ends
type Result struct {
	Outcome  Outcome
	Order    *models.Order // last known state, nil if no check succeeded
	Attempts int
	Err      error // set for Rejected
}

// Update is reported after every completed check
type Update struct {
	Attempt int
	Order   *models.Order
}

// Options fix the cadence of a poll
type Options struct {
	Interval    time.Duration
	MaxAttempts int
}

// DefaultOptions check every two seconds for about four minutes
var DefaultOptions = Options{Interval: 2 * time.Second, MaxAttempts: 120}

// Poller drives repeated checks of one order until it settles
type Poller struct {
	checker Checker
	opts    Options
	logger  *slog.Logger
}

func New(checker Checker, opts Options, logger *slog.Logger) (*Poller, error) {
	if checker == nil {
		return nil, errors.New("checker must not be nil")
	}
	if opts.Interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if opts.MaxAttempts <= 0 {
		return nil, errors.New("max attempts must be > 0")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{checker: checker, opts: opts, logger: logger}, nil
}

// Poll checks orderID at a fixed interval until a terminal state, the attempt
// ceiling, or ctx is cancelled. A check already running when ctx is cancelled
// completes, but its result is discarded.
func (p *Poller) Poll(ctx context.Context, ownerID uint, orderID string, onUpdate func(Update)) Result {
	ticker := time.NewTicker(p.opts.Interval)
	defer ticker.Stop()

	var last *models.Order
	for attempt := 1; attempt <= p.opts.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return Result{Outcome: Stopped, Order: last, Attempts: attempt - 1}
			case <-ticker.C:
			}
		}
		if ctx.Err() != nil {
			return Result{Outcome: Stopped, Order: last, Attempts: attempt - 1}
		}

		order, err := p.safeCheck(context.WithoutCancel(ctx), ownerID, orderID)
		if ctx.Err() != nil {
			return Result{Outcome: Stopped, Order: last, Attempts: attempt}
		}

		if err != nil {
			if services.IsKind(err, services.KindNotFound) || services.IsKind(err, services.KindOwnership) {
				return Result{Outcome: Rejected, Attempts: attempt, Err: err}
			}
			p.logger.Warn("order check failed", "order_id", orderID, "attempt", attempt, "error", err)
			continue
		}

		last = order
		if onUpdate != nil {
			onUpdate(Update{Attempt: attempt, Order: order})
		}

		if outcome, done := terminal(order); done {
			return Result{Outcome: outcome, Order: order, Attempts: attempt}
		}
	}

	return Result{Outcome: AttemptsExhausted, Order: last, Attempts: p.opts.MaxAttempts}
}

func terminal(order *models.Order) (Outcome, bool) {
	switch order.Status {
	case models.OrderReceived:
		if order.OTPCode != "" {
			return ReceivedCode, true
		}
	case models.OrderTimeout:
		return TimedOut, true
	case models.OrderCancelled:
		return Cancelled, true
	case models.OrderCompleted:
		if order.OTPCode != "" {
			return ReceivedCode, true
		}
		return Finished, true
	}
	return 0, false
}

func (p *Poller) safeCheck(ctx context.Context, ownerID uint, orderID string) (order *models.Order, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("order check panic recovered", "order_id", orderID, "panic", r)
			order, err = nil, fmt.Errorf("check panicked: %v", r)
		}
	}()
	return p.checker.CheckSMS(ctx, ownerID, orderID)
}
