// Package notify renders templated notifications and delivers them after the
// state change that produced them has been committed.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"ticketing/monitoring"
	"ticketing/utils"
)

// Hook is a side effect to run once a transaction has committed.
type Hook func(ctx context.Context) error

// Hooks collects the hooks produced while a transaction is open.
type Hooks []Hook

func (h *Hooks) Add(fn Hook) {
	*h = append(*h, fn)
}

type guardedChannel struct {
	ch      Channel
	breaker *utils.CircuitBreaker
}

// Dispatcher fans messages out over every configured channel.
type Dispatcher struct {
	channels []guardedChannel
	timeout  time.Duration
	wg       sync.WaitGroup
}

func NewDispatcher(timeout time.Duration, channels ...Channel) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	d := &Dispatcher{timeout: timeout}
	for _, ch := range channels {
		d.channels = append(d.channels, guardedChannel{
			ch: ch,
			breaker: utils.NewCircuitBreaker(ch.Name(),
				utils.WithThreshold(10, 0.6),
				utils.WithStateChange(func(name string, from, to utils.State) {
					slog.Warn("Notification channel breaker changed state", "channel", name, "from", from.String(), "to", to.String())
				}),
			),
		})
	}
	return d
}

// Send delivers msg over every channel. Channels that have no address for the
// recipient are skipped.
func (d *Dispatcher) Send(ctx context.Context, msg Message) error {
	var errs []error
	for _, gc := range d.channels {
		err := gc.breaker.Run(ctx, func(ctx context.Context) error {
			return gc.ch.Deliver(ctx, msg)
		})
		switch {
		case err == nil:
			monitoring.TrackNotification(gc.ch.Name(), "sent")
		case errors.Is(err, ErrNoAddress):
			monitoring.TrackNotification(gc.ch.Name(), "skipped")
		case errors.Is(err, utils.ErrCircuitOpen), errors.Is(err, utils.ErrTooManyRequests):
			monitoring.TrackNotification(gc.ch.Name(), "rejected")
			errs = append(errs, fmt.Errorf("%s: %w", gc.ch.Name(), err))
		default:
			monitoring.TrackNotification(gc.ch.Name(), "failed")
			errs = append(errs, fmt.Errorf("%s: %w", gc.ch.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Message returns a hook that renders and sends one notification.
func (d *Dispatcher) Message(kind Kind, to Recipient, data any) Hook {
	return func(ctx context.Context) error {
		msg, err := Render(kind, to, data)
		if err != nil {
			return err
		}
		return d.Send(ctx, msg)
	}
}

// Fire runs hooks in the background. Failures are logged and never reach the caller.
func (d *Dispatcher) Fire(hooks Hooks) {
	for _, hook := range hooks {
		d.wg.Add(1)
		go func(hook Hook) {
			defer d.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					slog.Error("Notification hook panicked", "panic", r)
				}
			}()

			ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
			defer cancel()

			if err := hook(ctx); err != nil {
				slog.Error("Failed to deliver notification", "error", err)
			}
		}(hook)
	}
}

// Wait blocks until every fired hook has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
