// Package notify delivers alert notifications to recipients.  Delivery is
// fire-and-forget from the engine's side.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BrandonDHaskell/geowatch/internal/geowatch/store"
)

type Notifier interface {
	Notify(ctx context.Context, recipients []string, a store.Alert) error
}

// Func adapts a plain function to Notifier.
type Func func(ctx context.Context, recipients []string, a store.Alert) error

func (f Func) Notify(ctx context.Context, recipients []string, a store.Alert) error {
	return f(ctx, recipients, a)
}

// LogNotifier writes each notification to the log.  It is the default
// when no push channel is configured.
type LogNotifier struct {
	Logger *zap.Logger
}

func (n LogNotifier) Notify(_ context.Context, recipients []string, a store.Alert) error {
	n.Logger.Info("alert notification",
		zap.Int64("alert_id", a.ID),
		zap.String("employee_id", a.EmployeeID),
		zap.String("kind", string(a.Kind)),
		zap.String("severity", string(a.Severity)),
		zap.Strings("recipients", recipients),
	)
	return nil
}

// Dispatcher runs notifications in the background so alert creation never
// waits on delivery.  Wait blocks until in-flight deliveries finish.
type Dispatcher struct {
	notifier Notifier
	timeout  time.Duration
	logger   *zap.Logger

	wg sync.WaitGroup
}

func NewDispatcher(n Notifier, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{notifier: n, timeout: timeout, logger: logger}
}

// Dispatch queues one delivery.  Alerts without recipients are skipped.
func (d *Dispatcher) Dispatch(a store.Alert) {
	if d == nil || d.notifier == nil || len(a.Recipients) == 0 {
		return
	}
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		if err := d.notifier.Notify(ctx, a.Recipients, a); err != nil {
			d.logger.Warn("alert notification failed",
				zap.Int64("alert_id", a.ID),
				zap.Strings("recipients", a.Recipients),
				zap.Error(err),
			)
		}
	}()
}

func (d *Dispatcher) Wait() {
	if d == nil {
		return
	}
	d.wg.Wait()
}
