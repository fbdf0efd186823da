package services

import (
	"context"
	"time"

	"conversation-service/engine"
	"conversation-service/models"
	"conversation-service/repository"

	"go.uber.org/zap"
)

// Reconciler is the safety net for confirmations that never arrive: webhooks
// cannot be trusted, so sessions stuck in awaiting-payment past the timeout
// are expired by a periodic sweep, independent of inbound delivery.
type Reconciler struct {
	sessions repository.SessionRepository
	orders   repository.OrderRepository
	sender   MessageSender
	events   EventPublisher
	logger   *zap.Logger

	timeout  time.Duration
	interval time.Duration
}

// NewReconciler builds a sweep with the given payment timeout and run
// interval.
func NewReconciler(
	sessions repository.SessionRepository,
	orders repository.OrderRepository,
	sender MessageSender,
	events EventPublisher,
	logger *zap.Logger,
	timeout, interval time.Duration,
) *Reconciler {
	return &Reconciler{
		sessions: sessions,
		orders:   orders,
		sender:   sender,
		events:   events,
		logger:   logger,
		timeout:  timeout,
		interval: interval,
	}
}

// Start runs the sweep loop until the context is cancelled.
func (r *Reconciler) Start(ctx context.Context) {
	r.logger.Info("Payment reconciliation sweep started",
		zap.Duration("timeout", r.timeout),
		zap.Duration("interval", r.interval),
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Payment reconciliation sweep stopped")
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				r.logger.Error("Reconciliation sweep failed", zap.Error(err))
			} else if n > 0 {
				r.logger.Info("Settled stale payment sessions", zap.Int("count", n))
			}
		}
	}
}

// Sweep settles every session that has waited for payment longer than the
// timeout. The usual path expires the pending order and returns the session
// to cart review with its cart intact. When the order is already terminal
// (a confirmation arrived but its session commit was lost), the sweep
// repairs the session from the order's final status instead.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	stale, err := r.sessions.FindStaleAwaitingPayment(ctx, time.Now().Add(-r.timeout))
	if err != nil {
		return 0, err
	}

	settled := 0
	for _, sess := range stale {
		if sess.PendingOrderRef == nil {
			// Should not happen; recover by resetting the session.
			r.logger.Warn("Awaiting-payment session without pending order",
				zap.String("user_id", sess.UserID),
			)
			if r.commitSession(ctx, &sess, models.StateCartReview, sess.Cart) {
				settled++
			}
			continue
		}

		orderRef := *sess.PendingOrderRef
		applied, markErr := r.orders.MarkExpired(ctx, orderRef)
		if markErr != nil {
			r.logger.Error("Failed to expire order",
				zap.String("order_ref", orderRef),
				zap.Error(markErr),
			)
			continue
		}

		if applied {
			if !r.commitSession(ctx, &sess, models.StateCartReview, sess.Cart) {
				continue
			}
			settled++
			r.notify(ctx, sess.UserID, engine.PaymentExpiredMessage(orderRef))
			r.publish(ctx, models.OrderEvent{
				Type:      models.OrderEventExpired,
				OrderRef:  orderRef,
				UserID:    sess.UserID,
				Timestamp: time.Now().UTC(),
			})
			continue
		}

		if r.repairFromOrder(ctx, sess, orderRef) {
			settled++
		}
	}
	return settled, nil
}

// repairFromOrder settles a stuck awaiting-payment session whose order
// already reached a terminal state. This happens when a confirmation won
// the dedup ledger but lost its session commit.
func (r *Reconciler) repairFromOrder(ctx context.Context, sess models.Session, orderRef string) bool {
	order, err := r.orders.FindByReference(ctx, orderRef)
	if err != nil {
		r.logger.Error("Pending order lookup failed during sweep",
			zap.String("order_ref", orderRef),
			zap.Error(err),
		)
		return false
	}

	switch order.PaymentStatus {
	case models.PaymentPaid:
		if !r.commitSession(ctx, &sess, models.StateIdle, nil) {
			return false
		}
		r.logger.Info("Repaired session for paid order",
			zap.String("user_id", sess.UserID),
			zap.String("order_ref", orderRef),
		)
		r.notify(ctx, sess.UserID, engine.OrderConfirmedMessage(orderRef))
		return true
	case models.PaymentFailed, models.PaymentExpired:
		if !r.commitSession(ctx, &sess, models.StateCartReview, sess.Cart) {
			return false
		}
		r.notify(ctx, sess.UserID, engine.PaymentFailedMessage(order.PaymentStatus, sess.Cart))
		return true
	default:
		// Still pending after a failed MarkExpired: a dispatcher holds the
		// order mid-transition; the next run will settle it.
		return false
	}
}

// commitSession CAS-commits the session out of awaiting-payment. A lost
// race means an inbound event got there first; the next run re-checks.
func (r *Reconciler) commitSession(ctx context.Context, sess *models.Session, state string, cart []models.CartLine) bool {
	expectedVersion := sess.Version
	sess.State = state
	sess.Cart = cart
	sess.PendingOrderRef = nil
	if state == models.StateIdle {
		sess.DeliveryAddress = ""
	}
	if err := r.sessions.UpdateCAS(ctx, sess, expectedVersion); err != nil {
		r.logger.Warn("Sweep lost CAS race",
			zap.String("user_id", sess.UserID),
			zap.Error(err),
		)
		return false
	}
	return true
}

func (r *Reconciler) notify(ctx context.Context, userID, text string) {
	if err := r.sender.Send(ctx, userID, text); err != nil {
		r.logger.Error("Sweep notification failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (r *Reconciler) publish(ctx context.Context, event models.OrderEvent) {
	if r.events == nil {
		return
	}
	if err := r.events.PublishOrderEvent(ctx, event); err != nil {
		r.logger.Error("Order event publish failed",
			zap.String("order_ref", event.OrderRef),
			zap.Error(err),
		)
	}
}
