package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"conversation-service/engine"
	"conversation-service/models"
	"conversation-service/repository"

	"go.uber.org/zap"
)

// EventPublisher publishes order lifecycle events for downstream services.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event models.OrderEvent) error
}

// Dispatcher is the entry point for all inbound events. It deduplicates by
// event id, serializes same-user processing in arrival order, runs the
// conversation engine and commits the result with compare-and-swap before
// any outward-visible message is sent.
type Dispatcher struct {
	sessions repository.SessionRepository
	orders   repository.OrderRepository
	menu     repository.MenuRepository
	dedup    repository.DedupStore
	sender   MessageSender
	payments PaymentClient
	events   EventPublisher
	logger   *zap.Logger

	locks      *userLocks
	maxRetries int
}

// NewDispatcher wires the dispatcher with its collaborators.
func NewDispatcher(
	sessions repository.SessionRepository,
	orders repository.OrderRepository,
	menu repository.MenuRepository,
	dedup repository.DedupStore,
	sender MessageSender,
	payments PaymentClient,
	events EventPublisher,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		sessions:   sessions,
		orders:     orders,
		menu:       menu,
		dedup:      dedup,
		sender:     sender,
		payments:   payments,
		events:     events,
		logger:     logger,
		locks:      newUserLocks(),
		maxRetries: 3,
	}
}

// Handle processes one inbound event to completion. Events for the same
// user are applied strictly in arrival order; events for different users
// proceed fully in parallel.
func (d *Dispatcher) Handle(ctx context.Context, evt models.InboundEvent) (Outcome, error) {
	fresh, err := d.dedup.MarkIfNew(ctx, evt.UserID, evt.EventID)
	if err != nil {
		// A dedup ledger outage should not drop events; the order-level
		// and CAS guards still keep processing safe.
		d.logger.Warn("Dedup ledger unavailable, processing anyway",
			zap.String("event_id", evt.EventID),
			zap.Error(err),
		)
	} else if !fresh {
		d.logger.Info("Duplicate event ignored",
			zap.String("event_id", evt.EventID),
			zap.String("user_id", evt.UserID),
		)
		return OutcomeDuplicateIgnored, nil
	}

	d.locks.acquire(evt.UserID)
	defer d.locks.release(evt.UserID)

	outcome, err := d.process(ctx, evt)
	if err != nil {
		// The event was not applied; release its dedup entry so the
		// platform's redelivery is processed instead of dropped.
		d.unmark(ctx, evt)
	}
	return outcome, err
}

func (d *Dispatcher) process(ctx context.Context, evt models.InboundEvent) (Outcome, error) {
	if evt.Kind == models.EventPaymentConfirmation {
		applied, err := d.applyOrderTransition(ctx, evt)
		if err != nil {
			return OutcomeStaleRejected, err
		}
		if !applied && !d.isLostCommitRetry(ctx, evt) {
			d.logger.Info("Order already in terminal state, confirmation ignored",
				zap.String("order_ref", evt.OrderRef),
				zap.String("status", evt.PaymentStatus),
			)
			return OutcomeDuplicateIgnored, nil
		}
	}

	for attempt := 0; attempt < d.maxRetries; attempt++ {
		outcome, retry, err := d.applySessionTransition(ctx, evt)
		if retry {
			d.logger.Warn("Session CAS conflict, retrying",
				zap.String("user_id", evt.UserID),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return outcome, err
	}
	return OutcomeStaleRejected, ErrStaleWriteConflict
}

// isLostCommitRetry reports whether a confirmation whose order transition
// did not apply is really the redelivery of one that settled the order but
// lost its session commit: the order already carries the event's status and
// the session still points at it. Such an event must run the session cycle
// again rather than be dropped as a duplicate.
func (d *Dispatcher) isLostCommitRetry(ctx context.Context, evt models.InboundEvent) bool {
	order, err := d.orders.FindByReference(ctx, evt.OrderRef)
	if err != nil || order.PaymentStatus != evt.PaymentStatus {
		return false
	}
	sess, err := d.sessions.GetOrCreate(ctx, evt.UserID, evt.UserName)
	if err != nil {
		return false
	}
	return sess.State == models.StateAwaitingPayment &&
		sess.PendingOrderRef != nil &&
		*sess.PendingOrderRef == evt.OrderRef
}

func (d *Dispatcher) unmark(ctx context.Context, evt models.InboundEvent) {
	if err := d.dedup.Unmark(ctx, evt.UserID, evt.EventID); err != nil {
		d.logger.Error("Failed to release dedup entry",
			zap.String("event_id", evt.EventID),
			zap.String("user_id", evt.UserID),
			zap.Error(err),
		)
	}
}

// applyOrderTransition commits the order-level payment transition. It is
// idempotent independently of the session: false means the order was
// already terminal and the event is a duplicate.
func (d *Dispatcher) applyOrderTransition(ctx context.Context, evt models.InboundEvent) (bool, error) {
	var (
		applied   bool
		err       error
		eventType string
	)
	switch evt.PaymentStatus {
	case models.PaymentPaid:
		applied, err = d.orders.MarkPaid(ctx, evt.OrderRef)
		eventType = models.OrderEventPaid
	case models.PaymentFailed:
		applied, err = d.orders.MarkFailed(ctx, evt.OrderRef)
		eventType = models.OrderEventPaymentFailed
	case models.PaymentExpired:
		applied, err = d.orders.MarkExpired(ctx, evt.OrderRef)
		eventType = models.OrderEventExpired
	default:
		return false, fmt.Errorf("unknown payment status %q", evt.PaymentStatus)
	}
	if err != nil {
		return false, err
	}
	if applied {
		d.publish(ctx, models.OrderEvent{
			Type:      eventType,
			OrderRef:  evt.OrderRef,
			UserID:    evt.UserID,
			Timestamp: time.Now().UTC(),
		})
	}
	return applied, nil
}

// applySessionTransition runs one load-transition-commit cycle. retry is
// true when the commit hit a CAS conflict and the whole cycle should be
// re-run from a fresh load.
func (d *Dispatcher) applySessionTransition(ctx context.Context, evt models.InboundEvent) (outcome Outcome, retry bool, err error) {
	sess, err := d.sessions.GetOrCreate(ctx, evt.UserID, evt.UserName)
	if err != nil {
		return OutcomeApplied, false, fmt.Errorf("load session: %w", err)
	}

	input := engine.Input{
		State:      sess.State,
		Cart:       sess.Cart,
		CategoryID: sess.CategoryID,
		Address:    sess.DeliveryAddress,
		UserName:   sess.UserName,
		Event: engine.Event{
			Kind:          evt.Kind,
			Text:          evt.Text,
			OrderRef:      evt.OrderRef,
			PaymentStatus: evt.PaymentStatus,
		},
	}
	if sess.PendingOrderRef != nil {
		input.OrderRef = *sess.PendingOrderRef
	}

	// The menu snapshot is only needed for message events; payment
	// confirmations never browse it.
	if evt.Kind != models.EventPaymentConfirmation {
		menu, menuErr := d.menu.LoadMenu(ctx)
		if menuErr != nil {
			d.logger.Error("Menu lookup failed", zap.Error(menuErr))
			d.trySend(ctx, evt.UserID, "⚠️ Sorry, something went wrong. Please try again in a moment.")
			return OutcomeApplied, false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, menuErr)
		}
		input.Menu = menu
	}

	result := engine.Transition(input)

	messages := make([]string, 0, len(result.Actions))
	var postCommitEvents []models.OrderEvent
	var pendingRef *string

	if result.State == models.StateAwaitingPayment && sess.PendingOrderRef != nil {
		pendingRef = sess.PendingOrderRef
	}

	for _, action := range result.Actions {
		switch act := action.(type) {
		case engine.SendMessage:
			messages = append(messages, act.Text)

		case engine.RequestPayment:
			// Two-phase side effect: perform the external calls first,
			// commit the awaiting-payment state only if they succeed.
			ref := models.NewOrderReference()
			url, payErr := d.payments.CreatePaymentLink(ctx, ref, act.Amount)
			if payErr != nil {
				d.logger.Error("Payment link creation failed",
					zap.String("order_ref", ref),
					zap.Error(payErr),
				)
				d.trySend(ctx, evt.UserID, engine.PaymentUnavailableMessage())
				return OutcomeApplied, false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, payErr)
			}
			order := &models.Order{
				Reference:     ref,
				UserID:        evt.UserID,
				Lines:         act.Lines,
				Address:       act.Address,
				Amount:        act.Amount,
				PaymentStatus: models.PaymentPending,
				PaymentURL:    url,
			}
			if createErr := d.orders.Create(ctx, order); createErr != nil {
				d.logger.Error("Order creation failed",
					zap.String("order_ref", ref),
					zap.Error(createErr),
				)
				d.trySend(ctx, evt.UserID, engine.PaymentUnavailableMessage())
				return OutcomeApplied, false, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, createErr)
			}
			pendingRef = &ref
			messages = append(messages, engine.PaymentLinkMessage(ref, act.Amount, url))
			postCommitEvents = append(postCommitEvents, models.OrderEvent{
				Type:      models.OrderEventCreated,
				OrderRef:  ref,
				UserID:    evt.UserID,
				Amount:    act.Amount,
				Timestamp: time.Now().UTC(),
			})

		case engine.ResendPaymentLink:
			messages = append(messages, d.resendLinkMessage(ctx, sess.PendingOrderRef))
		}
	}

	// A paid cycle completes and immediately resets for the next order.
	newState := result.State
	if newState == models.StateCompleted {
		newState = models.StateIdle
	}
	if newState != models.StateAwaitingPayment {
		pendingRef = nil
	}

	// Profile names can change between messages; keep the stored one fresh.
	if evt.UserName != "" {
		sess.UserName = evt.UserName
	}

	prevPending := sess.PendingOrderRef
	expectedVersion := sess.Version
	sess.State = newState
	sess.Cart = result.Cart
	sess.CategoryID = result.CategoryID
	sess.DeliveryAddress = result.Address
	sess.PendingOrderRef = pendingRef

	if err := d.sessions.UpdateCAS(ctx, sess, expectedVersion); err != nil {
		if errors.Is(err, repository.ErrStaleSession) {
			return OutcomeApplied, true, nil
		}
		return OutcomeApplied, false, fmt.Errorf("commit session: %w", err)
	}

	// An explicit cancel while awaiting payment abandons the pending order.
	if evt.Kind != models.EventPaymentConfirmation && prevPending != nil && pendingRef == nil {
		if applied, failErr := d.orders.MarkFailed(ctx, *prevPending); failErr != nil {
			d.logger.Error("Failed to cancel abandoned order",
				zap.String("order_ref", *prevPending),
				zap.Error(failErr),
			)
		} else if applied {
			d.publish(ctx, models.OrderEvent{
				Type:      models.OrderEventPaymentFailed,
				OrderRef:  *prevPending,
				UserID:    evt.UserID,
				Timestamp: time.Now().UTC(),
			})
		}
	}

	// State is durable; now perform the outward-visible sends. A crash
	// here is recoverable: a redelivery re-renders the same prompt.
	for _, msg := range messages {
		d.trySend(ctx, evt.UserID, msg)
	}
	for _, oe := range postCommitEvents {
		d.publish(ctx, oe)
	}
	return OutcomeApplied, false, nil
}

func (d *Dispatcher) resendLinkMessage(ctx context.Context, pendingRef *string) string {
	if pendingRef == nil {
		return engine.PaymentUnavailableMessage()
	}
	order, err := d.orders.FindByReference(ctx, *pendingRef)
	if err != nil {
		d.logger.Error("Pending order lookup failed",
			zap.String("order_ref", *pendingRef),
			zap.Error(err),
		)
		return engine.PaymentUnavailableMessage()
	}
	return engine.PaymentLinkMessage(order.Reference, order.Amount, order.PaymentURL)
}

func (d *Dispatcher) trySend(ctx context.Context, userID, text string) {
	if err := d.sender.Send(ctx, userID, text); err != nil {
		d.logger.Error("Message send failed",
			zap.String("user_id", userID),
			zap.Error(err),
		)
	}
}

func (d *Dispatcher) publish(ctx context.Context, event models.OrderEvent) {
	if d.events == nil {
		return
	}
	if err := d.events.PublishOrderEvent(ctx, event); err != nil {
		d.logger.Error("Order event publish failed",
			zap.String("order_ref", event.OrderRef),
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}
