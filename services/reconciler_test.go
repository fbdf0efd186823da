package services_test

import (
	"context"
	"testing"
	"time"

	"conversation-service/models"
	"conversation-service/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestSweepExpiresStalePaymentSessions(t *testing.T) {
	sessions := newMemSessions()
	orders := newMemOrders()
	sender := &memSender{}
	publisher := &memPublisher{}

	ref := "ORD-AAAA1111"
	cart := []models.CartLine{{ItemID: 10, Name: "Jollof Rice & Chicken", Quantity: 1, UnitPrice: 250000}}
	orders.Create(context.Background(), &models.Order{
		Reference: ref, UserID: userID, Amount: 250000,
		PaymentStatus: models.PaymentPending,
	})
	sessions.seed(models.Session{
		UserID: userID, UserName: "Ada",
		State:           models.StateAwaitingPayment,
		Cart:            cart,
		PendingOrderRef: &ref,
		Version:         6,
		UpdatedAt:       time.Now().Add(-time.Hour),
	})

	r := services.NewReconciler(sessions, orders, sender, publisher, zap.NewNop(), 30*time.Minute, time.Minute)
	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	assert.Equal(t, models.PaymentExpired, orders.status(ref))

	sess := sessions.current(userID)
	assert.Equal(t, models.StateCartReview, sess.State)
	assert.Nil(t, sess.PendingOrderRef)
	// The cart survives expiry so the user can retry checkout.
	assert.Equal(t, cart, sess.Cart)

	assert.Equal(t, []string{models.OrderEventExpired}, publisher.types())
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], ref)
}

func TestSweepLeavesFreshSessionsAlone(t *testing.T) {
	sessions := newMemSessions()
	orders := newMemOrders()
	sender := &memSender{}
	publisher := &memPublisher{}

	ref := "ORD-AAAA1111"
	orders.Create(context.Background(), &models.Order{
		Reference: ref, UserID: userID, Amount: 250000,
		PaymentStatus: models.PaymentPending,
	})
	sessions.seed(models.Session{
		UserID: userID, UserName: "Ada",
		State:           models.StateAwaitingPayment,
		PendingOrderRef: &ref,
		Version:         1,
		UpdatedAt:       time.Now(),
	})

	r := services.NewReconciler(sessions, orders, sender, publisher, zap.NewNop(), 30*time.Minute, time.Minute)
	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, models.PaymentPending, orders.status(ref))
	assert.Equal(t, models.StateAwaitingPayment, sessions.current(userID).State)
}

func TestSweepRepairsSessionStuckOnPaidOrder(t *testing.T) {
	sessions := newMemSessions()
	orders := newMemOrders()
	sender := &memSender{}
	publisher := &memPublisher{}

	// The confirmation settled the order but its session commit was lost;
	// the session has sat in awaiting_payment ever since.
	ref := "ORD-AAAA1111"
	orders.Create(context.Background(), &models.Order{
		Reference: ref, UserID: userID, Amount: 250000,
		PaymentStatus: models.PaymentPaid,
	})
	sessions.seed(models.Session{
		UserID: userID, UserName: "Ada",
		State:           models.StateAwaitingPayment,
		Cart:            []models.CartLine{{ItemID: 10, Quantity: 1, UnitPrice: 250000}},
		PendingOrderRef: &ref,
		Version:         1,
		UpdatedAt:       time.Now().Add(-time.Hour),
	})

	r := services.NewReconciler(sessions, orders, sender, publisher, zap.NewNop(), 30*time.Minute, time.Minute)
	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The paid purchase stands; the session is released for a new order.
	assert.Equal(t, models.PaymentPaid, orders.status(ref))
	sess := sessions.current(userID)
	assert.Equal(t, models.StateIdle, sess.State)
	assert.Empty(t, sess.Cart)
	assert.Nil(t, sess.PendingOrderRef)

	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0], ref)
	// order.paid was published when the order settled; the repair does
	// not publish again.
	assert.Empty(t, publisher.types())
}

func TestSweepRepairsSessionStuckOnFailedOrder(t *testing.T) {
	sessions := newMemSessions()
	orders := newMemOrders()
	sender := &memSender{}
	publisher := &memPublisher{}

	ref := "ORD-AAAA1111"
	cart := []models.CartLine{{ItemID: 10, Name: "Jollof Rice & Chicken", Quantity: 1, UnitPrice: 250000}}
	orders.Create(context.Background(), &models.Order{
		Reference: ref, UserID: userID, Amount: 250000,
		PaymentStatus: models.PaymentFailed,
	})
	sessions.seed(models.Session{
		UserID: userID, UserName: "Ada",
		State:           models.StateAwaitingPayment,
		Cart:            cart,
		PendingOrderRef: &ref,
		Version:         1,
		UpdatedAt:       time.Now().Add(-time.Hour),
	})

	r := services.NewReconciler(sessions, orders, sender, publisher, zap.NewNop(), 30*time.Minute, time.Minute)
	n, err := r.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sess := sessions.current(userID)
	assert.Equal(t, models.StateCartReview, sess.State)
	assert.Equal(t, cart, sess.Cart)
	assert.Nil(t, sess.PendingOrderRef)
	require.Len(t, sender.sent, 1)
}
