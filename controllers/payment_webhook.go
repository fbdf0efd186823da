package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"conversation-service/models"
	"conversation-service/repository"
	"conversation-service/services"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"
)

// PaymentWebhookController receives gateway confirmations and feeds them to
// the dispatcher as payment events, so they run through the same per-user
// serialization as inbound messages.
type PaymentWebhookController struct {
	Dispatcher *services.Dispatcher
	Stripe     *services.StripeService
	Orders     repository.OrderRepository
	Logger     *zap.Logger
}

func NewPaymentWebhookController(
	dispatcher *services.Dispatcher,
	stripeSvc *services.StripeService,
	orders repository.OrderRepository,
	logger *zap.Logger,
) *PaymentWebhookController {
	return &PaymentWebhookController{
		Dispatcher: dispatcher,
		Stripe:     stripeSvc,
		Orders:     orders,
		Logger:     logger,
	}
}

// StripeWebhook receives and dispatches Stripe webhook events
// (POST /webhook/payment).
func (pc *PaymentWebhookController) StripeWebhook(c *gin.Context) {
	event, err := pc.Stripe.ParseWebhook(c.Request)
	if err != nil {
		pc.Logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	pc.Logger.Info("Processing Stripe webhook",
		zap.String("event_type", string(event.Type)),
		zap.String("event_id", event.ID),
	)

	var status string
	switch event.Type {
	case "checkout.session.completed":
		status = models.PaymentPaid
	case "checkout.session.async_payment_failed":
		status = models.PaymentFailed
	case "checkout.session.expired":
		status = models.PaymentExpired
	default:
		pc.Logger.Info("Unhandled webhook event type", zap.String("event_type", string(event.Type)))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		pc.Logger.Error("Failed to unmarshal checkout session", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	orderRef := sess.ClientReferenceID
	if orderRef == "" {
		orderRef = sess.Metadata["order_ref"]
	}
	if orderRef == "" {
		pc.Logger.Warn("Missing order reference in checkout session",
			zap.String("session_id", sess.ID),
		)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	order, err := pc.Orders.FindByReference(c.Request.Context(), orderRef)
	if err != nil {
		pc.Logger.Error("Order not found for checkout session",
			zap.String("order_ref", orderRef),
			zap.Error(err),
		)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	evt := models.InboundEvent{
		EventID:       event.ID,
		UserID:        order.UserID,
		Kind:          models.EventPaymentConfirmation,
		OrderRef:      orderRef,
		PaymentStatus: status,
		ReceivedAt:    time.Now().UTC(),
	}

	outcome, err := pc.Dispatcher.Handle(c.Request.Context(), evt)
	if err != nil {
		pc.Logger.Error("Payment confirmation processing failed",
			zap.String("order_ref", orderRef),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "processing failed"})
		return
	}

	pc.Logger.Info("Payment confirmation processed",
		zap.String("order_ref", orderRef),
		zap.String("status", status),
		zap.String("outcome", outcome.String()),
	)
	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
