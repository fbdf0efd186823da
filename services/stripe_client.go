package services

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
)

// PaymentClient creates a hosted payment link for an order reference and
// amount. Confirmation arrives later on the payment webhook.
type PaymentClient interface {
	CreatePaymentLink(ctx context.Context, orderRef string, amount int) (string, error)
}

// StripeService wraps the Stripe Checkout API for payment-link creation and
// webhook signature verification.
type StripeService struct {
	SecretKey  string
	WebhookKey string
	Currency   string
	SuccessURL string
	CancelURL  string
}

// NewStripeService configures the Stripe client.
func NewStripeService(secretKey, webhookKey, currency, successURL, cancelURL string) *StripeService {
	stripe.Key = secretKey
	if currency == "" {
		currency = "ngn"
	}
	return &StripeService{
		SecretKey:  secretKey,
		WebhookKey: webhookKey,
		Currency:   currency,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	}
}

// CreatePaymentLink creates a Checkout Session for the order and returns its
// hosted payment URL. The order reference travels as client_reference_id and
// metadata so the confirmation webhook can be matched back.
func (s *StripeService) CreatePaymentLink(ctx context.Context, orderRef string, amount int) (string, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(orderRef),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(s.Currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String("Order " + orderRef),
					},
					UnitAmount: stripe.Int64(int64(amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.SuccessURL),
		CancelURL:  stripe.String(s.CancelURL),
	}
	params.Context = ctx
	params.AddMetadata("order_ref", orderRef)

	sess, err := session.New(params)
	if err != nil {
		return "", fmt.Errorf("stripe checkout session: %w", err)
	}
	return sess.URL, nil
}

// ParseWebhook verifies the Stripe-Signature header and returns the event.
func (s *StripeService) ParseWebhook(r *http.Request) (stripe.Event, error) {
	var event stripe.Event
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		return event, err
	}
	r.Body = io.NopCloser(bytes.NewBuffer(payload))
	sigHeader := r.Header.Get("Stripe-Signature")
	return webhook.ConstructEvent(payload, sigHeader, s.WebhookKey)
}
