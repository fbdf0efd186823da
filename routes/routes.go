package routes

import (
	"net/http"

	"conversation-service/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes wires the webhook endpoints and the health probe.
func RegisterRoutes(r *gin.Engine, wc *controllers.WebhookController, pc *controllers.PaymentWebhookController) {
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// WhatsApp Cloud API webhook (signature verified in the controller)
	r.GET("/webhook/whatsapp", wc.Verify)
	r.POST("/webhook/whatsapp", wc.Receive)

	// Stripe webhook (no auth, signature verified via webhook secret)
	r.POST("/webhook/payment", pc.StripeWebhook)
}
