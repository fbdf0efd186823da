package controllers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"conversation-service/models"
	"conversation-service/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// WebhookController terminates the WhatsApp Cloud API webhook. It verifies
// payload signatures, flattens the nested Meta envelope into inbound events
// and hands them to the dispatcher.
type WebhookController struct {
	Dispatcher  *services.Dispatcher
	VerifyToken string
	AppSecret   string
	Logger      *zap.Logger
}

func NewWebhookController(dispatcher *services.Dispatcher, verifyToken, appSecret string, logger *zap.Logger) *WebhookController {
	return &WebhookController{
		Dispatcher:  dispatcher,
		VerifyToken: verifyToken,
		AppSecret:   appSecret,
		Logger:      logger,
	}
}

// metaWebhookPayload mirrors the envelope Meta posts to webhook subscribers.
type metaWebhookPayload struct {
	Object string `json:"object"`
	Entry  []struct {
		ID      string `json:"id"`
		Changes []struct {
			Field string `json:"field"`
			Value struct {
				Contacts []struct {
					WaID    string `json:"wa_id"`
					Profile struct {
						Name string `json:"name"`
					} `json:"profile"`
				} `json:"contacts"`
				Messages []struct {
					ID   string `json:"id"`
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
					Interactive struct {
						Type        string `json:"type"`
						ButtonReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"button_reply"`
						ListReply struct {
							ID    string `json:"id"`
							Title string `json:"title"`
						} `json:"list_reply"`
					} `json:"interactive"`
					Button struct {
						Payload string `json:"payload"`
						Text    string `json:"text"`
					} `json:"button"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// Verify handles Meta's subscription handshake (GET /webhook/whatsapp).
func (wc *WebhookController) Verify(c *gin.Context) {
	mode := c.Query("hub.mode")
	token := c.Query("hub.verify_token")
	challenge := c.Query("hub.challenge")

	if mode == "subscribe" && token == wc.VerifyToken {
		c.String(http.StatusOK, challenge)
		return
	}

	wc.Logger.Warn("Webhook verification rejected", zap.String("mode", mode))
	c.JSON(http.StatusForbidden, gin.H{"error": "verification failed"})
}

// Receive handles inbound message deliveries (POST /webhook/whatsapp).
// Once the signature checks out the platform always gets a 200; failed
// deliveries are retried by Meta and deduplicated on our side.
func (wc *WebhookController) Receive(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unreadable body"})
		return
	}

	if !wc.validSignature(body, c.GetHeader("X-Hub-Signature-256")) {
		wc.Logger.Warn("Webhook signature verification failed")
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	var payload metaWebhookPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		wc.Logger.Warn("Malformed webhook payload", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	for _, evt := range wc.flatten(payload) {
		outcome, err := wc.Dispatcher.Handle(c.Request.Context(), evt)
		if err != nil {
			wc.Logger.Error("Event processing failed",
				zap.String("event_id", evt.EventID),
				zap.String("user_id", evt.UserID),
				zap.Error(err),
			)
			continue
		}
		wc.Logger.Info("Event processed",
			zap.String("event_id", evt.EventID),
			zap.String("user_id", evt.UserID),
			zap.String("outcome", outcome.String()),
		)
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}

func (wc *WebhookController) validSignature(body []byte, header string) bool {
	const prefix = "sha256="
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	mac := hmac.New(sha256.New, []byte(wc.AppSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(strings.TrimPrefix(header, prefix)))
}

// flatten turns a webhook envelope into inbound events, one per message.
func (wc *WebhookController) flatten(payload metaWebhookPayload) []models.InboundEvent {
	var events []models.InboundEvent
	now := time.Now().UTC()

	for _, entry := range payload.Entry {
		for _, change := range entry.Changes {
			if change.Field != "messages" {
				continue
			}

			names := make(map[string]string, len(change.Value.Contacts))
			for _, contact := range change.Value.Contacts {
				names[contact.WaID] = contact.Profile.Name
			}

			for _, msg := range change.Value.Messages {
				evt := models.InboundEvent{
					EventID:    msg.ID,
					UserID:     msg.From,
					UserName:   names[msg.From],
					ReceivedAt: now,
				}

				switch msg.Type {
				case "text":
					evt.Kind = models.EventText
					evt.Text = msg.Text.Body
				case "interactive":
					evt.Kind = models.EventButton
					if msg.Interactive.ButtonReply.ID != "" {
						evt.Text = msg.Interactive.ButtonReply.ID
					} else {
						evt.Text = msg.Interactive.ListReply.ID
					}
				case "button":
					evt.Kind = models.EventButton
					evt.Text = msg.Button.Payload
				default:
					// Media, reactions and the like fall through the state
					// machine as unrecognized text.
					evt.Kind = models.EventText
				}

				events = append(events, evt)
			}
		}
	}
	return events
}
