package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// MessageSender delivers outbound text messages. Implementations retry
// transient failures; a returned error means the message was dropped after
// retries and should be logged, never block a state commit.
type MessageSender interface {
	Send(ctx context.Context, to, text string) error
}

// WhatsAppClient sends text messages through the Meta WhatsApp Business
// Cloud API.
type WhatsAppClient struct {
	phoneNumberID string
	accessToken   string
	baseURL       string
	httpClient    *http.Client
	logger        *zap.Logger
	maxRetries    int
}

// NewWhatsAppClient builds a client for the given phone number id and token.
// apiVersion defaults to v18.0.
func NewWhatsAppClient(phoneNumberID, accessToken, apiVersion string, logger *zap.Logger) *WhatsAppClient {
	if apiVersion == "" {
		apiVersion = "v18.0"
	}
	return &WhatsAppClient{
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		baseURL:       fmt.Sprintf("https://graph.facebook.com/%s/%s", apiVersion, phoneNumberID),
		httpClient:    &http.Client{Timeout: 10 * time.Second},
		logger:        logger,
		maxRetries:    3,
	}
}

type whatsAppTextPayload struct {
	MessagingProduct string `json:"messaging_product"`
	RecipientType    string `json:"recipient_type"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// Send delivers a text message, retrying with backoff on transient errors.
func (c *WhatsAppClient) Send(ctx context.Context, to, text string) error {
	payload := whatsAppTextPayload{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "text",
	}
	payload.Text.Body = text

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		lastErr = c.post(ctx, body)
		if lastErr == nil {
			return nil
		}
		c.logger.Warn("WhatsApp send failed, retrying",
			zap.String("to", to),
			zap.Int("attempt", attempt),
			zap.Error(lastErr),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 500 * time.Millisecond):
		}
	}
	return fmt.Errorf("whatsapp send failed after %d attempts: %w", c.maxRetries, lastErr)
}

func (c *WhatsAppClient) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("whatsapp API returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
