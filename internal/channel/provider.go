package channel

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"buildinghub_backend/internal/config"

	"go.uber.org/zap"
)

// MaxTextLength bounds a provider message body in characters.
const MaxTextLength = 1600

// ProviderResponse is what a gateway returns for an accepted message.
type ProviderResponse struct {
	MessageID string
}

// Sender delivers a text to a phone number over one channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, to, text string) (ProviderResponse, error)
}

// Truncate cuts text to MaxTextLength characters.
func Truncate(text string) string {
	r := []rune(text)
	if len(r) <= MaxTextLength {
		return text
	}
	return string(r[:MaxTextLength])
}

// SMSSender posts form encoded messages to an SMS gateway.
type SMSSender struct {
	baseURL  string
	apiKey   string
	senderID string
	client   *http.Client
	logger   *zap.Logger
}

func NewSMSSender(cfg *config.Config, client *http.Client, logger *zap.Logger) *SMSSender {
	return &SMSSender{
		baseURL:  strings.TrimRight(cfg.SMSBaseURL, "/"),
		apiKey:   cfg.SMSAPIKey,
		senderID: cfg.SMSSenderID,
		client:   client,
		logger:   logger.Named("SMSSender"),
	}
}

func (s *SMSSender) Channel() string { return SMS }

func (s *SMSSender) Send(ctx context.Context, to, text string) (ProviderResponse, error) {
	form := url.Values{}
	form.Set("senderid", s.senderID)
	form.Set("sendMethod", "quick")
	form.Set("msgType", "text")
	form.Set("msg", Truncate(text))
	form.Set("mobile", to)
	form.Set("output", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/send", strings.NewReader(form.Encode()))
	if err != nil {
		return ProviderResponse{}, fmt.Errorf("failed to create sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if s.apiKey != "" {
		req.Header.Set("apikey", s.apiKey)
	}
	return do(s.client, s.logger, SMS, req)
}

// WhatsAppSender posts JSON messages to a WhatsApp gateway.
type WhatsAppSender struct {
	baseURL string
	token   string
	from    string
	client  *http.Client
	logger  *zap.Logger
}

func NewWhatsAppSender(cfg *config.Config, client *http.Client, logger *zap.Logger) *WhatsAppSender {
	return &WhatsAppSender{
		baseURL: strings.TrimRight(cfg.WhatsAppBaseURL, "/"),
		token:   cfg.WhatsAppToken,
		from:    cfg.WhatsAppSender,
		client:  client,
		logger:  logger.Named("WhatsAppSender"),
	}
}

func (s *WhatsAppSender) Channel() string { return WhatsApp }

func (s *WhatsAppSender) Send(ctx context.Context, to, text string) (ProviderResponse, error) {
	payload := map[string]interface{}{
		"messageType": "text",
		"requestType": "POST",
		"token":       s.token,
		"from":        s.from,
		"to":          to,
		"text":        Truncate(text),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ProviderResponse{}, fmt.Errorf("failed to marshal whatsapp payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/qr/rest/send_message", bytes.NewReader(body))
	if err != nil {
		return ProviderResponse{}, fmt.Errorf("failed to create whatsapp request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return do(s.client, s.logger, WhatsApp, req)
}

func do(client *http.Client, logger *zap.Logger, channelName string, req *http.Request) (ProviderResponse, error) {
	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return ProviderResponse{}, fmt.Errorf("%s http error: %w", channelName, err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		logger.Warn("Provider rejected message",
			zap.Int("status", resp.StatusCode),
			zap.Duration("duration", time.Since(start)),
			zap.ByteString("response", respBody))
		return ProviderResponse{}, fmt.Errorf("%s provider error: status=%d response=%s", channelName, resp.StatusCode, string(respBody))
	}
	logger.Debug("Provider accepted message", zap.Duration("duration", time.Since(start)))
	return ProviderResponse{MessageID: messageID(respBody)}, nil
}

// messageID picks the gateway's message id out of a JSON response, if any.
func messageID(body []byte) string {
	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	for _, key := range []string{"message_id", "messageId", "msgId", "id"} {
		switch v := parsed[key].(type) {
		case string:
			return v
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	if data, ok := parsed["data"].(map[string]interface{}); ok {
		inner, _ := json.Marshal(data)
		return messageID(inner)
	}
	return ""
}

// NewSenders builds the phone channel senders that have a gateway configured.
func NewSenders(cfg *config.Config, logger *zap.Logger) []Sender {
	client := &http.Client{Timeout: 10 * time.Second}
	var senders []Sender
	if cfg.SMSBaseURL != "" {
		senders = append(senders, NewSMSSender(cfg, client, logger))
	}
	if cfg.WhatsAppBaseURL != "" {
		senders = append(senders, NewWhatsAppSender(cfg, client, logger))
	}
	return senders
}
