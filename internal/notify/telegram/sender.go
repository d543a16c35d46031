// Package telegram delivers notification messages via the Telegram Bot API.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultAPIURL    = "https://api.telegram.org/bot%s/sendMessage"
	defaultRateLimit = 25.0 // Telegram allows ~30 msg/s per bot
	defaultTimeout   = 10 * time.Second
)

// Config contains Telegram sender configuration.
type Config struct {
	Enabled   bool
	BotToken  string
	RateLimit float64
}

// Sender sends messages through the Telegram Bot API with client-side rate
// limiting.
type Sender struct {
	config     Config
	httpClient *http.Client
	limiter    *rate.Limiter
	apiURL     string
}

// NewSender creates a Telegram sender.
func NewSender(config Config) (*Sender, error) {
	if config.Enabled && config.BotToken == "" {
		return nil, errors.New("telegram: bot token is required")
	}

	limit := config.RateLimit
	if limit <= 0 {
		limit = defaultRateLimit
	}

	return &Sender{
		config:     config,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Limit(limit), 1),
		apiURL:     defaultAPIURL,
	}, nil
}

type sendMessageRequest struct {
	ChatID                int64  `json:"chat_id"`
	Text                  string `json:"text"`
	ParseMode             string `json:"parse_mode"`
	DisableWebPagePreview bool   `json:"disable_web_page_preview"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code,omitempty"`
	Description string `json:"description,omitempty"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after,omitempty"`
	} `json:"parameters,omitempty"`
}

// Send delivers one message to a chat. The error is classified: rate limits
// carry a retry-after hint, 4xx chat/token problems are permanent, server
// errors are retryable.
func (s *Sender) Send(ctx context.Context, chatID int64, text string) error {
	if !s.config.Enabled {
		return nil
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	body, err := json.Marshal(sendMessageRequest{
		ChatID:                chatID,
		Text:                  text,
		ParseMode:             "HTML",
		DisableWebPagePreview: true,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf(s.apiURL, s.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &RetryableError{Code: 0, Message: err.Error()}
	}
	defer resp.Body.Close()

	var tgResp telegramResponse
	if err := json.NewDecoder(resp.Body).Decode(&tgResp); err != nil {
		return &RetryableError{Code: resp.StatusCode, Message: fmt.Sprintf("decode response: %v", err)}
	}

	if tgResp.OK {
		return nil
	}

	return classifyError(resp.StatusCode, tgResp)
}

func classifyError(statusCode int, resp telegramResponse) error {
	code := resp.ErrorCode
	if code == 0 {
		code = statusCode
	}

	switch {
	case code == http.StatusTooManyRequests:
		retryAfter := 1 * time.Second
		if resp.Parameters != nil && resp.Parameters.RetryAfter > 0 {
			retryAfter = time.Duration(resp.Parameters.RetryAfter) * time.Second
		}
		return &RateLimitError{RetryAfter: retryAfter, Message: resp.Description}

	case code == http.StatusUnauthorized:
		return &PermanentError{Code: code, Message: "invalid bot token: " + resp.Description}

	case code >= 400 && code < 500:
		return &PermanentError{Code: code, Message: resp.Description}

	default:
		return &RetryableError{Code: code, Message: resp.Description}
	}
}
