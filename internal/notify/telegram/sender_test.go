package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestNewSender_Validation(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{
			name:    "enabled without bot token",
			config:  Config{Enabled: true},
			wantErr: "bot token is required",
		},
		{
			name:    "disabled - no validation",
			config:  Config{Enabled: false},
			wantErr: "",
		},
		{
			name:    "valid config",
			config:  Config{Enabled: true, BotToken: "123456:ABC-DEF"},
			wantErr: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sender, err := NewSender(tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, sender)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, sender)
			}
		})
	}
}

func TestNewSender_Defaults(t *testing.T) {
	sender, err := NewSender(Config{Enabled: true, BotToken: "test-token"})
	require.NoError(t, err)

	assert.NotNil(t, sender.limiter)
	assert.NotNil(t, sender.httpClient)
	assert.Equal(t, defaultAPIURL, sender.apiURL)
}

func TestSender_Send_Disabled(t *testing.T) {
	sender, err := NewSender(Config{Enabled: false})
	require.NoError(t, err)

	err = sender.Send(context.Background(), 123456789, "Test message")
	assert.NoError(t, err)
}

func TestSender_Send_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req sendMessageRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		require.NoError(t, err)
		assert.Equal(t, int64(123456789), req.ChatID)
		assert.Equal(t, "Test message", req.Text)
		assert.Equal(t, "HTML", req.ParseMode)

		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(telegramResponse{OK: true})
	}))
	defer server.Close()

	sender := &Sender{
		config:     Config{Enabled: true, BotToken: "test-token"},
		httpClient: server.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		apiURL:     server.URL + "/%s/sendMessage",
	}

	err := sender.Send(context.Background(), 123456789, "Test message")
	assert.NoError(t, err)
}

func TestSender_Send_RateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(telegramResponse{
			OK:          false,
			ErrorCode:   429,
			Description: "Too Many Requests: retry after 30",
			Parameters: &struct {
				RetryAfter int `json:"retry_after,omitempty"`
			}{
				RetryAfter: 30,
			},
		})
	}))
	defer server.Close()

	sender := &Sender{
		config:     Config{Enabled: true, BotToken: "test-token"},
		httpClient: server.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		apiURL:     server.URL + "/%s/sendMessage",
	}

	err := sender.Send(context.Background(), 123456789, "Test message")

	require.Error(t, err)
	var rateLimitErr *RateLimitError
	require.ErrorAs(t, err, &rateLimitErr)
	assert.Equal(t, 30*time.Second, rateLimitErr.RetryAfter)
	assert.True(t, rateLimitErr.IsRetryable())
}

func TestSender_Send_RateLimitWithoutRetryAfter(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(telegramResponse{
			OK:          false,
			ErrorCode:   429,
			Description: "Too Many Requests",
		})
	}))
	defer server.Close()

	sender := &Sender{
		config:     Config{Enabled: true, BotToken: "test-token"},
		httpClient: server.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		apiURL:     server.URL + "/%s/sendMessage",
	}

	err := sender.Send(context.Background(), 123456789, "Test message")

	require.Error(t, err)
	var rateLimitErr *RateLimitError
	require.ErrorAs(t, err, &rateLimitErr)
	assert.Equal(t, 1*time.Second, rateLimitErr.RetryAfter)
}

func TestSender_Send_BotBlocked(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_ = json.NewEncoder(w).Encode(telegramResponse{
			OK:          false,
			ErrorCode:   403,
			Description: "Forbidden: bot was blocked by the user",
		})
	}))
	defer server.Close()

	sender := &Sender{
		config:     Config{Enabled: true, BotToken: "test-token"},
		httpClient: server.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		apiURL:     server.URL + "/%s/sendMessage",
	}

	err := sender.Send(context.Background(), 123456789, "Test message")

	require.Error(t, err)
	var permErr *PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, 403, permErr.Code)
	assert.False(t, permErr.IsRetryable())
}

func TestSender_Send_InvalidToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(telegramResponse{
			OK:          false,
			ErrorCode:   401,
			Description: "Unauthorized",
		})
	}))
	defer server.Close()

	sender := &Sender{
		config:     Config{Enabled: true, BotToken: "invalid-token"},
		httpClient: server.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		apiURL:     server.URL + "/%s/sendMessage",
	}

	err := sender.Send(context.Background(), 123456789, "Test message")

	require.Error(t, err)
	var permErr *PermanentError
	require.ErrorAs(t, err, &permErr)
	assert.Equal(t, 401, permErr.Code)
	assert.Contains(t, permErr.Message, "invalid bot token")
}

func TestSender_Send_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(telegramResponse{
			OK:          false,
			ErrorCode:   500,
			Description: "Internal Server Error",
		})
	}))
	defer server.Close()

	sender := &Sender{
		config:     Config{Enabled: true, BotToken: "test-token"},
		httpClient: server.Client(),
		limiter:    rate.NewLimiter(rate.Inf, 1),
		apiURL:     server.URL + "/%s/sendMessage",
	}

	err := sender.Send(context.Background(), 123456789, "Test message")

	require.Error(t, err)
	var retryErr *RetryableError
	require.ErrorAs(t, err, &retryErr)
	assert.Equal(t, 500, retryErr.Code)
	assert.True(t, retryErr.IsRetryable())
}

func TestSender_Send_ContextCancellation(t *testing.T) {
	sender := &Sender{
		config:     Config{Enabled: true, BotToken: "test-token"},
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(0.001, 1),
		apiURL:     "http://localhost:12345/%s/sendMessage",
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := sender.Send(ctx, 123456789, "Test message")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&RateLimitError{RetryAfter: time.Second}))
	assert.True(t, IsRetryable(&RetryableError{Code: 500}))
	assert.False(t, IsRetryable(&PermanentError{Code: 403}))
	assert.False(t, IsRetryable(assert.AnError))
	assert.False(t, IsRetryable(nil))
}

func TestGetRetryAfter(t *testing.T) {
	assert.Equal(t, 30*time.Second, GetRetryAfter(&RateLimitError{RetryAfter: 30 * time.Second}))
	assert.Equal(t, time.Duration(0), GetRetryAfter(&PermanentError{Code: 400}))
}

func TestErrorMessages(t *testing.T) {
	rateErr := &RateLimitError{RetryAfter: 30 * time.Second, Message: "Too Many Requests"}
	assert.Contains(t, rateErr.Error(), "rate limited")
	assert.Contains(t, rateErr.Error(), "30s")

	permErr := &PermanentError{Code: 403, Message: "Bot blocked"}
	assert.Contains(t, permErr.Error(), "telegram error 403")

	retryErr := &RetryableError{Code: 500, Message: "Internal error"}
	assert.Contains(t, retryErr.Error(), "telegram error 500")
}
