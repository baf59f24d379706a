package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorandp/utn-frsn-news/internal/logger"
	"github.com/gorandp/utn-frsn-news/pkg/httpclient"
)

const (
	// Telegram caps text messages at 4096 characters and photo captions at 1024.
	MaxMessageLen = 4096
	MaxCaptionLen = 1024

	apiURLTemplate = "https://api.telegram.org/bot%s/%s"

	methodSendMessage = "sendMessage"
	methodSendPhoto   = "sendPhoto"

	wrongFileIdentifierDesc = "Bad Request: wrong file identifier/HTTP URL specified"
)

// ErrBadPhotoReference reports that the provider rejected the photo URL
// itself. Retrying cannot help; callers fall back to a text message.
var ErrBadPhotoReference = errors.New("telegram: wrong photo reference")

// RetryPolicy bounds the delivery retries for transient failures. Rate-limit
// responses are always retried after the provider-specified delay and do not
// consume the budget.
type RetryPolicy struct {
	MaxRetries   int
	DefaultSleep time.Duration
}

// Client delivers messages through the Telegram Bot API.
type Client struct {
	http   httpclient.Client
	apiKey string
	silent bool
	policy RetryPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	log    logger.Logger
}

// NewClient builds a Telegram client. A zero policy falls back to 5 retries
// with a 5 second delay.
func NewClient(http httpclient.Client, apiKey string, silent bool, policy RetryPolicy, log logger.Logger) *Client {
	if log == nil {
		log = logger.NopLogger{}
	}
	if policy.MaxRetries <= 0 {
		policy.MaxRetries = 5
	}
	if policy.DefaultSleep <= 0 {
		policy.DefaultSleep = 5 * time.Second
	}
	return &Client{
		http:   http,
		apiKey: apiKey,
		silent: silent,
		policy: policy,
		sleep:  sleepContext,
		log:    log,
	}
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	ErrorCode   int    `json:"error_code"`
	Description string `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// SendMessage delivers the text to the chat, splitting oversized texts into
// sequential chunks.
func (c *Client) SendMessage(ctx context.Context, chatID, text string) error {
	if c.apiKey == "" {
		return fmt.Errorf("telegram api key is not set up")
	}
	for _, chunk := range ChunkText(text, MaxMessageLen) {
		payload := map[string]any{
			"chat_id":    chatID,
			"text":       chunk,
			"parse_mode": "HTML",
			// Useful when sending a lot of messages.
			"disable_notification": c.silent,
		}
		if err := c.deliver(ctx, methodSendMessage, payload); err != nil {
			return err
		}
	}
	return nil
}

// SendPhoto delivers the photo with its caption. Captions beyond the limit
// are truncated with a warning. Returns ErrBadPhotoReference when the
// provider rejects the photo URL itself.
func (c *Client) SendPhoto(ctx context.Context, chatID, photoURL, caption string) error {
	if c.apiKey == "" {
		return fmt.Errorf("telegram api key is not set up")
	}
	if runes := []rune(caption); len(runes) > MaxCaptionLen {
		c.log.WarnObj("long caption truncated", "caption_len", len(runes))
		caption = string(runes[:MaxCaptionLen])
	}
	payload := map[string]any{
		"chat_id":              chatID,
		"photo":                photoURL,
		"caption":              caption,
		"parse_mode":           "HTML",
		"disable_notification": c.silent,
	}
	return c.deliver(ctx, methodSendPhoto, payload)
}

// deliver posts one API call, applying the retry protocol: HTTP 429 sleeps
// the provider-specified delay and retries without consuming the budget; any
// other failure sleeps the default delay and counts against it.
func (c *Client) deliver(ctx context.Context, method string, payload map[string]any) error {
	url := fmt.Sprintf(apiURLTemplate, c.apiKey, method)
	tries := 1
	for {
		resp, err := c.http.PostJSON(ctx, url, payload, nil)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if tries > c.policy.MaxRetries {
				return fmt.Errorf("telegram %s failed after %d tries: %w", method, tries, err)
			}
			tries++
			c.log.ErrorObj("telegram call failed, retrying", "telegram_error", map[string]any{
				"method": method,
				"error":  err.Error(),
			})
			if err := c.sleep(ctx, c.policy.DefaultSleep); err != nil {
				return err
			}
			continue
		}

		if resp.StatusCode() == 200 {
			return nil
		}

		var api apiResponse
		_ = json.Unmarshal(resp.Body(), &api)

		if resp.StatusCode() == 429 {
			delay := c.policy.DefaultSleep
			if api.Parameters != nil && api.Parameters.RetryAfter > 0 {
				delay = time.Duration(api.Parameters.RetryAfter) * time.Second
			}
			c.log.WarnObj("telegram rate limited", "retry_after_seconds", int(delay/time.Second))
			if err := c.sleep(ctx, delay); err != nil {
				return err
			}
			continue
		}

		if method == methodSendPhoto && api.Description == wrongFileIdentifierDesc {
			c.log.ErrorObj("telegram rejected photo reference", "telegram_error", map[string]any{
				"error_code":  api.ErrorCode,
				"description": api.Description,
			})
			return ErrBadPhotoReference
		}

		if tries > c.policy.MaxRetries {
			return fmt.Errorf("telegram %s failed after %d tries: %d %s",
				method, tries, api.ErrorCode, api.Description)
		}
		tries++
		c.log.ErrorObj("telegram call rejected, retrying", "telegram_error", map[string]any{
			"method":      method,
			"status":      resp.StatusCode(),
			"error_code":  api.ErrorCode,
			"description": api.Description,
		})
		if err := c.sleep(ctx, c.policy.DefaultSleep); err != nil {
			return err
		}
	}
}

// ChunkText splits text into sequential chunks of at most size characters.
func ChunkText(text string, size int) []string {
	runes := []rune(text)
	if len(runes) <= size {
		return []string{text}
	}
	chunks := make([]string, 0, (len(runes)+size-1)/size)
	for start := 0; start < len(runes); start += size {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
