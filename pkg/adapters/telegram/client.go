// Package telegram adapts the Telegram Bot API: it decodes webhook updates
// into domain events and implements the outbound chat ports.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aretw0/tripwire/internal/logging"
	"github.com/aretw0/tripwire/pkg/ports"
	goerrors "github.com/goliatone/go-errors"
)

const (
	DefaultBaseURL = "https://api.telegram.org"
	DefaultTimeout = 10 * time.Second

	maxResponseBytes int64 = 1 << 20
)

// Text codes attached to the go-errors envelopes.
const (
	TextCodeTransport = "TELEGRAM_TRANSPORT_FAILURE"
	TextCodeRejected  = "TELEGRAM_REQUEST_REJECTED"
	TextCodeDecode    = "TELEGRAM_BAD_RESPONSE"
)

// AllowedUpdates is registered with the webhook. Joins arrive through
// message.new_chat_members; chat_member is left out so a join is seen once.
var AllowedUpdates = []string{"message"}

// HTTPDoer is the subset of *http.Client used by the Client.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client calls the Bot API for one bot token.
type Client struct {
	token     string
	baseURL   string
	parseMode string
	timeout   time.Duration
	http      HTTPDoer
	logger    *slog.Logger
}

var (
	_ ports.Messenger     = (*Client)(nil)
	_ ports.MemberRemover = (*Client)(nil)
)

// Option configures the Client.
type Option func(*Client)

// WithBaseURL overrides the API endpoint (used by tests and local Bot API servers).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithParseMode sets parse_mode on outgoing messages ("Markdown", "HTML").
func WithParseMode(mode string) Option {
	return func(c *Client) {
		c.parseMode = mode
	}
}

// WithTimeout bounds each API request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(doer HTTPDoer) Option {
	return func(c *Client) {
		if doer != nil {
			c.http = doer
		}
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a Bot API client.
func NewClient(token string, opts ...Option) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		timeout: DefaultTimeout,
		logger:  logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: c.timeout}
	}
	return c
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type banRequest struct {
	ChatID int64 `json:"chat_id"`
	UserID int64 `json:"user_id"`
}

type setWebhookRequest struct {
	URL            string   `json:"url"`
	AllowedUpdates []string `json:"allowed_updates"`
	SecretToken    string   `json:"secret_token,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	ErrorCode   int             `json:"error_code"`
	Result      json.RawMessage `json:"result"`
}

// SendMessage posts text to a chat.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	_, err := c.call(ctx, "sendMessage", sendMessageRequest{ChatID: chatID, Text: text, ParseMode: c.parseMode})
	return err
}

// RemoveMember bans the user from the chat.
func (c *Client) RemoveMember(ctx context.Context, chatID, userID int64) error {
	_, err := c.call(ctx, "banChatMember", banRequest{ChatID: chatID, UserID: userID})
	return err
}

// SetWebhook registers webhookURL with Telegram and returns the API's description.
func (c *Client) SetWebhook(ctx context.Context, webhookURL, secret string) (string, error) {
	res, err := c.call(ctx, "setWebhook", setWebhookRequest{
		URL:            webhookURL,
		AllowedUpdates: AllowedUpdates,
		SecretToken:    secret,
	})
	if err != nil {
		return "", err
	}
	return res.Description, nil
}

func (c *Client) call(ctx context.Context, method string, payload any) (*apiResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("telegram: encode %s: %w", method, err)
	}

	endpoint := c.baseURL + "/bot" + c.token + "/" + method
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, c.transportError(method, err, TextCodeTransport)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportError(method, err, TextCodeTransport)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		return nil, c.transportError(method, err, TextCodeTransport)
	}

	var out apiResponse
	if err := json.Unmarshal(body, &out); err != nil {
		if res.StatusCode < 200 || res.StatusCode > 299 {
			return nil, rejectedError(method, res.StatusCode, http.StatusText(res.StatusCode))
		}
		return nil, c.transportError(method, err, TextCodeDecode)
	}
	if !out.OK {
		code := out.ErrorCode
		if code == 0 {
			code = res.StatusCode
		}
		c.logger.Warn("Telegram API call rejected", "method", method, "status", code, "description", out.Description)
		return nil, rejectedError(method, code, out.Description)
	}
	return &out, nil
}

func rejectedError(method string, code int, description string) error {
	category := goerrors.CategoryExternal
	switch code {
	case http.StatusBadRequest:
		category = goerrors.CategoryBadInput
	case http.StatusUnauthorized:
		category = goerrors.CategoryAuth
	case http.StatusForbidden:
		category = goerrors.CategoryAuthz
	case http.StatusNotFound:
		category = goerrors.CategoryNotFound
	case http.StatusTooManyRequests:
		category = goerrors.CategoryRateLimit
	}
	msg := fmt.Sprintf("telegram: %s rejected (%d)", method, code)
	if description != "" {
		msg += ": " + description
	}
	err := goerrors.New(msg, category).
		WithCode(code).
		WithTextCode(TextCodeRejected)
	err.WithMetadata(map[string]any{"method": method})
	return err
}

// transportError wraps a failure to reach the API. The request URL embeds the
// bot token, so the cause is stripped of it first.
func (c *Client) transportError(method string, source error, textCode string) error {
	var urlErr *url.Error
	if errors.As(source, &urlErr) {
		source = urlErr.Err
	}
	if c.token != "" && strings.Contains(source.Error(), c.token) {
		source = errors.New(strings.ReplaceAll(source.Error(), c.token, "<token>"))
	}
	err := goerrors.Wrap(source, goerrors.CategoryExternal, "telegram: "+method+" failed").
		WithCode(http.StatusBadGateway).
		WithTextCode(textCode)
	err.WithMetadata(map[string]any{"method": method})
	return err
}
