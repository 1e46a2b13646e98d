// Package discord реализует шлюз к Discord: переключение ролей FROZEN/ACTIVE
// через REST API и приём команд из гильдии через gateway websocket.
package discord

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
	"strconv"
	"strings"
	"time"

	"github.com/magabrotheeeer/membership-bot/internal/config"
	"github.com/magabrotheeeer/membership-bot/internal/lib/breaker"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
	"github.com/magabrotheeeer/membership-bot/internal/metrics"
	"github.com/magabrotheeeer/membership-bot/internal/models"
)

// Повторы после 429.
const (
	maxRateLimitRetries = 3
	maxRetryAfter       = 10 * time.Second
)

// APIError ответ REST API с кодом не 2xx.
type APIError struct {
	Status int
	Body   string
	// RetryAfter пауза, которую Discord просит выдержать после 429.
	RetryAfter time.Duration
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord api returned %d: %s", e.Status, e.Body)
}

// isSoftError 4xx кроме 429 означает ошибку запроса (например, Unknown Member),
// а не недоступность Discord.
func isSoftError(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests
	}
	return false
}

// Client REST-клиент Discord для одной гильдии.
type Client struct {
	cfg     config.Discord
	http    *http.Client
	log     *slog.Logger
	breaker *breaker.Breaker
}

// NewClient создаёт клиент.
func NewClient(cfg config.Discord, log *slog.Logger) *Client {
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: 15 * time.Second},
		log:     log,
		breaker: breaker.New("discord-api", log, isSoftError),
	}
}

// Enabled сообщает, заданы ли токен, гильдия и роль заморозки.
func (c *Client) Enabled() bool {
	return c.cfg.Enabled() && c.cfg.FrozenRoleID != ""
}

// Freeze выдаёт роль FROZEN и снимает ACTIVE.
func (c *Client) Freeze(ctx context.Context, userID string) models.Outcome {
	const action = "freeze"

	if !c.Enabled() || userID == "" {
		return c.record(action, models.OutcomeSkipped)
	}
	if err := c.addRole(ctx, userID, c.cfg.FrozenRoleID); err != nil {
		c.fail(action, userID, err)
		return c.record(action, models.OutcomeFailed)
	}
	if c.cfg.ActiveRoleID != "" {
		if err := c.removeRole(ctx, userID, c.cfg.ActiveRoleID); err != nil {
			c.fail(action, userID, err)
			return c.record(action, models.OutcomeFailed)
		}
	}
	return c.record(action, models.OutcomeOK)
}

// Unfreeze снимает роль FROZEN и выдаёт ACTIVE.
func (c *Client) Unfreeze(ctx context.Context, userID string) models.Outcome {
	const action = "unfreeze"

	if !c.Enabled() || userID == "" {
		return c.record(action, models.OutcomeSkipped)
	}
	if err := c.removeRole(ctx, userID, c.cfg.FrozenRoleID); err != nil {
		c.fail(action, userID, err)
		return c.record(action, models.OutcomeFailed)
	}
	if c.cfg.ActiveRoleID != "" {
		if err := c.addRole(ctx, userID, c.cfg.ActiveRoleID); err != nil {
			c.fail(action, userID, err)
			return c.record(action, models.OutcomeFailed)
		}
	}
	return c.record(action, models.OutcomeOK)
}

type messageReference struct {
	MessageID string `json:"message_id"`
}

type createMessageRequest struct {
	Content          string            `json:"content"`
	MessageReference *messageReference `json:"message_reference,omitempty"`
}

// Reply отвечает на сообщение в канале.
func (c *Client) Reply(ctx context.Context, channelID, messageID, text string) error {
	const op = "discord.Reply"

	if !c.cfg.Enabled() {
		return nil
	}
	payload := createMessageRequest{Content: text}
	if messageID != "" {
		payload.MessageReference = &messageReference{MessageID: messageID}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	path := "/channels/" + url.PathEscape(channelID) + "/messages"
	if err := c.do(ctx, http.MethodPost, path, body); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (c *Client) rolePath(userID, roleID string) string {
	return "/guilds/" + url.PathEscape(c.cfg.GuildID) +
		"/members/" + url.PathEscape(userID) +
		"/roles/" + url.PathEscape(roleID)
}

func (c *Client) addRole(ctx context.Context, userID, roleID string) error {
	return c.do(ctx, http.MethodPut, c.rolePath(userID, roleID), nil)
}

func (c *Client) removeRole(ctx context.Context, userID, roleID string) error {
	return c.do(ctx, http.MethodDelete, c.rolePath(userID, roleID), nil)
}

// do выполняет запрос. На 429 ждёт retry_after (не дольше maxRetryAfter) и повторяет.
func (c *Client) do(ctx context.Context, method, path string, body []byte) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = c.breaker.Do(func() error { return c.send(ctx, method, path, body) })

		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Status != http.StatusTooManyRequests || attempt >= maxRateLimitRetries {
			return err
		}
		wait := min(apiErr.RetryAfter, maxRetryAfter)
		c.log.Warn("discord rate limited, retrying",
			slog.String("path", path),
			slog.Duration("retry_after", wait))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
}

func (c *Client) send(ctx context.Context, method, path string, body []byte) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, strings.TrimRight(c.cfg.APIURL, "/")+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bot "+c.cfg.BotToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	apiErr := &APIError{Status: resp.StatusCode, Body: string(msg)}
	if resp.StatusCode == http.StatusTooManyRequests {
		apiErr.RetryAfter = retryAfter(resp.Header, msg)
	}
	return apiErr
}

// retryAfter берёт retry_after из тела (секунды, дробные), иначе заголовок Retry-After.
func retryAfter(h http.Header, body []byte) time.Duration {
	var payload struct {
		RetryAfter float64 `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		return time.Duration(payload.RetryAfter * float64(time.Second))
	}
	if seconds, err := strconv.ParseFloat(h.Get("Retry-After"), 64); err == nil && seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	return time.Second
}

func (c *Client) record(action string, outcome models.Outcome) models.Outcome {
	metrics.GatewayCalls.WithLabelValues("discord", action, string(outcome)).Inc()
	return outcome
}

func (c *Client) fail(action, userID string, err error) {
	c.log.Error("discord call failed",
		slog.String("action", action),
		slog.String("user_id", userID),
		sl.Err(err))
}
