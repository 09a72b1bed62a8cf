package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"stockwatch/internal/core"
	"stockwatch/internal/dom"
)

// MessagePlatform represents different messaging platforms
type MessagePlatform string

const (
	PlatformSlack   MessagePlatform = "slack"
	PlatformDiscord MessagePlatform = "discord"
)

// maxErrorBody bounds how much of a failed webhook response is kept.
const maxErrorBody = 200

// SlackMessage represents a Slack incoming-webhook payload
type SlackMessage struct {
	Text      string `json:"text"`
	Username  string `json:"username,omitempty"`
	IconEmoji string `json:"icon_emoji,omitempty"`
}

// DiscordMessage represents a Discord webhook payload
type DiscordMessage struct {
	Content   string `json:"content"`
	Username  string `json:"username,omitempty"`
	AvatarURL string `json:"avatar_url,omitempty"`
}

// WebhookError reports a webhook response outside the 2xx range.
type WebhookError struct {
	Platform   MessagePlatform
	StatusCode int
	Body       string
}

func (e *WebhookError) Error() string {
	return fmt.Sprintf("%s webhook returned status %d: %s", e.Platform, e.StatusCode, e.Body)
}

// MessagingClient delivers alert text to one webhook
type MessagingClient struct {
	Platform   MessagePlatform
	WebhookURL string
	Username   string
	AvatarURL  string
	IconEmoji  string
	HTTPClient *http.Client
}

// NewMessagingClient creates a client whose deliveries time out after timeout
func NewMessagingClient(platform MessagePlatform, webhookURL string, timeout time.Duration) *MessagingClient {
	return &MessagingClient{
		Platform:   platform,
		WebhookURL: webhookURL,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Notify sends msg to the configured platform.
func (c *MessagingClient) Notify(ctx context.Context, msg string) error {
	switch c.Platform {
	case PlatformSlack:
		return c.SendSlackMessage(ctx, &SlackMessage{Text: msg, Username: c.Username, IconEmoji: c.IconEmoji})
	case PlatformDiscord:
		return c.SendDiscordMessage(ctx, &DiscordMessage{Content: msg, Username: c.Username, AvatarURL: c.AvatarURL})
	default:
		return fmt.Errorf("unsupported platform: %s", c.Platform)
	}
}

// SendSlackMessage sends a message to Slack webhook
func (c *MessagingClient) SendSlackMessage(ctx context.Context, message *SlackMessage) error {
	return c.post(ctx, PlatformSlack, message)
}

// SendDiscordMessage sends a message to Discord webhook
func (c *MessagingClient) SendDiscordMessage(ctx context.Context, message *DiscordMessage) error {
	return c.post(ctx, PlatformDiscord, message)
}

func (c *MessagingClient) post(ctx context.Context, platform MessagePlatform, payload any) error {
	if c.WebhookURL == "" {
		return fmt.Errorf("%s webhook URL not configured", platform)
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s message: %w", platform, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", platform, err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s message: %w", platform, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &WebhookError{Platform: platform, StatusCode: resp.StatusCode, Body: string(body)}
	}

	return nil
}

// FormatAlert renders the alert text for a positive verdict. Discord gets a
// <t:unix:F> timestamp that each reader sees in their own timezone.
func FormatAlert(platform MessagePlatform, v core.Verdict, at time.Time) string {
	var b strings.Builder
	name := v.Target
	if name == "" {
		name = "Monitored page"
	}

	switch platform {
	case PlatformSlack:
		fmt.Fprintf(&b, "🎉 *%s shows a purchasable / in-stock signal!*\n", name)
		fmt.Fprintf(&b, "🔗 %s\n", v.URL)
		fmt.Fprintf(&b, "⏱️ %s", at.UTC().Format(time.RFC1123))
	default:
		fmt.Fprintf(&b, "🎉 **%s shows a purchasable / in-stock signal!**\n", name)
		fmt.Fprintf(&b, "🔗 %s\n", v.URL)
		fmt.Fprintf(&b, "⏱️ <t:%d:F>", at.Unix())
	}

	if e := v.Evidence; e != nil {
		detail := fmt.Sprintf("%q via %s", e.Phrase, e.Pool)
		if e.NodeText != "" {
			detail += fmt.Sprintf(" (%s)", dom.Snippet(e.NodeText, 80))
		}
		fmt.Fprintf(&b, "\n🔎 %s", detail)
	}
	return b.String()
}

// ValidateWebhookURL validates if a webhook URL is properly formatted
func ValidateWebhookURL(platform MessagePlatform, url string) error {
	if url == "" {
		return fmt.Errorf("%s webhook URL cannot be empty", platform)
	}

	switch platform {
	case PlatformSlack:
		if !strings.Contains(url, "hooks.slack.com") {
			return fmt.Errorf("invalid Slack webhook URL format")
		}
	case PlatformDiscord:
		if !strings.Contains(url, "discord.com/api/webhooks") && !strings.Contains(url, "discordapp.com/api/webhooks") {
			return fmt.Errorf("invalid Discord webhook URL format")
		}
	default:
		return fmt.Errorf("unknown platform: %s", platform)
	}

	return nil
}

// GetAvailablePlatforms returns available messaging platforms
func GetAvailablePlatforms() []string {
	return []string{
		string(PlatformSlack),
		string(PlatformDiscord),
	}
}
