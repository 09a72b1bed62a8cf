package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"stockwatch/internal/core"
)

func TestNotify_Discord(t *testing.T) {
	var payload DiscordMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Expected JSON content type, got %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Errorf("invalid payload %q: %v", body, err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := NewMessagingClient(PlatformDiscord, server.URL, 5*time.Second)
	client.Username = "stockwatch"

	if err := client.Notify(context.Background(), "restock!"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if payload.Content != "restock!" || payload.Username != "stockwatch" {
		t.Errorf("unexpected payload %+v", payload)
	}
}

func TestNotify_Slack(t *testing.T) {
	var payload map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewMessagingClient(PlatformSlack, server.URL, 5*time.Second)
	client.IconEmoji = ":shopping_trolley:"

	if err := client.Notify(context.Background(), "restock!"); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if payload["text"] != "restock!" || payload["icon_emoji"] != ":shopping_trolley:" {
		t.Errorf("unexpected payload %v", payload)
	}
}

func TestNotify_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(strings.Repeat("slow down ", 100)))
	}))
	defer server.Close()

	err := NewMessagingClient(PlatformDiscord, server.URL, 5*time.Second).Notify(context.Background(), "x")
	var webhookErr *WebhookError
	if !errors.As(err, &webhookErr) {
		t.Fatalf("Expected *WebhookError, got %v", err)
	}
	if webhookErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", webhookErr.StatusCode)
	}
	if len(webhookErr.Body) > maxErrorBody {
		t.Errorf("error body not truncated: %d bytes", len(webhookErr.Body))
	}
}

func TestNotify_RedirectStatusIsFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusMultipleChoices)
	}))
	defer server.Close()

	if err := NewMessagingClient(PlatformSlack, server.URL, 5*time.Second).Notify(context.Background(), "x"); err == nil {
		t.Error("Expected status 300 to be treated as failure")
	}
}

func TestNotify_Misconfigured(t *testing.T) {
	if err := NewMessagingClient(PlatformDiscord, "", time.Second).Notify(context.Background(), "x"); err == nil {
		t.Error("Expected error for empty webhook URL")
	}
	if err := NewMessagingClient("pager", "https://example.com", time.Second).Notify(context.Background(), "x"); err == nil {
		t.Error("Expected error for unsupported platform")
	}
}

func TestNotify_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	if err := NewMessagingClient(PlatformDiscord, server.URL, 50*time.Millisecond).Notify(context.Background(), "x"); err == nil {
		t.Error("Expected timeout error")
	}
}

func TestFormatAlert(t *testing.T) {
	at := time.Unix(1700000000, 0)
	v := core.Verdict{
		Purchasable: true,
		Target:      "Steam Deck Refurbished (US)",
		URL:         "https://store.example.com/sale/steamdeckrefurbished/",
		Evidence:    &core.Evidence{Pool: "node", Phrase: "add to cart", NodeText: "add to cart"},
	}

	discord := FormatAlert(PlatformDiscord, v, at)
	for _, want := range []string{"**Steam Deck Refurbished (US) shows", v.URL, "<t:1700000000:F>", `"add to cart" via node`} {
		if !strings.Contains(discord, want) {
			t.Errorf("discord alert missing %q:\n%s", want, discord)
		}
	}

	slack := FormatAlert(PlatformSlack, v, at)
	if !strings.Contains(slack, "*Steam Deck Refurbished (US) shows") || strings.Contains(slack, "<t:") {
		t.Errorf("unexpected slack alert:\n%s", slack)
	}
	if !strings.Contains(slack, "14 Nov 2023") {
		t.Errorf("expected RFC1123 time in slack alert:\n%s", slack)
	}

	bare := FormatAlert(PlatformDiscord, core.Verdict{URL: "u"}, at)
	if !strings.Contains(bare, "Monitored page") || strings.Contains(bare, "🔎") {
		t.Errorf("unexpected alert without evidence:\n%s", bare)
	}
}

func TestValidateWebhookURL(t *testing.T) {
	testCases := []struct {
		platform MessagePlatform
		url      string
		valid    bool
	}{
		{PlatformDiscord, "https://discord.com/api/webhooks/1/abc", true},
		{PlatformDiscord, "https://example.com/hook", false},
		{PlatformSlack, "https://hooks.slack.com/services/T/B/X", true},
		{PlatformSlack, "https://discord.com/api/webhooks/1/abc", false},
		{PlatformSlack, "", false},
		{"pager", "https://example.com", false},
	}

	for _, tc := range testCases {
		err := ValidateWebhookURL(tc.platform, tc.url)
		if (err == nil) != tc.valid {
			t.Errorf("ValidateWebhookURL(%s, %q) error = %v, want valid=%v", tc.platform, tc.url, err, tc.valid)
		}
	}
}

func TestGetAvailablePlatforms(t *testing.T) {
	if len(GetAvailablePlatforms()) != 2 {
		t.Error("expected slack and discord")
	}
}
