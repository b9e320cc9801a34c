package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

// discordContentLimit is the webhook's cap on message content, in characters.
const discordContentLimit = 2000

// DiscordSender posts gateway alerts to a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for webhookURL. A nil client gets
// one with a 10 s timeout.
func NewDiscordSender(webhookURL string, client *http.Client) *DiscordSender {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &DiscordSender{webhookURL: webhookURL, client: client}
}

// Send posts the alert with a bold title. Broker symbol names are escaped so
// XAU_USD or GOLD*m render literally, and content is cut to the webhook limit.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	content := fmt.Sprintf("**%s**\n%s", escapeDiscord(title), escapeDiscord(message))

	body, err := json.Marshal(map[string]any{
		"content":          truncateRunes(content, discordContentLimit),
		"allowed_mentions": map[string][]string{"parse": {}},
	})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

var escapeDiscord = strings.NewReplacer(
	`\`, `\\`, "_", `\_`, "*", `\*`, "~", `\~`, "`", "\\`", "|", `\|`, ">", `\>`,
).Replace

// truncateRunes cuts s to at most n characters, marking the cut with "…".
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}
