package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Notification carries one actionable signal to a human channel.
type Notification struct {
	Asset      string
	Tier       string
	Direction  string
	Price      decimal.Decimal
	Change24h  decimal.Decimal
	RSI        decimal.Decimal
	Expiration int
	Reasons    []string
	Source     string
	ObservedAt time.Time
	Simulated  bool
}

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, notification Notification) error
}

// TelegramNotifier pushes notifications through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier builds a Telegram notifier.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify calls sendMessage with the rendered text.
func (n *TelegramNotifier) Notify(ctx context.Context, note Notification) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(note),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().Str("asset", note.Asset).
		Str("tier", note.Tier).
		Str("direction", note.Direction).
		Msg("signal alert sent (Telegram)")
	return nil
}

func renderMessage(note Notification) string {
	builder := strings.Builder{}
	if note.Simulated {
		builder.WriteString("[SIMULATED] ")
	}
	builder.WriteString(fmt.Sprintf("[%s] %s %s\n", note.Tier, note.Asset, note.Direction))
	builder.WriteString(fmt.Sprintf("Entry: %s\n", note.Price.String()))
	builder.WriteString(fmt.Sprintf("24h: %s%%  RSI: %s\n", note.Change24h.StringFixed(2), note.RSI.StringFixed(1)))
	if note.Expiration > 0 {
		builder.WriteString(fmt.Sprintf("Expiration: %d min\n", note.Expiration))
	}
	for _, reason := range note.Reasons {
		builder.WriteString("- " + reason + "\n")
	}
	builder.WriteString(fmt.Sprintf("Source: %s @ %s UTC", note.Source, note.ObservedAt.UTC().Format(time.RFC3339)))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
