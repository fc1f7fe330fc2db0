// Package telegram is the CORE's fire-and-forget operator alert sink
// (spec §7 "User-visible behavior"). It is send-only: no component ever
// blocks on operator input. Alerts carry the same fields as the
// structured log line they accompany, so an operator can correlate the
// two without guessing.
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
)

type Severity string

const (
	SevWarning  Severity = "warning"
	SevCritical Severity = "critical"
)

// Alert is one operator notification: which service saw which event,
// optionally on which stock, and why.
type Alert struct {
	Severity  Severity
	Service   string
	Event     string
	StockCode string
	Reason    string
}

func (a Alert) render() string {
	icon := "⚠️"
	if a.Severity == SevCritical {
		icon = "🚨"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s *%s* %s", icon, a.Service, a.Event)
	if a.StockCode != "" {
		fmt.Fprintf(&b, " `%s`", a.StockCode)
	}
	if a.Reason != "" {
		fmt.Fprintf(&b, "\n%s", a.Reason)
	}
	return b.String()
}

// Notify sends the alert to the configured Telegram chat. Failures are
// logged and swallowed: an unreachable alert channel must never affect
// the trading path.
func Notify(a Alert) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	chatID := os.Getenv("TELEGRAM_CHAT_ID")

	if token == "" || chatID == "" {
		log.Println("Warning: Telegram credentials missing, skipping notification")
		return
	}

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", token)

	payload := map[string]string{
		"chat_id":    chatID,
		"text":       a.render(),
		"parse_mode": "Markdown",
	}

	body, _ := json.Marshal(payload)

	resp, err := http.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		log.Printf("Telegram Alert Failed: %v", err)
		return
	}
	resp.Body.Close()
}
