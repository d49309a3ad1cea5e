// Package notify sends settlement summaries via the Telegram Bot API.
// Notification is best-effort: delivery failures are retried with a short
// backoff and then logged, never propagated into the settlement response.
package notify

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/lineboard/ouservice/internal/logger"
	"github.com/lineboard/ouservice/internal/settle"
)

// Notifier sends settlement run summaries to a Telegram chat.
type Notifier struct {
	bot        *tgbotapi.BotAPI
	chatID     int64
	maxRetries int
	retryDelay time.Duration
}

// New creates a Notifier.
func New(botToken, chatID string) (*Notifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	chatIDInt, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid chat ID: %w", err)
	}

	return &Notifier{
		bot:        bot,
		chatID:     chatIDInt,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// SettlementCompleted sends a summary of a settlement run. Runs that
// settled nothing are not announced.
func (n *Notifier) SettlementCompleted(result *settle.Result) {
	if result == nil || len(result.Settled) == 0 {
		return
	}

	msg := tgbotapi.NewMessage(n.chatID, n.formatMessage(result))
	msg.ParseMode = "MarkdownV2"

	var lastErr error
	for i := 0; i < n.maxRetries; i++ {
		if _, err := n.bot.Send(msg); err == nil {
			return
		} else {
			lastErr = err
		}
		time.Sleep(n.retryDelay * time.Duration(i+1))
	}
	logger.Error("failed to send settlement notification after %d retries: %v", n.maxRetries, lastErr)
}

func (n *Notifier) formatMessage(result *settle.Result) string {
	var b strings.Builder
	b.WriteString("*Markets settled*\n\n")
	for _, sm := range result.Settled {
		b.WriteString(fmt.Sprintf("• %s → *%s* \\(%s\\)\n",
			escapeMarkdownV2(sm.MarketID),
			escapeMarkdownV2(sm.Outcome),
			escapeMarkdownV2(sm.FinalScore)))
	}
	if len(result.Pending) > 0 {
		b.WriteString(fmt.Sprintf("\n%s still pending\n", escapeMarkdownV2(strconv.Itoa(len(result.Pending)))))
	}
	if len(result.Errors) > 0 {
		b.WriteString(fmt.Sprintf("%s errors\n", escapeMarkdownV2(strconv.Itoa(len(result.Errors)))))
	}
	return b.String()
}

// escapeMarkdownV2 escapes special characters for Telegram MarkdownV2
func escapeMarkdownV2(text string) string {
	special := []string{"_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}
	for _, ch := range special {
		text = strings.ReplaceAll(text, ch, "\\"+ch)
	}
	return text
}
