package notifier

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"golang.org/x/time/rate"

	"energy-monitor/internal/logging"
	"energy-monitor/internal/models"
	"energy-monitor/internal/utils"
)

// TelegramProvider delivers anomaly alerts to a fixed set of facility chats.
type TelegramProvider struct {
	bot     *bot.Bot
	chatIDs []int64
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewTelegramProvider builds the provider. ratePerSecond caps outbound
// messages so Telegram's API limits are respected.
func NewTelegramProvider(token string, chatIDs []int64, ratePerSecond int, logger *logging.Logger) (*TelegramProvider, error) {
	if token == "" {
		return nil, fmt.Errorf("missing telegram bot token")
	}
	if len(chatIDs) == 0 {
		return nil, fmt.Errorf("no telegram chat ids configured")
	}
	if ratePerSecond <= 0 {
		ratePerSecond = 1
	}
	b, err := bot.New(token)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}
	return &TelegramProvider{
		bot:     b,
		chatIDs: chatIDs,
		limiter: rate.NewLimiter(rate.Limit(float64(ratePerSecond)), ratePerSecond),
		logger:  logger,
	}, nil
}

// Name identifies the provider in logs and metrics.
func (p *TelegramProvider) Name() string { return "telegram" }

func alertText(ev models.AnomalyEvent) string {
	return fmt.Sprintf(
		"*%s anomaly: %s / %s*\n%s\n\n"+
			"*When:* %s\n"+
			"*Actual:* %.1f kWh\n"+
			"*Expected:* %.1f kWh\n"+
			"*Deviation:* %.1f%%\n\n"+
			"_%s_",
		ev.Severity, ev.Site, ev.Sector,
		ev.Description,
		ev.Timestamp.Format("2006-01-02 15:04 MST"),
		ev.ActualKWh, ev.ExpectedKWh, ev.DeviationPct,
		ev.Recommended,
	)
}

// Send formats and delivers one anomaly event to every configured chat.
func (p *TelegramProvider) Send(ctx context.Context, ev models.AnomalyEvent) error {
	text := alertText(ev)

	for _, chatID := range p.chatIDs {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("telegram rate limit wait: %w", err)
		}
		chatID := chatID
		err := utils.Retry(ctx, p.logger, 3, time.Second, func() error {
			_, err := p.bot.SendMessage(ctx, &bot.SendMessageParams{
				ChatID:    chatID,
				Text:      text,
				ParseMode: "Markdown",
			})
			if err != nil {
				return fmt.Errorf("failed to send telegram message to chat %d: %w", chatID, err)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}
