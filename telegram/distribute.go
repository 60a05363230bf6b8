package telegram

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message"
	"github.com/gotd/td/telegram/message/html"

	"github.com/sumbird/sumbird/config"
	"github.com/sumbird/sumbird/telegraph"
)

// Distribute posts the announcement for a published day to the
// configured channel.
func Distribute(ctx context.Context, sessionDir string, cfg config.Config, creds config.TelegramCredentials, published telegraph.Published) error {
	if err := ValidateChannelID(cfg.TelegramChannel); err != nil {
		return err
	}
	if published.URL == "" {
		return fmt.Errorf("published data has no summary URL")
	}

	text := FormatPost(published, cfg.TelegramChannel)

	return RunWithBot(ctx, sessionDir, creds, func(ctx context.Context, client *telegram.Client) error {
		sender := message.NewSender(client.API())

		builder := sender.Resolve(cfg.TelegramChannel).NoWebpage()
		if _, err := builder.StyledText(ctx, html.String(nil, text)); err != nil {
			return fmt.Errorf("failed to send channel post: %w", err)
		}

		slog.Info("posted to telegram channel",
			"channel", cfg.TelegramChannel, "date", published.SourceDate)
		return nil
	})
}
