// Package telegram announces the day's Telegraph pages in a channel
// through the MTProto API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gotd/contrib/middleware/floodwait"
	"github.com/gotd/td/session"
	"github.com/gotd/td/telegram"

	"github.com/sumbird/sumbird/config"
)

// ClientRunner is a function that runs with an authenticated client
type ClientRunner func(ctx context.Context, client *telegram.Client) error

// RunWithBot creates a Telegram client, authenticates it as a bot, and
// runs the provided function.
func RunWithBot(ctx context.Context, sessionDir string, creds config.TelegramCredentials, runner ClientRunner) error {
	// Set up session storage
	sessionStorage := &session.FileStorage{
		Path: filepath.Join(sessionDir, "telegram-session.json"),
	}

	// Set up flood wait handler
	waiter := floodwait.NewWaiter().WithCallback(func(ctx context.Context, wait floodwait.FloodWait) {
		slog.Warn("telegram rate limit", "retry_after", wait.Duration)
	})

	// Create zap logger to see gotd internal logs
	zapConfig := zap.NewDevelopmentConfig()
	zapConfig.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	logger, _ := zapConfig.Build()

	client := telegram.NewClient(creds.AppID, creds.AppHash, telegram.Options{
		SessionStorage: sessionStorage,
		Logger:         logger,
		Middlewares: []telegram.Middleware{
			waiter,
		},
	})

	return waiter.Run(ctx, func(ctx context.Context) error {
		err := client.Run(ctx, func(ctx context.Context) error {
			status, err := client.Auth().Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to check auth status: %w", err)
			}
			if !status.Authorized {
				if _, err := client.Auth().Bot(ctx, creds.BotToken); err != nil {
					return fmt.Errorf("bot authentication failed: %w", err)
				}
				slog.Info("telegram bot authenticated")
			}

			return runner(ctx, client)
		})
		if err != nil {
			slog.Error("telegram client run failed", "error", err)
		}
		return err
	})
}
