// Команда reconcile выполняет один проход сверки подписок и завершается.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/magabrotheeeer/membership-bot/internal/app/membership"
	"github.com/magabrotheeeer/membership-bot/internal/config"
	"github.com/magabrotheeeer/membership-bot/internal/lib/logger"
	"github.com/magabrotheeeer/membership-bot/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	log := logger.Setup(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := membership.New(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}
	defer app.Close()

	summary, err := app.RunOnce(ctx)
	if err != nil {
		log.Error("reconcile failed", sl.Err(err))
		app.Close()
		os.Exit(1)
	}
	log.Info("reconcile finished", slog.Any("summary", summary))
}
