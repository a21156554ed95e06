package main

import (
	"context"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/cyplat/gandalf/internal/auth"
	"github.com/cyplat/gandalf/internal/config"
	"github.com/cyplat/gandalf/internal/domain"
	"github.com/cyplat/gandalf/internal/log"
	"github.com/cyplat/gandalf/internal/mail"
	"github.com/cyplat/gandalf/internal/queue"
)

func main() {
	cfg := config.Load()

	lg, err := log.Init(cfg.Env == "dev")
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if cfg.RabbitURL == "" {
		lg.Fatal("RABBIT_URL is required")
	}

	cons, err := queue.NewConsumer(cfg.RabbitURL, cfg.RabbitExchange, cfg.RabbitQueue, queue.KeyVerificationRequested, lg)
	if err != nil {
		lg.Fatal("rabbit consumer init failed", zap.Error(err))
	}
	defer cons.Close()

	var sender auth.Notifier = mail.NewLogSender(cfg.VerifyURLBase, lg)
	if cfg.SMTPHost != "" {
		s, err := mail.NewSMTPSender(cfg.SMTP(), cfg.VerifyURLBase, lg)
		if err != nil {
			lg.Fatal("smtp sender", zap.Error(err))
		}
		sender = s
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	lg.Info("notifier up",
		zap.String("exchange", cfg.RabbitExchange),
		zap.String("queue", cfg.RabbitQueue),
		zap.Int("workers", cfg.RabbitConcurrency))

	handle := queue.VerificationHandler(func(ctx context.Context, msg domain.VerificationEmail) error {
		ctx, cancel := context.WithTimeout(ctx, cfg.NotifyTimeout)
		defer cancel()
		return sender.SendVerification(ctx, msg)
	})
	if err := cons.Consume(ctx, cfg.RabbitConcurrency, handle); err != nil {
		lg.Fatal("consumer stopped", zap.Error(err))
	}
	lg.Info("notifier stopped")
}
