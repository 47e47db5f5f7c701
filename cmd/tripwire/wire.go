package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/tripwire"
	"github.com/aretw0/tripwire/internal/config"
	"github.com/aretw0/tripwire/internal/metrics"
	httpAdapter "github.com/aretw0/tripwire/pkg/adapters/http"
	"github.com/aretw0/tripwire/pkg/adapters/redis"
	"github.com/aretw0/tripwire/pkg/adapters/telegram"
	"github.com/aretw0/tripwire/pkg/adapters/vercel"
	"github.com/aretw0/tripwire/pkg/access"
	"github.com/aretw0/tripwire/pkg/keywords"
)

// app is the wired service.
type app struct {
	handler http.Handler
	bot     *tripwire.Bot
	closers []func() error
}

func (a *app) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func webhookURL(cfg *config.Config) string {
	if cfg.Telegram.WebhookBaseURL == "" {
		return ""
	}
	return strings.TrimRight(cfg.Telegram.WebhookBaseURL, "/") + "/webhook"
}

func newTelegramClient(cfg *config.Config, logger *slog.Logger) *telegram.Client {
	return telegram.NewClient(cfg.Telegram.Token,
		telegram.WithBaseURL(cfg.Telegram.APIURL),
		telegram.WithParseMode(cfg.Telegram.ParseMode),
		telegram.WithTimeout(cfg.Telegram.Timeout),
		telegram.WithLogger(logger),
	)
}

// build wires the bot from cfg. The caller must Close the app.
func build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	if _, err := httpAdapter.Spec(); err != nil {
		return nil, fmt.Errorf("invalid embedded OpenAPI document: %w", err)
	}

	a := &app{}
	tg := newTelegramClient(cfg, logger)
	collectors := metrics.New()
	policy := access.NewPolicy(cfg.Owners...)

	opts := []tripwire.Option{
		tripwire.WithPolicy(policy),
		tripwire.WithRemover(tg),
		tripwire.WithHooks(collectors.Hooks()),
		tripwire.WithLogger(logger),
		tripwire.WithSyncTimeout(cfg.SyncTimeout),
		tripwire.WithAutoSync(cfg.AutoSync),
		tripwire.WithBotUsername(cfg.Telegram.BotUsername),
	}

	if cfg.SyncEnabled() {
		opts = append(opts, tripwire.WithSyncer(vercel.NewClient(cfg.Vercel.Token, cfg.Vercel.ProjectID,
			vercel.WithTeamID(cfg.Vercel.TeamID),
			vercel.WithBaseURL(cfg.Vercel.APIURL),
			vercel.WithEnvKey(cfg.Vercel.EnvKey),
			vercel.WithTargets(cfg.Vercel.Targets...),
			vercel.WithFallbackRef(cfg.Vercel.FallbackRef),
			vercel.WithTimeout(cfg.Vercel.Timeout),
			vercel.WithLogger(logger),
		)))
	} else {
		logger.Warn("Vercel sync is not configured; /savekeywords will report it")
	}

	if cfg.Redis.Addr != "" {
		client := redis.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		a.closers = append(a.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		opts = append(opts, tripwire.WithLocker(redis.NewLocker(client, cfg.Redis.Prefix)))
		logger.Info("Sync lock enabled", "redis", cfg.Redis.Addr)
	}

	if policy.Owners() == 0 {
		logger.Warn("No owners configured; every mutating command will be denied")
	}

	store := keywords.NewStore(cfg.Keywords, keywords.WithAutoKick(cfg.AutoKick))
	a.bot = tripwire.New(store, tg, opts...)

	a.handler = httpAdapter.NewHandler(a.bot,
		httpAdapter.WithRegistrar(tg, webhookURL(cfg)),
		httpAdapter.WithWebhookSecret(cfg.Telegram.WebhookSecret),
		httpAdapter.WithMetricsHandler(collectors.Handler()),
		httpAdapter.WithLogger(logger),
	)
	return a, nil
}
