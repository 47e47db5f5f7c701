package tripwire

import (
	"context"
	"log/slog"
	"time"

	"github.com/aretw0/tripwire/internal/logging"
	"github.com/aretw0/tripwire/pkg/dispatch"
	"github.com/aretw0/tripwire/pkg/domain"
	"github.com/aretw0/tripwire/pkg/keywords"
	"github.com/aretw0/tripwire/pkg/ports"
)

// Bot routes inbound chat events: text messages go to the command
// dispatcher, joins go to the membership guard.
type Bot struct {
	store      *keywords.Store
	messenger  ports.Messenger
	remover    ports.MemberRemover
	dispatcher *dispatch.Dispatcher
	guard      *dispatch.Guard
	hooks      domain.Hooks
	logger     *slog.Logger

	policy   dispatch.Authorizer
	dispOpts []dispatch.Option
}

// Option defines a functional option for configuring the Bot.
type Option func(*Bot)

// WithPolicy sets who may run mutating commands. Without it every mutation is denied.
func WithPolicy(p dispatch.Authorizer) Option {
	return func(b *Bot) {
		b.policy = p
	}
}

// WithSyncer sets the remote target for /savekeywords.
func WithSyncer(s ports.Syncer) Option {
	return func(b *Bot) {
		b.dispOpts = append(b.dispOpts, dispatch.WithSyncer(s))
	}
}

// WithLocker serializes syncs across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(b *Bot) {
		b.dispOpts = append(b.dispOpts, dispatch.WithLocker(l))
	}
}

// WithRemover enables auto-kick. Without it matching members are only reported in the log.
func WithRemover(r ports.MemberRemover) Option {
	return func(b *Bot) {
		b.remover = r
	}
}

// WithHooks registers observability hooks.
func WithHooks(h domain.Hooks) Option {
	return func(b *Bot) {
		b.hooks = h
	}
}

// WithLogger sets a custom structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Bot) {
		b.logger = logger
	}
}

// WithSyncTimeout bounds each sync attempt.
func WithSyncTimeout(d time.Duration) Option {
	return func(b *Bot) {
		b.dispOpts = append(b.dispOpts, dispatch.WithSyncTimeout(d))
	}
}

// WithAutoSync syncs after every successful mutation.
func WithAutoSync(enabled bool) Option {
	return func(b *Bot) {
		b.dispOpts = append(b.dispOpts, dispatch.WithAutoSync(enabled))
	}
}

// WithBotUsername ignores commands addressed to other bots.
func WithBotUsername(name string) Option {
	return func(b *Bot) {
		b.dispOpts = append(b.dispOpts, dispatch.WithBotUsername(name))
	}
}

// New creates a Bot over store, replying through messenger.
func New(store *keywords.Store, messenger ports.Messenger, opts ...Option) *Bot {
	b := &Bot{
		store:     store,
		messenger: messenger,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}

	dispOpts := append([]dispatch.Option{
		dispatch.WithHooks(b.hooks),
		dispatch.WithLogger(b.logger),
	}, b.dispOpts...)
	b.dispatcher = dispatch.New(store, b.policy, dispOpts...)
	b.guard = dispatch.NewGuard(store)
	return b
}

// Store returns the keyword store the Bot operates on.
func (b *Bot) Store() *keywords.Store {
	return b.store
}

// Handle processes one event. Send and removal failures are logged, never returned.
func (b *Bot) Handle(ctx context.Context, ev domain.Event) {
	switch {
	case ev.Message != nil:
		b.handleMessage(ctx, *ev.Message)
	case ev.Join != nil:
		b.handleJoin(ctx, *ev.Join)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg domain.TextMessage) {
	reply, ok := b.dispatcher.Dispatch(ctx, msg)
	if !ok {
		return
	}
	b.send(ctx, reply.ChatID, reply.Text)
}

func (b *Bot) handleJoin(ctx context.Context, join domain.MemberJoined) {
	if !b.store.AutoKick() {
		return
	}
	verdict := b.guard.Evaluate(join)
	if !verdict.Remove {
		return
	}
	if b.remover == nil {
		b.logger.Warn("Member matches a keyword but no remover is configured",
			"chat_id", join.ChatID, "user_id", join.Member.ID, "keyword", verdict.Keyword)
		return
	}

	err := b.remover.RemoveMember(ctx, join.ChatID, join.Member.ID)
	if b.hooks.OnKick != nil {
		b.hooks.OnKick(ctx, &domain.KickEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventKick},
			ChatID:    join.ChatID,
			UserID:    join.Member.ID,
			Keyword:   verdict.Keyword,
			Err:       err,
		})
	}
	if err != nil {
		b.logger.Error("Failed to remove member",
			"chat_id", join.ChatID, "user_id", join.Member.ID, "keyword", verdict.Keyword, "err", err)
		return
	}

	b.logger.Info("Member removed", "chat_id", join.ChatID, "user_id", join.Member.ID, "keyword", verdict.Keyword)
	b.send(ctx, join.ChatID, verdict.Notice())
}

func (b *Bot) send(ctx context.Context, chatID int64, text string) {
	if err := b.messenger.SendMessage(ctx, chatID, text); err != nil {
		b.logger.Error("Failed to send message", "chat_id", chatID, "err", err)
	}
}
