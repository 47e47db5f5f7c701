// Package dispatch turns inbound chat events into keyword store operations
// and reply messages.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/aretw0/tripwire/internal/logging"
	"github.com/aretw0/tripwire/pkg/domain"
	"github.com/aretw0/tripwire/pkg/keywords"
	"github.com/aretw0/tripwire/pkg/ports"
)

// DefaultSyncTimeout bounds one Persist call, lock acquisition included.
const DefaultSyncTimeout = 30 * time.Second

const persistLockKey = "keywords:persist"

// Authorizer decides whether an actor may run mutating commands.
type Authorizer interface {
	IsAuthorized(actor domain.Actor) bool
}

// Reply is the single message produced for a handled command.
type Reply struct {
	ChatID int64
	Text   string
}

// Dispatcher parses commands, checks authorization, applies them to the
// keyword store and, for /savekeywords, delegates to the Syncer.
// It holds no per-message state and is safe for concurrent use.
type Dispatcher struct {
	store       *keywords.Store
	policy      Authorizer
	syncer      ports.Syncer
	locker      ports.DistributedLocker
	hooks       domain.Hooks
	logger      *slog.Logger
	syncTimeout time.Duration
	autoSync    bool
	botUsername string
}

// Option configures the Dispatcher.
type Option func(*Dispatcher)

// WithSyncer sets the remote sync target used by /savekeywords.
func WithSyncer(s ports.Syncer) Option {
	return func(d *Dispatcher) {
		d.syncer = s
	}
}

// WithLocker serializes syncs across replicas.
func WithLocker(l ports.DistributedLocker) Option {
	return func(d *Dispatcher) {
		d.locker = l
	}
}

// WithHooks registers observability hooks.
func WithHooks(h domain.Hooks) Option {
	return func(d *Dispatcher) {
		d.hooks = h
	}
}

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = logger
	}
}

// WithSyncTimeout bounds each sync attempt.
func WithSyncTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.syncTimeout = timeout
		}
	}
}

// WithAutoSync makes every successful mutation sync immediately, as if
// /savekeywords had been sent right after it.
func WithAutoSync(enabled bool) Option {
	return func(d *Dispatcher) {
		d.autoSync = enabled
	}
}

// WithBotUsername ignores commands addressed to other bots (/cmd@otherbot).
func WithBotUsername(name string) Option {
	return func(d *Dispatcher) {
		d.botUsername = name
	}
}

// New creates a Dispatcher over store, authorizing mutations with policy.
func New(store *keywords.Store, policy Authorizer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:       store,
		policy:      policy,
		logger:      logging.NewNop(),
		syncTimeout: DefaultSyncTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch handles one text message. It returns false when the text is not
// a known command, in which case nothing must be sent back.
func (d *Dispatcher) Dispatch(ctx context.Context, msg domain.TextMessage) (Reply, bool) {
	cmd := ParseCommand(msg.Text, d.botUsername)
	if cmd.Kind == domain.CommandUnknown {
		return Reply{}, false
	}

	text, outcome := d.execute(ctx, cmd, msg.Sender)

	d.logger.Info("Command handled",
		"command", cmd.Kind,
		"chat_id", msg.ChatID,
		"actor_id", msg.Sender.ID,
		"outcome", outcome,
	)
	if d.hooks.OnCommand != nil {
		d.hooks.OnCommand(ctx, &domain.CommandEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventCommand},
			Command:   cmd.Kind,
			ChatID:    msg.ChatID,
			ActorID:   msg.Sender.ID,
			Outcome:   outcome,
			Keywords:  d.store.Len(),
		})
	}

	return Reply{ChatID: msg.ChatID, Text: text}, true
}

func (d *Dispatcher) execute(ctx context.Context, cmd domain.Command, actor domain.Actor) (string, string) {
	if (cmd.Kind == domain.CommandAddKeywords || cmd.Kind == domain.CommandRemoveKeywords) && len(cmd.Args) == 0 {
		return fmt.Sprintf(msgEmptyKeywords, "/"+string(cmd.Kind)), domain.OutcomeInvalid
	}
	if cmd.Kind.Mutates() && (d.policy == nil || !d.policy.IsAuthorized(actor)) {
		d.logger.Warn("Command denied", "command", cmd.Kind, "actor_id", actor.ID, "actor", actor.DisplayName)
		return msgDenied, domain.OutcomeDenied
	}

	switch cmd.Kind {
	case domain.CommandHelp:
		return helpText, domain.OutcomeOK
	case domain.CommandAbout:
		return aboutText, domain.OutcomeOK
	case domain.CommandListKeywords:
		return formatList(d.store.List()), domain.OutcomeOK
	case domain.CommandAddKeywords:
		added, present := d.store.Add(cmd.Args)
		return d.afterMutation(ctx, formatAdd(added, present, d.store.List()))
	case domain.CommandRemoveKeywords:
		removed, missing := d.store.Remove(cmd.Args)
		return d.afterMutation(ctx, formatRemove(removed, missing, d.store.List()))
	case domain.CommandClearKeywords:
		n := d.store.Clear()
		return d.afterMutation(ctx, formatClear(n))
	case domain.CommandToggleAutoKick:
		return formatAutoKick(d.store.ToggleAutoKick()), domain.OutcomeOK
	case domain.CommandPersist:
		snap, current, err := d.persist(ctx)
		if err != nil {
			return formatSyncFailure(err), domain.OutcomeSyncFailed
		}
		return formatSynced(snap.Keywords, current), domain.OutcomeOK
	}
	return "", domain.OutcomeOK
}

// afterMutation appends the sync outcome when auto-sync is on.
func (d *Dispatcher) afterMutation(ctx context.Context, text string) (string, string) {
	if !d.autoSync {
		return text, domain.OutcomeOK
	}
	snap, current, err := d.persist(ctx)
	if err != nil {
		return text + "\n\n" + formatSyncFailure(err), domain.OutcomeSyncFailed
	}
	return text + "\n\n" + formatSynced(snap.Keywords, current), domain.OutcomeOK
}

// persist pushes a snapshot of the keywords to the Syncer. The store lock is
// not held during the remote call, so a mutation racing with it can make the
// pushed snapshot stale; MarkSynced then leaves the state Dirty.
func (d *Dispatcher) persist(ctx context.Context) (keywords.Snapshot, bool, error) {
	if d.syncer == nil {
		return keywords.Snapshot{}, false, domain.ErrSyncNotConfigured
	}

	ctx, cancel := context.WithTimeout(ctx, d.syncTimeout)
	defer cancel()

	if d.locker != nil {
		unlock, err := d.locker.Lock(ctx, persistLockKey, d.syncTimeout)
		if err != nil {
			err = &domain.SyncError{
				Kind:   domain.SyncWriteFailed,
				Detail: "could not acquire the sync lock",
				Err:    err,
			}
			d.store.MarkSyncFailed(syncReason(err))
			return keywords.Snapshot{}, false, err
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				d.logger.Warn("Failed to release sync lock (will expire via TTL)", "err", err)
			}
		}()
	}

	snap := d.store.Snapshot()
	start := time.Now()
	err := d.syncer.Persist(ctx, snap.Keywords)
	elapsed := time.Since(start)

	if d.hooks.OnSync != nil {
		d.hooks.OnSync(ctx, &domain.SyncEvent{
			EventBase: domain.EventBase{Timestamp: time.Now(), Type: domain.EventSync},
			Keywords:  len(snap.Keywords),
			Duration:  elapsed,
			Err:       err,
		})
	}

	if err != nil {
		d.store.MarkSyncFailed(syncReason(err))
		d.logger.Error("Keyword sync failed", "err", err, "keywords", len(snap.Keywords), "duration", elapsed)
		return snap, false, err
	}

	current := d.store.MarkSynced(snap.Revision)
	d.logger.Info("Keywords synced", "keywords", len(snap.Keywords), "duration", elapsed, "current", current)
	return snap, current, nil
}
