package dispatch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aretw0/tripwire/pkg/access"
	"github.com/aretw0/tripwire/pkg/dispatch"
	"github.com/aretw0/tripwire/pkg/domain"
	"github.com/aretw0/tripwire/pkg/keywords"
	"github.com/aretw0/tripwire/pkg/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ownerID    = 1001
	strangerID = 2002
	chatID     = -100
)

var (
	owner    = domain.Actor{ID: ownerID, DisplayName: "owner"}
	stranger = domain.Actor{ID: strangerID, DisplayName: "stranger"}
)

// FakeSyncer records Persist calls and returns a scripted error.
type FakeSyncer struct {
	mu     sync.Mutex
	Calls  [][]string
	Err    error
	Before func()
}

func (f *FakeSyncer) Persist(ctx context.Context, kws []string) error {
	if f.Before != nil {
		f.Before()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, kws)
	return f.Err
}

func (f *FakeSyncer) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.Calls)
}

// FakeLocker counts lock/unlock pairs.
type FakeLocker struct {
	Err      error
	Locked   int
	Unlocked int
}

func (l *FakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (ports.UnlockFunc, error) {
	if l.Err != nil {
		return nil, l.Err
	}
	l.Locked++
	return func(context.Context) error {
		l.Unlocked++
		return nil
	}, nil
}

func newDispatcher(initial []string, opts ...dispatch.Option) (*dispatch.Dispatcher, *keywords.Store) {
	store := keywords.NewStore(initial)
	return dispatch.New(store, access.NewPolicy(ownerID), opts...), store
}

func send(t *testing.T, d *dispatch.Dispatcher, from domain.Actor, text string) dispatch.Reply {
	t.Helper()
	reply, ok := d.Dispatch(context.Background(), domain.TextMessage{ChatID: chatID, Sender: from, Text: text})
	require.True(t, ok, "expected a reply for %q", text)
	assert.Equal(t, int64(chatID), reply.ChatID)
	return reply
}

func TestDispatch_OwnerAddsBatch(t *testing.T) {
	syncer := &FakeSyncer{}
	d, store := newDispatcher([]string{"spam", "scam"}, dispatch.WithSyncer(syncer))

	reply := send(t, d, owner, "/kwadd bot free")

	assert.Contains(t, reply.Text, "Added keywords: bot, free")
	assert.Contains(t, reply.Text, "Current keywords: spam, scam, bot, free")
	assert.NotContains(t, reply.Text, "Already present")
	assert.Equal(t, []string{"spam", "scam", "bot", "free"}, store.List())
	assert.Equal(t, domain.SyncDirty, store.State().Status)
	assert.Zero(t, syncer.CallCount())
}

func TestDispatch_AddReportsDuplicates(t *testing.T) {
	d, _ := newDispatcher([]string{"spam"})

	reply := send(t, d, owner, "/kwadd spam bot")

	assert.Contains(t, reply.Text, "Added keywords: bot")
	assert.Contains(t, reply.Text, "Already present: spam")
	assert.Contains(t, reply.Text, "Current keywords: spam, bot")
}

func TestDispatch_RemoveReportsMissing(t *testing.T) {
	d, store := newDispatcher([]string{"spam", "scam"})

	reply := send(t, d, owner, "/kwdel scam nope")

	assert.Contains(t, reply.Text, "Removed keywords: scam")
	assert.Contains(t, reply.Text, "Not found: nope")
	assert.Contains(t, reply.Text, "Current keywords: spam")
	assert.Equal(t, []string{"spam"}, store.List())
}

func TestDispatch_UnauthorizedMutationIsDenied(t *testing.T) {
	syncer := &FakeSyncer{}
	d, store := newDispatcher([]string{"spam"}, dispatch.WithSyncer(syncer), dispatch.WithAutoSync(true))

	for _, text := range []string{"/kwadd x", "/kwdel spam", "/kwclear", "/autokick", "/savekeywords"} {
		reply := send(t, d, stranger, text)
		assert.Contains(t, reply.Text, "not allowed", text)
	}

	assert.Equal(t, []string{"spam"}, store.List())
	assert.Equal(t, domain.SyncClean, store.State().Status)
	assert.True(t, store.AutoKick())
	assert.Zero(t, syncer.CallCount())
}

func TestDispatch_ReadsAreOpen(t *testing.T) {
	d, _ := newDispatcher([]string{"spam"})

	assert.Contains(t, send(t, d, stranger, "/keywords").Text, "Current keywords: spam")
	assert.Contains(t, send(t, d, stranger, "/help").Text, "/kwadd")
	assert.Contains(t, send(t, d, stranger, "/start").Text, "/savekeywords")
	assert.Contains(t, send(t, d, stranger, "/about").Text, "moderation")
}

func TestDispatch_EmptyKeywordBatchIsValidationError(t *testing.T) {
	d, store := newDispatcher([]string{"spam"})

	for _, text := range []string{"/kwadd", "/kwdel   "} {
		reply := send(t, d, owner, text)
		assert.Contains(t, reply.Text, "at least one keyword", text)
	}
	// Validation wins over authorization: nothing would change either way.
	assert.Contains(t, send(t, d, stranger, "/kwadd").Text, "at least one keyword")

	assert.Equal(t, []string{"spam"}, store.List())
	assert.Equal(t, domain.SyncClean, store.State().Status)
}

func TestDispatch_UnknownTextHasNoReply(t *testing.T) {
	d, _ := newDispatcher(nil)

	for _, text := range []string{"hello", "/nope", ""} {
		_, ok := d.Dispatch(context.Background(), domain.TextMessage{ChatID: chatID, Sender: owner, Text: text})
		assert.False(t, ok, text)
	}
}

func TestDispatch_ClearAndToggle(t *testing.T) {
	d, store := newDispatcher([]string{"a", "b"})

	reply := send(t, d, owner, "/kwclear")
	assert.Contains(t, reply.Text, "2 removed")
	assert.Empty(t, store.List())

	assert.Equal(t, "Auto-kick is now disabled.", send(t, d, owner, "/autokick").Text)
	assert.False(t, store.AutoKick())
	assert.Equal(t, "Auto-kick is now enabled.", send(t, d, owner, "/autokick").Text)
}

func TestDispatch_SaveKeywordsSuccess(t *testing.T) {
	syncer := &FakeSyncer{}
	locker := &FakeLocker{}
	d, store := newDispatcher([]string{"spam"}, dispatch.WithSyncer(syncer), dispatch.WithLocker(locker))
	send(t, d, owner, "/kwadd scam")

	reply := send(t, d, owner, "/savekeywords")

	assert.Contains(t, reply.Text, "Synced keywords: spam, scam")
	require.Equal(t, 1, syncer.CallCount())
	assert.Equal(t, []string{"spam", "scam"}, syncer.Calls[0])
	assert.Equal(t, domain.SyncClean, store.State().Status)
	assert.Equal(t, 1, locker.Locked)
	assert.Equal(t, 1, locker.Unlocked)
}

func TestDispatch_SaveKeywordsWriteFailure(t *testing.T) {
	syncer := &FakeSyncer{Err: &domain.SyncError{Kind: domain.SyncWriteFailed, Detail: "status 403: forbidden"}}
	d, store := newDispatcher([]string{"spam"}, dispatch.WithSyncer(syncer))
	send(t, d, owner, "/kwadd scam")
	before := store.List()

	reply := send(t, d, owner, "/savekeywords")

	assert.Contains(t, reply.Text, "config write")
	assert.Contains(t, reply.Text, "status 403: forbidden")
	assert.Contains(t, reply.Text, "/savekeywords to retry")
	assert.Equal(t, before, store.List())
	state := store.State()
	assert.Equal(t, domain.SyncFailed, state.Status)
	assert.Equal(t, string(domain.SyncWriteFailed), state.Reason)

	// Clearing after a failed sync still empties the list.
	send(t, d, owner, "/kwclear")
	assert.Empty(t, store.List())

	// A retry re-sends the whole current list.
	syncer.Err = nil
	send(t, d, owner, "/savekeywords")
	assert.Equal(t, domain.SyncClean, store.State().Status)
	assert.Equal(t, []string{}, syncer.Calls[1])
}

func TestDispatch_SaveKeywordsUntaggedError(t *testing.T) {
	syncer := &FakeSyncer{Err: errors.New("connection reset")}
	d, store := newDispatcher(nil, dispatch.WithSyncer(syncer))

	reply := send(t, d, owner, "/savekeywords")

	assert.Contains(t, reply.Text, "connection reset")
	assert.Equal(t, domain.SyncFailed, store.State().Status)
}

func TestDispatch_SaveKeywordsWithoutSyncer(t *testing.T) {
	d, store := newDispatcher([]string{"spam"})

	reply := send(t, d, owner, "/savekeywords")

	assert.Contains(t, reply.Text, "not configured")
	assert.Equal(t, domain.SyncClean, store.State().Status)
}

func TestDispatch_SaveKeywordsLockFailure(t *testing.T) {
	syncer := &FakeSyncer{}
	d, store := newDispatcher(nil, dispatch.WithSyncer(syncer), dispatch.WithLocker(&FakeLocker{Err: errors.New("redis down")}))

	reply := send(t, d, owner, "/savekeywords")

	assert.Contains(t, reply.Text, "sync lock")
	assert.Zero(t, syncer.CallCount())
	assert.Equal(t, domain.SyncFailed, store.State().Status)
}

func TestDispatch_StaleSnapshotStaysDirty(t *testing.T) {
	syncer := &FakeSyncer{}
	d, store := newDispatcher([]string{"spam"}, dispatch.WithSyncer(syncer))
	// Simulate an edit landing while the remote call is in flight.
	syncer.Before = func() { store.Add([]string{"late"}) }

	reply := send(t, d, owner, "/savekeywords")

	assert.Contains(t, reply.Text, "changed while saving")
	assert.Equal(t, []string{"spam"}, syncer.Calls[0])
	assert.Equal(t, domain.SyncDirty, store.State().Status)
}

func TestDispatch_AutoSync(t *testing.T) {
	syncer := &FakeSyncer{}
	d, store := newDispatcher(nil, dispatch.WithSyncer(syncer), dispatch.WithAutoSync(true))

	reply := send(t, d, owner, "/kwadd spam")

	assert.Contains(t, reply.Text, "Added keywords: spam")
	assert.Contains(t, reply.Text, "Synced keywords: spam")
	assert.Equal(t, 1, syncer.CallCount())
	assert.Equal(t, domain.SyncClean, store.State().Status)

	syncer.Err = &domain.SyncError{Kind: domain.SyncRedeployUnavailable}
	reply = send(t, d, owner, "/kwdel spam")
	assert.Contains(t, reply.Text, "Removed keywords: spam")
	assert.Contains(t, reply.Text, "redeploy (redeploy_unavailable)")
	assert.Empty(t, store.List())
	assert.Equal(t, domain.SyncFailed, store.State().Status)
}

func TestDispatch_HooksReportOutcomes(t *testing.T) {
	var events []domain.CommandEvent
	var syncs []domain.SyncEvent
	hooks := domain.Hooks{
		OnCommand: func(_ context.Context, e *domain.CommandEvent) { events = append(events, *e) },
		OnSync:    func(_ context.Context, e *domain.SyncEvent) { syncs = append(syncs, *e) },
	}
	d, _ := newDispatcher(nil, dispatch.WithHooks(hooks), dispatch.WithSyncer(&FakeSyncer{}))

	send(t, d, owner, "/kwadd a b")
	send(t, d, stranger, "/kwclear")
	send(t, d, owner, "/kwdel")
	send(t, d, owner, "/savekeywords")

	require.Len(t, events, 4)
	assert.Equal(t, domain.CommandAddKeywords, events[0].Command)
	assert.Equal(t, domain.OutcomeOK, events[0].Outcome)
	assert.Equal(t, 2, events[0].Keywords)
	assert.Equal(t, domain.OutcomeDenied, events[1].Outcome)
	assert.Equal(t, int64(strangerID), events[1].ActorID)
	assert.Equal(t, domain.OutcomeInvalid, events[2].Outcome)
	assert.Equal(t, domain.CommandPersist, events[3].Command)
	require.Len(t, syncs, 1)
	assert.Equal(t, 2, syncs[0].Keywords)
	assert.NoError(t, syncs[0].Err)
}

func TestDispatch_ConcurrentCommands(t *testing.T) {
	d, store := newDispatcher(nil)

	var wg sync.WaitGroup
	for _, text := range []string{"/kwadd a b", "/kwadd c d", "/kwadd a c", "/kwadd e", "/keywords", "/kwdel zz"} {
		wg.Add(1)
		go func(text string) {
			defer wg.Done()
			_, ok := d.Dispatch(context.Background(), domain.TextMessage{ChatID: chatID, Sender: owner, Text: text})
			assert.True(t, ok)
		}(text)
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"a", "b", "c", "d", "e"}, store.List())
}
