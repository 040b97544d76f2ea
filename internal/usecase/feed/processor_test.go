package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/usecase/notify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/* ───────── fakes ───────── */

type stubEventRepo struct {
	mu     sync.Mutex
	seen   map[string]bool
	nextID int64
	err    error
	failOn string
}

func newStubEventRepo(known ...string) *stubEventRepo {
	r := &stubEventRepo{seen: map[string]bool{}}
	for _, k := range known {
		r.seen[k] = true
	}
	return r
}

func (r *stubEventRepo) CreateIfAbsent(_ context.Context, ev *entity.Event) (bool, error) {
	if r.err != nil && (r.failOn == "" || r.failOn == ev.FeatureID) {
		return false, r.err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.seen[ev.FeatureID] {
		return false, nil
	}
	r.seen[ev.FeatureID] = true
	r.nextID++
	ev.ID = r.nextID
	ev.CreatedAt = time.Now()
	return true, nil
}

func (r *stubEventRepo) ListByPublisher(context.Context, int64, int) ([]*entity.Event, error) {
	return nil, nil
}

type stubSubRepo struct {
	subs    []*entity.Subscription
	err     error
	failAt  int // lookup number that returns err; 0 means every lookup
	lookups int
}

func (r *stubSubRepo) ActiveForPublisher(context.Context, int64) ([]*entity.Subscription, error) {
	r.lookups++
	if r.err != nil && (r.failAt == 0 || r.failAt == r.lookups) {
		return nil, r.err
	}
	var out []*entity.Subscription
	for _, s := range r.subs {
		if s.Active() {
			out = append(out, s)
		}
	}
	return out, nil
}
func (r *stubSubRepo) Create(context.Context, *entity.Subscription) error { return nil }
func (r *stubSubRepo) Deactivate(context.Context, int64, time.Time) (bool, error) {
	return true, nil
}

type sendCall struct {
	subID, eventID int64
}

// recordingSender fails for the subscription ids in failFor and unsubscribes
// the ones in unsubscribe, like the real dispatcher does.
type recordingSender struct {
	mu          sync.Mutex
	calls       []sendCall
	failFor     map[int64]bool
	unsubscribe map[int64]bool
}

func (s *recordingSender) Send(_ context.Context, sub *entity.Subscription, ev *entity.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, sendCall{subID: sub.ID, eventID: ev.ID})
	if s.unsubscribe[sub.ID] {
		now := time.Now()
		sub.UnsubscribedAt = &now
		return &notify.NotificationFailure{SubscriptionID: sub.ID, Outcome: notify.PermanentFailure, Unsubscribed: true}
	}
	if s.failFor[sub.ID] {
		return &notify.NotificationFailure{SubscriptionID: sub.ID, Outcome: notify.TransientFailure, Err: errors.New("timeout")}
	}
	return nil
}

func (s *recordingSender) callsFor(eventID int64) []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []int64
	for _, c := range s.calls {
		if c.eventID == eventID {
			ids = append(ids, c.subID)
		}
	}
	return ids
}

func features(ids ...string) []entity.Feature {
	out := make([]entity.Feature, 0, len(ids))
	for _, id := range ids {
		out = append(out, entity.Feature{ID: id, Title: "title " + id})
	}
	return out
}

var pub = &entity.Publisher{ID: 1, Title: "Water", City: "Springfield"}

func subscriptions(ids ...int64) []*entity.Subscription {
	out := make([]*entity.Subscription, 0, len(ids))
	for _, id := range ids {
		out = append(out, &entity.Subscription{ID: id, PublisherID: 1, Channel: entity.ChannelSMS, Address: "+1"})
	}
	return out
}

/* ───────── tests ───────── */

func TestProcess_CreatesEventsAndDispatchesToAllSubscribers(t *testing.T) {
	events := newStubEventRepo()
	subs := &stubSubRepo{subs: subscriptions(1, 2, 3)}
	sender := &recordingSender{}
	p := NewProcessor(events, subs, sender, 2, nil)

	created, err := p.Process(context.Background(), features("a", "b"), pub)

	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.Equal(t, "a", created[0].FeatureID)
	assert.Equal(t, "title a", created[0].Title)
	assert.Equal(t, int64(1), created[0].PublisherID)
	assert.ElementsMatch(t, []int64{1, 2, 3}, sender.callsFor(created[0].ID))
	assert.ElementsMatch(t, []int64{1, 2, 3}, sender.callsFor(created[1].ID))
}

func TestProcess_SkipsKnownFeatures(t *testing.T) {
	events := newStubEventRepo("a")
	sender := &recordingSender{}
	p := NewProcessor(events, &stubSubRepo{subs: subscriptions(1)}, sender, 0, nil)

	created, err := p.Process(context.Background(), features("a", "b"), pub)

	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, "b", created[0].FeatureID)
	assert.Len(t, sender.calls, 1)
}

func TestProcess_NoNewEvents(t *testing.T) {
	subs := &stubSubRepo{subs: subscriptions(1)}
	sender := &recordingSender{}
	p := NewProcessor(newStubEventRepo("a", "b"), subs, sender, 0, nil)

	created, err := p.Process(context.Background(), features("a", "b"), pub)

	require.NoError(t, err)
	assert.Empty(t, created)
	assert.Empty(t, sender.calls)
	assert.Equal(t, 1, subs.lookups)
}

func TestProcess_SendFailuresDoNotAbort(t *testing.T) {
	sender := &recordingSender{failFor: map[int64]bool{2: true}}
	p := NewProcessor(newStubEventRepo(), &stubSubRepo{subs: subscriptions(1, 2, 3)}, sender, 0, nil)

	created, err := p.Process(context.Background(), features("a", "b"), pub)

	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.ElementsMatch(t, []int64{1, 2, 3}, sender.callsFor(created[1].ID))
}

func TestProcess_UnsubscribedExcludedFromLaterEvents(t *testing.T) {
	sender := &recordingSender{unsubscribe: map[int64]bool{2: true}}
	p := NewProcessor(newStubEventRepo(), &stubSubRepo{subs: subscriptions(1, 2)}, sender, 0, nil)

	created, err := p.Process(context.Background(), features("a", "b"), pub)

	require.NoError(t, err)
	require.Len(t, created, 2)
	assert.ElementsMatch(t, []int64{1, 2}, sender.callsFor(created[0].ID))
	assert.ElementsMatch(t, []int64{1}, sender.callsFor(created[1].ID))
}

func TestProcess_PersistenceErrorsPropagate(t *testing.T) {
	dbErr := errors.New("disk full")

	t.Run("create event", func(t *testing.T) {
		events := newStubEventRepo()
		events.err, events.failOn = dbErr, "b"
		p := NewProcessor(events, &stubSubRepo{}, &recordingSender{}, 0, nil)

		created, err := p.Process(context.Background(), features("a", "b", "c"), pub)

		assert.ErrorIs(t, err, dbErr)
		require.Len(t, created, 1)
		assert.Equal(t, "a", created[0].FeatureID)
	})

	t.Run("list subscriptions", func(t *testing.T) {
		p := NewProcessor(newStubEventRepo(), &stubSubRepo{err: dbErr}, &recordingSender{}, 0, nil)

		_, err := p.Process(context.Background(), features("a"), pub)

		assert.ErrorIs(t, err, dbErr)
	})
}

func TestProcess_RetryAfterSubscriptionLookupFailureNotifiesRemaining(t *testing.T) {
	events := newStubEventRepo()
	subs := &stubSubRepo{subs: subscriptions(1), err: errors.New("connection reset"), failAt: 2}
	sender := &recordingSender{}
	p := NewProcessor(events, subs, sender, 0, nil)

	created, err := p.Process(context.Background(), features("a", "b", "c"), pub)

	require.Error(t, err)
	require.Len(t, created, 1)
	assert.False(t, events.seen["b"], "feature b must stay unseen when its subscriptions could not be read")

	subs.err = nil
	retried, err := p.Process(context.Background(), features("a", "b", "c"), pub)

	require.NoError(t, err)
	require.Len(t, retried, 2)
	assert.Equal(t, "b", retried[0].FeatureID)
	assert.Equal(t, "c", retried[1].FeatureID)
	for _, ev := range append(created, retried...) {
		assert.Equal(t, []int64{1}, sender.callsFor(ev.ID), "event %s", ev.FeatureID)
	}
}

func TestProcess_KnownFeaturesShareOneSubscriptionLookup(t *testing.T) {
	subs := &stubSubRepo{subs: subscriptions(1)}
	p := NewProcessor(newStubEventRepo("a", "b"), subs, &recordingSender{}, 0, nil)

	created, err := p.Process(context.Background(), features("a", "b", "c", "d"), pub)

	require.NoError(t, err)
	require.Len(t, created, 2)
	// one lookup covers a, b and c; d needs a fresh one after c was dispatched
	assert.Equal(t, 2, subs.lookups)
}

func TestProcess_NilPublisher(t *testing.T) {
	p := NewProcessor(newStubEventRepo(), &stubSubRepo{}, &recordingSender{}, 0, nil)

	_, err := p.Process(context.Background(), features("a"), nil)

	assert.Error(t, err)
}
