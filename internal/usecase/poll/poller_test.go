package poll_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"testing"
	"time"

	"feedwatch/internal/domain/entity"
	"feedwatch/internal/usecase/outage"
	"feedwatch/internal/usecase/poll"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memPublisherRepo is an in-memory repository.PublisherRepository.
type memPublisherRepo struct {
	mu      sync.Mutex
	pubs    map[int64]*entity.Publisher
	openErr error
	getErr  error
}

func newMemPublisherRepo(pubs ...*entity.Publisher) *memPublisherRepo {
	r := &memPublisherRepo{pubs: map[int64]*entity.Publisher{}}
	for _, p := range pubs {
		r.pubs[p.ID] = p
	}
	return r
}

func (r *memPublisherRepo) Get(_ context.Context, id int64) (*entity.Publisher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, r.getErr
	}
	p, ok := r.pubs[id]
	if !ok {
		return nil, entity.ErrNotFound
	}
	cp := *p
	if p.Outage != nil {
		o := *p.Outage
		cp.Outage = &o
	}
	return &cp, nil
}

func (r *memPublisherRepo) ListActive(context.Context) ([]*entity.Publisher, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*entity.Publisher
	for id := int64(1); id <= int64(len(r.pubs)); id++ {
		if p, ok := r.pubs[id]; ok && p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *memPublisherRepo) ListInOutage(context.Context) ([]*entity.Publisher, error) {
	return nil, nil
}

func (r *memPublisherRepo) Create(_ context.Context, p *entity.Publisher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pubs[p.ID] = p
	return nil
}

func (r *memPublisherRepo) OpenOutage(_ context.Context, id int64, at time.Time, lastError string) (*entity.Outage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.openErr != nil {
		return nil, r.openErr
	}
	p := r.pubs[id]
	if p.Outage == nil {
		p.Outage = &entity.Outage{StartedAt: at}
	}
	p.Outage.UpdatedAt = at
	p.Outage.LastError = lastError
	o := *p.Outage
	return &o, nil
}

func (r *memPublisherRepo) CloseOutage(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.pubs[id]
	was := p.Outage != nil
	p.Outage = nil
	return was, nil
}

func (r *memPublisherRepo) outage(id int64) *entity.Outage {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pubs[id].Outage
}

type stubFetcher struct {
	page *entity.FeedPage
	err  error

	tags []string
	urls []string
}

func (f *stubFetcher) Fetch(_ context.Context, tag, pageURL string) (*entity.FeedPage, error) {
	f.tags = append(f.tags, tag)
	f.urls = append(f.urls, pageURL)
	if f.err != nil {
		return nil, f.err
	}
	p := *f.page
	p.URL = pageURL
	return &p, nil
}

// stubProcessor creates one event per feature, the way the real processor
// does for a page of unseen features.
type stubProcessor struct {
	calls int
	err   error
	known map[string]bool
}

func (p *stubProcessor) Process(_ context.Context, features []entity.Feature, pub *entity.Publisher) ([]*entity.Event, error) {
	p.calls++
	if p.err != nil {
		return nil, p.err
	}
	var out []*entity.Event
	for i, f := range features {
		if p.known[f.ID] {
			continue
		}
		out = append(out, &entity.Event{ID: int64(i + 1), PublisherID: pub.ID, FeatureID: f.ID, Title: f.Title})
	}
	return out, nil
}

type recordingEnqueuer struct {
	jobs []poll.Job
	err  error
}

func (e *recordingEnqueuer) Enqueue(_ context.Context, job poll.Job) error {
	if e.err != nil {
		return e.err
	}
	e.jobs = append(e.jobs, job)
	return nil
}

func twoFeatures(next string) *entity.FeedPage {
	return &entity.FeedPage{
		Features: []entity.Feature{
			{ID: "f-1", Title: "Main break"},
			{ID: "f-2", Title: "Boil notice"},
		},
		NextPage: next,
	}
}

type fixture struct {
	repo      *memPublisherRepo
	fetcher   *stubFetcher
	processor *stubProcessor
	enqueuer  *recordingEnqueuer
	poller    *poll.Poller
}

func newFixture(page *entity.FeedPage, fetchErr error, notificationsEnabled bool) *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		repo: newMemPublisherRepo(&entity.Publisher{
			ID: 1, Title: "Water Dept", City: "Springfield", Endpoint: "https://h.example/feed", Active: true,
		}),
		fetcher:   &stubFetcher{page: page, err: fetchErr},
		processor: &stubProcessor{},
		enqueuer:  &recordingEnqueuer{},
	}
	f.poller = poll.NewPoller(f.repo, f.fetcher, f.processor, outage.NewTracker(f.repo, logger), f.enqueuer,
		poll.Config{NotificationsEnabled: notificationsEnabled}, logger)
	return f
}

func TestPoll_SuccessSchedulesContinuation(t *testing.T) {
	f := newFixture(twoFeatures("https://h.example/page2"), nil, true)

	err := f.poller.Poll(context.Background(), poll.Job{PublisherID: 1, URL: "https://h.example/feed", PageNumber: 1})

	require.NoError(t, err)
	assert.Equal(t, 1, f.processor.calls)
	assert.Equal(t, []string{"request.publisher.1"}, f.fetcher.tags)
	assert.Nil(t, f.repo.outage(1))
	require.Len(t, f.enqueuer.jobs, 1)
	assert.Equal(t, poll.Job{PublisherID: 1, URL: "https://h.example/page2", PageNumber: 2}, f.enqueuer.jobs[0])
}

func TestPoll_EmptyURLUsesEndpoint(t *testing.T) {
	f := newFixture(twoFeatures(""), nil, true)

	require.NoError(t, f.poller.Poll(context.Background(), poll.Job{PublisherID: 1}))

	assert.Equal(t, []string{"https://h.example/feed"}, f.fetcher.urls)
	assert.Empty(t, f.enqueuer.jobs)
}

func TestPoll_CrossHostStops(t *testing.T) {
	f := newFixture(twoFeatures("https://other-host.example/page2"), nil, true)

	require.NoError(t, f.poller.Poll(context.Background(), poll.Job{PublisherID: 1, URL: "https://h.example/feed", PageNumber: 1}))

	assert.Equal(t, 1, f.processor.calls)
	assert.Empty(t, f.enqueuer.jobs)
}

func TestPoll_NoNewEventsStops(t *testing.T) {
	f := newFixture(twoFeatures("https://h.example/page2"), nil, true)
	f.processor.known = map[string]bool{"f-1": true, "f-2": true}

	require.NoError(t, f.poller.Poll(context.Background(), poll.Job{PublisherID: 1, URL: "https://h.example/feed", PageNumber: 1}))

	assert.Empty(t, f.enqueuer.jobs)
}

func TestPoll_PageCapStops(t *testing.T) {
	f := newFixture(twoFeatures("https://h.example/page11"), nil, true)

	require.NoError(t, f.poller.Poll(context.Background(), poll.Job{PublisherID: 1, URL: "https://h.example/p10", PageNumber: poll.MaxPageNumber}))

	assert.Empty(t, f.enqueuer.jobs)
}

func TestPoll_FetchFailureOpensOutage(t *testing.T) {
	fetchErr := errors.New("HTTP 503: Service Unavailable")
	f := newFixture(nil, fetchErr, true)

	err := f.poller.Poll(context.Background(), poll.Job{PublisherID: 1, URL: "https://h.example/feed", PageNumber: 1})

	require.NoError(t, err, "fetch failures are absorbed")
	out := f.repo.outage(1)
	require.NotNil(t, out)
	assert.Equal(t, fetchErr.Error(), out.LastError)
	assert.Zero(t, f.processor.calls, "no events may be created")
	assert.Empty(t, f.enqueuer.jobs)
}

func TestPoll_RepeatedFailureKeepsStartedAt(t *testing.T) {
	f := newFixture(nil, errors.New("connection refused"), true)
	job := poll.Job{PublisherID: 1, URL: "https://h.example/feed", PageNumber: 1}

	require.NoError(t, f.poller.Poll(context.Background(), job))
	first := *f.repo.outage(1)

	f.fetcher.err = errors.New("HTTP 500")
	require.NoError(t, f.poller.Poll(context.Background(), job))
	second := f.repo.outage(1)

	require.NotNil(t, second)
	assert.Equal(t, first.StartedAt, second.StartedAt)
	assert.Equal(t, "HTTP 500", second.LastError)
}

func TestPoll_SuccessAfterOutageClearsIt(t *testing.T) {
	f := newFixture(twoFeatures(""), errors.New("timeout"), true)
	job := poll.Job{PublisherID: 1, URL: "https://h.example/feed", PageNumber: 1}

	require.NoError(t, f.poller.Poll(context.Background(), job))
	require.NotNil(t, f.repo.outage(1))

	f.fetcher.err = nil
	require.NoError(t, f.poller.Poll(context.Background(), job))

	assert.Nil(t, f.repo.outage(1))
}

func TestPoll_NotificationsDisabled(t *testing.T) {
	f := newFixture(twoFeatures("https://h.example/page2"), errors.New("boom"), false)
	job := poll.Job{PublisherID: 1, URL: "https://h.example/feed", PageNumber: 1}

	require.NoError(t, f.poller.Poll(context.Background(), job))
	require.NotNil(t, f.repo.outage(1))

	f.fetcher.err = nil
	require.NoError(t, f.poller.Poll(context.Background(), job))

	assert.Zero(t, f.processor.calls)
	assert.Nil(t, f.repo.outage(1), "outage still clears while notifications are off")
	assert.Empty(t, f.enqueuer.jobs)
}

func TestPoll_PublisherNotFoundPropagates(t *testing.T) {
	f := newFixture(twoFeatures(""), nil, true)

	err := f.poller.Poll(context.Background(), poll.Job{PublisherID: 99, PageNumber: 1})

	assert.ErrorIs(t, err, poll.ErrPublisherNotFound)
	assert.Empty(t, f.fetcher.urls)
}

func TestPoll_RepositoryErrorPropagates(t *testing.T) {
	f := newFixture(twoFeatures(""), nil, true)
	dbErr := errors.New("connection reset")
	f.repo.getErr = dbErr

	err := f.poller.Poll(context.Background(), poll.Job{PublisherID: 1, PageNumber: 1})

	assert.ErrorIs(t, err, dbErr)
	assert.NotErrorIs(t, err, poll.ErrPublisherNotFound)
}

func TestPoll_ProcessorErrorPropagates(t *testing.T) {
	f := newFixture(twoFeatures("https://h.example/page2"), nil, true)
	dbErr := errors.New("insert event: disk full")
	f.processor.err = dbErr

	err := f.poller.Poll(context.Background(), poll.Job{PublisherID: 1, URL: "https://h.example/feed", PageNumber: 1})

	assert.ErrorIs(t, err, dbErr)
	assert.Empty(t, f.enqueuer.jobs)
}

func TestPoll_OutagePersistenceErrorPropagates(t *testing.T) {
	f := newFixture(nil, errors.New("HTTP 502"), true)
	dbErr := errors.New("update publisher: deadlock")
	f.repo.openErr = dbErr

	err := f.poller.Poll(context.Background(), poll.Job{PublisherID: 1, URL: "https://h.example/feed", PageNumber: 1})

	assert.ErrorIs(t, err, dbErr)
}

func TestPoll_CanceledFetchIsNotAnOutage(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f := newFixture(nil, context.Canceled, true)

	err := f.poller.Poll(ctx, poll.Job{PublisherID: 1, URL: "https://h.example/feed", PageNumber: 1})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, f.repo.outage(1))
}

func TestPoll_EnqueueFailureIsLoggedOnly(t *testing.T) {
	f := newFixture(twoFeatures("https://h.example/page2"), nil, true)
	f.enqueuer.err = errors.New("queue closed")

	err := f.poller.Poll(context.Background(), poll.Job{PublisherID: 1, URL: "https://h.example/feed", PageNumber: 1})

	assert.NoError(t, err)
}

func TestScheduleActive(t *testing.T) {
	f := newFixture(twoFeatures(""), nil, true)
	require.NoError(t, f.repo.Create(context.Background(), &entity.Publisher{ID: 2, Title: "Power", Endpoint: "https://p.example/feed", Active: true}))
	require.NoError(t, f.repo.Create(context.Background(), &entity.Publisher{ID: 3, Title: "Retired", Endpoint: "https://r.example/feed"}))

	n, err := f.poller.ScheduleActive(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, f.enqueuer.jobs, 2)
	for _, job := range f.enqueuer.jobs {
		assert.Equal(t, 1, job.PageNumber)
		assert.NotEmpty(t, job.URL, "job for publisher "+strconv.FormatInt(job.PublisherID, 10))
	}
}

func TestScheduleActive_EnqueueErrorsCollected(t *testing.T) {
	f := newFixture(twoFeatures(""), nil, true)
	f.enqueuer.err = errors.New("queue closed")

	n, err := f.poller.ScheduleActive(context.Background())

	assert.Zero(t, n)
	assert.Error(t, err)
}

// A full chain driven through SyncQueue stops at the page cap.
func TestPoll_ChainStopsAtPageCap(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := newMemPublisherRepo(&entity.Publisher{ID: 1, Title: "Water Dept", Endpoint: "https://h.example/feed", Active: true})
	fetcher := &stubFetcher{page: twoFeatures("https://h.example/next")}
	var q poll.SyncQueue
	poller := poll.NewPoller(repo, fetcher, &stubProcessor{}, outage.NewTracker(repo, logger), &q,
		poll.Config{NotificationsEnabled: true}, logger)

	job := poll.Job{PublisherID: 1, PageNumber: 1}
	pages := 0
	for ok := true; ok; job, ok = q.Next() {
		require.NoError(t, poller.Poll(context.Background(), job))
		pages++
	}

	assert.Equal(t, poll.MaxPageNumber, pages)
}
