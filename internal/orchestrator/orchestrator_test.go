package orchestrator_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/shaiso/Autopost/internal/domain"
	"github.com/shaiso/Autopost/internal/orchestrator"
	"github.com/shaiso/Autopost/internal/repo"
	"github.com/shaiso/Autopost/internal/scheduler"
	"github.com/shaiso/Autopost/internal/telemetry"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// --- Fakes ---

type reply struct {
	result *domain.PublishResult
	err    error
	panic  bool
}

func ok(id string) reply {
	return reply{result: &domain.PublishResult{Success: true, ExternalID: id, Link: "https://blog.example.com/?p=" + id}}
}

func rejected(msg string) reply {
	return reply{result: &domain.PublishResult{Success: false, Message: msg}}
}

// fakePublisher отвечает по сценарию; последний ответ повторяется.
type fakePublisher struct {
	mu      sync.Mutex
	replies []reply
	bundles []domain.ProcessedContent

	// hold — если задан, Publish ждёт закрытия канала (ctx игнорируется).
	hold chan struct{}
	// waitCtx — Publish ждёт отмены ctx и возвращает её ошибку.
	waitCtx bool
	started chan struct{}
}

func newFakePublisher(replies ...reply) *fakePublisher {
	return &fakePublisher{replies: replies, started: make(chan struct{}, 16)}
}

func (p *fakePublisher) Publish(ctx context.Context, _, _ string, bundle *domain.ProcessedContent) (*domain.PublishResult, error) {
	p.mu.Lock()
	p.bundles = append(p.bundles, *bundle)
	r := p.replies[0]
	if len(p.replies) > 1 {
		p.replies = p.replies[1:]
	}
	hold, waitCtx := p.hold, p.waitCtx
	p.mu.Unlock()

	p.started <- struct{}{}

	if hold != nil {
		<-hold
	}
	if waitCtx {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if r.panic {
		panic("publisher exploded")
	}
	return r.result, r.err
}

func (p *fakePublisher) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.bundles)
}

func (p *fakePublisher) lastBundle() domain.ProcessedContent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.bundles[len(p.bundles)-1]
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.WorkflowEvent
}

func (n *recordingNotifier) Notify(_ context.Context, ev domain.WorkflowEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) types() []domain.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]domain.EventType, 0, len(n.events))
	for _, ev := range n.events {
		out = append(out, ev.Type)
	}
	return out
}

func (n *recordingNotifier) all() []domain.WorkflowEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]domain.WorkflowEvent(nil), n.events...)
}

// --- Harness ---

type harness struct {
	o        *orchestrator.Orchestrator
	clock    *clockwork.FakeClock
	store    *repo.MemoryStore
	sched    *scheduler.Scheduler
	pub      *fakePublisher
	notifier *recordingNotifier
}

func newHarness(t *testing.T, pub *fakePublisher, mutate ...func(*orchestrator.Config)) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := clockwork.NewFakeClockAt(t0)
	store := repo.NewMemoryStore()
	sched := scheduler.New(scheduler.Config{Clock: clock, Logger: logger})
	notifier := &recordingNotifier{}

	cfg := orchestrator.Config{
		Store:     store,
		Scheduler: sched,
		Publisher: pub,
		Notifier:  notifier,
		Clock:     clock,
		Metrics:   telemetry.NewMetrics(prometheus.NewRegistry()),
		Logger:    logger,
	}
	for _, m := range mutate {
		m(&cfg)
	}

	o := orchestrator.New(cfg)
	require.NoError(t, o.Start(context.Background()))
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = o.Stop(ctx)
	})

	return &harness{o: o, clock: clock, store: store, sched: sched, pub: pub, notifier: notifier}
}

func spec() domain.WorkflowSpec {
	return domain.WorkflowSpec{
		UserID:       "u1",
		ConnectionID: "conn-1",
		Title:        "Hello",
		Content:      "<p>Body text for the post.</p>",
	}
}

func (h *harness) get(t *testing.T, id uuid.UUID) *domain.Workflow {
	t.Helper()
	w, err := h.o.Get(context.Background(), id)
	require.NoError(t, err)
	return w
}

func (h *harness) waitStatus(t *testing.T, id uuid.UUID, status domain.WorkflowStatus) *domain.Workflow {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.get(t, id).Status == status
	}, 5*time.Second, 2*time.Millisecond, "workflow never reached %s", status)
	return h.get(t, id)
}

func (h *harness) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return h.sched.Len() == 0 }, 5*time.Second, 2*time.Millisecond)
}

func (h *harness) waitTimer(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.clock.BlockUntilContext(ctx, 1))
}

func assertCompletedAtMatchesStatus(t *testing.T, w *domain.Workflow) {
	t.Helper()
	assert.Equal(t, w.Status == domain.StatusCompleted, w.CompletedAt != nil,
		"completed_at must be set iff status is completed (status=%s)", w.Status)
}

// --- Scenarios ---

func TestFailTwiceThenSucceed(t *testing.T) {
	h := newHarness(t, newFakePublisher(rejected("boom 1"), reply{err: errors.New("boom 2")}, ok("42")))
	ctx := context.Background()

	w, err := h.o.Submit(ctx, spec())
	require.NoError(t, err)

	// Первая неудача: повтор через 30s.
	h.waitTimer(t)
	got := h.get(t, w.ID)
	assert.Equal(t, domain.StatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "boom 1", *got.ErrorMessage)
	assertCompletedAtMatchesStatus(t, got)

	tasks := h.o.Outstanding()
	require.Len(t, tasks, 1)
	assert.Equal(t, scheduler.KindRetry, tasks[0].Kind)
	assert.Equal(t, 30*time.Second, tasks[0].DueAt.Sub(h.clock.Now()))

	// Вторая неудача: повтор через 60s.
	h.clock.Advance(30 * time.Second)
	h.waitTimer(t)
	got = h.get(t, w.ID)
	assert.Equal(t, 2, got.RetryCount)
	assert.Equal(t, "boom 2", *got.ErrorMessage)

	tasks = h.o.Outstanding()
	require.Len(t, tasks, 1)
	assert.Equal(t, 60*time.Second, tasks[0].DueAt.Sub(h.clock.Now()))

	// Успех.
	h.clock.Advance(60 * time.Second)
	got = h.waitStatus(t, w.ID, domain.StatusCompleted)
	h.waitIdle(t)

	assert.Equal(t, 2, got.RetryCount)
	assert.Nil(t, got.ErrorMessage)
	require.NotNil(t, got.ExternalID)
	assert.Equal(t, "42", *got.ExternalID)
	assert.Equal(t, "https://blog.example.com/?p=42", got.Link)
	assertCompletedAtMatchesStatus(t, got)
	assert.Equal(t, 3, h.pub.calls())

	events := h.notifier.all()
	require.Len(t, events, 3)
	assert.Equal(t, domain.EventRetryScheduled, events[0].Type)
	assert.Equal(t, 30, events[0].RetryInSec)
	assert.Equal(t, domain.EventRetryScheduled, events[1].Type)
	assert.Equal(t, 60, events[1].RetryInSec)
	assert.Equal(t, domain.EventCompleted, events[2].Type)
	assert.Equal(t, "42", events[2].ExternalID)
}

func TestFailuresExhaustRetries(t *testing.T) {
	h := newHarness(t, newFakePublisher(rejected("nope")))
	ctx := context.Background()

	w, err := h.o.Submit(ctx, spec())
	require.NoError(t, err)

	h.waitTimer(t)
	h.clock.Advance(30 * time.Second)
	h.waitTimer(t)
	h.clock.Advance(60 * time.Second)

	got := h.waitStatus(t, w.ID, domain.StatusFailed)
	h.waitIdle(t)

	assert.Equal(t, 3, got.RetryCount)
	assert.LessOrEqual(t, got.RetryCount, got.MaxRetries)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "nope", *got.ErrorMessage)
	assertCompletedAtMatchesStatus(t, got)
	assert.Empty(t, h.o.Outstanding())

	// Больше ничего не взводится.
	h.clock.Advance(time.Hour)
	assert.Equal(t, 3, h.pub.calls())
	assert.Equal(t, []domain.EventType{
		domain.EventRetryScheduled,
		domain.EventRetryScheduled,
		domain.EventFailed,
	}, h.notifier.types())
}

func TestScheduledPublishTime(t *testing.T) {
	h := newHarness(t, newFakePublisher(ok("7")))
	ctx := context.Background()

	s := spec()
	at := t0.Add(5 * time.Minute)
	s.ScheduledPublishTime = &at

	w, err := h.o.Submit(ctx, s)
	require.NoError(t, err)
	h.waitTimer(t)

	tasks := h.o.Outstanding()
	require.Len(t, tasks, 1)
	assert.Equal(t, scheduler.KindScheduled, tasks[0].Kind)
	assert.Equal(t, at, tasks[0].DueAt)

	h.clock.Advance(4 * time.Minute)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, domain.StatusPending, h.get(t, w.ID).Status)
	assert.Equal(t, 0, h.pub.calls())

	h.clock.Advance(time.Minute)
	got := h.waitStatus(t, w.ID, domain.StatusCompleted)
	assertCompletedAtMatchesStatus(t, got)
	assert.Equal(t, 0, got.RetryCount)
}

func TestScheduledInPastRunsImmediately(t *testing.T) {
	h := newHarness(t, newFakePublisher(ok("1")))

	s := spec()
	past := t0.Add(-time.Hour)
	s.ScheduledPublishTime = &past

	w, err := h.o.Submit(context.Background(), s)
	require.NoError(t, err)
	h.waitStatus(t, w.ID, domain.StatusCompleted)
}

func TestTutorialBundle(t *testing.T) {
	h := newHarness(t, newFakePublisher(ok("9")))

	body := "<p>Learn how to configure the publishing pipeline step by step. " +
		"This tutorial walks through every configuration option available, explaining defaults, " +
		"tradeoffs and common mistakes that appear when teams deploy automated publishing.</p>" +
		"<h2>Installing</h2><p>Install the package.</p>" +
		"<h2>Configuring</h2><p>Edit the configuration file.</p>"

	s := spec()
	s.ContentType = domain.ContentTypeTutorial
	s.Content = body
	s.PublishImmediately = false

	w, err := h.o.Submit(context.Background(), s)
	require.NoError(t, err)
	h.waitStatus(t, w.ID, domain.StatusCompleted)

	bundle := h.pub.lastBundle()
	assert.Equal(t, domain.PostStatusDraft, bundle.Status)
	assert.Equal(t, []string{"Tutorials", "How-to"}, bundle.Categories)
	assert.NotEmpty(t, bundle.Excerpt)
	assert.LessOrEqual(t, len([]rune(bundle.Excerpt)), 160)
	assert.Equal(t, 1, strings.Count(bundle.Content, `class="table-of-contents"`))
	assert.Contains(t, bundle.Content, `<h2 id="installing">`)
	assert.NotEmpty(t, bundle.Tags)

	preview, err := h.o.Preview(context.Background(), w.ID)
	require.NoError(t, err)
	assert.Equal(t, bundle, *preview)
}

// --- Cancel ---

func TestCancelScheduled(t *testing.T) {
	h := newHarness(t, newFakePublisher(ok("1")))
	ctx := context.Background()

	s := spec()
	at := t0.Add(time.Hour)
	s.ScheduledPublishTime = &at
	w, err := h.o.Submit(ctx, s)
	require.NoError(t, err)
	h.waitTimer(t)

	cancelled, err := h.o.Cancel(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)
	h.waitIdle(t)

	got := h.get(t, w.ID)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Nil(t, got.ErrorMessage)
	assertCompletedAtMatchesStatus(t, got)

	cancelled, err = h.o.Cancel(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)

	h.clock.Advance(2 * time.Hour)
	assert.Equal(t, 0, h.pub.calls())
	assert.Equal(t, []domain.EventType{domain.EventCancelled}, h.notifier.types())
}

func TestCancelDuringPublish_ContextAware(t *testing.T) {
	pub := newFakePublisher(ok("1"))
	pub.waitCtx = true
	h := newHarness(t, pub)
	ctx := context.Background()

	w, err := h.o.Submit(ctx, spec())
	require.NoError(t, err)
	<-pub.started
	assert.Equal(t, domain.StatusProcessing, h.get(t, w.ID).Status)

	cancelled, err := h.o.Cancel(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, cancelled)
	h.waitIdle(t)

	got := h.get(t, w.ID)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Equal(t, 0, got.RetryCount)
	assert.Nil(t, got.ErrorMessage)
}

func TestCancelDuringPublish_PostAlreadyCreated(t *testing.T) {
	pub := newFakePublisher(ok("99"))
	pub.hold = make(chan struct{})
	h := newHarness(t, pub)
	ctx := context.Background()

	w, err := h.o.Submit(ctx, spec())
	require.NoError(t, err)
	<-pub.started

	cancelled, err := h.o.Cancel(ctx, w.ID)
	require.NoError(t, err)
	require.True(t, cancelled)

	close(pub.hold)
	h.waitIdle(t)

	got := h.get(t, w.ID)
	assert.Equal(t, domain.StatusCancelled, got.Status)
	assert.Nil(t, got.ExternalID)
	assertCompletedAtMatchesStatus(t, got)
}

func TestCancelTerminal(t *testing.T) {
	h := newHarness(t, newFakePublisher(ok("1")))
	ctx := context.Background()

	w, err := h.o.Submit(ctx, spec())
	require.NoError(t, err)
	before := h.waitStatus(t, w.ID, domain.StatusCompleted)
	h.waitIdle(t)

	cancelled, err := h.o.Cancel(ctx, w.ID)
	require.NoError(t, err)
	assert.False(t, cancelled)
	assert.Equal(t, before, h.get(t, w.ID))

	_, err = h.o.Cancel(ctx, uuid.New())
	assert.ErrorIs(t, err, orchestrator.ErrWorkflowNotFound)
}

// --- Start / Create ---

func TestCreateValidation(t *testing.T) {
	h := newHarness(t, newFakePublisher(ok("1")))
	ctx := context.Background()

	s := spec()
	s.Title = ""
	_, err := h.o.Create(ctx, s)
	require.ErrorIs(t, err, orchestrator.ErrValidation)
	assert.Contains(t, err.Error(), "Title")

	s = spec()
	s.ContentType = "newsletter"
	_, err = h.o.Create(ctx, s)
	assert.ErrorIs(t, err, orchestrator.ErrValidation)

	s = spec()
	s.FeaturedImageURL = "not a url"
	_, err = h.o.Create(ctx, s)
	assert.ErrorIs(t, err, orchestrator.ErrValidation)

	assert.Equal(t, 0, h.store.Len())
}

func TestCreateDefaults(t *testing.T) {
	h := newHarness(t, newFakePublisher(ok("1")), func(c *orchestrator.Config) { c.MaxRetries = 5 })

	w, err := h.o.Create(context.Background(), spec())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPending, w.Status)
	assert.Equal(t, domain.ContentTypeBlogPost, w.ContentType)
	assert.Equal(t, 5, w.MaxRetries)
	assert.Equal(t, t0, w.CreatedAt)
	assert.Equal(t, 0, h.sched.Len())
}

func TestStartWorkflow_States(t *testing.T) {
	h := newHarness(t, newFakePublisher(ok("1")))
	ctx := context.Background()

	s := spec()
	at := t0.Add(time.Hour)
	s.ScheduledPublishTime = &at
	w, err := h.o.Create(ctx, s)
	require.NoError(t, err)

	require.NoError(t, h.o.StartWorkflow(ctx, w.ID))
	assert.ErrorIs(t, h.o.StartWorkflow(ctx, w.ID), orchestrator.ErrAlreadyStarted)

	_, err = h.o.Cancel(ctx, w.ID)
	require.NoError(t, err)
	assert.ErrorIs(t, h.o.StartWorkflow(ctx, w.ID), orchestrator.ErrInvalidState)
	assert.ErrorIs(t, h.o.StartWorkflow(ctx, uuid.New()), orchestrator.ErrWorkflowNotFound)
}

func TestList(t *testing.T) {
	h := newHarness(t, newFakePublisher(ok("1")))
	ctx := context.Background()

	first, err := h.o.Create(ctx, spec())
	require.NoError(t, err)
	h.clock.Advance(time.Second)
	second, err := h.o.Create(ctx, spec())
	require.NoError(t, err)
	other := spec()
	other.UserID = "u2"
	_, err = h.o.Create(ctx, other)
	require.NoError(t, err)

	list, err := h.o.List(ctx, repo.WorkflowFilter{UserID: "u1"})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)

	list, err = h.o.List(ctx, repo.WorkflowFilter{UserID: "u1", Status: domain.StatusCompleted})
	require.NoError(t, err)
	assert.Empty(t, list)

	_, err = h.o.List(ctx, repo.WorkflowFilter{Status: "bogus"})
	assert.ErrorIs(t, err, orchestrator.ErrValidation)
}

// --- Retry ---

func TestManualRetry(t *testing.T) {
	h := newHarness(t, newFakePublisher(rejected("down"), ok("5")), func(c *orchestrator.Config) {
		c.ManualRetryLimit = 1
	})
	ctx := context.Background()

	s := spec()
	s.MaxRetries = 1
	w, err := h.o.Submit(ctx, s)
	require.NoError(t, err)
	failed := h.waitStatus(t, w.ID, domain.StatusFailed)
	assert.Equal(t, 1, failed.RetryCount)

	retried, err := h.o.Retry(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, retried.ManualRetries)

	got := h.waitStatus(t, w.ID, domain.StatusCompleted)
	assert.Equal(t, 0, got.RetryCount)
	assert.Nil(t, got.ErrorMessage)

	_, err = h.o.Retry(ctx, w.ID)
	assert.ErrorIs(t, err, orchestrator.ErrInvalidState)
}

func TestManualRetryLimit(t *testing.T) {
	h := newHarness(t, newFakePublisher(rejected("down")), func(c *orchestrator.Config) {
		c.ManualRetryLimit = 1
	})
	ctx := context.Background()

	s := spec()
	s.MaxRetries = 1
	w, err := h.o.Submit(ctx, s)
	require.NoError(t, err)
	h.waitStatus(t, w.ID, domain.StatusFailed)

	_, err = h.o.Retry(ctx, w.ID)
	require.NoError(t, err)
	h.waitStatus(t, w.ID, domain.StatusFailed)
	h.waitIdle(t)

	_, err = h.o.Retry(ctx, w.ID)
	assert.ErrorIs(t, err, orchestrator.ErrManualRetryLimit)
	assert.Equal(t, domain.StatusFailed, h.get(t, w.ID).Status)
}

// --- Faults ---

func TestPublisherPanicBecomesFailure(t *testing.T) {
	h := newHarness(t, newFakePublisher(reply{panic: true}))

	s := spec()
	s.MaxRetries = 1
	w, err := h.o.Submit(context.Background(), s)
	require.NoError(t, err)

	got := h.waitStatus(t, w.ID, domain.StatusFailed)
	require.NotNil(t, got.ErrorMessage)
	assert.Contains(t, *got.ErrorMessage, "processing panicked")
}

func TestNilResultIsFailure(t *testing.T) {
	h := newHarness(t, newFakePublisher(reply{}))

	s := spec()
	s.MaxRetries = 1
	w, err := h.o.Submit(context.Background(), s)
	require.NoError(t, err)

	got := h.waitStatus(t, w.ID, domain.StatusFailed)
	assert.Equal(t, "publisher returned no result", *got.ErrorMessage)
}

// --- Recover / stats / tracing ---

func TestRecover(t *testing.T) {
	h := newHarness(t, newFakePublisher(ok("1")))
	ctx := context.Background()

	pending := domain.NewWorkflow(spec(), 3, t0)
	interrupted := domain.NewWorkflow(spec(), 3, t0)
	interrupted.MarkProcessing(t0)
	require.NoError(t, h.store.Create(ctx, pending))
	require.NoError(t, h.store.Create(ctx, interrupted))

	armed, err := h.o.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, armed)

	h.waitStatus(t, pending.ID, domain.StatusCompleted)
	h.waitStatus(t, interrupted.ID, domain.StatusCompleted)
	require.NoError(t, h.o.ReportStats(ctx))
}

func TestTracingSpans(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))

	h := newHarness(t, newFakePublisher(ok("1")), func(c *orchestrator.Config) {
		c.Tracer = tp.Tracer("test")
	})

	w, err := h.o.Submit(context.Background(), spec())
	require.NoError(t, err)
	h.waitStatus(t, w.ID, domain.StatusCompleted)
	h.waitIdle(t)

	names := map[string]bool{}
	for _, s := range rec.Ended() {
		names[s.Name()] = true
	}
	assert.True(t, names["workflow.process"])
	assert.True(t, names["workflow.preprocess"])
	assert.True(t, names["workflow.publish"])
}

func TestStopRefusesNewWork(t *testing.T) {
	h := newHarness(t, newFakePublisher(ok("1")))
	ctx := context.Background()

	w, err := h.o.Create(ctx, spec())
	require.NoError(t, err)

	stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, h.o.Stop(stopCtx))

	assert.ErrorIs(t, h.o.StartWorkflow(ctx, w.ID), orchestrator.ErrStopped)
}
