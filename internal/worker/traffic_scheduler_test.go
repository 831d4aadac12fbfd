package worker

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ignite/traffic-engine/internal/behavior"
	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/fingerprint"
	"github.com/ignite/traffic-engine/internal/pkg/distlock"
	"github.com/ignite/traffic-engine/internal/pkg/randutil"
	"github.com/ignite/traffic-engine/internal/referrer"
	"github.com/ignite/traffic-engine/internal/repository/memory"
	"github.com/ignite/traffic-engine/internal/session"
	"github.com/ignite/traffic-engine/internal/tracking"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// HARNESS
// =============================================================================

type harness struct {
	clock *fakeClock
	repo  *memory.CampaignRepo
	rec   *tracking.Recorder
	orch  *session.Orchestrator
	sched *TrafficScheduler
}

func newOrchestrator(rng randutil.Source, emitter session.Emitter) *session.Orchestrator {
	return session.NewOrchestrator(
		fingerprint.NewGenerator(rng),
		referrer.NewGenerator(rng),
		behavior.NewGenerator(behavior.DefaultConfig(), rng),
		session.Options{Emitter: emitter, Rand: rng, DispatchTimeout: time.Second},
	)
}

func newHarness(t *testing.T, store CampaignStore, emitter session.Emitter, opts SchedulerOptions) *harness {
	t.Helper()
	h := &harness{clock: newFakeClock(), repo: memory.NewCampaignRepo(), rec: tracking.NewRecorder(0)}
	if store == nil {
		store = h.repo
	}
	if emitter == nil {
		emitter = h.rec
	}
	rng := randutil.Seeded(42)
	h.orch = newOrchestrator(rng, emitter)
	opts.Clock = h.clock
	opts.Rand = rng
	h.sched = NewTrafficScheduler(store, h.orch, opts)
	t.Cleanup(func() {
		_ = h.sched.Stop(context.Background())
		h.orch.Wait()
	})
	return h
}

func (h *harness) seed(t *testing.T, c domain.Campaign) {
	t.Helper()
	if c.Status == "" {
		c.Status = domain.CampaignActive
	}
	_, err := h.repo.Create(context.Background(), &c)
	require.NoError(t, err)
}

func (h *harness) hits(t *testing.T, id string) int64 {
	t.Helper()
	c, err := h.repo.Get(context.Background(), id)
	require.NoError(t, err)
	return c.Stats.Hits
}

func countType(entries []domain.LogEntry, typ domain.LogType) int {
	n := 0
	for _, e := range entries {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func linearCampaign(id string) domain.Campaign {
	return domain.Campaign{
		ID:             id,
		Name:           "Campaign " + id,
		Region:         "Japan",
		URLs:           []string{"https://shop.example.com/landing"},
		TrafficPattern: domain.PatternLinear,
		Keyword:        "running shoes",
		SearchEngine:   "google",
		Depth:          2,
	}
}

// =============================================================================
// END-TO-END SCENARIOS
// =============================================================================

func TestTrafficScheduler_LinearStandardThreeTicks(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{EvasionMode: domain.EvasionStandard})
	h.seed(t, linearCampaign("c1"))

	require.NoError(t, h.sched.Start(context.Background()))
	h.clock.Advance(3 * StandardDelay)

	assert.Equal(t, int64(3), h.hits(t, "c1"))
	entries := h.sched.Log().Entries()
	assert.Len(t, entries, 3)
	assert.Equal(t, 3, countType(entries, domain.LogWork))
	for _, e := range entries {
		assert.Contains(t, e.Message, "shop.example.com")
		assert.Contains(t, e.Message, "google/organic")
		assert.Contains(t, e.Message, "[Linear]")
	}
	assert.Equal(t, 0, h.sched.Events().Len())

	h.orch.Wait()
	assert.Empty(t, h.rec.Payloads())

	st := h.sched.Status()
	assert.Equal(t, domain.EngineRunning, st.State)
	assert.Equal(t, int64(1500), st.NextDelay)
	assert.Equal(t, int64(3), st.TicksRun)
	assert.Equal(t, int64(3), st.HitsGenerated)
}

func TestTrafficScheduler_GA4EventsRecorded(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{})
	c := linearCampaign("c1")
	ga4 := "G-TEST1234"
	c.GA4ID = &ga4
	c.GA4APISecret = "secret"
	h.seed(t, c)

	require.NoError(t, h.sched.Start(context.Background()))
	h.clock.Advance(3 * StandardDelay)

	events := h.sched.Events().Events()
	require.Len(t, events, 3)
	for _, e := range events {
		assert.True(t, slices.Contains(domain.AnalyticsEventNames, e.Name), "unexpected event name %q", e.Name)
		assert.Equal(t, "c1", e.CampaignID)
		assert.Equal(t, "https://shop.example.com/landing", e.Params["page_location"])
		assert.Equal(t, "JP", e.Params["country"])
		assert.Equal(t, "organic", e.Params["traffic_type"])
		assert.NotEmpty(t, e.Params["session_id"])
	}

	h.orch.Wait()
	payloads := h.rec.Payloads()
	require.Len(t, payloads, 3)
	for _, p := range payloads {
		assert.Equal(t, "G-TEST1234", p.MeasurementID)
		assert.Equal(t, "organic", p.Events[0].Params["campaign_medium"])
	}
}

func TestTrafficScheduler_IdleWithNoActiveCampaigns(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{})
	h.seed(t, domain.Campaign{ID: "p1", Name: "Paused", Status: domain.CampaignPaused, URLs: []string{"https://a.example/"}})

	require.NoError(t, h.sched.Start(context.Background()))
	h.clock.Advance(5000 * time.Millisecond)

	assert.Equal(t, int64(0), h.hits(t, "p1"))
	assert.Equal(t, 0, h.sched.Log().Len())
	st := h.sched.Status()
	assert.Equal(t, domain.EngineRunning, st.State)
	assert.Equal(t, int64(2000), st.NextDelay)
	assert.Nil(t, st.CurrentJob)
	assert.Equal(t, 1, h.clock.Pending())
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestTrafficScheduler_StartStopIdempotent(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{})
	ctx := context.Background()

	require.NoError(t, h.sched.Stop(ctx), "stop while stopped")
	require.NoError(t, h.sched.Start(ctx))
	require.NoError(t, h.sched.Start(ctx), "start while running")
	assert.Equal(t, 1, h.clock.Pending(), "second start must not arm another tick")

	require.NoError(t, h.sched.Stop(ctx))
	require.NoError(t, h.sched.Stop(ctx))
	assert.False(t, h.sched.Running())
	assert.Equal(t, 0, h.clock.Pending())
}

func TestTrafficScheduler_StopCancelsPendingTick(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{})
	h.seed(t, linearCampaign("c1"))
	ctx := context.Background()

	require.NoError(t, h.sched.Start(ctx))
	h.clock.Advance(StandardDelay)
	require.Equal(t, int64(1), h.hits(t, "c1"))
	require.NotNil(t, h.sched.CurrentJob())

	require.NoError(t, h.sched.Stop(ctx))
	h.clock.Advance(10 * time.Second)

	assert.Equal(t, int64(1), h.hits(t, "c1"))
	assert.Equal(t, 1, h.sched.Log().Len())
	st := h.sched.Status()
	assert.Equal(t, domain.EngineStopped, st.State)
	assert.Nil(t, st.CurrentJob)
	assert.Equal(t, int64(0), st.NextDelay)
}

func TestTrafficScheduler_StaleTickIsIgnored(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{})
	h.seed(t, linearCampaign("c1"))
	ctx := context.Background()

	require.NoError(t, h.sched.Start(ctx))
	h.sched.mu.RLock()
	staleGen := h.sched.generation
	h.sched.mu.RUnlock()

	// A callback that escaped Stop (already fired on a real clock) must
	// observe Stopped and do nothing.
	require.NoError(t, h.sched.Stop(ctx))
	h.sched.tick(staleGen)
	assert.Equal(t, int64(0), h.hits(t, "c1"))
	assert.Equal(t, 0, h.sched.Log().Len())

	// Same after a restart: the old generation stays dead.
	require.NoError(t, h.sched.Start(ctx))
	h.sched.tick(staleGen)
	assert.Equal(t, int64(0), h.hits(t, "c1"))
	assert.Equal(t, 1, h.clock.Pending())
}

// =============================================================================
// TICK SEMANTICS
// =============================================================================

func TestTrafficScheduler_ExactlyOneHitPerTick(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{})
	ids := []string{"a", "b", "c"}
	for _, id := range ids {
		h.seed(t, linearCampaign(id))
	}

	total := func() int64 {
		var sum int64
		for _, id := range ids {
			sum += h.hits(t, id)
		}
		return sum
	}

	require.NoError(t, h.sched.Start(context.Background()))
	for i := 1; i <= 20; i++ {
		h.clock.Advance(StandardDelay)
		require.Equal(t, int64(i), total(), "after tick %d", i)
	}
	assert.Equal(t, 20, h.sched.Log().Len())
}

func TestTrafficScheduler_PauseTakesEffectNextTick(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{})
	h.seed(t, linearCampaign("c1"))
	ctx := context.Background()

	require.NoError(t, h.sched.Start(ctx))
	h.clock.Advance(StandardDelay)
	require.Equal(t, int64(1), h.hits(t, "c1"))

	require.NoError(t, h.repo.UpdateStatus(ctx, "c1", domain.CampaignPaused))
	h.clock.Advance(StandardDelay)

	assert.Equal(t, int64(1), h.hits(t, "c1"))
	assert.Nil(t, h.sched.CurrentJob())
	assert.Equal(t, int64(2000), h.sched.Status().NextDelay)
}

func TestTrafficScheduler_CampaignWithoutURLsWarnsOncePerRun(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{})
	h.seed(t, domain.Campaign{ID: "broken", Name: "Broken", URLs: nil})
	ctx := context.Background()

	require.NoError(t, h.sched.Start(ctx))
	h.clock.Advance(10 * time.Second)

	entries := h.sched.Log().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.LogError, entries[0].Type)
	assert.Contains(t, entries[0].Message, "Broken")
	assert.Equal(t, int64(0), h.hits(t, "broken"))
	assert.True(t, h.sched.Running())

	require.NoError(t, h.sched.Stop(ctx))
	require.NoError(t, h.sched.Start(ctx))
	h.clock.Advance(10 * time.Second)
	assert.Equal(t, 2, h.sched.Log().Len())
}

// staleStore returns a fixed "active" set, as a lagging replica read might.
type staleStore struct {
	campaigns []domain.Campaign
	hits      map[string]int64
}

func (s *staleStore) ListActive(context.Context) ([]domain.Campaign, error) {
	return s.campaigns, nil
}

func (s *staleStore) IncrementHits(_ context.Context, id string) (int64, error) {
	s.hits[id]++
	return s.hits[id], nil
}

func TestTrafficScheduler_OnlyEligibleCampaignsAreHit(t *testing.T) {
	paused := linearCampaign("paused")
	paused.Status = domain.CampaignPaused
	live := linearCampaign("live")
	live.Status = domain.CampaignActive
	store := &staleStore{campaigns: []domain.Campaign{paused, live}, hits: map[string]int64{}}
	h := newHarness(t, store, nil, SchedulerOptions{})

	require.NoError(t, h.sched.Start(context.Background()))
	h.clock.Advance(5 * StandardDelay)

	assert.Equal(t, int64(5), store.hits["live"])
	assert.Zero(t, store.hits["paused"])
	assert.Equal(t, 0, countType(h.sched.Log().Entries(), domain.LogError), "paused campaigns are not integrity warnings")
}

func TestTrafficScheduler_CurrentJobProjection(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{})
	h.seed(t, linearCampaign("c1"))

	require.NoError(t, h.sched.Start(context.Background()))
	h.clock.Advance(StandardDelay)

	job := h.sched.CurrentJob()
	require.NotNil(t, job)
	assert.Equal(t, "c1", job.CampaignID)
	assert.Equal(t, "Campaign c1", job.CampaignName)
	assert.Equal(t, "https://shop.example.com/landing", job.URL)
	assert.Equal(t, "JP", job.CountryCode)
	assert.Equal(t, Flag("JP"), job.Flag)
	assert.Equal(t, h.clock.Now(), job.StartedAt)
}

func TestTrafficScheduler_UnknownRegionFallsBackToUS(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{})
	c := linearCampaign("c1")
	c.Region = ""
	h.seed(t, c)

	require.NoError(t, h.sched.Start(context.Background()))
	h.clock.Advance(StandardDelay)

	job := h.sched.CurrentJob()
	require.NotNil(t, job)
	assert.Equal(t, "US", job.CountryCode)
	assert.True(t, strings.HasSuffix(h.sched.Log().Entries()[0].Message, "from US"))
}

func TestTrafficScheduler_EvasionModeIsLive(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{})
	h.seed(t, linearCampaign("c1"))

	require.NoError(t, h.sched.Start(context.Background()))
	require.NoError(t, h.sched.SetEvasionMode(domain.EvasionGhost))
	assert.Equal(t, domain.EvasionGhost, h.sched.EvasionMode())

	h.clock.Advance(StandardDelay)
	require.Equal(t, int64(1), h.hits(t, "c1"))
	next := h.sched.Status().NextDelay
	assert.GreaterOrEqual(t, next, int64(2500))
	assert.Less(t, next, int64(4500))

	err := h.sched.SetEvasionMode("Turbo")
	assert.ErrorIs(t, err, ErrInvalidEvasionMode)
	assert.Equal(t, domain.EvasionGhost, h.sched.EvasionMode())
}

func TestTrafficScheduler_ViralAcceleratesWithHits(t *testing.T) {
	h := newHarness(t, nil, nil, SchedulerOptions{Pacing: PacingConfig{ViralSaturationHits: 10}})
	c := linearCampaign("v1")
	c.TrafficPattern = domain.PatternViral
	h.seed(t, c)

	nextDelay := func() time.Duration {
		h.sched.mu.RLock()
		defer h.sched.mu.RUnlock()
		return h.sched.nextDelay
	}

	require.NoError(t, h.sched.Start(context.Background()))
	prev := nextDelay()
	for i := 0; i < 12; i++ {
		h.clock.Advance(prev)
		next := nextDelay()
		assert.LessOrEqual(t, next, prev)
		prev = next
	}
	assert.Equal(t, int64(12), h.hits(t, "v1"))
	assert.Equal(t, 300*time.Millisecond, prev, "saturated at 20% of 1500ms")
}

// =============================================================================
// FAILURES
// =============================================================================

type failingStore struct {
	listErr  error
	panicMsg string
}

func (f *failingStore) ListActive(context.Context) ([]domain.Campaign, error) {
	if f.panicMsg != "" {
		panic(f.panicMsg)
	}
	return nil, f.listErr
}

func (f *failingStore) IncrementHits(context.Context, string) (int64, error) {
	return 0, errors.New("unreachable")
}

func TestTrafficScheduler_StoreErrorIsCaughtAtTickBoundary(t *testing.T) {
	h := newHarness(t, &failingStore{listErr: errors.New("connection refused")}, nil, SchedulerOptions{})

	require.NoError(t, h.sched.Start(context.Background()))
	h.clock.Advance(StandardDelay)

	entries := h.sched.Log().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, domain.LogError, entries[0].Type)
	assert.Contains(t, entries[0].Message, "connection refused")

	st := h.sched.Status()
	assert.Equal(t, domain.EngineRunning, st.State)
	assert.Equal(t, int64(1), st.Errors)
	assert.Equal(t, int64(2000), st.NextDelay)
}

func TestTrafficScheduler_PanicDoesNotKillLoop(t *testing.T) {
	h := newHarness(t, &failingStore{panicMsg: "boom"}, nil, SchedulerOptions{})

	require.NoError(t, h.sched.Start(context.Background()))
	h.clock.Advance(StandardDelay + 2*2000*time.Millisecond)

	assert.True(t, h.sched.Running())
	assert.Equal(t, 3, countType(h.sched.Log().Entries(), domain.LogError))
	assert.Equal(t, 1, h.clock.Pending())
}

type brokenEmitter struct{}

func (brokenEmitter) Emit(context.Context, domain.AnalyticsPayload) error {
	return errors.New("transport unavailable")
}

func TestTrafficScheduler_DispatchFailureLoggedAfterHit(t *testing.T) {
	h := newHarness(t, nil, brokenEmitter{}, SchedulerOptions{})
	c := linearCampaign("c1")
	ga4 := "G-TEST1234"
	c.GA4ID = &ga4
	c.GA4APISecret = "secret"
	h.seed(t, c)

	require.NoError(t, h.sched.Start(context.Background()))
	h.clock.Advance(StandardDelay)
	h.orch.Wait()

	assert.Equal(t, int64(1), h.hits(t, "c1"), "hit stays committed")
	entries := h.sched.Log().Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, domain.LogWork, entries[0].Type)
	assert.Equal(t, domain.LogError, entries[1].Type)
	assert.Contains(t, entries[1].Message, "transport unavailable")
	assert.Equal(t, int64(1), h.sched.Status().Errors)
}

// blockingStore parks ListActive until released, so a tick can be caught
// in flight.
type blockingStore struct {
	inner   CampaignStore
	entered chan struct{}
	release chan struct{}
}

func newBlockingStore() *blockingStore {
	return &blockingStore{entered: make(chan struct{}, 1), release: make(chan struct{})}
}

func (b *blockingStore) ListActive(ctx context.Context) ([]domain.Campaign, error) {
	b.entered <- struct{}{}
	<-b.release
	return b.inner.ListActive(ctx)
}

func (b *blockingStore) IncrementHits(ctx context.Context, id string) (int64, error) {
	return b.inner.IncrementHits(ctx, id)
}

func TestTrafficScheduler_StopWaitsForInFlightTick(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	store := newBlockingStore()
	h := newHarness(t, store, nil, SchedulerOptions{Lock: distlock.NewRedisLock(client, "engine", 30*time.Second)})
	store.inner = h.repo
	h.seed(t, linearCampaign("c1"))
	other := distlock.NewRedisLock(client, "engine", 30*time.Second)

	require.NoError(t, h.sched.Start(ctx))
	ticked := make(chan struct{})
	go func() {
		h.clock.Advance(StandardDelay)
		close(ticked)
	}()
	<-store.entered

	stopped := make(chan error, 1)
	go func() { stopped <- h.sched.Stop(ctx) }()
	require.Eventually(t, func() bool { return !h.sched.Running() }, time.Second, time.Millisecond)

	held, err := other.Acquire(ctx)
	require.NoError(t, err)
	assert.False(t, held, "lock must stay held while a tick is in flight")
	select {
	case <-stopped:
		t.Fatal("Stop returned before the in-flight tick finished")
	default:
	}

	close(store.release)
	require.NoError(t, <-stopped)
	<-ticked

	assert.Equal(t, int64(0), h.hits(t, "c1"))
	assert.Equal(t, 0, h.sched.Log().Len())
	assert.Nil(t, h.sched.CurrentJob())
	assert.Equal(t, 0, h.clock.Pending())

	held, err = other.Acquire(ctx)
	require.NoError(t, err)
	assert.True(t, held)
}

// =============================================================================
// LEADER LOCK
// =============================================================================

func TestTrafficScheduler_LeaderLock(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	ctx := context.Background()

	a := newHarness(t, nil, nil, SchedulerOptions{Lock: distlock.NewRedisLock(client, "engine", 30*time.Second)})
	b := newHarness(t, nil, nil, SchedulerOptions{Lock: distlock.NewRedisLock(client, "engine", 30*time.Second)})

	require.NoError(t, a.sched.Start(ctx))
	assert.ErrorIs(t, b.sched.Start(ctx), ErrLockHeld)
	assert.False(t, b.sched.Running())

	require.NoError(t, a.sched.Stop(ctx))
	require.NoError(t, b.sched.Start(ctx))
	assert.True(t, b.sched.Running())
}

func TestTrafficScheduler_LockLostStopsEngine(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	lock := distlock.NewRedisLock(client, "engine", 30*time.Second)
	h := newHarness(t, nil, nil, SchedulerOptions{Lock: lock})
	h.seed(t, linearCampaign("c1"))

	require.NoError(t, h.sched.Start(context.Background()))
	mr.Del(lock.Key())
	h.clock.Advance(StandardDelay)

	assert.False(t, h.sched.Running())
	assert.Equal(t, int64(0), h.hits(t, "c1"))
	entries := h.sched.Log().Entries()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Message, "lock lost")
	assert.Equal(t, 0, h.clock.Pending())
}
