package worker

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/traffic-engine/internal/activity"
	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/fingerprint"
	"github.com/ignite/traffic-engine/internal/pkg/distlock"
	"github.com/ignite/traffic-engine/internal/pkg/randutil"
	"github.com/ignite/traffic-engine/internal/session"
)

// =============================================================================
// TRAFFIC SCHEDULER
// =============================================================================
// One logical timer-driven loop. Each tick picks an eligible campaign,
// builds a simulated session for it, records the hit and re-arms exactly
// one future tick. Ticks never overlap: the next one is armed only when
// the current one has finished.

const (
	// DefaultTickTimeout bounds the store calls made by one tick.
	DefaultTickTimeout = 5 * time.Second
)

var (
	// ErrLockHeld is returned by Start when another replica owns the engine lock.
	ErrLockHeld = errors.New("engine lock held by another replica")
	// ErrInvalidEvasionMode is returned for an unknown evasion mode.
	ErrInvalidEvasionMode = errors.New("invalid evasion mode")
)

// CampaignStore is the scheduler's narrow view of the campaign store: it
// reads the active set and writes hit counters, nothing else.
type CampaignStore interface {
	ListActive(ctx context.Context) ([]domain.Campaign, error)
	IncrementHits(ctx context.Context, id string) (int64, error)
}

// SchedulerOptions carries optional collaborators. Zero values get defaults.
type SchedulerOptions struct {
	Clock       Clock
	Rand        randutil.Source
	Pacing      PacingConfig
	EvasionMode domain.EvasionMode
	Log         *activity.Log
	Events      *activity.EventBuffer
	// Lock, when set, is acquired on Start, extended every tick and
	// released on Stop.
	Lock        distlock.DistLock
	TickTimeout time.Duration
}

// TrafficScheduler drives simulated hits against active campaigns.
type TrafficScheduler struct {
	store   CampaignStore
	orch    *session.Orchestrator
	clock   Clock
	rng     randutil.Source
	pacing  PacingConfig
	log     *activity.Log
	events  *activity.EventBuffer
	lock    distlock.DistLock
	timeout time.Duration

	// tickMu serializes tick bodies, including a stale tick racing a
	// restarted loop.
	tickMu sync.Mutex

	mu         sync.RWMutex
	running    bool
	generation uint64
	timer      Timer
	mode       domain.EvasionMode
	currentJob *domain.CurrentJob
	nextDelay  time.Duration
	warned     map[string]bool

	ticksRun      int64
	hitsGenerated int64
	errors        int64
}

// NewTrafficScheduler creates a stopped scheduler.
func NewTrafficScheduler(store CampaignStore, orch *session.Orchestrator, opts SchedulerOptions) *TrafficScheduler {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Rand == nil {
		opts.Rand = randutil.Default()
	}
	if _, ok := domain.ParseEvasionMode(string(opts.EvasionMode)); !ok {
		opts.EvasionMode = domain.EvasionStandard
	}
	if opts.Log == nil {
		opts.Log = activity.NewLog(activity.DefaultLogRetention, opts.Clock.Now)
	}
	if opts.Events == nil {
		opts.Events = activity.NewEventBuffer(activity.DefaultEventRetention)
	}
	if opts.TickTimeout <= 0 {
		opts.TickTimeout = DefaultTickTimeout
	}
	return &TrafficScheduler{
		store:   store,
		orch:    orch,
		clock:   opts.Clock,
		rng:     opts.Rand,
		pacing:  opts.Pacing.withDefaults(),
		log:     opts.Log,
		events:  opts.Events,
		lock:    opts.Lock,
		timeout: opts.TickTimeout,
		mode:    opts.EvasionMode,
		warned:  make(map[string]bool),
	}
}

// Start moves the scheduler to Running and arms the first tick after one
// base delay. Starting a running scheduler is a no-op.
func (s *TrafficScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return nil
	}
	if s.lock != nil {
		ok, err := s.lock.Acquire(ctx)
		if err != nil {
			return fmt.Errorf("acquire engine lock: %w", err)
		}
		if !ok {
			return ErrLockHeld
		}
	}

	s.running = true
	s.generation++
	s.warned = make(map[string]bool)
	delay := BaseDelay(s.mode, s.rng)
	s.armLocked(delay)

	log.Printf("[TrafficScheduler] Started (mode=%s, first tick in %v)", s.mode, delay)
	return nil
}

// Stop moves the scheduler to Stopped, cancels the pending tick and clears
// the current job. A tick already in flight is waited for, so nothing is
// recorded after Stop returns and the engine lock is released only once the
// loop is idle. Stopping a stopped scheduler is a no-op.
func (s *TrafficScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.haltLocked()
	lock := s.lock
	s.mu.Unlock()

	// The generation bump above makes an in-flight tick bail before its
	// next write; taking tickMu waits for it to get there.
	s.tickMu.Lock()
	log.Printf("[TrafficScheduler] Stopped")
	s.tickMu.Unlock()

	if lock != nil {
		if err := lock.Release(ctx); err != nil {
			return fmt.Errorf("release engine lock: %w", err)
		}
	}
	return nil
}

func (s *TrafficScheduler) haltLocked() {
	s.running = false
	s.generation++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.currentJob = nil
	s.nextDelay = 0
}

// Running reports whether the loop is active.
func (s *TrafficScheduler) Running() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// SetEvasionMode changes the live evasion mode. It applies from the next
// delay computation on.
func (s *TrafficScheduler) SetEvasionMode(mode domain.EvasionMode) error {
	m, ok := domain.ParseEvasionMode(string(mode))
	if !ok {
		return fmt.Errorf("%w: %q", ErrInvalidEvasionMode, mode)
	}
	s.mu.Lock()
	prev := s.mode
	s.mode = m
	s.mu.Unlock()
	if prev != m {
		log.Printf("[TrafficScheduler] Evasion mode %s -> %s", prev, m)
	}
	return nil
}

// EvasionMode returns the live evasion mode.
func (s *TrafficScheduler) EvasionMode() domain.EvasionMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mode
}

// CurrentJob returns a copy of the current job, or nil when idle or stopped.
func (s *TrafficScheduler) CurrentJob() *domain.CurrentJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.currentJob == nil {
		return nil
	}
	job := *s.currentJob
	return &job
}

// Status returns a point-in-time view of the scheduler.
func (s *TrafficScheduler) Status() domain.EngineStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := domain.EngineStatus{
		State:         domain.EngineStopped,
		EvasionMode:   s.mode,
		NextDelay:     s.nextDelay.Milliseconds(),
		TicksRun:      s.ticksRun,
		HitsGenerated: s.hitsGenerated,
		Errors:        s.errors,
	}
	if s.running {
		st.State = domain.EngineRunning
	}
	if s.currentJob != nil {
		job := *s.currentJob
		st.CurrentJob = &job
	}
	return st
}

// Log returns the engine's work/error log.
func (s *TrafficScheduler) Log() *activity.Log { return s.log }

// Events returns the simulated analytics event buffer.
func (s *TrafficScheduler) Events() *activity.EventBuffer { return s.events }

func (s *TrafficScheduler) armLocked(d time.Duration) {
	gen := s.generation
	s.nextDelay = d
	s.timer = s.clock.AfterFunc(d, func() { s.tick(gen) })
}

func (s *TrafficScheduler) current(gen uint64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running && s.generation == gen
}

func (s *TrafficScheduler) tick(gen uint64) {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	if !s.current(gen) {
		return
	}

	if s.lock != nil {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.lock.Extend(ctx)
		cancel()
		if err != nil {
			s.log.Error(fmt.Sprintf("Engine lock lost, stopping: %v", err))
			log.Printf("[TrafficScheduler] Engine lock lost: %v", err)
			s.mu.Lock()
			if s.running && s.generation == gen {
				s.errors++
				s.haltLocked()
			}
			s.mu.Unlock()
			return
		}
	}

	delay, err := s.safeRun(gen)
	if err != nil {
		s.log.Error(fmt.Sprintf("Tick failed: %v", err))
		log.Printf("[TrafficScheduler] Tick failed: %v", err)
		delay = s.pacing.IdleDelay
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.errors++
	}
	if !s.running || s.generation != gen {
		return
	}
	s.ticksRun++
	s.armLocked(delay)
}

// safeRun converts a panic inside the tick body into an error so the loop
// keeps re-arming.
func (s *TrafficScheduler) safeRun(gen uint64) (delay time.Duration, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in tick: %v", r)
		}
	}()
	return s.runTick(gen)
}

func (s *TrafficScheduler) runTick(gen uint64) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	active, err := s.store.ListActive(ctx)
	if err != nil {
		return 0, fmt.Errorf("list active campaigns: %w", err)
	}
	eligible := s.eligible(active)
	if len(eligible) == 0 {
		s.mu.Lock()
		if s.running && s.generation == gen {
			s.currentJob = nil
		}
		s.mu.Unlock()
		return s.pacing.IdleDelay, nil
	}

	c := randutil.Pick(s.rng, eligible)
	target := randutil.Pick(s.rng, c.URLs)
	country := PickCountry(s.rng, c.Region)

	sess := s.orch.StartSession(session.Config{
		TargetURL:    target,
		Keyword:      c.Keyword,
		SearchEngine: c.SearchEngine,
		Depth:        max(c.Depth, 1),
		DeviceType:   fingerprint.DeviceClassForOS(c.TargetOS),
		GA4ID:        derefString(c.GA4ID),
		GA4Secret:    c.GA4APISecret,
	})

	// Stop may have landed while the store was being read.
	if !s.current(gen) {
		return 0, nil
	}
	hits, err := s.store.IncrementHits(ctx, c.ID)
	if err != nil {
		return 0, fmt.Errorf("record hit for campaign %s: %w", c.ID, err)
	}

	pattern := c.EffectivePattern()
	s.log.Work(fmt.Sprintf("Hit %s via %s/%s [%s] from %s",
		hostname(target), sess.SourceMedium.Source, sess.SourceMedium.Medium, pattern, country))

	now := s.clock.Now()
	if c.HasGA4() {
		s.events.Append(domain.AnalyticsEvent{
			ID:         uuid.New().String(),
			Name:       randutil.Pick(s.rng, domain.AnalyticsEventNames),
			CampaignID: c.ID,
			Timestamp:  now,
			Params: map[string]string{
				"page_location": target,
				"page_title":    c.Name,
				"country":       country,
				"traffic_type":  sess.SourceMedium.Medium,
				"session_id":    sess.ID,
			},
		})
	}

	s.mu.Lock()
	s.hitsGenerated++
	if s.running && s.generation == gen {
		s.currentJob = &domain.CurrentJob{
			CampaignID:   c.ID,
			CampaignName: c.Name,
			URL:          target,
			CountryCode:  country,
			Flag:         Flag(country),
			StartedAt:    now,
		}
	}
	mode := s.mode
	s.mu.Unlock()

	// Hit and log are committed above; dispatch outcome only ever adds an
	// error entry.
	s.orch.Dispatch(sess, func(err error) {
		s.log.Error(fmt.Sprintf("Analytics dispatch failed for %s: %v", c.Name, err))
		s.mu.Lock()
		s.errors++
		s.mu.Unlock()
	})

	return s.pacing.NextDelay(pattern, BaseDelay(mode, s.rng), hits, s.rng), nil
}

// eligible filters the active set, warning once per run about active
// campaigns that have no URLs.
func (s *TrafficScheduler) eligible(active []domain.Campaign) []domain.Campaign {
	out := make([]domain.Campaign, 0, len(active))
	for _, c := range active {
		if c.Eligible() {
			out = append(out, c)
			continue
		}
		if c.IsActive() {
			s.warnOnce(c)
		}
	}
	return out
}

func (s *TrafficScheduler) warnOnce(c domain.Campaign) {
	s.mu.Lock()
	seen := s.warned[c.ID]
	s.warned[c.ID] = true
	s.mu.Unlock()
	if seen {
		return
	}
	s.log.Error(fmt.Sprintf("Campaign %q is active but has no URLs; skipped", c.Name))
	log.Printf("[TrafficScheduler] Skipping campaign %s: active with no URLs", c.ID)
}

func hostname(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
