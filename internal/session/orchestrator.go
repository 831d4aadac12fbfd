// Package session composes the identity, referrer and behavior generators
// into one simulated session per hit, and hands analytics payloads to an
// emitter without blocking the caller.
package session

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/traffic-engine/internal/behavior"
	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/fingerprint"
	"github.com/ignite/traffic-engine/internal/pkg/randutil"
	"github.com/ignite/traffic-engine/internal/referrer"
)

// DefaultDispatchTimeout bounds a single emitter call.
const DefaultDispatchTimeout = 5 * time.Second

// navigationCatalog is the fixed set of paths navigation hops draw from.
var navigationCatalog = []string{"/about", "/blog", "/contact", "/services", "/products"}

// Emitter delivers analytics payloads. Implementations must be safe for
// concurrent use.
type Emitter interface {
	Emit(ctx context.Context, p domain.AnalyticsPayload) error
}

// Config describes one simulated hit.
type Config struct {
	TargetURL    string
	Keyword      string
	SearchEngine string
	Depth        int
	DeviceType   domain.DeviceClass
	GA4ID        string
	GA4Secret    string
}

// Orchestrator builds sessions. Generators are injected once and shared
// by every session.
type Orchestrator struct {
	fingerprints *fingerprint.Generator
	referrers    *referrer.Generator
	behaviors    *behavior.Generator
	emitter      Emitter
	rng          randutil.Source
	timeout      time.Duration
	now          func() time.Time

	wg sync.WaitGroup
}

// Options carries the optional orchestrator collaborators.
type Options struct {
	Emitter         Emitter
	DispatchTimeout time.Duration
	Rand            randutil.Source
	Now             func() time.Time
}

// NewOrchestrator wires the three generators together.
func NewOrchestrator(fp *fingerprint.Generator, ref *referrer.Generator, beh *behavior.Generator, opts Options) *Orchestrator {
	if opts.DispatchTimeout <= 0 {
		opts.DispatchTimeout = DefaultDispatchTimeout
	}
	if opts.Rand == nil {
		opts.Rand = randutil.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		fingerprints: fp,
		referrers:    ref,
		behaviors:    beh,
		emitter:      opts.Emitter,
		rng:          opts.Rand,
		timeout:      opts.DispatchTimeout,
		now:          opts.Now,
	}
}

// StartSession assembles a session for cfg. When both GA4 credentials are
// present the session carries an analytics payload ready for Dispatch.
func (o *Orchestrator) StartSession(cfg Config) domain.SimulatedSession {
	fp := o.fingerprints.Generate(cfg.DeviceType)
	ref := o.referrers.OrganicReferrer(cfg.Keyword, cfg.SearchEngine)
	beh := o.behaviors.SessionProfile()
	sm := referrer.SourceMedium(cfg.SearchEngine)

	s := domain.SimulatedSession{
		ID:             uuid.New().String(),
		Fingerprint:    fp,
		Referrer:       ref,
		Behavior:       beh,
		SourceMedium:   sm,
		NavigationPath: o.NavigationPath(cfg.Depth),
		CreatedAt:      o.now(),
	}
	if cfg.GA4ID != "" && cfg.GA4Secret != "" {
		p := o.buildPayload(cfg, ref, sm)
		s.Payload = &p
	}
	return s
}

func (o *Orchestrator) buildPayload(cfg Config, ref string, sm domain.SourceMedium) domain.AnalyticsPayload {
	return domain.AnalyticsPayload{
		MeasurementID: cfg.GA4ID,
		ClientID:      uuid.New().String(),
		Events: []domain.PayloadEvent{{
			Name: domain.EventPageView,
			Params: map[string]any{
				"page_location":        cfg.TargetURL,
				"page_referrer":        ref,
				"campaign_source":      sm.Source,
				"campaign_medium":      domain.MediumOrganic,
				"engagement_time_msec": randutil.Range64(o.rng, 30000, 90000),
			},
		}},
	}
}

// Dispatch hands the session's payload to the emitter in the background
// and returns immediately. onError, if non-nil, is called from the
// background goroutine when delivery fails. Returns false when there is
// nothing to dispatch.
func (o *Orchestrator) Dispatch(s domain.SimulatedSession, onError func(error)) bool {
	if s.Payload == nil || o.emitter == nil {
		return false
	}
	payload := *s.Payload

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), o.timeout)
		defer cancel()

		if err := o.emitter.Emit(ctx, payload); err != nil {
			log.Printf("[SessionOrchestrator] analytics dispatch failed for session %s: %v", s.ID, err)
			if onError != nil {
				onError(err)
			}
		}
	}()
	return true
}

// Wait blocks until all in-flight dispatches have finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// NavigationPath draws depth paths with replacement and drops repeats, so
// the result can be shorter than depth.
func (o *Orchestrator) NavigationPath(depth int) []string {
	seen := make(map[string]bool, depth)
	var path []string
	for i := 0; i < depth; i++ {
		p := randutil.Pick(o.rng, navigationCatalog)
		if seen[p] {
			continue
		}
		seen[p] = true
		path = append(path, p)
	}
	return path
}

// SuccessMetrics returns the fixed reference figures.
func SuccessMetrics() domain.SuccessMetrics {
	return domain.SuccessMetrics{
		OrganicClassificationProbability: 0.98,
		HumanBehaviorScore:               95,
		SEOImpactFactor:                  1.2,
	}
}
