// Package behavior generates synthetic session behavior: dwell time,
// scroll patterns, mouse paths and on-page interaction sequences.
package behavior

import (
	"fmt"
	"math"
	"time"

	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/pkg/randutil"
)

const (
	// DefaultMinDwell is the lower dwell bound per page.
	DefaultMinDwell = 35 * time.Second
	// DefaultMaxDwell is the upper dwell bound per page.
	DefaultMaxDwell = 180 * time.Second
	// DefaultWordsPerMinute is the assumed reading speed.
	DefaultWordsPerMinute = 225

	actionDelayMeanMs  = 5000.0
	actionDelayFloorMs = 3000
	actionDelayCapMs   = 15000
)

// Config bounds the generated profiles.
type Config struct {
	MinDwell       time.Duration
	MaxDwell       time.Duration
	WordsPerMinute int
}

// DefaultConfig returns the stock dwell and reading-speed bounds.
func DefaultConfig() Config {
	return Config{
		MinDwell:       DefaultMinDwell,
		MaxDwell:       DefaultMaxDwell,
		WordsPerMinute: DefaultWordsPerMinute,
	}
}

func (c Config) withDefaults() Config {
	if c.MinDwell <= 0 {
		c.MinDwell = DefaultMinDwell
	}
	if c.MaxDwell < c.MinDwell {
		c.MaxDwell = c.MinDwell
		if DefaultMaxDwell > c.MaxDwell {
			c.MaxDwell = DefaultMaxDwell
		}
	}
	if c.WordsPerMinute <= 0 {
		c.WordsPerMinute = DefaultWordsPerMinute
	}
	return c
}

// Generator produces behavior profiles.
type Generator struct {
	cfg Config
	rng randutil.Source
}

// NewGenerator creates a behavior generator. Zero config fields take their
// defaults; a nil source uses the global generator.
func NewGenerator(cfg Config, rng randutil.Source) *Generator {
	if rng == nil {
		rng = randutil.Default()
	}
	return &Generator{cfg: cfg.withDefaults(), rng: rng}
}

// Config returns the effective configuration.
func (g *Generator) Config() Config { return g.cfg }

// SessionProfile generates a full session: 3-5 pages, per-page scroll,
// pointer and copy events, and a bounce-rate estimate.
func (g *Generator) SessionProfile() domain.SessionBehavior {
	pages := randutil.Between(g.rng, 3, 5)
	duration := g.cfg.MinDwell.Milliseconds()*int64(pages) + randutil.Range64(g.rng, 0, 60000)

	var (
		events []domain.Interaction
		at     int64
	)
	next := func() int64 {
		at += g.ActionDelay().Milliseconds()
		return at
	}

	for page := 1; page <= pages; page++ {
		scrolls := randutil.Between(g.rng, 3, 7)
		for i := 0; i < scrolls; i++ {
			events = append(events, domain.Interaction{
				Type:     domain.InteractionScroll,
				Page:     page,
				AtMs:     next(),
				Duration: randutil.Range64(g.rng, 1000, 3001),
			})
		}
		if g.rng.Float64() < 0.7 {
			kind := domain.InteractionHover
			if g.rng.Float64() < 0.5 {
				kind = domain.InteractionClick
			}
			events = append(events, domain.Interaction{
				Type:   kind,
				Page:   page,
				AtMs:   next(),
				Target: fmt.Sprintf("el-%d-%d", page, g.rng.IntN(1000)),
			})
		}
		if g.rng.Float64() < 0.15 {
			events = append(events, domain.Interaction{
				Type:     domain.InteractionCopy,
				Page:     page,
				AtMs:     next(),
				Duration: randutil.Range64(g.rng, 2000, 5001),
			})
		}
	}

	return domain.SessionBehavior{
		PagesVisited: pages,
		DurationMs:   duration,
		Events:       events,
		BounceRate:   randutil.Uniform(g.rng, 0.15, 0.35),
	}
}

// ActionDelay draws an exponentially distributed pause between actions:
// 3s floor plus an exponential with 5s mean, capped at 15s.
func (g *Generator) ActionDelay() time.Duration {
	u := g.rng.Float64()
	lambda := 1 / actionDelayMeanMs
	ms := actionDelayFloorMs + (-math.Log(1-u) / lambda)
	if ms > actionDelayCapMs {
		ms = actionDelayCapMs
	}
	return time.Duration(ms) * time.Millisecond
}

// DwellTime estimates time on a page with the given word count: reading
// time plus scanning and interaction time, clamped to the dwell bounds.
func (g *Generator) DwellTime(wordCount int) time.Duration {
	if wordCount < 0 {
		wordCount = 0
	}
	readingMs := float64(wordCount) / float64(g.cfg.WordsPerMinute) * 60000
	scanningMs := randutil.Uniform(g.rng, 5000, 15000)
	interactionMs := randutil.Uniform(g.rng, 10000, 30000)

	total := time.Duration(readingMs+scanningMs+interactionMs) * time.Millisecond
	if total < g.cfg.MinDwell {
		return g.cfg.MinDwell
	}
	if total > g.cfg.MaxDwell {
		return g.cfg.MaxDwell
	}
	return total
}

// ScrollPattern walks from 0 to pageHeight in 100-400px steps, sometimes
// scrolling back 50-150px. The last offset is always pageHeight and no
// offset is negative or beyond pageHeight.
func (g *Generator) ScrollPattern(pageHeight int) []int {
	if pageHeight <= 0 {
		return []int{0}
	}
	offsets := []int{0}
	pos := 0
	for {
		pos += randutil.Between(g.rng, 100, 400)
		if pos >= pageHeight {
			break
		}
		offsets = append(offsets, pos)
		if g.rng.Float64() < 0.2 {
			back := pos - randutil.Between(g.rng, 50, 150)
			if back < 0 {
				back = 0
			}
			offsets = append(offsets, back)
		}
	}
	return append(offsets, pageHeight)
}

// MousePath interpolates between two points over 10-25 intermediate steps,
// each jittered by up to 25px on both axes. Endpoints are exact.
func (g *Generator) MousePath(x0, y0, x1, y1 float64) []domain.Point {
	steps := randutil.Between(g.rng, 10, 25)
	path := make([]domain.Point, 0, steps+2)
	path = append(path, domain.Point{X: x0, Y: y0})
	for i := 1; i <= steps; i++ {
		t := float64(i) / float64(steps+1)
		path = append(path, domain.Point{
			X: x0 + (x1-x0)*t + randutil.Uniform(g.rng, -25, 25),
			Y: y0 + (y1-y0)*t + randutil.Uniform(g.rng, -25, 25),
		})
	}
	return append(path, domain.Point{X: x1, Y: y1})
}

// EngagementMetrics derives per-page averages from a session and draws
// scroll depth and return probability.
func (g *Generator) EngagementMetrics(s domain.SessionBehavior) domain.EngagementMetrics {
	pages := s.PagesVisited
	if pages <= 0 {
		pages = 1
	}
	return domain.EngagementMetrics{
		AvgTimeOnPageMs:     s.DurationMs / int64(pages),
		InteractionsPerPage: float64(len(s.Events)) / float64(pages),
		ScrollDepth:         randutil.Between(g.rng, 70, 100),
		ReturnProbability:   randutil.Uniform(g.rng, 0.20, 0.35),
	}
}
