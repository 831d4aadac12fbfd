package worker

import (
	"math"
	"time"

	"github.com/ignite/traffic-engine/internal/domain"
	"github.com/ignite/traffic-engine/internal/pkg/randutil"
)

const (
	// StandardDelay is the fixed base delay in Standard mode.
	StandardDelay = 1500 * time.Millisecond

	stealthFloor  = 2000 * time.Millisecond
	stealthJitter = 1000 * time.Millisecond
	ghostFloor    = 2500 * time.Millisecond
	ghostJitter   = 2000 * time.Millisecond

	// PulseBurstMin and PulseBurstMax bound a burst delay (inclusive).
	PulseBurstMin = 400 * time.Millisecond
	PulseBurstMax = 500 * time.Millisecond
	// PulseLullFactor stretches the base delay between bursts.
	PulseLullFactor = 2.5
	// ViralMaxReduction is the largest fraction Viral shaves off the base
	// delay, so a saturated campaign still waits 20% of base.
	ViralMaxReduction = 0.8
)

// PacingConfig holds the tunable constants of the delay model.
type PacingConfig struct {
	// PulseBurstProbability is the chance a Pulse tick bursts. Nil means
	// DefaultPulseBurstProbability; zero disables bursts.
	PulseBurstProbability *float64
	// ViralSaturationHits is the hit count at which Viral stops accelerating.
	ViralSaturationHits int64
	// IdleDelay is the re-poll delay when no campaign is eligible.
	IdleDelay time.Duration
}

// DefaultPulseBurstProbability is the Pulse burst chance when none is set.
const DefaultPulseBurstProbability = 0.3

// BurstProbability returns a PulseBurstProbability value.
func BurstProbability(p float64) *float64 { return &p }

// DefaultPacingConfig returns the canonical constants.
func DefaultPacingConfig() PacingConfig {
	return PacingConfig{
		PulseBurstProbability: BurstProbability(DefaultPulseBurstProbability),
		ViralSaturationHits:   1000,
		IdleDelay:             2000 * time.Millisecond,
	}
}

func (p PacingConfig) withDefaults() PacingConfig {
	d := DefaultPacingConfig()
	if v := p.PulseBurstProbability; v == nil || *v < 0 || *v > 1 {
		p.PulseBurstProbability = d.PulseBurstProbability
	}
	if p.ViralSaturationHits <= 0 {
		p.ViralSaturationHits = d.ViralSaturationHits
	}
	if p.IdleDelay <= 0 {
		p.IdleDelay = d.IdleDelay
	}
	return p
}

func (p PacingConfig) burstProbability() float64 {
	if v := p.PulseBurstProbability; v != nil && *v >= 0 && *v <= 1 {
		return *v
	}
	return DefaultPulseBurstProbability
}

// BaseDelay draws the base inter-hit delay for an evasion mode. Unknown
// modes pace like Standard.
func BaseDelay(mode domain.EvasionMode, rng randutil.Source) time.Duration {
	switch mode {
	case domain.EvasionStealth:
		return stealthFloor + time.Duration(rng.Int64N(int64(stealthJitter)))
	case domain.EvasionGhost:
		return ghostFloor + time.Duration(rng.Int64N(int64(ghostJitter)))
	default:
		return StandardDelay
	}
}

// NextDelay applies the traffic pattern to a base delay. hits is the
// campaign's hit count including the hit just recorded.
func (p PacingConfig) NextDelay(pattern domain.TrafficPattern, base time.Duration, hits int64, rng randutil.Source) time.Duration {
	switch domain.ParseTrafficPattern(string(pattern)) {
	case domain.PatternPulse:
		if rng.Float64() < p.burstProbability() {
			span := int64(PulseBurstMax-PulseBurstMin) / int64(time.Millisecond)
			return PulseBurstMin + time.Duration(rng.Int64N(span+1))*time.Millisecond
		}
		return scale(base, PulseLullFactor)
	case domain.PatternViral:
		if hits < 0 {
			hits = 0
		}
		reduction := float64(hits) / float64(p.ViralSaturationHits)
		if reduction > ViralMaxReduction {
			reduction = ViralMaxReduction
		}
		return scale(base, 1-reduction)
	default:
		return base
	}
}

func scale(d time.Duration, factor float64) time.Duration {
	return time.Duration(math.Round(float64(d) * factor))
}
