package log

import (
	"context"
	"math/rand/v2"
	"time"
)

// Sampler decides whether a wide event should be emitted.
type Sampler interface {
	ShouldSample(ctx context.Context, e *Event) bool
}

// SamplerFunc is a function adapter for Sampler.
type SamplerFunc func(ctx context.Context, e *Event) bool

// ShouldSample implements Sampler.
func (f SamplerFunc) ShouldSample(ctx context.Context, e *Event) bool {
	return f(ctx, e)
}

// KeepAll is a sampler that emits every event.
var KeepAll = SamplerFunc(func(context.Context, *Event) bool { return true }) //nolint:gochecknoglobals

// RunSampler keeps migration run events that failed, were slow, or changed the schema.
// Runs where everything was skipped are kept with probability randomKeepRate.
type RunSampler struct {
	slowThreshold  time.Duration
	changeCounters []string
	randomKeepRate float64
}

// NewRunSampler creates a rule-based sampler. An event counts as a schema change
// when any of changeCounters is non-zero.
func NewRunSampler(slowThreshold time.Duration, randomKeepRate float64, changeCounters ...string) *RunSampler {
	return &RunSampler{
		slowThreshold:  slowThreshold,
		changeCounters: changeCounters,
		randomKeepRate: randomKeepRate,
	}
}

// ShouldSample decides if event should be logged.
func (s *RunSampler) ShouldSample(_ context.Context, e *Event) bool {
	if e.HasErrors() {
		return true
	}

	if s.slowThreshold > 0 && e.Duration() >= s.slowThreshold {
		return true
	}

	for _, counter := range s.changeCounters {
		if e.Counter(counter) > 0 {
			return true
		}
	}

	//nolint:gosec // Non-cryptographic sampling is sufficient for log event retention.
	return rand.Float64() < s.randomKeepRate
}
