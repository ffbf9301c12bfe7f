package timeutil

import (
	"math"
	"math/rand"
	"time"
)

// BackoffParam describes an exponential backoff curve.
//
//	initialDuration := 200 * time.Millisecond // first delay
//	multiplier := 2.0                         // doubled each attempt
//	maxDuration := 5 * time.Second            // cap
type BackoffParam struct {
	initialDuration time.Duration
	multiplier      float64
	maxDuration     time.Duration
}

func NewBackoffParam(initialDuration time.Duration, multiplier float64, maxDuration time.Duration) BackoffParam {
	return BackoffParam{
		initialDuration: initialDuration,
		multiplier:      multiplier,
		maxDuration:     maxDuration,
	}
}

func (b BackoffParam) InitialDuration() time.Duration { return b.initialDuration }
func (b BackoffParam) Multiplier() float64            { return b.multiplier }
func (b BackoffParam) MaxDuration() time.Duration     { return b.maxDuration }

// ComputeJitter returns a random duration in [0, max).
func ComputeJitter(max time.Duration, rng *rand.Rand) time.Duration {
	if max <= 0 {
		return 0
	}
	return time.Duration(rng.Int63n(int64(max)))
}

// ExponentialBackoffDelay returns the delay before retry number backoffCount
// (1-based): initial * multiplier^(count-1), capped, plus jitter.
func ExponentialBackoffDelay(backoffCount int, jitter time.Duration, rng *rand.Rand, p BackoffParam) time.Duration {
	if backoffCount < 1 {
		backoffCount = 1
	}
	delay := float64(p.initialDuration) * math.Pow(p.multiplier, float64(backoffCount-1))
	if p.maxDuration > 0 && delay > float64(p.maxDuration) {
		delay = float64(p.maxDuration)
	}
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay) + ComputeJitter(jitter, rng)
}
