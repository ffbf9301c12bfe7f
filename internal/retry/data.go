package retry

import (
	"time"

	"ogpimage/internal/timeutil"
)

// RetryParam holds the parameters for retry logic.
type RetryParam struct {
	Jitter       time.Duration
	RandomSeed   int64
	MaxAttempts  int
	BackoffParam timeutil.BackoffParam
}

func NewRetryParam(jitter time.Duration, randomSeed int64, maxAttempts int, backoffParam timeutil.BackoffParam) RetryParam {
	return RetryParam{
		Jitter:       jitter,
		RandomSeed:   randomSeed,
		MaxAttempts:  maxAttempts,
		BackoffParam: backoffParam,
	}
}

// DefaultRetryParam is used for upstream fetches: three attempts, 200ms doubling.
func DefaultRetryParam() RetryParam {
	return NewRetryParam(
		50*time.Millisecond,
		time.Now().UnixNano(),
		3,
		timeutil.NewBackoffParam(200*time.Millisecond, 2.0, 2*time.Second),
	)
}
