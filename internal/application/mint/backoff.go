package mint

import (
	"math/rand/v2"
	"time"
)

const (
	DefaultRetryCeiling = 5
	DefaultBaseDelay    = 500 * time.Millisecond
	DefaultMaxDelay     = 30 * time.Second
)

// RetryPolicy: capped exponential backoff with jitter.
// Ceiling is the maximum number of tries of one step within an attempt.
type RetryPolicy struct {
	Ceiling   int
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Ceiling: DefaultRetryCeiling, BaseDelay: DefaultBaseDelay, MaxDelay: DefaultMaxDelay}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.Ceiling < 1 {
		p.Ceiling = DefaultRetryCeiling
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultBaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// Backoff returns the delay after the n-th failed try (n starts at 1).
// 結果は [d/2, d] の範囲（d = min(MaxDelay, BaseDelay·2^(n-1))）。
func (p RetryPolicy) Backoff(n int) time.Duration {
	p = p.normalized()
	if n < 1 {
		n = 1
	}
	d := p.BaseDelay
	for i := 1; i < n && d < p.MaxDelay; i++ {
		d *= 2
	}
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	half := d / 2
	if half <= 0 {
		return d
	}
	return half + time.Duration(rand.Int64N(int64(half)+1))
}
