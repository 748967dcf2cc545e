package ratelimit

import (
	"sync/atomic"
	"time"
)

// Linear waits base, 2*base, 3*base, ... between attempts. The remote
// service penalizes bursty access, so delays grow with every failure
// instead of hammering it at a fixed interval.
//
// It satisfies both github.com/sethvargo/go-retry.Backoff (Next) and
// github.com/cenkalti/backoff/v4.BackOff (NextBackOff/Reset), so the same
// policy drives the stream fetch retries and the session handshake retries.
type Linear struct {
	base    time.Duration
	attempt atomic.Uint64
}

func NewLinear(base time.Duration) *Linear {
	return &Linear{base: base, attempt: atomic.Uint64{}}
}

func (l *Linear) Next() (time.Duration, bool) {
	return l.next(), false
}

func (l *Linear) NextBackOff() time.Duration {
	return l.next()
}

func (l *Linear) Reset() {
	l.attempt.Store(0)
}

func (l *Linear) next() time.Duration {
	n := l.attempt.Add(1)

	return l.base * time.Duration(n)
}
