package request

import (
	"math/rand"
	"sync"
	"time"
)

// limiter keeps a per-provider cooldown window that widens with every
// consecutive upstream failure. The provider's worker consults it before
// dispatching, so a struggling server sees the queue slow down instead
// of a retry storm.
type limiter struct {
	mu   sync.Mutex
	base time.Duration
	max  time.Duration
	cool map[string]*cooldown
}

type cooldown struct {
	strikes int
	until   time.Time
}

func newLimiter(base, max time.Duration) *limiter {
	return &limiter{
		base: base,
		max:  max,
		cool: make(map[string]*cooldown),
	}
}

// wait sleeps out any open cooldown window for the provider.
func (l *limiter) wait(provider string) {
	l.mu.Lock()
	var until time.Time
	if cd := l.cool[provider]; cd != nil {
		until = cd.until
	}
	l.mu.Unlock()

	if d := time.Until(until); d > 0 {
		time.Sleep(d)
	}
}

// strike records a failed request and widens the window.
func (l *limiter) strike(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cd := l.cool[provider]
	if cd == nil {
		cd = &cooldown{}
		l.cool[provider] = cd
	}
	cd.strikes++
	cd.until = time.Now().Add(l.penalty(cd.strikes))
}

// relax records a success. Recovery is gradual: one success undoes one
// strike, and the window only clears once the tally reaches zero.
func (l *limiter) relax(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cd := l.cool[provider]
	if cd == nil {
		return
	}
	if cd.strikes > 0 {
		cd.strikes--
	}
	if cd.strikes == 0 {
		cd.until = time.Time{}
	}
}

// penalty is the cooldown for a strike tally: base doubled per extra
// strike, capped at max, plus up to 10% jitter so parallel queues do
// not retry in lockstep.
func (l *limiter) penalty(strikes int) time.Duration {
	d := l.base
	for i := 1; i < strikes && d < l.max; i++ {
		d *= 2
	}
	if d > l.max {
		d = l.max
	}
	jitter := time.Duration(rand.Int63n(int64(d)/10 + 1))
	return d + jitter
}

// window reports the provider's strike tally and cooldown deadline.
func (l *limiter) window(provider string) (strikes int, until time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cd := l.cool[provider]; cd != nil {
		return cd.strikes, cd.until
	}
	return 0, time.Time{}
}
