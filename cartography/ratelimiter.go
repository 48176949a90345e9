package cartography

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// defaultMinDelay is the minimum delay between requests to a domain when
// robots.txt carries no Crawl-delay directive (§4.8).
const defaultMinDelay = 100 * time.Millisecond

// RateLimiter enforces both a concurrency cap and a minimum inter-request
// delay for a single domain (§4.8). The concurrency half is a buffered
// channel used as a counting semaphore (the same channel-as-semaphore idiom
// the browser pool uses); the delay half is a golang.org/x/time/rate
// limiter configured to allow exactly one event per min-delay interval, so
// Acquire's wait is Wait()'s own throttling rather than a hand-rolled sleep.
type RateLimiter struct {
	sem     chan struct{}
	delayer *rate.Limiter
}

// NewRateLimiter creates a limiter with the given concurrency cap and
// minimum delay between request starts.
func NewRateLimiter(maxConcurrent int, minDelay time.Duration) *RateLimiter {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &RateLimiter{
		sem:     make(chan struct{}, maxConcurrent),
		delayer: rate.NewLimiter(rate.Every(minDelay), 1),
	}
}

// NewRateLimiterFromCrawlDelay derives a limiter's minimum delay from a
// robots.txt Crawl-delay value, defaulting to 100ms when absent.
func NewRateLimiterFromCrawlDelay(crawlDelay *float32, maxConcurrent int) *RateLimiter {
	delay := defaultMinDelay
	if crawlDelay != nil {
		delay = time.Duration(*crawlDelay * float32(time.Second))
	}
	return NewRateLimiter(maxConcurrent, delay)
}

// Guard releases the rate limiter's concurrency permit when its owner is
// done with the request.
type Guard struct {
	sem chan struct{}
}

// Release returns the permit to the semaphore. Safe to call at most once.
func (g *Guard) Release() {
	<-g.sem
}

// Acquire blocks until both a concurrency permit is available and the
// minimum delay since the last request has elapsed, returning a Guard that
// must be released when the request completes.
func (l *RateLimiter) Acquire(ctx context.Context) (*Guard, error) {
	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := l.delayer.Wait(ctx); err != nil {
		<-l.sem
		return nil, err
	}

	return &Guard{sem: l.sem}, nil
}
