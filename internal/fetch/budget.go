package fetch

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/smy-101/skillcatalog/internal/logger"
	"golang.org/x/time/rate"
)

const (
	headerRateRemaining = "X-RateLimit-Remaining"
	headerRateReset     = "X-RateLimit-Reset"
)

// Budget is the process-wide request budget shared by every worker. It paces
// requests with a token bucket and, once the remote reports that few requests
// remain, holds workers until the advertised reset time.
type Budget struct {
	limiter *rate.Limiter
	reserve int
	maxWait time.Duration

	mu        sync.Mutex
	remaining int // -1 until the remote reports a value
	resetAt   time.Time

	now   func() time.Time
	sleep func(context.Context, time.Duration) error
}

// NewBudget creates a budget allowing rps requests per second with the given burst.
func NewBudget(rps float64, burst, reserve int, maxWait time.Duration) *Budget {
	return &Budget{
		limiter:   rate.NewLimiter(rate.Limit(rps), burst),
		reserve:   reserve,
		maxWait:   maxWait,
		remaining: -1,
		now:       time.Now,
		sleep:     sleepContext,
	}
}

// Wait blocks until the caller may issue one request and takes it from the budget.
func (b *Budget) Wait(ctx context.Context) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	b.mu.Lock()
	pause := b.pauseLocked()
	if b.remaining > 0 {
		b.remaining--
	}
	b.mu.Unlock()

	if pause <= 0 {
		return nil
	}

	logger.G(ctx).WithField("pause", pause).Warn("rate limit budget nearly exhausted, waiting for reset")
	if err := b.sleep(ctx, pause); err != nil {
		return err
	}

	b.mu.Lock()
	if !b.now().Before(b.resetAt) {
		b.remaining = -1
	}
	b.mu.Unlock()
	return nil
}

// Observe records the rate limit headers of a response.
func (b *Budget) Observe(h http.Header) {
	remaining, err := strconv.Atoi(h.Get(headerRateRemaining))
	if err != nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.remaining = remaining
	if reset, err := strconv.ParseInt(h.Get(headerRateReset), 10, 64); err == nil {
		b.resetAt = time.Unix(reset, 0)
	}
}

// Remaining returns the last known remaining request count, or -1.
func (b *Budget) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.remaining
}

func (b *Budget) pauseLocked() time.Duration {
	if b.remaining < 0 || b.remaining > b.reserve {
		return 0
	}
	wait := b.resetAt.Sub(b.now())
	if wait <= 0 {
		return 0
	}
	if b.maxWait > 0 && wait > b.maxWait {
		wait = b.maxWait
	}
	return wait
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
