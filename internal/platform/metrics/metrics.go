package metrics

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

type Collector struct {
	totalRequests   uint64
	errorRequests   uint64
	rateLimited     uint64
	totalDurationMs uint64

	recoveriesApplied  uint64
	recoveriesReplayed uint64
	requestsCompleted  uint64
	repairRuns         uint64
	repairFixed        uint64
	repairFailed       uint64
	jobsFailed         uint64

	mu              sync.Mutex
	amountRecovered decimal.Decimal
}

func New() *Collector {
	return &Collector{}
}

func (c *Collector) Record(status int, duration time.Duration) {
	atomic.AddUint64(&c.totalRequests, 1)
	if status >= 500 {
		atomic.AddUint64(&c.errorRequests, 1)
	}
	if status == 429 {
		atomic.AddUint64(&c.rateLimited, 1)
	}
	atomic.AddUint64(&c.totalDurationMs, uint64(duration.Milliseconds()))
}

// RecordRecovery counts one applied recovery. Replays are counted separately
// and do not add to the recovered amount.
func (c *Collector) RecordRecovery(amount decimal.Decimal, replayed, completed bool) {
	if replayed {
		atomic.AddUint64(&c.recoveriesReplayed, 1)
		return
	}
	atomic.AddUint64(&c.recoveriesApplied, 1)
	if completed {
		atomic.AddUint64(&c.requestsCompleted, 1)
	}
	c.mu.Lock()
	c.amountRecovered = c.amountRecovered.Add(amount)
	c.mu.Unlock()
}

func (c *Collector) RecordRepair(fixed, failed int) {
	atomic.AddUint64(&c.repairRuns, 1)
	atomic.AddUint64(&c.repairFixed, uint64(fixed))
	atomic.AddUint64(&c.repairFailed, uint64(failed))
}

func (c *Collector) RecordJobFailure() {
	atomic.AddUint64(&c.jobsFailed, 1)
}

func (c *Collector) Snapshot() map[string]any {
	total := atomic.LoadUint64(&c.totalRequests)
	errs := atomic.LoadUint64(&c.errorRequests)
	limited := atomic.LoadUint64(&c.rateLimited)
	totalMs := atomic.LoadUint64(&c.totalDurationMs)
	avg := float64(0)
	if total > 0 {
		avg = float64(totalMs) / float64(total)
	}
	c.mu.Lock()
	recovered := c.amountRecovered.String()
	c.mu.Unlock()
	return map[string]any{
		"requestsTotal":           total,
		"errorsTotal":             errs,
		"rateLimitedTotal":        limited,
		"avgDurationMs":           avg,
		"totalDurationMs":         totalMs,
		"recoveriesAppliedTotal":  atomic.LoadUint64(&c.recoveriesApplied),
		"recoveriesReplayedTotal": atomic.LoadUint64(&c.recoveriesReplayed),
		"requestsCompletedTotal":  atomic.LoadUint64(&c.requestsCompleted),
		"amountRecoveredTotal":    recovered,
		"repairRunsTotal":         atomic.LoadUint64(&c.repairRuns),
		"repairFixedTotal":        atomic.LoadUint64(&c.repairFixed),
		"repairFailedTotal":       atomic.LoadUint64(&c.repairFailed),
		"jobsFailedTotal":         atomic.LoadUint64(&c.jobsFailed),
	}
}
