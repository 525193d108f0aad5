package metrics

import (
	"context"
	"time"

	"github.com/quarrydb/quarry/pkg/types"
)

// StatusCounter is the slice of the store the collector samples.
type StatusCounter interface {
	CountByStatus(ctx context.Context) (map[types.QueryStatus]int, error)
}

// Collector periodically samples queue depth from the store and exports
// it as per-status gauges.
type Collector struct {
	store  StatusCounter
	stopCh chan struct{}
}

// NewCollector creates a new metrics collector backed by the store.
func NewCollector(store StatusCounter) *Collector {
	return &Collector{
		store:  store,
		stopCh: make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	counts, err := c.store.CountByStatus(ctx)
	if err != nil {
		return
	}

	// Set every known status so gauges drop back to zero once a
	// status class drains.
	for _, status := range []types.QueryStatus{
		types.StatusPending,
		types.StatusQueued,
		types.StatusRunning,
		types.StatusTransferring,
		types.StatusCompleted,
		types.StatusFailed,
	} {
		QueriesByStatus.WithLabelValues(string(status)).Set(float64(counts[status]))
	}
}
