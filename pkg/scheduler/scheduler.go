package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/quarrydb/quarry/pkg/log"
	"github.com/quarrydb/quarry/pkg/metrics"
	"github.com/quarrydb/quarry/pkg/storage"
	"github.com/quarrydb/quarry/pkg/types"
)

// Runner executes one admitted query to its terminal state. The
// scheduler spawns it on its own goroutine; tests substitute a stub.
type Runner func(ctx context.Context, pq storage.PendingQuery)

// Config carries the admission limits and loop timings.
type Config struct {
	// CheckInterval is the tick period between admission passes.
	CheckInterval time.Duration
	// GlobalMaxParallel caps admitted queries across all users.
	GlobalMaxParallel int
	// DefaultUserMaxParallel applies to users whose settings do not
	// set max_parallel_queries.
	DefaultUserMaxParallel int
	// ShutdownTimeout bounds the drain wait for in-flight workers.
	ShutdownTimeout time.Duration
}

// Scheduler admits pending queries under a global and a per-user
// concurrency cap, interleaving users round-robin so no single user
// can monopolise capacity.
type Scheduler struct {
	store  storage.Store
	runner Runner
	cfg    Config
	logger zerolog.Logger

	mu           sync.Mutex
	active       map[int64]int64 // query id -> user id
	activeByUser map[int64]map[int64]struct{}
	orphans      map[int64]struct{} // admitted rows inherited from a previous process

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	stopCh chan struct{}
	doneCh chan struct{}
}

// New creates a scheduler. Call Rebuild before Start on a fresh
// process so capacity accounting includes rows left over from a crash.
func New(store storage.Store, runner Runner, cfg Config) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		store:        store,
		runner:       runner,
		cfg:          cfg,
		logger:       log.WithComponent("scheduler"),
		active:       make(map[int64]int64),
		activeByUser: make(map[int64]map[int64]struct{}),
		orphans:      make(map[int64]struct{}),
		ctx:          ctx,
		cancel:       cancel,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Rebuild seeds the in-memory sets from rows already marked running or
// transferring in the store. Those rows count against capacity but
// have no live worker in this process; the reaper retires them once
// they exceed the stuck threshold.
func (s *Scheduler) Rebuild(ctx context.Context) error {
	rows, err := s.store.ListByStatus(ctx, []types.QueryStatus{
		types.StatusRunning,
		types.StatusTransferring,
	}, time.Time{})
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range rows {
		if _, ok := s.active[q.ID]; ok {
			continue
		}
		s.track(q.ID, q.UserID)
		s.orphans[q.ID] = struct{}{}
	}
	if len(rows) > 0 {
		s.logger.Warn().
			Int("count", len(rows)).
			Msg("Rebuilt active set from rows left in flight by a previous run")
	}
	return nil
}

// Start begins the admission loop
func (s *Scheduler) Start() {
	go s.run()
}

// Stop halts admission and drains in-flight workers. Workers still
// running at the shutdown deadline get their context cancelled and a
// short grace period to unwind.
func (s *Scheduler) Stop() {
	close(s.stopCh)
	<-s.doneCh

	drained := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		s.logger.Info().Msg("All workers drained")
	case <-time.After(s.cfg.ShutdownTimeout):
		s.mu.Lock()
		remaining := len(s.active)
		s.mu.Unlock()
		s.logger.Warn().
			Int("remaining", remaining).
			Msg("Shutdown deadline reached, cancelling in-flight workers")
		s.cancel()
		select {
		case <-drained:
		case <-time.After(5 * time.Second):
			s.logger.Error().Msg("Workers did not unwind after cancel, abandoning")
		}
	}
	s.cancel()
}

// run is the main admission loop
func (s *Scheduler) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.cfg.CheckInterval)
	defer ticker.Stop()

	// First pass immediately so a restart picks up backlog without
	// waiting out a full interval.
	s.tick()

	for {
		select {
		case <-ticker.C:
			s.tick()
		case <-s.stopCh:
			return
		}
	}
}

// tick performs one admission pass.
func (s *Scheduler) tick() {
	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.SchedulingDuration)

	s.mu.Lock()
	available := s.cfg.GlobalMaxParallel - len(s.active)
	s.mu.Unlock()

	if available <= 0 {
		s.logger.Debug().Msg("Global capacity exhausted, skipping pass")
		return
	}

	pending, err := s.store.ListPending(s.ctx, 0)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list pending queries")
		return
	}
	metrics.QueriesPending.Set(float64(len(pending)))
	if len(pending) == 0 {
		return
	}

	admitted := s.admit(pending, available)
	for _, pq := range admitted {
		s.launch(pq)
	}
	if len(admitted) > 0 {
		s.logger.Info().
			Int("admitted", len(admitted)).
			Int("pending", len(pending)-len(admitted)).
			Msg("Admission pass complete")
	}
}

// admit selects up to available queries from pending, interleaving
// users round-robin and preserving created_at order within each user.
// Selected ids are tracked before the method returns so a query can
// never be admitted twice.
func (s *Scheduler) admit(pending []storage.PendingQuery, available int) []storage.PendingQuery {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Group by user, keeping the store's created_at ordering per group.
	queues := make(map[int64][]storage.PendingQuery)
	var order []int64
	for _, pq := range pending {
		if _, ok := s.active[pq.Query.ID]; ok {
			// Already admitted; the store has not caught up yet.
			continue
		}
		uid := pq.Query.UserID
		if _, ok := queues[uid]; !ok {
			order = append(order, uid)
		}
		queues[uid] = append(queues[uid], pq)
	}

	var admitted []storage.PendingQuery
	for available > 0 {
		progressed := false
		for _, uid := range order {
			if available == 0 {
				break
			}
			queue := queues[uid]
			if len(queue) == 0 {
				continue
			}
			if len(s.activeByUser[uid]) >= s.userLimit(queue[0].Settings) {
				continue
			}
			pq := queue[0]
			queues[uid] = queue[1:]
			s.track(pq.Query.ID, uid)
			admitted = append(admitted, pq)
			available--
			progressed = true
		}
		// No admission in a full pass means every remaining queue is
		// blocked on its per-user cap.
		if !progressed {
			break
		}
	}
	return admitted
}

// userLimit resolves the per-user cap from settings or the default.
func (s *Scheduler) userLimit(settings *types.UserSettings) int {
	if settings != nil && settings.MaxParallelQueries != nil && *settings.MaxParallelQueries > 0 {
		return *settings.MaxParallelQueries
	}
	return s.cfg.DefaultUserMaxParallel
}

// launch hands an admitted query to the runner on its own goroutine.
// The done-callback retires the id from the in-memory sets.
func (s *Scheduler) launch(pq storage.PendingQuery) {
	metrics.QueriesAdmitted.Inc()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.Release(pq.Query.ID)
		s.runner(s.ctx, pq)
	}()
}

// track adds a query to both active sets. Callers hold s.mu.
func (s *Scheduler) track(queryID, userID int64) {
	s.active[queryID] = userID
	if s.activeByUser[userID] == nil {
		s.activeByUser[userID] = make(map[int64]struct{})
	}
	s.activeByUser[userID][queryID] = struct{}{}
	metrics.QueriesActive.Inc()
}

// Release retires a query from the in-memory sets, freeing its global
// and per-user slot. It is idempotent.
func (s *Scheduler) Release(queryID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uid, ok := s.active[queryID]
	if !ok {
		return
	}
	delete(s.active, queryID)
	delete(s.orphans, queryID)
	if set := s.activeByUser[uid]; set != nil {
		delete(set, queryID)
		if len(set) == 0 {
			delete(s.activeByUser, uid)
		}
	}
	metrics.QueriesActive.Dec()
}

// IsLive reports whether queryID has a worker goroutine in this
// process. Rows inherited through Rebuild occupy capacity but are not
// live; the reaper uses the distinction to retire them.
func (s *Scheduler) IsLive(queryID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, orphan := s.orphans[queryID]; orphan {
		return false
	}
	_, ok := s.active[queryID]
	return ok
}

// ActiveCount returns the number of admitted queries.
func (s *Scheduler) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
