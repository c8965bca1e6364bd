package delivery

import (
	"context"
	"sync"
	"time"

	"go-campaign/internal/features/campaign"
	"go-campaign/internal/metrics"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// onceSchedule fires a single time at the given instant.
type onceSchedule struct {
	at time.Time
}

func (s onceSchedule) Next(t time.Time) time.Time {
	if t.Before(s.at) {
		return s.at
	}
	// zero time parks the entry; cron never runs it again
	return time.Time{}
}

// Scheduler keeps at most one pending delivery per campaign id on a cron runner.
type Scheduler struct {
	cron       *cron.Cron
	jobEntries map[string]cron.EntryID
	mu         sync.Mutex
	metrics    *metrics.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

func NewScheduler(m *metrics.Metrics, logger *zap.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(cron.WithLocation(time.UTC)),
		jobEntries: make(map[string]cron.EntryID),
		metrics:    m,
		logger:     logger.Named("scheduler"),
		now:        time.Now,
	}
}

func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("delivery scheduler started")
}

// Stop halts the runner and waits for running deliveries to return.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Schedule replaces any pending timer for c and arms a new one at c.ScheduledAt.
// Campaigns without a date or with a date not after now are not armed; false is returned.
func (s *Scheduler) Schedule(c *campaign.Campaign, onFire func(*campaign.Campaign)) bool {
	id := c.ID.Hex()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.removeLocked(id)

	if c.ScheduledAt == nil {
		return false
	}
	at := c.ScheduledAt.UTC()
	if !at.After(s.now().UTC()) {
		return false
	}

	snapshot := *c
	var entryID cron.EntryID
	entryID = s.cron.Schedule(onceSchedule{at: at}, cron.FuncJob(func() {
		onFire(&snapshot)
		s.release(id, &entryID)
	}))
	s.jobEntries[id] = entryID
	s.metrics.SetScheduledJobs(len(s.jobEntries))

	s.logger.Debug("delivery armed", zap.String("campaign_id", id), zap.Time("fire_at", at))
	return true
}

// Cancel stops the pending timer for id, if any.
func (s *Scheduler) Cancel(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.removeLocked(id) {
		s.logger.Debug("delivery cancelled", zap.String("campaign_id", id))
	}
}

// Pending reports whether id has an armed timer.
func (s *Scheduler) Pending(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.jobEntries[id]
	return ok
}

// Len returns the number of armed timers.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobEntries)
}

func (s *Scheduler) removeLocked(id string) bool {
	entryID, ok := s.jobEntries[id]
	if !ok {
		return false
	}
	s.cron.Remove(entryID)
	delete(s.jobEntries, id)
	s.metrics.SetScheduledJobs(len(s.jobEntries))
	return true
}

// release drops the fired entry unless a newer one replaced it meanwhile.
// entryID is read under the lock Schedule held while assigning it.
func (s *Scheduler) release(id string, entryID *cron.EntryID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fired := *entryID
	if current, ok := s.jobEntries[id]; ok && current == fired {
		s.removeLocked(id)
		return
	}
	s.cron.Remove(fired)
}

var _ campaign.Scheduler = (*Scheduler)(nil)
