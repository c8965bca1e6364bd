package delivery

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"go-campaign/internal/features/campaign"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s := NewScheduler(nil, zap.NewNop())
	s.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		s.Stop(ctx)
	})
	return s
}

func campaignAt(id primitive.ObjectID, at time.Time) *campaign.Campaign {
	return &campaign.Campaign{ID: id, ScheduledAt: &at}
}

func TestOnceScheduleFiresOnce(t *testing.T) {
	at := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	s := onceSchedule{at: at}

	if got := s.Next(at.Add(-time.Minute)); !got.Equal(at) {
		t.Errorf("expected %v, got %v", at, got)
	}
	if got := s.Next(at); !got.IsZero() {
		t.Errorf("expected zero time at the instant, got %v", got)
	}
}

func TestScheduleFiresOnceAndReleasesEntry(t *testing.T) {
	s := newTestScheduler(t)
	id := primitive.NewObjectID()
	fired := make(chan *campaign.Campaign, 2)

	if !s.Schedule(campaignAt(id, time.Now().Add(50*time.Millisecond)), func(c *campaign.Campaign) { fired <- c }) {
		t.Fatal("expected future campaign to be armed")
	}
	if !s.Pending(id.Hex()) {
		t.Fatal("expected pending entry")
	}

	select {
	case c := <-fired:
		if c.ID != id {
			t.Errorf("fired for wrong campaign %s", c.ID.Hex())
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}

	deadline := time.Now().Add(time.Second)
	for s.Pending(id.Hex()) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if s.Pending(id.Hex()) {
		t.Error("fired entry was not released")
	}

	select {
	case <-fired:
		t.Error("timer fired twice")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScheduleRejectsPastAndMissingDates(t *testing.T) {
	s := newTestScheduler(t)
	var calls int32
	onFire := func(*campaign.Campaign) { atomic.AddInt32(&calls, 1) }

	id := primitive.NewObjectID()
	if s.Schedule(campaignAt(id, time.Now().Add(-time.Second)), onFire) {
		t.Error("past date must not be armed")
	}
	if s.Schedule(&campaign.Campaign{ID: id}, onFire) {
		t.Error("missing date must not be armed")
	}
	if s.Len() != 0 {
		t.Errorf("expected no entries, got %d", s.Len())
	}

	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("rejected schedule fired")
	}
}

func TestRescheduleKeepsSingleTimer(t *testing.T) {
	s := newTestScheduler(t)
	id := primitive.NewObjectID()
	var first, second int32

	s.Schedule(campaignAt(id, time.Now().Add(40*time.Millisecond)), func(*campaign.Campaign) { atomic.AddInt32(&first, 1) })
	s.Schedule(campaignAt(id, time.Now().Add(120*time.Millisecond)), func(*campaign.Campaign) { atomic.AddInt32(&second, 1) })

	if s.Len() != 1 {
		t.Fatalf("expected one armed timer, got %d", s.Len())
	}

	time.Sleep(400 * time.Millisecond)
	if atomic.LoadInt32(&first) != 0 {
		t.Error("replaced timer fired")
	}
	if atomic.LoadInt32(&second) != 1 {
		t.Errorf("expected latest timer to fire once, got %d", second)
	}
}

func TestCancelStopsTimer(t *testing.T) {
	s := newTestScheduler(t)
	id := primitive.NewObjectID()
	var calls int32

	s.Schedule(campaignAt(id, time.Now().Add(60*time.Millisecond)), func(*campaign.Campaign) { atomic.AddInt32(&calls, 1) })
	s.Cancel(id.Hex())
	s.Cancel(id.Hex())

	time.Sleep(200 * time.Millisecond)
	if atomic.LoadInt32(&calls) != 0 {
		t.Error("cancelled timer fired")
	}
	if s.Pending(id.Hex()) {
		t.Error("cancelled entry still pending")
	}
}

func TestScheduleCopiesCampaign(t *testing.T) {
	s := newTestScheduler(t)
	id := primitive.NewObjectID()
	fired := make(chan campaign.Status, 1)

	c := campaignAt(id, time.Now().Add(40*time.Millisecond))
	c.Status = campaign.StatusScheduled
	s.Schedule(c, func(got *campaign.Campaign) { fired <- got.Status })
	c.Status = campaign.StatusDraft

	select {
	case status := <-fired:
		if status != campaign.StatusScheduled {
			t.Errorf("expected snapshot taken at schedule time, got %s", status)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timer never fired")
	}
}
