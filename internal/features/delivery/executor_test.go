package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go-campaign/internal/features/campaign"
	"go-campaign/internal/features/campaign/campaigntest"
	"go-campaign/internal/features/user"
	"go-campaign/internal/metrics"

	"github.com/moby/locker"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type MockSenders struct {
	Users map[primitive.ObjectID]*user.User
}

func (m *MockSenders) GetUserByID(ctx context.Context, id primitive.ObjectID) (*user.User, error) {
	u, ok := m.Users[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	return u, nil
}

type MockTransport struct {
	mu    sync.Mutex
	Calls []BulkMessage
	Err   error
}

func (m *MockTransport) SendBulk(ctx context.Context, msg BulkMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, msg)
	return m.Err
}

type MockPublisher struct {
	mu        sync.Mutex
	Published []campaign.Status
}

func (m *MockPublisher) Publish(c *campaign.Campaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Published = append(m.Published, c.Status)
}

type executorFixture struct {
	exec      *Executor
	repo      *campaigntest.Repository
	transport *MockTransport
	publisher *MockPublisher
	owner     *user.User
	campaign  *campaign.Campaign
}

func newExecutorFixture(t *testing.T, verified bool) *executorFixture {
	t.Helper()
	owner := &user.User{ID: primitive.NewObjectID(), Email: "owner@x.com", IsSenderVerified: verified}
	c := &campaign.Campaign{
		ID:         primitive.NewObjectID(),
		Owner:      owner.ID,
		Subject:    "Hello",
		Content:    "<p>Hi</p>",
		Recipients: []string{"a@x.com", "b@x.com"},
		Status:     campaign.StatusDraft,
	}
	repo := campaigntest.NewRepository(c)
	transport := &MockTransport{}
	publisher := &MockPublisher{}

	exec := &Executor{
		campaigns:   repo,
		senders:     &MockSenders{Users: map[primitive.ObjectID]*user.User{owner.ID: owner}},
		transport:   transport,
		publisher:   publisher,
		metrics:     metrics.New(),
		logger:      zap.NewNop(),
		maxAttempts: 3,
		now:         func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) },
		locks:       locker.New(),
	}
	return &executorFixture{exec: exec, repo: repo, transport: transport, publisher: publisher, owner: owner, campaign: c}
}

func TestExecuteSendsAndMarksSent(t *testing.T) {
	f := newExecutorFixture(t, true)

	got, err := f.exec.Execute(context.Background(), f.campaign.ID, f.owner.ID)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	stored := f.repo.Get(f.campaign.ID)
	if stored.Status != campaign.StatusSent || stored.SentAt == nil || stored.Metrics.Sent != 2 {
		t.Errorf("unexpected stored campaign: %+v", stored)
	}
	if got.Status != campaign.StatusSent {
		t.Errorf("expected returned status sent, got %s", got.Status)
	}

	call := f.transport.Calls[0]
	if call.From != "owner@x.com" || call.CampaignID != f.campaign.ID.Hex() || len(call.Recipients) != 2 {
		t.Errorf("unexpected transport call: %+v", call)
	}
	if len(f.publisher.Published) != 1 || f.publisher.Published[0] != campaign.StatusSent {
		t.Errorf("expected one sent snapshot, got %v", f.publisher.Published)
	}
}

func TestExecuteOnSentCampaignIsNoop(t *testing.T) {
	f := newExecutorFixture(t, true)
	if _, err := f.exec.Execute(context.Background(), f.campaign.ID, f.owner.ID); err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}
	sentAt := *f.repo.Get(f.campaign.ID).SentAt

	f.exec.now = func() time.Time { return sentAt.Add(time.Hour) }
	if _, err := f.exec.Execute(context.Background(), f.campaign.ID, f.owner.ID); err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}

	stored := f.repo.Get(f.campaign.ID)
	if len(f.transport.Calls) != 1 {
		t.Errorf("expected a single transport call, got %d", len(f.transport.Calls))
	}
	if !stored.SentAt.Equal(sentAt) || stored.Metrics.Sent != 2 {
		t.Errorf("sent campaign changed: %+v", stored)
	}
}

func TestExecuteTransportFailureRevertsToDraft(t *testing.T) {
	f := newExecutorFixture(t, true)
	f.repo.Put(&campaign.Campaign{
		ID: f.campaign.ID, Owner: f.owner.ID, Recipients: f.campaign.Recipients,
		Status: campaign.StatusScheduled, Metrics: campaign.Metrics{Delivered: 0},
	})
	f.transport.Err = errors.New("relay unavailable")

	_, err := f.exec.Execute(context.Background(), f.campaign.ID, f.owner.ID)

	var failed *campaign.DeliveryFailedError
	if !errors.As(err, &failed) {
		t.Fatalf("expected DeliveryFailedError, got %v", err)
	}
	if !errors.Is(err, f.transport.Err) {
		t.Error("expected transport error to be wrapped")
	}

	stored := f.repo.Get(f.campaign.ID)
	if stored.Status != campaign.StatusDraft {
		t.Errorf("expected draft, got %s", stored.Status)
	}
	if stored.SentAt != nil || stored.Metrics.Sent != 0 {
		t.Errorf("failed send must not touch sentAt or metrics: %+v", stored)
	}
	if stored.DeliveryAttempts != 1 || stored.LastDeliveryError != "relay unavailable" {
		t.Errorf("expected attempt bookkeeping, got %d %q", stored.DeliveryAttempts, stored.LastDeliveryError)
	}
}

func TestExecuteEligibility(t *testing.T) {
	t.Run("sender not verified", func(t *testing.T) {
		f := newExecutorFixture(t, false)
		_, err := f.exec.Execute(context.Background(), f.campaign.ID, f.owner.ID)
		if !errors.Is(err, campaign.ErrSenderNotVerified) {
			t.Fatalf("expected ErrSenderNotVerified, got %v", err)
		}
		if len(f.transport.Calls) != 0 || f.repo.Saves != 0 {
			t.Error("ineligible sender must not send or save")
		}
	})

	t.Run("sender missing", func(t *testing.T) {
		f := newExecutorFixture(t, true)
		_, err := f.exec.Execute(context.Background(), f.campaign.ID, primitive.NewObjectID())
		if !errors.Is(err, campaign.ErrSenderNotFound) {
			t.Fatalf("expected ErrSenderNotFound, got %v", err)
		}
	})

	t.Run("campaign deleted", func(t *testing.T) {
		f := newExecutorFixture(t, true)
		_, err := f.exec.Execute(context.Background(), primitive.NewObjectID(), f.owner.ID)
		if !errors.Is(err, campaign.ErrCampaignNotFound) {
			t.Fatalf("expected ErrCampaignNotFound, got %v", err)
		}
		if len(f.transport.Calls) != 0 {
			t.Error("deleted campaign must not be sent")
		}
	})

	t.Run("retry limit", func(t *testing.T) {
		f := newExecutorFixture(t, true)
		f.transport.Err = errors.New("down")
		for i := 0; i < 3; i++ {
			f.exec.Execute(context.Background(), f.campaign.ID, f.owner.ID)
		}
		_, err := f.exec.Execute(context.Background(), f.campaign.ID, f.owner.ID)
		if !errors.Is(err, campaign.ErrRetryLimitReached) {
			t.Fatalf("expected ErrRetryLimitReached, got %v", err)
		}
		if len(f.transport.Calls) != 3 {
			t.Errorf("expected 3 transport calls, got %d", len(f.transport.Calls))
		}
	})
}

func TestExecuteConcurrentCallsSendOnce(t *testing.T) {
	f := newExecutorFixture(t, true)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f.exec.Execute(context.Background(), f.campaign.ID, f.owner.ID)
		}()
	}
	wg.Wait()

	if len(f.transport.Calls) != 1 {
		t.Errorf("expected exactly one send, got %d", len(f.transport.Calls))
	}
}
