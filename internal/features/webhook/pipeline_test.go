package webhook

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"go-campaign/internal/features/campaign"
	"go-campaign/internal/features/campaign/campaigntest"
	"go-campaign/internal/metrics"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type MockPublisher struct {
	mu        sync.Mutex
	Snapshots []campaign.Snapshot
}

func (m *MockPublisher) Publish(c *campaign.Campaign) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Snapshots = append(m.Snapshots, c.Snapshot())
}

// flakyRepo fails the first Failures increments with a transient error.
type flakyRepo struct {
	*campaigntest.Repository
	Failures int
}

func (f *flakyRepo) Increment(ctx context.Context, id primitive.ObjectID, deltas map[string]int64) error {
	if f.Failures > 0 {
		f.Failures--
		return errors.New("connection reset")
	}
	return f.Repository.Increment(ctx, id, deltas)
}

func newPipeline(repo campaign.CampaignRepository, pub Publisher) *Pipeline {
	p := NewPipeline(repo, pub, metrics.New(), zap.NewNop())
	p.backoff = 0
	return p
}

func seedCampaign(repo *campaigntest.Repository) primitive.ObjectID {
	c := &campaign.Campaign{
		ID:         primitive.NewObjectID(),
		Status:     campaign.StatusSent,
		Recipients: []string{"a@x.com", "b@x.com"},
	}
	repo.Put(c)
	return c.ID
}

func TestIngestDeliveredAndMobileOpen(t *testing.T) {
	repo := campaigntest.NewRepository()
	id := seedCampaign(repo)
	pub := &MockPublisher{}

	body := fmt.Sprintf(`[
		{"event":"delivered","campaignId":"%[1]s"},
		{"event":"open","campaignId":"%[1]s","useragent":"Mozilla/5.0 (iPhone) Mobile/15E148"}
	]`, id.Hex())

	res, err := newPipeline(repo, pub).Ingest(context.Background(), []byte(body))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	if res.Applied != 2 {
		t.Errorf("expected 2 applied events, got %+v", res)
	}

	c := repo.Get(id)
	if c.Metrics.Delivered != 1 || c.Metrics.Opened != 1 {
		t.Errorf("unexpected metrics: %+v", c.Metrics)
	}
	if c.Analytics.Devices["Mobile"] != 1 || c.Analytics.Geos["Unknown"] != 1 {
		t.Errorf("unexpected analytics: %+v", c.Analytics)
	}

	if len(pub.Snapshots) != 1 {
		t.Fatalf("expected one snapshot per touched campaign, got %d", len(pub.Snapshots))
	}
	snap := pub.Snapshots[0]
	if snap.ID != id.Hex() || snap.Metrics.Opened != 1 || len(snap.Recipients) != 2 {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
}

func TestIngestMachineOpenChangesNothing(t *testing.T) {
	repo := campaigntest.NewRepository()
	id := seedCampaign(repo)
	pub := &MockPublisher{}

	body := fmt.Sprintf(`[{"event":"open","campaignId":"%s","sg_machine_open":true,"useragent":"Mozilla/5.0 Mobile"}]`, id.Hex())
	res, err := newPipeline(repo, pub).Ingest(context.Background(), []byte(body))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	c := repo.Get(id)
	if c.Metrics.Opened != 0 || len(c.Analytics.Devices) != 0 || len(c.Analytics.Geos) != 0 {
		t.Errorf("machine open leaked into counters: %+v %+v", c.Metrics, c.Analytics)
	}
	if res.Noop != 1 || repo.Increments != 0 || len(pub.Snapshots) != 0 {
		t.Errorf("expected a skipped event without writes, got %+v", res)
	}
}

func TestIngestIsOrderIndependent(t *testing.T) {
	events := []string{
		`{"event":"delivered","campaignId":"%[1]s"}`,
		`{"event":"delivered","campaignId":"%[1]s"}`,
		`{"event":"open","campaignId":"%[1]s","useragent":"Windows NT","geoip":{"country":"US"}}`,
		`{"event":"click","campaignId":"%[1]s","useragent":"Mobile","geoip":{"country":"IN"}}`,
		`{"event":"open","campaignId":"%[1]s","useragent":"GoogleImageProxy"}`,
		`{"event":"click","campaignId":"%[1]s"}`,
	}
	orders := [][]int{
		{0, 1, 2, 3, 4, 5},
		{5, 4, 3, 2, 1, 0},
		{2, 5, 0, 4, 1, 3},
	}

	var baseline *campaign.Campaign
	for _, order := range orders {
		repo := campaigntest.NewRepository()
		id := seedCampaign(repo)

		// split into two batches to cover cross-batch reordering too
		var first, second []string
		for i, idx := range order {
			e := fmt.Sprintf(events[idx], id.Hex())
			if i%2 == 0 {
				first = append(first, e)
			} else {
				second = append(second, e)
			}
		}
		p := newPipeline(repo, nil)
		for _, batch := range [][]string{second, first} {
			if _, err := p.Ingest(context.Background(), []byte("["+strings.Join(batch, ",")+"]")); err != nil {
				t.Fatalf("Ingest failed: %v", err)
			}
		}

		got := repo.Get(id)
		if baseline == nil {
			baseline = got
			continue
		}
		if got.Metrics != baseline.Metrics {
			t.Errorf("order %v: metrics %+v differ from %+v", order, got.Metrics, baseline.Metrics)
		}
		for k, v := range baseline.Analytics.Devices {
			if got.Analytics.Devices[k] != v {
				t.Errorf("order %v: device %s = %d, want %d", order, k, got.Analytics.Devices[k], v)
			}
		}
		for k, v := range baseline.Analytics.Geos {
			if got.Analytics.Geos[k] != v {
				t.Errorf("order %v: geo %s = %d, want %d", order, k, got.Analytics.Geos[k], v)
			}
		}
	}

	want := campaign.Metrics{Sent: 0, Delivered: 2, Opened: 1, Clicked: 2}
	if baseline.Metrics != want {
		t.Errorf("expected %+v, got %+v", want, baseline.Metrics)
	}
}

func TestIngestSkipsBadEventsAndContinues(t *testing.T) {
	repo := campaigntest.NewRepository()
	id := seedCampaign(repo)

	body := fmt.Sprintf(`[
		"not an object",
		{"event":"delivered"},
		{"event":"delivered","campaignId":"not-an-object-id"},
		{"event":"delivered","campaignId":"%s"},
		{"event":"delivered","campaignId":42},
		{"event":"delivered","custom_args":{"campaignId":"%s"}}
	]`, primitive.NewObjectID().Hex(), id.Hex())

	res, err := newPipeline(repo, nil).Ingest(context.Background(), []byte(body))
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	want := Result{Received: 6, Applied: 1, Unattributed: 3, Malformed: 2}
	if res != want {
		t.Errorf("expected %+v, got %+v", want, res)
	}
	if repo.Get(id).Metrics.Delivered != 1 {
		t.Error("valid event after bad ones was not applied")
	}
}

func TestIngestRejectsNonArrayPayload(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		fault bool
	}{
		{"object", `{"event":"open"}`, true},
		{"null", `null`, true},
		{"string", `"open"`, true},
		{"truncated", `[{"event":`, true},
		{"empty array", `[]`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newPipeline(campaigntest.NewRepository(), nil).Ingest(context.Background(), []byte(tt.body))
			if got := errors.Is(err, ErrIngestionFault); got != tt.fault {
				t.Errorf("expected fault=%v, got %v", tt.fault, err)
			}
		})
	}
}

func TestIngestRetriesTransientStoreErrors(t *testing.T) {
	base := campaigntest.NewRepository()
	id := seedCampaign(base)

	body := []byte(fmt.Sprintf(`[{"event":"delivered","campaignId":"%s"}]`, id.Hex()))

	t.Run("recovers", func(t *testing.T) {
		repo := &flakyRepo{Repository: base, Failures: incrementAttempts - 1}
		res, _ := newPipeline(repo, nil).Ingest(context.Background(), body)
		if res.Applied != 1 {
			t.Errorf("expected event applied after retries, got %+v", res)
		}
	})

	t.Run("gives up", func(t *testing.T) {
		repo := &flakyRepo{Repository: base, Failures: incrementAttempts}
		res, err := newPipeline(repo, nil).Ingest(context.Background(), body)
		if err != nil {
			t.Fatalf("per event failure must not fail the batch: %v", err)
		}
		if res.Failed != 1 {
			t.Errorf("expected one failed event, got %+v", res)
		}
	})
}
