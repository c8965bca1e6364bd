// Package campaigntest provides an in-memory campaign store for tests.
package campaigntest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-campaign/internal/features/campaign"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Repository mimics the document store semantics the services rely on:
// owner scoping, lifecycle-only saves and atomic dotted-path increments.
type Repository struct {
	mu        sync.Mutex
	campaigns map[primitive.ObjectID]*campaign.Campaign

	Saves      int
	Increments int
	// IncrementErr, when set, is returned by Increment for every call.
	IncrementErr error
}

func NewRepository(seed ...*campaign.Campaign) *Repository {
	r := &Repository{campaigns: map[primitive.ObjectID]*campaign.Campaign{}}
	for _, c := range seed {
		r.Put(c)
	}
	return r
}

// Put stores a copy of c, filling the id and analytics maps when missing.
func (r *Repository) Put(c *campaign.Campaign) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	cp := clone(c)
	if cp.Analytics.Devices == nil {
		cp.Analytics.Devices = campaign.CounterMap{}
	}
	if cp.Analytics.Geos == nil {
		cp.Analytics.Geos = campaign.CounterMap{}
	}
	r.campaigns[c.ID] = cp
}

// Get returns a copy of the stored campaign, or nil.
func (r *Repository) Get(id primitive.ObjectID) *campaign.Campaign {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return nil
	}
	return clone(c)
}

func clone(c *campaign.Campaign) *campaign.Campaign {
	cp := *c
	cp.Recipients = append([]string(nil), c.Recipients...)
	cp.Analytics.Devices = copyCounts(c.Analytics.Devices)
	cp.Analytics.Geos = copyCounts(c.Analytics.Geos)
	if c.ScheduledAt != nil {
		t := *c.ScheduledAt
		cp.ScheduledAt = &t
	}
	if c.SentAt != nil {
		t := *c.SentAt
		cp.SentAt = &t
	}
	return &cp
}

func copyCounts(m campaign.CounterMap) campaign.CounterMap {
	if m == nil {
		return nil
	}
	out := make(campaign.CounterMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (r *Repository) EnsureIndexes(ctx context.Context) error { return nil }

func (r *Repository) Create(ctx context.Context, c *campaign.Campaign) error {
	r.Put(c)
	return nil
}

func (r *Repository) FindByID(ctx context.Context, id primitive.ObjectID) (*campaign.Campaign, error) {
	if c := r.Get(id); c != nil {
		return c, nil
	}
	return nil, campaign.ErrCampaignNotFound
}

func (r *Repository) FindByIDAndOwner(ctx context.Context, id, owner primitive.ObjectID) (*campaign.Campaign, error) {
	c := r.Get(id)
	if c == nil || c.Owner != owner {
		return nil, campaign.ErrCampaignNotFound
	}
	return c, nil
}

func (r *Repository) ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]campaign.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []campaign.Campaign{}
	for _, c := range r.campaigns {
		if c.Owner == owner {
			out = append(out, *clone(c))
		}
	}
	return out, nil
}

func (r *Repository) ListScheduled(ctx context.Context) ([]campaign.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []campaign.Campaign{}
	for _, c := range r.campaigns {
		if c.Status == campaign.StatusScheduled {
			out = append(out, *clone(c))
		}
	}
	return out, nil
}

func (r *Repository) FindOneAndUpdate(ctx context.Context, id, owner primitive.ObjectID, set bson.M, unset []string) (*campaign.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Owner != owner {
		return nil, campaign.ErrCampaignNotFound
	}
	for field, value := range set {
		switch field {
		case "name":
			c.Name = value.(string)
		case "description":
			c.Description = value.(string)
		case "subject":
			c.Subject = value.(string)
		case "content":
			c.Content = value.(string)
		case "recipients":
			c.Recipients = append([]string(nil), value.([]string)...)
		case "scheduledTimezone":
			c.ScheduledTimezone = value.(string)
		case "scheduledAt":
			t := value.(time.Time)
			c.ScheduledAt = &t
		case "deliveryAttempts":
			c.DeliveryAttempts = value.(int)
		case "lastDeliveryError":
			c.LastDeliveryError = value.(string)
		case "updatedAt":
			c.UpdatedAt = value.(time.Time)
		default:
			return nil, fmt.Errorf("campaigntest: unsupported set field %q", field)
		}
	}
	for _, field := range unset {
		if field == "scheduledAt" {
			c.ScheduledAt = nil
		}
	}
	return clone(c), nil
}

func (r *Repository) Save(ctx context.Context, c *campaign.Campaign) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.campaigns[c.ID]
	if !ok {
		return campaign.ErrCampaignNotFound
	}
	r.Saves++
	stored.Status = c.Status
	stored.Metrics.Sent = c.Metrics.Sent
	stored.DeliveryAttempts = c.DeliveryAttempts
	stored.LastDeliveryError = c.LastDeliveryError
	stored.ScheduledAt = nil
	if c.ScheduledAt != nil {
		t := *c.ScheduledAt
		stored.ScheduledAt = &t
	}
	if c.SentAt != nil {
		t := *c.SentAt
		stored.SentAt = &t
	}
	return nil
}

func (r *Repository) FindOneAndDelete(ctx context.Context, id, owner primitive.ObjectID) (*campaign.Campaign, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok || c.Owner != owner {
		return nil, campaign.ErrCampaignNotFound
	}
	delete(r.campaigns, id)
	return c, nil
}

func (r *Repository) Increment(ctx context.Context, id primitive.ObjectID, deltas map[string]int64) error {
	if r.IncrementErr != nil {
		return r.IncrementErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.campaigns[id]
	if !ok {
		return campaign.ErrCampaignNotFound
	}
	r.Increments++
	for field, delta := range deltas {
		parts := strings.SplitN(field, ".", 3)
		switch {
		case field == "metrics.delivered":
			c.Metrics.Delivered += delta
		case field == "metrics.opened":
			c.Metrics.Opened += delta
		case field == "metrics.clicked":
			c.Metrics.Clicked += delta
		case len(parts) == 3 && parts[0] == "analytics" && parts[1] == "devices":
			c.Analytics.Devices[parts[2]] += delta
		case len(parts) == 3 && parts[0] == "analytics" && parts[1] == "geos":
			c.Analytics.Geos[parts[2]] += delta
		default:
			return fmt.Errorf("campaigntest: unsupported increment field %q", field)
		}
	}
	return nil
}

var _ campaign.CampaignRepository = (*Repository)(nil)
