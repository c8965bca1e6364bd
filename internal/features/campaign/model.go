package campaign

import (
	"encoding/json"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusScheduled Status = "scheduled"
	StatusSent      Status = "sent"
)

type Metrics struct {
	Sent      int64 `bson:"sent" json:"sent"`
	Delivered int64 `bson:"delivered" json:"delivered"`
	Opened    int64 `bson:"opened" json:"opened"`
	Clicked   int64 `bson:"clicked" json:"clicked"`
}

// CounterMap is a key to count mapping. It always serializes as a JSON object.
type CounterMap map[string]int64

func (m CounterMap) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]int64(m))
}

type Analytics struct {
	Devices CounterMap `bson:"devices" json:"devices"`
	Geos    CounterMap `bson:"geos" json:"geos"`
}

type Campaign struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Owner             primitive.ObjectID `bson:"owner" json:"owner"`
	Name              string             `bson:"name" json:"name"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	Subject           string             `bson:"subject" json:"subject"`
	Content           string             `bson:"content" json:"content"`
	Recipients        []string           `bson:"recipients" json:"recipients"`
	Status            Status             `bson:"status" json:"status"`
	ScheduledAt       *time.Time         `bson:"scheduledAt,omitempty" json:"scheduledAt,omitempty"`
	ScheduledTimezone string             `bson:"scheduledTimezone,omitempty" json:"scheduledTimezone,omitempty"`
	SentAt            *time.Time         `bson:"sentAt,omitempty" json:"sentAt,omitempty"`
	Metrics           Metrics            `bson:"metrics" json:"metrics"`
	Analytics         Analytics          `bson:"analytics" json:"analytics"`
	DeliveryAttempts  int                `bson:"deliveryAttempts" json:"deliveryAttempts"`
	LastDeliveryError string             `bson:"lastDeliveryError,omitempty" json:"lastDeliveryError,omitempty"`
	CreatedAt         time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt         time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// DueAfter reports whether the campaign carries a send time strictly after now.
func (c *Campaign) DueAfter(now time.Time) bool {
	return c.ScheduledAt != nil && c.ScheduledAt.UTC().After(now.UTC())
}

// Snapshot is the live view pushed to watchers of a campaign.
type Snapshot struct {
	ID         string    `json:"id"`
	Metrics    Metrics   `json:"metrics"`
	Analytics  Analytics `json:"analytics"`
	Status     Status    `json:"status"`
	Recipients []string  `json:"recipients"`
}

func (c *Campaign) Snapshot() Snapshot {
	recipients := c.Recipients
	if recipients == nil {
		recipients = []string{}
	}
	return Snapshot{
		ID:         c.ID.Hex(),
		Metrics:    c.Metrics,
		Analytics:  c.Analytics,
		Status:     c.Status,
		Recipients: recipients,
	}
}

// CampaignInput is the body accepted when creating a campaign.
type CampaignInput struct {
	Name              string     `json:"name" validate:"required"`
	Description       string     `json:"description"`
	Subject           string     `json:"subject" validate:"required"`
	Content           string     `json:"content" validate:"required"`
	Recipients        []string   `json:"recipients" validate:"required,min=1,dive,required,email"`
	ScheduledAt       *time.Time `json:"scheduledAt"`
	ScheduledTimezone string     `json:"scheduledTimezone"`
}

// OptionalTime distinguishes an absent field from an explicit null.
type OptionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *OptionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

// CampaignPatch is a partial update. Nil fields are left unchanged.
type CampaignPatch struct {
	Name              *string      `json:"name" validate:"omitempty,min=1"`
	Description       *string      `json:"description"`
	Subject           *string      `json:"subject" validate:"omitempty,min=1"`
	Content           *string      `json:"content" validate:"omitempty,min=1"`
	Recipients        []string     `json:"recipients" validate:"omitempty,min=1,dive,required,email"`
	ScheduledAt       OptionalTime `json:"scheduledAt"`
	ScheduledTimezone *string      `json:"scheduledTimezone"`
}

// touchesContent reports whether the patch changes what would be sent.
func (p *CampaignPatch) touchesContent() bool {
	return p.Subject != nil || p.Content != nil || p.Recipients != nil
}
