package user

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SubscriptionStatus string

const (
	SubscriptionNone      SubscriptionStatus = "none"
	SubscriptionTrial     SubscriptionStatus = "trial"
	SubscriptionActive    SubscriptionStatus = "active"
	SubscriptionExpired   SubscriptionStatus = "expired"
	SubscriptionCancelled SubscriptionStatus = "cancelled"
)

type Subscription struct {
	Status             SubscriptionStatus `bson:"status" json:"status"`
	TrialEndsAt        *time.Time         `bson:"trialEndsAt,omitempty" json:"trialEndsAt,omitempty"`
	SubscriptionEndsAt *time.Time         `bson:"subscriptionEndsAt,omitempty" json:"subscriptionEndsAt,omitempty"`
}

// Lapsed reports whether a trial or paid period has ended as of now.
func (s Subscription) Lapsed(now time.Time) bool {
	switch s.Status {
	case SubscriptionTrial:
		return s.TrialEndsAt != nil && s.TrialEndsAt.Before(now)
	case SubscriptionActive:
		return s.SubscriptionEndsAt != nil && s.SubscriptionEndsAt.Before(now)
	}
	return false
}

// User is the sender identity campaigns are delivered from.
type User struct {
	ID               primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name             string             `bson:"name" json:"name"`
	Email            string             `bson:"email" json:"email"`
	IsSenderVerified bool               `bson:"isSenderVerified" json:"isSenderVerified"`
	SendgridSenderId string             `bson:"sendgridSenderId,omitempty" json:"sendgridSenderId,omitempty"`
	Subscription     Subscription       `bson:"subscription" json:"subscription"`
	CreatedAt        time.Time          `bson:"createdAt" json:"createdAt"`
}
