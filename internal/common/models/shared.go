package models

import "time"

// Log is the persisted form of a warning or error emitted by the service.
type Log struct {
	AppId        string    `bson:"app_id" json:"app_id"`
	Message      string    `bson:"message" json:"message"`
	Caller       string    `bson:"caller,omitempty" json:"caller,omitempty"`
	CampaignId   string    `bson:"campaign_id,omitempty" json:"campaign_id,omitempty"`
	OwnerId      string    `bson:"owner_id,omitempty" json:"owner_id,omitempty"`
	Error        string    `bson:"error,omitempty" json:"error,omitempty"`
	LogLevelId   int       `bson:"log_level_id" json:"log_level_id"`
	CreatedOnUtc time.Time `bson:"created_on_utc" json:"created_on_utc"`
}
