package live

import (
	"context"
	"encoding/json"
	"time"

	"go-campaign/internal/features/campaign"

	"go.uber.org/zap"
)

const EventCampaignUpdate = "campaignUpdate"

// Envelope is the frame pushed to watchers.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// Publisher turns campaign records into snapshots on the campaign's topic.
type Publisher struct {
	hub    *Hub
	relay  *RedisRelay
	logger *zap.Logger
}

func NewPublisher(hub *Hub, relay *RedisRelay, logger *zap.Logger) *Publisher {
	return &Publisher{
		hub:    hub,
		relay:  relay,
		logger: logger.Named("publisher"),
	}
}

// Publish is best effort; failures are logged, never returned.
func (p *Publisher) Publish(c *campaign.Campaign) {
	payload, err := json.Marshal(Envelope{Event: EventCampaignUpdate, Data: c.Snapshot()})
	if err != nil {
		p.logger.Error("failed to encode snapshot", zap.String("campaign_id", c.ID.Hex()), zap.Error(err))
		return
	}
	p.PublishToTopic(Topic(c.ID.Hex()), payload)
}

// PublishToTopic routes through the relay when one is running so every instance sees the update.
func (p *Publisher) PublishToTopic(topic string, payload []byte) {
	if p.relay != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		err := p.relay.Broadcast(ctx, topic, payload)
		if err == nil {
			return
		}
		p.logger.Warn("relay publish failed, delivering locally", zap.String("topic", topic), zap.Error(err))
	}
	p.hub.PublishToTopic(topic, payload)
}
