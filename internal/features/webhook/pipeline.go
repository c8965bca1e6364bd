package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go-campaign/internal/features/campaign"
	"go-campaign/internal/metrics"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// ErrIngestionFault is a failure of the whole batch, as opposed to a single event.
var ErrIngestionFault = errors.New("webhook ingestion fault")

// Publisher pushes the current record of a campaign to its watchers.
type Publisher interface {
	Publish(c *campaign.Campaign)
}

// Result summarizes one ingested batch.
type Result struct {
	Received     int `json:"received"`
	Applied      int `json:"applied"`
	Noop         int `json:"noop"`
	Unattributed int `json:"unattributed"`
	Malformed    int `json:"malformed"`
	Failed       int `json:"failed"`
}

const incrementAttempts = 3

type Pipeline struct {
	campaigns campaign.CampaignRepository
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *zap.Logger
	backoff   time.Duration
}

func NewPipeline(campaigns campaign.CampaignRepository, publisher Publisher, m *metrics.Metrics, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		campaigns: campaigns,
		publisher: publisher,
		metrics:   m,
		logger:    logger.Named("webhook"),
		backoff:   100 * time.Millisecond,
	}
}

// Ingest applies a batch of provider events in array order. Per event problems are
// counted and skipped; only an undecodable batch returns ErrIngestionFault.
func (p *Pipeline) Ingest(ctx context.Context, body []byte) (Result, error) {
	var raws []json.RawMessage
	if err := json.Unmarshal(body, &raws); err != nil {
		p.metrics.IncWebhookBatch("fault")
		return Result{}, fmt.Errorf("%w: payload is not an event array: %v", ErrIngestionFault, err)
	}
	if raws == nil {
		// null decodes into a nil slice without error
		p.metrics.IncWebhookBatch("fault")
		return Result{}, fmt.Errorf("%w: payload is null", ErrIngestionFault)
	}

	res := Result{Received: len(raws)}
	var touched []primitive.ObjectID
	seen := map[primitive.ObjectID]bool{}

	for i, raw := range raws {
		id, outcome := p.apply(ctx, i, raw)
		p.metrics.IncWebhookEvent(outcome)
		switch outcome {
		case metrics.OutcomeApplied:
			res.Applied++
			if !seen[id] {
				seen[id] = true
				touched = append(touched, id)
			}
		case metrics.OutcomeNoop:
			res.Noop++
		case metrics.OutcomeUnattributed:
			res.Unattributed++
		case metrics.OutcomeMalformed:
			res.Malformed++
		default:
			res.Failed++
		}
	}

	for _, id := range touched {
		p.publish(ctx, id)
	}

	p.metrics.IncWebhookBatch("ok")
	p.logger.Debug("webhook batch ingested",
		zap.Int("received", res.Received),
		zap.Int("applied", res.Applied),
		zap.Int("unattributed", res.Unattributed),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (p *Pipeline) apply(ctx context.Context, index int, raw json.RawMessage) (primitive.ObjectID, string) {
	event, err := ParseEvent(raw)
	if err != nil {
		p.logger.Warn("malformed webhook event", zap.Int("index", index), zap.Error(err))
		return primitive.NilObjectID, metrics.OutcomeMalformed
	}

	if event.CampaignID == "" {
		return primitive.NilObjectID, metrics.OutcomeUnattributed
	}
	id, err := primitive.ObjectIDFromHex(event.CampaignID)
	if err != nil {
		p.logger.Info("webhook event for unknown campaign id",
			zap.String("campaign_id", event.CampaignID),
			zap.String("event", event.Kind),
		)
		return primitive.NilObjectID, metrics.OutcomeUnattributed
	}

	deltas := Classify(event)
	if len(deltas) == 0 {
		return id, metrics.OutcomeNoop
	}

	err = p.increment(ctx, id, deltas)
	switch {
	case err == nil:
		return id, metrics.OutcomeApplied
	case errors.Is(err, campaign.ErrCampaignNotFound):
		return id, metrics.OutcomeUnattributed
	default:
		p.logger.Error("failed to apply webhook event",
			zap.String("campaign_id", event.CampaignID),
			zap.String("event", event.Kind),
			zap.Any("deltas", deltas),
			zap.Error(err),
		)
		return id, metrics.OutcomeFailed
	}
}

// increment retries transient store errors. A missing campaign is not retried.
func (p *Pipeline) increment(ctx context.Context, id primitive.ObjectID, deltas map[string]int64) error {
	var err error
	for attempt := 1; attempt <= incrementAttempts; attempt++ {
		err = p.campaigns.Increment(ctx, id, deltas)
		if err == nil || errors.Is(err, campaign.ErrCampaignNotFound) {
			return err
		}
		if attempt == incrementAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(p.backoff * time.Duration(attempt)):
		}
	}
	return err
}

func (p *Pipeline) publish(ctx context.Context, id primitive.ObjectID) {
	if p.publisher == nil {
		return
	}
	c, err := p.campaigns.FindByID(ctx, id)
	if err != nil {
		if !errors.Is(err, campaign.ErrCampaignNotFound) {
			p.logger.Warn("re-read after webhook update failed", zap.String("campaign_id", id.Hex()), zap.Error(err))
		}
		return
	}
	p.publisher.Publish(c)
}
