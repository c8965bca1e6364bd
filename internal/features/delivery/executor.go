package delivery

import (
	"context"
	"errors"
	"time"

	"go-campaign/internal/config"
	"go-campaign/internal/features/campaign"
	"go-campaign/internal/features/user"
	"go-campaign/internal/metrics"

	"github.com/moby/locker"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// BulkMessage is one campaign send: the same content to every recipient.
type BulkMessage struct {
	Recipients []string
	Subject    string
	HTML       string
	CampaignID string
	From       string
}

// Transport delivers a bulk message. A non-nil error fails the whole batch.
type Transport interface {
	SendBulk(ctx context.Context, msg BulkMessage) error
}

// SenderLookup resolves the user a campaign is sent on behalf of.
type SenderLookup interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*user.User, error)
}

// Publisher receives the record after every status transition.
type Publisher interface {
	Publish(c *campaign.Campaign)
}

type Executor struct {
	campaigns   campaign.CampaignRepository
	senders     SenderLookup
	transport   Transport
	publisher   Publisher
	metrics     *metrics.Metrics
	logger      *zap.Logger
	maxAttempts int
	now         func() time.Time

	locks *locker.Locker
}

func NewExecutor(
	campaigns campaign.CampaignRepository,
	senders SenderLookup,
	transport Transport,
	publisher Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *Executor {
	return &Executor{
		campaigns:   campaigns,
		senders:     senders,
		transport:   transport,
		publisher:   publisher,
		metrics:     m,
		logger:      logger.Named("executor"),
		maxAttempts: cfg.MaxDeliveryAttempts,
		now:         time.Now,
		locks:       locker.New(),
	}
}

// Execute sends campaign id from requester's verified address.
//
// The record is re-read first: a deleted campaign yields ErrCampaignNotFound and an
// already sent one is returned unchanged. Eligibility failures leave the record untouched.
// A transport failure reverts the campaign to draft and returns a *DeliveryFailedError.
func (e *Executor) Execute(ctx context.Context, id, requester primitive.ObjectID) (*campaign.Campaign, error) {
	key := id.Hex()
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	c, err := e.campaigns.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Status == campaign.StatusSent {
		return c, nil
	}

	sender, err := e.senders.GetUserByID(ctx, requester)
	if errors.Is(err, user.ErrUserNotFound) {
		e.metrics.IncDelivery(metrics.ResultRejected)
		return c, campaign.ErrSenderNotFound
	}
	if err != nil {
		return c, err
	}
	if !sender.IsSenderVerified {
		e.metrics.IncDelivery(metrics.ResultRejected)
		return c, campaign.ErrSenderNotVerified
	}
	if e.maxAttempts > 0 && c.DeliveryAttempts >= e.maxAttempts {
		e.metrics.IncDelivery(metrics.ResultRejected)
		return c, campaign.ErrRetryLimitReached
	}

	sendErr := e.transport.SendBulk(ctx, BulkMessage{
		Recipients: c.Recipients,
		Subject:    c.Subject,
		HTML:       c.Content,
		CampaignID: c.ID.Hex(),
		From:       sender.Email,
	})
	if sendErr != nil {
		return e.revert(ctx, c, sendErr)
	}

	sentAt := e.now().UTC()
	c.Status = campaign.StatusSent
	c.SentAt = &sentAt
	c.Metrics.Sent = int64(len(c.Recipients))
	c.LastDeliveryError = ""
	if err := e.campaigns.Save(ctx, c); err != nil {
		// mail already left; the stored status is now stale
		e.logger.Error("campaign sent but status not persisted",
			zap.String("campaign_id", c.ID.Hex()),
			zap.Error(err),
		)
		return c, err
	}

	e.metrics.IncDelivery(metrics.ResultSent)
	e.logger.Info("campaign sent",
		zap.String("campaign_id", c.ID.Hex()),
		zap.Int("recipients", len(c.Recipients)),
	)
	e.publish(c)
	return c, nil
}

func (e *Executor) revert(ctx context.Context, c *campaign.Campaign, sendErr error) (*campaign.Campaign, error) {
	c.Status = campaign.StatusDraft
	c.DeliveryAttempts++
	c.LastDeliveryError = sendErr.Error()

	e.metrics.IncDelivery(metrics.ResultFailed)
	e.logger.Warn("campaign delivery failed, reverted to draft",
		zap.String("campaign_id", c.ID.Hex()),
		zap.Int("attempts", c.DeliveryAttempts),
		zap.Error(sendErr),
	)

	if err := e.campaigns.Save(ctx, c); err != nil {
		e.logger.Error("failed to persist draft reversion", zap.String("campaign_id", c.ID.Hex()), zap.Error(err))
	}
	e.publish(c)

	return c, &campaign.DeliveryFailedError{CampaignID: c.ID.Hex(), Err: sendErr}
}

func (e *Executor) publish(c *campaign.Campaign) {
	if e.publisher != nil {
		e.publisher.Publish(c)
	}
}

var _ campaign.Executor = (*Executor)(nil)
