package campaign

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Scheduler holds at most one pending delivery per campaign.
type Scheduler interface {
	Schedule(c *Campaign, onFire func(*Campaign)) bool
	Cancel(id string)
}

// Executor performs the send for a campaign on behalf of requester.
type Executor interface {
	Execute(ctx context.Context, id, requester primitive.ObjectID) (*Campaign, error)
}

type CampaignService interface {
	CreateCampaign(ctx context.Context, owner primitive.ObjectID, input *CampaignInput) (*Campaign, error)
	GetCampaign(ctx context.Context, id, owner primitive.ObjectID) (*Campaign, error)
	ListCampaigns(ctx context.Context, owner primitive.ObjectID) ([]Campaign, error)
	UpdateCampaign(ctx context.Context, id, owner primitive.ObjectID, patch *CampaignPatch) (*Campaign, error)
	DeleteCampaign(ctx context.Context, id, owner primitive.ObjectID) error
	SendCampaign(ctx context.Context, id, owner primitive.ObjectID) (*Campaign, error)
	GetMetrics(ctx context.Context, id primitive.ObjectID) (*Metrics, error)
	GetAnalytics(ctx context.Context, id primitive.ObjectID) (*Analytics, error)
	ExportAnalytics(ctx context.Context, id, owner primitive.ObjectID) ([]byte, string, error)
	// ResumeScheduled re-arms timers lost on restart and sends campaigns whose time passed while down.
	ResumeScheduled(ctx context.Context) (int, error)
}

const scheduledSendTimeout = 5 * time.Minute

type CampaignServiceImpl struct {
	Repo      CampaignRepository
	Scheduler Scheduler
	Executor  Executor
	logger    *zap.Logger
	now       func() time.Time
}

func NewCampaignService(repo CampaignRepository, scheduler Scheduler, executor Executor, logger *zap.Logger) CampaignService {
	return &CampaignServiceImpl{
		Repo:      repo,
		Scheduler: scheduler,
		Executor:  executor,
		logger:    logger.Named("campaign"),
		now:       time.Now,
	}
}

func (s *CampaignServiceImpl) CreateCampaign(ctx context.Context, owner primitive.ObjectID, input *CampaignInput) (*Campaign, error) {
	if err := validateStruct(input); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	c := &Campaign{
		ID:                primitive.NewObjectID(),
		Owner:             owner,
		Name:              input.Name,
		Description:       input.Description,
		Subject:           input.Subject,
		Content:           input.Content,
		Recipients:        input.Recipients,
		Status:            StatusDraft,
		ScheduledTimezone: input.ScheduledTimezone,
		Analytics:         Analytics{Devices: CounterMap{}, Geos: CounterMap{}},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if input.ScheduledAt != nil {
		at := input.ScheduledAt.UTC()
		c.ScheduledAt = &at
	}

	if err := s.Repo.Create(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("campaign created", zap.String("campaign_id", c.ID.Hex()), zap.String("owner_id", owner.Hex()))
	return s.dispatch(ctx, c)
}

func (s *CampaignServiceImpl) GetCampaign(ctx context.Context, id, owner primitive.ObjectID) (*Campaign, error) {
	return s.Repo.FindByIDAndOwner(ctx, id, owner)
}

func (s *CampaignServiceImpl) ListCampaigns(ctx context.Context, owner primitive.ObjectID) ([]Campaign, error) {
	return s.Repo.ListByOwner(ctx, owner)
}

func (s *CampaignServiceImpl) UpdateCampaign(ctx context.Context, id, owner primitive.ObjectID, patch *CampaignPatch) (*Campaign, error) {
	if err := validateStruct(patch); err != nil {
		return nil, err
	}

	set := bson.M{}
	var unset []string
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Subject != nil {
		set["subject"] = *patch.Subject
	}
	if patch.Content != nil {
		set["content"] = *patch.Content
	}
	if patch.Recipients != nil {
		set["recipients"] = patch.Recipients
	}
	if patch.ScheduledTimezone != nil {
		set["scheduledTimezone"] = *patch.ScheduledTimezone
	}
	if patch.ScheduledAt.Set {
		if patch.ScheduledAt.Value == nil {
			unset = append(unset, "scheduledAt")
		} else {
			set["scheduledAt"] = patch.ScheduledAt.Value.UTC()
		}
	}
	if patch.touchesContent() {
		// an edited campaign earns a fresh retry budget
		set["deliveryAttempts"] = 0
		set["lastDeliveryError"] = ""
	}

	// The pending timer must be gone before the record changes underneath it.
	if _, err := s.Repo.FindByIDAndOwner(ctx, id, owner); err != nil {
		return nil, err
	}
	s.Scheduler.Cancel(id.Hex())

	c, err := s.Repo.FindOneAndUpdate(ctx, id, owner, set, unset)
	if err != nil {
		return nil, err
	}

	s.logger.Info("campaign updated", zap.String("campaign_id", id.Hex()), zap.String("owner_id", owner.Hex()))
	return s.dispatch(ctx, c)
}

func (s *CampaignServiceImpl) DeleteCampaign(ctx context.Context, id, owner primitive.ObjectID) error {
	if _, err := s.Repo.FindByIDAndOwner(ctx, id, owner); err != nil {
		return err
	}
	s.Scheduler.Cancel(id.Hex())

	if _, err := s.Repo.FindOneAndDelete(ctx, id, owner); err != nil {
		return err
	}

	s.logger.Info("campaign deleted", zap.String("campaign_id", id.Hex()), zap.String("owner_id", owner.Hex()))
	return nil
}

func (s *CampaignServiceImpl) SendCampaign(ctx context.Context, id, owner primitive.ObjectID) (*Campaign, error) {
	c, err := s.Repo.FindByIDAndOwner(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if c.Status == StatusSent {
		return c, nil
	}
	s.Scheduler.Cancel(id.Hex())
	return s.sendNow(ctx, c)
}

func (s *CampaignServiceImpl) GetMetrics(ctx context.Context, id primitive.ObjectID) (*Metrics, error) {
	c, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &c.Metrics, nil
}

func (s *CampaignServiceImpl) GetAnalytics(ctx context.Context, id primitive.ObjectID) (*Analytics, error) {
	c, err := s.Repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return &c.Analytics, nil
}

func (s *CampaignServiceImpl) ExportAnalytics(ctx context.Context, id, owner primitive.ObjectID) ([]byte, string, error) {
	c, err := s.Repo.FindByIDAndOwner(ctx, id, owner)
	if err != nil {
		return nil, "", err
	}
	return ExportToExcel(c)
}

func (s *CampaignServiceImpl) ResumeScheduled(ctx context.Context) (int, error) {
	campaigns, err := s.Repo.ListScheduled(ctx)
	if err != nil {
		return 0, err
	}

	now := s.now()
	rearmed := 0
	for i := range campaigns {
		c := &campaigns[i]
		if c.DueAfter(now) {
			if s.Scheduler.Schedule(c, s.fire) {
				rearmed++
			}
			continue
		}
		s.logger.Warn("scheduled send missed while offline, sending now", zap.String("campaign_id", c.ID.Hex()))
		if _, err := s.sendNow(ctx, c); err != nil {
			s.logger.Error("missed scheduled delivery failed", zap.String("campaign_id", c.ID.Hex()), zap.Error(err))
		}
	}
	return rearmed, nil
}

// dispatch routes a freshly written campaign to the scheduler or straight to the executor.
func (s *CampaignServiceImpl) dispatch(ctx context.Context, c *Campaign) (*Campaign, error) {
	if c.Status == StatusSent {
		return c, nil
	}

	if c.DueAfter(s.now()) && s.Scheduler.Schedule(c, s.fire) {
		if c.Status != StatusScheduled {
			c.Status = StatusScheduled
			if err := s.Repo.Save(ctx, c); err != nil {
				s.Scheduler.Cancel(c.ID.Hex())
				return nil, err
			}
		}
		s.logger.Info("campaign scheduled",
			zap.String("campaign_id", c.ID.Hex()),
			zap.Time("scheduled_at", *c.ScheduledAt),
			zap.String("timezone", c.ScheduledTimezone),
		)
		return c, nil
	}

	return s.sendNow(ctx, c)
}

func (s *CampaignServiceImpl) sendNow(ctx context.Context, c *Campaign) (*Campaign, error) {
	// No timer backs this campaign any more
	if c.Status == StatusScheduled {
		c.Status = StatusDraft
		if err := s.Repo.Save(ctx, c); err != nil {
			return nil, err
		}
	}

	sent, err := s.Executor.Execute(ctx, c.ID, c.Owner)
	if sent == nil {
		sent = c
	}
	return sent, err
}

// fire is the scheduler callback. It runs outside any request.
// The timer is gone once it fires, so the record leaves scheduled before the send
// and a refused send leaves it as draft rather than pending forever.
func (s *CampaignServiceImpl) fire(armed *Campaign) {
	ctx, cancel := context.WithTimeout(context.Background(), scheduledSendTimeout)
	defer cancel()

	c, err := s.Repo.FindByID(ctx, armed.ID)
	if errors.Is(err, ErrCampaignNotFound) {
		s.logger.Info("scheduled campaign no longer exists", zap.String("campaign_id", armed.ID.Hex()))
		return
	}
	if err != nil {
		s.logger.Error("failed to load scheduled campaign", zap.String("campaign_id", armed.ID.Hex()), zap.Error(err))
		return
	}

	if _, err := s.sendNow(ctx, c); err != nil {
		if errors.Is(err, ErrCampaignNotFound) {
			s.logger.Info("scheduled campaign no longer exists", zap.String("campaign_id", c.ID.Hex()))
			return
		}
		s.logger.Error("scheduled delivery failed",
			zap.String("campaign_id", c.ID.Hex()),
			zap.String("owner_id", c.Owner.Hex()),
			zap.Error(err),
		)
		return
	}
	s.logger.Info("scheduled delivery completed", zap.String("campaign_id", c.ID.Hex()))
}
