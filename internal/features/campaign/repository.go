package campaign

import (
	"context"
	"errors"
	"time"

	"go-campaign/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CampaignRepository interface {
	Create(ctx context.Context, c *Campaign) error
	FindByID(ctx context.Context, id primitive.ObjectID) (*Campaign, error)
	FindByIDAndOwner(ctx context.Context, id, owner primitive.ObjectID) (*Campaign, error)
	ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]Campaign, error)
	ListScheduled(ctx context.Context) ([]Campaign, error)
	// FindOneAndUpdate applies set/unset scoped to id and owner and returns the updated record.
	FindOneAndUpdate(ctx context.Context, id, owner primitive.ObjectID, set bson.M, unset []string) (*Campaign, error)
	// Save persists the lifecycle fields of c: status, schedule, sentAt, metrics.sent and delivery bookkeeping.
	// Webhook counters are never overwritten.
	Save(ctx context.Context, c *Campaign) error
	FindOneAndDelete(ctx context.Context, id, owner primitive.ObjectID) (*Campaign, error)
	// Increment adds each delta to its dotted field path in a single atomic update.
	Increment(ctx context.Context, id primitive.ObjectID, deltas map[string]int64) error
	EnsureIndexes(ctx context.Context) error
}

type CampaignRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewCampaignRepository(mongodb *database.MongodbDB) CampaignRepository {
	return &CampaignRepositoryImpl{
		Collection: mongodb.DB.Collection("campaigns"),
	}
}

func (r *CampaignRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "scheduledAt", Value: 1}}},
	})
	return err
}

func (r *CampaignRepositoryImpl) Create(ctx context.Context, c *Campaign) error {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	// $inc on a nested counter fails when the parent map is null
	if c.Analytics.Devices == nil {
		c.Analytics.Devices = CounterMap{}
	}
	if c.Analytics.Geos == nil {
		c.Analytics.Geos = CounterMap{}
	}
	if c.Recipients == nil {
		c.Recipients = []string{}
	}
	_, err := r.Collection.InsertOne(ctx, c)
	return err
}

func (r *CampaignRepositoryImpl) findOne(ctx context.Context, filter bson.M) (*Campaign, error) {
	var c Campaign
	err := r.Collection.FindOne(ctx, filter).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepositoryImpl) FindByID(ctx context.Context, id primitive.ObjectID) (*Campaign, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *CampaignRepositoryImpl) FindByIDAndOwner(ctx context.Context, id, owner primitive.ObjectID) (*Campaign, error) {
	return r.findOne(ctx, bson.M{"_id": id, "owner": owner})
}

func (r *CampaignRepositoryImpl) list(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]Campaign, error) {
	cursor, err := r.Collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	campaigns := []Campaign{}
	if err := cursor.All(ctx, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

func (r *CampaignRepositoryImpl) ListByOwner(ctx context.Context, owner primitive.ObjectID) ([]Campaign, error) {
	return r.list(ctx, bson.M{"owner": owner}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

func (r *CampaignRepositoryImpl) ListScheduled(ctx context.Context) ([]Campaign, error) {
	return r.list(ctx, bson.M{"status": StatusScheduled}, options.Find().SetSort(bson.D{{Key: "scheduledAt", Value: 1}}))
}

func (r *CampaignRepositoryImpl) FindOneAndUpdate(ctx context.Context, id, owner primitive.ObjectID, set bson.M, unset []string) (*Campaign, error) {
	if set == nil {
		set = bson.M{}
	}
	set["updatedAt"] = time.Now().UTC()
	update := bson.M{"$set": set}
	if len(unset) > 0 {
		fields := bson.M{}
		for _, f := range unset {
			fields[f] = ""
		}
		update["$unset"] = fields
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var c Campaign
	err := r.Collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "owner": owner}, update, opts).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepositoryImpl) Save(ctx context.Context, c *Campaign) error {
	c.UpdatedAt = time.Now().UTC()
	set := bson.M{
		"status":            c.Status,
		"metrics.sent":      c.Metrics.Sent,
		"deliveryAttempts":  c.DeliveryAttempts,
		"lastDeliveryError": c.LastDeliveryError,
		"updatedAt":         c.UpdatedAt,
	}
	unset := bson.M{}
	if c.ScheduledAt != nil {
		set["scheduledAt"] = c.ScheduledAt
	} else {
		unset["scheduledAt"] = ""
	}
	if c.SentAt != nil {
		set["sentAt"] = c.SentAt
	}

	update := bson.M{"$set": set}
	if len(unset) > 0 {
		update["$unset"] = unset
	}

	res, err := r.Collection.UpdateOne(ctx, bson.M{"_id": c.ID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrCampaignNotFound
	}
	return nil
}

func (r *CampaignRepositoryImpl) FindOneAndDelete(ctx context.Context, id, owner primitive.ObjectID) (*Campaign, error) {
	var c Campaign
	err := r.Collection.FindOneAndDelete(ctx, bson.M{"_id": id, "owner": owner}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrCampaignNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *CampaignRepositoryImpl) Increment(ctx context.Context, id primitive.ObjectID, deltas map[string]int64) error {
	if len(deltas) == 0 {
		return nil
	}
	inc := bson.M{}
	for field, delta := range deltas {
		inc[field] = delta
	}

	res, err := r.Collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": inc})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrCampaignNotFound
	}
	return nil
}
