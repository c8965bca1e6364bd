package campaign

import (
	"context"
	"errors"
	"testing"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestCampaignRepositoryMock(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("increment matches campaign", func(mt *mtest.T) {
		repo := &CampaignRepositoryImpl{Collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 1},
			bson.E{Key: "nModified", Value: 1},
		))

		err := repo.Increment(context.Background(), primitive.NewObjectID(), map[string]int64{
			"metrics.delivered": 1,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	mt.Run("increment on missing campaign", func(mt *mtest.T) {
		repo := &CampaignRepositoryImpl{Collection: mt.Coll}
		mt.AddMockResponses(mtest.CreateSuccessResponse(
			bson.E{Key: "n", Value: 0},
			bson.E{Key: "nModified", Value: 0},
		))

		err := repo.Increment(context.Background(), primitive.NewObjectID(), map[string]int64{
			"metrics.opened": 1,
		})
		if !errors.Is(err, ErrCampaignNotFound) {
			t.Errorf("expected ErrCampaignNotFound, got %v", err)
		}
	})

	mt.Run("empty increment is a no-op", func(mt *mtest.T) {
		repo := &CampaignRepositoryImpl{Collection: mt.Coll}
		if err := repo.Increment(context.Background(), primitive.NewObjectID(), nil); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	mt.Run("find by id decodes record", func(mt *mtest.T) {
		repo := &CampaignRepositoryImpl{Collection: mt.Coll}
		id := primitive.NewObjectID()
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(1, ns, mtest.FirstBatch, bson.D{
			{Key: "_id", Value: id},
			{Key: "name", Value: "Launch"},
			{Key: "status", Value: "sent"},
			{Key: "metrics", Value: bson.D{{Key: "sent", Value: int64(2)}, {Key: "opened", Value: int64(1)}}},
			{Key: "analytics", Value: bson.D{{Key: "devices", Value: bson.D{{Key: "Mobile", Value: int64(1)}}}}},
		}))

		c, err := repo.FindByID(context.Background(), id)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Status != StatusSent || c.Metrics.Sent != 2 || c.Analytics.Devices["Mobile"] != 1 {
			t.Errorf("unexpected campaign: %+v", c)
		}
	})

	mt.Run("find by id and owner miss", func(mt *mtest.T) {
		repo := &CampaignRepositoryImpl{Collection: mt.Coll}
		ns := mt.Coll.Database().Name() + "." + mt.Coll.Name()
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))

		_, err := repo.FindByIDAndOwner(context.Background(), primitive.NewObjectID(), primitive.NewObjectID())
		if !errors.Is(err, ErrCampaignNotFound) {
			t.Errorf("expected ErrCampaignNotFound, got %v", err)
		}
	})
}
