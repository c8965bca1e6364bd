package user

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type UserService interface {
	GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error)
	// ExpireLapsedSubscription flips a lapsed trial or paid period to expired.
	ExpireLapsedSubscription(ctx context.Context, id primitive.ObjectID) (*User, error)
}

type UserServiceImpl struct {
	UserRepo UserRepository
	now      func() time.Time
}

func NewUserService(userRepo UserRepository) UserService {
	return &UserServiceImpl{
		UserRepo: userRepo,
		now:      time.Now,
	}
}

func (s *UserServiceImpl) GetUserByID(ctx context.Context, id primitive.ObjectID) (*User, error) {
	return s.UserRepo.FindByID(ctx, id)
}

func (s *UserServiceImpl) ExpireLapsedSubscription(ctx context.Context, id primitive.ObjectID) (*User, error) {
	u, err := s.UserRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !u.Subscription.Lapsed(s.now()) {
		return u, nil
	}
	if err := s.UserRepo.UpdateSubscriptionStatus(ctx, id, SubscriptionExpired); err != nil {
		return nil, err
	}
	u.Subscription.Status = SubscriptionExpired
	return u, nil
}
