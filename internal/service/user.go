package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/models"
)

// UserView is a user as seen by a viewer.
type UserView struct {
	models.User
	IsSubscribed bool
}

type UserService struct {
	db            *gorm.DB
	subscriptions *Membership[models.Subscription]
}

var _ IUserService = (*UserService)(nil)

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db, subscriptions: newSubscriptionSet(db)}
}

func (s *UserService) Get(ctx context.Context, id, viewerID uint) (*UserView, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, notFound("user %d not found", id)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	views, err := s.annotate(ctx, []models.User{u}, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *UserService) List(ctx context.Context, viewerID uint, page PageRequest) ([]UserView, int64, error) {
	var total int64
	if err := s.db.WithContext(ctx).Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	if err := s.db.WithContext(ctx).Order("id").Limit(page.Limit).Offset(page.Offset()).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	views, err := s.annotate(ctx, users, viewerID)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

func (s *UserService) annotate(ctx context.Context, users []models.User, viewerID uint) ([]UserView, error) {
	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	subscribed, err := s.subscriptions.Objects(ctx, viewerID, ids)
	if err != nil {
		return nil, err
	}

	views := make([]UserView, len(users))
	for i, u := range users {
		views[i] = UserView{User: u, IsSubscribed: subscribed[u.ID]}
	}
	return views, nil
}
