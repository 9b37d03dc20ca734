package service

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/metrics"
	"github.com/pageza/foodgram/backend/internal/models"
)

// AuthorView is a followed author with a preview of their recipes.
type AuthorView struct {
	models.User
	IsSubscribed bool
	// Recipes are oldest first, truncated to the requested limit.
	Recipes      []models.Recipe
	RecipesCount int64
}

// NoRecipesLimit embeds every recipe of an author. A limit of 0 embeds none.
const NoRecipesLimit = -1

// SubscriptionService manages who follows whom.
type SubscriptionService struct {
	db  *gorm.DB
	set *Membership[models.Subscription]
}

var _ ISubscriptionService = (*SubscriptionService)(nil)

func newSubscriptionSet(db *gorm.DB) *Membership[models.Subscription] {
	return NewMembership(db, "subscriber_id", "author_id", func(subscriber, author uint) *models.Subscription {
		return &models.Subscription{SubscriberID: subscriber, AuthorID: author}
	})
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db, set: newSubscriptionSet(db)}
}

// Subscribe makes subscriberID follow authorID. recipesLimit truncates the
// embedded recipes unless it is NoRecipesLimit.
func (s *SubscriptionService) Subscribe(ctx context.Context, subscriberID, authorID uint, recipesLimit int) (*AuthorView, error) {
	if subscriberID == authorID {
		return nil, invalid("author", "You cannot subscribe to yourself.")
	}
	author, err := s.author(ctx, authorID)
	if err != nil {
		return nil, err
	}

	err = s.set.Add(ctx, subscriberID, authorID)
	s.record("add", err)
	if errors.Is(err, ErrConflict) {
		return nil, conflict("you are already subscribed to this author")
	}
	if err != nil {
		return nil, err
	}
	logging.Ctx(ctx).Info().Uint("subscriber_id", subscriberID).Uint("author_id", authorID).Msg("subscribed")

	views, err := s.withRecipes(ctx, []models.User{*author}, recipesLimit)
	if err != nil {
		return nil, err
	}
	views[0].IsSubscribed = true
	return &views[0], nil
}

// Unsubscribe removes the subscription. An unknown author is ErrNotFound;
// a missing subscription is ErrConflict.
func (s *SubscriptionService) Unsubscribe(ctx context.Context, subscriberID, authorID uint) error {
	if _, err := s.author(ctx, authorID); err != nil {
		return err
	}

	err := s.set.Remove(ctx, subscriberID, authorID)
	s.record("remove", err)
	if errors.Is(err, ErrNotFound) {
		return conflict("you are not subscribed to this author")
	}
	return err
}

// List returns the authors subscriberID follows in subscription order.
func (s *SubscriptionService) List(ctx context.Context, subscriberID uint, recipesLimit int, page PageRequest) ([]AuthorView, int64, error) {
	base := func() *gorm.DB {
		return s.db.WithContext(ctx).Model(&models.User{}).
			Joins("JOIN subscriptions s ON s.author_id = users.id").
			Where("s.subscriber_id = ?", subscriberID)
	}

	var total int64
	if err := base().Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count subscriptions: %w", err)
	}

	var authors []models.User
	if err := base().Order("s.id").Limit(page.Limit).Offset(page.Offset()).Find(&authors).Error; err != nil {
		return nil, 0, fmt.Errorf("list subscriptions: %w", err)
	}

	views, err := s.withRecipes(ctx, authors, recipesLimit)
	if err != nil {
		return nil, 0, err
	}
	for i := range views {
		views[i].IsSubscribed = true
	}
	return views, total, nil
}

func (s *SubscriptionService) author(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := s.db.WithContext(ctx).First(&u, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, notFound("author %d not found", id)
		}
		return nil, fmt.Errorf("load author: %w", err)
	}
	return &u, nil
}

// withRecipes attaches recipe previews and counts to authors with two queries.
func (s *SubscriptionService) withRecipes(ctx context.Context, authors []models.User, limit int) ([]AuthorView, error) {
	views := make([]AuthorView, len(authors))
	if len(authors) == 0 {
		return views, nil
	}

	ids := make([]uint, len(authors))
	for i, a := range authors {
		ids[i] = a.ID
	}

	var recipes []models.Recipe
	err := s.db.WithContext(ctx).
		Where("author_id IN ?", ids).
		Order("created_at").Order("id").
		Find(&recipes).Error
	if err != nil {
		return nil, fmt.Errorf("load author recipes: %w", err)
	}

	byAuthor := make(map[uint][]models.Recipe, len(authors))
	for _, r := range recipes {
		byAuthor[r.AuthorID] = append(byAuthor[r.AuthorID], r)
	}

	for i, a := range authors {
		all := byAuthor[a.ID]
		shown := all
		if limit >= 0 && len(shown) > limit {
			shown = shown[:limit]
		}
		if shown == nil {
			shown = []models.Recipe{}
		}
		views[i] = AuthorView{User: a, Recipes: shown, RecipesCount: int64(len(all))}
	}
	return views, nil
}

func (s *SubscriptionService) record(op string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrConflict):
		outcome = "conflict"
	case errors.Is(err, ErrNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	metrics.MembershipChanges.WithLabelValues("subscription", op, outcome).Inc()
}
