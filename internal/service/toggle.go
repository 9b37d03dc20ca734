package service

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/metrics"
	"github.com/pageza/foodgram/backend/internal/models"
)

type pairSet interface {
	Add(ctx context.Context, subject, object uint) error
	Remove(ctx context.Context, subject, object uint) error
}

// RecipeToggle is a per-user set of recipes: favorites or the shopping cart.
type RecipeToggle struct {
	db    *gorm.DB
	set   pairSet
	kind  string
	label string
}

var _ IRecipeToggle = (*RecipeToggle)(nil)

func NewFavoriteService(db *gorm.DB) *RecipeToggle {
	return &RecipeToggle{
		db: db,
		set: NewMembership(db, "user_id", "recipe_id", func(user, recipe uint) *models.Favorite {
			return &models.Favorite{UserID: user, RecipeID: recipe}
		}),
		kind:  "favorite",
		label: "favorites",
	}
}

func NewShoppingCartService(db *gorm.DB) *RecipeToggle {
	return &RecipeToggle{
		db: db,
		set: NewMembership(db, "user_id", "recipe_id", func(user, recipe uint) *models.ShoppingCartItem {
			return &models.ShoppingCartItem{UserID: user, RecipeID: recipe}
		}),
		kind:  "shopping_cart",
		label: "the shopping list",
	}
}

// Add puts the recipe in the user's set and returns it.
func (t *RecipeToggle) Add(ctx context.Context, userID, recipeID uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := t.db.WithContext(ctx).First(&recipe, recipeID).Error; err != nil {
		t.record("add", err)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFound("recipe %d does not exist", recipeID)
		}
		return nil, err
	}

	err := t.set.Add(ctx, userID, recipeID)
	t.record("add", err)
	if errors.Is(err, ErrConflict) {
		return nil, conflict("recipe is already in %s", t.label)
	}
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Debug().Str("kind", t.kind).Uint("user_id", userID).Uint("recipe_id", recipeID).Msg("recipe added")
	return &recipe, nil
}

// Remove takes the recipe out of the user's set.
func (t *RecipeToggle) Remove(ctx context.Context, userID, recipeID uint) error {
	err := t.set.Remove(ctx, userID, recipeID)
	t.record("remove", err)
	if errors.Is(err, ErrNotFound) {
		return notFound("recipe is not in %s", t.label)
	}
	return err
}

func (t *RecipeToggle) record(op string, err error) {
	outcome := "ok"
	switch {
	case errors.Is(err, ErrConflict):
		outcome = "conflict"
	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		outcome = "not_found"
	case err != nil:
		outcome = "error"
	}
	metrics.MembershipChanges.WithLabelValues(t.kind, op, outcome).Inc()
}
