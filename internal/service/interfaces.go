package service

import (
	"context"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/types"
)

// IAuthService defines the interface for authentication operations
type IAuthService interface {
	Register(ctx context.Context, req types.RegisterRequest) (*models.User, error)
	Login(ctx context.Context, email, password string) (string, error)
	GenerateToken(user *models.User) (string, error)
	ValidateToken(ctx context.Context, token string) (*types.TokenClaims, error)
	Logout(ctx context.Context, claims *types.TokenClaims) error
	SetPassword(ctx context.Context, userID uint, current, next string) error
}

type IUserService interface {
	Get(ctx context.Context, id, viewerID uint) (*UserView, error)
	List(ctx context.Context, viewerID uint, page PageRequest) ([]UserView, int64, error)
}

// ICatalogService reads ingredients and tags
type ICatalogService interface {
	Ingredients(ctx context.Context, prefix string) ([]models.Ingredient, error)
	Ingredient(ctx context.Context, id uint) (*models.Ingredient, error)
	Tags(ctx context.Context) ([]models.Tag, error)
	Tag(ctx context.Context, id uint) (*models.Tag, error)
}

// IRecipeService defines the interface for recipe operations. viewerID and
// actorID are 0 for anonymous callers.
type IRecipeService interface {
	Create(ctx context.Context, authorID uint, in RecipeInput) (*RecipeView, error)
	Update(ctx context.Context, recipeID, actorID uint, in RecipeInput) (*RecipeView, error)
	Delete(ctx context.Context, recipeID, actorID uint) error
	Get(ctx context.Context, recipeID, viewerID uint) (*RecipeView, error)
	List(ctx context.Context, viewerID uint, filter RecipeFilter, page PageRequest) ([]RecipeView, int64, error)
}

// IRecipeToggle is implemented by the favorites and shopping cart services.
type IRecipeToggle interface {
	Add(ctx context.Context, userID, recipeID uint) (*models.Recipe, error)
	Remove(ctx context.Context, userID, recipeID uint) error
}

type IShoppingListService interface {
	Lines(ctx context.Context, userID uint) ([]ShoppingLine, error)
	Build(ctx context.Context, userID uint) (string, error)
}

type ISubscriptionService interface {
	Subscribe(ctx context.Context, subscriberID, authorID uint, recipesLimit int) (*AuthorView, error)
	Unsubscribe(ctx context.Context, subscriberID, authorID uint) error
	List(ctx context.Context, subscriberID uint, recipesLimit int, page PageRequest) ([]AuthorView, int64, error)
}
