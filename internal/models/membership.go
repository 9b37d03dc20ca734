package models

import "time"

// Favorite, ShoppingCartItem and Subscription are pair tables. The unique
// index on each pair is what rejects duplicates.

type Favorite struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_favorites_user_recipe"`
	RecipeID  uint `gorm:"not null;uniqueIndex:idx_favorites_user_recipe;index"`
	CreatedAt time.Time
}

type ShoppingCartItem struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint `gorm:"not null;uniqueIndex:idx_cart_user_recipe"`
	RecipeID  uint `gorm:"not null;uniqueIndex:idx_cart_user_recipe;index"`
	CreatedAt time.Time
}

type Subscription struct {
	ID           uint `gorm:"primaryKey"`
	SubscriberID uint `gorm:"not null;uniqueIndex:idx_subscriptions_pair;check:chk_subscriptions_not_self,subscriber_id <> author_id"`
	AuthorID     uint `gorm:"not null;uniqueIndex:idx_subscriptions_pair;index"`
	CreatedAt    time.Time
}

// All lists every model in dependency order for auto-migration.
func All() []any {
	return []any{
		&User{},
		&Ingredient{},
		&Tag{},
		&Recipe{},
		&IngredientAmount{},
		&Favorite{},
		&ShoppingCartItem{},
		&Subscription{},
	}
}
