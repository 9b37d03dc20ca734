package models

import "time"

type Recipe struct {
	ID                uint               `gorm:"primaryKey"`
	AuthorID          uint               `gorm:"not null;index"`
	Author            User               `gorm:"constraint:OnDelete:CASCADE"`
	Name              string             `gorm:"size:200;not null"`
	Text              string             `gorm:"type:text;not null"`
	CookingTime       int                `gorm:"not null;check:chk_recipes_cooking_time,cooking_time >= 1"`
	Image             string             `gorm:"size:500;not null"`
	CreatedAt         time.Time          `gorm:"not null;index"`
	Tags              []Tag              `gorm:"many2many:recipe_tags;constraint:OnDelete:CASCADE"`
	IngredientAmounts []IngredientAmount `gorm:"constraint:OnDelete:CASCADE"`
}

// IngredientAmount is one ingredient line of a recipe. A recipe may list the
// same ingredient more than once.
type IngredientAmount struct {
	ID           uint       `gorm:"primaryKey"`
	RecipeID     uint       `gorm:"not null;index"`
	IngredientID uint       `gorm:"not null;index"`
	Ingredient   Ingredient `gorm:"constraint:OnDelete:RESTRICT"`
	Amount       int        `gorm:"not null;check:chk_recipe_ingredients_amount,amount >= 1"`
}

func (IngredientAmount) TableName() string {
	return "recipe_ingredients"
}
