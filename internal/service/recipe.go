package service

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/metrics"
	"github.com/pageza/foodgram/backend/internal/models"
)

// IngredientLine is one requested recipe ingredient.
type IngredientLine struct {
	IngredientID uint
	Amount       int
}

// RecipeInput is the payload of create and update. On update a nil scalar
// keeps the stored value; tags and ingredients are always required and
// replace the stored sets.
type RecipeInput struct {
	Name        *string
	Text        *string
	CookingTime *int
	Image       *Image
	Tags        []uint
	Ingredients []IngredientLine
}

// RecipeView is a recipe with the flags computed for one viewer.
type RecipeView struct {
	models.Recipe
	IsFavorited      bool
	IsInShoppingCart bool
	AuthorSubscribed bool
}

// RecipeFilter narrows recipe listings. Tags match by slug, any of them.
type RecipeFilter struct {
	Tags             []string
	AuthorID         uint
	IsFavorited      bool
	IsInShoppingCart bool
}

// MaxIntegerValue is the largest amount or cooking time the INTEGER
// columns can hold.
const MaxIntegerValue = math.MaxInt32

// PageRequest is a 1-based page and a page size.
type PageRequest struct {
	Page  int
	Limit int
}

// Offset is the number of rows before the page, saturating at math.MaxInt.
func (p PageRequest) Offset() int {
	if p.Page < 1 || p.Limit < 1 {
		return 0
	}
	if p.Page-1 > math.MaxInt/p.Limit {
		return math.MaxInt
	}
	return (p.Page - 1) * p.Limit
}

// RecipeService composes recipes together with their tags and ingredient lines.
type RecipeService struct {
	db            *gorm.DB
	images        ImageStore
	subscriptions *Membership[models.Subscription]
}

var _ IRecipeService = (*RecipeService)(nil)

func NewRecipeService(db *gorm.DB, images ImageStore) *RecipeService {
	return &RecipeService{
		db:            db,
		images:        images,
		subscriptions: newSubscriptionSet(db),
	}
}

// Create stores a recipe with its tags and ingredient lines in one transaction.
func (s *RecipeService) Create(ctx context.Context, authorID uint, in RecipeInput) (*RecipeView, error) {
	if err := validateRecipeInput(in, true); err != nil {
		return nil, err
	}
	tags, err := s.resolveRefs(ctx, in)
	if err != nil {
		return nil, err
	}

	imageURL, err := s.images.Save(ctx, in.Image)
	if err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		AuthorID:    authorID,
		Name:        *in.Name,
		Text:        *in.Text,
		CookingTime: *in.CookingTime,
		Image:       imageURL,
		Tags:        tags,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Tags are reference data: link them without upserting
		if err := tx.Omit("Author", "Tags.*", "IngredientAmounts").Create(&recipe).Error; err != nil {
			return fmt.Errorf("insert recipe: %w", err)
		}
		return insertLines(tx, recipe.ID, in.Ingredients)
	})
	if err != nil {
		s.discardImage(ctx, imageURL)
		return nil, err
	}

	metrics.RecipeEvents.WithLabelValues("created").Inc()
	logging.Ctx(ctx).Info().Uint("recipe_id", recipe.ID).Uint("author_id", authorID).Msg("recipe created")

	return s.Get(ctx, recipe.ID, authorID)
}

// Update replaces the recipe's tags and ingredient lines and any provided
// scalar fields. Only the author may update.
func (s *RecipeService) Update(ctx context.Context, recipeID, actorID uint, in RecipeInput) (*RecipeView, error) {
	recipe, err := s.load(ctx, recipeID)
	if err != nil {
		return nil, err
	}
	if recipe.AuthorID != actorID {
		return nil, forbidden("only the author can change this recipe")
	}

	if err := validateRecipeInput(in, false); err != nil {
		return nil, err
	}
	tags, err := s.resolveRefs(ctx, in)
	if err != nil {
		return nil, err
	}

	updates := map[string]any{}
	if in.Name != nil {
		updates["name"] = *in.Name
	}
	if in.Text != nil {
		updates["text"] = *in.Text
	}
	if in.CookingTime != nil {
		updates["cooking_time"] = *in.CookingTime
	}
	var newImage string
	if in.Image != nil {
		if newImage, err = s.images.Save(ctx, in.Image); err != nil {
			return nil, err
		}
		updates["image"] = newImage
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(updates) > 0 {
			if err := tx.Model(&models.Recipe{ID: recipeID}).Updates(updates).Error; err != nil {
				return fmt.Errorf("update recipe: %w", err)
			}
		}
		if err := tx.Model(&models.Recipe{ID: recipeID}).Omit("Tags.*").Association("Tags").Replace(tags); err != nil {
			return fmt.Errorf("replace tags: %w", err)
		}
		if err := tx.Where("recipe_id = ?", recipeID).Delete(&models.IngredientAmount{}).Error; err != nil {
			return fmt.Errorf("clear ingredient lines: %w", err)
		}
		return insertLines(tx, recipeID, in.Ingredients)
	})
	if err != nil {
		if newImage != "" {
			s.discardImage(ctx, newImage)
		}
		return nil, err
	}
	if newImage != "" {
		s.discardImage(ctx, recipe.Image)
	}

	metrics.RecipeEvents.WithLabelValues("updated").Inc()
	logging.Ctx(ctx).Info().Uint("recipe_id", recipeID).Msg("recipe updated")

	return s.Get(ctx, recipeID, actorID)
}

// Delete removes a recipe together with its lines, tag links, favorites
// and cart entries. Only the author may delete.
func (s *RecipeService) Delete(ctx context.Context, recipeID, actorID uint) error {
	recipe, err := s.load(ctx, recipeID)
	if err != nil {
		return err
	}
	if recipe.AuthorID != actorID {
		return forbidden("only the author can delete this recipe")
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, dep := range []any{&models.IngredientAmount{}, &models.Favorite{}, &models.ShoppingCartItem{}} {
			if err := tx.Where("recipe_id = ?", recipeID).Delete(dep).Error; err != nil {
				return fmt.Errorf("delete recipe dependents: %w", err)
			}
		}
		if err := tx.Model(recipe).Association("Tags").Clear(); err != nil {
			return fmt.Errorf("unlink tags: %w", err)
		}
		if err := tx.Delete(&models.Recipe{}, recipeID).Error; err != nil {
			return fmt.Errorf("delete recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.discardImage(ctx, recipe.Image)
	metrics.RecipeEvents.WithLabelValues("deleted").Inc()
	logging.Ctx(ctx).Info().Uint("recipe_id", recipeID).Msg("recipe deleted")
	return nil
}

// Get returns one recipe as seen by viewerID (0 for anonymous).
func (s *RecipeService) Get(ctx context.Context, recipeID, viewerID uint) (*RecipeView, error) {
	var flags []recipeFlags
	err := s.annotated(ctx, viewerID).Where("recipes.id = ?", recipeID).Scan(&flags).Error
	if err != nil {
		return nil, fmt.Errorf("get recipe: %w", err)
	}
	if len(flags) == 0 {
		return nil, notFound("recipe %d not found", recipeID)
	}

	views, err := s.hydrate(ctx, flags, viewerID)
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

// List returns a page of recipes, newest first, and the total match count.
func (s *RecipeService) List(ctx context.Context, viewerID uint, filter RecipeFilter, page PageRequest) ([]RecipeView, int64, error) {
	// per-user filters match nothing for anonymous callers
	if viewerID == 0 && (filter.IsFavorited || filter.IsInShoppingCart) {
		return []RecipeView{}, 0, nil
	}

	var total int64
	if err := s.filtered(s.db.WithContext(ctx).Model(&models.Recipe{}), viewerID, filter).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count recipes: %w", err)
	}

	var flags []recipeFlags
	err := s.filtered(s.annotated(ctx, viewerID), viewerID, filter).
		Order("recipes.created_at DESC").Order("recipes.id DESC").
		Limit(page.Limit).Offset(page.Offset()).
		Scan(&flags).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}

	views, err := s.hydrate(ctx, flags, viewerID)
	if err != nil {
		return nil, 0, err
	}
	return views, total, nil
}

type recipeFlags struct {
	ID               uint
	IsFavorited      bool
	IsInShoppingCart bool
}

// annotated selects recipe ids with the viewer's favorite and cart flags
// computed in the same statement.
func (s *RecipeService) annotated(ctx context.Context, viewerID uint) *gorm.DB {
	return s.db.WithContext(ctx).Model(&models.Recipe{}).Select(
		"recipes.id AS id, "+
			"EXISTS (SELECT 1 FROM favorites f WHERE f.recipe_id = recipes.id AND f.user_id = ?) AS is_favorited, "+
			"EXISTS (SELECT 1 FROM shopping_cart_items c WHERE c.recipe_id = recipes.id AND c.user_id = ?) AS is_in_shopping_cart",
		viewerID, viewerID,
	)
}

func (s *RecipeService) filtered(q *gorm.DB, viewerID uint, f RecipeFilter) *gorm.DB {
	if len(f.Tags) > 0 {
		q = q.Where("EXISTS (SELECT 1 FROM recipe_tags rt JOIN tags t ON t.id = rt.tag_id WHERE rt.recipe_id = recipes.id AND t.slug IN ?)", f.Tags)
	}
	if f.AuthorID != 0 {
		q = q.Where("recipes.author_id = ?", f.AuthorID)
	}
	if f.IsFavorited {
		q = q.Where("EXISTS (SELECT 1 FROM favorites f WHERE f.recipe_id = recipes.id AND f.user_id = ?)", viewerID)
	}
	if f.IsInShoppingCart {
		q = q.Where("EXISTS (SELECT 1 FROM shopping_cart_items c WHERE c.recipe_id = recipes.id AND c.user_id = ?)", viewerID)
	}
	return q
}

// hydrate loads the full recipes for flags and returns them in flags order.
func (s *RecipeService) hydrate(ctx context.Context, flags []recipeFlags, viewerID uint) ([]RecipeView, error) {
	views := make([]RecipeView, 0, len(flags))
	if len(flags) == 0 {
		return views, nil
	}

	ids := make([]uint, len(flags))
	for i, f := range flags {
		ids[i] = f.ID
	}

	var recipes []models.Recipe
	err := s.db.WithContext(ctx).
		Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id") }).
		Preload("IngredientAmounts", func(db *gorm.DB) *gorm.DB { return db.Order("recipe_ingredients.id") }).
		Preload("IngredientAmounts.Ingredient").
		Where("id IN ?", ids).
		Find(&recipes).Error
	if err != nil {
		return nil, fmt.Errorf("load recipes: %w", err)
	}

	byID := make(map[uint]models.Recipe, len(recipes))
	authorIDs := make([]uint, 0, len(recipes))
	for _, r := range recipes {
		byID[r.ID] = r
		authorIDs = append(authorIDs, r.AuthorID)
	}

	subscribed, err := s.subscriptions.Objects(ctx, viewerID, authorIDs)
	if err != nil {
		return nil, err
	}

	for _, f := range flags {
		r, ok := byID[f.ID]
		if !ok {
			// deleted between the two queries
			continue
		}
		views = append(views, RecipeView{
			Recipe:           r,
			IsFavorited:      f.IsFavorited,
			IsInShoppingCart: f.IsInShoppingCart,
			AuthorSubscribed: subscribed[r.AuthorID],
		})
	}
	return views, nil
}

func (s *RecipeService) load(ctx context.Context, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, id).Error; err != nil {
		if database.IsNotFound(err) {
			return nil, notFound("recipe %d not found", id)
		}
		return nil, fmt.Errorf("load recipe: %w", err)
	}
	return &recipe, nil
}

// resolveRefs checks that every referenced tag and ingredient exists and
// returns the distinct tags.
func (s *RecipeService) resolveRefs(ctx context.Context, in RecipeInput) ([]models.Tag, error) {
	tagIDs := distinct(in.Tags)
	var tags []models.Tag
	if err := s.db.WithContext(ctx).Where("id IN ?", tagIDs).Order("id").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("load tags: %w", err)
	}
	if len(tags) != len(tagIDs) {
		return nil, invalid("tags", "Invalid tag id %d: object does not exist.", firstMissing(tagIDs, tags, func(t models.Tag) uint { return t.ID }))
	}

	ingredientIDs := make([]uint, len(in.Ingredients))
	for i, line := range in.Ingredients {
		ingredientIDs[i] = line.IngredientID
	}
	ingredientIDs = distinct(ingredientIDs)
	var known []models.Ingredient
	if err := s.db.WithContext(ctx).Select("id").Where("id IN ?", ingredientIDs).Find(&known).Error; err != nil {
		return nil, fmt.Errorf("load ingredients: %w", err)
	}
	if len(known) != len(ingredientIDs) {
		return nil, invalid("ingredients", "Invalid ingredient id %d: object does not exist.", firstMissing(ingredientIDs, known, func(i models.Ingredient) uint { return i.ID }))
	}

	return tags, nil
}

func (s *RecipeService) discardImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.images.Delete(context.WithoutCancel(ctx), url); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("image", url).Msg("failed to remove recipe image")
	}
}

func insertLines(tx *gorm.DB, recipeID uint, lines []IngredientLine) error {
	rows := make([]models.IngredientAmount, len(lines))
	for i, l := range lines {
		rows[i] = models.IngredientAmount{RecipeID: recipeID, IngredientID: l.IngredientID, Amount: l.Amount}
	}
	if err := tx.Omit(clause.Associations).Create(&rows).Error; err != nil {
		return fmt.Errorf("insert ingredient lines: %w", err)
	}
	return nil
}

func validateRecipeInput(in RecipeInput, create bool) error {
	if create {
		switch {
		case in.Name == nil:
			return invalid("name", "This field is required.")
		case in.Text == nil:
			return invalid("text", "This field is required.")
		case in.CookingTime == nil:
			return invalid("cooking_time", "This field is required.")
		case in.Image == nil:
			return invalid("image", "This field is required.")
		}
	}
	if in.Name != nil && *in.Name == "" {
		return invalid("name", "This field may not be blank.")
	}
	if in.Text != nil && *in.Text == "" {
		return invalid("text", "This field may not be blank.")
	}
	if in.CookingTime != nil && *in.CookingTime < 1 {
		return invalid("cooking_time", "Cooking time must be at least 1 minute.")
	}
	if in.CookingTime != nil && *in.CookingTime > MaxIntegerValue {
		return invalid("cooking_time", "Ensure this value is less than or equal to %d.", MaxIntegerValue)
	}
	if len(in.Tags) == 0 || len(in.Ingredients) == 0 {
		field := "tags"
		if len(in.Tags) > 0 {
			field = "ingredients"
		}
		return invalid(field, "Ingredients and tags are required.")
	}
	for _, l := range in.Ingredients {
		if l.Amount < 1 {
			return invalid("ingredients", "Amount of ingredient %d must be at least 1.", l.IngredientID)
		}
		if l.Amount > MaxIntegerValue {
			return invalid("ingredients", "Amount of ingredient %d must be at most %d.", l.IngredientID, MaxIntegerValue)
		}
	}
	return nil
}

func distinct(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func firstMissing[T any](want []uint, have []T, id func(T) uint) uint {
	found := make(map[uint]bool, len(have))
	for _, h := range have {
		found[id(h)] = true
	}
	for _, w := range want {
		if !found[w] {
			return w
		}
	}
	return 0
}
