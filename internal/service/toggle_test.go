package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

func TestRecipeToggle(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	ctx := context.Background()
	author := testhelpers.CreateUser(t, db)
	user := testhelpers.CreateUser(t, db)
	recipe := testhelpers.CreateRecipe(t, db, author, "pie", nil)

	toggles := map[string]*service.RecipeToggle{
		"favorites":     service.NewFavoriteService(db),
		"shopping_cart": service.NewShoppingCartService(db),
	}

	for name, toggle := range toggles {
		t.Run(name, func(t *testing.T) {
			got, err := toggle.Add(ctx, user.ID, recipe.ID)
			require.NoError(t, err)
			assert.Equal(t, recipe.ID, got.ID)
			assert.Equal(t, "pie", got.Name)

			_, err = toggle.Add(ctx, user.ID, recipe.ID)
			assertKind(t, err, service.ErrConflict, "")

			_, err = toggle.Add(ctx, user.ID, 999)
			assertKind(t, err, service.ErrNotFound, "")

			require.NoError(t, toggle.Remove(ctx, user.ID, recipe.ID))

			err = toggle.Remove(ctx, user.ID, recipe.ID)
			assertKind(t, err, service.ErrNotFound, "")
		})
	}
}

func TestRecipeToggleConcurrentAdds(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	ctx := context.Background()
	author := testhelpers.CreateUser(t, db)
	user := testhelpers.CreateUser(t, db)
	recipe := testhelpers.CreateRecipe(t, db, author, "stew", nil)
	favorites := service.NewFavoriteService(db)

	const workers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := favorites.Add(ctx, user.ID, recipe.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				succeeded++
			} else if assert.ErrorIs(t, err, service.ErrConflict) {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	assert.Equal(t, workers-1, conflicts)

	var rows int64
	require.NoError(t, db.Model(&models.Favorite{}).Where("user_id = ? AND recipe_id = ?", user.ID, recipe.ID).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestMembershipObjects(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	ctx := context.Background()
	a := testhelpers.CreateUser(t, db)
	b := testhelpers.CreateUser(t, db)
	c := testhelpers.CreateUser(t, db)

	subs := service.NewMembership(db, "subscriber_id", "author_id", func(subscriber, author uint) *models.Subscription {
		return &models.Subscription{SubscriberID: subscriber, AuthorID: author}
	})
	require.NoError(t, subs.Add(ctx, a.ID, b.ID))

	ok, err := subs.Exists(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = subs.Exists(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.False(t, ok, "pairs are directed")

	got, err := subs.Objects(ctx, a.ID, []uint{b.ID, c.ID})
	require.NoError(t, err)
	assert.Equal(t, map[uint]bool{b.ID: true}, got)

	got, err = subs.Objects(ctx, 0, []uint{b.ID})
	require.NoError(t, err)
	assert.Empty(t, got)
}
