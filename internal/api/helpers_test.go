package api

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

type testAPI struct {
	t      *testing.T
	router *gin.Engine
	db     *gorm.DB
	auth   *service.AuthService
	images *testhelpers.MemoryImageStore
}

func setupAPI(t *testing.T) *testAPI {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testhelpers.SetupSQLite(t)
	auth := service.NewAuthService(db, "test-secret", time.Hour, nil)
	images := testhelpers.NewMemoryImageStore()

	router := gin.New()
	RegisterRoutes(router, Services{
		Auth:          auth,
		Users:         service.NewUserService(db),
		Catalog:       service.NewCatalogService(db),
		Recipes:       service.NewRecipeService(db, images),
		Favorites:     service.NewFavoriteService(db),
		ShoppingCart:  service.NewShoppingCartService(db),
		ShoppingList:  service.NewShoppingListService(db),
		Subscriptions: service.NewSubscriptionService(db),
	}, config.PaginationConfig{DefaultLimit: 6, MaxLimit: 100}, nil)

	return &testAPI{t: t, router: router, db: db, auth: auth, images: images}
}

// login creates a user and returns it with a token.
func (a *testAPI) login() (*models.User, string) {
	a.t.Helper()
	user := testhelpers.CreateUser(a.t, a.db)
	token, err := a.auth.GenerateToken(user)
	require.NoError(a.t, err)
	return user, token
}

func (a *testAPI) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Token "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}
