package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/api"
	"github.com/pageza/foodgram/backend/internal/middleware"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db := testhelpers.SetupSQLite(t)

	cfg := &config.Config{
		Server:     config.ServerConfig{Host: "127.0.0.1", Port: "0", CORSOrigins: []string{"http://localhost:3000"}},
		Storage:    config.StorageConfig{Driver: "local", BaseURL: "/media", LocalDir: t.TempDir()},
		Pagination: config.PaginationConfig{DefaultLimit: 6, MaxLimit: 100},
	}

	auth := service.NewAuthService(db, "test-secret", time.Hour, nil)
	svc := api.Services{
		Auth:          auth,
		Users:         service.NewUserService(db),
		Catalog:       service.NewCatalogService(db),
		Recipes:       service.NewRecipeService(db, testhelpers.NewMemoryImageStore()),
		Favorites:     service.NewFavoriteService(db),
		ShoppingCart:  service.NewShoppingCartService(db),
		ShoppingList:  service.NewShoppingListService(db),
		Subscriptions: service.NewSubscriptionService(db),
	}
	return NewServer(cfg, db, svc, opts)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, Options{})

	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"healthy","database":"ok"}`, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/api/tags/", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	s.Router().ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `foodgram_http_requests_total{method="GET",route="/api/tags/",status="200"}`)
}

func TestRoutesRequireAuth(t *testing.T) {
	s := newTestServer(t, Options{})

	for _, tc := range []struct{ method, path string }{
		{"POST", "/api/recipes/"},
		{"GET", "/api/recipes/download_shopping_cart/"},
		{"POST", "/api/recipes/1/favorite/"},
		{"DELETE", "/api/recipes/1/shopping_cart/"},
		{"GET", "/api/users/subscriptions/"},
		{"POST", "/api/users/1/subscribe/"},
		{"GET", "/api/users/me/"},
		{"POST", "/api/auth/token/logout/"},
	} {
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, httptest.NewRequest(tc.method, tc.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, "%s %s", tc.method, tc.path)
	}
}

func TestRecipeCreationRateLimit(t *testing.T) {
	limiter := middleware.NewLocalLimiter(middleware.RateLimitConfig{Window: time.Hour, Limit: 1})
	s := newTestServer(t, Options{CreateLimiter: limiter})

	db := s.db
	user := testhelpers.CreateUser(t, db)
	token, err := service.NewAuthService(db, "test-secret", time.Hour, nil).GenerateToken(user)
	require.NoError(t, err)

	post := func() *httptest.ResponseRecorder {
		req := httptest.NewRequest("POST", "/api/recipes/", nil)
		req.Header.Set("Authorization", "Token "+token)
		w := httptest.NewRecorder()
		s.Router().ServeHTTP(w, req)
		return w
	}

	// the empty body fails validation but still consumes the allowance
	assert.Equal(t, http.StatusBadRequest, post().Code)
	assert.Equal(t, http.StatusTooManyRequests, post().Code)
}

func TestStartStop(t *testing.T) {
	s := newTestServer(t, Options{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
