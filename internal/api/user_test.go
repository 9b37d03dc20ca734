package api

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/testhelpers"
	"github.com/pageza/foodgram/backend/internal/types"
)

func TestRegisterLoginLogout(t *testing.T) {
	a := setupAPI(t)

	body := map[string]any{
		"email":      "chef@example.com",
		"username":   "chef",
		"first_name": "Gordon",
		"last_name":  "Ramsay",
		"password":   "kitchen-nightmares",
	}
	w := a.do("POST", "/api/users/", "", body)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]any](t, w)
	assert.Equal(t, "chef", created["username"])
	assert.NotContains(t, created, "password")

	w = a.do("POST", "/api/users/", "", body)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decode[map[string][]string](t, w)["email"])

	w = a.do("POST", "/api/auth/token/login/", "", map[string]any{"email": "chef@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do("POST", "/api/auth/token/login/", "", map[string]any{"email": "chef@example.com", "password": "kitchen-nightmares"})
	require.Equal(t, http.StatusOK, w.Code)
	token := decode[types.TokenResponse](t, w).AuthToken
	require.NotEmpty(t, token)

	w = a.do("GET", "/api/users/me/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "chef", decode[types.UserResponse](t, w).Username)

	w = a.do("POST", "/api/auth/token/logout/", token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRegisterValidation(t *testing.T) {
	a := setupAPI(t)

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"reserved username", map[string]any{"email": "a@example.com", "username": "me", "first_name": "a", "last_name": "b", "password": "long-enough"}, "username"},
		{"bad username", map[string]any{"email": "a@example.com", "username": "no spaces", "first_name": "a", "last_name": "b", "password": "long-enough"}, "username"},
		{"bad email", map[string]any{"email": "nope", "username": "ok", "first_name": "a", "last_name": "b", "password": "long-enough"}, "email"},
		{"missing password", map[string]any{"email": "a@example.com", "username": "ok", "first_name": "a", "last_name": "b"}, "password"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := a.do("POST", "/api/users/", "", tt.body)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.NotEmpty(t, decode[map[string][]string](t, w)[tt.field], w.Body.String())
		})
	}
}

func TestUsersListAndDetail(t *testing.T) {
	a := setupAPI(t)
	reader, token := a.login()
	author, _ := a.login()

	w := a.do("POST", fmt.Sprintf("/api/users/%d/subscribe/", author.ID), token, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = a.do("GET", fmt.Sprintf("/api/users/%d/", author.ID), token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[types.UserResponse](t, w).IsSubscribed)

	w = a.do("GET", fmt.Sprintf("/api/users/%d/", author.ID), "", nil)
	assert.False(t, decode[types.UserResponse](t, w).IsSubscribed)

	w = a.do("GET", "/api/users/999/", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do("GET", "/api/users/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[types.Page[types.UserResponse]](t, w)
	assert.EqualValues(t, 2, page.Count)
	assert.Equal(t, reader.ID, page.Results[0].ID)
}

func TestSubscribeFlow(t *testing.T) {
	a := setupAPI(t)
	reader, token := a.login()
	author, _ := a.login()
	for i := 0; i < 3; i++ {
		testhelpers.CreateRecipe(t, a.db, author, fmt.Sprintf("dish%d", i), nil)
		time.Sleep(2 * time.Millisecond)
	}
	path := fmt.Sprintf("/api/users/%d/subscribe/", author.ID)

	w := a.do("POST", path+"?recipes_limit=2", token, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	got := decode[types.AuthorResponse](t, w)
	assert.True(t, got.IsSubscribed)
	assert.EqualValues(t, 3, got.RecipesCount)
	require.Len(t, got.Recipes, 2)
	assert.Equal(t, "dish0", got.Recipes[0].Name)

	w = a.do("POST", path, token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do("POST", fmt.Sprintf("/api/users/%d/subscribe/", reader.ID), token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do("POST", "/api/users/999/subscribe/", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = a.do("POST", path+"?recipes_limit=abc", token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = a.do("GET", "/api/users/subscriptions/?recipes_limit=1", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[types.Page[types.AuthorResponse]](t, w)
	require.EqualValues(t, 1, page.Count)
	assert.Equal(t, author.ID, page.Results[0].ID)
	assert.Len(t, page.Results[0].Recipes, 1)

	w = a.do("GET", "/api/users/subscriptions/?recipes_limit=0", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[types.Page[types.AuthorResponse]](t, w)
	require.Len(t, page.Results, 1)
	assert.Empty(t, page.Results[0].Recipes)
	assert.EqualValues(t, 3, page.Results[0].RecipesCount)

	w = a.do("GET", "/api/users/subscriptions/", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page = decode[types.Page[types.AuthorResponse]](t, w)
	require.Len(t, page.Results, 1)
	assert.Len(t, page.Results[0].Recipes, 3)

	w = a.do("DELETE", path, token, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = a.do("DELETE", path, token, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.NotEmpty(t, decode[map[string]string](t, w)["errors"])

	w = a.do("DELETE", "/api/users/999/subscribe/", token, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
