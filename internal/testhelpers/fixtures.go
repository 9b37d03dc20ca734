package testhelpers

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/service"
)

var seq atomic.Int64

// PNG is a 1x1 transparent PNG encoded as a data URI.
const PNG = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// CreateUser inserts a user with a unique username and email.
func CreateUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	n := seq.Add(1)
	u := &models.User{
		Email:        fmt.Sprintf("user%d@example.com", n),
		Username:     fmt.Sprintf("user%d", n),
		FirstName:    "Test",
		LastName:     fmt.Sprintf("User%d", n),
		PasswordHash: "x",
	}
	if err := db.Create(u).Error; err != nil {
		t.Fatalf("failed to create user: %v", err)
	}
	return u
}

func CreateIngredient(t *testing.T, db *gorm.DB, name, unit string) *models.Ingredient {
	t.Helper()
	ing := &models.Ingredient{Name: name, MeasurementUnit: unit}
	if err := db.Create(ing).Error; err != nil {
		t.Fatalf("failed to create ingredient: %v", err)
	}
	return ing
}

func CreateTag(t *testing.T, db *gorm.DB, slug string) *models.Tag {
	t.Helper()
	n := seq.Add(1)
	tag := &models.Tag{Name: strings.ToUpper(slug[:1]) + slug[1:], Color: fmt.Sprintf("#%06X", n), Slug: slug}
	if err := db.Create(tag).Error; err != nil {
		t.Fatalf("failed to create tag: %v", err)
	}
	return tag
}

// CreateRecipe inserts a recipe directly, bypassing the recipe service.
func CreateRecipe(t *testing.T, db *gorm.DB, author *models.User, name string, tags []models.Tag, lines ...models.IngredientAmount) *models.Recipe {
	t.Helper()
	r := &models.Recipe{
		AuthorID:    author.ID,
		Name:        name,
		Text:        "Mix and serve.",
		CookingTime: 10,
		Image:       "/media/recipes/" + name + ".png",
		Tags:        tags,
	}
	if err := db.Omit("Author", "Tags.*", "IngredientAmounts").Create(r).Error; err != nil {
		t.Fatalf("failed to create recipe: %v", err)
	}
	for i := range lines {
		lines[i].RecipeID = r.ID
		if err := db.Omit("Ingredient").Create(&lines[i]).Error; err != nil {
			t.Fatalf("failed to create recipe line: %v", err)
		}
	}
	r.IngredientAmounts = lines
	return r
}

// Line builds an ingredient line for CreateRecipe.
func Line(ing *models.Ingredient, amount int) models.IngredientAmount {
	return models.IngredientAmount{IngredientID: ing.ID, Amount: amount}
}

// MemoryImageStore records saved images in memory.
type MemoryImageStore struct {
	mu      sync.Mutex
	saved   map[string][]byte
	deleted []string
	n       int
	Err     error
}

func NewMemoryImageStore() *MemoryImageStore {
	return &MemoryImageStore{saved: map[string][]byte{}}
}

func (m *MemoryImageStore) Save(_ context.Context, img *service.Image) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return "", m.Err
	}
	m.n++
	url := fmt.Sprintf("/media/recipes/%d.%s", m.n, img.Ext)
	m.saved[url] = img.Data
	return url, nil
}

func (m *MemoryImageStore) Delete(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.saved, url)
	m.deleted = append(m.deleted, url)
	return nil
}

// Stored reports whether url is currently stored.
func (m *MemoryImageStore) Stored(url string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.saved[url]
	return ok
}

func (m *MemoryImageStore) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}
