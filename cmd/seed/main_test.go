package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pageza/foodgram/backend/internal/models"
	"github.com/pageza/foodgram/backend/internal/testhelpers"
)

func writeData(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	ingredients := `[
		{"name": "salt", "measurement_unit": "g"},
		{"name": "salt", "measurement_unit": "pinch"},
		{"name": "salt", "measurement_unit": "g"},
		{"name": "water", "measurement_unit": "ml"}
	]`
	tags := `[
		{"name": "Breakfast", "color": "#E26C2D", "slug": "breakfast"},
		{"name": "Lunch", "color": "#49B64E", "slug": "lunch"}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ingredients.json"), []byte(ingredients), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tags.json"), []byte(tags), 0o644))
	return dir
}

func TestSeedCatalogIsIdempotent(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	dir := writeData(t)

	ingredients, tags, err := seedCatalog(db, dir)
	require.NoError(t, err)
	assert.Equal(t, 3, ingredients)
	assert.Equal(t, 2, tags)

	ingredients, tags, err = seedCatalog(db, dir)
	require.NoError(t, err)
	assert.Zero(t, ingredients)
	assert.Zero(t, tags)

	var n int64
	require.NoError(t, db.Model(&models.Ingredient{}).Count(&n).Error)
	assert.EqualValues(t, 3, n)
	require.NoError(t, db.Model(&models.Tag{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

func TestSeedCatalogMissingFile(t *testing.T) {
	db := testhelpers.SetupSQLite(t)
	_, _, err := seedCatalog(db, t.TempDir())
	assert.Error(t, err)
}

func TestShippedDataParses(t *testing.T) {
	var ingredients []ingredientRecord
	require.NoError(t, readJSON(filepath.Join("..", "..", "data", "ingredients.json"), &ingredients))
	assert.NotEmpty(t, ingredients)

	var tags []tagRecord
	require.NoError(t, readJSON(filepath.Join("..", "..", "data", "tags.json"), &tags))
	assert.NotEmpty(t, tags)
}
