// Command seed loads the ingredient and tag catalogs from JSON files.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pageza/foodgram/backend/config"
	"github.com/pageza/foodgram/backend/internal/database"
	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/models"
)

const batchSize = 500

type ingredientRecord struct {
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
}

type tagRecord struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Slug  string `json:"slug"`
}

func main() {
	dataDir := flag.String("data", "data", "Directory holding ingredients.json and tags.json")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}
	logging.Init(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})

	db, err := database.Open(cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := database.RunMigrations(db, cfg.Database.MigrationsDir); err != nil {
		logging.Fatal().Err(err).Msg("failed to run migrations")
	}

	ingredients, tags, err := seedCatalog(db, *dataDir)
	if err != nil {
		logging.Fatal().Err(err).Msg("seeding failed")
	}
	logging.Info().Int("ingredients", ingredients).Int("tags", tags).Msg("catalog seeded")
}

// seedCatalog inserts the records from dir that are not present yet and
// returns how many of each kind were added.
func seedCatalog(db *gorm.DB, dir string) (int, int, error) {
	var ingredients []ingredientRecord
	if err := readJSON(filepath.Join(dir, "ingredients.json"), &ingredients); err != nil {
		return 0, 0, err
	}
	var tags []tagRecord
	if err := readJSON(filepath.Join(dir, "tags.json"), &tags); err != nil {
		return 0, 0, err
	}

	addedIngredients, err := seedIngredients(db, ingredients)
	if err != nil {
		return 0, 0, err
	}
	addedTags, err := seedTags(db, tags)
	if err != nil {
		return addedIngredients, 0, err
	}
	return addedIngredients, addedTags, nil
}

// seedIngredients skips pairs of name and unit that already exist, since
// ingredient names are not unique on their own.
func seedIngredients(db *gorm.DB, records []ingredientRecord) (int, error) {
	var existing []models.Ingredient
	if err := db.Select("name", "measurement_unit").Find(&existing).Error; err != nil {
		return 0, fmt.Errorf("load ingredients: %w", err)
	}
	seen := make(map[ingredientRecord]bool, len(existing))
	for _, ing := range existing {
		seen[ingredientRecord{ing.Name, ing.MeasurementUnit}] = true
	}

	var rows []models.Ingredient
	for _, r := range records {
		if r.Name == "" || seen[r] {
			continue
		}
		seen[r] = true
		rows = append(rows, models.Ingredient{Name: r.Name, MeasurementUnit: r.MeasurementUnit})
	}
	if len(rows) == 0 {
		return 0, nil
	}
	if err := db.CreateInBatches(rows, batchSize).Error; err != nil {
		return 0, fmt.Errorf("insert ingredients: %w", err)
	}
	return len(rows), nil
}

func seedTags(db *gorm.DB, records []tagRecord) (int, error) {
	added := 0
	for _, r := range records {
		tag := models.Tag{Name: r.Name, Color: r.Color, Slug: r.Slug}
		res := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&tag)
		if res.Error != nil {
			return added, fmt.Errorf("insert tag %s: %w", r.Slug, res.Error)
		}
		added += int(res.RowsAffected)
	}
	return added, nil
}

func readJSON(path string, dst any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
