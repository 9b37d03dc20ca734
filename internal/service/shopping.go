package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/metrics"
)

// ShoppingLine is one ingredient line, before or after aggregation.
type ShoppingLine struct {
	Name            string
	MeasurementUnit string
	Amount          int
}

// ShoppingListService folds the ingredients of every recipe in a user's
// cart into a printable list.
type ShoppingListService struct {
	db *gorm.DB
}

var _ IShoppingListService = (*ShoppingListService)(nil)

func NewShoppingListService(db *gorm.DB) *ShoppingListService {
	return &ShoppingListService{db: db}
}

// Lines returns the user's aggregated shopping list.
func (s *ShoppingListService) Lines(ctx context.Context, userID uint) ([]ShoppingLine, error) {
	var rows []ShoppingLine
	err := s.db.WithContext(ctx).
		Table("shopping_cart_items AS c").
		Select("i.name AS name, i.measurement_unit AS measurement_unit, ri.amount AS amount").
		Joins("JOIN recipe_ingredients ri ON ri.recipe_id = c.recipe_id").
		Joins("JOIN ingredients i ON i.id = ri.ingredient_id").
		Where("c.user_id = ?", userID).
		Order("c.id").Order("ri.id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load shopping cart ingredients: %w", err)
	}

	lines := Aggregate(rows)
	metrics.ShoppingListLines.Observe(float64(len(lines)))
	return lines, nil
}

// Build renders the user's shopping list as text.
func (s *ShoppingListService) Build(ctx context.Context, userID uint) (string, error) {
	lines, err := s.Lines(ctx, userID)
	if err != nil {
		return "", err
	}
	return Render(lines), nil
}

// Aggregate sums amounts per ingredient name. Groups keep the order in which
// a name is first seen, and the unit of that first occurrence.
func Aggregate(rows []ShoppingLine) []ShoppingLine {
	index := make(map[string]int, len(rows))
	out := make([]ShoppingLine, 0, len(rows))
	for _, r := range rows {
		if i, ok := index[r.Name]; ok {
			out[i].Amount += r.Amount
			continue
		}
		index[r.Name] = len(out)
		out = append(out, r)
	}
	return out
}

// Render writes one "name (unit) — amount" line per group.
func Render(lines []ShoppingLine) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.Name)
		b.WriteString(" (")
		b.WriteString(l.MeasurementUnit)
		b.WriteString(") — ")
		b.WriteString(strconv.Itoa(l.Amount))
		b.WriteByte('\n')
	}
	return b.String()
}
