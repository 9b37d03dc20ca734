package service

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/pageza/foodgram/backend/internal/database"
)

// Membership is a set of (subject, object) pairs stored one row per pair in
// a table with a unique index over both columns. Favorites, shopping cart
// entries and subscriptions are all instances.
type Membership[T any] struct {
	db         *gorm.DB
	subjectCol string
	objectCol  string
	build      func(subject, object uint) *T
}

// NewMembership binds a pair table. build returns a new row for a pair.
func NewMembership[T any](db *gorm.DB, subjectCol, objectCol string, build func(subject, object uint) *T) *Membership[T] {
	return &Membership[T]{db: db, subjectCol: subjectCol, objectCol: objectCol, build: build}
}

// Add inserts the pair. ErrConflict is returned when the pair is already
// present; the unique index decides, so concurrent adds of the same pair
// produce exactly one row.
func (m *Membership[T]) Add(ctx context.Context, subject, object uint) error {
	err := m.db.WithContext(ctx).Create(m.build(subject, object)).Error
	if database.IsUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert pair: %w", err)
	}
	return nil
}

// Remove deletes the pair, returning ErrNotFound when it was absent.
func (m *Membership[T]) Remove(ctx context.Context, subject, object uint) error {
	res := m.db.WithContext(ctx).
		Where(m.subjectCol+" = ? AND "+m.objectCol+" = ?", subject, object).
		Delete(new(T))
	if res.Error != nil {
		return fmt.Errorf("delete pair: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Exists reports whether the pair is present.
func (m *Membership[T]) Exists(ctx context.Context, subject, object uint) (bool, error) {
	var n int64
	err := m.db.WithContext(ctx).Model(new(T)).
		Where(m.subjectCol+" = ? AND "+m.objectCol+" = ?", subject, object).
		Count(&n).Error
	if err != nil {
		return false, fmt.Errorf("check pair: %w", err)
	}
	return n > 0, nil
}

// Objects returns which of objects are paired with subject.
func (m *Membership[T]) Objects(ctx context.Context, subject uint, objects []uint) (map[uint]bool, error) {
	out := make(map[uint]bool, len(objects))
	if subject == 0 || len(objects) == 0 {
		return out, nil
	}
	var ids []uint
	err := m.db.WithContext(ctx).Model(new(T)).
		Where(m.subjectCol+" = ? AND "+m.objectCol+" IN ?", subject, objects).
		Pluck(m.objectCol, &ids).Error
	if err != nil {
		return nil, fmt.Errorf("load pairs: %w", err)
	}
	for _, id := range ids {
		out[id] = true
	}
	return out, nil
}
