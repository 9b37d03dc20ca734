package models

// Ingredient is reference data. Names are indexed for prefix search but are
// not unique; the same name may exist with several measurement units.
type Ingredient struct {
	ID              uint   `gorm:"primaryKey"`
	Name            string `gorm:"size:200;not null;index"`
	MeasurementUnit string `gorm:"size:200;not null"`
}

type Tag struct {
	ID    uint   `gorm:"primaryKey"`
	Name  string `gorm:"size:200;not null;uniqueIndex"`
	Color string `gorm:"size:7;not null;uniqueIndex"`
	Slug  string `gorm:"size:200;not null;uniqueIndex"`
}
