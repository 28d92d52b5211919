// Package sqlite provides SQLite database setup and configuration
package sqlite

import (
	"context"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/alchemorsel/pantry/internal/domain/pantry"
	gormModels "github.com/alchemorsel/pantry/internal/infrastructure/persistence/gorm"
)

// Staples seeds the ingredient catalog of a fresh development database
var Staples = []string{
	"all-purpose flour",
	"baking powder",
	"butter",
	"brown sugar",
	"eggs",
	"flour",
	"garlic",
	"milk",
	"olive oil",
	"onion",
	"rice",
	"salt",
	"sugar",
	"tomato",
	"yeast",
}

// SetupDatabase creates and configures the SQLite database
func SetupDatabase(dbPath string, logLevel logger.LogLevel) (*gorm.DB, error) {
	// Use in-memory database if no path provided
	if dbPath == "" {
		dbPath = ":memory:"
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Every connection to :memory: opens its own empty database
	if dbPath == ":memory:" {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	// Run auto-migration
	err = db.AutoMigrate(
		&gormModels.IngredientModel{},
		&gormModels.PantryEntryModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return db, nil
}

// SeedDatabase populates the ingredient catalog with staples
func SeedDatabase(ctx context.Context, db *gorm.DB) error {
	// Check if data already exists
	var count int64
	if err := db.WithContext(ctx).Model(&gormModels.IngredientModel{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count ingredients: %w", err)
	}
	if count > 0 {
		return nil // Already seeded
	}

	staples := make([]gormModels.IngredientModel, 0, len(Staples))
	for _, name := range Staples {
		staples = append(staples, gormModels.IngredientModel{Name: pantry.CanonicalName(name)})
	}

	if err := db.WithContext(ctx).Create(&staples).Error; err != nil {
		return fmt.Errorf("failed to seed ingredients: %w", err)
	}

	return nil
}
