package repository

import (
	"context"

	"conversation-service/engine"
	"conversation-service/models"

	"gorm.io/gorm"
)

// MenuRepository loads the read-only catalog as an immutable snapshot for
// one engine invocation. Positions shown to the user are 1-based indexes
// into the snapshot's display order, which is stable between renders
// (ordering column, then name).
type MenuRepository interface {
	LoadMenu(ctx context.Context) (engine.Menu, error)
}

// GormMenuRepository implements MenuRepository using GORM.
type GormMenuRepository struct {
	db *gorm.DB
}

// NewGormMenuRepository creates a new instance of GormMenuRepository.
func NewGormMenuRepository(db *gorm.DB) MenuRepository {
	return &GormMenuRepository{db: db}
}

// LoadMenu fetches active categories with their available items.
func (r *GormMenuRepository) LoadMenu(ctx context.Context) (engine.Menu, error) {
	var categories []models.Category
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("ordering, name").
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Where("is_active = ? AND is_available = ?", true, true).Order("name")
		}).
		Find(&categories).Error
	if err != nil {
		return engine.Menu{}, err
	}

	menu := engine.Menu{Categories: make([]engine.MenuCategory, 0, len(categories))}
	for _, c := range categories {
		mc := engine.MenuCategory{ID: c.ID, Name: c.Name, Items: make([]engine.MenuItem, 0, len(c.Items))}
		for _, it := range c.Items {
			mc.Items = append(mc.Items, engine.MenuItem{ID: it.ID, Name: it.Name, Price: it.PriceMinor})
		}
		menu.Categories = append(menu.Categories, mc)
	}
	return menu, nil
}
