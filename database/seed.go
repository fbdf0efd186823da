package database

import (
	"conversation-service/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

type seedCategory struct {
	name     string
	ordering int
	items    []seedItem
}

type seedItem struct {
	name       string
	priceMinor int
}

var sampleMenu = []seedCategory{
	{
		name:     "Main Dishes",
		ordering: 1,
		items: []seedItem{
			{"Jollof Rice & Chicken", 250000},
			{"Fried Rice Special", 220000},
			{"Pounded Yam & Egusi", 300000},
		},
	},
	{
		name:     "Sides",
		ordering: 2,
		items: []seedItem{
			{"Plantain (Dodo)", 50000},
			{"Moin Moin", 70000},
			{"French Fries", 120000},
		},
	},
	{
		name:     "Drinks",
		ordering: 3,
		items: []seedItem{
			{"Coca-Cola (50cl)", 40000},
			{"Fresh Orange Juice", 150000},
			{"Zobo Drink", 60000},
		},
	},
	{
		name:     "Desserts",
		ordering: 4,
		items: []seedItem{
			{"Chocolate Cake Slice", 150000},
			{"Vanilla Ice Cream", 100000},
		},
	},
}

// SeedMenu loads the sample menu into an empty catalog. Existing data is
// left untouched so a redeploy never clobbers live menu edits.
func SeedMenu(db *gorm.DB, logger *zap.Logger) error {
	var count int64
	if err := db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		logger.Info("Menu already seeded, skipping", zap.Int64("categories", count))
		return nil
	}

	for _, sc := range sampleCategories() {
		if err := db.Create(&sc).Error; err != nil {
			return err
		}
		logger.Info("Seeded category", zap.String("name", sc.Name), zap.Int("items", len(sc.Items)))
	}
	return nil
}

func sampleCategories() []models.Category {
	cats := make([]models.Category, 0, len(sampleMenu))
	for _, sc := range sampleMenu {
		cat := models.Category{
			Name:     sc.name,
			Ordering: sc.ordering,
			IsActive: true,
		}
		for _, it := range sc.items {
			cat.Items = append(cat.Items, models.MenuItem{
				Name:        it.name,
				PriceMinor:  it.priceMinor,
				IsAvailable: true,
				IsActive:    true,
			})
		}
		cats = append(cats, cat)
	}
	return cats
}
