package models

import "time"

// Category groups related menu items and is the top level of conversational
// navigation. Ordering controls the display sequence in messages; positions
// shown to the user are 1-based indexes into this order.
type Category struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Name      string `gorm:"type:varchar(100);not null"`
	Ordering  int    `gorm:"not null;default:0;index"`
	IsActive  bool   `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Items []MenuItem `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
}

// MenuItem is an orderable item. PriceMinor is in minor units (kobo).
// IsActive hides an item from the menu entirely; IsAvailable toggles off
// when it is out of stock.
type MenuItem struct {
	ID          uint   `gorm:"primaryKey;autoIncrement"`
	CategoryID  uint   `gorm:"not null;index"`
	Name        string `gorm:"type:varchar(200);not null"`
	PriceMinor  int    `gorm:"not null"`
	IsAvailable bool   `gorm:"not null;default:true"`
	IsActive    bool   `gorm:"not null;default:true"`
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// PriceDisplay formats the item price for messages.
func (m MenuItem) PriceDisplay() string {
	return FormatAmount(m.PriceMinor)
}
