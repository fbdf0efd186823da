package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation states. A session always holds exactly one of these; the
// dispatcher resets StateCompleted back to StateIdle right after the
// confirmation message is sent, starting a fresh ordering cycle.
const (
	StateIdle               = "idle"
	StateBrowsingCategories = "browsing_categories"
	StateBrowsingItems      = "browsing_items"
	StateCartReview         = "cart_review"
	StateAwaitingAddress    = "awaiting_address"
	StateAwaitingPayment    = "awaiting_payment"
	StateCompleted          = "completed"
)

// CartLine is one item entry in a cart. UnitPrice is a minor-unit snapshot
// taken when the item was added, so later menu price changes never alter an
// open cart. At most one line per item id; repeat adds merge quantities.
type CartLine struct {
	ItemID    uint   `json:"item_id"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int    `json:"unit_price"`
}

// Subtotal returns the line total in minor units.
func (l CartLine) Subtotal() int {
	return l.Quantity * l.UnitPrice
}

// Session is the per-user conversation record. All mutation goes through
// compare-and-swap on Version; there is no other shared mutable state.
type Session struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID          string     `gorm:"type:varchar(50);uniqueIndex;not null"`
	UserName        string     `gorm:"type:varchar(100)"`
	State           string     `gorm:"type:varchar(30);not null;default:'idle'"`
	Cart            []CartLine `gorm:"serializer:json;type:jsonb"`
	CategoryID      uint       // category being browsed in StateBrowsingItems
	PendingOrderRef *string    `gorm:"type:varchar(50);index"`
	DeliveryAddress string     `gorm:"type:text"`
	Version         int64      `gorm:"not null;default:0"`
	CreatedAt       time.Time  `gorm:"autoCreateTime"`
	UpdatedAt       time.Time  `gorm:"autoUpdateTime"`
}

// CartTotal returns the cart total in minor units.
func CartTotal(lines []CartLine) int {
	total := 0
	for _, l := range lines {
		total += l.Subtotal()
	}
	return total
}

// CartItemCount returns the summed quantity across all lines.
func CartItemCount(lines []CartLine) int {
	count := 0
	for _, l := range lines {
		count += l.Quantity
	}
	return count
}
