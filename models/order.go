package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Payment lifecycle. Transitions are monotonic: pending may move to exactly
// one of paid, failed or expired, and paid is terminal. Duplicate paid
// confirmations are no-ops.
const (
	PaymentPending = "pending"
	PaymentPaid    = "paid"
	PaymentFailed  = "failed"
	PaymentExpired = "expired"
)

// Order is created when the user confirms checkout. Lines is a frozen copy
// of the cart at confirmation time; only PaymentStatus (and its timestamp)
// may change afterwards.
type Order struct {
	ID            uuid.UUID  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Reference     string     `gorm:"type:varchar(50);uniqueIndex;not null"`
	UserID        string     `gorm:"type:varchar(50);not null;index"`
	Lines         []CartLine `gorm:"serializer:json;type:jsonb"`
	Address       string     `gorm:"type:text"`
	Amount        int        `gorm:"not null"` // minor units
	PaymentStatus string     `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentURL    string     `gorm:"type:varchar(1024)"`
	PaidAt        *time.Time
	FailedAt      *time.Time
	ExpiredAt     *time.Time
	CreatedAt     time.Time      `gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `gorm:"index"`
}

// NewOrderReference generates a human-readable unique order reference,
// e.g. "ORD-9F2C41AB".
func NewOrderReference() string {
	hex := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", ""))
	return "ORD-" + hex[:8]
}

const currencySymbol = "₦"

// FormatAmount renders a minor-unit amount for user-facing messages,
// e.g. 250000 -> "₦2,500.00".
func FormatAmount(minor int) string {
	major := minor / 100
	cents := minor % 100
	if cents < 0 {
		cents = -cents
	}
	return fmt.Sprintf("%s%s.%02d", currencySymbol, groupThousands(major), cents)
}

func groupThousands(n int) string {
	s := fmt.Sprintf("%d", n)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var parts []string
	for len(s) > 3 {
		parts = append([]string{s[len(s)-3:]}, parts...)
		s = s[:len(s)-3]
	}
	parts = append([]string{s}, parts...)
	out := strings.Join(parts, ",")
	if neg {
		out = "-" + out
	}
	return out
}
