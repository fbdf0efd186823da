package repository

import (
	"context"
	"time"

	"conversation-service/models"

	"gorm.io/gorm"
)

// OrderRepository defines order persistence. Status transitions are
// monotonic: Mark* methods only move an order out of the pending state and
// report whether they actually applied, so duplicate webhook deliveries
// become no-ops at the record level.
type OrderRepository interface {
	Create(ctx context.Context, order *models.Order) error
	FindByReference(ctx context.Context, reference string) (*models.Order, error)
	MarkPaid(ctx context.Context, reference string) (bool, error)
	MarkFailed(ctx context.Context, reference string) (bool, error)
	MarkExpired(ctx context.Context, reference string) (bool, error)
}

// GormOrderRepository implements OrderRepository using GORM.
type GormOrderRepository struct {
	db *gorm.DB
}

// NewGormOrderRepository creates a new instance of GormOrderRepository.
func NewGormOrderRepository(db *gorm.DB) OrderRepository {
	return &GormOrderRepository{db: db}
}

// Create persists a new order.
func (r *GormOrderRepository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

// FindByReference retrieves an order by its reference.
func (r *GormOrderRepository) FindByReference(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// MarkPaid moves a pending order to paid. Returns false when the order was
// already in a terminal state (duplicate confirmation).
func (r *GormOrderRepository) MarkPaid(ctx context.Context, reference string) (bool, error) {
	return r.transition(ctx, reference, models.PaymentPaid, "paid_at")
}

// MarkFailed moves a pending order to failed.
func (r *GormOrderRepository) MarkFailed(ctx context.Context, reference string) (bool, error) {
	return r.transition(ctx, reference, models.PaymentFailed, "failed_at")
}

// MarkExpired moves a pending order to expired.
func (r *GormOrderRepository) MarkExpired(ctx context.Context, reference string) (bool, error) {
	return r.transition(ctx, reference, models.PaymentExpired, "expired_at")
}

func (r *GormOrderRepository) transition(ctx context.Context, reference, status, timestampColumn string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("reference = ? AND payment_status = ?", reference, models.PaymentPending).
		Updates(map[string]interface{}{
			"payment_status": status,
			timestampColumn:  &now,
			"updated_at":     now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
