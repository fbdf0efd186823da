package repository

import (
	"context"
	"errors"
	"time"

	"conversation-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStaleSession is returned when a compare-and-swap update finds that the
// session row was modified concurrently.
var ErrStaleSession = errors.New("session version conflict")

// SessionRepository defines the session store. Updates are guarded by the
// session's version column so concurrent writers (other processes sharing
// the database) can never cause a lost update.
type SessionRepository interface {
	GetOrCreate(ctx context.Context, userID, userName string) (*models.Session, error)
	UpdateCAS(ctx context.Context, session *models.Session, expectedVersion int64) error
	FindStaleAwaitingPayment(ctx context.Context, olderThan time.Time) ([]models.Session, error)
}

// GormSessionRepository implements SessionRepository using GORM/Postgres.
type GormSessionRepository struct {
	db *gorm.DB
}

// NewGormSessionRepository creates a new instance of GormSessionRepository.
func NewGormSessionRepository(db *gorm.DB) SessionRepository {
	return &GormSessionRepository{db: db}
}

// GetOrCreate returns the user's session, creating it in the initial state
// on first contact. Sessions are never deleted afterwards.
func (r *GormSessionRepository) GetOrCreate(ctx context.Context, userID, userName string) (*models.Session, error) {
	session := models.Session{
		UserID:   userID,
		UserName: userName,
		State:    models.StateIdle,
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(&session).Error
	if err != nil {
		return nil, err
	}

	var out models.Session
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&out).Error; err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateCAS writes the session's mutable fields if and only if the stored
// version still equals expectedVersion, bumping the version by one. Returns
// ErrStaleSession on conflict.
func (r *GormSessionRepository) UpdateCAS(ctx context.Context, session *models.Session, expectedVersion int64) error {
	session.Version = expectedVersion + 1
	res := r.db.WithContext(ctx).
		Model(&models.Session{}).
		Where("user_id = ? AND version = ?", session.UserID, expectedVersion).
		Select("state", "cart", "category_id", "pending_order_ref", "delivery_address", "user_name", "version").
		Updates(session)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleSession
	}
	return nil
}

// FindStaleAwaitingPayment returns sessions that have been sitting in the
// awaiting-payment state since before olderThan; used by the reconciliation
// sweep.
func (r *GormSessionRepository) FindStaleAwaitingPayment(ctx context.Context, olderThan time.Time) ([]models.Session, error) {
	var sessions []models.Session
	err := r.db.WithContext(ctx).
		Where("state = ? AND updated_at < ?", models.StateAwaitingPayment, olderThan).
		Find(&sessions).Error
	if err != nil {
		return nil, err
	}
	return sessions, nil
}
