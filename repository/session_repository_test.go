package repository_test

import (
	"context"
	"regexp"
	"testing"

	"conversation-service/models"
	"conversation-service/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
)

func TestUpdateCAS_Success(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormSessionRepository(gormDB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sessions"`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	sess := &models.Session{
		UserID:  "2348012345678",
		State:   models.StateBrowsingCategories,
		Version: 3,
	}
	err := repo.UpdateCAS(context.Background(), sess, 3)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), sess.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateCAS_StaleVersionRejected(t *testing.T) {
	gormDB, mock := setupMockDB(t)
	repo := repository.NewGormSessionRepository(gormDB)

	// A concurrent writer already bumped the version: no rows match.
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "sessions"`)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	sess := &models.Session{
		UserID:  "2348012345678",
		State:   models.StateBrowsingCategories,
		Version: 3,
	}
	err := repo.UpdateCAS(context.Background(), sess, 3)
	assert.ErrorIs(t, err, repository.ErrStaleSession)
}
