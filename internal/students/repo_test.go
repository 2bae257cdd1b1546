package students

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stayhq-ng/hostelpay-backend/pkg/db/models"
)

func setupStudentsTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	students := `
CREATE TABLE IF NOT EXISTS students (
  id TEXT PRIMARY KEY,
  email TEXT NOT NULL,
  full_name TEXT NOT NULL,
  phone TEXT,
  matric_number TEXT,
  room_number TEXT,
  payment_id TEXT,
  registered_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`
	require.NoError(t, db.Exec(students).Error)
	require.NoError(t, db.Exec("DELETE FROM students").Error)
	return db
}

func TestRepositoryCreateAndFindByEmail(t *testing.T) {
	db := setupStudentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	paymentID := uuid.New()
	student := &models.Student{
		ID:        uuid.New(),
		Email:     "jane@x.com",
		FullName:  "Jane Doe",
		PaymentID: &paymentID,
	}
	require.NoError(t, repo.Create(ctx, student))

	found, err := repo.FindByEmail(ctx, "JANE@X.COM")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, student.ID, found.ID)
	require.NotNil(t, found.PaymentID)
	assert.Equal(t, paymentID, *found.PaymentID)

	missing, err := repo.FindByEmail(ctx, "ghost@x.com")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestRepositoryExistsByEmail(t *testing.T) {
	db := setupStudentsTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Student{
		ID:       uuid.New(),
		Email:    "bob@x.com",
		FullName: "Bob Roe",
	}))

	exists, err := repo.ExistsByEmail(ctx, "Bob@X.com")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByEmail(ctx, "nobody@x.com")
	require.NoError(t, err)
	assert.False(t, exists)

	exists, err = repo.ExistsByEmail(ctx, "  ")
	require.NoError(t, err)
	assert.False(t, exists)
}
