package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront/internal/models"
)

func TestOpen_SqliteAndMigrate(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	defer Close(db)

	assert.Equal(t, "sqlite", db.Dialector.Name())
	require.NoError(t, Migrate(db))

	for _, table := range []string{"users", "products", "carts", "cart_lines", "orders", "messages", "conversations"} {
		assert.True(t, db.Migrator().HasTable(table), "table %s missing", table)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	defer Close(db)

	for i := 0; i < 3; i++ {
		require.NoError(t, Migrate(db), "iteration %d", i)
	}
}

func TestSeed(t *testing.T) {
	db, err := Open(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	defer Close(db)
	require.NoError(t, Migrate(db))

	require.NoError(t, Seed(db, 25))
	// second run is a no-op
	require.NoError(t, Seed(db, 25))

	var products, users, discounts int64
	db.Model(&models.Product{}).Count(&products)
	db.Model(&models.User{}).Count(&users)
	db.Model(&models.Discount{}).Count(&discounts)

	assert.EqualValues(t, 25, products)
	assert.EqualValues(t, 2, users)
	assert.EqualValues(t, 4, discounts)

	var admin models.User
	require.NoError(t, db.Where("email = ?", "admin@example.com").First(&admin).Error)
	assert.Equal(t, models.RoleAdmin, admin.Role)
	assert.NotEmpty(t, admin.ID)
}
