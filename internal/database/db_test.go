package database

import (
	"path/filepath"
	"testing"

	"github.com/alexgavs/eyeson-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sim.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })
	return db
}

func TestOpenNormalizesLegacyStatuses(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Create(&models.SimCard{CLI: "0500000000", MSISDN: "0500000000", Status: "Active"}).Error)
	require.NoError(t, Close(db))

	db, err = Open(path)
	require.NoError(t, err)
	defer Close(db)

	var card models.SimCard
	require.NoError(t, db.First(&card, "cli = ?", "0500000000").Error)
	assert.Equal(t, "Activated", card.Status)
}

func TestCredentialsOpenModeWithoutUsers(t *testing.T) {
	db := openTestDB(t)

	ok, err := CheckAPICredentials(db, "test", "pwd")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckAPICredentials(db, "test", "")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCredentialsWithSeededUser(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, SeedAPIUser(db, "api", "secret"))

	ok, err := CheckAPICredentials(db, "api", "secret")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = CheckAPICredentials(db, "api", "wrong")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = CheckAPICredentials(db, "other", "secret")
	require.NoError(t, err)
	assert.False(t, ok)

	// Re-seeding rotates the password instead of duplicating the user.
	require.NoError(t, SeedAPIUser(db, "api", "rotated"))
	var count int64
	db.Model(&models.APIUser{}).Count(&count)
	assert.EqualValues(t, 1, count)

	ok, err = CheckAPICredentials(db, "api", "rotated")
	require.NoError(t, err)
	assert.True(t, ok)
}
