package systems

import (
	"database/sql"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/mattn/go-sqlite3"
)

func openMemDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	_, err = db.Exec(Schema)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestEnsureExists_InsertIfAbsent(t *testing.T) {
	db := openMemDB(t)
	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.EnsureExists(1, "Sol", 0, 0, 0, "abc123"))

	rec, err := repo.GetByAddress(1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "Sol", rec.SystemName)
}

func TestEnsureExists_DoesNotOverwriteExistingCoordinates(t *testing.T) {
	db := openMemDB(t)
	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.EnsureExists(1, "Sol", 10, 20, 30, "abc123"))
	require.NoError(t, repo.EnsureExists(1, "Sol", 0, 0, 0, "zzzzzz"))

	rec, err := repo.GetByAddress(1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, 10.0, rec.SystemX)
	assert.Equal(t, 20.0, rec.SystemY)
	assert.Equal(t, 30.0, rec.SystemZ)
	assert.Equal(t, "abc123", rec.SystemSector, "sector must also survive the no-op conflict")
}

func TestGetByName_IsCaseInsensitive(t *testing.T) {
	db := openMemDB(t)
	repo := NewRepository(db, zerolog.Nop())

	require.NoError(t, repo.EnsureExists(1, "Colonia", 100, 200, 300, "sector1"))

	rec, err := repo.GetByName("COLONIA")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, int64(1), rec.SystemAddress)
}

func TestGetByAddress_ReturnsNilWhenAbsent(t *testing.T) {
	db := openMemDB(t)
	repo := NewRepository(db, zerolog.Nop())

	rec, err := repo.GetByAddress(999)
	require.NoError(t, err)
	assert.Nil(t, rec)
}
