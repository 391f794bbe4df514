package stores

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/quickkart/quickkart-backend/pkg/db"
	"github.com/quickkart/quickkart-backend/pkg/types"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	conn, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return conn, mock
}

func storeRows(id uuid.UUID, name, pincode string) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "pincode", "address", "location", "created_at"}).
		AddRow(id.String(), name, pincode, "12 MG Road", "SRID=4326;POINT(77.6 12.97)", time.Now())
}

func TestFindNearestOrdersByDistance(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewRepository(conn)
	id := uuid.New()

	mock.ExpectQuery(`SELECT \* FROM "dark_stores" ORDER BY location <-> ST_GeogFromText\(\$1\)`).
		WillReturnRows(storeRows(id, "Indiranagar", "560038"))

	store, err := repo.FindNearest(context.Background(), types.GeographyPoint{Lat: 12.97, Lng: 77.6})
	require.NoError(t, err)
	require.Equal(t, id, store.ID)
	require.InDelta(t, 12.97, store.Location.Lat, 1e-9)
	require.InDelta(t, 77.6, store.Location.Lng, 1e-9)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByPincodeNotFound(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewRepository(conn)

	mock.ExpectQuery(`SELECT \* FROM "dark_stores" WHERE pincode = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.FindByPincode(context.Background(), "110001")
	require.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestDeleteCascadeCleansDependents(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewRepository(conn)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "cart_items" WHERE store_id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(`UPDATE "subscriptions" SET .*"is_active"=.*"last_error"=`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`DELETE FROM "dark_stores" WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := db.FromConn(conn).WithTx(context.Background(), func(tx *gorm.DB) error {
		return repo.DeleteCascade(context.Background(), tx, id)
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCascadeMissingStoreRollsBack(t *testing.T) {
	conn, mock := newMockDB(t)
	repo := NewRepository(conn)

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "cart_items"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE "subscriptions"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`DELETE FROM "dark_stores"`).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := db.FromConn(conn).WithTx(context.Background(), func(tx *gorm.DB) error {
		return repo.DeleteCascade(context.Background(), tx, uuid.New())
	})
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}
