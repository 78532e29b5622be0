package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS bookings").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("idx_bookings_slot_date_status").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("idx_bookings_travel_date").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, RunMigrations(context.Background(), db))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRunMigrations_StopsOnError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	boom := errors.New("permission denied")
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS bookings").WillReturnError(boom)

	err = RunMigrations(context.Background(), db)
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}
