package catalog

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestMemoryStore_RecordIsIdempotentAndOrdered(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	s.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}

	require.NoError(t, s.Record(ctx, "b"))
	require.NoError(t, s.Record(ctx, "a"))
	require.NoError(t, s.Record(ctx, "b"))
	assert.ErrorIs(t, s.Record(ctx, ""), ErrEmptyName)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].Name)
	assert.Equal(t, "a", list[1].Name)
	assert.Equal(t, base.Add(time.Second), list[0].CreatedAt)
}

// setupMockDB creates a gorm store over a mock database.
func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *GormStore) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock db: %v", err)
	}
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open gorm: %v", err)
	}
	return db, mock, NewGormStore(gdb)
}

func TestGormStore_Record(t *testing.T) {
	tests := []struct {
		name        string
		channel     string
		setupMock   func(sqlmock.Sqlmock)
		wantErr     error
		errContains string
	}{
		{
			name:    "insert ignores duplicates",
			channel: "ABC123",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "channels"`) + `.*ON CONFLICT DO NOTHING`).
					WithArgs("ABC123", sqlmock.AnyArg()).
					WillReturnResult(sqlmock.NewResult(0, 1))
			},
		},
		{
			name:      "empty name",
			channel:   "",
			setupMock: func(sqlmock.Sqlmock) {},
			wantErr:   ErrEmptyName,
		},
		{
			name:    "database error",
			channel: "ABC123",
			setupMock: func(mock sqlmock.Sqlmock) {
				mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO "channels"`)).
					WillReturnError(errors.New("connection refused"))
			},
			errContains: "record channel",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock, store := setupMockDB(t)
			defer db.Close()
			tt.setupMock(mock)

			err := store.Record(context.Background(), tt.channel)
			switch {
			case tt.wantErr != nil:
				assert.ErrorIs(t, err, tt.wantErr)
			case tt.errContains != "":
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			default:
				assert.NoError(t, err)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_List(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	created := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "channels" ORDER BY created_at, name`)).
		WillReturnRows(sqlmock.NewRows([]string{"name", "created_at"}).
			AddRow("live-cursor", created).
			AddRow("ABC123", created.Add(time.Minute)))

	list, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "live-cursor", list[0].Name)
	assert.Equal(t, created, list[0].CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
