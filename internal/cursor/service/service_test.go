package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zonekeeper/registro/internal/clock"
	cursordomain "github.com/zonekeeper/registro/internal/cursor/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *clock.FakeClock) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, db.AutoMigrate(&cursordomain.Cursor{}))
	clk := clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	return &Service{db: db, log: zap.NewNop(), clock: clk}, clk
}

func TestGet_CreatesAtDefault(t *testing.T) {
	svc, _ := newTestService(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	cursor, err := svc.Get(context.Background(), cursordomain.PurposeRecurringBilling, start)
	require.NoError(t, err)
	assert.Equal(t, cursordomain.PurposeRecurringBilling, cursor.Purpose)
	assert.True(t, cursor.CursorTime.Equal(start))
}

func TestGet_SecondCallKeepsExisting(t *testing.T) {
	svc, _ := newTestService(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Get(context.Background(), cursordomain.PurposeRecurringBilling, start)
	require.NoError(t, err)

	later := start.Add(72 * time.Hour)
	cursor, err := svc.Get(context.Background(), cursordomain.PurposeRecurringBilling, later)
	require.NoError(t, err)
	assert.True(t, cursor.CursorTime.Equal(start))
}

func TestAdvance(t *testing.T) {
	svc, _ := newTestService(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(24 * time.Hour)

	_, err := svc.Get(context.Background(), cursordomain.PurposeRecurringBilling, start)
	require.NoError(t, err)

	require.NoError(t, svc.Advance(context.Background(), cursordomain.PurposeRecurringBilling, start, end))

	cursor, err := svc.Get(context.Background(), cursordomain.PurposeRecurringBilling, start)
	require.NoError(t, err)
	assert.True(t, cursor.CursorTime.Equal(end))
}

func TestAdvance_StampsInjectedClock(t *testing.T) {
	svc, clk := newTestService(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Get(context.Background(), cursordomain.PurposeRecurringBilling, start)
	require.NoError(t, err)

	clk.SetTime(time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC))
	require.NoError(t, svc.Advance(context.Background(), cursordomain.PurposeRecurringBilling, start, start.Add(24*time.Hour)))

	cursor, err := svc.Get(context.Background(), cursordomain.PurposeRecurringBilling, start)
	require.NoError(t, err)
	assert.True(t, cursor.UpdatedAt.Equal(clk.Now()))
}

func TestAdvance_Mismatch(t *testing.T) {
	svc, _ := newTestService(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := svc.Get(context.Background(), cursordomain.PurposeRecurringBilling, start)
	require.NoError(t, err)

	stale := start.Add(-24 * time.Hour)
	err = svc.Advance(context.Background(), cursordomain.PurposeRecurringBilling, stale, start.Add(24*time.Hour))
	assert.ErrorIs(t, err, cursordomain.ErrCursorMismatch)

	// The stored time must be untouched after a failed advance.
	cursor, err := svc.Get(context.Background(), cursordomain.PurposeRecurringBilling, start)
	require.NoError(t, err)
	assert.True(t, cursor.CursorTime.Equal(start))
}

func TestAdvance_MissingCursor(t *testing.T) {
	svc, _ := newTestService(t)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := svc.Advance(context.Background(), cursordomain.PurposeRecurringBilling, start, start.Add(time.Hour))
	assert.ErrorIs(t, err, cursordomain.ErrCursorNotFound)
}
