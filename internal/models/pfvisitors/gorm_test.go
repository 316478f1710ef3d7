package pfvisitors

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestLedger(t *testing.T) *GormLedger {
	db, err := OpenGorm("sqlite", filepath.Join(t.TempDir(), "visitors.db"), "silent")
	require.NoError(t, err)

	ledger := NewGormLedger(db)
	require.NoError(t, ledger.Ensure(context.Background()))
	t.Cleanup(func() { ledger.Close() })
	return ledger
}

func strPtr(s string) *string { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestGormLedgerInsertAndFind(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)
	at := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	_, err := ledger.Find(ctx, "1.2.3.4")
	assert.ErrorIs(t, err, ErrNotFound)

	geo := Geo{City: strPtr("Pune"), Latitude: floatPtr(18.5)}
	require.NoError(t, ledger.Insert(ctx, "1.2.3.4", geo, at))

	visitor, err := ledger.Find(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.Equal(t, "1.2.3.4", visitor.IPAddress)
	assert.Equal(t, 1, visitor.VisitCount)
	assert.True(t, visitor.FirstVisit.Equal(at))
	assert.True(t, visitor.LastVisit.Equal(at))
	assert.Equal(t, map[string]any{"city": "Pune", "latitude": 18.5}, visitor.Geo.Fields())

	// correspondance exacte sur la chaine
	_, err = ledger.Find(ctx, "1.2.3.40")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormLedgerDuplicateInsert(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)
	at := time.Now()

	require.NoError(t, ledger.Insert(ctx, "5.6.7.8", Geo{}, at))
	err := ledger.Insert(ctx, "5.6.7.8", Geo{}, at.Add(time.Minute))
	assert.ErrorIs(t, err, ErrDuplicate)

	count, err := ledger.Count(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}

func TestGormLedgerTouch(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)
	first := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)
	geo := Geo{Country: strPtr("IN")}

	require.NoError(t, ledger.Insert(ctx, "1.2.3.4", geo, first))

	for i := 1; i <= 3; i++ {
		at := first.Add(time.Duration(i) * 5 * time.Hour)
		require.NoError(t, ledger.Touch(ctx, "1.2.3.4", at))

		visitor, err := ledger.Find(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.Equal(t, 1+i, visitor.VisitCount)
		assert.True(t, visitor.LastVisit.Equal(at))
		assert.True(t, visitor.FirstVisit.Equal(first))
		assert.Equal(t, "IN", *visitor.Geo.Country)
		assert.Nil(t, visitor.Geo.City)
	}

	assert.ErrorIs(t, ledger.Touch(ctx, "9.9.9.9", first), ErrNotFound)
}

func TestGormLedgerConcurrentFirstVisits(t *testing.T) {
	ctx := context.Background()
	ledger := setupTestLedger(t)
	at := time.Now()

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = ledger.Insert(ctx, "10.0.0.1", Geo{}, at)
		}(i)
	}
	wg.Wait()

	// l'index unique ne laisse passer qu'une insertion, les autres sont des doublons
	// ou, avec sqlite, peuvent échouer sur le verrou de la base
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		}
	}
	assert.LessOrEqual(t, succeeded, 1)

	count, err := ledger.Count(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.LessOrEqual(t, count, int64(1))
}
