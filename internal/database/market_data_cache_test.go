package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/trogers1052/portfolio-tracker/internal/models"
)

func TestMarketDataCacheRepository(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	testDB := SetupTestDB(t)
	defer testDB.Cleanup(t)

	date := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	fetchedAt := time.Date(2024, 1, 16, 14, 30, 0, 0, time.UTC)

	t.Run("UpsertCacheEntry then GetCacheEntry round trips payload bytes", func(t *testing.T) {
		testDB.TruncateAll(t)

		payload := []byte{0x7b, 0x00, 0xff, 0x10, 0x7d}
		err := testDB.UpsertCacheEntry(&models.CacheEntry{Ticker: "AAPL", Date: date, Payload: payload, FetchedAt: fetchedAt})
		require.NoError(t, err)

		got, err := testDB.GetCacheEntry("AAPL", date)
		require.NoError(t, err)
		assert.Equal(t, payload, got.Payload)
		assert.Equal(t, models.Ticker("AAPL"), got.Ticker)
		assert.True(t, date.Equal(got.Date))
		assert.True(t, fetchedAt.Equal(got.FetchedAt))
	})

	t.Run("UpsertCacheEntry replaces on conflict", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertCacheEntry(&models.CacheEntry{Ticker: "AAPL", Date: date, Payload: []byte("old"), FetchedAt: fetchedAt}))
		later := fetchedAt.Add(26 * time.Hour)
		require.NoError(t, testDB.UpsertCacheEntry(&models.CacheEntry{Ticker: "AAPL", Date: date, Payload: []byte("new"), FetchedAt: later}))

		got, err := testDB.GetCacheEntry("AAPL", date)
		require.NoError(t, err)
		assert.Equal(t, []byte("new"), got.Payload)
		assert.True(t, later.Equal(got.FetchedAt))

		var count int
		require.NoError(t, testDB.GetRawConn().QueryRow(`SELECT COUNT(*) FROM market_data_cache`).Scan(&count))
		assert.Equal(t, 1, count)
	})

	t.Run("GetCacheEntry returns ErrNotFound for a missing key", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetCacheEntry("NONEXISTENT", date)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("UpsertCacheEntries writes a batch", func(t *testing.T) {
		testDB.TruncateAll(t)

		var entries []*models.CacheEntry
		for i := 0; i < 5; i++ {
			entries = append(entries, &models.CacheEntry{Ticker: "MSFT", Date: date.AddDate(0, 0, i), Payload: []byte{byte(i)}, FetchedAt: fetchedAt})
		}
		require.NoError(t, testDB.UpsertCacheEntries(entries))

		got, err := testDB.GetCacheEntriesRange("MSFT", date, date.AddDate(0, 0, 10))
		require.NoError(t, err)
		assert.Len(t, got, 5)
	})

	t.Run("GetCacheEntriesRange is bounded and ascending", func(t *testing.T) {
		testDB.TruncateAll(t)

		for i := 9; i >= 0; i-- {
			require.NoError(t, testDB.UpsertCacheEntry(&models.CacheEntry{Ticker: "NVDA", Date: date.AddDate(0, 0, i), Payload: []byte{byte(i)}, FetchedAt: fetchedAt}))
		}

		got, err := testDB.GetCacheEntriesRange("NVDA", date.AddDate(0, 0, 2), date.AddDate(0, 0, 6))
		require.NoError(t, err)
		require.Len(t, got, 5)
		for i, e := range got {
			assert.True(t, date.AddDate(0, 0, 2+i).Equal(e.Date))
		}
	})

	t.Run("GetLatestCacheEntry honours the upper bound", func(t *testing.T) {
		testDB.TruncateAll(t)

		for i := 0; i < 3; i++ {
			require.NoError(t, testDB.UpsertCacheEntry(&models.CacheEntry{Ticker: "TSLA", Date: date.AddDate(0, 0, i*2), Payload: []byte{byte(i)}, FetchedAt: fetchedAt}))
		}

		got, err := testDB.GetLatestCacheEntry("TSLA", date.AddDate(0, 0, 3))
		require.NoError(t, err)
		assert.True(t, date.AddDate(0, 0, 2).Equal(got.Date))

		_, err = testDB.GetLatestCacheEntry("TSLA", date.AddDate(0, 0, -1))
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("DeleteCacheEntriesOlderThan removes old rows", func(t *testing.T) {
		testDB.TruncateAll(t)

		for i := 0; i < 10; i++ {
			require.NoError(t, testDB.UpsertCacheEntry(&models.CacheEntry{Ticker: "OLD", Date: date.AddDate(0, 0, i), Payload: []byte("x"), FetchedAt: fetchedAt}))
		}

		deleted, err := testDB.DeleteCacheEntriesOlderThan(date.AddDate(0, 0, 5))
		require.NoError(t, err)
		assert.Equal(t, int64(5), deleted)
	})

	t.Run("DeleteCacheEntriesBySymbol keeps other symbols", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertCacheEntry(&models.CacheEntry{Ticker: "DROP", Date: date, Payload: []byte("x"), FetchedAt: fetchedAt}))
		require.NoError(t, testDB.UpsertCacheEntry(&models.CacheEntry{Ticker: "KEEP", Date: date, Payload: []byte("x"), FetchedAt: fetchedAt}))

		n, err := testDB.DeleteCacheEntriesBySymbol("DROP")
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		_, err = testDB.GetCacheEntry("DROP", date)
		assert.ErrorIs(t, err, ErrNotFound)
		_, err = testDB.GetCacheEntry("KEEP", date)
		assert.NoError(t, err)
	})

	t.Run("sync records upsert", func(t *testing.T) {
		testDB.TruncateAll(t)

		_, err := testDB.GetSyncRecord("AAPL")
		assert.ErrorIs(t, err, ErrNotFound)

		rec := &models.SyncRecord{Ticker: "AAPL", SyncedAt: fetchedAt, FirstDate: date, LastDate: date.AddDate(0, 0, 4), Points: 5}
		require.NoError(t, testDB.UpsertSyncRecord(rec))
		rec.SyncedAt = fetchedAt.Add(24 * time.Hour)
		rec.Points = 6
		require.NoError(t, testDB.UpsertSyncRecord(rec))

		got, err := testDB.GetSyncRecord("AAPL")
		require.NoError(t, err)
		assert.Equal(t, 6, got.Points)
		assert.True(t, rec.SyncedAt.Equal(got.SyncedAt))
		assert.True(t, date.Equal(got.FirstDate))
	})

	t.Run("sync record with no points stores null dates", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertSyncRecord(&models.SyncRecord{Ticker: "EMPTY", SyncedAt: fetchedAt}))
		got, err := testDB.GetSyncRecord("EMPTY")
		require.NoError(t, err)
		assert.True(t, got.FirstDate.IsZero())
		assert.Zero(t, got.Points)
	})

	t.Run("full history flag round-trips", func(t *testing.T) {
		testDB.TruncateAll(t)

		rec := &models.SyncRecord{Ticker: "IPO", SyncedAt: fetchedAt, FirstDate: date, LastDate: date, Points: 1, Full: true}
		require.NoError(t, testDB.UpsertSyncRecord(rec))

		got, err := testDB.GetSyncRecord("IPO")
		require.NoError(t, err)
		assert.True(t, got.Full)
	})

	t.Run("clamp sync records after prune", func(t *testing.T) {
		testDB.TruncateAll(t)

		cutoff := date.AddDate(0, 0, 10)
		require.NoError(t, testDB.UpsertSyncRecord(&models.SyncRecord{
			Ticker: "OLD", SyncedAt: fetchedAt, FirstDate: date, LastDate: cutoff.AddDate(0, 0, 5), Points: 15, Full: true,
		}))
		require.NoError(t, testDB.UpsertSyncRecord(&models.SyncRecord{
			Ticker: "NEW", SyncedAt: fetchedAt, FirstDate: cutoff.AddDate(0, 0, 1), LastDate: cutoff.AddDate(0, 0, 5), Points: 4, Full: true,
		}))

		n, err := testDB.ClampSyncRecords(cutoff)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)

		old, err := testDB.GetSyncRecord("OLD")
		require.NoError(t, err)
		assert.True(t, cutoff.Equal(old.FirstDate))
		assert.False(t, old.Full)

		recent, err := testDB.GetSyncRecord("NEW")
		require.NoError(t, err)
		assert.True(t, recent.Full, "records starting after the cutoff keep their flag")
	})

	t.Run("delete sync record", func(t *testing.T) {
		testDB.TruncateAll(t)

		require.NoError(t, testDB.UpsertSyncRecord(&models.SyncRecord{Ticker: "GONE", SyncedAt: fetchedAt}))
		require.NoError(t, testDB.DeleteSyncRecord("GONE"))

		_, err := testDB.GetSyncRecord("GONE")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}
