package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/oraculo/internal/adapters/storage"
	"github.com/alejandrodnm/oraculo/internal/domain"
)

func openTestDB(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	db, err := storage.NewSQLiteStorage(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestCalibration_SaveUpdateLoad(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	created := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	rec := domain.CalibrationRecord{
		ID:          "rec-1",
		Topic:       "btc-100k",
		Probability: 0.8,
		Direction:   domain.DirectionYes,
		CreatedAt:   created,
	}
	require.NoError(t, db.SaveRecord(ctx, rec))

	outcome := true
	brier := 0.04
	resolvedAt := created.Add(time.Hour)
	rec.Outcome = &outcome
	rec.Brier = &brier
	rec.ResolvedAt = &resolvedAt
	require.NoError(t, db.UpdateRecord(ctx, rec))

	recs, err := db.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	got := recs[0]
	assert.Equal(t, "rec-1", got.ID)
	assert.Equal(t, domain.DirectionYes, got.Direction)
	require.NotNil(t, got.Outcome)
	assert.True(t, *got.Outcome)
	require.NotNil(t, got.Brier)
	assert.InDelta(t, 0.04, *got.Brier, 1e-9)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.Resolved())
}

func TestCalibration_LoadOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	base := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, db.SaveRecord(ctx, domain.CalibrationRecord{
			ID: id, Topic: "t", Probability: 0.5, Direction: domain.DirectionYes,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	recs, err := db.LoadRecords(ctx)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, []string{"c", "a", "b"},
		[]string{recs[0].ID, recs[1].ID, recs[2].ID})
}

func TestCalibration_UpdateMissingRecord(t *testing.T) {
	db := openTestDB(t)
	err := db.UpdateRecord(context.Background(), domain.CalibrationRecord{ID: "ghost"})
	assert.ErrorIs(t, err, domain.ErrPersistence)
}

func TestSchedulerState_RoundTrip(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	// primera ejecución: estado cero sin error
	st, err := db.LoadState(ctx)
	require.NoError(t, err)
	assert.True(t, st.LastScan.IsZero())
	assert.Zero(t, st.LifetimeCycles)

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	st = domain.SchedulerState{
		LastSnapshot:          now,
		LastScan:              now.Add(-time.Minute),
		LastWhaleScan:         now.Add(-10 * time.Minute),
		LastCalibrationCheck:  now.Add(-25 * time.Minute),
		LifetimeCycles:        7,
		LifetimeScans:         5,
		LifetimeSnapshots:     6,
		LifetimeDecisions:     12,
		LifetimeOpportunities: 3,
	}
	require.NoError(t, db.SaveState(ctx, st))

	// el upsert sobreescribe la única fila
	st.LifetimeCycles = 8
	require.NoError(t, db.SaveState(ctx, st))

	got, err := db.LoadState(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), got.LifetimeCycles)
	assert.Equal(t, int64(5), got.LifetimeScans)
	assert.True(t, got.LastSnapshot.Equal(now))
	assert.True(t, got.LastWhaleScan.Equal(now.Add(-10*time.Minute)))
	assert.True(t, got.LastCalibrationCheck.Equal(now.Add(-25*time.Minute)))
}

func TestAudit_DecisionAndHeartbeat(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	d := domain.Decision{
		ID:         "dec-1",
		Topic:      "btc-100k",
		RawScore:   83.6,
		Confidence: 79.4,
		Action:     domain.ActionExecute,
		Signals: []domain.SignalScore{
			{Name: "consensus", Score: 0.9, Weight: 0.35, Weighted: 0.315},
		},
		Warnings:  []string{"social signal absent"},
		CreatedAt: time.Now().UTC(),
	}
	require.NoError(t, db.LogDecision(ctx, d))
	// registrar dos veces la misma decisión es idempotente
	require.NoError(t, db.LogDecision(ctx, d))

	hb := domain.HeartbeatSummary{
		StartedAt:     time.Now().UTC(),
		Duration:      1200 * time.Millisecond,
		VenuesOK:      2,
		VenuesFailed:  1,
		Opportunities: 1,
		Decisions:     1,
		Executed:      1,
		Errors:        []string{"venue-z: timeout"},
	}
	require.NoError(t, db.LogHeartbeat(ctx, hb))
}

func TestPriceSnapshots_SaveAndPrune(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	old := domain.OraclePrice{
		Asset: "BTC", Price: 64100, Confidence: domain.ConfidenceHigh,
		Sources: 3, Agreed: 3, At: time.Now().UTC().Add(-48 * time.Hour),
	}
	fresh := old
	fresh.At = time.Now().UTC()

	require.NoError(t, db.SavePriceSnapshot(ctx, old))
	require.NoError(t, db.SavePriceSnapshot(ctx, fresh))

	require.NoError(t, db.PruneOld(ctx, time.Now().UTC().Add(-24*time.Hour)))
	// la calibración nunca se poda; los snapshots antiguos sí.
	// No hay getter de snapshots: verificamos que la poda no falla y que
	// el ledger sobrevive.
	require.NoError(t, db.SaveRecord(ctx, domain.CalibrationRecord{
		ID: "keep", Topic: "t", Probability: 0.5, Direction: domain.DirectionNo,
		CreatedAt: time.Now().UTC().Add(-90 * 24 * time.Hour),
	}))
	require.NoError(t, db.PruneOld(ctx, time.Now().UTC()))
	recs, err := db.LoadRecords(ctx)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}
