// Package storage implementa la persistencia en SQLite: ledger de
// calibración, estado del scheduler, snapshots de precios y auditoría de
// decisiones y ciclos.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/oraculo/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Histórico de predicciones y su resolución
CREATE TABLE IF NOT EXISTS calibration (
    id          TEXT PRIMARY KEY,
    topic       TEXT     NOT NULL,
    probability REAL     NOT NULL,
    direction   TEXT     NOT NULL,
    outcome     INTEGER,
    brier       REAL,
    created_at  DATETIME NOT NULL,
    resolved_at DATETIME
);

-- Estado del scheduler: una única fila
CREATE TABLE IF NOT EXISTS scheduler_state (
    id                     INTEGER PRIMARY KEY CHECK (id = 1),
    last_snapshot          DATETIME,
    last_scan              DATETIME,
    last_whale_scan        DATETIME,
    last_calibration_check DATETIME,
    lifetime_cycles        INTEGER NOT NULL DEFAULT 0,
    lifetime_scans         INTEGER NOT NULL DEFAULT 0,
    lifetime_snapshots     INTEGER NOT NULL DEFAULT 0,
    lifetime_decisions     INTEGER NOT NULL DEFAULT 0,
    lifetime_opportunities INTEGER NOT NULL DEFAULT 0
);

-- Auditoría de decisiones, una fila por decisión
CREATE TABLE IF NOT EXISTS decisions (
    id         TEXT PRIMARY KEY,
    topic      TEXT     NOT NULL,
    raw_score  REAL     NOT NULL,
    confidence REAL     NOT NULL,
    action     TEXT     NOT NULL,
    signals    TEXT     NOT NULL,
    warnings   TEXT     NOT NULL,
    created_at DATETIME NOT NULL
);

-- Resumen de cada ciclo del heartbeat
CREATE TABLE IF NOT EXISTS heartbeats (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    started_at    DATETIME NOT NULL,
    duration_ms   INTEGER  NOT NULL,
    venues_ok     INTEGER  NOT NULL DEFAULT 0,
    venues_failed INTEGER  NOT NULL DEFAULT 0,
    opportunities INTEGER  NOT NULL DEFAULT 0,
    decisions     INTEGER  NOT NULL DEFAULT 0,
    executed      INTEGER  NOT NULL DEFAULT 0,
    watched       INTEGER  NOT NULL DEFAULT 0,
    skipped       INTEGER  NOT NULL DEFAULT 0,
    errors        TEXT     NOT NULL DEFAULT '[]'
);

-- Snapshots periódicos del oráculo de precios
CREATE TABLE IF NOT EXISTS price_snapshots (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    asset      TEXT     NOT NULL,
    price      REAL     NOT NULL,
    confidence TEXT     NOT NULL,
    sources    INTEGER  NOT NULL,
    agreed     INTEGER  NOT NULL,
    taken_at   DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_calibration_created ON calibration(created_at);
CREATE INDEX IF NOT EXISTS idx_decisions_created   ON decisions(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_heartbeats_started  ON heartbeats(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_snapshots_asset     ON price_snapshots(asset, taken_at DESC);
`

const (
	// Retención de auditoría: las decisiones y heartbeats viejos no aportan
	// señal; la calibración se conserva completa.
	retentionAudit = 30 * 24 * time.Hour
)

// SQLiteStorage implementa ports.Storage usando SQLite (pure Go, sin CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada,
// aplica el schema y poda la auditoría antigua.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	s := &SQLiteStorage{db: db}
	if err := s.PruneOld(context.Background(), time.Now().UTC().Add(-retentionAudit)); err != nil {
		slog.Warn("failed to prune old audit rows", "error", err)
	}
	return s, nil
}

// SaveRecord inserta un registro de calibración nuevo.
func (s *SQLiteStorage) SaveRecord(ctx context.Context, rec domain.CalibrationRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calibration (id, topic, probability, direction, outcome, brier, created_at, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, rec.ID, rec.Topic, rec.Probability, string(rec.Direction),
		boolPtrToInt(rec.Outcome), rec.Brier, rec.CreatedAt.UTC(), timePtrUTC(rec.ResolvedAt))
	if err != nil {
		return fmt.Errorf("storage.SaveRecord: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// UpdateRecord sobreescribe la resolución de un registro existente.
func (s *SQLiteStorage) UpdateRecord(ctx context.Context, rec domain.CalibrationRecord) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE calibration SET outcome = ?, brier = ?, resolved_at = ? WHERE id = ?
	`, boolPtrToInt(rec.Outcome), rec.Brier, timePtrUTC(rec.ResolvedAt), rec.ID)
	if err != nil {
		return fmt.Errorf("storage.UpdateRecord: %w: %w", domain.ErrPersistence, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("storage.UpdateRecord: record %s not found: %w", rec.ID, domain.ErrPersistence)
	}
	return nil
}

// LoadRecords devuelve el histórico completo ordenado por fecha de creación.
func (s *SQLiteStorage) LoadRecords(ctx context.Context) ([]domain.CalibrationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, topic, probability, direction, outcome, brier, created_at, resolved_at
		FROM calibration
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("storage.LoadRecords: %w: %w", domain.ErrPersistence, err)
	}
	defer rows.Close()

	var recs []domain.CalibrationRecord
	for rows.Next() {
		var rec domain.CalibrationRecord
		var direction string
		var outcome sql.NullInt64
		var brier sql.NullFloat64
		var resolvedAt sql.NullTime

		if err := rows.Scan(&rec.ID, &rec.Topic, &rec.Probability, &direction,
			&outcome, &brier, &rec.CreatedAt, &resolvedAt); err != nil {
			return nil, fmt.Errorf("storage.LoadRecords: scan row: %w", err)
		}
		rec.Direction = domain.Direction(direction)
		if outcome.Valid {
			b := outcome.Int64 == 1
			rec.Outcome = &b
		}
		if brier.Valid {
			v := brier.Float64
			rec.Brier = &v
		}
		if resolvedAt.Valid {
			t := resolvedAt.Time.UTC()
			rec.ResolvedAt = &t
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.LoadRecords: %w", err)
	}
	return recs, nil
}

// LoadState devuelve el estado persistido, o el estado cero si no hay fila.
func (s *SQLiteStorage) LoadState(ctx context.Context) (domain.SchedulerState, error) {
	var st domain.SchedulerState
	var lastSnapshot, lastScan, lastWhale, lastCalibration sql.NullTime

	err := s.db.QueryRowContext(ctx, `
		SELECT last_snapshot, last_scan, last_whale_scan, last_calibration_check,
		       lifetime_cycles, lifetime_scans, lifetime_snapshots,
		       lifetime_decisions, lifetime_opportunities
		FROM scheduler_state WHERE id = 1
	`).Scan(&lastSnapshot, &lastScan, &lastWhale, &lastCalibration,
		&st.LifetimeCycles, &st.LifetimeScans, &st.LifetimeSnapshots,
		&st.LifetimeDecisions, &st.LifetimeOpportunities)
	if err == sql.ErrNoRows {
		return domain.SchedulerState{}, nil
	}
	if err != nil {
		return domain.SchedulerState{}, fmt.Errorf("storage.LoadState: %w: %w", domain.ErrPersistence, err)
	}

	if lastSnapshot.Valid {
		st.LastSnapshot = lastSnapshot.Time.UTC()
	}
	if lastScan.Valid {
		st.LastScan = lastScan.Time.UTC()
	}
	if lastWhale.Valid {
		st.LastWhaleScan = lastWhale.Time.UTC()
	}
	if lastCalibration.Valid {
		st.LastCalibrationCheck = lastCalibration.Time.UTC()
	}
	return st, nil
}

// SaveState hace upsert de la única fila de estado.
func (s *SQLiteStorage) SaveState(ctx context.Context, st domain.SchedulerState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scheduler_state
			(id, last_snapshot, last_scan, last_whale_scan, last_calibration_check,
			 lifetime_cycles, lifetime_scans, lifetime_snapshots,
			 lifetime_decisions, lifetime_opportunities)
		VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			last_snapshot          = excluded.last_snapshot,
			last_scan              = excluded.last_scan,
			last_whale_scan        = excluded.last_whale_scan,
			last_calibration_check = excluded.last_calibration_check,
			lifetime_cycles        = excluded.lifetime_cycles,
			lifetime_scans         = excluded.lifetime_scans,
			lifetime_snapshots     = excluded.lifetime_snapshots,
			lifetime_decisions     = excluded.lifetime_decisions,
			lifetime_opportunities = excluded.lifetime_opportunities
	`, nullableTime(st.LastSnapshot), nullableTime(st.LastScan), nullableTime(st.LastWhaleScan),
		nullableTime(st.LastCalibrationCheck),
		st.LifetimeCycles, st.LifetimeScans, st.LifetimeSnapshots,
		st.LifetimeDecisions, st.LifetimeOpportunities)
	if err != nil {
		return fmt.Errorf("storage.SaveState: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// SavePriceSnapshot añade un snapshot del oráculo de precios.
func (s *SQLiteStorage) SavePriceSnapshot(ctx context.Context, p domain.OraclePrice) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_snapshots (asset, price, confidence, sources, agreed, taken_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.Asset, p.Price, string(p.Confidence), p.Sources, p.Agreed, p.At.UTC())
	if err != nil {
		return fmt.Errorf("storage.SavePriceSnapshot: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// LogDecision registra una decisión en la auditoría.
func (s *SQLiteStorage) LogDecision(ctx context.Context, d domain.Decision) error {
	signals, err := json.Marshal(d.Signals)
	if err != nil {
		return fmt.Errorf("storage.LogDecision: marshal signals: %w", err)
	}
	warnings, err := json.Marshal(d.Warnings)
	if err != nil {
		return fmt.Errorf("storage.LogDecision: marshal warnings: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO decisions (id, topic, raw_score, confidence, action, signals, warnings, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, d.ID, d.Topic, d.RawScore, d.Confidence, string(d.Action),
		string(signals), string(warnings), d.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("storage.LogDecision: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// LogHeartbeat registra el resumen de un ciclo.
func (s *SQLiteStorage) LogHeartbeat(ctx context.Context, hb domain.HeartbeatSummary) error {
	errs, err := json.Marshal(hb.Errors)
	if err != nil {
		return fmt.Errorf("storage.LogHeartbeat: marshal errors: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO heartbeats
			(started_at, duration_ms, venues_ok, venues_failed,
			 opportunities, decisions, executed, watched, skipped, errors)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, hb.StartedAt.UTC(), hb.Duration.Milliseconds(), hb.VenuesOK, hb.VenuesFailed,
		hb.Opportunities, hb.Decisions, hb.Executed, hb.Watched, hb.Skipped, string(errs))
	if err != nil {
		return fmt.Errorf("storage.LogHeartbeat: %w: %w", domain.ErrPersistence, err)
	}
	return nil
}

// PruneOld elimina filas de auditoría anteriores al límite dado.
// La tabla de calibración no se poda: el histórico completo es el dato.
func (s *SQLiteStorage) PruneOld(ctx context.Context, olderThan time.Time) error {
	for _, q := range []string{
		`DELETE FROM decisions WHERE created_at < ?`,
		`DELETE FROM heartbeats WHERE started_at < ?`,
		`DELETE FROM price_snapshots WHERE taken_at < ?`,
	} {
		if _, err := s.db.ExecContext(ctx, q, olderThan.UTC()); err != nil {
			return fmt.Errorf("storage.PruneOld: %w: %w", domain.ErrPersistence, err)
		}
	}
	return nil
}

// Close cierra la conexión a la base de datos limpiamente.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func boolPtrToInt(b *bool) any {
	if b == nil {
		return nil
	}
	if *b {
		return 1
	}
	return 0
}

func timePtrUTC(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
