package ports

import (
	"context"
	"time"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

// LedgerStore persiste los registros de calibración entre reinicios.
type LedgerStore interface {
	SaveRecord(ctx context.Context, rec domain.CalibrationRecord) error
	UpdateRecord(ctx context.Context, rec domain.CalibrationRecord) error

	// LoadRecords devuelve todos los registros ordenados por fecha de creación.
	LoadRecords(ctx context.Context) ([]domain.CalibrationRecord, error)
}

// StateStore persiste el estado del scheduler y los snapshots de precios.
type StateStore interface {
	// LoadState devuelve el estado persistido, o el estado cero si es la
	// primera ejecución.
	LoadState(ctx context.Context) (domain.SchedulerState, error)
	SaveState(ctx context.Context, state domain.SchedulerState) error

	SavePriceSnapshot(ctx context.Context, price domain.OraclePrice) error
}

// AuditSink registra decisiones y resúmenes de ciclo para inspección posterior.
type AuditSink interface {
	LogDecision(ctx context.Context, d domain.Decision) error
	LogHeartbeat(ctx context.Context, hb domain.HeartbeatSummary) error
}

// Storage agrupa todas las responsabilidades de persistencia que implementa
// el adaptador SQLite.
type Storage interface {
	LedgerStore
	StateStore
	AuditSink

	// PruneOld elimina registros de auditoría anteriores al límite dado.
	PruneOld(ctx context.Context, olderThan time.Time) error

	// Close cierra la conexión a la base de datos limpiamente.
	Close() error
}
