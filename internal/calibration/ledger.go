// Package calibration mantiene el ledger de predicciones y su resolución,
// del que se deriva el multiplicador de confianza del motor de decisión.
package calibration

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alejandrodnm/oraculo/internal/domain"
	"github.com/alejandrodnm/oraculo/internal/ports"
)

// Config controla cómo el Brier agregado se traduce en multiplicador.
type Config struct {
	// WellCalibrated: por debajo de este Brier medio el multiplicador es 1.0.
	WellCalibrated float64 `yaml:"well_calibrated"`
	// PoorlyCalibrated: por encima de este Brier medio se aplica el suelo.
	PoorlyCalibrated float64 `yaml:"poorly_calibrated"`
	// MultiplierFloor es el multiplicador mínimo aplicable.
	MultiplierFloor float64 `yaml:"multiplier_floor"`
}

// DefaultConfig devuelve los umbrales de calibración por defecto.
func DefaultConfig() Config {
	return Config{
		WellCalibrated:   0.15,
		PoorlyCalibrated: 0.25,
		MultiplierFloor:  0.5,
	}
}

// Ledger registra predicciones y calcula métricas de calibración sobre el
// histórico completo. Es seguro para uso concurrente.
//
// El store es opcional: con store nil el ledger opera solo en memoria, útil
// en tests y en modo dry-run. Los fallos de persistencia se registran como
// warning pero nunca bloquean la operación en memoria.
type Ledger struct {
	mu      sync.Mutex
	cfg     Config
	store   ports.LedgerStore
	records []domain.CalibrationRecord
	now     func() time.Time
}

// New crea un ledger vacío. Llamar a Load para hidratar desde el store.
func New(cfg Config, store ports.LedgerStore) *Ledger {
	return &Ledger{cfg: cfg, store: store, now: time.Now}
}

// Load hidrata el ledger con los registros persistidos.
func (l *Ledger) Load(ctx context.Context) error {
	if l.store == nil {
		return nil
	}
	recs, err := l.store.LoadRecords(ctx)
	if err != nil {
		return fmt.Errorf("calibration.Load: %w", err)
	}
	l.mu.Lock()
	l.records = recs
	l.mu.Unlock()
	slog.Info("calibration ledger loaded", "records", len(recs))
	return nil
}

// Record registra una nueva predicción y devuelve su ID.
func (l *Ledger) Record(ctx context.Context, topic string, probability float64, direction domain.Direction) (string, error) {
	if probability < 0 || probability > 1 {
		return "", fmt.Errorf("calibration.Record: probability %.4f out of [0,1]: %w", probability, domain.ErrInvariant)
	}
	rec := domain.CalibrationRecord{
		ID:          uuid.NewString(),
		Topic:       topic,
		Probability: probability,
		Direction:   direction,
		CreatedAt:   l.now().UTC(),
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.SaveRecord(ctx, rec); err != nil {
			slog.Warn("failed to persist calibration record", "id", rec.ID, "error", err)
		}
	}
	return rec.ID, nil
}

// Pending devuelve las predicciones aún sin resolver, en orden de creación.
// El scheduler las cruza con los mercados ya resueltos de cada scan.
func (l *Ledger) Pending() []domain.CalibrationRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []domain.CalibrationRecord
	for i := range l.records {
		if !l.records[i].Resolved() {
			out = append(out, l.records[i])
		}
	}
	return out
}

// Resolve marca una predicción con su resultado real y calcula el Brier.
// Un registro resuelto es inmutable: resolverlo dos veces es un error.
func (l *Ledger) Resolve(ctx context.Context, id string, outcome bool) error {
	l.mu.Lock()
	idx := -1
	for i := range l.records {
		if l.records[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return fmt.Errorf("calibration.Resolve: record %s not found: %w", id, domain.ErrInsufficientData)
	}
	if l.records[idx].Resolved() {
		l.mu.Unlock()
		return fmt.Errorf("calibration.Resolve: record %s already resolved: %w", id, domain.ErrInvariant)
	}

	rec := &l.records[idx]
	brier := domain.BrierScore(rec.Probability, rec.Direction, outcome)
	resolvedAt := l.now().UTC()
	rec.Outcome = &outcome
	rec.Brier = &brier
	rec.ResolvedAt = &resolvedAt
	updated := *rec
	l.mu.Unlock()

	if l.store != nil {
		if err := l.store.UpdateRecord(ctx, updated); err != nil {
			slog.Warn("failed to persist calibration resolution", "id", id, "error", err)
		}
	}
	return nil
}

// Aggregate recalcula las métricas sobre el histórico completo: Brier medio,
// accuracy direccional y racha actual (positiva = victorias consecutivas,
// negativa = derrotas).
func (l *Ledger) Aggregate() domain.CalibrationSummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := domain.CalibrationSummary{Total: len(l.records)}
	var brierSum float64
	var wins int
	for i := range l.records {
		rec := &l.records[i]
		if !rec.Resolved() {
			continue
		}
		s.Resolved++
		brierSum += *rec.Brier
		if rec.Won() {
			wins++
		}
	}
	if s.Resolved == 0 {
		return s
	}
	s.MeanBrier = brierSum / float64(s.Resolved)
	s.Accuracy = float64(wins) / float64(s.Resolved)

	// La racha recorre los resueltos del más reciente hacia atrás y se corta
	// en el primer resultado distinto.
	var last *bool
	for i := len(l.records) - 1; i >= 0; i-- {
		rec := &l.records[i]
		if !rec.Resolved() {
			continue
		}
		won := rec.Won()
		if last == nil {
			last = &won
		} else if won != *last {
			break
		}
		if won {
			s.Streak++
		} else {
			s.Streak--
		}
	}
	return s
}

// Multiplier traduce el Brier medio en un multiplicador de confianza:
// 1.0 por debajo de WellCalibrated, el suelo por encima de PoorlyCalibrated,
// interpolación lineal entre ambos. Sin registros resueltos devuelve 1.0.
func (l *Ledger) Multiplier() float64 {
	s := l.Aggregate()
	if s.Resolved == 0 {
		return 1.0
	}
	return multiplierFor(s.MeanBrier, l.cfg)
}

func multiplierFor(meanBrier float64, cfg Config) float64 {
	switch {
	case meanBrier <= cfg.WellCalibrated:
		return 1.0
	case meanBrier >= cfg.PoorlyCalibrated:
		return cfg.MultiplierFloor
	default:
		span := cfg.PoorlyCalibrated - cfg.WellCalibrated
		frac := (meanBrier - cfg.WellCalibrated) / span
		return 1.0 - frac*(1.0-cfg.MultiplierFloor)
	}
}
