package ports

import (
	"context"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

// Notifier presenta al usuario los resultados de cada ciclo.
type Notifier interface {
	// NotifyOpportunities muestra las oportunidades de arbitraje ordenadas
	// por score. En la implementación de consola, imprime una tabla.
	NotifyOpportunities(ctx context.Context, opportunities []domain.ArbitrageOpportunity) error

	// NotifyDecisions muestra las decisiones EXECUTE/WATCH del ciclo.
	NotifyDecisions(ctx context.Context, decisions []domain.Decision) error

	// NotifyCalibration muestra el resumen del ledger de calibración.
	NotifyCalibration(ctx context.Context, summary domain.CalibrationSummary, multiplier float64) error
}
