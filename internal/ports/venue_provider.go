package ports

import (
	"context"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

// VenueProvider obtiene mercados de predicción de una venue concreta,
// ya normalizados al modelo común.
type VenueProvider interface {
	// Venue devuelve el identificador estable de la venue (p.ej. "polymarket").
	Venue() string

	// FetchMarkets devuelve los mercados abiertos que coincidan con la query.
	// Una query vacía devuelve todos los mercados disponibles.
	FetchMarkets(ctx context.Context, query string) ([]domain.NormalizedMarket, error)
}
