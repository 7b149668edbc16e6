// Package oracle resuelve precios spot consultando varias fuentes
// independientes y quedándose con la mediana de las que respondan.
package oracle

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/oraculo/internal/domain"
	"github.com/alejandrodnm/oraculo/internal/ports"
)

// Config controla los timeouts y el criterio de acuerdo entre fuentes.
type Config struct {
	// Timeout por consulta a cada fuente.
	Timeout time.Duration `yaml:"timeout"`
	// AgreeTolerance es la desviación relativa máxima respecto a la mediana
	// para que una fuente cuente como "de acuerdo".
	AgreeTolerance float64 `yaml:"agree_tolerance"`
}

// DefaultConfig devuelve la configuración por defecto del resolver.
func DefaultConfig() Config {
	return Config{
		Timeout:        4 * time.Second,
		AgreeTolerance: 0.01,
	}
}

// Resolver consulta todas las fuentes en paralelo y agrega por mediana.
// Una fuente lenta o caída degrada la confianza, nunca bloquea la consulta.
type Resolver struct {
	sources []ports.PriceSource
	cfg     Config
	now     func() time.Time
}

// New crea un resolver sobre las fuentes dadas.
func New(cfg Config, sources ...ports.PriceSource) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.AgreeTolerance <= 0 {
		cfg.AgreeTolerance = DefaultConfig().AgreeTolerance
	}
	return &Resolver{sources: sources, cfg: cfg, now: time.Now}
}

type sourcePrice struct {
	name  string
	price float64
}

// Price devuelve la mediana de los precios disponibles para el activo.
// Falla con ErrSourceUnavailable solo cuando ninguna fuente responde.
func (r *Resolver) Price(ctx context.Context, asset string) (domain.OraclePrice, error) {
	if len(r.sources) == 0 {
		return domain.OraclePrice{}, fmt.Errorf("oracle.Price: no sources configured: %w", domain.ErrSourceUnavailable)
	}

	results := make(chan sourcePrice, len(r.sources))
	var wg sync.WaitGroup
	for _, src := range r.sources {
		wg.Add(1)
		go func(src ports.PriceSource) {
			defer wg.Done()
			cctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
			defer cancel()
			price, err := src.Price(cctx, asset)
			if err != nil {
				slog.Warn("price source failed", "source", src.Name(), "asset", asset, "error", err)
				return
			}
			results <- sourcePrice{name: src.Name(), price: price}
		}(src)
	}
	wg.Wait()
	close(results)

	prices := make([]float64, 0, len(r.sources))
	for sp := range results {
		prices = append(prices, sp.price)
	}
	if len(prices) == 0 {
		return domain.OraclePrice{}, fmt.Errorf("oracle.Price: all %d sources failed for %s: %w",
			len(r.sources), asset, domain.ErrSourceUnavailable)
	}

	med := median(prices)
	agreed := 0
	for _, p := range prices {
		if med == 0 {
			if p == 0 {
				agreed++
			}
			continue
		}
		if abs(p-med)/med <= r.cfg.AgreeTolerance {
			agreed++
		}
	}

	return domain.OraclePrice{
		Asset:      asset,
		Price:      med,
		Confidence: confidenceFor(agreed),
		Sources:    len(prices),
		Agreed:     agreed,
		At:         r.now().UTC(),
	}, nil
}

// confidenceFor clasifica según cuántas fuentes coinciden con la mediana.
func confidenceFor(agreed int) domain.PriceConfidence {
	switch {
	case agreed >= 3:
		return domain.ConfidenceHigh
	case agreed == 2:
		return domain.ConfidenceMedium
	default:
		return domain.ConfidenceLow
	}
}

// median sobre una copia, para no reordenar el slice del caller.
func median(values []float64) float64 {
	s := make([]float64, len(values))
	copy(s, values)
	sort.Float64s(s)
	n := len(s)
	if n%2 == 1 {
		return s[n/2]
	}
	return (s[n/2-1] + s[n/2]) / 2
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
