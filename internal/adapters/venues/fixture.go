package venues

import (
	"context"
	"strings"
	"time"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

// FixtureProvider sirve mercados estáticos sin tocar la red. Se usa en modo
// dry-run y en tests de integración del scheduler.
type FixtureProvider struct {
	venue   string
	markets []domain.NormalizedMarket
	err     error
}

// NewFixtureProvider crea un provider con los mercados dados.
func NewFixtureProvider(venue string, markets []domain.NormalizedMarket) *FixtureProvider {
	return &FixtureProvider{venue: venue, markets: markets}
}

// NewFailingProvider crea un provider que siempre falla, para simular una
// venue caída.
func NewFailingProvider(venue string, err error) *FixtureProvider {
	return &FixtureProvider{venue: venue, err: err}
}

func (f *FixtureProvider) Venue() string { return f.venue }

// FetchMarkets devuelve los mercados cuyo título contiene la query
// (insensible a mayúsculas). Query vacía devuelve todos.
func (f *FixtureProvider) FetchMarkets(_ context.Context, query string) ([]domain.NormalizedMarket, error) {
	if f.err != nil {
		return nil, f.err
	}
	if query == "" {
		out := make([]domain.NormalizedMarket, len(f.markets))
		copy(out, f.markets)
		return out, nil
	}
	q := strings.ToLower(query)
	var out []domain.NormalizedMarket
	for _, m := range f.markets {
		if strings.Contains(strings.ToLower(m.Title), q) {
			out = append(out, m)
		}
	}
	return out, nil
}

// DryRunProviders devuelve dos venues de ejemplo con un cruce de precios
// real entre ellas, suficiente para ejercitar todo el pipeline sin red.
func DryRunProviders() []*FixtureProvider {
	close1 := time.Now().UTC().Add(45 * 24 * time.Hour)
	return []*FixtureProvider{
		NewFixtureProvider("venue-x", []domain.NormalizedMarket{
			{
				Venue: "venue-x", ID: "btc-100k", Title: "Will Bitcoin hit $100k by Dec 2024?",
				YesPrice: 0.62, NoPrice: 0.38, Volume: 50000, Liquidity: 24000,
				CloseTime: close1, Status: domain.StatusOpen, FetchedAt: time.Now().UTC(),
			},
			{
				Venue: "venue-x", ID: "fed-cut", Title: "Fed rate cut announced before July?",
				YesPrice: 0.41, NoPrice: 0.59, Volume: 18000, Liquidity: 9000,
				CloseTime: close1, Status: domain.StatusOpen, FetchedAt: time.Now().UTC(),
			},
		}),
		NewFixtureProvider("venue-y", []domain.NormalizedMarket{
			{
				Venue: "venue-y", ID: "btc-eoy", Title: "BTC 100K EOY?",
				YesPrice: 0.68, NoPrice: 0.32, Volume: 30000, Liquidity: 15000,
				CloseTime: close1, Status: domain.StatusOpen, FetchedAt: time.Now().UTC(),
			},
			{
				Venue: "venue-y", ID: "fomc-cut", Title: "FOMC cuts rates before July?",
				YesPrice: 0.47, NoPrice: 0.53, Volume: 12000, Liquidity: 6000,
				CloseTime: close1, Status: domain.StatusOpen, FetchedAt: time.Now().UTC(),
			},
		}),
	}
}

// StaticPriceSource es un ports.PriceSource de precio fijo para dry-run.
type StaticPriceSource struct {
	name   string
	prices map[string]float64
}

// NewStaticPriceSource crea la fuente con el mapa activo→precio dado.
func NewStaticPriceSource(name string, prices map[string]float64) *StaticPriceSource {
	return &StaticPriceSource{name: name, prices: prices}
}

func (s *StaticPriceSource) Name() string { return s.name }

func (s *StaticPriceSource) Price(_ context.Context, asset string) (float64, error) {
	p, ok := s.prices[asset]
	if !ok {
		return 0, domain.ErrInsufficientData
	}
	return p, nil
}
