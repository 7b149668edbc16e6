package arbitrage

import (
	"log/slog"
	"math"
	"sort"

	"github.com/alejandrodnm/oraculo/internal/domain"
	"github.com/alejandrodnm/oraculo/internal/matching"
)

// Config contiene los umbrales del detector. Todos configurables — los
// valores por defecto no son sagrados.
type Config struct {
	// MinSpread es el spread mínimo fee-adjusted para reportar (0.03 = 3%).
	MinSpread float64
	// MinVolume es el volumen mínimo en USD exigido en AMBAS patas.
	MinVolume float64
	// MaxOpportunities acota el tamaño del output por scan.
	MaxOpportunities int
	// ClusterThreshold es el umbral de similitud para agrupar mercados.
	// Más estricto que el umbral de candidato del matcher.
	ClusterThreshold float64
	// VenueFees es el fee por venue que se resta al precio crudo.
	VenueFees map[string]float64
}

// DefaultConfig devuelve umbrales conservadores.
func DefaultConfig() Config {
	return Config{
		MinSpread:        0.03,
		MinVolume:        1_000,
		MaxOpportunities: 10,
		ClusterThreshold: 0.60,
	}
}

// Detector agrupa mercados equivalentes entre venues y busca desacuerdos de
// precio explotables.
type Detector struct {
	cfg    Config
	scorer *matching.Scorer
}

// New crea un Detector con el scorer de similitud dado.
func New(cfg Config, scorer *matching.Scorer) *Detector {
	return &Detector{cfg: cfg, scorer: scorer}
}

// Detect agrupa los mercados y devuelve las oportunidades encontradas,
// ordenadas por spread × min(volumen) descendente y acotadas a
// MaxOpportunities.
func (d *Detector) Detect(markets []domain.NormalizedMarket) []domain.ArbitrageOpportunity {
	clusters := matching.Cluster(markets, d.scorer, d.cfg.ClusterThreshold)
	return d.FromClusters(clusters)
}

// FromClusters evalúa clusters ya construidos. Útil cuando el caller también
// necesita los clusters para el consenso y no quiere agrupar dos veces.
func (d *Detector) FromClusters(clusters []domain.MarketCluster) []domain.ArbitrageOpportunity {
	var opps []domain.ArbitrageOpportunity
	for _, c := range clusters {
		if err := c.Validate(); err != nil {
			// No debería ocurrir nunca: el clustering garantiza venues
			// únicos. Loggear fuerte y saltar el cluster.
			slog.Error("cluster invariant violated", "err", err, "topic", c.Representative().Title)
			continue
		}
		if c.VenueCount() < 2 {
			continue
		}
		opp, ok := d.evaluate(c)
		if !ok {
			continue
		}
		opps = append(opps, opp)
	}

	sort.Slice(opps, func(i, j int) bool {
		return opps[i].RankScore() > opps[j].RankScore()
	})
	if d.cfg.MaxOpportunities > 0 && len(opps) > d.cfg.MaxOpportunities {
		opps = opps[:d.cfg.MaxOpportunities]
	}
	return opps
}

// evaluate compara los precios fee-adjusted del cluster y construye la
// oportunidad si el spread y el volumen superan los mínimos.
func (d *Detector) evaluate(c domain.MarketCluster) (domain.ArbitrageOpportunity, bool) {
	legs := make([]domain.Leg, 0, len(c.Members))
	for _, m := range c.Members {
		legs = append(legs, domain.Leg{
			Venue:       m.Market.Venue,
			MarketID:    m.Market.ID,
			YesPrice:    m.Market.YesPrice,
			FeeAdjusted: m.Market.YesPrice - d.feeFor(m.Market.Venue),
			Volume:      m.Market.Volume,
		})
	}

	cheap, dear := legs[0], legs[0]
	for _, l := range legs[1:] {
		if l.FeeAdjusted < cheap.FeeAdjusted {
			cheap = l
		}
		if l.FeeAdjusted > dear.FeeAdjusted {
			dear = l
		}
	}

	spread := math.Abs(dear.FeeAdjusted - cheap.FeeAdjusted)
	if spread < d.cfg.MinSpread {
		return domain.ArbitrageOpportunity{}, false
	}
	if math.Min(cheap.Volume, dear.Volume) < d.cfg.MinVolume {
		return domain.ArbitrageOpportunity{}, false
	}

	return domain.ArbitrageOpportunity{
		Topic:      c.Representative().Title,
		ClusterKey: c.Representative().Key(),
		Cheap:      cheap,
		Dear:       dear,
		Spread:     spread,
		SpreadPct:  spread * 100,
		// Ambas estrategias se evalúan y se reportan: comprar YES barato +
		// NO caro captura el spread; la jugada direccional asume
		// convergencia.
		Strategies:      []domain.Strategy{domain.StrategyHedge, domain.StrategyDirectional},
		MatchConfidence: c.MinScore(),
	}, true
}

// feeFor devuelve el fee configurado para el venue, 0 si no hay.
func (d *Detector) feeFor(venue string) float64 {
	if d.cfg.VenueFees == nil {
		return 0
	}
	return d.cfg.VenueFees[venue]
}
