package consensus

import (
	"math"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

// Config contiene los pesos de fiabilidad por venue.
type Config struct {
	// Reliability pondera cada venue según calidad de datos y profundidad:
	// un venue con dinero real pesa más que uno de play-money.
	Reliability map[string]float64
	// DefaultReliability aplica a venues sin peso configurado.
	DefaultReliability float64
	// MinSources marca LowConfidence por debajo de este número de venues.
	MinSources int
}

// DefaultConfig devuelve pesos neutros.
func DefaultConfig() Config {
	return Config{
		DefaultReliability: 0.5,
		MinSources:         2,
	}
}

// Aggregator computa la probabilidad de consenso por cluster.
type Aggregator struct {
	cfg Config
}

// New crea un Aggregator.
func New(cfg Config) *Aggregator {
	if cfg.DefaultReliability <= 0 {
		cfg.DefaultReliability = 0.5
	}
	return &Aggregator{cfg: cfg}
}

// Aggregate computa el consenso de un cluster:
//
//	prob      = Σ(precio_i × liquidez_i × fiabilidad_i) / Σ(liquidez_i × fiabilidad_i)
//	agreement = 1 − stddev(precios)/mean(precios), recortado a [0,1]
//
// Pocos datos degradan la confianza, nunca producen error: bajo agreement
// con alta liquidez es señal en sí mismo (mispricing o incertidumbre
// genuina) y se reporta aunque no haya spread explotable.
func (a *Aggregator) Aggregate(c domain.MarketCluster) domain.ConsensusResult {
	prices := make([]float64, 0, len(c.Members))
	var weightedSum, weightTotal, liquidity float64
	for _, m := range c.Members {
		rel := a.reliabilityFor(m.Market.Venue)
		w := m.Market.Liquidity * rel
		weightedSum += m.Market.YesPrice * w
		weightTotal += w
		liquidity += m.Market.Liquidity
		prices = append(prices, m.Market.YesPrice)
	}

	res := domain.ConsensusResult{
		Topic:          c.Representative().Title,
		Sources:        len(c.Members),
		TotalLiquidity: liquidity,
		LowConfidence:  len(c.Members) < a.cfg.MinSources,
	}

	if weightTotal > 0 {
		res.Probability = weightedSum / weightTotal
	} else {
		// sin liquidez no hay pesos: media simple y confianza degradada
		res.Probability = mean(prices)
		res.LowConfidence = true
	}
	res.Agreement = agreement(prices)
	return res
}

// AggregateAll computa el consenso de cada cluster.
func (a *Aggregator) AggregateAll(clusters []domain.MarketCluster) []domain.ConsensusResult {
	out := make([]domain.ConsensusResult, 0, len(clusters))
	for _, c := range clusters {
		out = append(out, a.Aggregate(c))
	}
	return out
}

func (a *Aggregator) reliabilityFor(venue string) float64 {
	if r, ok := a.cfg.Reliability[venue]; ok && r > 0 {
		return r
	}
	return a.cfg.DefaultReliability
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// agreement devuelve 1 − stddev/mean recortado a [0,1]. Con un solo precio
// la dispersión es 0 y el agreement 1 — el flag LowConfidence ya avisa.
func agreement(prices []float64) float64 {
	m := mean(prices)
	if m <= 0 {
		return 0
	}
	var sq float64
	for _, p := range prices {
		d := p - m
		sq += d * d
	}
	stddev := math.Sqrt(sq / float64(len(prices)))
	ag := 1 - stddev/m
	if ag < 0 {
		return 0
	}
	if ag > 1 {
		return 1
	}
	return ag
}
