package domain

import "math"

// Strategy es la jugada propuesta para explotar un desacuerdo de precios.
type Strategy string

const (
	// StrategyHedge compra YES en el venue barato y NO en el caro,
	// capturando el spread directamente.
	StrategyHedge Strategy = "HEDGE_BOTH_SIDES"
	// StrategyDirectional apuesta a la convergencia de precios sin cubrir
	// el otro lado.
	StrategyDirectional Strategy = "DIRECTIONAL_SPREAD"
)

// Leg es una pata de la oportunidad en un venue concreto.
type Leg struct {
	Venue       string
	MarketID    string
	YesPrice    float64 // precio crudo del venue
	FeeAdjusted float64 // YesPrice menos el fee del venue
	Volume      float64
}

// ArbitrageOpportunity es el desacuerdo de precios detectado entre dos venues
// para el mismo evento. Efímera: se recalcula en cada scan y nunca se
// persiste como fuente de verdad.
type ArbitrageOpportunity struct {
	Topic string // título del mercado representante del cluster
	// ClusterKey es la Key del representante (venue:id). Identifica el
	// cluster de origen: dos clusters pueden compartir título byte a byte
	// y el título no sirve como identificador.
	ClusterKey string
	Cheap      Leg // venue con el YES más barato (fee-adjusted)
	Dear       Leg // venue con el YES más caro (fee-adjusted)
	Spread     float64
	SpreadPct  float64
	Strategies []Strategy
	// MatchConfidence hereda el score pairwise más débil del cluster:
	// un match justo sobre el umbral llega aquí descontado, no como certeza.
	MatchConfidence float64
}

// MinVolume devuelve el volumen de la pata menos líquida.
func (o ArbitrageOpportunity) MinVolume() float64 {
	return math.Min(o.Cheap.Volume, o.Dear.Volume)
}

// RankScore combina spread y volumen para ordenar oportunidades:
// un spread grande sobre patas ilíquidas vale menos que uno moderado
// donde de verdad se puede operar.
func (o ArbitrageOpportunity) RankScore() float64 {
	return o.Spread * o.MinVolume()
}
