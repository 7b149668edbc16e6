package domain

// ConsensusResult es la estimación agregada de probabilidad para un cluster.
// Se recalcula en cada scan.
type ConsensusResult struct {
	Topic string
	// Probability es la media ponderada por liquidez y fiabilidad del venue.
	// Siempre dentro de [min(precios), max(precios)].
	Probability float64
	// Agreement = 1 − dispersión normalizada entre venues, en [0,1].
	// Bajo agreement con alta liquidez es señal por sí mismo (mispricing o
	// incertidumbre genuina) y se reporta igual, nunca se descarta.
	Agreement      float64
	Sources        int
	TotalLiquidity float64
	// LowConfidence marca resultados construidos con menos fuentes de las
	// mínimas: salida degradada en lugar de error.
	LowConfidence bool
}
