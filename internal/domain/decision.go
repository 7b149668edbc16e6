package domain

import "time"

// Action es la recomendación graduada del motor de decisión.
type Action string

const (
	ActionExecute Action = "EXECUTE"
	ActionWatch   Action = "WATCH"
	ActionSkip    Action = "SKIP"
)

// SentimentTone clasifica el sentimiento de noticias/social para un topic.
type SentimentTone string

const (
	SentimentBullish SentimentTone = "bullish"
	SentimentNeutral SentimentTone = "neutral"
	SentimentBearish SentimentTone = "bearish"
)

// SentimentSignal es la señal externa de sentimiento de noticias.
type SentimentSignal struct {
	Topic string
	Tone  SentimentTone
}

// WhaleSignal es actividad reciente de grandes holders relacionada al topic.
type WhaleSignal struct {
	Topic          string
	TradeSizeUSD   float64
	WalletAccuracy float64 // precisión histórica del wallet en [0,1]; 0 = desconocida
	ObservedAt     time.Time
}

// SocialSignal es engagement social alrededor del topic.
type SocialSignal struct {
	Topic       string
	Engagement  float64 // nivel de engagement normalizado en [0,1]
	Consistency float64 // consistencia del sentimiento en [0,1]
}

// DecisionInput agrupa las señales disponibles para un topic. Cualquier campo
// puntero puede ser nil: una señal ausente se excluye del score sin
// renormalizar los pesos, sesgando la decisión hacia la inacción.
type DecisionInput struct {
	Topic     string
	Arbitrage *ArbitrageOpportunity
	Consensus *ConsensusResult
	Sentiment *SentimentSignal
	Whale     *WhaleSignal
	Social    *SocialSignal
	// CalibrationMultiplier escala la confianza según el Brier histórico del
	// ledger. Se pasa explícito para mantener el motor puro; <= 0 equivale a 1.
	CalibrationMultiplier float64
	// Warnings acumula fallos de señales registrados durante el gather.
	Warnings []string
}

// SignalScore es la contribución de una señal individual a la decisión.
type SignalScore struct {
	Name     string
	Score    float64 // valor crudo de la señal en [0,1]
	Weight   float64
	Weighted float64
}

// Decision es la recomendación final para un topic en un ciclo de scan.
// Se computa síncronamente y se descarta (SKIP) o se reenvía al audit sink.
type Decision struct {
	ID         string
	Topic      string
	RawScore   float64 // suma ponderada × 100, en [0,100]
	Confidence float64 // RawScore ajustado por calibración
	Action     Action
	Signals    []SignalScore
	Warnings   []string
	CreatedAt  time.Time
}
