package decision

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/oraculo/internal/domain"
	"github.com/google/uuid"
)

// engine.go — motor de decisión multi-señal.
//
// Combina hasta cinco señales independientes en una recomendación graduada.
// El motor es una función pura de su input: no toca el ledger ni ningún
// proveedor (el multiplicador de calibración llega como parámetro) y NUNCA
// devuelve error — con señales parciales produce una decisión degradada
// pero válida.

// Config contiene pesos y umbrales. Los pesos suman 1.0; una señal ausente
// se excluye SIN renormalizar: menos datos → score más bajo → sesgo hacia
// la inacción.
type Config struct {
	WeightConsensus float64
	WeightArbitrage float64
	WeightSentiment float64
	WeightWhale     float64
	WeightSocial    float64

	// ExecuteThreshold y WatchThreshold son inclusivos (≥).
	ExecuteThreshold float64
	WatchThreshold   float64

	// ArbVolumeBonusFloor: volumen sobre el que el arbitraje recibe bonus.
	ArbVolumeBonusFloor float64
	// ArbVolumeBonus se suma al score del arbitraje sobre el floor.
	ArbVolumeBonus float64
	// ArbLowConfidencePenalty multiplica el score del arbitraje cuando la
	// confianza del match queda bajo ArbConfidenceFloor.
	ArbLowConfidencePenalty float64
	ArbConfidenceFloor      float64

	// WhaleSizeFloor: trades por debajo no puntúan.
	WhaleSizeFloor float64
	// WhaleSizeCap: tamaño al que el factor de tamaño satura en 1.0.
	WhaleSizeCap float64
}

// DefaultConfig devuelve los pesos y umbrales por defecto.
func DefaultConfig() Config {
	return Config{
		WeightConsensus: 0.35,
		WeightArbitrage: 0.25,
		WeightSentiment: 0.15,
		WeightWhale:     0.15,
		WeightSocial:    0.10,

		ExecuteThreshold: 70,
		WatchThreshold:   45,

		ArbVolumeBonusFloor:     10_000,
		ArbVolumeBonus:          0.2,
		ArbLowConfidencePenalty: 0.7,
		ArbConfidenceFloor:      0.5,

		WhaleSizeFloor: 10_000,
		WhaleSizeCap:   100_000,
	}
}

// Engine computa decisiones a partir de señales.
type Engine struct {
	cfg Config
	now func() time.Time
}

// New crea un Engine.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg, now: time.Now}
}

// Decide combina las señales presentes en una recomendación. Nunca falla:
// con cero señales devuelve SKIP con score 0.
func (e *Engine) Decide(in domain.DecisionInput) domain.Decision {
	d := domain.Decision{
		ID:        uuid.NewString(),
		Topic:     in.Topic,
		Warnings:  append([]string(nil), in.Warnings...),
		CreatedAt: e.now(),
	}

	add := func(name string, score, weight float64) {
		d.Signals = append(d.Signals, domain.SignalScore{
			Name:     name,
			Score:    score,
			Weight:   weight,
			Weighted: score * weight,
		})
	}

	if in.Consensus != nil {
		add("consensus", clamp01(in.Consensus.Agreement), e.cfg.WeightConsensus)
	} else {
		d.Warnings = append(d.Warnings, "consensus signal absent")
	}

	if in.Arbitrage != nil {
		add("arbitrage", e.scoreArbitrage(*in.Arbitrage), e.cfg.WeightArbitrage)
	} else {
		d.Warnings = append(d.Warnings, "arbitrage signal absent")
	}

	if in.Sentiment != nil {
		add("sentiment", scoreSentiment(in.Sentiment.Tone), e.cfg.WeightSentiment)
	} else {
		d.Warnings = append(d.Warnings, "sentiment signal absent")
	}

	if in.Whale != nil {
		add("whale", e.scoreWhale(*in.Whale), e.cfg.WeightWhale)
	} else {
		d.Warnings = append(d.Warnings, "whale signal absent")
	}

	if in.Social != nil {
		add("social", scoreSocial(*in.Social), e.cfg.WeightSocial)
	} else {
		d.Warnings = append(d.Warnings, "social signal absent")
	}

	var weighted float64
	for _, s := range d.Signals {
		weighted += s.Weighted
	}
	d.RawScore = clamp(weighted*100, 0, 100)

	// Ajuste multiplicativo de calibración: se aplica una vez, no es un
	// filtro recursivo.
	mult := in.CalibrationMultiplier
	if mult <= 0 {
		mult = 1.0
	}
	d.Confidence = clamp(d.RawScore*mult, 0, 100)

	d.Action = e.ActionFor(d.Confidence)
	return d
}

// ActionFor aplica los umbrales inclusivos sobre un score en [0,100]:
// ≥ ExecuteThreshold → EXECUTE, ≥ WatchThreshold → WATCH, si no SKIP.
// Función pura del score: no hay estados persistidos.
func (e *Engine) ActionFor(score float64) domain.Action {
	switch {
	case score >= e.cfg.ExecuteThreshold:
		return domain.ActionExecute
	case score >= e.cfg.WatchThreshold:
		return domain.ActionWatch
	default:
		return domain.ActionSkip
	}
}

// scoreArbitrage: min(1, spreadPct/10), con bonus por volumen alto y
// penalización cuando la confianza del match es baja.
func (e *Engine) scoreArbitrage(opp domain.ArbitrageOpportunity) float64 {
	score := opp.SpreadPct / 10
	if score > 1 {
		score = 1
	}
	if opp.MinVolume() > e.cfg.ArbVolumeBonusFloor {
		score += e.cfg.ArbVolumeBonus
	}
	if opp.MatchConfidence < e.cfg.ArbConfidenceFloor {
		score *= e.cfg.ArbLowConfidencePenalty
	}
	return clamp01(score)
}

// scoreSentiment mapea el tono a un score fijo.
func scoreSentiment(tone domain.SentimentTone) float64 {
	switch tone {
	case domain.SentimentBullish:
		return 0.8
	case domain.SentimentBearish:
		return 0.3
	default:
		return 0.5
	}
}

// scoreWhale: factor de tamaño sobre el floor de $10K, escalado por la
// precisión histórica del wallet si se conoce.
func (e *Engine) scoreWhale(w domain.WhaleSignal) float64 {
	if w.TradeSizeUSD < e.cfg.WhaleSizeFloor {
		return 0
	}
	span := e.cfg.WhaleSizeCap - e.cfg.WhaleSizeFloor
	if span <= 0 {
		span = 1
	}
	sizeFactor := clamp01((w.TradeSizeUSD - e.cfg.WhaleSizeFloor) / span)

	accuracy := w.WalletAccuracy
	if accuracy <= 0 {
		accuracy = 0.5 // wallet desconocido: ni premio ni castigo
	}
	return clamp01(sizeFactor * accuracy)
}

// scoreSocial: engagement escalado por consistencia del sentimiento.
func scoreSocial(s domain.SocialSignal) float64 {
	return clamp01(s.Engagement * s.Consistency)
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Describe resume una decisión en una línea para logs.
func Describe(d domain.Decision) string {
	return fmt.Sprintf("%s score=%.1f conf=%.1f action=%s signals=%d",
		d.Topic, d.RawScore, d.Confidence, d.Action, len(d.Signals))
}
