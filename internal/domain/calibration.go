package domain

import "time"

// Direction es la dirección afirmada por una predicción.
type Direction string

const (
	DirectionYes Direction = "YES"
	DirectionNo  Direction = "NO"
)

// CalibrationRecord es una fila del ledger de calibración: una predicción
// visible para el usuario y, tras resolverse el mercado, su outcome y Brier.
// Se muta una sola vez (al resolver) y nunca se borra.
type CalibrationRecord struct {
	ID          string
	Topic       string
	Probability float64 // probabilidad asignada a la dirección afirmada
	Direction   Direction
	Outcome     *bool
	Brier       *float64
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// Resolved devuelve true si la predicción ya tiene outcome.
func (r CalibrationRecord) Resolved() bool {
	return r.Outcome != nil
}

// Won devuelve true si la dirección afirmada coincidió con el outcome.
// Solo tiene sentido sobre registros resueltos.
func (r CalibrationRecord) Won() bool {
	if r.Outcome == nil {
		return false
	}
	if r.Direction == DirectionYes {
		return *r.Outcome
	}
	return !*r.Outcome
}

// BrierScore calcula el error cuadrático entre la probabilidad-YES implícita
// y el outcome realizado. Si la dirección afirmada era NO, la probabilidad
// usada es 1 − prob. Menor es mejor; 0 es perfecto.
func BrierScore(prob float64, dir Direction, outcome bool) float64 {
	pYes := prob
	if dir == DirectionNo {
		pYes = 1 - prob
	}
	o := 0.0
	if outcome {
		o = 1.0
	}
	d := pYes - o
	return d * d
}

// CalibrationSummary son los agregados derivados del historial del ledger.
type CalibrationSummary struct {
	Total     int
	Resolved  int
	MeanBrier float64
	// Accuracy es la fracción de predicciones resueltas cuya dirección
	// afirmada coincidió con el outcome.
	Accuracy float64
	// Streak son resultados idénticos consecutivos desde el más reciente
	// hacia atrás: positivo = racha de aciertos, negativo = de fallos.
	Streak int
}
