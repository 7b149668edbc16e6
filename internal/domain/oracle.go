package domain

import "time"

// PriceConfidence indica cuántos oráculos independientes coincidieron.
type PriceConfidence string

const (
	ConfidenceHigh   PriceConfidence = "HIGH"
	ConfidenceMedium PriceConfidence = "MEDIUM"
	ConfidenceLow    PriceConfidence = "LOW"
)

// OraclePrice es el precio resuelto por mediana entre los oráculos que
// respondieron a tiempo.
type OraclePrice struct {
	Asset      string
	Price      float64
	Confidence PriceConfidence
	Sources    int // oráculos que respondieron
	Agreed     int // oráculos dentro de la banda de acuerdo alrededor de la mediana
	At         time.Time
}
