package domain

import "time"

// MarketStatus es el estado del mercado en su venue de origen.
type MarketStatus string

const (
	StatusOpen     MarketStatus = "open"
	StatusClosed   MarketStatus = "closed"
	StatusResolved MarketStatus = "resolved"
)

// NormalizedMarket es un mercado de predicción ya normalizado por el adaptador
// de su venue. Inmutable una vez construido: el siguiente fetch lo reemplaza,
// nunca lo muta.
type NormalizedMarket struct {
	Venue     string
	ID        string
	Title     string
	YesPrice  float64 // probabilidad YES en [0,1]
	NoPrice   float64 // no tiene por qué sumar 1 con YesPrice por el spread bid/ask
	Volume    float64 // volumen negociado en USD
	Liquidity float64 // profundidad disponible en USD
	CloseTime time.Time
	Status    MarketStatus
	Outcome   *bool // solo presente si Status == resolved
	FetchedAt time.Time
}

// Key identifica el mercado de forma única entre venues.
func (m NormalizedMarket) Key() string {
	return m.Venue + ":" + m.ID
}

// IsOpen devuelve true si el mercado sigue operable.
func (m NormalizedMarket) IsOpen() bool {
	return m.Status == StatusOpen
}

// HoursToClose devuelve las horas hasta el cierre del mercado.
// Devuelve 0 si CloseTime no está definido o ya pasó.
func (m NormalizedMarket) HoursToClose() float64 {
	if m.CloseTime.IsZero() {
		return 0
	}
	h := time.Until(m.CloseTime).Hours()
	if h < 0 {
		return 0
	}
	return h
}
