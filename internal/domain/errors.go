package domain

import "errors"

// Taxonomía de errores del core. Los componentes intermedios absorben
// ErrSourceUnavailable y ErrInsufficientData produciendo resultados de menor
// confianza; ErrPersistence y ErrInvariant se loggean con contexto completo
// pero nunca detienen el loop del scheduler.
var (
	// ErrSourceUnavailable: un venue u oráculo falló o agotó su timeout.
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrInsufficientData: menos datos de los mínimos para una señal confiable.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrPersistence: falló una escritura de estado o del ledger.
	ErrPersistence = errors.New("persistence failure")

	// ErrInvariant: se violó un invariante interno (p.ej. dos mercados del
	// mismo venue en un cluster). No debería ocurrir nunca.
	ErrInvariant = errors.New("logic invariant violated")
)
