package ports

import "context"

// PriceSource entrega el precio spot de un activo desde una fuente externa.
type PriceSource interface {
	// Name identifica la fuente en logs y en el desglose de confianza.
	Name() string

	// Price devuelve el precio en USD del activo dado.
	Price(ctx context.Context, asset string) (float64, error)
}
