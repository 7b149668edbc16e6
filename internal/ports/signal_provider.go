package ports

import (
	"context"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

// SentimentProvider entrega la lectura de sentimiento de mercado para un tema.
type SentimentProvider interface {
	// FetchSentiment devuelve nil sin error cuando no hay lectura disponible.
	FetchSentiment(ctx context.Context, topic string) (*domain.SentimentSignal, error)
}

// WhaleProvider detecta movimientos grandes de wallets relevantes.
type WhaleProvider interface {
	// FetchWhaleActivity devuelve la actividad whale más reciente para un tema,
	// o nil si no se observó ninguna.
	FetchWhaleActivity(ctx context.Context, topic string) (*domain.WhaleSignal, error)
}

// SocialProvider mide momentum social (engagement y consistencia) de un tema.
type SocialProvider interface {
	FetchSocial(ctx context.Context, topic string) (*domain.SocialSignal, error)
}
