// Package venues implementa el adaptador HTTP genérico de venues de
// predicción: un endpoint JSON de mercados por venue, con rate limiting,
// retries y normalización al modelo común.
package venues

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

const (
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond

	defaultRatePerSec = 10
	defaultBurst      = 5
)

// Options configura un Provider para una venue concreta.
type Options struct {
	// Venue es el identificador estable ("polymarket", "kalshi", ...).
	Venue string
	// BaseURL apunta a la API de la venue; los mercados se listan en
	// {BaseURL}/markets?q={query}.
	BaseURL string
	// Timeout por request HTTP. Cero usa 10s.
	Timeout time.Duration
	// RatePerSec limita las requests salientes. Cero usa el valor por defecto.
	RatePerSec float64
}

// Provider es el cliente HTTP de una venue con rate limiting y retries.
// Implementa ports.VenueProvider.
type Provider struct {
	venue   string
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

// NewProvider crea el cliente para la venue dada.
func NewProvider(opts Options) *Provider {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perSec := opts.RatePerSec
	if perSec <= 0 {
		perSec = defaultRatePerSec
	}
	return &Provider{
		venue:   opts.Venue,
		base:    opts.BaseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(rate.Limit(perSec), defaultBurst),
	}
}

// Venue devuelve el identificador de la venue.
func (p *Provider) Venue() string { return p.venue }

// FetchMarkets consulta los mercados abiertos que coincidan con la query.
func (p *Provider) FetchMarkets(ctx context.Context, query string) ([]domain.NormalizedMarket, error) {
	u := p.base + "/markets"
	if query != "" {
		u += "?q=" + url.QueryEscape(query)
	}

	var raw marketsResponse
	if err := p.get(ctx, u, &raw); err != nil {
		return nil, fmt.Errorf("venues.FetchMarkets(%s): %w: %w", p.venue, domain.ErrSourceUnavailable, err)
	}

	markets := mapMarkets(p.venue, raw.Markets)
	slog.Debug("fetched markets", "venue", p.venue, "query", query, "count", len(markets))
	return markets, nil
}

// get hace un GET con rate limiting y retries.
func (p *Provider) get(ctx context.Context, url string, out any) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := p.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")

		resp, err := p.http.Do(req)
		if err != nil {
			if attempt == maxRetries {
				return fmt.Errorf("request failed after %d retries: %w", maxRetries, err)
			}
			p.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by venue API", "venue", p.venue, "attempt", attempt+1)
			p.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			p.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return fmt.Errorf("client error %d: %s", resp.StatusCode, string(body))
		}

		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	}
	return fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (p *Provider) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * baseRetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}
