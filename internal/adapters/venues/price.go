package venues

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

// HTTPPriceSource consulta un endpoint de cotización JSON simple:
// {BaseURL}/price?asset={asset} → {"asset": "...", "price": 64100.5}.
// Implementa ports.PriceSource.
type HTTPPriceSource struct {
	name    string
	base    string
	http    *http.Client
	limiter *rate.Limiter
}

// NewHTTPPriceSource crea la fuente con el nombre y base URL dados.
func NewHTTPPriceSource(name, baseURL string, timeout time.Duration) *HTTPPriceSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPPriceSource{
		name:    name,
		base:    baseURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(defaultRatePerSec, defaultBurst),
	}
}

func (s *HTTPPriceSource) Name() string { return s.name }

// Price devuelve la cotización en USD del activo.
func (s *HTTPPriceSource) Price(ctx context.Context, asset string) (float64, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter: %w", err)
	}

	u := s.base + "/price?asset=" + url.QueryEscape(asset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("venues.Price(%s): %w: %w", s.name, domain.ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("venues.Price(%s): status %d: %w", s.name, resp.StatusCode, domain.ErrSourceUnavailable)
	}

	var out struct {
		Asset string      `json:"asset"`
		Price json.Number `json:"price"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode quote: %w", err)
	}
	price, err := out.Price.Float64()
	if err != nil || price <= 0 {
		return 0, fmt.Errorf("venues.Price(%s): invalid quote %q: %w", s.name, out.Price.String(), domain.ErrInsufficientData)
	}
	return price, nil
}
