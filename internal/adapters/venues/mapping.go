package venues

import (
	"strings"
	"time"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

// mapMarkets convierte los DTOs de la venue a domain.NormalizedMarket.
// Los mercados sin ID o con precios fuera de [0,1] se descartan.
func mapMarkets(venue string, raw []wireMarket) []domain.NormalizedMarket {
	now := time.Now().UTC()
	markets := make([]domain.NormalizedMarket, 0, len(raw))
	for _, r := range raw {
		m, ok := mapMarket(venue, r, now)
		if !ok {
			continue
		}
		markets = append(markets, m)
	}
	return markets
}

func mapMarket(venue string, r wireMarket, fetchedAt time.Time) (domain.NormalizedMarket, bool) {
	if r.ID == "" || r.Title == "" {
		return domain.NormalizedMarket{}, false
	}

	yes, err := r.YesPrice.Float64()
	if err != nil || yes < 0 || yes > 1 {
		return domain.NormalizedMarket{}, false
	}
	no, err := r.NoPrice.Float64()
	if err != nil || no < 0 || no > 1 {
		// sin precio NO explícito asumimos el complemento
		no = 1 - yes
	}

	volume, _ := r.Volume.Float64()
	liquidity, _ := r.Liquidity.Float64()

	m := domain.NormalizedMarket{
		Venue:     venue,
		ID:        r.ID,
		Title:     r.Title,
		YesPrice:  yes,
		NoPrice:   no,
		Volume:    volume,
		Liquidity: liquidity,
		Status:    mapStatus(r.Status),
		Outcome:   r.Outcome,
		FetchedAt: fetchedAt,
	}

	if r.CloseTime != "" {
		// las venues usan varios formatos; intentamos los más comunes
		for _, layout := range []string{
			time.RFC3339,
			"2006-01-02T15:04:05.000Z",
			"2006-01-02T15:04:05Z",
			"2006-01-02",
		} {
			if t, err := time.Parse(layout, r.CloseTime); err == nil {
				m.CloseTime = t.UTC()
				break
			}
		}
	}

	return m, true
}

// mapStatus tolera las variantes de cada venue; lo desconocido cuenta
// como abierto para no descartar mercados operables.
func mapStatus(s string) domain.MarketStatus {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "closed", "inactive", "finalized":
		return domain.StatusClosed
	case "resolved", "settled":
		return domain.StatusResolved
	default:
		return domain.StatusOpen
	}
}
