package domain

import "fmt"

// ClusterMember es un mercado dentro de un cluster, con su score de similitud
// pairwise contra el mercado representante.
type ClusterMember struct {
	Market NormalizedMarket
	Score  float64
}

// MarketCluster agrupa mercados de venues DISTINTOS que el matcher juzgó
// equivalentes. El primer miembro es el representante (score 1.0); la
// membresía solo es transitiva a través de matches directos contra él.
type MarketCluster struct {
	Members []ClusterMember
}

// Representative devuelve el mercado representante del cluster.
func (c MarketCluster) Representative() NormalizedMarket {
	return c.Members[0].Market
}

// VenueCount devuelve el número de venues distintos en el cluster.
func (c MarketCluster) VenueCount() int {
	seen := make(map[string]struct{}, len(c.Members))
	for _, m := range c.Members {
		seen[m.Market.Venue] = struct{}{}
	}
	return len(seen)
}

// HasVenue devuelve true si algún miembro pertenece al venue dado.
func (c MarketCluster) HasVenue(venue string) bool {
	for _, m := range c.Members {
		if m.Market.Venue == venue {
			return true
		}
	}
	return false
}

// MinScore devuelve el score pairwise más débil del cluster. Es la confianza
// que heredan las oportunidades derivadas: un match justo por encima del
// umbral nunca debe tratarse como certeza aguas abajo.
func (c MarketCluster) MinScore() float64 {
	if len(c.Members) == 0 {
		return 0
	}
	min := c.Members[0].Score
	for _, m := range c.Members[1:] {
		if m.Score < min {
			min = m.Score
		}
	}
	return min
}

// Validate comprueba los invariantes del cluster: no vacío y sin dos
// mercados del mismo venue.
func (c MarketCluster) Validate() error {
	if len(c.Members) == 0 {
		return fmt.Errorf("%w: empty cluster", ErrInvariant)
	}
	seen := make(map[string]string, len(c.Members))
	for _, m := range c.Members {
		if prev, ok := seen[m.Market.Venue]; ok {
			return fmt.Errorf("%w: venue %s appears twice in cluster (%s, %s)",
				ErrInvariant, m.Market.Venue, prev, m.Market.ID)
		}
		seen[m.Market.Venue] = m.Market.ID
	}
	return nil
}
