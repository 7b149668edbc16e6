package matching

import (
	"sort"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

// cluster.go — agrupación greedy de mercados equivalentes entre venues.
//
// Cada mercado se adjunta al primer cluster cuyo representante supera el
// umbral contra él (first-fit). El orden de entrada afecta al resultado, así
// que los mercados se ordenan por venue+id antes de agrupar: el output es
// determinista entre fetches.

// Cluster agrupa los mercados en clusters de eventos equivalentes usando el
// scorer y el umbral dados. Dos mercados del mismo venue nunca comparten
// cluster, aunque su similitud supere el umbral.
func Cluster(markets []domain.NormalizedMarket, scorer *Scorer, threshold float64) []domain.MarketCluster {
	sorted := make([]domain.NormalizedMarket, len(markets))
	copy(sorted, markets)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Key() < sorted[j].Key()
	})

	var clusters []domain.MarketCluster
	for _, m := range sorted {
		attached := false
		for i := range clusters {
			if clusters[i].HasVenue(m.Venue) {
				continue
			}
			score := scorer.Score(clusters[i].Representative().Title, m.Title)
			if score >= threshold {
				clusters[i].Members = append(clusters[i].Members, domain.ClusterMember{
					Market: m,
					Score:  score,
				})
				attached = true
				break
			}
		}
		if !attached {
			clusters = append(clusters, domain.MarketCluster{
				Members: []domain.ClusterMember{{Market: m, Score: 1.0}},
			})
		}
	}
	return clusters
}
