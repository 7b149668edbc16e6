package arbitrage_test

import (
	"testing"

	"github.com/alejandrodnm/oraculo/internal/arbitrage"
	"github.com/alejandrodnm/oraculo/internal/domain"
	"github.com/alejandrodnm/oraculo/internal/matching"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newDetector(cfg arbitrage.Config) *arbitrage.Detector {
	scorer := matching.NewScorer(matching.NewTable(), matching.DefaultConfig())
	return arbitrage.New(cfg, scorer)
}

func btcMarkets() []domain.NormalizedMarket {
	return []domain.NormalizedMarket{
		{Venue: "venue-x", ID: "m1", Title: "Will Bitcoin hit $100k by Dec 2024?", YesPrice: 0.62, Volume: 50_000, Liquidity: 20_000, Status: domain.StatusOpen},
		{Venue: "venue-y", ID: "m2", Title: "BTC 100K EOY?", YesPrice: 0.68, Volume: 30_000, Liquidity: 10_000, Status: domain.StatusOpen},
	}
}

func TestDetect_EndToEnd_BTCScenario(t *testing.T) {
	d := newDetector(arbitrage.DefaultConfig())

	opps := d.Detect(btcMarkets())

	require.Len(t, opps, 1, "los dos títulos deben agruparse y producir una oportunidad")
	opp := opps[0]

	// spread ≈ 0.06 con fees a cero
	assert.InDelta(t, 0.06, opp.Spread, 1e-9)
	assert.InDelta(t, 6.0, opp.SpreadPct, 1e-9)

	// comprar YES barato en venue-x, NO caro en venue-y
	assert.Equal(t, "venue-x", opp.Cheap.Venue)
	assert.Equal(t, "venue-y", opp.Dear.Venue)
	assert.Contains(t, opp.Strategies, domain.StrategyHedge)
	assert.Contains(t, opp.Strategies, domain.StrategyDirectional)

	assert.Greater(t, opp.MatchConfidence, 0.6)
	assert.LessOrEqual(t, opp.MatchConfidence, 1.0)
}

func TestDetect_SpreadBelowMinimum(t *testing.T) {
	markets := btcMarkets()
	markets[1].YesPrice = 0.64 // spread 0.02 < 0.03

	d := newDetector(arbitrage.DefaultConfig())
	assert.Empty(t, d.Detect(markets), "spread bajo el mínimo nunca se reporta")
}

func TestDetect_FeesEatTheSpread(t *testing.T) {
	cfg := arbitrage.DefaultConfig()
	cfg.VenueFees = map[string]float64{"venue-x": 0.00, "venue-y": 0.04}

	// fee-adjusted: 0.62 vs 0.64 → spread 0.02 < 0.03
	d := newDetector(cfg)
	assert.Empty(t, d.Detect(btcMarkets()))
}

func TestDetect_VolumeBelowMinimumOnOneLeg(t *testing.T) {
	markets := btcMarkets()
	markets[1].Volume = 500 // bajo el mínimo de $1,000

	d := newDetector(arbitrage.DefaultConfig())
	assert.Empty(t, d.Detect(markets), "el volumen mínimo aplica a ambas patas")
}

func TestDetect_SingleVenueCluster(t *testing.T) {
	d := newDetector(arbitrage.DefaultConfig())
	opps := d.Detect([]domain.NormalizedMarket{btcMarkets()[0]})
	assert.Empty(t, opps, "sin segundo venue no hay arbitraje")
}

func TestDetect_RankedAndCapped(t *testing.T) {
	cfg := arbitrage.DefaultConfig()
	cfg.MaxOpportunities = 1

	markets := append(btcMarkets(),
		domain.NormalizedMarket{Venue: "venue-x", ID: "m3", Title: "Fed rate cut in March?", YesPrice: 0.40, Volume: 5_000, Status: domain.StatusOpen},
		domain.NormalizedMarket{Venue: "venue-y", ID: "m4", Title: "Fed rate cut in March?", YesPrice: 0.48, Volume: 5_000, Status: domain.StatusOpen},
	)

	d := newDetector(cfg)
	opps := d.Detect(markets)

	require.Len(t, opps, 1, "el output se acota a MaxOpportunities")
	// BTC: 0.06 × 30k = 1800; Fed: 0.08 × 5k = 400 → BTC gana el ranking
	assert.Contains(t, opps[0].Topic, "Bitcoin")
}

func TestFromClusters_ConfidenceInheritsWeakestMatch(t *testing.T) {
	cluster := domain.MarketCluster{Members: []domain.ClusterMember{
		{Market: domain.NormalizedMarket{Venue: "venue-x", ID: "m1", Title: "t", YesPrice: 0.50, Volume: 10_000}, Score: 1.0},
		{Market: domain.NormalizedMarket{Venue: "venue-y", ID: "m2", Title: "t2", YesPrice: 0.60, Volume: 10_000}, Score: 0.61},
	}}

	d := newDetector(arbitrage.DefaultConfig())
	opps := d.FromClusters([]domain.MarketCluster{cluster})

	require.Len(t, opps, 1)
	assert.InDelta(t, 0.61, opps[0].MatchConfidence, 1e-9,
		"un match justo sobre el umbral llega descontado, no como certeza")
	assert.Equal(t, "venue-x:m1", opps[0].ClusterKey,
		"la oportunidad se identifica por la Key del representante")
}

func TestFromClusters_InvalidClusterSkipped(t *testing.T) {
	bad := domain.MarketCluster{Members: []domain.ClusterMember{
		{Market: domain.NormalizedMarket{Venue: "venue-x", ID: "m1", YesPrice: 0.40, Volume: 10_000}, Score: 1.0},
		{Market: domain.NormalizedMarket{Venue: "venue-x", ID: "m2", YesPrice: 0.60, Volume: 10_000}, Score: 0.9},
	}}

	d := newDetector(arbitrage.DefaultConfig())
	assert.Empty(t, d.FromClusters([]domain.MarketCluster{bad}),
		"un cluster inválido se loggea y se salta, nunca revienta")
}
