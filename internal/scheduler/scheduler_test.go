package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/oraculo/internal/adapters/venues"
	"github.com/alejandrodnm/oraculo/internal/arbitrage"
	"github.com/alejandrodnm/oraculo/internal/cache"
	"github.com/alejandrodnm/oraculo/internal/calibration"
	"github.com/alejandrodnm/oraculo/internal/consensus"
	"github.com/alejandrodnm/oraculo/internal/decision"
	"github.com/alejandrodnm/oraculo/internal/domain"
	"github.com/alejandrodnm/oraculo/internal/matching"
	"github.com/alejandrodnm/oraculo/internal/ports"
)

// mockState implementa ports.StateStore en memoria.
type mockState struct {
	state     domain.SchedulerState
	snapshots []domain.OraclePrice
	saves     int
	saveErr   error
}

func (m *mockState) LoadState(_ context.Context) (domain.SchedulerState, error) {
	return m.state, nil
}

func (m *mockState) SaveState(_ context.Context, st domain.SchedulerState) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	m.state = st
	m.saves++
	return nil
}

func (m *mockState) SavePriceSnapshot(_ context.Context, p domain.OraclePrice) error {
	m.snapshots = append(m.snapshots, p)
	return nil
}

// mockAudit implementa ports.AuditSink capturando lo registrado.
type mockAudit struct {
	decisions  []domain.Decision
	heartbeats []domain.HeartbeatSummary
	hbErr      error
}

func (m *mockAudit) LogDecision(_ context.Context, d domain.Decision) error {
	m.decisions = append(m.decisions, d)
	return nil
}

func (m *mockAudit) LogHeartbeat(_ context.Context, hb domain.HeartbeatSummary) error {
	if m.hbErr != nil {
		return m.hbErr
	}
	m.heartbeats = append(m.heartbeats, hb)
	return nil
}

// mockWhale implementa ports.WhaleProvider con señal fija.
type mockWhale struct {
	signal *domain.WhaleSignal
	calls  int
}

func (m *mockWhale) FetchWhaleActivity(_ context.Context, topic string) (*domain.WhaleSignal, error) {
	m.calls++
	if m.signal == nil {
		return nil, nil
	}
	sig := *m.signal
	sig.Topic = topic
	return &sig, nil
}

type mockSentiment struct{ err error }

func (m *mockSentiment) FetchSentiment(_ context.Context, topic string) (*domain.SentimentSignal, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.SentimentSignal{Topic: topic, Tone: domain.SentimentBullish}, nil
}

func newTestScheduler(t *testing.T, providers []ports.VenueProvider, state *mockState, audit *mockAudit) *Scheduler {
	t.Helper()

	scorer := matching.NewScorer(matching.NewTable(), matching.DefaultConfig())
	cfg := DefaultConfig()
	cfg.Assets = nil // sin oráculo en los tests base

	deps := Deps{
		Venues:     providers,
		Scorer:     scorer,
		Detector:   arbitrage.New(arbitrage.DefaultConfig(), scorer),
		Aggregator: consensus.New(consensus.DefaultConfig()),
		Engine:     decision.New(decision.DefaultConfig()),
		Ledger:     calibration.New(calibration.DefaultConfig(), nil),
		State:      state,
		Audit:      audit,
		Cache:      cache.NewMarkets(30 * time.Second),
	}
	return New(cfg, deps)
}

func fixtureProviders() []ports.VenueProvider {
	var providers []ports.VenueProvider
	for _, p := range venues.DryRunProviders() {
		providers = append(providers, p)
	}
	return providers
}

func TestRunCycle_EndToEnd(t *testing.T) {
	state := &mockState{}
	audit := &mockAudit{}
	s := newTestScheduler(t, fixtureProviders(), state, audit)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	hb := s.RunCycle(context.Background())

	assert.Equal(t, 2, hb.VenuesOK)
	assert.Equal(t, 0, hb.VenuesFailed)
	assert.GreaterOrEqual(t, hb.Opportunities, 1, "el cruce BTC 0.62/0.68 debe detectarse")
	assert.GreaterOrEqual(t, hb.Decisions, 1)
	assert.Empty(t, hb.Errors)

	// la decisión del par BTC llega al audit sink con sus señales
	require.NotEmpty(t, audit.decisions)
	found := false
	for _, d := range audit.decisions {
		for _, sig := range d.Signals {
			if sig.Name == "arbitrage" {
				found = true
			}
		}
	}
	assert.True(t, found, "al menos una decisión incluye la señal de arbitraje")

	require.Len(t, audit.heartbeats, 1)
	assert.Equal(t, int64(1), state.state.LifetimeCycles)
	assert.Equal(t, int64(1), state.state.LifetimeScans)
	assert.True(t, state.state.LastScan.Equal(base))
}

func TestRunCycle_Idempotent(t *testing.T) {
	state := &mockState{}
	audit := &mockAudit{}
	s := newTestScheduler(t, fixtureProviders(), state, audit)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	s.RunCycle(context.Background())
	// mismo instante: ninguna tarea venció, los contadores no se duplican
	s.RunCycle(context.Background())

	assert.Equal(t, int64(2), state.state.LifetimeCycles)
	assert.Equal(t, int64(1), state.state.LifetimeScans, "el segundo ciclo no reescanea")
	assert.Len(t, audit.heartbeats, 2, "el heartbeat se audita siempre")
	assert.Equal(t, 0, audit.heartbeats[1].VenuesOK, "sin scan no hay fan-out")
}

func TestRunCycle_ScanDueAgainAfterInterval(t *testing.T) {
	state := &mockState{}
	audit := &mockAudit{}
	s := newTestScheduler(t, fixtureProviders(), state, audit)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	s.RunCycle(context.Background())
	now = base.Add(5 * time.Minute)
	s.RunCycle(context.Background())

	assert.Equal(t, int64(2), state.state.LifetimeScans)
	assert.True(t, state.state.LastScan.Equal(now))
}

func TestRunCycle_VenueFailureDegradesCoverage(t *testing.T) {
	providers := fixtureProviders()
	providers = append(providers, venues.NewFailingProvider("venue-z", errors.New("503")))

	state := &mockState{}
	audit := &mockAudit{}
	s := newTestScheduler(t, providers, state, audit)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	hb := s.RunCycle(context.Background())

	assert.Equal(t, 2, hb.VenuesOK)
	assert.Equal(t, 1, hb.VenuesFailed)
	assert.GreaterOrEqual(t, hb.Opportunities, 1, "la venue caída no bloquea el scan")
	assert.Empty(t, hb.Errors)
}

func TestRunCycle_AllVenuesDown(t *testing.T) {
	providers := []ports.VenueProvider{
		venues.NewFailingProvider("venue-x", errors.New("down")),
		venues.NewFailingProvider("venue-y", errors.New("down")),
	}

	state := &mockState{}
	audit := &mockAudit{}
	s := newTestScheduler(t, providers, state, audit)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	hb := s.RunCycle(context.Background())

	assert.Equal(t, 0, hb.VenuesOK)
	assert.Equal(t, 2, hb.VenuesFailed)
	require.Len(t, hb.Errors, 1)
	assert.Contains(t, hb.Errors[0], "scan")
	require.Len(t, audit.heartbeats, 1, "el ciclo termina y se audita pese al fallo")
}

func TestRunCycle_WhaleSignalFeedsNextScan(t *testing.T) {
	state := &mockState{}
	audit := &mockAudit{}
	s := newTestScheduler(t, fixtureProviders(), state, audit)

	whale := &mockWhale{signal: &domain.WhaleSignal{TradeSizeUSD: 50000, WalletAccuracy: 0.8}}
	s.deps.Whale = whale

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	now := base
	s.now = func() time.Time { return now }

	// primer ciclo: el scan corre antes que el chequeo whale, las decisiones
	// todavía no ven la señal
	s.RunCycle(context.Background())
	require.Positive(t, whale.calls, "el chequeo whale corre sobre los topics del scan")

	// segundo scan: las señales cacheadas entran en las decisiones
	now = base.Add(5 * time.Minute)
	audit.decisions = nil
	s.RunCycle(context.Background())

	found := false
	for _, d := range audit.decisions {
		for _, sig := range d.Signals {
			if sig.Name == "whale" {
				found = true
			}
		}
	}
	assert.True(t, found, "la señal whale cacheada participa en el siguiente scan")
}

func TestRunCycle_SentimentFailureIsWarning(t *testing.T) {
	state := &mockState{}
	audit := &mockAudit{}
	s := newTestScheduler(t, fixtureProviders(), state, audit)
	s.deps.Sentiment = &mockSentiment{err: errors.New("feed down")}
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	hb := s.RunCycle(context.Background())
	assert.Empty(t, hb.Errors, "una señal caída no es un error de ciclo")

	require.NotEmpty(t, audit.decisions)
	foundWarning := false
	for _, d := range audit.decisions {
		for _, w := range d.Warnings {
			if w == "sentiment source failed: feed down" {
				foundWarning = true
			}
		}
	}
	assert.True(t, foundWarning)
}

func TestRunCycle_ActionableDecisionsRecordedInLedger(t *testing.T) {
	state := &mockState{}
	audit := &mockAudit{}
	s := newTestScheduler(t, fixtureProviders(), state, audit)
	s.deps.Sentiment = &mockSentiment{}
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	hb := s.RunCycle(context.Background())
	actionable := hb.Executed + hb.Watched
	require.Positive(t, actionable, "el cruce BTC con sentimiento bullish debe ser accionable")

	summary := s.deps.Ledger.Aggregate()
	assert.Equal(t, actionable, summary.Total, "cada decisión accionable queda como predicción")
}

func TestRunCycle_CalibrationCheckClosesTheLoop(t *testing.T) {
	outcome := true
	closeT := time.Now().UTC().Add(45 * 24 * time.Hour)
	providers := []ports.VenueProvider{
		venues.NewFixtureProvider("venue-x", []domain.NormalizedMarket{
			{
				Venue: "venue-x", ID: "btc-100k", Title: "Will Bitcoin hit $100k by Dec 2024?",
				YesPrice: 0.62, NoPrice: 0.38, Volume: 50000, Liquidity: 24000,
				CloseTime: closeT, Status: domain.StatusOpen,
			},
			{
				Venue: "venue-x", ID: "btc-100k-settled", Title: "Will Bitcoin hit $100k by Dec 2024?",
				YesPrice: 1, NoPrice: 0, Volume: 40000,
				Status: domain.StatusResolved, Outcome: &outcome,
			},
		}),
		venues.NewFixtureProvider("venue-y", []domain.NormalizedMarket{
			{
				Venue: "venue-y", ID: "btc-eoy", Title: "BTC 100K EOY?",
				YesPrice: 0.68, NoPrice: 0.32, Volume: 30000, Liquidity: 15000,
				CloseTime: closeT, Status: domain.StatusOpen,
			},
		}),
	}

	state := &mockState{}
	audit := &mockAudit{}
	s := newTestScheduler(t, providers, state, audit)

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return base }

	hb := s.RunCycle(context.Background())
	require.Positive(t, hb.Executed+hb.Watched, "el cruce BTC debe producir una predicción")

	// el mercado ya resuelto del mismo scan cierra la predicción recién
	// apuntada y las métricas del ledger se mueven
	summary := s.deps.Ledger.Aggregate()
	assert.Equal(t, 1, summary.Resolved)
	assert.InDelta(t, 1.0, summary.Accuracy, 1e-9, "consenso YES con outcome true es acierto")
	assert.Empty(t, s.deps.Ledger.Pending())
	assert.True(t, state.state.LastCalibrationCheck.Equal(base))

	// mismo instante: el chequeo no venció y no hay nada que re-resolver
	s.RunCycle(context.Background())
	assert.Equal(t, 1, s.deps.Ledger.Aggregate().Resolved)
}

func TestRunCycle_MarketsPastCloseExcluded(t *testing.T) {
	expired := time.Now().UTC().Add(-time.Hour)
	closeT := time.Now().UTC().Add(45 * 24 * time.Hour)
	providers := []ports.VenueProvider{
		venues.NewFixtureProvider("venue-x", []domain.NormalizedMarket{
			{
				Venue: "venue-x", ID: "btc-100k", Title: "Will Bitcoin hit $100k by Dec 2024?",
				YesPrice: 0.62, NoPrice: 0.38, Volume: 50000, Liquidity: 24000,
				CloseTime: closeT, Status: domain.StatusOpen,
			},
			{
				Venue: "venue-x", ID: "eth-5k", Title: "Will Ethereum hit $5k by March?",
				YesPrice: 0.30, NoPrice: 0.70, Volume: 20000, Liquidity: 10000,
				CloseTime: expired, Status: domain.StatusOpen,
			},
		}),
		venues.NewFixtureProvider("venue-y", []domain.NormalizedMarket{
			{
				Venue: "venue-y", ID: "btc-eoy", Title: "BTC 100K EOY?",
				YesPrice: 0.68, NoPrice: 0.32, Volume: 30000, Liquidity: 15000,
				CloseTime: closeT, Status: domain.StatusOpen,
			},
			{
				Venue: "venue-y", ID: "eth-5k", Title: "ETH 5K by March?",
				YesPrice: 0.40, NoPrice: 0.60, Volume: 20000, Liquidity: 10000,
				CloseTime: expired, Status: domain.StatusOpen,
			},
		}),
	}

	state := &mockState{}
	audit := &mockAudit{}
	s := newTestScheduler(t, providers, state, audit)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	hb := s.RunCycle(context.Background())

	require.Positive(t, hb.Decisions, "el par BTC vigente sigue operable")
	for _, d := range audit.decisions {
		assert.NotContains(t, strings.ToLower(d.Topic), "eth", "un mercado pasado de cierre no es operable")
	}
}

func TestDecide_SameTitleClustersKeepOwnOpportunity(t *testing.T) {
	state := &mockState{}
	audit := &mockAudit{}
	s := newTestScheduler(t, nil, state, audit)

	mk := func(venue, id string, yes float64) domain.NormalizedMarket {
		return domain.NormalizedMarket{
			Venue: venue, ID: id, Title: "Will the measure pass?",
			YesPrice: yes, NoPrice: 1 - yes, Volume: 20000, Liquidity: 10000,
			Status: domain.StatusOpen,
		}
	}
	clusters := []domain.MarketCluster{
		{Members: []domain.ClusterMember{
			{Market: mk("venue-a", "m1", 0.30), Score: 1.0},
			{Market: mk("venue-b", "m2", 0.40), Score: 1.0},
		}},
		{Members: []domain.ClusterMember{
			{Market: mk("venue-c", "m3", 0.30), Score: 1.0},
			{Market: mk("venue-d", "m4", 0.34), Score: 1.0},
		}},
	}

	opps := s.deps.Detector.FromClusters(clusters)
	require.Len(t, opps, 2)
	assert.NotEqual(t, opps[0].ClusterKey, opps[1].ClusterKey)

	oppByKey := make(map[string]*domain.ArbitrageOpportunity, len(opps))
	for i := range opps {
		oppByKey[opps[i].ClusterKey] = &opps[i]
	}

	decisions := s.decide(context.Background(), clusters, oppByKey)
	require.Len(t, decisions, 2)

	// cada decisión hereda el spread de SU cluster, no el del homónimo
	var scores []float64
	for _, d := range decisions {
		for _, sig := range d.Signals {
			if sig.Name == "arbitrage" {
				scores = append(scores, sig.Score)
			}
		}
	}
	require.Len(t, scores, 2)
	assert.NotEqual(t, scores[0], scores[1])
}

func TestRunCycle_StatePersistenceFailureTolerated(t *testing.T) {
	state := &mockState{saveErr: errors.New("disk full")}
	audit := &mockAudit{}
	s := newTestScheduler(t, fixtureProviders(), state, audit)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	hb := s.RunCycle(context.Background())
	assert.GreaterOrEqual(t, hb.Opportunities, 1, "el fallo de persistencia no aborta el ciclo")
	assert.Equal(t, int64(1), s.State().LifetimeCycles, "el estado en memoria sigue avanzando")
}

func TestRunCycle_HeartbeatAuditFailureTolerated(t *testing.T) {
	state := &mockState{}
	audit := &mockAudit{hbErr: errors.New("sink down")}
	s := newTestScheduler(t, fixtureProviders(), state, audit)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

	hb := s.RunCycle(context.Background())
	assert.GreaterOrEqual(t, hb.Decisions, 1)
}

func TestRun_OnceExecutesSingleCycle(t *testing.T) {
	state := &mockState{}
	audit := &mockAudit{}
	s := newTestScheduler(t, fixtureProviders(), state, audit)
	s.cfg.Once = true

	require.NoError(t, s.Run(context.Background()))
	assert.Equal(t, int64(1), state.state.LifetimeCycles)
}

func TestRun_LoadsPersistedState(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	state := &mockState{state: domain.SchedulerState{
		LastScan:       base,
		LifetimeCycles: 41,
		LifetimeScans:  40,
	}}
	audit := &mockAudit{}
	s := newTestScheduler(t, fixtureProviders(), state, audit)
	s.cfg.Once = true
	s.now = func() time.Time { return base.Add(time.Minute) }

	require.NoError(t, s.Run(context.Background()))

	// el scan de hace un minuto no venció: solo avanza el contador de ciclos
	assert.Equal(t, int64(42), state.state.LifetimeCycles)
	assert.Equal(t, int64(40), state.state.LifetimeScans)
}
