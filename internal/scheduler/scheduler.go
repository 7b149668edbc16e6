// Package scheduler implementa el heartbeat del proceso: un único loop que
// cada tick ejecuta las tareas periódicas vencidas (snapshot de precios,
// scan de arbitraje y decisiones, chequeo de whales) y persiste el estado.
// Ninguna tarea puede tumbar el loop: cada una degrada a "sin resultado
// este ciclo" y el ciclo continúa.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/oraculo/internal/arbitrage"
	"github.com/alejandrodnm/oraculo/internal/cache"
	"github.com/alejandrodnm/oraculo/internal/calibration"
	"github.com/alejandrodnm/oraculo/internal/consensus"
	"github.com/alejandrodnm/oraculo/internal/decision"
	"github.com/alejandrodnm/oraculo/internal/domain"
	"github.com/alejandrodnm/oraculo/internal/matching"
	"github.com/alejandrodnm/oraculo/internal/oracle"
	"github.com/alejandrodnm/oraculo/internal/ports"
)

// Config contiene los intervalos del heartbeat.
type Config struct {
	// Tick es el periodo del loop.
	Tick time.Duration
	// Intervalos mínimos entre ejecuciones de cada tarea.
	SnapshotEvery    time.Duration
	ScanEvery        time.Duration
	WhaleEvery       time.Duration
	CalibrationEvery time.Duration
	// VenueTimeout acota cada consulta concurrente a una venue.
	VenueTimeout time.Duration
	// ClusterThreshold es el umbral de similitud para agrupar mercados.
	ClusterThreshold float64
	// Query filtra los mercados por ciclo; vacía trae todos.
	Query string
	// Assets son los activos del snapshot de precios.
	Assets []string
	// Once ejecuta un único ciclo y termina.
	Once bool
}

// DefaultConfig devuelve los intervalos por defecto.
func DefaultConfig() Config {
	return Config{
		Tick:             5 * time.Minute,
		SnapshotEvery:    5 * time.Minute,
		ScanEvery:        5 * time.Minute,
		WhaleEvery:       15 * time.Minute,
		CalibrationEvery: 30 * time.Minute,
		VenueTimeout:     5 * time.Second,
		ClusterThreshold: 0.60,
		Assets:           []string{"BTC"},
	}
}

// Deps agrupa las dependencias inyectadas del scheduler. Los campos marcados
// como opcionales pueden ser nil y desactivan la funcionalidad asociada.
type Deps struct {
	Venues     []ports.VenueProvider
	Scorer     *matching.Scorer
	Detector   *arbitrage.Detector
	Aggregator *consensus.Aggregator
	Engine     *decision.Engine
	Ledger     *calibration.Ledger

	Oracle    *oracle.Resolver        // opcional: sin él no hay snapshots
	Sentiment ports.SentimentProvider // opcional
	Whale     ports.WhaleProvider     // opcional
	Social    ports.SocialProvider    // opcional

	State    ports.StateStore // opcional: sin él el estado vive solo en memoria
	Audit    ports.AuditSink  // opcional
	Notifier ports.Notifier   // opcional
	Cache    *cache.Markets   // opcional
}

// Scheduler es el loop principal. No es seguro para uso concurrente: el
// estado mutable lo escribe únicamente el hilo del loop.
type Scheduler struct {
	cfg  Config
	deps Deps

	state        domain.SchedulerState
	whaleSignals map[string]*domain.WhaleSignal
	lastTopics   []string
	lastResolved []domain.NormalizedMarket

	now func() time.Time
}

// New crea el scheduler con las dependencias dadas.
func New(cfg Config, deps Deps) *Scheduler {
	return &Scheduler{
		cfg:          cfg,
		deps:         deps,
		whaleSignals: make(map[string]*domain.WhaleSignal),
		now:          time.Now,
	}
}

// Run carga el estado persistido y ejecuta el loop hasta que el contexto se
// cancele. El primer ciclo corre inmediatamente; con cfg.Once solo ese.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.deps.State != nil {
		st, err := s.deps.State.LoadState(ctx)
		if err != nil {
			slog.Warn("failed to load scheduler state, starting fresh", "error", err)
		} else {
			s.state = st
		}
	}

	slog.Info("scheduler starting",
		"tick", s.cfg.Tick,
		"venues", len(s.deps.Venues),
		"once", s.cfg.Once,
		"lifetime_cycles", s.state.LifetimeCycles,
	)

	s.RunCycle(ctx)
	if s.cfg.Once {
		return nil
	}

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return nil
		case <-ticker.C:
			s.RunCycle(ctx)
		}
	}
}

// RunCycle ejecuta un ciclo completo del heartbeat y devuelve su resumen.
// Las tareas corren en orden fijo y cada una solo si su intervalo mínimo
// venció; un fallo degrada esa tarea, nunca aborta el ciclo.
func (s *Scheduler) RunCycle(ctx context.Context) domain.HeartbeatSummary {
	start := s.now()
	hb := domain.HeartbeatSummary{StartedAt: start.UTC()}
	s.state.LifetimeCycles++

	if s.due(s.state.LastSnapshot, s.cfg.SnapshotEvery) && s.deps.Oracle != nil {
		if err := s.runSnapshot(ctx); err != nil {
			hb.Errors = append(hb.Errors, "snapshot: "+err.Error())
		}
		s.state.LastSnapshot = start.UTC()
		s.saveState(ctx)
	}

	if s.due(s.state.LastScan, s.cfg.ScanEvery) {
		if err := s.runScan(ctx, &hb); err != nil {
			hb.Errors = append(hb.Errors, "scan: "+err.Error())
		}
		s.state.LastScan = start.UTC()
		s.state.LifetimeScans++
		s.saveState(ctx)
	}

	if s.due(s.state.LastWhaleScan, s.cfg.WhaleEvery) && s.deps.Whale != nil {
		if err := s.runWhaleScan(ctx); err != nil {
			hb.Errors = append(hb.Errors, "whale: "+err.Error())
		}
		s.state.LastWhaleScan = start.UTC()
		s.saveState(ctx)
	}

	if s.due(s.state.LastCalibrationCheck, s.cfg.CalibrationEvery) {
		s.runCalibrationCheck(ctx)
		s.state.LastCalibrationCheck = start.UTC()
		s.saveState(ctx)
	}

	hb.Duration = s.now().Sub(start)

	// la auditoría del ciclo se intenta siempre y su fallo se tolera
	if s.deps.Audit != nil {
		if err := s.deps.Audit.LogHeartbeat(ctx, hb); err != nil {
			slog.Warn("failed to audit heartbeat", "error", err)
		}
	}
	s.saveState(ctx)

	slog.Info("cycle complete",
		"duration", hb.Duration.Round(time.Millisecond),
		"venues_ok", hb.VenuesOK,
		"opportunities", hb.Opportunities,
		"decisions", hb.Decisions,
		"errors", len(hb.Errors),
	)
	return hb
}

// due decide si una tarea venció: nunca ejecutada, o pasó su intervalo.
func (s *Scheduler) due(last time.Time, every time.Duration) bool {
	return last.IsZero() || s.now().Sub(last) >= every
}

// runSnapshot consulta el oráculo y persiste un snapshot por activo.
func (s *Scheduler) runSnapshot(ctx context.Context) error {
	var firstErr error
	for _, asset := range s.cfg.Assets {
		price, err := s.deps.Oracle.Price(ctx, asset)
		if err != nil {
			slog.Warn("price snapshot failed", "asset", asset, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		s.state.LifetimeSnapshots++
		slog.Debug("price snapshot", "asset", asset, "price", price.Price, "confidence", price.Confidence)
		if s.deps.State != nil {
			if err := s.deps.State.SavePriceSnapshot(ctx, price); err != nil {
				slog.Warn("failed to persist price snapshot", "asset", asset, "error", err)
			}
		}
	}
	return firstErr
}

// runScan es la tarea central: fan-out a venues, clustering, detección de
// arbitraje, consenso y decisiones.
func (s *Scheduler) runScan(ctx context.Context, hb *domain.HeartbeatSummary) error {
	markets, ok, failed := s.fetchAll(ctx, s.cfg.Query)
	hb.VenuesOK = ok
	hb.VenuesFailed = failed
	if len(markets) == 0 {
		return fmt.Errorf("scheduler.runScan: no markets from any venue: %w", domain.ErrSourceUnavailable)
	}

	// Los resueltos no se agrupan pero alimentan el chequeo de calibración;
	// los abiertos cuyo cierre ya pasó tampoco son operables.
	open := markets[:0:0]
	var resolved []domain.NormalizedMarket
	for _, m := range markets {
		if m.Status == domain.StatusResolved && m.Outcome != nil {
			resolved = append(resolved, m)
			continue
		}
		if !m.IsOpen() {
			continue
		}
		if !m.CloseTime.IsZero() && m.HoursToClose() == 0 {
			continue
		}
		open = append(open, m)
	}
	s.lastResolved = resolved

	clusters := matching.Cluster(open, s.deps.Scorer, s.cfg.ClusterThreshold)
	opps := s.deps.Detector.FromClusters(clusters)
	hb.Opportunities = len(opps)
	s.state.LifetimeOpportunities += int64(len(opps))

	// Indexado por la Key del representante, no por título: dos clusters
	// pueden compartir título idéntico.
	oppByKey := make(map[string]*domain.ArbitrageOpportunity, len(opps))
	for i := range opps {
		oppByKey[opps[i].ClusterKey] = &opps[i]
	}

	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyOpportunities(ctx, opps); err != nil {
			slog.Warn("notifier error", "error", err)
		}
	}

	decisions := s.decide(ctx, clusters, oppByKey)
	hb.Decisions = len(decisions)
	s.state.LifetimeDecisions += int64(len(decisions))

	var actionable []domain.Decision
	for _, d := range decisions {
		switch d.Action {
		case domain.ActionExecute:
			hb.Executed++
			actionable = append(actionable, d)
		case domain.ActionWatch:
			hb.Watched++
			actionable = append(actionable, d)
		default:
			hb.Skipped++
		}
	}

	if s.deps.Notifier != nil && len(actionable) > 0 {
		if err := s.deps.Notifier.NotifyDecisions(ctx, actionable); err != nil {
			slog.Warn("notifier error", "error", err)
		}
	}
	return nil
}

// decide construye una decisión por cada cluster multi-venue: consenso del
// cluster, oportunidad de arbitraje si la hay y señales externas tolerantes
// a fallo. Las decisiones accionables se registran como predicciones en el
// ledger para cerrar el ciclo de calibración.
func (s *Scheduler) decide(ctx context.Context, clusters []domain.MarketCluster, oppByKey map[string]*domain.ArbitrageOpportunity) []domain.Decision {
	multiplier := s.deps.Ledger.Multiplier()

	var multi []domain.MarketCluster
	for _, c := range clusters {
		if c.VenueCount() >= 2 {
			multi = append(multi, c)
		}
	}
	results := s.deps.Aggregator.AggregateAll(multi)

	topics := make([]string, 0, len(results))
	decisions := make([]domain.Decision, 0, len(results))
	for i := range results {
		res := results[i]
		topics = append(topics, res.Topic)

		in := domain.DecisionInput{
			Topic:                 res.Topic,
			Consensus:             &results[i],
			Arbitrage:             oppByKey[multi[i].Representative().Key()],
			CalibrationMultiplier: multiplier,
		}
		s.gatherSignals(ctx, &in)

		d := s.deps.Engine.Decide(in)
		decisions = append(decisions, d)

		if s.deps.Audit != nil {
			if err := s.deps.Audit.LogDecision(ctx, d); err != nil {
				slog.Warn("failed to audit decision", "topic", d.Topic, "error", err)
			}
		}

		if d.Action == domain.ActionExecute || d.Action == domain.ActionWatch {
			s.recordPrediction(ctx, res)
		}
	}
	s.lastTopics = topics
	return decisions
}

// recordPrediction apunta en el ledger la dirección que el consenso afirma.
func (s *Scheduler) recordPrediction(ctx context.Context, res domain.ConsensusResult) {
	direction := domain.DirectionYes
	prob := res.Probability
	if res.Probability < 0.5 {
		direction = domain.DirectionNo
		prob = 1 - res.Probability
	}
	if _, err := s.deps.Ledger.Record(ctx, res.Topic, prob, direction); err != nil {
		slog.Warn("failed to record prediction", "topic", res.Topic, "error", err)
	}
}

// runWhaleScan refresca la caché de señales whale para los topics del último
// scan. Corre menos a menudo que el scan: las señales sobreviven entre ciclos.
func (s *Scheduler) runWhaleScan(ctx context.Context) error {
	var firstErr error
	for _, topic := range s.lastTopics {
		sig, err := s.deps.Whale.FetchWhaleActivity(ctx, topic)
		if err != nil {
			slog.Warn("whale check failed", "topic", topic, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if sig != nil {
			s.whaleSignals[topic] = sig
		} else {
			delete(s.whaleSignals, topic)
		}
	}
	return firstErr
}

// runCalibrationCheck cierra el loop de calibración: cruza las predicciones
// pendientes del ledger con los mercados que el último scan trajo ya
// resueltos y resuelve las que casan por topic. El multiplicador del motor
// solo se mueve a través de este camino.
func (s *Scheduler) runCalibrationCheck(ctx context.Context) {
	pending := s.deps.Ledger.Pending()
	if len(pending) == 0 || len(s.lastResolved) == 0 {
		return
	}

	closed := 0
	for _, rec := range pending {
		for _, m := range s.lastResolved {
			if s.deps.Scorer.Score(rec.Topic, m.Title) < s.cfg.ClusterThreshold {
				continue
			}
			if err := s.deps.Ledger.Resolve(ctx, rec.ID, *m.Outcome); err != nil {
				slog.Warn("failed to resolve prediction", "id", rec.ID, "topic", rec.Topic, "error", err)
			} else {
				closed++
			}
			break
		}
	}
	if closed == 0 {
		return
	}

	slog.Info("calibration check",
		"resolved", closed,
		"pending", len(pending)-closed,
		"multiplier", s.deps.Ledger.Multiplier(),
	)
	if s.deps.Notifier != nil {
		if err := s.deps.Notifier.NotifyCalibration(ctx, s.deps.Ledger.Aggregate(), s.deps.Ledger.Multiplier()); err != nil {
			slog.Warn("notifier error", "error", err)
		}
	}
}

// saveState persiste el estado; un fallo degrada a estado en memoria y el
// siguiente write exitoso recupera la durabilidad.
func (s *Scheduler) saveState(ctx context.Context) {
	if s.deps.State == nil {
		return
	}
	if err := s.deps.State.SaveState(ctx, s.state); err != nil {
		slog.Warn("failed to persist scheduler state", "error", err)
	}
}

// State devuelve una copia del estado actual del scheduler.
func (s *Scheduler) State() domain.SchedulerState {
	return s.state
}
