package scheduler

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/oraculo/internal/domain"
	"github.com/alejandrodnm/oraculo/internal/ports"
)

type venueResult struct {
	venue   string
	markets []domain.NormalizedMarket
	err     error
}

// fetchAll consulta todas las venues en paralelo, cada una con su propio
// timeout. Devuelve los mercados de las venues que respondieron más el número
// de venues OK y caídas: una venue lenta degrada cobertura, nunca bloquea
// el ciclo.
func (s *Scheduler) fetchAll(ctx context.Context, query string) ([]domain.NormalizedMarket, int, int) {
	results := make(chan venueResult, len(s.deps.Venues))
	var wg sync.WaitGroup

	for _, v := range s.deps.Venues {
		key := v.Venue() + ":" + query
		if s.deps.Cache != nil {
			if cached, ok := s.deps.Cache.Get(key); ok {
				results <- venueResult{venue: v.Venue(), markets: cached}
				continue
			}
		}

		wg.Add(1)
		go func(v ports.VenueProvider, key string) {
			defer wg.Done()
			vctx, cancel := context.WithTimeout(ctx, s.cfg.VenueTimeout)
			defer cancel()

			markets, err := v.FetchMarkets(vctx, query)
			if err != nil {
				results <- venueResult{venue: v.Venue(), err: err}
				return
			}
			if s.deps.Cache != nil {
				s.deps.Cache.Put(key, markets)
			}
			results <- venueResult{venue: v.Venue(), markets: markets}
		}(v, key)
	}

	wg.Wait()
	close(results)

	var all []domain.NormalizedMarket
	var ok, failed int
	for r := range results {
		if r.err != nil {
			failed++
			slog.Warn("venue absent this cycle", "venue", r.venue, "error", r.err)
			continue
		}
		ok++
		all = append(all, r.markets...)
	}
	return all, ok, failed
}

// gatherSignals consulta sentimiento y social para un topic, tolerando
// fallos: una señal caída se excluye con warning, nunca aborta la decisión.
func (s *Scheduler) gatherSignals(ctx context.Context, in *domain.DecisionInput) {
	if s.deps.Sentiment != nil {
		sig, err := s.deps.Sentiment.FetchSentiment(ctx, in.Topic)
		if err != nil {
			in.Warnings = append(in.Warnings, "sentiment source failed: "+err.Error())
		} else {
			in.Sentiment = sig
		}
	}
	if s.deps.Social != nil {
		sig, err := s.deps.Social.FetchSocial(ctx, in.Topic)
		if err != nil {
			in.Warnings = append(in.Warnings, "social source failed: "+err.Error())
		} else {
			in.Social = sig
		}
	}
	if sig, ok := s.whaleSignals[in.Topic]; ok {
		in.Whale = sig
	}
}
