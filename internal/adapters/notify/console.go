// Package notify implementa el notificador de consola: oportunidades y
// decisiones en modo compacto (una línea) o tabla completa.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/oraculo/internal/domain"
)

// Console implementa ports.Notifier.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// NotifyOpportunities imprime las oportunidades en el modo configurado.
func (c *Console) NotifyOpportunities(_ context.Context, opps []domain.ArbitrageOpportunity) error {
	if len(opps) == 0 {
		fmt.Fprintf(c.out, "[%s] no arbitrage opportunities found\n", time.Now().Format("15:04:05"))
		return nil
	}

	if c.table {
		c.printOpportunityTable(opps)
	} else {
		c.printOpportunitiesCompact(opps)
	}
	return nil
}

// printOpportunitiesCompact imprime lo esencial en una línea.
func (c *Console) printOpportunitiesCompact(opps []domain.ArbitrageOpportunity) {
	now := time.Now().Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d arb", now, len(opps))

	shown := 0
	for _, opp := range opps {
		if shown >= 4 {
			break
		}
		fmt.Fprintf(&sb, " | %s %.1f%% %s→%s vol$%.0f conf%.2f",
			truncate(opp.Topic, 25), opp.SpreadPct,
			opp.Cheap.Venue, opp.Dear.Venue,
			opp.MinVolume(), opp.MatchConfidence)
		shown++
	}

	fmt.Fprintln(c.out, sb.String())
}

// printOpportunityTable imprime la tabla completa ordenada por score.
func (c *Console) printOpportunityTable(opps []domain.ArbitrageOpportunity) {
	fmt.Fprintf(c.out, "\n[%s] %d arbitrage opportunities\n", time.Now().Format("15:04:05"), len(opps))

	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Topic", "Spread", "Cheap", "Dear", "MinVol", "Conf", "Strategies")

	for i, opp := range opps {
		table.Append(
			fmt.Sprintf("%d", i+1),
			truncate(opp.Topic, 40),
			fmt.Sprintf("%.1f%%", opp.SpreadPct),
			fmt.Sprintf("%s@%.2f", opp.Cheap.Venue, opp.Cheap.FeeAdjusted),
			fmt.Sprintf("%s@%.2f", opp.Dear.Venue, opp.Dear.FeeAdjusted),
			fmt.Sprintf("$%.0f", opp.MinVolume()),
			fmt.Sprintf("%.2f", opp.MatchConfidence),
			strategiesLabel(opp.Strategies),
		)
	}

	table.Render()
	fmt.Fprintln(c.out, "  Spread = |dear - cheap| tras ajustar fees | Conf = score del par más débil del cluster")
}

// NotifyDecisions imprime las decisiones accionables del ciclo.
func (c *Console) NotifyDecisions(_ context.Context, decisions []domain.Decision) error {
	if len(decisions) == 0 {
		return nil
	}

	if !c.table {
		now := time.Now().Format("15:04:05")
		var sb strings.Builder
		fmt.Fprintf(&sb, "[%s] %d decisions", now, len(decisions))
		for i, d := range decisions {
			if i >= 4 {
				break
			}
			fmt.Fprintf(&sb, " | %s %s conf%.1f", d.Action, truncate(d.Topic, 25), d.Confidence)
		}
		fmt.Fprintln(c.out, sb.String())
		return nil
	}

	fmt.Fprintf(c.out, "\n[%s] %d decisions\n", time.Now().Format("15:04:05"), len(decisions))

	table := tablewriter.NewWriter(c.out)
	table.Header("Action", "Topic", "Raw", "Conf", "Signals", "Warnings")
	for _, d := range decisions {
		table.Append(
			string(d.Action),
			truncate(d.Topic, 40),
			fmt.Sprintf("%.1f", d.RawScore),
			fmt.Sprintf("%.1f", d.Confidence),
			signalsLabel(d.Signals),
			fmt.Sprintf("%d", len(d.Warnings)),
		)
	}
	table.Render()
	return nil
}

// NotifyCalibration imprime el resumen del ledger.
func (c *Console) NotifyCalibration(_ context.Context, s domain.CalibrationSummary, multiplier float64) error {
	if s.Resolved == 0 {
		fmt.Fprintf(c.out, "calibration: %d predictions pending, none resolved yet (multiplier 1.00)\n", s.Total)
		return nil
	}

	streak := fmt.Sprintf("W%d", s.Streak)
	if s.Streak < 0 {
		streak = fmt.Sprintf("L%d", -s.Streak)
	}

	fmt.Fprintf(c.out, "calibration: %d/%d resolved | brier %.3f | accuracy %.0f%% | streak %s | multiplier %.2f\n",
		s.Resolved, s.Total, s.MeanBrier, s.Accuracy*100, streak, multiplier)
	return nil
}

func strategiesLabel(strategies []domain.Strategy) string {
	labels := make([]string, 0, len(strategies))
	for _, s := range strategies {
		switch s {
		case domain.StrategyHedge:
			labels = append(labels, "hedge")
		case domain.StrategyDirectional:
			labels = append(labels, "directional")
		default:
			labels = append(labels, string(s))
		}
	}
	return strings.Join(labels, "+")
}

func signalsLabel(signals []domain.SignalScore) string {
	names := make([]string, 0, len(signals))
	for _, s := range signals {
		names = append(names, s.Name)
	}
	return strings.Join(names, ",")
}

// truncate corta el texto a max caracteres añadiendo "…" si hace falta.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-1]) + "…"
}
