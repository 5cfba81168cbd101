package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/statistics"
	"github.com/cory-johannsen/raid/internal/rules"
	"github.com/cory-johannsen/raid/internal/simulation"
	"github.com/cory-johannsen/raid/internal/storage/postgres"
)

func newSimulateCmd(a *app) *cobra.Command {
	var teams []string
	var persist bool

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run AI-controlled battles and report win rates and per-template totals",
		Example: `  raid simulate --team red=knight,cleric --team blue=mage,mage --battles 500 --seed 7
  raid simulate --config configs/raid.yaml --persist`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := parseTeams(teams)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return a.simulate(ctx, cmd.OutOrStdout(), m, persist)
		},
	}

	f := cmd.Flags()
	f.StringArrayVar(&teams, "team", []string{"red=knight,cleric", "blue=mage,mage"}, "team as name=template[,template...]; repeat per team")
	f.BoolVar(&persist, "persist", false, "save every battle summary to the statistics database")
	f.Int("battles", 0, "override simulation.battles")
	f.Int("concurrency", 0, "override simulation.concurrency")
	f.Int("max-turns", 0, "override simulation.max_turns")
	f.Uint64("seed", 0, "override battle.seed; 0 rolls crypto-random dice")
	bind(a.v, f.Lookup("battles"), "simulation.battles")
	bind(a.v, f.Lookup("concurrency"), "simulation.concurrency")
	bind(a.v, f.Lookup("max-turns"), "simulation.max_turns")
	bind(a.v, f.Lookup("seed"), "battle.seed")
	return cmd
}

// parseTeams turns "red=knight,cleric" specs into a matchup.
func parseTeams(specs []string) (simulation.Matchup, error) {
	var m simulation.Matchup
	for _, spec := range specs {
		name, list, ok := strings.Cut(spec, "=")
		if !ok || strings.TrimSpace(name) == "" {
			return nil, fmt.Errorf("team %q: want name=template[,template...]", spec)
		}
		team := simulation.Team{Name: strings.TrimSpace(name)}
		for _, id := range strings.Split(list, ",") {
			if id = strings.TrimSpace(id); id != "" {
				team.Templates = append(team.Templates, id)
			}
		}
		m = append(m, team)
	}
	return m, nil
}

func (a *app) simulate(ctx context.Context, out io.Writer, m simulation.Matchup, persist bool) error {
	start := time.Now()
	lib, err := character.LoadLibrary(a.cfg.Content.Dir)
	if err != nil {
		return err
	}
	compiler, err := rules.NewCompiler()
	if err != nil {
		return err
	}
	builder := character.NewBuilder(lib, compiler, a.logger)

	opts := simulation.OptionsFromConfig(&a.cfg)
	var store statistics.Store
	if persist {
		pool, err := postgres.NewPool(ctx, a.cfg.Database, opts.Concurrency, a.logger)
		if err != nil {
			return fmt.Errorf("connecting to statistics database: %w", err)
		}
		defer pool.Close()
		store = pool.BattleStats()
	}

	a.logger.Info("starting simulation",
		zap.Int("battles", opts.Battles),
		zap.Int("concurrency", opts.Concurrency),
		zap.Uint64("seed", opts.Seed),
		zap.Bool("persist", persist),
	)
	rep, err := simulation.NewRunner(builder, store, a.logger).Run(ctx, m, opts)
	if err != nil {
		return err
	}
	return writeReport(out, rep, time.Since(start))
}

func writeReport(out io.Writer, rep simulation.Report, elapsed time.Duration) error {
	battles := len(rep.Summaries)
	turns := 0
	for _, s := range rep.Summaries {
		turns += s.Turns
	}

	fmt.Fprintf(out, "battles: %d [%s]\n", battles, elapsed.Round(time.Millisecond))
	if battles > 0 {
		fmt.Fprintf(out, "avg turns: %.1f\n", float64(turns)/float64(battles))
	}
	for _, team := range rep.WinningTeams() {
		name := team
		if name == "" {
			name = "(mutual wipe)"
		}
		fmt.Fprintf(out, "wins %s: %d (%.1f%%)\n", name, rep.Wins[team], pct(rep.Wins[team], battles))
	}
	if rep.Unfinished > 0 {
		fmt.Fprintf(out, "turn limit: %d (%.1f%%)\n", rep.Unfinished, pct(rep.Unfinished, battles))
	}
	fmt.Fprintln(out)
	return writeTotals(out, "template", rep.Templates, func(t statistics.Totals) string { return t.TemplateID })
}

func pct(n, of int) float64 {
	if of == 0 {
		return 0
	}
	return float64(n) / float64(of) * 100
}
