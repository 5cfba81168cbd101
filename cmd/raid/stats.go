package main

import (
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/cory-johannsen/raid/internal/game/statistics"
	"github.com/cory-johannsen/raid/internal/storage/postgres"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [battle-id]",
		Short: "Show stored totals per template, or one stored battle",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := postgres.NewPool(ctx, a.cfg.Database, 0, a.logger)
			if err != nil {
				return fmt.Errorf("connecting to statistics database: %w", err)
			}
			defer pool.Close()
			repo := pool.BattleStats()
			out := cmd.OutOrStdout()

			if len(args) == 1 {
				rec, err := repo.GetBattle(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "battle %s  winner=%q  turns=%d  recorded=%s\n",
					rec.BattleID, rec.Winner, rec.Turns, rec.RecordedAt.Format("2006-01-02 15:04:05"))
				return writeTotals(out, "character", rec.Characters, func(t statistics.Totals) string {
					return t.Name + " (" + t.Team + ")"
				})
			}

			wins, err := repo.Wins(ctx)
			if err != nil {
				return err
			}
			teams := make([]string, 0, len(wins))
			for t := range wins {
				teams = append(teams, t)
			}
			sort.Strings(teams)
			for _, t := range teams {
				fmt.Fprintf(out, "wins %q: %d\n", t, wins[t])
			}
			totals, err := repo.TemplateTotals(ctx)
			if err != nil {
				return err
			}
			return writeTotals(out, "template", totals, func(t statistics.Totals) string { return t.TemplateID })
		},
	}
}

func writeTotals(out io.Writer, label string, ts []statistics.Totals, name func(statistics.Totals) string) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\tdealt\ttaken\thealed\tmana\tcrits\tdodges\tkills\tdeaths\tused\trejected\n", label)
	for _, t := range ts {
		fmt.Fprintf(tw, "%s\t%.0f\t%.0f\t%.0f\t%.0f\t%d\t%d\t%d\t%d\t%d\t%d\n",
			name(t), t.DamageDealt, t.DamageTaken, t.HealingDone, t.ManaRestored,
			t.Crits, t.Dodges, t.Kills, t.Deaths, t.AbilitiesUsed, t.AbilitiesRejected)
	}
	return tw.Flush()
}
