// Package simulation runs many computer-controlled battles between fixed
// teams and aggregates their statistics.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/cory-johannsen/raid/internal/config"
	"github.com/cory-johannsen/raid/internal/game/ai"
	"github.com/cory-johannsen/raid/internal/game/character"
	"github.com/cory-johannsen/raid/internal/game/combat"
	"github.com/cory-johannsen/raid/internal/game/dice"
	"github.com/cory-johannsen/raid/internal/game/statistics"
	"github.com/cory-johannsen/raid/internal/observability"
	"github.com/cory-johannsen/raid/internal/scripting"
)

// ErrNoTeams is returned when a matchup has fewer than two non-empty teams.
var ErrNoTeams = errors.New("simulation: a matchup needs at least two non-empty teams")

// Team is one side of a matchup.
type Team struct {
	Name      string
	Templates []string
}

// Matchup lists the teams in join order. Within a team, templates join in
// the order given.
type Matchup []Team

// Validate checks the matchup against lib.
func (m Matchup) Validate(lib *character.Library) error {
	sides := 0
	var errs []error
	seen := map[string]bool{}
	for _, t := range m {
		if t.Name == "" {
			errs = append(errs, errors.New("team with empty name"))
			continue
		}
		if seen[t.Name] {
			errs = append(errs, fmt.Errorf("duplicate team %q", t.Name))
		}
		seen[t.Name] = true
		if len(t.Templates) > 0 {
			sides++
		}
		for _, id := range t.Templates {
			if _, ok := lib.Templates[id]; !ok {
				errs = append(errs, fmt.Errorf("team %q: %w: %q", t.Name, character.ErrUnknownTemplate, id))
			}
		}
	}
	if sides < 2 {
		errs = append(errs, ErrNoTeams)
	}
	return errors.Join(errs...)
}

// DefaultMaxTurns applies when Options.MaxTurns is not positive.
const DefaultMaxTurns = 200

// Options are the per-run settings, normally taken from config.
type Options struct {
	Battles     int
	Concurrency int
	MaxTurns    int
	// Seed makes battle i roll dice.NewSeededSource(Seed+i); 0 uses crypto randomness.
	Seed             uint64
	Rules            combat.Rules
	ScriptDir        string
	InstructionLimit int
}

// OptionsFromConfig maps the battle, content and simulation sections.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Battles:     cfg.Simulation.Battles,
		Concurrency: cfg.Simulation.Concurrency,
		MaxTurns:    cfg.Simulation.MaxTurns,
		Seed:        cfg.Battle.Seed,
		Rules: combat.Rules{
			DefaultCritMultiplier: cfg.Battle.CritMultiplier,
			MaxMitigation:         cfg.Battle.MaxMitigation,
			ManaRegenPerTurn:      cfg.Battle.ManaRegenPerTurn,
		},
		ScriptDir:        cfg.Content.ScriptDir,
		InstructionLimit: cfg.Content.InstructionLimit,
	}
}

// Report is the outcome of a run.
type Report struct {
	// Summaries are ordered by battle index.
	Summaries []statistics.Summary
	// Wins counts battles per winning team; battles that ended with every
	// team dead are counted under "".
	Wins map[string]int
	// Unfinished counts battles stopped at MaxTurns.
	Unfinished int
	// Templates aggregates every character by template.
	Templates []statistics.Totals
}

// WinningTeams returns the team names in Wins, most wins first.
func (r Report) WinningTeams() []string {
	out := make([]string, 0, len(r.Wins))
	for t := range r.Wins {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if r.Wins[out[i]] != r.Wins[out[j]] {
			return r.Wins[out[i]] > r.Wins[out[j]]
		}
		return out[i] < out[j]
	})
	return out
}

// Runner plays battles with content from one Builder. A Runner is safe for
// concurrent use; every battle gets its own dice, scripts and tracker.
type Runner struct {
	builder *character.Builder
	store   statistics.Store
	engine  *combat.Engine
	logger  *zap.Logger
}

// NewRunner creates a Runner. When store is non-nil every finished battle's
// summary is saved to it.
//
// Precondition: builder must not be nil.
func NewRunner(builder *character.Builder, store statistics.Store, logger *zap.Logger) *Runner {
	if builder == nil {
		panic("simulation.NewRunner: precondition violated: builder must be non-nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runner{builder: builder, store: store, engine: combat.NewEngine(), logger: logger}
}

// Live returns the battle with id while it is being played.
func (r *Runner) Live(id string) (*combat.Battle, bool) { return r.engine.Get(id) }

// InFlight returns the number of battles currently being played.
func (r *Runner) InFlight() int { return r.engine.Len() }

// Run plays opts.Battles battles of m with at most opts.Concurrency in flight.
//
// Postcondition: Returns a report covering every battle, or the first error;
// a failing battle cancels the ones not yet started.
func (r *Runner) Run(ctx context.Context, m Matchup, opts Options) (Report, error) {
	if err := m.Validate(r.builder.Library()); err != nil {
		return Report{}, err
	}
	if opts.Battles < 1 {
		return Report{}, fmt.Errorf("simulation: battles must be >= 1, got %d", opts.Battles)
	}

	summaries := make([]statistics.Summary, opts.Battles)
	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i := 0; i < opts.Battles; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			s, err := r.RunOne(gctx, i, m, opts)
			if err != nil {
				return fmt.Errorf("battle %d: %w", i, err)
			}
			summaries[i] = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	rep := Report{Summaries: summaries, Wins: make(map[string]int)}
	for _, s := range summaries {
		if s.Winner == "" && !ended(s) {
			rep.Unfinished++
			continue
		}
		rep.Wins[s.Winner]++
	}
	rep.Templates = statistics.ByTemplate(summaries...)
	r.logger.Info("simulation finished",
		zap.Int("battles", opts.Battles),
		zap.Int("unfinished", rep.Unfinished),
		zap.Any("wins", rep.Wins),
	)
	return rep, nil
}

// ended reports whether a winnerless summary is a mutual wipe rather than a
// battle stopped at the turn limit.
func ended(s statistics.Summary) bool {
	for _, c := range s.Characters {
		if c.Deaths == 0 {
			return false
		}
	}
	return len(s.Characters) > 0
}

// RunOne plays battle index of m to completion or opts.MaxTurns turns.
//
// Postcondition: Returns the battle's summary. It has been saved to the
// runner's store, if any.
func (r *Runner) RunOne(ctx context.Context, index int, m Matchup, opts Options) (statistics.Summary, error) {
	var src dice.Source
	if opts.Seed != 0 {
		src = dice.NewSeededSource(opts.Seed + uint64(index))
	} else {
		src = dice.NewCryptoSource()
	}
	logger := observability.ForBattle(r.logger, index, opts.Seed)
	roller := dice.NewLoggedRoller(src, logger)
	b := combat.NewBattle("", roller, logger, combat.WithRules(opts.Rules))
	if err := r.engine.Start(b); err != nil {
		return statistics.Summary{}, err
	}
	defer r.engine.End(b.ID)

	var mgr *scripting.Manager
	if opts.ScriptDir != "" {
		mgr = scripting.NewManager(roller, b.Logger())
		defer mgr.Close()
		if err := mgr.LoadGlobal(opts.ScriptDir, opts.InstructionLimit); err != nil {
			return statistics.Summary{}, err
		}
	}
	sp, err := r.builder.ForBattle(b, mgr)
	if err != nil {
		return statistics.Summary{}, err
	}

	tracker := statistics.NewTracker(b, b.Logger())
	defer tracker.Close()

	agents := make(map[string]*ai.Agent)
	for _, team := range m {
		for _, id := range team.Templates {
			c, err := sp.Spawn(id, team.Name)
			if err != nil {
				return statistics.Summary{}, err
			}
			agents[c.InstanceID] = sp.Agent(c)
		}
	}

	maxTurns := opts.MaxTurns
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	for !b.Over() && b.Turn() < maxTurns {
		if err := ctx.Err(); err != nil {
			return statistics.Summary{}, err
		}
		c, err := b.BeginTurn()
		if err != nil {
			return statistics.Summary{}, err
		}
		if err := agents[c.InstanceID].TakeTurn(b, c); err != nil {
			return statistics.Summary{}, fmt.Errorf("turn %d (%s): %w", b.Turn(), c.Name, err)
		}
	}

	if r.store != nil {
		if err := tracker.Flush(ctx, r.store); err != nil {
			return statistics.Summary{}, err
		}
	}
	s := tracker.Snapshot()
	b.Logger().Debug("battle finished", zap.String("winner", s.Winner), zap.Int("turns", s.Turns))
	return s, nil
}
