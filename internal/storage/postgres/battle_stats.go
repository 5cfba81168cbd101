package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/raid/internal/game/statistics"
)

// ErrBattleNotFound is returned when a battle lookup yields no results.
var ErrBattleNotFound = errors.New("battle not found")

// ErrBattleExists is returned when a battle id has already been recorded.
var ErrBattleExists = errors.New("battle already recorded")

// BattleRecord is a stored battle summary with its recording time.
type BattleRecord struct {
	statistics.Summary
	RecordedAt time.Time
}

// BattleStatsRepository persists statistics.Summary values. It satisfies
// statistics.Store.
type BattleStatsRepository struct {
	db *pgxpool.Pool
}

var _ statistics.Store = (*BattleStatsRepository)(nil)

// NewBattleStatsRepository creates a BattleStatsRepository backed by the given pool.
//
// Precondition: db must be a valid, open connection pool.
func NewBattleStatsRepository(db *pgxpool.Pool) *BattleStatsRepository {
	return &BattleStatsRepository{db: db}
}

// SaveBattle records s and all of its character totals in one transaction.
//
// Precondition: s.BattleID must be non-empty.
// Postcondition: Either every row is written or none is. Returns
// ErrBattleExists if s.BattleID was recorded before.
func (r *BattleStatsRepository) SaveBattle(ctx context.Context, s statistics.Summary) error {
	if s.BattleID == "" {
		return errors.New("saving battle: empty battle id")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO battles (id, winner, turns) VALUES ($1, $2, $3)`,
		s.BattleID, s.Winner, s.Turns,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return ErrBattleExists
		}
		return fmt.Errorf("inserting battle: %w", err)
	}

	if len(s.Characters) > 0 {
		rows := make([][]any, 0, len(s.Characters))
		for _, c := range s.Characters {
			rows = append(rows, []any{
				s.BattleID, c.InstanceID, c.TemplateID, c.Name, c.Team,
				c.DamageDealt, c.DamageTaken, c.HealingDone, c.HealingReceived, c.ManaRestored,
				c.Crits, c.Dodges, c.Kills, c.Deaths, c.AbilitiesUsed, c.AbilitiesRejected,
			})
		}
		_, err = tx.CopyFrom(ctx, pgx.Identifier{"battle_characters"}, characterColumns, pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("copying battle characters: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing battle %s: %w", s.BattleID, err)
	}
	return nil
}

var characterColumns = []string{
	"battle_id", "instance_id", "template_id", "name", "team",
	"damage_dealt", "damage_taken", "healing_done", "healing_received", "mana_restored",
	"crits", "dodges", "kills", "deaths", "abilities_used", "abilities_rejected",
}

// GetBattle loads one recorded battle.
//
// Postcondition: Returns the record with Characters ordered by name then
// instance id, or ErrBattleNotFound.
func (r *BattleStatsRepository) GetBattle(ctx context.Context, battleID string) (BattleRecord, error) {
	var rec BattleRecord
	err := r.db.QueryRow(ctx,
		`SELECT id, winner, turns, recorded_at FROM battles WHERE id = $1`,
		battleID,
	).Scan(&rec.BattleID, &rec.Winner, &rec.Turns, &rec.RecordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return BattleRecord{}, ErrBattleNotFound
		}
		return BattleRecord{}, fmt.Errorf("querying battle: %w", err)
	}

	rows, err := r.db.Query(ctx,
		`SELECT instance_id, template_id, name, team,
		        damage_dealt, damage_taken, healing_done, healing_received, mana_restored,
		        crits, dodges, kills, deaths, abilities_used, abilities_rejected
		 FROM battle_characters WHERE battle_id = $1
		 ORDER BY name, instance_id`,
		battleID,
	)
	if err != nil {
		return BattleRecord{}, fmt.Errorf("querying battle characters: %w", err)
	}
	rec.Characters, err = pgx.CollectRows(rows, scanTotals)
	if err != nil {
		return BattleRecord{}, fmt.Errorf("scanning battle characters: %w", err)
	}
	return rec, nil
}

// TemplateTotals sums every recorded character row per template.
//
// Postcondition: Returns one Totals per template ordered by template id.
// Only TemplateID and the numeric fields are populated.
func (r *BattleStatsRepository) TemplateTotals(ctx context.Context) ([]statistics.Totals, error) {
	rows, err := r.db.Query(ctx,
		`SELECT '' AS instance_id, template_id, '' AS name, '' AS team,
		        SUM(damage_dealt), SUM(damage_taken), SUM(healing_done),
		        SUM(healing_received), SUM(mana_restored),
		        SUM(crits)::INTEGER, SUM(dodges)::INTEGER, SUM(kills)::INTEGER,
		        SUM(deaths)::INTEGER, SUM(abilities_used)::INTEGER,
		        SUM(abilities_rejected)::INTEGER
		 FROM battle_characters
		 GROUP BY template_id
		 ORDER BY template_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("querying template totals: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanTotals)
	if err != nil {
		return nil, fmt.Errorf("scanning template totals: %w", err)
	}
	return out, nil
}

// Wins counts recorded battles per winning team. Battles with no winner
// are counted under the empty string.
func (r *BattleStatsRepository) Wins(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.Query(ctx, `SELECT winner, COUNT(*)::INTEGER FROM battles GROUP BY winner`)
	if err != nil {
		return nil, fmt.Errorf("querying wins: %w", err)
	}
	defer rows.Close()

	wins := make(map[string]int)
	for rows.Next() {
		var team string
		var n int
		if err := rows.Scan(&team, &n); err != nil {
			return nil, fmt.Errorf("scanning wins: %w", err)
		}
		wins[team] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating wins: %w", err)
	}
	return wins, nil
}

func scanTotals(row pgx.CollectableRow) (statistics.Totals, error) {
	var t statistics.Totals
	err := row.Scan(
		&t.InstanceID, &t.TemplateID, &t.Name, &t.Team,
		&t.DamageDealt, &t.DamageTaken, &t.HealingDone, &t.HealingReceived, &t.ManaRestored,
		&t.Crits, &t.Dodges, &t.Kills, &t.Deaths, &t.AbilitiesUsed, &t.AbilitiesRejected,
	)
	return t, err
}

// isDuplicateKeyError checks if a pgx error is a unique constraint violation.
func isDuplicateKeyError(err error) bool {
	// pgx wraps PostgreSQL errors; check for SQLSTATE 23505 (unique_violation)
	var pgErr interface{ SQLState() string }
	if errors.As(err, &pgErr) {
		return pgErr.SQLState() == "23505"
	}
	return false
}
