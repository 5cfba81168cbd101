package dice

import "go.uber.org/zap"

// chanceResolution is the granularity of Chance: one part in a million.
const chanceResolution = 1_000_000

// Roller is one battle's dice: every roll it makes is logged at Debug.
type Roller struct {
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller returns a Roller over src. A nil logger discards the log.
//
// Precondition: src must not be nil.
func NewLoggedRoller(src Source, logger *zap.Logger) *Roller {
	if src == nil {
		panic("dice.NewLoggedRoller: precondition violated: src must be non-nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Roller{src: src, logger: logger}
}

// Intn draws from the roller's source without logging, so a Roller is itself
// a Source.
func (r *Roller) Intn(n int) int { return r.src.Intn(n) }

// Roll parses and rolls expr.
//
// Postcondition: a parse failure wraps ErrBadExpression and rolls nothing.
func (r *Roller) Roll(expr string) (Result, error) {
	e, err := Parse(expr)
	if err != nil {
		return Result{}, err
	}
	res := e.Roll(r.src)
	r.logger.Debug("dice roll",
		zap.String("expression", res.Expression),
		zap.Ints("kept", res.Kept),
		zap.Ints("dropped", res.Dropped),
		zap.Int("total", res.Total()),
	)
	return res, nil
}

// Chance reports whether an event of probability p, named by label, happens.
// p <= 0 never happens and p >= 1 always does; neither consumes randomness
// nor logs.
func (r *Roller) Chance(label string, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	hit := r.src.Intn(chanceResolution) < int(p*chanceResolution)
	r.logger.Debug("chance roll",
		zap.String("label", label),
		zap.Float64("probability", p),
		zap.Bool("hit", hit),
	)
	return hit
}
