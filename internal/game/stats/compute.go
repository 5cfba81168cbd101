package stats

import "go.uber.org/zap"

// Compute derives effective attributes from base and the ordered modifier list.
//
// Per key the order is fixed: every add is summed onto the base value, the
// result is scaled by (1 + sum of multiply values), and if any set modifier
// targets the key the last one in list order replaces the value outright.
// MaxHP and MaxMana are floored at 1. Modifiers with an unknown key or
// operation are logged at warn level and skipped.
//
// Precondition: none; logger may be nil.
// Postcondition: base is not mutated; the result depends only on base and mods.
func Compute(base Block, mods []Modifier, logger *zap.Logger) Block {
	if logger == nil {
		logger = zap.NewNop()
	}

	adds := make(map[Key]float64)
	muls := make(map[Key]float64)
	sets := make(map[Key]float64)

	for _, m := range mods {
		if !IsKnown(m.Stat) {
			logger.Warn("ignoring modifier with unknown stat",
				zap.String("stat", string(m.Stat)),
				zap.String("op", string(m.Op)),
				zap.Float64("value", m.Value),
			)
			continue
		}
		switch m.Op {
		case OpAdd:
			adds[m.Stat] += m.Value
		case OpMultiply:
			muls[m.Stat] += m.Value
		case OpSet:
			sets[m.Stat] = m.Value
		default:
			logger.Warn("ignoring modifier with unknown operation",
				zap.String("stat", string(m.Stat)),
				zap.String("op", string(m.Op)),
			)
		}
	}

	out := base.Clone()
	for k, v := range adds {
		out[k] += v
	}
	for k, v := range muls {
		out[k] *= 1 + v
	}
	for k, v := range sets {
		out[k] = v
	}

	for _, k := range []Key{MaxHP, MaxMana} {
		if out[k] < 1 {
			out[k] = 1
		}
	}
	return out
}
