// Package dice is the battle's randomness: dodge and critical chance rolls
// and the "NdS" expressions ability formulas and scripts may roll.
package dice

import (
	"errors"
	"fmt"
)

// ErrBadExpression is wrapped by every Parse failure.
var ErrBadExpression = errors.New("dice: bad expression")

// Source is the randomness provider. Implementations must be safe for
// concurrent use.
type Source interface {
	// Intn returns a value in [0, n).
	//
	// Precondition: n > 0.
	Intn(n int) int
}

// Result is one rolled expression.
//
// Invariant: Total() == sum(Kept) + Modifier.
type Result struct {
	Expression string
	Kept       []int
	// Dropped holds the dice a keep-highest expression discarded.
	Dropped  []int
	Modifier int
}

// Total returns the kept dice plus the modifier.
func (r Result) Total() int {
	total := r.Modifier
	for _, d := range r.Kept {
		total += d
	}
	return total
}

// String renders r for logs, e.g. "4d6kh3 [6 5 4] drop [1] +0 = 15".
func (r Result) String() string {
	s := fmt.Sprintf("%s %v", r.Expression, r.Kept)
	if len(r.Dropped) > 0 {
		s += fmt.Sprintf(" drop %v", r.Dropped)
	}
	return fmt.Sprintf("%s %+d = %d", s, r.Modifier, r.Total())
}
