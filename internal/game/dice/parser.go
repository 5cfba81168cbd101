package dice

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// Limits on a parsed expression. Content asking for more is rejected rather
// than allowed to stall a battle.
const (
	MaxCount = 100
	MaxSides = 1000
)

var exprPattern = regexp.MustCompile(`^(\d*)d(\d+)(?:kh(\d+))?([+-]\d+)?$`)

// Expression is a parsed "NdS", "NdSkhK" or "NdS+M" dice expression.
type Expression struct {
	Raw   string
	Count int
	Sides int
	// Keep, when > 0, keeps only the Keep highest dice.
	Keep     int
	Modifier int
}

// Parse parses expr. The count defaults to 1 ("d20"); spaces and case are ignored.
//
// Postcondition: on success 1 <= Count <= MaxCount, 2 <= Sides <= MaxSides and
// 0 <= Keep < Count; every error wraps ErrBadExpression.
func Parse(expr string) (Expression, error) {
	s := strings.ToLower(strings.ReplaceAll(expr, " ", ""))
	m := exprPattern.FindStringSubmatch(s)
	if m == nil {
		return Expression{}, fmt.Errorf("%w: %q", ErrBadExpression, expr)
	}
	e := Expression{Raw: expr, Count: 1}
	if m[1] != "" {
		e.Count, _ = strconv.Atoi(m[1])
	}
	e.Sides, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		e.Keep, _ = strconv.Atoi(m[3])
	}
	if m[4] != "" {
		e.Modifier, _ = strconv.Atoi(m[4])
	}

	switch {
	case e.Count < 1 || e.Count > MaxCount:
		return Expression{}, fmt.Errorf("%w: %q: count must be in [1, %d]", ErrBadExpression, expr, MaxCount)
	case e.Sides < 2 || e.Sides > MaxSides:
		return Expression{}, fmt.Errorf("%w: %q: sides must be in [2, %d]", ErrBadExpression, expr, MaxSides)
	case m[3] != "" && (e.Keep < 1 || e.Keep >= e.Count):
		return Expression{}, fmt.Errorf("%w: %q: kh must be in [1, %d)", ErrBadExpression, expr, e.Count)
	}
	return e, nil
}

// Roll rolls e with src.
//
// Precondition: e came from Parse; src must not be nil.
// Postcondition: len(Kept) == Keep when Keep > 0, otherwise Count.
func (e Expression) Roll(src Source) Result {
	rolled := make([]int, e.Count)
	for i := range rolled {
		rolled[i] = src.Intn(e.Sides) + 1
	}
	res := Result{Expression: e.Raw, Kept: rolled, Modifier: e.Modifier}
	if e.Keep > 0 {
		sort.Sort(sort.Reverse(sort.IntSlice(rolled)))
		res.Kept, res.Dropped = rolled[:e.Keep], rolled[e.Keep:]
	}
	return res
}
