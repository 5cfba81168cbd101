// Package scripting provides a sandboxed GopherLua execution environment
// for ability and effect scripts. It has no dependency on the battle
// packages; all battle interactions are injected via Manager callback fields.
package scripting

import (
	"context"
	"sync/atomic"

	lua "github.com/yuin/gopher-lua"

	"github.com/cory-johannsen/raid/internal/game/dice"
)

// DefaultInstructionLimit is the maximum number of Lua opcodes allowed per
// script call when no override is configured.
const DefaultInstructionLimit = 100_000

// unsafeGlobals are removed from every sandbox.
var unsafeGlobals = []string{"dofile", "loadfile", "load", "loadstring", "collectgarbage", "require", "module"}

// budget cancels itself once Done has been called limit times. GopherLua's
// context-aware main loop calls Done once per opcode.
type budget struct {
	context.Context
	cancel context.CancelFunc
	left   atomic.Int64
}

func (b *budget) Done() <-chan struct{} {
	if b.left.Add(-1) <= 0 {
		b.cancel()
	}
	return b.Context.Done()
}

// SetInstructionBudget gives L a fresh budget of limit opcodes. Every script
// call gets its own budget so a long battle never exhausts the VM.
//
// Precondition: limit >= 0; 0 uses DefaultInstructionLimit.
// Postcondition: The returned cancel func releases the budget's context.
func SetInstructionBudget(L *lua.LState, limit int) context.CancelFunc {
	if limit <= 0 {
		limit = DefaultInstructionLimit
	}
	ctx, cancel := context.WithCancel(context.Background())
	b := &budget{Context: ctx, cancel: cancel}
	b.left.Store(int64(limit))
	L.SetContext(b)
	return cancel
}

// NewSandboxedState creates a VM with only base, table, string and math,
// without the loaders in unsafeGlobals, and with an initial budget of
// instLimit opcodes. math.random draws from src so a seeded battle replays
// its scripts exactly; math.randomseed is a no-op.
//
// Precondition: instLimit >= 0; src must not be nil.
// Postcondition: The caller owns the returned LState and must Close it.
func NewSandboxedState(instLimit int, src dice.Source) *lua.LState {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)
	for _, name := range unsafeGlobals {
		L.SetGlobal(name, lua.LNil)
	}

	math := L.GetGlobal("math").(*lua.LTable)
	L.SetField(math, "random", L.NewFunction(func(L *lua.LState) int { return random(L, src) }))
	L.SetField(math, "randomseed", L.NewFunction(func(*lua.LState) int { return 0 }))

	SetInstructionBudget(L, instLimit)
	return L
}

// random implements Lua's math.random: no arguments yields a float in [0, 1),
// random(m) an integer in [1, m] and random(m, n) one in [m, n].
func random(L *lua.LState, src dice.Source) int {
	lo, hi := 1, 0
	switch L.GetTop() {
	case 0:
		const unit = 1 << 53
		L.Push(lua.LNumber(float64(src.Intn(unit)) / unit))
		return 1
	case 1:
		hi = L.CheckInt(1)
	default:
		lo, hi = L.CheckInt(1), L.CheckInt(2)
	}
	if lo > hi {
		L.ArgError(L.GetTop(), "interval is empty")
		return 0
	}
	L.Push(lua.LNumber(lo + src.Intn(hi-lo+1)))
	return 1
}
