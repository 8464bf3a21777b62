package hooking

import (
	"log"
)

// A LogHook writes one log line for every hook invocation it receives.
type LogHook struct {
	*log.Logger

	positions map[*HookPos]bool
}

// NewLogHook creates a LogHook that writes to the logger. If positions are
// given, only invocations at those positions are logged.
func NewLogHook(logger *log.Logger, positions ...*HookPos) *LogHook {
	h := &LogHook{
		Logger:    logger,
		positions: make(map[*HookPos]bool),
	}

	for _, pos := range positions {
		h.positions[pos] = true
	}

	return h
}

// Func logs the position and the item of the invocation.
func (h *LogHook) Func(ctx HookCtx) {
	if len(h.positions) > 0 && !h.positions[ctx.Pos] {
		return
	}

	if named, ok := ctx.Domain.(interface{ Name() string }); ok {
		h.Printf("%s %s: %v", named.Name(), ctx.Pos.Name, ctx.Item)
		return
	}

	h.Printf("%s: %v", ctx.Pos.Name, ctx.Item)
}
