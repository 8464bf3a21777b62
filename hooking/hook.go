// Package hooking lets observers attach to address-space operations without
// the operations knowing who is listening.
package hooking

import "fmt"

// A HookPos names a point in an operation where hooks are triggered.
// Positions are compared by pointer, so each one should be declared once as a
// package-level variable.
type HookPos struct {
	Name string
}

func (p *HookPos) String() string {
	return p.Name
}

// HookCtx describes one triggering of the hooks: who triggered them, where,
// and the event that happened.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   any
}

// Hookable is implemented by everything that hooks can be attached to.
type Hookable interface {
	// AcceptHook attaches a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of hooks attached.
	NumHooks() int

	// Hooks returns the attached hooks in the order they are invoked.
	Hooks() []Hook
}

// A Hook observes the events of the Hookables it is attached to. Hooks are
// compared with ==, so their dynamic type must be comparable.
type Hook interface {
	Func(ctx HookCtx)
}

// HookableBase implements Hookable. Types embed it and call InvokeHook at
// their hook positions.
type HookableBase struct {
	hooks []Hook
}

// NumHooks returns the number of hooks attached.
func (h *HookableBase) NumHooks() int {
	return len(h.hooks)
}

// Hooks returns a copy of the attached hooks.
func (h *HookableBase) Hooks() []Hook {
	hooks := make([]Hook, len(h.hooks))
	copy(hooks, h.hooks)

	return hooks
}

// AcceptHook attaches a hook. Attaching the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook) {
	if h.indexOf(hook) >= 0 {
		panic(fmt.Sprintf("hook %T is already attached", hook))
	}

	h.hooks = append(h.hooks, hook)
}

// RemoveHook detaches a hook. It does nothing if the hook is not attached.
func (h *HookableBase) RemoveHook(hook Hook) {
	i := h.indexOf(hook)
	if i < 0 {
		return
	}

	h.hooks = append(h.hooks[:i], h.hooks[i+1:]...)
}

func (h *HookableBase) indexOf(hook Hook) int {
	for i, attached := range h.hooks {
		if attached == hook {
			return i
		}
	}

	return -1
}

// InvokeHook passes ctx to every attached hook, in attachment order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, hook := range h.hooks {
		hook.Func(ctx)
	}
}
