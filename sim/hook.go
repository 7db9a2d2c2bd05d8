package sim

import (
	"log"
	"sync"
)

// HookPos names a site where a component invokes its hooks, such as the
// completion of a page fault.
type HookPos struct {
	Name string
}

// HookCtx describes one invocation of the hooks.
type HookCtx struct {
	Domain Hookable
	Pos    *HookPos
	Item   interface{}
}

// Hookable is a named object that reports to hooks.
type Hookable interface {
	Named

	// AcceptHook registers a hook.
	AcceptHook(hook Hook)

	// NumHooks returns the number of registered hooks.
	NumHooks() int

	// InvokeHook calls the registered hooks in registration order.
	InvokeHook(ctx HookCtx)
}

// Hook is called back by a Hookable.
type Hook interface {
	Func(ctx HookCtx)
}

// HookFunc adapts an ordinary function to the Hook interface.
type HookFunc func(ctx HookCtx)

// Func calls f(ctx).
func (f HookFunc) Func(ctx HookCtx) {
	f(ctx)
}

// HookableBase implements the hook bookkeeping of a Hookable. Hooks can be
// registered while another goroutine invokes them. The zero value has no
// hooks and is ready to use. A HookableBase must not be copied after first
// use.
type HookableBase struct {
	lock  sync.RWMutex
	hooks []Hook
}

// AcceptHook registers a hook.
func (h *HookableBase) AcceptHook(hook Hook) {
	if hook == nil {
		log.Panic("cannot accept a nil hook")
	}

	h.lock.Lock()
	defer h.lock.Unlock()

	h.hooks = append(h.hooks, hook)
}

// NumHooks returns the number of registered hooks.
func (h *HookableBase) NumHooks() int {
	h.lock.RLock()
	defer h.lock.RUnlock()

	return len(h.hooks)
}

// InvokeHook calls the registered hooks. The hooks run without the internal
// lock held, so a hook may register further hooks.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	h.lock.RLock()
	hooks := h.hooks
	h.lock.RUnlock()

	for _, hook := range hooks {
		hook.Func(ctx)
	}
}
