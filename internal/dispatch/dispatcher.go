// Package dispatch routes a parsed intent to the handler registered for its
// action.
package dispatch

import (
	"context"
	"fmt"
	log "log/slog"
	"sort"
	"sync"

	"pawvox/internal/convo"
	"pawvox/pkg/voice"
)

type Handler interface {
	Execute(ctx context.Context, intent voice.Intent, c voice.Context) voice.CommandResult
	CanExecute(intent voice.Intent) bool
	RequiredParameters() []string
	Info() voice.CommandInfo
}

type Dispatcher struct {
	store *convo.Store

	mu       sync.RWMutex
	handlers map[voice.Action]Handler
}

func New(store *convo.Store) *Dispatcher {
	return &Dispatcher{
		store:    store,
		handlers: make(map[voice.Action]Handler),
	}
}

// Register installs h for action, replacing any earlier handler.
func (d *Dispatcher) Register(action voice.Action, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[action] = h
}

func (d *Dispatcher) handler(action voice.Action) (Handler, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	h, ok := d.handlers[action]
	return h, ok
}

// Execute runs the handler for intent.Action against the current context
// snapshot. A non-nil FollowUp on the result replaces the store's
// remembered summary; ClearFollowUp drops it.
func (d *Dispatcher) Execute(ctx context.Context, intent voice.Intent) (res voice.CommandResult) {
	h, ok := d.handler(intent.Action)
	if !ok {
		return voice.Failed(voice.KeyNoHandler, fmt.Sprintf("no handler registered for %s", intent.Action))
	}
	if !h.CanExecute(intent) {
		return voice.Failed(voice.KeyCannotExecute, "I can't do that yet.")
	}

	defer func() {
		if r := recover(); r != nil {
			log.Error("Handler panicked", "action", intent.Action, "target", intent.Target, "panic", r)
			res = voice.Failed(voice.KeyError, "Sorry, something went wrong with that request.")
		}
	}()

	var snap voice.Context
	if d.store != nil {
		snap = d.store.Snapshot()
	}

	res = h.Execute(ctx, intent, snap)
	if d.store != nil && (res.FollowUp != nil || res.ClearFollowUp) {
		d.store.SetFollowUp(res.FollowUp)
	}
	return res
}

// AvailableCommands lists the registered handlers sorted by action.
func (d *Dispatcher) AvailableCommands() []voice.CommandInfo {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]voice.CommandInfo, 0, len(d.handlers))
	for action, h := range d.handlers {
		info := h.Info()
		info.Action = action
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Action < out[j].Action })
	return out
}
