// Package bridge relays manual dashboard actions into the conversation and
// fans voice-driven data changes out to the UI.
package bridge

import (
	"fmt"
	log "log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"pawvox/internal/convo"
	"pawvox/internal/metrics"
	"pawvox/pkg/voice"
)

type EventKind string

const (
	EventNavigation       EventKind = "navigation"
	EventPetSelection     EventKind = "pet_selection"
	EventDataEntry        EventKind = "data_entry"
	EventDataModification EventKind = "data_modification"
	EventViewChange       EventKind = "view_change"
)

// sourceDashboard tags intents synthesized from manual UI actions.
const sourceDashboard = "dashboard"

type DashboardEvent struct {
	Kind     EventKind         `json:"kind"`
	Page     string            `json:"page,omitempty"`
	Pet      string            `json:"pet,omitempty"`
	DataType string            `json:"dataType,omitempty"`
	ID       string            `json:"id,omitempty"`
	View     string            `json:"view,omitempty"`
	Fields   map[string]string `json:"fields,omitempty"`
	// Origin is set when the event was replicated from another daemon.
	Origin string    `json:"origin,omitempty"`
	At     time.Time `json:"at"`
}

type listeners[T any] struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(T)
}

func (l *listeners[T]) add(fn func(T)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fns == nil {
		l.fns = make(map[int]func(T))
	}
	id := l.next
	l.next++
	l.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			delete(l.fns, id)
		})
	}
}

// emit calls every listener in subscription order. The registry lock is not
// held while they run, so a listener may unsubscribe itself.
func (l *listeners[T]) emit(name string, v T) {
	l.mu.Lock()
	ids := make([]int, 0, len(l.fns))
	for id := range l.fns {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(T), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, l.fns[id])
	}
	l.mu.Unlock()

	for _, fn := range fns {
		call(name, fn, v)
	}
}

func call[T any](name string, fn func(T), v T) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("Listener panicked", "channel", name, "panic", r)
		}
	}()
	fn(v)
}

type Manager struct {
	store *convo.Store
	now   func() time.Time

	events  listeners[DashboardEvent]
	changes listeners[voice.DataChange]
}

func NewManager(store *convo.Store, now func() time.Time) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{store: store, now: now}
}

// OnDashboardEvent subscribes fn to manual UI events. The returned func
// unsubscribes it.
func (m *Manager) OnDashboardEvent(fn func(DashboardEvent)) func() { return m.events.add(fn) }

// OnDataChange subscribes fn to voice-driven data changes.
func (m *Manager) OnDataChange(fn func(voice.DataChange)) func() { return m.changes.add(fn) }

// NotifyDataChange broadcasts c to every data-change subscriber.
func (m *Manager) NotifyDataChange(c voice.DataChange) {
	if c.At.IsZero() {
		c.At = m.now()
	}
	m.changes.emit("data_change", c)
}

func (m *Manager) HandleNavigation(page string) error {
	m.store.SetPage(page)
	err := m.record(voice.ActionNavigate, page, "", map[string]string{"page": page})
	m.publish(DashboardEvent{Kind: EventNavigation, Page: page})
	return err
}

// HandlePetSelection makes pet the active pet. The synthetic intent's
// pet_name entity is the only write.
func (m *Manager) HandlePetSelection(pet string) error {
	err := m.record(voice.ActionNavigate, "pet_selection", pet, nil)
	m.publish(DashboardEvent{Kind: EventPetSelection, Pet: pet})
	return err
}

func (m *Manager) HandleDataEntry(dataType, pet string, fields map[string]string) error {
	params := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		params[k] = v
	}
	err := m.record(voice.ActionLogData, dataType, pet, params)
	m.publish(DashboardEvent{Kind: EventDataEntry, DataType: dataType, Pet: pet, Fields: fields})
	return err
}

func (m *Manager) HandleDataModification(dataType, id, pet string) error {
	err := m.record(voice.ActionUpdate, dataType, pet, map[string]string{"id": id})
	m.publish(DashboardEvent{Kind: EventDataModification, DataType: dataType, ID: id, Pet: pet})
	return err
}

func (m *Manager) HandleViewChange(view string) error {
	err := m.record(voice.ActionNavigate, view, "", map[string]string{"view": view})
	m.publish(DashboardEvent{Kind: EventViewChange, View: view})
	return err
}

// ActivePetChanged tells event subscribers about a pet switch that already
// reached the store, e.g. from a voice turn.
func (m *Manager) ActivePetChanged(pet string) {
	m.events.emit("dashboard_event", DashboardEvent{Kind: EventPetSelection, Pet: pet, At: m.now()})
}

// remotePetSelected publishes a pet switch applied from a remote hub so local
// subscribers see it too.
func (m *Manager) remotePetSelected(pet, origin string) {
	m.events.emit("dashboard_event", DashboardEvent{Kind: EventPetSelection, Pet: pet, Origin: origin, At: m.now()})
}

func (m *Manager) record(action voice.Action, target, pet string, params map[string]string) error {
	if params == nil {
		params = make(map[string]string, 2)
	}
	params["source"] = sourceDashboard

	in := voice.Intent{
		ID:         uuid.NewString(),
		Action:     action,
		Target:     target,
		Parameters: params,
		Confidence: 1,
		Priority:   voice.PriorityNormal,
	}
	if pet != "" {
		params["pet"] = pet
		in.Entities = []voice.Entity{{Type: voice.EntityPetName, Value: pet, Confidence: 1}}
	}
	if err := m.store.Update(in); err != nil {
		return fmt.Errorf("record %s event: %w", action, err)
	}
	return nil
}

func (m *Manager) publish(e DashboardEvent) {
	e.At = m.now()
	metrics.DashboardEvents.WithLabelValues(string(e.Kind)).Inc()
	m.events.emit("dashboard_event", e)
}
