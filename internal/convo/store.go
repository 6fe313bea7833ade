// Package convo keeps the bounded conversational memory of one session:
// the last intents, the active pet and recently mentioned entities.
package convo

import (
	"context"
	"errors"
	log "log/slog"
	"sync"

	"pawvox/internal/kv"
	"pawvox/pkg/util"
	"pawvox/pkg/voice"
)

const (
	MaxIntents  = 10
	MaxEntities = 20

	activePetKey = "active_pet"
)

var ErrSessionClosed = errors.New("conversation session is closed")

type Store struct {
	mu sync.Mutex

	intents   []voice.Intent
	entities  []voice.Entity
	activePet string
	page      string
	followUp  *voice.FollowUpState
	active    bool

	persist kv.Store
}

// NewStore opens a fresh session. When persist is non-nil the active pet is
// restored from it and written back on every change.
func NewStore(persist kv.Store) *Store {
	s := &Store{active: true, persist: persist}
	if persist != nil {
		if v, err := persist.Get(context.Background(), activePetKey); err == nil {
			s.activePet = string(v)
		} else if !errors.Is(err, kv.ErrNotFound) {
			log.Warn("Failed to restore active pet", "err", err)
		}
	}
	return s
}

// Update records intent as the newest turn.
func (s *Store) Update(intent voice.Intent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return ErrSessionClosed
	}

	in := intent.Clone()
	s.intents = util.PushBounded(s.intents, MaxIntents, in)

	if pet, ok := in.Last(voice.EntityPetName); ok && pet.Value != "" {
		s.setActivePetLocked(pet.Value)
	}
	if len(in.Entities) > 0 {
		s.entities = util.PushBounded(s.entities, MaxEntities, in.Entities...)
	}
	return nil
}

// SetActivePet overwrites the active pet without recording a turn.
func (s *Store) SetActivePet(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setActivePetLocked(name)
}

func (s *Store) setActivePetLocked(name string) {
	if s.activePet == name {
		return
	}
	s.activePet = name
	if s.persist == nil {
		return
	}
	ctx := context.Background()
	var err error
	if name == "" {
		err = s.persist.Remove(ctx, activePetKey)
	} else {
		err = s.persist.Set(ctx, activePetKey, []byte(name))
	}
	if err != nil {
		log.Warn("Failed to persist active pet", "pet", name, "err", err)
	}
}

func (s *Store) ActivePet() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activePet
}

func (s *Store) SetPage(page string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.page = page
}

// SetFollowUp replaces the remembered summarised query. nil clears it.
func (s *Store) SetFollowUp(f *voice.FollowUpState) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f == nil {
		s.followUp = nil
		return
	}
	cp := *f
	cp.Full = append([]voice.Record(nil), f.Full...)
	s.followUp = &cp
}

// Snapshot returns a copy that shares no memory with the store.
func (s *Store) Snapshot() voice.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := voice.Context{
		PreviousIntents: make([]voice.Intent, 0, len(s.intents)),
		ActivePet:       s.activePet,
		CurrentPage:     s.page,
		RecentEntities:  append([]voice.Entity{}, s.entities...),
		SessionActive:   s.active,
	}
	for _, in := range s.intents {
		c.PreviousIntents = append(c.PreviousIntents, in.Clone())
	}
	if s.followUp != nil {
		f := *s.followUp
		f.Full = append([]voice.Record(nil), s.followUp.Full...)
		c.LastSummarized = &f
	}
	return c
}

// Clear ends the session. Every field is reset, including the persisted
// active pet, and Update fails until Open is called.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents = nil
	s.entities = nil
	s.page = ""
	s.followUp = nil
	s.setActivePetLocked("")
	s.active = false
}

func (s *Store) Open() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = true
}

func (s *Store) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}
