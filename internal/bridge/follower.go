package bridge

import (
	"context"
	"fmt"
	log "log/slog"
	"time"

	"github.com/google/uuid"

	"pawvox/internal/convo"
	"pawvox/pkg/protocol"
)

// Follower keeps a local store in step with a remote hub. Remote pet
// changes go to the store and to local subscribers tagged with their
// origin, so they are never sent back; local pet selections are
// transmitted upstream.
type Follower struct {
	store   *convo.Store
	manager *Manager
	ptcl    *protocol.Protocol
}

func NewFollower(ctx context.Context, url string, store *convo.Store, m *Manager, reconn time.Duration) (*Follower, error) {
	f := &Follower{store: store, manager: m}
	ptcl, err := protocol.NewProtocol(ctx, protocol.PtclConfig{
		Origin:  "follower-" + uuid.NewString(),
		Url:     url,
		Reconn:  reconn,
		EmitOut: f.apply,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to sync hub: %w", err)
	}
	f.ptcl = ptcl
	return f, nil
}

func (f *Follower) apply(msg *protocol.Message) {
	switch msg.Kind {
	case protocol.KindActivePet:
		log.Debug("Applying remote active pet", "pet", msg.Pet, "origin", msg.Origin)
		f.store.SetActivePet(msg.Pet)
		if f.manager != nil {
			f.manager.remotePetSelected(msg.Pet, msg.Origin)
		}
	case protocol.KindDataChange:
		if f.manager != nil {
			f.manager.changes.emit("data_change", *msg.Change)
		}
	}
}

// Run relays local pet selections upstream and applies remote frames until
// ctx is cancelled.
func (f *Follower) Run(ctx context.Context) {
	if f.manager != nil {
		off := f.manager.OnDashboardEvent(func(e DashboardEvent) {
			if e.Kind != EventPetSelection || e.Origin != "" {
				return
			}
			if err := f.ptcl.Transmit(protocol.ActivePet("", e.Pet)); err != nil {
				log.Warn("Failed to send pet selection upstream", "err", err)
			}
		})
		defer off()
	}
	f.ptcl.Run(ctx)
}
