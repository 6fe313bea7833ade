// Package protocol is the JSON frame format and websocket client used to
// replicate assistant state between dashboard clients.
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	log "log/slog"
	"sync"
	"time"

	"pawvox/pkg/voice"
)

type Kind string

const (
	KindActivePet  Kind = "active_pet"
	KindDataChange Kind = "data_change"
)

type Message struct {
	Kind   Kind              `json:"kind"`
	Origin string            `json:"origin"`
	Pet    string            `json:"pet,omitempty"`
	Change *voice.DataChange `json:"change,omitempty"`
}

func ActivePet(origin, pet string) Message {
	return Message{Kind: KindActivePet, Origin: origin, Pet: pet}
}

func DataChange(origin string, c voice.DataChange) Message {
	return Message{Kind: KindDataChange, Origin: origin, Change: &c}
}

func (m Message) Bytes() ([]byte, error) { return json.Marshal(m) }

// Parse decodes and validates one frame.
func Parse(raw []byte) (*Message, error) {
	if len(raw) == 0 {
		return nil, errors.New("empty message")
	}
	var m Message
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}
	if m.Origin == "" {
		return nil, errors.New("frame without origin")
	}
	switch m.Kind {
	case KindActivePet:
	case KindDataChange:
		if m.Change == nil {
			return nil, errors.New("data_change frame without change")
		}
	default:
		return nil, fmt.Errorf("unknown frame kind %q", m.Kind)
	}
	return &m, nil
}

type PtclConfig struct {
	Origin  string
	Url     string
	Reconn  time.Duration
	EmitOut func(*Message)
}

// Protocol is a reconnecting peer. Frames carrying its own origin are
// dropped on receipt.
type Protocol struct {
	ws     *WebSocket
	origin string

	mu      sync.Mutex
	emitOut func(*Message)
}

func NewProtocol(ctx context.Context, cfg PtclConfig) (*Protocol, error) {
	ws, err := NewWebSocket(ctx, cfg.Url, cfg.Reconn)
	if err != nil {
		log.Error("Failed to init ws connection", "url", cfg.Url)
		return nil, err
	}
	return &Protocol{ws: ws, origin: cfg.Origin, emitOut: cfg.EmitOut}, nil
}

func (ptcl *Protocol) Origin() string { return ptcl.origin }

func (ptcl *Protocol) EmitOut(f func(*Message)) {
	ptcl.mu.Lock()
	defer ptcl.mu.Unlock()
	ptcl.emitOut = f
}

// Transmit stamps m with this peer's origin and sends it.
func (ptcl *Protocol) Transmit(m Message) error {
	m.Origin = ptcl.origin
	raw, err := m.Bytes()
	if err != nil {
		return err
	}
	if err := ptcl.ws.Write(raw); err != nil {
		log.Error("Failed to transmit", "kind", m.Kind, "err", err)
		return err
	}
	return nil
}

// Run reads frames until ctx is cancelled, reconnecting when the peer
// closes the connection.
func (ptcl *Protocol) Run(ctx context.Context) {
	go func() {
		<-ctx.Done()
		ptcl.ws.Close()
	}()

	for ctx.Err() == nil {
		in := ptcl.ws.Read()
		switch in.kind {
		case CONN_CLOSE, READ_FAILURE:
			if ctx.Err() != nil {
				return
			}
			if in.kind == READ_FAILURE {
				log.Error("Failed to read", "err", in.err)
			}
			log.Warn("Trying to reconnect on", "url", ptcl.ws.url)
			if err := ptcl.ws.TryReconn(ctx); err != nil {
				return
			}
			log.Info("Succefully reconnected")

		case READ_OK:
			msg, err := Parse(in.msg)
			if err != nil {
				log.Warn("Failed to parse", "msg", string(in.msg), "err", err)
				continue
			}
			if msg.Origin == ptcl.origin {
				continue
			}
			ptcl.mu.Lock()
			emit := ptcl.emitOut
			ptcl.mu.Unlock()
			if emit != nil {
				emit(msg)
			}
		}
	}
}
