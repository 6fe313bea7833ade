package nlu

import (
	"context"
	"fmt"
	log "log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"pawvox/pkg/voice"
)

// Confidence assigned per parsing path.
const (
	confidenceAPI       = 0.9
	confidenceHeuristic = 0.7
	confidencePartial   = 0.6
	confidenceFallback  = 0.5
)

var pronouns = []string{"he", "she", "him", "her", "his", "it", "its", "they", "them", "their"}

type Extractor struct {
	backend Backend
	breaker *gobreaker.CircuitBreaker
	now     func() time.Time

	mu   sync.RWMutex
	pets []string
}

type Option func(*Extractor)

// WithClock overrides the time source used to resolve relative dates.
func WithClock(now func() time.Time) Option {
	return func(e *Extractor) { e.now = now }
}

func WithKnownPets(pets ...string) Option {
	return func(e *Extractor) { e.pets = append([]string(nil), pets...) }
}

// NewExtractor builds an extractor. A nil backend makes every parse take the
// heuristic path.
func NewExtractor(backend Backend, opts ...Option) *Extractor {
	e := &Extractor{
		backend: backend,
		now:     time.Now,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "nlu",
			Timeout: 30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool {
				return c.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("NLU breaker changed state", "from", from.String(), "to", to.String())
			},
		}),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// SetKnownPets replaces the pet names matched during entity extraction.
func (e *Extractor) SetKnownPets(pets []string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pets = append([]string(nil), pets...)
}

func (e *Extractor) knownPets() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pets
}

// Parse turns an utterance into an intent. It never fails: when the backend
// is missing, failing or returns garbage, the heuristic parser answers.
func (e *Extractor) Parse(ctx context.Context, utterance string, c voice.Context) voice.Intent {
	pets := e.knownPets()
	entities := ExtractEntities(utterance, pets, e.now())

	var in voice.Intent
	if api, err := e.askBackend(ctx, utterance, c, pets); err == nil {
		in = fromWire(api, entities)
	} else {
		if e.backend != nil {
			log.Warn("NLU backend unusable, using heuristics", "err", err)
		}
		in = Heuristic(utterance, entities)
	}

	in.ID = uuid.NewString()
	in.Utterance = utterance
	in.Priority = maxPriority(DetectPriority(utterance), in.Priority)
	e.fillParameters(&in, utterance, c)
	in.RequiresConfirmation = in.RequiresConfirmation || needsConfirmation(in)
	return in
}

func (e *Extractor) askBackend(ctx context.Context, utterance string, c voice.Context, pets []string) (wireIntent, error) {
	if e.backend == nil {
		return wireIntent{}, fmt.Errorf("no NLU backend configured")
	}
	raw, err := e.breaker.Execute(func() (interface{}, error) {
		return e.backend.Complete(ctx, systemPrompt, userPrompt(utterance, c.ActivePet, c.CurrentPage, pets))
	})
	if err != nil {
		return wireIntent{}, err
	}
	w, err := decodeReply(raw.(string))
	if err != nil {
		return wireIntent{}, err
	}
	if !voice.Action(w.Action).Valid() {
		return wireIntent{}, fmt.Errorf("unknown action %q", w.Action)
	}
	return w, nil
}

// Heuristic builds an intent from keyword classification alone. It serves
// both the malformed-reply fallback and the offline path.
func Heuristic(utterance string, entities []voice.Entity) voice.Intent {
	action, target, matched := Classify(utterance)
	in := voice.Intent{
		Action:     action,
		Target:     target,
		Parameters: map[string]string{},
		Priority:   DetectPriority(utterance),
		Entities:   entities,
	}
	switch matched {
	case 2:
		in.Confidence = confidenceHeuristic
	case 1:
		in.Confidence = confidencePartial
	default:
		in.Confidence = confidenceFallback
		in.Ambiguities = []string{voice.AmbiguityFallback}
	}
	return in
}

func fromWire(w wireIntent, local []voice.Entity) voice.Intent {
	in := voice.Intent{
		Action:               voice.Action(w.Action),
		Target:               strings.ToLower(strings.TrimSpace(w.Target)),
		Parameters:           map[string]string{},
		Confidence:           w.Confidence,
		RequiresConfirmation: w.RequiresConfirmation,
		Priority:             voice.Priority(w.Priority),
		Entities:             local,
	}
	if in.Confidence <= 0 || in.Confidence > 1 {
		in.Confidence = confidenceAPI
	}
	if !in.Priority.Valid() {
		in.Priority = voice.PriorityNormal
	}
	for k, v := range w.Parameters {
		if v == nil {
			continue
		}
		in.Parameters[k] = fmt.Sprint(v)
	}

	seen := map[string]bool{}
	for _, e := range local {
		seen[string(e.Type)+"|"+strings.ToLower(e.Value)] = true
	}
	for _, we := range w.Entities {
		key := we.Type + "|" + strings.ToLower(we.Value)
		if we.Value == "" || seen[key] {
			continue
		}
		seen[key] = true
		conf := we.Confidence
		if conf <= 0 || conf > 1 {
			conf = 0.8
		}
		in.Entities = append(in.Entities, voice.Entity{Type: voice.EntityType(we.Type), Value: we.Value, Confidence: conf, Resolved: we.Value})
	}
	return in
}

// fillParameters copies entity values into parameters the handlers read and
// resolves pronouns to the active pet.
func (e *Extractor) fillParameters(in *voice.Intent, utterance string, c voice.Context) {
	if in.Parameters == nil {
		in.Parameters = map[string]string{}
	}
	set := func(k, v string) {
		if v != "" && in.Parameters[k] == "" {
			in.Parameters[k] = v
		}
	}

	if pet, ok := in.Last(voice.EntityPetName); ok {
		set("pet", pet.Value)
	} else if c.ActivePet != "" && hasAny(normalize(utterance), pronouns) {
		set("pet", c.ActivePet)
	}

	if amt, ok := in.First(voice.EntityAmount); ok {
		set("amount", amt.Value)
	}
	if u, ok := in.First(voice.EntityUnit); ok {
		set("unit", u.Value)
		if u.Value == "dollars" {
			if amt, ok := in.First(voice.EntityAmount); ok {
				set("cost", amt.Value)
			}
		}
		if r, _ := u.Resolved.(string); r == "minutes" || r == "hours" {
			if amt, ok := in.First(voice.EntityAmount); ok {
				set("duration", amt.Value+" "+r)
			}
		}
	}
	if m, ok := in.First(voice.EntityMedication); ok {
		set("medication", m.Value)
	}
	if a, ok := in.First(voice.EntityActivity); ok {
		if r, _ := a.Resolved.(string); r != "" {
			set("activity", r)
		}
	}
	if d, ok := in.First(voice.EntityDate); ok {
		if t, ok := d.Resolved.(time.Time); ok {
			set("date", t.Format("2006-01-02"))
		}
	}
	if t, ok := in.First(voice.EntityTime); ok {
		if s, _ := t.Resolved.(string); s != "" {
			set("time", s)
		}
	}
	if in.Target == "feeding" || in.Target == voice.QueryFeeding {
		set("foodType", FoodType(utterance))
	}
	if in.Target == "weight" {
		if amt, ok := in.First(voice.EntityAmount); ok {
			if _, err := strconv.ParseFloat(amt.Value, 64); err == nil {
				set("weight", amt.Value)
			}
		}
	}
}

func needsConfirmation(in voice.Intent) bool {
	switch in.Action {
	case voice.ActionCancel, voice.ActionUpdate, voice.ActionBulkAction:
		return true
	case voice.ActionLogData, voice.ActionSchedule:
		return in.Confidence <= confidenceFallback
	}
	return false
}
