// Package assistant runs a voice turn end to end: parse, remember, dispatch,
// compose and attach synthesized audio.
package assistant

import (
	"context"
	"errors"
	log "log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"pawvox/internal/bridge"
	"pawvox/internal/compose"
	"pawvox/internal/convo"
	"pawvox/internal/dashboard"
	"pawvox/internal/dispatch"
	"pawvox/internal/metrics"
	"pawvox/internal/tts"
	"pawvox/pkg/util"
	"pawvox/pkg/voice"
)

const (
	RetryWindow  = 60 * time.Second
	MaxRetries   = 3
	TickInterval = 60 * time.Second

	helpHint = "Say \"help\" to hear what I can do."
)

type Parser interface {
	Parse(ctx context.Context, utterance string, c voice.Context) voice.Intent
	SetKnownPets(pets []string)
}

type Speaker interface {
	Speak(ctx context.Context, text string) (tts.CacheEntry, error)
}

// RolloverChecker resets monthly counters when the month changes.
type RolloverChecker interface {
	CheckRollover() bool
}

type retry struct {
	count int
	first time.Time
}

type Assistant struct {
	parser     Parser
	store      *convo.Store
	dispatcher *dispatch.Dispatcher
	composer   *compose.Composer

	speaker Speaker
	bridge  *bridge.Manager
	usage   RolloverChecker
	pets    dashboard.API
	now     func() time.Time

	mu      sync.Mutex
	pending *voice.Intent
	retries map[string]*retry
}

type Option func(*Assistant)

func WithSpeaker(s Speaker) Option { return func(a *Assistant) { a.speaker = s } }
func WithBridge(m *bridge.Manager) Option { return func(a *Assistant) { a.bridge = m } }
func WithUsage(u RolloverChecker) Option { return func(a *Assistant) { a.usage = u } }
func WithClock(now func() time.Time) Option { return func(a *Assistant) { a.now = now } }

// WithPets refreshes the parser's known pet names from api on every tick.
func WithPets(api dashboard.API) Option { return func(a *Assistant) { a.pets = api } }

func New(parser Parser, store *convo.Store, d *dispatch.Dispatcher, c *compose.Composer, opts ...Option) *Assistant {
	a := &Assistant{
		parser:     parser,
		store:      store,
		dispatcher: d,
		composer:   c,
		now:        time.Now,
		retries:    make(map[string]*retry),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Turn answers one utterance. It never fails: every error becomes a polite
// reply.
func (a *Assistant) Turn(ctx context.Context, text string) voice.Response {
	start := time.Now()
	text = strings.TrimSpace(text)
	snap := a.store.Snapshot()

	if text == "" {
		return a.finish(ctx, a.composer.ComposeError(compose.ErrNotUnderstood, snap), "", "empty", start)
	}
	if !snap.SessionActive {
		return a.finish(ctx, a.composer.ComposeError(compose.ErrUnavailable, snap), "", "closed", start)
	}

	if pending, ok := a.takePending(); ok {
		switch answer(text) {
		case answerYes:
			log.Debug("Confirmed pending intent", "action", pending.Action, "target", pending.Target)
			return a.run(ctx, pending, snap.ActivePet, start)
		case answerNo:
			return a.finish(ctx, a.composer.ComposeDeclined(pending, snap), string(pending.Action), "declined", start)
		}
		log.Debug("Dropping unanswered confirmation", "action", pending.Action)
	}

	in := a.parser.Parse(ctx, text, snap)
	fallback := slices.Contains(in.Ambiguities, voice.AmbiguityFallback)
	if fallback {
		metrics.NLUFallbacks.Inc()
	}

	if err := a.store.Update(in); err != nil {
		if errors.Is(err, convo.ErrSessionClosed) {
			return a.finish(ctx, a.composer.ComposeError(compose.ErrUnavailable, snap), string(in.Action), "closed", start)
		}
		log.Error("Failed to record turn", "err", err)
	}

	if in.RequiresConfirmation {
		a.setPending(in)
		return a.finish(ctx, a.composer.ComposeConfirmation(in, a.store.Snapshot()), string(in.Action), "confirm", start)
	}
	if fallback && (in.Target == "" || in.Target == "general") {
		resp := a.composer.ComposeClarification(in, a.store.Snapshot())
		if a.fail(in) >= MaxRetries {
			resp = a.composer.Append(resp, helpHint)
		}
		return a.finish(ctx, resp, string(in.Action), "clarify", start)
	}

	return a.run(ctx, in, snap.ActivePet, start)
}

func (a *Assistant) run(ctx context.Context, in voice.Intent, petBefore string, start time.Time) voice.Response {
	res := a.dispatcher.Execute(ctx, in)
	if res.Priority == "" {
		res.Priority = in.Priority
	}

	if nav, ok := res.Data.(voice.NavigationData); ok && res.Success {
		a.store.SetPage(nav.Path)
	}

	snap := a.store.Snapshot()
	resp := a.composer.Compose(res, snap)
	if res.Key == voice.KeyCannotExecute && (in.Target == "" || in.Target == "general") {
		resp = a.composer.ComposeClarification(in, snap)
	}

	status := "ok"
	if res.Success {
		a.succeed(in)
	} else {
		status = "failed"
		if a.fail(in) >= MaxRetries {
			resp = a.composer.Append(resp, helpHint)
		}
	}

	if a.bridge != nil && snap.ActivePet != petBefore {
		a.bridge.ActivePetChanged(snap.ActivePet)
	}
	return a.finish(ctx, resp, string(in.Action), status, start)
}

func (a *Assistant) finish(ctx context.Context, resp voice.Response, action, status string, start time.Time) voice.Response {
	if a.speaker != nil && resp.Text != "" {
		if e, err := a.speaker.Speak(ctx, resp.Text); err == nil {
			resp.AudioURL = e.AudioURL
		} else {
			log.Warn("No audio for reply", "err", err)
		}
		if err := a.composer.UpdateConservationMode(ctx); err != nil {
			log.Warn("Failed to update conservation mode", "err", err)
		}
		metrics.ConservationMode.Set(metrics.Bool(a.composer.Conserving()))
	}
	if action == "" {
		action = "none"
	}
	metrics.TurnsTotal.WithLabelValues(action, status).Inc()
	metrics.TurnLatency.Observe(time.Since(start).Seconds())
	return resp
}

func retryKey(in voice.Intent) string { return string(in.Action) + "|" + in.Target }

// fail counts a failed turn and returns how many failures the same
// action/target had inside the retry window.
func (a *Assistant) fail(in voice.Intent) int {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	k := retryKey(in)
	r, ok := a.retries[k]
	if !ok || now.Sub(r.first) > RetryWindow {
		r = &retry{first: now}
		a.retries[k] = r
	}
	r.count++
	return r.count
}

func (a *Assistant) succeed(in voice.Intent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.retries, retryKey(in))
}

func (a *Assistant) prune() {
	a.mu.Lock()
	defer a.mu.Unlock()
	now := a.now()
	for k, r := range a.retries {
		if now.Sub(r.first) > RetryWindow {
			delete(a.retries, k)
		}
	}
}

func (a *Assistant) setPending(in voice.Intent) {
	a.mu.Lock()
	defer a.mu.Unlock()
	cp := in.Clone()
	a.pending = &cp
}

func (a *Assistant) takePending() (voice.Intent, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.pending == nil {
		return voice.Intent{}, false
	}
	in := *a.pending
	a.pending = nil
	return in, true
}

func (a *Assistant) OpenSession() {
	a.store.Open()
	log.Info("Voice session opened")
}

// CloseSession clears the conversation along with any pending
// confirmation and retry counters.
func (a *Assistant) CloseSession() {
	a.store.Clear()
	a.mu.Lock()
	a.pending = nil
	a.retries = make(map[string]*retry)
	a.mu.Unlock()
	log.Info("Voice session closed")
}

func (a *Assistant) Context() voice.Context { return a.store.Snapshot() }

func (a *Assistant) Commands() []voice.CommandInfo { return a.dispatcher.AvailableCommands() }

// Run performs the periodic housekeeping until ctx is cancelled.
func (a *Assistant) Run(ctx context.Context) {
	a.tick(ctx)
	t := time.NewTicker(TickInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.tick(ctx)
		}
	}
}

func (a *Assistant) tick(ctx context.Context) {
	a.prune()
	if a.usage != nil && a.usage.CheckRollover() {
		log.Info("Monthly speech budget reset")
	}
	if err := a.composer.UpdateConservationMode(ctx); err != nil {
		log.Warn("Failed to update conservation mode", "err", err)
	}
	metrics.ConservationMode.Set(metrics.Bool(a.composer.Conserving()))
	if a.pets != nil {
		a.refreshPets(ctx)
	}
}

func (a *Assistant) refreshPets(ctx context.Context) {
	pets, err := a.pets.ListPets(ctx)
	if err != nil {
		log.Warn("Failed to refresh pet names", "err", err)
		return
	}
	a.parser.SetKnownPets(util.Map(pets, func(p dashboard.Pet) string { return p.Name }))
}

type reply int

const (
	answerOther reply = iota
	answerYes
	answerNo
)

var (
	yesWords = []string{"yes", "yeah", "yep", "yup", "sure", "confirm", "correct", "do it", "go ahead", "please do", "okay", "ok"}
	noWords  = []string{"no", "nope", "nah", "don't", "do not", "stop", "never mind", "nevermind", "forget it"}
)

// answer reads a yes or no from the start of text.
func answer(text string) reply {
	norm := strings.ToLower(strings.Trim(strings.TrimSpace(text), ".!?"))
	starts := func(words []string) bool {
		for _, w := range words {
			if norm == w || strings.HasPrefix(norm, w+" ") || strings.HasPrefix(norm, w+",") {
				return true
			}
		}
		return false
	}
	switch {
	case starts(noWords):
		return answerNo
	case starts(yesWords):
		return answerYes
	}
	return answerOther
}
