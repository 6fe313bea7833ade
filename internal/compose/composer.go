// Package compose turns handler results into spoken and displayed replies.
// Under a low speech budget replies are shortened before synthesis.
package compose

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
	"sync"

	"pawvox/pkg/voice"
)

const (
	DefaultBudget    = 10000
	DefaultThreshold = 8000
)

// UsageReader reports the characters sent to the speech engine this month.
type UsageReader interface {
	CharactersUsed(ctx context.Context) (int, error)
}

type Composer struct {
	usage     UsageReader
	budget    int
	threshold int

	mu       sync.RWMutex
	conserve bool
}

type Option func(*Composer)

// WithBudget sets the monthly character budget and the usage at which
// conservation starts.
func WithBudget(budget, threshold int) Option {
	return func(c *Composer) {
		if budget > 0 {
			c.budget = budget
		}
		if threshold > 0 {
			c.threshold = threshold
		}
	}
}

func New(usage UsageReader, opts ...Option) *Composer {
	c := &Composer{usage: usage, budget: DefaultBudget, threshold: DefaultThreshold}
	for _, o := range opts {
		o(c)
	}
	return c
}

// UpdateConservationMode polls the usage reader and switches conservation
// on once usage reaches the threshold.
func (c *Composer) UpdateConservationMode(ctx context.Context) error {
	if c.usage == nil {
		return nil
	}
	used, err := c.usage.CharactersUsed(ctx)
	if err != nil {
		return fmt.Errorf("read speech usage: %w", err)
	}
	on := used >= c.threshold

	c.mu.Lock()
	changed := c.conserve != on
	c.conserve = on
	c.mu.Unlock()

	if changed {
		log.Info("Conservation mode changed", "on", on, "used", used, "budget", c.budget)
	}
	return nil
}

func (c *Composer) Conserving() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.conserve
}

// SetConservation forces the mode, bypassing the usage reader.
func (c *Composer) SetConservation(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conserve = on
}

func (c *Composer) finish(text string, data any, p voice.Priority) voice.Response {
	if !p.Valid() {
		p = voice.PriorityNormal
	}
	display := text
	if p == voice.PriorityUrgent {
		text = urgentPrefix + text
		display = text
	}
	if c.Conserving() {
		text = Shorten(text)
	}
	return voice.Response{Text: text, DisplayText: display, VisualData: data, Priority: p}
}

// Compose picks a template for res and renders it. Template choice goes
// through the result key, a key-valued message, the visual component,
// keywords in the message and finally a generic reply.
func (c *Composer) Compose(res voice.CommandResult, vc voice.Context) voice.Response {
	key := selectKey(res)
	var text string
	if t, ok := templates[key]; ok {
		text = t(res, vc)
	} else {
		text = fallback(res)
	}
	return c.finish(text, res.Data, res.Priority)
}

func selectKey(res voice.CommandResult) voice.TemplateKey {
	if res.Key.Known() {
		return res.Key
	}
	if k := voice.TemplateKey(res.Message); k.Known() {
		return k
	}
	if k, ok := byComponent[res.VisualComponent]; ok {
		return k
	}
	msg := strings.ToLower(res.Message)
	for _, m := range byKeyword {
		if strings.Contains(msg, m.word) {
			return m.key
		}
	}
	return ""
}

var byComponent = map[string]voice.TemplateKey{
	"navigation":          voice.KeyNavigate,
	"feeding_log":         voice.KeyLogFeeding,
	"medication_log":      voice.KeyLogMedication,
	"weight_log":          voice.KeyLogWeight,
	"activity_log":        voice.KeyLogActivity,
	"expense_log":         voice.KeyLogExpense,
	"appointments_list":   voice.KeyQueryAppointments,
	"medications_list":    voice.KeyQueryMedications,
	"health_list":         voice.KeyQueryHealth,
	"feeding_list":        voice.KeyQueryFeeding,
	"health_records_list": voice.KeyQueryHealthRecords,
	"milestones_list":     voice.KeyQueryMilestones,
	"tips_list":           voice.KeyQueryTips,
	"appointment_card":    voice.KeyScheduleAppointment,
	"help_list":           voice.KeyHelp,
}

var byKeyword = []struct {
	word string
	key  voice.TemplateKey
}{
	{"no handler", voice.KeyNoHandler},
	{"which pet", voice.KeyNeedPet},
	{"more info", voice.KeyNeedMoreInfo},
	{"appointment", voice.KeyQueryAppointments},
	{"medication", voice.KeyQueryMedications},
	{"error", voice.KeyError},
	{"failed", voice.KeyError},
}

func fallback(res voice.CommandResult) string {
	if res.Success {
		if res.Message != "" {
			return "Okay, " + lowerFirst(res.Message)
		}
		return "Okay, done."
	}
	if res.Message != "" {
		return apologize(res.Message)
	}
	return "Sorry, I couldn't do that."
}

type ErrorKind string

const (
	ErrNotUnderstood ErrorKind = "not_understood"
	ErrNetwork       ErrorKind = "network"
	ErrTimeout       ErrorKind = "timeout"
	ErrUnavailable   ErrorKind = "unavailable"
	ErrUnknown       ErrorKind = "unknown"
)

var errorTexts = map[ErrorKind]string{
	ErrNotUnderstood: "Sorry, I didn't catch that. Could you say it another way?",
	ErrNetwork:       "Sorry, I'm having trouble reaching the dashboard. Please try again in a moment.",
	ErrTimeout:       "Sorry, that took too long. Please try again.",
	ErrUnavailable:   "Sorry, voice commands are unavailable right now. Please use the dashboard directly.",
	ErrUnknown:       "Sorry, something went wrong. Please try again.",
}

func (c *Composer) ComposeError(kind ErrorKind, vc voice.Context) voice.Response {
	text, ok := errorTexts[kind]
	if !ok {
		text = errorTexts[ErrUnknown]
	}
	return c.finish(text, nil, voice.PriorityNormal)
}

// ComposeConfirmation asks the user to approve in before it runs.
func (c *Composer) ComposeConfirmation(in voice.Intent, vc voice.Context) voice.Response {
	text := fmt.Sprintf("Just to confirm, you want to %s? Please say yes or no.", describe(in, vc))
	return c.finish(text, in, in.Priority)
}

// ComposeClarification asks the user to rephrase an intent that could not
// be classified.
func (c *Composer) ComposeClarification(in voice.Intent, vc voice.Context) voice.Response {
	var text string
	switch {
	case in.Target == "" || in.Target == "general":
		text = "Sorry, I'm not sure what you meant. You can log something, ask a question or open a page. Try \"Log feeding for " + petOr(vc.ActivePet, "Max") + "\"."
	case petOrEmpty(in, vc) == "":
		text = fmt.Sprintf("Sorry, which pet is this about? I heard something about %s.", spoken(in.Target))
	default:
		text = fmt.Sprintf("Sorry, did you want to %s? Please say it again with a bit more detail.", describe(in, vc))
	}
	return c.finish(text, in, in.Priority)
}

func describe(in voice.Intent, vc voice.Context) string {
	pet := petOrEmpty(in, vc)
	target := spoken(in.Target)
	whose := target
	if pet != "" {
		whose = pet + "'s " + target
	}
	switch in.Action {
	case voice.ActionCancel:
		return "cancel " + whose
	case voice.ActionUpdate:
		return "update " + whose
	case voice.ActionBulkAction:
		return "change all of " + whose
	case voice.ActionLogData:
		if pet != "" {
			return "log " + target + " for " + pet
		}
		return "log " + target
	case voice.ActionSchedule:
		s := "book an appointment"
		if pet != "" {
			s += " for " + pet
		}
		if d := in.Param("date"); d != "" {
			s += " on " + d
		}
		return s
	case voice.ActionNavigate:
		return "open " + target
	}
	return "ask about " + whose
}

func petOrEmpty(in voice.Intent, vc voice.Context) string {
	if p := in.Param("pet"); p != "" {
		return p
	}
	if e, ok := in.Last(voice.EntityPetName); ok {
		return e.Value
	}
	return vc.ActivePet
}

func petOr(pet, def string) string {
	if pet == "" {
		return def
	}
	return pet
}

func spoken(s string) string {
	if s == "" {
		return "that"
	}
	return strings.ReplaceAll(s, "_", " ")
}

// ComposeDeclined acknowledges a "no" to a pending confirmation.
func (c *Composer) ComposeDeclined(in voice.Intent, vc voice.Context) voice.Response {
	return c.finish(fmt.Sprintf("Okay, I won't %s.", describe(in, vc)), nil, voice.PriorityNormal)
}

// Append adds sentence to r. The spoken text is shortened again in
// conservation mode.
func (c *Composer) Append(r voice.Response, sentence string) voice.Response {
	r.DisplayText = strings.TrimSpace(r.DisplayText + " " + sentence)
	if c.Conserving() {
		r.Text = Shorten(r.DisplayText)
	} else {
		r.Text = strings.TrimSpace(r.Text + " " + sentence)
	}
	return r
}
