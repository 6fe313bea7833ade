package compose

import (
	"fmt"
	"strings"
	"time"

	"pawvox/pkg/voice"
)

const urgentPrefix = "This sounds urgent. Contact your vet or an emergency clinic right away. "

type template func(res voice.CommandResult, vc voice.Context) string

var templates map[voice.TemplateKey]template

func init() {
	templates = map[voice.TemplateKey]template{
		voice.KeyNavigate:        navigate,
		voice.KeyNavigateUnknown: apologetic,
		voice.KeyLogFeeding:      logFeeding,
		voice.KeyLogMedication:   logMedication,
		voice.KeyLogWeight:       logWeight,
		voice.KeyLogActivity:     logActivity,
		voice.KeyLogExpense:      logExpense,
		voice.KeyNeedMoreInfo:    needMoreInfo,
		voice.KeyNeedPet:         needPet,

		voice.KeyQueryAppointments:  listing(voice.QueryAppointments),
		voice.KeyQueryMedications:   listing(voice.QueryMedications),
		voice.KeyQueryHealth:        listing(voice.QueryHealth),
		voice.KeyQueryFeeding:       listing(voice.QueryFeeding),
		voice.KeyQueryHealthRecords: listing(voice.QueryHealthRecords),
		voice.KeyQueryMilestones:    listing(voice.QueryMilestones),
		voice.KeyQueryTips:          queryTips,

		voice.KeyShowFullAppointments: fullListing(voice.QueryAppointments),
		voice.KeyShowFullMedications:  fullListing(voice.QueryMedications),
		voice.KeyShowFullFeeding:      fullListing(voice.QueryFeeding),
		voice.KeyShowFullRecords:      fullListing(voice.QueryHealthRecords),
		voice.KeyNothingToExpand:      nothingToExpand,

		voice.KeyScheduleAppointment: scheduled,
		voice.KeyActivityNotAllowed:  activityNotAllowed,
		voice.KeyHelp:                help,
		voice.KeyNoHandler:           noHandler,
		voice.KeyCannotExecute:       apologetic,
		voice.KeyError:               apologetic,
	}
}

type listText struct {
	noun  string
	empty string
}

var lists = map[string]listText{
	voice.QueryAppointments:  {"upcoming appointments", "%s doesn't have any upcoming appointments. Would you like to schedule one?"},
	voice.QueryMedications:   {"medications", "%s isn't on any medications right now. Would you like to add one?"},
	voice.QueryHealth:        {"recent health logs", "I don't have any recent health logs for %s. Would you like to log something?"},
	voice.QueryFeeding:       {"feeding logs", "There are no feeding logs for %s yet. Would you like to log a meal?"},
	voice.QueryHealthRecords: {"health records", "%s doesn't have any health records yet. Would you like to add one?"},
	voice.QueryMilestones:    {"milestones", "%s doesn't have any milestones yet. Would you like to add one?"},
}

// howMany caps how many records an unsummarised reply reads out.
const howMany = 5

func listing(queryType string) template {
	return func(res voice.CommandResult, vc voice.Context) string {
		q, _ := res.Data.(voice.QueryData)
		pet := subject(q.Pet, vc)
		lt := lists[queryType]
		n := len(q.Records)

		if n == 0 {
			return "Hmm, " + lowerFirst(fmt.Sprintf(lt.empty, pet))
		}
		if voice.Summarized(queryType, n) {
			return fmt.Sprintf("Here's what I found. %s has %d %s. The latest is %s. Say \"show more details\" to hear them all.",
				pet, n, lt.noun, describeRecord(q.Records[0]))
		}
		shown := q.Records
		if len(shown) > howMany {
			shown = shown[:howMany]
		}
		return fmt.Sprintf("Here's what I found. %s has %s: %s.", pet, count(n, lt.noun), joinRecords(shown))
	}
}

func fullListing(queryType string) template {
	return func(res voice.CommandResult, vc voice.Context) string {
		q, _ := res.Data.(voice.QueryData)
		pet := subject(q.Pet, vc)
		lt := lists[queryType]
		if len(q.Records) == 0 {
			return "Hmm, " + lowerFirst(fmt.Sprintf(lt.empty, pet))
		}
		return fmt.Sprintf("Here's everything. %s has %s: %s.", pet, count(len(q.Records), lt.noun), joinRecords(q.Records))
	}
}

func nothingToExpand(voice.CommandResult, voice.Context) string {
	return "Sorry, there's nothing to expand on right now. Try asking about appointments or medications first."
}

func queryTips(res voice.CommandResult, _ voice.Context) string {
	q, _ := res.Data.(voice.QueryData)
	titles := make([]string, 0, len(q.Records))
	for _, r := range q.Records {
		titles = append(titles, r.Title)
	}
	return "Happy to help! Here are a few tips. " + strings.Join(titles, " ")
}

func navigate(res voice.CommandResult, vc voice.Context) string {
	nav, _ := res.Data.(voice.NavigationData)
	if nav.Pet != "" {
		return fmt.Sprintf("Sure, opening %s for %s.", nav.Target, nav.Pet)
	}
	return fmt.Sprintf("Sure, opening %s.", nav.Target)
}

func logFeeding(res voice.CommandResult, vc voice.Context) string {
	d, _ := res.Data.(voice.LogData)
	food := d.FoodType
	if food == "" {
		food = "food"
	}
	if d.Amount > 0 {
		return fmt.Sprintf("Got it! I logged %s of %s for %s.", quantity(d.Amount, d.Unit), food, subject(d.Pet, vc))
	}
	return fmt.Sprintf("Got it! I logged a meal of %s for %s.", food, subject(d.Pet, vc))
}

func logMedication(res voice.CommandResult, vc voice.Context) string {
	d, _ := res.Data.(voice.LogData)
	return fmt.Sprintf("Got it! I logged %s for %s.", petOr(d.Medication, "the medication"), subject(d.Pet, vc))
}

func logWeight(res voice.CommandResult, vc voice.Context) string {
	d, _ := res.Data.(voice.LogData)
	return fmt.Sprintf("Got it! I recorded %s's weight as %s.", subject(d.Pet, vc), quantity(d.Amount, d.Unit))
}

func logActivity(res voice.CommandResult, vc voice.Context) string {
	d, _ := res.Data.(voice.LogData)
	activity := petOr(d.Activity, "activity")
	if d.Amount > 0 && d.Unit != "" {
		return fmt.Sprintf("Great! I logged %s of %s for %s.", quantity(d.Amount, d.Unit), activity, subject(d.Pet, vc))
	}
	return fmt.Sprintf("Great! I logged %s for %s.", activity, subject(d.Pet, vc))
}

func logExpense(res voice.CommandResult, vc voice.Context) string {
	d, _ := res.Data.(voice.LogData)
	return fmt.Sprintf("Got it! I recorded a $%.2f expense for %s.", d.Amount, subject(d.Pet, vc))
}

func needMoreInfo(res voice.CommandResult, _ voice.Context) string {
	prompt := res.FollowUpPrompt
	if prompt == "" {
		prompt = res.Message
	}
	if prompt == "" {
		prompt = "Can you tell me a bit more?"
	}
	return "Sure, " + lowerFirst(prompt)
}

func needPet(res voice.CommandResult, _ voice.Context) string {
	msg := res.Message
	if msg == "" {
		msg = "Which pet do you mean?"
	}
	return "Okay, " + lowerFirst(msg)
}

func scheduled(res voice.CommandResult, vc voice.Context) string {
	a, _ := res.Data.(voice.AppointmentData)
	s := fmt.Sprintf("Great! I booked %s for %s on %s", strings.ToLower(a.Title), subject(a.Pet, vc), spokenTime(a.When))
	if a.Location != "" {
		s += " at the " + a.Location
	}
	return s + "."
}

func activityNotAllowed(res voice.CommandResult, vc voice.Context) string {
	r, ok := res.Data.(voice.ActivityRejection)
	if !ok {
		return apologize(res.Message)
	}
	alts := r.Allowed
	if len(alts) > 3 {
		alts = alts[:3]
	}
	return fmt.Sprintf("Sorry, %s isn't an activity for a %s like %s. You could log %s instead.",
		r.Activity, r.PetType, subject(r.Pet, vc), orList(alts))
}

func help(res voice.CommandResult, _ voice.Context) string {
	h, _ := res.Data.(voice.HelpData)
	quoted := make([]string, 0, len(h.Commands))
	for _, c := range h.Commands {
		quoted = append(quoted, "\""+c+"\"")
	}
	return "Happy to help! You can say things like " + orList(quoted) + "."
}

func noHandler(voice.CommandResult, voice.Context) string {
	return "Sorry, I can't handle that kind of request yet."
}

func apologetic(res voice.CommandResult, _ voice.Context) string {
	if res.Message == "" {
		return "Sorry, I couldn't do that."
	}
	return apologize(res.Message)
}

func apologize(msg string) string {
	if strings.HasPrefix(strings.ToLower(msg), "sorry") {
		return msg
	}
	return "Sorry, " + lowerFirst(msg)
}

func subject(pet string, vc voice.Context) string {
	if pet != "" {
		return pet
	}
	if vc.ActivePet != "" {
		return vc.ActivePet
	}
	return "your pet"
}

func quantity(v float64, unit string) string {
	s := fmt.Sprintf("%g", v)
	if unit != "" {
		s += " " + unit
	}
	return s
}

func count(n int, noun string) string {
	if n == 1 {
		noun = strings.TrimSuffix(noun, "s")
	}
	return fmt.Sprintf("%d %s", n, noun)
}

func describeRecord(r voice.Record) string {
	s := r.Title
	if !r.When.IsZero() {
		s += " on " + spokenTime(r.When)
	}
	if r.Detail != "" {
		s += " (" + r.Detail + ")"
	}
	return s
}

func joinRecords(rs []voice.Record) string {
	parts := make([]string, 0, len(rs))
	for _, r := range rs {
		parts = append(parts, describeRecord(r))
	}
	return strings.Join(parts, "; ")
}

func spokenTime(t time.Time) string {
	if t.IsZero() {
		return "the requested day"
	}
	s := t.Format("Mon, Jan 2")
	if t.Hour() != 0 || t.Minute() != 0 {
		s += " at " + t.Format("3:04 PM")
	}
	return s
}

func orList(items []string) string {
	switch len(items) {
	case 0:
		return "something else"
	case 1:
		return items[0]
	}
	return strings.Join(items[:len(items)-1], ", ") + " or " + items[len(items)-1]
}

// lowerFirst lowercases a leading question or filler word so the text can
// follow an opener. Names and "I" keep their case.
func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if s == "I" || strings.HasPrefix(s, "I ") || strings.HasPrefix(s, "I'") {
		return s
	}
	word := s
	if i := strings.IndexAny(s, " ,.?!"); i > 0 {
		word = s[:i]
	}
	if !commonOpeners[strings.ToLower(word)] {
		return s
	}
	return strings.ToLower(s[:1]) + s[1:]
}

var commonOpeners = map[string]bool{
	"which": true, "what": true, "how": true, "when": true, "where": true, "who": true,
	"there": true, "there's": true, "that": true, "the": true, "this": true, "can": true,
	"could": true, "please": true, "do": true, "let": true,
}
