package nlu

import (
	"strings"
	"unicode"

	"pawvox/pkg/voice"
)

// normalize lowercases text, drops possessive 's and apostrophes, and turns
// every other non-alphanumeric rune into a space. "$" survives as a token.
func normalize(text string) string {
	s := strings.ToLower(text)
	s = strings.ReplaceAll(s, "'s ", " ")
	s = strings.ReplaceAll(s, "’s ", " ")
	if strings.HasSuffix(s, "'s") || strings.HasSuffix(s, "’s") {
		s = strings.TrimSuffix(strings.TrimSuffix(s, "'s"), "’s")
	}
	s = strings.NewReplacer("'", "", "’", "", "$", " $ ").Replace(s)
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '$' {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// has matches a keyword on word boundaries. A trailing "*" matches any word
// starting with the stem.
func has(norm, kw string) bool {
	if stem, ok := strings.CutSuffix(kw, "*"); ok {
		return strings.Contains(" "+norm, " "+stem)
	}
	return strings.Contains(" "+norm+" ", " "+kw+" ")
}

func hasAny(norm string, kws []string) bool {
	for _, kw := range kws {
		if has(norm, kw) {
			return true
		}
	}
	return false
}

type actionRule struct {
	action   voice.Action
	keywords []string
}

// Order matters: the first rule with a hit wins.
var actionRules = []actionRule{
	{voice.ActionHelp, []string{"help", "what can you do", "what can i say", "what can i ask", "commands"}},
	{voice.ActionBulkAction, []string{"all my pets", "all pets", "all of my pets", "every pet", "each pet", "both pets"}},
	{voice.ActionCancel, []string{"cancel", "delete", "remove", "call off", "undo"}},
	{voice.ActionUpdate, []string{"update", "change", "edit", "reschedule", "modify", "correct"}},
	{voice.ActionSchedule, []string{"schedule", "book", "make an appointment", "set up an appointment", "remind me"}},
	{voice.ActionLogData, []string{"log", "record", "add", "track", "note", "fed", "ate", "gave", "weighed", "weighs", "walked", "spent", "paid"}},
	{voice.ActionNavigate, []string{"go to", "show", "open", "take me", "navigate", "switch to", "bring up", "display"}},
	{voice.ActionQuery, []string{"when", "what", "how", "which", "list", "any", "tell me", "is there", "are there", "does", "did", "do i", "has", "have"}},
}

// showMore takes precedence over navigation because it starts with "show".
var showMore = []string{"show more", "more details", "more detail", "tell me more", "show me everything", "see all", "hear them all", "full list", "read them all", "the rest"}

type targetRule struct {
	kind     string
	keywords []string
}

var targetRules = []targetRule{
	{voice.QueryHealthRecords, []string{"health record*", "medical record*", "records", "vaccin*", "shots", "immuni*"}},
	{voice.QueryAppointments, []string{"appointment*", "vet visit*", "checkup*", "check up", "vet"}},
	{voice.QueryMedications, []string{"medication*", "medicine*", "meds", "pill*", "tablet*", "dose*", "dosage", "flea", "heartworm", "heartgard", "nexgard", "bravecto", "apoquel", "rimadyl", "insulin", "frontline"}},
	{voice.QueryMilestones, []string{"milestone*", "birthday*", "achievement*", "gotcha day"}},
	{voice.QueryTips, []string{"tip", "tips", "advice", "suggest*", "recommend*", "should i"}},
	{"weight", []string{"weigh*", "weight*", "kg", "kgs", "lbs", "pounds"}},
	{"expense", []string{"expense*", "spent", "cost*", "paid", "bought", "$", "dollars", "bill*", "receipt*"}},
	{voice.QueryFeeding, []string{"feed*", "fed", "food", "meal*", "breakfast", "dinner", "lunch", "ate", "eat*", "kibble", "treat*", "cups"}},
	{"activity", []string{"walk*", "play*", "exercise*", "activit*", "run", "ran", "hike", "fetch", "swim*", "train*", "groom*", "bath*"}},
	{voice.QueryHealth, []string{"health*", "sick", "symptom*", "vomit*", "bleeding", "limping", "ill", "emergency", "injur*", "hurt*", "okay", "ok", "letharg*", "diarrhea", "choking", "seizure*"}},
}

// logKinds maps a detected kind to the data-entry target.
var logKinds = map[string]string{
	voice.QueryFeeding:     "feeding",
	voice.QueryMedications: "medication",
	"weight":               "weight",
	"activity":             "activity",
	"expense":              "expense",
}

var navigateTriggers = []string{"take me to", "go to", "navigate to", "switch to", "bring up", "show me", "open up", "open", "show", "display"}

var navigateFiller = map[string]bool{
	"the": true, "my": true, "me": true, "to": true, "page": true, "screen": true, "tab": true,
	"section": true, "view": true, "please": true, "for": true, "a": true,
}

// Classify picks an action and target from keyword containment. matched is
// 2 when both were found, 1 when only one was and 0 otherwise. When no
// action keyword is present but a target is, the action defaults to query.
func Classify(text string) (action voice.Action, target string, matched int) {
	norm := normalize(text)

	if hasAny(norm, showMore) {
		return voice.ActionQuery, voice.QueryShowMore, 2
	}

	for _, r := range actionRules {
		if hasAny(norm, r.keywords) {
			action = r.action
			matched++
			break
		}
	}

	switch action {
	case voice.ActionHelp:
		return action, "general", matched + 1
	case voice.ActionNavigate:
		if t := navigateTarget(norm); t != "" {
			return action, t, matched + 1
		}
		return action, "", matched
	}

	kind := detectKind(norm, false)
	if action == "" {
		if kind == "" {
			return voice.ActionQuery, "general", 0
		}
		action = voice.ActionQuery
	}

	switch action {
	case voice.ActionLogData:
		if k, ok := logKinds[detectKind(norm, true)]; ok {
			return action, k, matched + 1
		}
		// "What's in Bella's health record?" asks rather than logs.
		if !asksQuestion(norm) {
			return action, "", matched
		}
		action = voice.ActionQuery
		fallthrough
	case voice.ActionQuery:
		switch kind {
		case "":
			return action, "general", matched
		case "weight", "activity", "expense":
			// no dedicated query for these yet; health covers them
			return action, voice.QueryHealth, matched + 1
		}
		return action, kind, matched + 1
	case voice.ActionSchedule:
		return action, "appointment", matched + 1
	}

	if kind == "" {
		return action, "general", matched
	}
	return action, kind, matched + 1
}

var questionWords = map[string]bool{
	"what": true, "whats": true, "when": true, "whens": true, "where": true, "wheres": true,
	"which": true, "who": true, "how": true, "hows": true, "is": true, "are": true,
	"does": true, "did": true, "do": true, "has": true, "have": true, "can": true,
}

func asksQuestion(norm string) bool {
	first, _, _ := strings.Cut(norm, " ")
	return questionWords[first]
}

// detectKind returns the first target rule that hits. loggable restricts
// the search to kinds the data-entry handler accepts.
func detectKind(norm string, loggable bool) string {
	for _, r := range targetRules {
		if _, ok := logKinds[r.kind]; loggable && !ok {
			continue
		}
		if hasAny(norm, r.keywords) {
			return r.kind
		}
	}
	return ""
}

func navigateTarget(norm string) string {
	idx, trig := -1, ""
	for _, t := range navigateTriggers {
		if i := strings.Index(" "+norm+" ", " "+t+" "); i >= 0 && (idx < 0 || i < idx) {
			idx, trig = i, t
		}
	}
	if idx < 0 {
		return ""
	}
	rest := norm[min(len(norm), idx+len(trig)):]
	var words []string
	for _, w := range strings.Fields(rest) {
		if !navigateFiller[w] {
			words = append(words, w)
		}
	}
	return strings.Join(words, " ")
}
