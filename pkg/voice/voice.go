// Package voice holds the values that flow through a single voice turn:
// intents, entities, context snapshots, handler results and responses.
package voice

import "time"

type Action string

const (
	ActionNavigate   Action = "navigate"
	ActionLogData    Action = "log_data"
	ActionQuery      Action = "query"
	ActionSchedule   Action = "schedule"
	ActionCancel     Action = "cancel"
	ActionUpdate     Action = "update"
	ActionBulkAction Action = "bulk_action"
	ActionHelp       Action = "help"
)

var actions = map[Action]bool{
	ActionNavigate: true, ActionLogData: true, ActionQuery: true, ActionSchedule: true,
	ActionCancel: true, ActionUpdate: true, ActionBulkAction: true, ActionHelp: true,
}

func (a Action) Valid() bool { return actions[a] }

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

type EntityType string

const (
	EntityPetName    EntityType = "pet_name"
	EntityPetType    EntityType = "pet_type"
	EntityDate       EntityType = "date"
	EntityTime       EntityType = "time"
	EntityAmount     EntityType = "amount"
	EntityUnit       EntityType = "unit"
	EntityMedication EntityType = "medication"
	EntityActivity   EntityType = "activity"
	EntityLocation   EntityType = "location"
)

// Entity is a span pulled out of an utterance. Resolved carries the typed
// value when one could be computed (float64 for amounts, time.Time for dates).
type Entity struct {
	Type       EntityType `json:"type"`
	Value      string     `json:"value"`
	Confidence float64    `json:"confidence"`
	Resolved   any        `json:"resolvedValue,omitempty"`
}

// AmbiguityFallback marks intents that came out of the heuristic parser
// without a usable classification.
const AmbiguityFallback = "fallback parsing"

type Intent struct {
	ID                   string            `json:"id"`
	Action               Action            `json:"action"`
	Target               string            `json:"target"`
	Parameters           map[string]string `json:"parameters,omitempty"`
	Confidence           float64           `json:"confidence"`
	RequiresConfirmation bool              `json:"requiresConfirmation"`
	Priority             Priority          `json:"priority"`
	Entities             []Entity          `json:"entities,omitempty"`
	Ambiguities          []string          `json:"ambiguities,omitempty"`
	Utterance            string            `json:"utterance,omitempty"`
}

// Param returns a parameter or "" when unset.
func (in Intent) Param(key string) string {
	if in.Parameters == nil {
		return ""
	}
	return in.Parameters[key]
}

// First returns the first entity of type t.
func (in Intent) First(t EntityType) (Entity, bool) {
	for _, e := range in.Entities {
		if e.Type == t {
			return e, true
		}
	}
	return Entity{}, false
}

// Last returns the last entity of type t.
func (in Intent) Last(t EntityType) (Entity, bool) {
	for i := len(in.Entities) - 1; i >= 0; i-- {
		if in.Entities[i].Type == t {
			return in.Entities[i], true
		}
	}
	return Entity{}, false
}

// Clone copies the slices and map so the result can be stored without
// aliasing the caller's intent.
func (in Intent) Clone() Intent {
	out := in
	if in.Parameters != nil {
		out.Parameters = make(map[string]string, len(in.Parameters))
		for k, v := range in.Parameters {
			out.Parameters[k] = v
		}
	}
	out.Entities = append([]Entity(nil), in.Entities...)
	out.Ambiguities = append([]string(nil), in.Ambiguities...)
	return out
}

// FollowUpState is what a summarised query leaves behind so that a later
// "show more details" can read back the full result set.
type FollowUpState struct {
	QueryType string   `json:"queryType"`
	Subject   string   `json:"subject"`
	Full      []Record `json:"fullData"`
}

type Context struct {
	PreviousIntents []Intent       `json:"previousIntents"`
	ActivePet       string         `json:"activePet,omitempty"`
	CurrentPage     string         `json:"currentPage,omitempty"`
	RecentEntities  []Entity       `json:"recentEntities"`
	LastSummarized  *FollowUpState `json:"lastSummarizedQuery,omitempty"`
	SessionActive   bool           `json:"sessionActive"`
}

// Record is one row of a query result, already flattened for speech.
type Record struct {
	Title  string    `json:"title"`
	When   time.Time `json:"when,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// QueryData is the payload of a successful query result.
type QueryData struct {
	QueryType string   `json:"queryType"`
	Pet       string   `json:"pet"`
	Records   []Record `json:"records"`
}

// LogData is the payload of a successful data-entry result.
type LogData struct {
	Kind       string  `json:"kind"`
	Pet        string  `json:"pet"`
	Amount     float64 `json:"amount,omitempty"`
	Unit       string  `json:"unit,omitempty"`
	FoodType   string  `json:"foodType,omitempty"`
	Medication string  `json:"medication,omitempty"`
	Activity   string  `json:"activity,omitempty"`
	Notes      string  `json:"notes,omitempty"`
}

// NavigationData is the payload of a successful navigation result.
type NavigationData struct {
	Target string `json:"target"`
	Path   string `json:"path"`
	Pet    string `json:"pet,omitempty"`
}

// CommandInfo describes a registered command for help output.
type CommandInfo struct {
	Action      Action   `json:"action"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
}

// CommandResult is what a handler returns. A nil FollowUp with ClearFollowUp
// set drops the remembered summary.
type CommandResult struct {
	Success          bool           `json:"success"`
	Data             any            `json:"data,omitempty"`
	Key              TemplateKey    `json:"responseTemplateKey,omitempty"`
	Message          string         `json:"humanMessage,omitempty"`
	VisualComponent  string         `json:"visualComponent,omitempty"`
	RequiresFollowUp bool           `json:"requiresFollowUp"`
	FollowUpPrompt   string         `json:"followUpPrompt,omitempty"`
	FollowUp         *FollowUpState `json:"-"`
	ClearFollowUp    bool           `json:"-"`
	Priority         Priority       `json:"priority,omitempty"`
}

type Response struct {
	Text        string   `json:"text"`
	DisplayText string   `json:"displayText,omitempty"`
	VisualData  any      `json:"visualData,omitempty"`
	AudioURL    string   `json:"audioUrl,omitempty"`
	Priority    Priority `json:"priority"`
}

// Failed builds a failure result carrying only a human message.
func Failed(key TemplateKey, msg string) CommandResult {
	return CommandResult{Success: false, Key: key, Message: msg}
}

// AppointmentData is the payload of a successful schedule result.
type AppointmentData struct {
	Pet      string    `json:"pet"`
	Title    string    `json:"title"`
	When     time.Time `json:"when"`
	Location string    `json:"location,omitempty"`
}

// MissingInfo lists what a data-entry request still needs.
type MissingInfo struct {
	Kind    string   `json:"kind"`
	Pet     string   `json:"pet,omitempty"`
	Missing []string `json:"missing"`
}

// ActivityRejection explains why an activity was refused for a pet.
type ActivityRejection struct {
	Pet      string   `json:"pet"`
	PetType  string   `json:"petType"`
	Activity string   `json:"activity"`
	Allowed  []string `json:"allowed"`
}

type HelpData struct {
	Page     string   `json:"page,omitempty"`
	Commands []string `json:"commands"`
}

// DataChange announces a record created or modified by a voice command.
type DataChange struct {
	Type   string    `json:"type"`
	Action string    `json:"action"`
	ID     string    `json:"id,omitempty"`
	Pet    string    `json:"pet,omitempty"`
	At     time.Time `json:"at"`
}
