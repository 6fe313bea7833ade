package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"pawvox/internal/dashboard"
	"pawvox/pkg/voice"
)

// required lists, per log kind, the parameters that must be present before
// anything is written.
var required = map[string][]string{
	"feeding":    {"pet", "amount"},
	"medication": {"pet", "medication"},
	"weight":     {"pet", "weight"},
	"activity":   {"pet", "activity"},
	"expense":    {"pet", "cost"},
}

var logKeys = map[string]voice.TemplateKey{
	"feeding":    voice.KeyLogFeeding,
	"medication": voice.KeyLogMedication,
	"weight":     voice.KeyLogWeight,
	"activity":   voice.KeyLogActivity,
	"expense":    voice.KeyLogExpense,
}

var prompts = map[string]string{
	"pet":        "Which pet is this for?",
	"amount":     "How much did %s eat?",
	"medication": "Which medication did %s get?",
	"weight":     "How much does %s weigh?",
	"activity":   "What did %s do?",
	"cost":       "How much did it cost?",
	"kind":       "What would you like to log? Feeding, medication, weight, activity or an expense?",
}

type DataEntry struct {
	api    dashboard.API
	notify Notifier
	now    func() time.Time
}

func NewDataEntry(api dashboard.API, notify Notifier, now func() time.Time) *DataEntry {
	if notify == nil {
		notify = NopNotifier{}
	}
	if now == nil {
		now = time.Now
	}
	return &DataEntry{api: api, notify: notify, now: now}
}

func (*DataEntry) CanExecute(in voice.Intent) bool { return in.Action == voice.ActionLogData }

func (*DataEntry) RequiredParameters() []string { return []string{"pet"} }

func (*DataEntry) Info() voice.CommandInfo {
	return voice.CommandInfo{
		Description: "Log feeding, medication, weight, activity or an expense",
		Examples: []string{
			"Log feeding for Max, 2 cups of dry food",
			"I gave Bella her heartgard",
			"Max weighs 32 pounds",
			"We walked for 30 minutes",
			"Spent $45 at the vet",
		},
	}
}

// fields returns in's parameters with the pet resolved against c.
func fields(in voice.Intent, c voice.Context) map[string]string {
	f := make(map[string]string, len(in.Parameters)+1)
	for k, v := range in.Parameters {
		f[k] = v
	}
	if f["pet"] == "" {
		f["pet"] = petName(in, c)
	}
	return f
}

func missing(kind string, f map[string]string) []string {
	var out []string
	for _, k := range required[kind] {
		if strings.TrimSpace(f[k]) == "" {
			out = append(out, k)
		}
	}
	return out
}

func needMore(kind string, f map[string]string, miss []string) voice.CommandResult {
	prompt := prompts[miss[0]]
	if strings.Contains(prompt, "%s") {
		prompt = fmt.Sprintf(prompt, f["pet"])
	}
	return voice.CommandResult{
		Key:              voice.KeyNeedMoreInfo,
		Message:          prompt,
		Data:             voice.MissingInfo{Kind: kind, Pet: f["pet"], Missing: miss},
		RequiresFollowUp: true,
		FollowUpPrompt:   prompt,
	}
}

func (d *DataEntry) Execute(ctx context.Context, in voice.Intent, c voice.Context) voice.CommandResult {
	kind := in.Target
	f := fields(in, c)
	if _, ok := required[kind]; !ok {
		return needMore("", f, []string{"kind"})
	}
	if miss := missing(kind, f); len(miss) > 0 {
		return needMore(kind, f, miss)
	}

	pet, err := d.api.FindPet(ctx, f["pet"])
	if err != nil {
		return failure(err, f["pet"], "find "+f["pet"])
	}

	data := voice.LogData{Kind: kind, Pet: pet.Name, Notes: in.Utterance}
	at := when(in, d.now(), "")
	var id string

	if kind == "expense" {
		amount, _ := strconv.ParseFloat(f["cost"], 64)
		data.Amount, data.Unit = amount, "dollars"
		loc := ""
		if e, ok := in.First(voice.EntityLocation); ok {
			loc = e.Value
		}
		exp, err := d.api.CreateExpense(ctx, dashboard.Expense{
			PetID:    pet.ID,
			Amount:   amount,
			Category: expenseCategory(loc),
			Notes:    in.Utterance,
			Date:     at,
		})
		if err != nil {
			return failure(err, pet.Name, "save that expense")
		}
		id = exp.ID
	} else {
		l := dashboard.HealthLog{
			PetID:    pet.ID,
			Type:     kind,
			Unit:     f["unit"],
			Details:  map[string]string{},
			Notes:    in.Utterance,
			LoggedAt: at,
		}
		switch kind {
		case "feeding":
			l.Value, _ = strconv.ParseFloat(f["amount"], 64)
			if l.Unit == "" {
				l.Unit = "cups"
			}
			if f["foodType"] != "" {
				l.Details["foodType"] = f["foodType"]
			}
			data.FoodType = f["foodType"]
		case "medication":
			l.Details["medication"] = f["medication"]
			if f["amount"] != "" {
				l.Value, _ = strconv.ParseFloat(f["amount"], 64)
			}
			data.Medication = f["medication"]
		case "weight":
			l.Value, _ = strconv.ParseFloat(f["weight"], 64)
			if l.Unit == "" {
				l.Unit = "lbs"
			}
		case "activity":
			l.Details["activity"] = f["activity"]
			if f["duration"] != "" {
				l.Details["duration"] = f["duration"]
				l.Value, _ = strconv.ParseFloat(f["amount"], 64)
			} else {
				l.Unit = ""
			}
			data.Activity = f["activity"]
		}
		data.Amount, data.Unit = l.Value, l.Unit

		saved, err := d.api.CreateHealthLog(ctx, l)
		if err != nil {
			return failure(err, pet.Name, "save that "+kind+" entry")
		}
		id = saved.ID
	}

	d.notify.NotifyDataChange(voice.DataChange{Type: kind, Action: "create", ID: id, Pet: pet.Name, At: d.now()})

	return voice.CommandResult{
		Success:         true,
		Key:             logKeys[kind],
		Data:            data,
		VisualComponent: kind + "_log",
	}
}

func expenseCategory(location string) string {
	switch location {
	case "vet", "clinic":
		return "veterinary"
	case "groomer":
		return "grooming"
	case "daycare", "kennel":
		return "boarding"
	case "":
		return "other"
	}
	return location
}
