package handlers

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"pawvox/internal/dashboard"
	"pawvox/pkg/voice"
)

var queryKeys = map[string]voice.TemplateKey{
	voice.QueryAppointments:  voice.KeyQueryAppointments,
	voice.QueryMedications:   voice.KeyQueryMedications,
	voice.QueryHealth:        voice.KeyQueryHealth,
	voice.QueryFeeding:       voice.KeyQueryFeeding,
	voice.QueryHealthRecords: voice.KeyQueryHealthRecords,
	voice.QueryMilestones:    voice.KeyQueryMilestones,
	voice.QueryTips:          voice.KeyQueryTips,
}

var showFullKeys = map[string]voice.TemplateKey{
	voice.QueryAppointments:  voice.KeyShowFullAppointments,
	voice.QueryMedications:   voice.KeyShowFullMedications,
	voice.QueryFeeding:       voice.KeyShowFullFeeding,
	voice.QueryHealthRecords: voice.KeyShowFullRecords,
}

var tips = map[string][]string{
	"dog": {
		"Aim for at least 30 minutes of exercise a day.",
		"Brush your dog's teeth a few times a week.",
		"Keep chocolate, grapes and xylitol out of reach.",
	},
	"cat": {
		"Keep the litter box clean and in a quiet spot.",
		"Offer fresh water away from the food bowl.",
		"Use puzzle feeders to keep indoor cats active.",
	},
	"bird": {
		"Give your bird time outside the cage every day.",
		"Avoid non-stick cookware fumes near birds.",
	},
	"rabbit": {
		"Hay should make up most of a rabbit's diet.",
		"Provide chew toys to keep teeth worn down.",
	},
	"fish": {
		"Test the water weekly and change 10 to 20 percent.",
		"Don't overfeed, fish only need what they eat in two minutes.",
	},
	"": {
		"Schedule a wellness check once a year.",
		"Keep vaccinations and parasite prevention current.",
		"Fresh water every day matters for every pet.",
	},
}

type Query struct {
	api dashboard.API
	now func() time.Time
}

func NewQuery(api dashboard.API, now func() time.Time) *Query {
	if now == nil {
		now = time.Now
	}
	return &Query{api: api, now: now}
}

func (*Query) CanExecute(in voice.Intent) bool {
	if in.Action != voice.ActionQuery {
		return false
	}
	_, ok := queryKeys[in.Target]
	return ok || in.Target == voice.QueryShowMore
}

func (*Query) RequiredParameters() []string { return []string{"pet"} }

func (*Query) Info() voice.CommandInfo {
	return voice.CommandInfo{
		Description: "Ask about appointments, medications, health, feeding, records or milestones",
		Examples: []string{
			"When is Max's next appointment?",
			"What medications is Bella on?",
			"How much did Max eat today?",
			"Show more details",
		},
	}
}

func (q *Query) Execute(ctx context.Context, in voice.Intent, c voice.Context) voice.CommandResult {
	if in.Target == voice.QueryShowMore {
		return q.showMore(c)
	}
	if in.Target == voice.QueryTips {
		return q.tips(ctx, in, c)
	}

	name := petName(in, c)
	if name == "" {
		return voice.CommandResult{
			Key:              voice.KeyNeedPet,
			Message:          "Which pet do you mean?",
			Data:             voice.QueryData{QueryType: in.Target},
			RequiresFollowUp: true,
			FollowUpPrompt:   "Which pet do you mean?",
		}
	}
	pet, err := q.api.FindPet(ctx, name)
	if err != nil {
		return failure(err, name, "look up "+name)
	}

	records, err := q.fetch(ctx, in.Target, pet.ID)
	if err != nil {
		return failure(err, pet.Name, "load "+strings.ReplaceAll(in.Target, "_", " "))
	}

	res := voice.CommandResult{
		Success:         true,
		Key:             queryKeys[in.Target],
		Data:            voice.QueryData{QueryType: in.Target, Pet: pet.Name, Records: records},
		VisualComponent: in.Target + "_list",
	}
	if voice.Summarized(in.Target, len(records)) {
		res.FollowUp = &voice.FollowUpState{QueryType: in.Target, Subject: pet.Name, Full: records}
	} else {
		res.ClearFollowUp = true
	}
	return res
}

// showMore returns the full result set behind the last summary.
func (q *Query) showMore(c voice.Context) voice.CommandResult {
	f := c.LastSummarized
	if f == nil {
		return voice.Failed(voice.KeyNothingToExpand, "There's nothing to expand on right now.")
	}
	key, ok := showFullKeys[f.QueryType]
	if !ok {
		key = queryKeys[f.QueryType]
	}
	return voice.CommandResult{
		Success:         true,
		Key:             key,
		Data:            voice.QueryData{QueryType: f.QueryType, Pet: f.Subject, Records: append([]voice.Record(nil), f.Full...)},
		VisualComponent: f.QueryType + "_list",
	}
}

func (q *Query) tips(ctx context.Context, in voice.Intent, c voice.Context) voice.CommandResult {
	kind := petType(in)
	name := petName(in, c)
	if kind == "" && name != "" {
		if pet, err := q.api.FindPet(ctx, name); err == nil {
			kind = strings.ToLower(pet.Type)
		}
	}
	list, ok := tips[kind]
	if !ok {
		list = tips[""]
	}
	records := make([]voice.Record, 0, len(list))
	for _, t := range list {
		records = append(records, voice.Record{Title: t})
	}
	return voice.CommandResult{
		Success:         true,
		Key:             voice.KeyQueryTips,
		Data:            voice.QueryData{QueryType: voice.QueryTips, Pet: name, Records: records},
		VisualComponent: "tips_list",
		ClearFollowUp:   true,
	}
}

func (q *Query) fetch(ctx context.Context, queryType, petID string) ([]voice.Record, error) {
	var out []voice.Record
	now := q.now()

	switch queryType {
	case voice.QueryAppointments:
		appts, err := q.api.ListAppointments(ctx, petID)
		if err != nil {
			return nil, err
		}
		for _, a := range appts {
			if a.Date.Before(now) {
				continue
			}
			out = append(out, voice.Record{Title: a.Title, When: a.Date, Detail: a.Location})
		}
		sortByWhen(out, false)

	case voice.QueryMedications:
		meds, err := q.api.ListMedications(ctx, petID)
		if err != nil {
			return nil, err
		}
		for _, m := range meds {
			detail := strings.TrimSpace(m.Dosage + " " + m.Frequency)
			out = append(out, voice.Record{Title: m.Name, When: m.NextDose, Detail: detail})
		}

	case voice.QueryFeeding, voice.QueryHealth:
		logType := ""
		if queryType == voice.QueryFeeding {
			logType = "feeding"
		}
		logs, err := q.api.ListHealthLogs(ctx, petID, logType)
		if err != nil {
			return nil, err
		}
		for _, l := range logs {
			out = append(out, voice.Record{Title: logTitle(l), When: l.LoggedAt, Detail: l.Notes})
		}
		sortByWhen(out, true)

	case voice.QueryHealthRecords:
		recs, err := q.api.ListHealthRecords(ctx, petID)
		if err != nil {
			return nil, err
		}
		for _, r := range recs {
			out = append(out, voice.Record{Title: r.Title, When: r.Date, Detail: r.Kind})
		}
		sortByWhen(out, true)

	case voice.QueryMilestones:
		ms, err := q.api.ListMilestones(ctx, petID)
		if err != nil {
			return nil, err
		}
		for _, m := range ms {
			out = append(out, voice.Record{Title: m.Title, When: m.Date})
		}
		sortByWhen(out, true)
	}
	return out, nil
}

func logTitle(l dashboard.HealthLog) string {
	var b strings.Builder
	if l.Value != 0 {
		fmt.Fprintf(&b, "%g", l.Value)
		if l.Unit != "" {
			b.WriteString(" " + l.Unit)
		}
		b.WriteString(" ")
	}
	switch {
	case l.Details["foodType"] != "":
		b.WriteString(l.Details["foodType"])
	case l.Details["medication"] != "":
		b.WriteString(l.Details["medication"])
	case l.Details["activity"] != "":
		b.WriteString(l.Details["activity"])
	default:
		b.WriteString(l.Type)
	}
	return strings.TrimSpace(b.String())
}

func sortByWhen(r []voice.Record, newestFirst bool) {
	sort.SliceStable(r, func(i, j int) bool {
		if newestFirst {
			return r[i].When.After(r[j].When)
		}
		return r[i].When.Before(r[j].When)
	})
}
