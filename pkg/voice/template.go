package voice

// TemplateKey selects the response template for a CommandResult.
type TemplateKey string

const (
	KeyNavigate             TemplateKey = "navigate"
	KeyNavigateUnknown      TemplateKey = "navigate_unknown"
	KeyLogFeeding           TemplateKey = "log_feeding"
	KeyLogMedication        TemplateKey = "log_medication"
	KeyLogWeight            TemplateKey = "log_weight"
	KeyLogActivity          TemplateKey = "log_activity"
	KeyLogExpense           TemplateKey = "log_expense"
	KeyNeedMoreInfo         TemplateKey = "need_more_info"
	KeyNeedPet              TemplateKey = "need_pet"
	KeyQueryAppointments    TemplateKey = "query_appointments"
	KeyQueryMedications     TemplateKey = "query_medications"
	KeyQueryHealth          TemplateKey = "query_health"
	KeyQueryFeeding         TemplateKey = "query_feeding"
	KeyQueryHealthRecords   TemplateKey = "query_health_records"
	KeyQueryMilestones      TemplateKey = "query_milestones"
	KeyQueryTips            TemplateKey = "query_tips"
	KeyShowFullAppointments TemplateKey = "show_full_appointments"
	KeyShowFullMedications  TemplateKey = "show_full_medications"
	KeyShowFullFeeding      TemplateKey = "show_full_feeding"
	KeyShowFullRecords      TemplateKey = "show_full_health_records"
	KeyNothingToExpand      TemplateKey = "nothing_to_expand"
	KeyScheduleAppointment  TemplateKey = "schedule_appointment"
	KeyActivityNotAllowed   TemplateKey = "activity_not_allowed"
	KeyHelp                 TemplateKey = "help"
	KeyNoHandler            TemplateKey = "no_handler"
	KeyCannotExecute        TemplateKey = "cannot_execute"
	KeyError                TemplateKey = "error"
)

var knownKeys = map[TemplateKey]bool{}

func init() {
	for _, k := range []TemplateKey{
		KeyNavigate, KeyNavigateUnknown, KeyLogFeeding, KeyLogMedication, KeyLogWeight,
		KeyLogActivity, KeyLogExpense, KeyNeedMoreInfo, KeyNeedPet, KeyQueryAppointments,
		KeyQueryMedications, KeyQueryHealth, KeyQueryFeeding, KeyQueryHealthRecords,
		KeyQueryMilestones, KeyQueryTips, KeyShowFullAppointments, KeyShowFullMedications,
		KeyShowFullFeeding, KeyShowFullRecords, KeyNothingToExpand, KeyScheduleAppointment,
		KeyActivityNotAllowed, KeyHelp, KeyNoHandler, KeyCannotExecute, KeyError,
	} {
		knownKeys[k] = true
	}
}

// Known reports whether k names a template.
func (k TemplateKey) Known() bool { return knownKeys[k] }

// Query types that carry a summary threshold.
const (
	QueryAppointments  = "appointments"
	QueryMedications   = "medications"
	QueryHealth        = "health"
	QueryFeeding       = "feeding"
	QueryHealthRecords = "health_records"
	QueryMilestones    = "milestones"
	QueryTips          = "tips"
	QueryShowMore      = "show_more_details"
)

var summaryThresholds = map[string]int{
	QueryAppointments:  3,
	QueryMedications:   3,
	QueryFeeding:       5,
	QueryHealthRecords: 4,
}

// SummaryThreshold returns the largest result set that is read out in full
// for queryType. ok is false for query types that are never summarised.
func SummaryThreshold(queryType string) (n int, ok bool) {
	n, ok = summaryThresholds[queryType]
	return n, ok
}

// Summarized reports whether n records of queryType cross the threshold.
func Summarized(queryType string, n int) bool {
	limit, ok := SummaryThreshold(queryType)
	return ok && n > limit
}
