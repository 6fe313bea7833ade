package nlu

import (
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	"pawvox/pkg/voice"
)

var (
	clockRe    = regexp.MustCompile(`(?i)\b(\d{1,2}):(\d{2})\s*(am|pm|a\.m\.|p\.m\.)?`)
	hourRe     = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(am|pm|a\.m\.|p\.m\.)`)
	slashDate  = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	monthDate  = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b`)
	amountRe   = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(kgs?|kilograms?|lbs?|pounds?|grams?|g|oz|ounces?|cups?|tablets?|pills?|capsules?|mg|ml|drops?|scoops?|cans?|treats?|minutes?|mins?|hours?|hrs?|miles?|km|dollars?)\b`)
	dollarRe   = regexp.MustCompile(`\$(\d+(?:\.\d{1,2})?)`)
	foodTypeRe = regexp.MustCompile(`(?i)\b((?:dry|wet|raw|canned|homemade|fresh|grain[- ]free|puppy|kitten|senior|prescription)\s+food|kibble|treats?)\b`)
	forNameRe  = regexp.MustCompile(`\b(?:for|fed|walked|weighed|gave|give|feed|walk)\s+([A-Z][a-zA-Z]+)\b`)
	possessRe  = regexp.MustCompile(`\b([A-Z][a-zA-Z]+)(?:'s|’s)\b`)
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "sept": time.September, "oct": time.October, "nov": time.November,
	"dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

// activities maps spoken forms to the canonical activity.
var activities = map[string]string{
	"feeding": "feeding", "feed": "feeding", "fed": "feeding",
	"walk": "walk", "walked": "walk", "walking": "walk", "walks": "walk",
	"play": "play", "played": "play", "playing": "play", "playtime": "play",
	"grooming": "grooming", "groomed": "grooming", "groom": "grooming",
	"training": "training", "trained": "training",
	"swimming": "swimming", "swim": "swimming", "swam": "swimming",
	"running": "running", "run": "running", "ran": "running",
	"fetch": "fetch", "hike": "hiking", "hiking": "hiking",
	"bath": "bath", "bathed": "bath", "flying": "flying", "climbing": "climbing",
	"litter": "litter training",
}

var medications = []string{
	"heartgard", "nexgard", "bravecto", "simparica", "frontline", "revolution", "apoquel",
	"rimadyl", "carprofen", "gabapentin", "metacam", "meloxicam", "prednisone", "amoxicillin",
	"clavamox", "insulin", "trifexis", "sentinel", "interceptor", "cerenia", "benadryl", "cytopoint",
}

// petTypes pairs a spoken word with the dashboard pet type.
var petTypes = [][2]string{
	{"dog", "dog"}, {"dogs", "dog"}, {"puppy", "dog"}, {"pup", "dog"},
	{"cat", "cat"}, {"cats", "cat"}, {"kitten", "cat"}, {"kitty", "cat"},
	{"bird", "bird"}, {"parrot", "bird"}, {"parakeet", "bird"}, {"budgie", "bird"},
	{"rabbit", "rabbit"}, {"bunny", "rabbit"}, {"hamster", "hamster"}, {"guinea pig", "guinea pig"},
	{"fish", "fish"}, {"turtle", "reptile"}, {"lizard", "reptile"}, {"snake", "reptile"}, {"gecko", "reptile"},
	{"horse", "horse"}, {"ferret", "ferret"},
}

var locations = []string{"dog park", "park", "beach", "vet", "clinic", "home", "backyard", "yard", "groomer", "daycare", "kennel", "trail", "lake"}

// capitalised words that the name patterns must never treat as pets
var notNames = map[string]bool{
	"I": true, "My": true, "The": true, "Today": true, "Tomorrow": true, "Yesterday": true,
	"Dr": true, "Vet": true, "Log": true, "Show": true, "When": true, "What": true, "How": true,
	"Emergency": true, "Please": true, "Him": true, "Her": true, "Them": true, "It": true,
	"Monday": true, "Tuesday": true, "Wednesday": true, "Thursday": true, "Friday": true,
	"Saturday": true, "Sunday": true, "Breakfast": true, "Dinner": true, "Lunch": true,
	// contraction stems such as "Where's" and "Let's"
	"Where": true, "Who": true, "Why": true, "Let": true, "That": true, "There": true,
	"Here": true, "This": true, "He": true, "She": true, "Everyone": true, "Everything": true,
	"Someone": true, "Something": true, "Nobody": true, "Nothing": true,
}

// ExtractEntities scans text for dates, times, amounts with units, vocabulary
// words and pet names. knownPets are matched case-insensitively; the "for X"
// and "X's" patterns are consulted only when no known pet is mentioned.
func ExtractEntities(text string, knownPets []string, now time.Time) []voice.Entity {
	var out []voice.Entity
	norm := normalize(text)

	seenPet := map[string]bool{}
	for _, p := range knownPets {
		if p != "" && has(norm, normalize(p)) {
			out = append(out, voice.Entity{Type: voice.EntityPetName, Value: p, Confidence: 0.95, Resolved: p})
			seenPet[strings.ToLower(p)] = true
		}
	}
	patterns := []*regexp.Regexp{forNameRe, possessRe}
	if len(seenPet) > 0 {
		patterns = nil
	}
	for _, re := range patterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			name := m[1]
			if notNames[name] || seenPet[strings.ToLower(name)] || slices.Contains(medications, strings.ToLower(name)) {
				continue
			}
			seenPet[strings.ToLower(name)] = true
			out = append(out, voice.Entity{Type: voice.EntityPetName, Value: name, Confidence: 0.7, Resolved: name})
		}
	}

	out = append(out, extractDates(norm, text, now)...)
	out = append(out, extractTimes(text)...)

	for _, m := range amountRe.FindAllStringSubmatch(text, -1) {
		n, _ := strconv.ParseFloat(m[1], 64)
		unit := strings.ToLower(m[2])
		out = append(out,
			voice.Entity{Type: voice.EntityAmount, Value: m[1], Confidence: 0.9, Resolved: n},
			voice.Entity{Type: voice.EntityUnit, Value: unit, Confidence: 0.9, Resolved: canonicalUnit(unit)},
		)
	}
	for _, m := range dollarRe.FindAllStringSubmatch(text, -1) {
		n, _ := strconv.ParseFloat(m[1], 64)
		out = append(out,
			voice.Entity{Type: voice.EntityAmount, Value: m[1], Confidence: 0.9, Resolved: n},
			voice.Entity{Type: voice.EntityUnit, Value: "dollars", Confidence: 0.9, Resolved: "dollars"},
		)
	}

	for _, w := range strings.Fields(norm) {
		if a, ok := activities[w]; ok {
			out = append(out, voice.Entity{Type: voice.EntityActivity, Value: w, Confidence: 0.8, Resolved: a})
		}
	}
	for _, med := range medications {
		if has(norm, med) {
			out = append(out, voice.Entity{Type: voice.EntityMedication, Value: med, Confidence: 0.85, Resolved: med})
		}
	}
	for _, pt := range petTypes {
		if has(norm, pt[0]) {
			out = append(out, voice.Entity{Type: voice.EntityPetType, Value: pt[0], Confidence: 0.8, Resolved: pt[1]})
		}
	}
	for _, loc := range locations {
		if has(norm, loc) {
			out = append(out, voice.Entity{Type: voice.EntityLocation, Value: loc, Confidence: 0.7, Resolved: loc})
			break
		}
	}
	return out
}

func extractDates(norm, text string, now time.Time) []voice.Entity {
	var out []voice.Entity
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	rel := []struct {
		word   string
		offset int
	}{{"today", 0}, {"tonight", 0}, {"this morning", 0}, {"tomorrow", 1}, {"yesterday", -1}}
	for _, r := range rel {
		if has(norm, r.word) {
			out = append(out, voice.Entity{Type: voice.EntityDate, Value: r.word, Confidence: 0.9, Resolved: day.AddDate(0, 0, r.offset)})
		}
	}

	for name, wd := range weekdays {
		if !has(norm, name) {
			continue
		}
		ahead := (int(wd) - int(day.Weekday()) + 7) % 7
		if ahead == 0 {
			ahead = 7
		}
		if has(norm, "last "+name) {
			ahead -= 7
		}
		out = append(out, voice.Entity{Type: voice.EntityDate, Value: name, Confidence: 0.8, Resolved: day.AddDate(0, 0, ahead)})
	}

	for _, m := range slashDate.FindAllStringSubmatch(text, -1) {
		mo, _ := strconv.Atoi(m[1])
		d, _ := strconv.Atoi(m[2])
		if mo < 1 || mo > 12 || d < 1 || d > 31 {
			continue
		}
		y := day.Year()
		if m[3] != "" {
			y, _ = strconv.Atoi(m[3])
			if y < 100 {
				y += 2000
			}
		}
		out = append(out, voice.Entity{Type: voice.EntityDate, Value: m[0], Confidence: 0.85,
			Resolved: time.Date(y, time.Month(mo), d, 0, 0, 0, 0, now.Location())})
	}

	for _, m := range monthDate.FindAllStringSubmatch(text, -1) {
		mo := months[strings.ToLower(m[1])]
		d, _ := strconv.Atoi(m[2])
		if d < 1 || d > 31 {
			continue
		}
		out = append(out, voice.Entity{Type: voice.EntityDate, Value: m[0], Confidence: 0.85,
			Resolved: time.Date(day.Year(), mo, d, 0, 0, 0, 0, now.Location())})
	}
	return out
}

func extractTimes(text string) []voice.Entity {
	var out []voice.Entity
	var spans [][2]int
	for _, loc := range clockRe.FindAllStringSubmatchIndex(text, -1) {
		h, _ := strconv.Atoi(text[loc[2]:loc[3]])
		mi, _ := strconv.Atoi(text[loc[4]:loc[5]])
		suffix := ""
		if loc[6] >= 0 {
			suffix = text[loc[6]:loc[7]]
		}
		if v, ok := clock(h, mi, suffix); ok {
			out = append(out, voice.Entity{Type: voice.EntityTime, Value: strings.TrimSpace(text[loc[0]:loc[1]]), Confidence: 0.9, Resolved: v})
			spans = append(spans, [2]int{loc[0], loc[1]})
		}
	}
hours:
	for _, loc := range hourRe.FindAllStringSubmatchIndex(text, -1) {
		for _, sp := range spans {
			if loc[0] >= sp[0] && loc[0] < sp[1] {
				continue hours
			}
		}
		h, _ := strconv.Atoi(text[loc[2]:loc[3]])
		if v, ok := clock(h, 0, text[loc[4]:loc[5]]); ok {
			out = append(out, voice.Entity{Type: voice.EntityTime, Value: text[loc[0]:loc[1]], Confidence: 0.85, Resolved: v})
		}
	}
	return out
}

// clock renders a 24h "15:04" string.
func clock(h, m int, suffix string) (string, bool) {
	suffix = strings.ToLower(strings.ReplaceAll(suffix, ".", ""))
	switch suffix {
	case "pm":
		if h < 1 || h > 12 {
			return "", false
		}
		if h != 12 {
			h += 12
		}
	case "am":
		if h < 1 || h > 12 {
			return "", false
		}
		if h == 12 {
			h = 0
		}
	}
	if h > 23 || m > 59 {
		return "", false
	}
	return strconv.Itoa(h/10) + strconv.Itoa(h%10) + ":" + strconv.Itoa(m/10) + strconv.Itoa(m%10), true
}

func canonicalUnit(u string) string {
	switch u {
	case "kg", "kgs", "kilogram", "kilograms":
		return "kg"
	case "lb", "lbs", "pound", "pounds":
		return "lb"
	case "g", "gram", "grams":
		return "g"
	case "oz", "ounce", "ounces":
		return "oz"
	case "min", "mins", "minute", "minutes":
		return "minutes"
	case "hr", "hrs", "hour", "hours":
		return "hours"
	case "dollar", "dollars":
		return "dollars"
	case "mg", "ml", "km":
		return u
	}
	return strings.TrimSuffix(u, "s") + "s"
}

// FoodType returns the food phrase of a feeding utterance, e.g. "dry food".
func FoodType(text string) string {
	m := foodTypeRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}
