package privacy

import (
	"fmt"
	"strings"
	"time"

	. "cohort/internal/models"
)

// Fallback buckets. Unknown input never fails generalization, it falls
// through to these.
const (
	BucketOther       = "other"
	BucketUnspecified = "unspecified"
)

// Generalizer maps free-form values onto a fixed coarse vocabulary.
// Bucket boundaries are constants, never derived from the data, so
// observed bucket edges leak nothing about the underlying values.
type Generalizer struct {
	geographicGranularity  string
	demographicGranularity string
}

func NewGeneralizer(geographicGranularity, demographicGranularity string) Generalizer {
	return Generalizer{
		geographicGranularity:  geographicGranularity,
		demographicGranularity: demographicGranularity,
	}
}

var medicationClasses = map[string]string{
	"sertraline":       "ssri",
	"fluoxetine":       "ssri",
	"escitalopram":     "ssri",
	"citalopram":       "ssri",
	"paroxetine":       "ssri",
	"venlafaxine":      "snri",
	"duloxetine":       "snri",
	"bupropion":        "atypical_antidepressant",
	"mirtazapine":      "atypical_antidepressant",
	"diazepam":         "benzodiazepine",
	"lorazepam":        "benzodiazepine",
	"alprazolam":       "benzodiazepine",
	"clonazepam":       "benzodiazepine",
	"zolpidem":         "z_drug",
	"zopiclone":        "z_drug",
	"methylphenidate":  "stimulant",
	"lisdexamfetamine": "stimulant",
	"amphetamine":      "stimulant",
	"tramadol":         "opioid",
	"codeine":          "opioid",
	"oxycodone":        "opioid",
	"morphine":         "opioid",
	"gabapentin":       "gabapentinoid",
	"pregabalin":       "gabapentinoid",
	"quetiapine":       "antipsychotic",
	"olanzapine":       "antipsychotic",
	"aripiprazole":     "antipsychotic",
	"lithium":          "mood_stabilizer",
	"lamotrigine":      "mood_stabilizer",
	"valproate":        "mood_stabilizer",
}

var sideEffectCategories = []struct {
	keywords []string
	category string
}{
	{[]string{"nausea", "vomit", "stomach", "appetite", "diarrhea", "constipation"}, "gastrointestinal"},
	{[]string{"headache", "dizz", "tremor", "seizure", "numb"}, "neurological"},
	{[]string{"anxiety", "anxious", "mood", "depress", "irritab", "agitat", "panic"}, "psychological"},
	{[]string{"insomnia", "sleep", "drowsy", "fatigue", "tired", "somnolence"}, "sleep"},
	{[]string{"sweat", "rash", "itch", "dry mouth", "blurred"}, "autonomic"},
	{[]string{"libido", "sexual"}, "sexual"},
}

var doseFrequencies = map[string]string{
	"daily":             "daily",
	"once daily":        "daily",
	"qd":                "daily",
	"od":                "daily",
	"twice daily":       "twice_daily",
	"bid":               "twice_daily",
	"2x daily":          "twice_daily",
	"three times daily": "multiple_daily",
	"tid":               "multiple_daily",
	"qid":               "multiple_daily",
	"weekly":            "weekly",
	"as needed":         "as_needed",
	"prn":               "as_needed",
}

// MedicationClass buckets a raw drug name into its coarse class.
func MedicationClass(name string) string {
	if class, ok := medicationClasses[normalize(name)]; ok {
		return class
	}
	return BucketOther
}

// SideEffectCategory buckets a free-text side-effect description by
// keyword match, first hit wins.
func SideEffectCategory(description string) string {
	desc := normalize(description)
	for _, entry := range sideEffectCategories {
		for _, kw := range entry.keywords {
			if strings.Contains(desc, kw) {
				return entry.category
			}
		}
	}
	return BucketUnspecified
}

func DoseFrequencyBucket(frequency string) string {
	if bucket, ok := doseFrequencies[normalize(frequency)]; ok {
		return bucket
	}
	return BucketOther
}

func TimeOfDayBucket(timeOfDay string) string {
	switch normalize(timeOfDay) {
	case "morning", "am":
		return "morning"
	case "afternoon", "midday", "noon":
		return "afternoon"
	case "evening", "pm":
		return "evening"
	case "night", "bedtime":
		return "night"
	}
	return BucketUnspecified
}

func TrendBucket(trend string) string {
	switch normalize(trend) {
	case "improving", "better", "down":
		return "improving"
	case "stable", "flat", "unchanged":
		return "stable"
	case "worsening", "worse", "up":
		return "worsening"
	}
	return BucketUnspecified
}

// StreakBucket collapses precise streak lengths so rare long streaks
// cannot act as quasi-identifiers.
func StreakBucket(days int) string {
	switch {
	case days <= 0:
		return "none"
	case days <= 7:
		return "1-7"
	case days <= 30:
		return "8-30"
	case days <= 90:
		return "31-90"
	default:
		return "90+"
	}
}

func MedicationCountBucket(count int) string {
	switch {
	case count <= 1:
		return "1"
	case count <= 3:
		return "2-3"
	default:
		return "4+"
	}
}

func DosesTrackedBucket(count int) string {
	switch {
	case count <= 10:
		return "1-10"
	case count <= 50:
		return "11-50"
	case count <= 200:
		return "51-200"
	default:
		return "200+"
	}
}

func SeverityBucket(score float64) string {
	switch {
	case score < 3:
		return "mild"
	case score < 7:
		return "moderate"
	default:
		return "severe"
	}
}

// AgeBucket generalizes an exact age per the configured granularity.
// Returns "" when demographic analysis is disabled.
func (g Generalizer) AgeBucket(years int) string {
	if g.demographicGranularity == "none" || years <= 0 {
		return ""
	}
	if g.demographicGranularity == "age-decade" {
		if years < 20 {
			return "under-20"
		}
		if years >= 80 {
			return "80+"
		}
		return fmt.Sprintf("%d0s", years/10)
	}
	switch {
	case years < 18:
		return "under-18"
	case years < 30:
		return "18-29"
	case years < 45:
		return "30-44"
	case years < 65:
		return "45-64"
	default:
		return "65+"
	}
}

// Region generalizes a raw location string to at most country/region
// granularity. Returns "" when geographic analysis is disabled.
func (g Generalizer) Region(raw string) string {
	if g.geographicGranularity == "none" {
		return ""
	}
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 2 || !isAlpha(code) {
		return BucketOther
	}
	if g.geographicGranularity == "region" {
		if region, ok := countryRegions[code]; ok {
			return region
		}
		return BucketOther
	}
	return code
}

var countryRegions = map[string]string{
	"US": "north_america", "CA": "north_america", "MX": "north_america",
	"GB": "europe", "DE": "europe", "FR": "europe", "NL": "europe",
	"ES": "europe", "IT": "europe", "SE": "europe", "NO": "europe",
	"DK": "europe", "FI": "europe", "IE": "europe", "PL": "europe",
	"AU": "oceania", "NZ": "oceania",
	"JP": "asia", "KR": "asia", "CN": "asia", "IN": "asia", "SG": "asia",
	"BR": "south_america", "AR": "south_america", "CL": "south_america",
	"ZA": "africa", "NG": "africa", "EG": "africa",
}

func WeekdayBucket(t time.Time) string {
	switch t.UTC().Weekday() {
	case time.Saturday, time.Sunday:
		return "weekend"
	default:
		return "weekday"
	}
}

// Generalize maps one event variant to its primary bucket and the full
// generalized metric set. The caller has already matched the variant
// against the declared data type.
func (g Generalizer) Generalize(dataType string, event RawEvent) (string, map[string]string, error) {
	switch dataType {
	case DataTypeAdherence:
		e := event.Adherence
		if e == nil {
			return "", nil, fmt.Errorf("missing adherence payload")
		}
		primary := MedicationClass(e.Medication)
		return primary, map[string]string{
			"medicationClass": primary,
			"streakBucket":    StreakBucket(e.StreakDays),
			"dosesTracked":    DosesTrackedBucket(e.DosesTracked),
		}, nil
	case DataTypeSideEffect:
		e := event.SideEffect
		if e == nil {
			return "", nil, fmt.Errorf("missing side effect payload")
		}
		primary := SideEffectCategory(e.Description)
		return primary, map[string]string{
			"category":        primary,
			"medicationClass": MedicationClass(e.Medication),
			"severityBucket":  SeverityBucket(e.SeverityScore),
		}, nil
	case DataTypePattern:
		e := event.Pattern
		if e == nil {
			return "", nil, fmt.Errorf("missing pattern payload")
		}
		primary := DoseFrequencyBucket(e.DoseFrequency)
		return primary, map[string]string{
			"doseFrequency":   primary,
			"medicationClass": MedicationClass(e.Medication),
			"timeOfDay":       TimeOfDayBucket(e.TimeOfDay),
			"medicationCount": MedicationCountBucket(e.MedicationCount),
		}, nil
	case DataTypeRisk:
		e := event.Risk
		if e == nil {
			return "", nil, fmt.Errorf("missing risk payload")
		}
		primary := TrendBucket(e.Trend)
		return primary, map[string]string{
			"trend":           primary,
			"medicationClass": MedicationClass(e.Medication),
		}, nil
	}
	return "", nil, fmt.Errorf("unknown data type %q", dataType)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
