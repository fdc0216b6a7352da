package privacy

import (
	"testing"
	"time"

	. "cohort/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMedicationClass(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "known ssri", input: "sertraline", expected: "ssri"},
		{name: "case and whitespace insensitive", input: "  Fluoxetine ", expected: "ssri"},
		{name: "benzodiazepine", input: "lorazepam", expected: "benzodiazepine"},
		{name: "mood stabilizer", input: "lithium", expected: "mood_stabilizer"},
		{name: "unknown falls through", input: "placebo-brand-x", expected: BucketOther},
		{name: "empty falls through", input: "", expected: BucketOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, MedicationClass(tt.input))
		})
	}
}

func TestSideEffectCategory(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "gastrointestinal keyword", input: "constant nausea after dose", expected: "gastrointestinal"},
		{name: "neurological keyword", input: "Dizziness in the morning", expected: "neurological"},
		{name: "sleep keyword", input: "bad insomnia this week", expected: "sleep"},
		{name: "first hit wins", input: "nausea and insomnia", expected: "gastrointestinal"},
		{name: "no keyword", input: "feels odd", expected: BucketUnspecified},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SideEffectCategory(tt.input))
		})
	}
}

func TestStreakBucket(t *testing.T) {
	tests := []struct {
		days     int
		expected string
	}{
		{days: -1, expected: "none"},
		{days: 0, expected: "none"},
		{days: 1, expected: "1-7"},
		{days: 7, expected: "1-7"},
		{days: 8, expected: "8-30"},
		{days: 30, expected: "8-30"},
		{days: 31, expected: "31-90"},
		{days: 90, expected: "31-90"},
		{days: 91, expected: "90+"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, StreakBucket(tt.days), "days=%d", tt.days)
	}
}

func TestSeverityBucket(t *testing.T) {
	assert.Equal(t, "mild", SeverityBucket(0))
	assert.Equal(t, "mild", SeverityBucket(2.9))
	assert.Equal(t, "moderate", SeverityBucket(3))
	assert.Equal(t, "moderate", SeverityBucket(6.9))
	assert.Equal(t, "severe", SeverityBucket(7))
	assert.Equal(t, "severe", SeverityBucket(10))
}

func TestDoseFrequencyBucket(t *testing.T) {
	assert.Equal(t, "daily", DoseFrequencyBucket("QD"))
	assert.Equal(t, "twice_daily", DoseFrequencyBucket("bid"))
	assert.Equal(t, "as_needed", DoseFrequencyBucket("PRN"))
	assert.Equal(t, BucketOther, DoseFrequencyBucket("whenever"))
}

func TestTimeOfDayBucket(t *testing.T) {
	assert.Equal(t, "morning", TimeOfDayBucket("AM"))
	assert.Equal(t, "afternoon", TimeOfDayBucket("noon"))
	assert.Equal(t, "night", TimeOfDayBucket("bedtime"))
	assert.Equal(t, BucketUnspecified, TimeOfDayBucket("whenever"))
}

func TestTrendBucket(t *testing.T) {
	assert.Equal(t, "improving", TrendBucket("better"))
	assert.Equal(t, "stable", TrendBucket("unchanged"))
	assert.Equal(t, "worsening", TrendBucket("worse"))
	assert.Equal(t, BucketUnspecified, TrendBucket("unknown"))
}

func TestGeneralizer_AgeBucket(t *testing.T) {
	tests := []struct {
		name        string
		granularity string
		years       int
		expected    string
	}{
		{name: "disabled", granularity: "none", years: 34, expected: ""},
		{name: "zero age", granularity: "age-band", years: 0, expected: ""},
		{name: "band under 18", granularity: "age-band", years: 15, expected: "under-18"},
		{name: "band 18-29", granularity: "age-band", years: 29, expected: "18-29"},
		{name: "band 30-44", granularity: "age-band", years: 34, expected: "30-44"},
		{name: "band 65 plus", granularity: "age-band", years: 80, expected: "65+"},
		{name: "decade under 20", granularity: "age-decade", years: 19, expected: "under-20"},
		{name: "decade thirties", granularity: "age-decade", years: 34, expected: "30s"},
		{name: "decade cap", granularity: "age-decade", years: 92, expected: "80+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGeneralizer("country", tt.granularity)
			assert.Equal(t, tt.expected, g.AgeBucket(tt.years))
		})
	}
}

func TestGeneralizer_Region(t *testing.T) {
	tests := []struct {
		name        string
		granularity string
		input       string
		expected    string
	}{
		{name: "disabled", granularity: "none", input: "US", expected: ""},
		{name: "country passthrough", granularity: "country", input: "us", expected: "US"},
		{name: "country trims", granularity: "country", input: " DE ", expected: "DE"},
		{name: "country rejects long codes", granularity: "country", input: "USA", expected: BucketOther},
		{name: "country rejects digits", granularity: "country", input: "U1", expected: BucketOther},
		{name: "region maps known country", granularity: "region", input: "JP", expected: "asia"},
		{name: "region unknown country", granularity: "region", input: "XX", expected: BucketOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGeneralizer(tt.granularity, "age-band")
			assert.Equal(t, tt.expected, g.Region(tt.input))
		})
	}
}

func TestWeekdayBucket(t *testing.T) {
	assert.Equal(t, "weekend", WeekdayBucket(time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "weekend", WeekdayBucket(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "weekday", WeekdayBucket(time.Date(2026, 3, 16, 12, 0, 0, 0, time.UTC)))
}

func TestGeneralize_Adherence(t *testing.T) {
	g := NewGeneralizer("country", "age-band")

	primary, metrics, err := g.Generalize(DataTypeAdherence, RawEvent{
		Adherence: &AdherenceEvent{
			Medication:    "sertraline",
			AdherenceRate: 84,
			StreakDays:    12,
			DosesTracked:  60,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "ssri", primary)
	assert.Equal(t, map[string]string{
		"medicationClass": "ssri",
		"streakBucket":    "8-30",
		"dosesTracked":    "51-200",
	}, metrics)
}

func TestGeneralize_SideEffect(t *testing.T) {
	g := NewGeneralizer("country", "age-band")

	primary, metrics, err := g.Generalize(DataTypeSideEffect, RawEvent{
		SideEffect: &SideEffectEvent{
			Medication:    "venlafaxine",
			Description:   "persistent headache",
			SeverityScore: 5,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "neurological", primary)
	assert.Equal(t, "snri", metrics["medicationClass"])
	assert.Equal(t, "moderate", metrics["severityBucket"])
}

func TestGeneralize_Pattern(t *testing.T) {
	g := NewGeneralizer("country", "age-band")

	primary, metrics, err := g.Generalize(DataTypePattern, RawEvent{
		Pattern: &PatternEvent{
			Medication:       "quetiapine",
			DoseFrequency:    "bid",
			TimeOfDay:        "evening",
			ConsistencyScore: 70,
			MedicationCount:  2,
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "twice_daily", primary)
	assert.Equal(t, "antipsychotic", metrics["medicationClass"])
	assert.Equal(t, "evening", metrics["timeOfDay"])
	assert.Equal(t, "2-3", metrics["medicationCount"])
}

func TestGeneralize_Risk(t *testing.T) {
	g := NewGeneralizer("country", "age-band")

	primary, metrics, err := g.Generalize(DataTypeRisk, RawEvent{
		Risk: &RiskEvent{Medication: "lithium", RiskScore: 40, Trend: "worsening"},
	})
	require.NoError(t, err)

	assert.Equal(t, "worsening", primary)
	assert.Equal(t, "mood_stabilizer", metrics["medicationClass"])
}

func TestGeneralize_MissingPayload(t *testing.T) {
	g := NewGeneralizer("country", "age-band")

	_, _, err := g.Generalize(DataTypeAdherence, RawEvent{})
	assert.Error(t, err)

	_, _, err = g.Generalize("bogus", RawEvent{})
	assert.Error(t, err)
}

func TestGeneralize_NeverEmitsRawValues(t *testing.T) {
	g := NewGeneralizer("country", "age-band")

	rawDescription := "nausea after taking dose at 8am, call me at 555-0100"
	primary, metrics, err := g.Generalize(DataTypeSideEffect, RawEvent{
		SideEffect: &SideEffectEvent{
			Medication:    "sertraline",
			Description:   rawDescription,
			SeverityScore: 2,
		},
	})
	require.NoError(t, err)

	assert.NotContains(t, primary, "555")
	for key, value := range metrics {
		assert.NotContains(t, value, "555", "metric %s leaked raw text", key)
		assert.NotEqual(t, rawDescription, value)
	}
}
