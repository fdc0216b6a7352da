package models

import "time"

// Data types accepted by the pipeline. Each has a fixed payload shape;
// the transform layer matches on the variant rather than walking an
// open metric map.
const (
	DataTypeAdherence  = "adherence"
	DataTypeSideEffect = "side_effect"
	DataTypePattern    = "pattern"
	DataTypeRisk       = "risk"
)

func ValidDataType(dataType string) bool {
	switch dataType {
	case DataTypeAdherence, DataTypeSideEffect, DataTypePattern, DataTypeRisk:
		return true
	}
	return false
}

// AnonymizedDataPoint is the unit of stored, shareable data. Every
// numeric in it has been through the noise injector and every category
// through the generalizer before it reaches the repository.
type AnonymizedDataPoint struct {
	BaseUUIDModel
	TimeWindow        string            `gorm:"type:varchar(20);not null;index"  json:"timeWindow"`
	WeekdayBucket     *string           `gorm:"type:varchar(20)"                 json:"weekdayBucket,omitempty"`
	RegionCode        *string           `gorm:"type:varchar(10)"                 json:"regionCode,omitempty"`
	SegmentID         string            `gorm:"type:varchar(32);not null;index"  json:"segmentId"`
	DemographicBucket *string           `gorm:"type:varchar(20)"                 json:"demographicBucket,omitempty"`
	DataType          string            `gorm:"type:varchar(20);not null;index"  json:"dataType"`
	PrimaryBucket     string            `gorm:"type:varchar(40);not null"        json:"primaryBucket"`
	MetricValue       float64           `gorm:"not null"                         json:"metricValue"`
	Metrics           map[string]string `gorm:"serializer:json"                  json:"metrics"`
	NoiseLevel        float64           `gorm:"not null"                         json:"noiseLevel"`
	KAnonymityLevel   int               `gorm:"not null"                         json:"kAnonymityLevel"`
	SubmissionWindow  string            `gorm:"type:varchar(20);not null"        json:"submissionWindow"`
	TupleKey          string            `gorm:"type:varchar(128);not null;index" json:"-"`
	PrivacyValidated  bool              `gorm:"not null"                         json:"privacyValidated"`
	ValidationScore   int               `gorm:"not null"                         json:"validationScore"`
	ProcessedAt       *time.Time        `json:"processedAt,omitempty"`
}

// QuasiGroupMember records that a pseudonymous segment has appeared in
// a quasi-identifier group. The (tuple, segment) pair is unique, so the
// row count per tuple is the distinct-segment count the k-anonymity
// check needs. Membership is recorded for every consented, otherwise
// valid submission, including ones rejected for group size, so a group
// can eventually cross the threshold.
type QuasiGroupMember struct {
	TupleKey  string    `gorm:"type:varchar(128);primaryKey" json:"tupleKey"`
	SegmentID string    `gorm:"type:varchar(32);primaryKey"  json:"segmentId"`
	CreatedAt time.Time `gorm:"autoCreateTime"               json:"createdAt"`
}

// RawEvent is the closed union of submission payloads. Exactly one
// variant must be set, matching the declared data type.
type RawEvent struct {
	Adherence  *AdherenceEvent  `json:"adherence,omitempty"`
	SideEffect *SideEffectEvent `json:"sideEffect,omitempty"`
	Pattern    *PatternEvent    `json:"pattern,omitempty"`
	Risk       *RiskEvent       `json:"risk,omitempty"`

	// Optional quasi-identifying context, generalized before storage.
	Region   *string `json:"region,omitempty"`
	AgeYears *int    `json:"ageYears,omitempty"`
}

type AdherenceEvent struct {
	Medication    string  `json:"medication"`
	AdherenceRate float64 `json:"adherenceRate"` // 0-100
	StreakDays    int     `json:"streakDays"`
	DosesTracked  int     `json:"dosesTracked"`
}

type SideEffectEvent struct {
	Medication    string  `json:"medication"`
	Description   string  `json:"description"`
	SeverityScore float64 `json:"severityScore"` // 0-10
}

type PatternEvent struct {
	Medication       string  `json:"medication"`
	DoseFrequency    string  `json:"doseFrequency"`
	TimeOfDay        string  `json:"timeOfDay"`
	ConsistencyScore float64 `json:"consistencyScore"` // 0-100
	MedicationCount  int     `json:"medicationCount"`
}

type RiskEvent struct {
	Medication string  `json:"medication"`
	RiskScore  float64 `json:"riskScore"` // 0-100
	Trend      string  `json:"trend"`
}

// Variant returns the payload pointer matching dataType, or nil when
// the declared type and the populated variant disagree.
func (e RawEvent) Variant(dataType string) any {
	switch dataType {
	case DataTypeAdherence:
		if e.Adherence != nil {
			return e.Adherence
		}
	case DataTypeSideEffect:
		if e.SideEffect != nil {
			return e.SideEffect
		}
	case DataTypePattern:
		if e.Pattern != nil {
			return e.Pattern
		}
	case DataTypeRisk:
		if e.Risk != nil {
			return e.Risk
		}
	}
	return nil
}

type SubmissionResult struct {
	Accepted  bool     `json:"accepted"`
	RiskScore int      `json:"riskScore"`
	SegmentID string   `json:"segmentId,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}
