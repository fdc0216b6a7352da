package models

import "time"

const (
	ReportTypeAdherenceSummary    = "adherence_summary"
	ReportTypeSideEffectFrequency = "side_effect_frequency"
	ReportTypeUsagePatterns       = "usage_patterns"
	ReportTypeRiskOverview        = "risk_overview"
)

func ValidReportType(reportType string) bool {
	switch reportType {
	case ReportTypeAdherenceSummary, ReportTypeSideEffectFrequency,
		ReportTypeUsagePatterns, ReportTypeRiskOverview:
		return true
	}
	return false
}

// AggregatedReport is a materialized output of the aggregation layer.
// SampleSize counts distinct contributing segments, never raw records,
// and no group in the payload is derived from fewer segments than the
// anonymity threshold.
type AggregatedReport struct {
	BaseUUIDModel
	ReportType        string        `gorm:"type:varchar(40);not null;index" json:"reportType"`
	TimeRangeStart    time.Time     `gorm:"not null"                        json:"timeRangeStart"`
	TimeRangeEnd      time.Time     `gorm:"not null"                        json:"timeRangeEnd"`
	SampleSize        int           `gorm:"not null"                        json:"sampleSize"`
	ConfidenceLevel   float64       `gorm:"not null"                        json:"confidenceLevel"`
	Payload           ReportPayload `gorm:"serializer:json"                 json:"payload"`
	DataQualityScore  float64       `gorm:"not null" json:"dataQualityScore"`
	PrivacyScore      float64       `gorm:"not null" json:"privacyScore"`
	CompletenessScore float64       `gorm:"not null" json:"completenessScore"`
	GeneratedBy       string        `gorm:"type:varchar(64)" json:"generatedBy"`
	AccessLevel       string        `gorm:"type:varchar(20)" json:"accessLevel"`
	DownloadCount     int           `gorm:"not null"         json:"downloadCount"`
	LastAccessed      *time.Time    `json:"lastAccessed,omitempty"`
}

type ReportPayload struct {
	MinGroupSize int           `json:"minGroupSize"`
	Dimensions   []string      `json:"dimensions"`
	Groups       []ReportGroup `json:"groups"`
	// SuppressedGroups counts slices dropped at query time for falling
	// below the anonymity threshold. The slices themselves are never
	// described.
	SuppressedGroups int `json:"suppressedGroups"`
}

type ReportGroup struct {
	Dimensions    map[string]string `json:"dimensions"`
	SegmentCount  int               `json:"segmentCount"`
	RecordCount   int               `json:"recordCount"`
	MeanValue     float64           `json:"meanValue"`
	ConfidenceLow float64           `json:"confidenceLow"`
	ConfidenceHi  float64           `json:"confidenceHigh"`
}

type ReportQuery struct {
	ReportType     string            `json:"reportType"`
	TimeRangeStart time.Time         `json:"timeRangeStart"`
	TimeRangeEnd   time.Time         `json:"timeRangeEnd"`
	Dimensions     []string          `json:"dimensions,omitempty"`
	Filters        map[string]string `json:"filters,omitempty"`
	MinGroupSize   int               `json:"minGroupSize,omitempty"`
}
