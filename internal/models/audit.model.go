package models

// Audit actions.
const (
	AuditActionSubmission       = "data_submission"
	AuditActionConsentUpdate    = "consent_update"
	AuditActionReportAccess     = "report_access"
	AuditActionPrivacyViolation = "privacy_violation"
)

// Risk levels attached to audit entries.
const (
	RiskLevelLow    = "low"
	RiskLevelMedium = "medium"
	RiskLevelHigh   = "high"
)

// PrivacyAuditEntry is an immutable log line. Entries are written once
// and never updated; retention is governed by a policy separate from
// the anonymized-data retention window.
type PrivacyAuditEntry struct {
	BaseAppendModel
	Action          string            `gorm:"type:varchar(40);not null;index" json:"action"`
	HashedUserID    *string           `gorm:"type:varchar(64);index"          json:"hashedUserId,omitempty"`
	Details         map[string]string `gorm:"serializer:json"                 json:"details"`
	HashedIP        string            `gorm:"type:varchar(64)"                json:"-"`
	HashedUserAgent string            `gorm:"type:varchar(64)"                json:"-"`
	RiskLevel       string            `gorm:"type:varchar(10);not null;index" json:"riskLevel"`
	Flagged         bool              `gorm:"not null;index"                  json:"flagged"`
	ReviewRequired  bool              `gorm:"not null"                        json:"reviewRequired"`
}

// AuditQuery filters privileged reads of the audit log. Hashed user
// identifiers are excluded from results unless IncludeHashes is set by
// an audit_admin caller.
type AuditQuery struct {
	Action        string `json:"action,omitempty"`
	RiskLevel     string `json:"riskLevel,omitempty"`
	FlaggedOnly   bool   `json:"flaggedOnly,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	IncludeHashes bool   `json:"includeHashes,omitempty"`
}
