package models

import "time"

const (
	PrivacyLevelMinimal  = "minimal"
	PrivacyLevelStandard = "standard"
	PrivacyLevelDetailed = "detailed"
)

// Consent is the per-user sharing authorization. At most one active
// (non-revoked) record exists per hashed user identifier; revocation
// sets RevokeDate and is never a physical delete, so stored anonymized
// data stays explicable without becoming linkable.
type Consent struct {
	BaseUUIDModel
	HashedUserID    string             `gorm:"type:varchar(64);not null;index" json:"-"`
	ConsentGiven    bool               `gorm:"not null"                        json:"consentGiven"`
	ConsentDate     time.Time          `gorm:"not null"                        json:"consentDate"`
	Preferences     ConsentPreferences `gorm:"embedded;embeddedPrefix:pref_"   json:"preferences"`
	PrivacyLevel    string             `gorm:"type:varchar(20);not null"       json:"privacyLevel"`
	RevokeDate      *time.Time         `json:"revokeDate,omitempty"`
	HashedIP        string             `gorm:"type:varchar(64)" json:"-"`
	HashedUserAgent string             `gorm:"type:varchar(64)" json:"-"`
}

// ConsentPreferences are the granular toggles checked by the consent
// gate. Zero value denies everything.
type ConsentPreferences struct {
	IncludeAdherence         bool `json:"includeAdherence"`
	IncludeSideEffects       bool `json:"includeSideEffects"`
	IncludePatterns          bool `json:"includePatterns"`
	IncludeRisk              bool `json:"includeRisk"`
	AllowTemporalAnalysis    bool `json:"allowTemporalAnalysis"`
	AllowDemographicAnalysis bool `json:"allowDemographicAnalysis"`
}

func (p ConsentPreferences) AllowsDataType(dataType string) bool {
	switch dataType {
	case DataTypeAdherence:
		return p.IncludeAdherence
	case DataTypeSideEffect:
		return p.IncludeSideEffects
	case DataTypePattern:
		return p.IncludePatterns
	case DataTypeRisk:
		return p.IncludeRisk
	}
	return false
}

func (c Consent) Active() bool {
	return c.ConsentGiven && c.RevokeDate == nil && c.DeletedAt.Time.IsZero()
}

type ConsentRequest struct {
	UserID       string             `json:"userId"`
	Preferences  ConsentPreferences `json:"preferences"`
	PrivacyLevel string             `json:"privacyLevel"`
}

// ConsentStatus is the externally visible consent shape: the hash and
// audit fields are stripped.
type ConsentStatus struct {
	ConsentGiven bool               `json:"consentGiven"`
	ConsentDate  time.Time          `json:"consentDate,omitzero"`
	Preferences  ConsentPreferences `json:"preferences"`
	PrivacyLevel string             `json:"privacyLevel,omitempty"`
	RevokeDate   *time.Time         `json:"revokeDate,omitempty"`
	LastUpdated  time.Time          `json:"lastUpdated,omitzero"`
}

func (c Consent) Status() ConsentStatus {
	return ConsentStatus{
		ConsentGiven: c.ConsentGiven && c.RevokeDate == nil,
		ConsentDate:  c.ConsentDate,
		Preferences:  c.Preferences,
		PrivacyLevel: c.PrivacyLevel,
		RevokeDate:   c.RevokeDate,
		LastUpdated:  c.UpdatedAt,
	}
}
