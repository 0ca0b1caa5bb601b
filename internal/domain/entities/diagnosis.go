package entities

import "time"

// Diagnosis is an ICD code used as read-only reference data
type Diagnosis struct {
	ID           int64      `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	ValidityFrom time.Time  `json:"validity_from"`
	ValidityTo   *time.Time `json:"validity_to,omitempty"`
	AuditUserID  int        `json:"audit_user_id"`
}

// DiagnosisFilter narrows a diagnosis listing
type DiagnosisFilter struct {
	// Search matches code or name, case-insensitively.
	Search string
	// AsOf restricts the listing to rows valid at that instant. The zero
	// value means currently valid rows.
	AsOf *time.Time
}
