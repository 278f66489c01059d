package models

import (
	"fmt"

	derrors "labcert/pkg/domain-errors"
)

// SourceKind tags the table-of-origin for the record a document certifies.
// Pairing it with a numeric ID in SourceRef replaces the stringly-typed
// "linked table name + linked id" reference style, so the tag cannot
// drift from the schema silently.
type SourceKind string

const (
	SourceCalibrationRecord  SourceKind = "calibration_record"
	SourceMaintenanceRecord  SourceKind = "maintenance_record"
	SourceLabResult          SourceKind = "lab_result"
	SourceComplianceAudit    SourceKind = "compliance_audit"
	SourceSafetyInspection   SourceKind = "safety_inspection"
	SourceExternalAttachment SourceKind = "external_attachment"
)

var sourceKinds = map[SourceKind]struct{}{
	SourceCalibrationRecord:  {},
	SourceMaintenanceRecord:  {},
	SourceLabResult:          {},
	SourceComplianceAudit:    {},
	SourceSafetyInspection:   {},
	SourceExternalAttachment: {},
}

// ParseSourceKind validates a source kind string.
func ParseSourceKind(s string) (SourceKind, error) {
	k := SourceKind(s)
	if _, ok := sourceKinds[k]; !ok {
		return "", derrors.New(derrors.CodeValidation, fmt.Sprintf("unknown source kind: %q", s))
	}
	return k, nil
}

func (k SourceKind) IsValid() bool {
	_, ok := sourceKinds[k]
	return ok
}

func (k SourceKind) String() string { return string(k) }

// SourceRef is a typed pointer to the originating record a document
// certifies, e.g. calibration record #7.
type SourceRef struct {
	Kind SourceKind `json:"kind"`
	ID   int64      `json:"id"`
}

func (r SourceRef) String() string {
	return fmt.Sprintf("%s#%d", r.Kind, r.ID)
}

// Validate checks the reference is well formed.
func (r SourceRef) Validate() error {
	if !r.Kind.IsValid() {
		return derrors.New(derrors.CodeValidation, fmt.Sprintf("unknown source kind: %q", r.Kind))
	}
	if r.ID <= 0 {
		return derrors.New(derrors.CodeValidation, fmt.Sprintf("source id must be positive, got %d", r.ID))
	}
	return nil
}
