package models

import (
	"fmt"
	"time"

	derrors "labcert/pkg/domain-errors"
)

// Kind categorizes an issued document. The kind determines the number
// prefix, the template used for rendering, and the validity window.
type Kind string

const (
	KindCalibration Kind = "calibration"
	KindMaintenance Kind = "maintenance"
	KindLabResult   Kind = "lab_result"
	KindCompliance  Kind = "compliance"
	KindSafety      Kind = "safety"
	KindOther       Kind = "other"
)

// kindInfo pins the number prefix and validity window per kind.
// A zero validity window means documents of that kind never expire.
type kindInfo struct {
	prefix   string
	validity time.Duration
}

const yearApprox = 365 * 24 * time.Hour

var kinds = map[Kind]kindInfo{
	KindCalibration: {prefix: "CAL", validity: yearApprox},
	KindMaintenance: {prefix: "MAINT", validity: yearApprox / 2},
	KindLabResult:   {prefix: "LAB", validity: 0},
	KindCompliance:  {prefix: "COMP", validity: 2 * yearApprox},
	KindSafety:      {prefix: "SAF", validity: yearApprox},
	KindOther:       {prefix: "DOC", validity: 0},
}

// ParseKind validates a kind string.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := kinds[k]; !ok {
		return "", derrors.New(derrors.CodeValidation, fmt.Sprintf("unknown document kind: %q", s))
	}
	return k, nil
}

// Prefix returns the formatted-number prefix for the kind, e.g. CAL.
func (k Kind) Prefix() string { return kinds[k].prefix }

// ValidityWindow returns how long documents of this kind stay valid.
// Zero means no expiry.
func (k Kind) ValidityWindow() time.Duration { return kinds[k].validity }

func (k Kind) IsValid() bool {
	_, ok := kinds[k]
	return ok
}

func (k Kind) String() string { return string(k) }
