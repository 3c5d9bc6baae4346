package domain

import (
	"database/sql/driver"
	"fmt"
)

// QuotaStatus is a closed set; the zero value is invalid so an unset status never passes as Active.
type QuotaStatus uint8

const (
	StatusActive QuotaStatus = iota + 1
	StatusSuspended
	StatusExpired
	StatusRevoked
	StatusExhausted
)

var quotaStatusNames = map[QuotaStatus]string{
	StatusActive:    "Active",
	StatusSuspended: "Suspended",
	StatusExpired:   "Expired",
	StatusRevoked:   "Revoked",
	StatusExhausted: "Exhausted",
}

func (s QuotaStatus) String() string {
	if name, ok := quotaStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("QuotaStatus(%d)", uint8(s))
}

func (s QuotaStatus) Valid() bool {
	_, ok := quotaStatusNames[s]
	return ok
}

func ParseQuotaStatus(v string) (QuotaStatus, error) {
	for s, name := range quotaStatusNames {
		if name == v {
			return s, nil
		}
	}
	return 0, ErrInvalidQuotaStatus
}

func (s QuotaStatus) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrInvalidQuotaStatus
	}
	return []byte(s.String()), nil
}

func (s *QuotaStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseQuotaStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s QuotaStatus) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, ErrInvalidQuotaStatus
	}
	return s.String(), nil
}

func (QuotaStatus) GormDataType() string { return "string" }

func (s *QuotaStatus) Scan(src any) error {
	return scanEnum(src, s.UnmarshalText)
}

type QuotaType uint8

const (
	QuotaTypeAnnual QuotaType = iota + 1
	QuotaTypeMonthly
	QuotaTypeSpecial
	QuotaTypeSupplementary
)

var quotaTypeNames = map[QuotaType]string{
	QuotaTypeAnnual:        "Annual",
	QuotaTypeMonthly:       "Monthly",
	QuotaTypeSpecial:       "Special",
	QuotaTypeSupplementary: "Supplementary",
}

func (t QuotaType) String() string {
	if name, ok := quotaTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("QuotaType(%d)", uint8(t))
}

func (t QuotaType) Valid() bool {
	_, ok := quotaTypeNames[t]
	return ok
}

func ParseQuotaType(v string) (QuotaType, error) {
	for t, name := range quotaTypeNames {
		if name == v {
			return t, nil
		}
	}
	return 0, ErrInvalidQuotaType
}

func (t QuotaType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, ErrInvalidQuotaType
	}
	return []byte(t.String()), nil
}

func (t *QuotaType) UnmarshalText(b []byte) error {
	parsed, err := ParseQuotaType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t QuotaType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, ErrInvalidQuotaType
	}
	return t.String(), nil
}

func (QuotaType) GormDataType() string { return "string" }

func (t *QuotaType) Scan(src any) error {
	return scanEnum(src, t.UnmarshalText)
}

type TransferType uint8

const (
	TransferPlanned TransferType = iota + 1
	TransferEmergency
	TransferRegulatory
	TransferCommercial
)

var transferTypeNames = map[TransferType]string{
	TransferPlanned:    "Planned",
	TransferEmergency:  "Emergency",
	TransferRegulatory: "Regulatory",
	TransferCommercial: "Commercial",
}

func (t TransferType) String() string {
	if name, ok := transferTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("TransferType(%d)", uint8(t))
}

func (t TransferType) Valid() bool {
	_, ok := transferTypeNames[t]
	return ok
}

func ParseTransferType(v string) (TransferType, error) {
	for t, name := range transferTypeNames {
		if name == v {
			return t, nil
		}
	}
	return 0, ErrInvalidTransferType
}

func (t TransferType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, ErrInvalidTransferType
	}
	return []byte(t.String()), nil
}

func (t *TransferType) UnmarshalText(b []byte) error {
	parsed, err := ParseTransferType(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TransferType) Value() (driver.Value, error) {
	if !t.Valid() {
		return nil, ErrInvalidTransferType
	}
	return t.String(), nil
}

func (TransferType) GormDataType() string { return "string" }

func (t *TransferType) Scan(src any) error {
	return scanEnum(src, t.UnmarshalText)
}

type CoalGrade uint8

const (
	GradeA CoalGrade = iota + 1
	GradeB
	GradeC
	GradeD
	GradeE
	GradeNonCoking
	GradeSemiCoking
	GradePrimeCoking
)

var coalGradeNames = map[CoalGrade]string{
	GradeA:           "GradeA",
	GradeB:           "GradeB",
	GradeC:           "GradeC",
	GradeD:           "GradeD",
	GradeE:           "GradeE",
	GradeNonCoking:   "NonCoking",
	GradeSemiCoking:  "SemiCoking",
	GradePrimeCoking: "PrimeCoking",
}

func (g CoalGrade) String() string {
	if name, ok := coalGradeNames[g]; ok {
		return name
	}
	return fmt.Sprintf("CoalGrade(%d)", uint8(g))
}

func (g CoalGrade) Valid() bool {
	_, ok := coalGradeNames[g]
	return ok
}

func ParseCoalGrade(v string) (CoalGrade, error) {
	for g, name := range coalGradeNames {
		if name == v {
			return g, nil
		}
	}
	return 0, ErrInvalidCoalGrade
}

func (g CoalGrade) MarshalText() ([]byte, error) {
	if !g.Valid() {
		return nil, ErrInvalidCoalGrade
	}
	return []byte(g.String()), nil
}

func (g *CoalGrade) UnmarshalText(b []byte) error {
	parsed, err := ParseCoalGrade(string(b))
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

func (g CoalGrade) Value() (driver.Value, error) {
	if !g.Valid() {
		return nil, ErrInvalidCoalGrade
	}
	return g.String(), nil
}

func (CoalGrade) GormDataType() string { return "string" }

func (g *CoalGrade) Scan(src any) error {
	return scanEnum(src, g.UnmarshalText)
}

func scanEnum(src any, unmarshal func([]byte) error) error {
	switch v := src.(type) {
	case string:
		return unmarshal([]byte(v))
	case []byte:
		return unmarshal(v)
	default:
		return fmt.Errorf("unsupported enum source %T", src)
	}
}
