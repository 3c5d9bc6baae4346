package domain

import (
	"strings"
	"time"
	"unicode/utf8"
)

// Quality bounds, fixed-point x100 except GCV (kcal/kg).
const (
	MinGrossCalorificValue = 2000
	MaxGrossCalorificValue = 8000
	MaxMoistureContent     = 5000
	MaxAshContent          = 5000
	MaxSulphurContent      = 1000
	MaxPercentage          = 10000
)

func RequireRegulator(q *QuotaAccount, caller string) error {
	if caller == "" || q.Regulator != caller {
		return ErrUnauthorizedRegulator
	}
	return nil
}

func RequireHolder(q *QuotaAccount, caller string) error {
	if caller == "" || q.Holder != caller {
		return ErrUnauthorizedHolder
	}
	return nil
}

func checkLen(value string, limit int, err error) error {
	if utf8.RuneCountInString(value) > limit {
		return err
	}
	return nil
}

func ValidateConcessionID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrConcessionIDRequired
	}
	return checkLen(id, MaxConcessionIDLen, ErrConcessionIDTooLong)
}

func ValidateIdentity(identity string) error {
	if strings.TrimSpace(identity) == "" || utf8.RuneCountInString(identity) > MaxIdentityLen {
		return ErrInvalidHolder
	}
	return nil
}

func ValidateQuotaKey(key QuotaKey) error {
	if err := ValidateConcessionID(key.ConcessionID); err != nil {
		return err
	}
	return ValidateIdentity(key.Holder)
}

func ValidateShipmentID(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrShipmentIDRequired
	}
	return checkLen(id, MaxShipmentIDLen, ErrShipmentIDTooLong)
}

func ValidateReason(reason string, required bool) error {
	if required && strings.TrimSpace(reason) == "" {
		return ErrReasonRequired
	}
	return checkLen(reason, MaxReasonLen, ErrReasonTooLong)
}

func ValidateMiningRegion(v string) error {
	return checkLen(v, MaxMiningRegionLen, ErrMiningRegionTooLong)
}

func ValidateEnvironmentalClearance(v string) error {
	return checkLen(v, MaxEnvironmentalClearanceLen, ErrEnvironmentalClearanceTooLong)
}

func ValidateLocation(v string) error {
	return checkLen(v, MaxLocationLen, ErrLocationTooLong)
}

func ValidateTransportDetails(v string) error {
	return checkLen(v, MaxTransportDetailsLen, ErrTransportDetailsTooLong)
}

// ValidateFutureValidity requires validity to be strictly after now.
func ValidateFutureValidity(validity, now time.Time) error {
	if !validity.After(now) {
		return ErrInvalidValidityPeriod
	}
	return nil
}

func ValidateQualityParameters(p QualityParameters) error {
	if p.GrossCalorificValue < MinGrossCalorificValue || p.GrossCalorificValue > MaxGrossCalorificValue {
		return ErrInvalidGCVValue
	}
	if p.MoistureContent > MaxMoistureContent {
		return ErrInvalidMoistureContent
	}
	if p.AshContent > MaxAshContent {
		return ErrInvalidAshContent
	}
	if p.SulphurContent > MaxSulphurContent {
		return ErrInvalidSulphurContent
	}
	if p.VolatileMatter > MaxPercentage || p.FixedCarbon > MaxPercentage {
		return ErrInvalidQualityParameters
	}
	if !p.CoalGrade.Valid() {
		return ErrInvalidCoalGrade
	}
	return checkLen(p.SizeClassification, MaxSizeClassificationLen, ErrSizeClassificationTooLong)
}
