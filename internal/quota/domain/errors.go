package domain

import "errors"

// Validation
var (
	ErrInvalidQuotaAmount            = errors.New("invalid_quota_amount")
	ErrInvalidValidityPeriod         = errors.New("invalid_validity_period")
	ErrConcessionIDRequired          = errors.New("concession_id_required")
	ErrConcessionIDTooLong           = errors.New("concession_id_too_long")
	ErrInvalidHolder                 = errors.New("invalid_holder")
	ErrInvalidUsageAmount            = errors.New("invalid_usage_amount")
	ErrShipmentIDRequired            = errors.New("shipment_id_required")
	ErrShipmentIDTooLong             = errors.New("shipment_id_too_long")
	ErrInvalidTransferAmount         = errors.New("invalid_transfer_amount")
	ErrReasonRequired                = errors.New("reason_required")
	ErrReasonTooLong                 = errors.New("reason_too_long")
	ErrMiningRegionTooLong           = errors.New("mining_region_too_long")
	ErrEnvironmentalClearanceTooLong = errors.New("environmental_clearance_too_long")
	ErrLocationTooLong               = errors.New("location_too_long")
	ErrTransportDetailsTooLong       = errors.New("transport_details_too_long")
	ErrSizeClassificationTooLong     = errors.New("size_classification_too_long")
	ErrInvalidQualityParameters      = errors.New("invalid_quality_parameters")
	ErrInvalidCoalGrade              = errors.New("invalid_coal_grade")
	ErrInvalidGCVValue               = errors.New("invalid_gcv_value")
	ErrInvalidMoistureContent        = errors.New("invalid_moisture_content")
	ErrInvalidAshContent             = errors.New("invalid_ash_content")
	ErrInvalidSulphurContent         = errors.New("invalid_sulphur_content")
	ErrInvalidQuotaType              = errors.New("invalid_quota_type")
	ErrInvalidQuotaStatus            = errors.New("invalid_quota_status")
	ErrInvalidTransferType           = errors.New("invalid_transfer_type")
)

// State
var (
	ErrQuotaNotActive           = errors.New("quota_not_active")
	ErrQuotaExpired             = errors.New("quota_expired")
	ErrQuotaExhausted           = errors.New("quota_exhausted")
	ErrCannotModifyExpiredQuota = errors.New("cannot_modify_expired_quota")
	ErrUsageDetailsRecorded     = errors.New("usage_details_already_recorded")
)

// Authorization
var (
	ErrUnauthorizedRegulator = errors.New("unauthorized_regulator")
	ErrUnauthorizedHolder    = errors.New("unauthorized_holder")
)

// Conflict
var (
	ErrDuplicateShipmentID    = errors.New("duplicate_shipment_id")
	ErrSelfTransferNotAllowed = errors.New("self_transfer_not_allowed")
	ErrQuotaAlreadyExists     = errors.New("quota_already_exists")
)

// Resource
var (
	ErrInsufficientQuota              = errors.New("insufficient_quota")
	ErrTransferAmountExceedsAvailable = errors.New("transfer_amount_exceeds_available")
	ErrUtilizationThresholdExceeded   = errors.New("utilization_threshold_exceeded")
)

// Lookup
var (
	ErrQuotaNotFound = errors.New("quota_not_found")
	ErrUsageNotFound = errors.New("usage_not_found")
)

type ErrorClass string

const (
	ClassValidation    ErrorClass = "validation"
	ClassState         ErrorClass = "state"
	ClassAuthorization ErrorClass = "authorization"
	ClassConflict      ErrorClass = "conflict"
	ClassResource      ErrorClass = "resource"
	ClassNotFound      ErrorClass = "not_found"
	// ClassUnknown marks errors that did not originate in the quota domain.
	ClassUnknown ErrorClass = ""
)

var errorClasses = map[error]ErrorClass{
	ErrInvalidQuotaAmount:            ClassValidation,
	ErrInvalidValidityPeriod:         ClassValidation,
	ErrConcessionIDRequired:          ClassValidation,
	ErrConcessionIDTooLong:           ClassValidation,
	ErrInvalidHolder:                 ClassValidation,
	ErrInvalidUsageAmount:            ClassValidation,
	ErrShipmentIDRequired:            ClassValidation,
	ErrShipmentIDTooLong:             ClassValidation,
	ErrInvalidTransferAmount:         ClassValidation,
	ErrReasonRequired:                ClassValidation,
	ErrReasonTooLong:                 ClassValidation,
	ErrMiningRegionTooLong:           ClassValidation,
	ErrEnvironmentalClearanceTooLong: ClassValidation,
	ErrLocationTooLong:               ClassValidation,
	ErrTransportDetailsTooLong:       ClassValidation,
	ErrSizeClassificationTooLong:     ClassValidation,
	ErrInvalidQualityParameters:      ClassValidation,
	ErrInvalidCoalGrade:              ClassValidation,
	ErrInvalidGCVValue:               ClassValidation,
	ErrInvalidMoistureContent:        ClassValidation,
	ErrInvalidAshContent:             ClassValidation,
	ErrInvalidSulphurContent:         ClassValidation,
	ErrInvalidQuotaType:              ClassValidation,
	ErrInvalidQuotaStatus:            ClassValidation,
	ErrInvalidTransferType:           ClassValidation,

	ErrQuotaNotActive:           ClassState,
	ErrQuotaExpired:             ClassState,
	ErrQuotaExhausted:           ClassState,
	ErrCannotModifyExpiredQuota: ClassState,
	ErrUsageDetailsRecorded:     ClassState,

	ErrUnauthorizedRegulator: ClassAuthorization,
	ErrUnauthorizedHolder:    ClassAuthorization,

	ErrDuplicateShipmentID:    ClassConflict,
	ErrSelfTransferNotAllowed: ClassConflict,
	ErrQuotaAlreadyExists:     ClassConflict,

	ErrInsufficientQuota:              ClassResource,
	ErrTransferAmountExceedsAvailable: ClassResource,
	ErrUtilizationThresholdExceeded:   ClassResource,

	ErrQuotaNotFound: ClassNotFound,
	ErrUsageNotFound: ClassNotFound,
}

// ClassOf returns the class of the first quota domain error in err's chain.
func ClassOf(err error) ErrorClass {
	for candidate := err; candidate != nil; candidate = errors.Unwrap(candidate) {
		if class, ok := errorClasses[candidate]; ok {
			return class
		}
	}
	return ClassUnknown
}

// Code returns the stable snake_case code of a quota domain error, or "" for foreign errors.
func Code(err error) string {
	for candidate := err; candidate != nil; candidate = errors.Unwrap(candidate) {
		if _, ok := errorClasses[candidate]; ok {
			return candidate.Error()
		}
	}
	return ""
}
