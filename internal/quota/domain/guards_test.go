package domain

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func validQuality() QualityParameters {
	return QualityParameters{
		GrossCalorificValue: 5500,
		MoistureContent:     1200,
		AshContent:          1500,
		SulphurContent:      80,
		VolatileMatter:      3000,
		FixedCarbon:         4500,
		CoalGrade:           GradeB,
		SizeClassification:  "0-50mm",
	}
}

func TestRequireIdentity(t *testing.T) {
	q := newTestAccount(10)
	assert.NoError(t, RequireRegulator(q, "regulator"))
	assert.ErrorIs(t, RequireRegulator(q, "holder-a"), ErrUnauthorizedRegulator)
	assert.ErrorIs(t, RequireRegulator(q, ""), ErrUnauthorizedRegulator)
	assert.NoError(t, RequireHolder(q, "holder-a"))
	assert.ErrorIs(t, RequireHolder(q, "regulator"), ErrUnauthorizedHolder)
}

func TestValidateQuotaKey(t *testing.T) {
	assert.NoError(t, ValidateQuotaKey(QuotaKey{ConcessionID: "CX-1", Holder: "h"}))
	assert.ErrorIs(t, ValidateQuotaKey(QuotaKey{ConcessionID: " ", Holder: "h"}), ErrConcessionIDRequired)
	assert.ErrorIs(t, ValidateQuotaKey(QuotaKey{ConcessionID: strings.Repeat("c", 33), Holder: "h"}), ErrConcessionIDTooLong)
	assert.ErrorIs(t, ValidateQuotaKey(QuotaKey{ConcessionID: "CX-1"}), ErrInvalidHolder)
	assert.ErrorIs(t, ValidateQuotaKey(QuotaKey{ConcessionID: "CX-1", Holder: strings.Repeat("h", 65)}), ErrInvalidHolder)
}

func TestLengthLimitsCountCharacters(t *testing.T) {
	// 32 two-byte characters fit even though they are 64 bytes long
	assert.NoError(t, ValidateShipmentID(strings.Repeat("é", 32)))
	assert.ErrorIs(t, ValidateShipmentID(strings.Repeat("é", 33)), ErrShipmentIDTooLong)
	assert.ErrorIs(t, ValidateShipmentID(""), ErrShipmentIDRequired)
}

func TestValidateReason(t *testing.T) {
	assert.NoError(t, ValidateReason("", false))
	assert.ErrorIs(t, ValidateReason("", true), ErrReasonRequired)
	assert.NoError(t, ValidateReason(strings.Repeat("r", 200), true))
	assert.ErrorIs(t, ValidateReason(strings.Repeat("r", 201), false), ErrReasonTooLong)
}

func TestOptionalDetailLimits(t *testing.T) {
	assert.ErrorIs(t, ValidateMiningRegion(strings.Repeat("m", 65)), ErrMiningRegionTooLong)
	assert.ErrorIs(t, ValidateEnvironmentalClearance(strings.Repeat("e", 65)), ErrEnvironmentalClearanceTooLong)
	assert.ErrorIs(t, ValidateLocation(strings.Repeat("l", 101)), ErrLocationTooLong)
	assert.ErrorIs(t, ValidateTransportDetails(strings.Repeat("t", 201)), ErrTransportDetailsTooLong)
	assert.NoError(t, ValidateLocation(""))
}

func TestValidateFutureValidity(t *testing.T) {
	assert.NoError(t, ValidateFutureValidity(testNow.Add(time.Second), testNow))
	assert.ErrorIs(t, ValidateFutureValidity(testNow, testNow), ErrInvalidValidityPeriod)
}

func TestValidateQualityParameters(t *testing.T) {
	assert.NoError(t, ValidateQualityParameters(validQuality()))

	cases := []struct {
		name   string
		mutate func(*QualityParameters)
		want   error
	}{
		{"gcv too low", func(p *QualityParameters) { p.GrossCalorificValue = 1999 }, ErrInvalidGCVValue},
		{"gcv too high", func(p *QualityParameters) { p.GrossCalorificValue = 8001 }, ErrInvalidGCVValue},
		{"moisture", func(p *QualityParameters) { p.MoistureContent = 5001 }, ErrInvalidMoistureContent},
		{"ash", func(p *QualityParameters) { p.AshContent = 5001 }, ErrInvalidAshContent},
		{"sulphur", func(p *QualityParameters) { p.SulphurContent = 1001 }, ErrInvalidSulphurContent},
		{"volatile matter", func(p *QualityParameters) { p.VolatileMatter = 10001 }, ErrInvalidQualityParameters},
		{"fixed carbon", func(p *QualityParameters) { p.FixedCarbon = 10001 }, ErrInvalidQualityParameters},
		{"grade", func(p *QualityParameters) { p.CoalGrade = 0 }, ErrInvalidCoalGrade},
		{"size classification", func(p *QualityParameters) { p.SizeClassification = strings.Repeat("s", 21) }, ErrSizeClassificationTooLong},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := validQuality()
			tc.mutate(&p)
			assert.ErrorIs(t, ValidateQualityParameters(p), tc.want)
		})
	}

	bounds := validQuality()
	bounds.GrossCalorificValue = 8000
	bounds.MoistureContent = 5000
	bounds.AshContent = 5000
	bounds.SulphurContent = 1000
	assert.NoError(t, ValidateQualityParameters(bounds))
}
