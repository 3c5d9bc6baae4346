package domain

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuotaStatusText(t *testing.T) {
	for _, s := range []QuotaStatus{StatusActive, StatusSuspended, StatusExpired, StatusRevoked, StatusExhausted} {
		parsed, err := ParseQuotaStatus(s.String())
		require.NoError(t, err)
		assert.Equal(t, s, parsed)
	}
	_, err := ParseQuotaStatus("Paused")
	assert.ErrorIs(t, err, ErrInvalidQuotaStatus)
	assert.False(t, QuotaStatus(0).Valid())
}

func TestEnumsEncodeAsNames(t *testing.T) {
	b, err := json.Marshal(struct {
		Status QuotaStatus  `json:"status"`
		Type   TransferType `json:"type"`
		Grade  CoalGrade    `json:"grade"`
	}{StatusExhausted, TransferEmergency, GradePrimeCoking})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"Exhausted","type":"Emergency","grade":"PrimeCoking"}`, string(b))
}

func TestEnumScan(t *testing.T) {
	var qt QuotaType
	require.NoError(t, qt.Scan([]byte("Supplementary")))
	assert.Equal(t, QuotaTypeSupplementary, qt)

	var g CoalGrade
	assert.Error(t, g.Scan(42))

	_, err := QuotaStatus(0).Value()
	assert.ErrorIs(t, err, ErrInvalidQuotaStatus)
}

func TestClassOf(t *testing.T) {
	assert.Equal(t, ClassValidation, ClassOf(ErrInvalidUsageAmount))
	assert.Equal(t, ClassState, ClassOf(ErrQuotaExpired))
	assert.Equal(t, ClassAuthorization, ClassOf(ErrUnauthorizedHolder))
	assert.Equal(t, ClassConflict, ClassOf(ErrSelfTransferNotAllowed))
	assert.Equal(t, ClassResource, ClassOf(ErrInsufficientQuota))
	assert.Equal(t, ClassNotFound, ClassOf(ErrQuotaNotFound))

	wrapped := fmt.Errorf("use quota: %w", ErrDuplicateShipmentID)
	assert.Equal(t, ClassConflict, ClassOf(wrapped))
	assert.Equal(t, "duplicate_shipment_id", Code(wrapped))

	assert.Equal(t, ClassUnknown, ClassOf(fmt.Errorf("boom")))
	assert.Empty(t, Code(nil))
}
