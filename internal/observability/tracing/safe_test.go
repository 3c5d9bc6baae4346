package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsUnknownKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/v1/quotas"),
		attribute.String("authorization", "Bearer x"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorTruncatesToFirstLine(t *testing.T) {
	err := SafeError(errors.New("insert failed\nDETAIL: holder=abc"))
	assert.EqualError(t, err, "insert failed")
	assert.Nil(t, SafeError(nil))
}
