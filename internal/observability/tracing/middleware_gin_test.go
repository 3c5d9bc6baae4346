package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return recorder
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]string {
	out := make(map[attribute.Key]string)
	for _, attr := range span.Attributes() {
		out[attr.Key] = attr.Value.Emit()
	}
	return out
}

func TestGinMiddlewareTagsQuotaKey(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	engine := gin.New()
	engine.Use(GinMiddleware())
	engine.POST("/v1/quotas/:concession_id/:holder/usage", func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/quotas/CX-001/holder-a/usage", nil))
	require.Equal(t, http.StatusCreated, w.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP POST /v1/quotas/:concession_id/:holder/usage", spans[0].Name())

	attrs := spanAttributes(spans[0])
	assert.Equal(t, "CX-001", attrs["quota.concession_id"])
	assert.Equal(t, "holder-a", attrs["quota.holder"])
	assert.Equal(t, "201", attrs["http.status_code"])
	assert.NotContains(t, attrs, attribute.Key("quota.shipment_id"))
}

func TestGinMiddlewareTagsShipment(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	engine := gin.New()
	engine.Use(GinMiddleware())
	engine.GET("/v1/shipments/:shipment_id", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/shipments/SHP-42", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	attrs := spanAttributes(spans[0])
	assert.Equal(t, "SHP-42", attrs["quota.shipment_id"])
	assert.NotContains(t, attrs, attribute.Key("quota.concession_id"))
}
