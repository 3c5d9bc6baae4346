package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes quota ledger instruments.
type Metrics struct {
	operations    metric.Int64Counter
	consumed      metric.Int64Counter
	transferred   metric.Int64Counter
	eventsEmitted metric.Int64Counter
	emitFailures  metric.Int64Counter
	eventsRelayed metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "quotaledger"
	}
	meter := provider.Meter(name)

	operations, err := meter.Int64Counter("quotaledger_quota_operations_total")
	if err != nil {
		return nil, err
	}
	consumed, err := meter.Int64Counter("quotaledger_quota_consumed_tons_total")
	if err != nil {
		return nil, err
	}
	transferred, err := meter.Int64Counter("quotaledger_quota_transferred_tons_total")
	if err != nil {
		return nil, err
	}
	eventsEmitted, err := meter.Int64Counter("quotaledger_events_emitted_total")
	if err != nil {
		return nil, err
	}
	emitFailures, err := meter.Int64Counter("quotaledger_event_emit_failures_total")
	if err != nil {
		return nil, err
	}
	eventsRelayed, err := meter.Int64Counter("quotaledger_events_relayed_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		operations:    operations,
		consumed:      consumed,
		transferred:   transferred,
		eventsEmitted: eventsEmitted,
		emitFailures:  emitFailures,
		eventsRelayed: eventsRelayed,
	}, nil
}

// RecordOperation counts a quota operation by outcome ("ok" or an error code).
func (m *Metrics) RecordOperation(ctx context.Context, operation, outcome string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("operation", strings.TrimSpace(operation)),
		attribute.String("outcome", strings.TrimSpace(outcome)),
	)
	m.operations.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordConsumed(ctx context.Context, quotaType string, amount uint64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("quota_type", strings.TrimSpace(quotaType)))
	m.consumed.Add(ctx, clampInt64(amount), metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordTransferred(ctx context.Context, transferType string, amount uint64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("transfer_type", strings.TrimSpace(transferType)))
	m.transferred.Add(ctx, clampInt64(amount), metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordEventEmitted(ctx context.Context, eventType string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("event_type", strings.TrimSpace(eventType)))
	m.eventsEmitted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordEmitFailure(ctx context.Context, stage string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(stage)))
	m.emitFailures.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *Metrics) RecordRelayed(ctx context.Context, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.eventsRelayed.Add(ctx, int64(count))
}

func clampInt64(v uint64) int64 {
	const maxInt64 = 1<<63 - 1
	if v > maxInt64 {
		return maxInt64
	}
	return int64(v)
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Concession ids and holder identities are deliberately absent: they are unbounded.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"operation":     {},
	"outcome":       {},
	"quota_type":    {},
	"transfer_type": {},
	"event_type":    {},
	"reason":        {},
	"endpoint":      {},
	"status_code":   {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
