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
	"go.opentelemetry.io/otel/sdk/resource"
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

// Metrics exposes application-level instruments.
type Metrics struct {
	debitNotesGenerated metric.Int64Counter
	debitNotesDeleted   metric.Int64Counter
	taskRecordsBilled   metric.Int64Counter
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

	res, err := resource.New(context.Background(),
		resource.WithAttributes(
			attribute.String("service.name", cfg.ServiceName),
			attribute.String("deployment.environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)
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

// New builds the application instruments from the registered provider.
func New(provider metric.MeterProvider) (*Metrics, error) {
	meter := provider.Meter("portflow/billing")

	debitNotesGenerated, err := meter.Int64Counter("debit_notes_generated_total",
		metric.WithDescription("Debit notes created or appended to"))
	if err != nil {
		return nil, err
	}
	debitNotesDeleted, err := meter.Int64Counter("debit_notes_deleted_total",
		metric.WithDescription("Debit notes deleted with their task records unlinked"))
	if err != nil {
		return nil, err
	}
	taskRecordsBilled, err := meter.Int64Counter("task_records_billed_total",
		metric.WithDescription("Task records linked to a debit note"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		debitNotesGenerated: debitNotesGenerated,
		debitNotesDeleted:   debitNotesDeleted,
		taskRecordsBilled:   taskRecordsBilled,
	}, nil
}

func (m *Metrics) RecordDebitNoteGenerated(ctx context.Context, taskType string, billed int64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("task_type", taskType))
	m.debitNotesGenerated.Add(ctx, 1, attrs)
	if billed > 0 {
		m.taskRecordsBilled.Add(ctx, billed, attrs)
	}
}

func (m *Metrics) RecordDebitNoteDeleted(ctx context.Context, taskType string) {
	if m == nil {
		return
	}
	m.debitNotesDeleted.Add(ctx, 1, metric.WithAttributes(attribute.String("task_type", taskType)))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	protocol = strings.ToLower(strings.TrimSpace(protocol))
	endpoint = strings.TrimSpace(endpoint)

	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(ctx, opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(ctx, opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}
