package dashboard

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/openkcm/common-sdk/pkg/commoncfg"
	"github.com/openkcm/common-sdk/pkg/otlp"
	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	slogctx "github.com/veqryn/slog-context"

	"github.com/openkcm/session-client/internal/config"
)

type meters struct {
	counter metric.Int64Counter
	hist    metric.Int64Histogram
}

func initMeters(ctx context.Context, cfg *config.Config) (*meters, error) {
	meter := otel.Meter(
		"session-client/"+cfg.Application.Name,
		metric.WithInstrumentationVersion(otel.Version()),
		metric.WithInstrumentationAttributes(otlp.CreateAttributesFrom(cfg.Application)...),
	)

	counter, err := meter.Int64Counter(
		"http.request_count",
		metric.WithDescription("Incoming request count"),
		metric.WithUnit("request"),
	)
	if err != nil {
		return nil, oops.In("Dashboard").
			WithContext(ctx).
			Wrapf(err, "creating request_count meter")
	}

	hist, err := meter.Int64Histogram(
		"http.duration",
		metric.WithDescription("Incoming end to end duration"),
		metric.WithUnit("milliseconds"),
	)
	if err != nil {
		return nil, oops.In("Dashboard").
			WithContext(ctx).
			Wrapf(err, "creating duration meter")
	}

	return &meters{counter: counter, hist: hist}, nil
}

// newTraceMiddleware covers a dashboard route with tracing, metrics and a
// request scoped logger.
func newTraceMiddleware(cfg *config.Config, m *meters) func(http.Handler, string) http.Handler {
	return func(next http.Handler, operationID string) http.Handler {
		traceAttrs := otlp.CreateAttributesFrom(cfg.Application, attribute.String(commoncfg.AttrOperation, operationID))
		tracer := otel.Tracer(operationID, trace.WithInstrumentationAttributes(traceAttrs...))

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := slogctx.With(r.Context(),
				commoncfg.AttrRequestID, uuid.NewString(),
				commoncfg.AttrOperation, operationID,
			)

			ctx = otel.GetTextMapPropagator().Extract(ctx, propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(ctx, operationID+"-span", trace.WithAttributes(traceAttrs...))
			defer span.End()

			requestStartTime := time.Now()

			defer func() {
				elapsedTime := time.Since(requestStartTime)

				attrs := metric.WithAttributes(
					otlp.CreateAttributesFrom(cfg.Application,
						attribute.String("userAgent", r.UserAgent()),
						attribute.String(commoncfg.AttrOperation, operationID),
					)...,
				)

				m.counter.Add(ctx, 1, attrs)
				m.hist.Record(ctx, elapsedTime.Milliseconds(), attrs)
			}()

			slogctx.Info(ctx, fmt.Sprintf("Processing %s request", operationID))
			next.ServeHTTP(w, r.WithContext(ctx))
			slogctx.Info(ctx, fmt.Sprintf("Finished %s request", operationID))
		})
	}
}
