package exporters

import (
	"context"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/sdk/trace"
)

// ConsoleExporter writes finished spans to the debug log.
type ConsoleExporter struct {
	Logger ectologger.Logger
}

func (c *ConsoleExporter) ExportSpans(ctx context.Context, spans []trace.ReadOnlySpan) error {
	if c.Logger == nil {
		return nil
	}
	for _, span := range spans {
		c.Logger.WithFields(map[string]any{
			"trace_id": span.SpanContext().TraceID().String(),
			"span":     span.Name(),
			"status":   span.Status().Code.String(),
		}).Debugf("span %s took %s", span.Name(), span.EndTime().Sub(span.StartTime()))
	}
	return nil
}

func (c *ConsoleExporter) Shutdown(ctx context.Context) error {
	return nil
}
