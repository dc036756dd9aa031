// Package observability provides OpenTelemetry tracing for scans.
//
// Spans are created from the global tracer provider at call time, so a
// process that never calls InitTracing pays only for no-op spans.
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationName names the tracer spans are recorded under.
const InstrumentationName = "github.com/ajitpratap0/mongoscan"

// Span wraps a trace span, batching attributes until End.
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// StartSpan starts a span named name as a child of any span in ctx.
func StartSpan(ctx context.Context, name string) (context.Context, *Span) {
	ctx, span := otel.Tracer(InstrumentationName).Start(ctx, name)
	return ctx, &Span{span: span, startTime: time.Now()}
}

// SetAttribute records key=value on the span.
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds a timestamped event.
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// End sets the status from err and ends the span. It returns the elapsed
// time since StartSpan.
func (s *Span) End(err error) time.Duration {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
	return time.Since(s.startTime)
}

// ScanTracer names spans after one collection.
type ScanTracer struct {
	collection string
}

func NewScanTracer(collection string) *ScanTracer {
	return &ScanTracer{collection: collection}
}

// StartSpan starts "mongoscan.<operation>" tagged with the collection.
func (st *ScanTracer) StartSpan(ctx context.Context, operation string) (context.Context, *Span) {
	ctx, span := StartSpan(ctx, "mongoscan."+operation)
	span.SetAttribute("db.collection", st.collection)
	span.SetAttribute("mongoscan.operation", operation)
	return ctx, span
}

// Trace runs fn inside a span and returns its error.
func (st *ScanTracer) Trace(ctx context.Context, operation string, fn func(ctx context.Context, span *Span) error) error {
	ctx, span := st.StartSpan(ctx, operation)
	err := fn(ctx, span)
	span.End(err)
	return err
}
