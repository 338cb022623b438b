// Package telemetry turns machine trace steps into OpenTelemetry spans or
// slog records.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alkonosst/StateForge"
	"github.com/alkonosst/StateForge/clock"
)

const (
	MachineKey = attribute.Key("stateforge.machine")
	ArgsKey    = attribute.Key("stateforge.args")
	ResultKey  = attribute.Key("stateforge.result")
)

// Trace records every step of the machine identified by id as a span.
// A nil tracer falls back to the no-op provider.
func Trace(tracer trace.Tracer, id string) stateforge.Trace {
	if tracer == nil {
		tracer = NewProvider().Tracer("stateforge")
	}
	return func(ctx context.Context, step string, args ...any) func(...any) {
		_, span := tracer.Start(ctx, step, trace.WithAttributes(
			MachineKey.String(id),
			ArgsKey.StringSlice(format(args)),
		))
		return func(results ...any) {
			defer span.End()
			for _, result := range results {
				switch result := result.(type) {
				case stateforge.Result:
					span.SetAttributes(ResultKey.String(result.String()))
					if result == stateforge.InvalidContext {
						span.SetStatus(codes.Error, result.String())
					}
				case error:
					span.RecordError(result)
					span.SetStatus(codes.Error, result.Error())
				}
			}
		}
	}
}

// Logger writes one debug record per finished step with its duration.
func Logger(logger *slog.Logger, clk clock.Clock) stateforge.Trace {
	if logger == nil {
		logger = slog.Default()
	}
	if clk == nil {
		clk = clock.Make()
	}
	return func(ctx context.Context, step string, args ...any) func(...any) {
		start := clk.Now()
		return func(results ...any) {
			logger.DebugContext(ctx, "step",
				"step", step,
				"args", format(args),
				"results", format(results),
				"elapsed", clk.Now().Sub(start),
			)
		}
	}
}

// Join fans each step out to every trace; ends run in reverse order.
func Join(traces ...stateforge.Trace) stateforge.Trace {
	return func(ctx context.Context, step string, args ...any) func(...any) {
		ends := make([]func(...any), 0, len(traces))
		for _, t := range traces {
			if t != nil {
				ends = append(ends, t(ctx, step, args...))
			}
		}
		return func(results ...any) {
			for i := len(ends) - 1; i >= 0; i-- {
				ends[i](results...)
			}
		}
	}
}

func format(values []any) []string {
	formatted := make([]string, len(values))
	for i, value := range values {
		formatted[i] = fmt.Sprint(value)
	}
	return formatted
}

/******* No-op provider *******/

type Provider struct {
	trace.TracerProvider
}

var (
	provider    = &Provider{}
	tracer      = &Tracer{}
	span        = &Span{}
	spanContext = trace.SpanContext{}
)

func NewProvider() *Provider {
	return provider
}

func (provider *Provider) Tracer(name string, options ...trace.TracerOption) trace.Tracer {
	return tracer
}

type Tracer struct {
	trace.Tracer
}

func (tracer *Tracer) Start(ctx context.Context, name string, options ...trace.SpanStartOption) (context.Context, trace.Span) {
	return ctx, span
}

type Span struct {
	trace.Span
}

func (span *Span) End(options ...trace.SpanEndOption)                  {}
func (span *Span) AddEvent(name string, options ...trace.EventOption)  {}
func (span *Span) AddLink(link trace.Link)                             {}
func (span *Span) IsRecording() bool                                   { return false }
func (span *Span) RecordError(err error, options ...trace.EventOption) {}
func (span *Span) SetAttributes(kv ...attribute.KeyValue)              {}
func (span *Span) SetName(name string)                                 {}
func (span *Span) SetStatus(code codes.Code, description string)       {}
func (span *Span) SpanContext() trace.SpanContext                      { return spanContext }
func (span *Span) TracerProvider() trace.TracerProvider                { return provider }
