package telemetry_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/alkonosst/StateForge"
	"github.com/alkonosst/StateForge/clock"
	"github.com/alkonosst/StateForge/pkg/telemetry"
)

type recorded struct {
	name       string
	attributes []attribute.KeyValue
	status     codes.Code
	ended      bool
}

type recordingSpan struct {
	telemetry.Span
	record *recorded
}

func (span *recordingSpan) SetAttributes(kv ...attribute.KeyValue) {
	span.record.attributes = append(span.record.attributes, kv...)
}

func (span *recordingSpan) SetStatus(code codes.Code, description string) {
	span.record.status = code
}

func (span *recordingSpan) End(options ...trace.SpanEndOption) {
	span.record.ended = true
}

type recordingTracer struct {
	telemetry.Tracer
	spans []*recorded
}

func (tracer *recordingTracer) Start(ctx context.Context, name string, options ...trace.SpanStartOption) (context.Context, trace.Span) {
	config := trace.NewSpanStartConfig(options...)
	record := &recorded{name: name, attributes: config.Attributes()}
	tracer.spans = append(tracer.spans, record)
	return ctx, &recordingSpan{record: record}
}

func (r *recorded) value(key attribute.Key) (attribute.Value, bool) {
	for _, kv := range r.attributes {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

type light int

const (
	red light = iota
	green
)

type signal string

func newLight() *stateforge.Machine[light, signal] {
	return stateforge.New(red,
		stateforge.Transition[light, signal]{From: red, Event: "go", To: green,
			OnTransition: func(light, signal, light, stateforge.Context) stateforge.Result {
				return stateforge.InvalidContext
			}},
		stateforge.Transition[light, signal]{From: red, Event: "skip", To: green},
		stateforge.Transition[light, signal]{From: green, Event: "stop", To: red,
			OnExit: func(light, signal, light, stateforge.Context) {}},
	)
}

func TestTrace(t *testing.T) {
	tracer := &recordingTracer{}
	sm := newLight()
	stateforge.WithTrace(sm, telemetry.Trace(tracer, sm.Id()))

	assert.Equal(t, stateforge.InvalidContext, sm.Dispatch("go"))
	require.Len(t, tracer.spans, 2)

	dispatch, decision := tracer.spans[0], tracer.spans[1]
	assert.Equal(t, "Dispatch", dispatch.name)
	assert.Equal(t, "transition", decision.name)
	for _, span := range tracer.spans {
		assert.True(t, span.ended)
		assert.Equal(t, codes.Error, span.status)
		id, ok := span.value(telemetry.MachineKey)
		require.True(t, ok)
		assert.Equal(t, sm.Id(), id.AsString())
		result, ok := span.value(telemetry.ResultKey)
		require.True(t, ok)
		assert.Equal(t, "InvalidContext", result.AsString())
	}
	args, ok := dispatch.value(telemetry.ArgsKey)
	require.True(t, ok)
	assert.Equal(t, []string{"go"}, args.AsStringSlice())

	tracer.spans = nil
	assert.Equal(t, stateforge.Change, sm.Dispatch("skip"))
	require.Len(t, tracer.spans, 1)
	assert.Equal(t, codes.Unset, tracer.spans[0].status)

	tracer.spans = nil
	assert.Equal(t, stateforge.Change, sm.Dispatch("stop"))
	require.Len(t, tracer.spans, 2)
	assert.Equal(t, "exit", tracer.spans[1].name)
	args, ok = tracer.spans[1].value(telemetry.ArgsKey)
	require.True(t, ok)
	assert.Equal(t, []string{"1", "stop", "0"}, args.AsStringSlice())
}

func TestTraceNoopProvider(t *testing.T) {
	sm := newLight()
	stateforge.WithTrace(sm, telemetry.Trace(nil, sm.Id()))
	assert.Equal(t, stateforge.Change, sm.Dispatch("skip"))

	_, span := telemetry.NewProvider().Tracer("test").Start(context.Background(), "noop")
	assert.False(t, span.IsRecording())
}

func TestLogger(t *testing.T) {
	var buffer bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buffer, &slog.HandlerOptions{Level: slog.LevelDebug}))
	clk := clock.Make(clock.Config{Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)})

	logged := telemetry.Logger(logger, clk)
	end := logged(context.Background(), "Dispatch", "go")
	clk.Advance(5 * time.Millisecond)
	end(stateforge.Change)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &record))
	assert.Equal(t, "step", record["msg"])
	assert.Equal(t, "Dispatch", record["step"])
	assert.Equal(t, []any{"go"}, record["args"])
	assert.Equal(t, []any{"Change"}, record["results"])
	assert.Equal(t, float64(5*time.Millisecond), record["elapsed"])
}

func TestJoin(t *testing.T) {
	var order []string
	named := func(name string) stateforge.Trace {
		return func(ctx context.Context, step string, args ...any) func(...any) {
			order = append(order, name+" start "+step)
			return func(...any) { order = append(order, name+" end "+step) }
		}
	}
	sm := newLight()
	stateforge.WithTrace(sm, telemetry.Join(named("a"), nil, named("b")))
	sm.Dispatch("skip")
	assert.Equal(t, "a start Dispatch,b start Dispatch,b end Dispatch,a end Dispatch", strings.Join(order, ","))
}
