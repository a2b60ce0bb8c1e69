package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/naumanni/naumanni-server/pkg/apischema"
	"github.com/naumanni/naumanni-server/pkg/normalizr"
	"github.com/naumanni/naumanni-server/pkg/plugin"
	"github.com/naumanni/naumanni-server/pkg/telemetry/metrics"
	"github.com/naumanni/naumanni-server/pkg/telemetry/tracing"

	"go.opentelemetry.io/otel/attribute"
)

// ErrDecode is returned when a body is not a single JSON value.
var ErrDecode = errors.New("invalid JSON body")

// Pipeline rewrites API payloads through the plugin filter chain.
type Pipeline struct {
	registry *apischema.Registry
	bus      *plugin.Bus
	metrics  *metrics.Collector
	tracer   *tracing.Tracer
}

// NewPipeline creates a pipeline. collector and tracer may be nil.
func NewPipeline(registry *apischema.Registry, bus *plugin.Bus, collector *metrics.Collector, tracer *tracing.Tracer) *Pipeline {
	return &Pipeline{
		registry: registry,
		bus:      bus,
		metrics:  collector,
		tracer:   tracer,
	}
}

// Registry returns the schema registry the pipeline resolves against.
func (p *Pipeline) Registry() *apischema.Registry {
	return p.registry
}

// FilterResponse filters the JSON body returned by rawURL. Errors wrapping
// apischema.ErrRouteNotFound mean the body should pass through untouched.
func (p *Pipeline) FilterResponse(ctx context.Context, rawURL string, body []byte) ([]byte, error) {
	schema, err := p.registry.Resolve(rawURL)
	if err != nil {
		return nil, err
	}
	value, err := decodeJSON(body)
	if err != nil {
		return nil, err
	}
	out, err := p.apply(ctx, value, schema)
	if err != nil {
		return nil, err
	}
	return encodeJSON(out)
}

// FilterStream filters the JSON-encoded payload of a streaming event.
func (p *Pipeline) FilterStream(ctx context.Context, event, payload string) (string, error) {
	schema, ok := p.registry.Stream(event)
	if !ok {
		return "", fmt.Errorf("%w: stream event %q", apischema.ErrRouteNotFound, event)
	}
	value, err := decodeJSON([]byte(payload))
	if err != nil {
		return "", err
	}
	out, err := p.apply(ctx, value, schema)
	if err != nil {
		return "", err
	}
	data, err := encodeJSON(out)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FilterMessage filters one streaming envelope of the form
// {"event": "...", "payload": "<json string>"}. Events without a stream
// schema are returned unchanged. A payload removed by a filter is relayed
// as null. On error the caller relays raw.
func (p *Pipeline) FilterMessage(ctx context.Context, raw []byte) (event string, out []byte, err error) {
	value, err := decodeJSON(raw)
	if err != nil {
		return "", nil, err
	}
	envelope, ok := value.(map[string]any)
	if !ok {
		return "", nil, fmt.Errorf("%w: stream message is not an object", ErrDecode)
	}
	event, _ = envelope["event"].(string)
	if _, ok := p.registry.Stream(event); !ok {
		return event, raw, nil
	}
	payload, ok := envelope["payload"].(string)
	if !ok {
		return event, nil, fmt.Errorf("%w: %s payload is not a string", ErrDecode, event)
	}

	filtered, err := p.FilterStream(ctx, event, payload)
	if err != nil {
		return event, nil, err
	}
	envelope["payload"] = filtered
	out, err = encodeJSON(envelope)
	return event, out, err
}

func (p *Pipeline) apply(ctx context.Context, value any, schema normalizr.Schema) (any, error) {
	ctx, span := p.tracer.Start(ctx, "proxy.filter")
	defer span.End()

	table, skeleton, err := normalizr.Normalize(value, schema)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}

	for _, key := range table.Types() {
		before := len(table.Live(key))
		start := time.Now()
		if err := plugin.FilterType(ctx, p.bus, table, key); err != nil {
			tracing.SetError(span, err)
			return nil, fmt.Errorf("filter %s: %w", key, err)
		}
		removed := before - len(table.Live(key))
		p.metrics.RecordFilter(key, time.Since(start), removed)
		span.SetAttributes(attribute.Int("naumanni.filter."+key+".removed", removed))
	}

	out, err := normalizr.Denormalize(skeleton, schema, table)
	if err != nil {
		tracing.SetError(span, err)
		return nil, err
	}
	span.SetAttributes(tracing.AttrFiltered.Bool(true))
	return out, nil
}

// decodeJSON decodes exactly one JSON value, keeping numbers as json.Number
// so ids and counters re-encode unchanged.
func decodeJSON(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var value any
	if err := dec.Decode(&value); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data", ErrDecode)
	}
	return value, nil
}

func encodeJSON(value any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(value); err != nil {
		return nil, fmt.Errorf("failed to encode filtered body: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}
