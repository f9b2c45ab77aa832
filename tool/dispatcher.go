package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BackendResolver maps the validated arguments of a call to the backend the
// call will run against. Discovery calls it with nil arguments.
//
// Returning a *ToolError rejects the invocation with that kind; any other
// error is logged and the backend is treated as unknown.
type BackendResolver func(ctx context.Context, args Arguments) (Backend, error)

// Result is the success payload of an invocation.
type Result struct {
	// Text is the serialized payload sent across the protocol boundary.
	Text string `json:"text"`
	// Value is the handler's return value before serialization.
	Value any `json:"-"`
}

// Invocation is one resolved dispatch. Exactly one of Result and Err is set.
type Invocation struct {
	ID        string        `json:"id"`
	Tool      string        `json:"tool"`
	Arguments Arguments     `json:"arguments,omitempty"`
	Result    *Result       `json:"result,omitempty"`
	Err       *ToolError    `json:"error,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// OK reports whether the invocation succeeded.
func (inv Invocation) OK() bool {
	return inv.Err == nil && inv.Result != nil
}

// Envelope renders the invocation as {"result": ...} or
// {"error": {"kind": ..., "message": ...}}.
func (inv Invocation) Envelope() map[string]any {
	if inv.OK() {
		return map[string]any{"result": inv.Result.Text}
	}
	errObj := map[string]any{
		"kind":    string(KindHandlerFault),
		"message": "invocation did not complete",
	}
	if inv.Err != nil {
		errObj["kind"] = string(inv.Err.Kind)
		errObj["message"] = inv.Err.Message
	}
	return map[string]any{"error": errObj}
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Catalog *Catalog
	// Allow gates discovery and invocation. Nil allows everything.
	Allow Predicate
	// Resolve supplies the backend snapshot for Allow. Nil means unknown backend.
	Resolve  BackendResolver
	Observer Observer
	Logger   *slog.Logger
}

// Dispatcher is the single boundary between protocol requests and handlers.
// It holds no per-call state and is safe for concurrent use.
type Dispatcher struct {
	catalog  *Catalog
	allow    Predicate
	resolve  BackendResolver
	observer Observer
	logger   *slog.Logger
}

// NewDispatcher builds a dispatcher over a catalog.
func NewDispatcher(cfg DispatcherConfig) (*Dispatcher, error) {
	if cfg.Catalog == nil {
		return nil, errors.New("tool: dispatcher catalog is nil")
	}
	if cfg.Allow == nil {
		cfg.Allow = AllowAll
	}
	if cfg.Resolve == nil {
		cfg.Resolve = func(context.Context, Arguments) (Backend, error) {
			return Backend{}, nil
		}
	}
	if cfg.Observer == nil {
		cfg.Observer = noopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Dispatcher{
		catalog:  cfg.Catalog,
		allow:    cfg.Allow,
		resolve:  cfg.Resolve,
		observer: cfg.Observer,
		logger:   cfg.Logger,
	}, nil
}

// Catalog returns the dispatcher's catalog.
func (d *Dispatcher) Catalog() *Catalog {
	return d.catalog
}

// Available returns the descriptors allowed for the discovery backend, in
// registration order.
func (d *Dispatcher) Available(ctx context.Context) []ToolDescriptor {
	backend := d.discoveryBackend(ctx)
	out := make([]ToolDescriptor, 0, d.catalog.Len())
	for desc := range d.catalog.List(func(desc ToolDescriptor) bool {
		return d.allow(desc, backend).Allowed
	}) {
		out = append(out, desc)
	}
	return out
}

// ListAvailable answers capability discovery: name, description and input
// schema of every allowed tool.
func (d *Dispatcher) ListAvailable(ctx context.Context) []ToolSchema {
	descs := d.Available(ctx)
	out := make([]ToolSchema, 0, len(descs))
	for _, desc := range descs {
		out = append(out, Schema(desc))
	}
	return out
}

func (d *Dispatcher) discoveryBackend(ctx context.Context) Backend {
	backend, err := d.resolve(ctx, nil)
	if err != nil {
		d.logger.Warn("resolving discovery backend failed", "error", err)
		return Backend{}
	}
	return backend
}

// Dispatch resolves one invocation. It never panics and never returns a
// half-resolved Invocation: every failure, including handler panics, is
// converted into a typed error payload.
func (d *Dispatcher) Dispatch(ctx context.Context, toolName string, raw map[string]any) Invocation {
	start := time.Now()
	inv := Invocation{
		ID:   uuid.NewString(),
		Tool: toolName,
	}

	backend, value, err := d.execute(ctx, toolName, raw, &inv)
	if err == nil {
		text, renderErr := render(value)
		if renderErr != nil {
			err = NewError(KindHandlerFault, fmt.Sprintf("Error serializing result of tool %s: %v", toolName, renderErr), renderErr)
		} else {
			inv.Result = &Result{Text: text, Value: value}
		}
	}
	if err != nil {
		inv.Err = asFault(toolName, err)
	}
	inv.Duration = time.Since(start)

	d.record(inv, backend)
	return inv
}

func (d *Dispatcher) execute(ctx context.Context, toolName string, raw map[string]any, inv *Invocation) (Backend, any, error) {
	desc, err := d.catalog.Lookup(toolName)
	if err != nil {
		return Backend{}, nil, err
	}

	// A tool hidden from discovery is rejected before its arguments are
	// looked at, so callers never learn its parameter schema.
	pre := d.discoveryBackend(ctx)
	if err := d.gate(desc, pre); err != nil {
		return pre, nil, err
	}

	args, err := ValidateArguments(desc, raw)
	if err != nil {
		return Backend{}, nil, err
	}
	inv.Arguments = args

	backend, err := d.resolve(ctx, args)
	if err != nil {
		if _, typed := AsToolError(err); typed {
			return backend, nil, err
		}
		d.logger.Warn("resolving backend failed; treating version as unknown",
			"tool", toolName, "invocation_id", inv.ID, "error", err)
		backend = Backend{Cluster: backend.Cluster}
	}

	if err := d.gate(desc, backend); err != nil {
		return backend, nil, err
	}

	if err := ctx.Err(); err != nil {
		return backend, nil, NewError(KindHandlerFault, fmt.Sprintf("Invocation of tool %s abandoned: %v", toolName, err), err)
	}

	value, err := invokeHandler(ctx, desc, args)
	return backend, value, err
}

// gate returns a ToolNotSupported error when the predicate denies desc on
// backend.
func (d *Dispatcher) gate(desc ToolDescriptor, backend Backend) error {
	decision := d.allow(desc, backend)
	if decision.Allowed {
		return nil
	}
	reason := decision.Reason
	if strings.TrimSpace(reason) == "" {
		reason = fmt.Sprintf("Tool '%s' is not supported by the current configuration.", desc.Name)
	}
	return NewError(KindToolNotSupported, reason, nil)
}

func invokeHandler(ctx context.Context, desc ToolDescriptor, args Arguments) (value any, err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			value = nil
			err = withDetails(
				Errorf(KindHandlerFault, "Error executing tool %s: panic: %v", desc.Name, recovered),
				map[string]any{"stack": string(debug.Stack())},
			)
		}
	}()

	value, err = desc.Handler(ctx, args)
	if err != nil {
		return nil, err
	}
	if value == nil {
		return nil, Errorf(KindHandlerFault, "Error executing tool %s: handler returned no result", desc.Name)
	}
	return value, nil
}

func (d *Dispatcher) record(inv Invocation, backend Backend) {
	observation := InvocationObservation{
		InvocationID: inv.ID,
		ToolName:     inv.Tool,
		Cluster:      backend.Cluster,
		DurationMS:   inv.Duration.Milliseconds(),
		Success:      inv.OK(),
	}
	if inv.Err != nil {
		observation.Kind = inv.Err.Kind
		observation.Message = inv.Err.Message
	}
	d.observer.ObserveInvocation(observation)

	attrs := []any{
		"tool", inv.Tool,
		"invocation_id", inv.ID,
		"duration_ms", observation.DurationMS,
	}
	if backend.Cluster != "" {
		attrs = append(attrs, "cluster", backend.Cluster)
	}
	switch {
	case inv.OK():
		d.logger.Debug("tool invocation succeeded", attrs...)
	case inv.Err.Kind == KindHandlerFault:
		d.logger.Warn("tool invocation failed", append(attrs, "kind", inv.Err.Kind, "error", inv.Err.Message)...)
	default:
		d.logger.Info("tool invocation rejected", append(attrs, "kind", inv.Err.Kind, "error", inv.Err.Message)...)
	}
}

// render serializes a handler value: strings pass through, everything else
// becomes indented JSON.
func render(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
