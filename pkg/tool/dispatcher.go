package tool

import (
	"context"
	"fmt"
	"time"

	sjs "github.com/santhosh-tekuri/jsonschema/v6"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/oceanbase/mcp-oceanbase/pkg/errmodel"
)

// Observer receives one observation per dispatched call. The Prometheus
// implementation lives in pkg/metrics.
type Observer interface {
	ObserveToolCall(tool, status string, elapsed time.Duration)
}

// Dispatcher is the single chokepoint between a transport and the
// backend handlers: resolve, validate, invoke, normalize. It holds no
// state between calls beyond the compiled schemas.
type Dispatcher struct {
	reg      *Registry
	logger   *zap.Logger
	observer Observer
	trunc    *truncator
	inputs   map[string]*sjs.Schema
	outputs  map[string]*sjs.Schema
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithLogger sets the call logger. Defaults to a no-op logger.
func WithLogger(l *zap.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithObserver attaches per-call metrics.
func WithObserver(o Observer) DispatcherOption {
	return func(d *Dispatcher) { d.observer = o }
}

// WithResultBudget bounds successful payloads to maxTokens, measured by
// est. A nil estimator counts runes.
func WithResultBudget(est TokenEstimator, maxTokens int) DispatcherOption {
	return func(d *Dispatcher) {
		if maxTokens <= 0 {
			return
		}
		if est == nil {
			est = func(s string) int { return len([]rune(s)) }
		}
		d.trunc = &truncator{estimate: est, maxTokens: maxTokens}
	}
}

// NewDispatcher compiles the schemas of every registered tool. An invalid
// schema is a startup error, not a per-call one.
func NewDispatcher(reg *Registry, opts ...DispatcherOption) (*Dispatcher, error) {
	d := &Dispatcher{
		reg:     reg,
		logger:  zap.NewNop(),
		inputs:  map[string]*sjs.Schema{},
		outputs: map[string]*sjs.Schema{},
	}
	for _, opt := range opts {
		opt(d)
	}
	var err error
	reg.Range(func(t Tool) {
		if err != nil {
			return
		}
		desc := t.Describe()
		in, cerr := compileSchema(desc.InputSchema)
		if cerr != nil {
			err = fmt.Errorf("tool %q: input schema: %w", desc.Name, cerr)
			return
		}
		out, cerr := compileSchema(desc.OutputSchema)
		if cerr != nil {
			err = fmt.Errorf("tool %q: output schema: %w", desc.Name, cerr)
			return
		}
		d.inputs[desc.Name] = in
		d.outputs[desc.Name] = out
	})
	if err != nil {
		return nil, err
	}
	return d, nil
}

// Registry exposes the dispatcher's registry for transport wiring.
func (d *Dispatcher) Registry() *Registry { return d.reg }

// Dispatch resolves name, validates args, invokes the handler, and
// normalizes the outcome. Every returned error is an *errmodel.Error.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	start := time.Now()
	ctx, span := otel.Tracer("pkg/tool").Start(ctx, "Dispatcher.Dispatch",
		trace.WithAttributes(attribute.String("tool.name", name)))
	defer span.End()

	out, err := d.dispatch(ctx, name, args)
	elapsed := time.Since(start)
	status := "success"
	if err != nil {
		status = errmodel.From(err).Kind
		span.RecordError(err)
		d.logger.Warn("tool call failed",
			zap.String("tool", name),
			zap.String("kind", status),
			zap.Duration("elapsed", elapsed))
	} else {
		d.logger.Info("tool call",
			zap.String("tool", name),
			zap.Duration("elapsed", elapsed))
	}
	if d.observer != nil {
		d.observer.ObserveToolCall(name, status, elapsed)
	}
	return out, err
}

func (d *Dispatcher) dispatch(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	t, ok := d.reg.Resolve(name)
	if !ok {
		return nil, errmodel.UnknownTool(name)
	}
	if args == nil {
		args = map[string]any{}
	}
	if err := validateInstance(d.inputs[name], args); err != nil {
		field, msg := validationMessage(err)
		return nil, errmodel.InvalidArguments(field, msg)
	}
	out, err := d.invoke(ctx, t, args)
	if err != nil {
		return nil, err
	}
	if err := validateInstance(d.outputs[name], out); err != nil {
		// The backend broke its own declared contract.
		return nil, errmodel.Execution("tool output validation failed",
			map[string]any{"tool": name, "error": err.Error()})
	}
	return d.trunc.apply(out), nil
}

// invoke runs the handler with panic containment so a misbehaving backend
// cannot take down the serving process.
func (d *Dispatcher) invoke(ctx context.Context, t Tool, args map[string]any) (out map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errmodel.Execution(fmt.Sprintf("tool panicked: %v", r), nil)
		}
	}()
	out, err = t.Invoke(ctx, args)
	if err != nil {
		return nil, errmodel.From(err)
	}
	return out, nil
}
