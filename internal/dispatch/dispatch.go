// ABOUTME: The execution orchestrator: resolve, validate, permit, then run the handler under a deadline race.
// ABOUTME: Emits exactly one execution log entry per dispatch, on every path, and never panics outward.

package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/murmurchat/concierge/internal/capability"
	"github.com/murmurchat/concierge/internal/execlog"
	"github.com/murmurchat/concierge/internal/permission"
	"github.com/murmurchat/concierge/internal/validate"
)

// DefaultHandlerTimeout is the hard deadline for a single handler invocation
// unless the capability schema or configuration overrides it.
const DefaultHandlerTimeout = 2 * time.Second

// Envelope is one capability invocation as it crosses the wire boundary.
// CallerID is attached by the transport from an already-verified identity
// and is never read from the request payload.
type Envelope struct {
	Capability string
	Parameters json.RawMessage
	CallerID   string
}

// Dispatcher turns envelopes into permission-checked, time-bounded handler
// executions. It holds no per-call mutable state; any number of dispatches
// may run concurrently.
type Dispatcher struct {
	registry *capability.Registry
	perms    *permission.Checker
	log      *execlog.Logger
	timeout  time.Duration
	logger   *slog.Logger
	tracer   trace.Tracer
}

// Config for NewDispatcher. Timeout falls back to DefaultHandlerTimeout.
type Config struct {
	Registry   *capability.Registry
	Permission *permission.Checker
	Log        *execlog.Logger
	Timeout    time.Duration
	Logger     *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(cfg Config) *Dispatcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultHandlerTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		registry: cfg.Registry,
		perms:    cfg.Permission,
		log:      cfg.Log,
		timeout:  timeout,
		logger:   logger.With("component", "dispatch"),
		tracer:   otel.Tracer("concierge/dispatch"),
	}
}

type handlerResult struct {
	data json.RawMessage
	err  error
}

// Dispatch executes one envelope and always returns a value: a typed result
// or a taxonomy error. Exactly one execution log entry is emitted before
// returning, including on the short-circuited failure paths.
func (d *Dispatcher) Dispatch(ctx context.Context, env *Envelope) *Outcome {
	executionID := uuid.New().String()
	startedAt := time.Now()

	ctx, span := d.tracer.Start(ctx, "dispatch",
		trace.WithAttributes(
			attribute.String("capability.name", env.Capability),
			attribute.String("execution.id", executionID),
		),
	)
	defer span.End()

	outcome, digest := d.run(ctx, env, executionID)

	entry := &execlog.Entry{
		ExecutionID:      executionID,
		Capability:       env.Capability,
		CallerID:         env.CallerID,
		ParametersDigest: digest,
		StartedAt:        startedAt.UTC(),
		DurationMs:       time.Since(startedAt).Milliseconds(),
		Outcome:          execlog.OutcomeOK,
	}
	if !outcome.OK() {
		entry.Outcome = execlog.OutcomeError
		entry.ErrorCode = string(outcome.Code)
		span.SetStatus(otelcodes.Error, string(outcome.Code))
		span.SetAttributes(attribute.String("error.code", string(outcome.Code)))
	}
	d.log.Record(entry)

	d.logger.Info("dispatch complete",
		"execution_id", executionID,
		"capability", env.Capability,
		"caller_id", env.CallerID,
		"outcome", entry.Outcome,
		"error_code", entry.ErrorCode,
		"duration_ms", entry.DurationMs,
	)
	return outcome
}

// run performs the dispatch sequence and returns the outcome plus the
// sanitized parameter digest for the log entry.
func (d *Dispatcher) run(ctx context.Context, env *Envelope, executionID string) (*Outcome, string) {
	schema, found := d.registry.Resolve(env.Capability)
	if !found {
		return errOutcome(executionID, CodeInvalidCapability,
			fmt.Sprintf("unknown capability %q", env.Capability)), ""
	}

	result := validate.Params(schema, env.Parameters)
	if !result.OK {
		out := errOutcome(executionID, CodeInvalidParameters, "parameters failed validation")
		out.Details = result.Violations
		return out, ""
	}
	digest := execlog.ParametersDigest(result.Normalized)

	decision := d.perms.Check(ctx, env.CallerID, schema, result.Normalized)
	if !decision.Allowed {
		return errOutcome(executionID, CodePermissionDenied, decision.Reason), digest
	}

	params, err := json.Marshal(result.Normalized)
	if err != nil {
		return errOutcome(executionID, CodeInternal, "encoding normalized parameters"), digest
	}

	return d.invoke(ctx, schema, env.CallerID, executionID, params), digest
}

// invoke races the handler against the capability's deadline. If the timer
// fires first the caller gets a timeout immediately; the handler goroutine is
// abandoned but shares the expired context, so collaborator calls it issued
// are cancelled at their source.
func (d *Dispatcher) invoke(ctx context.Context, schema *capability.Schema, callerID, executionID string, params json.RawMessage) *Outcome {
	timeout := d.timeout
	if schema.Timeout > 0 {
		timeout = schema.Timeout
	}
	hctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ch := make(chan handlerResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- handlerResult{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		data, err := schema.Handler(hctx, callerID, params)
		ch <- handlerResult{data: data, err: err}
	}()

	select {
	case res := <-ch:
		if res.err != nil {
			code := classifyHandlerError(res.err)
			d.logger.Warn("handler error",
				"capability", schema.Name,
				"execution_id", executionID,
				"code", string(code),
				"error", res.err,
			)
			return errOutcome(executionID, code, publicMessage(code, schema.Name))
		}
		return okOutcome(executionID, res.data)
	case <-hctx.Done():
		if ctx.Err() != nil {
			// The caller went away; report it as a timeout all the same.
			d.logger.Debug("dispatch context cancelled",
				"capability", schema.Name,
				"execution_id", executionID,
			)
		}
		return errOutcome(executionID, CodeTimeout,
			fmt.Sprintf("capability %q exceeded its %s deadline", schema.Name, timeout))
	}
}

// publicMessage keeps wire-visible error text generic; the detailed cause is
// in the server log, never in the response.
func publicMessage(code Code, capabilityName string) string {
	switch code {
	case CodeUpstreamUnavailable:
		return fmt.Sprintf("an upstream dependency of %q failed or was unreachable", capabilityName)
	case CodeInvalidParameters:
		return "parameters were rejected by the handler"
	case CodeTimeout:
		return fmt.Sprintf("capability %q exceeded its deadline", capabilityName)
	default:
		return "the capability failed unexpectedly"
	}
}
