package harness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/roach88/dishm/internal/cluster"
	"github.com/roach88/dishm/internal/device"
	"github.com/roach88/dishm/internal/ir"
	"github.com/roach88/dishm/internal/operator"
	"github.com/roach88/dishm/internal/pics"
	"github.com/roach88/dishm/internal/testutil"
)

// TestCase is one conformance procedure.
type TestCase interface {
	Name() string
	Description() string
	Run(ctx context.Context, t *Test) error
}

// Registry maps test case names to cases.
type Registry map[string]TestCase

// Register adds tc under its name.
func (r Registry) Register(tc TestCase) {
	r[tc.Name()] = tc
}

// Lookup finds a test case by name.
func (r Registry) Lookup(name string) (TestCase, bool) {
	tc, ok := r[name]
	return tc, ok
}

// Names returns the registered names in sorted order.
func (r Registry) Names() []string {
	names := make([]string, 0, len(r))
	for n := range r {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Env is everything a run needs from the outside.
type Env struct {
	Device   device.Controller
	PICS     pics.Set
	Operator operator.Confirmer
	Logger   *slog.Logger

	// Params are user parameters passed to the case (e.g. "endpoint").
	Params map[string]any

	// Clock and RunIDs default to a fresh Clock and UUIDv7Generator.
	Clock  Sequencer
	RunIDs RunIDGenerator
}

// Execute runs tc and returns its result. Execute never returns nil.
//
// Outcome is derived from the error returned by the case: nil is pass,
// *SkipError is skip, *AssertionError is fail, anything else is error.
func Execute(ctx context.Context, tc TestCase, env Env) *Result {
	if env.Clock == nil {
		env.Clock = NewClock()
	}
	if env.RunIDs == nil {
		env.RunIDs = UUIDv7Generator{}
	}
	if env.Logger == nil {
		env.Logger = testutil.DiscardLogger()
	}
	if env.PICS == nil {
		env.PICS = pics.Set{}
	}

	result := NewResult(env.RunIDs.Generate(), tc.Name())
	t := &Test{
		PICS:     env.PICS,
		Logger:   env.Logger.With("test_case", tc.Name(), "run_id", result.RunID),
		params:   env.Params,
		operator: env.Operator,
		clock:    env.Clock,
		result:   result,
	}
	t.device = &recorder{inner: env.Device, t: t}
	if ep, err := t.EndpointParam(); err == nil {
		result.Endpoint = ep
	}

	t.Logger.Info("test case started", "description", tc.Description())
	var err error
	if env.Device == nil {
		err = errors.New("no device configured")
	} else {
		err = tc.Run(ctx, t)
	}
	classify(result, err)
	t.Logger.Info("test case finished", "outcome", string(result.Outcome), "events", len(result.Trace))

	if digest, derr := digestResult(result); derr == nil {
		result.Digest = digest
	} else {
		t.Logger.Warn("digest failed", "error", derr)
	}
	return result
}

func classify(result *Result, err error) {
	var (
		skip *SkipError
		ae   *AssertionError
	)
	switch {
	case err == nil:
		result.Outcome = OutcomePass
	case errors.As(err, &skip):
		result.Outcome = OutcomeSkip
		result.SkipReason = skip.Reason
	case errors.As(err, &ae):
		result.AddError(ae.Summary())
	default:
		result.Outcome = OutcomeError
		result.Errors = append(result.Errors, err.Error())
	}
}

func digestResult(r *Result) (string, error) {
	ids := make([]string, len(r.Trace))
	for i, e := range r.Trace {
		ids[i] = e.ID
	}
	return ir.RunDigest(r.TestCase, string(r.Outcome), ids)
}

// Test is the per-run context handed to a test case. Device operations go
// through Test so every interaction lands in the trace.
type Test struct {
	PICS   pics.Set
	Logger *slog.Logger

	params   map[string]any
	operator operator.Confirmer
	device   device.Controller
	clock    Sequencer
	result   *Result
	step     int
}

// Result returns the result being built. Test cases should not mutate it.
func (t *Test) Result() *Result {
	return t.result
}

// CheckPICS reports whether key is declared supported.
func (t *Test) CheckPICS(key string) bool {
	return t.PICS.Check(key)
}

// PICSDeclared reports whether key is present in the PICS set at all.
func (t *Test) PICSDeclared(key string) bool {
	return t.PICS.Has(key)
}

// UintParam returns the user parameter key as an unsigned integer, or def
// when unset.
func (t *Test) UintParam(key string, def uint64) (uint64, error) {
	raw, ok := t.params[key]
	if !ok || raw == nil {
		return def, nil
	}
	v, err := ir.FromAny(raw)
	if err != nil {
		return 0, fmt.Errorf("param %s: %w", key, err)
	}
	u, ok := ir.AsUint(v)
	if !ok {
		return 0, fmt.Errorf("param %s: expected unsigned integer, got %s", key, ir.Format(v))
	}
	return u, nil
}

// EndpointParam returns the "endpoint" parameter, defaulting to 1. Values
// outside the 16-bit endpoint range are rejected rather than truncated.
func (t *Test) EndpointParam() (uint16, error) {
	ep, err := t.UintParam("endpoint", 1)
	if err != nil {
		return 0, err
	}
	if ep > math.MaxUint16 {
		return 0, fmt.Errorf("param endpoint: %d exceeds the maximum endpoint %d", ep, math.MaxUint16)
	}
	return uint16(ep), nil
}

// PrintStep announces a test step.
func (t *Test) PrintStep(n int, description string) {
	t.step = n
	seq := t.record(TraceEvent{Kind: EventStep, Step: n, Message: description})
	t.result.Steps = append(t.result.Steps, StepRecord{Number: n, Description: description, Seq: seq})
	t.Logger.Info(fmt.Sprintf("***** Test Step %d : %s", n, description))
}

// ReadSingleAttributeCheckSuccess reads one attribute. A non-success status
// fails the test.
func (t *Test) ReadSingleAttributeCheckSuccess(ctx context.Context, endpoint uint16, attr cluster.Attribute) (ir.Value, error) {
	v, err := t.device.ReadAttribute(ctx, device.PathOf(endpoint, attr))
	if err != nil {
		var se *device.StatusError
		if errors.As(err, &se) {
			return nil, &AssertionError{
				Type:     "read_status",
				Message:  fmt.Sprintf("Unexpected error returned reading %s", attr),
				Expected: cluster.StatusSuccess.String(),
				Actual:   se.Status.String(),
			}
		}
		return nil, fmt.Errorf("read %s: %w", attr, err)
	}
	return v, nil
}

// SendSingleCommand invokes cmd on endpoint.
func (t *Test) SendSingleCommand(ctx context.Context, endpoint uint16, cmd cluster.Command, fields ir.Struct) (device.CommandResponse, error) {
	resp, err := t.device.SendCommand(ctx, device.CommandRequest{
		Endpoint: endpoint,
		Cluster:  cmd.Cluster,
		Command:  cmd.ID,
		Fields:   fields,
	})
	if err != nil {
		return device.CommandResponse{}, fmt.Errorf("invoke %s: %w", cmd, err)
	}
	return resp, nil
}

// WriteAttributes writes attributes and returns the per-attribute statuses.
func (t *Test) WriteAttributes(ctx context.Context, writes []device.AttributeWrite) ([]device.WriteStatus, error) {
	statuses, err := t.device.WriteAttribute(ctx, writes)
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	return statuses, nil
}

// ExpireSessions drops the current session with the device.
func (t *Test) ExpireSessions(ctx context.Context) error {
	if err := t.device.ExpireSessions(ctx); err != nil {
		return fmt.Errorf("expire sessions: %w", err)
	}
	return nil
}

// ConfirmOperator asks the operator to perform action and blocks until
// they acknowledge prompt.
func (t *Test) ConfirmOperator(ctx context.Context, action, prompt string) error {
	t.record(TraceEvent{Kind: EventPrompt, Target: action, Message: prompt})
	t.Logger.Info("waiting for operator", "action", action)
	if t.operator == nil {
		return errors.New("operator action required but no operator is configured")
	}
	if err := t.operator.Confirm(ctx, prompt); err != nil {
		return fmt.Errorf("operator: %w", err)
	}
	return nil
}

// Skip ends the run with a skip outcome.
func (t *Test) Skip(reason string) error {
	t.Logger.Info(reason)
	return &SkipError{Reason: reason}
}

// record stamps and appends e to the trace and returns its seq.
func (t *Test) record(e TraceEvent) int64 {
	e.Seq = t.clock.Next()
	if e.Kind != EventStep && t.step != 0 {
		e.Step = t.step
	}
	id, err := ir.EventID(t.result.RunID, e.Kind, e.Payload(), e.Seq)
	if err != nil {
		t.Logger.Warn("event id failed", "kind", e.Kind, "error", err)
	}
	e.ID = id
	t.result.Trace = append(t.result.Trace, e)
	return e.Seq
}
