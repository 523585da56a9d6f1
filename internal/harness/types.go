package harness

import (
	"github.com/roach88/dishm/internal/ir"
)

// Event kinds recorded in a trace.
const (
	EventStep           = "step"
	EventRead           = "read"
	EventWrite          = "write"
	EventInvoke         = "invoke"
	EventExpireSessions = "expire_sessions"
	EventPrompt         = "prompt"
)

// TraceEvent is one recorded interaction of a run: a step announcement, a
// device operation, a session expiry, or an operator prompt.
type TraceEvent struct {
	ID       string   `json:"id,omitempty"`
	Seq      int64    `json:"seq"`
	Kind     string   `json:"kind"`
	Step     int      `json:"step,omitempty"`
	Endpoint uint16   `json:"endpoint,omitempty"`
	Target   string   `json:"target,omitempty"` // "Cluster.Attribute" or "Cluster.Command"
	Args     ir.Value `json:"args,omitempty"`
	Result   ir.Value `json:"result,omitempty"`
	Status   string   `json:"status,omitempty"`
	Message  string   `json:"message,omitempty"`
}

// Ref names the event for trace assertions: "kind" or "kind:target".
func (e TraceEvent) Ref() string {
	if e.Target == "" {
		return e.Kind
	}
	return e.Kind + ":" + e.Target
}

// Matches reports whether the event is named by ref. A bare kind matches
// every event of that kind.
func (e TraceEvent) Matches(ref string) bool {
	return ref == e.Kind || ref == e.Ref()
}

// Payload is the content hashed into the event ID.
func (e TraceEvent) Payload() ir.Struct {
	p := ir.Struct{}
	if e.Step != 0 {
		p["step"] = ir.Uint(e.Step)
	}
	if e.Endpoint != 0 {
		p["endpoint"] = ir.Uint(e.Endpoint)
	}
	if e.Target != "" {
		p["target"] = ir.String(e.Target)
	}
	if e.Args != nil {
		p["args"] = e.Args
	}
	if e.Result != nil {
		p["result"] = e.Result
	}
	if e.Status != "" {
		p["status"] = ir.String(e.Status)
	}
	if e.Message != "" {
		p["message"] = ir.String(e.Message)
	}
	return p
}

// Outcome is the terminal state of a test case run.
type Outcome string

const (
	OutcomePass  Outcome = "pass"
	OutcomeFail  Outcome = "fail"
	OutcomeSkip  Outcome = "skip"
	OutcomeError Outcome = "error"
)

// Successful reports whether the outcome terminates the run successfully.
// A skip is a successful termination.
func (o Outcome) Successful() bool {
	return o == OutcomePass || o == OutcomeSkip
}

// Valid reports whether o is a known outcome.
func (o Outcome) Valid() bool {
	switch o {
	case OutcomePass, OutcomeFail, OutcomeSkip, OutcomeError:
		return true
	}
	return false
}

// StepRecord is one announced test step.
type StepRecord struct {
	Number      int    `json:"number"`
	Description string `json:"description"`
	Seq         int64  `json:"seq"`
}

// Result is the outcome of a test case execution.
type Result struct {
	RunID    string  `json:"run_id"`
	TestCase string  `json:"test_case"`
	Endpoint uint16  `json:"endpoint"`
	Outcome  Outcome `json:"outcome"`

	// Steps lists announced steps in order.
	Steps []StepRecord `json:"steps"`

	// Trace contains every recorded event in seq order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failure messages. Empty on pass.
	Errors []string `json:"errors,omitempty"`

	// SkipReason is set when the outcome is skip.
	SkipReason string `json:"skip_reason,omitempty"`

	// Digest content-addresses the outcome and trace.
	Digest string `json:"digest,omitempty"`
}

// NewResult creates a new passing result.
func NewResult(runID, testCase string) *Result {
	return &Result{
		RunID:    runID,
		TestCase: testCase,
		Outcome:  OutcomePass,
		Steps:    []StepRecord{},
		Trace:    []TraceEvent{},
		Errors:   []string{},
	}
}

// Pass reports whether the run terminated successfully.
func (r *Result) Pass() bool {
	return r.Outcome.Successful()
}

// AddError records a failure message and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	if r.Outcome != OutcomeError {
		r.Outcome = OutcomeFail
	}
}

// Events returns the trace events of the given kind.
func (r *Result) Events(kind string) []TraceEvent {
	var out []TraceEvent
	for _, e := range r.Trace {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}
