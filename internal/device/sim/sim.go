// Package sim implements an in-process dishwasher that serves the Dishwasher
// Mode and On/Off clusters through device.Controller.
//
// The appliance keeps two classes of state. Non-volatile attributes
// (StartUpMode, OnMode, StartUpOnOff, SupportedModes) survive PowerCycle.
// Volatile state (CurrentMode is restored by the startup rules, the session
// is dropped) does not. Faults break specific rules so failing runs can be
// reproduced without hardware.
package sim

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/roach88/dishm/internal/cluster"
	"github.com/roach88/dishm/internal/device"
	"github.com/roach88/dishm/internal/ir"
)

// State is the attribute state of the appliance.
type State struct {
	SupportedModes []cluster.ModeOption `yaml:"supported_modes" json:"supported_modes"`
	CurrentMode    uint8                `yaml:"current_mode" json:"current_mode"`
	StartUpMode    *uint8               `yaml:"start_up_mode" json:"start_up_mode"`
	OnMode         *uint8               `yaml:"on_mode" json:"on_mode"`

	// DepOnOff enables the On/Off cluster on the endpoint.
	DepOnOff     bool   `yaml:"dep_on_off" json:"dep_on_off"`
	OnOff        bool   `yaml:"on_off" json:"on_off"`
	StartUpOnOff *uint8 `yaml:"start_up_on_off" json:"start_up_on_off"`
}

// Validate checks the state is one a conforming device could be in.
func (s State) Validate() error {
	seen := make(map[uint8]bool, len(s.SupportedModes))
	for i, m := range s.SupportedModes {
		if seen[m.Mode] {
			return fmt.Errorf("supported_modes[%d]: duplicate mode %d", i, m.Mode)
		}
		seen[m.Mode] = true
	}
	if len(s.SupportedModes) > 0 && !seen[s.CurrentMode] {
		return fmt.Errorf("current_mode %d is not a supported mode", s.CurrentMode)
	}
	if s.StartUpMode != nil && !seen[*s.StartUpMode] {
		return fmt.Errorf("start_up_mode %d is not a supported mode", *s.StartUpMode)
	}
	if s.OnMode != nil && !seen[*s.OnMode] {
		return fmt.Errorf("on_mode %d is not a supported mode", *s.OnMode)
	}
	if s.StartUpOnOff != nil && *s.StartUpOnOff > 2 {
		return fmt.Errorf("start_up_on_off %d out of range", *s.StartUpOnOff)
	}
	return nil
}

// Faults breaks specific behaviors of the appliance.
type Faults struct {
	// VolatileStartUpMode loses StartUpMode on power cycle.
	VolatileStartUpMode bool `yaml:"volatile_start_up_mode" json:"volatile_start_up_mode"`
	// IgnoreStartUpMode leaves CurrentMode untouched on power cycle.
	IgnoreStartUpMode bool `yaml:"ignore_start_up_mode" json:"ignore_start_up_mode"`
	// WriteStatus is returned for every attribute write instead of the
	// computed status. The write is not applied.
	WriteStatus *cluster.Status `yaml:"write_status" json:"write_status"`
	// ChangeToModeStatus is returned in every ChangeToModeResponse. The mode
	// changes only when the status is Success.
	ChangeToModeStatus *cluster.ModeStatus `yaml:"change_to_mode_status" json:"change_to_mode_status"`
	// WrongResponseCommand answers ChangeToMode with the wrong command ID.
	WrongResponseCommand bool `yaml:"wrong_response_command" json:"wrong_response_command"`
	// Unsupported lists attributes ("Cluster.Attribute") the device rejects.
	Unsupported []string `yaml:"unsupported" json:"unsupported"`
}

// Option configures an Appliance.
type Option func(*Appliance)

// WithFaults installs faults.
func WithFaults(f Faults) Option {
	return func(a *Appliance) {
		a.faults = f
	}
}

// WithLogger sets the logger for device-side events.
func WithLogger(l *slog.Logger) Option {
	return func(a *Appliance) {
		a.logger = l
	}
}

// Appliance is a simulated dishwasher on a single endpoint.
// Safe for concurrent use.
type Appliance struct {
	mu          sync.Mutex
	endpoint    uint16
	state       State
	faults      Faults
	logger      *slog.Logger
	sessionOpen bool
	sessions    int
	powerCycles int
}

var _ device.Controller = (*Appliance)(nil)

// New creates an appliance serving endpoint with the given initial state.
func New(endpoint uint16, state State, opts ...Option) (*Appliance, error) {
	if err := state.Validate(); err != nil {
		return nil, fmt.Errorf("sim state: %w", err)
	}
	a := &Appliance{
		endpoint: endpoint,
		state:    cloneState(state),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(a)
	}
	for _, name := range a.faults.Unsupported {
		if _, ok := cluster.AttributeByName(name); !ok {
			return nil, fmt.Errorf("sim faults: unknown attribute %q", name)
		}
	}
	return a, nil
}

// ReadAttribute implements device.Controller.
func (a *Appliance) ReadAttribute(ctx context.Context, path device.AttributePath) (ir.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.openSession()

	attr, status := a.resolve(path)
	if status != cluster.StatusSuccess {
		return nil, &device.StatusError{Op: "read", Target: path.String(), Status: status}
	}

	switch attr {
	case cluster.SupportedModes:
		return cluster.EncodeModeOptions(a.state.SupportedModes), nil
	case cluster.CurrentMode:
		return ir.Uint(a.state.CurrentMode), nil
	case cluster.StartUpMode:
		return ir.NullableUint(a.state.StartUpMode), nil
	case cluster.OnMode:
		return ir.NullableUint(a.state.OnMode), nil
	case cluster.OnOff:
		return ir.Bool(a.state.OnOff), nil
	case cluster.StartUpOnOff:
		return ir.NullableUint(a.state.StartUpOnOff), nil
	}
	return nil, &device.StatusError{Op: "read", Target: path.String(), Status: cluster.StatusUnsupportedAttribute}
}

// WriteAttribute implements device.Controller.
func (a *Appliance) WriteAttribute(ctx context.Context, writes []device.AttributeWrite) ([]device.WriteStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.openSession()

	statuses := make([]device.WriteStatus, 0, len(writes))
	for _, w := range writes {
		statuses = append(statuses, device.WriteStatus{Path: w.Path, Status: a.write(w)})
	}
	return statuses, nil
}

func (a *Appliance) write(w device.AttributeWrite) cluster.Status {
	attr, status := a.resolve(w.Path)
	if status != cluster.StatusSuccess {
		return status
	}
	if !attr.Writable {
		return cluster.StatusUnsupportedWrite
	}
	if a.faults.WriteStatus != nil {
		return *a.faults.WriteStatus
	}

	switch attr {
	case cluster.StartUpMode, cluster.OnMode:
		mode, ok := a.nullableMode(w.Value)
		if !ok {
			return cluster.StatusConstraintError
		}
		if attr == cluster.StartUpMode {
			a.state.StartUpMode = mode
		} else {
			a.state.OnMode = mode
		}
	case cluster.StartUpOnOff:
		if ir.IsNull(w.Value) {
			a.state.StartUpOnOff = nil
			break
		}
		v, ok := ir.AsUint(w.Value)
		if !ok || v > 2 {
			return cluster.StatusConstraintError
		}
		u := uint8(v)
		a.state.StartUpOnOff = &u
	}
	a.logger.Debug("sim write", "attribute", attr.String(), "value", ir.Format(w.Value))
	return cluster.StatusSuccess
}

// nullableMode accepts null or a mode present in SupportedModes.
func (a *Appliance) nullableMode(v ir.Value) (*uint8, bool) {
	if ir.IsNull(v) {
		return nil, true
	}
	u, ok := ir.AsUint(v)
	if !ok || u > 0xFF || !a.supports(uint8(u)) {
		return nil, false
	}
	m := uint8(u)
	return &m, true
}

// SendCommand implements device.Controller.
func (a *Appliance) SendCommand(ctx context.Context, req device.CommandRequest) (device.CommandResponse, error) {
	if err := ctx.Err(); err != nil {
		return device.CommandResponse{}, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.openSession()

	target := fmt.Sprintf("%d/%s.0x%02X", req.Endpoint, req.Cluster, uint32(req.Command))
	if req.Endpoint != a.endpoint {
		return device.CommandResponse{}, &device.StatusError{Op: "invoke", Target: target, Status: cluster.StatusUnsupportedEndpoint}
	}
	if req.Cluster != cluster.DishwasherModeID || req.Command != cluster.CmdChangeToMode {
		return device.CommandResponse{}, &device.StatusError{Op: "invoke", Target: target, Status: cluster.StatusUnsupportedCommand}
	}

	newMode, ok := ir.AsUint(req.Fields["newMode"])
	if !ok || newMode > 0xFF {
		return device.CommandResponse{}, &device.StatusError{Op: "invoke", Target: target, Status: cluster.StatusConstraintError}
	}

	status := cluster.ModeStatusSuccess
	text := ""
	if !a.supports(uint8(newMode)) {
		status = cluster.ModeStatusUnsupportedMode
		text = fmt.Sprintf("mode %d is not supported", newMode)
	}
	if a.faults.ChangeToModeStatus != nil {
		status = *a.faults.ChangeToModeStatus
		text = ""
	}
	if status == cluster.ModeStatusSuccess {
		a.state.CurrentMode = uint8(newMode)
	}
	a.logger.Debug("sim change to mode", "new_mode", newMode, "status", status.String())

	respCmd := cluster.CmdChangeToModeResponse
	if a.faults.WrongResponseCommand {
		respCmd = cluster.CmdChangeToMode
	}
	return device.CommandResponse{
		Cluster: cluster.DishwasherModeID,
		Command: respCmd,
		Fields:  cluster.EncodeChangeToModeResponse(status, text),
	}, nil
}

// ExpireSessions implements device.Controller.
func (a *Appliance) ExpireSessions(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.sessionOpen = false
	return nil
}

// PowerCycle simulates removing and restoring power.
//
// On boot CurrentMode is taken from OnMode when the On/Off dependency masks
// StartUpMode, otherwise from StartUpMode when it is non-null, otherwise it
// keeps its last value. StartUpOnOff is applied to OnOff.
func (a *Appliance) PowerCycle() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.powerCycles++
	a.sessionOpen = false

	if a.faults.VolatileStartUpMode {
		a.state.StartUpMode = nil
	}

	switch {
	case a.onModeMasksStartUp():
		a.state.CurrentMode = *a.state.OnMode
	case a.faults.IgnoreStartUpMode:
	case a.state.StartUpMode != nil:
		a.state.CurrentMode = *a.state.StartUpMode
	}

	if a.state.DepOnOff && a.state.StartUpOnOff != nil {
		switch *a.state.StartUpOnOff {
		case 0:
			a.state.OnOff = false
		case 1:
			a.state.OnOff = true
		case 2:
			a.state.OnOff = !a.state.OnOff
		}
	}
	a.logger.Debug("sim power cycle", "current_mode", a.state.CurrentMode, "cycles", a.powerCycles)
}

func (a *Appliance) onModeMasksStartUp() bool {
	return a.state.DepOnOff &&
		a.state.StartUpOnOff != nil && *a.state.StartUpOnOff != 0 &&
		a.state.OnMode != nil
}

// Snapshot returns the attribute state keyed by attribute name, plus the
// counters "power_cycles" and "sessions".
func (a *Appliance) Snapshot() map[string]ir.Value {
	a.mu.Lock()
	defer a.mu.Unlock()
	return map[string]ir.Value{
		"SupportedModes": cluster.EncodeModeOptions(a.state.SupportedModes),
		"CurrentMode":    ir.Uint(a.state.CurrentMode),
		"StartUpMode":    ir.NullableUint(a.state.StartUpMode),
		"OnMode":         ir.NullableUint(a.state.OnMode),
		"OnOff":          ir.Bool(a.state.OnOff),
		"StartUpOnOff":   ir.NullableUint(a.state.StartUpOnOff),
		"power_cycles":   ir.Uint(a.powerCycles),
		"sessions":       ir.Uint(a.sessions),
	}
}

// State returns a copy of the current state.
func (a *Appliance) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return cloneState(a.state)
}

// openSession counts a new session the first time an operation runs after
// construction, ExpireSessions or PowerCycle. Callers hold mu.
func (a *Appliance) openSession() {
	if !a.sessionOpen {
		a.sessionOpen = true
		a.sessions++
	}
}

// resolve maps a path to a served attribute. Callers hold mu.
func (a *Appliance) resolve(path device.AttributePath) (cluster.Attribute, cluster.Status) {
	if path.Endpoint != a.endpoint {
		return cluster.Attribute{}, cluster.StatusUnsupportedEndpoint
	}
	switch path.Cluster {
	case cluster.DishwasherModeID:
	case cluster.OnOffID:
		if !a.state.DepOnOff {
			return cluster.Attribute{}, cluster.StatusUnsupportedCluster
		}
	default:
		return cluster.Attribute{}, cluster.StatusUnsupportedCluster
	}
	attr, ok := cluster.LookupAttribute(path.Cluster, path.Attribute)
	if !ok {
		return cluster.Attribute{}, cluster.StatusUnsupportedAttribute
	}
	for _, name := range a.faults.Unsupported {
		if name == attr.String() {
			return cluster.Attribute{}, cluster.StatusUnsupportedAttribute
		}
	}
	return attr, cluster.StatusSuccess
}

func (a *Appliance) supports(mode uint8) bool {
	for _, m := range a.state.SupportedModes {
		if m.Mode == mode {
			return true
		}
	}
	return false
}

func cloneState(s State) State {
	out := s
	out.SupportedModes = append([]cluster.ModeOption(nil), s.SupportedModes...)
	out.StartUpMode = clonePtr(s.StartUpMode)
	out.OnMode = clonePtr(s.OnMode)
	out.StartUpOnOff = clonePtr(s.StartUpOnOff)
	return out
}

func clonePtr(p *uint8) *uint8 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
