// Package modbus serves device.Controller for a dishwasher whose mode state
// is exposed as holding registers behind a Modbus/TCP gateway.
//
// One register holds one value. Nullable attributes use NullValue to mean
// null. SupportedModes is a count register followed by one register per
// mode. ChangeToMode is a command register: writing a mode triggers the
// change and the gateway latches the resulting ModeStatus into a status
// register.
package modbus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/goburrow/modbus"

	"github.com/roach88/dishm/internal/cluster"
	"github.com/roach88/dishm/internal/device"
	"github.com/roach88/dishm/internal/ir"
)

// DefaultNullValue encodes null in a nullable register.
const DefaultNullValue uint16 = 0xFFFF

// DefaultTimeout is used when Config.Timeout is empty.
const DefaultTimeout = 2 * time.Second

// RegisterMap locates attributes in the holding register space. Optional
// registers are nil when the gateway does not expose the attribute.
type RegisterMap struct {
	CurrentMode         uint16  `yaml:"current_mode" json:"current_mode"`
	SupportedModesCount uint16  `yaml:"supported_modes_count" json:"supported_modes_count"`
	SupportedModesBase  uint16  `yaml:"supported_modes_base" json:"supported_modes_base"`
	ChangeToMode        uint16  `yaml:"change_to_mode" json:"change_to_mode"`
	ChangeToModeStatus  uint16  `yaml:"change_to_mode_status" json:"change_to_mode_status"`
	StartUpMode         *uint16 `yaml:"start_up_mode" json:"start_up_mode"`
	OnMode              *uint16 `yaml:"on_mode" json:"on_mode"`
	OnOff               *uint16 `yaml:"on_off" json:"on_off"`
	StartUpOnOff        *uint16 `yaml:"start_up_on_off" json:"start_up_on_off"`
}

// Config is the gateway connection and register layout.
type Config struct {
	Address   string      `yaml:"address" json:"address"`
	UnitID    uint8       `yaml:"unit_id" json:"unit_id"`
	Timeout   string      `yaml:"timeout" json:"timeout"`
	NullValue *uint16     `yaml:"null_value" json:"null_value"`
	Registers RegisterMap `yaml:"registers" json:"registers"`
}

// Validate checks the configuration. It does not mutate it.
func (c Config) Validate() error {
	if c.Address == "" {
		return errors.New("modbus: address required")
	}
	if c.Timeout != "" {
		if _, err := time.ParseDuration(c.Timeout); err != nil {
			return fmt.Errorf("modbus: timeout: %w", err)
		}
	}
	r := c.Registers
	if r.ChangeToMode == r.ChangeToModeStatus {
		return errors.New("modbus: change_to_mode and change_to_mode_status must differ")
	}
	return nil
}

func (c Config) timeout() time.Duration {
	if d, err := time.ParseDuration(c.Timeout); err == nil && c.Timeout != "" {
		return d
	}
	return DefaultTimeout
}

func (c Config) nullValue() uint16 {
	if c.NullValue != nil {
		return *c.NullValue
	}
	return DefaultNullValue
}

// Registers is the subset of modbus.Client the controller uses.
type Registers interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
}

// Controller talks to the gateway. It serializes requests.
type Controller struct {
	mu       sync.Mutex
	endpoint uint16
	regs     Registers
	closer   io.Closer
	cfg      Config
}

var _ device.Controller = (*Controller)(nil)

// Dial creates a controller over Modbus/TCP for a device endpoint.
func Dial(endpoint uint16, cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h := modbus.NewTCPClientHandler(cfg.Address)
	h.Timeout = cfg.timeout()
	h.SlaveId = cfg.UnitID

	if err := h.Connect(); err != nil {
		return nil, fmt.Errorf("modbus: connect %s: %w", cfg.Address, err)
	}
	return New(endpoint, modbus.NewClient(h), h, cfg), nil
}

// New wraps an existing register client. closer may be nil.
func New(endpoint uint16, regs Registers, closer io.Closer, cfg Config) *Controller {
	return &Controller{endpoint: endpoint, regs: regs, closer: closer, cfg: cfg}
}

// Close closes the underlying connection.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// ReadAttribute implements device.Controller.
func (c *Controller) ReadAttribute(ctx context.Context, path device.AttributePath) (ir.Value, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if path.Endpoint != c.endpoint {
		return nil, &device.StatusError{Op: "read", Target: path.String(), Status: cluster.StatusUnsupportedEndpoint}
	}
	attr, ok := cluster.LookupAttribute(path.Cluster, path.Attribute)
	if !ok {
		return nil, &device.StatusError{Op: "read", Target: path.String(), Status: cluster.StatusUnsupportedAttribute}
	}

	if attr == cluster.SupportedModes {
		return c.readSupportedModes(path)
	}

	addr, ok := c.register(attr)
	if !ok {
		return nil, &device.StatusError{Op: "read", Target: path.String(), Status: cluster.StatusUnsupportedAttribute}
	}
	raw, err := c.readRegister(addr)
	if err != nil {
		return nil, c.translate("read", path.String(), err)
	}

	switch {
	case attr == cluster.OnOff:
		return ir.Bool(raw != 0), nil
	case attr.Nullable && raw == c.cfg.nullValue():
		return ir.Null{}, nil
	}
	return ir.Uint(raw), nil
}

func (c *Controller) readSupportedModes(path device.AttributePath) (ir.Value, error) {
	r := c.cfg.Registers
	count, err := c.readRegister(r.SupportedModesCount)
	if err != nil {
		return nil, c.translate("read", path.String(), err)
	}
	if count == 0 {
		return ir.List{}, nil
	}
	data, err := c.regs.ReadHoldingRegisters(r.SupportedModesBase, count)
	if err != nil {
		return nil, c.translate("read", path.String(), err)
	}
	values := unpackRegisters(data)
	if len(values) != int(count) {
		return nil, fmt.Errorf("modbus: read %s: got %d registers, want %d", path, len(values), count)
	}

	opts := make([]cluster.ModeOption, len(values))
	for i, v := range values {
		if v > 0xFF {
			return nil, fmt.Errorf("modbus: read %s: register %d holds %d, not a mode", path, i, v)
		}
		opts[i] = cluster.ModeOption{Label: fmt.Sprintf("Mode %d", v), Mode: uint8(v)}
	}
	return cluster.EncodeModeOptions(opts), nil
}

// WriteAttribute implements device.Controller.
func (c *Controller) WriteAttribute(ctx context.Context, writes []device.AttributeWrite) ([]device.WriteStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	statuses := make([]device.WriteStatus, 0, len(writes))
	for _, w := range writes {
		status, err := c.write(w)
		if err != nil {
			return statuses, err
		}
		statuses = append(statuses, device.WriteStatus{Path: w.Path, Status: status})
	}
	return statuses, nil
}

func (c *Controller) write(w device.AttributeWrite) (cluster.Status, error) {
	if w.Path.Endpoint != c.endpoint {
		return cluster.StatusUnsupportedEndpoint, nil
	}
	attr, ok := cluster.LookupAttribute(w.Path.Cluster, w.Path.Attribute)
	if !ok {
		return cluster.StatusUnsupportedAttribute, nil
	}
	if !attr.Writable {
		return cluster.StatusUnsupportedWrite, nil
	}
	addr, ok := c.register(attr)
	if !ok {
		return cluster.StatusUnsupportedAttribute, nil
	}

	raw := c.cfg.nullValue()
	if !ir.IsNull(w.Value) {
		v, ok := ir.AsUint(w.Value)
		if !ok || v > 0xFF {
			return cluster.StatusConstraintError, nil
		}
		raw = uint16(v)
	}

	if _, err := c.regs.WriteSingleRegister(addr, raw); err != nil {
		var st *device.StatusError
		if errors.As(c.translate("write", w.Path.String(), err), &st) {
			return st.Status, nil
		}
		return 0, fmt.Errorf("modbus: write %s: %w", w.Path, err)
	}
	return cluster.StatusSuccess, nil
}

// SendCommand implements device.Controller.
func (c *Controller) SendCommand(ctx context.Context, req device.CommandRequest) (device.CommandResponse, error) {
	if err := ctx.Err(); err != nil {
		return device.CommandResponse{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	target := fmt.Sprintf("%d/%s.0x%02X", req.Endpoint, req.Cluster, uint32(req.Command))
	if req.Endpoint != c.endpoint {
		return device.CommandResponse{}, &device.StatusError{Op: "invoke", Target: target, Status: cluster.StatusUnsupportedEndpoint}
	}
	if req.Cluster != cluster.DishwasherModeID || req.Command != cluster.CmdChangeToMode {
		return device.CommandResponse{}, &device.StatusError{Op: "invoke", Target: target, Status: cluster.StatusUnsupportedCommand}
	}
	newMode, ok := ir.AsUint(req.Fields["newMode"])
	if !ok || newMode > 0xFF {
		return device.CommandResponse{}, &device.StatusError{Op: "invoke", Target: target, Status: cluster.StatusConstraintError}
	}

	r := c.cfg.Registers
	if _, err := c.regs.WriteSingleRegister(r.ChangeToMode, uint16(newMode)); err != nil {
		return device.CommandResponse{}, c.translate("invoke", target, err)
	}
	status, err := c.readRegister(r.ChangeToModeStatus)
	if err != nil {
		return device.CommandResponse{}, c.translate("invoke", target, err)
	}
	if status > 0xFF {
		return device.CommandResponse{}, fmt.Errorf("modbus: invoke %s: status register holds %d", target, status)
	}

	return device.CommandResponse{
		Cluster: cluster.DishwasherModeID,
		Command: cluster.CmdChangeToModeResponse,
		Fields:  cluster.EncodeChangeToModeResponse(cluster.ModeStatus(status), ""),
	}, nil
}

// ExpireSessions closes the TCP connection. The handler reconnects on the
// next request.
func (c *Controller) ExpireSessions(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closer == nil {
		return nil
	}
	if err := c.closer.Close(); err != nil {
		return fmt.Errorf("modbus: expire session: %w", err)
	}
	return nil
}

func (c *Controller) register(attr cluster.Attribute) (uint16, bool) {
	r := c.cfg.Registers
	var p *uint16
	switch attr {
	case cluster.CurrentMode:
		return r.CurrentMode, true
	case cluster.StartUpMode:
		p = r.StartUpMode
	case cluster.OnMode:
		p = r.OnMode
	case cluster.OnOff:
		p = r.OnOff
	case cluster.StartUpOnOff:
		p = r.StartUpOnOff
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

func (c *Controller) readRegister(addr uint16) (uint16, error) {
	data, err := c.regs.ReadHoldingRegisters(addr, 1)
	if err != nil {
		return 0, err
	}
	if len(data) < 2 {
		return 0, fmt.Errorf("modbus: short read at register %d", addr)
	}
	return uint16(data[0])<<8 | uint16(data[1]), nil
}

// translate maps Modbus exceptions to interaction statuses. Other errors
// are transport failures and are wrapped as-is.
func (c *Controller) translate(op, target string, err error) error {
	var me *modbus.ModbusError
	if !errors.As(err, &me) {
		return fmt.Errorf("modbus: %s %s: %w", op, target, err)
	}
	status := cluster.StatusFailure
	switch me.ExceptionCode {
	case modbus.ExceptionCodeIllegalFunction:
		status = cluster.StatusUnsupportedCommand
	case modbus.ExceptionCodeIllegalDataAddress:
		status = cluster.StatusUnsupportedAttribute
	case modbus.ExceptionCodeIllegalDataValue:
		status = cluster.StatusConstraintError
	case modbus.ExceptionCodeServerDeviceBusy:
		status = cluster.StatusInvalidInState
	}
	return &device.StatusError{Op: op, Target: target, Status: status}
}

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
