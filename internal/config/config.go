// Package config loads the run configuration from YAML or CUE.
//
// A configuration names the test case, the endpoint, where the PICS come
// from, how to reach the device and where to record runs:
//
//	test_case: TC_DISHM_3_2
//	endpoint: 1
//	pics_file: dut.pics
//	pics:
//	  DISHM.S.F00: false
//	device:
//	  transport: sim
//	  sim:
//	    state:
//	      supported_modes: [{label: Normal, mode: 0}, {label: Heavy, mode: 1}]
//	store: runs.db
//
// CUE files are checked against the embedded #Config schema before they are
// decoded, so constraint violations are reported with their position.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/dishm/internal/cluster"
	"github.com/roach88/dishm/internal/device/modbus"
	"github.com/roach88/dishm/internal/device/sim"
	"github.com/roach88/dishm/internal/pics"
)

//go:embed schema.cue
var schemaCUE string

// Transports.
const (
	TransportSim    = "sim"
	TransportModbus = "modbus"
)

// Operators.
const (
	OperatorConsole = "console"
	OperatorAuto    = "auto"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultTestCase = "TC_DISHM_3_2"
	DefaultEndpoint = 1
	DefaultLogLevel = "info"
)

// Config is a complete run configuration.
type Config struct {
	TestCase string         `yaml:"test_case" json:"test_case"`
	Endpoint uint16         `yaml:"endpoint" json:"endpoint"`
	NodeID   uint64         `yaml:"node_id" json:"node_id"`
	PICSFile string         `yaml:"pics_file" json:"pics_file"`
	PICS     map[string]any `yaml:"pics" json:"pics"`
	Params   map[string]any `yaml:"params" json:"params"`
	Device   Device         `yaml:"device" json:"device"`
	Store    string         `yaml:"store" json:"store"`
	LogLevel string         `yaml:"log_level" json:"log_level"`
	Operator string         `yaml:"operator" json:"operator"`

	// baseDir resolves relative paths; set by Load.
	baseDir string
}

// Device selects and configures the DUT transport.
type Device struct {
	Transport string         `yaml:"transport" json:"transport"`
	Sim       *SimDevice     `yaml:"sim" json:"sim"`
	Modbus    *modbus.Config `yaml:"modbus" json:"modbus"`
}

// SimDevice is the initial state and faults of a simulated DUT.
type SimDevice struct {
	State  sim.State  `yaml:"state" json:"state"`
	Faults sim.Faults `yaml:"faults" json:"faults"`
}

// DefaultSimState is a two-mode dishwasher with a null StartUpMode.
func DefaultSimState() sim.State {
	return sim.State{
		SupportedModes: []cluster.ModeOption{
			{Label: "Normal", Mode: 0},
			{Label: "Heavy", Mode: 1},
		},
	}
}

// Load reads a configuration file. The format is chosen by extension:
// ".cue" is CUE, anything else is YAML. Defaults are applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *Config
	if strings.EqualFold(filepath.Ext(path), ".cue") {
		cfg, err = ParseCUE(data, path)
	} else {
		cfg, err = ParseYAML(data)
	}
	if err != nil {
		return nil, err
	}
	cfg.baseDir = filepath.Dir(path)
	cfg.ApplyDefaults()
	return cfg, nil
}

// ParseYAML decodes YAML configuration. Unknown fields are rejected.
func ParseYAML(data []byte) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	return &cfg, nil
}

// ParseCUE evaluates CUE configuration against the #Config schema and
// decodes it. filename is used in error positions.
func ParseCUE(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue")).LookupPath(cue.ParsePath("#Config"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("config schema: %w", err)
	}

	v := ctx.CompileBytes(data, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	unified := schema.Unify(v)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	var cfg Config
	if err := unified.Decode(&cfg); err != nil {
		return nil, formatCUEError(err)
	}
	return &cfg, nil
}

// formatCUEError reports the first CUE error with its position.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("invalid CUE config: %w", err)
	}
	first := errs[0]
	if positions := cueerrors.Positions(first); len(positions) > 0 && positions[0].IsValid() {
		pos := positions[0]
		return fmt.Errorf("invalid CUE config: %s:%d:%d: %v", pos.Filename(), pos.Line(), pos.Column(), first)
	}
	return fmt.Errorf("invalid CUE config: %v", first)
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.TestCase == "" {
		c.TestCase = DefaultTestCase
	}
	if c.Endpoint == 0 {
		c.Endpoint = DefaultEndpoint
	}
	if c.Device.Transport == "" {
		c.Device.Transport = TransportSim
	}
	if c.Device.Transport == TransportSim && c.Device.Sim == nil {
		c.Device.Sim = &SimDevice{State: DefaultSimState()}
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Operator == "" {
		c.Operator = OperatorConsole
	}
}

// Validate checks the configuration. It never mutates it.
func (c *Config) Validate() error {
	if c.TestCase == "" {
		return fmt.Errorf("test_case is required")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Operator {
	case OperatorConsole, OperatorAuto:
	default:
		return fmt.Errorf("operator: unknown operator %q (want console or auto)", c.Operator)
	}

	switch c.Device.Transport {
	case TransportSim:
		if c.Device.Sim == nil {
			return fmt.Errorf("device.sim is required for the sim transport")
		}
		if err := c.Device.Sim.State.Validate(); err != nil {
			return fmt.Errorf("device.sim.state: %w", err)
		}
	case TransportModbus:
		if c.Device.Modbus == nil {
			return fmt.Errorf("device.modbus is required for the modbus transport")
		}
		if err := c.Device.Modbus.Validate(); err != nil {
			return fmt.Errorf("device.modbus: %w", err)
		}
		if c.Operator == OperatorAuto {
			return fmt.Errorf("operator: auto requires the sim transport, a real DUT needs a person to power cycle it")
		}
	default:
		return fmt.Errorf("device.transport: unknown transport %q (want sim or modbus)", c.Device.Transport)
	}

	if _, err := pics.Parse(c.PICS); err != nil {
		return fmt.Errorf("pics: %w", err)
	}
	return nil
}

// ParseLevel maps a log level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("log_level: unknown level %q", name)
}

// LoadPICS returns the PICS file overlaid with the inline entries. Inline
// entries win.
func (c *Config) LoadPICS() (pics.Set, error) {
	set := pics.Set{}
	if c.PICSFile != "" {
		var err error
		if set, err = pics.Load(c.Path(c.PICSFile)); err != nil {
			return nil, err
		}
	}
	inline, err := pics.Parse(c.PICS)
	if err != nil {
		return nil, fmt.Errorf("pics: %w", err)
	}
	return set.Merge(inline), nil
}

// Path resolves p relative to the configuration file's directory.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.baseDir == "" {
		return p
	}
	return filepath.Join(c.baseDir, p)
}

// RunParams are the user parameters handed to the test case. The endpoint
// is always present.
func (c *Config) RunParams() map[string]any {
	params := make(map[string]any, len(c.Params)+1)
	for k, v := range c.Params {
		params[k] = v
	}
	params["endpoint"] = c.Endpoint
	return params
}
