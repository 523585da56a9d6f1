package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dishm/internal/device/modbus"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const yamlConfig = `
test_case: TC_DISHM_3_2
endpoint: 2
pics_file: dut.pics
pics:
  DISHM.S.F00: true
device:
  transport: sim
  sim:
    state:
      supported_modes:
        - {label: Normal, mode: 0}
        - {label: Heavy, mode: 1}
      current_mode: 1
      start_up_mode: 0
    faults:
      ignore_start_up_mode: true
store: runs.db
operator: auto
`

const cueConfig = `
test_case: "TC_DISHM_3_2"
endpoint:  2
pics: {
	"DISHM.S.A0002": true
	"DISHM.S.F00":   false
}
device: {
	transport: "sim"
	sim: state: {
		supported_modes: [{label: "Normal", mode: 0}, {label: "Heavy", mode: 1}]
		current_mode:  1
		start_up_mode: null
	}
}
log_level: "debug"
`

func TestLoad_YAML(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "run.yaml", yamlConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, uint16(2), cfg.Endpoint)
	assert.Equal(t, OperatorAuto, cfg.Operator)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel, "default applied")
	require.NotNil(t, cfg.Device.Sim)
	assert.True(t, cfg.Device.Sim.Faults.IgnoreStartUpMode)
	require.NotNil(t, cfg.Device.Sim.State.StartUpMode)
	assert.Equal(t, uint8(0), *cfg.Device.Sim.State.StartUpMode)
	assert.Equal(t, filepath.Join(dir, "runs.db"), cfg.Path(cfg.Store))
}

func TestLoad_CUE(t *testing.T) {
	path := writeFile(t, t.TempDir(), "run.cue", cueConfig)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "TC_DISHM_3_2", cfg.TestCase)
	assert.Equal(t, uint16(2), cfg.Endpoint)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, OperatorConsole, cfg.Operator, "default applied")
	assert.Equal(t, map[string]any{"DISHM.S.A0002": true, "DISHM.S.F00": false}, cfg.PICS)
	require.NotNil(t, cfg.Device.Sim)
	assert.Len(t, cfg.Device.Sim.State.SupportedModes, 2)
	assert.Nil(t, cfg.Device.Sim.State.StartUpMode)
}

func TestParseCUE_SchemaViolations(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"endpoint out of range", `endpoint: 70000`},
		{"unknown transport", `device: transport: "zigbee"`},
		{"non-bool pics", `pics: "DISHM.S.F00": 1`},
		{"unknown field", `tset_case: "TC_DISHM_3_2"`},
		{"syntax error", `test_case: `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCUE([]byte(tt.content), "bad.cue")
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid CUE config")
		})
	}
}

func TestParseYAML_UnknownField(t *testing.T) {
	_, err := ParseYAML([]byte("tset_case: TC_DISHM_3_2\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field tset_case not found")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	assert.Equal(t, DefaultTestCase, cfg.TestCase)
	assert.Equal(t, uint16(DefaultEndpoint), cfg.Endpoint)
	assert.Equal(t, TransportSim, cfg.Device.Transport)
	assert.Equal(t, OperatorConsole, cfg.Operator)
	require.NotNil(t, cfg.Device.Sim)
	assert.Equal(t, DefaultSimState(), cfg.Device.Sim.State)
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{}
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "unknown level"},
		{"bad operator", func(c *Config) { c.Operator = "robot" }, "unknown operator"},
		{"bad transport", func(c *Config) { c.Device.Transport = "zigbee" }, "unknown transport"},
		{"invalid sim state", func(c *Config) { c.Device.Sim.State.CurrentMode = 9 }, "device.sim.state"},
		{"modbus missing", func(c *Config) { c.Device.Transport = TransportModbus }, "device.modbus is required"},
		{"modbus without address", func(c *Config) {
			c.Device.Transport = TransportModbus
			c.Device.Modbus = &modbus.Config{Registers: modbus.RegisterMap{ChangeToMode: 10, ChangeToModeStatus: 11}}
		}, "address required"},
		{"modbus with auto operator", func(c *Config) {
			c.Device.Transport = TransportModbus
			c.Device.Modbus = &modbus.Config{Address: "127.0.0.1:502", Registers: modbus.RegisterMap{ChangeToMode: 10, ChangeToModeStatus: 11}}
			c.Operator = OperatorAuto
		}, "requires the sim transport"},
		{"bad pics", func(c *Config) { c.PICS = map[string]any{"DISHM.S.F00": "perhaps"} }, "pics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := &Config{Operator: OperatorAuto}
	cfg.ApplyDefaults()
	before := *cfg
	_ = cfg.Validate()
	assert.Equal(t, before, *cfg)
}

func TestLoadPICS_InlineWins(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "dut.pics", "# DUT declaration\nDISHM.S.A0002=1\nDISHM.S.F00=0\n")
	path := writeFile(t, dir, "run.yaml", yamlConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	set, err := cfg.LoadPICS()
	require.NoError(t, err)
	assert.True(t, set.Check("DISHM.S.A0002"))
	assert.True(t, set.Check("DISHM.S.F00"), "inline entry overrides the file")
}

func TestLoadPICS_MissingFile(t *testing.T) {
	cfg := &Config{PICSFile: filepath.Join(t.TempDir(), "missing.pics")}
	_, err := cfg.LoadPICS()
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("trace")
	assert.Error(t, err)
}

func TestRunParams(t *testing.T) {
	cfg := &Config{Endpoint: 3, Params: map[string]any{"endpoint": 9, "timeout": 30}}
	params := cfg.RunParams()
	assert.Equal(t, uint16(3), params["endpoint"], "configured endpoint wins")
	assert.Equal(t, 30, params["timeout"])
}
