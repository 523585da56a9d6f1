package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeValidate(t *testing.T, opts *RootOptions, args ...string) (string, string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := NewValidateCommand(opts)
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), errBuf.String(), err
}

func TestValidateYAMLConfig(t *testing.T) {
	path := writeConfig(t, "dishm.yaml", simConfig)

	output, _, err := executeValidate(t, &RootOptions{Format: "text"}, "--config", path)
	require.NoError(t, err)
	assert.Contains(t, output, "✓ Configuration valid")
	assert.Contains(t, output, "Test Case: TC_DISHM_3_2")
	assert.Contains(t, output, "Transport: sim")
	assert.Contains(t, output, "PICS:      6 entries")
}

func TestValidateCUEConfigJSON(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "dut.pics"), []byte("DISHM.S.A0000=1\nDISHM.S.A0002=0\n"), 0644))
	path := filepath.Join(dir, "dishm.cue")
	cue := `
pics_file: "dut.pics"
pics: "DISHM.S.A0002": true
operator: "auto"
`
	require.NoError(t, os.WriteFile(path, []byte(cue), 0644))

	output, _, err := executeValidate(t, &RootOptions{Format: "json"}, "--config", path)
	require.NoError(t, err)

	var response struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &response))
	assert.Equal(t, "ok", response.Status)
	assert.True(t, response.Data.Valid)
	assert.Equal(t, "TC_DISHM_3_2", response.Data.TestCase, "default test case")
	assert.Equal(t, uint16(1), response.Data.Endpoint, "default endpoint")
	assert.Equal(t, map[string]bool{"DISHM.S.A0000": true, "DISHM.S.A0002": true}, response.Data.PICS, "inline PICS win")
}

func TestValidateVerboseListsPICS(t *testing.T) {
	path := writeConfig(t, "dishm.yaml", simConfig)

	output, _, err := executeValidate(t, &RootOptions{Format: "text", Verbose: true}, "--config", path)
	require.NoError(t, err)
	assert.Contains(t, output, "DISHM.S.A0002=true")
	assert.Contains(t, output, "DISHM.S.F00=false")
}

func TestValidateInvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"unknown operator", "dishm.yaml", configVariant("operator: auto", "operator: robot"), "unknown operator"},
		{"unknown field", "dishm.yaml", simConfig + "transport: sim\n", "field transport not found"},
		{"unsupported current mode", "dishm.yaml", configVariant("current_mode: 1", "current_mode: 7"), "device.sim.state"},
		{"unknown test case", "dishm.yaml", configVariant("TC_DISHM_3_2", "TC_NOPE"), "unknown test case"},
		{"cue schema violation", "dishm.cue", `endpoint: 70000`, "invalid CUE config"},
		{"missing pics file", "dishm.yaml", simConfig + "pics_file: nowhere.pics\n", "nowhere.pics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.file, tt.content)

			output, _, err := executeValidate(t, &RootOptions{Format: "json"}, "--config", path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
			assert.Contains(t, err.Error(), tt.want)

			var response CLIResponse
			require.NoError(t, json.Unmarshal([]byte(output), &response))
			assert.Equal(t, "error", response.Status)
			require.NotNil(t, response.Error)
			assert.Equal(t, ErrCodeConfig, response.Error.Code)
		})
	}
}

func TestValidateTextError(t *testing.T) {
	path := writeConfig(t, "dishm.yaml", configVariant("log_level: error", "log_level: loud"))

	output, _, err := executeValidate(t, &RootOptions{Format: "text"}, "--config", path)
	require.Error(t, err)
	assert.Contains(t, output, "Error [E_CONFIG]")
	assert.Contains(t, output, "unknown level")
}

func TestValidateMissingConfigFlag(t *testing.T) {
	_, _, err := executeValidate(t, &RootOptions{Format: "text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
