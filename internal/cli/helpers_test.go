package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// simConfig runs TC_DISHM_3_2 against a two-mode simulator with a null
// StartUpMode.
const simConfig = `
test_case: TC_DISHM_3_2
endpoint: 1
pics:
  DISHM.S.A0000: true
  DISHM.S.A0001: true
  DISHM.S.A0002: true
  DISHM.S.C00.Rsp: true
  DISHM.S.C01.Tx: true
  DISHM.S.F00: false
device:
  transport: sim
  sim:
    state:
      supported_modes:
        - {label: Normal, mode: 0}
        - {label: Heavy, mode: 1}
      current_mode: 1
      start_up_mode: null
operator: auto
log_level: error
`

// writeConfig writes content as name in a fresh temp dir. Use
// strings.Replace on simConfig to derive variants.
func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func configVariant(from, to string) string {
	return strings.Replace(simConfig, from, to, 1)
}

// newTestCommand wires buffers to an unexecuted command for direct calls
// into the run functions.
func newTestCommand(stdin string) (*cobra.Command, *bytes.Buffer, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	errBuf := &bytes.Buffer{}
	cmd := &cobra.Command{}
	cmd.SetOut(buf)
	cmd.SetErr(errBuf)
	cmd.SetIn(strings.NewReader(stdin))
	return cmd, buf, errBuf
}

// copyScenarios copies the TC_DISHM_3_2 scenario files into a temp dir so
// golden files can be written without touching the source tree.
func copyScenarios(t *testing.T, names ...string) string {
	t.Helper()
	src := filepath.Join("..", "testcases", "dishm", "testdata", "scenarios")
	dst := t.TempDir()
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(src, name+".yaml"))
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dst, name+".yaml"), data, 0644))
	}
	return dst
}
