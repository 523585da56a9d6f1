package harness

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dishm/internal/ir"
)

func TestRunWithGolden_Deterministic(t *testing.T) {
	dir := t.TempDir()
	s, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)

	// Seed the golden file from a first run, then a second run must match.
	first, err := RunScenario(context.Background(), s, helperRegistry(), nil)
	require.NoError(t, err)
	require.NoError(t, UpdateGolden(t, dir, s.Name, first))

	second, err := RunWithGolden(t, dir, s, helperRegistry())
	require.NoError(t, err)
	assert.Equal(t, first.Run.Digest, second.Run.Digest)

	_, err = os.Stat(filepath.Join(dir, s.Name+".golden"))
	require.NoError(t, err)
}

func TestTraceSnapshot_Canonical(t *testing.T) {
	s, err := ParseScenario([]byte(validScenario))
	require.NoError(t, err)
	res, err := RunScenario(context.Background(), s, helperRegistry(), nil)
	require.NoError(t, err)

	data, err := NewTraceSnapshot(res).MarshalCanonical()
	require.NoError(t, err)

	decoded, err := ir.UnmarshalValue(data)
	require.NoError(t, err)
	root, ok := decoded.(ir.Struct)
	require.True(t, ok)

	assert.Equal(t, ir.String("write_then_cycle"), root["scenario_name"])
	assert.Equal(t, ir.String("pass"), root["outcome"])
	trace, ok := root["trace"].(ir.List)
	require.True(t, ok)
	assert.Len(t, trace, len(res.Run.Trace))

	again, err := NewTraceSnapshot(res).MarshalCanonical()
	require.NoError(t, err)
	assert.Equal(t, data, again, "canonical output is stable")
}
