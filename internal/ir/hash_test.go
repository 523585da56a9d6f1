package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventIDDeterministic(t *testing.T) {
	payload := NewStruct(F("attribute", String("StartUpMode")), F("value", Null{}))

	id1, err := EventID("run-1", "read", payload, 3)
	require.NoError(t, err)
	id2, err := EventID("run-1", "read", payload, 3)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 64)
}

func TestEventIDChangesWithInputs(t *testing.T) {
	payload := NewStruct(F("value", Uint(1)))
	base, err := EventID("run-1", "read", payload, 1)
	require.NoError(t, err)

	tests := []struct {
		name    string
		runID   string
		kind    string
		payload Value
		seq     int64
	}{
		{"run", "run-2", "read", payload, 1},
		{"kind", "run-1", "write", payload, 1},
		{"payload", "run-1", "read", NewStruct(F("value", Uint(2))), 1},
		{"seq", "run-1", "read", payload, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := EventID(tt.runID, tt.kind, tt.payload, tt.seq)
			require.NoError(t, err)
			assert.NotEqual(t, base, id)
		})
	}
}

func TestHashDomainSeparation(t *testing.T) {
	data := []byte(`{}`)
	assert.NotEqual(t, hashWithDomain(DomainEvent, data), hashWithDomain(DomainRun, data))
}

func TestRunDigest(t *testing.T) {
	d1, err := RunDigest("TC_DISHM_3_2", "pass", []string{"a", "b"})
	require.NoError(t, err)
	d2, err := RunDigest("TC_DISHM_3_2", "pass", []string{"b", "a"})
	require.NoError(t, err)
	d3, err := RunDigest("TC_DISHM_3_2", "fail", []string{"a", "b"})
	require.NoError(t, err)

	assert.NotEqual(t, d1, d2, "event order is part of the digest")
	assert.NotEqual(t, d1, d3)
}
