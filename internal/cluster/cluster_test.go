package cluster

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dishm/internal/ir"
)

func TestAttributeNames(t *testing.T) {
	assert.Equal(t, "DishwasherMode.StartUpMode", StartUpMode.String())
	assert.Equal(t, "OnOff.StartUpOnOff", StartUpOnOff.String())
	assert.Equal(t, "DishwasherMode.ChangeToMode", ChangeToMode.String())
	assert.Equal(t, "Cluster(0x0101)", ID(0x0101).String())
}

func TestLookupAttribute(t *testing.T) {
	a, ok := LookupAttribute(DishwasherModeID, AttrStartUpMode)
	require.True(t, ok)
	assert.True(t, a.Nullable)
	assert.True(t, a.Writable)

	_, ok = LookupAttribute(OnOffID, AttrStartUpMode)
	assert.False(t, ok, "attribute IDs are scoped by cluster")

	b, ok := AttributeByName("OnOff.StartUpOnOff")
	require.True(t, ok)
	assert.Equal(t, AttrStartUpOnOff, b.ID)
}

func TestStatusStrings(t *testing.T) {
	assert.Equal(t, "Success", StatusSuccess.String())
	assert.Equal(t, "ConstraintError", StatusConstraintError.String())
	assert.Equal(t, "Status(0x7E)", Status(0x7E).String())

	assert.Equal(t, "UnsupportedMode", ModeStatusUnsupportedMode.String())
	assert.Equal(t, "GenericFailure", ModeStatusGenericFailure.String())
	assert.Equal(t, "ModeStatus(0x40)", ModeStatus(0x40).String())
}

func TestModeOptionsRoundTrip(t *testing.T) {
	mfg := uint16(0xFFF1)
	opts := []ModeOption{
		{Label: "Normal", Mode: 0, ModeTags: []ModeTag{{Value: 0x4000}}},
		{Label: "Heavy", Mode: 1, ModeTags: []ModeTag{{Value: 0x4001, MfgCode: &mfg}}},
	}

	decoded, err := DecodeModeOptions(EncodeModeOptions(opts))
	require.NoError(t, err)
	assert.Equal(t, opts, decoded)
}

func TestDecodeModeOptionsMinimal(t *testing.T) {
	decoded, err := DecodeModeOptions(ir.List{
		ir.Struct{"mode": ir.Uint(2)},
		ir.Struct{"mode": ir.Uint(3)},
	})
	require.NoError(t, err)
	require.Len(t, decoded, 2)
	assert.Equal(t, uint8(2), decoded[0].Mode)
	assert.Empty(t, decoded[0].Label)
}

func TestDecodeModeOptionsErrors(t *testing.T) {
	tests := []struct {
		name  string
		input ir.Value
		want  string
	}{
		{"not a list", ir.Uint(1), "expected list"},
		{"entry not struct", ir.List{ir.Uint(1)}, "expected struct"},
		{"missing mode", ir.List{ir.Struct{"label": ir.String("x")}}, "mode must be uint8"},
		{"mode out of range", ir.List{ir.Struct{"mode": ir.Uint(300)}}, "mode must be uint8"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeModeOptions(tt.input)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestChangeToModeResponse(t *testing.T) {
	res, err := DecodeChangeToModeResponse(EncodeChangeToModeResponse(ModeStatusUnsupportedMode, "no such mode"))
	require.NoError(t, err)
	assert.Equal(t, ModeStatusUnsupportedMode, res.Status)
	assert.Equal(t, "no such mode", res.StatusText)

	_, err = DecodeChangeToModeResponse(ir.Struct{})
	require.Error(t, err)

	assert.Equal(t, ir.Struct{"newMode": ir.Uint(3)}, ChangeToModeRequest(3))
}
