package sim

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/dishm/internal/cluster"
	"github.com/roach88/dishm/internal/device"
	"github.com/roach88/dishm/internal/ir"
)

func u8(v uint8) *uint8 { return &v }

func twoModes() []cluster.ModeOption {
	return []cluster.ModeOption{
		{Label: "Normal", Mode: 0},
		{Label: "Heavy", Mode: 1},
	}
}

func newAppliance(t *testing.T, state State, opts ...Option) *Appliance {
	t.Helper()
	a, err := New(1, state, opts...)
	require.NoError(t, err)
	return a
}

func read(t *testing.T, a *Appliance, attr cluster.Attribute) ir.Value {
	t.Helper()
	v, err := a.ReadAttribute(context.Background(), device.PathOf(1, attr))
	require.NoError(t, err)
	return v
}

func write(t *testing.T, a *Appliance, attr cluster.Attribute, v ir.Value) cluster.Status {
	t.Helper()
	statuses, err := a.WriteAttribute(context.Background(), []device.AttributeWrite{{Path: device.PathOf(1, attr), Value: v}})
	require.NoError(t, err)
	require.Len(t, statuses, 1)
	return statuses[0].Status
}

func changeToMode(t *testing.T, a *Appliance, mode uint8) (device.CommandResponse, cluster.ChangeToModeResult) {
	t.Helper()
	resp, err := a.SendCommand(context.Background(), device.CommandRequest{
		Endpoint: 1,
		Cluster:  cluster.DishwasherModeID,
		Command:  cluster.CmdChangeToMode,
		Fields:   cluster.ChangeToModeRequest(mode),
	})
	require.NoError(t, err)
	res, err := cluster.DecodeChangeToModeResponse(resp.Fields)
	require.NoError(t, err)
	return resp, res
}

func TestNewValidatesState(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  string
	}{
		{"duplicate mode", State{SupportedModes: []cluster.ModeOption{{Mode: 1}, {Mode: 1}}, CurrentMode: 1}, "duplicate mode"},
		{"current mode unsupported", State{SupportedModes: twoModes(), CurrentMode: 7}, "current_mode 7"},
		{"startup mode unsupported", State{SupportedModes: twoModes(), StartUpMode: u8(9)}, "start_up_mode 9"},
		{"on mode unsupported", State{SupportedModes: twoModes(), OnMode: u8(9)}, "on_mode 9"},
		{"startup on off range", State{SupportedModes: twoModes(), StartUpOnOff: u8(3)}, "start_up_on_off 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(1, tt.state)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	_, err := New(1, State{SupportedModes: twoModes()}, WithFaults(Faults{Unsupported: []string{"Bogus.Attr"}}))
	require.Error(t, err)
}

func TestReadAttributes(t *testing.T) {
	a := newAppliance(t, State{SupportedModes: twoModes(), CurrentMode: 1, OnMode: u8(0)})

	modes, err := cluster.DecodeModeOptions(read(t, a, cluster.SupportedModes))
	require.NoError(t, err)
	assert.Equal(t, twoModes(), modes)
	assert.Equal(t, ir.Uint(1), read(t, a, cluster.CurrentMode))
	assert.True(t, ir.IsNull(read(t, a, cluster.StartUpMode)))
	assert.Equal(t, ir.Uint(0), read(t, a, cluster.OnMode))
}

func TestReadRejectsUnknownPaths(t *testing.T) {
	a := newAppliance(t, State{SupportedModes: twoModes()},
		WithFaults(Faults{Unsupported: []string{"DishwasherMode.OnMode"}}))
	ctx := context.Background()

	tests := []struct {
		name string
		path device.AttributePath
		want cluster.Status
	}{
		{"wrong endpoint", device.PathOf(2, cluster.CurrentMode), cluster.StatusUnsupportedEndpoint},
		{"on off without feature", device.PathOf(1, cluster.StartUpOnOff), cluster.StatusUnsupportedCluster},
		{"unknown attribute", device.AttributePath{Endpoint: 1, Cluster: cluster.DishwasherModeID, Attribute: 0x0042}, cluster.StatusUnsupportedAttribute},
		{"fault unsupported", device.PathOf(1, cluster.OnMode), cluster.StatusUnsupportedAttribute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.ReadAttribute(ctx, tt.path)
			require.Error(t, err)
			assert.True(t, device.IsStatus(err, tt.want), "got %v", err)
		})
	}
}

func TestWriteStartUpMode(t *testing.T) {
	a := newAppliance(t, State{SupportedModes: twoModes()})

	assert.Equal(t, cluster.StatusSuccess, write(t, a, cluster.StartUpMode, ir.Uint(1)))
	assert.Equal(t, ir.Uint(1), read(t, a, cluster.StartUpMode))

	assert.Equal(t, cluster.StatusConstraintError, write(t, a, cluster.StartUpMode, ir.Uint(5)))
	assert.Equal(t, ir.Uint(1), read(t, a, cluster.StartUpMode), "rejected write must not apply")

	assert.Equal(t, cluster.StatusSuccess, write(t, a, cluster.StartUpMode, ir.Null{}))
	assert.True(t, ir.IsNull(read(t, a, cluster.StartUpMode)))

	assert.Equal(t, cluster.StatusUnsupportedWrite, write(t, a, cluster.CurrentMode, ir.Uint(1)))
}

func TestWriteStatusFault(t *testing.T) {
	failure := cluster.StatusFailure
	a := newAppliance(t, State{SupportedModes: twoModes()}, WithFaults(Faults{WriteStatus: &failure}))

	assert.Equal(t, cluster.StatusFailure, write(t, a, cluster.StartUpMode, ir.Uint(1)))
	assert.True(t, ir.IsNull(read(t, a, cluster.StartUpMode)))
}

func TestChangeToMode(t *testing.T) {
	a := newAppliance(t, State{SupportedModes: twoModes()})

	resp, res := changeToMode(t, a, 1)
	assert.True(t, resp.Is(cluster.ChangeToModeResponse))
	assert.Equal(t, cluster.ModeStatusSuccess, res.Status)
	assert.Equal(t, ir.Uint(1), read(t, a, cluster.CurrentMode))

	_, res = changeToMode(t, a, 9)
	assert.Equal(t, cluster.ModeStatusUnsupportedMode, res.Status)
	assert.NotEmpty(t, res.StatusText)
	assert.Equal(t, ir.Uint(1), read(t, a, cluster.CurrentMode))
}

func TestChangeToModeFaults(t *testing.T) {
	generic := cluster.ModeStatusGenericFailure
	a := newAppliance(t, State{SupportedModes: twoModes()},
		WithFaults(Faults{ChangeToModeStatus: &generic, WrongResponseCommand: true}))

	resp, res := changeToMode(t, a, 1)
	assert.False(t, resp.Is(cluster.ChangeToModeResponse))
	assert.Equal(t, cluster.ModeStatusGenericFailure, res.Status)
	assert.Equal(t, ir.Uint(0), read(t, a, cluster.CurrentMode))
}

func TestSendCommandRejectsUnknownCommand(t *testing.T) {
	a := newAppliance(t, State{SupportedModes: twoModes()})

	_, err := a.SendCommand(context.Background(), device.CommandRequest{
		Endpoint: 1, Cluster: cluster.DishwasherModeID, Command: 0x07,
	})
	assert.True(t, device.IsStatus(err, cluster.StatusUnsupportedCommand))

	_, err = a.SendCommand(context.Background(), device.CommandRequest{
		Endpoint: 1, Cluster: cluster.DishwasherModeID, Command: cluster.CmdChangeToMode,
	})
	assert.True(t, device.IsStatus(err, cluster.StatusConstraintError), "missing newMode")
}

func TestPowerCycle(t *testing.T) {
	tests := []struct {
		name   string
		state  State
		faults Faults
		want   uint8
	}{
		{
			name:  "restores startup mode",
			state: State{SupportedModes: twoModes(), CurrentMode: 1, StartUpMode: u8(0)},
			want:  0,
		},
		{
			name:  "null startup mode keeps current",
			state: State{SupportedModes: twoModes(), CurrentMode: 1},
			want:  1,
		},
		{
			name: "on mode masks startup mode",
			state: State{
				SupportedModes: twoModes(), CurrentMode: 0, StartUpMode: u8(0), OnMode: u8(1),
				DepOnOff: true, StartUpOnOff: u8(1),
			},
			want: 1,
		},
		{
			name: "startup on off off does not mask",
			state: State{
				SupportedModes: twoModes(), CurrentMode: 1, StartUpMode: u8(0), OnMode: u8(1),
				DepOnOff: true, StartUpOnOff: u8(0),
			},
			want: 0,
		},
		{
			name:   "ignore startup mode fault",
			state:  State{SupportedModes: twoModes(), CurrentMode: 1, StartUpMode: u8(0)},
			faults: Faults{IgnoreStartUpMode: true},
			want:   1,
		},
		{
			name:   "volatile startup mode fault",
			state:  State{SupportedModes: twoModes(), CurrentMode: 1, StartUpMode: u8(0)},
			faults: Faults{VolatileStartUpMode: true},
			want:   1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAppliance(t, tt.state, WithFaults(tt.faults))
			a.PowerCycle()
			assert.Equal(t, ir.Uint(tt.want), read(t, a, cluster.CurrentMode))
		})
	}
}

func TestPowerCycleAppliesStartUpOnOff(t *testing.T) {
	a := newAppliance(t, State{SupportedModes: twoModes(), DepOnOff: true, StartUpOnOff: u8(2)})

	a.PowerCycle()
	assert.Equal(t, ir.Bool(true), read(t, a, cluster.OnOff))
	a.PowerCycle()
	assert.Equal(t, ir.Bool(false), read(t, a, cluster.OnOff))
}

func TestSessions(t *testing.T) {
	a := newAppliance(t, State{SupportedModes: twoModes()})
	ctx := context.Background()

	read(t, a, cluster.CurrentMode)
	read(t, a, cluster.CurrentMode)
	require.NoError(t, a.ExpireSessions(ctx))
	read(t, a, cluster.CurrentMode)
	a.PowerCycle()
	read(t, a, cluster.CurrentMode)

	snap := a.Snapshot()
	assert.Equal(t, ir.Uint(3), snap["sessions"])
	assert.Equal(t, ir.Uint(1), snap["power_cycles"])
}

func TestCanceledContext(t *testing.T) {
	a := newAppliance(t, State{SupportedModes: twoModes()})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := a.ReadAttribute(ctx, device.PathOf(1, cluster.CurrentMode))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, a.ExpireSessions(ctx), context.Canceled)
}

func TestStateIsCopied(t *testing.T) {
	state := State{SupportedModes: twoModes(), StartUpMode: u8(0)}
	a := newAppliance(t, state)

	*state.StartUpMode = 1
	state.SupportedModes[0].Label = "mutated"

	got := a.State()
	assert.Equal(t, uint8(0), *got.StartUpMode)
	assert.Equal(t, "Normal", got.SupportedModes[0].Label)
}
