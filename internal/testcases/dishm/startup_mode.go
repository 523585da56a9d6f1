// Package dishm holds the Dishwasher Mode cluster conformance cases.
package dishm

import (
	"context"
	"fmt"

	"github.com/roach88/dishm/internal/cluster"
	"github.com/roach88/dishm/internal/device"
	"github.com/roach88/dishm/internal/harness"
	"github.com/roach88/dishm/internal/ir"
)

// PICS keys consulted by the StartUpMode case.
const (
	PICSSupportedModes       = "DISHM.S.A0000"
	PICSCurrentMode          = "DISHM.S.A0001"
	PICSStartUpMode          = "DISHM.S.A0002"
	PICSOnMode               = "DISHM.S.A0003"
	PICSChangeToMode         = "DISHM.S.C00.Rsp"
	PICSChangeToModeResponse = "DISHM.S.C01.Tx"
	PICSDepOnOff             = "DISHM.S.F00"
)

// StartUpModeName is the registered name of the StartUpMode case.
const StartUpModeName = "TC_DISHM_3_2"

// ActionPowerCycle names the operator action of step 8.
const ActionPowerCycle = "power_cycle"

// StartUpMode verifies that the DUT applies StartUpMode after a power cycle.
type StartUpMode struct{}

// NewStartUpMode returns the TC_DISHM_3_2 case.
func NewStartUpMode() StartUpMode {
	return StartUpMode{}
}

// Name implements harness.TestCase.
func (StartUpMode) Name() string { return StartUpModeName }

// Description implements harness.TestCase.
func (StartUpMode) Description() string {
	return "[TC-DISHM-3.2] StartUpMode functionality with DUT as Server"
}

// Run implements harness.TestCase.
func (c StartUpMode) Run(ctx context.Context, t *harness.Test) error {
	endpoint, err := t.EndpointParam()
	if err != nil {
		return err
	}
	t.Logger.Info(fmt.Sprintf("This test expects to find this cluster on endpoint %d", endpoint))

	for _, key := range []string{PICSSupportedModes, PICSCurrentMode, PICSChangeToMode, PICSChangeToModeResponse} {
		if err := harness.AssertTrue(t.CheckPICS(key), key+" must be supported"); err != nil {
			return err
		}
	}

	if !t.CheckPICS(PICSStartUpMode) {
		return t.Skip("Test skipped because PICS DISHM.S.A0002 (StartupMode) is not set")
	}

	if err := harness.AssertTrue(t.PICSDeclared(PICSDepOnOff), fmt.Sprintf("%s must be provided", PICSDepOnOff)); err != nil {
		return err
	}

	ok, err := checkPreconditions(ctx, t, endpoint)
	if err != nil {
		return err
	}
	if err := harness.AssertTrue(ok, "invalid preconditions - StartUpMode overridden by OnMode"); err != nil {
		return err
	}

	t.PrintStep(1, "Commissioning, already done")

	t.PrintStep(2, "Read StartUpMode attribute")
	startUpMode, err := readModeAttribute(ctx, t, endpoint, cluster.StartUpMode)
	if err != nil {
		return err
	}
	t.Logger.Info("StartUpMode: "+ir.Format(startUpMode), "value", ir.Format(startUpMode))
	if err := harness.AssertTrue(ir.IsUint(startUpMode) || ir.IsNull(startUpMode),
		"Startup mode value should be an integer value or null"); err != nil {
		return err
	}

	var target uint64
	if ir.IsNull(startUpMode) {
		t.PrintStep(3, "Read SupportedModes attribute")
		modes, err := readSupportedModes(ctx, t, endpoint)
		if err != nil {
			return err
		}
		target = uint64(modes[0].Mode)

		t.PrintStep(4, "Write to the StartUpMode Attribute")
		if err := writeStartUpMode(ctx, t, endpoint, target); err != nil {
			return err
		}
	} else {
		target, _ = ir.AsUint(startUpMode)
	}

	t.PrintStep(5, "Read CurrentMode attribute")
	currentMode, err := readModeAttribute(ctx, t, endpoint, cluster.CurrentMode)
	if err != nil {
		return err
	}
	if err := t.ExpireSessions(ctx); err != nil {
		return err
	}

	// The comparison uses the StartUpMode read in step 2, so a null
	// StartUpMode never triggers the mode change.
	if ir.Equal(currentMode, startUpMode) {
		t.PrintStep(6, "Read SupportedModes attribute")
		modes, err := readSupportedModes(ctx, t, endpoint)
		if err != nil {
			return err
		}
		newMode, found := firstOtherMode(modes, target)
		if err := harness.AssertTrue(found, "SupportedModes must contain a mode other than StartUpMode"); err != nil {
			return err
		}

		t.PrintStep(7, fmt.Sprintf("Send ChangeToMode command with NewMode set to %d", newMode))
		res, err := sendChangeToMode(ctx, t, endpoint, newMode)
		if err != nil {
			return err
		}
		if err := harness.AssertEqual(ir.Uint(res.Status), ir.Uint(cluster.ModeStatusSuccess),
			"Changing the mode should succeed"); err != nil {
			return err
		}
	}

	t.PrintStep(8, "Physically power cycle the device")
	if err := t.ConfirmOperator(ctx, ActionPowerCycle, "Press Enter when done."); err != nil {
		return err
	}

	t.PrintStep(9, "Read StartUpMode attribute")
	afterStartUp, err := readModeAttribute(ctx, t, endpoint, cluster.StartUpMode)
	if err != nil {
		return err
	}
	t.Logger.Info("StartUpMode: "+ir.Format(afterStartUp), "value", ir.Format(afterStartUp))
	if err := harness.AssertTrue(ir.IsUint(afterStartUp), "StartUpMode must be an integer type"); err != nil {
		return err
	}
	if err := harness.AssertEqual(afterStartUp, ir.Uint(target),
		"StartUpMode must be unchanged after a power cycle"); err != nil {
		return err
	}

	t.PrintStep(10, "Read CurrentMode attribute")
	afterCurrent, err := readModeAttribute(ctx, t, endpoint, cluster.CurrentMode)
	if err != nil {
		return err
	}
	t.Logger.Info("CurrentMode: "+ir.Format(afterCurrent), "value", ir.Format(afterCurrent))
	return harness.AssertEqual(afterCurrent, afterStartUp, "CurrentMode must match StartUpMode after a power cycle")
}

// checkPreconditions reports whether StartUpMode can take effect on the DUT.
// With the DepOnOff feature, a non-zero StartUpOnOff combined with a
// non-null OnMode makes OnMode win at power up.
func checkPreconditions(ctx context.Context, t *harness.Test, endpoint uint16) (bool, error) {
	if !t.CheckPICS(PICSDepOnOff) {
		return true, nil
	}
	t.Logger.Info(PICSDepOnOff + ": 1")

	startUpOnOff, err := t.ReadSingleAttributeCheckSuccess(ctx, endpoint, cluster.StartUpOnOff)
	if err != nil {
		return false, err
	}
	t.Logger.Info("StartUpOnOff: "+ir.Format(startUpOnOff), "value", ir.Format(startUpOnOff))
	if ir.IsNull(startUpOnOff) || ir.Equal(startUpOnOff, ir.Uint(0)) {
		return true, nil
	}

	onMode, err := readModeAttribute(ctx, t, endpoint, cluster.OnMode)
	if err != nil {
		return false, err
	}
	t.Logger.Info("OnMode: "+ir.Format(onMode), "value", ir.Format(onMode))
	return ir.IsNull(onMode), nil
}

func readModeAttribute(ctx context.Context, t *harness.Test, endpoint uint16, attr cluster.Attribute) (ir.Value, error) {
	return t.ReadSingleAttributeCheckSuccess(ctx, endpoint, attr)
}

// readSupportedModes reads and decodes SupportedModes, requiring at least
// two entries.
func readSupportedModes(ctx context.Context, t *harness.Test, endpoint uint16) ([]cluster.ModeOption, error) {
	v, err := readModeAttribute(ctx, t, endpoint, cluster.SupportedModes)
	if err != nil {
		return nil, err
	}
	t.Logger.Info("SupportedModes: "+ir.Format(v), "value", ir.Format(v))

	modes, err := cluster.DecodeModeOptions(v)
	if err != nil {
		return nil, harness.Fail(fmt.Sprintf("SupportedModes is malformed: %v", err))
	}
	if err := harness.AssertGreaterEqual(len(modes), 2, "SupportedModes must have at least two entries!"); err != nil {
		return nil, err
	}
	return modes, nil
}

func firstOtherMode(modes []cluster.ModeOption, exclude uint64) (uint8, bool) {
	for _, m := range modes {
		if uint64(m.Mode) != exclude {
			return m.Mode, true
		}
	}
	return 0, false
}

func sendChangeToMode(ctx context.Context, t *harness.Test, endpoint uint16, newMode uint8) (cluster.ChangeToModeResult, error) {
	resp, err := t.SendSingleCommand(ctx, endpoint, cluster.ChangeToMode, cluster.ChangeToModeRequest(newMode))
	if err != nil {
		return cluster.ChangeToModeResult{}, err
	}
	if err := harness.AssertTrue(resp.Is(cluster.ChangeToModeResponse), "Unexpected return type for ChangeToMode"); err != nil {
		return cluster.ChangeToModeResult{}, err
	}
	res, err := cluster.DecodeChangeToModeResponse(resp.Fields)
	if err != nil {
		return cluster.ChangeToModeResult{}, harness.Fail("Unexpected return type for ChangeToMode")
	}
	return res, nil
}

func writeStartUpMode(ctx context.Context, t *harness.Test, endpoint uint16, newMode uint64) error {
	statuses, err := t.WriteAttributes(ctx, []device.AttributeWrite{
		{Path: device.PathOf(endpoint, cluster.StartUpMode), Value: ir.Uint(newMode)},
	})
	if err != nil {
		return err
	}
	if err := harness.AssertTrue(len(statuses) == 1, "Writing to StartUpMode failed"); err != nil {
		return err
	}
	t.Logger.Info("Write StartUpMode Return: " + statuses[0].String())
	return harness.AssertEqual(ir.Uint(statuses[0].Status), ir.Uint(cluster.StatusSuccess), "Writing to StartUpMode failed")
}
