// Package harness runs conformance test cases against a device and records
// what happened.
//
// A TestCase receives a *Test, which fronts the device, the PICS set and the
// operator. Every device operation, step announcement, session expiry and
// operator prompt is stamped with a logical seq and appended to the run
// trace. Execute turns the case's returned error into an outcome:
//
//   - nil: pass
//   - *SkipError: skip (a successful termination)
//   - *AssertionError: fail
//   - anything else: error (transport failures, operator input closed)
//
// # Scenario Format
//
// Scenarios run a case against the simulated dishwasher in device/sim:
//
//	name: startup_mode_null
//	description: "StartUpMode starts null and is written from SupportedModes"
//	test_case: TC_DISHM_3_2
//	endpoint: 1
//	pics:
//	  DISHM.S.A0002: true
//	device:
//	  state:
//	    supported_modes: [{label: Normal, mode: 0}, {label: Heavy, mode: 1}]
//	    current_mode: 0
//	    start_up_mode: null
//	  faults:
//	    ignore_start_up_mode: false
//	expect:
//	  outcome: pass
//	assertions:
//	  - type: trace_contains
//	    event: write:DishwasherMode.StartUpMode
//	    args: 0
//	  - type: final_state
//	    expect: { StartUpMode: 0, power_cycles: 1 }
//
// # Assertion Types
//
//   - trace_contains: an event ("kind:Cluster.Name", or a bare "kind" naming
//     every event of that kind) with matching args, result and status
//   - trace_order: events appear in the specified order
//   - trace_count: an event appears exactly N times
//   - final_state: simulator attributes and counters hold expected values
//
// # Deterministic Testing
//
// Scenarios execute with testutil.DeterministicClock and a fixed run ID, so
// event IDs, the run digest and golden snapshots are identical across runs.
package harness
