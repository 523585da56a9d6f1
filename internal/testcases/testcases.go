// Package testcases is the catalog of conformance cases the runner knows.
package testcases

import (
	"github.com/roach88/dishm/internal/harness"
	"github.com/roach88/dishm/internal/testcases/dishm"
)

// All returns a registry holding every available case.
func All() harness.Registry {
	reg := harness.Registry{}
	reg.Register(dishm.NewStartUpMode())
	return reg
}
