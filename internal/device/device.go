// Package device defines the capability surface a conformance case uses to
// talk to a device under test.
//
// The interface is the only door to the DUT: attribute reads and writes,
// command invocation, and session expiry. Implementations live in
// sub-packages (sim for an in-process simulated appliance, modbus for a DUT
// exposed through a Modbus/TCP gateway). Every call is a single
// request/response exchange; implementations never retry.
package device

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/dishm/internal/cluster"
	"github.com/roach88/dishm/internal/ir"
)

// Controller is the set of remote operations available to a test case.
type Controller interface {
	// ReadAttribute reads one attribute. A non-success interaction status is
	// returned as *StatusError.
	ReadAttribute(ctx context.Context, path AttributePath) (ir.Value, error)

	// WriteAttribute writes attributes and reports a status per attribute.
	// Per-attribute failures are reported in the statuses, not as error.
	WriteAttribute(ctx context.Context, writes []AttributeWrite) ([]WriteStatus, error)

	// SendCommand invokes a cluster command and returns its response.
	SendCommand(ctx context.Context, req CommandRequest) (CommandResponse, error)

	// ExpireSessions drops any established session so the next operation
	// is served by a fresh one.
	ExpireSessions(ctx context.Context) error
}

// AttributePath addresses one attribute instance.
type AttributePath struct {
	Endpoint  uint16
	Cluster   cluster.ID
	Attribute cluster.AttributeID
}

// PathOf builds a path for a known attribute on an endpoint.
func PathOf(endpoint uint16, a cluster.Attribute) AttributePath {
	return AttributePath{Endpoint: endpoint, Cluster: a.Cluster, Attribute: a.ID}
}

// String renders "ep/Cluster.Attribute".
func (p AttributePath) String() string {
	if a, ok := cluster.LookupAttribute(p.Cluster, p.Attribute); ok {
		return fmt.Sprintf("%d/%s", p.Endpoint, a)
	}
	return fmt.Sprintf("%d/%s.0x%04X", p.Endpoint, p.Cluster, uint32(p.Attribute))
}

// Name returns the attribute name, or its hex ID when unknown.
func (p AttributePath) Name() string {
	if a, ok := cluster.LookupAttribute(p.Cluster, p.Attribute); ok {
		return a.Name
	}
	return fmt.Sprintf("0x%04X", uint32(p.Attribute))
}

// AttributeWrite is one attribute/value pair of a write request.
type AttributeWrite struct {
	Path  AttributePath
	Value ir.Value
}

// WriteStatus is the outcome of one attribute write.
type WriteStatus struct {
	Path   AttributePath
	Status cluster.Status
}

// String renders the write status for logs.
func (w WriteStatus) String() string {
	return fmt.Sprintf("AttributeStatus(Path=%s, Status=%s)", w.Path, w.Status)
}

// CommandRequest invokes one command on an endpoint.
type CommandRequest struct {
	Endpoint uint16
	Cluster  cluster.ID
	Command  cluster.CommandID
	Fields   ir.Struct
}

// CommandResponse carries the response command and its fields.
type CommandResponse struct {
	Cluster cluster.ID
	Command cluster.CommandID
	Fields  ir.Struct
}

// Is reports whether the response is the given command.
func (r CommandResponse) Is(c cluster.Command) bool {
	return r.Cluster == c.Cluster && r.Command == c.ID
}

// StatusError is returned when the device answers an operation with a
// non-success interaction status.
type StatusError struct {
	Op     string // "read" or "invoke"
	Target string
	Status cluster.Status
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %s", e.Op, e.Target, e.Status)
}

// IsStatus reports whether err is a StatusError carrying status.
// Uses errors.As to handle wrapped errors.
func IsStatus(err error, status cluster.Status) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status == status
	}
	return false
}
