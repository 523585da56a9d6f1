package harness

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/dishm/internal/cluster"
	"github.com/roach88/dishm/internal/device"
	"github.com/roach88/dishm/internal/ir"
)

// recorder wraps a device.Controller and records every operation into the
// run trace after it completes.
type recorder struct {
	inner device.Controller
	t     *Test
}

var _ device.Controller = (*recorder)(nil)

func (r *recorder) ReadAttribute(ctx context.Context, path device.AttributePath) (ir.Value, error) {
	v, err := r.inner.ReadAttribute(ctx, path)
	e := TraceEvent{Kind: EventRead, Endpoint: path.Endpoint, Target: targetOf(path)}
	if err != nil {
		fillError(&e, err)
	} else {
		e.Result = v
		e.Status = cluster.StatusSuccess.String()
	}
	r.t.record(e)
	r.t.Logger.Debug("read attribute", "attribute", path.String(), "value", valueOrNil(v), "error", err)
	return v, err
}

func (r *recorder) WriteAttribute(ctx context.Context, writes []device.AttributeWrite) ([]device.WriteStatus, error) {
	statuses, err := r.inner.WriteAttribute(ctx, writes)
	for i, w := range writes {
		e := TraceEvent{Kind: EventWrite, Endpoint: w.Path.Endpoint, Target: targetOf(w.Path), Args: w.Value}
		switch {
		case i < len(statuses):
			e.Status = statuses[i].Status.String()
		case err != nil:
			fillError(&e, err)
		}
		r.t.record(e)
	}
	r.t.Logger.Debug("write attributes", "count", len(writes), "error", err)
	return statuses, err
}

func (r *recorder) SendCommand(ctx context.Context, req device.CommandRequest) (device.CommandResponse, error) {
	resp, err := r.inner.SendCommand(ctx, req)
	e := TraceEvent{
		Kind:     EventInvoke,
		Endpoint: req.Endpoint,
		Target:   commandTarget(req.Cluster, req.Command),
		Args:     req.Fields,
	}
	if err != nil {
		fillError(&e, err)
	} else {
		e.Result = resp.Fields
		e.Status = cluster.StatusSuccess.String()
		e.Message = "response " + commandTarget(resp.Cluster, resp.Command)
	}
	r.t.record(e)
	r.t.Logger.Debug("send command", "command", e.Target, "error", err)
	return resp, err
}

func (r *recorder) ExpireSessions(ctx context.Context) error {
	err := r.inner.ExpireSessions(ctx)
	e := TraceEvent{Kind: EventExpireSessions}
	if err != nil {
		fillError(&e, err)
	}
	r.t.record(e)
	return err
}

func targetOf(p device.AttributePath) string {
	if a, ok := cluster.LookupAttribute(p.Cluster, p.Attribute); ok {
		return a.String()
	}
	return fmt.Sprintf("%s.0x%04X", p.Cluster, uint32(p.Attribute))
}

func commandTarget(c cluster.ID, id cluster.CommandID) string {
	switch {
	case c == cluster.DishwasherModeID && id == cluster.CmdChangeToMode:
		return cluster.ChangeToMode.String()
	case c == cluster.DishwasherModeID && id == cluster.CmdChangeToModeResponse:
		return cluster.ChangeToModeResponse.String()
	}
	return fmt.Sprintf("%s.0x%02X", c, uint32(id))
}

// fillError records a status error as its status name and anything else as
// "error" with the message.
func fillError(e *TraceEvent, err error) {
	var se *device.StatusError
	if errors.As(err, &se) {
		e.Status = se.Status.String()
		return
	}
	e.Status = "error"
	e.Message = err.Error()
}

func valueOrNil(v ir.Value) string {
	if v == nil {
		return ""
	}
	return ir.Format(v)
}
