package influxdb

import (
	"context"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/mttchpmn/flux/internal/node"
)

// MeasurementNodeConfig is the measurement every node upsert is recorded under.
const MeasurementNodeConfig = "node_config"

// nullTag is the id tag of the record whose id is null.
const nullTag = "_null"

// PointWriter queues points for writing. *Client implements it.
type PointWriter interface {
	WritePoint(p *write.Point)
}

// NodePoint converts an upsert into a point.
//
// Tags: id, action and, when it is a string, pattern.
// Fields: upserts=1 always; name and colours when they are strings;
// delay, brightness, state and RGB channels when they are integers
// (a boolean state is recorded as 0 or 1).
func NodePoint(change node.Change, at time.Time) *write.Point {
	cfg := change.Node

	id := node.NormaliseID(cfg.ID)
	idTag := nullTag
	if !id.IsNull() {
		idTag = id.Text()
	}

	tags := map[string]string{
		"id":     idTag,
		"action": string(change.Action),
	}
	if pattern, ok := cfg.Pattern.AsString(); ok && pattern != "" {
		tags["pattern"] = pattern
	}

	fields := map[string]any{
		"upserts": int64(1),
	}
	for name, v := range map[string]node.Value{
		"name":   cfg.Name,
		"color0": cfg.Color0,
		"color1": cfg.Color1,
		"color2": cfg.Color2,
	} {
		if s, ok := v.AsString(); ok {
			fields[name] = s
		}
	}
	for name, v := range map[string]node.Value{
		"delay":      cfg.Delay,
		"brightness": cfg.Brightness,
		"state":      cfg.State,
		"r0":         cfg.R0,
		"g0":         cfg.G0,
		"b0":         cfg.B0,
	} {
		if n, ok := v.AsInt(); ok {
			fields[name] = n
		}
	}
	if cfg.State.Kind() == node.KindBool {
		if cfg.State.Falsy() {
			fields["state"] = int64(0)
		} else {
			fields["state"] = int64(1)
		}
	}

	return write.NewPoint(MeasurementNodeConfig, tags, fields, at)
}

// NodeRecorder writes a point for every stored upsert.
// It implements node.Notifier.
type NodeRecorder struct {
	w   PointWriter
	now func() time.Time
}

// NewNodeRecorder returns a recorder writing through w.
func NewNodeRecorder(w PointWriter) *NodeRecorder {
	return &NodeRecorder{w: w, now: time.Now}
}

// NotifyChange implements node.Notifier. Writes are queued, so the only
// error is a cancelled context.
func (r *NodeRecorder) NotifyChange(ctx context.Context, change node.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.w.WritePoint(NodePoint(change, r.now()))
	return nil
}
