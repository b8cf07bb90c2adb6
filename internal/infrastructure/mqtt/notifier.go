package mqtt

import (
	"context"
	"fmt"

	"github.com/bytedance/sonic"

	"github.com/mttchpmn/flux/internal/node"
)

// Publisher is the part of Client the notifier needs.
type Publisher interface {
	PublishRetained(topic string, payload []byte) error
}

// NodeNotifier publishes every stored node configuration, retained, to
// {prefix}/node/{id}/config so devices receive their latest settings as
// soon as they subscribe.
//
// It implements node.Notifier.
type NodeNotifier struct {
	pub    Publisher
	topics Topics
}

// NewNodeNotifier returns a notifier publishing through pub.
func NewNodeNotifier(pub Publisher, topics Topics) *NodeNotifier {
	return &NodeNotifier{pub: pub, topics: topics}
}

// NotifyChange implements node.Notifier.
func (n *NodeNotifier) NotifyChange(ctx context.Context, change node.Change) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := sonic.ConfigDefault.Marshal(change.Node)
	if err != nil {
		return fmt.Errorf("encoding node config: %w", err)
	}

	topic := n.topics.NodeConfig(change.Node.ID)
	if err := n.pub.PublishRetained(topic, payload); err != nil {
		return fmt.Errorf("publishing %s: %w", topic, err)
	}
	return nil
}
