package mqtt

import (
	"fmt"
	"strings"

	"github.com/mttchpmn/flux/internal/node"
)

// DefaultTopicPrefix is used when no prefix is configured.
const DefaultTopicPrefix = "flux"

// nullSegment names the topic of the record whose id is null.
const nullSegment = "_null"

// Topics builds Flux MQTT topics under a common prefix.
//
//	topics := mqtt.NewTopics("flux")
//	topics.NodeConfig(node.String("node1")) // "flux/node/node1/config"
type Topics struct {
	prefix string
}

// NewTopics returns topic builders rooted at prefix. Trailing slashes are
// dropped and an empty prefix falls back to DefaultTopicPrefix.
func NewTopics(prefix string) Topics {
	prefix = strings.TrimRight(prefix, "/")
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return Topics{prefix: prefix}
}

// Prefix returns the root of every topic.
func (t Topics) Prefix() string {
	return t.prefix
}

// NodeConfig returns the retained topic carrying a node's configuration.
//
// Example: flux/node/node1/config
func (t Topics) NodeConfig(id node.Value) string {
	return fmt.Sprintf("%s/node/%s/config", t.prefix, idSegment(id))
}

// NodeConfigWildcard matches every node configuration topic.
//
// Example: flux/node/+/config
func (t Topics) NodeConfigWildcard() string {
	return t.prefix + "/node/+/config"
}

// SystemStatus returns the service status topic used for LWT.
//
// Example: flux/system/status
func (t Topics) SystemStatus() string {
	return t.prefix + "/system/status"
}

// idSegment renders an id as a single topic level. String ids are used
// as-is; other JSON values use their encoded text. Characters with meaning
// in topic filters are replaced.
func idSegment(id node.Value) string {
	id = node.NormaliseID(id)
	if id.IsNull() {
		return nullSegment
	}

	s := id.Text()

	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', 0:
			return '_'
		}
		return r
	}, s)
}
