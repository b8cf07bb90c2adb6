package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/mttchpmn/flux/internal/infrastructure/config"
	"github.com/mttchpmn/flux/internal/node"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "flux-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
		},
		TopicPrefix: "flux-test",
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Auth.Username = "lamp"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "ssl://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want ssl://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "flux-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "lamp" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config not applied")
	}
	if !opts.AutoReconnect {
		t.Error("AutoReconnect = false, want true")
	}
}

func TestConfigureLWT(t *testing.T) {
	opts := buildClientOptions(testConfig())
	configureLWT(opts, NewTopics("flux"), "flux-test")

	if !opts.WillEnabled || !opts.WillRetained {
		t.Fatal("will not enabled and retained")
	}
	if opts.WillTopic != "flux/system/status" {
		t.Errorf("WillTopic = %q", opts.WillTopic)
	}

	var payload statusPayload
	if err := json.Unmarshal(opts.WillPayload, &payload); err != nil {
		t.Fatalf("will payload is not JSON: %v", err)
	}
	if payload.Status != "offline" || payload.Reason != "unexpected_disconnect" {
		t.Errorf("will payload = %+v", payload)
	}
}

func TestBuildStatusPayload(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	got := string(buildStatusPayload("online", "flux-api", "", now))
	want := `{"status":"online","client_id":"flux-api","timestamp":"2026-03-01T12:00:00Z"}`
	if got != want {
		t.Errorf("buildStatusPayload() = %s, want %s", got, want)
	}
}

type fakePublisher struct {
	topic   string
	payload []byte
	err     error
}

func (f *fakePublisher) PublishRetained(topic string, payload []byte) error {
	f.topic = topic
	f.payload = payload
	return f.err
}

func TestNodeNotifier(t *testing.T) {
	pub := &fakePublisher{}
	n := NewNodeNotifier(pub, NewTopics("flux"))

	cfg := node.Build(node.SchemaA, node.Fields{"id": node.String("node1"), "name": node.String("<Porch>")})
	if err := n.NotifyChange(context.Background(), node.Change{Action: node.ActionCreated, Node: cfg}); err != nil {
		t.Fatalf("NotifyChange() error = %v", err)
	}

	if pub.topic != "flux/node/node1/config" {
		t.Errorf("topic = %q", pub.topic)
	}
	want := `{"id":"node1","name":"<Porch>","color1":null,"color2":null,"pattern":"static","delay":1000}`
	if string(pub.payload) != want {
		t.Errorf("payload = %s, want %s", pub.payload, want)
	}
}

func TestNodeNotifier_PublishError(t *testing.T) {
	pub := &fakePublisher{err: ErrNotConnected}
	n := NewNodeNotifier(pub, NewTopics("flux"))

	err := n.NotifyChange(context.Background(), node.Change{Node: node.Config{ID: node.String("x")}})
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("NotifyChange() error = %v, want ErrNotConnected", err)
	}
}

func TestPublish_Validation(t *testing.T) {
	c := &Client{cfg: testConfig()}

	if err := c.Publish("", nil, 0, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("Publish(empty topic) error = %v", err)
	}
	if err := c.Publish("t", nil, 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("Publish(qos 3) error = %v", err)
	}
	if err := c.Publish("t", make([]byte, maxPayloadSize+1), 0, false); !errors.Is(err, ErrPublishFailed) {
		t.Errorf("Publish(oversize) error = %v", err)
	}
}

func TestClose_NeverConnected(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}

// TestConnect_Broker needs a broker; set FLUX_TEST_MQTT_HOST to run it.
func TestConnect_Broker(t *testing.T) {
	host := os.Getenv("FLUX_TEST_MQTT_HOST")
	if host == "" {
		t.Skip("FLUX_TEST_MQTT_HOST not set")
	}

	cfg := testConfig()
	cfg.Broker.Host = host

	client, err := Connect(cfg)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer client.Close() //nolint:errcheck // Test cleanup

	if err := client.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}

	n := NewNodeNotifier(client, client.Topics())
	if err := n.NotifyChange(context.Background(), node.Change{Node: node.Config{ID: node.String("it")}}); err != nil {
		t.Errorf("NotifyChange() error = %v", err)
	}
}
