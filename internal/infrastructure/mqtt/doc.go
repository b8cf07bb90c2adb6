// Package mqtt publishes Flux node configuration to an MQTT broker.
//
// When enabled, every successful upsert is published retained to
// {prefix}/node/{id}/config, so an LED controller that subscribes to its
// own topic receives its current settings immediately and every change
// after that. The service announces itself on {prefix}/system/status, with
// a Last Will so subscribers see an unexpected disconnect.
//
// Publishing is best effort: the HTTP write has already been flushed to
// storage when the notifier runs, and a broker outage never fails it.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	registry.AddNotifier(mqtt.NewNodeNotifier(client, client.Topics()))
package mqtt
