// Package influxdb records node configuration history in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library. Every successful
// upsert becomes one point in the node_config measurement, tagged by node
// id and action, so colour, pattern and timing changes can be charted over
// time.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	registry.AddNotifier(influxdb.NewNodeRecorder(client))
package influxdb
