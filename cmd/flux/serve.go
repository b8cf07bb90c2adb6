package main

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mttchpmn/flux/internal/api"
	"github.com/mttchpmn/flux/internal/infrastructure/config"
	"github.com/mttchpmn/flux/internal/infrastructure/influxdb"
	"github.com/mttchpmn/flux/internal/infrastructure/logging"
	"github.com/mttchpmn/flux/internal/infrastructure/mqtt"
	"github.com/mttchpmn/flux/internal/node"
	"github.com/mttchpmn/flux/internal/store"
)

// healthInterval is how often background dependencies are checked while
// serving.
const healthInterval = 30 * time.Second

// healthChecker is satisfied by every long-lived dependency.
type healthChecker interface {
	HealthCheck(ctx context.Context) error
}

// run is the serve command, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//   - opts: Global flags
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context, opts *rootOptions) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Flux",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, path, err := loadConfig(opts)
	if err != nil {
		return err
	}
	if path == "" {
		log.Info("no config file, using defaults")
	} else {
		log.Info("configuration loaded", "path", path)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	st, err := openStore(ctx, cfg, log, store.OpenWithLogger)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("closing document store")
		if closeErr := st.Close(); closeErr != nil {
			log.Error("error closing document store", "error", closeErr)
		}
	}()

	registry, err := newRegistry(cfg, st, log)
	if err != nil {
		return err
	}

	checks := map[string]healthChecker{"store": st}

	if cfg.MQTT.Enabled {
		mqttClient, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		registry.AddNotifier(mqtt.NewNodeNotifier(mqttClient, mqttClient.Topics()))
		checks["mqtt"] = mqttClient
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		influxClient, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		registry.AddNotifier(influxdb.NewNodeRecorder(influxClient))
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	srv, err := api.New(api.Deps{
		Config:   cfg.API,
		WS:       cfg.WebSocket,
		Logger:   log,
		Registry: registry,
		Store:    st,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Serve(gctx)
	})
	g.Go(func() error {
		monitorHealth(gctx, log, checks, healthInterval)
		return nil
	})

	err = g.Wait()
	log.Info("Flux stopped")
	return err
}

// storeOpener loads the document from a backend; store.OpenWithLogger and
// store.Inspect both fit.
type storeOpener func(ctx context.Context, backend store.Backend, logger store.Logger) (*store.Store, error)

// openStore opens the configured backend and loads the document with open.
func openStore(ctx context.Context, cfg *config.Config, log *logging.Logger, open storeOpener) (*store.Store, error) {
	backend, err := store.NewBackend(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening %s storage: %w", cfg.Storage.Driver, err)
	}

	st, err := open(ctx, backend, log)
	if err != nil {
		//nolint:errcheck // already failing; the load error is more useful
		backend.Close()
		return nil, fmt.Errorf("loading document: %w", err)
	}
	return st, nil
}

// newRegistry builds the node registry for the configured schema.
func newRegistry(cfg *config.Config, st *store.Store, log *logging.Logger) (*node.Registry, error) {
	schema, err := node.ParseSchema(cfg.Nodes.Schema)
	if err != nil {
		return nil, fmt.Errorf("node schema: %w", err)
	}

	registry := node.NewRegistry(st, schema)
	registry.SetLogger(log)
	registry.SetStrict(cfg.Nodes.Strict)

	log.Info("node registry initialised",
		"schema", schema,
		"strict", cfg.Nodes.Strict,
		"nodes", len(registry.List()),
	)
	return registry, nil
}

// monitorHealth logs failing dependencies every interval until ctx ends.
// Failures are reported, not fatal: the API keeps serving from memory.
func monitorHealth(ctx context.Context, log *logging.Logger, checks map[string]healthChecker, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for name, c := range checks {
				checkCtx, cancel := context.WithTimeout(ctx, interval/2)
				if err := c.HealthCheck(checkCtx); err != nil {
					log.Warn("health check failed", "component", name, "error", err)
				}
				cancel()
			}
		}
	}
}
