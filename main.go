package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/jawher/mow.cli"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/bilbercode/ezviz-bridge/internal/auth"
	"github.com/bilbercode/ezviz-bridge/internal/config"
	"github.com/bilbercode/ezviz-bridge/internal/coordinator"
	"github.com/bilbercode/ezviz-bridge/internal/ezviz"
	"github.com/bilbercode/ezviz-bridge/internal/hass"
	"github.com/bilbercode/ezviz-bridge/internal/mqtt"
	"github.com/bilbercode/ezviz-bridge/internal/platform"
	"github.com/bilbercode/ezviz-bridge/internal/state"
)

const (
	appName = "ezviz-bridge"
	appDesc = "EZVIZ cloud cameras for Home Assistant"
)

type override struct {
	env   string
	set   bool
	apply func(cfg *config.Config)
}

// requested reports whether the option came from the command line or its environment variable.
func (o *override) requested() bool {
	if o.set {
		return true
	}
	v, ok := os.LookupEnv(o.env)
	return ok && v != ""
}

func main() {
	app := newApp(func(cfg *config.Config) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, cfg)
	})

	err := app.Run(os.Args)
	if err != nil {
		log.WithError(err).Fatal("failed to execute application")
	}
}

// newApp declares the command line. Values from the YAML file are overridden by any option given
// as a flag or through its environment variable.
func newApp(action func(cfg *config.Config) error) *cli.Cli {
	app := cli.App(appName, appDesc)

	configFile := app.String(cli.StringOpt{
		Name:   "config",
		Desc:   "optional YAML configuration file",
		EnvVar: "CONFIG_FILE",
	})

	var overrides []*override
	stringOpt := func(name, desc, env string, apply func(cfg *config.Config, v string)) {
		o := &override{env: env}
		v := app.String(cli.StringOpt{Name: name, Desc: desc, EnvVar: env, SetByUser: &o.set})
		o.apply = func(cfg *config.Config) { apply(cfg, *v) }
		overrides = append(overrides, o)
	}

	stringOpt("ezviz.account", "EZVIZ account email or phone", "EZVIZ_ACCOUNT",
		func(cfg *config.Config, v string) { cfg.EZVIZ.Account = v })
	stringOpt("ezviz.password", "EZVIZ account password", "EZVIZ_PASSWORD",
		func(cfg *config.Config, v string) { cfg.EZVIZ.Password = v })
	stringOpt("ezviz.url", "EZVIZ cloud base URL", "EZVIZ_URL",
		func(cfg *config.Config, v string) { cfg.EZVIZ.URL = v })
	stringOpt("token", "session token location", "TOKEN_LOCATION",
		func(cfg *config.Config, v string) { cfg.EZVIZ.TokenLocation = v })
	stringOpt("mqtt.broker", "MQTT broker URL", "MQTT_BROKER",
		func(cfg *config.Config, v string) { cfg.MQTT.Broker = v })
	stringOpt("mqtt.username", "MQTT username", "MQTT_USERNAME",
		func(cfg *config.Config, v string) { cfg.MQTT.Username = v })
	stringOpt("mqtt.password", "MQTT password", "MQTT_PASSWORD",
		func(cfg *config.Config, v string) { cfg.MQTT.Password = v })
	stringOpt("mqtt.discovery-prefix", "Home Assistant discovery prefix", "MQTT_DISCOVERY_PREFIX",
		func(cfg *config.Config, v string) { cfg.MQTT.DiscoveryPrefix = v })
	stringOpt("state", "entity state directory", "STATE_LOCATION",
		func(cfg *config.Config, v string) { cfg.StateDir = v })
	stringOpt("metrics", "prometheus listen address, empty to disable", "METRICS_ADDR",
		func(cfg *config.Config, v string) { cfg.MetricsAddr = v })
	stringOpt("log-level", "log level", "LOG_LEVEL",
		func(cfg *config.Config, v string) { cfg.LogLevel = v })

	intervalOverride := &override{env: "POLL_INTERVAL"}
	interval := app.Int(cli.IntOpt{
		Name:      "interval",
		Desc:      "polling interval in seconds",
		EnvVar:    intervalOverride.env,
		Value:     30,
		SetByUser: &intervalOverride.set,
	})
	intervalOverride.apply = func(cfg *config.Config) {
		cfg.PollInterval = time.Duration(*interval) * time.Second
	}
	overrides = append(overrides, intervalOverride)

	app.Action = func() {
		cfg, err := config.Load(*configFile)
		if err != nil {
			log.WithError(err).Fatal("failed to load configuration")
		}
		for _, o := range overrides {
			if o.requested() {
				o.apply(cfg)
			}
		}
		if err := cfg.Validate(); err != nil {
			log.WithError(err).Fatal("invalid configuration")
		}

		level, err := log.ParseLevel(cfg.LogLevel)
		if err != nil {
			log.WithError(err).Warn("unknown log level, using info")
			level = log.InfoLevel
		}
		log.SetLevel(level)

		err = action(cfg)
		if err != nil {
			log.WithError(err).Fatal("stopped")
		}
	}

	return app
}

func run(ctx context.Context, cfg *config.Config) error {
	authManager := auth.NewManager(cfg.EZVIZ.Account, cfg.EZVIZ.Password, cfg.EZVIZ.URL, cfg.EZVIZ.TokenLocation)
	httpClient := authManager.Client(ctx)

	endpoint, err := authManager.Endpoint()
	if err != nil {
		return fmt.Errorf("failed to authenticate with ezviz: %w", err)
	}

	coord := coordinator.New(ezviz.NewService(httpClient, endpoint), cfg.PollInterval)
	log.Info("querying ezviz for cameras")
	err = coord.Refresh(ctx)
	if err != nil {
		return err
	}

	store, err := state.NewStore(cfg.StateDir)
	if err != nil {
		return err
	}

	entities := platform.Entities(coord, store)

	topics := hass.Topics{DiscoveryPrefix: cfg.MQTT.DiscoveryPrefix, Base: cfg.MQTT.BaseTopic}
	broker, err := mqtt.Connect(cfg.MQTT, topics.Availability())
	if err != nil {
		return fmt.Errorf("failed to connect to mqtt broker: %w", err)
	}
	defer broker.Close()

	bridge := hass.NewBridge(broker, cfg.MQTT.DiscoveryPrefix, cfg.MQTT.BaseTopic)
	err = bridge.Register(ctx, entities)
	if err != nil {
		return err
	}
	bridge.PublishStates()

	unsubscribe := coord.Subscribe(func(*coordinator.Snapshot) {
		bridge.PublishStates()
	})
	defer unsubscribe()

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		return coord.Start(ctx)
	})

	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		server := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		group.Go(func() error {
			err := server.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		group.Go(func() error {
			<-ctx.Done()
			return server.Shutdown(context.Background())
		})
	}

	log.Infof("bridging %d entities to home assistant", len(entities))
	return group.Wait()
}
