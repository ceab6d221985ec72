package main

import (
	"fmt"
	"os"

	"go.uber.org/dig"

	"github.com/gohornet/fundgov/pkg/shutdown"
	"github.com/gohornet/fundgov/pkg/toolset"
	"github.com/iotaledger/hive.go/daemon"
	"github.com/iotaledger/hive.go/logger"
)

const (
	// Name is the name of the daemon.
	Name = "fundgov"
	// Version of the daemon.
	Version = "0.1.0"
)

func main() {
	daemonArgs, toolArgs := toolset.SplitArgs(os.Args[1:])

	config, err := loadConfigFile("config.json", daemonArgs)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}

	if toolArgs != nil {
		toolset.HandleTools(&toolset.Settings{
			JWTIssuer:         Name,
			JWTSecret:         config.String(CfgRestAPIJWTSecret),
			JWTSessionTimeout: config.Duration(CfgRestAPIJWTSessionTimeout),
		}, toolArgs)
	}

	if err := config.SetDefault(logger.ConfigurationKeyDisableCaller, true); err != nil {
		panic(err)
	}
	if err := logger.InitGlobalLogger(config); err != nil {
		panic(err)
	}

	log := logger.NewLogger(Name)
	log.Infof("%s v%s", Name, Version)

	d := daemon.New()
	c := dig.New()

	if err := provide(c, config); err != nil {
		log.Panicf("failed to provide components: %s", err)
	}

	if err := c.Invoke(func(deps engineDeps) error {
		return configureEngine(d, logger.NewLogger("Engine"), deps)
	}); err != nil {
		log.Panicf("failed to configure the engine: %s", err)
	}

	if err := c.Invoke(func(restDeps restAPIDeps, promDeps prometheusDeps) error {
		e, err := configureRestAPI(d, logger.NewLogger("RestAPI"), restDeps)
		if err != nil {
			return err
		}
		if !config.Bool(CfgPrometheusEnabled) {
			return nil
		}
		return configurePrometheus(d, logger.NewLogger("Prometheus"), e, promDeps)
	}); err != nil {
		log.Panicf("failed to configure the REST API: %s", err)
	}

	if config.Bool(CfgMQTTEnabled) {
		if err := c.Invoke(func(deps mqttDeps) error {
			return configureMQTT(d, logger.NewLogger("MQTT"), deps)
		}); err != nil {
			log.Panicf("failed to configure MQTT: %s", err)
		}
	}

	shutdown.NewShutdownHandler(log, d, config.Duration(CfgAppShutdownTimeout)).Run()

	log.Info("Starting background workers ...")
	d.Run()
	log.Info("Shutdown complete!")
}
