package main

import (
	"context"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	"github.com/gohornet/fundgov/pkg/basicauth"
	"github.com/gohornet/fundgov/pkg/common"
	"github.com/gohornet/fundgov/pkg/database"
	"github.com/gohornet/fundgov/pkg/fundingapi"
	"github.com/gohornet/fundgov/pkg/indexer"
	"github.com/gohornet/fundgov/pkg/jwt"
	"github.com/gohornet/fundgov/pkg/metrics"
	"github.com/gohornet/fundgov/pkg/model/deposits"
	"github.com/gohornet/fundgov/pkg/model/disputes"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/gohornet/fundgov/pkg/mqtt"
	"github.com/gohornet/fundgov/pkg/restapi"
	"github.com/gohornet/fundgov/pkg/shutdown"
	"github.com/iotaledger/hive.go/configuration"
	"github.com/iotaledger/hive.go/daemon"
	"github.com/iotaledger/hive.go/events"
	"github.com/iotaledger/hive.go/logger"
	"github.com/iotaledger/hive.go/timeutil"
)

const (
	// RouteFundingAPI is the prefix of the funding REST API.
	RouteFundingAPI = "/api/funding/v1"
	// RouteMetrics is the route of the prometheus exporter.
	RouteMetrics = "/metrics"
)

// provide registers the engine and its supporting components in the container.
func provide(c *dig.Container, config *configuration.Configuration) error {

	if err := c.Provide(func() *configuration.Configuration {
		return config
	}); err != nil {
		return err
	}

	if err := c.Provide(func(config *configuration.Configuration) (*database.Database, error) {
		engine, err := database.DatabaseEngine(config.String(CfgDatabaseEngine))
		if err != nil {
			return nil, err
		}
		return database.Open(logger.NewLogger("Database"), config.String(CfgDatabasePath), engine)
	}); err != nil {
		return err
	}

	if err := c.Provide(func(db *database.Database) (*tick.Clock, error) {
		return tick.NewClock(db.KVStore().WithRealm([]byte{common.StorePrefixClock}))
	}); err != nil {
		return err
	}

	if err := c.Provide(func(db *database.Database) (*ledger.Ledger, error) {
		return ledger.NewLedger(db.KVStore(), logger.NewLogger("Ledger"))
	}); err != nil {
		return err
	}

	if err := c.Provide(func(config *configuration.Configuration, db *database.Database, l *ledger.Ledger) (*deposits.Manager, error) {
		return deposits.NewManager(db.KVStore(), l, map[deposits.StorageItem]uint64{
			deposits.StorageItemProject: uint64(config.Int64(CfgFundingProjectStorageDeposit)),
			deposits.StorageItemDispute: uint64(config.Int64(CfgDisputesStorageDeposit)),
		}, logger.NewLogger("Deposits"))
	}); err != nil {
		return err
	}

	if err := c.Provide(func(config *configuration.Configuration, db *database.Database, clock *tick.Clock, d *deposits.Manager) (*disputes.Manager, error) {
		return disputes.NewManager(db.KVStore(), clock, d,
			disputes.WithLogger(logger.NewLogger("Disputes")),
			disputes.WithVotingWindow(uint32(config.Int(CfgDisputesVotingWindow))),
			disputes.WithMaxJurySize(config.Int(CfgDisputesMaxJurySize)),
		)
	}); err != nil {
		return err
	}

	type fundingDeps struct {
		dig.In
		Config   *configuration.Configuration
		Database *database.Database
		Clock    *tick.Clock
		Ledger   *ledger.Ledger
		Deposits *deposits.Manager
		Disputes *disputes.Manager
	}

	if err := c.Provide(func(deps fundingDeps) (*funding.Manager, error) {
		treasury := funding.NewTreasuryRefundHandler(deps.Ledger, map[funding.TreasuryOrigin]ledger.AccountID{
			funding.TreasuryKusama: ledger.AccountID(deps.Config.String(CfgTreasuryKusama)),
			funding.TreasuryImbue:  ledger.AccountID(deps.Config.String(CfgTreasuryImbue)),
			funding.TreasuryKarura: ledger.AccountID(deps.Config.String(CfgTreasuryKarura)),
		})

		fm, err := funding.NewManager(deps.Database.KVStore(), deps.Clock, deps.Ledger, deps.Deposits,
			funding.WithLogger(logger.NewLogger("Funding")),
			funding.WithMilestoneVotingWindow(uint32(deps.Config.Int(CfgFundingMilestoneVotingWindow))),
			funding.WithNoConfidenceTimeLimit(uint32(deps.Config.Int(CfgFundingNoConfidenceTimeLimit))),
			funding.WithPercentRequiredForVoteToPass(funding.Percent(deps.Config.Int(CfgFundingPercentRequiredForVoteToPass))),
			funding.WithPercentRequiredForVoteNoConfidenceToPass(funding.Percent(deps.Config.Int(CfgFundingPercentRequiredForVoteNoConfidenceToPass))),
			funding.WithExpiringPerTick(deps.Config.Int(CfgFundingExpiringPerTick)),
			funding.WithMaxContributorsPerProject(deps.Config.Int(CfgFundingMaxContributorsPerProject)),
			funding.WithMaxMilestonesPerProject(deps.Config.Int(CfgFundingMaxMilestonesPerProject)),
			funding.WithMaxProjectsPerAccount(deps.Config.Int(CfgFundingMaxProjectsPerAccount)),
			funding.WithMaxJuryMembers(deps.Config.Int(CfgDisputesMaxJurySize)),
			funding.WithImbueFee(funding.Percent(deps.Config.Int(CfgFundingImbueFee))),
			funding.WithFeeAccount(ledger.AccountID(deps.Config.String(CfgFundingFeeAccount))),
			funding.WithDisputeRaiser(deps.Disputes),
			funding.WithExternalRefundHandler(treasury),
		)
		if err != nil {
			return nil, err
		}
		deps.Disputes.SetHooks(fm)
		return fm, nil
	}); err != nil {
		return err
	}

	if err := c.Provide(func() *metrics.FundingMetrics {
		return &metrics.FundingMetrics{}
	}); err != nil {
		return err
	}

	if err := c.Provide(func() *metrics.RestAPIMetrics {
		return &metrics.RestAPIMetrics{}
	}); err != nil {
		return err
	}

	if !config.Bool(CfgAuditLogEnabled) {
		return nil
	}

	return c.Provide(func(config *configuration.Configuration) (*indexer.Indexer, error) {
		return indexer.NewIndexer(config.String(CfgAuditLogPath), logger.NewLogger("AuditLog"))
	})
}

type engineDeps struct {
	dig.In
	Config         *configuration.Configuration
	Database       *database.Database
	Clock          *tick.Clock
	Ledger         *ledger.Ledger
	Deposits       *deposits.Manager
	Disputes       *disputes.Manager
	Funding        *funding.Manager
	FundingMetrics *metrics.FundingMetrics
	Indexer        *indexer.Indexer `optional:"true"`
}

// configureEngine drives the logical clock and shuts the managers down before the database is closed.
func configureEngine(d daemon.Daemon, log *logger.Logger, deps engineDeps) error {

	deps.FundingMetrics.AttachFunding(deps.Funding.Events)
	deps.FundingMetrics.AttachDisputes(deps.Disputes.Events)

	if deps.Indexer != nil {
		lastTick, err := deps.Indexer.LastTick()
		switch {
		case errors.Is(err, indexer.ErrNotFound):
			log.Info("audit log is empty")
		case err != nil:
			return err
		default:
			log.Infof("audit log recorded up to tick %d", lastTick)
		}
		deps.Indexer.AttachFunding(deps.Funding.Events)
	}

	onTick := events.NewClosure(func(index tick.Index) {
		if err := deps.Funding.Sweep(index); err != nil {
			log.Errorf("sweeping rounds at tick %d failed: %s", index, err)
		}
		if err := deps.Disputes.ProcessTick(index); err != nil {
			log.Errorf("processing disputes at tick %d failed: %s", index, err)
		}
	})

	if err := d.BackgroundWorker("Close database", func(ctx context.Context) {
		<-ctx.Done()
		log.Info("Syncing database to disk ...")
		if err := deps.Database.Close(); err != nil {
			log.Errorf("closing the database failed: %s", err)
		}
		log.Info("Syncing database to disk ... done")
	}, shutdown.PriorityCloseDatabase); err != nil {
		return err
	}

	if err := d.BackgroundWorker("Managers", func(ctx context.Context) {
		<-ctx.Done()
		log.Info("Stopping managers ...")
		// funding first, it settles through the other managers
		for _, manager := range []struct {
			name     string
			shutdown func() error
		}{
			{"funding", deps.Funding.Shutdown},
			{"disputes", deps.Disputes.Shutdown},
			{"deposits", deps.Deposits.Shutdown},
			{"ledger", deps.Ledger.Shutdown},
		} {
			if err := manager.shutdown(); err != nil {
				log.Errorf("stopping the %s manager failed: %s", manager.name, err)
			}
		}
		log.Info("Stopping managers ... done")
	}, shutdown.PriorityManagers); err != nil {
		return err
	}

	if deps.Indexer != nil {
		if err := d.BackgroundWorker("Audit log", func(ctx context.Context) {
			<-ctx.Done()
			if err := deps.Indexer.CloseDatabase(); err != nil {
				log.Errorf("closing the audit log failed: %s", err)
			}
		}, shutdown.PriorityAuditLog); err != nil {
			return err
		}
	}

	interval := deps.Config.Duration(CfgTickInterval)
	return d.BackgroundWorker("Ticker", func(ctx context.Context) {
		log.Infof("Starting ticker at tick %d, interval %v ... done", deps.Clock.CurrentIndex(), interval)
		deps.Clock.Events.Tick.Attach(onTick)
		defer deps.Clock.Events.Tick.Detach(onTick)

		ticker := timeutil.NewTicker(func() {
			if _, err := deps.Clock.Advance(); err != nil {
				log.Errorf("advancing the clock failed: %s", err)
			}
		}, interval, ctx)
		ticker.WaitForShutdown()

		log.Info("Stopping ticker ... done")
	}, shutdown.PriorityTicker)
}

type restAPIDeps struct {
	dig.In
	Config         *configuration.Configuration
	API            fundingapi.Dependencies
	RestAPIMetrics *metrics.RestAPIMetrics
}

// configureRestAPI serves the funding API. It returns the echo instance so it can be instrumented.
func configureRestAPI(d daemon.Daemon, log *logger.Logger, deps restAPIDeps) (*echo.Echo, error) {

	auth, err := jwt.NewAuth(Name, deps.Config.Duration(CfgRestAPIJWTSessionTimeout), deps.Config.String(CfgRestAPIJWTSecret))
	if err != nil {
		return nil, errors.Wrap(err, "invalid REST API auth settings")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowHeaders: []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
	}))

	e.HTTPErrorHandler = restapi.ErrorHandler(func(err error, c echo.Context) {
		deps.RestAPIMetrics.HTTPRequestErrorCounter.Inc()
		log.Debugf("%s %s failed: %s", c.Request().Method, c.Request().URL, err)
	})

	fundingapi.NewServer(deps.API, e.Group(RouteFundingAPI), auth, fundingapi.Options{
		MaxResults:      deps.Config.Int(CfgRestAPIMaxResults),
		AdminAccount:    ledger.AccountID(deps.Config.String(CfgRestAPIAdminAccount)),
		LimitsPerSecond: deps.Config.Float64(CfgRestAPILimitsPerSecond),
		LimitsBurst:     deps.Config.Int(CfgRestAPILimitsBurst),
	}, log)

	bindAddr := deps.Config.String(CfgRestAPIBindAddress)
	if err := d.BackgroundWorker("REST-API server", func(ctx context.Context) {
		go func() {
			log.Infof("You can now access the API using: http://%s%s", bindAddr, RouteFundingAPI)
			if err := e.Start(bindAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warnf("Stopped REST-API server due to an error (%s)", err)
			}
		}()

		<-ctx.Done()
		log.Info("Stopping REST-API server ...")

		shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Warn(err)
		}
		shutdownCtxCancel()
		log.Info("Stopping REST-API server ... done")
	}, shutdown.PriorityRestAPI); err != nil {
		return nil, err
	}

	return e, nil
}

type mqttDeps struct {
	dig.In
	Config   *configuration.Configuration
	Funding  *funding.Manager
	Disputes *disputes.Manager
}

func configureMQTT(d daemon.Daemon, log *logger.Logger, deps mqttDeps) error {

	broker, err := mqtt.NewBroker(
		deps.Config.String(CfgMQTTBindAddress),
		deps.Config.Int(CfgMQTTWSPort),
		deps.Config.String(CfgMQTTWSPath),
		func(topic []byte) {
			log.Debugf("subscribe to topic: %s", string(topic))
		},
		func(topic []byte) {
			log.Debugf("unsubscribe from topic: %s", string(topic))
		},
		deps.Config.Int(CfgMQTTTopicCleanupThreshold),
	)
	if err != nil {
		return err
	}

	publisher := mqtt.NewPublisher(broker, log)

	return d.BackgroundWorker("MQTT Broker", func(ctx context.Context) {
		log.Infof("Starting MQTT Broker (port %s) ...", broker.GetConfig().Port)
		broker.Start()
		log.Infof("Starting MQTT Broker (port %s) ... done", broker.GetConfig().Port)

		publisher.AttachFunding(deps.Funding.Events)
		publisher.AttachDisputes(deps.Disputes.Events)

		if broker.GetConfig().WsPort != "" {
			log.Infof("You can now listen to MQTT via: ws://%s:%s%s", broker.GetConfig().Host, broker.GetConfig().WsPort, broker.GetConfig().WsPath)
		}

		<-ctx.Done()
		log.Info("Stopping MQTT Broker ... done")
	}, shutdown.PriorityMQTT)
}

type prometheusDeps struct {
	dig.In
	Config         *configuration.Configuration
	Database       *database.Database
	Funding        *funding.Manager
	FundingMetrics *metrics.FundingMetrics
	RestAPIMetrics *metrics.RestAPIMetrics
}

func configurePrometheus(d daemon.Daemon, log *logger.Logger, restAPI *echo.Echo, deps prometheusDeps) error {

	collector := metrics.NewPrometheusCollector(
		deps.FundingMetrics,
		deps.RestAPIMetrics,
		deps.Database,
		deps.Funding,
		deps.Config.Bool(CfgPrometheusGoMetrics),
	)
	collector.InstrumentEcho(restAPI, "restapi")

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	var protected []echo.MiddlewareFunc
	if deps.Config.Bool(CfgPrometheusBasicAuthEnabled) {
		auth, err := basicauth.NewBasicAuth(
			deps.Config.String(CfgPrometheusBasicAuthUsername),
			deps.Config.String(CfgPrometheusBasicAuthPasswordHash),
			deps.Config.String(CfgPrometheusBasicAuthPasswordSalt),
		)
		if err != nil {
			return err
		}
		protected = append(protected, auth.Middleware("prometheus"))
	}
	e.GET(RouteMetrics, collector.Handler(), protected...)

	bindAddr := deps.Config.String(CfgPrometheusBindAddress)
	return d.BackgroundWorker("Prometheus exporter", func(ctx context.Context) {
		go func() {
			log.Infof("You can now access the Prometheus exporter using: http://%s%s", bindAddr, RouteMetrics)
			if err := e.Start(bindAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Warnf("Stopped Prometheus exporter due to an error (%s)", err)
			}
		}()

		<-ctx.Done()
		log.Info("Stopping Prometheus exporter ...")

		shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := e.Shutdown(shutdownCtx); err != nil {
			log.Warn(err)
		}
		shutdownCtxCancel()
		log.Infof("Stopping Prometheus exporter ... done (database size %s)", humanize.Bytes(uint64(deps.Database.Size())))
	}, shutdown.PriorityPrometheus)
}
