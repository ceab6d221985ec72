package main

import (
	"fmt"
	"os"
	"time"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/iotaledger/hive.go/configuration"
)

const (
	// CfgAppShutdownTimeout is the maximum time to wait for the background workers to stop.
	CfgAppShutdownTimeout = "app.shutdownTimeout"

	// CfgDatabaseEngine is the used database engine (pebble/mapdb).
	CfgDatabaseEngine = "db.engine"
	// CfgDatabasePath is the path to the database folder.
	CfgDatabasePath = "db.path"

	// CfgFundingMilestoneVotingWindow is the number of ticks a milestone voting round stays open.
	CfgFundingMilestoneVotingWindow = "funding.milestoneVotingWindow"
	// CfgFundingNoConfidenceTimeLimit is the number of ticks a vote of no confidence is scheduled for.
	CfgFundingNoConfidenceTimeLimit = "funding.noConfidenceTimeLimit"
	// CfgFundingPercentRequiredForVoteToPass is the share of the raised funds deciding a milestone vote.
	CfgFundingPercentRequiredForVoteToPass = "funding.percentRequiredForVoteToPass"
	// CfgFundingPercentRequiredForVoteNoConfidenceToPass is the share of the raised funds ending a project by no confidence.
	CfgFundingPercentRequiredForVoteNoConfidenceToPass = "funding.percentRequiredForVoteNoConfidenceToPass"
	// CfgFundingExpiringPerTick is the maximum number of rounds expiring at the same tick.
	CfgFundingExpiringPerTick = "funding.expiringPerTick"
	// CfgFundingMaxContributorsPerProject is the maximum number of contributors of a project.
	CfgFundingMaxContributorsPerProject = "funding.maxContributorsPerProject"
	// CfgFundingMaxMilestonesPerProject is the maximum number of milestones of a project.
	CfgFundingMaxMilestonesPerProject = "funding.maxMilestonesPerProject"
	// CfgFundingMaxProjectsPerAccount is the maximum number of completed projects of an initiator.
	CfgFundingMaxProjectsPerAccount = "funding.maxProjectsPerAccount"
	// CfgFundingImbueFee is the protocol fee in percent taken from withdrawals and refunds.
	CfgFundingImbueFee = "funding.imbueFee"
	// CfgFundingFeeAccount is the account receiving the protocol fee.
	CfgFundingFeeAccount = "funding.feeAccount"
	// CfgFundingProjectStorageDeposit is the deposit reserved from the beneficiary while a project is stored.
	CfgFundingProjectStorageDeposit = "funding.projectStorageDeposit"

	// CfgDisputesVotingWindow is the number of ticks jurors can vote on a dispute.
	CfgDisputesVotingWindow = "disputes.votingWindow"
	// CfgDisputesMaxJurySize is the maximum number of jurors of a dispute.
	CfgDisputesMaxJurySize = "disputes.maxJurySize"
	// CfgDisputesStorageDeposit is the deposit reserved from the raiser while a dispute is open.
	CfgDisputesStorageDeposit = "disputes.storageDeposit"

	// CfgTreasuryKusama is the account of the Kusama treasury.
	CfgTreasuryKusama = "treasury.kusama"
	// CfgTreasuryImbue is the account of the Imbue treasury.
	CfgTreasuryImbue = "treasury.imbue"
	// CfgTreasuryKarura is the account of the Karura treasury.
	CfgTreasuryKarura = "treasury.karura"

	// CfgTickInterval is the interval in which the logical clock advances.
	CfgTickInterval = "tick.interval"

	// CfgRestAPIBindAddress is the bind address on which the REST API listens.
	CfgRestAPIBindAddress = "restAPI.bindAddress"
	// CfgRestAPIJWTSecret is the secret the session tokens are signed with.
	CfgRestAPIJWTSecret = "restAPI.jwtSecret"
	// CfgRestAPIJWTSessionTimeout is the lifetime of issued session tokens.
	CfgRestAPIJWTSessionTimeout = "restAPI.jwtSessionTimeout"
	// CfgRestAPIAdminAccount is the account allowed to mint funds.
	CfgRestAPIAdminAccount = "restAPI.adminAccount"
	// CfgRestAPIMaxResults is the maximum number of entries of list responses.
	CfgRestAPIMaxResults = "restAPI.maxResults"
	// CfgRestAPILimitsPerSecond is the sustained rate of mutating requests per account.
	CfgRestAPILimitsPerSecond = "restAPI.limitsPerSecond"
	// CfgRestAPILimitsBurst is the number of mutating requests an account may issue at once.
	CfgRestAPILimitsBurst = "restAPI.limitsBurst"

	// CfgPrometheusEnabled enable prometheus metrics.
	CfgPrometheusEnabled = "prometheus.enabled"
	// CfgPrometheusBindAddress bind address on which the Prometheus HTTP server listens.
	CfgPrometheusBindAddress = "prometheus.bindAddress"
	// CfgPrometheusGoMetrics include go and process metrics.
	CfgPrometheusGoMetrics = "prometheus.goMetrics"
	// CfgPrometheusBasicAuthEnabled protect the Prometheus exporter with basic auth.
	CfgPrometheusBasicAuthEnabled = "prometheus.basicAuth.enabled"
	// CfgPrometheusBasicAuthUsername the username of the Prometheus exporter.
	CfgPrometheusBasicAuthUsername = "prometheus.basicAuth.username"
	// CfgPrometheusBasicAuthPasswordHash the hex encoded scrypt key of the password.
	CfgPrometheusBasicAuthPasswordHash = "prometheus.basicAuth.passwordHash"
	// CfgPrometheusBasicAuthPasswordSalt the hex encoded salt of the password.
	CfgPrometheusBasicAuthPasswordSalt = "prometheus.basicAuth.passwordSalt"

	// CfgMQTTEnabled enable the MQTT broker.
	CfgMQTTEnabled = "mqtt.enabled"
	// CfgMQTTBindAddress the bind address on which the MQTT broker listens on.
	CfgMQTTBindAddress = "mqtt.bindAddress"
	// CfgMQTTWSPort the port of the WebSocket MQTT broker.
	CfgMQTTWSPort = "mqtt.wsPort"
	// CfgMQTTWSPath the path of the WebSocket MQTT broker.
	CfgMQTTWSPath = "mqtt.wsPath"
	// CfgMQTTTopicCleanupThreshold the number of deleted topics that trigger a garbage collection of the subscription manager.
	CfgMQTTTopicCleanupThreshold = "mqtt.topicCleanupThreshold"

	// CfgAuditLogEnabled enable the recording of funding events.
	CfgAuditLogEnabled = "auditlog.enabled"
	// CfgAuditLogPath the path to the audit log database folder.
	CfgAuditLogPath = "auditlog.path"
)

func flagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("", flag.ContinueOnError)

	fs.Duration(CfgAppShutdownTimeout, 5*time.Minute, "the maximum time to wait for background workers to stop")

	fs.String(CfgDatabaseEngine, "pebble", "the used database engine (pebble/mapdb)")
	fs.String(CfgDatabasePath, "fundgovdb", "the path to the database folder")

	fs.Int(CfgFundingMilestoneVotingWindow, 100800, "the number of ticks a milestone voting round stays open")
	fs.Int(CfgFundingNoConfidenceTimeLimit, 100800, "the number of ticks a vote of no confidence is scheduled for")
	fs.Int(CfgFundingPercentRequiredForVoteToPass, 75, "the share of the raised funds in percent deciding a milestone vote")
	fs.Int(CfgFundingPercentRequiredForVoteNoConfidenceToPass, 75, "the share of the raised funds in percent ending a project by no confidence")
	fs.Int(CfgFundingExpiringPerTick, 1000, "the maximum number of rounds expiring at the same tick")
	fs.Int(CfgFundingMaxContributorsPerProject, 5000, "the maximum number of contributors of a project")
	fs.Int(CfgFundingMaxMilestonesPerProject, 100, "the maximum number of milestones of a project")
	fs.Int(CfgFundingMaxProjectsPerAccount, 1000, "the maximum number of completed projects of an initiator")
	fs.Int(CfgFundingImbueFee, 5, "the protocol fee in percent")
	fs.String(CfgFundingFeeAccount, "fees", "the account receiving the protocol fee")
	fs.Int64(CfgFundingProjectStorageDeposit, 100, "the deposit reserved while a project is stored")

	fs.Int(CfgDisputesVotingWindow, 100800, "the number of ticks jurors can vote on a dispute")
	fs.Int(CfgDisputesMaxJurySize, 100, "the maximum number of jurors of a dispute")
	fs.Int64(CfgDisputesStorageDeposit, 10, "the deposit reserved while a dispute is open")

	fs.String(CfgTreasuryKusama, "treasury/kusama", "the account of the Kusama treasury")
	fs.String(CfgTreasuryImbue, "treasury/imbue", "the account of the Imbue treasury")
	fs.String(CfgTreasuryKarura, "treasury/karura", "the account of the Karura treasury")

	fs.Duration(CfgTickInterval, 6*time.Second, "the interval in which the logical clock advances")

	fs.String(CfgRestAPIBindAddress, "localhost:14265", "the bind address on which the REST API listens")
	fs.String(CfgRestAPIJWTSecret, "", "the secret session tokens are signed with")
	fs.Duration(CfgRestAPIJWTSessionTimeout, 24*time.Hour, "the lifetime of issued session tokens")
	fs.String(CfgRestAPIAdminAccount, "", "the account allowed to mint funds, minting is disabled if empty")
	fs.Int(CfgRestAPIMaxResults, 1000, "the maximum number of entries of list responses")
	fs.Float64(CfgRestAPILimitsPerSecond, 20, "the sustained rate of mutating requests per account, 0 disables the limit")
	fs.Int(CfgRestAPILimitsBurst, 30, "the number of mutating requests an account may issue at once")

	fs.Bool(CfgPrometheusEnabled, false, "enable prometheus metrics")
	fs.String(CfgPrometheusBindAddress, "localhost:9311", "bind address on which the Prometheus HTTP server listens.")
	fs.Bool(CfgPrometheusGoMetrics, false, "include go and process metrics")
	fs.Bool(CfgPrometheusBasicAuthEnabled, false, "protect the Prometheus exporter with basic auth")
	fs.String(CfgPrometheusBasicAuthUsername, "", "the username of the Prometheus exporter")
	fs.String(CfgPrometheusBasicAuthPasswordHash, "", "the hex encoded scrypt key of the password")
	fs.String(CfgPrometheusBasicAuthPasswordSalt, "", "the hex encoded salt of the password")

	fs.Bool(CfgMQTTEnabled, false, "enable the MQTT broker")
	fs.String(CfgMQTTBindAddress, "localhost:1883", "bind address on which the MQTT broker listens on")
	fs.Int(CfgMQTTWSPort, 1888, "port of the WebSocket MQTT broker")
	fs.String(CfgMQTTWSPath, "/ws", "path of the WebSocket MQTT broker")
	fs.Int(CfgMQTTTopicCleanupThreshold, 10000, "number of deleted topics that trigger a garbage collection of the subscription manager")

	fs.Bool(CfgAuditLogEnabled, true, "record the funding events")
	fs.String(CfgAuditLogPath, "auditlog", "the path to the audit log database folder")

	return fs
}

// loadConfigFile loads the config file and overlays it with the command line flags.
func loadConfigFile(filePath string, args []string) (*configuration.Configuration, error) {
	config := configuration.New()
	if err := config.LoadFile(filePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading config file failed: %w", err)
	}

	fs := flagSet()
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if err := config.LoadFlagSet(fs); err != nil {
		return nil, err
	}
	return config, nil
}
