package metrics

import (
	echoprometheus "github.com/labstack/echo-contrib/prometheus"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gohornet/fundgov/pkg/model/funding"
)

const (
	namespace = "fundgov"
)

// DatabaseSizer reports the size of the database on disk.
type DatabaseSizer interface {
	Size() int64
}

// ProjectLister lists the stored projects.
type ProjectLister interface {
	Projects() ([]*funding.Project, error)
}

// PrometheusCollector exposes the daemon metrics on its own registry.
// The gauges are refreshed from their sources every time the metrics are scraped.
type PrometheusCollector struct {
	registry *prometheus.Registry
	collects []func()
}

// NewPrometheusCollector registers the funding, REST API and database metrics.
// The database and project sources are optional.
func NewPrometheusCollector(fundingMetrics *FundingMetrics, restAPIMetrics *RestAPIMetrics, database DatabaseSizer, projects ProjectLister, goMetrics bool) *PrometheusCollector {
	p := &PrometheusCollector{
		registry: prometheus.NewRegistry(),
	}

	if goMetrics {
		p.registry.MustRegister(collectors.NewGoCollector())
		p.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	}

	if fundingMetrics != nil {
		p.configureFunding(fundingMetrics)
	}
	if restAPIMetrics != nil {
		p.configureRestAPI(restAPIMetrics)
	}
	if database != nil {
		p.configureDatabase(database)
	}
	if projects != nil {
		p.configureProjects(projects)
	}

	return p
}

func (p *PrometheusCollector) addCollect(collect func()) {
	p.collects = append(p.collects, collect)
}

func (p *PrometheusCollector) newGauge(subsystem string, name string, help string) prometheus.Gauge {
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	})
	p.registry.MustRegister(gauge)
	return gauge
}

func (p *PrometheusCollector) configureFunding(m *FundingMetrics) {
	projectsCreated := p.newGauge("funding", "projects_created", "The amount of created projects.")
	projectsNoConfidence := p.newGauge("funding", "projects_no_confidence", "The amount of projects ended by a vote of no confidence.")
	noConfidenceRounds := p.newGauge("funding", "no_confidence_rounds", "The amount of raised no-confidence rounds.")

	milestones := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "funding",
		Name:      "milestones",
		Help:      "The amount of milestones per state change.",
	}, []string{"state"})
	p.registry.MustRegister(milestones)

	votes := p.newGauge("funding", "votes", "The amount of cast milestone votes.")
	roundsExpired := p.newGauge("funding", "rounds_expired", "The amount of voting rounds that expired without result.")
	withdrawn := p.newGauge("funding", "withdrawn_funds", "The total amount withdrawn by initiators.")
	refunded := p.newGauge("funding", "refunded_funds", "The total amount refunded to contributors and treasuries.")

	disputes := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "disputes",
		Name:      "disputes",
		Help:      "The amount of disputes per state.",
	}, []string{"state"})
	p.registry.MustRegister(disputes)

	disputeVotes := p.newGauge("disputes", "votes", "The amount of cast juror votes.")

	p.addCollect(func() {
		projectsCreated.Set(float64(m.ProjectsCreated.Load()))
		projectsNoConfidence.Set(float64(m.ProjectsFinalised.Load()))
		noConfidenceRounds.Set(float64(m.NoConfidenceRounds.Load()))
		milestones.WithLabelValues("submitted").Set(float64(m.MilestonesSubmitted.Load()))
		milestones.WithLabelValues("approved").Set(float64(m.MilestonesApproved.Load()))
		milestones.WithLabelValues("rejected").Set(float64(m.MilestonesRejected.Load()))
		votes.Set(float64(m.VotesSubmitted.Load()))
		roundsExpired.Set(float64(m.RoundsExpired.Load()))
		withdrawn.Set(float64(m.WithdrawnFunds.Load()))
		refunded.Set(float64(m.RefundedFunds.Load()))
		disputes.WithLabelValues("raised").Set(float64(m.DisputesRaised.Load()))
		disputes.WithLabelValues("succeeded").Set(float64(m.DisputesSucceeded.Load()))
		disputes.WithLabelValues("failed").Set(float64(m.DisputesFailed.Load()))
		disputeVotes.Set(float64(m.DisputeVotes.Load()))
	})
}

func (p *PrometheusCollector) configureRestAPI(m *RestAPIMetrics) {
	httpErrors := p.newGauge("restapi", "http_request_errors", "The amount of encountered HTTP request errors.")
	rateLimited := p.newGauge("restapi", "rate_limited_requests", "The amount of requests rejected by the rate limiter.")

	p.addCollect(func() {
		httpErrors.Set(float64(m.HTTPRequestErrorCounter.Load()))
		rateLimited.Set(float64(m.RateLimitedCounter.Load()))
	})
}

func (p *PrometheusCollector) configureDatabase(database DatabaseSizer) {
	sizeBytes := p.newGauge("database", "size_bytes", "Database size in bytes.")

	p.addCollect(func() {
		sizeBytes.Set(float64(database.Size()))
	})
}

func (p *PrometheusCollector) configureProjects(projects ProjectLister) {
	count := p.newGauge("funding", "projects", "The amount of stored projects.")

	p.addCollect(func() {
		if stored, err := projects.Projects(); err == nil {
			count.Set(float64(len(stored)))
		}
	})
}

// Registry returns the registry all metrics are registered on.
func (p *PrometheusCollector) Registry() *prometheus.Registry {
	return p.registry
}

// Collect refreshes all gauges from their sources.
func (p *PrometheusCollector) Collect() {
	for _, collect := range p.collects {
		collect()
	}
}

// InstrumentEcho registers the HTTP metrics of the given echo instance.
func (p *PrometheusCollector) InstrumentEcho(e *echo.Echo, subsystem string) {
	prom := echoprometheus.NewPrometheus(namespace+"_"+subsystem, nil)
	for _, m := range prom.MetricsList {
		p.registry.MustRegister(m.MetricCollector)
	}
	e.Use(prom.HandlerFunc)
}

// Handler serves the registry in the prometheus exposition format.
func (p *PrometheusCollector) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		p.Collect()

		handler := promhttp.HandlerFor(
			p.registry,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
			},
		)

		handler.ServeHTTP(c.Response().Writer, c.Request())
		return nil
	}
}
