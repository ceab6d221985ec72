package fundingapi

import (
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/dig"
	"golang.org/x/time/rate"

	"github.com/gohornet/fundgov/pkg/indexer"
	"github.com/gohornet/fundgov/pkg/jwt"
	"github.com/gohornet/fundgov/pkg/metrics"
	"github.com/gohornet/fundgov/pkg/model/disputes"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/gohornet/fundgov/pkg/restapi"
	"github.com/gohornet/fundgov/pkg/utils"
	"github.com/iotaledger/hive.go/logger"
)

// Dependencies are the components the REST API works on.
type Dependencies struct {
	dig.In
	Funding        *funding.Manager
	Disputes       *disputes.Manager
	Ledger         *ledger.Ledger
	Clock          *tick.Clock
	Indexer        *indexer.Indexer        `optional:"true"`
	RestAPIMetrics *metrics.RestAPIMetrics `optional:"true"`
}

// Options configure the REST API.
type Options struct {
	// MaxResults caps the number of entries of list responses.
	MaxResults int
	// AdminAccount is the subject allowed to mint funds and to originate projects funded by other accounts.
	// Both are disabled if empty.
	AdminAccount ledger.AccountID
	// LimitsPerSecond is the sustained rate of mutating requests per caller. Zero disables rate limiting.
	LimitsPerSecond float64
	// LimitsBurst is the number of mutating requests a caller may issue at once.
	LimitsBurst int
}

// Server serves the read API of the funding engine and the operations of authenticated accounts.
type Server struct {
	*utils.WrappedLogger

	deps Dependencies
	auth *jwt.Auth
	opts Options
}

func NewServer(deps Dependencies, group *echo.Group, auth *jwt.Auth, opts Options, log *logger.Logger) *Server {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 1000
	}
	if opts.LimitsBurst <= 0 {
		opts.LimitsBurst = 10
	}

	s := &Server{
		WrappedLogger: utils.NewWrappedLogger(log),
		deps:          deps,
		auth:          auth,
		opts:          opts,
	}
	s.configureRoutes(group)
	return s
}

// caller returns the account the request was authenticated for.
func (s *Server) caller(c echo.Context) (ledger.AccountID, error) {
	subject, ok := jwt.SubjectFromContext(c)
	if !ok {
		return "", restapi.ErrForbidden
	}
	return ledger.AccountID(subject), nil
}

func (s *Server) isAdmin(who ledger.AccountID) bool {
	return s.opts.AdminAccount != "" && who == s.opts.AdminAccount
}

func (s *Server) rateLimiter() echo.MiddlewareFunc {
	rateLimiterConfig := middleware.RateLimiterConfig{
		Skipper: middleware.DefaultSkipper,
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(
			middleware.RateLimiterMemoryStoreConfig{
				Rate:      rate.Limit(s.opts.LimitsPerSecond),
				Burst:     s.opts.LimitsBurst,
				ExpiresIn: 5 * time.Minute,
			},
		),
		IdentifierExtractor: func(c echo.Context) (string, error) {
			if subject, ok := jwt.SubjectFromContext(c); ok {
				return subject, nil
			}
			return c.RealIP(), nil
		},
		DenyHandler: func(c echo.Context, identifier string, err error) error {
			if s.deps.RestAPIMetrics != nil {
				s.deps.RestAPIMetrics.RateLimitedCounter.Inc()
			}
			return echo.ErrTooManyRequests
		},
	}
	return middleware.RateLimiterWithConfig(rateLimiterConfig)
}
