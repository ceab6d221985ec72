package restapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/mr-tron/base58"
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/model/disputes"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/ledger"
)

const (
	// ParameterProjectKey is used to identify a project by its key.
	ParameterProjectKey = "projectKey"

	// ParameterMilestoneKey is used to identify a milestone within a project.
	ParameterMilestoneKey = "milestoneKey"

	// ParameterDisputeID is used to identify a dispute.
	ParameterDisputeID = "disputeID"

	// ParameterAccountID is used to identify an account.
	ParameterAccountID = "accountID"

	// ParameterCurrencyID is used to identify a currency.
	ParameterCurrencyID = "currencyID"

	// QueryParameterKind is used to filter for a notification kind.
	QueryParameterKind = "kind"

	// QueryParameterLimit is used to limit the number of results.
	QueryParameterLimit = "limit"
)

var (
	// ErrInvalidParameter defines the invalid parameter error.
	ErrInvalidParameter = echo.NewHTTPError(http.StatusBadRequest, "invalid parameter")

	// ErrForbidden defines the error of a caller acting on something it is not entitled to.
	ErrForbidden = echo.NewHTTPError(http.StatusForbidden, "forbidden")

	// ErrConflict defines the error of a request conflicting with the current state.
	ErrConflict = echo.NewHTTPError(http.StatusConflict, "conflict")

	// ErrServiceNotImplemented defines the service not implemented error.
	ErrServiceNotImplemented = echo.NewHTTPError(http.StatusNotImplemented, "service not implemented")
)

// JSONResponse sends the JSON response with status code.
func JSONResponse(c echo.Context, statusCode int, result interface{}) error {
	return c.JSON(statusCode, result)
}

// HTTPErrorResponse defines the error struct for the HTTPErrorResponseEnvelope.
type HTTPErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// HTTPErrorResponseEnvelope defines the error response schema for API responses.
type HTTPErrorResponseEnvelope struct {
	Error HTTPErrorResponse `json:"error"`
}

// ErrorHandler renders every error as HTTPErrorResponseEnvelope. onError is called for every error if set.
func ErrorHandler(onError func(err error, c echo.Context)) func(error, echo.Context) {
	return func(err error, c echo.Context) {
		if onError != nil {
			onError(err, c)
		}

		var statusCode int
		var message string

		var e *echo.HTTPError
		if errors.As(err, &e) {
			statusCode = e.Code
			message = fmt.Sprintf("%s, error: %s", e.Message, err)
		} else {
			statusCode = http.StatusInternalServerError
			message = fmt.Sprintf("internal server error. error: %s", err)
		}

		_ = c.JSON(statusCode, HTTPErrorResponseEnvelope{Error: HTTPErrorResponse{Code: strconv.Itoa(statusCode), Message: message}})
	}
}

// HTTPError maps errors of the engine to HTTP errors. Unknown errors are returned as they are.
func HTTPError(err error) error {
	switch {
	case err == nil:
		return nil

	case errors.Is(err, funding.ErrProjectDoesNotExist),
		errors.Is(err, funding.ErrMilestoneDoesNotExist),
		errors.Is(err, funding.ErrVotingRoundNotStarted),
		errors.Is(err, funding.ErrNoActiveRound),
		errors.Is(err, disputes.ErrDisputeDoesNotExist):
		return errors.WithMessagef(echo.ErrNotFound, "%s", err)

	case errors.Is(err, funding.ErrUserIsNotInitiator),
		errors.Is(err, funding.ErrOnlyContributorsCanVote),
		errors.Is(err, funding.ErrOnlyContributorsCanRaiseDispute),
		errors.Is(err, funding.ErrOnlyContributorsCanInitiateRefund),
		errors.Is(err, funding.ErrOnlyContributorsCanRaiseRound),
		errors.Is(err, disputes.ErrNotAJuryAccount):
		return errors.WithMessagef(ErrForbidden, "%s", err)

	case errors.Is(err, funding.ErrRoundStarted),
		errors.Is(err, funding.ErrVotesAreImmutable),
		errors.Is(err, funding.ErrMilestoneAlreadyApproved),
		errors.Is(err, funding.ErrMilestonesAlreadyInDispute),
		errors.Is(err, funding.ErrCannotRaiseDisputeOnApprovedMilestone),
		errors.Is(err, funding.ErrProjectWithdrawn),
		errors.Is(err, funding.ErrMilestoneAlreadyTransferred),
		errors.Is(err, funding.ErrOverflow),
		errors.Is(err, funding.ErrTooManyProjects),
		errors.Is(err, funding.ErrNoAvailableFundsToWithdraw),
		errors.Is(err, disputes.ErrAlreadyVoted),
		errors.Is(err, disputes.ErrTooManyDisputesExpiring):
		return errors.WithMessagef(ErrConflict, "%s", err)

	case errors.Is(err, funding.ErrInvalidParam),
		errors.Is(err, funding.ErrMilestonePercentagesInvalid),
		errors.Is(err, funding.ErrNoContributions),
		errors.Is(err, funding.ErrTooManyContributions),
		errors.Is(err, funding.ErrTooManyMilestones),
		errors.Is(err, funding.ErrTooManyJuryMembers),
		errors.Is(err, funding.ErrProjectFundingFailed),
		errors.Is(err, ledger.ErrInsufficientBalance),
		errors.Is(err, ledger.ErrInsufficientReserved),
		errors.Is(err, disputes.ErrJuryRequired),
		errors.Is(err, disputes.ErrTooManyJuryMembers):
		return errors.WithMessagef(ErrInvalidParameter, "%s", err)

	case errors.Is(err, funding.ErrNoDisputeRaiser),
		errors.Is(err, funding.ErrNoRefundHandler):
		return errors.WithMessagef(ErrServiceNotImplemented, "%s", err)

	default:
		return err
	}
}

func parseUint32Param(c echo.Context, paramName string) (uint32, error) {
	param := strings.TrimSpace(c.Param(paramName))
	if param == "" {
		return 0, errors.WithMessagef(ErrInvalidParameter, "parameter \"%s\" not specified", paramName)
	}

	value, err := strconv.ParseUint(param, 10, 32)
	if err != nil {
		return 0, errors.WithMessagef(ErrInvalidParameter, "invalid %s: %s, error: %s", paramName, param, err)
	}
	return uint32(value), nil
}

func ParseProjectKeyParam(c echo.Context) (funding.ProjectKey, error) {
	projectKey, err := parseUint32Param(c, ParameterProjectKey)
	return funding.ProjectKey(projectKey), err
}

func ParseMilestoneKeyParam(c echo.Context) (funding.MilestoneKey, error) {
	milestoneKey, err := parseUint32Param(c, ParameterMilestoneKey)
	return funding.MilestoneKey(milestoneKey), err
}

func ParseDisputeIDParam(c echo.Context) (disputes.DisputeID, error) {
	param := strings.TrimSpace(c.Param(ParameterDisputeID))

	disputeID, err := strconv.ParseUint(param, 10, 64)
	if err != nil {
		return 0, errors.WithMessagef(ErrInvalidParameter, "invalid dispute ID: %s, error: %s", param, err)
	}
	return disputes.DisputeID(disputeID), nil
}

func ParseAccountIDParam(c echo.Context) (ledger.AccountID, error) {
	accountID := c.Param(ParameterAccountID)
	if accountID == "" {
		return "", errors.WithMessagef(ErrInvalidParameter, "parameter \"%s\" not specified", ParameterAccountID)
	}
	return ledger.AccountID(accountID), nil
}

func ParseCurrencyIDParam(c echo.Context) (ledger.CurrencyID, error) {
	param := c.Param(ParameterCurrencyID)

	currency, err := ledger.ParseCurrencyID(param)
	if err != nil {
		return 0, errors.WithMessagef(ErrInvalidParameter, "invalid currency: %s, error: %s", param, err)
	}
	return currency, nil
}

// ParseLimitQueryParam returns the value of the limit query parameter, capped at maxResults.
func ParseLimitQueryParam(c echo.Context, maxResults int) (int, error) {
	param := c.QueryParam(QueryParameterLimit)
	if param == "" {
		return maxResults, nil
	}

	limit, err := strconv.Atoi(param)
	if err != nil || limit <= 0 {
		return 0, errors.WithMessagef(ErrInvalidParameter, "invalid limit: %s", param)
	}
	if limit > maxResults {
		limit = maxResults
	}
	return limit, nil
}

// EncodeAgreementHash returns the textual form of an agreement hash.
func EncodeAgreementHash(hash [32]byte) string {
	return base58.Encode(hash[:])
}

// DecodeAgreementHash parses the textual form of an agreement hash. An empty string is the zero hash.
func DecodeAgreementHash(hash string) ([32]byte, error) {
	var result [32]byte
	if hash == "" {
		return result, nil
	}

	hashBytes, err := base58.Decode(hash)
	if err != nil {
		return result, errors.WithMessagef(ErrInvalidParameter, "invalid agreement hash: %s, error: %s", hash, err)
	}
	if len(hashBytes) != len(result) {
		return result, errors.WithMessagef(ErrInvalidParameter, "invalid agreement hash: %s, invalid length: %d", hash, len(hashBytes))
	}

	copy(result[:], hashBytes)
	return result, nil
}
