package fundingapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/model/disputes"
	"github.com/gohornet/fundgov/pkg/restapi"
)

func (s *Server) getDisputes(c echo.Context) (*DisputesResponse, error) {
	limit, err := restapi.ParseLimitQueryParam(c, s.opts.MaxResults)
	if err != nil {
		return nil, err
	}

	open, err := s.deps.Disputes.Disputes()
	if err != nil {
		return nil, err
	}
	if len(open) > limit {
		open = open[:limit]
	}
	if open == nil {
		open = []*disputes.Dispute{}
	}
	return &DisputesResponse{Disputes: open}, nil
}

func (s *Server) getDispute(c echo.Context) (*disputes.Dispute, error) {
	disputeID, err := restapi.ParseDisputeIDParam(c)
	if err != nil {
		return nil, err
	}

	return s.deps.Disputes.Dispute(disputeID)
}

func (s *Server) voteOnDispute(c echo.Context) error {
	caller, err := s.caller(c)
	if err != nil {
		return err
	}
	disputeID, err := restapi.ParseDisputeIDParam(c)
	if err != nil {
		return err
	}

	request := &DisputeVoteRequest{}
	if err := c.Bind(request); err != nil {
		return errors.WithMessagef(restapi.ErrInvalidParameter, "invalid request! Error: %s", err)
	}

	return s.deps.Disputes.Vote(caller, disputeID, request.InFavour)
}
