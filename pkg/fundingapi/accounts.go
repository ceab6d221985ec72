package fundingapi

import (
	"github.com/dustin/go-humanize"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/restapi"
)

func parseCurrency(name string) (ledger.CurrencyID, error) {
	if name == "" {
		return ledger.CurrencyNative, nil
	}

	currency, err := ledger.ParseCurrencyID(name)
	if err != nil {
		return 0, errors.WithMessagef(restapi.ErrInvalidParameter, "%s", err)
	}
	return currency, nil
}

func (s *Server) getBalance(c echo.Context) (*ledger.Balance, error) {
	accountID, err := restapi.ParseAccountIDParam(c)
	if err != nil {
		return nil, err
	}
	currency, err := restapi.ParseCurrencyIDParam(c)
	if err != nil {
		return nil, err
	}

	return s.deps.Ledger.Balance(currency, accountID)
}

func (s *Server) reserve(c echo.Context) error {
	caller, err := s.caller(c)
	if err != nil {
		return err
	}

	request := &ReserveRequest{}
	if err := c.Bind(request); err != nil {
		return errors.WithMessagef(restapi.ErrInvalidParameter, "invalid request! Error: %s", err)
	}
	if request.Amount == 0 {
		return errors.WithMessage(restapi.ErrInvalidParameter, "amount must be positive")
	}

	currency, err := parseCurrency(request.Currency)
	if err != nil {
		return err
	}

	return s.deps.Ledger.Reserve(currency, caller, request.Amount)
}

func (s *Server) mint(c echo.Context) error {
	request := &MintRequest{}
	if err := c.Bind(request); err != nil {
		return errors.WithMessagef(restapi.ErrInvalidParameter, "invalid request! Error: %s", err)
	}
	if request.Account == "" || request.Amount == 0 {
		return errors.WithMessage(restapi.ErrInvalidParameter, "account and amount are required")
	}

	currency, err := parseCurrency(request.Currency)
	if err != nil {
		return err
	}

	if err := s.deps.Ledger.Deposit(currency, request.Account, request.Amount); err != nil {
		return err
	}

	s.LogInfof("minted %s %s to %s", humanize.Comma(int64(request.Amount)), currency, request.Account)
	return nil
}
