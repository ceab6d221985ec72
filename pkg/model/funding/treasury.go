package funding

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/model/ledger"
)

func (t TreasuryOrigin) String() string {
	switch t {
	case TreasuryKusama:
		return "kusama"
	case TreasuryImbue:
		return "imbue"
	case TreasuryKarura:
		return "karura"
	default:
		return "unknown"
	}
}

// ParseTreasuryOrigin parses the name of a treasury.
func ParseTreasuryOrigin(name string) (TreasuryOrigin, error) {
	for _, origin := range []TreasuryOrigin{TreasuryKusama, TreasuryImbue, TreasuryKarura} {
		if strings.EqualFold(origin.String(), name) {
			return origin, nil
		}
	}
	return 0, errors.WithMessagef(ErrInvalidParam, "unknown treasury %q", name)
}

// TreasuryRefundHandler sends refunds of treasury funded projects to treasury accounts held on the ledger.
type TreasuryRefundHandler struct {
	currencies Currencies
	treasuries map[TreasuryOrigin]ledger.AccountID
}

// NewTreasuryRefundHandler creates a refund handler paying into the given treasury accounts.
func NewTreasuryRefundHandler(currencies Currencies, treasuries map[TreasuryOrigin]ledger.AccountID) *TreasuryRefundHandler {
	return &TreasuryRefundHandler{
		currencies: currencies,
		treasuries: treasuries,
	}
}

func (h *TreasuryRefundHandler) SendRefundToTreasury(from ledger.AccountID, amount uint64, currency ledger.CurrencyID, fundingType FundingType) error {
	if !fundingType.IsTreasuryFunded() {
		return errors.WithMessagef(ErrInvalidParam, "%s is not treasury funded", fundingType)
	}
	treasury, has := h.treasuries[fundingType.Treasury]
	if !has {
		return errors.WithMessagef(ErrInvalidParam, "no account for treasury %s", fundingType.Treasury)
	}
	return h.currencies.TransferMany(currency, from, []*ledger.Payout{{To: treasury, Amount: amount}})
}
