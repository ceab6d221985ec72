package funding

import (
	"github.com/gohornet/fundgov/pkg/model/deposits"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/tick"
)

// Currencies is the multi-asset primitive the engine moves value with.
// Every method either applies completely or not at all.
type Currencies interface {
	FreeBalance(currency ledger.CurrencyID, who ledger.AccountID) (uint64, error)
	TransferMany(currency ledger.CurrencyID, from ledger.AccountID, payouts []*ledger.Payout) error
	TransferFromMany(currency ledger.CurrencyID, to ledger.AccountID, from map[ledger.AccountID]uint64) error
	TransferReserved(currency ledger.CurrencyID, to ledger.AccountID, from map[ledger.AccountID]uint64) error
}

// ExternalRefundHandler sends refunds of treasury funded projects back to their treasury.
type ExternalRefundHandler interface {
	SendRefundToTreasury(from ledger.AccountID, amount uint64, currency ledger.CurrencyID, fundingType FundingType) error
}

// DisputeRaiser hands a dispute over to the dispute subsystem.
// The subsystem reports the outcome through OnDisputeComplete.
type DisputeRaiser interface {
	RaiseDispute(projectKey ProjectKey, raisedBy ledger.AccountID, jury []ledger.AccountID, milestoneKeys []MilestoneKey) error
}

// DepositHandler takes and returns storage deposits.
type DepositHandler interface {
	TakeDeposit(who ledger.AccountID, item deposits.StorageItem, currency ledger.CurrencyID) (deposits.DepositID, error)
	ReturnDeposit(id deposits.DepositID) error
}

// Clock provides the current tick.
type Clock interface {
	CurrentIndex() tick.Index
}
