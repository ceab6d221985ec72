package ledger

import (
	"fmt"
	"strings"
)

// AccountID identifies a principal holding balances.
type AccountID string

// CurrencyID identifies an asset of the ledger.
type CurrencyID uint32

const (
	CurrencyNative CurrencyID = iota
	CurrencyKSM
	CurrencyAUSD
	CurrencyKAR
	CurrencyMGX
)

var currencyNames = map[CurrencyID]string{
	CurrencyNative: "native",
	CurrencyKSM:    "ksm",
	CurrencyAUSD:   "ausd",
	CurrencyKAR:    "kar",
	CurrencyMGX:    "mgx",
}

func (c CurrencyID) String() string {
	if name, has := currencyNames[c]; has {
		return name
	}
	return fmt.Sprintf("currency(%d)", uint32(c))
}

// ParseCurrencyID parses the name of a known currency.
func ParseCurrencyID(name string) (CurrencyID, error) {
	for id, n := range currencyNames {
		if n == strings.ToLower(name) {
			return id, nil
		}
	}
	return 0, fmt.Errorf("unknown currency: %s", name)
}

// Payout is a single credit of a TransferMany call.
type Payout struct {
	To     AccountID
	Amount uint64
}

// Balance holds the free and reserved amount of an account in one currency.
type Balance struct {
	Free     uint64 `json:"free"`
	Reserved uint64 `json:"reserved"`
}
