package ledger

const (
	// Holds the spendable balances
	LedgerStoreKeyPrefixFree byte = 0

	// Holds the reserved balances
	LedgerStoreKeyPrefixReserved byte = 1
)
