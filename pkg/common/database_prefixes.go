package common

const (
	StorePrefixClock    byte = 1
	StorePrefixLedger   byte = 2
	StorePrefixDeposits byte = 3
	StorePrefixFunding  byte = 4
	StorePrefixDisputes byte = 5
	StorePrefixHealth   byte = 255
)
