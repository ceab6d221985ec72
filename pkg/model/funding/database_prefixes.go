package funding

const (
	// Holds the projects
	FundingStoreKeyPrefixProjects byte = 0
	// Holds the last used project key
	FundingStoreKeyPrefixProjectCount byte = 1

	// Voting
	FundingStoreKeyPrefixMilestoneVotes    byte = 2
	FundingStoreKeyPrefixNoConfidenceVotes byte = 3
	FundingStoreKeyPrefixIndividualVotes   byte = 4

	// Round scheduling
	FundingStoreKeyPrefixRounds         byte = 5
	FundingStoreKeyPrefixRoundsExpiring byte = 6
	// Holds the last tick whose expiring rounds were swept
	FundingStoreKeyPrefixSweptIndex byte = 9

	// Holds the completed projects per initiator
	FundingStoreKeyPrefixCompletedProjects byte = 7
	// Holds the milestones currently in dispute per project
	FundingStoreKeyPrefixProjectsInDispute byte = 8
)
