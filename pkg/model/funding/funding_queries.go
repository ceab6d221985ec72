package funding

import (
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/iotaledger/hive.go/kvstore"
)

// Project returns the project with the given key.
func (m *Manager) Project(projectKey ProjectKey) (*Project, error) {
	m.RLock()
	defer m.RUnlock()
	return m.loadProject(projectKey)
}

// Projects returns all stored projects in key order.
func (m *Manager) Projects() ([]*Project, error) {
	m.RLock()
	defer m.RUnlock()

	var projects []*Project
	var innerErr error
	if err := m.fundingStore.Iterate([]byte{FundingStoreKeyPrefixProjects}, func(_ kvstore.Key, value kvstore.Value) bool {
		project, err := ProjectFromBytes(value)
		if err != nil {
			innerErr = err
			return false
		}
		projects = append(projects, project)
		return true
	}); err != nil {
		return nil, err
	}

	if innerErr != nil {
		return nil, innerErr
	}

	sortProjects(projects)
	return projects, nil
}

// ProjectCount returns the key the next project will get.
func (m *Manager) ProjectCount() (ProjectKey, error) {
	m.RLock()
	defer m.RUnlock()
	return m.projectCount()
}

// MilestoneVote returns the tally of the last round of a milestone.
func (m *Manager) MilestoneVote(projectKey ProjectKey, milestoneKey MilestoneKey) (*Vote, error) {
	m.RLock()
	defer m.RUnlock()

	vote, err := m.loadVote(keyForMilestoneVote(projectKey, milestoneKey))
	if err != nil {
		return nil, err
	}
	if vote == nil {
		return nil, ErrVotingRoundNotStarted
	}
	return vote, nil
}

// NoConfidenceVote returns the tally of the vote of no confidence of a project.
func (m *Manager) NoConfidenceVote(projectKey ProjectKey) (*Vote, error) {
	m.RLock()
	defer m.RUnlock()

	vote, err := m.loadVote(keyForNoConfidenceVote(projectKey))
	if err != nil {
		return nil, err
	}
	if vote == nil {
		return nil, ErrNoActiveRound
	}
	return vote, nil
}

// CompletedProjects returns the keys of the projects the initiator completed.
func (m *Manager) CompletedProjects(initiator ledger.AccountID) ([]ProjectKey, error) {
	m.RLock()
	defer m.RUnlock()
	return m.completedProjects(initiator)
}

// MilestonesInDispute returns the milestones of a project that are currently in dispute.
func (m *Manager) MilestonesInDispute(projectKey ProjectKey) ([]MilestoneKey, error) {
	m.RLock()
	defer m.RUnlock()

	inDispute, err := m.milestonesInDispute(projectKey)
	if err != nil {
		return nil, err
	}

	keys := make([]MilestoneKey, 0, inDispute.Count())
	for i, has := inDispute.NextSet(0); has; i, has = inDispute.NextSet(i + 1) {
		keys = append(keys, MilestoneKey(i))
	}
	return keys, nil
}
