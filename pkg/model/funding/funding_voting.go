package funding

import (
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/model/ledger"
)

func saturatingAdd(a uint64, b uint64) uint64 {
	if a+b < a {
		return ^uint64(0)
	}
	return a + b
}

// checkMilestoneNotInDispute fails if any of the given milestones is currently in dispute.
func (m *Manager) checkMilestoneNotInDispute(projectKey ProjectKey, milestoneKeys ...MilestoneKey) error {
	inDispute, err := m.milestonesInDispute(projectKey)
	if err != nil {
		return err
	}
	for _, milestoneKey := range milestoneKeys {
		if inDispute.Test(uint(milestoneKey)) {
			return errors.WithMessagef(ErrMilestonesAlreadyInDispute, "milestone %d of project %d", milestoneKey, projectKey)
		}
	}
	return nil
}

// SubmitMilestone opens a voting round on a milestone. Only the initiator of the project can submit milestones.
// The tally and the individual votes of the milestone are reset.
func (m *Manager) SubmitMilestone(who ledger.AccountID, projectKey ProjectKey, milestoneKey MilestoneKey) error {
	return m.apply(func(events *pendingEvents) error {
		project, err := m.loadProject(projectKey)
		if err != nil {
			return err
		}
		if project.Cancelled {
			return ErrProjectWithdrawn
		}
		if project.Initiator != who {
			return ErrUserIsNotInitiator
		}

		milestone, has := project.Milestones[milestoneKey]
		if !has {
			return errors.WithMessagef(ErrMilestoneDoesNotExist, "milestone %d of project %d", milestoneKey, projectKey)
		}
		if milestone.IsApproved {
			return ErrMilestoneAlreadyApproved
		}
		if milestone.TransferStatus != nil {
			return ErrMilestoneAlreadyTransferred
		}
		if err := m.checkMilestoneNotInDispute(projectKey, milestoneKey); err != nil {
			return err
		}

		round := &RoundKey{ProjectKey: projectKey, Kind: RoundKindVoting, MilestoneKey: milestoneKey}
		open, err := m.roundIsOpen(round)
		if err != nil {
			return err
		}
		if open {
			return ErrRoundStarted
		}

		batch := m.newBatch()
		expiry, err := m.openRound(batch, round, m.opts.milestoneVotingWindow)
		if err != nil {
			batch.mutations.Cancel()
			return err
		}
		batch.storeVote(keyForMilestoneVote(projectKey, milestoneKey), &Vote{})
		if err := m.clearIndividualVotes(batch, projectKey, RoundKindVoting, milestoneKey); err != nil {
			batch.mutations.Cancel()
			return err
		}
		if err := batch.commit(); err != nil {
			return err
		}

		m.LogDebugf("milestone %d of project %d submitted, voting round expires at tick %d", milestoneKey, projectKey, expiry)

		events.add(m.Events.MilestoneSubmitted, &Notification{
			Kind:          NotificationMilestoneSubmitted,
			ProjectKey:    projectKey,
			MilestoneKeys: []MilestoneKey{milestoneKey},
			Account:       who,
			CurrencyID:    project.CurrencyID,
			Tick:          m.now(),
		})
		return nil
	})
}

// VoteOnMilestone adds the contribution of the voter to the tally of an open milestone round.
// Each contributor votes at most once per round. The round is closed as soon as the yay or nay
// side reaches the share of the raised funds required for a vote to pass.
func (m *Manager) VoteOnMilestone(who ledger.AccountID, projectKey ProjectKey, milestoneKey MilestoneKey, approve bool) error {
	return m.apply(func(events *pendingEvents) error {
		project, err := m.loadProject(projectKey)
		if err != nil {
			return err
		}
		milestone, has := project.Milestones[milestoneKey]
		if !has {
			return errors.WithMessagef(ErrMilestoneDoesNotExist, "milestone %d of project %d", milestoneKey, projectKey)
		}
		if err := m.checkMilestoneNotInDispute(projectKey, milestoneKey); err != nil {
			return err
		}

		round := &RoundKey{ProjectKey: projectKey, Kind: RoundKindVoting, MilestoneKey: milestoneKey}
		open, err := m.roundIsOpen(round)
		if err != nil {
			return err
		}
		if !open {
			return ErrVotingRoundNotStarted
		}

		if !project.IsContributor(who) {
			return ErrOnlyContributorsCanVote
		}
		voted, err := m.hasIndividualVote(projectKey, RoundKindVoting, milestoneKey, who)
		if err != nil {
			return err
		}
		if voted {
			return ErrVotesAreImmutable
		}

		voteKey := keyForMilestoneVote(projectKey, milestoneKey)
		vote, err := m.loadVote(voteKey)
		if err != nil {
			return err
		}
		if vote == nil {
			return ErrVotingRoundNotStarted
		}

		contribution := project.Contributions[who].Value
		if approve {
			vote.Yay = saturatingAdd(vote.Yay, contribution)
		} else {
			vote.Nay = saturatingAdd(vote.Nay, contribution)
		}

		now := m.now()
		threshold := m.opts.percentRequiredForVoteToPass.MulFloor(project.RaisedFunds)

		voteEvent := &Notification{
			Kind:          NotificationVoteSubmitted,
			ProjectKey:    projectKey,
			MilestoneKeys: []MilestoneKey{milestoneKey},
			Account:       who,
			Amount:        contribution,
			CurrencyID:    project.CurrencyID,
			Approve:       approve,
			Tick:          now,
		}

		batch := m.newBatch()
		switch {
		case vote.Yay >= threshold:
			milestone.IsApproved = true
			vote.IsApproved = true
			batch.storeProject(project)
			batch.storeVote(voteKey, vote)
			m.closeRound(batch, round)
			if err := m.clearIndividualVotes(batch, projectKey, RoundKindVoting, milestoneKey); err != nil {
				batch.mutations.Cancel()
				return err
			}
			if err := batch.commit(); err != nil {
				return err
			}

			m.LogInfof("milestone %d of project %d approved with %d of %d", milestoneKey, projectKey, vote.Yay, project.RaisedFunds)

			events.add(m.Events.VoteSubmitted, voteEvent)
			events.add(m.Events.MilestoneApproved, &Notification{
				Kind:          NotificationMilestoneApproved,
				ProjectKey:    projectKey,
				MilestoneKeys: []MilestoneKey{milestoneKey},
				Account:       who,
				CurrencyID:    project.CurrencyID,
				Tick:          now,
			})

		case vote.Nay >= threshold:
			batch.storeVote(voteKey, vote)
			m.closeRound(batch, round)
			if err := m.clearIndividualVotes(batch, projectKey, RoundKindVoting, milestoneKey); err != nil {
				batch.mutations.Cancel()
				return err
			}
			if err := batch.commit(); err != nil {
				return err
			}

			m.LogInfof("milestone %d of project %d rejected with %d of %d", milestoneKey, projectKey, vote.Nay, project.RaisedFunds)

			events.add(m.Events.VoteSubmitted, voteEvent)
			events.add(m.Events.MilestoneRejected, &Notification{
				Kind:          NotificationMilestoneRejected,
				ProjectKey:    projectKey,
				MilestoneKeys: []MilestoneKey{milestoneKey},
				CurrencyID:    project.CurrencyID,
				Tick:          now,
			})

		default:
			batch.storeVote(voteKey, vote)
			batch.storeIndividualVote(projectKey, RoundKindVoting, milestoneKey, who, approve)
			if err := batch.commit(); err != nil {
				return err
			}
			events.add(m.Events.VoteSubmitted, voteEvent)
		}

		return nil
	})
}
