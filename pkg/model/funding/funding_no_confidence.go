package funding

import (
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/common"
	"github.com/gohornet/fundgov/pkg/model/ledger"
)

// RaiseNoConfidenceRound starts the vote of no confidence of a project.
// The contribution of the caller is counted as the first nay vote.
func (m *Manager) RaiseNoConfidenceRound(who ledger.AccountID, projectKey ProjectKey) error {
	return m.apply(func(events *pendingEvents) error {
		project, err := m.loadProject(projectKey)
		if err != nil {
			return err
		}
		if !project.IsContributor(who) {
			return ErrOnlyContributorsCanRaiseRound
		}

		voteKey := keyForNoConfidenceVote(projectKey)
		existing, err := m.loadVote(voteKey)
		if err != nil {
			return err
		}
		if existing != nil {
			return ErrRoundStarted
		}

		batch := m.newBatch()
		expiry, err := m.openRound(batch, &RoundKey{ProjectKey: projectKey, Kind: RoundKindNoConfidence}, m.opts.noConfidenceTimeLimit)
		if err != nil {
			batch.mutations.Cancel()
			return err
		}

		contribution := project.Contributions[who].Value
		batch.storeVote(voteKey, &Vote{Nay: contribution})
		batch.storeIndividualVote(projectKey, RoundKindNoConfidence, 0, who, false)
		if err := batch.commit(); err != nil {
			return err
		}

		m.LogInfof("vote of no confidence raised on project %d by %s, scheduled until tick %d", projectKey, who, expiry)

		events.add(m.Events.NoConfidenceRoundCreated, &Notification{
			Kind:       NotificationNoConfidenceRoundCreated,
			ProjectKey: projectKey,
			Account:    who,
			Amount:     contribution,
			CurrencyID: project.CurrencyID,
			Tick:       m.now(),
		})
		return nil
	})
}

// VoteOnNoConfidenceRound adds the contribution of the voter to the vote of no confidence.
// The round stays votable after its scheduled end. Once the nay side reaches the required share
// of the raised funds the project is finalised: the funds of all unsettled milestones are refunded
// and the project is removed.
func (m *Manager) VoteOnNoConfidenceRound(who ledger.AccountID, projectKey ProjectKey, isYay bool) error {
	return m.apply(func(events *pendingEvents) error {
		project, err := m.loadProject(projectKey)
		if err != nil {
			return err
		}
		if !project.IsContributor(who) {
			return ErrOnlyContributorsCanVote
		}

		voteKey := keyForNoConfidenceVote(projectKey)
		vote, err := m.loadVote(voteKey)
		if err != nil {
			return err
		}
		if vote == nil {
			return ErrNoActiveRound
		}

		voted, err := m.hasIndividualVote(projectKey, RoundKindNoConfidence, 0, who)
		if err != nil {
			return err
		}
		if voted {
			return ErrVotesAreImmutable
		}

		contribution := project.Contributions[who].Value
		if isYay {
			vote.Yay = saturatingAdd(vote.Yay, contribution)
		} else {
			vote.Nay = saturatingAdd(vote.Nay, contribution)
		}

		events.add(m.Events.NoConfidenceRoundVotedUpon, &Notification{
			Kind:       NotificationNoConfidenceRoundVotedUpon,
			ProjectKey: projectKey,
			Account:    who,
			Amount:     contribution,
			CurrencyID: project.CurrencyID,
			Approve:    isYay,
			Tick:       m.now(),
		})

		threshold := m.opts.percentRequiredForVoteNoConfidenceToPass.MulFloor(project.RaisedFunds)
		if vote.Nay < threshold {
			batch := m.newBatch()
			batch.storeVote(voteKey, vote)
			batch.storeIndividualVote(projectKey, RoundKindNoConfidence, 0, who, isYay)
			return batch.commit()
		}

		refunded, err := m.finaliseNoConfidence(project)
		if err != nil {
			return err
		}

		events.add(m.Events.NoConfidenceRoundFinalised, &Notification{
			Kind:       NotificationNoConfidenceRoundFinalised,
			ProjectKey: projectKey,
			Amount:     refunded,
			CurrencyID: project.CurrencyID,
			Tick:       m.now(),
		})
		return nil
	})
}

// finaliseNoConfidence settles the project and removes it.
// Milestones that are neither approved nor settled are refunded to the contributors, or to the treasury for
// treasury funded projects. Approved but not yet withdrawn milestones are paid out to the initiator.
// Open milestone rounds are closed together with the project.
func (m *Manager) finaliseNoConfidence(project *Project) (uint64, error) {
	var refundPercent, approvedPercent uint64
	for _, milestone := range project.Milestones {
		if milestone.TransferStatus != nil {
			continue
		}
		if milestone.IsApproved {
			approvedPercent += uint64(milestone.PercentageToUnlock)
			continue
		}
		refundPercent += uint64(milestone.PercentageToUnlock)
	}

	remaining := project.remaining()

	// approved funds are paid out like a withdrawal, the rest of the escrow is refunded
	var approved uint64
	if refundPercent == 0 {
		approved = remaining
	} else if approvedPercent > 0 {
		approved = mulDiv(project.RaisedFunds, approvedPercent, 100)
		if approved > remaining {
			approved = remaining
		}
	}
	refund := remaining - approved
	fee := m.opts.imbueFee.MulFloor(approved)

	escrow := ProjectAccountID(project.Key)
	payouts := []*ledger.Payout{
		{To: m.opts.feeAccount, Amount: fee},
		{To: project.Initiator, Amount: approved - fee},
	}

	if project.FundingType.IsTreasuryFunded() {
		if refund > 0 {
			if m.opts.externalRefundHandler == nil {
				return 0, ErrNoRefundHandler
			}
			balance, err := m.currencies.FreeBalance(project.CurrencyID, escrow)
			if err != nil {
				return 0, err
			}
			if balance < remaining {
				return 0, errors.WithMessagef(common.ErrInvariantViolated, "escrow of project %d holds %d, %d required", project.Key, balance, remaining)
			}
			if err := m.opts.externalRefundHandler.SendRefundToTreasury(escrow, refund, project.CurrencyID, project.FundingType); err != nil {
				return 0, errors.Wrapf(err, "failed to refund project %d to treasury", project.Key)
			}
		}
	} else {
		payouts = append(payouts, m.contributorShares(project, refund)...)
	}

	if err := m.currencies.TransferMany(project.CurrencyID, escrow, payouts); err != nil {
		return 0, errors.Wrapf(err, "failed to refund project %d", project.Key)
	}

	batch := m.newBatch()
	if err := m.deleteProject(batch, project); err != nil {
		batch.mutations.Cancel()
		return 0, err
	}
	if err := batch.commit(); err != nil {
		m.LogErrorf("project %d was refunded but could not be removed: %s", project.Key, err)
		return 0, err
	}

	m.returnDeposit(project)

	m.LogInfof("project %d ended by vote of no confidence, refunded %d, paid out %d to the initiator", project.Key, refund, approved)
	return refund, nil
}

// contributorShares splits amount among the contributors of the project proportionally to their contribution.
// The rounding remainder goes to the contributor listed first.
func (m *Manager) contributorShares(project *Project, amount uint64) []*ledger.Payout {
	if amount == 0 || project.RaisedFunds == 0 {
		return nil
	}

	contributors := project.SortedContributors()
	payouts := make([]*ledger.Payout, 0, len(contributors))

	var distributed uint64
	for _, who := range contributors {
		share := mulDiv(amount, project.Contributions[who].Value, project.RaisedFunds)
		distributed += share
		payouts = append(payouts, &ledger.Payout{To: who, Amount: share})
	}
	if len(payouts) > 0 {
		payouts[0].Amount += amount - distributed
	}
	return payouts
}

// returnDeposit returns the storage deposit of a removed project. A failure here cannot be undone
// and is logged.
func (m *Manager) returnDeposit(project *Project) {
	if err := m.depositHandler.ReturnDeposit(project.DepositID); err != nil {
		m.LogErrorf("%s: failed to return deposit %d of project %d: %s", common.ErrInvariantViolated, project.DepositID, project.Key, err)
	}
}
