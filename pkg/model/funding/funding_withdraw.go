package funding

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/model/ledger"
)

// unsettledAmount is the value of the given share of milestones. When the milestones settle the project,
// the exact remainder of the escrow is used so no rounding dust is left behind.
func (p *Project) unsettledAmount(percent uint64, settles bool) uint64 {
	remaining := p.remaining()
	if settles {
		return remaining
	}
	amount := mulDiv(p.RaisedFunds, percent, 100)
	if amount > remaining {
		return remaining
	}
	return amount
}

// Withdraw pays out all approved milestones that were not paid out yet to the initiator, minus the protocol fee.
// The project is removed once all of its funds left the escrow.
func (m *Manager) Withdraw(who ledger.AccountID, projectKey ProjectKey) error {
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

		paying := make(map[MilestoneKey]struct{})
		var unlockedPercent uint64
		for key, milestone := range project.Milestones {
			if milestone.IsApproved && milestone.TransferStatus == nil {
				paying[key] = struct{}{}
				unlockedPercent += uint64(milestone.PercentageToUnlock)
			}
		}
		if unlockedPercent == 0 {
			return ErrNoAvailableFundsToWithdraw
		}

		settles := project.settledAfter(paying)
		withdrawable := project.unsettledAmount(unlockedPercent, settles)
		if withdrawable == 0 {
			return ErrNoAvailableFundsToWithdraw
		}
		fee := m.opts.imbueFee.MulFloor(withdrawable)

		var completed []ProjectKey
		if settles {
			if completed, err = m.completedProjects(project.Initiator); err != nil {
				return err
			}
			if len(completed) >= m.opts.maxProjectsPerAccount {
				return errors.WithMessagef(ErrTooManyProjects, "%s completed %d projects", project.Initiator, len(completed))
			}
		}

		if err := m.currencies.TransferMany(project.CurrencyID, ProjectAccountID(projectKey), []*ledger.Payout{
			{To: m.opts.feeAccount, Amount: fee},
			{To: project.Initiator, Amount: withdrawable - fee},
		}); err != nil {
			return errors.Wrapf(err, "failed to withdraw from project %d", projectKey)
		}

		now := m.now()
		for key := range paying {
			project.Milestones[key].TransferStatus = &TransferStatus{Kind: TransferKindWithdrawn, At: now}
		}
		project.WithdrawnFunds += withdrawable

		batch := m.newBatch()
		if settles {
			if err := m.deleteProject(batch, project); err != nil {
				batch.mutations.Cancel()
				return err
			}
			batch.set(keyForCompletedProjects(project.Initiator), projectKeysBytes(append(completed, projectKey)))
		} else {
			batch.storeProject(project)
		}
		if err := batch.commit(); err != nil {
			m.LogErrorf("funds of project %d were transferred but the project could not be updated: %s", projectKey, err)
			return err
		}

		if settles {
			m.returnDeposit(project)
			m.LogInfof("project %d completed", projectKey)
		}

		m.LogInfof("withdrew %s %s from project %d, fee %s", humanize.Comma(int64(withdrawable-fee)), project.CurrencyID, projectKey, humanize.Comma(int64(fee)))

		events.add(m.Events.ProjectFundsWithdrawn, &Notification{
			Kind:          NotificationProjectFundsWithdrawn,
			ProjectKey:    projectKey,
			MilestoneKeys: sortedMilestoneKeys(paying),
			Account:       who,
			Amount:        withdrawable - fee,
			CurrencyID:    project.CurrencyID,
			Tick:          now,
		})
		return nil
	})
}

// Refund pays the funds of all refundable milestones that were not paid out yet back to the contributors,
// minus the protocol fee. Refunds of treasury funded projects are sent to their treasury.
// The project is removed once all of its funds left the escrow.
func (m *Manager) Refund(who ledger.AccountID, projectKey ProjectKey) error {
	return m.apply(func(events *pendingEvents) error {
		project, err := m.loadProject(projectKey)
		if err != nil {
			return err
		}
		if !project.IsContributor(who) {
			return ErrOnlyContributorsCanInitiateRefund
		}

		refunding := make(map[MilestoneKey]struct{})
		var refundPercent uint64
		for key, milestone := range project.Milestones {
			if milestone.CanRefund && milestone.TransferStatus == nil {
				refunding[key] = struct{}{}
				refundPercent += uint64(milestone.PercentageToUnlock)
			}
		}
		if refundPercent == 0 {
			return ErrNoAvailableFundsToWithdraw
		}

		settles := project.settledAfter(refunding)
		total := project.unsettledAmount(refundPercent, settles)
		if total == 0 {
			return ErrNoAvailableFundsToWithdraw
		}
		fee := m.opts.imbueFee.MulFloor(total)
		escrow := ProjectAccountID(projectKey)

		payouts := []*ledger.Payout{{To: m.opts.feeAccount, Amount: fee}}
		if project.FundingType.IsTreasuryFunded() {
			if m.opts.externalRefundHandler == nil {
				return ErrNoRefundHandler
			}
			balance, err := m.currencies.FreeBalance(project.CurrencyID, escrow)
			if err != nil {
				return err
			}
			if balance < total {
				return errors.WithMessagef(ErrNoAvailableFundsToWithdraw, "escrow of project %d holds %d, %d required", projectKey, balance, total)
			}
			if err := m.opts.externalRefundHandler.SendRefundToTreasury(escrow, total-fee, project.CurrencyID, project.FundingType); err != nil {
				return errors.Wrapf(err, "failed to refund project %d to treasury", projectKey)
			}
		} else {
			payouts = append(payouts, m.contributorShares(project, total-fee)...)
		}

		if err := m.currencies.TransferMany(project.CurrencyID, escrow, payouts); err != nil {
			return errors.Wrapf(err, "failed to refund project %d", projectKey)
		}

		now := m.now()
		for key := range refunding {
			project.Milestones[key].TransferStatus = &TransferStatus{Kind: TransferKindRefunded, At: now}
		}
		project.RefundedFunds += total

		batch := m.newBatch()
		if settles {
			if err := m.deleteProject(batch, project); err != nil {
				batch.mutations.Cancel()
				return err
			}
		} else {
			batch.storeProject(project)
		}
		if err := batch.commit(); err != nil {
			m.LogErrorf("funds of project %d were refunded but the project could not be updated: %s", projectKey, err)
			return err
		}

		if settles {
			m.returnDeposit(project)
		}

		m.LogInfof("refunded %s %s of project %d, fee %s", humanize.Comma(int64(total-fee)), project.CurrencyID, projectKey, humanize.Comma(int64(fee)))

		events.add(m.Events.ProjectRefunded, &Notification{
			Kind:          NotificationProjectRefunded,
			ProjectKey:    projectKey,
			MilestoneKeys: sortedMilestoneKeys(refunding),
			Account:       who,
			Amount:        total,
			CurrencyID:    project.CurrencyID,
			Tick:          now,
		})
		return nil
	})
}
