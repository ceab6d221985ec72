package funding

import (
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/model/ledger"
)

// RaiseDispute hands the given milestones of a project over to the dispute subsystem.
// While the dispute is open the milestones cannot be submitted or voted on. Other milestones of the project are not affected.
func (m *Manager) RaiseDispute(who ledger.AccountID, projectKey ProjectKey, milestoneKeys []MilestoneKey) error {
	return m.apply(func(events *pendingEvents) error {
		if len(milestoneKeys) == 0 {
			return errors.WithMessage(ErrInvalidParam, "no milestones given")
		}
		if len(milestoneKeys) > m.opts.maxMilestonesPerProject {
			return ErrTooManyMilestones
		}

		project, err := m.loadProject(projectKey)
		if err != nil {
			return err
		}
		for _, milestoneKey := range milestoneKeys {
			if _, has := project.Milestones[milestoneKey]; !has {
				return errors.WithMessagef(ErrMilestoneDoesNotExist, "milestone %d of project %d", milestoneKey, projectKey)
			}
		}
		if !project.IsContributor(who) {
			return ErrOnlyContributorsCanRaiseDispute
		}

		inDispute, err := m.milestonesInDispute(projectKey)
		if err != nil {
			return err
		}
		for _, milestoneKey := range milestoneKeys {
			if inDispute.Test(uint(milestoneKey)) {
				return errors.WithMessagef(ErrMilestonesAlreadyInDispute, "milestone %d of project %d", milestoneKey, projectKey)
			}
			if project.Milestones[milestoneKey].IsApproved {
				return ErrCannotRaiseDisputeOnApprovedMilestone
			}
		}

		if m.opts.disputeRaiser == nil {
			return ErrNoDisputeRaiser
		}
		if err := m.opts.disputeRaiser.RaiseDispute(projectKey, who, project.Jury, milestoneKeys); err != nil {
			return errors.Wrapf(err, "failed to raise dispute on project %d", projectKey)
		}

		for _, milestoneKey := range milestoneKeys {
			inDispute.Set(uint(milestoneKey))
		}

		batch := m.newBatch()
		batch.storeMilestonesInDispute(projectKey, inDispute)
		if err := batch.commit(); err != nil {
			m.LogErrorf("dispute on project %d was raised but could not be stored: %s", projectKey, err)
			return err
		}

		m.LogInfof("dispute raised by %s on milestones %v of project %d", who, milestoneKeys, projectKey)

		events.add(m.Events.DisputeRaised, &Notification{
			Kind:          NotificationDisputeRaised,
			ProjectKey:    projectKey,
			MilestoneKeys: milestoneKeys,
			Account:       who,
			CurrencyID:    project.CurrencyID,
			Tick:          m.now(),
		})
		return nil
	})
}

// OnDisputeComplete is called by the dispute subsystem once a dispute ended.
// The milestones are released. On success they become refundable unless their funds already left the project.
func (m *Manager) OnDisputeComplete(projectKey ProjectKey, milestoneKeys []MilestoneKey, result DisputeResult) error {
	return m.apply(func(events *pendingEvents) error {
		project, err := m.loadProject(projectKey)
		if err != nil {
			return err
		}

		inDispute, err := m.milestonesInDispute(projectKey)
		if err != nil {
			return err
		}
		for _, milestoneKey := range milestoneKeys {
			inDispute.Clear(uint(milestoneKey))
		}

		if result == DisputeResultSuccess {
			for _, milestoneKey := range milestoneKeys {
				milestone, has := project.Milestones[milestoneKey]
				if !has || milestone.TransferStatus != nil {
					continue
				}
				milestone.CanRefund = true
			}
		}

		batch := m.newBatch()
		batch.storeMilestonesInDispute(projectKey, inDispute)
		if result == DisputeResultSuccess {
			batch.storeProject(project)
		}
		if err := batch.commit(); err != nil {
			return err
		}

		m.LogInfof("dispute on milestones %v of project %d completed: %s", milestoneKeys, projectKey, result)

		events.add(m.Events.DisputeCompleted, &Notification{
			Kind:          NotificationDisputeCompleted,
			ProjectKey:    projectKey,
			MilestoneKeys: milestoneKeys,
			CurrencyID:    project.CurrencyID,
			Result:        result.String(),
			Tick:          m.now(),
		})
		return nil
	})
}
