package funding

import (
	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/model/deposits"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/iotaledger/hive.go/marshalutil"
)

func (m *Manager) validateProposal(req *ProposalRequest) (uint64, error) {
	if req.Beneficiary == "" {
		return 0, errors.WithMessage(ErrInvalidParam, "beneficiary missing")
	}
	if len(req.Milestones) == 0 {
		return 0, errors.WithMessage(ErrMilestonePercentagesInvalid, "no milestones given")
	}
	if len(req.Milestones) > m.opts.maxMilestonesPerProject {
		return 0, ErrTooManyMilestones
	}
	if len(req.Contributions) > m.opts.maxContributorsPerProject {
		return 0, ErrTooManyContributions
	}
	if len(req.Jury) > m.opts.maxJuryMembers {
		return 0, ErrTooManyJuryMembers
	}
	if req.FundingType.Kind > FundingKindCrowdfund {
		return 0, errors.WithMessagef(ErrInvalidParam, "unknown funding type %d", req.FundingType.Kind)
	}

	var percentSum uint64
	for _, milestone := range req.Milestones {
		if milestone.PercentageToUnlock > 100 {
			return 0, errors.WithMessagef(ErrMilestonePercentagesInvalid, "milestone unlocks %d%%", milestone.PercentageToUnlock)
		}
		percentSum += uint64(milestone.PercentageToUnlock)
	}
	if percentSum != 100 {
		return 0, errors.WithMessagef(ErrMilestonePercentagesInvalid, "sum is %d%%", percentSum)
	}

	var raised uint64
	for _, contribution := range req.Contributions {
		if raised+contribution.Value < raised {
			return 0, errors.WithMessage(ErrInvalidParam, "contributions overflow")
		}
		raised += contribution.Value
	}
	if raised == 0 {
		return 0, ErrNoContributions
	}

	return raised, nil
}

// fundProject moves the contributions into the escrow of the project.
// Briefs and crowdfunds were reserved by their originator, proposals and grants are paid from free balances.
func (m *Manager) fundProject(projectKey ProjectKey, req *ProposalRequest) error {
	amounts := make(map[ledger.AccountID]uint64, len(req.Contributions))
	for who, contribution := range req.Contributions {
		if contribution.Value > 0 {
			amounts[who] = contribution.Value
		}
	}

	escrow := ProjectAccountID(projectKey)
	switch req.FundingType.Kind {
	case FundingKindBrief, FundingKindCrowdfund:
		return m.currencies.TransferReserved(req.CurrencyID, escrow, amounts)
	default:
		return m.currencies.TransferFromMany(req.CurrencyID, escrow, amounts)
	}
}

// ConvertToProposal creates a project. It is the single entry point of all originators.
// A storage deposit is taken from the beneficiary, who becomes the initiator of the project.
func (m *Manager) ConvertToProposal(req *ProposalRequest) (ProjectKey, error) {
	var projectKey ProjectKey

	err := m.apply(func(events *pendingEvents) error {
		raised, err := m.validateProposal(req)
		if err != nil {
			return err
		}

		if projectKey, err = m.projectCount(); err != nil {
			return err
		}
		if projectKey == ProjectKey(^uint32(0)) {
			return errors.WithMessage(ErrInvalidParam, "project keys exhausted")
		}

		depositID, err := m.depositHandler.TakeDeposit(req.Beneficiary, deposits.StorageItemProject, req.CurrencyID)
		if err != nil {
			return errors.Wrapf(err, "failed to take deposit from %s", req.Beneficiary)
		}

		if err := m.fundProject(projectKey, req); err != nil {
			if returnErr := m.depositHandler.ReturnDeposit(depositID); returnErr != nil {
				m.LogErrorf("failed to return deposit %d after failed funding: %s", depositID, returnErr)
			}
			return errors.WithMessagef(ErrProjectFundingFailed, "%s", err)
		}

		now := m.now()
		project := &Project{
			Key:           projectKey,
			AgreementHash: req.AgreementHash,
			Milestones:    make(map[MilestoneKey]*Milestone, len(req.Milestones)),
			Contributions: make(map[ledger.AccountID]*Contribution, len(req.Contributions)),
			CurrencyID:    req.CurrencyID,
			RaisedFunds:   raised,
			Initiator:     req.Beneficiary,
			CreatedOn:     now,
			FundingType:   req.FundingType,
			DepositID:     depositID,
			Jury:          append([]ledger.AccountID{}, req.Jury...),
		}
		for i, proposed := range req.Milestones {
			milestoneKey := MilestoneKey(i)
			project.Milestones[milestoneKey] = &Milestone{
				ProjectKey:         projectKey,
				MilestoneKey:       milestoneKey,
				PercentageToUnlock: proposed.PercentageToUnlock,
			}
		}
		for who, contribution := range req.Contributions {
			if contribution.Value == 0 {
				continue
			}
			project.Contributions[who] = &Contribution{Value: contribution.Value, Timestamp: contribution.Timestamp}
		}

		batch := m.newBatch()
		batch.storeProject(project)
		batch.set(keyForProjectCount(), marshalutil.New(4).WriteUint32(uint32(projectKey)+1).Bytes())
		if err := batch.commit(); err != nil {
			m.LogErrorf("project %d was funded but could not be stored: %s", projectKey, err)
			return err
		}

		m.LogInfof("created project %d (%s) raising %s %s for %s", projectKey, req.FundingType, humanize.Comma(int64(raised)), req.CurrencyID, req.Beneficiary)

		events.add(m.Events.ProjectCreated, &Notification{
			Kind:       NotificationProjectCreated,
			ProjectKey: projectKey,
			Account:    req.Beneficiary,
			Amount:     raised,
			CurrencyID: req.CurrencyID,
			Tick:       now,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}

	return projectKey, nil
}
