package funding

import (
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/model/deposits"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/iotaledger/hive.go/marshalutil"
)

func writeAccountID(ms *marshalutil.MarshalUtil, who ledger.AccountID) {
	ms.WriteUint16(uint16(len(who)))
	ms.WriteBytes([]byte(who))
}

func readAccountID(ms *marshalutil.MarshalUtil) (ledger.AccountID, error) {
	length, err := ms.ReadUint16()
	if err != nil {
		return "", err
	}
	who, err := ms.ReadBytes(int(length))
	if err != nil {
		return "", err
	}
	return ledger.AccountID(who), nil
}

// Bytes serializes the project. Milestones and contributions are written in key order.
func (p *Project) Bytes() []byte {
	ms := marshalutil.New()
	ms.WriteUint32(uint32(p.Key))
	ms.WriteBytes(p.AgreementHash[:])
	ms.WriteUint32(uint32(p.CurrencyID))
	ms.WriteUint64(p.WithdrawnFunds)
	ms.WriteUint64(p.RaisedFunds)
	ms.WriteUint64(p.RefundedFunds)
	writeAccountID(ms, p.Initiator)
	ms.WriteUint32(uint32(p.CreatedOn))
	ms.WriteBool(p.Cancelled)
	ms.WriteByte(byte(p.FundingType.Kind))
	ms.WriteByte(byte(p.FundingType.Treasury))
	ms.WriteUint64(uint64(p.DepositID))

	ms.WriteUint32(uint32(len(p.Milestones)))
	for _, key := range p.SortedMilestoneKeys() {
		milestone := p.Milestones[key]
		ms.WriteUint32(uint32(milestone.MilestoneKey))
		ms.WriteByte(byte(milestone.PercentageToUnlock))
		ms.WriteBool(milestone.IsApproved)
		ms.WriteBool(milestone.CanRefund)
		if milestone.TransferStatus == nil {
			ms.WriteByte(0)
			continue
		}
		ms.WriteByte(byte(milestone.TransferStatus.Kind))
		ms.WriteUint32(uint32(milestone.TransferStatus.At))
	}

	ms.WriteUint32(uint32(len(p.Contributions)))
	for _, who := range p.SortedContributors() {
		contribution := p.Contributions[who]
		writeAccountID(ms, who)
		ms.WriteUint64(contribution.Value)
		ms.WriteUint32(uint32(contribution.Timestamp))
	}

	ms.WriteUint32(uint32(len(p.Jury)))
	for _, juror := range p.Jury {
		writeAccountID(ms, juror)
	}

	return ms.Bytes()
}

// ProjectFromBytes parses a project serialized with Bytes.
func ProjectFromBytes(data []byte) (*Project, error) {
	ms := marshalutil.New(data)
	p := &Project{
		Milestones:    make(map[MilestoneKey]*Milestone),
		Contributions: make(map[ledger.AccountID]*Contribution),
	}

	key, err := ms.ReadUint32()
	if err != nil {
		return nil, err
	}
	p.Key = ProjectKey(key)

	hash, err := ms.ReadBytes(32)
	if err != nil {
		return nil, err
	}
	copy(p.AgreementHash[:], hash)

	currency, err := ms.ReadUint32()
	if err != nil {
		return nil, err
	}
	p.CurrencyID = ledger.CurrencyID(currency)

	if p.WithdrawnFunds, err = ms.ReadUint64(); err != nil {
		return nil, err
	}
	if p.RaisedFunds, err = ms.ReadUint64(); err != nil {
		return nil, err
	}
	if p.RefundedFunds, err = ms.ReadUint64(); err != nil {
		return nil, err
	}
	if p.Initiator, err = readAccountID(ms); err != nil {
		return nil, err
	}

	createdOn, err := ms.ReadUint32()
	if err != nil {
		return nil, err
	}
	p.CreatedOn = tick.Index(createdOn)

	if p.Cancelled, err = ms.ReadBool(); err != nil {
		return nil, err
	}

	kind, err := ms.ReadByte()
	if err != nil {
		return nil, err
	}
	treasury, err := ms.ReadByte()
	if err != nil {
		return nil, err
	}
	p.FundingType = FundingType{Kind: FundingKind(kind), Treasury: TreasuryOrigin(treasury)}

	depositID, err := ms.ReadUint64()
	if err != nil {
		return nil, err
	}
	p.DepositID = deposits.DepositID(depositID)

	milestoneCount, err := ms.ReadUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < milestoneCount; i++ {
		milestone := &Milestone{ProjectKey: p.Key}

		milestoneKey, err := ms.ReadUint32()
		if err != nil {
			return nil, err
		}
		milestone.MilestoneKey = MilestoneKey(milestoneKey)

		percentage, err := ms.ReadByte()
		if err != nil {
			return nil, err
		}
		milestone.PercentageToUnlock = Percent(percentage)

		if milestone.IsApproved, err = ms.ReadBool(); err != nil {
			return nil, err
		}
		if milestone.CanRefund, err = ms.ReadBool(); err != nil {
			return nil, err
		}

		transferKind, err := ms.ReadByte()
		if err != nil {
			return nil, err
		}
		if transferKind != 0 {
			at, err := ms.ReadUint32()
			if err != nil {
				return nil, err
			}
			milestone.TransferStatus = &TransferStatus{Kind: TransferKind(transferKind), At: tick.Index(at)}
		}

		p.Milestones[milestone.MilestoneKey] = milestone
	}

	contributionCount, err := ms.ReadUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < contributionCount; i++ {
		who, err := readAccountID(ms)
		if err != nil {
			return nil, err
		}
		value, err := ms.ReadUint64()
		if err != nil {
			return nil, err
		}
		timestamp, err := ms.ReadUint32()
		if err != nil {
			return nil, err
		}
		p.Contributions[who] = &Contribution{Value: value, Timestamp: tick.Index(timestamp)}
	}

	juryCount, err := ms.ReadUint32()
	if err != nil {
		return nil, err
	}
	for i := uint32(0); i < juryCount; i++ {
		juror, err := readAccountID(ms)
		if err != nil {
			return nil, err
		}
		p.Jury = append(p.Jury, juror)
	}

	if ms.ReadOffset() != len(data) {
		return nil, errors.Errorf("invalid project length: %d bytes left", len(data)-ms.ReadOffset())
	}

	return p, nil
}

func (v *Vote) Bytes() []byte {
	ms := marshalutil.New(17)
	ms.WriteUint64(v.Yay)
	ms.WriteUint64(v.Nay)
	ms.WriteBool(v.IsApproved)
	return ms.Bytes()
}

func VoteFromBytes(data []byte) (*Vote, error) {
	ms := marshalutil.New(data)
	v := &Vote{}
	var err error
	if v.Yay, err = ms.ReadUint64(); err != nil {
		return nil, err
	}
	if v.Nay, err = ms.ReadUint64(); err != nil {
		return nil, err
	}
	if v.IsApproved, err = ms.ReadBool(); err != nil {
		return nil, err
	}
	return v, nil
}
