package disputes

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/model/deposits"
	"github.com/gohornet/fundgov/pkg/model/funding"
	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/iotaledger/hive.go/marshalutil"
)

// DisputeID identifies a dispute.
type DisputeID uint64

// Dispute is a set of milestones of a project a jury decides upon.
type Dispute struct {
	ID            DisputeID                 `json:"id"`
	ProjectKey    funding.ProjectKey        `json:"projectKey"`
	MilestoneKeys []funding.MilestoneKey    `json:"milestoneKeys"`
	RaisedBy      ledger.AccountID          `json:"raisedBy"`
	Jury          []ledger.AccountID        `json:"jury"`
	Votes         map[ledger.AccountID]bool `json:"votes"`
	Expiry        tick.Index                `json:"expiry"`
	DepositID     deposits.DepositID        `json:"depositId"`
}

// IsJuror tells whether the account is a member of the jury.
func (d *Dispute) IsJuror(who ledger.AccountID) bool {
	for _, juror := range d.Jury {
		if juror == who {
			return true
		}
	}
	return false
}

// Tally returns the weight of the votes in favour of the raiser and against.
func (d *Dispute) Tally() (inFavour int, against int) {
	for _, vote := range d.Votes {
		if vote {
			inFavour++
			continue
		}
		against++
	}
	return inFavour, against
}

// Result is the outcome of the dispute given the votes cast so far.
// The dispute succeeds if more jurors voted in favour of the raiser than against.
func (d *Dispute) Result() funding.DisputeResult {
	inFavour, against := d.Tally()
	if inFavour > against {
		return funding.DisputeResultSuccess
	}
	return funding.DisputeResultFailure
}

func writeAccount(ms *marshalutil.MarshalUtil, who ledger.AccountID) {
	ms.WriteUint16(uint16(len(who)))
	ms.WriteBytes([]byte(who))
}

func readAccount(ms *marshalutil.MarshalUtil) (ledger.AccountID, error) {
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

func (d *Dispute) valueBytes() []byte {
	ms := marshalutil.New()
	ms.WriteUint32(uint32(d.ProjectKey))
	writeAccount(ms, d.RaisedBy)
	ms.WriteUint32(uint32(d.Expiry))
	ms.WriteUint64(uint64(d.DepositID))

	ms.WriteUint16(uint16(len(d.MilestoneKeys)))
	for _, milestoneKey := range d.MilestoneKeys {
		ms.WriteUint32(uint32(milestoneKey))
	}

	ms.WriteUint16(uint16(len(d.Jury)))
	for _, juror := range d.Jury {
		writeAccount(ms, juror)
	}

	voters := make([]ledger.AccountID, 0, len(d.Votes))
	for who := range d.Votes {
		voters = append(voters, who)
	}
	sort.Slice(voters, func(i, j int) bool { return voters[i] < voters[j] })

	ms.WriteUint16(uint16(len(voters)))
	for _, who := range voters {
		writeAccount(ms, who)
		ms.WriteBool(d.Votes[who])
	}

	return ms.Bytes()
}

func disputeFromBytes(id DisputeID, data []byte) (*Dispute, error) {
	ms := marshalutil.New(data)
	d := &Dispute{ID: id, Votes: make(map[ledger.AccountID]bool)}

	projectKey, err := ms.ReadUint32()
	if err != nil {
		return nil, err
	}
	d.ProjectKey = funding.ProjectKey(projectKey)

	if d.RaisedBy, err = readAccount(ms); err != nil {
		return nil, err
	}

	expiry, err := ms.ReadUint32()
	if err != nil {
		return nil, err
	}
	d.Expiry = tick.Index(expiry)

	depositID, err := ms.ReadUint64()
	if err != nil {
		return nil, err
	}
	d.DepositID = deposits.DepositID(depositID)

	milestoneCount, err := ms.ReadUint16()
	if err != nil {
		return nil, err
	}
	for i := uint16(0); i < milestoneCount; i++ {
		milestoneKey, err := ms.ReadUint32()
		if err != nil {
			return nil, err
		}
		d.MilestoneKeys = append(d.MilestoneKeys, funding.MilestoneKey(milestoneKey))
	}

	juryCount, err := ms.ReadUint16()
	if err != nil {
		return nil, err
	}
	for i := uint16(0); i < juryCount; i++ {
		juror, err := readAccount(ms)
		if err != nil {
			return nil, err
		}
		d.Jury = append(d.Jury, juror)
	}

	voteCount, err := ms.ReadUint16()
	if err != nil {
		return nil, err
	}
	for i := uint16(0); i < voteCount; i++ {
		who, err := readAccount(ms)
		if err != nil {
			return nil, err
		}
		vote, err := ms.ReadBool()
		if err != nil {
			return nil, err
		}
		d.Votes[who] = vote
	}

	if ms.ReadOffset() != len(data) {
		return nil, errors.Errorf("invalid dispute length: %d bytes left", len(data)-ms.ReadOffset())
	}

	return d, nil
}
