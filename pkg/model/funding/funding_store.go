package funding

import (
	"github.com/bits-and-blooms/bitset"
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/model/ledger"
	"github.com/gohornet/fundgov/pkg/model/storage"
	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/marshalutil"
)

// Projects

func keyForProject(projectKey ProjectKey) []byte {
	m := marshalutil.New(5)
	m.WriteByte(FundingStoreKeyPrefixProjects) // 1 byte
	m.WriteUint32(uint32(projectKey))          // 4 bytes
	return m.Bytes()
}

func keyForProjectCount() []byte {
	return []byte{FundingStoreKeyPrefixProjectCount}
}

// Votes

func keyForMilestoneVote(projectKey ProjectKey, milestoneKey MilestoneKey) []byte {
	m := marshalutil.New(9)
	m.WriteByte(FundingStoreKeyPrefixMilestoneVotes) // 1 byte
	m.WriteUint32(uint32(projectKey))                // 4 bytes
	m.WriteUint32(uint32(milestoneKey))              // 4 bytes
	return m.Bytes()
}

func keyForNoConfidenceVote(projectKey ProjectKey) []byte {
	m := marshalutil.New(5)
	m.WriteByte(FundingStoreKeyPrefixNoConfidenceVotes) // 1 byte
	m.WriteUint32(uint32(projectKey))                   // 4 bytes
	return m.Bytes()
}

func keyPrefixIndividualVotesForProject(projectKey ProjectKey) []byte {
	m := marshalutil.New(5)
	m.WriteByte(FundingStoreKeyPrefixIndividualVotes) // 1 byte
	m.WriteUint32(uint32(projectKey))                 // 4 bytes
	return m.Bytes()
}

func keyPrefixIndividualVotes(projectKey ProjectKey, kind RoundKind, milestoneKey MilestoneKey) []byte {
	m := marshalutil.New(10)
	m.WriteBytes(keyPrefixIndividualVotesForProject(projectKey)) // 5 bytes
	m.WriteByte(byte(kind))                                      // 1 byte
	m.WriteUint32(uint32(milestoneKey))                          // 4 bytes
	return m.Bytes()
}

func keyForIndividualVote(projectKey ProjectKey, kind RoundKind, milestoneKey MilestoneKey, who ledger.AccountID) []byte {
	m := marshalutil.New(10 + len(who))
	m.WriteBytes(keyPrefixIndividualVotes(projectKey, kind, milestoneKey)) // 10 bytes
	m.WriteBytes([]byte(who))                                              // n bytes
	return m.Bytes()
}

// Rounds

// RoundKey identifies an open round. The milestone key is zero for no-confidence rounds.
type RoundKey struct {
	ProjectKey   ProjectKey   `json:"projectKey"`
	Kind         RoundKind    `json:"kind"`
	MilestoneKey MilestoneKey `json:"milestoneKey"`
}

func (r *RoundKey) writeTo(m *marshalutil.MarshalUtil) {
	m.WriteUint32(uint32(r.ProjectKey))   // 4 bytes
	m.WriteByte(byte(r.Kind))             // 1 byte
	m.WriteUint32(uint32(r.MilestoneKey)) // 4 bytes
}

func readRoundKey(m *marshalutil.MarshalUtil) (*RoundKey, error) {
	projectKey, err := m.ReadUint32()
	if err != nil {
		return nil, err
	}
	kind, err := m.ReadByte()
	if err != nil {
		return nil, err
	}
	milestoneKey, err := m.ReadUint32()
	if err != nil {
		return nil, err
	}
	return &RoundKey{ProjectKey: ProjectKey(projectKey), Kind: RoundKind(kind), MilestoneKey: MilestoneKey(milestoneKey)}, nil
}

func keyForRound(round *RoundKey) []byte {
	m := marshalutil.New(10)
	m.WriteByte(FundingStoreKeyPrefixRounds) // 1 byte
	round.writeTo(m)                         // 9 bytes
	return m.Bytes()
}

func keyPrefixRoundsForProject(projectKey ProjectKey) []byte {
	m := marshalutil.New(5)
	m.WriteByte(FundingStoreKeyPrefixRounds) // 1 byte
	m.WriteUint32(uint32(projectKey))        // 4 bytes
	return m.Bytes()
}

func keyForRoundsExpiring(at uint32) []byte {
	m := marshalutil.New(5)
	m.WriteByte(FundingStoreKeyPrefixRoundsExpiring) // 1 byte
	m.WriteUint32(at)                                // 4 bytes
	return m.Bytes()
}

func roundKeysBytes(rounds []*RoundKey) []byte {
	m := marshalutil.New(2 + 9*len(rounds))
	m.WriteUint16(uint16(len(rounds)))
	for _, round := range rounds {
		round.writeTo(m)
	}
	return m.Bytes()
}

func roundKeysFromBytes(data []byte) ([]*RoundKey, error) {
	m := marshalutil.New(data)
	count, err := m.ReadUint16()
	if err != nil {
		return nil, err
	}
	rounds := make([]*RoundKey, 0, count)
	for i := uint16(0); i < count; i++ {
		round, err := readRoundKey(m)
		if err != nil {
			return nil, err
		}
		rounds = append(rounds, round)
	}
	return rounds, nil
}

// Completed projects and disputes

func keyForSweptIndex() []byte {
	return []byte{FundingStoreKeyPrefixSweptIndex}
}

func (m *Manager) sweptIndex() (tick.Index, bool, error) {
	value, exists, err := m.getValue(keyForSweptIndex())
	if err != nil || !exists {
		return 0, false, err
	}
	index, err := marshalutil.New(value).ReadUint32()
	if err != nil {
		return 0, false, storage.NewDatabaseError(errors.Wrap(err, "failed to parse swept index"))
	}
	return tick.Index(index), true, nil
}

func keyForCompletedProjects(initiator ledger.AccountID) []byte {
	m := marshalutil.New(1 + len(initiator))
	m.WriteByte(FundingStoreKeyPrefixCompletedProjects) // 1 byte
	m.WriteBytes([]byte(initiator))                     // n bytes
	return m.Bytes()
}

func keyForMilestonesInDispute(projectKey ProjectKey) []byte {
	m := marshalutil.New(5)
	m.WriteByte(FundingStoreKeyPrefixProjectsInDispute) // 1 byte
	m.WriteUint32(uint32(projectKey))                   // 4 bytes
	return m.Bytes()
}

func projectKeysBytes(keys []ProjectKey) []byte {
	m := marshalutil.New(2 + 4*len(keys))
	m.WriteUint16(uint16(len(keys)))
	for _, key := range keys {
		m.WriteUint32(uint32(key))
	}
	return m.Bytes()
}

func projectKeysFromBytes(data []byte) ([]ProjectKey, error) {
	m := marshalutil.New(data)
	count, err := m.ReadUint16()
	if err != nil {
		return nil, err
	}
	keys := make([]ProjectKey, 0, count)
	for i := uint16(0); i < count; i++ {
		key, err := m.ReadUint32()
		if err != nil {
			return nil, err
		}
		keys = append(keys, ProjectKey(key))
	}
	return keys, nil
}

// getValue reads a value and reports whether it exists.
func (m *Manager) getValue(key []byte) ([]byte, bool, error) {
	value, err := m.fundingStore.Get(key)
	if err != nil {
		if errors.Is(err, kvstore.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, storage.NewDatabaseError(err)
	}
	return value, true, nil
}

func (m *Manager) loadProject(projectKey ProjectKey) (*Project, error) {
	value, exists, err := m.getValue(keyForProject(projectKey))
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, errors.WithMessagef(ErrProjectDoesNotExist, "project %d", projectKey)
	}
	project, err := ProjectFromBytes(value)
	if err != nil {
		return nil, storage.NewDatabaseError(errors.Wrapf(err, "failed to parse project %d", projectKey))
	}
	return project, nil
}

func (m *Manager) projectCount() (ProjectKey, error) {
	value, exists, err := m.getValue(keyForProjectCount())
	if err != nil || !exists {
		return 0, err
	}
	count, err := marshalutil.New(value).ReadUint32()
	if err != nil {
		return 0, storage.NewDatabaseError(err)
	}
	return ProjectKey(count), nil
}

func (m *Manager) loadVote(key []byte) (*Vote, error) {
	value, exists, err := m.getValue(key)
	if err != nil || !exists {
		return nil, err
	}
	vote, err := VoteFromBytes(value)
	if err != nil {
		return nil, storage.NewDatabaseError(err)
	}
	return vote, nil
}

func (m *Manager) hasIndividualVote(projectKey ProjectKey, kind RoundKind, milestoneKey MilestoneKey, who ledger.AccountID) (bool, error) {
	has, err := m.fundingStore.Has(keyForIndividualVote(projectKey, kind, milestoneKey, who))
	if err != nil {
		return false, storage.NewDatabaseError(err)
	}
	return has, nil
}

// keysWithPrefix collects all keys stored under the given prefix.
func (m *Manager) keysWithPrefix(prefix []byte) ([][]byte, error) {
	var keys [][]byte
	if err := m.fundingStore.IterateKeys(prefix, func(key kvstore.Key) bool {
		keys = append(keys, append([]byte{}, key...))
		return true
	}); err != nil {
		return nil, storage.NewDatabaseError(err)
	}
	return keys, nil
}

func (m *Manager) roundExpiry(round *RoundKey) (uint32, bool, error) {
	value, exists, err := m.getValue(keyForRound(round))
	if err != nil || !exists {
		return 0, false, err
	}
	expiry, err := marshalutil.New(value).ReadUint32()
	if err != nil {
		return 0, false, storage.NewDatabaseError(err)
	}
	return expiry, true, nil
}

func (m *Manager) roundsExpiringAt(at uint32) ([]*RoundKey, error) {
	value, exists, err := m.getValue(keyForRoundsExpiring(at))
	if err != nil || !exists {
		return nil, err
	}
	rounds, err := roundKeysFromBytes(value)
	if err != nil {
		return nil, storage.NewDatabaseError(err)
	}
	return rounds, nil
}

func (m *Manager) completedProjects(initiator ledger.AccountID) ([]ProjectKey, error) {
	value, exists, err := m.getValue(keyForCompletedProjects(initiator))
	if err != nil || !exists {
		return nil, err
	}
	keys, err := projectKeysFromBytes(value)
	if err != nil {
		return nil, storage.NewDatabaseError(err)
	}
	return keys, nil
}

// milestonesInDispute returns the set of milestones of a project that are currently in dispute.
func (m *Manager) milestonesInDispute(projectKey ProjectKey) (*bitset.BitSet, error) {
	inDispute := bitset.New(0)

	value, exists, err := m.getValue(keyForMilestonesInDispute(projectKey))
	if err != nil || !exists {
		return inDispute, err
	}
	if err := inDispute.UnmarshalBinary(value); err != nil {
		return nil, storage.NewDatabaseError(err)
	}
	return inDispute, nil
}

// fundingBatch collects the writes of one operation. The first failing write cancels the batch.
type fundingBatch struct {
	mutations kvstore.BatchedMutations
	err       error
}

func (m *Manager) newBatch() *fundingBatch {
	return &fundingBatch{mutations: m.fundingStore.Batched()}
}

func (b *fundingBatch) set(key []byte, value []byte) {
	if b.err != nil {
		return
	}
	b.err = b.mutations.Set(key, value)
}

func (b *fundingBatch) delete(key []byte) {
	if b.err != nil {
		return
	}
	b.err = b.mutations.Delete(key)
}

func (b *fundingBatch) commit() error {
	if b.err != nil {
		b.mutations.Cancel()
		return storage.NewDatabaseError(b.err)
	}
	if err := b.mutations.Commit(); err != nil {
		return storage.NewDatabaseError(err)
	}
	return nil
}

func (b *fundingBatch) storeProject(project *Project) {
	b.set(keyForProject(project.Key), project.Bytes())
}

func (b *fundingBatch) storeVote(key []byte, vote *Vote) {
	b.set(key, vote.Bytes())
}

func (b *fundingBatch) storeIndividualVote(projectKey ProjectKey, kind RoundKind, milestoneKey MilestoneKey, who ledger.AccountID, approve bool) {
	b.set(keyForIndividualVote(projectKey, kind, milestoneKey, who), marshalutil.New(1).WriteBool(approve).Bytes())
}

func (b *fundingBatch) storeMilestonesInDispute(projectKey ProjectKey, inDispute *bitset.BitSet) {
	if inDispute.None() {
		b.delete(keyForMilestonesInDispute(projectKey))
		return
	}
	value, err := inDispute.MarshalBinary()
	if err != nil {
		if b.err == nil {
			b.err = err
		}
		return
	}
	b.set(keyForMilestonesInDispute(projectKey), value)
}

// clearIndividualVotes deletes the individual votes of a round.
func (m *Manager) clearIndividualVotes(batch *fundingBatch, projectKey ProjectKey, kind RoundKind, milestoneKey MilestoneKey) error {
	keys, err := m.keysWithPrefix(keyPrefixIndividualVotes(projectKey, kind, milestoneKey))
	if err != nil {
		return err
	}
	for _, key := range keys {
		batch.delete(key)
	}
	return nil
}

// deleteProject removes the project together with its tallies, individual votes, open rounds and dispute state.
// Entries in the expiry index are left behind and skipped by the sweep.
func (m *Manager) deleteProject(batch *fundingBatch, project *Project) error {
	batch.delete(keyForProject(project.Key))
	for milestoneKey := range project.Milestones {
		batch.delete(keyForMilestoneVote(project.Key, milestoneKey))
	}
	batch.delete(keyForNoConfidenceVote(project.Key))
	batch.delete(keyForMilestonesInDispute(project.Key))

	for _, prefix := range [][]byte{
		keyPrefixIndividualVotesForProject(project.Key),
		keyPrefixRoundsForProject(project.Key),
	} {
		keys, err := m.keysWithPrefix(prefix)
		if err != nil {
			return err
		}
		for _, key := range keys {
			batch.delete(key)
		}
	}
	return nil
}
