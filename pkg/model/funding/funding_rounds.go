package funding

import (
	"github.com/pkg/errors"

	"github.com/gohornet/fundgov/pkg/model/tick"
	"github.com/iotaledger/hive.go/kvstore"
	"github.com/iotaledger/hive.go/marshalutil"
)

// openRound schedules a round to expire after duration ticks.
// It fails with ErrOverflow if the expiry tick already holds the maximum amount of rounds.
func (m *Manager) openRound(batch *fundingBatch, round *RoundKey, duration uint32) (tick.Index, error) {
	expiry := m.now().Add(duration)

	expiring, err := m.roundsExpiringAt(uint32(expiry))
	if err != nil {
		return 0, err
	}
	if len(expiring) >= m.opts.expiringPerTick {
		return 0, errors.WithMessagef(ErrOverflow, "%d rounds already expire at tick %d", len(expiring), expiry)
	}
	expiring = append(expiring, round)

	batch.set(keyForRound(round), marshalutil.New(4).WriteUint32(uint32(expiry)).Bytes())
	batch.set(keyForRoundsExpiring(uint32(expiry)), roundKeysBytes(expiring))

	return expiry, nil
}

// closeRound removes the round. The entry in the expiry index is left behind and skipped by the sweep.
func (m *Manager) closeRound(batch *fundingBatch, round *RoundKey) {
	batch.delete(keyForRound(round))
}

// roundIsOpen tells whether the round is scheduled.
func (m *Manager) roundIsOpen(round *RoundKey) (bool, error) {
	_, open, err := m.roundExpiry(round)
	return open, err
}

// OpenRounds returns the rounds of a project that are currently open, with their expiry tick.
func (m *Manager) OpenRounds(projectKey ProjectKey) (map[RoundKey]tick.Index, error) {
	m.RLock()
	defer m.RUnlock()

	rounds := make(map[RoundKey]tick.Index)

	var innerErr error
	if err := m.fundingStore.Iterate(keyPrefixRoundsForProject(projectKey), func(key kvstore.Key, value kvstore.Value) bool {
		round, err := readRoundKey(marshalutil.New(key[1:]))
		if err != nil {
			innerErr = err
			return false
		}
		expiry, err := marshalutil.New(value).ReadUint32()
		if err != nil {
			innerErr = err
			return false
		}
		rounds[*round] = tick.Index(expiry)
		return true
	}); err != nil {
		return nil, err
	}

	if innerErr != nil {
		return nil, innerErr
	}

	return rounds, nil
}

// Sweep closes all rounds expiring up to the given tick. It is called once per tick by the host.
// Ticks are swept in order, each in its own batch. A tick whose sweep failed is retried by the next call.
//
// Expired voting rounds drop their tally and individual votes, which makes the milestone submittable again.
// Expired no-confidence rounds keep their tally so the round can still be finalised by later votes.
func (m *Manager) Sweep(now tick.Index) error {
	m.RLock()
	swept, _, err := m.sweptIndex()
	m.RUnlock()
	if err != nil {
		return err
	}

	for index := swept + 1; index <= now; index++ {
		if err := m.apply(func(events *pendingEvents) error {
			return m.sweepTick(index, events)
		}); err != nil {
			return errors.Wrapf(err, "failed to sweep rounds at tick %d", index)
		}
	}
	return nil
}

func (m *Manager) sweepTick(now tick.Index, events *pendingEvents) error {
	expiring, err := m.roundsExpiringAt(uint32(now))
	if err != nil {
		return err
	}

	batch := m.newBatch()
	batch.delete(keyForRoundsExpiring(uint32(now)))
	batch.set(keyForSweptIndex(), marshalutil.New(4).WriteUint32(uint32(now)).Bytes())

	swept := make(map[RoundKey]struct{})
	for _, round := range expiring {
		if _, seen := swept[*round]; seen {
			continue
		}

		expiry, open, err := m.roundExpiry(round)
		if err != nil {
			batch.mutations.Cancel()
			return err
		}
		// stale entry of a round that was closed, or reopened with a later expiry
		if !open || expiry != uint32(now) {
			continue
		}
		swept[*round] = struct{}{}

		m.closeRound(batch, round)

		if round.Kind != RoundKindVoting {
			continue
		}

		batch.delete(keyForMilestoneVote(round.ProjectKey, round.MilestoneKey))
		if err := m.clearIndividualVotes(batch, round.ProjectKey, RoundKindVoting, round.MilestoneKey); err != nil {
			batch.mutations.Cancel()
			return err
		}

		events.add(m.Events.VotingRoundExpired, &Notification{
			Kind:          NotificationVotingRoundExpired,
			ProjectKey:    round.ProjectKey,
			MilestoneKeys: []MilestoneKey{round.MilestoneKey},
			Tick:          now,
		})
	}

	if err := batch.commit(); err != nil {
		return err
	}

	if len(swept) > 0 {
		m.LogDebugf("swept %d rounds at tick %d", len(swept), now)
	}
	return nil
}
