package funding

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gohornet/fundgov/pkg/model/ledger"
)

func TestPercentMulFloor(t *testing.T) {
	require.Equal(t, uint64(333), Percent(33).MulFloor(1010))
	require.Equal(t, uint64(0), Percent(0).MulFloor(1000))
	require.Equal(t, uint64(1000), Percent(100).MulFloor(1000))
	require.Equal(t, uint64(0), Percent(50).MulFloor(1))
	require.Equal(t, uint64(math.MaxUint64), Percent(100).MulFloor(math.MaxUint64))
	require.Equal(t, uint64(math.MaxUint64/2), Percent(50).MulFloor(math.MaxUint64))
}

func TestMulDiv(t *testing.T) {
	require.Equal(t, uint64(360), mulDiv(600, 600, 1000))
	require.Equal(t, uint64(math.MaxUint64/3), mulDiv(math.MaxUint64, 1, 3))
	require.Equal(t, uint64(math.MaxUint64-1), mulDiv(math.MaxUint64-1, math.MaxUint64, math.MaxUint64))
}

func TestContributorSharesAddUp(t *testing.T) {
	project := &Project{
		RaisedFunds: 3,
		Contributions: map[ledger.AccountID]*Contribution{
			"c": {Value: 1},
			"a": {Value: 1},
			"b": {Value: 1},
		},
	}

	m := &Manager{}
	require.Equal(t, []*ledger.Payout{
		{To: "a", Amount: 34},
		{To: "b", Amount: 33},
		{To: "c", Amount: 33},
	}, m.contributorShares(project, 100))
	require.Nil(t, m.contributorShares(project, 0))
}
