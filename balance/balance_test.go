package balance_test

import (
	"testing"

	"github.com/Noofbiz/eegprep/balance"
	"github.com/Noofbiz/eegprep/epochs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// set returns an epoch set whose single-sample epochs hold their own index.
func set(labels ...int) *epochs.EpochSet {
	s := &epochs.EpochSet{
		Classes:    []string{"left_hand", "right_hand", "foot"},
		Channels:   []string{"Cz"},
		SampleRate: 250,
		Length:     1,
		Labels:     labels,
	}
	for i := range labels {
		s.Data = append(s.Data, [][]float64{{float64(i)}})
	}
	return s
}

func TestBalanceEqualisesClasses(t *testing.T) {
	src := set(0, 0, 1, 2, 0, 1, 2, 2, 0, 1, 2)

	out := balance.Balance(src, balance.DefaultSeed)

	assert.Equal(t, []int{3, 3, 3}, balance.Counts(out))
	assert.Equal(t, []int{0, 0, 0, 1, 1, 1, 2, 2, 2}, out.Labels)
	require.Len(t, out.Data, 9)

	picked := make(map[int]bool)
	for i, e := range out.Data {
		idx := int(e[0][0])
		assert.False(t, picked[idx], "epoch %d drawn twice", idx)
		picked[idx] = true
		assert.Equal(t, src.Labels[idx], out.Labels[i])
	}
	assert.Equal(t, src.Classes, out.Classes)
}

func TestBalanceIsDeterministic(t *testing.T) {
	src := set(0, 1, 0, 1, 0, 1, 0, 2, 2, 2, 2, 1)

	a := balance.Balance(src, 42)
	b := balance.Balance(src, 42)

	assert.Equal(t, a, b)
}

func TestBalanceWithEmptyClass(t *testing.T) {
	src := set(0, 0, 2, 2)

	out := balance.Balance(src, balance.DefaultSeed)

	assert.Zero(t, out.Len())
	assert.Equal(t, []int{0, 0, 0}, balance.Counts(out))
}

func TestBalanceKeepsAlreadyBalancedSet(t *testing.T) {
	src := set(2, 1, 0)

	out := balance.Balance(src, balance.DefaultSeed)

	assert.Equal(t, []int{0, 1, 2}, out.Labels)
	assert.Equal(t, [][][]float64{{{2}}, {{1}}, {{0}}}, out.Data)
}
