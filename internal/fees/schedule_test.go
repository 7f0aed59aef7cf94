package fees

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupZeroVolume(t *testing.T) {
	level := Lookup(0)

	assert.Equal(t, "Starter", level.Name)
	assert.Equal(t, 0.40, level.FeePercent)
	require.NotNil(t, level.Next)
	assert.Equal(t, "Bronze", level.Next.Name)
	assert.Equal(t, 10_000.0, level.Next.AmountToNextUSD)
}

func TestLookupNegativeVolumeTreatedAsZero(t *testing.T) {
	level := Lookup(-500)

	assert.Equal(t, "Starter", level.Name)
	require.NotNil(t, level.Next)
	assert.Equal(t, 10_000.0, level.Next.AmountToNextUSD)
}

func TestLookupThresholdEqualityQualifies(t *testing.T) {
	level := Lookup(50_000)

	assert.Equal(t, "Silver", level.Name)
	assert.Equal(t, 0.30, level.FeePercent)
	require.NotNil(t, level.Next)
	assert.Equal(t, "Gold", level.Next.Name)
	assert.Equal(t, 50_000.0, level.Next.AmountToNextUSD)
}

func TestLookupBetweenThresholds(t *testing.T) {
	level := Lookup(120_000)

	assert.Equal(t, "Gold", level.Name)
	require.NotNil(t, level.Next)
	assert.Equal(t, "Platinum", level.Next.Name)
	assert.Equal(t, 130_000.0, level.Next.AmountToNextUSD)
}

func TestLookupTopTierHasNoNext(t *testing.T) {
	level := Lookup(2_500_000)

	assert.Equal(t, "Pro", level.Name)
	assert.Equal(t, 0.10, level.FeePercent)
	assert.Nil(t, level.Next)
}

func TestTiersReturnsCopy(t *testing.T) {
	first := Tiers()
	first[0].FeePercent = 99

	second := Tiers()
	assert.Equal(t, 0.40, second[0].FeePercent)
}

func TestScheduleIsAscending(t *testing.T) {
	all := Tiers()
	require.NotEmpty(t, all)
	assert.Equal(t, 0.0, all[0].MinVolumeUSD)

	for i := 1; i < len(all); i++ {
		assert.Greater(t, all[i].MinVolumeUSD, all[i-1].MinVolumeUSD)
		assert.Less(t, all[i].FeePercent, all[i-1].FeePercent)
	}
}
