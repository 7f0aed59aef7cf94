package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAllocations(t *testing.T) {
	err := validateAllocations([]AllocationInput{
		{Symbol: "BTC", TargetPercent: 60},
		{Symbol: "ETH", TargetPercent: 40},
	})
	assert.NoError(t, err)
}

func TestValidateAllocationsWithinTolerance(t *testing.T) {
	err := validateAllocations([]AllocationInput{
		{Symbol: "BTC", TargetPercent: 33.33},
		{Symbol: "ETH", TargetPercent: 33.33},
		{Symbol: "SOL", TargetPercent: 33.34},
	})
	assert.NoError(t, err)
}

func TestValidateAllocationsEmpty(t *testing.T) {
	err := validateAllocations(nil)

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "allocations", vErr.Field)
}

func TestValidateAllocationsSumOff(t *testing.T) {
	err := validateAllocations([]AllocationInput{
		{Symbol: "BTC", TargetPercent: 60},
		{Symbol: "ETH", TargetPercent: 30},
	})

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestValidateAllocationsDuplicateSymbol(t *testing.T) {
	err := validateAllocations([]AllocationInput{
		{Symbol: "BTC", TargetPercent: 60},
		{Symbol: "BTC", TargetPercent: 40},
	})

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestValidateAllocationsNonPositivePercent(t *testing.T) {
	err := validateAllocations([]AllocationInput{
		{Symbol: "BTC", TargetPercent: 100},
		{Symbol: "ETH", TargetPercent: 0},
	})

	var vErr *ValidationError
	assert.ErrorAs(t, err, &vErr)
}
