// Package fees provides the static volume-tiered trading fee schedule.
package fees

// Tier is one row of the fee schedule
type Tier struct {
	Name         string  `json:"name"`
	FeePercent   float64 `json:"fee_percent"`
	MinVolumeUSD float64 `json:"min_volume_usd"`
}

// NextTier describes the next-higher tier and the volume still needed
type NextTier struct {
	Tier
	AmountToNextUSD float64 `json:"amount_to_next_usd"`
}

// Level is the result of a schedule lookup
type Level struct {
	Tier
	Next *NextTier `json:"next,omitempty"`
}

// tiers is ordered ascending by MinVolumeUSD and must start at 0
var tiers = []Tier{
	{Name: "Starter", FeePercent: 0.40, MinVolumeUSD: 0},
	{Name: "Bronze", FeePercent: 0.35, MinVolumeUSD: 10_000},
	{Name: "Silver", FeePercent: 0.30, MinVolumeUSD: 50_000},
	{Name: "Gold", FeePercent: 0.25, MinVolumeUSD: 100_000},
	{Name: "Platinum", FeePercent: 0.20, MinVolumeUSD: 250_000},
	{Name: "Diamond", FeePercent: 0.16, MinVolumeUSD: 500_000},
	{Name: "Pro", FeePercent: 0.10, MinVolumeUSD: 1_000_000},
}

// Lookup returns the best fee tier applicable to a trailing 30-day volume.
// The highest tier whose threshold is <= volume wins; exact equality to a
// threshold qualifies for that tier. Negative volume is treated as zero.
func Lookup(volumeUSD float64) Level {
	if volumeUSD < 0 {
		volumeUSD = 0
	}

	idx := 0
	for i, t := range tiers {
		if volumeUSD >= t.MinVolumeUSD {
			idx = i
		}
	}

	level := Level{Tier: tiers[idx]}
	if idx+1 < len(tiers) {
		next := tiers[idx+1]
		level.Next = &NextTier{
			Tier:            next,
			AmountToNextUSD: next.MinVolumeUSD - volumeUSD,
		}
	}
	return level
}

// Tiers returns a copy of the full schedule
func Tiers() []Tier {
	out := make([]Tier, len(tiers))
	copy(out, tiers)
	return out
}
