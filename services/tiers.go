package services

import "strings"

type Tier string

const (
	TierTrial  Tier = "TRIAL"
	TierPass   Tier = "PASS"
	TierYearly Tier = "YEARLY"
	TierTopup  Tier = "TOPUP"
)

// TierProfile is everything a request needs to know about the caller's tier.
// It is resolved once per request.
type TierProfile struct {
	Tier            Tier
	MaxTripDays     int // 0 means unlimited
	PrimaryModel    string
	FallbackModel   string
	SearchAugmented bool
	RichActivities  bool
	FreeExport      bool
}

// Premium reports whether the tier is a subscription tier.
func (p TierProfile) Premium() bool {
	return p.Tier == TierPass || p.Tier == TierYearly
}

// ModelSet is the primary/fallback model pair for one class of tiers.
type ModelSet struct {
	Primary  string
	Fallback string
}

type TierTable struct {
	profiles map[Tier]TierProfile
}

func NewTierTable(standard, premium ModelSet) *TierTable {
	return &TierTable{profiles: map[Tier]TierProfile{
		TierTrial: {
			Tier:          TierTrial,
			MaxTripDays:   5,
			PrimaryModel:  standard.Primary,
			FallbackModel: standard.Fallback,
		},
		TierTopup: {
			Tier:          TierTopup,
			PrimaryModel:  standard.Primary,
			FallbackModel: standard.Fallback,
		},
		TierPass: {
			Tier:            TierPass,
			PrimaryModel:    premium.Primary,
			FallbackModel:   premium.Fallback,
			SearchAugmented: true,
			RichActivities:  true,
			FreeExport:      true,
		},
		TierYearly: {
			Tier:            TierYearly,
			PrimaryModel:    premium.Primary,
			FallbackModel:   premium.Fallback,
			SearchAugmented: true,
			RichActivities:  true,
			FreeExport:      true,
		},
	}}
}

// ProfileFor returns the profile for tier; unknown or empty tiers get TRIAL.
func (t *TierTable) ProfileFor(tier string) TierProfile {
	if p, ok := t.profiles[Tier(strings.ToUpper(strings.TrimSpace(tier)))]; ok {
		return p
	}
	return t.profiles[TierTrial]
}
