package entities

import "strings"

// PricePolicy maps a requested price level to affordability buckets.
type PricePolicy interface {
	Name() string
	Buckets(price string) []string
}

type bucketPolicy struct {
	name    string
	buckets map[string][]string
}

func (p bucketPolicy) Name() string {
	return p.name
}

// Buckets returns nil for an empty or unknown price, which means no price predicate.
func (p bucketPolicy) Buckets(price string) []string {
	key := strings.ToLower(strings.TrimSpace(price))
	if key == "" {
		return nil
	}
	buckets, ok := p.buckets[key]
	if !ok {
		return nil
	}
	out := make([]string, len(buckets))
	copy(out, buckets)
	return out
}

// AgentPricePolicy maps each price level to exactly one bucket.
var AgentPricePolicy PricePolicy = bucketPolicy{
	name: "agent_exclusive",
	buckets: map[string][]string{
		string(PriceCheap):     {AffordabilityAffordable},
		string(PriceModerate):  {AffordabilityMidRange},
		string(PriceExpensive): {AffordabilityPremium},
	},
}

// GuidedPricePolicy is cumulative: a higher tier also admits every cheaper one.
var GuidedPricePolicy PricePolicy = bucketPolicy{
	name: "guided_cumulative",
	buckets: map[string][]string{
		"$":                    {AffordabilityAffordable},
		"$$":                   {AffordabilityAffordable, AffordabilityMidRange},
		"$$$":                  {AffordabilityAffordable, AffordabilityMidRange, AffordabilityPremium},
		string(PriceCheap):     {AffordabilityAffordable},
		string(PriceModerate):  {AffordabilityAffordable, AffordabilityMidRange},
		string(PriceExpensive): {AffordabilityAffordable, AffordabilityMidRange, AffordabilityPremium},
	},
}
