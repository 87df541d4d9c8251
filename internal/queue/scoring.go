package queue

import (
	"math"
	"time"
)

const (
	// AgeWeight is the full age bonus, reached after AgeSaturation.
	AgeWeight     = 0.25
	AgeSaturation = 600 * time.Second
	// HostWeight favours tracks added by the room host.
	HostWeight = 0.1
)

// Score ranks a queued track. Net votes dominate; the age and host bonuses
// together stay below 1.0 so they only reorder tracks with equal votes.
func Score(createdAt time.Time, netVotes int, isHostAdd bool, now time.Time) float64 {
	age := now.Sub(createdAt).Seconds()
	if age < 0 {
		age = 0
	}

	ageBonus := AgeWeight * math.Min(age/AgeSaturation.Seconds(), 1.0)
	hostBonus := 0.0
	if isHostAdd {
		hostBonus = HostWeight
	}
	return float64(netVotes) + ageBonus + hostBonus
}
