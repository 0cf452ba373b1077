package agent

import (
	"hash/fnv"

	"github.com/jonesrussell/discount-agent/internal/domain"
)

// Simulated CRM enrichment bounds.
const (
	enrichBaseFollowers  = 10000
	enrichFollowerSpread = 900000
	influencerFollowers  = 50000
	influencerDiceSides  = 10
	influencerDiceMin    = 8
)

// enrich attaches deterministic lead-enrichment data derived from the user
// id. Stable across calls so analytics and tests see consistent values.
func enrich(userID string, decision *domain.AgentDecision) {
	h := fnv.New32a()
	h.Write([]byte(userID))
	uidHash := int(h.Sum32() % 100000)

	decision.FollowerCount = enrichBaseFollowers + uidHash%enrichFollowerSpread
	decision.IsPotentialInfluencer = decision.FollowerCount > influencerFollowers ||
		uidHash%influencerDiceSides >= influencerDiceMin
}
