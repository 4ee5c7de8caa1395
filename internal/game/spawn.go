package game

import (
	"shooter-sync/internal/domain"
	"shooter-sync/internal/replication"
)

// SpawnSelector maps a session to a spawn point. Each team owns the spawn
// points carrying its tag; sessions of one team rotate through that subset.
type SpawnSelector struct {
	teamCount int
	tags      []string
	gate      *replication.Gate
}

// DefaultSpawnTags names team spawn tags PlayerStartA, PlayerStartB, ...
func DefaultSpawnTags(teamCount int) []string {
	tags := make([]string, teamCount)
	for i := range tags {
		tags[i] = "PlayerStart" + string(rune('A'+i%26))
	}
	return tags
}

func NewSpawnSelector(teamCount int, tags []string, gate *replication.Gate) SpawnSelector {
	if teamCount < 1 {
		teamCount = 1
	}
	if len(tags) == 0 {
		tags = DefaultSpawnTags(teamCount)
	}
	return SpawnSelector{teamCount: teamCount, tags: tags, gate: gate}
}

// Choose picks the spawn point for requester. An in-range team selects its
// tag directly; otherwise the team is requester mod teamCount. Without a
// tagged match the first candidate is used. It reports false when there are
// no candidates or the caller is not the authority.
func (s SpawnSelector) Choose(side replication.Side, requester domain.SessionID, team domain.TeamID, candidates []domain.SpawnPoint) (domain.SpawnPoint, bool) {
	if !s.gate.RequireAuthority(side, "choose spawn") {
		return domain.SpawnPoint{}, false
	}
	if len(candidates) == 0 {
		return domain.SpawnPoint{}, false
	}

	idx := int(team)
	if idx < 0 || idx >= s.teamCount {
		idx = int(requester) % s.teamCount
		if idx < 0 {
			idx += s.teamCount
		}
	}
	if idx >= len(s.tags) {
		return candidates[0], true
	}

	var subset []domain.SpawnPoint
	for _, c := range candidates {
		if c.Tag == s.tags[idx] {
			subset = append(subset, c)
		}
	}
	if len(subset) == 0 {
		return candidates[0], true
	}
	slot := int(requester) / s.teamCount
	if slot < 0 {
		slot = -slot
	}
	return subset[slot%len(subset)], true
}
