package game

import (
	"shooter-sync/internal/domain"
	"shooter-sync/internal/replication"
	"slices"
	"testing"

	"github.com/rs/zerolog"
)

func TestDefaultSpawnTags(t *testing.T) {
	if got := DefaultSpawnTags(3); !slices.Equal(got, []string{"PlayerStartA", "PlayerStartB", "PlayerStartC"}) {
		t.Fatalf("DefaultSpawnTags(3) = %v", got)
	}
}

func TestSpawnSelectorChoose(t *testing.T) {
	gate := replication.NewGate(zerolog.Nop(), nil)
	sel := NewSpawnSelector(2, nil, gate)
	points := []domain.SpawnPoint{
		{Name: "a0", Tag: "PlayerStartA"},
		{Name: "b0", Tag: "PlayerStartB"},
		{Name: "a1", Tag: "PlayerStartA"},
		{Name: "b1", Tag: "PlayerStartB"},
	}

	tests := []struct {
		name      string
		requester domain.SessionID
		team      domain.TeamID
		want      string
	}{
		{"team 0 first slot", 0, 0, "a0"},
		{"team 1 first slot", 1, 1, "b0"},
		{"team 0 second slot", 2, 0, "a1"},
		{"team 1 second slot", 3, 1, "b1"},
		{"team 0 wraps", 4, 0, "a0"},
		{"out of range team uses parity", 3, 7, "b1"},
		{"no team uses parity", 2, domain.NoTeam, "a1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := sel.Choose(replication.Authority, tt.requester, tt.team, points)
			if !ok || got.Name != tt.want {
				t.Fatalf("Choose = %q, %v; want %q", got.Name, ok, tt.want)
			}
		})
	}
}

func TestSpawnSelectorFallbacks(t *testing.T) {
	gate := replication.NewGate(zerolog.Nop(), nil)
	sel := NewSpawnSelector(2, nil, gate)

	if _, ok := sel.Choose(replication.Authority, 0, 0, nil); ok {
		t.Fatalf("chose from no candidates")
	}
	untagged := []domain.SpawnPoint{{Name: "x"}, {Name: "y"}}
	if got, ok := sel.Choose(replication.Authority, 1, 1, untagged); !ok || got.Name != "x" {
		t.Fatalf("fallback = %q, %v", got.Name, ok)
	}
	if _, ok := sel.Choose(replication.Remote, 0, 0, untagged); ok {
		t.Fatalf("remote side chose a spawn")
	}
}
