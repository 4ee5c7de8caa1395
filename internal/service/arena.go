package service

import (
	"fmt"
	"shooter-sync/internal/domain"
	"shooter-sync/internal/game"
)

const spawnsPerTeam = 4

// DefaultLoadout is the weapon every session starts each match with.
var DefaultLoadout = []game.WeaponSpec{
	{Class: "Pistol", MagazineSize: 12, Damage: 20},
}

// defaultArena lays out spawn points per team along the x axis and a few
// pickups in the middle of the map.
func defaultArena(teamCount int) ([]domain.SpawnPoint, []game.Item) {
	tags := game.DefaultSpawnTags(teamCount)
	points := make([]domain.SpawnPoint, 0, teamCount*spawnsPerTeam)
	for team := 0; team < teamCount; team++ {
		for i := 0; i < spawnsPerTeam; i++ {
			points = append(points, domain.SpawnPoint{
				Name: fmt.Sprintf("%s-%d", tags[team], i),
				Tag:  tags[team],
				Transform: domain.Transform{
					Location: domain.Vec3{X: float64(team) * 4000, Y: float64(i) * 300},
					Yaw:      float64(180 * (team % 2)),
				},
			})
		}
	}

	rifle := game.WeaponSpec{Class: "Rifle", MagazineSize: 30, Damage: 34}
	pickups := []game.Item{
		{ID: "rifle-1", Name: "Rifle", Kind: game.ItemWeapon, Rarity: game.RarityRare, Count: 1, Weapon: &rifle},
		{ID: "medkit-1", Name: "Medkit", Kind: game.ItemConsumable, Stackable: true, MaxStack: 5, Count: 2, Amount: 50},
		{ID: "ammo-1", Name: "Ammo Box", Kind: game.ItemAmmo, Stackable: true, Count: 3, Amount: 30},
		{ID: "armor-1", Name: "Vest", Kind: game.ItemEquipment, Rarity: game.RarityUncommon, Count: 1},
	}
	return points, pickups
}
