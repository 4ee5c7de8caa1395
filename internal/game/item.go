package game

import (
	"fmt"
	"shooter-sync/internal/constants"
)

// ItemKind tags what an item does when used. Behaviour lives in one dispatch
// (Match.useItem) instead of per-type hooks.
type ItemKind uint8

const (
	ItemNone ItemKind = iota
	ItemConsumable
	ItemWeapon
	ItemAmmo
	ItemEquipment
	ItemResource
)

func (k ItemKind) String() string {
	switch k {
	case ItemConsumable:
		return "consumable"
	case ItemWeapon:
		return "weapon"
	case ItemAmmo:
		return "ammo"
	case ItemEquipment:
		return "equipment"
	case ItemResource:
		return "resource"
	default:
		return "none"
	}
}

type Rarity uint8

const (
	RarityCommon Rarity = iota
	RarityUncommon
	RarityRare
	RarityLegendary
)

// Item is a world or inventory object. Amount is the heal for consumables
// and the round count for ammo; Weapon is set for weapon items.
type Item struct {
	ID        string
	Name      string
	Kind      ItemKind
	Rarity    Rarity
	Stackable bool
	MaxStack  int
	Count     int
	Amount    float64
	Weapon    *WeaponSpec
}

func (it *Item) Valid() bool {
	if it == nil || it.ID == "" || it.Kind == ItemNone {
		return false
	}
	return it.Kind != ItemWeapon || it.Weapon != nil
}

func (it *Item) maxStack() int {
	if !it.Stackable {
		return 1
	}
	if it.MaxStack <= 0 {
		return constants.DefaultMaxStack
	}
	return it.MaxStack
}

// Stack adds n to the item and returns what did not fit.
func (it *Item) Stack(n int) int {
	if n <= 0 {
		return 0
	}
	room := it.maxStack() - it.Count
	if room <= 0 {
		return n
	}
	if n <= room {
		it.Count += n
		return 0
	}
	it.Count += room
	return n - room
}

// Split moves n units into a new item. It fails for non-stackable items and
// when n does not leave at least one unit behind.
func (it *Item) Split(n int) (*Item, error) {
	if !it.Stackable {
		return nil, fmt.Errorf("item %s is not stackable", it.ID)
	}
	if n <= 0 || n >= it.Count {
		return nil, fmt.Errorf("cannot split %d from stack of %d", n, it.Count)
	}
	out := *it
	out.ID = fmt.Sprintf("%s/%d", it.ID, it.Count-n)
	out.Count = n
	it.Count -= n
	return &out, nil
}

func (it *Item) consumeOne() bool {
	if it.Count <= 0 {
		return false
	}
	it.Count--
	return true
}
