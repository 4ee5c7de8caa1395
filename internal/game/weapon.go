package game

import "shooter-sync/internal/domain"

// WeaponSpec describes a weapon class in a loadout or pickup.
type WeaponSpec struct {
	Class        string  `json:"class"`
	MagazineSize int     `json:"magazine_size"`
	Damage       float64 `json:"damage"`
}

// WeaponRef is a weapon instance. It belongs to at most one session and is
// only mutated through gated Session methods.
type WeaponRef struct {
	Class        string
	MagazineSize int
	CurrentAmmo  int
	Damage       float64

	owner domain.SessionID
	owned bool
}

// NewWeapon returns an unowned weapon with a full magazine.
func NewWeapon(spec WeaponSpec) *WeaponRef {
	return &WeaponRef{
		Class:        spec.Class,
		MagazineSize: spec.MagazineSize,
		CurrentAmmo:  spec.MagazineSize,
		Damage:       spec.Damage,
	}
}

// Owner reports the owning session, if any.
func (w *WeaponRef) Owner() (domain.SessionID, bool) {
	return w.owner, w.owned
}

func (w *WeaponRef) consume() bool {
	if w.CurrentAmmo <= 0 {
		return false
	}
	w.CurrentAmmo--
	return true
}

func (w *WeaponRef) refill(rounds int) {
	if rounds <= 0 {
		return
	}
	w.CurrentAmmo += rounds
	if w.CurrentAmmo > w.MagazineSize {
		w.CurrentAmmo = w.MagazineSize
	}
}
