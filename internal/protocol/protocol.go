package protocol

import (
	"encoding/json"
)

// Client to server.
const (
	MsgFire         = "fire"
	MsgSwitchWeapon = "switch_weapon"
	MsgReload       = "reload"
	MsgPickup       = "pickup"
	MsgUseItem      = "use_item"
	MsgDamage       = "damage"
)

// Server to client.
const (
	MsgWelcome   = "welcome"
	MsgHP        = "hp"
	MsgAmmo      = "ammo"
	MsgScores    = "scores"
	MsgDeath     = "death"
	MsgRespawned = "respawned"
	MsgGameOver  = "game_over"
	MsgError     = "error"
)

type Envelope struct {
	T string          `json:"t"`
	P json.RawMessage `json:"p"`
}
