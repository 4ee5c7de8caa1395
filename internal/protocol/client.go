package protocol

import "shooter-sync/internal/domain"

// Payloads sent by clients. The acting session is bound to the connection,
// never taken from the payload.

type Fire struct {
	Origin    domain.Vec3 `json:"origin"`
	Direction domain.Vec3 `json:"direction"`
}

type Empty struct{}

type Pickup struct {
	PickupID string `json:"pickup_id"`
}

type UseItem struct {
	Index int `json:"index"`
}

type Damage struct {
	Target domain.SessionID `json:"target"`
	Amount float64          `json:"amount"`
}
