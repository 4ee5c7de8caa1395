package protocol

import "shooter-sync/internal/domain"

// Payloads pushed to clients.

type Welcome struct {
	SessionID domain.SessionID `json:"session_id"`
	TeamID    domain.TeamID    `json:"team_id"`
	Name      string           `json:"name"`
}

type HP struct {
	SessionID domain.SessionID `json:"session_id"`
	Fraction  float64          `json:"fraction"`
}

type Ammo struct {
	SessionID domain.SessionID `json:"session_id"`
	Magazine  int              `json:"magazine"`
	Ammo      int              `json:"ammo"`
}

type Scores struct {
	Scores []int `json:"scores"`
}

type Death struct {
	SessionID domain.SessionID `json:"session_id"`
}

type Respawned struct {
	SessionID domain.SessionID `json:"session_id"`
}

type GameOver struct {
	WinningTeam domain.TeamID `json:"winning_team"`
	Win         bool          `json:"win"`
}

type Error struct {
	Message string `json:"message"`
}
