package server

import (
	"shooter-sync/internal/domain"
	"time"
)

type JoinRequest struct {
	Name string         `json:"name"`
	Team *domain.TeamID `json:"team,omitempty"`
}

type JoinResponse struct {
	SessionID domain.SessionID `json:"session_id"`
	TeamID    domain.TeamID    `json:"team_id"`
	Name      string           `json:"name"`
	Token     string           `json:"token"`
}

type LeaveRequest struct {
	SessionID domain.SessionID `json:"session_id"`
}

type Empty struct{}

type ScoreboardResponse struct {
	Scores       []int         `json:"scores"`
	WinningScore int           `json:"winning_score"`
	Over         bool          `json:"over"`
	WinningTeam  domain.TeamID `json:"winning_team"`
}

type Session struct {
	ID       domain.SessionID `json:"id"`
	Name     string           `json:"name"`
	Team     domain.TeamID    `json:"team"`
	HP       float64          `json:"hp"`
	MaxHP    float64          `json:"max_hp"`
	Alive    bool             `json:"alive"`
	Weapons  []string         `json:"weapons"`
	Active   int              `json:"active"`
	Magazine int              `json:"magazine"`
	Ammo     int              `json:"ammo"`
}

type ListSessionsResponse struct {
	Sessions []Session `json:"sessions"`
}

type JournalRequest struct {
	Limit int `json:"limit"`
}

type JournalEvent struct {
	ID        string           `json:"id"`
	Kind      domain.EventKind `json:"kind"`
	SessionID domain.SessionID `json:"session_id"`
	TeamID    domain.TeamID    `json:"team_id"`
	Detail    string           `json:"detail,omitempty"`
	CreatedAt string           `json:"created_at"`
}

type JournalResponse struct {
	Events []JournalEvent `json:"events"`
}

func toJournalEvent(e domain.Event) JournalEvent {
	return JournalEvent{
		ID:        e.ID,
		Kind:      e.Kind,
		SessionID: e.Session,
		TeamID:    e.Team,
		Detail:    e.Detail,
		CreatedAt: e.CreatedAt.Format(time.RFC3339),
	}
}
