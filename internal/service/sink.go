package service

import (
	"shooter-sync/internal/domain"

	"github.com/rs/zerolog"
)

// logSink is the authority's own presentation: it writes every push to the
// log.
type logSink struct {
	logger zerolog.Logger
}

func (s logSink) DamagePercent(id domain.SessionID, fraction float64) {
	s.logger.Debug().Int("session_id", int(id)).Float64("fraction", fraction).Msg("health")
}

func (s logSink) AmmoCount(id domain.SessionID, magazineSize, currentAmmo int) {
	s.logger.Debug().Int("session_id", int(id)).Int("magazine", magazineSize).Int("ammo", currentAmmo).Msg("ammo")
}

func (s logSink) ScoreTable(scores []int) {
	s.logger.Info().Ints("scores", scores).Msg("scores")
}

func (s logSink) Died(id domain.SessionID) {
	s.logger.Info().Int("session_id", int(id)).Msg("died")
}

func (s logSink) Respawned(id domain.SessionID) {
	s.logger.Info().Int("session_id", int(id)).Msg("respawned")
}

func (s logSink) GameOver(winningTeam domain.TeamID, won bool) {
	s.logger.Info().Int("winning_team", int(winningTeam)).Msg("game over")
}
