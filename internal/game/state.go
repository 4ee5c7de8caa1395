package game

import (
	"fmt"
	"shooter-sync/internal/domain"
	"shooter-sync/internal/replication"
	"shooter-sync/internal/rpc"
	"slices"

	"github.com/rs/zerolog"
)

// State is the match score table. Once a team reaches the winning score the
// match is over and further scoring is ignored.
type State struct {
	teamCount    int
	winningScore int
	scores       *replication.Channel[[]int]
	over         bool
	winner       domain.TeamID

	gate   *replication.Gate
	router *rpc.Router
	logger zerolog.Logger

	// OnGameOver runs on the authority when the match ends.
	OnGameOver func(winner domain.TeamID, scores []int)
}

func NewState(teamCount, winningScore int, hub *replication.Hub, gate *replication.Gate, router *rpc.Router, logger zerolog.Logger) *State {
	return &State{
		teamCount:    teamCount,
		winningScore: winningScore,
		scores:       replication.NewChannelFunc("scores", hub, gate, make([]int, teamCount), slices.Equal[[]int, int]),
		winner:       domain.NoTeam,
		gate:         gate,
		router:       router,
		logger:       logger,
	}
}

func (s *State) TeamCount() int    { return s.teamCount }
func (s *State) WinningScore() int { return s.winningScore }

// Scores returns a copy of the authoritative table.
func (s *State) Scores() []int {
	return slices.Clone(s.scores.Value())
}

// Over reports whether the match ended and which team won.
func (s *State) Over() (bool, domain.TeamID) {
	return s.over, s.winner
}

// Channel exposes the replicated score table.
func (s *State) Channel() *replication.Channel[[]int] {
	return s.scores
}

// AddTeamScore gives team one point. It reports whether the table changed.
func (s *State) AddTeamScore(side replication.Side, team domain.TeamID) bool {
	if !s.gate.RequireAuthority(side, "add team score") {
		return false
	}
	if int(team) < 0 || int(team) >= s.teamCount {
		s.gate.Reject(replication.Diagnostic{
			Err:    replication.ErrOutOfRangeTeam,
			Op:     "add team score",
			Detail: fmt.Sprintf("team %d out of range (teams %d)", team, s.teamCount),
		})
		return false
	}
	if s.over {
		s.logger.Debug().Int("team_id", int(team)).Msg("match over, score ignored")
		return false
	}

	next := s.Scores()
	next[team]++
	s.scores.Set(side, next)
	s.logger.Info().Int("team_id", int(team)).Int("score", next[team]).Msg("team scored")

	if next[team] >= s.winningScore {
		s.over = true
		s.winner = team
		s.router.Multicast(side, "game_over", func(o replication.Observer) {
			if o.Sink != nil {
				o.Sink.GameOver(team, o.Team == team)
			}
		})
		s.logger.Info().Int("winning_team", int(team)).Ints("scores", next).Msg("match over")
		if s.OnGameOver != nil {
			s.OnGameOver(team, slices.Clone(next))
		}
	}
	return true
}

// Reset zeroes the table and leaves the terminal state.
func (s *State) Reset(side replication.Side) bool {
	if !s.gate.RequireAuthority(side, "reset scores") {
		return false
	}
	s.over = false
	s.winner = domain.NoTeam
	s.scores.Set(side, make([]int, s.teamCount))
	return true
}
