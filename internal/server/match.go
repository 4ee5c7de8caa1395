package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"shooter-sync/internal/constants"
	"shooter-sync/internal/domain"
	"shooter-sync/internal/service"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"
)

const MatchServicePath = "/shooter.v1.MatchService/"

const (
	JoinProcedure         = MatchServicePath + "Join"
	LeaveProcedure        = MatchServicePath + "Leave"
	ScoreboardProcedure   = MatchServicePath + "Scoreboard"
	ListSessionsProcedure = MatchServicePath + "ListSessions"
	RestartProcedure      = MatchServicePath + "Restart"
	JournalProcedure      = MatchServicePath + "Journal"
)

// MatchServer is the lobby and admin API in front of the match service.
type MatchServer struct {
	matchSvc *service.MatchService
	logger   zerolog.Logger
}

func NewMatchServer(matchSvc *service.MatchService, logger zerolog.Logger) *MatchServer {
	return &MatchServer{matchSvc: matchSvc, logger: logger.With().Str("component", "match_server").Logger()}
}

// Handler returns the path prefix and handler serving every procedure.
func (s *MatchServer) Handler() (string, http.Handler) {
	opts := []connect.HandlerOption{connect.WithCodec(jsonCodec{})}
	mux := http.NewServeMux()
	mux.Handle(JoinProcedure, connect.NewUnaryHandler(JoinProcedure, s.Join, opts...))
	mux.Handle(LeaveProcedure, connect.NewUnaryHandler(LeaveProcedure, s.Leave, opts...))
	mux.Handle(ScoreboardProcedure, connect.NewUnaryHandler(ScoreboardProcedure, s.Scoreboard, opts...))
	mux.Handle(ListSessionsProcedure, connect.NewUnaryHandler(ListSessionsProcedure, s.ListSessions, opts...))
	mux.Handle(RestartProcedure, connect.NewUnaryHandler(RestartProcedure, s.Restart, opts...))
	mux.Handle(JournalProcedure, connect.NewUnaryHandler(JournalProcedure, s.Journal, opts...))
	return MatchServicePath, mux
}

func (s *MatchServer) Join(ctx context.Context, req *connect.Request[JoinRequest]) (*connect.Response[JoinResponse], error) {
	defer s.timed("Join", time.Now())

	if len(req.Msg.Name) > constants.MaxNameLength {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("name longer than %d characters", constants.MaxNameLength))
	}
	team := domain.NoTeam
	if req.Msg.Team != nil {
		if *req.Msg.Team < 0 {
			return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("team %d out of range", *req.Msg.Team))
		}
		team = *req.Msg.Team
	}

	res, err := s.matchSvc.Join(ctx, req.Msg.Name, team)
	if err != nil {
		return nil, s.toConnectError(err)
	}
	return connect.NewResponse(&JoinResponse{
		SessionID: res.SessionID,
		TeamID:    res.TeamID,
		Name:      res.Name,
		Token:     res.Token,
	}), nil
}

func (s *MatchServer) Leave(ctx context.Context, req *connect.Request[LeaveRequest]) (*connect.Response[Empty], error) {
	defer s.timed("Leave", time.Now())

	if err := s.matchSvc.Leave(ctx, req.Msg.SessionID); err != nil {
		return nil, s.toConnectError(err)
	}
	return connect.NewResponse(&Empty{}), nil
}

func (s *MatchServer) Scoreboard(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ScoreboardResponse], error) {
	sb, err := s.matchSvc.Scoreboard(ctx)
	if err != nil {
		return nil, s.toConnectError(err)
	}
	return connect.NewResponse(&ScoreboardResponse{
		Scores:       sb.Scores,
		WinningScore: sb.WinningScore,
		Over:         sb.Over,
		WinningTeam:  sb.WinningTeam,
	}), nil
}

func (s *MatchServer) ListSessions(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[ListSessionsResponse], error) {
	views, err := s.matchSvc.Sessions(ctx)
	if err != nil {
		return nil, s.toConnectError(err)
	}
	resp := &ListSessionsResponse{Sessions: make([]Session, 0, len(views))}
	for _, v := range views {
		resp.Sessions = append(resp.Sessions, Session{
			ID:       v.ID,
			Name:     v.Name,
			Team:     v.Team,
			HP:       v.HP,
			MaxHP:    v.MaxHP,
			Alive:    v.Alive,
			Weapons:  v.Weapons,
			Active:   v.Active,
			Magazine: v.Magazine,
			Ammo:     v.Ammo,
		})
	}
	return connect.NewResponse(resp), nil
}

func (s *MatchServer) Restart(ctx context.Context, req *connect.Request[Empty]) (*connect.Response[Empty], error) {
	defer s.timed("Restart", time.Now())

	if err := s.matchSvc.Restart(ctx); err != nil {
		return nil, s.toConnectError(err)
	}
	s.logger.Info().Msg("match restarted")
	return connect.NewResponse(&Empty{}), nil
}

func (s *MatchServer) Journal(ctx context.Context, req *connect.Request[JournalRequest]) (*connect.Response[JournalResponse], error) {
	if req.Msg.Limit < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("limit must not be negative"))
	}
	events, err := s.matchSvc.Journal(ctx, req.Msg.Limit)
	if err != nil {
		return nil, s.toConnectError(err)
	}
	resp := &JournalResponse{Events: make([]JournalEvent, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, toJournalEvent(e))
	}
	return connect.NewResponse(resp), nil
}

func (s *MatchServer) toConnectError(err error) error {
	switch {
	case errors.Is(err, service.ErrServiceStopped):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, service.ErrUnknownSession):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	s.logger.Error().Err(err).Msg("request failed")
	return connect.NewError(connect.CodeInternal, err)
}

func (s *MatchServer) timed(procedure string, start time.Time) {
	s.logger.Debug().
		Str("procedure", procedure).
		Int64("duration_ms", time.Since(start).Milliseconds()).
		Msg("procedure finished")
}
